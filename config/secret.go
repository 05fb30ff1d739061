package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
)

// SecretPrefix marks a value that names a secret.
const SecretPrefix = "secretref:"

// Provider resolves secrets by reference.
//
// Implementations must be safe for concurrent use and must not log secret values.
type Provider interface {
	Name() string
	Resolve(ctx context.Context, ref string) (string, error)
}

// EnvProvider resolves a reference as the name of an environment variable.
type EnvProvider struct {
	lookup func(string) (string, bool)
}

// NewEnvProvider reads the process environment.
func NewEnvProvider() *EnvProvider {
	return &EnvProvider{lookup: os.LookupEnv}
}

// Name returns "env".
func (p *EnvProvider) Name() string { return "env" }

// Resolve returns the variable named ref.
func (p *EnvProvider) Resolve(ctx context.Context, ref string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	v, ok := p.lookup(ref)
	if !ok {
		return "", fmt.Errorf("%w: env %s", ErrSecretNotFound, ref)
	}
	return v, nil
}

// FileProvider resolves a reference as a file path, relative to Dir when
// not absolute. Surrounding whitespace is trimmed from the contents.
type FileProvider struct {
	Dir string
}

// Name returns "file".
func (p *FileProvider) Name() string { return "file" }

// Resolve returns the trimmed contents of the file ref.
func (p *FileProvider) Resolve(ctx context.Context, ref string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	path := ref
	if !filepath.IsAbs(path) && p.Dir != "" {
		path = filepath.Join(p.Dir, path)
	}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return "", fmt.Errorf("%w: file %s", ErrSecretNotFound, path)
	}
	if err != nil {
		return "", fmt.Errorf("read secret file: %w", err)
	}
	return strings.TrimSpace(string(data)), nil
}

// Resolver expands ${VAR} references and secret references in values.
type Resolver struct {
	providers map[string]Provider
	strict    bool
}

// NewResolver creates a resolver. In strict mode a provider returning an
// empty value is an error.
func NewResolver(strict bool, providers ...Provider) *Resolver {
	r := &Resolver{
		providers: make(map[string]Provider),
		strict:    strict,
	}
	for _, p := range providers {
		if p != nil {
			r.providers[p.Name()] = p
		}
	}
	return r
}

// DefaultResolver resolves "env" and "file" references strictly.
func DefaultResolver() *Resolver {
	return NewResolver(true, NewEnvProvider(), &FileProvider{})
}

// ResolveValue expands environment variables in value, then replaces a
// whole-value or inline secret reference.
func (r *Resolver) ResolveValue(ctx context.Context, value string) (string, error) {
	expanded, err := ExpandEnvStrict(value)
	if err != nil {
		return "", err
	}
	if provider, ref, ok := ParseSecretRef(expanded); ok {
		return r.resolve(ctx, provider, ref)
	}
	return r.resolveInline(ctx, expanded)
}

// ParseSecretRef parses a full reference of the form secretref:<provider>:<ref>.
func ParseSecretRef(value string) (provider, ref string, ok bool) {
	if !strings.HasPrefix(value, SecretPrefix) {
		return "", "", false
	}
	parts := strings.SplitN(strings.TrimPrefix(value, SecretPrefix), ":", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", false
	}
	return parts[0], parts[1], true
}

func (r *Resolver) resolve(ctx context.Context, name, ref string) (string, error) {
	provider, ok := r.providers[name]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownProvider, name)
	}
	v, err := provider.Resolve(ctx, ref)
	if err != nil {
		return "", err
	}
	if r.strict && v == "" {
		return "", fmt.Errorf("%w: provider %q returned an empty value", ErrSecretNotFound, name)
	}
	return v, nil
}

var inlineSecretRef = regexp.MustCompile(`secretref:([^:\s]+):([^\s]+)`)

func (r *Resolver) resolveInline(ctx context.Context, value string) (string, error) {
	matches := inlineSecretRef.FindAllStringSubmatchIndex(value, -1)
	out := value
	// Replace from the end so earlier indexes stay valid.
	for i := len(matches) - 1; i >= 0; i-- {
		m := matches[i]
		v, err := r.resolve(ctx, out[m[2]:m[3]], out[m[4]:m[5]])
		if err != nil {
			return "", err
		}
		out = out[:m[0]] + v + out[m[1]:]
	}
	return out, nil
}

var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// ExpandEnvStrict expands $VAR and ${VAR} in s. A ${VAR} naming an unset
// variable is an error; $$ emits a literal $.
func ExpandEnvStrict(s string) (string, error) {
	const dollar = "\x00LEDGEROPS_DOLLAR\x00"
	s = strings.ReplaceAll(s, "$$", dollar)

	var missing []string
	seen := make(map[string]bool)
	for _, match := range envVarPattern.FindAllStringSubmatch(s, -1) {
		key := match[1]
		if _, ok := os.LookupEnv(key); !ok && !seen[key] {
			seen[key] = true
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return "", fmt.Errorf("%w: %s", ErrMissingEnv, strings.Join(missing, ", "))
	}

	s = os.ExpandEnv(s)
	return strings.ReplaceAll(s, dollar, "$"), nil
}

type secretField struct {
	name  string
	value *string
}

// ResolveSecrets resolves the values that may name secrets: the ledger
// DSN, the OTLP endpoint, the JWT secret and each API key.
func (c *Config) ResolveSecrets(ctx context.Context, r *Resolver) error {
	fields := []secretField{
		{"LEDGEROPS_LEDGER_DSN", &c.LedgerDSN},
		{"LEDGEROPS_OTLP_ENDPOINT", &c.OTLPEndpoint},
		{"LEDGEROPS_JWT_SECRET", &c.JWTSecret},
	}
	for i := range c.APIKeys {
		fields = append(fields, secretField{fmt.Sprintf("LEDGEROPS_API_KEYS[%d]", i), &c.APIKeys[i]})
	}
	for _, f := range fields {
		resolved, err := r.ResolveValue(ctx, *f.value)
		if err != nil {
			return fmt.Errorf("resolve %s: %w", f.name, err)
		}
		*f.value = resolved
	}
	return nil
}
