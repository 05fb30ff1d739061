package auth

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/jonwraymond/ledgerops/workflow"
)

var testSecret = []byte("consortium-shared-secret")

func fixedNow() time.Time {
	return time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
}

func newTestJWT(t *testing.T, mutate ...func(*JWTConfig)) *JWTAuthenticator {
	t.Helper()
	cfg := JWTConfig{
		Secret:   testSecret,
		Issuer:   "ledgerops",
		Audience: "consortium",
		Now:      fixedNow,
	}
	for _, m := range mutate {
		m(&cfg)
	}
	a, err := NewJWTAuthenticator(cfg)
	if err != nil {
		t.Fatalf("NewJWTAuthenticator() error = %v", err)
	}
	return a
}

func bearer(token string) http.Header {
	h := http.Header{}
	h.Set("Authorization", "Bearer "+token)
	return h
}

func sign(t *testing.T, secret []byte, method jwt.SigningMethod, claims jwt.Claims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(method, claims).SignedString(secret)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return token
}

func TestNewJWTAuthenticator_RequiresSecret(t *testing.T) {
	_, err := NewJWTAuthenticator(JWTConfig{})
	if !errors.Is(err, ErrNoSecret) {
		t.Errorf("error = %v, want ErrNoSecret", err)
	}
}

func TestJWTAuthenticator_Supports(t *testing.T) {
	a := newTestJWT(t)

	tests := []struct {
		name   string
		header string
		want   bool
	}{
		{"no header", "", false},
		{"bearer token", "Bearer abc", true},
		{"basic auth", "Basic abc", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := http.Header{}
			if tt.header != "" {
				h.Set("Authorization", tt.header)
			}
			if got := a.Supports(h); got != tt.want {
				t.Errorf("Supports() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestJWTAuthenticator_IssueRoundTrip(t *testing.T) {
	a := newTestJWT(t)

	token, err := a.Issue("abebe", workflow.OrgECTA, "inspector")
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}

	id, err := a.Authenticate(context.Background(), bearer(token))
	if err != nil {
		t.Fatalf("Authenticate() error = %v", err)
	}
	if id.Subject != "abebe" || id.Org != workflow.OrgECTA || id.Role != "inspector" {
		t.Errorf("identity = %+v", id)
	}
	if id.Method != AuthMethodJWT {
		t.Errorf("Method = %v, want jwt", id.Method)
	}
	if want := fixedNow().Add(time.Hour); !id.ExpiresAt.Equal(want) {
		t.Errorf("ExpiresAt = %v, want %v", id.ExpiresAt, want)
	}
}

func TestJWTAuthenticator_IssueUnknownOrg(t *testing.T) {
	a := newTestJWT(t)
	if _, err := a.Issue("x", "ExporterMSP", ""); !errors.Is(err, ErrUnknownOrg) {
		t.Errorf("Issue() error = %v, want ErrUnknownOrg", err)
	}
}

func TestJWTAuthenticator_OrganizationIDClaim(t *testing.T) {
	a := newTestJWT(t)
	token := sign(t, testSecret, jwt.SigningMethodHS256, orgClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "legacy",
			Issuer:    "ledgerops",
			Audience:  jwt.ClaimStrings{"consortium"},
			ExpiresAt: jwt.NewNumericDate(fixedNow().Add(time.Minute)),
		},
		OrganizationID: "commercial-bank",
	})

	id, err := a.Authenticate(context.Background(), bearer(token))
	if err != nil {
		t.Fatalf("Authenticate() error = %v", err)
	}
	if id.Org != workflow.OrgCommercialBank {
		t.Errorf("Org = %v, want commercial-bank", id.Org)
	}
}

func TestJWTAuthenticator_Rejects(t *testing.T) {
	a := newTestJWT(t)
	valid := jwt.RegisteredClaims{
		Subject:   "abebe",
		Issuer:    "ledgerops",
		Audience:  jwt.ClaimStrings{"consortium"},
		ExpiresAt: jwt.NewNumericDate(fixedNow().Add(time.Minute)),
	}

	expired := valid
	expired.ExpiresAt = jwt.NewNumericDate(fixedNow().Add(-time.Minute))
	noExpiry := valid
	noExpiry.ExpiresAt = nil
	wrongIssuer := valid
	wrongIssuer.Issuer = "someone-else"
	wrongAudience := valid
	wrongAudience.Audience = jwt.ClaimStrings{"other"}

	tests := []struct {
		name  string
		token string
		want  error
	}{
		{"expired", sign(t, testSecret, jwt.SigningMethodHS256, orgClaims{RegisteredClaims: expired, Organization: "ecx"}), ErrTokenExpired},
		{"no expiry", sign(t, testSecret, jwt.SigningMethodHS256, orgClaims{RegisteredClaims: noExpiry, Organization: "ecx"}), ErrInvalidCredentials},
		{"wrong secret", sign(t, []byte("other"), jwt.SigningMethodHS256, orgClaims{RegisteredClaims: valid, Organization: "ecx"}), ErrInvalidCredentials},
		{"wrong algorithm", sign(t, testSecret, jwt.SigningMethodHS512, orgClaims{RegisteredClaims: valid, Organization: "ecx"}), ErrInvalidCredentials},
		{"wrong issuer", sign(t, testSecret, jwt.SigningMethodHS256, orgClaims{RegisteredClaims: wrongIssuer, Organization: "ecx"}), ErrInvalidCredentials},
		{"wrong audience", sign(t, testSecret, jwt.SigningMethodHS256, orgClaims{RegisteredClaims: wrongAudience, Organization: "ecx"}), ErrInvalidCredentials},
		{"unknown org", sign(t, testSecret, jwt.SigningMethodHS256, orgClaims{RegisteredClaims: valid, Organization: "ExporterMSP"}), ErrUnknownOrg},
		{"missing org", sign(t, testSecret, jwt.SigningMethodHS256, orgClaims{RegisteredClaims: valid}), ErrUnknownOrg},
		{"malformed", "not-a-jwt", ErrTokenMalformed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, err := a.Authenticate(context.Background(), bearer(tt.token))
			if !errors.Is(err, tt.want) {
				t.Errorf("Authenticate() error = %v, want %v", err, tt.want)
			}
			if id != nil {
				t.Errorf("identity = %+v, want nil", id)
			}
		})
	}
}

func TestJWTAuthenticator_Leeway(t *testing.T) {
	a := newTestJWT(t, func(c *JWTConfig) { c.Leeway = 2 * time.Minute })
	token := sign(t, testSecret, jwt.SigningMethodHS256, orgClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "ledgerops",
			Audience:  jwt.ClaimStrings{"consortium"},
			ExpiresAt: jwt.NewNumericDate(fixedNow().Add(-time.Minute)),
		},
		Organization: "customs",
	})

	if _, err := a.Authenticate(context.Background(), bearer(token)); err != nil {
		t.Errorf("Authenticate() error = %v, want nil within leeway", err)
	}
}

func TestJWTAuthenticator_MissingToken(t *testing.T) {
	a := newTestJWT(t)
	h := http.Header{}
	h.Set("Authorization", "Bearer   ")
	if _, err := a.Authenticate(context.Background(), h); !errors.Is(err, ErrMissingCredentials) {
		t.Errorf("error = %v, want ErrMissingCredentials", err)
	}
}

func TestJWTAuthenticator_CanceledContext(t *testing.T) {
	a := newTestJWT(t)
	token, _ := a.Issue("abebe", workflow.OrgExporter, "")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := a.Authenticate(ctx, bearer(token)); !errors.Is(err, context.Canceled) {
		t.Errorf("error = %v, want context.Canceled", err)
	}
}
