// Package config loads ledgerops settings from LEDGEROPS_* environment
// variables and maps them onto the resilience, cache, health and observe
// configuration types.
//
// String values may name secrets instead of holding them: a value of the
// form "secretref:<provider>:<ref>" is replaced by Resolver before use.
// The built-in providers are "env" (another variable) and "file" (the
// trimmed contents of a file, as mounted by container secret stores).
package config
