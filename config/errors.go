package config

import "github.com/jonwraymond/ledgerops/fault"

var (
	// ErrInvalidConfig is wrapped by every Validate failure.
	ErrInvalidConfig = fault.New(fault.KindValidation, "config: invalid configuration")

	// ErrUnknownProvider is returned for a secret reference naming an
	// unregistered provider.
	ErrUnknownProvider = fault.New(fault.KindValidation, "config: secret provider is not registered")

	// ErrSecretNotFound is returned when a provider has no value for a
	// reference.
	ErrSecretNotFound = fault.New(fault.KindFatal, "config: secret not found")

	// ErrMissingEnv is returned when ${VAR} expansion names an unset variable.
	ErrMissingEnv = fault.New(fault.KindValidation, "config: missing required environment variables")
)
