package config_test

import (
	"fmt"

	"github.com/jonwraymond/ledgerops/config"
)

func ExampleParseEnvFrom() {
	var cfg config.Config
	err := config.ParseEnvFrom(&cfg, map[string]string{
		"LEDGEROPS_BREAKER_FAILURE_THRESHOLD": "3",
		"LEDGEROPS_CACHE_TTL":                 "10s",
	})
	if err != nil {
		fmt.Println(err)
		return
	}
	if err := cfg.Validate(); err != nil {
		fmt.Println(err)
		return
	}

	cb := cfg.CircuitBreakerConfig()
	fmt.Println(cb.Name, cb.FailureThreshold, cb.Cooldown)
	fmt.Println(cfg.CachePolicy().EffectiveTTL("GetRecord"))
	// Output:
	// ledger 3 1m0s
	// 10s
}

func ExampleParseSecretRef() {
	provider, ref, ok := config.ParseSecretRef("secretref:file:/run/secrets/ledger-dsn")
	fmt.Println(provider, ref, ok)
	// Output: file /run/secrets/ledger-dsn true
}
