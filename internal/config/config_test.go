package config

import "testing"

func TestValidateRejectsShortSecret(t *testing.T) {
	cfg := &Config{
		DatabaseURL: "postgres://x",
		JWTSecret:   "short",
		Port:        4000,
		Limits:      LimitsConfig{PriceTick: 0.01, MaxPerOrderQuantity: 1, MaxOpenOrdersPerMarket: 1, MaxOpenOrdersPerUser: 1},
	}
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for short jwt secret")
	}
}

func TestValidateAcceptsDefaults(t *testing.T) {
	cfg := &Config{
		DatabaseURL: "postgres://x",
		JWTSecret:   "dev-secret-at-least-32-characters!!",
		Port:        4000,
		Limits:      LimitsConfig{PriceTick: 0.01, MaxPerOrderQuantity: 1, MaxOpenOrdersPerMarket: 1, MaxOpenOrdersPerUser: 1},
		Engine:      EngineConfig{StoreRetryLimit: 3},
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
}

func TestValidateRejectsBadPort(t *testing.T) {
	cfg := &Config{
		DatabaseURL: "postgres://x",
		JWTSecret:   "dev-secret-at-least-32-characters!!",
		Port:        0,
		Limits:      LimitsConfig{PriceTick: 0.01, MaxPerOrderQuantity: 1, MaxOpenOrdersPerMarket: 1, MaxOpenOrdersPerUser: 1},
	}
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for invalid port")
	}
}
