package config

import (
	"errors"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	for _, k := range []string{"ORDERS_TABLE", "PRODUCTS_TABLE", "IDEMPOTENCY_TABLE", "RUN_LOCAL", "TX_TIMEOUT", "IDEMPOTENCY_TTL", "RAZORPAY_KEY_SECRET"} {
		t.Setenv(k, "")
	}

	cfg := Load()
	if cfg.OrdersTable != "orders" || cfg.ProductsTable != "products" || cfg.IdempotencyTable != "idempotency" {
		t.Fatalf("unexpected table defaults: %+v", cfg)
	}
	if cfg.RunLocal {
		t.Fatalf("RunLocal should default to false")
	}
	if cfg.TxTimeout != 10*time.Second {
		t.Fatalf("unexpected tx timeout %s", cfg.TxTimeout)
	}
	if !errors.Is(cfg.Validate(), ErrMissingSecret) {
		t.Fatalf("expected ErrMissingSecret without a secret")
	}
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("RUN_LOCAL", "true")
	t.Setenv("TX_TIMEOUT", "3s")
	t.Setenv("IDEMPOTENCY_TTL", "not-a-duration")
	t.Setenv("RAZORPAY_KEY_SECRET", "s3cret")

	cfg := Load()
	if !cfg.RunLocal {
		t.Fatalf("expected RunLocal=true")
	}
	if cfg.TxTimeout != 3*time.Second {
		t.Fatalf("expected 3s, got %s", cfg.TxTimeout)
	}
	if cfg.IdempotencyTTL != 7*24*time.Hour {
		t.Fatalf("invalid duration should fall back to default, got %s", cfg.IdempotencyTTL)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("unexpected validate error: %v", err)
	}
}
