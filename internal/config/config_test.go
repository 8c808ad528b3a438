package config

import "testing"

func TestLoadDoesNotInjectWeakAuthDefaults(t *testing.T) {
	t.Setenv("AUTH_SECRET", "")
	t.Setenv("MANAGER_PIN", "")

	cfg := Load()
	if cfg.AuthSecret != "" {
		t.Fatalf("expected empty AUTH_SECRET when unset, got %q", cfg.AuthSecret)
	}
	if cfg.ManagerPIN != "" {
		t.Fatalf("expected empty MANAGER_PIN when unset, got %q", cfg.ManagerPIN)
	}
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("TAX_PERCENT", "")
	t.Setenv("NEAR_EXPIRY_DAYS", "")
	t.Setenv("ALERT_TTL_SECONDS", "")

	cfg := Load()
	if cfg.TaxPercent != 16 {
		t.Fatalf("expected default tax percent 16, got %v", cfg.TaxPercent)
	}
	if cfg.NearExpiryDays != 90 {
		t.Fatalf("expected default near-expiry window 90 days, got %d", cfg.NearExpiryDays)
	}
	if cfg.AlertTTLSeconds != 60 {
		t.Fatalf("expected default alert cache TTL 60s, got %d", cfg.AlertTTLSeconds)
	}
}

func TestLoadRejectsOutOfRangeTaxPercent(t *testing.T) {
	t.Setenv("TAX_PERCENT", "250")

	cfg := Load()
	if cfg.TaxPercent != 16 {
		t.Fatalf("expected out-of-range tax percent to fall back to 16, got %v", cfg.TaxPercent)
	}
}
