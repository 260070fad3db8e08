package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadAndValidate(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "gatewise.yaml")

	os.Setenv("GATEWISE_AUTH_TOKEN", "secret")
	defer os.Unsetenv("GATEWISE_AUTH_TOKEN")

	data := `
listen_addr: ":8080"
typology_path: "./config/typologies.yaml"
role_path: "./config/roles.yaml"
auth:
  token: "${GATEWISE_AUTH_TOKEN}"
gates:
  large_amount_threshold: 5000000
  amount_tolerance_pct: 5
`
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Auth.Token != "secret" {
		t.Fatalf("expected expanded auth token")
	}
	if cfg.Gates.LargeAmountThreshold != 5_000_000 {
		t.Fatalf("unexpected threshold: %d", cfg.Gates.LargeAmountThreshold)
	}
	// omitted thresholds fall back to defaults
	if cfg.Gates.HighRiskThreshold != 70 || cfg.Gates.MinEvidencePct != 80 {
		t.Fatalf("expected defaults, got %+v", cfg.Gates)
	}
}

func TestValidateMissingFields(t *testing.T) {
	if err := (Config{}).Validate(); err == nil {
		t.Fatalf("expected error")
	}
}

func TestValidateDBRequiresDSN(t *testing.T) {
	cfg := Config{
		ListenAddr:   ":8080",
		TypologyPath: "config/typologies.yaml",
		RolePath:     "config/roles.yaml",
		DB:           DBConfig{Driver: "sqlite"},
	}
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected error")
	}
}

func TestValidateSigningKeyRequiresKeyID(t *testing.T) {
	cfg := Config{
		ListenAddr:   ":8080",
		TypologyPath: "config/typologies.yaml",
		RolePath:     "config/roles.yaml",
		SigningKey:   SigningKeyConfig{PrivateKeyPath: "key.bin"},
	}
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected error")
	}
}

func TestValidateTolerancePctBounds(t *testing.T) {
	cfg := Config{
		ListenAddr:   ":8080",
		TypologyPath: "config/typologies.yaml",
		RolePath:     "config/roles.yaml",
	}
	cfg.applyDefaults()
	cfg.Gates.AmountTolerancePct = 120
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected error")
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load("does-not-exist.yaml"); err == nil {
		t.Fatalf("expected error")
	}
}
