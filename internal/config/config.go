package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/gatewise/gatewise/internal/gate"
)

type Config struct {
	ListenAddr   string           `yaml:"listen_addr"`
	DB           DBConfig         `yaml:"db"`
	TypologyPath string           `yaml:"typology_path"`
	RolePath     string           `yaml:"role_path"`
	Auth         AuthConfig       `yaml:"auth"`
	SigningKey   SigningKeyConfig `yaml:"signing_key"`
	Gates        gate.Config      `yaml:"gates"`
}

type DBConfig struct {
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
}

type AuthConfig struct {
	Token string `yaml:"token"`
}

type SigningKeyConfig struct {
	KeyID          string `yaml:"key_id"`
	PrivateKeyPath string `yaml:"private_key_path"`
}

func Load(path string) (Config, error) {
	// #nosec G304 -- path is operator-provided config path.
	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}

	expanded := os.ExpandEnv(string(raw))
	expanded = strings.ReplaceAll(expanded, "\r\n", "\n")

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return Config{}, err
	}
	cfg.applyDefaults()
	return cfg, cfg.Validate()
}

func (c *Config) applyDefaults() {
	if c.Gates.LargeAmountThreshold == 0 {
		c.Gates.LargeAmountThreshold = 5_000_000
	}
	if c.Gates.HighRiskThreshold == 0 {
		c.Gates.HighRiskThreshold = 70
	}
	if c.Gates.MinEvidencePct == 0 {
		c.Gates.MinEvidencePct = 80
	}
	if c.Gates.AmountTolerancePct == 0 {
		c.Gates.AmountTolerancePct = 5
	}
}

func (c Config) Validate() error {
	if c.ListenAddr == "" {
		return fmt.Errorf("listen_addr is required")
	}
	if c.TypologyPath == "" {
		return fmt.Errorf("typology_path is required")
	}
	if c.RolePath == "" {
		return fmt.Errorf("role_path is required")
	}

	if c.DB.Driver != "" && c.DB.DSN == "" {
		return fmt.Errorf("db.dsn is required when db.driver is set")
	}
	if c.SigningKey.PrivateKeyPath != "" && c.SigningKey.KeyID == "" {
		return fmt.Errorf("signing_key.key_id is required when a private key is configured")
	}

	if c.Gates.AmountTolerancePct < 0 || c.Gates.AmountTolerancePct > 100 {
		return fmt.Errorf("gates.amount_tolerance_pct must be between 0 and 100")
	}
	if c.Gates.MinEvidencePct < 0 || c.Gates.MinEvidencePct > 100 {
		return fmt.Errorf("gates.min_evidence_pct must be between 0 and 100")
	}

	return nil
}
