package main

import (
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"github.com/gatewise/gatewise/internal/config"
)

func writeTestConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "gatewise.yaml")
	data := `
listen_addr: ":9090"
typology_path: "config/typologies.yaml"
role_path: "config/roles.yaml"
db:
  driver: "memory"
`
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestRunLoadsConfigAndListens(t *testing.T) {
	path := writeTestConfig(t)

	var gotCfg config.Config
	listened := false

	err := run(
		[]string{"-config", path},
		func(string) string { return "" },
		func(*http.Server) error { listened = true; return nil },
		func(cfg config.Config) (*http.Server, error) {
			gotCfg = cfg
			return &http.Server{Addr: cfg.ListenAddr}, nil
		},
	)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if !listened {
		t.Fatalf("expected server to listen")
	}
	if gotCfg.ListenAddr != ":9090" || gotCfg.DB.Driver != "memory" {
		t.Fatalf("unexpected config: %+v", gotCfg)
	}
	// defaults applied for omitted gate thresholds
	if gotCfg.Gates.LargeAmountThreshold != 5_000_000 {
		t.Fatalf("expected default threshold, got %d", gotCfg.Gates.LargeAmountThreshold)
	}
}

func TestRunEnvOverrides(t *testing.T) {
	path := writeTestConfig(t)

	env := map[string]string{
		"GATEWISE_LISTEN_ADDR": ":7070",
		"GATEWISE_AUTH_TOKEN":  "from-env",
	}

	var gotCfg config.Config
	err := run(
		[]string{"-config", path},
		func(key string) string { return env[key] },
		func(*http.Server) error { return nil },
		func(cfg config.Config) (*http.Server, error) {
			gotCfg = cfg
			return &http.Server{Addr: cfg.ListenAddr}, nil
		},
	)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if gotCfg.ListenAddr != ":7070" || gotCfg.Auth.Token != "from-env" {
		t.Fatalf("env overrides not applied: %+v", gotCfg)
	}
}

func TestRunMissingConfig(t *testing.T) {
	err := run(
		[]string{"-config", "does-not-exist.yaml"},
		func(string) string { return "" },
		func(*http.Server) error { return nil },
		func(cfg config.Config) (*http.Server, error) { return nil, nil },
	)
	if err == nil {
		t.Fatalf("expected error for missing config")
	}
}

func TestServerClosedIsNotAnError(t *testing.T) {
	path := writeTestConfig(t)

	err := run(
		[]string{"-config", path},
		func(string) string { return "" },
		func(*http.Server) error { return http.ErrServerClosed },
		func(cfg config.Config) (*http.Server, error) {
			return &http.Server{Addr: cfg.ListenAddr}, nil
		},
	)
	if err != nil {
		t.Fatalf("expected graceful shutdown, got %v", err)
	}
}
