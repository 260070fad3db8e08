package main

import (
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/gatewise/gatewise/internal/api"
	"github.com/gatewise/gatewise/internal/auth"
	"github.com/gatewise/gatewise/internal/checklist"
	"github.com/gatewise/gatewise/internal/config"
	"github.com/gatewise/gatewise/internal/crypto"
	"github.com/gatewise/gatewise/internal/ledger"
	"github.com/gatewise/gatewise/internal/ledger/sqlstore"
	"github.com/gatewise/gatewise/internal/rolereq"
)

func main() {
	if err := runFn(os.Args[1:], os.Getenv, listenAndServe, newServer); err != nil {
		fatalf("server error: %v", err)
	}
}

var runFn = run
var fatalf = log.Fatalf

func newServer(cfg config.Config) (*http.Server, error) {
	checklists, err := checklist.Load(cfg.TypologyPath)
	if err != nil {
		return nil, fmt.Errorf("load typologies: %w", err)
	}
	roles, err := rolereq.Load(cfg.RolePath)
	if err != nil {
		return nil, fmt.Errorf("load roles: %w", err)
	}

	var store ledger.Store
	switch cfg.DB.Driver {
	case "", "memory":
		store = ledger.NewInMemoryStore()
	case "sqlite":
		sqlStore, err := sqlstore.OpenSQLite(cfg.DB.DSN)
		if err != nil {
			return nil, fmt.Errorf("open sqlite: %w", err)
		}
		if err := sqlStore.ApplySchema(); err != nil {
			return nil, fmt.Errorf("apply schema: %w", err)
		}
		store = sqlStore
	default:
		return nil, fmt.Errorf("unsupported db driver: %s", cfg.DB.Driver)
	}

	svc := api.NewService(store, nil, nil, cfg.Gates, checklists, roles)
	if cfg.SigningKey.PrivateKeyPath != "" {
		priv, pub, err := crypto.LoadEd25519Key(cfg.SigningKey.PrivateKeyPath)
		if err != nil {
			return nil, fmt.Errorf("load signing key: %w", err)
		}
		svc.Signer = api.KeySigner{ID: cfg.SigningKey.KeyID, Key: priv}
		svc.PublicKey = pub
	}

	h := api.NewHandler(&auth.StaticAuthenticator{Token: cfg.Auth.Token}, svc)
	return &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           api.NewRouter(h),
		ReadHeaderTimeout: 5 * time.Second,
	}, nil
}

type envFn func(string) string
type listenFn func(*http.Server) error
type serverFactory func(cfg config.Config) (*http.Server, error)

func run(args []string, getenv envFn, listen listenFn, factory serverFactory) error {
	fs := flag.NewFlagSet("gatewise-gateway", flag.ContinueOnError)
	configPath := fs.String("config", "", "path to gatewise config file")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfgFile := *configPath
	if cfgFile == "" {
		cfgFile = getenv("GATEWISE_CONFIG_PATH")
	}
	if cfgFile == "" {
		cfgFile = "config/gatewise.yaml"
	}

	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}
	if addr := getenv("GATEWISE_LISTEN_ADDR"); addr != "" {
		cfg.ListenAddr = addr
	}
	if token := getenv("GATEWISE_AUTH_TOKEN"); token != "" {
		cfg.Auth.Token = token
	}

	server, err := factory(cfg)
	if err != nil {
		return err
	}

	log.Printf("gatewise-gateway listening on %s", cfg.ListenAddr)
	if err := listen(server); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func listenAndServe(server *http.Server) error {
	return server.ListenAndServe()
}
