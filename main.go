package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gluk-w/sshdeck/internal/appconfig"
	"github.com/gluk-w/sshdeck/internal/config"
	"github.com/gluk-w/sshdeck/internal/database"
	"github.com/gluk-w/sshdeck/internal/handlers"
	"github.com/gluk-w/sshdeck/internal/logging"
	"github.com/gluk-w/sshdeck/internal/middleware"
	"github.com/gluk-w/sshdeck/internal/sessionstore"
	"github.com/gluk-w/sshdeck/internal/sshaudit"
	"github.com/gluk-w/sshdeck/internal/sshkeys"
	"github.com/gluk-w/sshdeck/internal/sshmanager"
	"github.com/gluk-w/sshdeck/internal/vault"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/robfig/cron/v3"
	"github.com/spf13/pflag"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "0.1.0"

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	var (
		listen      = pflag.String("listen", "", "API listen address (overrides SSHDECK_LISTEN_ADDR)")
		dataDir     = pflag.String("data-dir", "", "Data directory (overrides SSHDECK_DATA_PATH)")
		showVersion = pflag.Bool("version", false, "Print the version and exit")
	)
	pflag.CommandLine.SortFlags = false
	pflag.Parse()

	if *showVersion {
		fmt.Println(version)
		return nil
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if *dataDir != "" {
		if err := cfg.SetDataPath(*dataDir); err != nil {
			return err
		}
	}
	if *listen != "" {
		cfg.ListenAddr = *listen
	}
	allowed, err := middleware.ParseAllowedIPs(cfg.AllowedIPs)
	if err != nil {
		return fmt.Errorf("invalid SSHDECK_ALLOWED_IPS: %w", err)
	}

	logger := logging.Init(cfg.LogPath)
	defer logger.Close()
	log.Printf("sshdeck %s starting (data=%s)", version, cfg.DataPath)

	db, err := database.Open(cfg.DatabasePath)
	if err != nil {
		return fmt.Errorf("database init: %w", err)
	}
	defer database.Close(db)

	keyStore, backend, err := vault.NewStores(cfg.VaultBackend, vault.StoreOptions{
		DataDir:        cfg.DataPath,
		KeyringService: cfg.KeyringService,
		DB:             db,
	})
	if err != nil {
		return fmt.Errorf("vault init: %w", err)
	}
	v, err := vault.Open(keyStore, backend)
	if err != nil {
		return fmt.Errorf("vault init: %w", err)
	}
	log.Printf("Vault ready (backend=%s)", cfg.VaultBackend)

	prefs, err := appconfig.Load(cfg.AppConfigPath())
	if err != nil {
		return err
	}

	hostKeys, err := sshmanager.NewHostKeyVerifier(cfg.KnownHostsPath, hostKeyPolicy(prefs.Get()))
	if err != nil {
		return fmt.Errorf("host key verifier: %w", err)
	}
	prefs.OnChange(func(c appconfig.AppConfig) {
		hostKeys.SetPolicy(hostKeyPolicy(c))
	})

	registry := sshmanager.NewRegistry(sshmanager.Options{
		ConnectTimeout: cfg.ConnectTimeout,
		HostKeys:       hostKeys,
		RateLimit: &sshmanager.RateLimitConfig{
			MaxAttemptsPerMinute: cfg.MaxAttemptsPerMinute,
			MaxConsecFailures:    cfg.MaxConsecFailures,
			BlockDuration:        cfg.FailureBlockDuration,
		},
	})

	auditor := sshaudit.NewAuditor(db, cfg.AuditRetentionDays)
	registry.Events().OnEvent(auditor.RecordConnectionEvent)

	scheduler := cron.New()
	if _, err := auditor.SchedulePurge(scheduler, cfg.AuditPurgeSchedule); err != nil {
		return err
	}
	scheduler.Start()
	defer scheduler.Stop()

	api := &handlers.API{
		Registry: registry,
		Vault:    v,
		Sessions: sessionstore.New(cfg.SessionsPath()),
		Keys:     sshkeys.NewStore(v),
		Auditor:  auditor,
		Config:   prefs,
		Logger:   logger,
		DB:       db,
		Version:  version,
	}

	if cfg.APIToken == "" {
		log.Printf("WARNING: SSHDECK_API_TOKEN is not set; the API is unauthenticated")
	}

	r := chi.NewRouter()
	r.Use(chimw.Logger)
	r.Use(chimw.Recoverer)
	r.Use(middleware.AllowIPs(allowed))
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.RequireToken(cfg.APIToken))
		api.Routes(r)
	})

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	sigCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	serveErr := make(chan error, 1)
	go func() {
		log.Printf("Server starting on %s", cfg.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-sigCtx.Done():
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}
	log.Println("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP shutdown: %v", err)
	}
	if err := registry.CloseAll(shutdownCtx); err != nil {
		log.Printf("SSH shutdown: %v", err)
	}
	log.Println("Server stopped")
	return nil
}

func hostKeyPolicy(c appconfig.AppConfig) sshmanager.HostKeyPolicy {
	return sshmanager.HostKeyPolicy{
		Verify: c.Security.VerifyHostKeys,
		Strict: c.Security.StrictHostKeyChecking,
	}
}
