// Package vaultservice wires configuration, storage, sessions, blob storage
// and the HTTP API into a runnable service.
package vaultservice

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/dropspot/dropspot/internal/api"
	"github.com/dropspot/dropspot/internal/auth"
	"github.com/dropspot/dropspot/internal/blob"
	"github.com/dropspot/dropspot/internal/config"
	"github.com/dropspot/dropspot/internal/crypto"
	"github.com/dropspot/dropspot/internal/health"
	"github.com/dropspot/dropspot/internal/logger"
	"github.com/dropspot/dropspot/internal/services"
	"github.com/dropspot/dropspot/internal/session"
	"github.com/dropspot/dropspot/internal/store"
	"github.com/dropspot/dropspot/internal/store/postgres"
	"github.com/dropspot/dropspot/internal/store/sqlite"
)

// Run starts the vault service HTTP server and blocks until shutdown or error.
func Run() error {
	log := logger.New("vault-service")

	cfg, err := config.New()
	if err != nil {
		log.Error().Err(err).Msg("Failed to load configuration")
		return err
	}

	log.Info().
		Str("environment", string(cfg.Environment)).
		Str("db_driver", cfg.DBDriver).
		Int("http_port", cfg.HTTPPort).
		Str("identity_mode", cfg.IdentityMode).
		Msg("Vault service starting")

	ctx, stop := newServerContext()
	defer stop()

	st, blobs, sessions, err := initDependencies(ctx, cfg, log)
	if err != nil {
		return err
	}

	svcHealth := startHealthCheckers(ctx, cfg, log, st, blobs, sessions)

	router, err := buildRouter(cfg, st, blobs, sessions, svcHealth.IsHealthy)
	if err != nil {
		log.Error().Stack().Err(err).Msg("Failed to build router")
		return err
	}

	if err := waitUntilHealthy(ctx, cfg, svcHealth); err != nil {
		log.Error().Stack().Err(err).Msg("startup health check failed")
		return err
	}

	server := newHTTPServer(ctx, cfg, router)
	errCh := serveHTTP(server, log, cfg)

	select {
	case <-ctx.Done():
		log.Info().Msg("Shutting down server")
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(ctxShutdown); err != nil {
			log.Error().Stack().Err(err).Msg("Server forced to shutdown")
			return err
		}
		log.Info().Msg("Server exited")
		return nil
	case err := <-errCh:
		log.Error().Stack().Err(err).Msg("HTTP server failed")
		return err
	}
}

// initDependencies constructs the store, blob store and session store,
// failing fast on anything unavailable.
func initDependencies(ctx context.Context, cfg *config.Config, log zerolog.Logger) (store.Store, blob.Store, session.Store, error) {
	var st store.Store
	switch cfg.DBDriver {
	case "postgres":
		db, err := postgres.Open(cfg.PostgresDSN)
		if err != nil {
			log.Error().Stack().Err(err).Msg("postgres unavailable")
			return nil, nil, nil, err
		}
		if err := postgres.EnsureSchema(ctx, db); err != nil {
			log.Error().Stack().Err(err).Msg("postgres schema setup failed")
			return nil, nil, nil, err
		}
		st = postgres.NewWithDB(db)
	case "sqlite":
		db, err := sqlite.Open(cfg.SQLitePath)
		if err != nil {
			log.Error().Stack().Err(err).Msg("sqlite unavailable")
			return nil, nil, nil, err
		}
		st, err = sqlite.New(db)
		if err != nil {
			log.Error().Stack().Err(err).Msg("sqlite schema setup failed")
			return nil, nil, nil, err
		}
	default:
		return nil, nil, nil, fmt.Errorf("unsupported db driver %q", cfg.DBDriver)
	}

	blobs, err := blob.NewMinioStore(cfg.MinioEndpoint, cfg.MinioAccessKey, cfg.MinioSecretKey, cfg.MinioBucket, cfg.MinioUseSSL)
	if err != nil {
		log.Error().Stack().Err(err).Msg("blob store unavailable")
		return nil, nil, nil, err
	}

	sessions := session.NewRedisStore(cfg.RedisAddr, cfg.RedisPassword, time.Duration(cfg.SessionTTLMinutes)*time.Minute)
	return st, blobs, sessions, nil
}

// buildRouter wires services into the HTTP router.
func buildRouter(cfg *config.Config, st store.Store, blobs blob.Store, sessions session.Store, isHealthy func() bool) (http.Handler, error) {
	verifier, err := newVerifier(cfg)
	if err != nil {
		return nil, err
	}

	keyHex := cfg.PayloadKeyHex
	if keyHex == "" {
		if cfg.IsProduction() {
			return nil, fmt.Errorf("DROPSPOT_PAYLOAD_KEY is required in production")
		}
		keyHex, err = crypto.NewKeyHex()
		if err != nil {
			return nil, err
		}
	}
	cipher, err := crypto.NewCipher(keyHex)
	if err != nil {
		return nil, err
	}

	return api.NewRouter(api.Deps{
		Vaults:    services.NewVaultService(st, blobs, cfg.NearbyRadiusMeters, cfg.NearbyLimit),
		Invites:   services.NewInviteService(st),
		Members:   services.NewMemberService(st, verifier),
		Assets:    services.NewAssetService(st, blobs, cipher),
		Sessions:  sessions,
		IsHealthy: isHealthy,
	}), nil
}

func newVerifier(cfg *config.Config) (auth.Verifier, error) {
	switch cfg.IdentityMode {
	case "remote":
		return auth.NewRemoteVerifier(cfg.IdentityURL)
	default:
		secret := cfg.IdentitySecret
		if secret == "" {
			secret = "dev-secret"
		}
		return auth.NewJWTVerifier(secret)
	}
}

// startHealthCheckers starts component checkers and the service aggregator.
func startHealthCheckers(ctx context.Context, cfg *config.Config, log zerolog.Logger, st store.Store, blobs blob.Store, sessions session.Store) *health.ServiceHealthChecker {
	probeTimeout := time.Duration(cfg.HealthProbeTimeoutSeconds) * time.Second
	interval := time.Duration(cfg.HealthIntervalSeconds) * time.Second

	checkers := []health.Checker{
		health.NewPingChecker("store", st.Ping, log, probeTimeout),
		health.NewPingChecker("blobs", blobs.Ping, log, probeTimeout),
		health.NewPingChecker("sessions", sessions.Ping, log, probeTimeout),
	}
	for _, c := range checkers {
		go c.Start(ctx, interval)
	}

	svcHealth := health.NewServiceHealthChecker(log, checkers...)
	go svcHealth.Start(ctx, interval)
	return svcHealth
}

func newHTTPServer(ctx context.Context, cfg *config.Config, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              cfg.GetHTTPAddr(),
		Handler:           handler,
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
}

func serveHTTP(server *http.Server, log zerolog.Logger, cfg *config.Config) <-chan error {
	errCh := make(chan error, 1)
	go func() {
		log.Info().Int("port", cfg.HTTPPort).Msg("HTTP server starting")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()
	return errCh
}

// startupHealthTimeout is interval*2 with a minimum of 60 seconds, giving
// checkers time for their first probe cycle.
func startupHealthTimeout(healthIntervalSeconds int) int {
	timeout := healthIntervalSeconds * 2
	if timeout < 60 {
		return 60
	}
	return timeout
}

// waitUntilHealthy blocks until service health is up or the startup window
// expires.
func waitUntilHealthy(ctx context.Context, cfg *config.Config, svcHealth *health.ServiceHealthChecker) error {
	timeoutSeconds := startupHealthTimeout(cfg.HealthIntervalSeconds)
	deadline := time.Now().Add(time.Duration(timeoutSeconds) * time.Second)
	ticker := time.NewTicker(250 * time.Millisecond)
	defer ticker.Stop()
	for {
		if svcHealth.IsHealthy() {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("startup aborted: dependencies not healthy within %d seconds", timeoutSeconds)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// newServerContext returns a context cancelled on SIGINT/SIGTERM.
func newServerContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}
