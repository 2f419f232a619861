package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	notifierhttp "github.com/retrade/authmesh/internal/notifier/http"
	"github.com/retrade/authmesh/internal/notifier/store/sqlite"
	"github.com/retrade/authmesh/pkg/authn"
	"github.com/retrade/authmesh/pkg/authsdk"
	"github.com/retrade/authmesh/pkg/identityrpc"
	"github.com/retrade/authmesh/pkg/identsync"
	"github.com/retrade/authmesh/pkg/jwtx"
	"github.com/retrade/authmesh/pkg/revocation"
	"github.com/retrade/authmesh/pkg/revocation/postgres"
	"github.com/retrade/authmesh/pkg/slogx"
)

// BuildVersion is overridden at build time via -ldflags.
var BuildVersion = "v0.1.0"

// Application is the notifier: a dependent service that verifies ACCESS
// tokens locally and keeps a synced identity cache.
type Application struct {
	cfg    Config
	logger *slog.Logger

	cache      *sqlite.Store
	keys       *jwtx.KeySet
	denylist   *postgres.Store
	revocation *revocation.Checker
	access     *authn.Verifier

	jwks     *JWKSRefresher
	identity *grpc.ClientConn
	sync     *identsync.Scheduler

	server *http.Server
}

func New(cfg Config) (*Application, error) {
	app := &Application{
		cfg: cfg,
		logger: slogx.New(slogx.Config{
			Service: "notifier",
			Version: BuildVersion,
			Env:     cfg.Env,
			Level:   cfg.LogLevel,
			Format:  cfg.LogFormat,
		}),
	}

	ctx := context.Background()
	steps := []func(context.Context) error{
		app.initCache,
		app.initKeys,
		app.initVerifier,
		app.initSync,
	}
	for _, step := range steps {
		if err := step(ctx); err != nil {
			app.closeAll()
			return nil, err
		}
	}
	app.initHTTP()

	return app, nil
}

func (app *Application) Run() error {
	if app.jwks != nil {
		app.jwks.Start()
	}
	if app.sync != nil {
		app.sync.Start()
	}

	app.logger.Info("notifier starting",
		"http_addr", app.cfg.HTTPAddr,
		"identity_addr", app.cfg.IdentityAddr,
		"version", BuildVersion,
	)

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- app.server.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		_ = app.Shutdown()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
	case sig := <-shutdown:
		app.logger.Info("shutdown signal received", "signal", sig)
		if err := app.Shutdown(); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
	}
	return nil
}

func (app *Application) Shutdown() error {
	app.logger.Info("shutting down notifier...")

	ctx, cancel := context.WithTimeout(context.Background(), app.cfg.ShutdownGracePeriod)
	defer cancel()

	if err := app.server.Shutdown(ctx); err != nil {
		app.logger.Error("graceful server shutdown failed", "error", err)
		_ = app.server.Close()
	}

	if app.sync != nil {
		app.sync.Stop()
	}
	if app.jwks != nil {
		app.jwks.Stop()
	}

	err := app.closeAll()
	app.logger.Info("notifier stopped")
	return err
}

func (app *Application) closeAll() error {
	var errs []error
	if app.identity != nil {
		errs = append(errs, app.identity.Close())
	}
	if app.denylist != nil {
		app.denylist.Close()
	}
	if app.cache != nil {
		errs = append(errs, app.cache.Close())
	}
	return errors.Join(errs...)
}

func (app *Application) initCache(context.Context) error {
	cache, err := sqlite.NewStore(app.cfg.DatabaseDSN)
	if err != nil {
		return fmt.Errorf("failed to open identity cache: %w", err)
	}
	app.cache = cache

	if err := cache.ApplyMigrations(); err != nil {
		return fmt.Errorf("failed to apply identity cache migrations: %w", err)
	}
	return nil
}

// initKeys loads the ACCESS verification keys: the shared secrets, or a
// first JWKS fetch that must succeed before the service takes traffic.
func (app *Application) initKeys(ctx context.Context) error {
	app.keys = jwtx.NewKeySet()

	if app.cfg.AuthURL == "" {
		// Oldest first so the newest ends up at the front.
		for i := len(app.cfg.secrets) - 1; i >= 0; i-- {
			if err := app.keys.AddSecret("", app.cfg.secrets[i]); err != nil {
				return fmt.Errorf("access secret: %w", err)
			}
		}
		app.logger.Info("verifying with shared secret", "keys", len(app.keys.KIDs()))
		return nil
	}

	app.jwks = NewJWKSRefresher(authsdk.NewSDKClient(app.cfg.AuthURL), app.keys, app.logger, app.cfg.JWKSRefresh)

	fetchCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := app.jwks.Refresh(fetchCtx); err != nil {
		return fmt.Errorf("initial jwks fetch from %s: %w", app.cfg.AuthURL, err)
	}
	app.logger.Info("verifying with auth service jwks", "auth_url", app.cfg.AuthURL, "keys", len(app.keys.KIDs()))
	return nil
}

func (app *Application) initVerifier(ctx context.Context) error {
	cfg := authn.Config{
		Kind: jwtx.KindAccess,
		Codec: jwtx.NewVerifyingCodec(app.keys, jwtx.CodecOptions{
			Issuer:   app.cfg.Issuer,
			Audience: app.cfg.Audience,
			Leeway:   app.cfg.Leeway,
		}),
	}

	if app.cfg.RevocationDSN != "" {
		store, err := postgres.New(ctx, postgres.Config{
			URL:          app.cfg.RevocationDSN,
			QueryTimeout: 2 * time.Second,
		})
		if err != nil {
			return fmt.Errorf("failed to connect to revocation store: %w", err)
		}
		app.denylist = store

		if err := store.ApplyMigrations(); err != nil {
			return fmt.Errorf("failed to apply revocation migrations: %w", err)
		}

		app.revocation = revocation.NewChecker(store, revocation.CheckerOptions{
			Policy:       app.cfg.policy,
			MaxStaleness: app.cfg.RevocationMaxStaleness,
		})
		cfg.Revocation = app.revocation
		app.logger.Info("revocation store connected", "policy", app.cfg.policy)
	} else {
		app.logger.Warn("no revocation store configured, revoked sessions stay valid until expiry")
	}

	access, err := authn.NewVerifier(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize access verifier: %w", err)
	}
	app.access = access
	return nil
}

func (app *Application) initSync(context.Context) error {
	if app.cfg.IdentityAddr == "" {
		app.logger.Warn("identity sync disabled, NOTIFIER_IDENTITY_ADDR is empty")
		return nil
	}

	opts := []grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}
	if app.cfg.IdentityToken != "" {
		opts = append(opts, grpc.WithPerRPCCredentials(authn.BearerCredentials{
			Token:    app.cfg.IdentityToken,
			Insecure: true,
		}))
	}

	conn, err := grpc.NewClient(app.cfg.IdentityAddr, opts...)
	if err != nil {
		return fmt.Errorf("failed to create identity client: %w", err)
	}
	app.identity = conn

	job := identsync.NewJob(app.cache, identityrpc.NewClient(conn), identsync.JobOptions{
		Concurrency: app.cfg.SyncConcurrency,
		ItemTimeout: app.cfg.SyncItemTimeout,
	})
	app.sync = identsync.NewScheduler(job, app.logger, app.cfg.SyncInterval)
	return nil
}

func (app *Application) initHTTP() {
	router := notifierhttp.NewRouter(app.access, app.keys, app.cache, BuildVersion, app.logger)
	if app.denylist != nil {
		router.Revocation = app.denylist
	}
	router.ApplyRoutes()

	app.server = &http.Server{
		Addr:              app.cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 3 * time.Second,
	}
}
