package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/retrade/authmesh/internal/auth/domain"
	httpapi "github.com/retrade/authmesh/internal/auth/http"
	"github.com/retrade/authmesh/internal/auth/service"
	"github.com/retrade/authmesh/internal/auth/store"
	"github.com/retrade/authmesh/internal/auth/store/drivers/sqlite"
	"github.com/retrade/authmesh/pkg/authn"
	"github.com/retrade/authmesh/pkg/cryptox"
	"github.com/retrade/authmesh/pkg/httpx"
	"github.com/retrade/authmesh/pkg/identityrpc"
	"github.com/retrade/authmesh/pkg/jwtx"
	"github.com/retrade/authmesh/pkg/revocation"
	"github.com/retrade/authmesh/pkg/revocation/postgres"
	"github.com/retrade/authmesh/pkg/slogx"
	"github.com/retrade/authmesh/pkg/tokens"
)

// BuildVersion is overridden at build time via -ldflags.
var BuildVersion = "v0.1.0"

// Application encapsulates the auth service application with all its dependencies
type Application struct {
	cfg    Config
	logger *slog.Logger

	// Core dependencies
	db         store.Store
	keys       map[jwtx.Kind]*jwtx.KeyManager
	codecs     map[jwtx.Kind]*jwtx.Codec
	denylist   *postgres.Store // nil unless AUTH_REVOCATION_DSN is set
	revocation *revocation.Checker
	issuer     *tokens.Issuer
	access     *authn.Verifier

	// Services
	accountService      *service.AccountService
	sessionService      *service.SessionService
	mfaService          *service.MFAService
	bootstrapService    *service.BootstrapService
	housekeepingService *service.HousekeepingService
	keyRotationService  *service.KeyRotationService

	// Servers
	server     *http.Server
	router     *httpapi.Router
	grpcServer *grpc.Server
}

// New creates a new Application instance with all dependencies initialized
func New(cfg Config) (*Application, error) {
	app := &Application{
		cfg: cfg,
		logger: slogx.New(slogx.Config{
			Service: "auth-service",
			Version: BuildVersion,
			Env:     cfg.Env,
			Level:   cfg.LogLevel,
			Format:  cfg.LogFormat,
		}),
	}

	if app.cfg.PepperPath != "" {
		if err := cryptox.LoadPepper(app.cfg.PepperPath); err != nil {
			return nil, fmt.Errorf("failed to load pepper: %w", err)
		}
	}

	// Database first; persistent keys live in it
	if err := app.initDatabase(); err != nil {
		return nil, err
	}

	ctx := context.Background()
	keys, err := InitKeys(ctx, app.cfg, app.db, app.logger)
	if err != nil {
		app.closeStores()
		return nil, fmt.Errorf("failed to initialize signing keys: %w", err)
	}
	app.keys = keys

	denylist, err := app.initRevocation(ctx)
	if err != nil {
		app.closeStores()
		return nil, err
	}
	if err := app.initServices(denylist); err != nil {
		app.closeStores()
		return nil, err
	}
	if err := app.bootstrap(ctx); err != nil {
		app.closeStores()
		return nil, err
	}

	app.initHTTP()
	app.initGRPC()

	return app, nil
}

// Run starts the application and blocks until shutdown is requested
func (app *Application) Run() error {
	app.housekeepingService.Start()

	app.logger.Info("auth service starting",
		"http_addr", app.cfg.HTTPAddr,
		"grpc_addr", app.cfg.GRPCAddr,
		"key_mode", app.cfg.KeyMode,
		"version", BuildVersion,
	)

	serverErrors := make(chan error, 2)
	go func() {
		serverErrors <- app.server.ListenAndServe()
	}()

	lis, err := net.Listen("tcp", app.cfg.GRPCAddr)
	if err != nil {
		_ = app.Shutdown()
		return fmt.Errorf("listen grpc: %w", err)
	}
	go func() {
		serverErrors <- app.grpcServer.Serve(lis)
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

// Shutdown gracefully shuts down the application
func (app *Application) Shutdown() error {
	app.logger.Info("shutting down auth service...")

	ctx, cancel := context.WithTimeout(context.Background(), app.cfg.ShutdownGracePeriod)
	defer cancel()

	if err := app.server.Shutdown(ctx); err != nil {
		app.logger.Error("graceful server shutdown failed", "error", err)
		if err := app.server.Close(); err != nil {
			app.logger.Error("error closing server", "error", err)
		}
	}

	stopped := make(chan struct{})
	go func() {
		app.grpcServer.GracefulStop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-ctx.Done():
		app.grpcServer.Stop()
	}

	app.housekeepingService.Stop()

	if err := app.closeStores(); err != nil {
		app.logger.Error("error closing database", "error", err)
		return err
	}

	app.logger.Info("auth service stopped")
	return nil
}

// initDatabase initializes the database and applies migrations
func (app *Application) initDatabase() error {
	db, err := sqlite.NewStore(app.cfg.DatabaseDSN)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	app.db = db

	if err := db.ApplyMigrations(); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to apply database migrations: %w", err)
	}

	app.logger.Info("database migrations applied successfully")
	return nil
}

func (app *Application) closeStores() error {
	if app.denylist != nil {
		app.denylist.Close()
	}
	return app.db.Close()
}

// initRevocation picks the denylist. With AUTH_REVOCATION_DSN it is the
// PostgreSQL store dependent services read, so a logout here reaches them.
func (app *Application) initRevocation(ctx context.Context) (revocation.Store, error) {
	if app.cfg.RevocationDSN == "" {
		app.logger.Warn("no shared revocation store configured, revocations stay local to the auth service")
		return app.db.RevokedSessions(), nil
	}

	denylist, err := postgres.New(ctx, postgres.Config{
		URL:          app.cfg.RevocationDSN,
		QueryTimeout: 2 * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to revocation store: %w", err)
	}
	app.denylist = denylist

	if err := denylist.ApplyMigrations(); err != nil {
		return nil, fmt.Errorf("failed to apply revocation migrations: %w", err)
	}
	app.logger.Info("shared revocation store connected", "policy", app.cfg.policy)
	return denylist, nil
}

// initServices builds the codecs, the issuer and the business services over
// the chosen denylist.
func (app *Application) initServices(denylist revocation.Store) error {
	app.codecs = make(map[jwtx.Kind]*jwtx.Codec, len(app.keys))
	for kind, km := range app.keys {
		app.codecs[kind] = jwtx.NewCodec(km, jwtx.CodecOptions{
			Issuer:   app.cfg.Issuer,
			Audience: app.cfg.Audience,
			Leeway:   app.cfg.Leeway,
		})
	}

	app.revocation = revocation.NewChecker(denylist, revocation.CheckerOptions{
		Policy:       app.cfg.policy,
		MaxStaleness: app.cfg.RevocationMaxStaleness,
	})

	app.mfaService = &service.MFAService{Store: app.db, Issuer: app.cfg.Issuer}

	issuer, err := tokens.NewIssuer(tokens.Config{
		Access:       app.codecs[jwtx.KindAccess],
		Refresh:      app.codecs[jwtx.KindRefresh],
		TwoFactor:    app.codecs[jwtx.KindTwoFactorPending],
		AccessTTL:    app.cfg.AccessTTL,
		RefreshTTL:   app.cfg.RefreshTTL,
		TwoFactorTTL: app.cfg.TwoFactorTTL,
		Revocation:   app.revocation,
		Proof:        app.mfaService,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize token issuer: %w", err)
	}
	app.issuer = issuer

	app.access, err = authn.NewVerifier(authn.Config{
		Kind:       jwtx.KindAccess,
		Codec:      app.codecs[jwtx.KindAccess],
		Revocation: app.revocation,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize access verifier: %w", err)
	}

	app.sessionService = &service.SessionService{
		Store:      app.db,
		Tokens:     app.issuer,
		Revocation: app.revocation,
	}
	app.mfaService.Sessions = app.sessionService
	app.accountService = &service.AccountService{Store: app.db, Sessions: app.sessionService}
	app.bootstrapService = &service.BootstrapService{Store: app.db, Accounts: app.accountService}

	app.housekeepingService = service.NewHousekeepingService(
		app.db,
		app.revocation,
		app.logger,
		app.cfg.HousekeepingInterval,
		app.cfg.SessionRetention,
	)

	// Rotation is available in ephemeral and persistent modes; without a
	// store, rotated keys only live in memory.
	app.keyRotationService = &service.KeyRotationService{
		KeyManager:  app.keys[jwtx.KindAccess],
		Scope:       jwtx.KindAccess,
		RSABits:     app.cfg.RSABits,
		GracePeriod: app.cfg.KeyGracePeriod,
	}
	if app.cfg.KeyMode == KeyModePersistent {
		app.keyRotationService.Store = app.db
	}

	return nil
}

// bootstrap creates the first ADMIN account when configured and the
// database is empty.
func (app *Application) bootstrap(ctx context.Context) error {
	if app.cfg.BootstrapUsername == "" {
		return nil
	}

	password, generated := app.cfg.BootstrapPassword, false
	if password == "" {
		var err error
		if password, err = cryptox.GeneratePassword(); err != nil {
			return fmt.Errorf("generate bootstrap password: %w", err)
		}
		generated = true
	}

	account, err := app.bootstrapService.Bootstrap(ctx, domain.BootstrapData{
		AdminUsername: app.cfg.BootstrapUsername,
		AdminPassword: password,
	})
	switch {
	case errors.Is(err, service.ErrBootstrapAlready):
		app.logger.Info("bootstrap skipped, accounts already exist")
		return nil
	case err != nil:
		return fmt.Errorf("bootstrap admin account: %w", err)
	}

	app.logger.Info("bootstrap admin account created", "account_id", account.ID, "username", account.Username)
	if generated {
		// Kept out of the structured log, which redacts credentials.
		fmt.Fprintf(os.Stderr, "bootstrap admin password for %q: %s\n", account.Username, password)
		app.logger.Warn("bootstrap admin password generated and printed to stderr, change it after first login")
	}
	return nil
}

// initHTTP initializes the HTTP router and server
func (app *Application) initHTTP() {
	keySets := make(map[jwtx.Kind]*jwtx.KeySet, len(app.keys))
	for kind, km := range app.keys {
		keySets[kind] = km.KeySet
	}

	cookies := httpx.CookieConfig{
		Names:  authn.DefaultCookieNames,
		Domain: app.cfg.CookieDomain,
		Secure: app.cfg.CookieSecure,
	}

	router := httpapi.NewRouter(
		app.access,
		keySets,
		cookies,
		BuildVersion,
		app.db,
		app.logger,
	)

	router.Accounts = app.accountService
	router.Sessions = app.sessionService
	router.MFAService = app.mfaService
	router.KeyRotationService = app.keyRotationService
	if app.denylist != nil {
		router.Revocation = app.denylist
	}
	router.ApplyRoutes()

	app.router = router

	app.server = &http.Server{
		Addr:              app.cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 3 * time.Second,
	}
}

// initGRPC exposes the identity directory to dependent services.
func (app *Application) initGRPC() {
	public := map[string]bool{
		healthpb.Health_Check_FullMethodName: true,
		healthpb.Health_Watch_FullMethodName: true,
	}
	if !app.cfg.GRPCRequireAuth {
		public[identityrpc.LookupAccountMethod] = true
	}

	app.grpcServer = grpc.NewServer(
		grpc.ChainUnaryInterceptor(authn.UnaryServerInterceptor(app.access, public)),
		grpc.ChainStreamInterceptor(authn.StreamServerInterceptor(app.access, public)),
	)
	identityrpc.RegisterServer(app.grpcServer, app.accountService)

	hs := health.NewServer()
	hs.SetServingStatus(identityrpc.ServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(app.grpcServer, hs)
}
