// Package server wires the vault engine together: it opens PostgreSQL,
// applies migrations, selects the archive store, builds the services and
// runs the gRPC endpoint until a termination signal arrives.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/dmitrijs2005/gophvault/internal/logging"
	"github.com/dmitrijs2005/gophvault/internal/server/archivestore"
	"github.com/dmitrijs2005/gophvault/internal/server/breach"
	"github.com/dmitrijs2005/gophvault/internal/server/config"
	"github.com/dmitrijs2005/gophvault/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/gophvault/internal/server/services"

	gs "github.com/dmitrijs2005/gophvault/internal/server/grpc"
)

type App struct {
	config   *config.Config
	logger   logging.Logger
	db       *sql.DB
	closers  []func() error
	services gs.Services
}

func NewApp(c *config.Config) (*App, error) {
	logger, err := logging.New(os.Stdout, c.LogLevel)
	if err != nil {
		return nil, err
	}

	ctx := context.Background()

	db, err := sql.Open("pgx", c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db open error: %w", err)
	}

	rm := repomanager.NewPostgresRepositoryManager()
	if err := rm.RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migration error: %w", err)
	}

	app, err := newApp(ctx, c, db, rm, logger)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	app.closers = append(app.closers, db.Close)
	return app, nil
}

// newApp builds the services on top of an open database.
func newApp(ctx context.Context, c *config.Config, db *sql.DB, rm repomanager.RepositoryManager, logger logging.Logger) (*App, error) {
	store, closer, err := openArchiveStore(ctx, c)
	if err != nil {
		return nil, fmt.Errorf("archive store init error: %w", err)
	}

	kdf := c.KDFParams()

	credentials := services.NewCredentialService(db, rm, kdf, logger)
	ledger := services.NewVersionLedger(db, rm, credentials, kdf, logger)
	backup := services.NewBackupService(db, rm, credentials, store, kdf, logger)
	twoFactor := services.NewTwoFactorService(db, rm, kdf, services.TOTPConfig{
		Issuer:         c.TOTPIssuer,
		Window:         c.TOTPWindow,
		FallbackWindow: c.TOTPFallbackWindow,
	}, logger)
	checker := breach.NewChecker(breach.Config{
		BaseURL:   c.BreachAPIURL,
		UserAgent: c.BreachUserAgent,
		CacheTTL:  c.BreachCacheTTL,
		CacheSize: c.BreachCacheSize,
		Timeout:   c.BreachTimeout,
	}, logger)

	app := &App{
		config: c,
		logger: logger,
		db:     db,
		services: gs.Services{
			Credentials: credentials,
			Ledger:      ledger,
			Backup:      backup,
			TwoFactor:   twoFactor,
			Breach:      checker,
		},
	}
	if closer != nil {
		app.closers = append(app.closers, closer)
	}
	return app, nil
}

// openArchiveStore returns nil with no error when export is disabled.
func openArchiveStore(ctx context.Context, c *config.Config) (archivestore.Store, func() error, error) {
	switch c.ArchiveStore {
	case config.ArchiveStoreNone:
		return nil, nil, nil
	case config.ArchiveStoreBolt:
		s, err := archivestore.NewBoltStore(c.BoltPath)
		if err != nil {
			return nil, nil, err
		}
		return s, s.Close, nil
	case config.ArchiveStoreS3:
		s, err := archivestore.NewS3Store(ctx, archivestore.S3Config{
			Region:    c.S3Region,
			Endpoint:  c.S3BaseEndpoint,
			AccessKey: c.S3RootUser,
			SecretKey: c.S3RootPassword,
			Bucket:    c.S3Bucket,
		})
		if err != nil {
			return nil, nil, err
		}
		return s, nil, nil
	default:
		return nil, nil, fmt.Errorf("unknown archive store %q", c.ArchiveStore)
	}
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) startGRPCServer(ctx context.Context, cancelFunc context.CancelFunc) {
	s := gs.NewGRPCServer(app.config.EndpointAddrGRPC, app.logger, app.services, app.config.SecretKey)

	if err := s.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

func (app *App) close(ctx context.Context) {
	for i := len(app.closers) - 1; i >= 0; i-- {
		if err := app.closers[i](); err != nil {
			app.logger.Error(ctx, "close error", "error", err)
		}
	}
}

// Run serves until ctx is canceled or a termination signal arrives.
func (app *App) Run(ctx context.Context) {

	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		app.startGRPCServer(ctx, cancelFunc)
	}()

	wg.Wait()

	app.close(context.Background())
	app.logger.Info(context.Background(), "App stopped")
}
