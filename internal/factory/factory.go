package factory

import (
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/mcoot/townserver/internal/config"
	"github.com/mcoot/townserver/internal/dependencies/clock"
	"github.com/mcoot/townserver/internal/dependencies/random"
	"github.com/mcoot/townserver/internal/services/auth"
	"github.com/mcoot/townserver/internal/services/currency"
	"github.com/mcoot/townserver/internal/services/identity"
	"github.com/mcoot/townserver/internal/services/land"
	"github.com/mcoot/townserver/internal/services/pending"
	"github.com/mcoot/townserver/internal/services/stats"
	"github.com/mcoot/townserver/internal/services/town"
	"github.com/mcoot/townserver/internal/storage"
	"github.com/mcoot/townserver/internal/storage/memory"
	redisstorage "github.com/mcoot/townserver/internal/storage/redis"
	"github.com/mcoot/townserver/internal/storage/sqlite"
)

// App contains all wired application components
type App struct {
	Config config.Config

	// Storage
	Identities storage.TxIdentityStore
	Pending    *sqlite.Storage

	// External dependencies
	Clock  clock.Clock
	Random random.Random

	// Services
	AuthService     *auth.Service
	Resolver        *identity.Resolver
	Ledger          *currency.Ledger
	TownStore       *town.Store
	Tracker         *stats.Tracker
	LandService     *land.Service
	PendingRegistry *pending.Registry

	closers []io.Closer
}

// New creates a new application with all dependencies wired
func New(cfg config.Config, logger *slog.Logger) (*App, error) {
	// Use no-op logger if not provided
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var closers []io.Closer
	notifiers := pending.MultiNotifier{pending.NewLogNotifier(logger)}

	// Create identity storage based on type
	var identities storage.TxIdentityStore
	switch cfg.Storage.Type {
	case config.StorageTypeMemory:
		identities = memory.New()
	case config.StorageTypeRedis:
		redisCfg := redisstorage.DefaultConfig()
		redisCfg.URL = cfg.Storage.RedisURL
		redisStore, err := redisstorage.New(redisCfg)
		if err != nil {
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		identities = redisStore
		closers = append(closers, redisStore)
		if cfg.Storage.NotifyChannel != "" {
			notifiers = append(notifiers, redisstorage.NewPublisher(redisStore.Client(), cfg.Storage.NotifyChannel))
		}
	default:
		return nil, errors.New("invalid storage type: must be 'memory' or 'redis'")
	}

	pendingStore, err := sqlite.Open(cfg.Pending.DBPath)
	if err != nil {
		_ = closeAll(closers)
		return nil, fmt.Errorf("open pending db: %w", err)
	}
	closers = append(closers, pendingStore)

	app := newWithDependencies(cfg, identities, pendingStore, notifiers, clock.New(), random.New(), logger)
	app.closers = closers
	return app, nil
}

// newWithDependencies creates an App with the given dependencies (useful for testing)
func newWithDependencies(
	cfg config.Config,
	identities storage.TxIdentityStore,
	pendingStore *sqlite.Storage,
	notifier pending.Notifier,
	clk clock.Clock,
	rnd random.Random,
	logger *slog.Logger,
) *App {
	moderators := make([]auth.Moderator, 0, len(cfg.Moderators))
	for _, m := range cfg.Moderators {
		moderators = append(moderators, auth.Moderator{Username: m.Username, PasswordHash: m.PasswordHash})
	}

	authService := auth.New(identities, clk, rnd, moderators, logger)
	resolver := identity.NewResolver(identities, logger)
	ledger := currency.NewLedger(currency.Config{
		Dir:     cfg.Towns.Dir,
		Initial: cfg.Towns.InitialDonuts,
		Max:     cfg.Towns.MaxDonuts,
	}, logger)
	townStore := town.NewStore(town.Config{
		Dir:                        cfg.Towns.Dir,
		LegacyMode:                 cfg.Towns.LegacyMode,
		LegacyPath:                 cfg.Towns.LegacyPath,
		DeleteExistingUserOnImport: cfg.Towns.DeleteExistingUserOnImport,
	}, identities, ledger, rnd, logger)
	tracker := stats.NewTracker(clk, cfg.Stats.ConnectionTimeout, logger)
	landService := land.NewService(identities, resolver, townStore, ledger, tracker, rnd, logger)
	registry := pending.NewRegistry(pending.Config{
		Dir:           cfg.Pending.Dir,
		StatusRetries: cfg.Pending.StatusRetries,
		RetryDelay:    cfg.Pending.RetryDelay,
	}, pendingStore, townStore, notifier, clk, rnd, logger)

	return &App{
		Config:          cfg,
		Identities:      identities,
		Pending:         pendingStore,
		Clock:           clk,
		Random:          rnd,
		AuthService:     authService,
		Resolver:        resolver,
		Ledger:          ledger,
		TownStore:       townStore,
		Tracker:         tracker,
		LandService:     landService,
		PendingRegistry: registry,
		closers:         []io.Closer{pendingStore},
	}
}

// Close releases database connections
func (a *App) Close() error {
	return closeAll(a.closers)
}

func closeAll(closers []io.Closer) error {
	var errs []error
	for i := len(closers) - 1; i >= 0; i-- {
		if err := closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
