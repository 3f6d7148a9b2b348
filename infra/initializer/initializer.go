// Package initializer wires configuration into the full dependency graph:
// database, repositories, cursor store, remote changefeed, reconciler, sync
// engine, coordinator and services.
package initializer

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/amirasaad/ledgersync/infra"
	infracursor "github.com/amirasaad/ledgersync/infra/cursor"
	infrarepo "github.com/amirasaad/ledgersync/infra/repository"
	"github.com/amirasaad/ledgersync/infra/remote/httpapi"
	"github.com/amirasaad/ledgersync/pkg/config"
	"github.com/amirasaad/ledgersync/pkg/domain"
	"github.com/amirasaad/ledgersync/pkg/eventbus"
	"github.com/amirasaad/ledgersync/pkg/provider"
	"github.com/amirasaad/ledgersync/pkg/reconcile"
	"github.com/amirasaad/ledgersync/pkg/repository"
	"github.com/amirasaad/ledgersync/pkg/service"
	"github.com/amirasaad/ledgersync/pkg/syncengine"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Deps is the application's wired dependency graph.
type Deps struct {
	Logger      *slog.Logger
	DB          *gorm.DB
	Uow         repository.UnitOfWork
	Cursors     repository.CursorStore
	Remote      provider.Changefeed
	Bus         eventbus.EventBus
	Reconciler  *reconcile.Reconciler
	Engine      *syncengine.Engine
	Coordinator *syncengine.Coordinator
	Ledger      *service.LedgerService
	Trips       *service.TripService
}

// InitializeDependencies builds every component from configuration.
func InitializeDependencies(cfg *config.App) (*Deps, error) {
	deps := &Deps{}
	logger := setupLogger(cfg.Log)
	deps.Logger = logger

	db, err := infra.NewDBConnection(cfg.DB, cfg.Env)
	if err != nil {
		logger.Error("failed to initialize database", "error", err)
		return nil, err
	}
	if err := infrarepo.Migrate(db); err != nil {
		return nil, fmt.Errorf("failed to migrate schema: %w", err)
	}
	deps.DB = db

	uow := infrarepo.NewUoW(db)
	deps.Uow = uow

	deps.Cursors, err = newCursorStore(cfg, db, logger)
	if err != nil {
		return nil, err
	}

	deps.Remote = httpapi.New(
		cfg.Sync.RemoteURL,
		cfg.Sync.AuthToken,
		cfg.Sync.HTTPTimeout,
		logger,
	)

	deps.Bus = eventbus.NewMemory()

	accounts := provider.StaticAccountProvider{}
	if cfg.Ledger != nil && cfg.Ledger.DefaultAccountID != "" {
		id := cfg.Ledger.DefaultAccountID
		accounts.AccountID = &id
	}
	deps.Reconciler = reconcile.New(uow, accounts, cfg.Sync.UserID, logger)

	deps.Engine = syncengine.New(
		uow,
		deps.Cursors,
		deps.Remote,
		deps.Reconciler,
		deps.Bus,
		cfg.Sync.UserID,
		logger,
	)
	deps.Coordinator = syncengine.NewCoordinator(deps.Engine, cfg.Sync.Quiet, logger)

	deps.Ledger = service.NewLedgerService(uow, deps.Bus, deps.Coordinator, cfg.Sync.UserID, logger)
	deps.Trips = service.NewTripService(uow, deps.Bus, deps.Coordinator, cfg.Sync.UserID, logger)

	wireReconcileEvents(deps)

	return deps, nil
}

func newCursorStore(
	cfg *config.App,
	db *gorm.DB,
	logger *slog.Logger,
) (repository.CursorStore, error) {
	if cfg.Sync.CursorBackend == "redis" {
		opt, err := redis.ParseURL(cfg.Redis.URL)
		if err != nil {
			return nil, fmt.Errorf("invalid redis url: %w", err)
		}
		opt.PoolSize = cfg.Redis.PoolSize
		opt.DialTimeout = cfg.Redis.DialTimeout
		opt.ReadTimeout = cfg.Redis.ReadTimeout
		opt.WriteTimeout = cfg.Redis.WriteTimeout
		return infracursor.NewRedisCursorStore(opt, cfg.Redis.KeyPrefix, logger), nil
	}
	return infrarepo.NewCursorStore(db), nil
}

// wireReconcileEvents converges derived rows whenever a trip's shared state
// changes locally. Pulled changes are reconciled by the engine itself.
func wireReconcileEvents(deps *Deps) {
	deps.Bus.Subscribe(domain.TripChanged{}.EventType(), func(ctx context.Context, e domain.Event) {
		event, ok := e.(domain.TripChanged)
		if !ok {
			return
		}
		var err error
		if event.ExpenseID != "" {
			err = deps.Reconciler.ReconcileExpense(ctx, event.TripID, event.ExpenseID)
		} else {
			err = deps.Reconciler.ReconcileTrip(ctx, event.TripID)
		}
		if err != nil {
			deps.Logger.Error("reconcile after local change failed",
				"trip", event.TripID, "error", err)
		}
	})
}
