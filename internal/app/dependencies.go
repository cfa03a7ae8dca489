package app

import (
	"context"
	"errors"
	"fmt"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/orderdesk/internal/domain"
	healthcheck "github.com/vladislavdragonenkov/orderdesk/internal/health"
	"github.com/vladislavdragonenkov/orderdesk/internal/storage/memory"
	"github.com/vladislavdragonenkov/orderdesk/internal/storage/postgres"
)

var errPostgresDSNRequired = errors.New("postgres dsn is required for postgres storage driver")

// runtimeDependencies — хранилища, выбранные по конфигурации.
type runtimeDependencies struct {
	repo        domain.OrderRepository
	historyRepo domain.HistoryRepository
	outboxRepo  domain.OutboxRepository
	// storageChecker не задан для хранилища в памяти.
	storageChecker healthcheck.Checker
	closeFn        func() error
}

// close освобождает ресурсы хранилища.
func (d runtimeDependencies) close(logger *log.Entry) {
	if d.closeFn == nil {
		return
	}
	if err := d.closeFn(); err != nil {
		logger.WithError(err).Warn("failed to close storage")
		return
	}
	logger.Info("storage closed")
}

// initRuntimeDependencies создаёт хранилища по cfg.StorageDriver.
func initRuntimeDependencies(ctx context.Context, cfg Config, logger *log.Entry) (runtimeDependencies, error) {
	switch driver := cfg.storageDriver(); driver {
	case StorageDriverMemory:
		logger.Info("using in-memory storage")
		return runtimeDependencies{
			repo:        memory.NewOrderRepository(),
			historyRepo: memory.NewHistoryRepository(),
			outboxRepo:  memory.NewOutboxRepository(),
		}, nil
	case StorageDriverPostgres:
		return initPostgresDependencies(ctx, cfg, logger)
	default:
		return runtimeDependencies{}, fmt.Errorf("unsupported storage driver %q", driver)
	}
}

func initPostgresDependencies(ctx context.Context, cfg Config, logger *log.Entry) (runtimeDependencies, error) {
	dsn := strings.TrimSpace(cfg.PostgresDSN)
	if dsn == "" {
		return runtimeDependencies{}, errPostgresDSNRequired
	}

	store, err := postgres.Open(ctx, dsn)
	if err != nil {
		return runtimeDependencies{}, fmt.Errorf("open postgres: %w", err)
	}

	if cfg.PostgresAutoMigrate {
		if err := store.MigrateUp(ctx, 0); err != nil {
			_ = store.Close()
			return runtimeDependencies{}, fmt.Errorf("apply migrations: %w", err)
		}
		state, err := store.MigrationStatus(ctx)
		if err == nil {
			logger.WithField("schema_version", state.Version).Info("postgres migrations applied")
		}
	}

	logger.Info("using postgres storage")
	return runtimeDependencies{
		repo:           postgres.NewOrderRepository(store),
		historyRepo:    postgres.NewHistoryRepository(store),
		outboxRepo:     postgres.NewOutboxRepository(store),
		storageChecker: healthcheck.NewStorageChecker("postgres", store),
		closeFn:        store.Close,
	}, nil
}
