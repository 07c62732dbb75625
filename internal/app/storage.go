package app

import (
	"context"
	"fmt"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/marketplace/internal/domain"
	"github.com/vladislavdragonenkov/marketplace/internal/storage/memory"
	"github.com/vladislavdragonenkov/marketplace/internal/storage/postgres"
)

// runtimeDependencies: репозитории выбранного хранилища.
type runtimeDependencies struct {
	orderRepo        domain.OrderRepository
	productRepo      domain.ProductRepository
	addressRepo      domain.AddressRepository
	trackingRepo     domain.TrackingRepository
	notificationRepo domain.NotificationRepository
	cartRepo         domain.CartRepository
	donationRepo     domain.DonationRepository
	timelineRepo     domain.TimelineRepository
	outboxRepo       domain.OutboxRepository

	// pingFn проверяет хранилище для /healthz, closeFn освобождает подключения.
	pingFn  func(ctx context.Context) error
	closeFn func() error
}

func initRuntimeDependencies(ctx context.Context, cfg Config, logger *log.Entry) (*runtimeDependencies, error) {
	if logger == nil {
		logger = log.WithField("component", "storage")
	}

	switch strings.ToLower(strings.TrimSpace(cfg.StorageDriver)) {
	case "", StorageDriverMemory:
		logger.Info("using in-memory storage")
		return &runtimeDependencies{
			orderRepo:        memory.NewOrderRepository(),
			productRepo:      memory.NewProductRepository(),
			addressRepo:      memory.NewAddressRepository(),
			trackingRepo:     memory.NewTrackingRepository(),
			notificationRepo: memory.NewNotificationRepository(),
			cartRepo:         memory.NewCartRepository(),
			donationRepo:     memory.NewDonationRepository(),
			timelineRepo:     memory.NewTimelineRepository(),
			outboxRepo:       memory.NewOutboxRepository(),
			pingFn:           func(context.Context) error { return nil },
			closeFn:          func() error { return nil },
		}, nil
	case StorageDriverPostgres:
		return initPostgres(ctx, cfg, logger)
	default:
		return nil, fmt.Errorf("unsupported storage driver %q", cfg.StorageDriver)
	}
}

func initPostgres(ctx context.Context, cfg Config, logger *log.Entry) (*runtimeDependencies, error) {
	if strings.TrimSpace(cfg.PostgresDSN) == "" {
		return nil, fmt.Errorf("postgres dsn is required for storage driver %q", StorageDriverPostgres)
	}

	store, err := postgres.Open(ctx, cfg.PostgresDSN, postgres.WithMaxOpenConns(cfg.PostgresMaxConns))
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}

	if cfg.PostgresAutoMigrate {
		if err := store.MigrateUp(ctx, 0); err != nil {
			_ = store.Close()
			return nil, fmt.Errorf("migrate postgres: %w", err)
		}
		logger.Info("postgres migrations applied")
	}

	logger.Info("using postgres storage")
	return &runtimeDependencies{
		orderRepo:        postgres.NewOrderRepository(store),
		productRepo:      postgres.NewProductRepository(store),
		addressRepo:      postgres.NewAddressRepository(store),
		trackingRepo:     postgres.NewTrackingRepository(store),
		notificationRepo: postgres.NewNotificationRepository(store),
		cartRepo:         postgres.NewCartRepository(store),
		donationRepo:     postgres.NewDonationRepository(store),
		timelineRepo:     postgres.NewTimelineRepository(store),
		outboxRepo:       postgres.NewOutboxRepository(store),
		pingFn:           store.Ping,
		closeFn:          store.Close,
	}, nil
}
