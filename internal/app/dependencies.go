package app

import (
	log "github.com/sirupsen/logrus"

	redisstore "github.com/vladislavdragonenkov/marketplace/internal/cache/redis"
	"github.com/vladislavdragonenkov/marketplace/internal/metrics"
	"github.com/vladislavdragonenkov/marketplace/internal/service/address"
	"github.com/vladislavdragonenkov/marketplace/internal/service/cart"
	"github.com/vladislavdragonenkov/marketplace/internal/service/catalog"
	"github.com/vladislavdragonenkov/marketplace/internal/service/donation"
	"github.com/vladislavdragonenkov/marketplace/internal/service/inventory"
	"github.com/vladislavdragonenkov/marketplace/internal/service/notification"
	"github.com/vladislavdragonenkov/marketplace/internal/service/order"
	"github.com/vladislavdragonenkov/marketplace/internal/service/tracking"
	"github.com/vladislavdragonenkov/marketplace/internal/transport/httpapi"
)

// Dependencies содержит собранный граф сервисов приложения.
type Dependencies struct {
	Ledger        *inventory.Ledger
	Tracking      *tracking.Coordinator
	Notifications *notification.Service
	Catalog       *catalog.Service
	Cart          *cart.Service
	Donations     *donation.Service
	Addresses     *address.Book
	Orders        *order.Manager
	Logger        *log.Entry
}

// NewDependencies связывает сервисы поверх репозиториев. cache может быть nil.
func NewDependencies(
	repos *runtimeDependencies,
	cfg Config,
	m *metrics.MarketMetrics,
	cache *redisstore.UnreadCache,
	logger *log.Entry,
) *Dependencies {
	if logger == nil {
		logger = log.WithField("component", "app")
	}

	notifyOpts := []notification.Option{
		notification.WithLogger(logger.WithField("component", "notifications")),
		notification.WithMetrics(m),
		notification.WithOutbox(repos.outboxRepo),
	}
	// Типизированный nil в интерфейсе сломал бы проверку cache != nil внутри сервиса.
	if cache != nil {
		notifyOpts = append(notifyOpts, notification.WithCache(cache))
	}
	notifier := notification.NewService(repos.notificationRepo, notifyOpts...)

	ledger := inventory.NewLedger(repos.productRepo, m, logger.WithField("component", "inventory"))
	coordinator := tracking.NewCoordinator(repos.trackingRepo, repos.addressRepo, m, logger.WithField("component", "tracking"))
	carts := cart.NewService(repos.cartRepo, repos.productRepo, notifier, logger.WithField("component", "cart"))

	orders := order.NewManager(order.Dependencies{
		Orders:    repos.orderRepo,
		Products:  repos.productRepo,
		Addresses: repos.addressRepo,
		Ledger:    ledger,
		Tracking:  coordinator,
		Notifier:  notifier,
		Cart:      carts,
		Timeline:  repos.timelineRepo,
		Outbox:    repos.outboxRepo,
		Metrics:   m,
		Logger:    logger.WithField("component", "order-manager"),
	}, order.Config{
		RestoreStockOnCancel: cfg.RestoreStockOnCancel,
		RepriceFromCatalog:   cfg.RepriceFromCatalog,
	})

	return &Dependencies{
		Ledger:        ledger,
		Tracking:      coordinator,
		Notifications: notifier,
		Catalog:       catalog.NewService(repos.productRepo, ledger, notifier, logger.WithField("component", "catalog")),
		Cart:          carts,
		Donations:     donation.NewService(repos.donationRepo, repos.productRepo, ledger, notifier, logger.WithField("component", "donations")),
		Addresses:     address.NewBook(repos.addressRepo),
		Orders:        orders,
		Logger:        logger,
	}
}

// HTTPServices отдаёт сервисы в виде, который ждёт HTTP API.
func (d *Dependencies) HTTPServices() httpapi.Services {
	return httpapi.Services{
		Orders:        d.Orders,
		Tracking:      d.Tracking,
		Catalog:       d.Catalog,
		Cart:          d.Cart,
		Donations:     d.Donations,
		Addresses:     d.Addresses,
		Notifications: d.Notifications,
	}
}
