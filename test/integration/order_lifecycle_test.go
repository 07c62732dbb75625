package integration

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/vladislavdragonenkov/marketplace/internal/domain"
	"github.com/vladislavdragonenkov/marketplace/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/marketplace/internal/service/address"
	"github.com/vladislavdragonenkov/marketplace/internal/service/catalog"
	"github.com/vladislavdragonenkov/marketplace/internal/service/inventory"
	"github.com/vladislavdragonenkov/marketplace/internal/service/notification"
	"github.com/vladislavdragonenkov/marketplace/internal/service/order"
	"github.com/vladislavdragonenkov/marketplace/internal/service/outbox"
	"github.com/vladislavdragonenkov/marketplace/internal/service/tracking"
	"github.com/vladislavdragonenkov/marketplace/internal/storage/memory"
)

var (
	buyer     = domain.Actor{UserID: "buyer-42", Role: domain.RoleBuyer}
	seller    = domain.Actor{UserID: "farm-7", Role: domain.RoleSeller}
	admin     = domain.Actor{UserID: "ops-1", Role: domain.RoleAdmin}
	logistics = domain.Actor{UserID: "courier-3", Role: domain.RoleLogistics}
)

// OrderLifecycleTestSuite прогоняет заказ через все сервисы поверх in-memory хранилищ
// и выгружает outbox в Kafka-мок.
type OrderLifecycleTestSuite struct {
	suite.Suite

	ctx          context.Context
	logger       *log.Entry
	products     domain.ProductRepository
	trackingRows domain.TrackingRepository
	outbox       *memory.OutboxRepository
	catalog      *catalog.Service
	addresses    *address.Book
	notifier     *notification.Service
	orders       *order.Manager

	buyerAddress domain.Address
}

func TestOrderLifecycleSuite(t *testing.T) {
	suite.Run(t, new(OrderLifecycleTestSuite))
}

func (s *OrderLifecycleTestSuite) SetupTest() {
	baseLogger := log.New()
	baseLogger.SetLevel(log.WarnLevel)
	s.logger = baseLogger.WithField("component", "integration-test")
	s.ctx = context.Background()
	s.setup(order.Config{})
}

func (s *OrderLifecycleTestSuite) setup(cfg order.Config) {
	s.products = memory.NewProductRepository()
	s.trackingRows = memory.NewTrackingRepository()
	s.outbox = memory.NewOutboxRepository()
	addressRepo := memory.NewAddressRepository()

	ledger := inventory.NewLedger(s.products, nil, s.logger)
	s.notifier = notification.NewService(memory.NewNotificationRepository(),
		notification.WithLogger(s.logger),
		notification.WithOutbox(s.outbox),
	)
	s.catalog = catalog.NewService(s.products, ledger, s.notifier, s.logger)
	s.addresses = address.NewBook(addressRepo)

	s.orders = order.NewManager(order.Dependencies{
		Orders:    memory.NewOrderRepository(),
		Products:  s.products,
		Addresses: addressRepo,
		Ledger:    ledger,
		Tracking:  tracking.NewCoordinator(s.trackingRows, addressRepo, nil, s.logger),
		Notifier:  s.notifier,
		Timeline:  memory.NewTimelineRepository(),
		Outbox:    s.outbox,
		Logger:    s.logger,
	}, cfg)

	_, err := s.addresses.Add(s.ctx, seller, address.AddressInput{
		Name: "Farm", Line1: "12 Orchard Rd", City: "Tula", Country: "RU",
	})
	s.Require().NoError(err)
	s.buyerAddress, err = s.addresses.Add(s.ctx, buyer, address.AddressInput{
		Name: "Home", Line1: "8 Lenina St", City: "Moscow", Country: "RU",
	})
	s.Require().NoError(err)
}

func (s *OrderLifecycleTestSuite) createProduct(qty int, price string) domain.Product {
	product, err := s.catalog.CreateProduct(s.ctx, seller, catalog.ProductInput{
		Name:     "Apples",
		Price:    decimal.RequireFromString(price),
		Category: "fruit",
		Quantity: qty,
	})
	s.Require().NoError(err)
	return product
}

func (s *OrderLifecycleTestSuite) placeOrder(productID string, qty int) (domain.Order, error) {
	return s.orders.CreateOrder(s.ctx, buyer, order.CreateOrderRequest{
		AddressID: s.buyerAddress.ID,
		Items:     []order.ItemInput{{ProductID: productID, Quantity: qty}},
	})
}

func (s *OrderLifecycleTestSuite) available(productID string) int {
	p, err := s.products.Get(s.ctx, productID)
	s.Require().NoError(err)
	return p.AvailableQuantity
}

// drainToKafka выгружает outbox через worker в мок-продюсер и возвращает топики по типам событий.
func (s *OrderLifecycleTestSuite) drainToKafka() map[string][]string {
	t := s.T()
	pending := len(s.outbox.AllPending())
	s.Require().Positive(pending)

	var (
		mu     sync.Mutex
		topics = make(map[string][]string)
	)
	producer := mocks.NewSyncProducer(t, nil)
	for range pending {
		producer.ExpectSendMessageWithMessageCheckerFunctionAndSucceed(func(msg *sarama.ProducerMessage) error {
			raw, err := msg.Value.Encode()
			if err != nil {
				return err
			}
			var envelope kafka.Envelope
			if err := json.Unmarshal(raw, &envelope); err != nil {
				return err
			}
			mu.Lock()
			topics[envelope.EventType] = append(topics[envelope.EventType], msg.Topic)
			mu.Unlock()
			return nil
		})
	}

	kafkaProducer := kafka.NewProducerFromSync(producer, s.logger)
	defer func() { require.NoError(t, kafkaProducer.Close()) }()

	worker := outbox.NewWorker(s.outbox, kafka.NewOutboxPublisher(kafkaProducer),
		outbox.WithLogger(s.logger),
		outbox.WithBatchSize(pending),
	)
	s.Equal(pending, worker.ProcessOnce(s.ctx))
	s.Empty(s.outbox.AllPending())
	s.Empty(s.outbox.AllFailed())
	return topics
}

func (s *OrderLifecycleTestSuite) TestFulfilledOrderLifecycle() {
	product := s.createProduct(10, "3.20")

	created, err := s.placeOrder(product.ID, 4)
	s.Require().NoError(err)
	s.Equal(domain.OrderStatusPending, created.Status)
	s.True(created.Total.Equal(decimal.RequireFromString("12.80")), "total %s", created.Total)
	s.Equal(6, s.available(product.ID))

	unread, err := s.notifier.UnreadCount(s.ctx, seller.UserID)
	s.Require().NoError(err)
	s.Equal(1, unread)

	paid, err := s.orders.ConfirmPayment(s.ctx, admin, created.ID)
	s.Require().NoError(err)
	s.Equal(domain.OrderStatusProcessing, paid.Status)
	s.Equal(domain.PaymentStatusPaid, paid.PaymentStatus)

	_, err = s.orders.UpdateStatus(s.ctx, seller, created.ID, domain.OrderStatusReadyForPickup)
	s.Require().NoError(err)
	row, err := s.trackingRows.GetByOrder(s.ctx, created.ID)
	s.Require().NoError(err)
	s.Equal(domain.TrackingWaitingPickup, row.Status)
	s.Equal(s.buyerAddress.Snapshot(), row.EndLocation)

	_, err = s.orders.UpdateStatus(s.ctx, seller, created.ID, domain.OrderStatusDispatched)
	s.Require().NoError(err)
	delivered, err := s.orders.UpdateStatus(s.ctx, logistics, created.ID, domain.OrderStatusDelivered)
	s.Require().NoError(err)
	s.Equal(domain.OrderStatusDelivered, delivered.Status)

	after, err := s.trackingRows.GetByOrder(s.ctx, created.ID)
	s.Require().NoError(err)
	s.Equal(row.ID, after.ID)
	s.Equal(domain.TrackingDelivered, after.Status)

	_, err = s.orders.Cancel(s.ctx, buyer, created.ID, "too late")
	s.ErrorIs(err, domain.ErrInvalidTransition)

	history, err := s.orders.History(s.ctx, buyer, created.ID)
	s.Require().NoError(err)
	types := make([]string, 0, len(history))
	for _, ev := range history {
		types = append(types, ev.Type)
	}
	s.Equal([]string{
		domain.TimelineOrderCreated,
		domain.TimelinePaymentConfirmed,
		domain.TimelineStatusChanged,
		domain.TimelineStatusChanged,
		domain.TimelineStatusChanged,
	}, types)

	topics := s.drainToKafka()
	s.Equal([]string{kafka.TopicOrderEvents}, topics[domain.EventOrderCreated])
	s.NotEmpty(topics[domain.EventOrderStatusChanged])
	for _, topic := range topics[domain.EventOrderStatusChanged] {
		s.Equal(kafka.TopicOrderEvents, topic)
	}
	s.NotEmpty(topics[domain.EventNotificationCreated])
	for _, topic := range topics[domain.EventNotificationCreated] {
		s.Equal(kafka.TopicNotifications, topic)
	}
}

func (s *OrderLifecycleTestSuite) TestCancelledOrderRestoresStock() {
	s.setup(order.Config{RestoreStockOnCancel: true})
	product := s.createProduct(5, "1.00")

	created, err := s.placeOrder(product.ID, 2)
	s.Require().NoError(err)
	s.Equal(3, s.available(product.ID))

	_, err = s.orders.ConfirmPayment(s.ctx, admin, created.ID)
	s.Require().NoError(err)

	cancelled, err := s.orders.Cancel(s.ctx, buyer, created.ID, "found cheaper")
	s.Require().NoError(err)
	s.Equal(domain.OrderStatusCancelled, cancelled.Status)
	s.Equal(5, s.available(product.ID))

	_, err = s.trackingRows.GetByOrder(s.ctx, created.ID)
	s.ErrorIs(err, domain.ErrNotFound)

	topics := s.drainToKafka()
	s.Equal([]string{kafka.TopicOrderEvents}, topics[domain.EventOrderCanceled])
}

func (s *OrderLifecycleTestSuite) TestInsufficientStockIsRejected() {
	product := s.createProduct(1, "5.00")

	_, err := s.placeOrder(product.ID, 2)
	s.ErrorIs(err, domain.ErrInsufficientStock)
	s.Equal(1, s.available(product.ID))
}

func (s *OrderLifecycleTestSuite) TestConcurrentCheckoutsNeverDriveStockNegative() {
	const stock = 3
	product := s.createProduct(stock, "2.00")

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
	)
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := s.placeOrder(product.ID, 1); err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	s.GreaterOrEqual(succeeded, stock)
	s.Equal(0, s.available(product.ID))

	p, err := s.products.Get(s.ctx, product.ID)
	s.Require().NoError(err)
	s.False(p.InStock)
}
