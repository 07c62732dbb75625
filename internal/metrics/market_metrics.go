package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// MarketMetrics содержит метрики ядра маркетплейса. Методы безопасны для nil-получателя.
type MarketMetrics struct {
	// Заказы
	ordersCreated      prometheus.Counter
	orderTransitions   *prometheus.CounterVec
	orderCancellations prometheus.Counter

	// Побочные эффекты
	inventoryDecrements *prometheus.CounterVec
	notifications       *prometheus.CounterVec
	trackingWrites      *prometheus.CounterVec

	// Время выполнения операций
	operationDuration *prometheus.HistogramVec

	timelineEvents prometheus.Counter
	outboxEvents   prometheus.Counter

	// Ретрансляция outbox
	outboxPublishes     *prometheus.CounterVec
	outboxPending       prometheus.Gauge
	outboxOldestPending prometheus.Gauge
}

// NewMarketMetrics создаёт метрики в DefaultRegisterer.
func NewMarketMetrics() *MarketMetrics {
	return NewMarketMetricsWithRegisterer(prometheus.DefaultRegisterer)
}

// NewMarketMetricsWithRegisterer создаёт метрики в заданном registerer (в тестах: отдельный Registry).
func NewMarketMetricsWithRegisterer(registerer prometheus.Registerer) *MarketMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	return &MarketMetrics{
		ordersCreated: registerCounter(registerer, prometheus.CounterOpts{
			Name: "market_orders_created_total",
			Help: "Total number of orders created",
		}),
		orderTransitions: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "market_order_transitions_total",
			Help: "Total number of order status transitions",
		}, []string{"from", "to"}),
		orderCancellations: registerCounter(registerer, prometheus.CounterOpts{
			Name: "market_order_cancellations_total",
			Help: "Total number of cancelled orders",
		}),
		inventoryDecrements: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "market_inventory_decrements_total",
			Help: "Inventory decrements grouped by result (ok, depleted, failed)",
		}, []string{"result"}),
		notifications: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "market_notifications_total",
			Help: "Notification writes grouped by type and result",
		}, []string{"type", "result"}),
		trackingWrites: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "market_tracking_writes_total",
			Help: "Logistics tracking writes grouped by action",
		}, []string{"action"}),
		operationDuration: registerHistogramVec(registerer, prometheus.HistogramOpts{
			Name:    "market_operation_duration_seconds",
			Help:    "Duration of core operations in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0},
		}, []string{"operation", "result"}),
		timelineEvents: registerCounter(registerer, prometheus.CounterOpts{
			Name: "market_timeline_events_total",
			Help: "Total number of order history events recorded",
		}),
		outboxEvents: registerCounter(registerer, prometheus.CounterOpts{
			Name: "market_outbox_events_total",
			Help: "Total number of outbox events enqueued",
		}),
		outboxPublishes: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "market_outbox_publish_attempts_total",
			Help: "Outbox publish attempts grouped by result (sent, retry_error, failed, dlq_failed)",
		}, []string{"result"}),
		outboxPending: registerGauge(registerer, prometheus.GaugeOpts{
			Name: "market_outbox_pending_records",
			Help: "Current number of pending records in the outbox",
		}),
		outboxOldestPending: registerGauge(registerer, prometheus.GaugeOpts{
			Name: "market_outbox_oldest_pending_age_seconds",
			Help: "Age in seconds of the oldest pending outbox record",
		}),
	}
}

func registerCounter(registerer prometheus.Registerer, opts prometheus.CounterOpts) prometheus.Counter {
	collector := prometheus.NewCounter(opts)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(prometheus.Counter)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register counter %q: %v", opts.Name, err))
	}
	return collector
}

func registerCounterVec(registerer prometheus.Registerer, opts prometheus.CounterOpts, labels []string) *prometheus.CounterVec {
	collector := prometheus.NewCounterVec(opts, labels)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(*prometheus.CounterVec)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register counter vec %q: %v", opts.Name, err))
	}
	return collector
}

func registerGauge(registerer prometheus.Registerer, opts prometheus.GaugeOpts) prometheus.Gauge {
	collector := prometheus.NewGauge(opts)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(prometheus.Gauge)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register gauge %q: %v", opts.Name, err))
	}
	return collector
}

func registerHistogramVec(registerer prometheus.Registerer, opts prometheus.HistogramOpts, labels []string) *prometheus.HistogramVec {
	collector := prometheus.NewHistogramVec(opts, labels)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(*prometheus.HistogramVec)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register histogram vec %q: %v", opts.Name, err))
	}
	return collector
}

// RecordOrderCreated увеличивает счётчик созданных заказов.
func (m *MarketMetrics) RecordOrderCreated() {
	if m == nil {
		return
	}
	m.ordersCreated.Inc()
}

// RecordTransition учитывает переход статуса заказа.
func (m *MarketMetrics) RecordTransition(from, to string) {
	if m == nil {
		return
	}
	m.orderTransitions.WithLabelValues(from, to).Inc()
}

// RecordCancellation увеличивает счётчик отмен.
func (m *MarketMetrics) RecordCancellation() {
	if m == nil {
		return
	}
	m.orderCancellations.Inc()
}

// RecordInventoryDecrement учитывает списание остатка: ok, depleted или failed.
func (m *MarketMetrics) RecordInventoryDecrement(result string) {
	if m == nil {
		return
	}
	m.inventoryDecrements.WithLabelValues(result).Inc()
}

// RecordNotification учитывает запись уведомления.
func (m *MarketMetrics) RecordNotification(notificationType, result string) {
	if m == nil {
		return
	}
	m.notifications.WithLabelValues(notificationType, result).Inc()
}

// RecordTrackingWrite учитывает изменение отгрузки: created, advanced, noop, deleted.
func (m *MarketMetrics) RecordTrackingWrite(action string) {
	if m == nil {
		return
	}
	m.trackingWrites.WithLabelValues(action).Inc()
}

// RecordOperation записывает длительность операции.
func (m *MarketMetrics) RecordOperation(operation string, err error, duration time.Duration) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.operationDuration.WithLabelValues(operation, result).Observe(duration.Seconds())
}

// RecordTimelineEvent увеличивает счётчик событий истории.
func (m *MarketMetrics) RecordTimelineEvent() {
	if m == nil {
		return
	}
	m.timelineEvents.Inc()
}

// RecordOutboxEvent увеличивает счётчик событий outbox.
func (m *MarketMetrics) RecordOutboxEvent() {
	if m == nil {
		return
	}
	m.outboxEvents.Inc()
}

// RecordOutboxPublish учитывает попытку публикации из outbox.
func (m *MarketMetrics) RecordOutboxPublish(result string) {
	if m == nil {
		return
	}
	m.outboxPublishes.WithLabelValues(result).Inc()
}

// SetOutboxBacklog выставляет размер backlog и возраст самого старого pending-сообщения.
func (m *MarketMetrics) SetOutboxBacklog(pending int, oldestAge time.Duration) {
	if m == nil {
		return
	}
	if oldestAge < 0 {
		oldestAge = 0
	}
	m.outboxPending.Set(float64(pending))
	m.outboxOldestPending.Set(oldestAge.Seconds())
}
