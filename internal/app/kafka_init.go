package app

import (
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/marketplace/internal/domain"
	"github.com/vladislavdragonenkov/marketplace/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/marketplace/internal/service/outbox"
)

// eventSink: куда outbox worker отдаёт события. Без брокера события пишутся в лог, DLQ нет.
type eventSink struct {
	producer  *kafka.Producer
	publisher domain.OutboxPublisher
	dlq       domain.OutboxPublisher
	logger    *log.Entry
}

// newEventSink подключается к Kafka, если брокеры заданы. Ошибка подключения не фатальна:
// сервис продолжает работу с логирующим publisher.
func newEventSink(brokers []string, clientID string, logger *log.Entry) *eventSink {
	sink := &eventSink{publisher: logPublisher{logger: logger}, logger: logger}
	if len(brokers) == 0 {
		return sink
	}

	producer, err := kafka.NewProducer(brokers, clientID)
	if err != nil {
		logger.WithError(err).WithField("brokers", brokers).Warn("kafka unavailable, outbox events go to log")
		return sink
	}
	logger.WithField("brokers", brokers).Info("kafka producer ready")
	return sinkFromProducer(producer, logger)
}

func sinkFromProducer(producer *kafka.Producer, logger *log.Entry) *eventSink {
	return &eventSink{
		producer:  producer,
		publisher: kafka.NewOutboxPublisher(producer),
		dlq:       kafka.NewDLQPublisher(producer, kafka.TopicDeadLetterQueue),
		logger:    logger,
	}
}

func (s *eventSink) kafkaEnabled() bool {
	return s.producer != nil
}

// workerOptions добавляет DLQ к опциям worker, когда он есть.
func (s *eventSink) workerOptions(opts ...outbox.Option) []outbox.Option {
	if s.dlq != nil {
		opts = append(opts, outbox.WithDLQPublisher(s.dlq))
	}
	return opts
}

func (s *eventSink) Close() {
	if s.producer == nil {
		return
	}
	if err := s.producer.Close(); err != nil {
		s.logger.WithError(err).Warn("close kafka producer")
		return
	}
	s.logger.Info("kafka producer closed")
}

type logPublisher struct {
	logger *log.Entry
}

func (p logPublisher) Publish(msg domain.OutboxMessage) error {
	p.logger.WithFields(log.Fields{
		"outbox_id":    msg.ID,
		"aggregate":    msg.AggregateType + "/" + msg.AggregateID,
		"event_type":   msg.EventType,
		"payload_size": len(msg.Payload),
	}).Debug("outbox event (no broker)")
	return nil
}
