package notification

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/marketplace/internal/domain"
	"github.com/vladislavdragonenkov/marketplace/internal/metrics"
)

const defaultListLimit = 50

// UnreadCache кэширует количество непрочитанных уведомлений пользователя.
type UnreadCache interface {
	Get(ctx context.Context, userID string) (int, bool, error)
	Set(ctx context.Context, userID string, count int) error
	Invalidate(ctx context.Context, userID string) error
}

// Options задаёт необязательные зависимости сервиса.
type Options struct {
	Logger  *log.Entry
	Metrics *metrics.MarketMetrics
	Cache   UnreadCache
	Outbox  domain.OutboxRepository
}

// Option настраивает Service.
type Option func(*Options)

// WithLogger задаёт logger.
func WithLogger(logger *log.Entry) Option {
	return func(opts *Options) {
		opts.Logger = logger
	}
}

// WithMetrics задаёт метрики.
func WithMetrics(m *metrics.MarketMetrics) Option {
	return func(opts *Options) {
		opts.Metrics = m
	}
}

// WithCache включает кэш счётчика непрочитанных.
func WithCache(cache UnreadCache) Option {
	return func(opts *Options) {
		opts.Cache = cache
	}
}

// WithOutbox включает публикацию события notification.created.
func WithOutbox(outbox domain.OutboxRepository) Option {
	return func(opts *Options) {
		opts.Outbox = outbox
	}
}

// Service: рассылка уведомлений. Сбой записи уведомления никогда не возвращается вызывающему.
type Service struct {
	repo    domain.NotificationRepository
	cache   UnreadCache
	outbox  domain.OutboxRepository
	logger  *log.Entry
	metrics *metrics.MarketMetrics
	now     func() time.Time
}

// NewService создаёт сервис уведомлений.
func NewService(repo domain.NotificationRepository, options ...Option) *Service {
	var opts Options
	for _, option := range options {
		option(&opts)
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.WithField("component", "notifications")
	}
	return &Service{
		repo:    repo,
		cache:   opts.Cache,
		outbox:  opts.Outbox,
		logger:  logger,
		metrics: opts.Metrics,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Notify рендерит и сохраняет уведомление. Любая ошибка логируется и поглощается.
func (s *Service) Notify(ctx context.Context, notice domain.Notice) {
	entry := s.logger.WithFields(log.Fields{
		"recipient_id": notice.RecipientID,
		"type":         notice.Type,
		"product_id":   notice.ProductID,
	})

	if notice.RecipientID == "" {
		entry.Warn("notification skipped: empty recipient")
		s.metrics.RecordNotification(string(notice.Type), "skipped")
		return
	}

	message, err := Render(notice.Type, notice.Details)
	if err != nil {
		entry.WithError(err).Warn("notification skipped")
		s.metrics.RecordNotification(string(notice.Type), "skipped")
		return
	}

	n := domain.Notification{
		ID:          uuid.NewString(),
		RecipientID: notice.RecipientID,
		Type:        notice.Type,
		ProductID:   notice.ProductID,
		FromUserID:  notice.FromUserID,
		Message:     message,
		IsRead:      false,
		CreatedAt:   s.now(),
	}

	if err := s.repo.Insert(ctx, n); err != nil {
		entry.WithError(err).Warn("failed to store notification")
		s.metrics.RecordNotification(string(notice.Type), "failed")
		return
	}
	s.metrics.RecordNotification(string(notice.Type), "ok")

	s.invalidate(ctx, notice.RecipientID)
	s.emitCreated(ctx, n)
}

// MarkRead отмечает уведомление пользователя прочитанным. Повторный вызов не ошибка.
func (s *Service) MarkRead(ctx context.Context, notificationID, userID string) error {
	if notificationID == "" || userID == "" {
		return domain.ErrNotificationNotFound
	}
	if err := s.repo.MarkRead(ctx, notificationID, userID); err != nil {
		return domain.Dependency("notifications.mark_read", err)
	}
	s.invalidate(ctx, userID)
	return nil
}

// MarkAllRead отмечает прочитанными все уведомления пользователя и возвращает число изменённых.
func (s *Service) MarkAllRead(ctx context.Context, userID string) (int, error) {
	if userID == "" {
		return 0, domain.ErrUnauthorized
	}
	updated, err := s.repo.MarkAllRead(ctx, userID)
	if err != nil {
		return 0, domain.Dependency("notifications.mark_all_read", err)
	}
	s.invalidate(ctx, userID)
	return updated, nil
}

// List возвращает уведомления пользователя, новые первыми.
func (s *Service) List(ctx context.Context, userID string, limit int) ([]domain.Notification, error) {
	if userID == "" {
		return nil, domain.ErrUnauthorized
	}
	if limit <= 0 {
		limit = defaultListLimit
	}
	items, err := s.repo.ListByRecipient(ctx, userID, limit)
	if err != nil {
		return nil, domain.Dependency("notifications.list", err)
	}
	return items, nil
}

// UnreadCount возвращает количество непрочитанных. Ошибки кэша не мешают ответу.
func (s *Service) UnreadCount(ctx context.Context, userID string) (int, error) {
	if userID == "" {
		return 0, domain.ErrUnauthorized
	}

	if s.cache != nil {
		count, found, err := s.cache.Get(ctx, userID)
		if err != nil {
			s.logger.WithError(err).WithField("user_id", userID).Warn("unread cache read failed")
		} else if found {
			return count, nil
		}
	}

	count, err := s.repo.CountUnread(ctx, userID)
	if err != nil {
		return 0, domain.Dependency("notifications.count_unread", err)
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, userID, count); err != nil {
			s.logger.WithError(err).WithField("user_id", userID).Warn("unread cache write failed")
		}
	}
	return count, nil
}

func (s *Service) invalidate(ctx context.Context, userID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, userID); err != nil {
		s.logger.WithError(err).WithField("user_id", userID).Warn("unread cache invalidation failed")
	}
}

func (s *Service) emitCreated(ctx context.Context, n domain.Notification) {
	if s.outbox == nil {
		return
	}
	payload, err := json.Marshal(map[string]any{
		"notification_id": n.ID,
		"recipient_id":    n.RecipientID,
		"type":            n.Type,
		"product_id":      n.ProductID,
		"ts":              n.CreatedAt.Format(time.RFC3339Nano),
	})
	if err != nil {
		s.logger.WithError(err).Error("marshal notification event failed")
		return
	}
	msg := domain.OutboxMessage{
		AggregateType: domain.AggregateNotification,
		AggregateID:   n.RecipientID,
		EventType:     domain.EventNotificationCreated,
		Payload:       payload,
	}
	if _, err := s.outbox.Enqueue(ctx, msg); err != nil {
		s.logger.WithError(err).WithField("notification_id", n.ID).Warn("enqueue notification event failed")
		return
	}
	s.metrics.RecordOutboxEvent()
}

var _ domain.Notifier = (*Service)(nil)
