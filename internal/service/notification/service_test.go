package notification_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/vladislavdragonenkov/marketplace/internal/domain"
	"github.com/vladislavdragonenkov/marketplace/internal/service/notification"
	"github.com/vladislavdragonenkov/marketplace/internal/storage/memory"
)

type failingRepo struct {
	domain.NotificationRepository
	err error
}

func (f failingRepo) Insert(context.Context, domain.Notification) error {
	return f.err
}

type stubCache struct {
	values      map[string]int
	getCalls    int
	invalidated []string
	getErr      error
}

func newStubCache() *stubCache {
	return &stubCache{values: make(map[string]int)}
}

func (c *stubCache) Get(_ context.Context, userID string) (int, bool, error) {
	c.getCalls++
	if c.getErr != nil {
		return 0, false, c.getErr
	}
	v, ok := c.values[userID]
	return v, ok, nil
}

func (c *stubCache) Set(_ context.Context, userID string, count int) error {
	c.values[userID] = count
	return nil
}

func (c *stubCache) Invalidate(_ context.Context, userID string) error {
	delete(c.values, userID)
	c.invalidated = append(c.invalidated, userID)
	return nil
}

func TestRenderTemplates(t *testing.T) {
	details := domain.NoticeDetails{ProductName: "Apples", Quantity: 3}

	cases := []struct {
		typ  domain.NotificationType
		want string
	}{
		{domain.NotificationView, `Someone viewed "Apples".`},
		{domain.NotificationCart, `A buyer added 3 x "Apples" to their cart.`},
		{domain.NotificationPurchase, `New order: 3 x "Apples" was purchased.`},
		{domain.NotificationDonation, `Donation request received for 3 x "Apples".`},
	}
	for _, tc := range cases {
		got, err := notification.Render(tc.typ, details)
		if err != nil {
			t.Fatalf("%s: unexpected error %v", tc.typ, err)
		}
		if got != tc.want {
			t.Errorf("%s: got %q, want %q", tc.typ, got, tc.want)
		}
	}

	if _, err := notification.Render("promo", details); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error for unknown type, got %v", err)
	}
}

func TestNotifyStoresUnreadNotification(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewNotificationRepository()
	outbox := memory.NewOutboxRepository()
	cache := newStubCache()
	svc := notification.NewService(repo, notification.WithCache(cache), notification.WithOutbox(outbox))

	svc.Notify(ctx, domain.Notice{
		RecipientID: "seller-1",
		Type:        domain.NotificationPurchase,
		ProductID:   "p-1",
		FromUserID:  "buyer-1",
		Details:     domain.NoticeDetails{ProductName: "Honey", Quantity: 2},
	})

	items, err := svc.List(ctx, "seller-1", 0)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("expected 1 notification, got %d", len(items))
	}
	n := items[0]
	if n.IsRead || n.FromUserID != "buyer-1" || !strings.Contains(n.Message, "Honey") {
		t.Fatalf("unexpected notification %+v", n)
	}
	if len(cache.invalidated) != 1 || cache.invalidated[0] != "seller-1" {
		t.Fatalf("expected cache invalidation, got %v", cache.invalidated)
	}
	pending := outbox.AllPending()
	if len(pending) != 1 || pending[0].EventType != domain.EventNotificationCreated {
		t.Fatalf("expected notification.created event, got %+v", pending)
	}
}

func TestNotifyAnonymousView(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewNotificationRepository()
	svc := notification.NewService(repo)

	svc.Notify(ctx, domain.Notice{RecipientID: "seller-1", Type: domain.NotificationView, ProductID: "p-1"})

	items, _ := repo.ListByRecipient(ctx, "seller-1", 0)
	if len(items) != 1 || items[0].FromUserID != "" {
		t.Fatalf("expected anonymous view notification, got %+v", items)
	}
}

func TestNotifySwallowsStoreFailure(t *testing.T) {
	svc := notification.NewService(failingRepo{
		NotificationRepository: memory.NewNotificationRepository(),
		err:                    errors.New("insert failed"),
	})

	// Не должно паниковать и не возвращает ошибку.
	svc.Notify(context.Background(), domain.Notice{RecipientID: "seller-1", Type: domain.NotificationCart})
}

func TestMarkReadScopedAndIdempotent(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewNotificationRepository()
	svc := notification.NewService(repo)

	svc.Notify(ctx, domain.Notice{RecipientID: "seller-1", Type: domain.NotificationCart})
	items, _ := repo.ListByRecipient(ctx, "seller-1", 0)
	id := items[0].ID

	if err := svc.MarkRead(ctx, id, "seller-2"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("foreign user must not mark read, got %v", err)
	}
	if err := svc.MarkRead(ctx, id, "seller-1"); err != nil {
		t.Fatalf("mark read failed: %v", err)
	}
	if err := svc.MarkRead(ctx, id, "seller-1"); err != nil {
		t.Fatalf("second mark read must succeed, got %v", err)
	}

	count, err := svc.UnreadCount(ctx, "seller-1")
	if err != nil || count != 0 {
		t.Fatalf("expected 0 unread, got %d %v", count, err)
	}
}

func TestUnreadCountUsesCache(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewNotificationRepository()
	cache := newStubCache()
	svc := notification.NewService(repo, notification.WithCache(cache))

	svc.Notify(ctx, domain.Notice{RecipientID: "seller-1", Type: domain.NotificationCart})
	svc.Notify(ctx, domain.Notice{RecipientID: "seller-1", Type: domain.NotificationView})

	count, err := svc.UnreadCount(ctx, "seller-1")
	if err != nil || count != 2 {
		t.Fatalf("expected 2 unread, got %d %v", count, err)
	}
	if cache.values["seller-1"] != 2 {
		t.Fatalf("expected cached value, got %v", cache.values)
	}

	cache.values["seller-1"] = 42
	count, _ = svc.UnreadCount(ctx, "seller-1")
	if count != 42 {
		t.Fatalf("expected cached 42, got %d", count)
	}

	updated, err := svc.MarkAllRead(ctx, "seller-1")
	if err != nil || updated != 2 {
		t.Fatalf("expected 2 updated, got %d %v", updated, err)
	}
	count, _ = svc.UnreadCount(ctx, "seller-1")
	if count != 0 {
		t.Fatalf("expected cache to be refreshed after mark all read, got %d", count)
	}

	cache.getErr = errors.New("redis down")
	count, err = svc.UnreadCount(ctx, "seller-1")
	if err != nil || count != 0 {
		t.Fatalf("cache failure must fall back to store, got %d %v", count, err)
	}
}
