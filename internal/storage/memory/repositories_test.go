package memory_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/vladislavdragonenkov/marketplace/internal/domain"
	"github.com/vladislavdragonenkov/marketplace/internal/storage/memory"
)

func TestProductRepository_ConcurrentDecrementFloorsAtZero(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewProductRepository()
	if err := repo.Create(ctx, domain.Product{ID: "p-1", AvailableQuantity: 10}); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := repo.DecrementFloor(ctx, "p-1", 3); err != nil {
				t.Errorf("decrement failed: %v", err)
			}
		}()
	}
	wg.Wait()

	product, err := repo.Get(ctx, "p-1")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if product.AvailableQuantity != 0 || product.InStock {
		t.Fatalf("expected empty product, got qty=%d inStock=%v", product.AvailableQuantity, product.InStock)
	}

	restocked, err := repo.Increment(ctx, "p-1", 4)
	if err != nil {
		t.Fatalf("increment failed: %v", err)
	}
	if restocked.AvailableQuantity != 4 || !restocked.InStock {
		t.Fatalf("unexpected restocked product %+v", restocked)
	}

	if _, err := repo.DecrementFloor(ctx, "missing", 1); !errors.Is(err, domain.ErrProductNotFound) {
		t.Fatalf("expected product not found, got %v", err)
	}
}

func TestTrackingRepository_OneRowPerOrder(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewTrackingRepository()
	row := domain.LogisticsTracking{
		ID:            "t-1",
		OrderID:       "order-1",
		StartLocation: domain.Location{City: "Kazan"},
		EndLocation:   domain.Location{City: "Moscow"},
		Status:        domain.TrackingWaitingPickup,
	}

	if err := repo.Create(ctx, row); err != nil {
		t.Fatalf("create failed: %v", err)
	}
	row.ID = "t-2"
	if err := repo.Create(ctx, row); !errors.Is(err, domain.ErrTrackingExists) {
		t.Fatalf("expected ErrTrackingExists, got %v", err)
	}

	if err := repo.UpdateStatus(ctx, "order-1", domain.TrackingInTransit, time.Now()); err != nil {
		t.Fatalf("update failed: %v", err)
	}
	stored, err := repo.GetByOrder(ctx, "order-1")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if stored.ID != "t-1" || stored.Status != domain.TrackingInTransit || stored.StartLocation.City != "Kazan" {
		t.Fatalf("unexpected tracking %+v", stored)
	}

	deleted, err := repo.DeleteByOrder(ctx, "order-1")
	if err != nil || !deleted {
		t.Fatalf("expected deletion, got %v %v", deleted, err)
	}
	deleted, err = repo.DeleteByOrder(ctx, "order-1")
	if err != nil || deleted {
		t.Fatalf("second delete must be a no-op, got %v %v", deleted, err)
	}
}

func TestNotificationRepository_ScopedToRecipient(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewNotificationRepository()
	now := time.Now().UTC()

	for i, recipient := range []string{"seller-1", "seller-1", "seller-2"} {
		n := domain.Notification{
			ID:          string(rune('a' + i)),
			RecipientID: recipient,
			Type:        domain.NotificationPurchase,
			CreatedAt:   now.Add(time.Duration(i) * time.Second),
		}
		if err := repo.Insert(ctx, n); err != nil {
			t.Fatalf("insert failed: %v", err)
		}
	}

	if err := repo.MarkRead(ctx, "c", "seller-1"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("foreign notification must be invisible, got %v", err)
	}
	if err := repo.MarkRead(ctx, "a", "seller-1"); err != nil {
		t.Fatalf("mark read failed: %v", err)
	}

	unread, _ := repo.CountUnread(ctx, "seller-1")
	if unread != 1 {
		t.Fatalf("expected 1 unread, got %d", unread)
	}

	updated, err := repo.MarkAllRead(ctx, "seller-1")
	if err != nil || updated != 1 {
		t.Fatalf("expected 1 updated, got %d %v", updated, err)
	}
	updated, _ = repo.MarkAllRead(ctx, "seller-1")
	if updated != 0 {
		t.Fatalf("mark all read must be idempotent, got %d", updated)
	}

	list, _ := repo.ListByRecipient(ctx, "seller-1", 0)
	if len(list) != 2 || list[0].ID != "b" {
		t.Fatalf("expected newest first, got %+v", list)
	}
	other, _ := repo.CountUnread(ctx, "seller-2")
	if other != 1 {
		t.Fatalf("other recipient must stay unread, got %d", other)
	}
}

func TestCartRepository_AddMergesQuantity(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewCartRepository()

	_ = repo.Add(ctx, domain.CartItem{BuyerID: "b-1", ProductID: "p-1", Quantity: 1})
	_ = repo.Add(ctx, domain.CartItem{BuyerID: "b-1", ProductID: "p-1", Quantity: 2})

	items, _ := repo.List(ctx, "b-1")
	if len(items) != 1 || items[0].Quantity != 3 {
		t.Fatalf("unexpected cart %+v", items)
	}

	if err := repo.Clear(ctx, "b-1"); err != nil {
		t.Fatalf("clear failed: %v", err)
	}
	items, _ = repo.List(ctx, "b-1")
	if len(items) != 0 {
		t.Fatalf("expected empty cart, got %+v", items)
	}
}

func TestTimelineRepository_OrdersByOccurredThenInsertion(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewTimelineRepository()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	appendEvent := func(kind string, at time.Time) {
		t.Helper()
		if err := repo.Append(ctx, domain.TimelineEvent{OrderID: "o-1", Type: kind, Occurred: at}); err != nil {
			t.Fatalf("append %s: %v", kind, err)
		}
	}
	appendEvent("second", base.Add(time.Minute))
	appendEvent("first", base)
	appendEvent("third", base.Add(time.Minute))

	events, err := repo.List(ctx, "o-1")
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	var got []string
	for _, e := range events {
		got = append(got, e.Type)
	}
	if len(got) != 3 || got[0] != "first" || got[1] != "second" || got[2] != "third" {
		t.Fatalf("unexpected order %v", got)
	}

	events[0].Type = "mutated"
	again, _ := repo.List(ctx, "o-1")
	if again[0].Type != "first" {
		t.Fatal("List must return a copy")
	}
	if other, _ := repo.List(ctx, "o-2"); len(other) != 0 {
		t.Fatalf("expected empty history, got %v", other)
	}
}
