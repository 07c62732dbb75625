package inventory_test

import (
	"context"
	"errors"
	"testing"

	"github.com/vladislavdragonenkov/marketplace/internal/domain"
	"github.com/vladislavdragonenkov/marketplace/internal/service/inventory"
	"github.com/vladislavdragonenkov/marketplace/internal/storage/memory"
)

type failingProducts struct {
	domain.ProductRepository
	err error
}

func (f failingProducts) DecrementFloor(context.Context, string, int) (domain.Product, error) {
	return domain.Product{}, f.err
}

func newLedger(t *testing.T, qty int) (*inventory.Ledger, domain.ProductRepository) {
	t.Helper()
	repo := memory.NewProductRepository()
	if err := repo.Create(context.Background(), domain.Product{ID: "p-1", SellerID: "s-1", AvailableQuantity: qty}); err != nil {
		t.Fatalf("create product: %v", err)
	}
	return inventory.NewLedger(repo, nil, nil), repo
}

func TestLedgerDecrementFloorsAtZero(t *testing.T) {
	ctx := context.Background()
	ledger, _ := newLedger(t, 5)

	product, err := ledger.Decrement(ctx, "p-1", 3)
	if err != nil {
		t.Fatalf("decrement failed: %v", err)
	}
	if product.AvailableQuantity != 2 || !product.InStock {
		t.Fatalf("expected qty 2 in stock, got %+v", product)
	}

	// Превышение остатка не отклоняется: остаток становится нулём.
	product, err = ledger.Decrement(ctx, "p-1", 10)
	if err != nil {
		t.Fatalf("over-decrement must not fail: %v", err)
	}
	if product.AvailableQuantity != 0 || product.InStock {
		t.Fatalf("expected empty product, got %+v", product)
	}
}

func TestLedgerDecrementErrors(t *testing.T) {
	ctx := context.Background()
	ledger, repo := newLedger(t, 5)

	if _, err := ledger.Decrement(ctx, "missing", 1); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if _, err := ledger.Decrement(ctx, "p-1", 0); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}

	storeDown := errors.New("connection reset")
	broken := inventory.NewLedger(failingProducts{ProductRepository: repo, err: storeDown}, nil, nil)
	_, err := broken.Decrement(ctx, "p-1", 1)
	if !errors.Is(err, domain.ErrDependency) || !errors.Is(err, storeDown) {
		t.Fatalf("expected dependency error wrapping cause, got %v", err)
	}
}

func TestLedgerCheckAvailability(t *testing.T) {
	ctx := context.Background()
	ledger, _ := newLedger(t, 3)

	ok, err := ledger.CheckAvailability(ctx, "p-1", 3)
	if err != nil || !ok {
		t.Fatalf("expected availability, got %v %v", ok, err)
	}
	ok, err = ledger.CheckAvailability(ctx, "p-1", 4)
	if err != nil || ok {
		t.Fatalf("expected shortage, got %v %v", ok, err)
	}
	if _, err := ledger.CheckAvailability(ctx, "missing", 1); !errors.Is(err, domain.ErrProductNotFound) {
		t.Fatalf("expected product not found, got %v", err)
	}
}

func TestLedgerRestock(t *testing.T) {
	ctx := context.Background()
	ledger, _ := newLedger(t, 0)

	product, err := ledger.Restock(ctx, "p-1", 2)
	if err != nil {
		t.Fatalf("restock failed: %v", err)
	}
	if product.AvailableQuantity != 2 || !product.InStock {
		t.Fatalf("unexpected product %+v", product)
	}
}
