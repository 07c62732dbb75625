package domain

import (
	"errors"
	"fmt"
	"testing"
)

func TestIsVersionConflict(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{
			name: "version conflict error",
			err:  ErrOrderVersionConflict,
			want: true,
		},
		{
			name: "wrapped version conflict error",
			err:  errors.Join(ErrOrderVersionConflict, errors.New("additional context")),
			want: true,
		},
		{
			name: "other error",
			err:  ErrOrderNotFound,
			want: false,
		},
		{
			name: "nil error",
			err:  nil,
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := IsVersionConflict(tt.err)
			if got != tt.want {
				t.Errorf("IsVersionConflict() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestKindOf(t *testing.T) {
	storeDown := errors.New("connection refused")

	tests := []struct {
		name string
		err  error
		want ErrorKind
	}{
		{name: "nil", err: nil, want: KindUnknown},
		{name: "foreign", err: errors.New("boom"), want: KindUnknown},
		{name: "order not found", err: ErrOrderNotFound, want: KindNotFound},
		{name: "wrapped product not found", err: fmt.Errorf("load: %w", ErrProductNotFound), want: KindNotFound},
		{name: "unauthorized", err: ErrUnauthorized, want: KindUnauthorized},
		{name: "invalid transition", err: fmt.Errorf("%w: pending -> dispatched", ErrInvalidTransition), want: KindInvalidTransition},
		{name: "empty items", err: ErrItemsRequired, want: KindValidation},
		{name: "insufficient stock", err: ErrInsufficientStock, want: KindValidation},
		{name: "no address", err: ErrNoAddress, want: KindNoAddress},
		{name: "dependency", err: Dependency("orders.insert", storeDown), want: KindDependency},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := KindOf(tt.err); got != tt.want {
				t.Errorf("KindOf() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDependencyKeepsCause(t *testing.T) {
	cause := errors.New("connection refused")
	err := Dependency("products.get", cause)

	if !errors.Is(err, ErrDependency) {
		t.Fatal("expected ErrDependency")
	}
	if !errors.Is(err, cause) {
		t.Fatal("expected original cause")
	}
	if Dependency("noop", nil) != nil {
		t.Fatal("nil must stay nil")
	}
	if got := Dependency("orders.get", ErrOrderNotFound); got != ErrOrderNotFound {
		t.Fatalf("domain errors must pass through unchanged, got %v", got)
	}
}

func TestUserMessage(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{ErrItemsRequired, "your cart is empty"},
		{ErrInvalidTransition, "could not update order status"},
		{ErrNoAddress, "add an address before fulfilling orders"},
		{Dependency("orders.insert", errors.New("pq: relation \"orders\" does not exist")), "the service is temporarily unavailable, please try again"},
		{nil, ""},
	}

	for _, tt := range tests {
		if got := UserMessage(tt.err); got != tt.want {
			t.Errorf("UserMessage(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}
