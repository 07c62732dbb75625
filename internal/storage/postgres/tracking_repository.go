package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/vladislavdragonenkov/marketplace/internal/domain"
)

type trackingRepository struct {
	db *sql.DB
}

// NewTrackingRepository создаёт PostgreSQL-реализацию TrackingRepository.
// Уникальность записи на заказ держит ограничение UNIQUE(order_id).
func NewTrackingRepository(store *Store) domain.TrackingRepository {
	return &trackingRepository{db: store.DB()}
}

func (r *trackingRepository) Create(ctx context.Context, t domain.LogisticsTracking) error {
	ctx, cancel := opContext(ctx)
	defer cancel()

	start, err := json.Marshal(t.StartLocation)
	if err != nil {
		return fmt.Errorf("marshal start location: %w", err)
	}
	end, err := json.Marshal(t.EndLocation)
	if err != nil {
		return fmt.Errorf("marshal end location: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO logistics_tracking (
			id, order_id, start_location, end_location, status, created_by, created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`, t.ID, t.OrderID, start, end, string(t.Status), t.CreatedBy, t.CreatedAt, t.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrTrackingExists
		}
		return fmt.Errorf("insert logistics tracking: %w", err)
	}
	return nil
}

func (r *trackingRepository) GetByOrder(ctx context.Context, orderID string) (domain.LogisticsTracking, error) {
	ctx, cancel := opContext(ctx)
	defer cancel()

	var (
		t          domain.LogisticsTracking
		status     string
		start, end []byte
	)
	err := r.db.QueryRowContext(ctx, `
		SELECT id, order_id, start_location, end_location, status, created_by, created_at, updated_at
		FROM logistics_tracking
		WHERE order_id = $1
	`, orderID).Scan(&t.ID, &t.OrderID, &start, &end, &status, &t.CreatedBy, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.LogisticsTracking{}, domain.ErrTrackingNotFound
		}
		return domain.LogisticsTracking{}, fmt.Errorf("select logistics tracking: %w", err)
	}
	if err := json.Unmarshal(start, &t.StartLocation); err != nil {
		return domain.LogisticsTracking{}, fmt.Errorf("decode start location: %w", err)
	}
	if err := json.Unmarshal(end, &t.EndLocation); err != nil {
		return domain.LogisticsTracking{}, fmt.Errorf("decode end location: %w", err)
	}
	t.Status = domain.TrackingStatus(status)
	return t, nil
}

// UpdateStatus не трогает снимки адресов.
func (r *trackingRepository) UpdateStatus(ctx context.Context, orderID string, status domain.TrackingStatus, at time.Time) error {
	ctx, cancel := opContext(ctx)
	defer cancel()

	res, err := r.db.ExecContext(ctx, `
		UPDATE logistics_tracking SET status = $2, updated_at = $3 WHERE order_id = $1
	`, orderID, string(status), at)
	if err != nil {
		return fmt.Errorf("update logistics tracking: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return domain.ErrTrackingNotFound
	}
	return nil
}

func (r *trackingRepository) DeleteByOrder(ctx context.Context, orderID string) (bool, error) {
	ctx, cancel := opContext(ctx)
	defer cancel()

	res, err := r.db.ExecContext(ctx, `DELETE FROM logistics_tracking WHERE order_id = $1`, orderID)
	if err != nil {
		return false, fmt.Errorf("delete logistics tracking: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}

var _ domain.TrackingRepository = (*trackingRepository)(nil)
