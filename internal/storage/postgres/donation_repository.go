package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/vladislavdragonenkov/marketplace/internal/domain"
)

const donationColumns = `id, product_id, seller_id, requester_id, quantity, note, status, created_at, updated_at`

type donationRepository struct {
	db *sql.DB
}

// NewDonationRepository создаёт PostgreSQL-реализацию DonationRepository.
func NewDonationRepository(store *Store) domain.DonationRepository {
	return &donationRepository{db: store.DB()}
}

func (r *donationRepository) Create(ctx context.Context, req domain.DonationRequest) error {
	ctx, cancel := opContext(ctx)
	defer cancel()

	if _, err := r.db.ExecContext(ctx, `
		INSERT INTO donation_requests (`+donationColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
	`,
		req.ID, req.ProductID, req.SellerID, req.RequesterID, req.Quantity, req.Note,
		string(req.Status), req.CreatedAt, req.UpdatedAt,
	); err != nil {
		return fmt.Errorf("insert donation request: %w", err)
	}
	return nil
}

func (r *donationRepository) ListByRequester(ctx context.Context, requesterID string) ([]domain.DonationRequest, error) {
	return r.list(ctx, `SELECT `+donationColumns+` FROM donation_requests
		WHERE requester_id = $1 ORDER BY created_at DESC, id DESC`, requesterID)
}

func (r *donationRepository) ListBySeller(ctx context.Context, sellerID string) ([]domain.DonationRequest, error) {
	return r.list(ctx, `SELECT `+donationColumns+` FROM donation_requests
		WHERE seller_id = $1 ORDER BY created_at DESC, id DESC`, sellerID)
}

func (r *donationRepository) list(ctx context.Context, query string, args ...any) ([]domain.DonationRequest, error) {
	ctx, cancel := opContext(ctx)
	defer cancel()

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list donation requests: %w", err)
	}
	defer rows.Close()

	result := make([]domain.DonationRequest, 0)
	for rows.Next() {
		var (
			req    domain.DonationRequest
			status string
		)
		if err := rows.Scan(
			&req.ID, &req.ProductID, &req.SellerID, &req.RequesterID, &req.Quantity, &req.Note,
			&status, &req.CreatedAt, &req.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan donation request: %w", err)
		}
		req.Status = domain.DonationStatus(status)
		result = append(result, req)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate donation requests: %w", err)
	}
	return result, nil
}

var _ domain.DonationRepository = (*donationRepository)(nil)
