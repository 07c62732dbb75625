package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/vladislavdragonenkov/marketplace/internal/domain"
)

const productColumns = `id, seller_id, name, price, category, available_quantity, in_stock,
	perishable, expiry_date, priority, created_at, updated_at`

type productRepository struct {
	db *sql.DB
}

// NewProductRepository создаёт PostgreSQL-реализацию ProductRepository.
func NewProductRepository(store *Store) domain.ProductRepository {
	return &productRepository{db: store.DB()}
}

func (r *productRepository) Create(ctx context.Context, p domain.Product) error {
	ctx, cancel := opContext(ctx)
	defer cancel()

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO products (`+productColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
	`,
		p.ID, p.SellerID, p.Name, p.Price, p.Category, p.AvailableQuantity, p.AvailableQuantity > 0,
		p.Perishable, p.ExpiryDate, p.Priority, p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert product: %w", err)
	}
	return nil
}

func (r *productRepository) Get(ctx context.Context, id string) (domain.Product, error) {
	ctx, cancel := opContext(ctx)
	defer cancel()

	row := r.db.QueryRowContext(ctx, `SELECT `+productColumns+` FROM products WHERE id = $1`, id)
	return scanProduct(row)
}

// DecrementFloor списывает остаток одним UPDATE: GREATEST держит пол в нуле,
// in_stock пересчитывается в том же выражении.
func (r *productRepository) DecrementFloor(ctx context.Context, id string, amount int) (domain.Product, error) {
	ctx, cancel := opContext(ctx)
	defer cancel()

	row := r.db.QueryRowContext(ctx, `
		UPDATE products
		SET available_quantity = GREATEST(available_quantity - $2, 0),
		    in_stock = GREATEST(available_quantity - $2, 0) > 0,
		    updated_at = $3
		WHERE id = $1
		RETURNING `+productColumns,
		id, amount, time.Now().UTC(),
	)
	return scanProduct(row)
}

func (r *productRepository) Increment(ctx context.Context, id string, amount int) (domain.Product, error) {
	ctx, cancel := opContext(ctx)
	defer cancel()

	row := r.db.QueryRowContext(ctx, `
		UPDATE products
		SET available_quantity = available_quantity + $2,
		    in_stock = available_quantity + $2 > 0,
		    updated_at = $3
		WHERE id = $1
		RETURNING `+productColumns,
		id, amount, time.Now().UTC(),
	)
	return scanProduct(row)
}

func scanProduct(row rowScanner) (domain.Product, error) {
	var p domain.Product
	err := row.Scan(
		&p.ID, &p.SellerID, &p.Name, &p.Price, &p.Category, &p.AvailableQuantity, &p.InStock,
		&p.Perishable, &p.ExpiryDate, &p.Priority, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Product{}, domain.ErrProductNotFound
		}
		return domain.Product{}, fmt.Errorf("scan product: %w", err)
	}
	return p, nil
}

var _ domain.ProductRepository = (*productRepository)(nil)
