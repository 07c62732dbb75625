package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/vladislavdragonenkov/marketplace/internal/domain"
)

const orderColumns = `o.id, o.buyer_id, o.address_id, o.status, o.total, o.payment_method,
	o.payment_status, o.version, o.created_at, o.updated_at`

type orderRepository struct {
	db *sql.DB
}

// NewOrderRepository создаёт PostgreSQL-реализацию OrderRepository.
func NewOrderRepository(store *Store) domain.OrderRepository {
	return &orderRepository{db: store.DB()}
}

// Create пишет заказ и позиции одной транзакцией.
func (r *orderRepository) Create(ctx context.Context, order domain.Order) error {
	ctx, cancel := opContext(ctx)
	defer cancel()

	return withTx(ctx, r.db, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO orders (
				id, buyer_id, address_id, status, total, payment_method,
				payment_status, version, created_at, updated_at
			) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		`,
			order.ID, order.BuyerID, order.AddressID, string(order.Status), order.Total,
			order.PaymentMethod, string(order.PaymentStatus), order.Version, order.CreatedAt, order.UpdatedAt,
		)
		if err != nil {
			if isUniqueViolation(err) {
				return domain.ErrOrderVersionConflict
			}
			return fmt.Errorf("insert order: %w", err)
		}

		insertItem, err := tx.PrepareContext(ctx, `
			INSERT INTO order_items (id, order_id, product_id, quantity, unit_price, product_name, seller_id, created_at)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		`)
		if err != nil {
			return fmt.Errorf("prepare order item insert: %w", err)
		}
		defer insertItem.Close()

		for _, item := range order.Items {
			if _, err := insertItem.ExecContext(ctx,
				item.ID, order.ID, item.ProductID, item.Quantity, item.UnitPrice,
				item.ProductName, item.SellerID, item.CreatedAt,
			); err != nil {
				return fmt.Errorf("insert order item %s: %w", item.ProductID, err)
			}
		}
		return nil
	})
}

func (r *orderRepository) Get(ctx context.Context, id string) (domain.Order, error) {
	orders, err := r.list(ctx, `SELECT `+orderColumns+` FROM orders o WHERE o.id = $1`, id)
	if err != nil {
		return domain.Order{}, err
	}
	if len(orders) == 0 {
		return domain.Order{}, domain.ErrOrderNotFound
	}
	return orders[0], nil
}

func (r *orderRepository) ListByBuyer(ctx context.Context, buyerID string, limit int) ([]domain.Order, error) {
	return r.list(ctx, `
		SELECT `+orderColumns+`
		FROM orders o
		WHERE o.buyer_id = $1
		ORDER BY o.created_at DESC, o.id DESC`+limitClause(limit), buyerID)
}

// ListBySeller ищет заказы только по order_items.seller_id.
func (r *orderRepository) ListBySeller(ctx context.Context, sellerID string, limit int) ([]domain.Order, error) {
	return r.list(ctx, `
		SELECT `+orderColumns+`
		FROM orders o
		WHERE EXISTS (
			SELECT 1 FROM order_items i WHERE i.order_id = o.id AND i.seller_id = $1
		)
		ORDER BY o.created_at DESC, o.id DESC`+limitClause(limit), sellerID)
}

// list читает заказы, затем одним запросом подгружает их позиции.
func (r *orderRepository) list(ctx context.Context, query string, args ...any) ([]domain.Order, error) {
	ctx, cancel := opContext(ctx)
	defer cancel()

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query orders: %w", err)
	}
	defer rows.Close()

	orders := []domain.Order{}
	index := map[string]int{}
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		index[order.ID] = len(orders)
		orders = append(orders, order)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate orders: %w", err)
	}
	if len(orders) == 0 {
		return orders, nil
	}

	ids := make([]string, len(orders))
	for i, o := range orders {
		ids[i] = o.ID
		orders[i].Items = []domain.OrderItem{}
	}
	items, err := r.loadItems(ctx, ids)
	if err != nil {
		return nil, err
	}
	for _, item := range items {
		i := index[item.OrderID]
		orders[i].Items = append(orders[i].Items, item)
	}
	return orders, nil
}

// Save меняет статус и оплату при совпадении версии. Позиции и итог неизменны.
func (r *orderRepository) Save(ctx context.Context, order domain.Order) error {
	ctx, cancel := opContext(ctx)
	defer cancel()

	return withTx(ctx, r.db, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			UPDATE orders
			SET status = $3, payment_status = $4, version = version + 1, updated_at = $5
			WHERE id = $1 AND version = $2
		`, order.ID, order.Version, string(order.Status), string(order.PaymentStatus), order.UpdatedAt)
		if err != nil {
			return fmt.Errorf("update order %s: %w", order.ID, err)
		}
		if n, err := res.RowsAffected(); err != nil {
			return fmt.Errorf("rows affected: %w", err)
		} else if n == 1 {
			return nil
		}

		// версия не совпала либо заказа нет
		exists, err := orderExistsTx(ctx, tx, order.ID)
		switch {
		case err != nil:
			return err
		case !exists:
			return domain.ErrOrderNotFound
		default:
			return domain.ErrOrderVersionConflict
		}
	})
}

func (r *orderRepository) loadItems(ctx context.Context, orderIDs []string) ([]domain.OrderItem, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, order_id, product_id, quantity, unit_price, product_name, seller_id, created_at
		FROM order_items
		WHERE order_id = ANY($1)
		ORDER BY created_at, id
	`, orderIDs)
	if err != nil {
		return nil, fmt.Errorf("query order items: %w", err)
	}
	defer rows.Close()

	var items []domain.OrderItem
	for rows.Next() {
		var item domain.OrderItem
		if err := rows.Scan(
			&item.ID, &item.OrderID, &item.ProductID, &item.Quantity, &item.UnitPrice,
			&item.ProductName, &item.SellerID, &item.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan order item: %w", err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func scanOrder(row rowScanner) (domain.Order, error) {
	var (
		order         domain.Order
		status        string
		paymentStatus string
	)
	if err := row.Scan(
		&order.ID, &order.BuyerID, &order.AddressID, &status, &order.Total, &order.PaymentMethod,
		&paymentStatus, &order.Version, &order.CreatedAt, &order.UpdatedAt,
	); err != nil {
		return domain.Order{}, err
	}
	order.Status = domain.OrderStatus(status)
	order.PaymentStatus = domain.PaymentStatus(paymentStatus)
	return order, nil
}

func orderExistsTx(ctx context.Context, tx *sql.Tx, orderID string) (bool, error) {
	var exists bool
	if err := tx.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM orders WHERE id = $1)`, orderID).Scan(&exists); err != nil {
		return false, fmt.Errorf("check order %s exists: %w", orderID, err)
	}
	return exists, nil
}

var _ domain.OrderRepository = (*orderRepository)(nil)
