package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/chatcommerce/commerce-service/internal/domain"
)

const orderColumns = `id, vendor_id, product_id, product_name, client_phone, client_name, quantity,
               unit_price, total_amount, status, payment_method, payment_reference,
               created_at, updated_at, reserved_at, expires_at, paid_at`

type orderRepository struct {
	pool *pgxpool.Pool
}

// NewOrderRepository instantiates the Postgres order repository.
func NewOrderRepository(pool *pgxpool.Pool) OrderRepository {
	return &orderRepository{pool: pool}
}

func (r *orderRepository) Create(ctx context.Context, order *domain.Order) error {
	const query = `
        INSERT INTO orders (id, vendor_id, product_id, product_name, client_phone, client_name, quantity,
            unit_price, total_amount, status, payment_method, payment_reference, created_at, reserved_at, expires_at, paid_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)
        RETURNING updated_at`
	err := r.pool.QueryRow(ctx, query,
		order.ID,
		order.VendorID,
		order.ProductID,
		order.ProductName,
		order.ClientPhone,
		order.ClientName,
		order.Quantity,
		order.UnitPrice,
		order.TotalAmount,
		order.Status,
		order.PaymentMethod,
		order.PaymentReference,
		order.CreatedAt,
		order.ReservedAt,
		order.ExpiresAt,
		order.PaidAt,
	).Scan(&order.UpdatedAt)
	return translate(err)
}

func (r *orderRepository) GetByID(ctx context.Context, id string) (*domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE id=$1`
	order, err := scanOrder(r.pool.QueryRow(ctx, query, id))
	return order, translate(err)
}

func (r *orderRepository) List(ctx context.Context, filter OrderFilter) ([]domain.Order, error) {
	clauses := []string{"vendor_id=$1"}
	args := []any{filter.VendorID}
	if len(filter.Statuses) > 0 {
		placeholders := make([]string, len(filter.Statuses))
		for i, status := range filter.Statuses {
			args = append(args, status)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("status IN (%s)", strings.Join(placeholders, ",")))
	}

	query := fmt.Sprintf(`SELECT %s FROM orders WHERE %s ORDER BY created_at DESC LIMIT %d OFFSET %d`,
		orderColumns, strings.Join(clauses, " AND "), NormalizeLimit(filter.Limit, 20), max(filter.Offset, 0))
	return r.query(ctx, query, args...)
}

const compareAndSetStatusQuery = `
        UPDATE orders SET status=$1, payment_method=$2, payment_reference=$3, reserved_at=$4, paid_at=$5, updated_at=NOW()
        WHERE id=$6 AND status=$7
        RETURNING updated_at`

func (r *orderRepository) CompareAndSetStatus(ctx context.Context, order *domain.Order, expected domain.OrderStatus) (bool, error) {
	applied, err := compareAndSetStatus(ctx, r.pool, order, expected)
	return applied, translate(err)
}

// TransitionWithStock swaps the order status and locks and rewrites the product
// counters inside one transaction. The order row is always locked before the product row.
func (r *orderRepository) TransitionWithStock(ctx context.Context, order *domain.Order, expected domain.OrderStatus, fn StockMutation) (applied bool, before, after *domain.Product, err error) {
	updatedAt := order.UpdatedAt
	err = pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		ok, err := compareAndSetStatus(ctx, tx, order, expected)
		if err != nil || !ok {
			return err
		}
		before, after, err = mutateStockTx(ctx, tx, order.ProductID, fn)
		if err != nil {
			return err
		}
		applied = true
		return nil
	})
	if err != nil {
		order.UpdatedAt = updatedAt
		return false, nil, nil, translate(err)
	}
	return applied, before, after, nil
}

type queryRower interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func compareAndSetStatus(ctx context.Context, q queryRower, order *domain.Order, expected domain.OrderStatus) (bool, error) {
	err := q.QueryRow(ctx, compareAndSetStatusQuery,
		order.Status,
		order.PaymentMethod,
		order.PaymentReference,
		order.ReservedAt,
		order.PaidAt,
		order.ID,
		expected,
	).Scan(&order.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	return err == nil, err
}

func (r *orderRepository) ListPaidSince(ctx context.Context, vendorID, clientPhone, productID string, since time.Time) ([]domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders
        WHERE vendor_id=$1 AND client_phone=$2 AND product_id=$3 AND status=$4 AND created_at >= $5
        ORDER BY created_at DESC`
	return r.query(ctx, query, vendorID, clientPhone, productID, domain.OrderStatusPaid, since)
}

func (r *orderRepository) ListExpirable(ctx context.Context, now time.Time, limit int) ([]domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders
        WHERE status IN ($1,$2) AND expires_at IS NOT NULL AND expires_at < $3
        ORDER BY expires_at ASC LIMIT $4`
	return r.query(ctx, query, domain.OrderStatusPending, domain.OrderStatusReserved, now, NormalizeLimit(limit, 500))
}

func (r *orderRepository) query(ctx context.Context, query string, args ...any) ([]domain.Order, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, translate(err)
	}
	defer rows.Close()

	var result []domain.Order
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *order)
	}
	return result, rows.Err()
}

func scanOrder(row pgx.Row) (*domain.Order, error) {
	var order domain.Order
	if err := row.Scan(
		&order.ID,
		&order.VendorID,
		&order.ProductID,
		&order.ProductName,
		&order.ClientPhone,
		&order.ClientName,
		&order.Quantity,
		&order.UnitPrice,
		&order.TotalAmount,
		&order.Status,
		&order.PaymentMethod,
		&order.PaymentReference,
		&order.CreatedAt,
		&order.UpdatedAt,
		&order.ReservedAt,
		&order.ExpiresAt,
		&order.PaidAt,
	); err != nil {
		return nil, err
	}
	return &order, nil
}

type orderAuditRepository struct {
	pool *pgxpool.Pool
}

// NewOrderAuditRepository instantiates the Postgres order audit repository.
func NewOrderAuditRepository(pool *pgxpool.Pool) OrderAuditRepository {
	return &orderAuditRepository{pool: pool}
}

func (r *orderAuditRepository) Create(ctx context.Context, entry *domain.OrderAuditLog) error {
	const query = `
        INSERT INTO order_audit_logs (id, order_id, vendor_id, action, previous_status, new_status, changed_by)
        VALUES ($1,$2,$3,$4,$5,$6,$7)
        RETURNING created_at`
	err := r.pool.QueryRow(ctx, query,
		entry.ID,
		entry.OrderID,
		entry.VendorID,
		entry.Action,
		entry.PreviousStatus,
		entry.NewStatus,
		entry.ChangedBy,
	).Scan(&entry.CreatedAt)
	return translate(err)
}

func (r *orderAuditRepository) ListByOrder(ctx context.Context, orderID string) ([]domain.OrderAuditLog, error) {
	const query = `
        SELECT id, order_id, vendor_id, action, previous_status, new_status, changed_by, created_at
        FROM order_audit_logs WHERE order_id=$1 ORDER BY created_at ASC`
	rows, err := r.pool.Query(ctx, query, orderID)
	if err != nil {
		return nil, translate(err)
	}
	defer rows.Close()

	var result []domain.OrderAuditLog
	for rows.Next() {
		var entry domain.OrderAuditLog
		if err := rows.Scan(
			&entry.ID,
			&entry.OrderID,
			&entry.VendorID,
			&entry.Action,
			&entry.PreviousStatus,
			&entry.NewStatus,
			&entry.ChangedBy,
			&entry.CreatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, entry)
	}
	return result, rows.Err()
}
