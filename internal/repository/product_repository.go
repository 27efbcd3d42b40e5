package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/chatcommerce/commerce-service/internal/domain"
)

const productColumns = `id, vendor_id, keyword, name, price, stock, reserved_stock, active, created_at, updated_at`

type productRepository struct {
	pool *pgxpool.Pool
}

// NewProductRepository instantiates the Postgres product repository.
func NewProductRepository(pool *pgxpool.Pool) ProductRepository {
	return &productRepository{pool: pool}
}

func (r *productRepository) Create(ctx context.Context, product *domain.Product) error {
	const query = `
        INSERT INTO products (id, vendor_id, keyword, name, price, stock, reserved_stock, active)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
        RETURNING created_at, updated_at`
	err := r.pool.QueryRow(ctx, query,
		product.ID,
		product.VendorID,
		product.Keyword,
		product.Name,
		product.Price,
		product.Stock,
		product.ReservedStock,
		product.Active,
	).Scan(&product.CreatedAt, &product.UpdatedAt)
	return translate(err)
}

func (r *productRepository) Update(ctx context.Context, product *domain.Product) error {
	const query = `
        UPDATE products SET keyword=$1, name=$2, price=$3, active=$4, updated_at=NOW()
        WHERE id=$5
        RETURNING updated_at`
	err := r.pool.QueryRow(ctx, query,
		product.Keyword,
		product.Name,
		product.Price,
		product.Active,
		product.ID,
	).Scan(&product.UpdatedAt)
	return translate(err)
}

func (r *productRepository) GetByID(ctx context.Context, id string) (*domain.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE id=$1`
	product, err := scanProduct(r.pool.QueryRow(ctx, query, id))
	return product, translate(err)
}

func (r *productRepository) GetByKeyword(ctx context.Context, vendorID, keyword string) (*domain.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE vendor_id=$1 AND keyword=$2`
	product, err := scanProduct(r.pool.QueryRow(ctx, query, vendorID, domain.NormalizeKeyword(keyword)))
	return product, translate(err)
}

func (r *productRepository) ListByVendor(ctx context.Context, vendorID string, limit, offset int) ([]domain.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE vendor_id=$1 ORDER BY name ASC LIMIT $2 OFFSET $3`
	rows, err := r.pool.Query(ctx, query, vendorID, NormalizeLimit(limit, 50), max(offset, 0))
	if err != nil {
		return nil, translate(err)
	}
	defer rows.Close()

	var result []domain.Product
	for rows.Next() {
		product, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *product)
	}
	return result, rows.Err()
}

// MutateStock locks the product row, applies fn and writes the counters back in one transaction.
func (r *productRepository) MutateStock(ctx context.Context, productID string, fn StockMutation) (before, after *domain.Product, err error) {
	err = pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		before, after, err = mutateStockTx(ctx, tx, productID, fn)
		return err
	})
	if err != nil {
		return nil, nil, translate(err)
	}
	return before, after, nil
}

func mutateStockTx(ctx context.Context, tx pgx.Tx, productID string, fn StockMutation) (before, after *domain.Product, err error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE id=$1 FOR UPDATE`
	current, err := scanProduct(tx.QueryRow(ctx, query, productID))
	if err != nil {
		return nil, nil, err
	}
	snapshot := *current
	if err := fn(current); err != nil {
		return nil, nil, err
	}

	const update = `
        UPDATE products SET stock=$1, reserved_stock=$2, updated_at=NOW()
        WHERE id=$3
        RETURNING updated_at`
	if err := tx.QueryRow(ctx, update, current.Stock, current.ReservedStock, current.ID).Scan(&current.UpdatedAt); err != nil {
		return nil, nil, err
	}
	return &snapshot, current, nil
}

func scanProduct(row pgx.Row) (*domain.Product, error) {
	var product domain.Product
	if err := row.Scan(
		&product.ID,
		&product.VendorID,
		&product.Keyword,
		&product.Name,
		&product.Price,
		&product.Stock,
		&product.ReservedStock,
		&product.Active,
		&product.CreatedAt,
		&product.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &product, nil
}
