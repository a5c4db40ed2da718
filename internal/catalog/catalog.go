// Package catalog is the product lookup collaborator. The core takes
// price and seller from it at order creation and does not own them.
package catalog

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Product carries the fields order placement needs.
type Product struct {
	ID       string
	SellerID string
	Title    string
	Price    int64
}

// Catalog resolves products by id.
type Catalog interface {
	Get(ctx context.Context, productID string) (Product, bool, error)
}

// PostgresCatalog reads products from PostgreSQL.
type PostgresCatalog struct {
	db *pgxpool.Pool
}

// NewPostgresCatalog builds a catalog backed by PostgreSQL.
func NewPostgresCatalog(db *pgxpool.Pool) *PostgresCatalog {
	return &PostgresCatalog{db: db}
}

func (c *PostgresCatalog) Get(ctx context.Context, productID string) (Product, bool, error) {
	row := c.db.QueryRow(ctx, `SELECT id, seller_id, title, price FROM products WHERE id = $1`, productID)
	var p Product
	if err := row.Scan(&p.ID, &p.SellerID, &p.Title, &p.Price); err != nil {
		if err == pgx.ErrNoRows {
			return Product{}, false, nil
		}
		return Product{}, false, err
	}
	return p, true, nil
}
