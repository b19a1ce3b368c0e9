// internal/catalog/catalog.go
package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"

	"wallet-ledger/internal/util"

	"github.com/jmoiron/sqlx"
)

// StockCatalog reports the total stock of a product. Reservations are
// checked against it; the catalog itself is never decremented here.
type StockCatalog interface {
	AvailableStock(ctx context.Context, productID int64) (int64, error)
}

// PostgresCatalog reads products.stock.
type PostgresCatalog struct {
	db *sqlx.DB
}

// NewPostgresCatalog creates a PostgresCatalog.
func NewPostgresCatalog(db *sqlx.DB) *PostgresCatalog {
	return &PostgresCatalog{db: db}
}

func (c *PostgresCatalog) AvailableStock(ctx context.Context, productID int64) (int64, error) {
	var stock int64
	if err := c.db.GetContext(ctx, &stock, `SELECT stock FROM products WHERE id = $1`, productID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, util.ErrNotFound
		}
		return 0, fmt.Errorf("failed to read stock of product %d: %w", productID, err)
	}
	return stock, nil
}

// StaticCatalog is an in-memory catalog for tests and local runs.
type StaticCatalog struct {
	mu    sync.RWMutex
	stock map[int64]int64
}

// NewStaticCatalog creates a catalog seeded with stock.
func NewStaticCatalog(stock map[int64]int64) *StaticCatalog {
	c := &StaticCatalog{stock: make(map[int64]int64, len(stock))}
	for id, qty := range stock {
		c.stock[id] = qty
	}
	return c
}

// SetStock sets the stock of a product.
func (c *StaticCatalog) SetStock(productID, qty int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stock[productID] = qty
}

func (c *StaticCatalog) AvailableStock(_ context.Context, productID int64) (int64, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	qty, ok := c.stock[productID]
	if !ok {
		return 0, util.ErrNotFound
	}
	return qty, nil
}
