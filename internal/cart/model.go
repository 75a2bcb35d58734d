package cart

import (
	"time"

	"github.com/gofrs/uuid"
)

// Line is a cart item joined with the current product data. Prices here are
// live; snapshotting happens at checkout.
type Line struct {
	ProductID      uuid.UUID `json:"product_id"`
	ProductName    string    `json:"product_name"`
	Quantity       int       `json:"quantity"`
	Price          float64   `json:"price"`
	WholesalePrice float64   `json:"wholesale_price"`
	Stock          int       `json:"stock"`
	Active         bool      `json:"active"`
	AddedAt        time.Time `json:"added_at"`
}
