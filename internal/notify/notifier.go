// Package notify publishes best-effort order notifications. Delivery to the
// client (email/Telegram/Viber) happens in a separate consumer; a failed
// publish is logged and never fails the triggering operation.
package notify

import (
	"context"
	"time"

	"github.com/gofrs/uuid"
)

type Event struct {
	OrderID     uuid.UUID `json:"order_id"`
	OrderNumber string    `json:"order_number"`
	UserID      uuid.UUID `json:"user_id"`
	OldStatus   string    `json:"old_status,omitempty"`
	NewStatus   string    `json:"new_status"`
	At          time.Time `json:"at"`
}

type Notifier interface {
	OrderStatusChanged(ctx context.Context, e Event) error
}

// Nop discards events; used in tests and when Kafka is not configured.
type Nop struct{}

func (Nop) OrderStatusChanged(context.Context, Event) error { return nil }
