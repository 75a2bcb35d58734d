package order

import (
	"time"

	"github.com/gofrs/uuid"
)

type Status string

const (
	StatusNewOrder   Status = "new_order"
	StatusProcessing Status = "processing"
	StatusConfirmed  Status = "confirmed"
	StatusPaid       Status = "paid"
	StatusShipped    Status = "shipped"
	StatusCompleted  Status = "completed"
	StatusCancelled  Status = "cancelled"
	StatusReturned   Status = "returned"
)

func (s Status) String() string {
	return string(s)
}

// pipelineRank orders the canonical fulfilment pipeline. Statuses outside the
// pipeline (cancelled, returned) have no rank.
var pipelineRank = map[Status]int{
	StatusNewOrder:   0,
	StatusProcessing: 1,
	StatusConfirmed:  2,
	StatusPaid:       3,
	StatusShipped:    4,
	StatusCompleted:  5,
}

// Rank returns the position of s in the fulfilment pipeline and whether s is
// part of the pipeline at all.
func (s Status) Rank() (int, bool) {
	r, ok := pipelineRank[s]
	return r, ok
}

// IsTerminal reports whether no further transitions are expected from s.
// completed is terminal for everyone except an admin-initiated return.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusCancelled || s == StatusReturned
}

type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "pending"
	PaymentPaid     PaymentStatus = "paid"
	PaymentPartial  PaymentStatus = "partial"
	PaymentRefunded PaymentStatus = "refunded"
)

type ClientType string

const (
	ClientRetail    ClientType = "retail"
	ClientWholesale ClientType = "wholesale"
)

type PaymentMethod string

const (
	PaymentMethodOnline PaymentMethod = "online"
	PaymentMethodCash   PaymentMethod = "cash_on_delivery"
)

// ChangeSource tags a status-history row with who triggered the transition.
type ChangeSource string

const (
	SourceAdmin  ChangeSource = "admin"
	SourceClient ChangeSource = "client_action"
	SourceCron   ChangeSource = "cron"
	SourceSystem ChangeSource = "system"
)

type Item struct {
	ID           uuid.UUID `json:"id" db:"id"`
	OrderID      uuid.UUID `json:"order_id" db:"order_id"`
	ProductID    uuid.UUID `json:"product_id" db:"product_id"`
	ProductName  string    `json:"product_name" db:"product_name"`
	Quantity     int       `json:"quantity" db:"quantity"`
	PricePerUnit float64   `json:"price_per_unit" db:"price_per_unit"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}

// StatusHistory is an append-only audit record of a single status change.
type StatusHistory struct {
	ID        uuid.UUID    `json:"id" db:"id"`
	OrderID   uuid.UUID    `json:"order_id" db:"order_id"`
	OldStatus *Status      `json:"old_status" db:"old_status"` // nil for the initial row at checkout
	NewStatus Status       `json:"new_status" db:"new_status"`
	Source    ChangeSource `json:"change_source" db:"change_source"`
	Comment   string       `json:"comment,omitempty" db:"comment"`
	CreatedAt time.Time    `json:"created_at" db:"created_at"`
}

type Order struct {
	ID              uuid.UUID     `json:"id" db:"id"`
	OrderNumber     string        `json:"order_number" db:"order_number"`
	UserID          uuid.UUID     `json:"user_id" db:"user_id"`
	Status          Status        `json:"status" db:"status"`
	ClientType      ClientType    `json:"client_type" db:"client_type"`
	Items           []Item        `json:"items" db:"-"`
	TotalAmount     float64       `json:"total_amount" db:"total_amount"`
	DiscountAmount  float64       `json:"discount_amount" db:"discount_amount"`
	DeliveryCost    float64       `json:"delivery_cost" db:"delivery_cost"`
	ContactName     string        `json:"contact_name" db:"contact_name"`
	ContactPhone    string        `json:"contact_phone" db:"contact_phone"`
	ContactEmail    string        `json:"contact_email" db:"contact_email"`
	DeliveryMethod  string        `json:"delivery_method" db:"delivery_method"`
	DeliveryCity    string        `json:"delivery_city" db:"delivery_city"`
	DeliveryAddress string        `json:"delivery_address" db:"delivery_address"`
	TrackingNumber  *string       `json:"tracking_number,omitempty" db:"tracking_number"`
	PaymentMethod   PaymentMethod `json:"payment_method" db:"payment_method"`
	PaymentStatus   PaymentStatus `json:"payment_status" db:"payment_status"`
	Comment         string        `json:"comment,omitempty" db:"comment"`
	ManagerComment  string        `json:"manager_comment,omitempty" db:"manager_comment"`
	CancelledReason string        `json:"cancelled_reason,omitempty" db:"cancelled_reason"`
	CancelledBy     string        `json:"cancelled_by,omitempty" db:"cancelled_by"`
	CreatedAt       time.Time     `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time     `json:"updated_at" db:"updated_at"`
}

// ItemsTotal sums the snapshotted line prices without discount or delivery.
func (o *Order) ItemsTotal() float64 {
	total := 0.0
	for _, it := range o.Items {
		total += float64(it.Quantity) * it.PricePerUnit
	}
	return total
}

// RecomputeTotal refreshes TotalAmount from the current items, discount and
// delivery cost.
func (o *Order) RecomputeTotal() {
	o.TotalAmount = o.ItemsTotal() - o.DiscountAmount + o.DeliveryCost
}
