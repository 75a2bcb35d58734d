package payment

import (
	"fmt"
	"time"

	"github.com/gofrs/uuid"
)

// ResultStatus is the internal view of what a provider reported.
type ResultStatus string

const (
	ResultSuccess    ResultStatus = "success"
	ResultFailure    ResultStatus = "failure"
	ResultProcessing ResultStatus = "processing"
)

type Payment struct {
	ID         uuid.UUID    `json:"id" db:"id"`
	OrderID    uuid.UUID    `json:"order_id" db:"order_id"`
	Provider   string       `json:"provider" db:"provider"`
	ExternalID string       `json:"external_payment_id" db:"external_payment_id"`
	Status     ResultStatus `json:"status" db:"status"`
	RawPayload []byte       `json:"-" db:"raw_payload"`
	CreatedAt  time.Time    `json:"created_at" db:"created_at"`
	UpdatedAt  time.Time    `json:"updated_at" db:"updated_at"`
}

// Error is a user-facing payment error, mapped to a 4xx response.
type Error struct {
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

func NewError(format string, args ...any) *Error {
	return &Error{Message: fmt.Sprintf(format, args...)}
}
