package payment

import (
	"context"
	"errors"
	"net/http"

	"github.com/gofrs/uuid"

	"github.com/gospodar-shop/order-service/internal/order"
)

// ErrBadSignature marks a callback whose signature did not verify. The
// webhook handler rejects these explicitly; everything else is acknowledged
// to the provider no matter what happened internally.
var ErrBadSignature = errors.New("payment: callback signature verification failed")

// CallbackResult is the provider-agnostic view of a webhook delivery.
type CallbackResult struct {
	OrderID       uuid.UUID
	Status        ResultStatus
	TransactionID string
	Raw           []byte
}

// Provider abstracts one payment gateway.
//
// CreatePayment registers a payment intent and returns the URL the client is
// redirected to, plus the provider-side payment id when it is known at
// initiation time. Some providers only reveal the id in the callback; they
// return it empty here.
type Provider interface {
	Name() string
	CreatePayment(ctx context.Context, o *order.Order) (redirectURL, externalID string, err error)
	ParseCallback(r *http.Request) (*CallbackResult, error)
}
