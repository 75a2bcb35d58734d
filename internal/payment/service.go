package payment

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gofrs/uuid"
	"github.com/rs/zerolog/log"

	"github.com/gospodar-shop/order-service/internal/notify"
	"github.com/gospodar-shop/order-service/internal/order"
)

var ErrUnsupportedProvider = &Error{Message: "unsupported payment provider"}

type Service interface {
	Initiate(ctx context.Context, userID, orderID uuid.UUID, providerName string, staff bool) (string, error)
	HandleCallback(ctx context.Context, providerName string, r *http.Request) error
}

type service struct {
	repo      Repository
	orders    order.Repository
	providers map[string]Provider
	notifier  notify.Notifier
}

func NewService(repo Repository, orders order.Repository, notifier notify.Notifier, providers ...Provider) Service {
	byName := make(map[string]Provider, len(providers))
	for _, p := range providers {
		byName[p.Name()] = p
	}
	return &service{repo: repo, orders: orders, providers: byName, notifier: notifier}
}

// Initiate starts an online payment for the order and returns the provider
// redirect URL. The order must belong to the requesting user (staff bypasses
// the ownership check), use an online payment method, and not be paid yet.
func (s *service) Initiate(ctx context.Context, userID, orderID uuid.UUID, providerName string, staff bool) (string, error) {
	provider, ok := s.providers[providerName]
	if !ok {
		return "", ErrUnsupportedProvider
	}

	o, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, order.ErrNotFound) {
			return "", order.ErrNotFound
		}
		return "", fmt.Errorf("service: failed to load order for payment: %w", err)
	}
	if !staff && o.UserID != userID {
		return "", NewError("order does not belong to the current user")
	}
	if o.PaymentMethod != order.PaymentMethodOnline {
		return "", NewError("order %s is not payable online", o.OrderNumber)
	}

	paid, err := s.repo.HasPaid(ctx, orderID)
	if err != nil {
		return "", fmt.Errorf("service: failed to check existing payments: %w", err)
	}
	if paid || o.PaymentStatus == order.PaymentPaid {
		return "", NewError("order %s is already paid", o.OrderNumber)
	}

	redirectURL, externalID, err := provider.CreatePayment(ctx, o)
	if err != nil {
		log.Error().Err(err).Stringer("order_id", orderID).Str("provider", providerName).Msg("service: payment initiation failed")
		return "", fmt.Errorf("service: failed to initiate payment: %w", err)
	}

	if externalID != "" {
		if err := s.repo.RecordInitiated(ctx, orderID, providerName, externalID); err != nil {
			log.Error().Err(err).Stringer("order_id", orderID).Str("provider", providerName).Msg("service: failed to record initiated payment")
			return "", fmt.Errorf("service: failed to record payment: %w", err)
		}
	}

	log.Info().Stringer("order_id", orderID).Str("provider", providerName).Msg("payment initiated")
	return redirectURL, nil
}

// HandleCallback verifies and applies one webhook delivery. ErrBadSignature
// is the only error the handler surfaces to the provider; any other failure
// is internal and still acknowledged upstream.
func (s *service) HandleCallback(ctx context.Context, providerName string, r *http.Request) error {
	provider, ok := s.providers[providerName]
	if !ok {
		return ErrUnsupportedProvider
	}

	res, err := provider.ParseCallback(r)
	if err != nil {
		if errors.Is(err, ErrBadSignature) {
			log.Warn().Str("provider", providerName).Msg("service: webhook signature verification failed")
			return ErrBadSignature
		}
		return fmt.Errorf("service: failed to parse %s callback: %w", providerName, err)
	}

	outcome, err := s.repo.Reconcile(ctx, providerName, res)
	if err != nil {
		return fmt.Errorf("service: failed to reconcile %s payment %s: %w", providerName, res.TransactionID, err)
	}

	if !outcome.Applied {
		log.Info().
			Str("provider", providerName).
			Str("external_id", res.TransactionID).
			Str("status", string(res.Status)).
			Msg("duplicate or unmatched webhook delivery ignored")
		return nil
	}

	log.Info().
		Str("provider", providerName).
		Stringer("order_id", res.OrderID).
		Str("external_id", res.TransactionID).
		Str("status", string(res.Status)).
		Msg("payment reconciled")

	if t := outcome.Advanced; t != nil {
		go func() {
			nctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			e := notify.Event{
				OrderID:     t.OrderID,
				OrderNumber: t.OrderNumber,
				UserID:      t.UserID,
				OldStatus:   string(t.From),
				NewStatus:   string(t.To),
				At:          time.Now().UTC(),
			}
			if err := s.notifier.OrderStatusChanged(nctx, e); err != nil {
				log.Warn().Err(err).Stringer("order_id", t.OrderID).Msg("service: failed to send payment notification")
			}
		}()
	}
	return nil
}
