// Package janitor holds the periodic maintenance jobs: stale-order
// auto-cancel, shipment auto-tracking, and cart/token cleanup. Every job is
// idempotent and reports how many rows it affected; a failure on one item
// never aborts the rest of the batch.
package janitor

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/gospodar-shop/order-service/internal/cart"
	"github.com/gospodar-shop/order-service/internal/order"
	"github.com/gospodar-shop/order-service/internal/shipping"
	"github.com/gospodar-shop/order-service/internal/token"
)

type Config struct {
	AutoCancelAfter time.Duration
	AutoTrackPage   int
	CartTTL         time.Duration
	CarrierTimeout  time.Duration
}

type Janitor struct {
	cfg     Config
	orders  order.Service
	repo    order.Repository
	carrier shipping.Carrier
	carts   cart.Repository
	tokens  token.Repository
}

func New(cfg Config, orders order.Service, repo order.Repository, carrier shipping.Carrier, carts cart.Repository, tokens token.Repository) *Janitor {
	if cfg.AutoCancelAfter == 0 {
		cfg.AutoCancelAfter = 72 * time.Hour
	}
	if cfg.AutoTrackPage == 0 {
		cfg.AutoTrackPage = 50
	}
	if cfg.CartTTL == 0 {
		cfg.CartTTL = 30 * 24 * time.Hour
	}
	if cfg.CarrierTimeout == 0 {
		cfg.CarrierTimeout = 10 * time.Second
	}
	return &Janitor{cfg: cfg, orders: orders, repo: repo, carrier: carrier, carts: carts, tokens: tokens}
}

// AutoCancelStaleOrders cancels orders that stayed in new_order beyond the
// configured age. Re-running immediately cancels nothing extra: already
// cancelled orders no longer match the new_order filter.
func (j *Janitor) AutoCancelStaleOrders(ctx context.Context) (int, error) {
	cutoff := time.Now().UTC().Add(-j.cfg.AutoCancelAfter)
	ids, err := j.repo.ListStaleNew(ctx, cutoff, 500)
	if err != nil {
		return 0, fmt.Errorf("janitor: failed to list stale orders: %w", err)
	}

	reason := fmt.Sprintf("no processing within %dh", int(j.cfg.AutoCancelAfter.Hours()))
	cancelled := 0
	for _, id := range ids {
		if err := j.orders.ChangeStatus(ctx, id, order.StatusCancelled, order.SourceCron, reason); err != nil {
			// Lost a race with a concurrent transition; skip and continue.
			log.Warn().Err(err).Stringer("order_id", id).Msg("janitor: failed to auto-cancel order")
			continue
		}
		cancelled++
	}

	log.Info().Int("cancelled", cancelled).Int("candidates", len(ids)).Msg("auto-cancel pass finished")
	return cancelled, nil
}

// AutoTrackShipments polls the carrier for a page of shipped orders and
// completes the ones reported as delivered.
func (j *Janitor) AutoTrackShipments(ctx context.Context) (int, error) {
	orders, err := j.repo.ListShippedWithTracking(ctx, j.cfg.AutoTrackPage)
	if err != nil {
		return 0, fmt.Errorf("janitor: failed to list shipped orders: %w", err)
	}

	completed := 0
	for _, o := range orders {
		state, err := j.track(ctx, *o.TrackingNumber)
		if err != nil {
			log.Warn().Err(err).Stringer("order_id", o.ID).Str("ttn", *o.TrackingNumber).Msg("janitor: tracking poll failed")
			continue
		}
		if !state.Delivered() {
			continue
		}
		if err := j.orders.ChangeStatus(ctx, o.ID, order.StatusCompleted, order.SourceCron, "carrier reported delivery"); err != nil {
			log.Warn().Err(err).Stringer("order_id", o.ID).Msg("janitor: failed to complete delivered order")
			continue
		}
		completed++
	}

	log.Info().Int("completed", completed).Int("polled", len(orders)).Msg("auto-track pass finished")
	return completed, nil
}

// track bounds each carrier call so one slow poll cannot stall the batch.
func (j *Janitor) track(ctx context.Context, ttn string) (shipping.TrackingState, error) {
	callCtx, cancel := context.WithTimeout(ctx, j.cfg.CarrierTimeout)
	defer cancel()
	return j.carrier.Track(callCtx, ttn)
}

// CleanupCarts deletes cart items older than the TTL.
func (j *Janitor) CleanupCarts(ctx context.Context) (int, error) {
	cutoff := time.Now().UTC().Add(-j.cfg.CartTTL)
	n, err := j.carts.DeleteStale(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("janitor: failed to clean carts: %w", err)
	}
	log.Info().Int64("deleted", n).Msg("cart cleanup finished")
	return int(n), nil
}

// CleanupTokens deletes expired refresh tokens.
func (j *Janitor) CleanupTokens(ctx context.Context) (int, error) {
	n, err := j.tokens.DeleteExpired(ctx, time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("janitor: failed to clean tokens: %w", err)
	}
	log.Info().Int64("deleted", n).Msg("token cleanup finished")
	return int(n), nil
}
