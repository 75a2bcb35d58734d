package payment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofrs/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"

	"github.com/gospodar-shop/order-service/internal/order"
)

// Outcome reports what a reconciliation actually did. Applied is false for
// idempotent no-ops (missing order, duplicate delivery); Advanced carries the
// order transition when the webhook moved the order to paid.
type Outcome struct {
	Applied  bool
	Advanced *order.Transition
}

type Repository interface {
	RecordInitiated(ctx context.Context, orderID uuid.UUID, provider, externalID string) error
	HasPaid(ctx context.Context, orderID uuid.UUID) (bool, error)
	Reconcile(ctx context.Context, provider string, res *CallbackResult) (*Outcome, error)
}

type postgresRepository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) Repository {
	return &postgresRepository{db: db}
}

func (r *postgresRepository) inTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("repository: failed to begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil {
			log.Error().Err(rbErr).Msg("repository: failed to rollback transaction")
		}
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("repository: failed to commit transaction: %w", err)
	}
	return nil
}

// RecordInitiated lazily creates the payment row on first initiation. A
// concurrent duplicate insert for the same (provider, external id) is
// harmless and swallowed.
func (r *postgresRepository) RecordInitiated(ctx context.Context, orderID uuid.UUID, provider, externalID string) error {
	id, err := uuid.NewV4()
	if err != nil {
		return fmt.Errorf("repository: failed to generate payment id: %w", err)
	}
	now := time.Now().UTC()
	_, err = r.db.Exec(ctx, `
		INSERT INTO payments (id, order_id, provider, external_payment_id, status, raw_payload, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`, id, orderID, provider, externalID, string(ResultProcessing), []byte("{}"), now, now)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return nil
		}
		return fmt.Errorf("repository: failed to record initiated payment: %w", err)
	}
	return nil
}

func (r *postgresRepository) HasPaid(ctx context.Context, orderID uuid.UUID) (bool, error) {
	var paid bool
	err := r.db.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM payments WHERE order_id = $1 AND status = $2)`,
		orderID, string(ResultSuccess),
	).Scan(&paid)
	if err != nil {
		return false, fmt.Errorf("repository: failed to check paid payment for order %s: %w", orderID, err)
	}
	return paid, nil
}

// isDuplicateDelivery reports whether a webhook repeats the already-recorded
// (provider, external id, status) tuple. Such deliveries short-circuit before
// any write: at-least-once delivery must never add history rows or
// notifications. A changed status for the same external id is not a
// duplicate, it is the payment progressing.
func isDuplicateDelivery(recorded *string, reported ResultStatus) bool {
	return recorded != nil && *recorded == string(reported)
}

// Reconcile applies one webhook delivery as a single atomic unit. The order
// row is locked first so the reconciliation and any admin mutation serialize;
// a delivery repeating an already-recorded (provider, external id, status)
// tuple short-circuits before any write, which keeps at-least-once delivery
// free of duplicated side effects.
func (r *postgresRepository) Reconcile(ctx context.Context, provider string, res *CallbackResult) (*Outcome, error) {
	out := &Outcome{}
	err := r.inTx(ctx, func(tx pgx.Tx) error {
		var currentStatus order.Status
		var orderNumber string
		var userID uuid.UUID
		err := tx.QueryRow(ctx,
			`SELECT status, order_number, user_id FROM orders WHERE id = $1 FOR UPDATE`, res.OrderID,
		).Scan(&currentStatus, &orderNumber, &userID)
		if errors.Is(err, pgx.ErrNoRows) {
			// Unknown order (deleted or test data); acknowledge and move on.
			log.Warn().Stringer("order_id", res.OrderID).Str("provider", provider).Msg("repository: webhook for unknown order ignored")
			return nil
		}
		if err != nil {
			return fmt.Errorf("repository: failed to lock order %s: %w", res.OrderID, err)
		}

		var recordedStatus *string
		err = tx.QueryRow(ctx,
			`SELECT status FROM payments WHERE provider = $1 AND external_payment_id = $2 FOR UPDATE`,
			provider, res.TransactionID,
		).Scan(&recordedStatus)
		if err != nil && !errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("repository: failed to check payment record: %w", err)
		}
		if isDuplicateDelivery(recordedStatus, res.Status) {
			return nil
		}

		paymentID, err := uuid.NewV4()
		if err != nil {
			return fmt.Errorf("repository: failed to generate payment id: %w", err)
		}
		now := time.Now().UTC()
		_, err = tx.Exec(ctx, `
			INSERT INTO payments (id, order_id, provider, external_payment_id, status, raw_payload, created_at, updated_at)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
			ON CONFLICT (provider, external_payment_id)
			DO UPDATE SET status = EXCLUDED.status, raw_payload = EXCLUDED.raw_payload, updated_at = EXCLUDED.updated_at
		`, paymentID, res.OrderID, provider, res.TransactionID, string(res.Status), res.Raw, now, now)
		if err != nil {
			return fmt.Errorf("repository: failed to upsert payment: %w", err)
		}

		out.Applied = true

		if res.Status != ResultSuccess {
			// Failed or in-flight attempts are recorded for manual review
			// only; the order status never changes automatically.
			return nil
		}

		if _, err := tx.Exec(ctx,
			`UPDATE orders SET payment_status = $1, updated_at = $2 WHERE id = $3`,
			string(order.PaymentPaid), now, res.OrderID); err != nil {
			return fmt.Errorf("repository: failed to mark order paid: %w", err)
		}

		if order.CanTransition(currentStatus, order.StatusPaid, order.SourceSystem) {
			if _, err := tx.Exec(ctx,
				`UPDATE orders SET status = $1, updated_at = $2 WHERE id = $3`,
				string(order.StatusPaid), now, res.OrderID); err != nil {
				return fmt.Errorf("repository: failed to advance order to paid: %w", err)
			}
			if err := order.AppendHistoryTx(ctx, tx, res.OrderID, &currentStatus, order.StatusPaid, order.SourceSystem,
				"payment confirmed by "+provider); err != nil {
				return err
			}
			out.Advanced = &order.Transition{
				OrderID:     res.OrderID,
				OrderNumber: orderNumber,
				UserID:      userID,
				From:        currentStatus,
				To:          order.StatusPaid,
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
