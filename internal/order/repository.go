package order

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofrs/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
)

var (
	ErrNotFound = errors.New("order not found")

	// ErrTrackingExists guards the write-once tracking number: a second
	// waybill for the same order must be rejected before the carrier is called.
	ErrTrackingExists = &Error{Message: "ТТН вже створено"}
)

// ListFilter narrows the admin order listing.
type ListFilter struct {
	Status     Status
	ClientType ClientType
	Limit      int
	Offset     int
}

// Transition describes an applied status change, for history and notifications.
type Transition struct {
	OrderID     uuid.UUID
	OrderNumber string
	UserID      uuid.UUID
	From        Status
	To          Status
}

type Repository interface {
	PlaceOrder(ctx context.Context, o *Order) error
	GetByID(ctx context.Context, id uuid.UUID) (*Order, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]Order, error)
	List(ctx context.Context, f ListFilter) ([]Order, error)
	Transition(ctx context.Context, orderID uuid.UUID, to Status, source ChangeSource, comment string) (*Transition, error)
	ReplaceItems(ctx context.Context, orderID uuid.UUID, items []Item) (*Order, error)
	SetManagerComment(ctx context.Context, orderID uuid.UUID, comment string) error
	SetTrackingNumber(ctx context.Context, orderID uuid.UUID, ttn string) error
	History(ctx context.Context, orderID uuid.UUID) ([]StatusHistory, error)
	ListStaleNew(ctx context.Context, cutoff time.Time, limit int) ([]uuid.UUID, error)
	ListShippedWithTracking(ctx context.Context, limit int) ([]Order, error)
}

type postgresRepository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) Repository {
	return &postgresRepository{db: db}
}

// inTx runs fn inside a transaction, rolling back on error or panic.
func (r *postgresRepository) inTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("repository: failed to begin transaction: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			if rbErr := tx.Rollback(ctx); rbErr != nil {
				log.Error().Err(rbErr).Msg("repository: failed to rollback after panic")
			}
			panic(p)
		}
	}()

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

// PlaceOrder performs the whole checkout as one atomic unit: lock product
// rows, validate and decrement stock, insert the order with price-snapshotted
// items, write the initial history row, clear the user's cart. On any failure
// nothing is persisted.
func (r *postgresRepository) PlaceOrder(ctx context.Context, o *Order) error {
	if o.ID == uuid.Nil {
		id, err := uuid.NewV4()
		if err != nil {
			return fmt.Errorf("repository: failed to generate order id: %w", err)
		}
		o.ID = id
	}

	return r.inTx(ctx, func(tx pgx.Tx) error {
		now := time.Now().UTC()

		for i := range o.Items {
			item := &o.Items[i]

			var name string
			var stock int
			var price, wholesalePrice float64
			err := tx.QueryRow(ctx, `
				SELECT name, stock, price, wholesale_price
				FROM products
				WHERE id = $1 AND active
				FOR UPDATE
			`, item.ProductID).Scan(&name, &stock, &price, &wholesalePrice)
			if errors.Is(err, pgx.ErrNoRows) {
				return NewError("product %s is not available", item.ProductID)
			}
			if err != nil {
				return fmt.Errorf("repository: failed to lock product %s: %w", item.ProductID, err)
			}

			if stock < item.Quantity {
				return NewError("insufficient stock for product %q: have %d, want %d", name, stock, item.Quantity)
			}

			if _, err := tx.Exec(ctx, `UPDATE products SET stock = stock - $1 WHERE id = $2`,
				item.Quantity, item.ProductID); err != nil {
				return fmt.Errorf("repository: failed to decrement stock for product %s: %w", item.ProductID, err)
			}

			// Unit price is snapshotted here, at order time; later price
			// changes never affect placed orders.
			item.ProductName = name
			if o.ClientType == ClientWholesale {
				item.PricePerUnit = wholesalePrice
			} else {
				item.PricePerUnit = price
			}
			item.CreatedAt = now
		}

		o.RecomputeTotal()

		err := tx.QueryRow(ctx,
			`SELECT to_char(now(), 'YYYYMMDD') || '-' || lpad(nextval('order_number_seq')::text, 5, '0')`,
		).Scan(&o.OrderNumber)
		if err != nil {
			return fmt.Errorf("repository: failed to generate order number: %w", err)
		}

		o.Status = StatusNewOrder
		o.PaymentStatus = PaymentPending
		o.CreatedAt = now
		o.UpdatedAt = now

		_, err = tx.Exec(ctx, `
			INSERT INTO orders (id, order_number, user_id, status, client_type, total_amount,
				discount_amount, delivery_cost, contact_name, contact_phone, contact_email,
				delivery_method, delivery_city, delivery_address, payment_method, payment_status,
				comment, created_at, updated_at)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19)
		`, o.ID, o.OrderNumber, o.UserID, string(o.Status), string(o.ClientType), o.TotalAmount,
			o.DiscountAmount, o.DeliveryCost, o.ContactName, o.ContactPhone, o.ContactEmail,
			o.DeliveryMethod, o.DeliveryCity, o.DeliveryAddress, string(o.PaymentMethod),
			string(o.PaymentStatus), o.Comment, o.CreatedAt, o.UpdatedAt)
		if err != nil {
			return fmt.Errorf("repository: failed to insert order: %w", err)
		}

		for i := range o.Items {
			item := &o.Items[i]
			itemID, err := uuid.NewV4()
			if err != nil {
				return fmt.Errorf("repository: failed to generate order item id: %w", err)
			}
			item.ID = itemID
			item.OrderID = o.ID

			_, err = tx.Exec(ctx, `
				INSERT INTO order_items (id, order_id, product_id, product_name, quantity, price_per_unit, created_at)
				VALUES ($1,$2,$3,$4,$5,$6,$7)
			`, item.ID, item.OrderID, item.ProductID, item.ProductName, item.Quantity, item.PricePerUnit, item.CreatedAt)
			if err != nil {
				return fmt.Errorf("repository: failed to insert order item for order %s: %w", o.ID, err)
			}
		}

		if err := AppendHistoryTx(ctx, tx, o.ID, nil, StatusNewOrder, SourceClient, ""); err != nil {
			return err
		}

		if _, err := tx.Exec(ctx, `DELETE FROM cart_items WHERE user_id = $1`, o.UserID); err != nil {
			return fmt.Errorf("repository: failed to clear cart for user %s: %w", o.UserID, err)
		}

		return nil
	})
}

func AppendHistoryTx(ctx context.Context, tx pgx.Tx, orderID uuid.UUID, old *Status, new Status, source ChangeSource, comment string) error {
	id, err := uuid.NewV4()
	if err != nil {
		return fmt.Errorf("repository: failed to generate history id: %w", err)
	}
	var oldVal *string
	if old != nil {
		s := string(*old)
		oldVal = &s
	}
	_, err = tx.Exec(ctx, `
		INSERT INTO order_status_history (id, order_id, old_status, new_status, change_source, comment, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
	`, id, orderID, oldVal, string(new), string(source), comment, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("repository: failed to append status history for order %s: %w", orderID, err)
	}
	return nil
}

const orderColumns = `id, order_number, user_id, status, client_type, total_amount,
	discount_amount, delivery_cost, contact_name, contact_phone, contact_email,
	delivery_method, delivery_city, delivery_address, tracking_number, payment_method,
	payment_status, comment, manager_comment, cancelled_reason, cancelled_by,
	created_at, updated_at`

func scanOrder(row pgx.Row, o *Order) error {
	return row.Scan(
		&o.ID, &o.OrderNumber, &o.UserID, &o.Status, &o.ClientType, &o.TotalAmount,
		&o.DiscountAmount, &o.DeliveryCost, &o.ContactName, &o.ContactPhone, &o.ContactEmail,
		&o.DeliveryMethod, &o.DeliveryCity, &o.DeliveryAddress, &o.TrackingNumber, &o.PaymentMethod,
		&o.PaymentStatus, &o.Comment, &o.ManagerComment, &o.CancelledReason, &o.CancelledBy,
		&o.CreatedAt, &o.UpdatedAt,
	)
}

func (r *postgresRepository) GetByID(ctx context.Context, id uuid.UUID) (*Order, error) {
	var o Order
	err := scanOrder(r.db.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id), &o)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("repository: failed to select order %s: %w", id, err)
	}

	items, err := r.loadItems(ctx, []uuid.UUID{id})
	if err != nil {
		return nil, err
	}
	o.Items = items[id]
	if o.Items == nil {
		o.Items = []Item{}
	}
	return &o, nil
}

func (r *postgresRepository) loadItems(ctx context.Context, orderIDs []uuid.UUID) (map[uuid.UUID][]Item, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, order_id, product_id, product_name, quantity, price_per_unit, created_at
		FROM order_items
		WHERE order_id = ANY($1)
		ORDER BY created_at
	`, orderIDs)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to query order items: %w", err)
	}
	defer rows.Close()

	out := make(map[uuid.UUID][]Item)
	for rows.Next() {
		var it Item
		if err := rows.Scan(&it.ID, &it.OrderID, &it.ProductID, &it.ProductName, &it.Quantity, &it.PricePerUnit, &it.CreatedAt); err != nil {
			return nil, fmt.Errorf("repository: failed to scan order item: %w", err)
		}
		out[it.OrderID] = append(out[it.OrderID], it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("repository: error iterating order items: %w", err)
	}
	return out, nil
}

func (r *postgresRepository) queryOrders(ctx context.Context, query string, args ...any) ([]Order, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to query orders: %w", err)
	}
	defer rows.Close()

	var orders []Order
	var ids []uuid.UUID
	for rows.Next() {
		var o Order
		if err := scanOrder(rows, &o); err != nil {
			return nil, fmt.Errorf("repository: failed to scan order: %w", err)
		}
		o.Items = []Item{}
		orders = append(orders, o)
		ids = append(ids, o.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("repository: error iterating orders: %w", err)
	}
	if len(orders) == 0 {
		return []Order{}, nil
	}

	items, err := r.loadItems(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range orders {
		if its, ok := items[orders[i].ID]; ok {
			orders[i].Items = its
		}
	}
	return orders, nil
}

func (r *postgresRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]Order, error) {
	return r.queryOrders(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE user_id = $1 ORDER BY created_at DESC`, userID)
}

func (r *postgresRepository) List(ctx context.Context, f ListFilter) ([]Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE 1=1`
	args := []any{}
	if f.Status != "" {
		args = append(args, string(f.Status))
		query += fmt.Sprintf(" AND status = $%d", len(args))
	}
	if f.ClientType != "" {
		args = append(args, string(f.ClientType))
		query += fmt.Sprintf(" AND client_type = $%d", len(args))
	}
	query += " ORDER BY created_at DESC"
	if f.Limit > 0 {
		args = append(args, f.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if f.Offset > 0 {
		args = append(args, f.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}
	return r.queryOrders(ctx, query, args...)
}

// Transition applies a guarded status change. The order row is locked for the
// duration of the transaction so the guard always sees a committed prior
// state, and exactly one history row is appended per accepted change.
func (r *postgresRepository) Transition(ctx context.Context, orderID uuid.UUID, to Status, source ChangeSource, comment string) (*Transition, error) {
	var result *Transition
	err := r.inTx(ctx, func(tx pgx.Tx) error {
		var from Status
		var orderNumber string
		var userID uuid.UUID
		err := tx.QueryRow(ctx,
			`SELECT status, order_number, user_id FROM orders WHERE id = $1 FOR UPDATE`, orderID,
		).Scan(&from, &orderNumber, &userID)
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("repository: failed to lock order %s: %w", orderID, err)
		}

		if err := GuardTransition(from, to, source); err != nil {
			return err
		}

		query := `UPDATE orders SET status = $1, updated_at = $2 WHERE id = $3`
		args := []any{string(to), time.Now().UTC(), orderID}
		if to == StatusCancelled {
			query = `UPDATE orders SET status = $1, updated_at = $2, cancelled_reason = $4, cancelled_by = $5 WHERE id = $3`
			args = append(args, comment, string(source))
		}
		if _, err := tx.Exec(ctx, query, args...); err != nil {
			return fmt.Errorf("repository: failed to update order status %s: %w", orderID, err)
		}

		if err := AppendHistoryTx(ctx, tx, orderID, &from, to, source, comment); err != nil {
			return err
		}

		result = &Transition{OrderID: orderID, OrderNumber: orderNumber, UserID: userID, From: from, To: to}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// ReplaceItems swaps the order's line items and recomputes the total. Only
// orders still in an editable status accept item changes.
func (r *postgresRepository) ReplaceItems(ctx context.Context, orderID uuid.UUID, items []Item) (*Order, error) {
	err := r.inTx(ctx, func(tx pgx.Tx) error {
		var status Status
		var discount, delivery float64
		err := tx.QueryRow(ctx,
			`SELECT status, discount_amount, delivery_cost FROM orders WHERE id = $1 FOR UPDATE`, orderID,
		).Scan(&status, &discount, &delivery)
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("repository: failed to lock order %s: %w", orderID, err)
		}

		if !ItemsEditable(status) {
			return NewError("order items cannot be edited in status %s", status)
		}

		if _, err := tx.Exec(ctx, `DELETE FROM order_items WHERE order_id = $1`, orderID); err != nil {
			return fmt.Errorf("repository: failed to delete order items for order %s: %w", orderID, err)
		}

		total := 0.0
		now := time.Now().UTC()
		for i := range items {
			item := &items[i]
			itemID, err := uuid.NewV4()
			if err != nil {
				return fmt.Errorf("repository: failed to generate order item id: %w", err)
			}
			item.ID = itemID
			item.OrderID = orderID
			item.CreatedAt = now
			total += float64(item.Quantity) * item.PricePerUnit

			_, err = tx.Exec(ctx, `
				INSERT INTO order_items (id, order_id, product_id, product_name, quantity, price_per_unit, created_at)
				VALUES ($1,$2,$3,$4,$5,$6,$7)
			`, item.ID, item.OrderID, item.ProductID, item.ProductName, item.Quantity, item.PricePerUnit, item.CreatedAt)
			if err != nil {
				return fmt.Errorf("repository: failed to insert order item for order %s: %w", orderID, err)
			}
		}

		_, err = tx.Exec(ctx,
			`UPDATE orders SET total_amount = $1 - discount_amount + delivery_cost, updated_at = $2 WHERE id = $3`,
			total, now, orderID)
		if err != nil {
			return fmt.Errorf("repository: failed to update order total %s: %w", orderID, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return r.GetByID(ctx, orderID)
}

func (r *postgresRepository) SetManagerComment(ctx context.Context, orderID uuid.UUID, comment string) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE orders SET manager_comment = $1, updated_at = $2 WHERE id = $3`,
		comment, time.Now().UTC(), orderID)
	if err != nil {
		return fmt.Errorf("repository: failed to set manager comment for order %s: %w", orderID, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// SetTrackingNumber is write-once: the conditional update refuses to overwrite
// an existing tracking number even under concurrent waybill creation.
func (r *postgresRepository) SetTrackingNumber(ctx context.Context, orderID uuid.UUID, ttn string) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE orders SET tracking_number = $1, updated_at = $2
		WHERE id = $3 AND tracking_number IS NULL
	`, ttn, time.Now().UTC(), orderID)
	if err != nil {
		return fmt.Errorf("repository: failed to set tracking number for order %s: %w", orderID, err)
	}
	if tag.RowsAffected() == 0 {
		var exists bool
		if err := r.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM orders WHERE id = $1)`, orderID).Scan(&exists); err != nil {
			return fmt.Errorf("repository: failed to check order %s: %w", orderID, err)
		}
		if !exists {
			return ErrNotFound
		}
		return ErrTrackingExists
	}
	return nil
}

func (r *postgresRepository) History(ctx context.Context, orderID uuid.UUID) ([]StatusHistory, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, order_id, old_status, new_status, change_source, comment, created_at
		FROM order_status_history
		WHERE order_id = $1
		ORDER BY created_at
	`, orderID)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to query status history for order %s: %w", orderID, err)
	}
	defer rows.Close()

	history := make([]StatusHistory, 0)
	for rows.Next() {
		var h StatusHistory
		var old *string
		if err := rows.Scan(&h.ID, &h.OrderID, &old, &h.NewStatus, &h.Source, &h.Comment, &h.CreatedAt); err != nil {
			return nil, fmt.Errorf("repository: failed to scan status history row: %w", err)
		}
		if old != nil {
			s := Status(*old)
			h.OldStatus = &s
		}
		history = append(history, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("repository: error iterating status history: %w", err)
	}
	return history, nil
}

func (r *postgresRepository) ListStaleNew(ctx context.Context, cutoff time.Time, limit int) ([]uuid.UUID, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id FROM orders
		WHERE status = $1 AND created_at < $2
		ORDER BY created_at
		LIMIT $3
	`, string(StatusNewOrder), cutoff, limit)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to query stale orders: %w", err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("repository: failed to scan stale order id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("repository: error iterating stale orders: %w", err)
	}
	return ids, nil
}

func (r *postgresRepository) ListShippedWithTracking(ctx context.Context, limit int) ([]Order, error) {
	return r.queryOrders(ctx, `
		SELECT `+orderColumns+` FROM orders
		WHERE status = $1 AND tracking_number IS NOT NULL
		ORDER BY updated_at
		LIMIT $2
	`, string(StatusShipped), limit)
}
