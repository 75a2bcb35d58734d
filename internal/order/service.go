package order

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofrs/uuid"
	"github.com/rs/zerolog/log"

	"github.com/gospodar-shop/order-service/internal/cart"
	"github.com/gospodar-shop/order-service/internal/notify"
	"github.com/gospodar-shop/order-service/internal/product"
	"github.com/gospodar-shop/order-service/internal/shipping"
)

// CheckoutInput carries everything the client submits at checkout besides the
// cart itself.
type CheckoutInput struct {
	ClientType      ClientType
	ContactName     string
	ContactPhone    string
	ContactEmail    string
	DeliveryMethod  string
	DeliveryCity    string
	DeliveryAddress string
	DeliveryCost    float64
	DiscountAmount  float64
	PaymentMethod   PaymentMethod
	Comment         string
}

type EditItemInput struct {
	ProductID uuid.UUID
	Quantity  int
}

type Service interface {
	Checkout(ctx context.Context, userID uuid.UUID, in CheckoutInput) (*Order, error)
	GetOwn(ctx context.Context, userID, orderID uuid.UUID) (*Order, error)
	ListOwn(ctx context.Context, userID uuid.UUID) ([]Order, error)
	CancelOwn(ctx context.Context, userID, orderID uuid.UUID, reason string) error
	Reorder(ctx context.Context, userID, orderID uuid.UUID) ([]string, error)

	Get(ctx context.Context, orderID uuid.UUID) (*Order, error)
	List(ctx context.Context, f ListFilter) ([]Order, error)
	History(ctx context.Context, orderID uuid.UUID) ([]StatusHistory, error)
	ChangeStatus(ctx context.Context, orderID uuid.UUID, to Status, source ChangeSource, comment string) error
	EditItems(ctx context.Context, orderID uuid.UUID, items []EditItemInput) (*Order, error)
	SetManagerComment(ctx context.Context, orderID uuid.UUID, comment string) error
	CreateWaybill(ctx context.Context, orderID uuid.UUID, weight float64) (string, error)
}

type service struct {
	repo     Repository
	carts    cart.Repository
	products product.Repository
	carrier  shipping.Carrier
	notifier notify.Notifier
}

func NewService(repo Repository, carts cart.Repository, products product.Repository, carrier shipping.Carrier, notifier notify.Notifier) Service {
	return &service{
		repo:     repo,
		carts:    carts,
		products: products,
		carrier:  carrier,
		notifier: notifier,
	}
}

// notifyTransition publishes the status change without blocking the caller.
// Failure to notify never affects the already-committed transition.
func (s *service) notifyTransition(t *Transition) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		e := notify.Event{
			OrderID:     t.OrderID,
			OrderNumber: t.OrderNumber,
			UserID:      t.UserID,
			NewStatus:   string(t.To),
			At:          time.Now().UTC(),
		}
		if t.From != "" {
			e.OldStatus = string(t.From)
		}
		if err := s.notifier.OrderStatusChanged(ctx, e); err != nil {
			log.Warn().Err(err).Stringer("order_id", t.OrderID).Msg("service: failed to send status notification")
		}
	}()
}

func (s *service) Checkout(ctx context.Context, userID uuid.UUID, in CheckoutInput) (*Order, error) {
	lines, err := s.carts.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("service: failed to load cart: %w", err)
	}
	if len(lines) == 0 {
		return nil, NewError("cart is empty")
	}
	if in.PaymentMethod != PaymentMethodOnline && in.PaymentMethod != PaymentMethodCash {
		return nil, NewError("unsupported payment method %q", in.PaymentMethod)
	}
	if in.ClientType == "" {
		in.ClientType = ClientRetail
	}

	o := &Order{
		UserID:          userID,
		ClientType:      in.ClientType,
		DiscountAmount:  in.DiscountAmount,
		DeliveryCost:    in.DeliveryCost,
		ContactName:     in.ContactName,
		ContactPhone:    in.ContactPhone,
		ContactEmail:    in.ContactEmail,
		DeliveryMethod:  in.DeliveryMethod,
		DeliveryCity:    in.DeliveryCity,
		DeliveryAddress: in.DeliveryAddress,
		PaymentMethod:   in.PaymentMethod,
		Comment:         in.Comment,
	}
	for _, l := range lines {
		o.Items = append(o.Items, Item{ProductID: l.ProductID, Quantity: l.Quantity})
	}

	if err := s.repo.PlaceOrder(ctx, o); err != nil {
		var oerr *Error
		if errors.As(err, &oerr) {
			return nil, err
		}
		log.Error().Err(err).Stringer("user_id", userID).Msg("service: failed to place order")
		return nil, fmt.Errorf("service: failed to place order: %w", err)
	}

	log.Info().Stringer("order_id", o.ID).Str("order_number", o.OrderNumber).Stringer("user_id", userID).Msg("order placed")
	s.notifyTransition(&Transition{OrderID: o.ID, OrderNumber: o.OrderNumber, UserID: userID, To: StatusNewOrder})
	return o, nil
}

func (s *service) GetOwn(ctx context.Context, userID, orderID uuid.UUID) (*Order, error) {
	o, err := s.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o.UserID != userID {
		return nil, NewError("order does not belong to the current user")
	}
	return o, nil
}

func (s *service) ListOwn(ctx context.Context, userID uuid.UUID) ([]Order, error) {
	orders, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("service: failed to list user orders: %w", err)
	}
	return orders, nil
}

func (s *service) CancelOwn(ctx context.Context, userID, orderID uuid.UUID, reason string) error {
	o, err := s.Get(ctx, orderID)
	if err != nil {
		return err
	}
	if o.UserID != userID {
		return NewError("order does not belong to the current user")
	}

	t, err := s.repo.Transition(ctx, orderID, StatusCancelled, SourceClient, reason)
	if err != nil {
		return err
	}
	s.notifyTransition(t)
	return nil
}

// Reorder adds the items of a previous order back into the user's cart at
// their original quantities. Products that disappeared or ran out of stock
// are skipped; their names are reported back so the client can show them.
func (s *service) Reorder(ctx context.Context, userID, orderID uuid.UUID) ([]string, error) {
	o, err := s.GetOwn(ctx, userID, orderID)
	if err != nil {
		return nil, err
	}

	ids := make([]uuid.UUID, 0, len(o.Items))
	for _, it := range o.Items {
		ids = append(ids, it.ProductID)
	}
	products, err := s.products.GetByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("service: failed to load products for reorder: %w", err)
	}

	skipped := make([]string, 0)
	for _, it := range o.Items {
		p, ok := products[it.ProductID]
		if !ok || !p.Available() {
			skipped = append(skipped, it.ProductName)
			continue
		}
		if err := s.carts.Upsert(ctx, userID, it.ProductID, it.Quantity); err != nil {
			log.Warn().Err(err).Stringer("product_id", it.ProductID).Msg("service: failed to re-add product to cart")
			skipped = append(skipped, it.ProductName)
		}
	}
	return skipped, nil
}

func (s *service) Get(ctx context.Context, orderID uuid.UUID) (*Order, error) {
	o, err := s.repo.GetByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("service: failed to fetch order: %w", err)
	}
	return o, nil
}

func (s *service) List(ctx context.Context, f ListFilter) ([]Order, error) {
	orders, err := s.repo.List(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("service: failed to list orders: %w", err)
	}
	return orders, nil
}

func (s *service) History(ctx context.Context, orderID uuid.UUID) ([]StatusHistory, error) {
	history, err := s.repo.History(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("service: failed to fetch status history: %w", err)
	}
	return history, nil
}

func (s *service) ChangeStatus(ctx context.Context, orderID uuid.UUID, to Status, source ChangeSource, comment string) error {
	t, err := s.repo.Transition(ctx, orderID, to, source, comment)
	if err != nil {
		return err
	}
	log.Info().
		Stringer("order_id", orderID).
		Stringer("old_status", t.From).
		Stringer("new_status", t.To).
		Str("change_source", string(source)).
		Msg("order status updated")
	s.notifyTransition(t)
	return nil
}

func (s *service) EditItems(ctx context.Context, orderID uuid.UUID, items []EditItemInput) (*Order, error) {
	if len(items) == 0 {
		return nil, NewError("order must contain at least one item")
	}

	o, err := s.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !ItemsEditable(o.Status) {
		return nil, NewError("order items cannot be edited in status %s", o.Status)
	}

	ids := make([]uuid.UUID, 0, len(items))
	for _, in := range items {
		if in.Quantity <= 0 {
			return nil, NewError("quantity for product %s must be positive", in.ProductID)
		}
		ids = append(ids, in.ProductID)
	}
	products, err := s.products.GetByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("service: failed to load products for item edit: %w", err)
	}

	newItems := make([]Item, 0, len(items))
	for _, in := range items {
		p, ok := products[in.ProductID]
		if !ok {
			return nil, NewError("product %s is not available", in.ProductID)
		}
		price := p.Price
		if o.ClientType == ClientWholesale {
			price = p.WholesalePrice
		}
		newItems = append(newItems, Item{
			ProductID:    in.ProductID,
			ProductName:  p.Name,
			Quantity:     in.Quantity,
			PricePerUnit: price,
		})
	}

	updated, err := s.repo.ReplaceItems(ctx, orderID, newItems)
	if err != nil {
		return nil, err
	}
	log.Info().Stringer("order_id", orderID).Int("items", len(newItems)).Msg("order items updated")
	return updated, nil
}

func (s *service) SetManagerComment(ctx context.Context, orderID uuid.UUID, comment string) error {
	if err := s.repo.SetManagerComment(ctx, orderID, comment); err != nil {
		return err
	}
	return nil
}

// CreateWaybill registers a carrier waybill (TTN) for the order. Tracking
// numbers are write-once: an order that already has one is rejected before
// the carrier is called. The carrier call happens outside any transaction.
func (s *service) CreateWaybill(ctx context.Context, orderID uuid.UUID, weight float64) (string, error) {
	o, err := s.Get(ctx, orderID)
	if err != nil {
		return "", err
	}
	if o.TrackingNumber != nil {
		return "", ErrTrackingExists
	}

	ttn, err := s.carrier.CreateWaybill(ctx, shipping.Waybill{
		Recipient:      o.ContactName,
		Phone:          o.ContactPhone,
		City:           o.DeliveryCity,
		Address:        o.DeliveryAddress,
		Weight:         weight,
		CostOnDelivery: o.TotalAmount,
		Description:    "Замовлення " + o.OrderNumber,
	})
	if err != nil {
		log.Error().Err(err).Stringer("order_id", orderID).Msg("service: carrier waybill creation failed")
		return "", fmt.Errorf("service: failed to create waybill: %w", err)
	}

	if err := s.repo.SetTrackingNumber(ctx, orderID, ttn); err != nil {
		// Lost a race with a concurrent waybill creation; the carrier-side
		// document stays for manual cleanup.
		log.Error().Err(err).Stringer("order_id", orderID).Str("ttn", ttn).Msg("service: failed to store tracking number")
		return "", err
	}

	log.Info().Stringer("order_id", orderID).Str("ttn", ttn).Msg("waybill created")
	return ttn, nil
}
