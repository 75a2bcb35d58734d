package payment

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofrs/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gospodar-shop/order-service/internal/notify"
	"github.com/gospodar-shop/order-service/internal/order"
)

type stubProvider struct {
	name          string
	createFunc    func(ctx context.Context, o *order.Order) (string, string, error)
	parseCallback func(r *http.Request) (*CallbackResult, error)
}

func (s *stubProvider) Name() string { return s.name }
func (s *stubProvider) CreatePayment(ctx context.Context, o *order.Order) (string, string, error) {
	return s.createFunc(ctx, o)
}
func (s *stubProvider) ParseCallback(r *http.Request) (*CallbackResult, error) {
	return s.parseCallback(r)
}

type stubPaymentRepo struct {
	recordInitiatedFunc func(ctx context.Context, orderID uuid.UUID, provider, externalID string) error
	hasPaidFunc         func(ctx context.Context, orderID uuid.UUID) (bool, error)
	reconcileFunc       func(ctx context.Context, provider string, res *CallbackResult) (*Outcome, error)
}

func (s *stubPaymentRepo) RecordInitiated(ctx context.Context, orderID uuid.UUID, provider, externalID string) error {
	return s.recordInitiatedFunc(ctx, orderID, provider, externalID)
}
func (s *stubPaymentRepo) HasPaid(ctx context.Context, orderID uuid.UUID) (bool, error) {
	return s.hasPaidFunc(ctx, orderID)
}
func (s *stubPaymentRepo) Reconcile(ctx context.Context, provider string, res *CallbackResult) (*Outcome, error) {
	return s.reconcileFunc(ctx, provider, res)
}

// stubOrderRepo satisfies order.Repository; only GetByID is exercised here.
type stubOrderRepo struct {
	order.Repository
	getByIDFunc func(ctx context.Context, id uuid.UUID) (*order.Order, error)
}

func (s *stubOrderRepo) GetByID(ctx context.Context, id uuid.UUID) (*order.Order, error) {
	return s.getByIDFunc(ctx, id)
}

type captureNotifier struct {
	events chan notify.Event
}

func (c *captureNotifier) OrderStatusChanged(_ context.Context, e notify.Event) error {
	c.events <- e
	return nil
}

func TestService_Initiate(t *testing.T) {
	owner := uuid.Must(uuid.NewV4())
	stranger := uuid.Must(uuid.NewV4())
	orderID := uuid.Must(uuid.NewV4())

	baseOrder := func() *order.Order {
		return &order.Order{
			ID:            orderID,
			OrderNumber:   "20260830-00010",
			UserID:        owner,
			Status:        order.StatusNewOrder,
			PaymentMethod: order.PaymentMethodOnline,
			PaymentStatus: order.PaymentPending,
			TotalAmount:   500,
		}
	}

	tests := []struct {
		name       string
		userID     uuid.UUID
		provider   string
		staff      bool
		mutate     func(o *order.Order)
		hasPaid    bool
		wantErr    string
		wantRecord bool
	}{
		{
			name:     "unsupported_provider",
			userID:   owner,
			provider: "paypal",
			wantErr:  "unsupported payment provider",
		},
		{
			name:     "not_owner",
			userID:   stranger,
			provider: "mono",
			wantErr:  "does not belong",
		},
		{
			name:       "staff_bypasses_ownership",
			userID:     stranger,
			provider:   "mono",
			staff:      true,
			wantRecord: true,
		},
		{
			name:     "cash_on_delivery_not_payable",
			userID:   owner,
			provider: "mono",
			mutate:   func(o *order.Order) { o.PaymentMethod = order.PaymentMethodCash },
			wantErr:  "not payable online",
		},
		{
			name:     "already_paid",
			userID:   owner,
			provider: "mono",
			hasPaid:  true,
			wantErr:  "already paid",
		},
		{
			name:       "success",
			userID:     owner,
			provider:   "mono",
			wantRecord: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := baseOrder()
			if tt.mutate != nil {
				tt.mutate(o)
			}

			recorded := false
			repo := &stubPaymentRepo{
				hasPaidFunc: func(ctx context.Context, id uuid.UUID) (bool, error) { return tt.hasPaid, nil },
				recordInitiatedFunc: func(ctx context.Context, id uuid.UUID, provider, externalID string) error {
					recorded = true
					assert.Equal(t, "inv-1", externalID)
					return nil
				},
			}
			orders := &stubOrderRepo{
				getByIDFunc: func(ctx context.Context, id uuid.UUID) (*order.Order, error) { return o, nil },
			}
			provider := &stubProvider{
				name: "mono",
				createFunc: func(ctx context.Context, o *order.Order) (string, string, error) {
					return "https://pay.mbnk.biz/inv-1", "inv-1", nil
				},
			}
			svc := NewService(repo, orders, notify.Nop{}, provider)

			url, err := svc.Initiate(context.Background(), tt.userID, orderID, tt.provider, tt.staff)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			} else {
				require.NoError(t, err)
				assert.Equal(t, "https://pay.mbnk.biz/inv-1", url)
			}
			assert.Equal(t, tt.wantRecord, recorded)
		})
	}
}

func TestService_HandleCallback(t *testing.T) {
	orderID := uuid.Must(uuid.NewV4())
	result := &CallbackResult{
		OrderID:       orderID,
		Status:        ResultSuccess,
		TransactionID: "inv-9",
		Raw:           []byte(`{}`),
	}

	newRequest := func() *http.Request {
		return httptest.NewRequest("POST", "/webhooks/payments/mono", nil)
	}

	t.Run("bad_signature_propagates", func(t *testing.T) {
		provider := &stubProvider{
			name:          "mono",
			parseCallback: func(r *http.Request) (*CallbackResult, error) { return nil, ErrBadSignature },
		}
		svc := NewService(&stubPaymentRepo{}, &stubOrderRepo{}, notify.Nop{}, provider)

		err := svc.HandleCallback(context.Background(), "mono", newRequest())
		assert.ErrorIs(t, err, ErrBadSignature)
	})

	t.Run("unknown_provider", func(t *testing.T) {
		svc := NewService(&stubPaymentRepo{}, &stubOrderRepo{}, notify.Nop{})
		err := svc.HandleCallback(context.Background(), "mono", newRequest())
		assert.ErrorIs(t, err, ErrUnsupportedProvider)
	})

	t.Run("duplicate_delivery_sends_no_notification", func(t *testing.T) {
		provider := &stubProvider{
			name:          "mono",
			parseCallback: func(r *http.Request) (*CallbackResult, error) { return result, nil },
		}
		repo := &stubPaymentRepo{
			reconcileFunc: func(ctx context.Context, providerName string, res *CallbackResult) (*Outcome, error) {
				return &Outcome{Applied: false}, nil
			},
		}
		notifier := &captureNotifier{events: make(chan notify.Event, 1)}
		svc := NewService(repo, &stubOrderRepo{}, notifier, provider)

		require.NoError(t, svc.HandleCallback(context.Background(), "mono", newRequest()))

		select {
		case e := <-notifier.events:
			t.Fatalf("unexpected notification for duplicate delivery: %+v", e)
		case <-time.After(100 * time.Millisecond):
		}
	})

	t.Run("advanced_to_paid_notifies", func(t *testing.T) {
		provider := &stubProvider{
			name:          "mono",
			parseCallback: func(r *http.Request) (*CallbackResult, error) { return result, nil },
		}
		repo := &stubPaymentRepo{
			reconcileFunc: func(ctx context.Context, providerName string, res *CallbackResult) (*Outcome, error) {
				return &Outcome{
					Applied: true,
					Advanced: &order.Transition{
						OrderID:     orderID,
						OrderNumber: "20260830-00010",
						From:        order.StatusProcessing,
						To:          order.StatusPaid,
					},
				}, nil
			},
		}
		notifier := &captureNotifier{events: make(chan notify.Event, 1)}
		svc := NewService(repo, &stubOrderRepo{}, notifier, provider)

		require.NoError(t, svc.HandleCallback(context.Background(), "mono", newRequest()))

		select {
		case e := <-notifier.events:
			assert.Equal(t, orderID, e.OrderID)
			assert.Equal(t, string(order.StatusProcessing), e.OldStatus)
			assert.Equal(t, string(order.StatusPaid), e.NewStatus)
		case <-time.After(time.Second):
			t.Fatal("expected a notification for the paid transition")
		}
	})
}
