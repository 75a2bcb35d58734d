package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/gofrs/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gospodar-shop/order-service/internal/payment"
)

type mockPaymentService struct {
	initiateFunc       func(ctx context.Context, userID, orderID uuid.UUID, providerName string, staff bool) (string, error)
	handleCallbackFunc func(ctx context.Context, providerName string, r *http.Request) error
}

func (m *mockPaymentService) Initiate(ctx context.Context, userID, orderID uuid.UUID, providerName string, staff bool) (string, error) {
	return m.initiateFunc(ctx, userID, orderID, providerName, staff)
}

func (m *mockPaymentService) HandleCallback(ctx context.Context, providerName string, r *http.Request) error {
	return m.handleCallbackFunc(ctx, providerName, r)
}

func webhookRouter(svc payment.Service) http.Handler {
	h := NewPaymentHandler(svc)
	r := chi.NewRouter()
	r.Post("/webhooks/payments/{provider}", h.Webhook)
	return r
}

func TestPaymentHandler_Webhook(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantCode   int
		wantResult string
	}{
		{
			name:       "applied",
			err:        nil,
			wantCode:   http.StatusOK,
			wantResult: "ok",
		},
		{
			name:     "bad_signature_rejected",
			err:      payment.ErrBadSignature,
			wantCode: http.StatusBadRequest,
		},
		{
			name:     "unknown_provider",
			err:      payment.ErrUnsupportedProvider,
			wantCode: http.StatusNotFound,
		},
		{
			name:       "internal_failure_still_acknowledged",
			err:        errors.New("service: failed to reconcile liqpay payment 42: connection refused"),
			wantCode:   http.StatusOK,
			wantResult: "ok",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &mockPaymentService{
				handleCallbackFunc: func(ctx context.Context, providerName string, r *http.Request) error {
					assert.Equal(t, "liqpay", providerName)
					return tt.err
				},
			}

			req := httptest.NewRequest("POST", "/webhooks/payments/liqpay", strings.NewReader("data=x&signature=y"))
			rec := httptest.NewRecorder()
			webhookRouter(svc).ServeHTTP(rec, req)

			assert.Equal(t, tt.wantCode, rec.Code)
			if tt.wantResult != "" {
				var body struct {
					Success bool              `json:"success"`
					Data    map[string]string `json:"data"`
				}
				require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
				assert.True(t, body.Success)
				assert.Equal(t, tt.wantResult, body.Data["result"])
			}
		})
	}
}

func TestPaymentHandler_Initiate(t *testing.T) {
	userID := uuid.Must(uuid.NewV4())
	orderID := uuid.Must(uuid.NewV4())

	withUser := func(req *http.Request) *http.Request {
		ctx := context.WithValue(req.Context(), ctxUserID, userID)
		ctx = context.WithValue(ctx, ctxIsAdmin, false)
		return req.WithContext(ctx)
	}

	t.Run("returns_redirect_url", func(t *testing.T) {
		svc := &mockPaymentService{
			initiateFunc: func(ctx context.Context, uID, oID uuid.UUID, providerName string, staff bool) (string, error) {
				assert.Equal(t, userID, uID)
				assert.Equal(t, orderID, oID)
				assert.Equal(t, "liqpay", providerName)
				assert.False(t, staff)
				return "https://www.liqpay.ua/api/3/checkout?data=abc", nil
			},
		}
		h := NewPaymentHandler(svc)

		body := `{"order_id":"` + orderID.String() + `","provider":"liqpay"}`
		req := withUser(httptest.NewRequest("POST", "/payments/initiate", strings.NewReader(body)))
		rec := httptest.NewRecorder()
		h.Initiate(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "liqpay.ua")
	})

	t.Run("missing_provider_is_bad_request", func(t *testing.T) {
		h := NewPaymentHandler(&mockPaymentService{})

		body := `{"order_id":"` + orderID.String() + `"}`
		req := withUser(httptest.NewRequest("POST", "/payments/initiate", strings.NewReader(body)))
		rec := httptest.NewRecorder()
		h.Initiate(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("business_rejection_is_unprocessable", func(t *testing.T) {
		svc := &mockPaymentService{
			initiateFunc: func(ctx context.Context, uID, oID uuid.UUID, providerName string, staff bool) (string, error) {
				return "", payment.NewError("order 20260830-00001 is already paid")
			},
		}
		h := NewPaymentHandler(svc)

		body := `{"order_id":"` + orderID.String() + `","provider":"liqpay"}`
		req := withUser(httptest.NewRequest("POST", "/payments/initiate", strings.NewReader(body)))
		rec := httptest.NewRecorder()
		h.Initiate(rec, req)

		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
		assert.Contains(t, rec.Body.String(), "already paid")
	})
}
