package payment

import (
	"context"
	"crypto/sha1"
	"encoding/base64"
	"encoding/json"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/gofrs/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gospodar-shop/order-service/internal/order"
)

func liqpayForm(t *testing.T, privateKey string, payload map[string]any) url.Values {
	t.Helper()
	raw, err := json.Marshal(payload)
	require.NoError(t, err)
	data := base64.StdEncoding.EncodeToString(raw)
	sum := sha1.Sum([]byte(privateKey + data + privateKey))

	form := url.Values{}
	form.Set("data", data)
	form.Set("signature", base64.StdEncoding.EncodeToString(sum[:]))
	return form
}

func TestLiqPay_ParseCallback(t *testing.T) {
	p := NewLiqPay("pub", "priv")
	orderID := uuid.Must(uuid.NewV4())

	tests := []struct {
		name       string
		payload    map[string]any
		tamper     func(form url.Values)
		wantErr    error
		wantStatus ResultStatus
		wantTxID   string
	}{
		{
			name: "success",
			payload: map[string]any{
				"order_id": orderID.String(), "status": "success", "payment_id": 987654,
			},
			wantStatus: ResultSuccess,
			wantTxID:   "987654",
		},
		{
			name: "sandbox_counts_as_success",
			payload: map[string]any{
				"order_id": orderID.String(), "status": "sandbox", "payment_id": 1,
			},
			wantStatus: ResultSuccess,
			wantTxID:   "1",
		},
		{
			name: "failure",
			payload: map[string]any{
				"order_id": orderID.String(), "status": "failure", "payment_id": 2,
			},
			wantStatus: ResultFailure,
			wantTxID:   "2",
		},
		{
			name: "wait_accept_maps_to_processing",
			payload: map[string]any{
				"order_id": orderID.String(), "status": "wait_accept", "payment_id": 3,
			},
			wantStatus: ResultProcessing,
			wantTxID:   "3",
		},
		{
			name: "tampered_signature",
			payload: map[string]any{
				"order_id": orderID.String(), "status": "success", "payment_id": 4,
			},
			tamper: func(form url.Values) {
				form.Set("signature", base64.StdEncoding.EncodeToString([]byte("forged-signature")))
			},
			wantErr: ErrBadSignature,
		},
		{
			name: "tampered_data",
			payload: map[string]any{
				"order_id": orderID.String(), "status": "failure", "payment_id": 5,
			},
			tamper: func(form url.Values) {
				raw, _ := json.Marshal(map[string]any{
					"order_id": orderID.String(), "status": "success", "payment_id": 5,
				})
				form.Set("data", base64.StdEncoding.EncodeToString(raw))
			},
			wantErr: ErrBadSignature,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			form := liqpayForm(t, "priv", tt.payload)
			if tt.tamper != nil {
				tt.tamper(form)
			}
			req := httptest.NewRequest("POST", "/webhooks/payments/liqpay", strings.NewReader(form.Encode()))
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

			res, err := p.ParseCallback(req)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, orderID, res.OrderID)
			assert.Equal(t, tt.wantStatus, res.Status)
			assert.Equal(t, tt.wantTxID, res.TransactionID)
			assert.NotEmpty(t, res.Raw)
		})
	}
}

func TestLiqPay_CreatePayment(t *testing.T) {
	p := NewLiqPay("pub", "priv")
	o := &order.Order{
		ID:          uuid.Must(uuid.NewV4()),
		OrderNumber: "20260830-00042",
		TotalAmount: 1250.50,
	}

	redirectURL, externalID, err := p.CreatePayment(context.Background(), o)
	require.NoError(t, err)
	assert.Empty(t, externalID)

	u, err := url.Parse(redirectURL)
	require.NoError(t, err)
	assert.Equal(t, "www.liqpay.ua", u.Host)

	data := u.Query().Get("data")
	require.NotEmpty(t, data)

	// The redirect must carry a signature valid for its own data blob.
	sum := sha1.Sum([]byte("priv" + data + "priv"))
	assert.Equal(t, base64.StdEncoding.EncodeToString(sum[:]), u.Query().Get("signature"))

	raw, err := base64.StdEncoding.DecodeString(data)
	require.NoError(t, err)
	var payload map[string]any
	require.NoError(t, json.Unmarshal(raw, &payload))
	assert.Equal(t, o.ID.String(), payload["order_id"])
	assert.Equal(t, 1250.50, payload["amount"])
}
