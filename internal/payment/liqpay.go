package payment

import (
	"context"
	"crypto/sha1"
	"crypto/subtle"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/gofrs/uuid"

	"github.com/gospodar-shop/order-service/internal/order"
)

const liqpayCheckoutURL = "https://www.liqpay.ua/api/3/checkout"

// LiqPay implements the signed-form callback flow: the provider POSTs
// base64-encoded JSON in the "data" field and signature =
// base64(sha1(private_key + data + private_key)).
type LiqPay struct {
	publicKey  string
	privateKey string
}

func NewLiqPay(publicKey, privateKey string) *LiqPay {
	return &LiqPay{publicKey: publicKey, privateKey: privateKey}
}

func (p *LiqPay) Name() string { return "liqpay" }

func (p *LiqPay) sign(data string) string {
	h := sha1.Sum([]byte(p.privateKey + data + p.privateKey))
	return base64.StdEncoding.EncodeToString(h[:])
}

func (p *LiqPay) CreatePayment(_ context.Context, o *order.Order) (string, string, error) {
	payload, err := json.Marshal(map[string]any{
		"public_key":  p.publicKey,
		"version":     3,
		"action":      "pay",
		"amount":      o.TotalAmount,
		"currency":    "UAH",
		"description": "Оплата замовлення " + o.OrderNumber,
		"order_id":    o.ID.String(),
	})
	if err != nil {
		return "", "", fmt.Errorf("liqpay: failed to marshal checkout payload: %w", err)
	}

	data := base64.StdEncoding.EncodeToString(payload)
	q := url.Values{}
	q.Set("data", data)
	q.Set("signature", p.sign(data))

	// The external payment id is only known from the callback.
	return liqpayCheckoutURL + "?" + q.Encode(), "", nil
}

type liqpayCallback struct {
	OrderID   string `json:"order_id"`
	Status    string `json:"status"`
	PaymentID int64  `json:"payment_id"`
	TransID   string `json:"transaction_id"`
}

func (p *LiqPay) ParseCallback(r *http.Request) (*CallbackResult, error) {
	if err := r.ParseForm(); err != nil {
		return nil, fmt.Errorf("liqpay: failed to parse callback form: %w", err)
	}
	data := r.PostFormValue("data")
	signature := r.PostFormValue("signature")
	if data == "" || signature == "" {
		return nil, ErrBadSignature
	}

	if subtle.ConstantTimeCompare([]byte(p.sign(data)), []byte(signature)) != 1 {
		return nil, ErrBadSignature
	}

	raw, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return nil, fmt.Errorf("liqpay: failed to decode callback data: %w", err)
	}

	var cb liqpayCallback
	if err := json.Unmarshal(raw, &cb); err != nil {
		return nil, fmt.Errorf("liqpay: failed to unmarshal callback: %w", err)
	}

	orderID, err := uuid.FromString(cb.OrderID)
	if err != nil {
		return nil, fmt.Errorf("liqpay: callback carries invalid order id %q: %w", cb.OrderID, err)
	}

	res := &CallbackResult{OrderID: orderID, Raw: raw}
	switch cb.Status {
	case "success", "sandbox":
		res.Status = ResultSuccess
	case "failure", "error", "reversed":
		res.Status = ResultFailure
	default:
		// wait_accept, processing, 3ds_verify and friends
		res.Status = ResultProcessing
	}

	if cb.TransID != "" {
		res.TransactionID = cb.TransID
	} else if cb.PaymentID != 0 {
		res.TransactionID = fmt.Sprintf("%d", cb.PaymentID)
	}
	if res.TransactionID == "" {
		return nil, fmt.Errorf("liqpay: callback carries no payment id")
	}
	return res, nil
}
