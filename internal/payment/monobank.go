package payment

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"time"

	"github.com/gofrs/uuid"

	"github.com/gospodar-shop/order-service/internal/order"
)

const monoSignHeader = "X-Sign"

// Mono implements the signed-header callback flow: the webhook body is raw
// JSON and X-Sign carries base64(HMAC-SHA256(secret, body)). Invoice creation
// goes through the provider's HTTP API with a bounded timeout.
type Mono struct {
	secret     []byte
	apiURL     string
	token      string
	httpClient *http.Client
}

func NewMono(webhookSecret, apiURL, token string, timeout time.Duration) *Mono {
	return &Mono{
		secret:     []byte(webhookSecret),
		apiURL:     apiURL,
		token:      token,
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (p *Mono) Name() string { return "mono" }

func (p *Mono) CreatePayment(ctx context.Context, o *order.Order) (string, string, error) {
	body, err := json.Marshal(map[string]any{
		// Amount in kopecks; rounded, since totals like 19.99 have no exact
		// float representation and plain truncation loses a kopeck.
		"amount": int64(math.Round(o.TotalAmount * 100)),
		"ccy":    980,
		"merchantPaymInfo": map[string]any{
			"reference":   o.ID.String(),
			"destination": "Оплата замовлення " + o.OrderNumber,
		},
	})
	if err != nil {
		return "", "", fmt.Errorf("mono: failed to marshal invoice request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.apiURL+"/api/merchant/invoice/create", bytes.NewReader(body))
	if err != nil {
		return "", "", fmt.Errorf("mono: failed to build invoice request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Token", p.token)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return "", "", fmt.Errorf("mono: invoice request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(resp.Body)
		return "", "", fmt.Errorf("mono: invoice creation returned HTTP %d: %s", resp.StatusCode, raw)
	}

	var out struct {
		InvoiceID string `json:"invoiceId"`
		PageURL   string `json:"pageUrl"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", "", fmt.Errorf("mono: failed to decode invoice response: %w", err)
	}
	if out.InvoiceID == "" || out.PageURL == "" {
		return "", "", fmt.Errorf("mono: invoice response is incomplete")
	}
	return out.PageURL, out.InvoiceID, nil
}

type monoCallback struct {
	InvoiceID string `json:"invoiceId"`
	Status    string `json:"status"`
	Reference string `json:"reference"`
}

func (p *Mono) ParseCallback(r *http.Request) (*CallbackResult, error) {
	raw, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, fmt.Errorf("mono: failed to read callback body: %w", err)
	}

	sign, err := base64.StdEncoding.DecodeString(r.Header.Get(monoSignHeader))
	if err != nil {
		return nil, ErrBadSignature
	}
	mac := hmac.New(sha256.New, p.secret)
	mac.Write(raw)
	if !hmac.Equal(mac.Sum(nil), sign) {
		return nil, ErrBadSignature
	}

	var cb monoCallback
	if err := json.Unmarshal(raw, &cb); err != nil {
		return nil, fmt.Errorf("mono: failed to unmarshal callback: %w", err)
	}
	if cb.InvoiceID == "" {
		return nil, fmt.Errorf("mono: callback carries no invoice id")
	}

	orderID, err := uuid.FromString(cb.Reference)
	if err != nil {
		return nil, fmt.Errorf("mono: callback carries invalid reference %q: %w", cb.Reference, err)
	}

	res := &CallbackResult{OrderID: orderID, TransactionID: cb.InvoiceID, Raw: raw}
	switch cb.Status {
	case "success":
		res.Status = ResultSuccess
	case "failure", "expired", "reversed":
		res.Status = ResultFailure
	default:
		// created, processing, hold
		res.Status = ResultProcessing
	}
	return res, nil
}
