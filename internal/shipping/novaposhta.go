// Package shipping wraps the Nova Poshta JSON API: waybill (TTN) creation and
// tracking. Calls carry a bounded timeout and are never made while a database
// transaction is open.
package shipping

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Carrier status code for a delivered parcel.
const statusDelivered = "9"

type Waybill struct {
	Recipient      string
	Phone          string
	City           string
	Address        string
	Weight         float64
	CostOnDelivery float64
	Description    string
}

type TrackingState struct {
	Number     string
	StatusCode string
	StatusText string
}

func (t TrackingState) Delivered() bool {
	return t.StatusCode == statusDelivered
}

type Carrier interface {
	CreateWaybill(ctx context.Context, w Waybill) (string, error)
	Track(ctx context.Context, ttn string) (TrackingState, error)
}

type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

func NewClient(apiKey, baseURL string, timeout time.Duration) *Client {
	return &Client{
		apiKey:     apiKey,
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
	}
}

type apiRequest struct {
	APIKey           string `json:"apiKey"`
	ModelName        string `json:"modelName"`
	CalledMethod     string `json:"calledMethod"`
	MethodProperties any    `json:"methodProperties"`
}

type apiResponse struct {
	Success bool              `json:"success"`
	Data    []json.RawMessage `json:"data"`
	Errors  []string          `json:"errors"`
}

func (c *Client) call(ctx context.Context, model, method string, props any) (*apiResponse, error) {
	body, err := json.Marshal(apiRequest{
		APIKey:           c.apiKey,
		ModelName:        model,
		CalledMethod:     method,
		MethodProperties: props,
	})
	if err != nil {
		return nil, fmt.Errorf("shipping: failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("shipping: failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("shipping: carrier request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("shipping: failed to read carrier response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("shipping: carrier returned HTTP %d", resp.StatusCode)
	}

	var out apiResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("shipping: failed to decode carrier response: %w", err)
	}
	if !out.Success {
		return nil, fmt.Errorf("shipping: carrier error: %v", out.Errors)
	}
	return &out, nil
}

func (c *Client) CreateWaybill(ctx context.Context, w Waybill) (string, error) {
	resp, err := c.call(ctx, "InternetDocument", "save", map[string]any{
		"RecipientName":    w.Recipient,
		"RecipientsPhone":  w.Phone,
		"CityRecipient":    w.City,
		"RecipientAddress": w.Address,
		"Weight":           w.Weight,
		"Description":      w.Description,
		"CostOnDelivery":   w.CostOnDelivery,
	})
	if err != nil {
		return "", err
	}
	if len(resp.Data) == 0 {
		return "", fmt.Errorf("shipping: carrier returned no waybill data")
	}

	var doc struct {
		IntDocNumber string `json:"IntDocNumber"`
	}
	if err := json.Unmarshal(resp.Data[0], &doc); err != nil {
		return "", fmt.Errorf("shipping: failed to decode waybill: %w", err)
	}
	if doc.IntDocNumber == "" {
		return "", fmt.Errorf("shipping: carrier returned empty waybill number")
	}
	return doc.IntDocNumber, nil
}

func (c *Client) Track(ctx context.Context, ttn string) (TrackingState, error) {
	resp, err := c.call(ctx, "TrackingDocument", "getStatusDocuments", map[string]any{
		"Documents": []map[string]string{{"DocumentNumber": ttn}},
	})
	if err != nil {
		return TrackingState{}, err
	}
	if len(resp.Data) == 0 {
		return TrackingState{}, fmt.Errorf("shipping: no tracking data for %s", ttn)
	}

	var doc struct {
		Number     string `json:"Number"`
		StatusCode string `json:"StatusCode"`
		Status     string `json:"Status"`
	}
	if err := json.Unmarshal(resp.Data[0], &doc); err != nil {
		return TrackingState{}, fmt.Errorf("shipping: failed to decode tracking status: %w", err)
	}
	return TrackingState{Number: doc.Number, StatusCode: doc.StatusCode, StatusText: doc.Status}, nil
}
