// Package payment wraps the online payment gateway behind an explicit,
// injected client so checkout components never reach for global state and
// tests can substitute a fake.
package payment

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Gateway is the contract the checkout flow depends on. The remote side is
// opaque: an order id out, a signature check in.
type Gateway interface {
	// Enabled reports whether the gateway is configured; online payment
	// endpoints refuse service when it is not.
	Enabled() bool
	CreateOrder(ctx context.Context, amountMinorUnits int64, currency string) (string, error)
	VerifySignature(remoteOrderID, remotePaymentID, signature string) bool
}

type Client struct {
	keyID     string
	keySecret string
	baseURL   string
	http      *http.Client
}

func NewClient(keyID, keySecret, baseURL string) *Client {
	return &Client{
		keyID:     keyID,
		keySecret: keySecret,
		baseURL:   baseURL,
		http:      &http.Client{Timeout: 15 * time.Second},
	}
}

// Enabled reports whether gateway credentials are configured.
func (c *Client) Enabled() bool {
	return c.keyID != "" && c.keySecret != ""
}

type createOrderRequest struct {
	Amount         int64  `json:"amount"`
	Currency       string `json:"currency"`
	PaymentCapture int    `json:"payment_capture"`
}

type createOrderResponse struct {
	ID string `json:"id"`
}

// CreateOrder registers an order with the gateway and returns the remote
// order id. Amount is in minor units (paise). Fail-fast: no retries here;
// callers surface the error and may invoke the explicit retry operation.
func (c *Client) CreateOrder(ctx context.Context, amountMinorUnits int64, currency string) (string, error) {
	body, err := json.Marshal(createOrderRequest{
		Amount:         amountMinorUnits,
		Currency:       currency,
		PaymentCapture: 1,
	})
	if err != nil {
		return "", fmt.Errorf("marshal order request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/orders", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build order request: %w", err)
	}
	req.SetBasicAuth(c.keyID, c.keySecret)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("create gateway order: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("gateway rejected order creation: status %d", resp.StatusCode)
	}

	var out createOrderResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode order response: %w", err)
	}
	if out.ID == "" {
		return "", fmt.Errorf("gateway returned empty order id")
	}
	return out.ID, nil
}

// VerifySignature checks the HMAC-SHA256 hex digest over
// "remoteOrderID|remotePaymentID" in constant time.
func (c *Client) VerifySignature(remoteOrderID, remotePaymentID, signature string) bool {
	return VerifySignature(c.keySecret, remoteOrderID, remotePaymentID, signature)
}

// VerifySignature is the raw signature check, exported for reuse in tests
// and webhook handling.
func VerifySignature(secret, remoteOrderID, remotePaymentID, signature string) bool {
	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%s|%s", remoteOrderID, remotePaymentID)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}
