// Package razorpay is a thin client for the Razorpay Orders API plus
// webhook signature verification.
package razorpay

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	subdomain "github.com/parishkeep/parishkeep/internal/subscription/domain"
)

const defaultBaseURL = "https://api.razorpay.com/v1"

var (
	ErrOrderFailed      = errors.New("razorpay order creation failed")
	ErrInvalidSignature = errors.New("webhook signature verification failed")
)

// Client talks to Razorpay with basic auth over the key pair.
type Client struct {
	keyID         string
	keySecret     string
	webhookSecret string
	baseURL       string
	http          *http.Client
}

func NewClient(keyID, keySecret, webhookSecret string) *Client {
	return &Client{
		keyID:         keyID,
		keySecret:     keySecret,
		webhookSecret: webhookSecret,
		baseURL:       defaultBaseURL,
		http:          &http.Client{Timeout: 15 * time.Second},
	}
}

type orderRequest struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Receipt  string `json:"receipt"`
}

type orderResponse struct {
	ID       string `json:"id"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Receipt  string `json:"receipt"`
	Status   string `json:"status"`
}

// CreateOrder registers a checkout order. Amount is in the currency's
// major unit; Razorpay wants the minor unit, so it is scaled here.
func (c *Client) CreateOrder(ctx context.Context, amount int64, currency, receipt string) (*subdomain.Order, error) {
	payload, err := json.Marshal(orderRequest{
		Amount:   amount * 100,
		Currency: currency,
		Receipt:  receipt,
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/orders", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.SetBasicAuth(c.keyID, c.keySecret)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d", ErrOrderFailed, resp.StatusCode)
	}

	var order orderResponse
	if err := json.Unmarshal(body, &order); err != nil {
		return nil, err
	}

	return &subdomain.Order{
		OrderID:  order.ID,
		Amount:   amount,
		Currency: order.Currency,
		Receipt:  order.Receipt,
	}, nil
}

// VerifyWebhookSignature checks the X-Razorpay-Signature header against
// an HMAC-SHA256 of the raw body under the webhook secret.
func (c *Client) VerifyWebhookSignature(body []byte, signature string) error {
	mac := hmac.New(sha256.New, []byte(c.webhookSecret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	if !hmac.Equal([]byte(expected), []byte(signature)) {
		return ErrInvalidSignature
	}
	return nil
}

// WebhookEvent is the subset of the webhook envelope the server reads.
type WebhookEvent struct {
	Event   string `json:"event"`
	Payload struct {
		Payment struct {
			Entity struct {
				ID      string `json:"id"`
				OrderID string `json:"order_id"`
				Amount  int64  `json:"amount"`
				Status  string `json:"status"`
			} `json:"entity"`
		} `json:"payment"`
	} `json:"payload"`
}

// ParseWebhookEvent decodes a verified webhook body.
func ParseWebhookEvent(body []byte) (*WebhookEvent, error) {
	var event WebhookEvent
	if err := json.Unmarshal(body, &event); err != nil {
		return nil, err
	}
	return &event, nil
}
