// Package payment talks to the Razorpay orders API and verifies checkout
// signatures.
package payment

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
	"strings"
	"time"
)

// ErrGateway wraps every failure to reach or be accepted by the gateway.
var ErrGateway = errors.New("payment gateway error")

const DefaultBaseURL = "https://api.razorpay.com/v1"

type Razorpay struct {
	keyID     string
	keySecret string
	baseURL   string
	hc        *http.Client
}

func NewRazorpay(keyID, keySecret, baseURL string) *Razorpay {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Razorpay{
		keyID:     keyID,
		keySecret: keySecret,
		baseURL:   strings.TrimRight(baseURL, "/"),
		hc:        &http.Client{Timeout: 10 * time.Second},
	}
}

type createOrderRequest struct {
	Amount         int64  `json:"amount"`
	Currency       string `json:"currency"`
	Receipt        string `json:"receipt"`
	PaymentCapture int    `json:"payment_capture"`
}

type createOrderResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

// CreateOrder 创建网关订单，amount 为最小货币单位（paise）。
func (r *Razorpay) CreateOrder(ctx context.Context, amount int64, currency, receipt string) (string, error) {
	body, err := json.Marshal(createOrderRequest{
		Amount:         amount,
		Currency:       currency,
		Receipt:        receipt,
		PaymentCapture: 1,
	})
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+"/orders", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.SetBasicAuth(r.keyID, r.keySecret)
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.hc.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrGateway, err)
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if resp.StatusCode >= 300 {
		return "", fmt.Errorf("%w: status=%d body=%s", ErrGateway, resp.StatusCode, string(b))
	}
	var out createOrderResponse
	if err := json.Unmarshal(b, &out); err != nil {
		return "", fmt.Errorf("%w: decode: %v", ErrGateway, err)
	}
	if out.ID == "" {
		return "", fmt.Errorf("%w: empty order id", ErrGateway)
	}
	return out.ID, nil
}

// VerifySignature checks HMAC-SHA256(order_id + "|" + payment_id) against
// the hex signature returned to the checkout client.
func (r *Razorpay) VerifySignature(gatewayOrderID, paymentID, signature string) bool {
	if gatewayOrderID == "" || paymentID == "" || signature == "" {
		return false
	}
	want := Sign(r.keySecret, gatewayOrderID, paymentID)
	return hmac.Equal([]byte(want), []byte(strings.ToLower(signature)))
}

// Sign produces the signature Razorpay attaches to a successful payment.
func Sign(secret, gatewayOrderID, paymentID string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(gatewayOrderID + "|" + paymentID))
	return hex.EncodeToString(mac.Sum(nil))
}
