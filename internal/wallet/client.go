package wallet

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

// ErrUnexpectedStatus is returned when the node answers with a non-2xx status.
var ErrUnexpectedStatus = errors.New("unexpected status")

const (
	endpointReceive     = "/receive"
	endpointSendPayment = "/sendpayment"
)

// Wallet is what the dashboard needs from the node API.
type Wallet interface {
	Receive(ctx context.Context, req ReceiveRequest) (string, error)
	SendPayment(ctx context.Context, req SendRequest) (SendResult, error)
}

// Client talks to the node API over HTTP.
type Client struct {
	http    *http.Client
	baseURL string
}

// NewClient returns a client for the API at baseURL. A zero timeout means 10s.
func NewClient(baseURL string, timeout time.Duration) (*Client, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("base URL is required")
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		http:    &http.Client{Timeout: timeout},
		baseURL: strings.TrimRight(baseURL, "/"),
	}, nil
}

// Receive asks the node for a lightning invoice or onchain address.
func (c *Client) Receive(ctx context.Context, req ReceiveRequest) (string, error) {
	if err := req.validate(); err != nil {
		return "", err
	}

	body, err := c.doPost(ctx, endpointReceive, req)
	if err != nil {
		return "", fmt.Errorf("receive: %w", err)
	}

	address := gjson.GetBytes(body, "address")
	if address.Type != gjson.String || address.String() == "" {
		return "", fmt.Errorf("receive: response has no address")
	}
	return address.String(), nil
}

// SendPayment asks the node to pay req.Amount BTC to req.Address.
func (c *Client) SendPayment(ctx context.Context, req SendRequest) (SendResult, error) {
	if err := req.validate(); err != nil {
		return SendResult{}, err
	}

	body, err := c.doPost(ctx, endpointSendPayment, req)
	if err != nil {
		return SendResult{}, fmt.Errorf("sendpayment: %w", err)
	}

	res := gjson.ParseBytes(body)
	return SendResult{
		PaymentID: res.Get("payment_id").String(),
		Status:    res.Get("status").String(),
	}, nil
}

// doPost sends payload as JSON to path and returns the response body.
// Non-2xx responses become ErrUnexpectedStatus with a truncated body.
func (c *Client) doPost(ctx context.Context, path string, payload any) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	const maxResponseBytes = 1 << 20
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w %d: %s", ErrUnexpectedStatus, resp.StatusCode, truncate(body, 200))
	}

	return body, nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
