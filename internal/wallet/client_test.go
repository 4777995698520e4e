package wallet

import (
	"context"
	"encoding/json"
	"io"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestClient creates a Client pointed at the given test server URL.
func newTestClient(t *testing.T, baseURL string) *Client {
	t.Helper()
	c, err := NewClient(baseURL+"/", 5*time.Second)
	require.NoError(t, err)
	return c
}

func TestReceiveLightning(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/receive", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &got)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"address":"lnbcrt1test"}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	addr, err := c.Receive(context.Background(), NewReceiveRequest(Lightning, 0.001, "coffee"))
	require.NoError(t, err)
	assert.Equal(t, "lnbcrt1test", addr)

	assert.Equal(t, "lightning", got["type"])
	assert.Equal(t, 0.001, got["amount"])
	assert.Equal(t, "coffee", got["comment"])
}

func TestReceiveOnchainOmitsAmountAndComment(t *testing.T) {
	var raw string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		raw = string(body)
		_, _ = w.Write([]byte(`{"address":"bcrt1qtest"}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	addr, err := c.Receive(context.Background(), NewReceiveRequest(Onchain, 1, "ignored"))
	require.NoError(t, err)
	assert.Equal(t, "bcrt1qtest", addr)
	assert.JSONEq(t, `{"type":"onchain"}`, raw)
}

func TestReceiveErrors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr error
	}{
		{"server error", http.StatusInternalServerError, "boom", ErrUnexpectedStatus},
		{"bad request", http.StatusBadRequest, `{"error":"bad type"}`, ErrUnexpectedStatus},
		{"no address", http.StatusOK, `{}`, nil},
		{"address not a string", http.StatusOK, `{"address":42}`, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			_, err := newTestClient(t, srv.URL).Receive(context.Background(), NewReceiveRequest(Onchain, 0, ""))
			require.Error(t, err)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			}
		})
	}
}

func TestReceiveRejectsUnknownType(t *testing.T) {
	c := newTestClient(t, "http://127.0.0.1:1")
	_, err := c.Receive(context.Background(), ReceiveRequest{Type: "paper"})
	assert.Error(t, err)
}

func TestErrorBodyIsTruncated(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte(strings.Repeat("x", 500)))
	}))
	defer srv.Close()

	_, err := newTestClient(t, srv.URL).Receive(context.Background(), NewReceiveRequest(Onchain, 0, ""))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
	assert.Contains(t, err.Error(), "...")
	assert.Less(t, len(err.Error()), 300)
}

func TestSendPayment(t *testing.T) {
	var got SendRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/sendpayment", r.URL.Path)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"payment_id":"p-1","status":"pending"}`))
	}))
	defer srv.Close()

	res, err := newTestClient(t, srv.URL).SendPayment(context.Background(), SendRequest{
		Address: "bcrt1qdest",
		Amount:  0.001,
		Comment: "rent",
	})
	require.NoError(t, err)
	assert.Equal(t, SendResult{PaymentID: "p-1", Status: "pending"}, res)
	assert.Equal(t, SendRequest{Address: "bcrt1qdest", Amount: 0.001, Comment: "rent"}, got)
}

func TestSendPaymentValidates(t *testing.T) {
	c := newTestClient(t, "http://127.0.0.1:1")

	_, err := c.SendPayment(context.Background(), SendRequest{Amount: 1})
	assert.Error(t, err)

	_, err = c.SendPayment(context.Background(), SendRequest{Address: "bcrt1q", Amount: 0.00001})
	assert.ErrorContains(t, err, "minimum")

	_, err = c.SendPayment(context.Background(), SendRequest{Address: "bcrt1q", Amount: math.NaN()})
	assert.ErrorContains(t, err, "finite")
}

func TestNewClientRequiresBaseURL(t *testing.T) {
	_, err := NewClient("", 0)
	assert.Error(t, err)
}

func TestAmounts(t *testing.T) {
	btc, err := ParseAmount("5460", Sat)
	require.NoError(t, err)
	assert.InDelta(t, MinSendAmount, btc, 1e-12)

	btc, err = ParseAmount("0.5", BTC)
	require.NoError(t, err)
	assert.Equal(t, 0.5, btc)

	btc, err = ParseAmount("", BTC)
	require.NoError(t, err)
	assert.Zero(t, btc)

	_, err = ParseAmount("1.5", Sat)
	assert.Error(t, err)
	_, err = ParseAmount("-1", BTC)
	assert.Error(t, err)
	_, err = ParseAmount("abc", BTC)
	assert.Error(t, err)
	for _, in := range []string{"NaN", "nan", "Inf", "+Inf", "-Inf", "infinity", "1e400"} {
		_, err = ParseAmount(in, BTC)
		assert.Error(t, err, in)
	}

	assert.Equal(t, "5460 sat", FormatAmount(MinSendAmount, Sat))
	assert.Equal(t, "0.5 BTC", FormatAmount(0.5, BTC))
	assert.Equal(t, Sat, BTC.Toggle())
	assert.Equal(t, BTC, Sat.Toggle())
}

func TestParseInvoiceType(t *testing.T) {
	typ, err := ParseInvoiceType(" Lightning ")
	require.NoError(t, err)
	assert.Equal(t, Lightning, typ)

	_, err = ParseInvoiceType("paper")
	assert.Error(t, err)
}
