package mockbackend

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	NewRouter(nil).ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]string {
	t.Helper()
	var out map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestReceiveLightning(t *testing.T) {
	rec := do(t, http.MethodPost, "/receive", `{"type":"lightning","amount":0.0001,"comment":"tip"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))

	addr := decode(t, rec)["address"]
	assert.True(t, strings.HasPrefix(addr, "lnbcrt10000n1p"), addr)
}

func TestReceiveOnchain(t *testing.T) {
	rec := do(t, http.MethodPost, "/receive", `{"type":"onchain"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	addr := decode(t, rec)["address"]
	assert.True(t, strings.HasPrefix(addr, "bcrt1q"), addr)
	assert.Len(t, addr, len("bcrt1q")+32)

	again := decode(t, do(t, http.MethodPost, "/receive", `{"type":"onchain"}`))["address"]
	assert.NotEqual(t, addr, again)
}

func TestReceiveBadRequests(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, do(t, http.MethodPost, "/receive", `{"type":"paper"}`).Code)
	assert.Equal(t, http.StatusBadRequest, do(t, http.MethodPost, "/receive", `{`).Code)
	assert.Equal(t, http.StatusBadRequest, do(t, http.MethodPost, "/receive", `{"type":"lightning","amount":-1}`).Code)
	assert.Equal(t, http.StatusMethodNotAllowed, do(t, http.MethodGet, "/receive", "").Code)
}

func TestSendPayment(t *testing.T) {
	rec := do(t, http.MethodPost, "/sendpayment", `{"address":"bcrt1qdest","amount":0.001,"comment":""}`)
	require.Equal(t, http.StatusOK, rec.Code)

	out := decode(t, rec)
	assert.Equal(t, "pending", out["status"])
	assert.NotEmpty(t, out["payment_id"])

	assert.Equal(t, http.StatusBadRequest, do(t, http.MethodPost, "/sendpayment", `{"amount":1}`).Code)
	assert.Equal(t, http.StatusBadRequest, do(t, http.MethodPost, "/sendpayment", `{"address":"x","amount":0}`).Code)
	assert.Equal(t, http.StatusBadRequest, do(t, http.MethodPost, "/sendpayment", `nope`).Code)
}

func TestPreflight(t *testing.T) {
	rec := do(t, http.MethodOptions, "/receive", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, rec.Header().Get("Access-Control-Allow-Methods"), "POST")
}

func TestHealth(t *testing.T) {
	rec := do(t, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK\n", rec.Body.String())
}
