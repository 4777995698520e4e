package mockbackend

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/raspiblitz/blitzdash/internal/logging"
	"github.com/raspiblitz/blitzdash/internal/wallet"
)

// NewRouter returns the mock node API: POST /receive, POST /sendpayment and GET /health.
func NewRouter(logger *slog.Logger) *mux.Router {
	if logger == nil {
		logger = logging.Discard()
	}
	a := &api{logger: logger}

	r := mux.NewRouter()
	r.Use(corsMiddleware)
	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintln(w, "OK")
	}).Methods(http.MethodGet)
	r.HandleFunc("/receive", a.receive).Methods(http.MethodPost, http.MethodOptions)
	r.HandleFunc("/sendpayment", a.sendPayment).Methods(http.MethodPost, http.MethodOptions)
	return r
}

type api struct {
	logger *slog.Logger
}

// receive hands out a fresh regtest invoice or address
func (a *api) receive(w http.ResponseWriter, r *http.Request) {
	var req wallet.ReceiveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON body", http.StatusBadRequest)
		return
	}

	id := strings.ReplaceAll(uuid.NewString(), "-", "")

	var address string
	switch req.Type {
	case wallet.Lightning:
		var sats int64
		if req.Amount != nil {
			if *req.Amount < 0 {
				http.Error(w, "amount must not be negative", http.StatusBadRequest)
				return
			}
			sats = int64(*req.Amount*wallet.SatsPerBTC + 0.5)
		}
		address = fmt.Sprintf("lnbcrt%dn1p%s", sats, id)
	case wallet.Onchain:
		address = "bcrt1q" + id
	default:
		http.Error(w, fmt.Sprintf("unknown type %q", req.Type), http.StatusBadRequest)
		return
	}

	a.logger.Info("generated receive address", "type", req.Type, "address", address)
	writeJSON(w, http.StatusOK, map[string]string{"address": address})
}

// sendPayment accepts any well-formed payment and reports it as pending
func (a *api) sendPayment(w http.ResponseWriter, r *http.Request) {
	var req wallet.SendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON body", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.Address) == "" {
		http.Error(w, "address is required", http.StatusBadRequest)
		return
	}
	if req.Amount <= 0 {
		http.Error(w, "amount must be positive", http.StatusBadRequest)
		return
	}

	paymentID := uuid.NewString()
	a.logger.Info("accepted payment", "payment_id", paymentID, "address", req.Address, "amount", req.Amount)
	writeJSON(w, http.StatusOK, map[string]string{"payment_id": paymentID, "status": "pending"})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

// corsMiddleware lets the browser dashboard call the API from another origin
// and answers preflight requests itself.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
