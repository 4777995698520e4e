package wallet

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// InvoiceType selects what Receive generates.
type InvoiceType string

const (
	Lightning InvoiceType = "lightning"
	Onchain   InvoiceType = "onchain"
)

// ParseInvoiceType accepts "lightning" or "onchain".
func ParseInvoiceType(s string) (InvoiceType, error) {
	switch t := InvoiceType(strings.ToLower(strings.TrimSpace(s))); t {
	case Lightning, Onchain:
		return t, nil
	default:
		return "", fmt.Errorf("unknown invoice type %q (want %q or %q)", s, Lightning, Onchain)
	}
}

// ReceiveRequest is the body of POST /receive. Amount and Comment only
// apply to lightning invoices.
type ReceiveRequest struct {
	Type    InvoiceType `json:"type"`
	Amount  *float64    `json:"amount,omitempty"`
	Comment *string     `json:"comment,omitempty"`
}

// NewReceiveRequest builds a request, dropping amount and comment for onchain addresses.
func NewReceiveRequest(t InvoiceType, amount float64, comment string) ReceiveRequest {
	req := ReceiveRequest{Type: t}
	if t == Lightning {
		req.Amount = &amount
		req.Comment = &comment
	}
	return req
}

func (r ReceiveRequest) validate() error {
	if _, err := ParseInvoiceType(string(r.Type)); err != nil {
		return err
	}
	if r.Amount != nil && !finite(*r.Amount) {
		return fmt.Errorf("amount must be a finite number")
	}
	if r.Amount != nil && *r.Amount < 0 {
		return fmt.Errorf("amount must not be negative")
	}
	return nil
}

// MinSendAmount is the smallest payment in BTC (5460 sat).
const MinSendAmount = 0.0000546

// SendRequest is the body of POST /sendpayment. Amount is in BTC.
type SendRequest struct {
	Address string  `json:"address"`
	Amount  float64 `json:"amount"`
	Comment string  `json:"comment"`
}

func (r SendRequest) validate() error {
	if strings.TrimSpace(r.Address) == "" {
		return fmt.Errorf("address is required")
	}
	if !finite(r.Amount) {
		return fmt.Errorf("amount must be a finite number")
	}
	if r.Amount < MinSendAmount {
		return fmt.Errorf("amount %s is below the minimum of %s", FormatAmount(r.Amount, BTC), FormatAmount(MinSendAmount, BTC))
	}
	return nil
}

// SendResult is what the node reports for an accepted payment.
type SendResult struct {
	PaymentID string
	Status    string
}

// Unit is the denomination amounts are entered and shown in.
type Unit string

const (
	BTC Unit = "BTC"
	Sat Unit = "Sat"
)

// SatsPerBTC converts between the two units.
const SatsPerBTC = 100_000_000

// Toggle switches between BTC and Sat.
func (u Unit) Toggle() Unit {
	if u == BTC {
		return Sat
	}
	return BTC
}

// ParseAmount reads s in unit u and returns the amount in BTC.
func ParseAmount(s string, u Unit) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	if u == Sat {
		sats, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid amount %q: whole satoshis expected", s)
		}
		if sats < 0 {
			return 0, fmt.Errorf("amount must not be negative")
		}
		return float64(sats) / SatsPerBTC, nil
	}
	btc, err := strconv.ParseFloat(s, 64)
	if err != nil || !finite(btc) {
		return 0, fmt.Errorf("invalid amount %q", s)
	}
	if btc < 0 {
		return 0, fmt.Errorf("amount must not be negative")
	}
	return btc, nil
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

// FormatAmount renders a BTC amount in unit u.
func FormatAmount(btc float64, u Unit) string {
	if u == Sat {
		return fmt.Sprintf("%d sat", int64(btc*SatsPerBTC+0.5))
	}
	return strconv.FormatFloat(btc, 'f', -1, 64) + " BTC"
}
