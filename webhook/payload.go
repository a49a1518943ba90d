package webhook

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/shopspring/decimal"
)

// ErrInvalidPayload signals the gateway notification is malformed or missing
// a required field. Nothing is written for such a call.
var ErrInvalidPayload = errors.New("webhook: invalid payload")

// notification is the gateway wire shape. Everything arrives as strings; the
// raw body must be preserved byte-exactly for signature verification, so this
// struct is decoded from the same bytes the signature covers.
type notification struct {
	Accepted  string `json:"accepted"`
	Amount    string `json:"amount"`
	Reference string `json:"reference"`
	TraceID   string `json:"traceId"`
	Extra     struct {
		AccountID string `json:"accountId"`
	} `json:"extra"`
	FailureReason string `json:"failureReason"`
}

// Notification is the validated, typed form of a gateway webhook call.
type Notification struct {
	Accepted      bool
	Amount        decimal.Decimal
	Reference     string
	TraceID       string
	AccountID     string
	FailureReason string
	Raw           []byte
}

// ParseNotification decodes and validates a raw gateway body once, so every
// downstream component operates on typed fields instead of re-checking maps.
// The amount arrives as a string in minor units (cents).
func ParseNotification(rawBody []byte) (Notification, error) {
	var wire notification
	if err := json.Unmarshal(rawBody, &wire); err != nil {
		return Notification{}, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}

	missing := func(field string) error {
		return fmt.Errorf("%w: missing %s", ErrInvalidPayload, field)
	}
	switch {
	case wire.Accepted == "":
		return Notification{}, missing("accepted")
	case wire.Amount == "":
		return Notification{}, missing("amount")
	case wire.Reference == "":
		return Notification{}, missing("reference")
	case wire.TraceID == "":
		return Notification{}, missing("traceId")
	case wire.Extra.AccountID == "":
		return Notification{}, missing("extra.accountId")
	}

	accepted, err := strconv.ParseBool(wire.Accepted)
	if err != nil {
		return Notification{}, fmt.Errorf("%w: accepted flag %q", ErrInvalidPayload, wire.Accepted)
	}

	minor, err := strconv.ParseInt(wire.Amount, 10, 64)
	if err != nil || minor < 0 {
		return Notification{}, fmt.Errorf("%w: amount %q", ErrInvalidPayload, wire.Amount)
	}

	return Notification{
		Accepted:      accepted,
		Amount:        decimal.New(minor, -2),
		Reference:     wire.Reference,
		TraceID:       wire.TraceID,
		AccountID:     wire.Extra.AccountID,
		FailureReason: wire.FailureReason,
		Raw:           rawBody,
	}, nil
}
