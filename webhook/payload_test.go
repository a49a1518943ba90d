package webhook

import (
	"errors"
	"fmt"
	"testing"

	"github.com/shopspring/decimal"
)

const validBody = `{"accepted":"true","amount":"10000","reference":"INV-2025-001","traceId":"TRC001","extra":{"accountId":"inv_abc123"}}`

func TestParseNotification_Valid(t *testing.T) {
	n, err := ParseNotification([]byte(validBody))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !n.Accepted {
		t.Error("expected accepted flag")
	}
	if !n.Amount.Equal(decimal.RequireFromString("100.00")) {
		t.Errorf("expected minor units 10000 to decode as 100.00, got %s", n.Amount)
	}
	if n.Reference != "INV-2025-001" || n.TraceID != "TRC001" || n.AccountID != "inv_abc123" {
		t.Errorf("unexpected fields: %+v", n)
	}
	if string(n.Raw) != validBody {
		t.Error("expected raw body preserved byte-exactly")
	}
}

func TestParseNotification_RejectedOutcome(t *testing.T) {
	body := `{"accepted":"false","amount":"5000","reference":"ORD-500","traceId":"TRC002","extra":{"accountId":"ord_500"},"failureReason":"insufficient funds"}`

	n, err := ParseNotification([]byte(body))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n.Accepted {
		t.Error("expected rejected flag")
	}
	if n.FailureReason != "insufficient funds" {
		t.Errorf("unexpected failure reason %q", n.FailureReason)
	}
}

func TestParseNotification_MissingFields(t *testing.T) {
	cases := map[string]string{
		"accepted":  `{"amount":"10000","reference":"R","traceId":"T","extra":{"accountId":"A"}}`,
		"amount":    `{"accepted":"true","reference":"R","traceId":"T","extra":{"accountId":"A"}}`,
		"reference": `{"accepted":"true","amount":"10000","traceId":"T","extra":{"accountId":"A"}}`,
		"traceId":   `{"accepted":"true","amount":"10000","reference":"R","extra":{"accountId":"A"}}`,
		"accountId": `{"accepted":"true","amount":"10000","reference":"R","traceId":"T"}`,
	}
	for field, body := range cases {
		if _, err := ParseNotification([]byte(body)); !errors.Is(err, ErrInvalidPayload) {
			t.Errorf("missing %s: expected ErrInvalidPayload, got %v", field, err)
		}
	}
}

func TestParseNotification_Malformed(t *testing.T) {
	bad := []string{
		`not json`,
		`{"accepted":"maybe","amount":"10000","reference":"R","traceId":"T","extra":{"accountId":"A"}}`,
		`{"accepted":"true","amount":"12.34","reference":"R","traceId":"T","extra":{"accountId":"A"}}`,
		`{"accepted":"true","amount":"-5","reference":"R","traceId":"T","extra":{"accountId":"A"}}`,
	}
	for i, body := range bad {
		if _, err := ParseNotification([]byte(body)); !errors.Is(err, ErrInvalidPayload) {
			t.Errorf("case %d: expected ErrInvalidPayload, got %v", i, err)
		}
	}
}

func TestParseNotification_MinorUnits(t *testing.T) {
	for minor, want := range map[string]string{"1": "0.01", "100": "1", "999999": "9999.99"} {
		body := fmt.Sprintf(`{"accepted":"true","amount":%q,"reference":"R","traceId":"T","extra":{"accountId":"A"}}`, minor)
		n, err := ParseNotification([]byte(body))
		if err != nil {
			t.Fatalf("minor %s: %v", minor, err)
		}
		if !n.Amount.Equal(decimal.RequireFromString(want)) {
			t.Errorf("minor %s: expected %s, got %s", minor, want, n.Amount)
		}
	}
}
