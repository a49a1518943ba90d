package reconciliation

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/shopspring/decimal"
)

var statementDate = time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC)

func TestHTTPStatementClient_Fetch(t *testing.T) {
	secret := []byte("bank-secret")

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/statements/2025-01-15") {
			t.Errorf("unexpected path %s", r.URL.Path)
		}

		auth := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		token, err := jwt.Parse(auth, func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, errors.New("unexpected signing method")
			}
			return secret, nil
		})
		if err != nil || !token.Valid {
			t.Errorf("invalid client assertion: %v", err)
		}
		if claims, ok := token.Claims.(jwt.MapClaims); ok {
			if iss, _ := claims["iss"].(string); iss != "settleflow" {
				t.Errorf("unexpected issuer %q", iss)
			}
		}

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"entries":[
			{"reference":"ORD-500","amount":"250.00","status":"successful","transactionCode":"BNK-1"},
			{"reference":"INV-2025-001","amount":"100.00","status":"unpaid","transactionCode":"BNK-2","unpaidCode":"R01","unpaidReason":"insufficient funds"}
		]}`))
	}))
	defer server.Close()

	client := NewHTTPStatementClient(server.URL, "settleflow", secret)

	entries, err := client.FetchStatement(context.Background(), statementDate)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].Status != EntrySuccessful || !entries[0].Amount.Equal(decimal.RequireFromString("250.00")) {
		t.Errorf("unexpected first entry: %+v", entries[0])
	}
	if entries[1].UnpaidReason != "insufficient funds" {
		t.Errorf("unexpected second entry: %+v", entries[1])
	}
}

func TestHTTPStatementClient_NonOKIsTypedFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "maintenance window", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := NewHTTPStatementClient(server.URL, "settleflow", []byte("s"))

	_, err := client.FetchStatement(context.Background(), statementDate)
	var fetchErr *FetchError
	if !errors.As(err, &fetchErr) {
		t.Fatalf("expected FetchError, got %v", err)
	}
	if fetchErr.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("expected status 503, got %d", fetchErr.StatusCode)
	}
}

func TestHTTPStatementClient_BadBodyIsTypedFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"entries": not-json`))
	}))
	defer server.Close()

	client := NewHTTPStatementClient(server.URL, "settleflow", []byte("s"))

	_, err := client.FetchStatement(context.Background(), statementDate)
	var fetchErr *FetchError
	if !errors.As(err, &fetchErr) {
		t.Fatalf("expected FetchError, got %v", err)
	}
}
