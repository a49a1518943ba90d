package reconciliation

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// StatementFetcher supplies the day's settlement results. The engine treats
// the supplier as a black box returning either entries or a typed failure.
type StatementFetcher interface {
	FetchStatement(ctx context.Context, date time.Time) ([]StatementEntry, error)
}

// FetchError is the typed failure for a statement fetch. It is recorded on
// the run rather than aborting the scheduler.
type FetchError struct {
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("reconciliation: statement fetch failed with status %d", e.StatusCode)
	}
	return fmt.Sprintf("reconciliation: statement fetch failed: %v", e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// HTTPStatementClient fetches statements from the bank's settlement API,
// authenticating each call with a short-lived HS256 client assertion.
type HTTPStatementClient struct {
	baseURL  string
	clientID string
	secret   []byte
	httpc    *http.Client
	now      func() time.Time
}

func NewHTTPStatementClient(baseURL, clientID string, secret []byte) *HTTPStatementClient {
	return &HTTPStatementClient{
		baseURL:  baseURL,
		clientID: clientID,
		secret:   secret,
		httpc:    &http.Client{Timeout: 60 * time.Second},
		now:      time.Now,
	}
}

// FetchStatement retrieves all settlement entries for one business date.
func (c *HTTPStatementClient) FetchStatement(ctx context.Context, date time.Time) ([]StatementEntry, error) {
	token, err := c.assertion()
	if err != nil {
		return nil, &FetchError{Err: fmt.Errorf("sign client assertion: %w", err)}
	}

	url := fmt.Sprintf("%s/statements/%s", c.baseURL, date.Format("2006-01-02"))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &FetchError{Err: err}
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, &FetchError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, &FetchError{StatusCode: resp.StatusCode}
	}

	var body struct {
		Entries []StatementEntry `json:"entries"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, &FetchError{Err: fmt.Errorf("decode statement: %w", err)}
	}
	return body.Entries, nil
}

func (c *HTTPStatementClient) assertion() (string, error) {
	now := c.now()
	claims := jwt.MapClaims{
		"iss": c.clientID,
		"iat": now.Unix(),
		"exp": now.Add(5 * time.Minute).Unix(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
}
