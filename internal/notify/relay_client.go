package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/stemsi/examhub/internal/model"
)

// SecretHeader carries the shared secret on relay pushes.
const SecretHeader = "X-Relay-Secret"

// RelayClient delivers publish events to the relay's POST /notify.
type RelayClient struct {
	baseURL string
	secret  string
	http    *http.Client
}

// NewRelayClient creates a client for the relay at baseURL. An empty
// secret sends no secret header.
func NewRelayClient(baseURL, secret string) *RelayClient {
	return &RelayClient{
		baseURL: baseURL,
		secret:  secret,
		http:    &http.Client{Timeout: 10 * time.Second},
	}
}

// Deliver posts one event. Any non-2xx answer is an error that includes
// the start of the response body.
func (c *RelayClient) Deliver(ctx context.Context, ev model.PublishEvent) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/notify", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.secret != "" {
		req.Header.Set(SecretHeader, c.secret)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("post notify: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("relay answered %d: %s", resp.StatusCode, bytes.TrimSpace(snippet))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}
