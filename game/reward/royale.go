package reward

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// DefaultBaseURL is the Crypto Royale API root
const DefaultBaseURL = "https://api.cryptoroyale.one/api/royale"

// ErrInvalidAmount rejects transfers that are not a positive amount
var ErrInvalidAmount = errors.New("transfer amount must be positive")

// Permissions lists what a user allowed this app to do with their wallet.
type Permissions struct {
	Balance   bool `json:"balance"`
	Increment bool `json:"increment"`
	Decrement bool `json:"decrement"`
}

// APIError is a non-200 answer from the API
type APIError struct {
	Endpoint   string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("royale %s: status %d: %s", e.Endpoint, e.StatusCode, e.Body)
}

// RoyaleClient talks to the Crypto Royale wallet API. Every call authenticates
// with the app's API key in the JSON body.
type RoyaleClient struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

// ClientOption configures a RoyaleClient
type ClientOption func(*RoyaleClient)

// WithBaseURL points the client at another API root
func WithBaseURL(u string) ClientOption {
	return func(c *RoyaleClient) { c.baseURL = u }
}

// WithHTTPClient sets the HTTP client used for requests
func WithHTTPClient(h *http.Client) ClientOption {
	return func(c *RoyaleClient) { c.httpClient = h }
}

// NewRoyaleClient creates a client for the given API key
func NewRoyaleClient(apiKey string, opts ...ClientOption) *RoyaleClient {
	c := &RoyaleClient{
		apiKey:  apiKey,
		baseURL: DefaultBaseURL,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// AppID is the public app identifier derived from the API key.
func (c *RoyaleClient) AppID() string {
	if len(c.apiKey) < 5 {
		return c.apiKey
	}
	return c.apiKey[:5]
}

// Balance returns how much is left in the app's API wallet.
func (c *RoyaleClient) Balance(ctx context.Context) (float64, error) {
	var resp struct {
		Data struct {
			Balance float64 `json:"balance"`
		} `json:"data"`
	}
	if err := c.post(ctx, "balance", map[string]any{}, &resp); err != nil {
		return 0, err
	}
	return resp.Data.Balance, nil
}

// UserBalance returns a user's wallet balance. Requires the balance permission.
func (c *RoyaleClient) UserBalance(ctx context.Context, userID string) (float64, error) {
	var resp struct {
		Data struct {
			Balance float64 `json:"balance"`
		} `json:"data"`
	}
	if err := c.post(ctx, "userbalance", map[string]any{"discordid": userID}, &resp); err != nil {
		return 0, err
	}
	return resp.Data.Balance, nil
}

// UserPermissions returns the permissions userID granted to this app.
func (c *RoyaleClient) UserPermissions(ctx context.Context, userID string) (Permissions, error) {
	var resp struct {
		Data struct {
			Permissions []struct {
				Type  string `json:"type"`
				Value bool   `json:"value"`
			} `json:"permissions"`
		} `json:"data"`
	}
	if err := c.post(ctx, "userpermissions", map[string]any{"discordid": userID}, &resp); err != nil {
		return Permissions{}, err
	}

	var perms Permissions
	for _, p := range resp.Data.Permissions {
		switch p.Type {
		case "balance":
			perms.Balance = p.Value
		case "increment":
			perms.Increment = p.Value
		case "decrement":
			perms.Decrement = p.Value
		}
	}
	return perms, nil
}

// CanReceivePayout reports whether userID allowed increments from this app.
func (c *RoyaleClient) CanReceivePayout(ctx context.Context, userID string) (bool, error) {
	perms, err := c.UserPermissions(ctx, userID)
	if err != nil {
		return false, err
	}
	return perms.Increment, nil
}

// Increment moves amount from the API wallet to userID's wallet. The API
// treats nonce as the transaction ID, so retrying with the same nonce never
// pays twice. An empty nonce gets a fresh UUID. Only positive finite amounts
// are sent.
func (c *RoyaleClient) Increment(ctx context.Context, userID string, amount float64, reason, nonce string) (bool, error) {
	if !(amount > 0) || math.IsInf(amount, 1) {
		return false, fmt.Errorf("%w: %v", ErrInvalidAmount, amount)
	}
	if nonce == "" {
		nonce = uuid.NewString()
	}

	body := map[string]any{
		"discordid": userID,
		"amount":    amount,
		"reason":    reason,
		"nonce":     nonce,
	}
	if err := c.post(ctx, "increment", body, nil); err != nil {
		return false, err
	}
	return true, nil
}

func (c *RoyaleClient) post(ctx context.Context, endpoint string, payload map[string]any, result any) error {
	payload["key"] = c.apiKey

	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal %s request: %w", endpoint, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/"+endpoint, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("failed to build %s request: %w", endpoint, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("royale %s: %w", endpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &APIError{Endpoint: endpoint, StatusCode: resp.StatusCode, Body: string(bytes.TrimSpace(raw))}
	}

	if result != nil {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return fmt.Errorf("failed to decode %s response: %w", endpoint, err)
		}
	}
	return nil
}
