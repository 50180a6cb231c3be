package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// VaultInfo describes a farm's custody record.
type VaultInfo struct {
	FarmID    string `json:"farm_id"`
	Account   string `json:"account"`
	Recipient string `json:"recipient"`
	Balance   string `json:"balance,omitempty"`
	Created   bool   `json:"created,omitempty"`
}

// DonationResult is returned by Donate.
type DonationResult struct {
	FarmID  string `json:"farm_id"`
	Account string `json:"account"`
	Minted  string `json:"minted"`
	Balance string `json:"balance"`
}

// ReleaseResult is returned by Release.
type ReleaseResult struct {
	FarmID    string `json:"farm_id"`
	Recipient string `json:"recipient"`
	Released  string `json:"released"`
	Balance   string `json:"balance"`
}

// RedemptionResult is returned by Redeem.
type RedemptionResult struct {
	Account string `json:"account"`
	Burned  string `json:"burned"`
	Balance string `json:"balance"`
}

// LedgerOverview holds the audit chain length and tip hash.
type LedgerOverview struct {
	Events int    `json:"events"`
	Root   string `json:"root"`
}

// AuditEvent is one record from the custody audit log.
type AuditEvent struct {
	Seq       int             `json:"seq"`
	Timestamp time.Time       `json:"timestamp"`
	Kind      string          `json:"kind"`
	From      string          `json:"from,omitempty"`
	To        string          `json:"to,omitempty"`
	Amount    json.RawMessage `json:"amount"`
	Ref       string          `json:"ref,omitempty"`
	PrevHash  string          `json:"prev_hash"`
	Hash      string          `json:"hash"`
}

// APIError is a non-2xx response from the custody service.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("custody api: %d %s", e.Status, e.Message)
}

// Client is the EquiGive SDK entry point.
type Client struct {
	baseURL    string
	httpClient *http.Client
	token      string
}

// Option is a functional option for configuring a Client.
type Option func(*Client) error

// WithHTTPClient sets a custom http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) error {
		c.httpClient = hc
		return nil
	}
}

// WithToken attaches a service token to every request.
func WithToken(token string) Option {
	return func(c *Client) error {
		c.token = token
		return nil
	}
}

// WithTimeout sets the per-request timeout on the default http.Client.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) error {
		c.httpClient.Timeout = d
		return nil
	}
}

// New creates a Client for the custody service at baseURL.
func New(baseURL string, opts ...Option) (*Client, error) {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// CreateVault onboards a farm with the given recipient address. Requires an
// operator token. Idempotent: an already-onboarded farm returns its
// existing vault with Created == false.
func (c *Client) CreateVault(ctx context.Context, farmID, recipient string) (*VaultInfo, error) {
	var out VaultInfo
	err := c.do(ctx, http.MethodPut, "/api/v1/farms/"+farmID+"/vault",
		map[string]string{"recipient": recipient}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// Vault returns a farm's custody record and escrow balance.
func (c *Client) Vault(ctx context.Context, farmID string) (*VaultInfo, error) {
	var out VaultInfo
	if err := c.do(ctx, http.MethodGet, "/api/v1/farms/"+farmID+"/vault", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Donate records a donation: amount units are minted into the farm's vault.
// Requires a minter token. amount is a base-10 integer string.
func (c *Client) Donate(ctx context.Context, farmID, amount, donorRef string) (*DonationResult, error) {
	var out DonationResult
	err := c.do(ctx, http.MethodPost, "/api/v1/donations",
		map[string]string{"farm_id": farmID, "amount": amount, "donor_ref": donorRef}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// Release sweeps amount units from the farm's vault to its recipient.
// Requires the recipient's own token.
func (c *Client) Release(ctx context.Context, farmID, amount string) (*ReleaseResult, error) {
	var out ReleaseResult
	err := c.do(ctx, http.MethodPost, "/api/v1/farms/"+farmID+"/release",
		map[string]string{"amount": amount}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// Redeem burns amount units from the given account after spend
// verification. Requires a burner token.
func (c *Client) Redeem(ctx context.Context, account, amount, ref string) (*RedemptionResult, error) {
	var out RedemptionResult
	err := c.do(ctx, http.MethodPost, "/api/v1/redemptions",
		map[string]string{"account": account, "amount": amount, "ref": ref}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// Balance returns an account's balance as a base-10 integer string.
func (c *Client) Balance(ctx context.Context, account string) (string, error) {
	var out struct {
		Balance string `json:"balance"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/v1/accounts/"+account+"/balance", nil, &out); err != nil {
		return "", err
	}
	return out.Balance, nil
}

// Supply returns the total units in existence as a base-10 integer string.
func (c *Client) Supply(ctx context.Context) (string, error) {
	var out struct {
		TotalSupply string `json:"total_supply"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/v1/supply", nil, &out); err != nil {
		return "", err
	}
	return out.TotalSupply, nil
}

// LedgerOverview returns the audit chain length and tip hash.
func (c *Client) LedgerOverview(ctx context.Context) (*LedgerOverview, error) {
	var out LedgerOverview
	if err := c.do(ctx, http.MethodGet, "/api/v1/ledger", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// VerifyLedger asks the service to walk the audit chain. A false return
// with nil error means the chain failed integrity checking; detail carries
// the service's description of the break.
func (c *Client) VerifyLedger(ctx context.Context) (valid bool, detail string, err error) {
	var out struct {
		Valid bool   `json:"valid"`
		Error string `json:"error"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/v1/ledger/verify", nil, &out); err != nil {
		return false, "", err
	}
	return out.Valid, out.Error, nil
}

// Events returns up to limit audit events with seq > after.
func (c *Client) Events(ctx context.Context, after, limit int) ([]AuditEvent, error) {
	var out struct {
		Events []AuditEvent `json:"events"`
	}
	path := fmt.Sprintf("/api/v1/ledger/events?after=%d&limit=%d", after, limit)
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out.Events, nil
}

// do executes one JSON request/response round trip.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reqBody io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reqBody = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close() //nolint:errcheck

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var apiErr struct {
			Error string `json:"error"`
		}
		_ = json.Unmarshal(raw, &apiErr)
		if apiErr.Error == "" {
			apiErr.Error = http.StatusText(resp.StatusCode)
		}
		return &APIError{Status: resp.StatusCode, Message: apiErr.Error}
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
