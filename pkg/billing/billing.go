package billing

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

var ErrActivationDenied = errors.New("campaign activation denied by billing")

type Config struct {
	URL     string        `split_words:"true" required:"true"`
	Token   string        `split_words:"true" required:"true"`
	Timeout time.Duration `split_words:"true" default:"10s"`
}

// Client asks the billing service whether an owner may activate a campaign.
type Client struct {
	endpoint   string
	token      string
	httpClient *http.Client
}

type activationRequest struct {
	OwnerID    string `json:"owner_id"`
	CampaignID string `json:"campaign_id"`
}

type activationResponse struct {
	Allowed bool   `json:"allowed"`
	Reason  string `json:"reason,omitempty"`
}

func NewClient(cfg Config) (*Client, error) {
	baseURL := strings.TrimSpace(cfg.URL)
	if baseURL == "" {
		return nil, errors.New("billing url is required")
	}

	if _, err := url.ParseRequestURI(baseURL); err != nil {
		return nil, err
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &Client{
		endpoint: strings.TrimRight(baseURL, "/") + "/v1/entitlements/campaign-activation",
		token:    strings.TrimSpace(cfg.Token),
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}, nil
}

// CheckActivation returns nil when the owner is entitled to activate the campaign.
// A denial wraps ErrActivationDenied; transport failures also block activation.
func (c *Client) CheckActivation(ctx context.Context, ownerID, campaignID string) error {
	body, err := json.Marshal(activationRequest{OwnerID: ownerID, CampaignID: campaignID})
	if err != nil {
		return fmt.Errorf("marshal activation request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create billing request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("billing request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("read billing response: %w", err)
	}
	if resp.StatusCode == http.StatusPaymentRequired || resp.StatusCode == http.StatusForbidden {
		return fmt.Errorf("%w: status=%d", ErrActivationDenied, resp.StatusCode)
	}
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return fmt.Errorf("billing http status=%d body=%s", resp.StatusCode, string(raw))
	}

	var out activationResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return fmt.Errorf("decode billing response: %w", err)
	}
	if !out.Allowed {
		if out.Reason != "" {
			return fmt.Errorf("%w: %s", ErrActivationDenied, out.Reason)
		}
		return ErrActivationDenied
	}
	return nil
}
