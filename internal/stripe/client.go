// Package stripe covers the two payment-processor touchpoints: verifying
// inbound webhook signatures and fetching the customer record referenced by a
// payment event.
package stripe

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/sambatesdesign/ChimpLink/internal/platform/config"
)

// Customer is the subset of the processor's customer record this service
// reads: just enough identity to address a tag-only sync.
type Customer struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
}

// Client fetches customer records from the payment-processor API.
type Client struct {
	httpClient *http.Client
	apiKey     string
	baseURL    string
}

func New(cfg config.Stripe) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "https://api.stripe.com"
	}
	return &Client{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		apiKey:     cfg.APIKey,
		baseURL:    strings.TrimRight(baseURL, "/"),
	}
}

// GetCustomer fetches one customer by id.
func (c *Client) GetCustomer(ctx context.Context, customerID string) (*Customer, error) {
	if customerID == "" {
		return nil, fmt.Errorf("customer id is required")
	}
	url := fmt.Sprintf("%s/v1/customers/%s", c.baseURL, customerID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch customer %s: %w", customerID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("fetch customer %s: status %d: %s", customerID, resp.StatusCode, body)
	}

	var customer Customer
	if err := json.NewDecoder(resp.Body).Decode(&customer); err != nil {
		return nil, fmt.Errorf("decode customer %s: %w", customerID, err)
	}
	return &customer, nil
}
