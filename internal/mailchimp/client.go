// Package mailchimp is a thin typed client for the two contact-list
// operations this service performs: upserting a contact by its content-hash
// key and flipping the payment-status tag on that contact.
package mailchimp

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/sambatesdesign/ChimpLink/internal/platform/config"
)

// ContactKey computes the remote lookup key for an email address: the hex md5
// of its lowercase form. The platform has no rename operation, so locating a
// renamed contact means hashing the address it was last known under.
func ContactKey(email string) string {
	sum := md5.Sum([]byte(strings.ToLower(email)))
	return hex.EncodeToString(sum[:])
}

// ContactUpsert is the body of a contact create-or-update call.
type ContactUpsert struct {
	EmailAddress string            `json:"email_address"`
	StatusIfNew  string            `json:"status_if_new"`
	MergeFields  map[string]string `json:"merge_fields"`
}

// Tag is one tag mutation. Status is "active" or "inactive".
type Tag struct {
	Name   string `json:"name"`
	Status string `json:"status"`
}

type tagUpdate struct {
	Tags []Tag `json:"tags"`
}

// APIError is a non-2xx response from the contact-list API. The engine treats
// it as a remote rejection, distinct from transport failures.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("mailchimp rejected request: status %d: %s", e.StatusCode, e.Body)
}

// Client calls the contact-list API for a single audience.
type Client struct {
	httpClient *http.Client
	apiKey     string
	listID     string
	baseURL    string
}

// New builds a client from configuration. The 10s timeout bounds how long one
// webhook can stay blocked on a slow remote call.
func New(cfg config.Mailchimp) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = fmt.Sprintf("https://%s.api.mailchimp.com/3.0", cfg.ServerPrefix)
	}
	return &Client{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		apiKey:     cfg.APIKey,
		listID:     cfg.ListID,
		baseURL:    strings.TrimRight(baseURL, "/"),
	}
}

// UpsertContact creates or updates the contact stored under contactKey.
// Returns nil on 2xx, *APIError on rejection, and a plain error on transport
// failure.
func (c *Client) UpsertContact(ctx context.Context, contactKey string, upsert ContactUpsert) error {
	url := fmt.Sprintf("%s/lists/%s/members/%s", c.baseURL, c.listID, contactKey)
	return c.call(ctx, http.MethodPut, url, upsert)
}

// UpdateTag sets one tag's status on the contact stored under contactKey.
func (c *Client) UpdateTag(ctx context.Context, contactKey string, tag Tag) error {
	url := fmt.Sprintf("%s/lists/%s/members/%s/tags", c.baseURL, c.listID, contactKey)
	return c.call(ctx, http.MethodPost, url, tagUpdate{Tags: []Tag{tag}})
}

func (c *Client) call(ctx context.Context, method, url string, body any) error {
	encoded, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(encoded))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.SetBasicAuth("anystring", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("call mailchimp: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &APIError{StatusCode: resp.StatusCode, Body: string(respBody)}
	}
	return nil
}
