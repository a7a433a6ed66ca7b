package mailchimp

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sambatesdesign/ChimpLink/internal/platform/config"
)

func TestContactKey(t *testing.T) {
	// md5 of the lowercased address; case must not change the key.
	assert.Equal(t, "357a20e8c56e69d6f9734d23ef9517e8", ContactKey("a@b.com"))
	assert.Equal(t, ContactKey("a@b.com"), ContactKey("A@B.COM"))
	assert.NotEqual(t, ContactKey("a@b.com"), ContactKey("b@b.com"))
}

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return New(config.Mailchimp{
		APIKey:  "key",
		ListID:  "list1",
		BaseURL: srv.URL,
		Timeout: 2 * time.Second,
	})
}

func TestUpsertContact(t *testing.T) {
	var gotPath, gotMethod string
	var gotBody ContactUpsert
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotMethod = r.Method
		user, pass, ok := r.BasicAuth()
		require.True(t, ok)
		assert.Equal(t, "anystring", user)
		assert.Equal(t, "key", pass)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.WriteHeader(http.StatusOK)
	})

	err := client.UpsertContact(context.Background(), "abc123", ContactUpsert{
		EmailAddress: "a@b.com",
		StatusIfNew:  "subscribed",
		MergeFields:  map[string]string{"FNAME": "Ada"},
	})
	require.NoError(t, err)
	assert.Equal(t, http.MethodPut, gotMethod)
	assert.Equal(t, "/lists/list1/members/abc123", gotPath)
	assert.Equal(t, "a@b.com", gotBody.EmailAddress)
	assert.Equal(t, "subscribed", gotBody.StatusIfNew)
}

func TestUpsertContactRejection(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"title":"Invalid Resource"}`))
	})

	err := client.UpsertContact(context.Background(), "abc123", ContactUpsert{})
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	assert.Contains(t, apiErr.Body, "Invalid Resource")
}

func TestUpdateTag(t *testing.T) {
	var gotPath string
	var gotBody struct {
		Tags []Tag `json:"tags"`
	}
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.WriteHeader(http.StatusNoContent)
	})

	err := client.UpdateTag(context.Background(), "abc123", Tag{Name: "Payment Failed", Status: "active"})
	require.NoError(t, err)
	assert.Equal(t, "/lists/list1/members/abc123/tags", gotPath)
	require.Len(t, gotBody.Tags, 1)
	assert.Equal(t, "Payment Failed", gotBody.Tags[0].Name)
	assert.Equal(t, "active", gotBody.Tags[0].Status)
}

func TestTransportErrorIsNotAPIError(t *testing.T) {
	client := New(config.Mailchimp{
		APIKey:  "key",
		ListID:  "list1",
		BaseURL: "http://127.0.0.1:1", // nothing listens here
		Timeout: 200 * time.Millisecond,
	})

	err := client.UpsertContact(context.Background(), "abc123", ContactUpsert{})
	require.Error(t, err)
	var apiErr *APIError
	assert.False(t, errors.As(err, &apiErr))
}
