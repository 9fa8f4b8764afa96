package service

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"base44/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDrainSourcePaginates(t *testing.T) {
	var gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")

		page := PulledPage{}
		switch r.URL.Query().Get("cursor") {
		case "":
			page.Records = []map[string]interface{}{{"id": "1"}, {"id": "2"}}
			page.NextCursor = "page2"
		case "page2":
			page.Records = []map[string]interface{}{{"id": "3"}}
		default:
			t.Errorf("unexpected cursor %q", r.URL.Query().Get("cursor"))
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(page)
	}))
	defer server.Close()

	opts := model.PullOptions{BaseURL: server.URL, APIKey: "secret", PageSize: 2}
	records, err := DrainSource(context.Background(), NewHTTPSourceClient(), opts)
	require.NoError(t, err)

	assert.Len(t, records, 3)
	assert.Equal(t, "Bearer secret", gotAuth)
}

func TestDrainSourceStopsOnErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	opts := model.PullOptions{BaseURL: server.URL}
	_, err := DrainSource(context.Background(), NewHTTPSourceClient(), opts)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "403")
}

func TestDrainSourceBoundsPagination(t *testing.T) {
	// a source whose cursor never exhausts
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(PulledPage{
			Records:    []map[string]interface{}{{"id": "x"}},
			NextCursor: "again",
		})
	}))
	defer server.Close()

	opts := model.PullOptions{BaseURL: server.URL}
	_, err := DrainSource(context.Background(), NewHTTPSourceClient(), opts)
	require.Error(t, err)
	assert.Contains(t, err.Error(), fmt.Sprint(maxSourcePages))
}

func TestFetchPageRejectsBadURL(t *testing.T) {
	client := NewHTTPSourceClient()
	_, err := client.FetchPage(context.Background(), model.PullOptions{BaseURL: "://nope"}, "")
	assert.Error(t, err)
}
