package dpla

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dpla/ingest-wikimedia/internal/httpretry"
)

func TestFetchRecord(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/items/abc123", r.URL.Path)
		assert.Equal(t, "secret", r.Header.Get("Authorization"))
		assert.Empty(t, r.URL.RawQuery)
		w.Write([]byte(`{"docs": [{"id": "abc123", "sourceResource": {"title": "A Map"}}]}`)) //nolint:errcheck
	}))
	defer server.Close()

	client := NewClient(httpretry.New(), server.URL, "secret")
	rec, err := client.FetchRecord(context.Background(), "abc123")
	require.NoError(t, err)

	assert.Equal(t, "abc123", rec.ID)
	assert.Equal(t, "A Map", rec.Title)
}

func TestFetchRecordNotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"docs": []}`)) //nolint:errcheck
	}))
	defer server.Close()

	client := NewClient(httpretry.New(), server.URL, "secret")
	_, err := client.FetchRecord(context.Background(), "missing")
	assert.True(t, errors.Is(err, ErrRecordNotFound))
}

func TestFetchRecordBadResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`not json`)) //nolint:errcheck
	}))
	defer server.Close()

	client := NewClient(httpretry.New(), server.URL, "secret")
	_, err := client.FetchRecord(context.Background(), "abc123")
	assert.Error(t, err)
}
