package tmdb

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/streamvault/streamvault/internal/catalog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolve_Movie(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/3/movie/27205", r.URL.Path)
		require.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":27205,"title":"Inception"}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "test-token", "http://origin/sample.mp4")

	item, err := c.Resolve(context.Background(), catalog.MediaTypeMovie, "27205")
	require.NoError(t, err)
	assert.Equal(t, "Inception", item.Title)
	assert.Equal(t, "http://origin/sample.mp4", item.SourceURL)
}

func TestResolve_TVUsesNameField(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/3/tv/1396", r.URL.Path)
		w.Write([]byte(`{"id":1396,"name":"Breaking Bad"}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "test-token", "http://origin/sample.mp4")

	item, err := c.Resolve(context.Background(), catalog.MediaTypeTV, "1396")
	require.NoError(t, err)
	assert.Equal(t, "Breaking Bad", item.Title)
}

func TestResolve_Errors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		check  func(t *testing.T, err error)
	}{
		{
			name:   "unknown id",
			status: http.StatusNotFound,
			body:   `{"status_message":"The resource you requested could not be found."}`,
			check: func(t *testing.T, err error) {
				assert.ErrorIs(t, err, catalog.ErrNotFound)
			},
		},
		{
			name:   "bad token",
			status: http.StatusUnauthorized,
			body:   `{"status_message":"Invalid API key"}`,
			check: func(t *testing.T, err error) {
				var authErr *catalog.AuthError
				require.True(t, errors.As(err, &authErr))
				assert.Equal(t, "tmdb", authErr.Backend)
			},
		},
		{
			name:   "origin melting down",
			status: http.StatusInternalServerError,
			body:   ``,
			check: func(t *testing.T, err error) {
				assert.Error(t, err)
				assert.NotErrorIs(t, err, catalog.ErrNotFound)
			},
		},
		{
			name:   "payload without title",
			status: http.StatusOK,
			body:   `{"id":1}`,
			check: func(t *testing.T, err error) {
				assert.ErrorIs(t, err, catalog.ErrNotFound)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			c := NewClient(srv.URL, "test-token", "http://origin/sample.mp4")

			_, err := c.Resolve(context.Background(), catalog.MediaTypeMovie, "1")
			require.Error(t, err)
			tt.check(t, err)
		})
	}
}
