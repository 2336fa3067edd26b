package kv

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/newthinker/vanguard/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestS3_ImplementsStore(t *testing.T) {
	var _ Store = (*S3)(nil)
}

func TestS3_Key(t *testing.T) {
	tests := []struct {
		prefix string
		key    string
		want   string
	}{
		{"", "state.json", "state.json"},
		{"vanguard", "state.json", "vanguard/state.json"},
		{"vanguard/", "state.json", "vanguard/state.json"},
	}

	for _, tt := range tests {
		s, err := NewS3(config.S3Config{Bucket: "b", Prefix: tt.prefix})
		require.NoError(t, err)
		assert.Equal(t, tt.want, s.key(tt.key))
	}
}

// fakeS3 serves path-style GET and PUT object requests from memory.
func fakeS3(t *testing.T) *httptest.Server {
	t.Helper()
	var (
		mu      sync.Mutex
		objects = map[string][]byte{}
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()

		path := strings.TrimPrefix(r.URL.Path, "/")
		switch r.Method {
		case http.MethodPut:
			body, _ := io.ReadAll(r.Body)
			objects[path] = body
			w.Header().Set("ETag", `"etag"`)
			w.WriteHeader(http.StatusOK)
		case http.MethodGet:
			data, ok := objects[path]
			if !ok {
				w.Header().Set("Content-Type", "application/xml")
				w.WriteHeader(http.StatusNotFound)
				_, _ = w.Write([]byte(`<?xml version="1.0" encoding="UTF-8"?><Error><Code>NoSuchKey</Code><Message>The specified key does not exist.</Message></Error>`))
				return
			}
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write(data)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestS3_RoundTrip(t *testing.T) {
	srv := fakeS3(t)

	s, err := NewS3(config.S3Config{
		Bucket:    "engine",
		Endpoint:  srv.URL,
		AccessKey: "test",
		SecretKey: "test",
		Prefix:    "prod",
	})
	require.NoError(t, err)

	testStoreRoundTrip(t, s)
}

func TestS3_GetError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	s, err := NewS3(config.S3Config{Bucket: "engine", Endpoint: srv.URL, AccessKey: "a", SecretKey: "b"})
	require.NoError(t, err)

	_, found, err := s.Get(context.Background(), "state.json")
	assert.Error(t, err)
	assert.False(t, found)
}
