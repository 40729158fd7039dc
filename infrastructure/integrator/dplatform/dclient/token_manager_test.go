package dclient

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vfg2006/adstats-sync/internal/config"
	"github.com/vfg2006/adstats-sync/internal/domain"
	"github.com/vfg2006/adstats-sync/internal/metrics"
)

type memoryCache struct {
	mu     sync.Mutex
	values map[string]string
}

func (c *memoryCache) Get(_ context.Context, key string) (string, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.values[key]
	return v, ok, nil
}

func (c *memoryCache) Set(_ context.Context, key, value string, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.values[key] = value
	return nil
}

func (c *memoryCache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.values, key)
	return nil
}

func newAuthServer(calls *atomic.Int32, status int) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if status != http.StatusOK {
			w.WriteHeader(status)
			return
		}
		w.Write([]byte(`{"access_token": "session"}`))
	}))
}

func TestTokenManager_SingleExchangeUnderConcurrency(t *testing.T) {
	var calls atomic.Int32
	srv := newAuthServer(&calls, http.StatusOK)
	defer srv.Close()

	cfg := config.DPlatform{BaseURL: srv.URL, SessionTTL: time.Hour}
	tm := NewTokenManager(cfg, &http.Client{Timeout: 5 * time.Second}, nil, metrics.NewNop())

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			token, err := tm.Token(context.Background(), "long-lived")
			assert.NoError(t, err)
			assert.Equal(t, "session", token)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())
}

func TestTokenManager_ExpiredSessionIsRenewed(t *testing.T) {
	var calls atomic.Int32
	srv := newAuthServer(&calls, http.StatusOK)
	defer srv.Close()

	now := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	cfg := config.DPlatform{BaseURL: srv.URL, SessionTTL: 55 * time.Minute}
	tm := NewTokenManager(cfg, &http.Client{Timeout: 5 * time.Second}, nil, metrics.NewNop())
	tm.now = func() time.Time { return now }

	_, err := tm.Token(context.Background(), "long-lived")
	require.NoError(t, err)

	now = now.Add(54 * time.Minute)
	_, err = tm.Token(context.Background(), "long-lived")
	require.NoError(t, err)
	assert.Equal(t, int32(1), calls.Load())

	now = now.Add(2 * time.Minute)
	_, err = tm.Token(context.Background(), "long-lived")
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())
}

func TestTokenManager_UsesSharedCache(t *testing.T) {
	var calls atomic.Int32
	srv := newAuthServer(&calls, http.StatusOK)
	defer srv.Close()

	cache := &memoryCache{values: map[string]string{}}
	cfg := config.DPlatform{BaseURL: srv.URL, SessionTTL: time.Hour}

	first := NewTokenManager(cfg, &http.Client{Timeout: 5 * time.Second}, cache, metrics.NewNop())
	_, err := first.Token(context.Background(), "long-lived")
	require.NoError(t, err)
	assert.Equal(t, "session", cache.values[sessionKey("long-lived")])
	assert.NotContains(t, cache.values, "long-lived")

	// Outra réplica reaproveita a sessão do cache
	second := NewTokenManager(cfg, &http.Client{Timeout: 5 * time.Second}, cache, metrics.NewNop())
	token, err := second.Token(context.Background(), "long-lived")
	require.NoError(t, err)
	assert.Equal(t, "session", token)
	assert.Equal(t, int32(1), calls.Load())

	second.Invalidate(context.Background(), "long-lived", "session")
	assert.Empty(t, cache.values)
}

func TestTokenManager_InvalidateKeepsRenewedSession(t *testing.T) {
	var calls atomic.Int32
	srv := newAuthServer(&calls, http.StatusOK)
	defer srv.Close()

	cfg := config.DPlatform{BaseURL: srv.URL, SessionTTL: time.Hour}
	tm := NewTokenManager(cfg, &http.Client{Timeout: 5 * time.Second}, nil, metrics.NewNop())

	_, err := tm.Token(context.Background(), "long-lived")
	require.NoError(t, err)

	tm.Invalidate(context.Background(), "long-lived", "older-session")
	_, err = tm.Token(context.Background(), "long-lived")
	require.NoError(t, err)
	assert.Equal(t, int32(1), calls.Load())
}

func TestTokenManager_Errors(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		credential string
		wantErr    error
	}{
		{name: "Credencial ausente", status: http.StatusOK, credential: "", wantErr: domain.ErrCredentialMissing},
		{name: "Credencial recusada", status: http.StatusUnauthorized, credential: "long-lived", wantErr: domain.ErrAuth},
		{name: "Erro no servidor", status: http.StatusServiceUnavailable, credential: "long-lived", wantErr: domain.ErrTransientNetwork},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls atomic.Int32
			srv := newAuthServer(&calls, tt.status)
			defer srv.Close()

			cfg := config.DPlatform{BaseURL: srv.URL, SessionTTL: time.Hour}
			tm := NewTokenManager(cfg, &http.Client{Timeout: 5 * time.Second}, nil, metrics.NewNop())

			_, err := tm.Token(context.Background(), tt.credential)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.wantErr))
		})
	}
}
