package metadata

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"ca-monitor/shared/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	solMint = "So11111111111111111111111111111111111111112"
	evmAddr = "0x6982508145454ce325ddbe47a25d4ec3d2311933"
)

func newTestResolver(t *testing.T, dexURL, jupURL string) (*Resolver, *[]time.Duration) {
	t.Helper()
	appLogger, err := logger.NewLogger(logger.Config{Level: "error", Environment: "test"})
	require.NoError(t, err)

	r := NewResolver(dexURL, jupURL, time.Second, appLogger)
	var slept []time.Duration
	r.sleep = func(d time.Duration) { slept = append(slept, d) }
	return r, &slept
}

func TestResolveRetriesAfterRateLimit(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) <= 2 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte(`{"pairs":[{"chainId":"solana","baseToken":{"name":"Wrapped SOL","symbol":"SOL"}}]}`))
	}))
	defer srv.Close()

	r, slept := newTestResolver(t, srv.URL, srv.URL)

	info := r.Resolve(context.Background(), solMint)
	assert.Equal(t, "Wrapped SOL", info.Name)
	assert.Equal(t, "$SOL", info.Ticker)
	assert.Equal(t, "solana", info.Chain)

	// Backoff grows with the attempt number.
	assert.Equal(t, []time.Duration{30 * time.Second, 60 * time.Second}, *slept)
	assert.EqualValues(t, 3, calls.Load())
}

func TestResolveCachesSuccess(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Write([]byte(`{"pairs":[{"chainId":"ethereum","baseToken":{"name":"Pepe","symbol":"PEPE"}}]}`))
	}))
	defer srv.Close()

	r, _ := newTestResolver(t, srv.URL, srv.URL)

	first := r.Resolve(context.Background(), evmAddr)
	second := r.Resolve(context.Background(), evmAddr)

	assert.Equal(t, first, second)
	assert.Equal(t, "Pepe", second.Name)
	assert.EqualValues(t, 1, calls.Load(), "second resolve must come from cache")
}

func TestResolveNotFoundIsNotCached(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Write([]byte(`{"pairs":[]}`))
	}))
	defer srv.Close()

	// EVM address so the Jupiter fallback stays out of the request count.
	r, slept := newTestResolver(t, srv.URL, srv.URL)

	assert.Equal(t, Info{}, r.Resolve(context.Background(), evmAddr))
	assert.Equal(t, Info{}, r.Resolve(context.Background(), evmAddr))

	// An empty pair list is definitive: no retries, and a later attempt
	// still goes back to the provider.
	assert.EqualValues(t, 2, calls.Load())
	assert.Empty(t, *slept)
}

func TestResolveJupiterFallback(t *testing.T) {
	dex := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"pairs":[]}`))
	}))
	defer dex.Close()

	jup := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "/"+solMint))
		w.Write([]byte(`{"name":"Wrapped SOL","symbol":"SOL"}`))
	}))
	defer jup.Close()

	r, _ := newTestResolver(t, dex.URL, jup.URL)

	info := r.Resolve(context.Background(), solMint)
	assert.Equal(t, "Wrapped SOL", info.Name)
	assert.Equal(t, "$SOL", info.Ticker)
	assert.Equal(t, "solana", info.Chain)
}

func TestIsSolanaAddress(t *testing.T) {
	assert.True(t, IsSolanaAddress(solMint))
	assert.False(t, IsSolanaAddress(evmAddr))
	assert.False(t, IsSolanaAddress("tooShort"))
	assert.False(t, IsSolanaAddress(""))
	assert.False(t, IsSolanaAddress(strings.Repeat("x", 50)))
}
