package metadata

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"

	"ca-monitor/shared/logger"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// ErrRateLimited is returned internally when DexScreener answers 429.
var ErrRateLimited = errors.New("metadata provider rate limit exceeded (429)")

const (
	dexScreenerAttempts = 3
	transientBackoff    = 5 * time.Second
	rateLimitBackoff    = 30 * time.Second
)

// Info is the resolved metadata triple for a token address. All fields
// empty means no provider yielded data.
type Info struct {
	Name   string
	Ticker string
	Chain  string
}

// Found reports whether the resolution produced anything worth caching.
func (i Info) Found() bool {
	return i.Name != "" || i.Ticker != ""
}

// Resolver maps a raw contract address to display metadata. DexScreener's
// free-text search is the primary provider; Jupiter's mint lookup is the
// fallback for Solana-shaped addresses. Successful resolutions are cached
// for the process lifetime; a definitive not-found is never cached so a
// just-minted token can resolve on a later attempt.
type Resolver struct {
	dexScreenerURL string
	jupiterURL     string
	client         *http.Client
	limiter        *rate.Limiter
	log            *logger.Logger

	mu    sync.Mutex
	cache map[string]Info

	// sleep is swappable so retry tests do not wait out real backoffs.
	sleep func(time.Duration)
}

func NewResolver(dexScreenerURL, jupiterURL string, timeout time.Duration, appLogger *logger.Logger) *Resolver {
	return &Resolver{
		dexScreenerURL: dexScreenerURL,
		jupiterURL:     jupiterURL,
		client:         &http.Client{Timeout: timeout},
		limiter:        rate.NewLimiter(rate.Limit(4.66), 5),
		log:            appLogger,
		cache:          make(map[string]Info),
		sleep:          time.Sleep,
	}
}

// Resolve runs the provider chain for addr. It fails soft: an empty Info is
// returned when nothing resolves, never an error the caller must branch on.
func (r *Resolver) Resolve(ctx context.Context, addr string) Info {
	r.mu.Lock()
	cached, hit := r.cache[addr]
	r.mu.Unlock()
	if hit {
		r.log.Debug("Metadata cache hit", zap.String("address", addr))
		return cached
	}

	info := r.fetchFromDexScreener(ctx, addr)
	if info.Found() {
		r.store(addr, info)
		return info
	}

	if IsSolanaAddress(addr) {
		r.log.Debug("Trying Jupiter fallback", zap.String("address", addr))
		info = r.fetchFromJupiter(ctx, addr)
		if info.Found() {
			r.store(addr, info)
			return info
		}
	}

	return Info{}
}

func (r *Resolver) store(addr string, info Info) {
	r.mu.Lock()
	r.cache[addr] = info
	r.mu.Unlock()
}

type dexScreenerResponse struct {
	Pairs []struct {
		ChainID   string `json:"chainId"`
		BaseToken struct {
			Name   string `json:"name"`
			Symbol string `json:"symbol"`
		} `json:"baseToken"`
	} `json:"pairs"`
}

// fetchFromDexScreener queries the free-text search endpoint with retry and
// backoff: 429 waits 30s times the attempt number, timeouts and 5xx wait a
// fixed 5s, any other non-2xx gets one more attempt. An empty pair list is a
// definitive not-found and ends the chain immediately.
func (r *Resolver) fetchFromDexScreener(ctx context.Context, addr string) Info {
	endpoint := r.dexScreenerURL + "?q=" + url.QueryEscape(addr)

	for attempt := 1; attempt <= dexScreenerAttempts; attempt++ {
		r.log.Debug("DexScreener attempt", zap.Int("attempt", attempt), zap.String("address", addr))

		if err := r.limiter.Wait(ctx); err != nil {
			r.log.Warn("DexScreener rate limiter wait error", zap.Error(err))
			return Info{}
		}

		info, err := r.dexScreenerRequest(ctx, endpoint, addr)
		if err == nil {
			return info
		}

		switch {
		case errors.Is(err, ErrRateLimited):
			wait := rateLimitBackoff * time.Duration(attempt)
			r.log.Warn("DexScreener 429 rate limit", zap.Duration("wait", wait), zap.String("address", addr))
			if attempt < dexScreenerAttempts {
				r.sleep(wait)
			}
		case isTimeout(err):
			r.log.Warn("DexScreener timeout", zap.Int("attempt", attempt), zap.String("address", addr))
			if attempt < dexScreenerAttempts {
				r.sleep(transientBackoff)
			}
		default:
			r.log.Warn("DexScreener request failed", zap.Error(err), zap.String("address", addr))
			if attempt < dexScreenerAttempts {
				r.sleep(transientBackoff)
			}
		}
	}

	return Info{}
}

func (r *Resolver) dexScreenerRequest(ctx context.Context, endpoint, addr string) (Info, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return Info{}, fmt.Errorf("failed to build DexScreener request: %w", err)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return Info{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return Info{}, ErrRateLimited
	}
	if resp.StatusCode != http.StatusOK {
		return Info{}, fmt.Errorf("DexScreener HTTP %d", resp.StatusCode)
	}

	var data dexScreenerResponse
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return Info{}, fmt.Errorf("DexScreener JSON parsing failed: %w", err)
	}

	if len(data.Pairs) == 0 {
		// Definitive not-found: no retry, no fallback skip, no cache.
		r.log.Info("Token not found on DexScreener", zap.String("address", addr))
		return Info{}, nil
	}

	pair := data.Pairs[0]
	info := Info{
		Name:  pair.BaseToken.Name,
		Chain: pair.ChainID,
	}
	if info.Chain == "" {
		info.Chain = "unknown"
	}
	if pair.BaseToken.Symbol != "" {
		info.Ticker = "$" + pair.BaseToken.Symbol
	}
	r.log.Info("DexScreener resolved token",
		zap.String("name", info.Name), zap.String("ticker", info.Ticker), zap.String("chain", info.Chain))
	return info, nil
}

type jupiterResponse struct {
	Name   string `json:"name"`
	Symbol string `json:"symbol"`
}

// fetchFromJupiter does a single-attempt mint lookup. Solana only.
func (r *Resolver) fetchFromJupiter(ctx context.Context, addr string) Info {
	endpoint := strings.TrimRight(r.jupiterURL, "/") + "/" + url.PathEscape(addr)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		r.log.Warn("Failed to build Jupiter request", zap.Error(err))
		return Info{}
	}

	resp, err := r.client.Do(req)
	if err != nil {
		r.log.Warn("Jupiter request failed", zap.Error(err))
		return Info{}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		r.log.Warn("Jupiter returned non-OK status", zap.Int("status", resp.StatusCode))
		return Info{}
	}

	var data jupiterResponse
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		r.log.Warn("Jupiter JSON parsing failed", zap.Error(err))
		return Info{}
	}

	info := Info{Name: data.Name, Chain: "solana"}
	if data.Symbol != "" {
		info.Ticker = "$" + data.Symbol
	}
	if info.Found() {
		r.log.Info("Jupiter resolved token", zap.String("name", info.Name), zap.String("ticker", info.Ticker))
	}
	return info
}

// IsSolanaAddress reports whether addr parses as a Solana public key.
func IsSolanaAddress(addr string) bool {
	if addr == "" || strings.HasPrefix(addr, "0x") {
		return false
	}
	if len(addr) < 32 || len(addr) > 44 {
		return false
	}
	_, err := solana.PublicKeyFromBase58(addr)
	return err == nil
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}
	var netErr interface{ Timeout() bool }
	return errors.As(err, &netErr) && netErr.Timeout()
}
