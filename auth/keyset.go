package auth

import (
	"context"
	"crypto/rsa"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/lestrrat-go/jwx/v3/jwk"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/upb/coffee-shop/internal/observability"
)

const (
	defaultFetchTimeout       = 5 * time.Second
	defaultCacheTTL           = 10 * time.Minute
	defaultMinRefreshInterval = 30 * time.Second

	maxJWKSBodySize = 1 << 20
)

// KeySource resolves the public key used to verify a token signed under kid
type KeySource interface {
	PublicKey(ctx context.Context, kid string) (*rsa.PublicKey, error)
}

// KeySetStore is an optional second-level store for the raw JWKS document,
// shared between replicas.
type KeySetStore interface {
	Get(ctx context.Context) ([]byte, error)
	Set(ctx context.Context, document []byte, ttl time.Duration) error
}

// ErrKeySetNotCached is returned by a KeySetStore holding no document
var ErrKeySetNotCached = errors.New("key set not cached")

// KeySetConfig holds configuration for KeySetCache
type KeySetConfig struct {
	JWKSURL            string
	CacheTTL           time.Duration
	FetchTimeout       time.Duration
	MinRefreshInterval time.Duration
	HTTPClient         *http.Client
	Store              KeySetStore
	Logger             *zap.Logger
	Metrics            *observability.Metrics
}

// KeySetStats is a snapshot of the cache state
type KeySetStats struct {
	Cached    bool      `json:"cached"`
	KeyCount  int       `json:"key_count"`
	ExpiresAt time.Time `json:"expires_at,omitempty"`
	LastFetch time.Time `json:"last_fetch,omitempty"`
	Fetches   int64     `json:"fetches"`
}

// KeySetCache fetches the identity provider's JWKS document and caches it for a TTL.
// Concurrent misses share one fetch, which is not tied to any single caller's context.
// An unknown kid forces at most one refresh attempt per MinRefreshInterval, successful
// or not, so rotated keys are picked up without letting forged kids hammer the provider.
type KeySetCache struct {
	jwksURL      string
	httpClient   *http.Client
	ttl          time.Duration
	fetchTimeout time.Duration
	minRefresh   time.Duration
	store        KeySetStore
	logger       *zap.Logger
	metrics      *observability.Metrics

	mu          sync.RWMutex
	set         jwk.Set
	expiresAt   time.Time
	lastFetch   time.Time
	lastAttempt time.Time
	fetches     int64

	group singleflight.Group
	now   func() time.Time
}

// NewKeySetCache creates a KeySetCache with defaults applied
func NewKeySetCache(cfg KeySetConfig) *KeySetCache {
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = defaultCacheTTL
	}
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = defaultFetchTimeout
	}
	if cfg.MinRefreshInterval == 0 {
		cfg.MinRefreshInterval = defaultMinRefreshInterval
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: cfg.FetchTimeout}
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	return &KeySetCache{
		jwksURL:      cfg.JWKSURL,
		httpClient:   cfg.HTTPClient,
		ttl:          cfg.CacheTTL,
		fetchTimeout: cfg.FetchTimeout,
		minRefresh:   cfg.MinRefreshInterval,
		store:        cfg.Store,
		logger:       cfg.Logger,
		metrics:      cfg.Metrics,
		now:          time.Now,
	}
}

// PublicKey returns the RSA key whose kid matches, refreshing the set once if the kid is unknown
func (c *KeySetCache) PublicKey(ctx context.Context, kid string) (*rsa.PublicKey, error) {
	set, err := c.keySet(ctx, false)
	if err != nil {
		return nil, err
	}

	key, ok := set.LookupKeyID(kid)
	if !ok && c.claimRefresh() {
		c.logger.Info("unknown kid, refreshing key set", zap.String("kid", kid))
		refreshed, err := c.keySet(ctx, true)
		if err != nil {
			// fall back to the cached set
			c.logger.Warn("key set refresh failed, using cached keys",
				zap.String("kid", kid), zap.Error(err))
		} else {
			key, ok = refreshed.LookupKeyID(kid)
		}
	}
	if !ok {
		return nil, NewAuthError(ErrCodeKeyNotFound, "Unable to find the appropriate key.",
			fmt.Errorf("kid %q not present in key set", kid))
	}

	var raw any
	if err := jwk.Export(key, &raw); err != nil {
		return nil, NewAuthError(ErrCodeKeyNotFound, "Unable to find the appropriate key.",
			fmt.Errorf("export key %q: %w", kid, err))
	}

	publicKey, ok := raw.(*rsa.PublicKey)
	if !ok {
		return nil, NewAuthError(ErrCodeKeyNotFound, "Unable to find the appropriate key.",
			fmt.Errorf("key %q is %T, not an RSA public key", kid, raw))
	}

	return publicKey, nil
}

// Stats returns cache statistics
func (c *KeySetCache) Stats() KeySetStats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	stats := KeySetStats{
		Cached:    c.set != nil,
		ExpiresAt: c.expiresAt,
		LastFetch: c.lastFetch,
		Fetches:   c.fetches,
	}
	if c.set != nil {
		stats.KeyCount = c.set.Len()
	}
	return stats
}

func (c *KeySetCache) cached() (jwk.Set, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.set != nil && c.now().Before(c.expiresAt) {
		return c.set, true
	}
	return nil, false
}

// claimRefresh reserves the next forced refresh slot. It reports false while the
// previous attempt is younger than the minimum refresh interval.
func (c *KeySetCache) claimRefresh() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	if now.Sub(c.lastAttempt) < c.minRefresh {
		return false
	}
	c.lastAttempt = now
	return true
}

func (c *KeySetCache) recordAttempt() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastAttempt = c.now()
}

func (c *KeySetCache) keySet(ctx context.Context, force bool) (jwk.Set, error) {
	if !force {
		if set, ok := c.cached(); ok {
			c.metrics.RecordKeyCacheLookup(true)
			return set, nil
		}
		c.metrics.RecordKeyCacheLookup(false)
	}

	flight := "load"
	if force {
		flight = "refresh"
	}

	result := c.group.DoChan(flight, func() (any, error) {
		// outlives any single caller; bounded by the fetch timeout
		loadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.fetchTimeout)
		defer cancel()

		if !force {
			if set, ok := c.cached(); ok {
				return set, nil
			}
			if set, ok := c.loadFromStore(loadCtx); ok {
				return set, nil
			}
		}
		return c.fetch(loadCtx)
	})

	select {
	case res := <-result:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(jwk.Set), nil
	case <-ctx.Done():
		return nil, NewAuthError(ErrCodeJWKSUnavailable, "Unable to fetch signing keys.", ctx.Err())
	}
}

func (c *KeySetCache) loadFromStore(ctx context.Context) (jwk.Set, bool) {
	if c.store == nil {
		return nil, false
	}

	document, err := c.store.Get(ctx)
	if err != nil {
		if !errors.Is(err, ErrKeySetNotCached) {
			c.logger.Warn("failed to read shared key set", zap.Error(err))
		}
		return nil, false
	}

	set, err := jwk.Parse(document)
	if err != nil {
		c.logger.Warn("discarding unparseable shared key set", zap.Error(err))
		return nil, false
	}

	c.install(set, false)
	c.logger.Debug("key set loaded from shared store", zap.Int("keys", set.Len()))
	return set, true
}

func (c *KeySetCache) fetch(ctx context.Context) (jwk.Set, error) {
	c.recordAttempt()
	start := c.now()

	set, document, err := c.downloadAndParse(ctx)
	c.metrics.RecordJWKSFetch(err == nil, c.now().Sub(start))
	if err != nil {
		c.logger.Error("failed to fetch key set", zap.String("url", c.jwksURL), zap.Error(err))
		return nil, NewAuthError(ErrCodeJWKSUnavailable, "Unable to fetch signing keys.", err)
	}

	c.install(set, true)
	c.logger.Info("fetched key set",
		zap.String("url", c.jwksURL),
		zap.Int("keys", set.Len()),
	)

	if c.store != nil {
		if err := c.store.Set(ctx, document, c.ttl); err != nil {
			c.logger.Warn("failed to write shared key set", zap.Error(err))
		}
	}

	return set, nil
}

func (c *KeySetCache) downloadAndParse(ctx context.Context) (jwk.Set, []byte, error) {
	document, err := c.download(ctx)
	if err != nil {
		return nil, nil, err
	}

	set, err := jwk.Parse(document)
	if err != nil {
		return nil, nil, fmt.Errorf("parse JWKS: %w", err)
	}

	return set, document, nil
}

func (c *KeySetCache) download(ctx context.Context) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.jwksURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request JWKS: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("request JWKS: status code %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxJWKSBodySize))
	if err != nil {
		return nil, fmt.Errorf("read JWKS: %w", err)
	}
	if len(strings.TrimSpace(string(body))) == 0 {
		return nil, errors.New("read JWKS: empty document")
	}

	return body, nil
}

func (c *KeySetCache) install(set jwk.Set, fetched bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	c.set = set
	c.expiresAt = now.Add(c.ttl)
	if fetched {
		c.lastFetch = now
		c.fetches++
	}
}
