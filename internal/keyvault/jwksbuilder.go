package keyvault

import (
	"context"
	"sync"
	"time"
)

// JWKS is the JSON Web Key Set document spec §6 defines.
type JWKS struct {
	Keys []JWK `json:"keys"`
}

// jwkCache is a concurrent-read/serialized-write KID -> JWK map (§4.7).
type jwkCache struct {
	mu      sync.RWMutex
	entries map[string]JWK
}

func newJWKCache() *jwkCache { return &jwkCache{entries: make(map[string]JWK)} }

func (c *jwkCache) get(kid string) (JWK, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.entries[kid]
	return v, ok
}

func (c *jwkCache) set(kid string, jwk JWK) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[kid] = jwk
}

func (c *jwkCache) invalidate(kid string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, kid)
}

// JwksBuilder assembles a domain's JWKS from its public KIDs, caching the
// per-KID JWK conversion (§4.7).
type JwksBuilder struct {
	repo    *KeyRepository
	crypto  CryptoProvider
	cache   *jwkCache
	metrics metricsSink
}

// NewJwksBuilder builds a JwksBuilder over repo and crypto. metrics may be
// nil, in which case metrics are discarded.
func NewJwksBuilder(repo *KeyRepository, crypto CryptoProvider, metrics metricsSink) *JwksBuilder {
	if metrics == nil {
		metrics = defaultMetrics()
	}
	return &JwksBuilder{repo: repo, crypto: crypto, cache: newJWKCache(), metrics: metrics}
}

// InvalidateJWK drops kid's cached JWK; called by the Janitor when the
// underlying public PEM is removed.
func (b *JwksBuilder) InvalidateJWK(kid string) { b.cache.invalidate(kid) }

// GetJWKS returns domain's JWKS. Ordering matches repo's directory listing
// order for the current filesystem state (§4.7).
func (b *JwksBuilder) GetJWKS(ctx context.Context, domain string) (JWKS, error) {
	norm, err := NormalizeDomain(domain)
	if err != nil {
		return JWKS{}, err
	}
	defer b.metrics.MeasureSince(metricKeyJWKS, time.Now())

	kids, err := b.repo.ListPublicKIDs(ctx, norm)
	if err != nil {
		return JWKS{}, err
	}
	keys := make([]JWK, 0, len(kids))
	for _, kid := range kids {
		if jwk, ok := b.cache.get(kid); ok {
			b.metrics.IncrCounter(metricKeyCacheHit, 1)
			keys = append(keys, jwk)
			continue
		}
		b.metrics.IncrCounter(metricKeyCacheMiss, 1)
		pem, err := b.repo.ReadPublicPEM(ctx, kid)
		if err != nil {
			return JWKS{}, err
		}
		jwk, err := b.crypto.PemToJWK(pem, kid)
		if err != nil {
			return JWKS{}, newError(Fatal, "build jwks", err, "convert kid %s to jwk", kid)
		}
		b.cache.set(kid, jwk)
		keys = append(keys, jwk)
	}
	return JWKS{Keys: keys}, nil
}
