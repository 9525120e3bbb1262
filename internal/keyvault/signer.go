package keyvault

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"sync"
	"time"
)

const (
	defaultSignerTTLSeconds = 2_592_000
	defaultSignerMaxPayload = 4096
)

// SignOptions customizes a single Sign call; the zero value uses the
// Signer's configured default TTL and no extra claims.
type SignOptions struct {
	TTLSeconds       float64
	AdditionalClaims map[string]any
}

// signingKeyCache is a concurrent-read/serialized-write KID -> parsed
// signing handle map (§4.6, §5).
type signingKeyCache struct {
	mu      sync.RWMutex
	entries map[string]SigningKey
}

func newSigningKeyCache() *signingKeyCache {
	return &signingKeyCache{entries: make(map[string]SigningKey)}
}

func (c *signingKeyCache) get(kid string) (SigningKey, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.entries[kid]
	return v, ok
}

func (c *signingKeyCache) set(kid string, key SigningKey) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[kid] = key
}

func (c *signingKeyCache) invalidate(kid string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, kid)
}

// Signer builds and signs JWTs against a domain's active key (§4.6).
type Signer struct {
	resolver   *KeyResolver
	crypto     CryptoProvider
	cache      *signingKeyCache
	defaultTTL float64
	maxPayload int
	now        func() time.Time
	metrics    metricsSink
}

// NewSigner builds a Signer. defaultTTLSeconds and maxPayloadBytes fall back
// to spec defaults (30 days, 4096 bytes) when zero. metrics may be nil, in
// which case metrics are discarded.
func NewSigner(resolver *KeyResolver, crypto CryptoProvider, defaultTTLSeconds float64, maxPayloadBytes int, metrics metricsSink) *Signer {
	if defaultTTLSeconds <= 0 {
		defaultTTLSeconds = defaultSignerTTLSeconds
	}
	if maxPayloadBytes <= 0 {
		maxPayloadBytes = defaultSignerMaxPayload
	}
	if metrics == nil {
		metrics = defaultMetrics()
	}
	return &Signer{
		resolver:   resolver,
		crypto:     crypto,
		cache:      newSigningKeyCache(),
		defaultTTL: defaultTTLSeconds,
		maxPayload: maxPayloadBytes,
		now:        time.Now,
		metrics:    metrics,
	}
}

// InvalidateSigningKey drops kid's cached parsed signing handle; called by
// the Janitor when the underlying private PEM is removed.
func (s *Signer) InvalidateSigningKey(kid string) { s.cache.invalidate(kid) }

type jwtHeader struct {
	Alg string `json:"alg"`
	Typ string `json:"typ"`
	Kid string `json:"kid"`
}

// Sign builds, signs, and returns a compact JWT for domain using its active
// key (§4.6's algorithm).
func (s *Signer) Sign(ctx context.Context, domain string, payload map[string]any, opts SignOptions) (string, error) {
	defer s.metrics.MeasureSince(metricKeySign, s.now())

	norm, err := NormalizeDomain(domain)
	if err != nil {
		return "", err
	}
	if payload == nil {
		return "", newError(InvalidArgument, "sign", nil, "payload must be a non-null object")
	}
	rawPayload, err := json.Marshal(payload)
	if err != nil {
		return "", newError(Fatal, "sign", err, "marshal payload for domain %s", norm)
	}
	if len(rawPayload) > s.maxPayload {
		return "", newError(InvalidArgument, "sign", nil, "payload exceeds %d bytes", s.maxPayload)
	}

	ttl := opts.TTLSeconds
	if ttl == 0 {
		ttl = s.defaultTTL
	}
	if ttl <= 0 {
		return "", newError(InvalidArgument, "sign", nil, "ttlSeconds must be positive")
	}

	kid, err := s.resolver.ActiveKID(norm)
	if err != nil {
		return "", err
	}
	if kid == "" {
		return "", newError(NotFound, "sign", nil, "no active kid for domain %s", norm)
	}

	claims := make(map[string]any, len(opts.AdditionalClaims)+len(payload)+2)
	for k, v := range opts.AdditionalClaims {
		claims[k] = v
	}
	for k, v := range payload {
		claims[k] = v
	}
	iat := s.now().UTC()
	claims["iat"] = iat.Unix()
	if _, hasExp := claims["exp"]; !hasExp {
		claims["exp"] = iat.Add(time.Duration(ttl) * time.Second).Unix()
	}

	payloadJSON, err := json.Marshal(claims)
	if err != nil {
		return "", newError(Fatal, "sign", err, "marshal payload for domain %s", norm)
	}

	header := jwtHeader{Alg: "RS256", Typ: "JWT", Kid: kid}
	headerJSON, err := json.Marshal(header)
	if err != nil {
		return "", newError(Fatal, "sign", err, "marshal header for domain %s", norm)
	}

	signingInput := base64.RawURLEncoding.EncodeToString(headerJSON) + "." +
		base64.RawURLEncoding.EncodeToString(payloadJSON)

	signingKey, ok := s.cache.get(kid)
	if !ok {
		s.metrics.IncrCounter(metricKeyCacheMiss, 1)
		pem, err := s.resolver.SigningKey(ctx, norm)
		if err != nil {
			return "", err
		}
		signingKey, err = s.crypto.ImportPrivateKey(pem)
		if err != nil {
			return "", newError(Fatal, "sign", err, "import private key for kid %s", kid)
		}
		s.cache.set(kid, signingKey)
	} else {
		s.metrics.IncrCounter(metricKeyCacheHit, 1)
	}

	sig, err := s.crypto.Sign(signingKey, []byte(signingInput))
	if err != nil {
		return "", newError(Fatal, "sign", err, "sign payload for domain %s", norm)
	}
	return signingInput + "." + sig, nil
}
