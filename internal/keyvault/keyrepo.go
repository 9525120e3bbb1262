package keyvault

import (
	"context"
	"path"
	"strings"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/itsGurdevSingh/keyvault/internal/blobstore"
)

const (
	keysRoot     = "keys"
	privateDir   = "private"
	publicDir    = "public"
	pemExtension = ".pem"
)

func privatePath(domain, kid string) string {
	return path.Join(keysRoot, domain, privateDir, kid+pemExtension)
}

func publicPath(domain, kid string) string {
	return path.Join(keysRoot, domain, publicDir, kid+pemExtension)
}

// pemCache is a concurrent-read/serialized-write KID->PEM map. It is
// authoritative for the process: a cached entry may outlive the underlying
// file (spec §4.3), so reads during a concurrent reap stay graceful.
type pemCache struct {
	mu      sync.RWMutex
	entries map[string]string
}

func newPEMCache() *pemCache { return &pemCache{entries: make(map[string]string)} }

func (c *pemCache) get(kid string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.entries[kid]
	return v, ok
}

func (c *pemCache) set(kid, pem string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[kid] = pem
}

func (c *pemCache) invalidate(kid string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, kid)
}

// KeyRepository is the canonical mapping between a domain/KID and its PEM
// artifacts, with layered read caches (§4.3).
type KeyRepository struct {
	store   BlobStore
	crypto  CryptoProvider
	public  *pemCache
	private *pemCache
	// group collapses concurrent cold reads of the same KID's PEM into a
	// single blob read.
	group   singleflight.Group
	metrics metricsSink
}

// NewKeyRepository builds a KeyRepository over store, using crypto only to
// parse KIDs back to their owning domain. metrics may be nil, in which case
// metrics are discarded.
func NewKeyRepository(store BlobStore, crypto CryptoProvider, metrics metricsSink) *KeyRepository {
	if metrics == nil {
		metrics = defaultMetrics()
	}
	return &KeyRepository{
		store:   store,
		crypto:  crypto,
		public:  newPEMCache(),
		private: newPEMCache(),
		metrics: metrics,
	}
}

// EnsureDirs creates the private/public directory structure for domain.
func (r *KeyRepository) EnsureDirs(ctx context.Context, domain string) error {
	if err := r.store.EnsureDir(ctx, path.Join(keysRoot, domain, privateDir)); err != nil {
		return newError(Transient, "ensure dirs", err, "private dir for %s", domain)
	}
	if err := r.store.EnsureDir(ctx, path.Join(keysRoot, domain, publicDir)); err != nil {
		return newError(Transient, "ensure dirs", err, "public dir for %s", domain)
	}
	return nil
}

// SaveKeyPair writes both PEM files for (domain, kid), per §3's mode bits.
func (r *KeyRepository) SaveKeyPair(ctx context.Context, domain, kid, publicPEM, privatePEM string) error {
	if err := r.EnsureDirs(ctx, domain); err != nil {
		return err
	}
	if err := r.store.Write(ctx, privatePath(domain, kid), []byte(privatePEM), blobstore.ModePrivate); err != nil {
		return newError(Transient, "save key pair", err, "write private pem for %s", kid)
	}
	if err := r.store.Write(ctx, publicPath(domain, kid), []byte(publicPEM), blobstore.ModePublic); err != nil {
		return newError(Transient, "save key pair", err, "write public pem for %s", kid)
	}
	r.private.set(kid, privatePEM)
	r.public.set(kid, publicPEM)
	return nil
}

func (r *KeyRepository) domainOf(kid string) (string, error) {
	parsed, ok := r.crypto.ParseKID(kid)
	if !ok {
		return "", newError(InvalidArgument, "resolve domain", nil, "kid %q does not parse", kid)
	}
	return parsed.Domain, nil
}

// ReadPublicPEM returns the public PEM for kid, consulting cache first.
func (r *KeyRepository) ReadPublicPEM(ctx context.Context, kid string) (string, error) {
	return r.readPEM(ctx, kid, r.public, publicPath)
}

// ReadPrivatePEM returns the private PEM for kid, consulting cache first.
func (r *KeyRepository) ReadPrivatePEM(ctx context.Context, kid string) (string, error) {
	return r.readPEM(ctx, kid, r.private, privatePath)
}

func (r *KeyRepository) readPEM(ctx context.Context, kid string, cache *pemCache, pathFn func(domain, kid string) string) (string, error) {
	if pem, ok := cache.get(kid); ok {
		r.metrics.IncrCounter(metricKeyCacheHit, 1)
		return pem, nil
	}
	r.metrics.IncrCounter(metricKeyCacheMiss, 1)
	domain, err := r.domainOf(kid)
	if err != nil {
		return "", err
	}
	v, err, _ := r.group.Do(pathFn(domain, kid), func() (any, error) {
		raw, err := r.store.Read(ctx, pathFn(domain, kid))
		if err != nil {
			return "", newError(NotFound, "read pem", err, "kid %s", kid)
		}
		pem := string(raw)
		cache.set(kid, pem)
		return pem, nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// ListPublicKIDs lists every KID with a public PEM under domain.
func (r *KeyRepository) ListPublicKIDs(ctx context.Context, domain string) ([]string, error) {
	return r.listKIDs(ctx, path.Join(keysRoot, domain, publicDir))
}

// ListPrivateKIDs lists every KID with a private PEM under domain.
func (r *KeyRepository) ListPrivateKIDs(ctx context.Context, domain string) ([]string, error) {
	return r.listKIDs(ctx, path.Join(keysRoot, domain, privateDir))
}

func (r *KeyRepository) listKIDs(ctx context.Context, dir string) ([]string, error) {
	names, err := r.store.List(ctx, dir)
	if err != nil {
		return nil, newError(Transient, "list kids", err, "list dir %s", dir)
	}
	out := make([]string, 0, len(names))
	for _, name := range names {
		if !strings.HasSuffix(name, pemExtension) {
			continue
		}
		out = append(out, strings.TrimSuffix(name, pemExtension))
	}
	return out, nil
}

// DeletePublic removes a KID's public PEM and invalidates its public cache
// entry; idempotent.
func (r *KeyRepository) DeletePublic(ctx context.Context, kid string) error {
	domain, err := r.domainOf(kid)
	if err != nil {
		return err
	}
	if err := r.store.Delete(ctx, publicPath(domain, kid)); err != nil {
		return newError(Transient, "delete public", err, "kid %s", kid)
	}
	r.public.invalidate(kid)
	return nil
}

// DeletePrivate removes a KID's private PEM and invalidates its private
// cache entry; idempotent.
func (r *KeyRepository) DeletePrivate(ctx context.Context, kid string) error {
	domain, err := r.domainOf(kid)
	if err != nil {
		return err
	}
	if err := r.store.Delete(ctx, privatePath(domain, kid)); err != nil {
		return newError(Transient, "delete private", err, "kid %s", kid)
	}
	r.private.invalidate(kid)
	return nil
}

// InvalidatePublic drops kid's cached public PEM without touching storage.
func (r *KeyRepository) InvalidatePublic(kid string) { r.public.invalidate(kid) }

// InvalidatePrivate drops kid's cached private PEM without touching storage.
func (r *KeyRepository) InvalidatePrivate(kid string) { r.private.invalidate(kid) }
