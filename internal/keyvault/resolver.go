package keyvault

import "context"

// KeyResolver is the thin domain -> active KID -> signing material facade
// (§4.5). Every entry point normalizes its domain input first.
type KeyResolver struct {
	registry *ActiveKidRegistry
	repo     *KeyRepository
}

// NewKeyResolver builds a KeyResolver over registry and repo.
func NewKeyResolver(registry *ActiveKidRegistry, repo *KeyRepository) *KeyResolver {
	return &KeyResolver{registry: registry, repo: repo}
}

// ActiveKID returns domain's active KID, or "" if none is set.
func (r *KeyResolver) ActiveKID(domain string) (string, error) {
	norm, err := NormalizeDomain(domain)
	if err != nil {
		return "", err
	}
	return r.registry.GetActive(norm), nil
}

// SigningKey loads the private PEM for domain's active KID. It does not
// parse it into a signing handle; that's the Signer's job.
func (r *KeyResolver) SigningKey(ctx context.Context, domain string) (string, error) {
	norm, err := NormalizeDomain(domain)
	if err != nil {
		return "", err
	}
	kid := r.registry.GetActive(norm)
	if kid == "" {
		return "", newError(NotFound, "resolve signing key", nil, "no active kid for domain %s", norm)
	}
	return r.repo.ReadPrivatePEM(ctx, kid)
}

// SetActive passes through to the registry after normalizing domain.
func (r *KeyResolver) SetActive(domain, kid string) (string, error) {
	norm, err := NormalizeDomain(domain)
	if err != nil {
		return "", err
	}
	return r.registry.SetActive(norm, kid), nil
}

// ClearActive passes through to the registry after normalizing domain.
func (r *KeyResolver) ClearActive(domain string) error {
	norm, err := NormalizeDomain(domain)
	if err != nil {
		return err
	}
	r.registry.ClearActive(norm)
	return nil
}
