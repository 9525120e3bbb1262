package keyvault

import (
	"context"
	"time"
)

// Generator mints a new KID and persists its key pair and origin metadata
// (§4.9). Non-transactional: on failure, nothing is cleaned up here. The
// Rotator is the only caller that wraps a Generate call in a rollback.
type Generator struct {
	crypto   CryptoProvider
	repo     *KeyRepository
	metadata *MetadataManager
	now      func() time.Time
	metrics  metricsSink
}

// NewGenerator builds a Generator over crypto, repo, and metadata. metrics
// may be nil, in which case metrics are discarded.
func NewGenerator(crypto CryptoProvider, repo *KeyRepository, metadata *MetadataManager, metrics metricsSink) *Generator {
	if metrics == nil {
		metrics = defaultMetrics()
	}
	return &Generator{crypto: crypto, repo: repo, metadata: metadata, now: time.Now, metrics: metrics}
}

// Generate mints a KID for domain, writes its key pair and origin metadata,
// and returns the new KID.
func (g *Generator) Generate(ctx context.Context, domain string) (string, error) {
	defer g.metrics.MeasureSince(metricKeyGenerate, g.now())

	norm, err := NormalizeDomain(domain)
	if err != nil {
		return "", err
	}

	kid, err := g.crypto.MintKID(norm)
	if err != nil {
		return "", newError(Fatal, "generate", err, "mint kid for domain %s", norm)
	}
	if err := g.repo.EnsureDirs(ctx, norm); err != nil {
		return "", err
	}
	pub, priv, err := g.crypto.GenerateKeyPair()
	if err != nil {
		return "", newError(Fatal, "generate", err, "generate key pair for kid %s", kid)
	}
	if err := g.repo.SaveKeyPair(ctx, norm, kid, pub, priv); err != nil {
		return "", err
	}
	if err := g.metadata.Create(ctx, norm, kid, g.now()); err != nil {
		return "", err
	}
	return kid, nil
}
