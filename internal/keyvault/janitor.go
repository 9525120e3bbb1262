package keyvault

import (
	"context"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/hashicorp/go-multierror"
)

const defaultGracePeriod = 7 * 24 * time.Hour

// Janitor is the composite cleanup surface (§4.8): file deletion, cache
// invalidation, expiry bookkeeping, and the reaper sweep.
type Janitor struct {
	repo        *KeyRepository
	metadata    *MetadataManager
	signer      *Signer
	jwks        *JwksBuilder
	gracePeriod time.Duration
	now         func() time.Time
	log         hclog.Logger
	metrics     metricsSink
}

// NewJanitor builds a Janitor. gracePeriod falls back to 7 days when zero.
// log may be nil, in which case a discarding logger is used. metrics may be
// nil, in which case metrics are discarded.
func NewJanitor(repo *KeyRepository, metadata *MetadataManager, signer *Signer, jwks *JwksBuilder, gracePeriod time.Duration, log hclog.Logger, metrics metricsSink) *Janitor {
	if gracePeriod <= 0 {
		gracePeriod = defaultGracePeriod
	}
	if log == nil {
		log = hclog.NewNullLogger()
	}
	if metrics == nil {
		metrics = defaultMetrics()
	}
	return &Janitor{
		repo:        repo,
		metadata:    metadata,
		signer:      signer,
		jwks:        jwks,
		gracePeriod: gracePeriod,
		now:         time.Now,
		log:         log.Named("janitor"),
		metrics:     metrics,
	}
}

// DeletePrivate deletes kid's private PEM and invalidates the private-PEM
// and parsed-signing-key caches for it.
func (j *Janitor) DeletePrivate(ctx context.Context, domain, kid string) error {
	if err := j.repo.DeletePrivate(ctx, kid); err != nil {
		return err
	}
	j.signer.InvalidateSigningKey(kid)
	j.log.Debug("deleted private key", "domain", domain, "kid", kid)
	return nil
}

// DeletePublic deletes kid's public PEM and invalidates the public-PEM and
// JWK caches for it.
func (j *Janitor) DeletePublic(ctx context.Context, domain, kid string) error {
	if err := j.repo.DeletePublic(ctx, kid); err != nil {
		return err
	}
	j.jwks.InvalidateJWK(kid)
	j.log.Debug("deleted public key", "domain", domain, "kid", kid)
	return nil
}

// AddKeyExpiry archives kid with expiredAt = now + gracePeriod.
func (j *Janitor) AddKeyExpiry(ctx context.Context, domain, kid string) error {
	expiresAt := j.now().Add(j.gracePeriod)
	rec, err := j.metadata.AddExpiry(ctx, domain, kid, expiresAt)
	if err != nil {
		return err
	}
	if rec == nil {
		return newError(NotFound, "add key expiry", nil, "no metadata record for kid %s", kid)
	}
	return nil
}

// DeleteOriginMetadata idempotently removes domain's origin record for kid.
func (j *Janitor) DeleteOriginMetadata(ctx context.Context, domain, kid string) error {
	return j.metadata.DeleteOrigin(ctx, domain, kid)
}

// DeleteArchivedMetadata idempotently removes the archive record for kid.
func (j *Janitor) DeleteArchivedMetadata(ctx context.Context, kid string) error {
	return j.metadata.DeleteArchive(ctx, kid)
}

// CleanDomain is the reaper: every archive record past its expiredAt has its
// public PEM and archive record removed. Each record is best-effort —
// failures are aggregated and logged but never stop the sweep (§4.8).
func (j *Janitor) CleanDomain(ctx context.Context) error {
	expired, err := j.metadata.ListExpired(ctx, j.now())
	if err != nil {
		return err
	}

	var result *multierror.Error
	reaped := 0
	for _, rec := range expired {
		if err := j.DeletePublic(ctx, rec.Domain, rec.Kid); err != nil {
			j.log.Warn("reap: delete public failed", "kid", rec.Kid, "error", err)
			result = multierror.Append(result, err)
			continue
		}
		if err := j.DeleteArchivedMetadata(ctx, rec.Kid); err != nil {
			j.log.Warn("reap: delete archive metadata failed", "kid", rec.Kid, "error", err)
			result = multierror.Append(result, err)
			continue
		}
		reaped++
	}
	j.metrics.IncrCounter(metricKeyReap, float32(reaped))
	if result != nil {
		return result.ErrorOrNil()
	}
	return nil
}
