package keyvault

import (
	"context"
	"time"

	"github.com/hashicorp/go-hclog"
)

const rotationLeaseTTL = 300 * time.Second

// DBUpdateCallback is the caller-supplied hook the Rotator invokes inside
// the bracketing DB transaction, between StartTransaction and the file-level
// commit work (§4.10).
type DBUpdateCallback func(session Session) error

// rotationState holds the two KIDs a single rotation tracks, reset fresh on
// every call instead of living on the Rotator instance — multiple domains
// rotate concurrently against one Rotator, so per-call local state is the
// only safe shape (see §9's "global mutable state" redesign note).
type rotationState struct {
	previousKid string
	upcomingKid string
}

// Rotator is the per-domain prepare/commit/rollback state machine (§4.10).
// It holds only collaborator references; no per-rotation state lives here.
type Rotator struct {
	generator *Generator
	resolver  *KeyResolver
	janitor   *Janitor
	lock      LockStore
	leaseTTL  time.Duration
	log       hclog.Logger
	metrics   metricsSink
}

// NewRotator builds a Rotator over its collaborators. log may be nil; metrics
// may be nil, in which case metrics are discarded.
func NewRotator(generator *Generator, resolver *KeyResolver, janitor *Janitor, lock LockStore, log hclog.Logger, metrics metricsSink) *Rotator {
	if log == nil {
		log = hclog.NewNullLogger()
	}
	if metrics == nil {
		metrics = defaultMetrics()
	}
	return &Rotator{
		generator: generator,
		resolver:  resolver,
		janitor:   janitor,
		lock:      lock,
		leaseTTL:  rotationLeaseTTL,
		log:       log.Named("rotator"),
		metrics:   metrics,
	}
}

// rollbackAndFail runs rollback and reports the rotation as failed. A failure
// inside rollback itself is an integrity violation and propagates as-is; a
// clean rollback is reported as a Conflict error wrapping cause, so callers
// (the scheduler in particular) can tell a controlled rollback apart from
// true lease contention and count it toward a retry, per §4.11 scenario 6.
func (r *Rotator) rollbackAndFail(ctx context.Context, domain string, state *rotationState, cause error) (string, error) {
	if _, rerr := r.rollback(ctx, domain, state); rerr != nil {
		return "", rerr
	}
	r.metrics.IncrCounter(metricKeyRotateRollback, 1)
	return "", newError(Conflict, "rotate keys", cause, "rotation rolled back for domain %s", domain)
}

// RotateKeys runs one rotation for domain. It returns the new active KID on
// success. A "" result with a nil error means the rotation lease was
// contended (another process is already rotating this domain) — a true
// no-op, not a failure. A "" result with a non-nil Conflict error means a
// rollback actually ran (prepare, the transaction, the dbUpdateCallback or
// one of the commit steps failed); callers that sweep due domains should
// count that as a failure worth retrying. A Transient error means the lease
// store itself could not be reached. Any other error kind marks invalid
// arguments or an invariant violation (§4.10, §7).
func (r *Rotator) RotateKeys(ctx context.Context, domain string, cb DBUpdateCallback, session Session) (string, error) {
	norm, err := NormalizeDomain(domain)
	if err != nil {
		return "", err
	}
	if cb == nil {
		return "", newError(InvalidArgument, "rotate keys", nil, "dbUpdateCallback is required")
	}
	if session == nil {
		return "", newError(InvalidArgument, "rotate keys", nil, "session is required")
	}

	leaseKey := "rotation:" + norm
	token, ok, err := r.lock.Acquire(ctx, leaseKey, r.leaseTTL)
	if err != nil {
		return "", newError(Transient, "rotate keys", err, "acquire lease for %s", norm)
	}
	if !ok {
		r.log.Debug("rotation lease contended", "domain", norm)
		return "", nil
	}
	defer func() {
		if _, err := r.lock.Release(ctx, leaseKey, token); err != nil {
			r.log.Warn("release lease failed", "domain", norm, "error", err)
		}
	}()
	defer func() {
		if err := session.EndSession(); err != nil {
			r.log.Warn("end session failed", "domain", norm, "error", err)
		}
	}()

	state := &rotationState{}

	if err := r.prepare(ctx, norm, state); err != nil {
		r.log.Warn("prepare failed, rolling back", "domain", norm, "error", err)
		return r.rollbackAndFail(ctx, norm, state, err)
	}

	if err := session.StartTransaction(); err != nil {
		r.log.Warn("start transaction failed, rolling back", "domain", norm, "error", err)
		return r.rollbackAndFail(ctx, norm, state, err)
	}

	if err := cb(session); err != nil {
		r.log.Warn("db callback failed, rolling back", "domain", norm, "error", err)
		if aerr := session.AbortTransaction(); aerr != nil {
			r.log.Warn("abort transaction failed", "domain", norm, "error", aerr)
		}
		return r.rollbackAndFail(ctx, norm, state, err)
	}

	newActive, err := r.commit(ctx, norm, state)
	if err != nil {
		r.log.Warn("commit failed, rolling back", "domain", norm, "error", err)
		if aerr := session.AbortTransaction(); aerr != nil {
			r.log.Warn("abort transaction failed", "domain", norm, "error", aerr)
		}
		return r.rollbackAndFail(ctx, norm, state, err)
	}

	if err := session.CommitTransaction(); err != nil {
		r.log.Warn("session commit failed, rolling back", "domain", norm, "error", err)
		return r.rollbackAndFail(ctx, norm, state, err)
	}

	r.metrics.IncrCounter(metricKeyRotateSuccess, 1)
	return newActive, nil
}

// prepare mints the upcoming key and archives the current active key's
// metadata, per §4.10.
func (r *Rotator) prepare(ctx context.Context, domain string, state *rotationState) error {
	upcoming, err := r.generator.Generate(ctx, domain)
	if err != nil {
		return err
	}
	state.upcomingKid = upcoming

	current, err := r.resolver.ActiveKID(domain)
	if err != nil {
		return err
	}
	if current == "" {
		return newError(IntegrityViolation, "prepare", nil, "no active kid for domain %s; rotation requires a prior bootstrap", domain)
	}
	state.previousKid = current

	if err := r.janitor.AddKeyExpiry(ctx, domain, current); err != nil {
		return err
	}
	return nil
}

// commit flips the active pointer to the upcoming key and retires the
// previous key's private material, per §4.10.
func (r *Rotator) commit(ctx context.Context, domain string, state *rotationState) (string, error) {
	previous, err := r.resolver.ActiveKID(domain)
	if err != nil {
		return "", err
	}
	if previous == "" {
		return "", newError(IntegrityViolation, "commit", nil, "no active kid for domain %s", domain)
	}

	if _, err := r.resolver.SetActive(domain, state.upcomingKid); err != nil {
		return "", err
	}
	if err := r.janitor.DeletePrivate(ctx, domain, previous); err != nil {
		return "", err
	}
	if err := r.janitor.DeleteOriginMetadata(ctx, domain, previous); err != nil {
		return "", err
	}
	return state.upcomingKid, nil
}

// rollback undoes prepare/commit's effects so the system is left
// indistinguishable from its pre-rotation state, per §4.10. It returns the
// still-active KID, or an error if no active KID can be found (an invariant
// violation that must propagate per §7).
func (r *Rotator) rollback(ctx context.Context, domain string, state *rotationState) (string, error) {
	if state.upcomingKid != "" {
		if err := r.janitor.DeletePrivate(ctx, domain, state.upcomingKid); err != nil {
			r.log.Warn("rollback: delete upcoming private failed", "domain", domain, "kid", state.upcomingKid, "error", err)
		}
		if err := r.janitor.DeletePublic(ctx, domain, state.upcomingKid); err != nil {
			r.log.Warn("rollback: delete upcoming public failed", "domain", domain, "kid", state.upcomingKid, "error", err)
		}
		if err := r.janitor.DeleteOriginMetadata(ctx, domain, state.upcomingKid); err != nil {
			r.log.Warn("rollback: delete upcoming origin metadata failed", "domain", domain, "kid", state.upcomingKid, "error", err)
		}
	}

	active, err := r.resolver.ActiveKID(domain)
	if err != nil {
		return "", err
	}
	if active == "" {
		return "", newError(IntegrityViolation, "rollback", nil, "no active kid for domain %s after rollback", domain)
	}

	// commit may have already flipped the active pointer to upcomingKid
	// before failing (after SetActive, before DeletePrivate). The active
	// pointer can't be restored atomically at that point; best-effort
	// attempt it here, per the spec's open question on this path (§9).
	if state.previousKid != "" && active != state.previousKid {
		if _, serr := r.resolver.SetActive(domain, state.previousKid); serr != nil {
			r.log.Warn("rollback: could not restore previous active kid", "domain", domain, "kid", state.previousKid, "error", serr)
		} else {
			active = state.previousKid
		}
	}

	// Undo prepare's archive write, which was always for the pre-rotation
	// active key, not whatever the pointer currently resolves to.
	archiveKid := active
	if state.previousKid != "" {
		archiveKid = state.previousKid
	}
	if err := r.janitor.DeleteArchivedMetadata(ctx, archiveKid); err != nil {
		r.log.Warn("rollback: delete archive metadata failed", "domain", domain, "kid", archiveKid, "error", err)
	}

	state.upcomingKid = ""
	return active, nil
}
