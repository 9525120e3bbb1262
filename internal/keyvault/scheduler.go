package keyvault

import (
	"context"
	"time"

	"github.com/hashicorp/go-hclog"
)

// SweepSummary counts the outcome of one due-domain sweep (§4.11).
type SweepSummary struct {
	Success int
	Failed  int
	Skipped int
}

// RotationScheduler iterates due policies and retries the whole due-set on
// partial failure, bounded by MaxRetries (§4.11).
type RotationScheduler struct {
	rotator     *Rotator
	policies    PolicyStore
	maxRetries  int
	retryDelay  time.Duration
	log         hclog.Logger
}

// NewRotationScheduler builds a RotationScheduler. maxRetries and
// retryDelay come from configuration (§6); log may be nil.
func NewRotationScheduler(rotator *Rotator, policies PolicyStore, maxRetries int, retryDelay time.Duration, log hclog.Logger) *RotationScheduler {
	if log == nil {
		log = hclog.NewNullLogger()
	}
	if maxRetries <= 0 {
		maxRetries = 1
	}
	return &RotationScheduler{
		rotator:    rotator,
		policies:   policies,
		maxRetries: maxRetries,
		retryDelay: retryDelay,
		log:        log.Named("scheduler"),
	}
}

// RunScheduled is the periodic sweep: retries the due-set up to maxRetries
// times, sleeping retryDelay between attempts, until a full pass has zero
// failures.
func (s *RotationScheduler) RunScheduled(ctx context.Context) (SweepSummary, error) {
	return s.sweep(ctx)
}

// TriggerImmediate is an operator-requested sweep; identical algorithm to
// RunScheduled.
func (s *RotationScheduler) TriggerImmediate(ctx context.Context) (SweepSummary, error) {
	return s.sweep(ctx)
}

func (s *RotationScheduler) sweep(ctx context.Context) (SweepSummary, error) {
	var last SweepSummary
	for attempt := 1; attempt <= s.maxRetries; attempt++ {
		summary, err := s.rotateDueDomains(ctx)
		if err != nil {
			return summary, err
		}
		last = summary
		if summary.Failed == 0 {
			return summary, nil
		}
		if attempt < s.maxRetries {
			select {
			case <-ctx.Done():
				return last, ctx.Err()
			case <-time.After(s.retryDelay):
			}
		}
	}
	return last, nil
}

func (s *RotationScheduler) rotateDueDomains(ctx context.Context) (SweepSummary, error) {
	policies, err := s.policies.GetDueForRotation(ctx)
	if err != nil {
		return SweepSummary{}, newError(Transient, "rotate due domains", err, "list due policies")
	}

	var summary SweepSummary
	for _, p := range policies {
		outcome, err := s.processSingleDomain(ctx, p)
		if err != nil {
			s.log.Warn("rotation failed", "domain", p.Domain, "error", err)
			summary.Failed++
			continue
		}
		if outcome == outcomeSkipped {
			summary.Skipped++
		} else {
			summary.Success++
		}
	}
	return summary, nil
}

type rotationOutcome int

const (
	outcomeSuccess rotationOutcome = iota
	outcomeSkipped
)

// processSingleDomain rotates one policy's domain. RotateKeys distinguishes
// lease contention (result == "", err == nil — a true skip) from a completed
// rollback (err is a Conflict error) — the latter propagates here so
// rotateDueDomains counts it toward SweepSummary.Failed instead of
// SweepSummary.Skipped, making it eligible for the sweep's bounded retry.
func (s *RotationScheduler) processSingleDomain(ctx context.Context, policy Policy) (rotationOutcome, error) {
	session, err := s.policies.GetSession(ctx)
	if err != nil {
		return outcomeSkipped, newError(Transient, "process single domain", err, "get session for %s", policy.Domain)
	}
	cb := func(tx Session) error {
		return s.policies.AcknowledgeSuccessfulRotation(ctx, policy, tx)
	}
	result, err := s.rotator.RotateKeys(ctx, policy.Domain, cb, session)
	if err != nil {
		return outcomeSkipped, err
	}
	if result == "" {
		return outcomeSkipped, nil
	}
	return outcomeSuccess, nil
}

// TriggerForDomain rotates a single domain on operator request.
func (s *RotationScheduler) TriggerForDomain(ctx context.Context, domain string) (rotationOutcome, error) {
	norm, err := NormalizeDomain(domain)
	if err != nil {
		return outcomeSkipped, err
	}
	policy, err := s.policies.FindByDomain(ctx, norm)
	if err != nil {
		return outcomeSkipped, newError(Transient, "trigger for domain", err, "find policy for %s", norm)
	}
	if policy == nil {
		return outcomeSkipped, newError(NotFound, "trigger for domain", nil, "no policy for domain %s", norm)
	}
	return s.processSingleDomain(ctx, *policy)
}
