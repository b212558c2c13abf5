package service

import (
	"context"
	"fmt"

	"github.com/mnemolabs/mnemo/internal/config"
	"github.com/mnemolabs/mnemo/internal/domain"
	"go.uber.org/zap"
)

// PolicyEngine turns a classified conflict into a resolution action. The
// deterministic baseline is authoritative; the advisory model's
// suggestion is logged for comparison and can replace the baseline only
// when explicitly configured AND the two already agree above the
// probability floor. The advisory model is never the sole reason a
// stored fact changes.
type PolicyEngine struct {
	advisory domain.AdvisoryClient
	cfg      config.PolicyConfig
	logger   *zap.Logger
}

func NewPolicyEngine(advisory domain.AdvisoryClient, cfg config.PolicyConfig, logger *zap.Logger) *PolicyEngine {
	return &PolicyEngine{advisory: advisory, cfg: cfg, logger: logger}
}

// Decide selects the action for a conflict between the stored item and
// the candidate item.
func (p *PolicyEngine) Decide(ctx context.Context, verdict Verdict, old, candidate *domain.MemoryItem) domain.PolicyDecision {
	decision := p.baseline(verdict, old, candidate)
	decision.Slot = old.Slot

	adv := p.advise(ctx, verdict, old, candidate)
	if adv == nil {
		return decision
	}

	decision.AdvisoryAction = &adv.Policy
	decision.AdvisoryProbability = adv.Probability

	if adv.Policy != decision.Action {
		decision.AdvisoryDisagrees = true
		p.logger.Info("advisory policy disagrees with deterministic action",
			zap.String("slot", old.Slot),
			zap.String("deterministic", string(decision.Action)),
			zap.String("advisory", string(adv.Policy)),
			zap.Float64("probability", adv.Probability))
		return decision
	}

	// Agreement. Replacing the action is a no-op by construction; the
	// only observable change is the recorded decision source.
	if p.cfg.AdvisoryAuthoritative && adv.Probability >= p.cfg.AdvisoryProbabilityFloor {
		decision.Source = domain.SourceLearnedAdvisory
		decision.Score = adv.Probability
	}
	return decision
}

func (p *PolicyEngine) baseline(verdict Verdict, old, candidate *domain.MemoryItem) domain.PolicyDecision {
	switch verdict.Type {
	case domain.ConflictRefinement:
		return heuristic(domain.ActionOverride, 1.0,
			"refinement extends the stored value without negating it")

	case domain.ConflictTemporal:
		return heuristic(domain.ActionOverride, 1.0,
			"explicit time reference supersedes the stored value")

	case domain.ConflictRevision:
		if verdict.CorrectionMatched {
			return heuristic(domain.ActionOverride, 1.0,
				"explicit correction with matching old value")
		}
		return p.byTrustGap(verdict, old, candidate)

	default: // CONFLICT
		return p.byTrustGap(verdict, old, candidate)
	}
}

// byTrustGap arbitrates implicit revisions and assertion clashes: a large
// trust gap decides automatically, comparable trust goes to the user.
func (p *PolicyEngine) byTrustGap(verdict Verdict, old, candidate *domain.MemoryItem) domain.PolicyDecision {
	gap := candidate.Trust - old.Trust
	switch {
	case gap >= p.cfg.TrustMargin:
		return heuristic(domain.ActionOverride, gap,
			fmt.Sprintf("new item trust exceeds stored by %.2f (margin %.2f)", gap, p.cfg.TrustMargin))
	case gap <= -p.cfg.TrustMargin:
		return heuristic(domain.ActionPreserve, -gap,
			fmt.Sprintf("stored item trust exceeds new by %.2f (margin %.2f)", -gap, p.cfg.TrustMargin))
	default:
		d := heuristic(domain.ActionAskUser, 0,
			fmt.Sprintf("comparable trust (gap %.2f within margin %.2f)", gap, p.cfg.TrustMargin))
		d.Question = resolutionQuestion(old, candidate)
		return d
	}
}

func (p *PolicyEngine) advise(ctx context.Context, verdict Verdict, old, candidate *domain.MemoryItem) *domain.AdvisoryVerdict {
	// Reuse the verdict the classifier already obtained when present.
	if verdict.Advisory != nil {
		return verdict.Advisory
	}
	if p.advisory == nil {
		return nil
	}
	adv, err := p.advisory.Advise(ctx, domain.AdvisoryFeatures{
		Slot:          old.Slot,
		OldValue:      old.Value,
		NewValue:      candidate.Value,
		DriftScore:    verdict.Drift.Score,
		DriftKind:     verdict.Drift.Kind,
		OldTrust:      old.Trust,
		NewConfidence: candidate.Confidence,
	})
	if err != nil {
		p.logger.Warn("advisory model unavailable for policy", zap.Error(err))
		return nil
	}
	return adv
}

func heuristic(action domain.PolicyAction, score float64, rationale string) domain.PolicyDecision {
	return domain.PolicyDecision{
		Action:    action,
		Source:    domain.SourceHeuristic,
		Score:     score,
		Rationale: rationale,
	}
}

func resolutionQuestion(old, candidate *domain.MemoryItem) string {
	return fmt.Sprintf("Earlier you said your %s was %q, but I also have %q. Which is current?",
		old.Slot, old.Value, candidate.Value)
}
