package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/mnemolabs/mnemo/internal/config"
	"github.com/mnemolabs/mnemo/internal/domain"
	"github.com/mnemolabs/mnemo/internal/drift"
	"go.uber.org/zap"
)

// temporalMarkers signal that the speaker is describing a change over
// time rather than disputing the old value.
var temporalMarkers = []string{
	"now", "currently", "used to", "no longer", "these days", "anymore",
	"as of", "recently", "at the moment",
}

// supersessionMarkers signal explicit correction language on the new side.
var supersessionMarkers = []string{
	"actually", "correction", "i meant", "to be clear", "in fact", "not ",
}

// Verdict is the classifier's decision plus its rationale. The rationale
// rides along everywhere the verdict goes; it is never dropped.
type Verdict struct {
	Conflict bool
	Type     domain.ConflictType
	Severity domain.Severity
	Drift    domain.Drift
	// CorrectionMatched is true when an explicit correction pattern's
	// old-value hint aligned with the stored current value.
	CorrectionMatched bool
	Rationale         string
	Advisory          *domain.AdvisoryVerdict
}

// Classifier decides whether a new fact contradicts the stored one via
// ordered deterministic tiers. The first tier that commits wins; lower
// tiers are not consulted after that. The advisory model only ever runs
// in the final tier and only ever adds metadata or a soft annotation.
type Classifier struct {
	drift    *drift.Engine
	advisory domain.AdvisoryClient
	cfg      config.ClassifierConfig
	slots    config.SlotConfig
	logger   *zap.Logger
}

func NewClassifier(d *drift.Engine, advisory domain.AdvisoryClient, cfg config.ClassifierConfig, slots config.SlotConfig, logger *zap.Logger) *Classifier {
	return &Classifier{drift: d, advisory: advisory, cfg: cfg, slots: slots, logger: logger}
}

// Classify compares the stored current item against a new normalized
// fact value. old may be nil (no stored value), which is never a conflict.
func (c *Classifier) Classify(ctx context.Context, old *domain.MemoryItem, fact domain.ExtractedFact, newValue string, source domain.Source) Verdict {
	if old == nil {
		return Verdict{Rationale: "no stored value for slot"}
	}

	// Tier 1: identical normalized values.
	if old.Value == newValue {
		return Verdict{Rationale: "identical normalized values"}
	}

	// Tier 2: explicit correction whose old-value hint matches the
	// stored current value.
	if fact.Tier.IsCorrection() && hintMatches(old.Value, strings.ToLower(fact.OldHint)) {
		return Verdict{
			Conflict:          true,
			Type:              domain.ConflictRevision,
			Severity:          domain.SeverityHard,
			CorrectionMatched: true,
			Rationale:         fmt.Sprintf("correction pattern aligned: old hint %q matches stored %q", fact.OldHint, old.Value),
		}
	}

	d := c.drift.Score(ctx, old.Value, newValue, old.ValueEmbedding)

	// Tier 3: numeric evidence dominates once available.
	if d.Computed && d.Kind == domain.DriftNumeric {
		if d.Score > c.cfg.NumericThreshold {
			return Verdict{
				Conflict:  true,
				Type:      domain.ConflictRevision,
				Severity:  domain.SeverityHard,
				Drift:     d,
				Rationale: fmt.Sprintf("relative numeric change %.4f exceeds threshold %.2f", d.Score, c.cfg.NumericThreshold),
			}
		}
		return Verdict{
			Drift:     d,
			Rationale: fmt.Sprintf("relative numeric change %.4f within threshold %.2f", d.Score, c.cfg.NumericThreshold),
		}
	}

	// Tier 4: subsumption, one value refines the other.
	if d.Subsumes {
		if c.slots.IsNonExclusive(fact.Slot) {
			return Verdict{
				Drift:     d,
				Rationale: "refinement on a non-exclusive slot",
			}
		}
		return Verdict{
			Conflict:  true,
			Type:      domain.ConflictRefinement,
			Severity:  domain.SeveritySoft,
			Drift:     d,
			Rationale: fmt.Sprintf("%q refines %q without negation", newValue, old.Value),
		}
	}

	// Tier 5: mutually-exclusive slot with clashing values.
	if c.slots.IsExclusive(fact.Slot) {
		v := Verdict{
			Conflict: true,
			Severity: domain.SeverityHard,
			Drift:    d,
		}
		switch {
		case containsAny(fact.RawText, temporalMarkers):
			v.Type = domain.ConflictTemporal
			v.Rationale = "explicit time reference marks the old value as chronologically superseded"
		case containsAny(fact.RawText, supersessionMarkers) || source == domain.SourceUser:
			// A user's plain present-tense declaration asserts current
			// state and supersedes what was stored.
			v.Type = domain.ConflictRevision
			v.Rationale = fmt.Sprintf("exclusive slot %q asserted as %q against stored %q", fact.Slot, newValue, old.Value)
		default:
			v.Type = domain.ConflictAssertion
			v.Rationale = fmt.Sprintf("assertion clash on exclusive slot %q with no supersession language", fact.Slot)
		}
		return v
	}

	// Tier 6: no deterministic tier committed. The advisory model may
	// annotate, and at most tighten the verdict to a soft conflict when
	// semantic drift is high and the model agrees with high probability.
	// It is never the sole trigger for a hard conflict.
	verdict := Verdict{
		Drift:     d,
		Rationale: "no deterministic tier committed",
	}
	adv := c.advise(ctx, old, fact, newValue, d)
	verdict.Advisory = adv
	if adv != nil && d.Computed && d.Kind == domain.DriftSemantic &&
		d.Score > c.cfg.SemanticThreshold &&
		adv.Probability >= c.cfg.AdvisoryProbabilityFloor &&
		domain.ValidConflictType(string(adv.Category)) {
		verdict.Conflict = true
		verdict.Type = adv.Category
		verdict.Severity = domain.SeveritySoft
		verdict.Rationale = fmt.Sprintf("semantic drift %.2f above %.2f with advisory agreement (p=%.2f)", d.Score, c.cfg.SemanticThreshold, adv.Probability)
	}
	return verdict
}

func (c *Classifier) advise(ctx context.Context, old *domain.MemoryItem, fact domain.ExtractedFact, newValue string, d domain.Drift) *domain.AdvisoryVerdict {
	if c.advisory == nil {
		return nil
	}
	verdict, err := c.advisory.Advise(ctx, domain.AdvisoryFeatures{
		Slot:          fact.Slot,
		OldValue:      old.Value,
		NewValue:      newValue,
		Tier:          fact.Tier,
		DriftScore:    d.Score,
		DriftKind:     d.Kind,
		OldTrust:      old.Trust,
		NewConfidence: fact.Tier.Confidence(),
	})
	if err != nil {
		c.logger.Warn("advisory model unavailable for classification", zap.Error(err))
		return nil
	}
	return verdict
}

// hintMatches reports whether a correction's old-value hint names the
// stored value: exact or normalized substring in either direction. Both
// sides must align before a correction is trusted; a partial hit is not
// a match.
func hintMatches(stored, hint string) bool {
	if stored == "" || hint == "" {
		return false
	}
	if stored == hint {
		return true
	}
	return strings.Contains(stored, hint) || strings.Contains(hint, stored)
}

func containsAny(text string, markers []string) bool {
	lower := strings.ToLower(text)
	for _, m := range markers {
		if strings.Contains(lower, m) {
			return true
		}
	}
	return false
}
