package service

import (
	"context"
	"testing"
	"time"

	"github.com/mnemolabs/mnemo/internal/advisory"
	"github.com/mnemolabs/mnemo/internal/config"
	"github.com/mnemolabs/mnemo/internal/domain"
	"github.com/mnemolabs/mnemo/internal/drift"
)

func newTestClassifier(embedder *mockEmbeddingClient, adv domain.AdvisoryClient) *Classifier {
	logger := testLogger()
	var ec domain.EmbeddingClient
	if embedder != nil {
		ec = embedder
	}
	driftEngine := drift.NewEngine(ec, time.Second, logger)
	return NewClassifier(driftEngine, adv, config.DefaultClassifierConfig(), config.DefaultSlotConfig(), logger)
}

func storedItem(slot, value string) *domain.MemoryItem {
	return &domain.MemoryItem{
		ThreadID: "t1",
		Slot:     slot,
		Value:    value,
		Source:   domain.SourceUser,
		Trust:    0.9,
		Status:   domain.StatusActive,
	}
}

func TestClassifier_NoStoredValue(t *testing.T) {
	c := newTestClassifier(nil, nil)
	fact := domain.ExtractedFact{Slot: "name", Value: "priya", Tier: domain.TierDeclaration}

	v := c.Classify(context.Background(), nil, fact, "priya", domain.SourceUser)
	if v.Conflict {
		t.Fatal("nil stored value must never conflict")
	}
}

func TestClassifier_IdenticalValues(t *testing.T) {
	c := newTestClassifier(nil, nil)
	fact := domain.ExtractedFact{Slot: "name", Value: "priya", RawText: "My name is Priya.", Tier: domain.TierDeclaration}

	v := c.Classify(context.Background(), storedItem("name", "priya"), fact, "priya", domain.SourceUser)
	if v.Conflict {
		t.Fatal("identical normalized values must not conflict")
	}
}

func TestClassifier_CorrectionHintMatch(t *testing.T) {
	c := newTestClassifier(nil, nil)
	fact := domain.ExtractedFact{
		Slot:    "employer",
		Value:   "globex",
		OldHint: "acme",
		RawText: "I work at Globex, not Acme.",
		Tier:    domain.TierDirectCorrection,
	}

	v := c.Classify(context.Background(), storedItem("employer", "acme"), fact, "globex", domain.SourceUser)
	if !v.Conflict || v.Type != domain.ConflictRevision || v.Severity != domain.SeverityHard {
		t.Fatalf("expected hard REVISION, got %+v", v)
	}
	if !v.CorrectionMatched {
		t.Fatal("expected CorrectionMatched for an aligned hint")
	}
}

func TestClassifier_NumericBoundary(t *testing.T) {
	c := newTestClassifier(nil, nil)
	fact := domain.ExtractedFact{Slot: "age", RawText: "I am 36.", Tier: domain.TierDeclaration}

	// Exactly 20 percent: benign.
	v := c.Classify(context.Background(), storedItem("age", "30"), fact, "36", domain.SourceUser)
	if v.Conflict {
		t.Fatalf("drift of exactly 0.20 must not conflict: %+v", v)
	}
	if !v.Drift.Computed || v.Drift.Kind != domain.DriftNumeric {
		t.Fatalf("expected computed numeric drift, got %+v", v.Drift)
	}

	// Strictly above: hard revision.
	v = c.Classify(context.Background(), storedItem("age", "30"), fact, "37", domain.SourceUser)
	if !v.Conflict || v.Type != domain.ConflictRevision || v.Severity != domain.SeverityHard {
		t.Fatalf("expected hard REVISION above threshold, got %+v", v)
	}
}

func TestClassifier_Subsumption(t *testing.T) {
	c := newTestClassifier(nil, nil)

	// On an exclusive slot, a refining value is a soft REFINEMENT.
	fact := domain.ExtractedFact{Slot: "role", RawText: "I am a senior engineer.", Tier: domain.TierDeclaration}
	v := c.Classify(context.Background(), storedItem("role", "engineer"), fact, "senior engineer", domain.SourceUser)
	if !v.Conflict || v.Type != domain.ConflictRefinement || v.Severity != domain.SeveritySoft {
		t.Fatalf("expected soft REFINEMENT, got %+v", v)
	}

	// On a non-exclusive slot the same shape is not a conflict at all.
	fact = domain.ExtractedFact{Slot: "hobby", RawText: "I enjoy rock climbing.", Tier: domain.TierDeclaration}
	v = c.Classify(context.Background(), storedItem("hobby", "climbing"), fact, "rock climbing", domain.SourceUser)
	if v.Conflict {
		t.Fatalf("refinement on a non-exclusive slot must not conflict: %+v", v)
	}
}

func TestClassifier_ExclusiveSlotClash(t *testing.T) {
	c := newTestClassifier(nil, nil)

	// Temporal markers win over everything else in tier five.
	fact := domain.ExtractedFact{Slot: "location", RawText: "I now live in Munich.", Tier: domain.TierDeclaration}
	v := c.Classify(context.Background(), storedItem("location", "berlin"), fact, "munich", domain.SourceUser)
	if !v.Conflict || v.Type != domain.ConflictTemporal {
		t.Fatalf("expected TEMPORAL, got %+v", v)
	}

	// A user's plain declaration asserts current state: REVISION.
	fact = domain.ExtractedFact{Slot: "location", RawText: "I live in Munich.", Tier: domain.TierDeclaration}
	v = c.Classify(context.Background(), storedItem("location", "berlin"), fact, "munich", domain.SourceUser)
	if !v.Conflict || v.Type != domain.ConflictRevision || v.Severity != domain.SeverityHard {
		t.Fatalf("expected hard REVISION, got %+v", v)
	}

	// The same clash from a non-user source without supersession
	// language is a plain CONFLICT.
	fact = domain.ExtractedFact{Slot: "location", RawText: "CRM lists Munich.", Tier: domain.TierDeclaration}
	v = c.Classify(context.Background(), storedItem("location", "berlin"), fact, "munich", domain.SourceExternalTool)
	if !v.Conflict || v.Type != domain.ConflictAssertion {
		t.Fatalf("expected CONFLICT, got %+v", v)
	}
}

// The advisory model may tighten the final tier to a soft conflict when
// semantic drift is high and it agrees with high probability. It is
// never the sole trigger for a hard conflict.
func TestClassifier_AdvisoryNeverSoleTrigger(t *testing.T) {
	adv := advisory.NewMockClient()
	adv.Verdict = &domain.AdvisoryVerdict{
		Category:    domain.ConflictRevision,
		Policy:      domain.ActionOverride,
		Probability: 0.99,
	}

	// Orthogonal embeddings: semantic drift 1.0.
	embedder := &mockEmbeddingClient{vectors: map[string][]float32{
		"chess":    {1, 0, 0},
		"climbing": {0, 1, 0},
	}}
	c := newTestClassifier(embedder, adv)

	fact := domain.ExtractedFact{Slot: "hobby", RawText: "I enjoy chess.", Tier: domain.TierDeclaration}
	v := c.Classify(context.Background(), storedItem("hobby", "climbing"), fact, "chess", domain.SourceUser)
	if !v.Conflict {
		t.Fatalf("expected soft conflict with high drift and advisory agreement: %+v", v)
	}
	if v.Severity != domain.SeveritySoft {
		t.Fatalf("advisory must never produce a hard conflict, got %s", v.Severity)
	}

	// Below the probability floor the advisory annotation changes nothing.
	adv.Verdict.Probability = 0.5
	v = c.Classify(context.Background(), storedItem("hobby", "climbing"), fact, "chess", domain.SourceUser)
	if v.Conflict {
		t.Fatalf("low-probability advisory must not create a conflict: %+v", v)
	}
	if v.Advisory == nil {
		t.Fatal("expected the advisory verdict retained as metadata")
	}
}

// With the embedding provider down and no deterministic evidence, the
// verdict is insufficient evidence, not an assumed contradiction.
func TestClassifier_EmbeddingUnavailable_NoConflict(t *testing.T) {
	embedder := &mockEmbeddingClient{err: context.DeadlineExceeded}
	c := newTestClassifier(embedder, nil)

	fact := domain.ExtractedFact{Slot: "hobby", RawText: "I enjoy chess.", Tier: domain.TierDeclaration}
	v := c.Classify(context.Background(), storedItem("hobby", "climbing"), fact, "chess", domain.SourceUser)
	if v.Conflict {
		t.Fatalf("missing semantic evidence must not conflict: %+v", v)
	}
	if v.Drift.Computed {
		t.Fatalf("expected uncomputed drift, got %+v", v.Drift)
	}
}
