package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/mnemolabs/mnemo/internal/config"
	"github.com/mnemolabs/mnemo/internal/domain"
	"github.com/mnemolabs/mnemo/internal/extract"
)

func setupGateTest(cfg config.GateConfig) (*GateService, *EngineService, *mockMemoryStore, *mockLedgerStore) {
	engine, memStore, ledgerStore, _ := setupEngineTest()
	gate := NewGateService(memStore, ledgerStore, extract.NewExtractor(testLogger()), cfg, testLogger())
	return gate, engine, memStore, ledgerStore
}

func TestGate_QuickAnswer(t *testing.T) {
	gate, engine, _, _ := setupGateTest(config.GateConfig{})
	ctx := context.Background()

	_, _ = engine.SubmitStatement(ctx, "t1", "I live in Berlin.")

	answer, err := gate.QuerySlot(ctx, "t1", "location")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if answer.Mode != domain.ModeQuick {
		t.Fatalf("expected quick mode, got %s", answer.Mode)
	}
	if answer.Value == nil || answer.Value.Value != "berlin" {
		t.Fatalf("expected berlin, got %+v", answer.Value)
	}
	if len(answer.Citations) != 1 {
		t.Fatalf("expected 1 citation, got %d", len(answer.Citations))
	}
}

func TestGate_EmptySlotStillQuick(t *testing.T) {
	gate, _, _, _ := setupGateTest(config.GateConfig{})

	answer, err := gate.QuerySlot(context.Background(), "t1", "location")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if answer.Mode != domain.ModeQuick {
		t.Fatalf("expected quick mode for an empty slot, got %s", answer.Mode)
	}
	if answer.Value != nil {
		t.Fatalf("expected no value, got %+v", answer.Value)
	}
}

// An open hard conflict must never produce a quick answer.
func TestGate_OpenHardConflict_Uncertain(t *testing.T) {
	gate, engine, _, _ := setupGateTest(config.GateConfig{})
	ctx := context.Background()

	_, _ = engine.SubmitStatement(ctx, "t1", "I live in Berlin.")
	_, _ = engine.SubmitStatement(ctx, "t1", "I live in Munich.")

	answer, err := gate.QuerySlot(ctx, "t1", "location")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if answer.Mode != domain.ModeUncertain {
		t.Fatalf("expected uncertain mode, got %s", answer.Mode)
	}
	if len(answer.BothValues) != 2 {
		t.Fatalf("expected both conflict sides, got %d", len(answer.BothValues))
	}
	if len(answer.Conflicts) != 1 {
		t.Fatalf("expected the open entry referenced, got %d", len(answer.Conflicts))
	}
	if answer.Value != nil {
		t.Fatal("uncertain answers must not carry a single value")
	}
}

func TestGate_OpenHardConflict_AskClarify(t *testing.T) {
	gate, engine, _, _ := setupGateTest(config.GateConfig{AskClarify: true})
	ctx := context.Background()

	_, _ = engine.SubmitStatement(ctx, "t1", "I live in Berlin.")
	_, _ = engine.SubmitStatement(ctx, "t1", "I live in Munich.")

	answer, err := gate.QuerySlot(ctx, "t1", "location")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if answer.Mode != domain.ModeAskClarify {
		t.Fatalf("expected ask_clarify mode, got %s", answer.Mode)
	}
	if answer.Question == "" {
		t.Fatal("expected the stored resolution question")
	}
}

// Resolution restores quick answers.
func TestGate_ResolvedConflict_QuickAgain(t *testing.T) {
	gate, engine, _, ledgerStore := setupGateTest(config.GateConfig{})
	ctx := context.Background()

	_, _ = engine.SubmitStatement(ctx, "t1", "I live in Berlin.")
	_, _ = engine.SubmitStatement(ctx, "t1", "I live in Munich.")

	open, _ := ledgerStore.ListOpen(ctx, "t1")
	if _, err := engine.ResolveContradiction(ctx, open[0].ID, domain.ResolutionUserClarified, domain.LedgerResolved); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	answer, err := gate.QuerySlot(ctx, "t1", "location")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if answer.Mode != domain.ModeQuick {
		t.Fatalf("expected quick mode after resolution, got %s", answer.Mode)
	}
	if answer.Value.Value != "munich" {
		t.Fatalf("expected munich, got %q", answer.Value.Value)
	}
}

// A soft conflict annotates the answer without blocking it.
func TestGate_SoftConflict_QuickWithAnnotation(t *testing.T) {
	gate, engine, memStore, ledgerStore := setupGateTest(config.GateConfig{})
	ctx := context.Background()

	events, _ := engine.SubmitStatement(ctx, "t1", "I live in Berlin.")
	other := &domain.MemoryItem{ThreadID: "t1", Slot: "location", Value: "berlin area", Source: domain.SourceUser, Trust: 0.5, Status: domain.StatusSuperseded}
	_ = memStore.Create(ctx, other)

	entry := &domain.LedgerEntry{
		ThreadID:    "t1",
		Slot:        "location",
		OldMemoryID: events[0].Memory.ID,
		NewMemoryID: other.ID,
		Type:        domain.ConflictRefinement,
		Severity:    domain.SeveritySoft,
		Status:      domain.LedgerOpen,
	}
	_ = ledgerStore.Create(ctx, entry)

	answer, err := gate.QuerySlot(ctx, "t1", "location")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if answer.Mode != domain.ModeQuick {
		t.Fatalf("expected quick mode for a soft conflict, got %s", answer.Mode)
	}
	if len(answer.Conflicts) != 1 {
		t.Fatalf("expected the soft entry annotated, got %d", len(answer.Conflicts))
	}
}

// Ledger faults degrade to uncertain, never to a confident answer.
func TestGate_LedgerFault_FailsSafe(t *testing.T) {
	gate, engine, _, ledgerStore := setupGateTest(config.GateConfig{})
	ctx := context.Background()

	_, _ = engine.SubmitStatement(ctx, "t1", "I live in Berlin.")
	ledgerStore.nextOpenErr = errors.New("connection refused")

	answer, err := gate.QuerySlot(ctx, "t1", "location")
	if err != nil {
		t.Fatalf("expected fail-safe degradation, got error %v", err)
	}
	if answer.Mode != domain.ModeUncertain {
		t.Fatalf("expected uncertain mode on ledger fault, got %s", answer.Mode)
	}
	if answer.Value != nil {
		t.Fatal("faulted gate must not hand out a value")
	}
}

// Memory store unavailability is the one explicit error.
func TestGate_StoreUnavailable(t *testing.T) {
	gate, _, memStore, _ := setupGateTest(config.GateConfig{})

	memStore.currentErr = errors.New("connection refused")
	_, err := gate.QuerySlot(context.Background(), "t1", "location")
	if !errors.Is(err, ErrStoreUnavailable) {
		t.Fatalf("expected ErrStoreUnavailable, got %v", err)
	}
}

// An open entry whose memories no longer resolve is dismissed, and the
// gate proceeds instead of wedging.
func TestGate_InconsistentEntry_Dismissed(t *testing.T) {
	gate, engine, _, ledgerStore := setupGateTest(config.GateConfig{})
	ctx := context.Background()

	_, _ = engine.SubmitStatement(ctx, "t1", "I live in Berlin.")

	entry := &domain.LedgerEntry{
		ThreadID:    "t1",
		Slot:        "location",
		OldMemoryID: uuid.New(),
		NewMemoryID: uuid.New(),
		Type:        domain.ConflictAssertion,
		Severity:    domain.SeverityHard,
		Status:      domain.LedgerOpen,
	}
	_ = ledgerStore.Create(ctx, entry)

	answer, err := gate.QuerySlot(ctx, "t1", "location")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if answer.Mode != domain.ModeQuick {
		t.Fatalf("expected quick mode after dismissing the broken entry, got %s", answer.Mode)
	}

	refreshed, _ := ledgerStore.GetByID(ctx, entry.ID)
	if refreshed.Status != domain.LedgerDismissed {
		t.Fatalf("expected the broken entry dismissed, got %s", refreshed.Status)
	}
	if refreshed.ResolutionQuestion == nil || !strings.Contains(*refreshed.ResolutionQuestion, "missing memory") {
		t.Fatalf("expected the diagnostic persisted on the entry, got %v", refreshed.ResolutionQuestion)
	}
}

func TestGate_Query_InfersSlots(t *testing.T) {
	gate, engine, _, _ := setupGateTest(config.GateConfig{})
	ctx := context.Background()

	_, _ = engine.SubmitStatement(ctx, "t1", "I live in Berlin.")

	answers, err := gate.Query(ctx, "t1", "Where do I live?")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(answers) != 1 || answers[0].Slot != "location" {
		t.Fatalf("expected a single location answer, got %+v", answers)
	}
	if answers[0].Value == nil || answers[0].Value.Value != "berlin" {
		t.Fatalf("expected berlin, got %+v", answers[0].Value)
	}
}

func TestGate_Validation(t *testing.T) {
	gate, _, _, _ := setupGateTest(config.GateConfig{})

	if _, err := gate.QuerySlot(context.Background(), "", "location"); !errors.Is(err, ErrThreadIDMissing) {
		t.Fatalf("expected ErrThreadIDMissing, got %v", err)
	}
	if _, err := gate.QuerySlot(context.Background(), "t1", ""); !errors.Is(err, ErrSlotMissing) {
		t.Fatalf("expected ErrSlotMissing, got %v", err)
	}
}
