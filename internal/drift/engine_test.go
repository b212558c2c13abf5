package drift

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/mnemolabs/mnemo/internal/domain"
	"go.uber.org/zap"
)

type stubEmbedder struct {
	vectors map[string][]float32
	err     error
	calls   int
}

func (s *stubEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	if v, ok := s.vectors[text]; ok {
		return v, nil
	}
	return []float32{1, 0}, nil
}

func newTestEngine(embedder domain.EmbeddingClient) *Engine {
	logger, _ := zap.NewDevelopment()
	return NewEngine(embedder, time.Second, logger)
}

func TestScore_Numeric(t *testing.T) {
	e := newTestEngine(nil)

	d := e.Score(context.Background(), "30", "36", nil)
	if !d.Computed || d.Kind != domain.DriftNumeric {
		t.Fatalf("expected computed numeric drift, got %+v", d)
	}
	if math.Abs(d.Score-0.2) > 1e-9 {
		t.Fatalf("expected score 0.2, got %f", d.Score)
	}

	// Sign does not matter.
	d = e.Score(context.Background(), "30", "24", nil)
	if math.Abs(d.Score-0.2) > 1e-9 {
		t.Fatalf("expected score 0.2, got %f", d.Score)
	}
}

func TestScore_NumericClampedAtOne(t *testing.T) {
	e := newTestEngine(nil)

	d := e.Score(context.Background(), "10", "1000", nil)
	if d.Score != 1 {
		t.Fatalf("expected score clamped to 1, got %f", d.Score)
	}
}

// A zero baseline leaves relative drift undefined; the tier is skipped
// rather than reporting infinity.
func TestScore_ZeroBaselineSkipsNumeric(t *testing.T) {
	e := newTestEngine(nil)

	d := e.Score(context.Background(), "0", "30", nil)
	if d.Kind == domain.DriftNumeric {
		t.Fatalf("numeric tier must be skipped on a zero baseline, got %+v", d)
	}
	if d.Computed {
		t.Fatalf("no other tier applies to disjoint digits without an embedder: %+v", d)
	}
}

func TestScore_LexicalSubsumption(t *testing.T) {
	e := newTestEngine(nil)

	d := e.Score(context.Background(), "engineer", "senior engineer", nil)
	if !d.Computed || d.Kind != domain.DriftLexical {
		t.Fatalf("expected lexical drift, got %+v", d)
	}
	if !d.Subsumes {
		t.Fatal("expected subsumption for a superset phrase")
	}
	if d.Score != 0.5 {
		t.Fatalf("expected score 0.5, got %f", d.Score)
	}
}

func TestScore_LexicalPartialOverlap(t *testing.T) {
	e := newTestEngine(nil)

	d := e.Score(context.Background(), "backend engineer", "frontend engineer", nil)
	if !d.Computed || d.Kind != domain.DriftLexical {
		t.Fatalf("expected lexical drift, got %+v", d)
	}
	if d.Subsumes {
		t.Fatal("partial overlap is not subsumption")
	}
}

// Disjoint short values carry no lexical signal; the semantic tier
// decides.
func TestScore_DisjointFallsThroughToSemantic(t *testing.T) {
	embedder := &stubEmbedder{vectors: map[string][]float32{
		"berlin": {1, 0},
		"munich": {0, 1},
	}}
	e := newTestEngine(embedder)

	d := e.Score(context.Background(), "berlin", "munich", nil)
	if !d.Computed || d.Kind != domain.DriftSemantic {
		t.Fatalf("expected semantic drift, got %+v", d)
	}
	if math.Abs(d.Score-1) > 1e-6 {
		t.Fatalf("expected orthogonal vectors to score 1, got %f", d.Score)
	}
}

// A stored embedding is reused instead of re-embedding the old side.
func TestScore_ReusesStoredEmbedding(t *testing.T) {
	embedder := &stubEmbedder{vectors: map[string][]float32{
		"munich": {0, 1},
	}}
	e := newTestEngine(embedder)

	d := e.Score(context.Background(), "berlin", "munich", []float32{1, 0})
	if !d.Computed || d.Kind != domain.DriftSemantic {
		t.Fatalf("expected semantic drift, got %+v", d)
	}
	if embedder.calls != 1 {
		t.Fatalf("expected a single embed call for the new side, got %d", embedder.calls)
	}
}

// Provider failure yields insufficient evidence, never a score.
func TestScore_EmbedderFailure(t *testing.T) {
	embedder := &stubEmbedder{err: errors.New("upstream timeout")}
	e := newTestEngine(embedder)

	d := e.Score(context.Background(), "berlin", "munich", nil)
	if d.Computed {
		t.Fatalf("expected uncomputed drift on provider failure, got %+v", d)
	}
	if d.Kind != domain.DriftNone {
		t.Fatalf("expected kind none, got %s", d.Kind)
	}
}

func TestScore_NoEmbedder(t *testing.T) {
	e := newTestEngine(nil)

	d := e.Score(context.Background(), "berlin", "munich", nil)
	if d.Computed {
		t.Fatalf("expected uncomputed drift without an embedder, got %+v", d)
	}
}

func TestCosineSimilarity(t *testing.T) {
	if got := CosineSimilarity([]float32{1, 0}, []float32{1, 0}); math.Abs(got-1) > 1e-9 {
		t.Fatalf("expected 1, got %f", got)
	}
	if got := CosineSimilarity([]float32{1, 0}, []float32{0, 1}); math.Abs(got) > 1e-9 {
		t.Fatalf("expected 0, got %f", got)
	}
	if got := CosineSimilarity([]float32{1, 0}, []float32{1, 0, 0}); got != 0 {
		t.Fatalf("expected 0 for mismatched lengths, got %f", got)
	}
	if got := CosineSimilarity([]float32{0, 0}, []float32{1, 0}); got != 0 {
		t.Fatalf("expected 0 for a zero vector, got %f", got)
	}
}
