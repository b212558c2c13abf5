// Package drift computes the dissimilarity between an old and new value
// for the same slot. Three tiers: relative numeric difference, lexical
// subsumption, and embedding distance via the external provider.
package drift

import (
	"context"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/mnemolabs/mnemo/internal/domain"
	"go.uber.org/zap"
)

type Engine struct {
	embedder domain.EmbeddingClient
	timeout  time.Duration
	logger   *zap.Logger
}

func NewEngine(embedder domain.EmbeddingClient, timeout time.Duration, logger *zap.Logger) *Engine {
	return &Engine{embedder: embedder, timeout: timeout, logger: logger}
}

// Score computes drift between two normalized values. oldEmbedding, when
// available from the store, saves re-embedding the old side. A result
// with Computed=false means no tier could produce evidence; callers must
// treat that as insufficient evidence, never as a verdict either way.
func (e *Engine) Score(ctx context.Context, oldValue, newValue string, oldEmbedding []float32) domain.Drift {
	if d, ok := numericDrift(oldValue, newValue); ok {
		return d
	}
	if d, ok := lexicalDrift(oldValue, newValue); ok {
		return d
	}
	return e.semanticDrift(ctx, oldValue, newValue, oldEmbedding)
}

// numericDrift is the relative difference |new-old| / |old|. A zero
// baseline leaves the ratio undefined and the tier is skipped.
func numericDrift(oldValue, newValue string) (domain.Drift, bool) {
	oldN, err := strconv.ParseFloat(oldValue, 64)
	if err != nil {
		return domain.Drift{}, false
	}
	newN, err := strconv.ParseFloat(newValue, 64)
	if err != nil {
		return domain.Drift{}, false
	}
	if oldN == 0 {
		return domain.Drift{}, false
	}
	score := math.Abs(newN-oldN) / math.Abs(oldN)
	if score > 1 {
		score = 1
	}
	return domain.Drift{Score: score, Kind: domain.DriftNumeric, Computed: true}, true
}

// lexicalDrift applies only to short categorical strings. It checks
// whether one value subsumes the other ("engineer" vs "senior engineer")
// before anything semantic is attempted.
func lexicalDrift(oldValue, newValue string) (domain.Drift, bool) {
	oldTokens := tokens(oldValue)
	newTokens := tokens(newValue)
	if len(oldTokens) == 0 || len(newTokens) == 0 {
		return domain.Drift{}, false
	}
	if len(oldTokens) > 4 || len(newTokens) > 4 {
		// Long phrases carry too little signal per token; fall through
		// to the semantic tier.
		return domain.Drift{}, false
	}

	small, large := oldTokens, newTokens
	if len(small) > len(large) {
		small, large = large, small
	}
	overlap := 0
	for t := range small {
		if large[t] {
			overlap++
		}
	}

	if overlap == len(small) && len(large) > len(small) {
		score := 1 - float64(overlap)/float64(len(large))
		return domain.Drift{Score: score, Kind: domain.DriftLexical, Computed: true, Subsumes: true}, true
	}
	if overlap > 0 {
		score := 1 - float64(overlap)/float64(len(large))
		return domain.Drift{Score: score, Kind: domain.DriftLexical, Computed: true}, true
	}
	// Disjoint short strings: no lexical evidence either way.
	return domain.Drift{}, false
}

// semanticDrift is 1 - cosine similarity of the two embeddings. Provider
// timeout or failure skips the tier entirely: fail toward insufficient
// evidence, not toward assumed contradiction.
func (e *Engine) semanticDrift(ctx context.Context, oldValue, newValue string, oldEmbedding []float32) domain.Drift {
	if e.embedder == nil {
		return domain.Drift{Kind: domain.DriftNone}
	}

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	oldVec := oldEmbedding
	if len(oldVec) == 0 {
		var err error
		oldVec, err = e.embedder.Embed(ctx, oldValue)
		if err != nil {
			e.logger.Warn("semantic drift tier unavailable", zap.Error(err))
			return domain.Drift{Kind: domain.DriftNone}
		}
	}

	newVec, err := e.embedder.Embed(ctx, newValue)
	if err != nil {
		e.logger.Warn("semantic drift tier unavailable", zap.Error(err))
		return domain.Drift{Kind: domain.DriftNone}
	}

	sim := CosineSimilarity(oldVec, newVec)
	score := 1 - sim
	if score < 0 {
		score = 0
	}
	if score > 1 {
		score = 1
	}
	return domain.Drift{Score: score, Kind: domain.DriftSemantic, Computed: true}
}

func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0.0
	}

	var dot, normA, normB float64
	for i := 0; i < len(a); i++ {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0.0 || normB == 0.0 {
		return 0.0
	}

	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

func tokens(s string) map[string]bool {
	out := make(map[string]bool)
	for _, t := range strings.Fields(strings.ToLower(s)) {
		out[t] = true
	}
	return out
}
