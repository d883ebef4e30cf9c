package rag

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var rerankNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func newTestReranker(cfg RerankerConfig) *Reranker {
	r := NewReranker(cfg)
	r.now = func() time.Time { return rerankNow }
	return r
}

func evidence(id, docType string, similarity float64, meta map[string]any) *Evidence {
	if meta == nil {
		meta = map[string]any{}
	}
	return &Evidence{
		SourceID:   id,
		DocTitle:   id,
		DocType:    docType,
		ChunkText:  "chunk " + id,
		Similarity: similarity,
		Score:      similarity,
		Metadata:   meta,
	}
}

func TestRerankCompositeScore(t *testing.T) {
	r := newTestReranker(DefaultRerankerConfig())

	updated := rerankNow.AddDate(0, 0, -90).Format(time.RFC3339)
	e := evidence("a", "pricing", 0.8, map[string]any{"updated_at": updated})

	out := r.Rerank([]*Evidence{e})
	require.Len(t, out, 1)

	want := 0.6*0.8 + 0.2*math.Exp(-1) + 0.2*1.0
	assert.InDelta(t, want, out[0].Score, 1e-9)
	assert.InDelta(t, 0.8, out[0].Similarity, 1e-9, "raw similarity must stay untouched")
}

func TestRerankSortsDescendingAndIsStable(t *testing.T) {
	r := newTestReranker(DefaultRerankerConfig())

	a := evidence("a", "faq", 0.5, nil)
	b := evidence("b", "faq", 0.5, nil)
	c := evidence("c", "pricing", 0.9, nil)

	out := r.Rerank([]*Evidence{a, b, c})
	require.Len(t, out, 3)
	assert.Equal(t, "c", out[0].SourceID)
	// a and b tie; retrieval order preserved.
	assert.Equal(t, "a", out[1].SourceID)
	assert.Equal(t, "b", out[2].SourceID)
}

func TestRerankIsRepeatable(t *testing.T) {
	r := newTestReranker(DefaultRerankerConfig())

	list := []*Evidence{
		evidence("a", "policy", 0.7, nil),
		evidence("b", "general", 0.9, nil),
	}

	first := r.Rerank(list)
	second := r.Rerank(first)

	require.Len(t, second, 2)
	for i := range first {
		assert.Equal(t, first[i].SourceID, second[i].SourceID)
		assert.InDelta(t, first[i].Score, second[i].Score, 1e-9)
	}
}

func TestRerankEmptyInput(t *testing.T) {
	r := newTestReranker(DefaultRerankerConfig())
	out := r.Rerank(nil)
	assert.NotNil(t, out)
	assert.Empty(t, out)
}

func TestRecencyScoreDefaults(t *testing.T) {
	r := newTestReranker(DefaultRerankerConfig())

	tests := []struct {
		name string
		meta map[string]any
		want float64
	}{
		{name: "missing updated_at", meta: map[string]any{}, want: 0.7},
		{name: "non-string updated_at", meta: map[string]any{"updated_at": 42}, want: 0.7},
		{name: "unparsable updated_at", meta: map[string]any{"updated_at": "yesterday"}, want: 0.7},
		{name: "fresh document", meta: map[string]any{"updated_at": rerankNow.Format(time.RFC3339)}, want: 1.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := r.recencyScore(evidence("x", "faq", 0.5, tt.meta))
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}
}

func TestQualityScoreByDocType(t *testing.T) {
	assert.InDelta(t, 1.0, qualityScore("pricing"), 1e-9)
	assert.InDelta(t, 0.95, qualityScore("sop"), 1e-9)
	assert.InDelta(t, 0.9, qualityScore("policy"), 1e-9)
	assert.InDelta(t, 0.8, qualityScore("faq"), 1e-9)
	assert.InDelta(t, 0.7, qualityScore("general"), 1e-9)
	assert.InDelta(t, 0.7, qualityScore("release_notes"), 1e-9)
}

func TestFilterLowQuality(t *testing.T) {
	r := newTestReranker(DefaultRerankerConfig())

	a := evidence("a", "faq", 0, nil)
	a.Score = 0.9
	b := evidence("b", "faq", 0, nil)
	b.Score = 0.6
	c := evidence("c", "faq", 0, nil)
	c.Score = 0.59

	out := r.FilterLowQuality([]*Evidence{a, b, c}, 0.6)
	require.Len(t, out, 2)
	assert.Equal(t, "a", out[0].SourceID)
	assert.Equal(t, "b", out[1].SourceID)
}

func TestDetectConflicts(t *testing.T) {
	r := newTestReranker(DefaultRerankerConfig())

	scored := func(id, docType string, score float64) *Evidence {
		e := evidence(id, docType, 0, nil)
		e.Score = score
		return e
	}

	tests := []struct {
		name string
		list []*Evidence
		want bool
	}{
		{
			name: "wide pricing spread conflicts",
			list: []*Evidence{scored("a", "pricing", 0.9), scored("b", "pricing", 0.5)},
			want: true,
		},
		{
			name: "narrow pricing spread is fine",
			list: []*Evidence{scored("a", "pricing", 0.9), scored("b", "pricing", 0.7)},
			want: false,
		},
		{
			name: "single pricing doc cannot conflict",
			list: []*Evidence{scored("a", "pricing", 0.9)},
			want: false,
		},
		{
			name: "policy pair with wide spread conflicts",
			list: []*Evidence{scored("a", "policy", 0.95), scored("b", "policy", 0.4)},
			want: true,
		},
		{
			name: "faq spread never conflicts",
			list: []*Evidence{scored("a", "faq", 0.95), scored("b", "faq", 0.1)},
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, r.DetectConflicts(tt.list))
		})
	}
}
