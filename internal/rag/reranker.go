package rag

import (
	"math"
	"sort"
	"time"
)

// RerankerConfig tunes the composite scoring signals.
type RerankerConfig struct {
	SimilarityWeight float64
	RecencyWeight    float64
	QualityWeight    float64
	HalfLifeDays     float64
	ConflictSpread   float64
}

func DefaultRerankerConfig() RerankerConfig {
	return RerankerConfig{
		SimilarityWeight: 0.6,
		RecencyWeight:    0.2,
		QualityWeight:    0.2,
		HalfLifeDays:     90,
		ConflictSpread:   0.3,
	}
}

// qualityByDocType ranks source authority. Pricing outranks everything;
// anything unrecognised scores as general content.
var qualityByDocType = map[string]float64{
	"pricing": 1.0,
	"sop":     0.95,
	"policy":  0.9,
	"faq":     0.8,
	"general": 0.7,
}

// Reranker orders evidence by a composite of similarity, recency and
// source quality.
type Reranker struct {
	cfg RerankerConfig
	now func() time.Time
}

func NewReranker(cfg RerankerConfig) *Reranker {
	if cfg.HalfLifeDays <= 0 {
		cfg.HalfLifeDays = 90
	}
	return &Reranker{cfg: cfg, now: time.Now}
}

// Rerank computes composite scores from each evidence's raw similarity and
// returns the list sorted descending. The sort is stable, so equal scores
// keep their retrieval order. Safe to call repeatedly.
func (r *Reranker) Rerank(list []*Evidence) []*Evidence {
	if len(list) == 0 {
		return []*Evidence{}
	}

	for _, e := range list {
		composite := r.cfg.SimilarityWeight*e.Similarity +
			r.cfg.RecencyWeight*r.recencyScore(e) +
			r.cfg.QualityWeight*qualityScore(e.DocType)
		e.Score = composite
	}

	out := make([]*Evidence, len(list))
	copy(out, list)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Score > out[j].Score
	})
	return out
}

// recencyScore decays exponentially with document age: exp(-days/halfLife).
// Documents without a parsable updated_at are assumed reasonably recent.
func (r *Reranker) recencyScore(e *Evidence) float64 {
	raw, ok := e.Metadata["updated_at"]
	if !ok {
		return 0.7
	}
	str, ok := raw.(string)
	if !ok {
		return 0.7
	}
	updated, err := time.Parse(time.RFC3339, str)
	if err != nil {
		return 0.7
	}

	days := r.now().Sub(updated).Hours() / 24
	return math.Exp(-days / r.cfg.HalfLifeDays)
}

func qualityScore(docType string) float64 {
	if q, ok := qualityByDocType[docType]; ok {
		return q
	}
	return 0.7
}

// FilterLowQuality drops evidence scoring below the threshold.
func (r *Reranker) FilterLowQuality(list []*Evidence, threshold float64) []*Evidence {
	out := make([]*Evidence, 0, len(list))
	for _, e := range list {
		if e.Score >= threshold {
			out = append(out, e)
		}
	}
	return out
}

// DetectConflicts flags a potential contradiction when an authoritative doc
// type (pricing or policy) appears more than once with a wide score spread.
func (r *Reranker) DetectConflicts(list []*Evidence) bool {
	byType := make(map[string][]float64)
	for _, e := range list {
		byType[e.DocType] = append(byType[e.DocType], e.Score)
	}

	for _, docType := range []string{"pricing", "policy"} {
		scores := byType[docType]
		if len(scores) < 2 {
			continue
		}
		lo, hi := scores[0], scores[0]
		for _, s := range scores[1:] {
			if s < lo {
				lo = s
			}
			if s > hi {
				hi = s
			}
		}
		if hi-lo > r.cfg.ConflictSpread {
			return true
		}
	}
	return false
}
