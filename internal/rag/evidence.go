package rag

import (
	"fmt"
	"time"
)

// Evidence is one retrieved knowledge chunk.
//
// Similarity holds the raw retrieval similarity and never changes after
// retrieval; Score starts equal to it and is replaced by the reranker's
// composite. Keeping both makes reranking repeatable.
type Evidence struct {
	SourceID    string         `json:"source_id"`
	DocTitle    string         `json:"doc_title"`
	DocType     string         `json:"doc_type"`
	ChunkText   string         `json:"chunk_text"`
	Similarity  float64        `json:"similarity"`
	Score       float64        `json:"score"`
	ChunkIndex  int            `json:"chunk_index"`
	SourceFile  string         `json:"source_file"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	RetrievedAt time.Time      `json:"retrieved_at"`
}

// FormatCitation renders the evidence as a citation tag for responses.
func (e *Evidence) FormatCitation() string {
	return fmt.Sprintf("[%s - %s]", e.DocTitle, e.DocType)
}

// IsHighQuality reports whether the evidence meets the score threshold.
func (e *Evidence) IsHighQuality(threshold float64) bool {
	return e.Score >= threshold
}
