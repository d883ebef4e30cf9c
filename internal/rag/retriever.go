package rag

import (
	"context"
	"fmt"
	"strings"
	"time"

	logx "github.com/leadpilot-ai/server/pkg/logger"
)

// Retriever answers queries against the knowledge index.
type Retriever struct {
	embedder Embedder
	store    VectorStore
	topK     int
}

func NewRetriever(embedder Embedder, store VectorStore, topK int) *Retriever {
	if topK <= 0 {
		topK = 8
	}
	return &Retriever{embedder: embedder, store: store, topK: topK}
}

// Retrieve embeds the query and returns the nearest chunks as evidence.
// Retrieval is best-effort: any embedding or store failure degrades to an
// empty result so the pipeline can continue ungrounded.
func (r *Retriever) Retrieve(ctx context.Context, query string, topK int, docTypeFilter string, metadataFilter map[string]string) []*Evidence {
	k := topK
	if k <= 0 {
		k = r.topK
	}

	filter := make(map[string]string, len(metadataFilter)+1)
	for key, v := range metadataFilter {
		filter[key] = v
	}
	if docTypeFilter != "" {
		filter["doc_type"] = docTypeFilter
	}

	embedding, err := r.embedder.EmbedSingle(ctx, query)
	if err != nil {
		logx.Error().Err(err).Str("query", query).Msg("query embedding failed")
		return []*Evidence{}
	}

	res, err := r.store.Query(ctx, embedding, k, filter)
	if err != nil {
		logx.Error().Err(err).Str("query", query).Int("top_k", k).Msg("vector query failed")
		return []*Evidence{}
	}

	now := time.Now().UTC()
	list := make([]*Evidence, 0, len(res.IDs))
	for i := range res.IDs {
		meta := res.Metadatas[i]
		similarity := 1.0 - res.Distances[i]
		list = append(list, &Evidence{
			SourceID:    res.IDs[i],
			DocTitle:    metaString(meta, "doc_title", "unknown"),
			DocType:     metaString(meta, "doc_type", "unknown"),
			ChunkText:   res.Documents[i],
			Similarity:  similarity,
			Score:       similarity,
			ChunkIndex:  metaInt(meta, "chunk_index"),
			SourceFile:  metaString(meta, "source_file", "unknown"),
			Metadata:    meta,
			RetrievedAt: now,
		})
	}

	logx.Debug().Str("query", query).Int("top_k", k).Int("hits", len(list)).Msg("retrieval performed")
	return list
}

// RetrieveWithContext prepends the tail of the conversation to the query so
// follow-up questions resolve against what was just discussed.
func (r *Retriever) RetrieveWithContext(ctx context.Context, query string, history []string, topK int) []*Evidence {
	tail := history
	if len(tail) > 3 {
		tail = tail[len(tail)-3:]
	}
	contextualized := fmt.Sprintf("%s\n\nCurrent query: %s", strings.Join(tail, " "), query)
	return r.Retrieve(ctx, contextualized, topK, "", nil)
}

// RetrieveByDocType runs one scoped retrieval per document type.
func (r *Retriever) RetrieveByDocType(ctx context.Context, query string, docTypes []string, topKPerType int) map[string][]*Evidence {
	results := make(map[string][]*Evidence)
	for _, docType := range docTypes {
		if list := r.Retrieve(ctx, query, topKPerType, docType, nil); len(list) > 0 {
			results[docType] = list
		}
	}
	return results
}

func metaString(meta map[string]any, key, fallback string) string {
	if v, ok := meta[key].(string); ok && v != "" {
		return v
	}
	return fallback
}

func metaInt(meta map[string]any, key string) int {
	switch v := meta[key].(type) {
	case int:
		return v
	case float64:
		return int(v)
	default:
		return 0
	}
}
