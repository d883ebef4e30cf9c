package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/leadpilot-ai/server/internal/core/errx"
	"github.com/leadpilot-ai/server/internal/rag"
)

const (
	vectorTextAttr      = "text"
	vectorMetadataAttr  = "_metadata"
	vectorMetaPrefix    = "meta_"
	defaultVectorSetKey = "knowledge"
)

// RedisVectorStore keeps the knowledge index in a Redis vector set. Each
// element carries its chunk text and metadata as JSON attributes, plus one
// flat meta_<key> attribute per metadata key so VSIM filters can match them.
type RedisVectorStore struct {
	rdb    *redis.Client
	setKey string
}

func NewRedisVectorStore(rdb *redis.Client, setKey string) *RedisVectorStore {
	if setKey == "" {
		setKey = defaultVectorSetKey
	}
	return &RedisVectorStore{rdb: rdb, setKey: setKey}
}

func (s *RedisVectorStore) Upsert(ctx context.Context, docs []rag.Document) error {
	if len(docs) == 0 {
		return nil
	}
	pipe := s.rdb.Pipeline()
	for _, doc := range docs {
		pipe.VAdd(ctx, s.setKey, doc.ID, &redis.VectorValues{Val: doc.Embedding})
		pipe.VSetAttr(ctx, s.setKey, doc.ID, buildAttributes(doc))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return errx.WrapRedis(err)
	}
	return nil
}

// Query runs VSIM and converts each similarity into a distance so callers
// see the conventional 1-similarity scale.
func (s *RedisVectorStore) Query(ctx context.Context, embedding []float64, topK int, filter map[string]string) (*rag.QueryResult, error) {
	args := &redis.VSimArgs{Count: int64(topK)}
	if f := buildFilter(filter); f != "" {
		args.Filter = f
	}

	hits, err := s.rdb.VSimWithArgsWithScores(ctx, s.setKey, &redis.VectorValues{Val: embedding}, args).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return &rag.QueryResult{}, nil
		}
		return nil, errx.WrapRedis(err)
	}
	if len(hits) == 0 {
		return &rag.QueryResult{}, nil
	}

	pipe := s.rdb.Pipeline()
	attrCmds := make([]*redis.StringCmd, len(hits))
	for i, hit := range hits {
		attrCmds[i] = pipe.VGetAttr(ctx, s.setKey, hit.Name)
	}
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return nil, errx.WrapRedis(err)
	}

	res := &rag.QueryResult{
		IDs:       make([]string, 0, len(hits)),
		Documents: make([]string, 0, len(hits)),
		Metadatas: make([]map[string]any, 0, len(hits)),
		Distances: make([]float64, 0, len(hits)),
	}
	for i, hit := range hits {
		raw, err := attrCmds[i].Result()
		if err != nil && !errors.Is(err, redis.Nil) {
			return nil, errx.WrapRedis(err)
		}
		text, meta, err := parseAttributes(raw)
		if err != nil {
			return nil, fmt.Errorf("parse attributes for %q: %w", hit.Name, err)
		}
		res.IDs = append(res.IDs, hit.Name)
		res.Documents = append(res.Documents, text)
		res.Metadatas = append(res.Metadatas, meta)
		res.Distances = append(res.Distances, 1.0-hit.Score)
	}
	return res, nil
}

func (s *RedisVectorStore) Delete(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	pipe := s.rdb.Pipeline()
	for _, id := range ids {
		pipe.VRem(ctx, s.setKey, id)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return errx.WrapRedis(err)
	}
	return nil
}

// Clear drops the whole index. Ingestion calls this first so a re-run never
// leaves stale duplicates behind.
func (s *RedisVectorStore) Clear(ctx context.Context) error {
	if err := s.rdb.Del(ctx, s.setKey).Err(); err != nil {
		return errx.WrapRedis(err)
	}
	return nil
}

func (s *RedisVectorStore) Count(ctx context.Context) (int64, error) {
	n, err := s.rdb.VCard(ctx, s.setKey).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, errx.WrapRedis(err)
	}
	return n, nil
}

func buildAttributes(doc rag.Document) map[string]any {
	attrs := make(map[string]any, len(doc.Metadata)+2)
	attrs[vectorTextAttr] = doc.Text
	meta := doc.Metadata
	if meta == nil {
		meta = make(map[string]any)
	}
	attrs[vectorMetadataAttr] = meta
	for key, value := range meta {
		attrs[vectorMetaPrefix+key] = fmt.Sprint(value)
	}
	return attrs
}

func buildFilter(filter map[string]string) string {
	if len(filter) == 0 {
		return ""
	}
	keys := make([]string, 0, len(filter))
	for key := range filter {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	escaper := strings.NewReplacer(`\`, `\\`, `"`, `\"`)
	for _, key := range keys {
		parts = append(parts, fmt.Sprintf(`.%s%s == "%s"`, vectorMetaPrefix, key, escaper.Replace(filter[key])))
	}
	return strings.Join(parts, " && ")
}

func parseAttributes(payload string) (string, map[string]any, error) {
	if strings.TrimSpace(payload) == "" {
		return "", make(map[string]any), nil
	}
	var decoded map[string]any
	if err := json.Unmarshal([]byte(payload), &decoded); err != nil {
		return "", nil, err
	}
	text, _ := decoded[vectorTextAttr].(string)
	meta, _ := decoded[vectorMetadataAttr].(map[string]any)
	if meta == nil {
		meta = make(map[string]any)
	}
	return text, meta, nil
}

var _ rag.VectorStore = (*RedisVectorStore)(nil)
