package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const redisDocsKey = "memory:docs"

type redisDoc struct {
	Text      string            `json:"text"`
	Embedding []float32         `json:"embedding"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// RedisIndex stores embedded documents as JSON entries in a Redis hash and
// scores them client-side. Survives restarts; suited to small corpora where
// a full scan per query is acceptable.
type RedisIndex struct {
	client   *redis.Client
	embedder Embedder
}

func NewRedisIndex(client *redis.Client, embedder Embedder) *RedisIndex {
	return &RedisIndex{client: client, embedder: embedder}
}

func (idx *RedisIndex) Add(ctx context.Context, text string, metadata map[string]string) error {
	vec, err := idx.embedder.Embed(ctx, text)
	if err != nil {
		return err
	}

	data, err := json.Marshal(redisDoc{Text: text, Embedding: vec, Metadata: metadata})
	if err != nil {
		return fmt.Errorf("failed to marshal memory document: %w", err)
	}

	if err := idx.client.HSet(ctx, redisDocsKey, uuid.NewString(), data).Err(); err != nil {
		return fmt.Errorf("failed to store memory document: %w", err)
	}
	return nil
}

func (idx *RedisIndex) Search(ctx context.Context, query string, k int) ([]Result, error) {
	if k <= 0 {
		return nil, nil
	}

	vec, err := idx.embedder.Embed(ctx, query)
	if err != nil {
		return nil, err
	}

	raw, err := idx.client.HVals(ctx, redisDocsKey).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to scan memory documents: %w", err)
	}

	results := make([]Result, 0, len(raw))
	for _, item := range raw {
		var doc redisDoc
		if err := json.Unmarshal([]byte(item), &doc); err != nil {
			continue // skip malformed entries
		}
		results = append(results, Result{
			Text:     doc.Text,
			Metadata: doc.Metadata,
			Score:    cosineSimilarity(vec, doc.Embedding),
		})
	}

	sort.SliceStable(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	if len(results) > k {
		results = results[:k]
	}
	return results, nil
}
