package memory

import (
	"context"
	"sort"
	"sync"
)

type inProcessEntry struct {
	text     string
	vector   []float32
	metadata map[string]string
}

// InProcessIndex keeps embedded documents in memory. Contents are lost on
// restart; intended for development and single-instance deployments.
type InProcessIndex struct {
	mu       sync.RWMutex
	embedder Embedder
	entries  []inProcessEntry
}

func NewInProcessIndex(embedder Embedder) *InProcessIndex {
	return &InProcessIndex{embedder: embedder}
}

func (idx *InProcessIndex) Add(ctx context.Context, text string, metadata map[string]string) error {
	vec, err := idx.embedder.Embed(ctx, text)
	if err != nil {
		return err
	}

	idx.mu.Lock()
	idx.entries = append(idx.entries, inProcessEntry{text: text, vector: vec, metadata: metadata})
	idx.mu.Unlock()
	return nil
}

func (idx *InProcessIndex) Search(ctx context.Context, query string, k int) ([]Result, error) {
	if k <= 0 {
		return nil, nil
	}

	vec, err := idx.embedder.Embed(ctx, query)
	if err != nil {
		return nil, err
	}

	idx.mu.RLock()
	results := make([]Result, 0, len(idx.entries))
	for _, e := range idx.entries {
		results = append(results, Result{
			Text:     e.text,
			Metadata: e.metadata,
			Score:    cosineSimilarity(vec, e.vector),
		})
	}
	idx.mu.RUnlock()

	sort.SliceStable(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	if len(results) > k {
		results = results[:k]
	}
	return results, nil
}
