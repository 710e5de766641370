package memory

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
)

// PgvectorIndex stores embedded documents in PostgreSQL and delegates
// nearest-neighbor ranking to pgvector's cosine distance operator.
type PgvectorIndex struct {
	pool     *pgxpool.Pool
	embedder Embedder
}

func NewPgvectorIndex(pool *pgxpool.Pool, embedder Embedder) *PgvectorIndex {
	return &PgvectorIndex{pool: pool, embedder: embedder}
}

func (idx *PgvectorIndex) Add(ctx context.Context, text string, metadata map[string]string) error {
	vec, err := idx.embedder.Embed(ctx, text)
	if err != nil {
		return err
	}

	meta, err := json.Marshal(metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal memory metadata: %w", err)
	}
	if metadata == nil {
		meta = []byte("{}")
	}

	_, err = idx.pool.Exec(ctx,
		`INSERT INTO memories (content, embedding, metadata) VALUES ($1, $2, $3)`,
		text, pgvector.NewVector(vec), meta,
	)
	if err != nil {
		return fmt.Errorf("failed to insert memory: %w", err)
	}
	return nil
}

func (idx *PgvectorIndex) Search(ctx context.Context, query string, k int) ([]Result, error) {
	if k <= 0 {
		return nil, nil
	}

	vec, err := idx.embedder.Embed(ctx, query)
	if err != nil {
		return nil, err
	}

	rows, err := idx.pool.Query(ctx,
		`SELECT content, metadata, 1 - (embedding <=> $1) AS similarity
		 FROM memories
		 ORDER BY embedding <=> $1
		 LIMIT $2`,
		pgvector.NewVector(vec), k,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to search memories: %w", err)
	}
	defer rows.Close()

	var results []Result
	for rows.Next() {
		var r Result
		var meta []byte
		if err := rows.Scan(&r.Text, &meta, &r.Score); err != nil {
			return nil, fmt.Errorf("failed to scan memory row: %w", err)
		}
		if len(meta) > 0 {
			json.Unmarshal(meta, &r.Metadata)
		}
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate memory rows: %w", err)
	}
	return results, nil
}
