package storage

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// GetCachedEmbedding returns the encoded vector stored under key.
// The boolean is false on a miss.
func (s *Store) GetCachedEmbedding(ctx context.Context, key string) ([]byte, bool, error) {
	var blob []byte
	err := s.db.QueryRowContext(ctx, "SELECT vector FROM embedding_cache WHERE key = ?", key).Scan(&blob)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return blob, true, nil
}

// PutCachedEmbedding stores an encoded vector. Keys are content-derived, so
// an existing row already holds the same vector and is left untouched.
func (s *Store) PutCachedEmbedding(ctx context.Context, key string, blob []byte) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO embedding_cache (key, vector, created_at) VALUES (?, ?, ?) ON CONFLICT(key) DO NOTHING",
		key, blob, time.Now().UTC().Format(time.RFC3339),
	)
	return err
}

// EmbeddingCacheStats returns the number of cached vectors and their total size.
func (s *Store) EmbeddingCacheStats(ctx context.Context) (CacheStats, error) {
	var st CacheStats
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*), COALESCE(SUM(LENGTH(vector)), 0) FROM embedding_cache",
	).Scan(&st.Entries, &st.Bytes)
	return st, err
}

// PurgeEmbeddingCache deletes every cached vector and returns how many were removed.
func (s *Store) PurgeEmbeddingCache(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, "DELETE FROM embedding_cache")
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
