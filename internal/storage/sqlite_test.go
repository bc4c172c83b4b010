package storage

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Open(:memory:) failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// TestMigrationsIdempotent runs Open twice on the same database and verifies
// the schema_version count stays correct (migration not re-applied).
func TestMigrationsIdempotent(t *testing.T) {
	dir := t.TempDir()

	s1, err := Open(dir)
	if err != nil {
		t.Fatalf("first Open failed: %v", err)
	}
	v1, err := s1.AppliedMigrations()
	if err != nil {
		t.Fatalf("AppliedMigrations: %v", err)
	}
	s1.Close()

	s2, err := Open(dir)
	if err != nil {
		t.Fatalf("second Open failed: %v", err)
	}
	defer s2.Close()

	v2, err := s2.AppliedMigrations()
	if err != nil {
		t.Fatalf("AppliedMigrations: %v", err)
	}
	if len(v1) != len(v2) {
		t.Errorf("migration count changed: %d -> %d", len(v1), len(v2))
	}
}

func TestMigrationsOrdered(t *testing.T) {
	s := openTestStore(t)

	versions, err := s.AppliedMigrations()
	if err != nil {
		t.Fatalf("AppliedMigrations: %v", err)
	}
	if len(versions) != 2 {
		t.Fatalf("got %d migrations, want 2", len(versions))
	}
	for i := 1; i < len(versions); i++ {
		if versions[i] <= versions[i-1] {
			t.Errorf("migrations not in ascending order: %v", versions)
		}
	}
}

func TestParseMigrationVersion(t *testing.T) {
	v, err := parseMigrationVersion("002_free_analysis.sql")
	if err != nil || v != 2 {
		t.Errorf("parseMigrationVersion = %d, %v; want 2, nil", v, err)
	}
	if _, err := parseMigrationVersion("free_analysis.sql"); err == nil {
		t.Error("expected error for unnumbered migration")
	}
}

func TestEmbeddingCacheRoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if _, ok, err := s.GetCachedEmbedding(ctx, "k1"); err != nil || ok {
		t.Fatalf("empty cache: ok=%v err=%v", ok, err)
	}

	blob := []byte{1, 2, 3, 4}
	if err := s.PutCachedEmbedding(ctx, "k1", blob); err != nil {
		t.Fatalf("PutCachedEmbedding: %v", err)
	}
	// Second put with the same key is a no-op.
	if err := s.PutCachedEmbedding(ctx, "k1", []byte{9}); err != nil {
		t.Fatalf("PutCachedEmbedding duplicate: %v", err)
	}

	got, ok, err := s.GetCachedEmbedding(ctx, "k1")
	if err != nil || !ok {
		t.Fatalf("GetCachedEmbedding: ok=%v err=%v", ok, err)
	}
	if !bytes.Equal(got, blob) {
		t.Errorf("got %v, want %v", got, blob)
	}

	st, err := s.EmbeddingCacheStats(ctx)
	if err != nil {
		t.Fatalf("EmbeddingCacheStats: %v", err)
	}
	if st.Entries != 1 || st.Bytes != 4 {
		t.Errorf("stats = %+v, want 1 entry / 4 bytes", st)
	}

	n, err := s.PurgeEmbeddingCache(ctx)
	if err != nil || n != 1 {
		t.Errorf("PurgeEmbeddingCache = %d, %v; want 1, nil", n, err)
	}
}

func TestEmbeddingCachePersistsAcrossOpen(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	s1, err := Open(dir)
	if err != nil {
		t.Fatal(err)
	}
	if err := s1.PutCachedEmbedding(ctx, "k", []byte("vec")); err != nil {
		t.Fatal(err)
	}
	s1.Close()

	s2, err := Open(dir)
	if err != nil {
		t.Fatal(err)
	}
	defer s2.Close()

	got, ok, err := s2.GetCachedEmbedding(ctx, "k")
	if err != nil || !ok || string(got) != "vec" {
		t.Errorf("after reopen: got %q ok=%v err=%v", got, ok, err)
	}
}

func TestClaimFreeAnalysisOnce(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	fa := FreeAnalysis{ClientID: "c1", UsedAt: now, ExpiresAt: now.Add(time.Hour)}

	if ok, err := s.ClaimFreeAnalysis(ctx, fa, now); err != nil || !ok {
		t.Fatalf("first claim = %v, %v; want true", ok, err)
	}
	later := now.Add(time.Minute)
	again := FreeAnalysis{ClientID: "c1", UsedAt: later, ExpiresAt: later.Add(time.Hour)}
	if ok, err := s.ClaimFreeAnalysis(ctx, again, later); err != nil || ok {
		t.Fatalf("claim within window = %v, %v; want false", ok, err)
	}
	got, err := s.GetFreeAnalysis(ctx, "c1")
	if err != nil || !got.UsedAt.Equal(now) {
		t.Errorf("record = %+v, %v; want the first claim kept", got, err)
	}

	expired := now.Add(2 * time.Hour)
	renewed := FreeAnalysis{ClientID: "c1", UsedAt: expired, ExpiresAt: expired.Add(time.Hour)}
	if ok, err := s.ClaimFreeAnalysis(ctx, renewed, expired); err != nil || !ok {
		t.Fatalf("claim after expiry = %v, %v; want true", ok, err)
	}

	totals, err := s.FreeAnalysisTotals(ctx, now)
	if err != nil {
		t.Fatal(err)
	}
	if totals.Total != 2 {
		t.Errorf("total = %d, want 2 (refused claim must not count)", totals.Total)
	}
}

func TestFreeAnalysisLifecycle(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	if _, err := s.GetFreeAnalysis(ctx, "c1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("GetFreeAnalysis on empty store: err = %v, want ErrNotFound", err)
	}

	fa := FreeAnalysis{ClientID: "c1", UsedAt: now, ExpiresAt: now.Add(24 * time.Hour)}
	if ok, err := s.ClaimFreeAnalysis(ctx, fa, now); err != nil || !ok {
		t.Fatalf("ClaimFreeAnalysis = %v, %v; want true", ok, err)
	}
	if ok, err := s.ClaimFreeAnalysis(ctx, FreeAnalysis{ClientID: "c2", UsedAt: now, ExpiresAt: now.Add(time.Hour)}, now); err != nil || !ok {
		t.Fatalf("ClaimFreeAnalysis c2 = %v, %v; want true", ok, err)
	}

	got, err := s.GetFreeAnalysis(ctx, "c1")
	if err != nil {
		t.Fatalf("GetFreeAnalysis: %v", err)
	}
	if !got.ExpiresAt.Equal(fa.ExpiresAt) {
		t.Errorf("ExpiresAt = %v, want %v", got.ExpiresAt, fa.ExpiresAt)
	}

	totals, err := s.FreeAnalysisTotals(ctx, now)
	if err != nil {
		t.Fatalf("FreeAnalysisTotals: %v", err)
	}
	if totals.Total != 2 || totals.Today != 2 || totals.Day != "2026-03-10" {
		t.Errorf("totals = %+v, want 2/2 on 2026-03-10", totals)
	}

	n, err := s.DeleteExpiredFreeAnalyses(ctx, now.Add(2*time.Hour))
	if err != nil || n != 1 {
		t.Errorf("DeleteExpiredFreeAnalyses = %d, %v; want 1, nil", n, err)
	}
	if _, err := s.GetFreeAnalysis(ctx, "c2"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expired record still present: %v", err)
	}

	if err := s.DeleteFreeAnalysis(ctx, "c1"); err != nil {
		t.Fatalf("DeleteFreeAnalysis: %v", err)
	}
	if _, err := s.GetFreeAnalysis(ctx, "c1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("deleted record still present: %v", err)
	}
}
