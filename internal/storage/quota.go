package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

const (
	dayFormat     = "2006-01-02"
	statRetention = 30 * 24 * time.Hour
)

// GetFreeAnalysis returns the usage record for clientID, or ErrNotFound.
func (s *Store) GetFreeAnalysis(ctx context.Context, clientID string) (FreeAnalysis, error) {
	var usedAt, expiresAt string
	err := s.db.QueryRowContext(ctx,
		"SELECT used_at, expires_at FROM free_analysis WHERE client_id = ?", clientID,
	).Scan(&usedAt, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return FreeAnalysis{}, ErrNotFound
	}
	if err != nil {
		return FreeAnalysis{}, err
	}

	fa := FreeAnalysis{ClientID: clientID}
	if fa.UsedAt, err = time.Parse(time.RFC3339, usedAt); err != nil {
		return FreeAnalysis{}, fmt.Errorf("parsing used_at: %w", err)
	}
	if fa.ExpiresAt, err = time.Parse(time.RFC3339, expiresAt); err != nil {
		return FreeAnalysis{}, fmt.Errorf("parsing expires_at: %w", err)
	}
	return fa, nil
}

// ClaimFreeAnalysis atomically records fa unless clientID already holds a
// record that has not expired by now. It reports whether the claim was
// taken; only a taken claim bumps the daily counter for the day of UsedAt.
// Counters older than 30 days are pruned.
func (s *Store) ClaimFreeAnalysis(ctx context.Context, fa FreeAnalysis, now time.Time) (bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		INSERT INTO free_analysis (client_id, used_at, expires_at) VALUES (?, ?, ?)
		ON CONFLICT(client_id) DO UPDATE SET used_at = excluded.used_at, expires_at = excluded.expires_at
		WHERE free_analysis.expires_at < ?`,
		fa.ClientID, fa.UsedAt.UTC().Format(time.RFC3339), fa.ExpiresAt.UTC().Format(time.RFC3339),
		now.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return false, fmt.Errorf("claiming free analysis: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if n == 0 {
		return false, nil
	}

	day := fa.UsedAt.UTC().Format(dayFormat)
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO free_analysis_daily (day, count) VALUES (?, 1)
		ON CONFLICT(day) DO UPDATE SET count = count + 1`, day,
	); err != nil {
		return false, fmt.Errorf("incrementing daily stats: %w", err)
	}

	cutoff := fa.UsedAt.UTC().Add(-statRetention).Format(dayFormat)
	if _, err := tx.ExecContext(ctx, "DELETE FROM free_analysis_daily WHERE day < ?", cutoff); err != nil {
		return false, fmt.Errorf("pruning daily stats: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return false, err
	}
	return true, nil
}

// DeleteFreeAnalysis removes the usage record for clientID. Deleting a
// missing record is not an error.
func (s *Store) DeleteFreeAnalysis(ctx context.Context, clientID string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM free_analysis WHERE client_id = ?", clientID)
	return err
}

// DeleteExpiredFreeAnalyses removes records that expired before now.
func (s *Store) DeleteExpiredFreeAnalyses(ctx context.Context, now time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		"DELETE FROM free_analysis WHERE expires_at < ?", now.UTC().Format(time.RFC3339))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// FreeAnalysisTotals returns the retained total and the count for the day of now.
func (s *Store) FreeAnalysisTotals(ctx context.Context, now time.Time) (FreeAnalysisTotals, error) {
	day := now.UTC().Format(dayFormat)
	totals := FreeAnalysisTotals{Day: day}
	err := s.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(count), 0),
		       COALESCE(SUM(CASE WHEN day = ? THEN count ELSE 0 END), 0)
		FROM free_analysis_daily`, day,
	).Scan(&totals.Total, &totals.Today)
	return totals, err
}
