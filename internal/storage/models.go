package storage

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// CacheStats describes the persisted embedding cache.
type CacheStats struct {
	Entries int
	Bytes   int64
}

// FreeAnalysis records one client's use of the free analysis.
type FreeAnalysis struct {
	ClientID  string
	UsedAt    time.Time
	ExpiresAt time.Time
}

// FreeAnalysisTotals reports usage counters.
type FreeAnalysisTotals struct {
	Total int
	Today int
	Day   string
}
