// Package quota limits anonymous clients to one free analysis per window.
package quota

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/kalambet/skillgap/internal/logger"
	"github.com/kalambet/skillgap/internal/storage"
)

// DefaultWindow is how long a used free analysis blocks the client.
const DefaultWindow = 24 * time.Hour

// Store persists free analysis usage.
type Store interface {
	GetFreeAnalysis(ctx context.Context, clientID string) (storage.FreeAnalysis, error)
	ClaimFreeAnalysis(ctx context.Context, fa storage.FreeAnalysis, now time.Time) (bool, error)
	DeleteFreeAnalysis(ctx context.Context, clientID string) error
	DeleteExpiredFreeAnalyses(ctx context.Context, now time.Time) (int64, error)
	FreeAnalysisTotals(ctx context.Context, now time.Time) (storage.FreeAnalysisTotals, error)
}

// Info describes a client's used free analysis.
type Info struct {
	UsedAt    time.Time `json:"used_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Stats are the global usage counters.
type Stats struct {
	TotalFreeAnalyses int    `json:"total_free_analyses"`
	Today             int    `json:"today"`
	Day               string `json:"day"`
}

// Service answers quota questions. Store failures never block a client:
// availability checks allow the analysis and log the error.
type Service struct {
	store  Store
	window time.Duration
	now    func() time.Time
	log    *zap.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithWindow sets the blocking window.
func WithWindow(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.window = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Service) { s.log = logger.OrNop(l) }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService creates a Service backed by store.
func NewService(store Store, opts ...Option) *Service {
	s := &Service{
		store:  store,
		window: DefaultWindow,
		now:    time.Now,
		log:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ClientID derives an opaque client identifier from the remote IP and
// user agent.
func ClientID(ip, userAgent string) string {
	sum := sha256.Sum256([]byte(ip + ":" + userAgent))
	return hex.EncodeToString(sum[:])
}

// Available reports whether clientID may run a free analysis now. An
// expired record is removed. Use Claim to actually take the analysis.
func (s *Service) Available(ctx context.Context, clientID string) bool {
	fa, err := s.store.GetFreeAnalysis(ctx, clientID)
	if errors.Is(err, storage.ErrNotFound) {
		return true
	}
	if err != nil {
		s.log.Error("free analysis lookup failed, allowing", zap.Error(err))
		return true
	}
	if s.now().After(fa.ExpiresAt) {
		if err := s.store.DeleteFreeAnalysis(ctx, clientID); err != nil {
			s.log.Warn("removing expired free analysis failed", zap.Error(err))
		}
		return true
	}
	return false
}

// Claim takes clientID's free analysis for the current window. It returns
// false when the client already used it. Concurrent claims by one client
// succeed at most once.
func (s *Service) Claim(ctx context.Context, clientID string) bool {
	now := s.now().UTC()
	ok, err := s.store.ClaimFreeAnalysis(ctx, storage.FreeAnalysis{
		ClientID:  clientID,
		UsedAt:    now,
		ExpiresAt: now.Add(s.window),
	}, now)
	if err != nil {
		s.log.Error("free analysis claim failed, allowing", zap.Error(err))
		return true
	}
	return ok
}

// Info returns the usage record of clientID, or nil when there is none.
func (s *Service) Info(ctx context.Context, clientID string) (*Info, error) {
	fa, err := s.store.GetFreeAnalysis(ctx, clientID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &Info{UsedAt: fa.UsedAt, ExpiresAt: fa.ExpiresAt}, nil
}

// Reset forgets clientID's usage.
func (s *Service) Reset(ctx context.Context, clientID string) error {
	return s.store.DeleteFreeAnalysis(ctx, clientID)
}

// Stats returns the global counters.
func (s *Service) Stats(ctx context.Context) (Stats, error) {
	t, err := s.store.FreeAnalysisTotals(ctx, s.now())
	if err != nil {
		return Stats{}, err
	}
	return Stats{TotalFreeAnalyses: t.Total, Today: t.Today, Day: t.Day}, nil
}

// CleanupExpired removes every expired usage record.
func (s *Service) CleanupExpired(ctx context.Context) (int64, error) {
	return s.store.DeleteExpiredFreeAnalyses(ctx, s.now())
}
