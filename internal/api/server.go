// Package api exposes the comparison pipeline over HTTP (JSON and
// server-sent events) and as an MCP tool server.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/kalambet/skillgap/internal/gap"
	"github.com/kalambet/skillgap/internal/logger"
	"github.com/kalambet/skillgap/internal/pipeline"
	"github.com/kalambet/skillgap/internal/quota"
	"github.com/kalambet/skillgap/internal/tables"
)

const maxRequestBodySize = 1 << 20 // 1MB

// Analyzer runs the analysis pipeline.
type Analyzer interface {
	Analyze(ctx context.Context, req pipeline.Request, emit func(gap.Event) error) error
	Collect(ctx context.Context, req pipeline.Request) (*pipeline.Result, error)
}

// QuotaService gates the anonymous free-analysis routes.
type QuotaService interface {
	Available(ctx context.Context, clientID string) bool
	Claim(ctx context.Context, clientID string) bool
	Info(ctx context.Context, clientID string) (*quota.Info, error)
	Reset(ctx context.Context, clientID string) error
	Stats(ctx context.Context) (quota.Stats, error)
}

// Deps holds the HTTP API's dependencies.
type Deps struct {
	Analyzer Analyzer
	Tables   *tables.Tables
	Quota    QuotaService
	// Coach serves the interview routes; nil leaves them unregistered.
	Coach InterviewCoach
	// Token protects every non-free route. Empty disables auth.
	Token  string
	Logger *zap.Logger
}

type handler struct {
	analyzer Analyzer
	tables   *tables.Tables
	quota    QuotaService
	coach    InterviewCoach
	log      *zap.Logger
}

// NewHandler returns the HTTP API.
func NewHandler(d Deps) http.Handler {
	h := &handler{
		analyzer: d.Analyzer,
		tables:   d.Tables,
		quota:    d.Quota,
		coach:    d.Coach,
		log:      logger.OrNop(d.Logger),
	}

	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(h.requestLog)

	r.Get("/health", handleHealth)
	r.Get("/categories", h.handleCategories)

	r.Group(func(r chi.Router) {
		r.Use(BearerAuth(d.Token))
		r.Post("/compare", h.handleCompare)
		r.Post("/compare/report", h.handleReport)
		r.Post("/compare-stream", h.handleCompareStream)
		r.Post("/upload-cv", h.uploadHandler())
		r.Post("/reset-free-analysis", h.handleResetFree)
		if h.coach != nil {
			r.Post("/interview/generate-questions", h.handleGenerateQuestions)
			r.Post("/interview/analyze-responses", h.handleAnalyzeResponses)
		}
	})

	r.Post("/free-compare-stream", h.handleFreeCompareStream)
	r.Post("/free-upload-cv", h.uploadHandler(".pdf"))
	r.Get("/free-analysis-status", h.handleFreeStatus)
	r.Get("/free-analysis-stats", h.handleFreeStats)

	return r
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *handler) handleCategories(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, categoryList(h.tables))
}

type categoryEntry struct {
	tables.Category
	Threshold tables.Threshold `json:"threshold"`
}

func categoryList(t *tables.Tables) []categoryEntry {
	out := make([]categoryEntry, 0, len(t.Categories))
	for _, c := range t.Categories {
		out = append(out, categoryEntry{Category: c, Threshold: t.Threshold(c.Name)})
	}
	return out
}

// compareBody distinguishes an absent field from a blank one.
type compareBody struct {
	Posting    *string `json:"offer_text"`
	Resume     *string `json:"cv_text"`
	DomainHint string  `json:"job_category"`
}

// decodeRequest reads a comparison request body. Both texts must be present
// but may be blank: a blank posting yields an empty comparison.
func decodeRequest(w http.ResponseWriter, r *http.Request) (pipeline.Request, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	defer r.Body.Close()

	var body compareBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
		return pipeline.Request{}, false
	}
	if body.Posting == nil || body.Resume == nil {
		httpError(w, http.StatusBadRequest, "invalid_request_error", "offer_text and cv_text are required")
		return pipeline.Request{}, false
	}
	return pipeline.Request{
		Posting:    *body.Posting,
		Resume:     *body.Resume,
		DomainHint: body.DomainHint,
	}, true
}

func (h *handler) requestLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		h.log.Debug("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("duration", time.Since(start)),
		)
	})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func httpError(w http.ResponseWriter, code int, errType string, format string, args ...any) {
	writeJSON(w, code, map[string]any{
		"error": map[string]any{
			"message": fmt.Sprintf(format, args...),
			"type":    errType,
		},
	})
}
