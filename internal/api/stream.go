package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/kalambet/skillgap/internal/gap"
	"github.com/kalambet/skillgap/internal/pipeline"
	"github.com/kalambet/skillgap/internal/quota"
	"github.com/kalambet/skillgap/internal/report"
)

// sseWriter frames events as server-sent events and flushes each one.
type sseWriter struct {
	w       http.ResponseWriter
	flusher http.Flusher
}

func newSSEWriter(w http.ResponseWriter) (*sseWriter, bool) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, false
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	return &sseWriter{w: w, flusher: flusher}, true
}

func (s *sseWriter) Send(e gap.Event) error {
	payload, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encoding event: %w", err)
	}
	if _, err := fmt.Fprintf(s.w, "data: %s\n\n", payload); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}

func (h *handler) handleCompare(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeRequest(w, r)
	if !ok {
		return
	}
	res, err := h.analyzer.Collect(r.Context(), req)
	if err != nil {
		httpError(w, http.StatusInternalServerError, "api_error", "analysis failed: %v", err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *handler) handleReport(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeRequest(w, r)
	if !ok {
		return
	}
	res, err := h.analyzer.Collect(r.Context(), req)
	if err != nil {
		httpError(w, http.StatusInternalServerError, "api_error", "analysis failed: %v", err)
		return
	}
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="skillgap-report.xlsx"`)
	if err := report.Write(w, res.Items, res.Summary); err != nil {
		h.log.Error("writing report", zap.Error(err))
	}
}

func (h *handler) handleCompareStream(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeRequest(w, r)
	if !ok {
		return
	}
	h.stream(w, r, req)
}

func (h *handler) handleFreeCompareStream(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeRequest(w, r)
	if !ok {
		return
	}
	id := quota.ClientID(clientAddr(r), r.UserAgent())
	if !h.quota.Claim(r.Context(), id) {
		httpError(w, http.StatusTooManyRequests, "rate_limit_error",
			"free analysis already used; try again later or sign in for unlimited analyses")
		return
	}
	h.stream(w, r, req)
}

// stream runs the analysis and relays its events. A client disconnect
// cancels r.Context(), which stops the pipeline.
func (h *handler) stream(w http.ResponseWriter, r *http.Request, req pipeline.Request) {
	sse, ok := newSSEWriter(w)
	if !ok {
		httpError(w, http.StatusInternalServerError, "api_error", "streaming not supported")
		return
	}
	err := h.analyzer.Analyze(r.Context(), req, sse.Send)
	if err == nil || r.Context().Err() != nil {
		return
	}
	h.log.Warn("analysis stream failed", zap.Error(err))
	if sendErr := sse.Send(gap.ErrorEvent(err.Error())); sendErr != nil {
		h.log.Debug("sending error event", zap.Error(sendErr))
	}
}
