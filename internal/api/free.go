package api

import (
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/kalambet/skillgap/internal/quota"
)

type freeStatus struct {
	CanUse   bool        `json:"can_use_free_analysis"`
	ClientID string      `json:"client_id"`
	Message  string      `json:"message"`
	Info     *quota.Info `json:"analysis_info"`
}

func (h *handler) handleFreeStatus(w http.ResponseWriter, r *http.Request) {
	id := quota.ClientID(clientAddr(r), r.UserAgent())
	status := freeStatus{
		CanUse:   h.quota.Available(r.Context(), id),
		ClientID: id,
	}
	if status.CanUse {
		status.Message = "Free analysis available"
	} else {
		status.Message = "Free analysis already used"
		info, err := h.quota.Info(r.Context(), id)
		if err != nil {
			h.log.Warn("reading free analysis info", zap.Error(err))
		}
		status.Info = info
	}
	writeJSON(w, http.StatusOK, status)
}

func (h *handler) handleResetFree(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("client_id")
	if id == "" {
		id = quota.ClientID(clientAddr(r), r.UserAgent())
	}
	if err := h.quota.Reset(r.Context(), id); err != nil {
		httpError(w, http.StatusInternalServerError, "api_error", "resetting free analysis: %v", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message":   "Free analysis reset",
		"client_id": id,
		"success":   true,
	})
}

func (h *handler) handleFreeStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.quota.Stats(r.Context())
	if err != nil {
		httpError(w, http.StatusInternalServerError, "api_error", "reading stats: %v", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"stats":     stats,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}
