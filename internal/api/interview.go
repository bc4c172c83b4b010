package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/kalambet/skillgap/internal/document"
	"github.com/kalambet/skillgap/internal/interview"
)

// InterviewCoach prepares practice interviews.
type InterviewCoach interface {
	Generate(ctx context.Context, req interview.GenerateRequest) (*interview.Session, error)
	Review(ctx context.Context, req interview.ReviewRequest) (*interview.Review, error)
}

type sessionResponse struct {
	Success bool               `json:"success"`
	Session *interview.Session `json:"interview_session"`
	Message string             `json:"message"`
}

type reviewResponse struct {
	Success  bool              `json:"success"`
	Analysis *interview.Review `json:"analysis"`
	Message  string            `json:"message"`
}

// handleGenerateQuestions accepts either a JSON GenerateRequest or a
// multipart form with a cv_file upload and job_text, num_questions and
// job_category fields.
func (h *handler) handleGenerateQuestions(w http.ResponseWriter, r *http.Request) {
	var (
		req interview.GenerateRequest
		ok  bool
	)
	if mt, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type")); mt == "multipart/form-data" {
		req, ok = readInterviewForm(w, r)
	} else {
		req, ok = readInterviewJSON(w, r)
	}
	if !ok {
		return
	}

	s, err := h.coach.Generate(r.Context(), req)
	if err != nil {
		h.interviewError(w, "generating questions", err)
		return
	}
	writeJSON(w, http.StatusOK, sessionResponse{
		Success: true,
		Session: s,
		Message: fmt.Sprintf("%d questions generated", s.NumQuestions),
	})
}

func (h *handler) handleAnalyzeResponses(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	defer r.Body.Close()

	var req interview.ReviewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
		return
	}
	rev, err := h.coach.Review(r.Context(), req)
	if err != nil {
		h.interviewError(w, "analyzing responses", err)
		return
	}
	writeJSON(w, http.StatusOK, reviewResponse{
		Success:  true,
		Analysis: rev,
		Message:  fmt.Sprintf("%d responses analyzed", len(rev.Feedback)),
	})
}

func readInterviewJSON(w http.ResponseWriter, r *http.Request) (interview.GenerateRequest, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	defer r.Body.Close()

	var req interview.GenerateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
		return req, false
	}
	return req, true
}

func readInterviewForm(w http.ResponseWriter, r *http.Request) (interview.GenerateRequest, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, document.MaxSize+(1<<20))
	req := interview.GenerateRequest{
		Posting:    r.FormValue("job_text"),
		DomainHint: r.FormValue("job_category"),
	}
	if v := r.FormValue("num_questions"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "num_questions must be an integer")
			return req, false
		}
		req.NumQuestions = n
	}

	file, hdr, err := r.FormFile("cv_file")
	if err != nil {
		httpError(w, http.StatusBadRequest, "invalid_request_error", "missing cv_file field: %v", err)
		return req, false
	}
	defer file.Close()
	if !document.Supported(hdr.Filename) {
		httpError(w, http.StatusUnsupportedMediaType, "invalid_request_error", "unsupported file type %q", hdr.Filename)
		return req, false
	}
	data, err := io.ReadAll(io.LimitReader(file, document.MaxSize+1))
	if err != nil {
		httpError(w, http.StatusBadRequest, "invalid_request_error", "reading upload: %v", err)
		return req, false
	}
	req.Resume, err = document.Extract(hdr.Filename, data)
	switch {
	case errors.Is(err, document.ErrTooLarge):
		httpError(w, http.StatusRequestEntityTooLarge, "invalid_request_error", "file exceeds %d MB", document.MaxSize>>20)
		return req, false
	case err != nil:
		httpError(w, http.StatusUnprocessableEntity, "invalid_request_error", "extracting text: %v", err)
		return req, false
	}
	return req, true
}

func (h *handler) interviewError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, interview.ErrEmptyResume), errors.Is(err, interview.ErrEmptyPosting),
		errors.Is(err, interview.ErrNoQuestions), errors.Is(err, interview.ErrAnswerCount):
		httpError(w, http.StatusBadRequest, "invalid_request_error", "%v", err)
	default:
		h.log.Error(op, zap.Error(err))
		httpError(w, http.StatusInternalServerError, "api_error", "%s failed", op)
	}
}
