package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/JPisOP007/jeevo/internal/rag"
)

// maxBodyBytes caps request bodies. Questions and answers are short text.
const maxBodyBytes = 64 * 1024

// QueryRequest is the body of POST /api/query.
type QueryRequest struct {
	Question string `json:"question"`
	TopK     int    `json:"top_k,omitempty"`
}

// ValidateRequest is the body of POST /api/validate.
type ValidateRequest struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req QueryRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Question) == "" {
		writeError(w, http.StatusBadRequest, "question is required")
		return
	}

	// Keyword gate before any retrieval or model call.
	if !s.rag.IsMedicalQuery(req.Question) {
		writeError(w, http.StatusUnprocessableEntity, "only health questions grounded in medical guidelines are answered")
		return
	}

	answer, err := s.rag.Query(r.Context(), req.Question, req.TopK)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, answer)
}

func (s *Server) handleValidate(w http.ResponseWriter, r *http.Request) {
	var req ValidateRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Question) == "" {
		writeError(w, http.StatusBadRequest, "question is required")
		return
	}
	if strings.TrimSpace(req.Answer) == "" {
		writeError(w, http.StatusBadRequest, "answer is required")
		return
	}

	validation, err := s.rag.Validate(r.Context(), req.Question, req.Answer)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, validation)
}

// writeServiceError maps pipeline errors to HTTP statuses.
func (s *Server) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	id, _ := GetRequestID(r.Context())

	switch {
	case errors.Is(err, rag.ErrUnavailable):
		writeError(w, http.StatusServiceUnavailable, "service is not available")
	case errors.Is(err, rag.ErrGeneration):
		s.logger.Error("answer generation failed", "request_id", id, "error", err)
		writeError(w, http.StatusBadGateway, "answer generation failed")
	default:
		s.logger.Error("query failed", "request_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

// decodeBody decodes a JSON request body, rejecting unknown fields and
// oversized payloads. Writes the error response itself and reports success.
func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
