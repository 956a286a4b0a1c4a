package server

import (
	"errors"
	"log/slog"
	"math"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/user/docugen/internal/apierr"
	"github.com/user/docugen/internal/coordinator"
	"github.com/user/docugen/internal/docs"
	"github.com/user/docugen/internal/redact"
)

// statusClientClosedRequest is reported when the caller went away before the
// batch finished.
const statusClientClosedRequest = 499

type batchRequest struct {
	Requests           []docs.Operation `json:"requests"`
	RequiredRevisionID string           `json:"required_revision_id,omitempty"`
	TargetRevisionID   string           `json:"target_revision_id,omitempty"`
	DryRun             bool             `json:"dry_run,omitempty"`
}

func (b batchRequest) toApply(documentID string) coordinator.ApplyRequest {
	req := coordinator.ApplyRequest{DocumentID: documentID, Operations: b.Requests}
	if b.RequiredRevisionID != "" || b.TargetRevisionID != "" {
		req.WriteControl = &docs.WriteControl{
			RequiredRevisionID: b.RequiredRevisionID,
			TargetRevisionID:   b.TargetRevisionID,
		}
	}
	return req
}

func (s *Server) handleBatch(w http.ResponseWriter, r *http.Request) {
	var body batchRequest
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+redact.Error(err), string(apierr.CodeInvalidRequest))
		return
	}
	req := body.toApply(chi.URLParam(r, "id"))
	slog.Debug("batch requested",
		"document_id", req.DocumentID,
		"operations", len(req.Operations),
		"dry_run", body.DryRun,
		"subject", principalFromContext(r.Context()).Subject,
	)

	if body.DryRun {
		plan, err := s.coord.Plan(r.Context(), req)
		if err != nil {
			writeAPIError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, plan)
		return
	}

	result, err := s.coord.Apply(r.Context(), req)
	if err != nil {
		writeAPIError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	var body batchRequest
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+redact.Error(err), string(apierr.CodeInvalidRequest))
		return
	}
	result, err := s.coord.Preview(r.Context(), body.toApply(chi.URLParam(r, "id")))
	if err != nil {
		writeAPIError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleGetDocument(w http.ResponseWriter, r *http.Request) {
	doc, hit, err := s.coord.Document(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeAPIError(w, err)
		return
	}
	if hit {
		w.Header().Set("X-Cache", "hit")
	} else {
		w.Header().Set("X-Cache", "miss")
	}
	writeJSON(w, http.StatusOK, doc)
}

func (s *Server) handleInvalidateCache(w http.ResponseWriter, r *http.Request) {
	s.coord.Invalidate(chi.URLParam(r, "id"))
	w.WriteHeader(http.StatusNoContent)
}

// writeAPIError maps a coordinator error onto an HTTP status and the
// {"error","code","param"} body.
func writeAPIError(w http.ResponseWriter, err error) {
	var e *apierr.Error
	if !errors.As(err, &e) {
		writeError(w, http.StatusInternalServerError, redact.Error(err), "INTERNAL")
		return
	}
	if e.Kind == apierr.KindRateLimit && e.RetryAfter > 0 {
		w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(e.RetryAfter.Seconds()))))
	}
	writeJSON(w, statusFor(e), errorBody{Error: e.Error(), Code: string(e.Code), Param: e.Param})
}

func statusFor(e *apierr.Error) int {
	switch e.Kind {
	case apierr.KindValidation:
		return http.StatusBadRequest
	case apierr.KindRateLimit:
		return http.StatusTooManyRequests
	case apierr.KindNetwork:
		return http.StatusServiceUnavailable
	case apierr.KindMaxRetries:
		return http.StatusBadGateway
	case apierr.KindRemote:
		// Remote 401/403 refer to this service's credentials.
		if e.Status == http.StatusUnauthorized || e.Status == http.StatusForbidden {
			return http.StatusBadGateway
		}
		if e.Status >= 400 && e.Status < 600 {
			return e.Status
		}
		return http.StatusBadGateway
	case apierr.KindCanceled:
		return statusClientClosedRequest
	default:
		return http.StatusInternalServerError
	}
}
