package api

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"
	"github.com/snarg/speakscore/internal/assess"
)

// Submitter queues an evaluation and waits for its result.
type Submitter interface {
	Submit(ctx context.Context, req assess.Request) (*assess.Assessment, error)
}

// Historian lists a user's past assessments.
type Historian interface {
	History(ctx context.Context, userID string, limit, offset int) ([]assess.Assessment, int, error)
}

// Analyzer produces acoustic-only diagnostics.
type Analyzer interface {
	Analyze(ctx context.Context, req assess.AnalyzeRequest) (*assess.Analysis, error)
}

// LanguageLister lists languages with a reference model.
type LanguageLister interface {
	Languages() []string
}

// AssessmentsHandler serves the pronunciation endpoints.
type AssessmentsHandler struct {
	pool      Submitter
	history   Historian
	analyzer  Analyzer
	languages LanguageLister
	log       zerolog.Logger
}

func NewAssessmentsHandler(pool Submitter, history Historian, analyzer Analyzer, languages LanguageLister, log zerolog.Logger) *AssessmentsHandler {
	return &AssessmentsHandler{
		pool:      pool,
		history:   history,
		analyzer:  analyzer,
		languages: languages,
		log:       log.With().Str("handler", "assessments").Logger(),
	}
}

func (h *AssessmentsHandler) Routes(r chi.Router) {
	r.Post("/assessments", h.Evaluate)
	r.Get("/users/{userId}/assessments", h.ListUserAssessments)
	r.Post("/pronunciation/analyze", h.Analyze)
	r.Get("/languages", h.ListLanguages)
}

// Evaluate handles POST /api/v1/assessments.
func (h *AssessmentsHandler) Evaluate(w http.ResponseWriter, r *http.Request) {
	var req assess.Request
	if err := DecodeJSON(w, r, &req); err != nil {
		WriteErrorWithCode(w, http.StatusBadRequest, ErrInvalidBody, "invalid request body: "+err.Error())
		return
	}

	a, err := h.pool.Submit(r.Context(), req)
	if err != nil {
		h.writeAssessError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, a)
}

type historyResponse struct {
	Assessments []assess.Assessment `json:"assessments"`
	Total       int                 `json:"total"`
	Limit       int                 `json:"limit"`
	Offset      int                 `json:"offset"`
}

// ListUserAssessments handles GET /api/v1/users/{userId}/assessments.
func (h *AssessmentsHandler) ListUserAssessments(w http.ResponseWriter, r *http.Request) {
	p, err := ParsePagination(r)
	if err != nil {
		WriteErrorWithCode(w, http.StatusBadRequest, ErrBadRequest, err.Error())
		return
	}
	userID := chi.URLParam(r, "userId")

	items, total, err := h.history.History(r.Context(), userID, p.Limit, p.Offset)
	if err != nil {
		h.writeAssessError(w, r, err)
		return
	}
	if items == nil {
		items = []assess.Assessment{}
	}
	WriteJSON(w, http.StatusOK, historyResponse{
		Assessments: items,
		Total:       total,
		Limit:       p.Limit,
		Offset:      p.Offset,
	})
}

// Analyze handles POST /api/v1/pronunciation/analyze.
func (h *AssessmentsHandler) Analyze(w http.ResponseWriter, r *http.Request) {
	var req assess.AnalyzeRequest
	if err := DecodeJSON(w, r, &req); err != nil {
		WriteErrorWithCode(w, http.StatusBadRequest, ErrInvalidBody, "invalid request body: "+err.Error())
		return
	}

	res, err := h.analyzer.Analyze(r.Context(), req)
	if err != nil {
		h.writeAssessError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, res)
}

// ListLanguages handles GET /api/v1/languages.
func (h *AssessmentsHandler) ListLanguages(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, map[string][]string{"languages": h.languages.Languages()})
}

func (h *AssessmentsHandler) writeAssessError(w http.ResponseWriter, r *http.Request, err error) {
	var ae *assess.Error
	switch {
	case errors.Is(err, assess.ErrQueueFull):
		w.Header().Set("Retry-After", "1")
		WriteErrorWithCode(w, http.StatusServiceUnavailable, ErrBusy, "too many evaluations in progress")
	case errors.Is(err, assess.ErrPoolStopped):
		WriteErrorWithCode(w, http.StatusServiceUnavailable, ErrUnavailable, "server is shutting down")
	case errors.Is(err, context.Canceled):
		// Client went away; nobody reads the body.
		hlog.FromRequest(r).Debug().Msg("request canceled by client")
		w.WriteHeader(499)
	case errors.As(err, &ae):
		switch ae.Kind {
		case assess.KindRejectedInput:
			WriteJSON(w, http.StatusBadRequest, ErrorResponse{
				Error:  "invalid request",
				Code:   ErrRejectedInput,
				Fields: ae.Fields,
			})
		case assess.KindTranscriptionFailed:
			WriteJSON(w, http.StatusBadGateway, ErrorResponse{
				Error:  "transcription failed",
				Code:   ErrTranscriptionFailed,
				Detail: causeDetail(ae.Err),
				Stage:  ae.Stage,
			})
		default:
			h.log.Error().Err(err).Str("stage", ae.Stage).Msg("evaluation failed")
			WriteJSON(w, http.StatusInternalServerError, ErrorResponse{
				Error: "evaluation failed",
				Code:  ErrEvaluationFailed,
				Stage: ae.Stage,
			})
		}
	default:
		h.log.Error().Err(err).Msg("unexpected assessment error")
		WriteError(w, http.StatusInternalServerError, "internal server error")
	}
}

// causeDetail keeps the first line of an upstream error for the client.
func causeDetail(err error) string {
	if err == nil {
		return ""
	}
	msg := err.Error()
	if i := strings.IndexByte(msg, '\n'); i >= 0 {
		msg = msg[:i]
	}
	return msg
}
