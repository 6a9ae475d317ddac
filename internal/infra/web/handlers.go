package web

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"tttranscribe/internal/domain"
	"tttranscribe/internal/domain/model"
	"tttranscribe/internal/infra/logging"
	"tttranscribe/internal/usecase"

	"github.com/go-chi/chi/v5"
)

const maxBodyBytes = 16 << 10

type errorBody struct {
	Error             string `json:"error"`
	Message           string `json:"message,omitempty"`
	RetryAfterSeconds int    `json:"retryAfterSeconds,omitempty"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, kind, msg string) {
	writeJSON(w, code, errorBody{Error: kind, Message: msg})
}

// writeDomainError maps domain errors to HTTP status codes.
func (s *Server) writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, "invalid_input", err.Error())
	case errors.Is(err, domain.ErrNotFound), errors.Is(err, domain.ErrDeadLetterNotFound):
		writeError(w, http.StatusNotFound, "not_found", "not found")
	case errors.Is(err, domain.ErrQueueFull):
		w.Header().Set("Retry-After", "5")
		writeError(w, http.StatusServiceUnavailable, "busy", "server is at capacity, retry shortly")
	case errors.Is(err, domain.ErrReplayInProgress):
		writeError(w, http.StatusConflict, "replay_in_progress", "a replay for this job is already running")
	case errors.Is(err, domain.ErrNotificationFailed):
		writeError(w, http.StatusBadGateway, "delivery_failed", err.Error())
	case errors.Is(err, domain.ErrUnauthorized):
		writeError(w, http.StatusUnauthorized, "unauthorized", "unauthorized")
	case errors.Is(err, domain.ErrForbidden):
		writeError(w, http.StatusForbidden, "forbidden", "forbidden")
	default:
		logging.With(r.Context(), s.log).Error().Err(err).Msg("request failed")
		writeError(w, http.StatusInternalServerError, "internal_error", "internal error")
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type tokenResponse struct {
	Token     string    `json:"token"`
	TokenType string    `json:"tokenType"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// handleMintToken exchanges an API key for a short-lived token. Tokens
// cannot mint further tokens.
func (s *Server) handleMintToken(w http.ResponseWriter, r *http.Request) {
	p := PrincipalFrom(r.Context())
	if p.Method == "jwt" {
		writeError(w, http.StatusForbidden, "forbidden", "token exchange requires an api key or signed request")
		return
	}
	tok, exp, err := s.auth.Mint(p)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tokenResponse{Token: tok, TokenType: "Bearer", ExpiresAt: exp})
}

type submitRequest struct {
	InputKey      string `json:"inputKey"`
	URL           string `json:"url"`
	CorrelationID string `json:"correlationId"`
}

type submitResponse struct {
	JobID               string `json:"jobId"`
	Status              string `json:"status"`
	StatusURL           string `json:"statusUrl"`
	PollIntervalSeconds int    `json:"pollIntervalSeconds"`
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	p := PrincipalFrom(r.Context())

	var req submitRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_input", "request body must be JSON with an inputKey")
		return
	}
	inputKey := req.InputKey
	if inputKey == "" {
		inputKey = req.URL
	}
	if strings.TrimSpace(inputKey) == "" {
		writeError(w, http.StatusBadRequest, "invalid_input", "inputKey is required")
		return
	}

	if d := s.admission.TryAcquire(p.ClientID); !d.Allowed {
		w.Header().Set("Retry-After", strconv.Itoa(d.RetryAfterSeconds))
		writeJSON(w, http.StatusTooManyRequests, errorBody{
			Error:             "rate_limited",
			Message:           "too many requests",
			RetryAfterSeconds: d.RetryAfterSeconds,
		})
		return
	}

	corr := req.CorrelationID
	if corr == "" {
		corr = r.Header.Get("X-Correlation-Id")
	}
	job, err := s.jobs.Submit(r.Context(), usecase.SubmitRequest{
		ClientID:      p.ClientID,
		InputKey:      inputKey,
		CorrelationID: corr,
	})
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	statusURL := s.opts.PublicBaseURL + "/api/v1/transcriptions/" + job.ID
	w.Header().Set("Location", statusURL)
	writeJSON(w, http.StatusAccepted, submitResponse{
		JobID:               job.ID,
		Status:              "queued",
		StatusURL:           statusURL,
		PollIntervalSeconds: s.opts.PollIntervalSeconds,
	})
}

type resultDTO struct {
	Transcript       string  `json:"transcript"`
	Summary          string  `json:"summary,omitempty"`
	Title            string  `json:"title,omitempty"`
	Language         string  `json:"language,omitempty"`
	DurationSeconds  float64 `json:"durationSeconds"`
	CharacterCount   int     `json:"characterCount"`
	ProcessingTimeMs int64   `json:"processingTimeMs"`
	CacheHit         bool    `json:"cacheHit"`
}

type jobDTO struct {
	JobID                 string     `json:"jobId"`
	InputKey              string     `json:"inputKey"`
	CorrelationID         string     `json:"correlationId"`
	ClientID              string     `json:"clientId,omitempty"`
	Phase                 string     `json:"phase"`
	ProgressPercent       int        `json:"progressPercent"`
	CreatedAt             time.Time  `json:"createdAt"`
	UpdatedAt             time.Time  `json:"updatedAt"`
	EstimatedCompletionAt *time.Time `json:"estimatedCompletionAt,omitempty"`
	Result                *resultDTO `json:"result,omitempty"`
	FailureKind           string     `json:"failureKind,omitempty"`
	FailureReason         string     `json:"failureReason,omitempty"`
}

func toJobDTO(j *model.Job, withClient bool) jobDTO {
	dto := jobDTO{
		JobID:                 j.ID,
		InputKey:              j.InputKey,
		CorrelationID:         j.CorrelationID,
		Phase:                 string(j.Phase),
		ProgressPercent:       j.ProgressPercent,
		CreatedAt:             j.CreatedAt,
		UpdatedAt:             j.UpdatedAt,
		EstimatedCompletionAt: j.EstimatedCompletionAt,
	}
	if withClient {
		dto.ClientID = j.ClientID
	}
	if j.Result != nil {
		dto.Result = &resultDTO{
			Transcript:       j.Result.Transcript,
			Summary:          j.Result.Summary,
			Title:            j.Result.Title,
			Language:         j.Result.Language,
			DurationSeconds:  j.Result.DurationSeconds,
			CharacterCount:   j.Result.CharacterCount,
			ProcessingTimeMs: j.Result.ProcessingTime.Milliseconds(),
			CacheHit:         j.Result.CacheHit,
		}
	}
	if j.Failure != nil {
		dto.FailureKind = string(j.Failure.Kind)
		dto.FailureReason = j.Failure.Message
	}
	return dto
}

func (s *Server) handleGetStatus(w http.ResponseWriter, r *http.Request) {
	p := PrincipalFrom(r.Context())
	job, err := s.jobs.GetStatus(r.Context(), chi.URLParam(r, "jobID"))
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	// other clients' jobs are reported as unknown
	if !p.IsAdmin() && job.ClientID != p.ClientID {
		s.writeDomainError(w, r, domain.ErrNotFound)
		return
	}
	writeJSON(w, http.StatusOK, toJobDTO(job, p.IsAdmin()))
}

type jobSummaryResponse struct {
	Counts map[string]int `json:"counts"`
	Recent []jobDTO       `json:"recent"`
}

type jobListResponse struct {
	Phase string   `json:"phase"`
	Items []jobDTO `json:"items"`
	Count int      `json:"count"`
}

// handleJobSummary serves phase counts plus recent jobs, or with ?phase=
// only the jobs in that phase.
func (s *Server) handleJobSummary(w http.ResponseWriter, r *http.Request) {
	limit := 25
	if v, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && v > 0 && v <= 200 {
		limit = v
	}
	if raw := r.URL.Query().Get("phase"); raw != "" {
		phase := model.JobPhase(strings.ToUpper(strings.TrimSpace(raw)))
		if !phase.Valid() {
			writeError(w, http.StatusBadRequest, "invalid_phase", "unknown job phase")
			return
		}
		jobs, err := s.jobs.ListByPhase(r.Context(), phase, limit)
		if err != nil {
			s.writeDomainError(w, r, err)
			return
		}
		resp := jobListResponse{Phase: string(phase), Items: make([]jobDTO, 0, len(jobs))}
		for _, j := range jobs {
			resp.Items = append(resp.Items, toJobDTO(j, true))
		}
		resp.Count = len(resp.Items)
		writeJSON(w, http.StatusOK, resp)
		return
	}
	sum, err := s.jobs.Summary(r.Context(), limit)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	resp := jobSummaryResponse{Counts: map[string]int{}, Recent: make([]jobDTO, 0, len(sum.Recent))}
	for phase, n := range sum.Counts {
		resp.Counts[string(phase)] = n
	}
	for _, j := range sum.Recent {
		resp.Recent = append(resp.Recent, toJobDTO(j, true))
	}
	writeJSON(w, http.StatusOK, resp)
}

type deadLetterDTO struct {
	JobID          string          `json:"jobId"`
	IdempotencyKey string          `json:"idempotencyKey"`
	CorrelationID  string          `json:"correlationId"`
	Attempts       int             `json:"attempts"`
	LastError      string          `json:"lastError"`
	CreatedAt      time.Time       `json:"createdAt"`
	LastAttemptAt  time.Time       `json:"lastAttemptAt"`
	Payload        json.RawMessage `json:"payload"`
}

func (s *Server) handleListDeadLetters(w http.ResponseWriter, r *http.Request) {
	recs, err := s.notifier.ListDeadLetters(r.Context())
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	items := make([]deadLetterDTO, 0, len(recs))
	for _, rec := range recs {
		items = append(items, deadLetterDTO{
			JobID:          rec.JobID,
			IdempotencyKey: rec.IdempotencyKey,
			CorrelationID:  rec.CorrelationID,
			Attempts:       rec.Attempts,
			LastError:      rec.LastError,
			CreatedAt:      rec.CreatedAt,
			LastAttemptAt:  rec.LastAttemptAt,
			Payload:        json.RawMessage(rec.Body),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items, "count": len(items)})
}

func (s *Server) handleReplay(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")
	if err := s.notifier.Replay(r.Context(), jobID); err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"jobId": jobID, "status": "delivered"})
}
