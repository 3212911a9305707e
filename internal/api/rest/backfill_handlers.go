package rest

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/fortuna/juno/internal/backfill"
	"github.com/fortuna/juno/internal/fantasy"
	"github.com/fortuna/juno/internal/store"
)

// BackfillService queues historical ingestion jobs
type BackfillService interface {
	Enqueue(ctx context.Context, req backfill.Request) (*backfill.Job, error)
	GetStatus(ctx context.Context) (*backfill.StatusSummary, error)
	Cancel(ctx context.Context, jobID string) error
}

// BackfillHandler proxies API calls to the backfill service.
type BackfillHandler struct {
	service BackfillService
}

// NewBackfillHandler wires the REST layer to the backfill service.
func NewBackfillHandler(service BackfillService) *BackfillHandler {
	return &BackfillHandler{service: service}
}

type apiBackfillRequest struct {
	Season    string   `json:"season"`
	StartDate string   `json:"start_date"`
	EndDate   string   `json:"end_date"`
	GameID    string   `json:"game_id"`
	GameIDs   []string `json:"game_ids"`
	DryRun    bool     `json:"dry_run"`
}

// HandleBackfillRequest handles POST /api/v1/backfill. Dry runs return the
// resolved plan without queueing anything.
func (h *BackfillHandler) HandleBackfillRequest(w http.ResponseWriter, r *http.Request) {
	var req apiBackfillRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	backfillReq := backfill.Request{
		Season: req.Season,
		DryRun: req.DryRun,
	}

	if len(req.GameIDs) > 0 {
		backfillReq.GameIDs = append(backfillReq.GameIDs, req.GameIDs...)
	}
	if req.GameID != "" {
		backfillReq.GameIDs = append(backfillReq.GameIDs, req.GameID)
	}

	if req.StartDate != "" {
		start, err := parseDate(req.StartDate)
		if err != nil {
			respondError(w, http.StatusBadRequest, "Invalid start_date format (YYYY-MM-DD)", err)
			return
		}
		backfillReq.StartDate = &start
	}

	if req.EndDate != "" {
		end, err := parseDate(req.EndDate)
		if err != nil {
			respondError(w, http.StatusBadRequest, "Invalid end_date format (YYYY-MM-DD)", err)
			return
		}
		backfillReq.EndDate = &end
	}

	if backfillReq.DryRun {
		spec, err := backfill.Plan(backfillReq)
		if err != nil {
			respondError(w, http.StatusBadRequest, "Invalid backfill request", err)
			return
		}
		respondJSON(w, http.StatusOK, map[string]interface{}{
			"dry_run": true,
			"plan":    planPayload(spec),
		})
		return
	}

	job, err := h.service.Enqueue(r.Context(), backfillReq)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, backfill.ErrInvalidRequest) {
			status = http.StatusBadRequest
		}
		respondError(w, status, "Failed to enqueue backfill job", err)
		return
	}

	respondJSON(w, http.StatusAccepted, map[string]interface{}{
		"job": jobPayload(job),
	})
}

// HandleBackfillStatus handles GET /api/v1/backfill/status
func (h *BackfillHandler) HandleBackfillStatus(w http.ResponseWriter, r *http.Request) {
	summary, err := h.service.GetStatus(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to fetch status", err)
		return
	}

	respondJSON(w, http.StatusOK, buildStatusPayload(summary))
}

// HandleBackfillCancel handles POST /api/v1/backfill/{jobID}/cancel. Only
// queued jobs can be cancelled.
func (h *BackfillHandler) HandleBackfillCancel(w http.ResponseWriter, r *http.Request) {
	jobID := mux.Vars(r)["jobID"]
	if err := h.service.Cancel(r.Context(), jobID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			respondError(w, http.StatusNotFound, "No queued job with that id", err)
			return
		}
		respondError(w, http.StatusInternalServerError, "Failed to cancel job", err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"job_id": jobID,
		"status": backfill.JobStatusCancelled,
	})
}

type planView struct {
	JobType   backfill.JobType `json:"job_type"`
	Season    string           `json:"season,omitempty"`
	StartDate string           `json:"start_date,omitempty"`
	EndDate   string           `json:"end_date,omitempty"`
	GameIDs   []string         `json:"game_ids,omitempty"`
	Units     int              `json:"units"`
}

func planPayload(spec backfill.JobSpec) planView {
	view := planView{JobType: spec.Type, Season: spec.Season}
	if spec.Type == backfill.JobTypeGame {
		view.GameIDs = spec.GameIDs
		view.Units = len(spec.GameIDs)
		return view
	}
	view.StartDate = spec.Start.Format(fantasy.DateLayout)
	view.EndDate = spec.End.Format(fantasy.DateLayout)
	view.Units = len(fantasy.DatesBetween(spec.Start, spec.End))
	return view
}

type statusView struct {
	Status    backfill.JobStatus   `json:"status"`
	Message   string               `json:"message"`
	ActiveJob *jobView             `json:"active_job,omitempty"`
	Events    []*backfill.JobEvent `json:"events,omitempty"`
	History   []*jobView           `json:"history"`
}

func buildStatusPayload(summary *backfill.StatusSummary) statusView {
	view := statusView{
		Status:  "idle",
		Message: "No active jobs",
		Events:  summary.Events,
		History: make([]*jobView, 0, len(summary.History)),
	}
	if active := summary.ActiveJob; active != nil {
		view.Status = active.Status
		if msg := nullString(active.StatusMessage); msg != "" {
			view.Message = msg
		}
		view.ActiveJob = jobPayload(active)
	}
	for _, job := range summary.History {
		view.History = append(view.History, jobPayload(job))
	}
	return view
}

// jobView flattens the nullable columns of a job for JSON clients.
type jobView struct {
	JobID           string             `json:"job_id"`
	JobType         backfill.JobType   `json:"job_type"`
	Status          backfill.JobStatus `json:"status"`
	StatusMessage   string             `json:"status_message,omitempty"`
	Season          string             `json:"season,omitempty"`
	StartDate       string             `json:"start_date,omitempty"`
	EndDate         string             `json:"end_date,omitempty"`
	GameIDs         []string           `json:"game_ids,omitempty"`
	ProgressCurrent int                `json:"progress_current"`
	ProgressTotal   int                `json:"progress_total"`
	RetryCount      int                `json:"retry_count"`
	LastError       string             `json:"last_error,omitempty"`
	CreatedAt       time.Time          `json:"created_at"`
	UpdatedAt       time.Time          `json:"updated_at"`
	StartedAt       *time.Time         `json:"started_at,omitempty"`
	CompletedAt     *time.Time         `json:"completed_at,omitempty"`
}

func jobPayload(job *backfill.Job) *jobView {
	if job == nil {
		return nil
	}
	return &jobView{
		JobID:           job.JobID,
		JobType:         job.JobType,
		Status:          job.Status,
		StatusMessage:   nullString(job.StatusMessage),
		Season:          nullString(job.Season),
		StartDate:       nullDate(job.StartDate),
		EndDate:         nullDate(job.EndDate),
		GameIDs:         job.GameIDs,
		ProgressCurrent: job.ProgressCurrent,
		ProgressTotal:   job.ProgressTotal,
		RetryCount:      job.RetryCount,
		LastError:       nullString(job.LastError),
		CreatedAt:       job.CreatedAt,
		UpdatedAt:       job.UpdatedAt,
		StartedAt:       nullTime(job.StartedAt),
		CompletedAt:     nullTime(job.CompletedAt),
	}
}

func nullString(v sql.NullString) string {
	if !v.Valid {
		return ""
	}
	return v.String
}

func nullDate(v sql.NullTime) string {
	if !v.Valid {
		return ""
	}
	return v.Time.Format(fantasy.DateLayout)
}

func nullTime(v sql.NullTime) *time.Time {
	if !v.Valid {
		return nil
	}
	return &v.Time
}
