// -----------------------------------------------------------------------
// Job handler - job creation, inspection, and the stuck-job reset trigger
// -----------------------------------------------------------------------

package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/farewatch/internal/interfaces"
	"github.com/ternarybob/farewatch/internal/models"
	"github.com/ternarybob/farewatch/internal/services/runner"
)

// JobHandler handles job-related API requests.
type JobHandler struct {
	jobService *runner.JobService
	jobStorage interfaces.JobStorage
	scheduler  interfaces.SchedulerService
	logger     arbor.ILogger
}

// NewJobHandler creates a new job handler.
func NewJobHandler(jobService *runner.JobService, jobStorage interfaces.JobStorage, scheduler interfaces.SchedulerService, logger arbor.ILogger) *JobHandler {
	return &JobHandler{
		jobService: jobService,
		jobStorage: jobStorage,
		scheduler:  scheduler,
		logger:     logger,
	}
}

type createJobRequest struct {
	Type     models.JobType  `json:"type"`
	FlightID string          `json:"flight_id,omitempty"`
	Payload  json.RawMessage `json:"payload,omitempty"`
}

// CreateJobHandler creates and enqueues a job.
// POST /api/jobs
func (h *JobHandler) CreateJobHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	var req createJobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if !req.Type.IsValid() {
		WriteError(w, http.StatusBadRequest, fmt.Sprintf("Unknown job type %q", req.Type))
		return
	}

	jobID, err := h.jobService.CreateAndRunJob(r.Context(), req.Type, req.FlightID, req.Payload)
	if err != nil {
		if errors.Is(err, interfaces.ErrNotFound) {
			WriteError(w, http.StatusNotFound, "Flight not found")
			return
		}
		h.logger.Error().Err(err).Str("type", string(req.Type)).Msg("Failed to create job")
		WriteError(w, http.StatusBadRequest, fmt.Sprintf("Failed to create job: %v", err))
		return
	}

	WriteJSON(w, http.StatusAccepted, map[string]string{
		"status": "queued",
		"job_id": jobID,
	})
}

// GetJobHandler returns a single job by ID.
// GET /api/jobs/{id}
func (h *JobHandler) GetJobHandler(w http.ResponseWriter, r *http.Request) {
	jobID := PathSegment(r, 2)
	if jobID == "" {
		WriteError(w, http.StatusBadRequest, "Job ID is required")
		return
	}

	job, err := h.jobService.GetJob(r.Context(), jobID)
	if err != nil {
		if errors.Is(err, interfaces.ErrNotFound) {
			WriteError(w, http.StatusNotFound, "Job not found")
			return
		}
		h.logger.Error().Err(err).Str("job_id", jobID).Msg("Failed to get job")
		WriteError(w, http.StatusInternalServerError, "Failed to get job")
		return
	}

	WriteJSON(w, http.StatusOK, job)
}

// ListJobsHandler returns jobs, newest first, with optional filters and
// per-status counts for operational visibility.
// GET /api/jobs?status=queued&type=check_now&limit=50
func (h *JobHandler) ListJobsHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	limit := 50
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if parsed, err := strconv.Atoi(limitStr); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	opts := &interfaces.JobListOptions{
		Status: models.JobStatus(r.URL.Query().Get("status")),
		Type:   models.JobType(r.URL.Query().Get("type")),
		Limit:  limit,
	}

	jobs, err := h.jobService.ListJobs(ctx, opts)
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to list jobs")
		WriteError(w, http.StatusInternalServerError, "Failed to list jobs")
		return
	}

	counts := map[string]int{}
	for _, status := range []models.JobStatus{models.JobStatusQueued, models.JobStatusRunning, models.JobStatusSuccess, models.JobStatusError} {
		count, err := h.jobStorage.CountJobsByStatus(ctx, status)
		if err != nil {
			h.logger.Warn().Err(err).Str("job_status", string(status)).Msg("Failed to count jobs")
			continue
		}
		counts[string(status)] = count
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"jobs":   jobs,
		"count":  len(jobs),
		"counts": counts,
		"limit":  limit,
	})
}

// ResetStuckJobsHandler returns abandoned running jobs to the queue.
// POST /api/jobs/reset-stuck
func (h *JobHandler) ResetStuckJobsHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	count, err := h.jobService.ResetStuckJobs(r.Context())
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to reset stuck jobs")
		WriteError(w, http.StatusInternalServerError, "Failed to reset stuck jobs")
		return
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"status": "success",
		"reset":  count,
	})
}

// TriggerCheckAllHandler enqueues an immediate check_all sweep outside
// the schedule.
// POST /api/jobs/check-all
func (h *JobHandler) TriggerCheckAllHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	jobID, err := h.scheduler.TriggerCheckAllNow()
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to trigger check_all")
		WriteError(w, http.StatusInternalServerError, "Failed to trigger check")
		return
	}

	WriteJSON(w, http.StatusAccepted, map[string]string{
		"status": "queued",
		"job_id": jobID,
	})
}
