// -----------------------------------------------------------------------
// Agent handler - claim/complete endpoints for the remote polling worker
// -----------------------------------------------------------------------

package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/farewatch/internal/interfaces"
	"github.com/ternarybob/farewatch/internal/models"
	"github.com/ternarybob/farewatch/internal/services/runner"
)

// AgentHandler exposes the remote agent protocol: a polling worker
// claims the oldest queued job and later reports its completion. The
// claim shares the local executor's atomicity contract, so a worker
// fleet never double-claims.
type AgentHandler struct {
	bridge *runner.Bridge
	logger arbor.ILogger
}

// NewAgentHandler creates a new agent handler.
func NewAgentHandler(bridge *runner.Bridge, logger arbor.ILogger) *AgentHandler {
	return &AgentHandler{
		bridge: bridge,
		logger: logger,
	}
}

// NextJobHandler claims the oldest queued job for the agent. Responds
// 204 when the queue is empty so the agent can back off and re-poll.
// GET /api/agent/jobs/next
func (h *AgentHandler) NextJobHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	job, err := h.bridge.ClaimNext(r.Context())
	if err != nil {
		if errors.Is(err, interfaces.ErrNoQueuedJobs) {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		h.logger.Error().Err(err).Msg("Failed to claim job for agent")
		WriteError(w, http.StatusInternalServerError, "Failed to claim job")
		return
	}

	h.logger.Info().
		Str("job_id", job.ID).
		Str("type", string(job.Type)).
		Msg("Job claimed by remote agent")
	WriteJSON(w, http.StatusOK, job)
}

// CompleteJobHandler applies an agent-reported completion. Side-effect
// failures are reported back as a job error; already-committed price
// history is never rolled back.
// POST /api/agent/jobs/{id}/complete
func (h *AgentHandler) CompleteJobHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	// Path: /api/agent/jobs/{id}/complete
	jobID := PathSegment(r, 3)
	if jobID == "" || jobID == "complete" {
		WriteError(w, http.StatusBadRequest, "Job ID is required")
		return
	}

	var completion models.AgentCompletion
	if err := json.NewDecoder(r.Body).Decode(&completion); err != nil {
		WriteError(w, http.StatusBadRequest, "Invalid completion body")
		return
	}

	if err := h.bridge.Complete(r.Context(), jobID, &completion); err != nil {
		if errors.Is(err, interfaces.ErrNotFound) {
			WriteError(w, http.StatusNotFound, "Job not found")
			return
		}
		h.logger.Warn().Err(err).Str("job_id", jobID).Msg("Failed to apply agent completion")
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	WriteSuccess(w, "Completion applied")
}
