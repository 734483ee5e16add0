package runner

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/farewatch/internal/common"
	"github.com/ternarybob/farewatch/internal/interfaces"
	"github.com/ternarybob/farewatch/internal/models"
)

// JobService is the job-creation entry point shared by the HTTP handlers
// and the scheduler. It creates jobs in the store and hands them to the
// configured execution strategy.
type JobService struct {
	storage  interfaces.StorageManager
	executor interfaces.JobExecutor
	config   common.JobsConfig
	logger   arbor.ILogger
}

// NewJobService creates a job service.
func NewJobService(storage interfaces.StorageManager, executor interfaces.JobExecutor, config common.JobsConfig, logger arbor.ILogger) *JobService {
	return &JobService{
		storage:  storage,
		executor: executor,
		config:   config,
		logger:   logger,
	}
}

// CreateAndRunJob creates a job and signals the executor. In remote mode
// the signal is a no-op and the job waits for the polling agent.
func (s *JobService) CreateAndRunJob(ctx context.Context, jobType models.JobType, flightID string, payload json.RawMessage) (string, error) {
	if !jobType.IsValid() {
		return "", fmt.Errorf("unknown job type %q", jobType)
	}

	if requiresFlight(jobType) {
		if flightID == "" {
			return "", fmt.Errorf("job type %s requires a flight", jobType)
		}
		if _, err := s.storage.FlightStorage().GetFlight(ctx, flightID); err != nil {
			return "", fmt.Errorf("failed to resolve flight: %w", err)
		}
	}

	job := models.NewJob(common.NewJobID(), jobType, flightID, s.progressTotal(jobType, payload), payload)
	if err := s.storage.JobStorage().CreateJob(ctx, job); err != nil {
		return "", err
	}

	s.executor.Kick()

	s.logger.Info().
		Str("job_id", job.ID).
		Str("type", string(jobType)).
		Str("flight_id", flightID).
		Msg("Job created")
	return job.ID, nil
}

// GetJob reads one job.
func (s *JobService) GetJob(ctx context.Context, jobID string) (*models.Job, error) {
	return s.storage.JobStorage().GetJob(ctx, jobID)
}

// ListJobs lists jobs, newest first.
func (s *JobService) ListJobs(ctx context.Context, opts *interfaces.JobListOptions) ([]*models.Job, error) {
	return s.storage.JobStorage().ListJobs(ctx, opts)
}

// ResetStuckJobs sweeps abandoned running jobs back to queued and kicks
// the executor so they are picked up again in local mode.
func (s *JobService) ResetStuckJobs(ctx context.Context) (int, error) {
	threshold := time.Duration(s.config.StuckThresholdMinutes) * time.Minute
	count, err := s.storage.JobStorage().ResetStuckJobs(ctx, threshold)
	if err != nil {
		return 0, err
	}
	if count > 0 {
		s.executor.Kick()
	}
	return count, nil
}

// requiresFlight reports whether a job type must reference a flight.
func requiresFlight(jobType models.JobType) bool {
	switch jobType {
	case models.JobTypeCheckNow, models.JobTypeFlexScan, models.JobTypeContextRefresh, models.JobTypeSendEmail:
		return true
	}
	return false
}

// progressTotal derives the known-in-advance probe count for a job type.
// check_all's total is set during execution once active flights are
// counted.
func (s *JobService) progressTotal(jobType models.JobType, payload json.RawMessage) int {
	switch jobType {
	case models.JobTypeCheckNow, models.JobTypeContextRefresh, models.JobTypeSendEmail:
		return 1
	case models.JobTypeFlexScan:
		window := s.config.FlexWindowDays
		if len(payload) > 0 {
			var p models.FlexScanPayload
			if err := json.Unmarshal(payload, &p); err == nil && p.WindowDays > 0 {
				window = p.WindowDays
			}
		}
		if window <= 0 {
			window = 5
		}
		return 2*window + 1
	}
	return 0
}
