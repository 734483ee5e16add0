package badger

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/farewatch/internal/interfaces"
	"github.com/ternarybob/farewatch/internal/models"
	"github.com/timshannon/badgerhold/v4"
)

// JobStorage implements the JobStorage interface for Badger.
//
// Claim atomicity: Badger transactions alone do not give us
// select-for-update semantics across badgerhold queries, so all claims
// (and the stuck-job reset, which also moves jobs back into the queue)
// are serialized through a single claim mutex. Two concurrent callers
// can therefore never receive the same job.
type JobStorage struct {
	db      *BadgerDB
	logger  arbor.ILogger
	claimMu sync.Mutex
}

// NewJobStorage creates a new JobStorage instance
func NewJobStorage(db *BadgerDB, logger arbor.ILogger) interfaces.JobStorage {
	return &JobStorage{
		db:     db,
		logger: logger,
	}
}

func (s *JobStorage) CreateJob(ctx context.Context, job *models.Job) error {
	if err := job.Validate(); err != nil {
		return fmt.Errorf("invalid job: %w", err)
	}
	if job.Status == "" {
		job.Status = models.JobStatusQueued
	}
	if job.CreatedAt.IsZero() {
		job.CreatedAt = time.Now().UTC()
	}

	if err := s.db.Store().Insert(job.ID, job); err != nil {
		return fmt.Errorf("failed to create job: %w", err)
	}

	s.logger.Debug().
		Str("job_id", job.ID).
		Str("type", string(job.Type)).
		Msg("Job created")
	return nil
}

func (s *JobStorage) GetJob(ctx context.Context, jobID string) (*models.Job, error) {
	var job models.Job
	if err := s.db.Store().Get(jobID, &job); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, interfaces.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get job: %w", err)
	}
	return &job, nil
}

// UpdateJob applies a whitelist-only partial update. Status changes are
// checked against the state machine; anything else is rejected.
func (s *JobStorage) UpdateJob(ctx context.Context, jobID string, update *models.JobUpdate) error {
	if update == nil || update.IsEmpty() {
		return nil
	}

	// Status updates can race with a claim moving the same job to
	// running, so they go through the claim mutex as well.
	s.claimMu.Lock()
	defer s.claimMu.Unlock()

	var job models.Job
	if err := s.db.Store().Get(jobID, &job); err != nil {
		if err == badgerhold.ErrNotFound {
			return interfaces.ErrNotFound
		}
		return fmt.Errorf("failed to get job: %w", err)
	}

	if update.Status != nil && *update.Status != job.Status {
		if !job.Status.CanTransitionTo(*update.Status) {
			return fmt.Errorf("invalid job status transition %s -> %s", job.Status, *update.Status)
		}
		job.Status = *update.Status
		if update.Status.IsTerminal() && update.FinishedAt == nil {
			now := time.Now().UTC()
			job.FinishedAt = &now
		}
	}
	if update.ProgressCurrent != nil {
		job.ProgressCurrent = *update.ProgressCurrent
	}
	if update.ProgressTotal != nil {
		job.ProgressTotal = *update.ProgressTotal
	}
	if update.Result != nil {
		job.Result = update.Result
	}
	if update.Error != nil {
		job.Error = *update.Error
	}
	if update.StartedAt != nil {
		job.StartedAt = update.StartedAt
	}
	if update.ClearStartedAt {
		job.StartedAt = nil
	}
	if update.FinishedAt != nil {
		job.FinishedAt = update.FinishedAt
	}

	if err := s.db.Store().Upsert(job.ID, &job); err != nil {
		return fmt.Errorf("failed to update job: %w", err)
	}
	return nil
}

func (s *JobStorage) ListJobs(ctx context.Context, opts *interfaces.JobListOptions) ([]*models.Job, error) {
	query := badgerhold.Where("ID").Ne("")
	if opts != nil {
		if opts.Status != "" {
			query = query.And("Status").Eq(opts.Status)
		}
		if opts.Type != "" {
			query = query.And("Type").Eq(opts.Type)
		}
		query = query.SortBy("CreatedAt").Reverse()
		if opts.Limit > 0 {
			query = query.Limit(opts.Limit)
		}
	} else {
		query = query.SortBy("CreatedAt").Reverse()
	}

	var jobs []models.Job
	if err := s.db.Store().Find(&jobs, query); err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}

	result := make([]*models.Job, len(jobs))
	for i := range jobs {
		result[i] = &jobs[i]
	}
	return result, nil
}

func (s *JobStorage) CountJobsByStatus(ctx context.Context, status models.JobStatus) (int, error) {
	count, err := s.db.Store().Count(&models.Job{}, badgerhold.Where("Status").Eq(status))
	if err != nil {
		return 0, fmt.Errorf("failed to count jobs: %w", err)
	}
	return int(count), nil
}

// ClaimNextJob atomically transitions the single oldest queued job to
// running and returns it. Returns ErrNoQueuedJobs when the queue is empty.
func (s *JobStorage) ClaimNextJob(ctx context.Context) (*models.Job, error) {
	s.claimMu.Lock()
	defer s.claimMu.Unlock()

	var jobs []models.Job
	query := badgerhold.Where("Status").Eq(models.JobStatusQueued).
		SortBy("CreatedAt").Limit(1)
	if err := s.db.Store().Find(&jobs, query); err != nil {
		return nil, fmt.Errorf("failed to query queued jobs: %w", err)
	}
	if len(jobs) == 0 {
		return nil, interfaces.ErrNoQueuedJobs
	}

	job := jobs[0]
	now := time.Now().UTC()
	job.Status = models.JobStatusRunning
	job.StartedAt = &now

	if err := s.db.Store().Upsert(job.ID, &job); err != nil {
		return nil, fmt.Errorf("failed to claim job: %w", err)
	}

	s.logger.Debug().
		Str("job_id", job.ID).
		Str("type", string(job.Type)).
		Msg("Job claimed")
	return &job, nil
}

// ResetStuckJobs returns jobs stuck in running longer than the threshold
// back to queued with their start timestamp cleared, making them claimable
// again. This is the only path that moves a job backward.
func (s *JobStorage) ResetStuckJobs(ctx context.Context, threshold time.Duration) (int, error) {
	s.claimMu.Lock()
	defer s.claimMu.Unlock()

	cutoff := time.Now().UTC().Add(-threshold)

	var jobs []models.Job
	query := badgerhold.Where("Status").Eq(models.JobStatusRunning)
	if err := s.db.Store().Find(&jobs, query); err != nil {
		return 0, fmt.Errorf("failed to query running jobs: %w", err)
	}

	count := 0
	for i := range jobs {
		job := jobs[i]
		if job.StartedAt == nil || job.StartedAt.After(cutoff) {
			continue
		}
		job.Status = models.JobStatusQueued
		job.StartedAt = nil
		if err := s.db.Store().Upsert(job.ID, &job); err != nil {
			s.logger.Warn().Err(err).Str("job_id", job.ID).Msg("Failed to reset stuck job")
			continue
		}
		s.logger.Warn().
			Str("job_id", job.ID).
			Str("type", string(job.Type)).
			Msg("Stuck job returned to queue")
		count++
	}
	return count, nil
}
