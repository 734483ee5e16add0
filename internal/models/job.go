// -----------------------------------------------------------------------
// Job - Durable unit of asynchronous work tracked through a state machine
// -----------------------------------------------------------------------

package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// JobType identifies the work routine a job executes.
type JobType string

const (
	JobTypeCheckNow       JobType = "check_now"
	JobTypeCheckAll       JobType = "check_all"
	JobTypeFlexScan       JobType = "flex_scan"
	JobTypeContextRefresh JobType = "context_refresh"
	JobTypeSendEmail      JobType = "send_email"
)

// IsValid reports whether the job type is known.
func (t JobType) IsValid() bool {
	switch t {
	case JobTypeCheckNow, JobTypeCheckAll, JobTypeFlexScan, JobTypeContextRefresh, JobTypeSendEmail:
		return true
	}
	return false
}

// JobStatus is the job state machine:
//
//	queued -> running -> {success, error}
//
// running -> queued is permitted only through the stuck-job reset, which
// indicates an executor abandoned the job. success and error are terminal;
// retrying means creating a new job.
type JobStatus string

const (
	JobStatusQueued  JobStatus = "queued"
	JobStatusRunning JobStatus = "running"
	JobStatusSuccess JobStatus = "success"
	JobStatusError   JobStatus = "error"
)

// IsTerminal reports whether the status is final.
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusSuccess || s == JobStatusError
}

// CanTransitionTo enforces the state machine. The stuck-reset path
// (running -> queued) is intentionally included; it is the only backward
// transition the system allows.
func (s JobStatus) CanTransitionTo(next JobStatus) bool {
	switch s {
	case JobStatusQueued:
		return next == JobStatusRunning
	case JobStatusRunning:
		return next == JobStatusSuccess || next == JobStatusError || next == JobStatusQueued
	}
	return false
}

// Job is a durable record of asynchronous work. Once claimed it is owned
// by exactly one executor until it reaches a terminal state or the
// stuck-job sweep returns it to the queue.
type Job struct {
	ID              string          `json:"id" badgerhold:"key"`
	Type            JobType         `json:"type"`
	FlightID        string          `json:"flight_id,omitempty"`
	Status          JobStatus       `json:"status"`
	ProgressCurrent int             `json:"progress_current"`
	ProgressTotal   int             `json:"progress_total"`
	Payload         json.RawMessage `json:"payload,omitempty"`
	Result          json.RawMessage `json:"result,omitempty"`
	Error           string          `json:"error,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	StartedAt       *time.Time      `json:"started_at,omitempty"`
	FinishedAt      *time.Time      `json:"finished_at,omitempty"`
}

// NewJob creates a queued job.
func NewJob(id string, jobType JobType, flightID string, progressTotal int, payload json.RawMessage) *Job {
	return &Job{
		ID:            id,
		Type:          jobType,
		FlightID:      flightID,
		Status:        JobStatusQueued,
		ProgressTotal: progressTotal,
		Payload:       payload,
		CreatedAt:     time.Now().UTC(),
	}
}

// Validate checks required fields.
func (j *Job) Validate() error {
	if j.ID == "" {
		return fmt.Errorf("job ID is required")
	}
	if !j.Type.IsValid() {
		return fmt.Errorf("unknown job type %q", j.Type)
	}
	if j.ProgressTotal < 0 {
		return fmt.Errorf("progress total cannot be negative")
	}
	return nil
}

// JobUpdate is a whitelist-only partial update applied by UpdateJob.
// Nil fields are left untouched; an update with no recognized fields
// is a no-op.
type JobUpdate struct {
	Status          *JobStatus
	ProgressCurrent *int
	ProgressTotal   *int
	Result          json.RawMessage
	Error           *string
	StartedAt       *time.Time
	FinishedAt      *time.Time
	ClearStartedAt  bool // Stuck-reset path: clear the claim timestamp
}

// IsEmpty reports whether the update carries no recognized fields.
func (u *JobUpdate) IsEmpty() bool {
	return u.Status == nil && u.ProgressCurrent == nil && u.ProgressTotal == nil &&
		u.Result == nil && u.Error == nil && u.StartedAt == nil &&
		u.FinishedAt == nil && !u.ClearStartedAt
}
