package interfaces

import (
	"context"
	"errors"
	"time"

	"github.com/ternarybob/farewatch/internal/models"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("record not found")

// ErrNoQueuedJobs is returned by ClaimNextJob when nothing is pending.
var ErrNoQueuedJobs = errors.New("no queued jobs")

// FlightStorage persists tracked flights.
type FlightStorage interface {
	SaveFlight(ctx context.Context, flight *models.Flight) error
	GetFlight(ctx context.Context, flightID string) (*models.Flight, error)
	ListFlights(ctx context.Context, activeOnly bool) ([]*models.Flight, error)
	UpdateCheckStatus(ctx context.Context, flightID string, status models.CheckStatus, errorMsg string) error
	DeactivateFlight(ctx context.Context, flightID string) error
}

// PriceStorage persists append-only price observations and derives the
// aggregate views consumed by notification and analysis.
type PriceStorage interface {
	AppendPrice(ctx context.Context, record *models.PriceRecord) error
	GetHistory(ctx context.Context, flightID string, withinDays int) ([]*models.PriceRecord, error)
	GetLatest(ctx context.Context, flightID string) (*models.PriceRecord, error)
	GetPrevious(ctx context.Context, flightID string) (*models.PriceRecord, error)
	GetLowest(ctx context.Context, flightID string) (*models.PriceRecord, error)
	GetHighest(ctx context.Context, flightID string) (*models.PriceRecord, error)
}

// FlexStorage caches date-shifted quotes with upsert semantics per
// (flight, departure date, return date, cabin, passengers) key.
type FlexStorage interface {
	UpsertEntry(ctx context.Context, entry *models.FlexPriceEntry) error
	GetEntries(ctx context.Context, flightID string, cabin models.CabinClass, passengers int) ([]*models.FlexPriceEntry, error)
	BestUnderMaxAge(ctx context.Context, flightID string, cabin models.CabinClass, passengers int, maxAge time.Duration) (*models.FlexPriceEntry, error)
}

// ContextStorage caches travel context snapshots.
type ContextStorage interface {
	SaveSnapshot(ctx context.Context, snapshot *models.ContextSnapshot) error
	LatestUnderMaxAge(ctx context.Context, flightID string, maxAge time.Duration) (*models.ContextSnapshot, error)
}

// JobListOptions filters job listings.
type JobListOptions struct {
	Status models.JobStatus
	Type   models.JobType
	Limit  int
}

// JobStorage persists jobs and implements the claim contract. ClaimNextJob
// must be atomic: concurrent callers never receive the same job.
type JobStorage interface {
	CreateJob(ctx context.Context, job *models.Job) error
	GetJob(ctx context.Context, jobID string) (*models.Job, error)
	UpdateJob(ctx context.Context, jobID string, update *models.JobUpdate) error
	ListJobs(ctx context.Context, opts *JobListOptions) ([]*models.Job, error)
	CountJobsByStatus(ctx context.Context, status models.JobStatus) (int, error)
	ClaimNextJob(ctx context.Context) (*models.Job, error)
	ResetStuckJobs(ctx context.Context, threshold time.Duration) (int, error)
}

// StorageManager aggregates the per-entity storages over one database.
type StorageManager interface {
	FlightStorage() FlightStorage
	PriceStorage() PriceStorage
	FlexStorage() FlexStorage
	ContextStorage() ContextStorage
	JobStorage() JobStorage
	Close() error
}
