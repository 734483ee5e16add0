package interfaces

import (
	"context"
	"time"

	"github.com/ternarybob/farewatch/internal/models"
)

// ContextFetcher retrieves non-price travel signals for a flight.
type ContextFetcher interface {
	FetchTravelContext(ctx context.Context, flight *models.Flight) (*models.ContextSnapshot, error)
}

// PriceDropAlert is the content of a notification email.
type PriceDropAlert struct {
	To             string
	FlightName     string
	Route          string
	CurrentPrice   float64
	PreviousPrice  float64
	LowestPrice    float64
	Currency       string
	Airline        string
	FlexSuggestion string
	Headlines      []string
	HolidayNote    string
	NextRunAt      *time.Time
}

// Notifier delivers price-drop alerts.
type Notifier interface {
	SendPriceDropAlert(ctx context.Context, alert PriceDropAlert) error
}

// JobExecutor is the strategy the job service hands created jobs to.
// The local runner claims and executes in-process; the remote-delegating
// executor leaves jobs queued for the polling agent.
type JobExecutor interface {
	// Kick signals that a job was created and may be claimable.
	Kick()
	Start() error
	Stop()
}

// SchedulerService issues the periodic triggers that enqueue jobs.
type SchedulerService interface {
	Start() error
	Stop() error
	IsRunning() bool
	TriggerCheckAllNow() (string, error)
	// NextCheckTime reports when the next scheduled check_all fires,
	// or nil when the scheduler is not running.
	NextCheckTime() *time.Time
}
