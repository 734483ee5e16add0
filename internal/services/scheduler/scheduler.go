// -----------------------------------------------------------------------
// Scheduler - periodic triggers that enqueue jobs
// -----------------------------------------------------------------------

package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/farewatch/internal/common"
	"github.com/ternarybob/farewatch/internal/interfaces"
	"github.com/ternarybob/farewatch/internal/models"
	"github.com/ternarybob/farewatch/internal/services/runner"
)

// Service issues the periodic triggers: the check_all sweep, per-flight
// context refreshes, and the stuck-job recovery sweep. It only creates
// jobs; execution belongs to the configured executor or the remote agent.
type Service struct {
	jobService *runner.JobService
	flights    interfaces.FlightStorage
	config     common.SchedulerConfig
	cron       *cron.Cron
	logger     arbor.ILogger

	mu          sync.Mutex
	running     bool
	checkEntry  cron.EntryID
	sweepTicker *time.Ticker
	sweepStop   chan struct{}
}

// NewService creates a scheduler. Cron expressions use the 6-field form
// with a seconds column.
func NewService(jobService *runner.JobService, flights interfaces.FlightStorage, config common.SchedulerConfig, logger arbor.ILogger) interfaces.SchedulerService {
	return &Service{
		jobService: jobService,
		flights:    flights,
		config:     config,
		cron:       cron.New(cron.WithSeconds()),
		logger:     logger,
	}
}

// Start registers the cron entries and launches the stuck-job sweep.
func (s *Service) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return fmt.Errorf("scheduler already running")
	}
	if !s.config.Enabled {
		s.logger.Info().Msg("Scheduler disabled by configuration")
		return nil
	}

	checkSchedule := s.config.CheckSchedule
	if checkSchedule == "" {
		checkSchedule = "0 0 */6 * * *" // Every 6 hours
	}
	entryID, err := s.cron.AddFunc(checkSchedule, s.enqueueCheckAll)
	if err != nil {
		return fmt.Errorf("failed to register check schedule: %w", err)
	}
	s.checkEntry = entryID

	contextSchedule := s.config.ContextSchedule
	if contextSchedule == "" {
		contextSchedule = "0 0 5 * * *" // Daily at 05:00
	}
	if _, err := s.cron.AddFunc(contextSchedule, s.enqueueContextRefreshes); err != nil {
		return fmt.Errorf("failed to register context schedule: %w", err)
	}

	s.cron.Start()
	s.startStuckSweep()
	s.running = true

	s.logger.Info().
		Str("check_schedule", checkSchedule).
		Str("context_schedule", contextSchedule).
		Msg("Scheduler started")
	return nil
}

// Stop halts the cron entries and the sweep loop.
func (s *Service) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return nil
	}

	ctx := s.cron.Stop()
	<-ctx.Done()

	if s.sweepStop != nil {
		close(s.sweepStop)
		s.sweepTicker.Stop()
		s.sweepStop = nil
	}

	s.running = false
	s.logger.Info().Msg("Scheduler stopped")
	return nil
}

// IsRunning reports whether the scheduler is active.
func (s *Service) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// NextCheckTime reports when the next scheduled check_all fires, or nil
// when the scheduler is not running.
func (s *Service) NextCheckTime() *time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return nil
	}
	next := s.cron.Entry(s.checkEntry).Next
	if next.IsZero() {
		return nil
	}
	return &next
}

// TriggerCheckAllNow enqueues an immediate check_all outside the
// schedule and returns its job ID.
func (s *Service) TriggerCheckAllNow() (string, error) {
	return s.jobService.CreateAndRunJob(context.Background(), models.JobTypeCheckAll, "", nil)
}

func (s *Service) enqueueCheckAll() {
	jobID, err := s.jobService.CreateAndRunJob(context.Background(), models.JobTypeCheckAll, "", nil)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to enqueue scheduled check_all")
		return
	}
	s.logger.Info().Str("job_id", jobID).Msg("Scheduled check_all enqueued")
}

// enqueueContextRefreshes creates one context_refresh per active flight.
func (s *Service) enqueueContextRefreshes() {
	ctx := context.Background()
	flights, err := s.flights.ListFlights(ctx, true)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to list flights for context refresh")
		return
	}

	for _, flight := range flights {
		jobID, err := s.jobService.CreateAndRunJob(ctx, models.JobTypeContextRefresh, flight.ID, nil)
		if err != nil {
			s.logger.Warn().Err(err).Str("flight_id", flight.ID).Msg("Failed to enqueue context refresh")
			continue
		}
		s.logger.Debug().
			Str("job_id", jobID).
			Str("flight_id", flight.ID).
			Msg("Context refresh enqueued")
	}
}

// startStuckSweep launches the periodic stuck-job recovery loop.
// Must be called with the mutex held.
func (s *Service) startStuckSweep() {
	interval := 5 * time.Minute
	if s.config.StuckSweepInterval != "" {
		if parsed, err := time.ParseDuration(s.config.StuckSweepInterval); err == nil && parsed > 0 {
			interval = parsed
		} else {
			s.logger.Warn().
				Str("stuck_sweep_interval", s.config.StuckSweepInterval).
				Msg("Invalid sweep interval, using 5m")
		}
	}

	s.sweepTicker = time.NewTicker(interval)
	s.sweepStop = make(chan struct{})

	go func(ticker *time.Ticker, stop chan struct{}) {
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				count, err := s.jobService.ResetStuckJobs(context.Background())
				if err != nil {
					s.logger.Error().Err(err).Msg("Stuck job sweep failed")
					continue
				}
				if count > 0 {
					s.logger.Warn().Int("count", count).Msg("Stuck jobs returned to queue")
				}
			}
		}
	}(s.sweepTicker, s.sweepStop)

	s.logger.Info().Str("interval", interval.String()).Msg("Stuck job sweep started")
}
