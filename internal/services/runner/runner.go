// -----------------------------------------------------------------------
// Runner - per-job-type work routines for local execution
// -----------------------------------------------------------------------

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
	"github.com/ternarybob/farewatch/internal/services/quotes"
)

// Runner executes claimed jobs. It is only ever invoked for jobs the
// store has already marked running, and it is driven by a single
// consumer, so handlers never run their side effects concurrently.
type Runner struct {
	storage  interfaces.StorageManager
	engine   *quotes.Engine
	fetcher  interfaces.ContextFetcher
	notifier interfaces.Notifier
	config   common.JobsConfig
	logger   arbor.ILogger

	// onJobCreated is invoked after the runner itself enqueues a job
	// (price-drop alerts). Wired to the executor's Kick at startup.
	onJobCreated func()

	// nextRunAt supplies the next scheduled check time for alert
	// emails. Wired to the scheduler at startup; nil when no
	// scheduler is running.
	nextRunAt func() *time.Time
}

// NewRunner creates a job runner.
func NewRunner(
	storage interfaces.StorageManager,
	engine *quotes.Engine,
	fetcher interfaces.ContextFetcher,
	notifier interfaces.Notifier,
	config common.JobsConfig,
	logger arbor.ILogger,
) *Runner {
	return &Runner{
		storage:  storage,
		engine:   engine,
		fetcher:  fetcher,
		notifier: notifier,
		config:   config,
		logger:   logger,
	}
}

// SetOnJobCreated registers the callback fired when the runner enqueues
// a follow-up job.
func (r *Runner) SetOnJobCreated(fn func()) {
	r.onJobCreated = fn
}

// SetNextRunAt registers the source of the next scheduled check time
// quoted in alert emails.
func (r *Runner) SetNextRunAt(fn func() *time.Time) {
	r.nextRunAt = fn
}

// Execute runs one claimed job to a terminal state. Handler errors are
// recorded on the job, never propagated; the runner loop must survive
// any single job failing.
func (r *Runner) Execute(ctx context.Context, job *models.Job) {
	r.logger.Info().
		Str("job_id", job.ID).
		Str("type", string(job.Type)).
		Str("flight_id", job.FlightID).
		Msg("Executing job")

	var result json.RawMessage
	var err error

	switch job.Type {
	case models.JobTypeCheckNow:
		result, err = r.handleCheckNow(ctx, job)
	case models.JobTypeCheckAll:
		result, err = r.handleCheckAll(ctx, job)
	case models.JobTypeFlexScan:
		result, err = r.handleFlexScan(ctx, job)
	case models.JobTypeContextRefresh:
		result, err = r.handleContextRefresh(ctx, job)
	case models.JobTypeSendEmail:
		result, err = r.handleSendEmail(ctx, job)
	default:
		err = fmt.Errorf("unknown job type %q", job.Type)
	}

	if err != nil {
		r.failJob(ctx, job.ID, result, err)
		return
	}
	r.completeJob(ctx, job.ID, result)
}

// handleCheckNow resolves one flight's quote and persists it.
// Progress is 0/1 before the quote and 1/1 after.
func (r *Runner) handleCheckNow(ctx context.Context, job *models.Job) (json.RawMessage, error) {
	flight, err := r.storage.FlightStorage().GetFlight(ctx, job.FlightID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve flight: %w", err)
	}

	quote, err := r.checkFlight(ctx, nil, flight)
	if err != nil {
		return nil, err
	}

	r.setProgress(ctx, job.ID, 1)

	result := quoteResultFromQuote(flight.ID, quote)
	raw, _ := json.Marshal(result)
	return raw, nil
}

// handleCheckAll iterates every active flight. One flight failing never
// aborts the batch; progress advances per flight regardless of outcome.
// The job itself only fails if the iteration cannot start.
func (r *Runner) handleCheckAll(ctx context.Context, job *models.Job) (json.RawMessage, error) {
	flights, err := r.storage.FlightStorage().ListFlights(ctx, true)
	if err != nil {
		return nil, fmt.Errorf("failed to list active flights: %w", err)
	}

	total := len(flights)
	if err := r.storage.JobStorage().UpdateJob(ctx, job.ID, &models.JobUpdate{ProgressTotal: &total}); err != nil {
		r.logger.Warn().Err(err).Str("job_id", job.ID).Msg("Failed to set progress total")
	}

	// One browser for the whole batch. A failed open is not fatal; each
	// quote then falls back to a per-call browser.
	session, err := r.engine.OpenScrapeSession(ctx)
	if err != nil {
		r.logger.Warn().Err(err).Msg("Failed to open shared scrape session, quotes will open per-call browsers")
		session = nil
	} else {
		defer session.Close()
	}

	batch := models.CheckAllResult{Flights: make([]models.QuoteResult, 0, total)}
	for i, flight := range flights {
		quote, err := r.checkFlight(ctx, session, flight)
		if err != nil {
			r.logger.Warn().
				Err(err).
				Str("flight_id", flight.ID).
				Str("route", flight.Route()).
				Msg("Flight check failed, continuing batch")
			batch.Flights = append(batch.Flights, models.QuoteResult{FlightID: flight.ID, Error: err.Error()})
		} else {
			batch.Flights = append(batch.Flights, *quoteResultFromQuote(flight.ID, quote))
		}
		r.setProgress(ctx, job.ID, i+1)
	}

	raw, _ := json.Marshal(batch)
	return raw, nil
}

// checkFlight runs one flight through the quote engine, persists the
// record, updates the flight's check status, and enqueues a price-drop
// alert when warranted.
func (r *Runner) checkFlight(ctx context.Context, session interfaces.ScrapeSession, flight *models.Flight) (*interfaces.Quote, error) {
	// The transient running status is visible while the quote resolves
	// and is always replaced with ok or error below.
	if err := r.storage.FlightStorage().UpdateCheckStatus(ctx, flight.ID, models.CheckStatusRunning, ""); err != nil {
		r.logger.Warn().Err(err).Str("flight_id", flight.ID).Msg("Failed to mark check running")
	}

	req := quotes.RequestForFlight(flight)

	var quote *interfaces.Quote
	var err error
	if session != nil {
		quote, err = r.engine.GetQuoteInSession(ctx, session, req)
	} else {
		quote, err = r.engine.GetQuote(ctx, req)
	}
	if err != nil {
		if statusErr := r.storage.FlightStorage().UpdateCheckStatus(ctx, flight.ID, models.CheckStatusError, err.Error()); statusErr != nil {
			r.logger.Warn().Err(statusErr).Str("flight_id", flight.ID).Msg("Failed to record check error")
		}
		return nil, err
	}

	record, err := quotes.RecordFromQuote(flight.ID, quote)
	if err != nil {
		return nil, err
	}

	// Read the movement before appending so "previous" means the price
	// this observation replaces.
	previous, prevErr := r.storage.PriceStorage().GetLatest(ctx, flight.ID)

	if err := r.storage.PriceStorage().AppendPrice(ctx, record); err != nil {
		return nil, fmt.Errorf("failed to persist price record: %w", err)
	}
	if err := r.storage.FlightStorage().UpdateCheckStatus(ctx, flight.ID, models.CheckStatusOK, ""); err != nil {
		r.logger.Warn().Err(err).Str("flight_id", flight.ID).Msg("Failed to update check status")
	}

	if prevErr == nil {
		r.maybeEnqueueAlert(ctx, flight, quote, previous)
	}

	return quote, nil
}

// maybeEnqueueAlert creates a send_email job when the price dropped past
// the configured threshold and the flight has a notification address.
func (r *Runner) maybeEnqueueAlert(ctx context.Context, flight *models.Flight, quote *interfaces.Quote, previous *models.PriceRecord) {
	if flight.NotifyEmail == "" || previous == nil || previous.Price <= 0 {
		return
	}

	dropPct := (previous.Price - quote.Price) / previous.Price * 100
	if dropPct < r.config.PriceDropThresholdPct {
		return
	}

	lowestPrice := quote.Price
	if lowest, err := r.storage.PriceStorage().GetLowest(ctx, flight.ID); err == nil && lowest.Price < lowestPrice {
		lowestPrice = lowest.Price
	}

	payload, _ := json.Marshal(models.SendEmailPayload{
		To:            flight.NotifyEmail,
		CurrentPrice:  quote.Price,
		PreviousPrice: previous.Price,
		LowestPrice:   lowestPrice,
		Currency:      quote.Currency,
		Airline:       quote.Airline,
	})

	job := models.NewJob(common.NewJobID(), models.JobTypeSendEmail, flight.ID, 1, payload)
	if err := r.storage.JobStorage().CreateJob(ctx, job); err != nil {
		r.logger.Error().Err(err).Str("flight_id", flight.ID).Msg("Failed to enqueue price drop alert")
		return
	}

	r.logger.Info().
		Str("flight_id", flight.ID).
		Float64("drop_pct", dropPct).
		Str("alert_job_id", job.ID).
		Msg("Price drop detected, alert enqueued")

	if r.onJobCreated != nil {
		r.onJobCreated()
	}
}

// handleFlexScan probes the +/- window around the tracked dates. Every
// probe writes a flex entry, failed probes included, so 2W+1 rows exist
// after completion regardless of individual failures.
func (r *Runner) handleFlexScan(ctx context.Context, job *models.Job) (json.RawMessage, error) {
	flight, err := r.storage.FlightStorage().GetFlight(ctx, job.FlightID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve flight: %w", err)
	}

	window := r.config.FlexWindowDays
	if len(job.Payload) > 0 {
		var payload models.FlexScanPayload
		if err := json.Unmarshal(job.Payload, &payload); err == nil && payload.WindowDays > 0 {
			window = payload.WindowDays
		}
	}
	if window <= 0 {
		window = 5
	}

	session, err := r.engine.OpenScrapeSession(ctx)
	if err != nil {
		r.logger.Warn().Err(err).Msg("Failed to open shared scrape session, probes will open per-call browsers")
		session = nil
	} else {
		defer session.Close()
	}

	scan := models.FlexScanResult{WindowDays: window}
	progress := 0
	for offset := -window; offset <= window; offset++ {
		probe := r.flexProbe(ctx, session, flight, offset)
		scan.Probes = append(scan.Probes, *probe)
		progress++
		r.setProgress(ctx, job.ID, progress)
	}

	raw, _ := json.Marshal(scan)
	return raw, nil
}

// flexProbe quotes one date-shifted itinerary and upserts its flex entry.
// A failed probe writes a nil-price entry tagged with the error source so
// "checked and failed" is distinguishable from "never checked".
func (r *Runner) flexProbe(ctx context.Context, session interfaces.ScrapeSession, flight *models.Flight, offset int) *models.FlexProbeResult {
	dep, ret, err := shiftedDates(flight, offset)
	if err != nil {
		// Unshiftable dates fail every probe identically
		probe := &models.FlexProbeResult{Source: models.SourceError, Error: err.Error()}
		return probe
	}

	entry := &models.FlexPriceEntry{
		FlightID:      flight.ID,
		DepartureDate: dep,
		ReturnDate:    ret,
		CabinClass:    flight.CabinClass,
		Passengers:    flight.Passengers,
		CheckedAt:     time.Now().UTC(),
	}
	probe := &models.FlexProbeResult{DepartureDate: dep, ReturnDate: ret}

	req := quotes.RequestForFlight(flight)
	req.DepartureDate = dep
	req.ReturnDate = ret

	var quote *interfaces.Quote
	if session != nil {
		quote, err = r.engine.GetQuoteInSession(ctx, session, req)
	} else {
		quote, err = r.engine.GetQuote(ctx, req)
	}

	if err != nil {
		entry.Source = models.SourceError
		probe.Source = models.SourceError
		probe.Error = err.Error()
		r.logger.Debug().
			Err(err).
			Str("flight_id", flight.ID).
			Str("departure", dep).
			Msg("Flex probe failed")
	} else {
		entry.Price = &quote.Price
		entry.Currency = quote.Currency
		entry.Airline = quote.Airline
		entry.Source = quote.Source
		probe.Price = &quote.Price
		probe.Currency = quote.Currency
		probe.Airline = quote.Airline
		probe.Source = quote.Source
	}

	if upsertErr := r.storage.FlexStorage().UpsertEntry(ctx, entry); upsertErr != nil {
		r.logger.Warn().Err(upsertErr).Str("flight_id", flight.ID).Msg("Failed to upsert flex entry")
	}

	return probe
}

// handleContextRefresh fetches travel context once; the job succeeds or
// fails atomically with that single call.
func (r *Runner) handleContextRefresh(ctx context.Context, job *models.Job) (json.RawMessage, error) {
	flight, err := r.storage.FlightStorage().GetFlight(ctx, job.FlightID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve flight: %w", err)
	}

	snapshot, err := r.fetcher.FetchTravelContext(ctx, flight)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch travel context: %w", err)
	}

	if err := r.storage.ContextStorage().SaveSnapshot(ctx, snapshot); err != nil {
		return nil, fmt.Errorf("failed to save context snapshot: %w", err)
	}

	r.setProgress(ctx, job.ID, 1)

	raw, _ := json.Marshal(models.ContextResult{
		Headlines:   snapshot.Headlines,
		HolidayNote: snapshot.HolidayNote,
		ExpiresAt:   snapshot.ExpiresAt.Format(time.RFC3339),
	})
	return raw, nil
}

// handleSendEmail delivers the price-drop alert described by the job
// payload, enriched with cached flex and context data when available.
func (r *Runner) handleSendEmail(ctx context.Context, job *models.Job) (json.RawMessage, error) {
	var payload models.SendEmailPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return nil, fmt.Errorf("invalid send_email payload: %w", err)
	}
	if payload.To == "" {
		return nil, fmt.Errorf("send_email payload has no recipient")
	}

	flight, err := r.storage.FlightStorage().GetFlight(ctx, job.FlightID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve flight: %w", err)
	}

	alert := interfaces.PriceDropAlert{
		To:            payload.To,
		FlightName:    flight.Name,
		Route:         flight.Route(),
		CurrentPrice:  payload.CurrentPrice,
		PreviousPrice: payload.PreviousPrice,
		LowestPrice:   payload.LowestPrice,
		Currency:      payload.Currency,
		Airline:       payload.Airline,
	}

	if best, err := r.storage.FlexStorage().BestUnderMaxAge(ctx, flight.ID, flight.CabinClass, flight.Passengers, 24*time.Hour); err == nil {
		if best.Price != nil && *best.Price < payload.CurrentPrice {
			alert.FlexSuggestion = fmt.Sprintf("Departing %s was $%.2f when last scanned", best.DepartureDate, *best.Price)
		}
	}
	if snapshot, err := r.storage.ContextStorage().LatestUnderMaxAge(ctx, flight.ID, 24*time.Hour); err == nil {
		alert.Headlines = snapshot.Headlines
		alert.HolidayNote = snapshot.HolidayNote
	}
	if r.nextRunAt != nil {
		alert.NextRunAt = r.nextRunAt()
	}

	if err := r.notifier.SendPriceDropAlert(ctx, alert); err != nil {
		return nil, err
	}

	r.setProgress(ctx, job.ID, 1)
	return nil, nil
}

func (r *Runner) setProgress(ctx context.Context, jobID string, current int) {
	if err := r.storage.JobStorage().UpdateJob(ctx, jobID, &models.JobUpdate{ProgressCurrent: &current}); err != nil {
		r.logger.Warn().Err(err).Str("job_id", jobID).Msg("Failed to update job progress")
	}
}

func (r *Runner) completeJob(ctx context.Context, jobID string, result json.RawMessage) {
	status := models.JobStatusSuccess
	update := &models.JobUpdate{Status: &status, Result: result}
	if err := r.storage.JobStorage().UpdateJob(ctx, jobID, update); err != nil {
		r.logger.Error().Err(err).Str("job_id", jobID).Msg("Failed to mark job success")
		return
	}
	r.logger.Info().Str("job_id", jobID).Msg("Job completed")
}

func (r *Runner) failJob(ctx context.Context, jobID string, result json.RawMessage, jobErr error) {
	status := models.JobStatusError
	errText := jobErr.Error()
	update := &models.JobUpdate{Status: &status, Error: &errText, Result: result}
	if err := r.storage.JobStorage().UpdateJob(ctx, jobID, update); err != nil {
		r.logger.Error().Err(err).Str("job_id", jobID).Msg("Failed to mark job error")
		return
	}
	r.logger.Warn().Str("job_id", jobID).Str("error", errText).Msg("Job failed")
}

// quoteResultFromQuote converts an engine quote to the result payload shape.
func quoteResultFromQuote(flightID string, quote *interfaces.Quote) *models.QuoteResult {
	return &models.QuoteResult{
		FlightID: flightID,
		Price:    &quote.Price,
		Currency: quote.Currency,
		Airline:  quote.Airline,
		Source:   quote.Source,
		Raw:      quote.Raw,
	}
}
