// -----------------------------------------------------------------------
// Agent bridge - applies a remote worker's reported results to the store
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
)

// Bridge reconciles remote agent completions against the job store. The
// agent self-reports results, so the bridge validates everything: a
// malformed or partial result marks the job but never corrupts price
// history, and only well-formed positive prices are persisted.
type Bridge struct {
	storage interfaces.StorageManager
	config  common.JobsConfig
	logger  arbor.ILogger

	// onJobCreated is invoked after the bridge enqueues a follow-up job
	// (price-drop alerts). Wired to the executor's Kick at startup.
	onJobCreated func()
}

// NewBridge creates an agent bridge.
func NewBridge(storage interfaces.StorageManager, config common.JobsConfig, logger arbor.ILogger) *Bridge {
	return &Bridge{
		storage: storage,
		config:  config,
		logger:  logger,
	}
}

// SetOnJobCreated registers the callback fired when the bridge enqueues
// a follow-up job.
func (b *Bridge) SetOnJobCreated(fn func()) {
	b.onJobCreated = fn
}

// ClaimNext claims the oldest queued job for the polling agent. Same
// atomicity contract as the local runner's claim.
func (b *Bridge) ClaimNext(ctx context.Context) (*models.Job, error) {
	return b.storage.JobStorage().ClaimNextJob(ctx)
}

// Complete applies an agent completion: records the terminal status and,
// on success, replays the type-specific side effects from the reported
// result.
func (b *Bridge) Complete(ctx context.Context, jobID string, completion *models.AgentCompletion) error {
	job, err := b.storage.JobStorage().GetJob(ctx, jobID)
	if err != nil {
		return err
	}
	if job.Status != models.JobStatusRunning {
		return fmt.Errorf("job %s is %s, not running", jobID, job.Status)
	}

	switch completion.Status {
	case string(models.JobStatusSuccess):
		// Side-effect failures downgrade the completion to error but
		// never undo already-committed history.
		if err := b.applySideEffects(ctx, job, completion.Result); err != nil {
			b.logger.Warn().
				Err(err).
				Str("job_id", jobID).
				Msg("Failed to apply remote result side effects")
			return b.finishJob(ctx, job, models.JobStatusError, completion, err.Error())
		}
		return b.finishJob(ctx, job, models.JobStatusSuccess, completion, "")
	case string(models.JobStatusError):
		// Agent gave up; mark failed without side effects
		return b.finishJob(ctx, job, models.JobStatusError, completion, completion.ErrorText)
	default:
		return fmt.Errorf("invalid completion status %q", completion.Status)
	}
}

func (b *Bridge) finishJob(ctx context.Context, job *models.Job, status models.JobStatus, completion *models.AgentCompletion, errText string) error {
	update := &models.JobUpdate{
		Status: &status,
		Result: completion.Result,
	}
	if errText != "" {
		update.Error = &errText
	}
	if completion.ProgressCurrent != nil {
		update.ProgressCurrent = completion.ProgressCurrent
	}

	if err := b.storage.JobStorage().UpdateJob(ctx, job.ID, update); err != nil {
		return fmt.Errorf("failed to finish job: %w", err)
	}

	b.logger.Info().
		Str("job_id", job.ID).
		Str("type", string(job.Type)).
		Str("status", string(status)).
		Msg("Remote job completion applied")
	return nil
}

func (b *Bridge) applySideEffects(ctx context.Context, job *models.Job, result json.RawMessage) error {
	switch job.Type {
	case models.JobTypeCheckNow:
		return b.applyQuoteResult(ctx, job.FlightID, result)
	case models.JobTypeCheckAll:
		return b.applyCheckAllResult(ctx, result)
	case models.JobTypeFlexScan:
		return b.applyFlexResult(ctx, job.FlightID, result)
	case models.JobTypeContextRefresh:
		return b.applyContextResult(ctx, job.FlightID, result)
	case models.JobTypeSendEmail:
		// Delivery happened agent-side; nothing to persist
		return nil
	}
	return fmt.Errorf("unknown job type %q", job.Type)
}

// applyQuoteResult persists one reported quote. An unusable price is a
// reconciliation failure, not a silent skip, because check_now has
// nothing else to show for itself.
func (b *Bridge) applyQuoteResult(ctx context.Context, flightID string, result json.RawMessage) error {
	var quote models.QuoteResult
	if err := json.Unmarshal(result, &quote); err != nil {
		return fmt.Errorf("malformed quote result: %w", err)
	}
	if !quote.Usable() {
		return fmt.Errorf("quote result has no usable price")
	}

	if err := b.persistReportedQuote(ctx, flightID, &quote); err != nil {
		return err
	}
	if err := b.storage.FlightStorage().UpdateCheckStatus(ctx, flightID, models.CheckStatusOK, ""); err != nil {
		b.logger.Warn().Err(err).Str("flight_id", flightID).Msg("Failed to update check status")
	}
	return nil
}

// applyCheckAllResult persists every usable per-flight result. Unusable
// entries update that flight's status and are skipped; the batch itself
// still reconciles.
func (b *Bridge) applyCheckAllResult(ctx context.Context, result json.RawMessage) error {
	var batch models.CheckAllResult
	if err := json.Unmarshal(result, &batch); err != nil {
		return fmt.Errorf("malformed check_all result: %w", err)
	}

	for i := range batch.Flights {
		entry := &batch.Flights[i]
		if entry.FlightID == "" {
			continue
		}
		if !entry.Usable() {
			errText := entry.Error
			if errText == "" {
				errText = "remote agent reported no usable price"
			}
			if err := b.storage.FlightStorage().UpdateCheckStatus(ctx, entry.FlightID, models.CheckStatusError, errText); err != nil {
				b.logger.Warn().Err(err).Str("flight_id", entry.FlightID).Msg("Failed to record check error")
			}
			continue
		}
		if err := b.persistReportedQuote(ctx, entry.FlightID, entry); err != nil {
			b.logger.Warn().Err(err).Str("flight_id", entry.FlightID).Msg("Failed to persist reported quote")
			continue
		}
		if err := b.storage.FlightStorage().UpdateCheckStatus(ctx, entry.FlightID, models.CheckStatusOK, ""); err != nil {
			b.logger.Warn().Err(err).Str("flight_id", entry.FlightID).Msg("Failed to update check status")
		}
	}
	return nil
}

func (b *Bridge) persistReportedQuote(ctx context.Context, flightID string, quote *models.QuoteResult) error {
	source := quote.Source
	if source == "" {
		source = models.SourceAgent
	}
	record := &models.PriceRecord{
		FlightID:   flightID,
		Price:      *quote.Price,
		Currency:   quote.Currency,
		Airline:    quote.Airline,
		Stops:      quote.Stops,
		Duration:   quote.Duration,
		DepartTime: quote.DepartTime,
		ArriveTime: quote.ArriveTime,
		Source:     source,
		RawPayload: quote.Raw,
		CheckedAt:  time.Now().UTC(),
	}

	// Read the movement before appending so "previous" means the price
	// this observation replaces.
	previous, prevErr := b.storage.PriceStorage().GetLatest(ctx, flightID)

	if err := b.storage.PriceStorage().AppendPrice(ctx, record); err != nil {
		return err
	}

	if prevErr == nil {
		b.maybeEnqueueAlert(ctx, flightID, record, previous)
	}
	return nil
}

// maybeEnqueueAlert creates a send_email job when a reported price
// dropped past the configured threshold and the flight has a
// notification address. Remote completions raise the same alerts
// locally-run checks do.
func (b *Bridge) maybeEnqueueAlert(ctx context.Context, flightID string, record *models.PriceRecord, previous *models.PriceRecord) {
	if previous == nil || previous.Price <= 0 {
		return
	}

	dropPct := (previous.Price - record.Price) / previous.Price * 100
	if dropPct < b.config.PriceDropThresholdPct {
		return
	}

	flight, err := b.storage.FlightStorage().GetFlight(ctx, flightID)
	if err != nil || flight.NotifyEmail == "" {
		return
	}

	lowestPrice := record.Price
	if lowest, err := b.storage.PriceStorage().GetLowest(ctx, flightID); err == nil && lowest.Price < lowestPrice {
		lowestPrice = lowest.Price
	}

	payload, _ := json.Marshal(models.SendEmailPayload{
		To:            flight.NotifyEmail,
		CurrentPrice:  record.Price,
		PreviousPrice: previous.Price,
		LowestPrice:   lowestPrice,
		Currency:      record.Currency,
		Airline:       record.Airline,
	})

	job := models.NewJob(common.NewJobID(), models.JobTypeSendEmail, flightID, 1, payload)
	if err := b.storage.JobStorage().CreateJob(ctx, job); err != nil {
		b.logger.Error().Err(err).Str("flight_id", flightID).Msg("Failed to enqueue price drop alert")
		return
	}

	b.logger.Info().
		Str("flight_id", flightID).
		Float64("drop_pct", dropPct).
		Str("alert_job_id", job.ID).
		Msg("Price drop detected from remote completion, alert enqueued")

	if b.onJobCreated != nil {
		b.onJobCreated()
	}
}

// applyFlexResult upserts the reported probes, preserving the failed-probe
// convention: probes without a usable price become nil-price entries
// tagged with the error source.
func (b *Bridge) applyFlexResult(ctx context.Context, flightID string, result json.RawMessage) error {
	var scan models.FlexScanResult
	if err := json.Unmarshal(result, &scan); err != nil {
		return fmt.Errorf("malformed flex_scan result: %w", err)
	}

	flight, err := b.storage.FlightStorage().GetFlight(ctx, flightID)
	if err != nil {
		return fmt.Errorf("failed to resolve flight: %w", err)
	}

	for i := range scan.Probes {
		probe := &scan.Probes[i]
		if probe.DepartureDate == "" {
			continue
		}

		entry := &models.FlexPriceEntry{
			FlightID:      flightID,
			DepartureDate: probe.DepartureDate,
			ReturnDate:    probe.ReturnDate,
			CabinClass:    flight.CabinClass,
			Passengers:    flight.Passengers,
			Currency:      probe.Currency,
			Airline:       probe.Airline,
			CheckedAt:     time.Now().UTC(),
		}
		if probe.Price != nil && *probe.Price > 0 {
			entry.Price = probe.Price
			entry.Source = probe.Source
			if entry.Source == "" {
				entry.Source = models.SourceAgent
			}
		} else {
			entry.Source = models.SourceError
		}

		if err := b.storage.FlexStorage().UpsertEntry(ctx, entry); err != nil {
			b.logger.Warn().Err(err).Str("flight_id", flightID).Msg("Failed to upsert reported flex entry")
		}
	}
	return nil
}

func (b *Bridge) applyContextResult(ctx context.Context, flightID string, result json.RawMessage) error {
	var reported models.ContextResult
	if err := json.Unmarshal(result, &reported); err != nil {
		return fmt.Errorf("malformed context result: %w", err)
	}
	if len(reported.Headlines) == 0 && reported.HolidayNote == "" {
		return fmt.Errorf("context result is empty")
	}

	now := time.Now().UTC()
	snapshot := &models.ContextSnapshot{
		FlightID:    flightID,
		Headlines:   reported.Headlines,
		HolidayNote: reported.HolidayNote,
		FetchedAt:   now,
		ExpiresAt:   now.Add(24 * time.Hour),
	}
	if reported.ExpiresAt != "" {
		if expires, err := time.Parse(time.RFC3339, reported.ExpiresAt); err == nil {
			snapshot.ExpiresAt = expires
		}
	}

	return b.storage.ContextStorage().SaveSnapshot(ctx, snapshot)
}
