package badger

import (
	"context"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/farewatch/internal/interfaces"
	"github.com/ternarybob/farewatch/internal/models"
	"github.com/timshannon/badgerhold/v4"
)

// FlexStorage implements the FlexStorage interface for Badger.
// Entries are keyed by the composite flex key, so a later scan of the
// same date-shifted itinerary overwrites the earlier one.
type FlexStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewFlexStorage creates a new FlexStorage instance
func NewFlexStorage(db *BadgerDB, logger arbor.ILogger) interfaces.FlexStorage {
	return &FlexStorage{
		db:     db,
		logger: logger,
	}
}

func (s *FlexStorage) UpsertEntry(ctx context.Context, entry *models.FlexPriceEntry) error {
	if entry.FlightID == "" {
		return fmt.Errorf("flight ID is required")
	}
	if entry.CheckedAt.IsZero() {
		entry.CheckedAt = time.Now().UTC()
	}
	entry.Key = models.FlexKey(entry.FlightID, entry.DepartureDate, entry.ReturnDate, entry.CabinClass, entry.Passengers)

	if err := s.db.Store().Upsert(entry.Key, entry); err != nil {
		return fmt.Errorf("failed to upsert flex entry: %w", err)
	}
	return nil
}

func (s *FlexStorage) GetEntries(ctx context.Context, flightID string, cabin models.CabinClass, passengers int) ([]*models.FlexPriceEntry, error) {
	query := badgerhold.Where("FlightID").Eq(flightID).Index("FlightID").
		And("CabinClass").Eq(cabin).
		And("Passengers").Eq(passengers).
		SortBy("DepartureDate")

	var entries []models.FlexPriceEntry
	if err := s.db.Store().Find(&entries, query); err != nil {
		return nil, fmt.Errorf("failed to get flex entries: %w", err)
	}

	result := make([]*models.FlexPriceEntry, len(entries))
	for i := range entries {
		result[i] = &entries[i]
	}
	return result, nil
}

// BestUnderMaxAge returns the cheapest successful entry newer than maxAge,
// letting callers answer "is there a cheaper nearby date" without a live
// re-scan. Failed probes (nil price) never win.
func (s *FlexStorage) BestUnderMaxAge(ctx context.Context, flightID string, cabin models.CabinClass, passengers int, maxAge time.Duration) (*models.FlexPriceEntry, error) {
	entries, err := s.GetEntries(ctx, flightID, cabin, passengers)
	if err != nil {
		return nil, err
	}

	cutoff := time.Now().UTC().Add(-maxAge)
	var best *models.FlexPriceEntry
	for i := range entries {
		e := entries[i]
		if e.Failed() || e.CheckedAt.Before(cutoff) {
			continue
		}
		if best == nil || *e.Price < *best.Price {
			best = e
		}
	}

	if best == nil {
		return nil, interfaces.ErrNotFound
	}
	return best, nil
}
