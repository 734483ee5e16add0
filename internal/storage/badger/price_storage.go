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

// PriceStorage implements the PriceStorage interface for Badger.
// Price rows are append-only; ordering is always by CheckedAt, never by
// the auto-assigned sequence key.
type PriceStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewPriceStorage creates a new PriceStorage instance
func NewPriceStorage(db *BadgerDB, logger arbor.ILogger) interfaces.PriceStorage {
	return &PriceStorage{
		db:     db,
		logger: logger,
	}
}

func (s *PriceStorage) AppendPrice(ctx context.Context, record *models.PriceRecord) error {
	if err := record.Validate(); err != nil {
		return fmt.Errorf("invalid price record: %w", err)
	}
	if record.CheckedAt.IsZero() {
		record.CheckedAt = time.Now().UTC()
	}

	if err := s.db.Store().Insert(badgerhold.NextSequence(), record); err != nil {
		return fmt.Errorf("failed to append price record: %w", err)
	}
	return nil
}

func (s *PriceStorage) GetHistory(ctx context.Context, flightID string, withinDays int) ([]*models.PriceRecord, error) {
	query := badgerhold.Where("FlightID").Eq(flightID).Index("FlightID")
	if withinDays > 0 {
		cutoff := time.Now().UTC().AddDate(0, 0, -withinDays)
		query = query.And("CheckedAt").Ge(cutoff)
	}
	query = query.SortBy("CheckedAt").Reverse()

	var records []models.PriceRecord
	if err := s.db.Store().Find(&records, query); err != nil {
		return nil, fmt.Errorf("failed to get price history: %w", err)
	}

	result := make([]*models.PriceRecord, len(records))
	for i := range records {
		result[i] = &records[i]
	}
	return result, nil
}

// GetLatest returns the record with the maximum CheckedAt for the flight.
func (s *PriceStorage) GetLatest(ctx context.Context, flightID string) (*models.PriceRecord, error) {
	return s.nthNewest(flightID, 0)
}

// GetPrevious returns the second-newest record for the flight.
func (s *PriceStorage) GetPrevious(ctx context.Context, flightID string) (*models.PriceRecord, error) {
	return s.nthNewest(flightID, 1)
}

func (s *PriceStorage) nthNewest(flightID string, n int) (*models.PriceRecord, error) {
	var records []models.PriceRecord
	query := badgerhold.Where("FlightID").Eq(flightID).Index("FlightID").
		SortBy("CheckedAt").Reverse().Skip(n).Limit(1)
	if err := s.db.Store().Find(&records, query); err != nil {
		return nil, fmt.Errorf("failed to query price records: %w", err)
	}
	if len(records) == 0 {
		return nil, interfaces.ErrNotFound
	}
	return &records[0], nil
}

func (s *PriceStorage) GetLowest(ctx context.Context, flightID string) (*models.PriceRecord, error) {
	return s.extreme(flightID, false)
}

func (s *PriceStorage) GetHighest(ctx context.Context, flightID string) (*models.PriceRecord, error) {
	return s.extreme(flightID, true)
}

func (s *PriceStorage) extreme(flightID string, highest bool) (*models.PriceRecord, error) {
	query := badgerhold.Where("FlightID").Eq(flightID).Index("FlightID").SortBy("Price")
	if highest {
		query = query.Reverse()
	}
	query = query.Limit(1)

	var records []models.PriceRecord
	if err := s.db.Store().Find(&records, query); err != nil {
		return nil, fmt.Errorf("failed to query price records: %w", err)
	}
	if len(records) == 0 {
		return nil, interfaces.ErrNotFound
	}
	return &records[0], nil
}
