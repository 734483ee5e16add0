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

// ContextStorage implements the ContextStorage interface for Badger
type ContextStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewContextStorage creates a new ContextStorage instance
func NewContextStorage(db *BadgerDB, logger arbor.ILogger) interfaces.ContextStorage {
	return &ContextStorage{
		db:     db,
		logger: logger,
	}
}

func (s *ContextStorage) SaveSnapshot(ctx context.Context, snapshot *models.ContextSnapshot) error {
	if snapshot.FlightID == "" {
		return fmt.Errorf("flight ID is required")
	}
	if snapshot.FetchedAt.IsZero() {
		snapshot.FetchedAt = time.Now().UTC()
	}

	if err := s.db.Store().Insert(badgerhold.NextSequence(), snapshot); err != nil {
		return fmt.Errorf("failed to save context snapshot: %w", err)
	}
	return nil
}

// LatestUnderMaxAge returns the newest snapshot fetched within maxAge,
// or ErrNotFound when the cache is effectively empty for the caller.
func (s *ContextStorage) LatestUnderMaxAge(ctx context.Context, flightID string, maxAge time.Duration) (*models.ContextSnapshot, error) {
	cutoff := time.Now().UTC().Add(-maxAge)

	var snapshots []models.ContextSnapshot
	query := badgerhold.Where("FlightID").Eq(flightID).Index("FlightID").
		And("FetchedAt").Ge(cutoff).
		SortBy("FetchedAt").Reverse().Limit(1)
	if err := s.db.Store().Find(&snapshots, query); err != nil {
		return nil, fmt.Errorf("failed to query context snapshots: %w", err)
	}
	if len(snapshots) == 0 {
		return nil, interfaces.ErrNotFound
	}
	return &snapshots[0], nil
}
