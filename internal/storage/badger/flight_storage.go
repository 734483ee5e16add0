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

// FlightStorage implements the FlightStorage interface for Badger
type FlightStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewFlightStorage creates a new FlightStorage instance
func NewFlightStorage(db *BadgerDB, logger arbor.ILogger) interfaces.FlightStorage {
	return &FlightStorage{
		db:     db,
		logger: logger,
	}
}

func (s *FlightStorage) SaveFlight(ctx context.Context, flight *models.Flight) error {
	if flight.ID == "" {
		return fmt.Errorf("flight ID is required")
	}

	now := time.Now().UTC()
	if flight.CreatedAt.IsZero() {
		flight.CreatedAt = now
	}
	flight.UpdatedAt = now

	if err := s.db.Store().Upsert(flight.ID, flight); err != nil {
		return fmt.Errorf("failed to save flight: %w", err)
	}
	return nil
}

func (s *FlightStorage) GetFlight(ctx context.Context, flightID string) (*models.Flight, error) {
	var flight models.Flight
	if err := s.db.Store().Get(flightID, &flight); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, interfaces.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get flight: %w", err)
	}
	return &flight, nil
}

func (s *FlightStorage) ListFlights(ctx context.Context, activeOnly bool) ([]*models.Flight, error) {
	query := badgerhold.Where("ID").Ne("")
	if activeOnly {
		query = badgerhold.Where("IsActive").Eq(true)
	}
	query = query.SortBy("CreatedAt")

	var flights []models.Flight
	if err := s.db.Store().Find(&flights, query); err != nil {
		return nil, fmt.Errorf("failed to list flights: %w", err)
	}

	result := make([]*models.Flight, len(flights))
	for i := range flights {
		result[i] = &flights[i]
	}
	return result, nil
}

func (s *FlightStorage) UpdateCheckStatus(ctx context.Context, flightID string, status models.CheckStatus, errorMsg string) error {
	var flight models.Flight
	if err := s.db.Store().Get(flightID, &flight); err != nil {
		if err == badgerhold.ErrNotFound {
			return interfaces.ErrNotFound
		}
		return fmt.Errorf("failed to get flight: %w", err)
	}

	now := time.Now().UTC()
	flight.LastCheckStatus = status
	flight.LastCheckError = errorMsg
	flight.LastCheckedAt = &now
	flight.UpdatedAt = now

	if err := s.db.Store().Upsert(flight.ID, &flight); err != nil {
		return fmt.Errorf("failed to update flight check status: %w", err)
	}
	return nil
}

func (s *FlightStorage) DeactivateFlight(ctx context.Context, flightID string) error {
	var flight models.Flight
	if err := s.db.Store().Get(flightID, &flight); err != nil {
		if err == badgerhold.ErrNotFound {
			return interfaces.ErrNotFound
		}
		return fmt.Errorf("failed to get flight: %w", err)
	}

	flight.IsActive = false
	flight.UpdatedAt = time.Now().UTC()

	if err := s.db.Store().Upsert(flight.ID, &flight); err != nil {
		return fmt.Errorf("failed to deactivate flight: %w", err)
	}

	s.logger.Info().Str("flight_id", flightID).Msg("Flight deactivated")
	return nil
}
