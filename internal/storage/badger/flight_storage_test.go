package badger

import (
	"context"
	"testing"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/farewatch/internal/interfaces"
	"github.com/ternarybob/farewatch/internal/models"
)

func testFlight(id string) *models.Flight {
	f := &models.Flight{
		ID:            id,
		Origin:        "SYD",
		Destination:   "NRT",
		DepartureDate: "2026-10-10",
		ReturnDate:    "2026-10-17",
		Passengers:    2,
		CabinClass:    models.CabinEconomy,
		IsActive:      true,
	}
	f.Normalize()
	return f
}

func TestFlightLifecycle(t *testing.T) {
	storage := NewFlightStorage(newTestDB(t), arbor.NewLogger())
	ctx := context.Background()

	flight := testFlight("flight-life-1")
	if err := storage.SaveFlight(ctx, flight); err != nil {
		t.Fatalf("Failed to save flight: %v", err)
	}
	if flight.CreatedAt.IsZero() {
		t.Error("Expected CreatedAt to be set on save")
	}

	stored, err := storage.GetFlight(ctx, flight.ID)
	if err != nil {
		t.Fatalf("Failed to get flight: %v", err)
	}
	if stored.Origin != "SYD" || stored.Destination != "NRT" {
		t.Errorf("Unexpected route %s -> %s", stored.Origin, stored.Destination)
	}

	if err := storage.UpdateCheckStatus(ctx, flight.ID, models.CheckStatusError, "scrape timed out"); err != nil {
		t.Fatalf("Failed to update check status: %v", err)
	}
	stored, err = storage.GetFlight(ctx, flight.ID)
	if err != nil {
		t.Fatalf("Failed to get flight: %v", err)
	}
	if stored.LastCheckStatus != models.CheckStatusError {
		t.Errorf("Expected check status error, got %s", stored.LastCheckStatus)
	}
	if stored.LastCheckError != "scrape timed out" {
		t.Errorf("Unexpected check error %q", stored.LastCheckError)
	}
	if stored.LastCheckedAt == nil {
		t.Error("Expected LastCheckedAt to be set")
	}
}

func TestDeactivateFlightKeepsRecord(t *testing.T) {
	storage := NewFlightStorage(newTestDB(t), arbor.NewLogger())
	ctx := context.Background()

	active := testFlight("flight-active-1")
	retired := testFlight("flight-retired-1")
	retired.CreatedAt = time.Now().UTC().Add(-time.Minute)
	for _, f := range []*models.Flight{active, retired} {
		if err := storage.SaveFlight(ctx, f); err != nil {
			t.Fatalf("Failed to save flight: %v", err)
		}
	}

	if err := storage.DeactivateFlight(ctx, retired.ID); err != nil {
		t.Fatalf("Failed to deactivate flight: %v", err)
	}

	// Deactivation is soft; the record survives.
	stored, err := storage.GetFlight(ctx, retired.ID)
	if err != nil {
		t.Fatalf("Failed to get deactivated flight: %v", err)
	}
	if stored.IsActive {
		t.Error("Expected flight to be inactive")
	}

	activeOnly, err := storage.ListFlights(ctx, true)
	if err != nil {
		t.Fatalf("Failed to list flights: %v", err)
	}
	if len(activeOnly) != 1 || activeOnly[0].ID != active.ID {
		t.Errorf("Expected only the active flight, got %d flights", len(activeOnly))
	}

	all, err := storage.ListFlights(ctx, false)
	if err != nil {
		t.Fatalf("Failed to list flights: %v", err)
	}
	if len(all) != 2 {
		t.Errorf("Expected 2 flights in full listing, got %d", len(all))
	}
}

func TestGetFlightNotFound(t *testing.T) {
	storage := NewFlightStorage(newTestDB(t), arbor.NewLogger())
	if _, err := storage.GetFlight(context.Background(), "missing"); err != interfaces.ErrNotFound {
		t.Fatalf("Expected ErrNotFound, got %v", err)
	}
}
