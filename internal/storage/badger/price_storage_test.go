package badger

import (
	"context"
	"testing"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/farewatch/internal/interfaces"
	"github.com/ternarybob/farewatch/internal/models"
)

func appendTestPrice(t *testing.T, storage interfaces.PriceStorage, flightID string, price float64, age time.Duration) {
	t.Helper()
	record := &models.PriceRecord{
		FlightID:  flightID,
		Price:     price,
		Currency:  "AUD",
		Source:    models.SourceAPI,
		CheckedAt: time.Now().UTC().Add(-age),
	}
	if err := storage.AppendPrice(context.Background(), record); err != nil {
		t.Fatalf("Failed to append price: %v", err)
	}
}

func TestPriceHistoryViews(t *testing.T) {
	storage := NewPriceStorage(newTestDB(t), arbor.NewLogger())
	ctx := context.Background()

	appendTestPrice(t, storage, "flight-1", 900, 48*time.Hour)
	appendTestPrice(t, storage, "flight-1", 650, 24*time.Hour)
	appendTestPrice(t, storage, "flight-1", 780, time.Hour)
	appendTestPrice(t, storage, "flight-other", 100, time.Minute)

	latest, err := storage.GetLatest(ctx, "flight-1")
	if err != nil {
		t.Fatalf("Failed to get latest: %v", err)
	}
	if latest.Price != 780 {
		t.Errorf("Expected latest 780, got %v", latest.Price)
	}

	previous, err := storage.GetPrevious(ctx, "flight-1")
	if err != nil {
		t.Fatalf("Failed to get previous: %v", err)
	}
	if previous.Price != 650 {
		t.Errorf("Expected previous 650, got %v", previous.Price)
	}

	lowest, err := storage.GetLowest(ctx, "flight-1")
	if err != nil {
		t.Fatalf("Failed to get lowest: %v", err)
	}
	if lowest.Price != 650 {
		t.Errorf("Expected lowest 650, got %v", lowest.Price)
	}

	highest, err := storage.GetHighest(ctx, "flight-1")
	if err != nil {
		t.Fatalf("Failed to get highest: %v", err)
	}
	if highest.Price != 900 {
		t.Errorf("Expected highest 900, got %v", highest.Price)
	}
}

func TestPriceHistoryWindow(t *testing.T) {
	storage := NewPriceStorage(newTestDB(t), arbor.NewLogger())
	ctx := context.Background()

	appendTestPrice(t, storage, "flight-1", 500, 40*24*time.Hour)
	appendTestPrice(t, storage, "flight-1", 600, 5*24*time.Hour)
	appendTestPrice(t, storage, "flight-1", 700, time.Hour)

	history, err := storage.GetHistory(ctx, "flight-1", 30)
	if err != nil {
		t.Fatalf("Failed to get history: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("Expected 2 records within 30 days, got %d", len(history))
	}
	// Newest first
	if history[0].Price != 700 {
		t.Errorf("Expected newest record first, got %v", history[0].Price)
	}

	all, err := storage.GetHistory(ctx, "flight-1", 0)
	if err != nil {
		t.Fatalf("Failed to get full history: %v", err)
	}
	if len(all) != 3 {
		t.Errorf("Expected 3 records with no window, got %d", len(all))
	}
}

func TestPriceHistoryEmpty(t *testing.T) {
	storage := NewPriceStorage(newTestDB(t), arbor.NewLogger())
	ctx := context.Background()

	if _, err := storage.GetLatest(ctx, "flight-none"); err != interfaces.ErrNotFound {
		t.Errorf("Expected ErrNotFound for latest, got %v", err)
	}
	if _, err := storage.GetPrevious(ctx, "flight-none"); err != interfaces.ErrNotFound {
		t.Errorf("Expected ErrNotFound for previous, got %v", err)
	}

	// A single record has no previous
	appendTestPrice(t, storage, "flight-one", 300, time.Minute)
	if _, err := storage.GetPrevious(ctx, "flight-one"); err != interfaces.ErrNotFound {
		t.Errorf("Expected ErrNotFound for single-record previous, got %v", err)
	}
}

func TestAppendPriceRejectsInvalid(t *testing.T) {
	storage := NewPriceStorage(newTestDB(t), arbor.NewLogger())

	record := &models.PriceRecord{FlightID: "flight-1", Price: 0, CheckedAt: time.Now()}
	if err := storage.AppendPrice(context.Background(), record); err == nil {
		t.Fatal("Expected non-positive price to be rejected")
	}
}
