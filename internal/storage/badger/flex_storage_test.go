package badger

import (
	"context"
	"testing"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/farewatch/internal/interfaces"
	"github.com/ternarybob/farewatch/internal/models"
)

func flexEntry(flightID, dep, ret string, price *float64, source string, age time.Duration) *models.FlexPriceEntry {
	return &models.FlexPriceEntry{
		FlightID:      flightID,
		DepartureDate: dep,
		ReturnDate:    ret,
		CabinClass:    models.CabinEconomy,
		Passengers:    2,
		Price:         price,
		Currency:      "AUD",
		Source:        source,
		CheckedAt:     time.Now().UTC().Add(-age),
	}
}

func floatPtr(v float64) *float64 { return &v }

func TestFlexUpsertOverwrites(t *testing.T) {
	storage := NewFlexStorage(newTestDB(t), arbor.NewLogger())
	ctx := context.Background()

	first := flexEntry("flight-1", "2026-10-10", "2026-10-17", floatPtr(800), models.SourceScraper, time.Hour)
	if err := storage.UpsertEntry(ctx, first); err != nil {
		t.Fatalf("Failed to upsert entry: %v", err)
	}

	// A later scan of the same shifted itinerary replaces the earlier row.
	second := flexEntry("flight-1", "2026-10-10", "2026-10-17", floatPtr(720), models.SourceScraper, 0)
	if err := storage.UpsertEntry(ctx, second); err != nil {
		t.Fatalf("Failed to upsert entry: %v", err)
	}

	entries, err := storage.GetEntries(ctx, "flight-1", models.CabinEconomy, 2)
	if err != nil {
		t.Fatalf("Failed to get entries: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("Expected 1 entry after upsert, got %d", len(entries))
	}
	if *entries[0].Price != 720 {
		t.Errorf("Expected upsert to overwrite price, got %v", *entries[0].Price)
	}
}

func TestFlexEntriesScopedByVariant(t *testing.T) {
	storage := NewFlexStorage(newTestDB(t), arbor.NewLogger())
	ctx := context.Background()

	entries := []*models.FlexPriceEntry{
		flexEntry("flight-1", "2026-10-09", "2026-10-16", floatPtr(810), models.SourceScraper, time.Hour),
		flexEntry("flight-1", "2026-10-10", "2026-10-17", floatPtr(790), models.SourceScraper, time.Hour),
		flexEntry("flight-2", "2026-10-10", "2026-10-17", floatPtr(100), models.SourceScraper, time.Hour),
	}
	business := flexEntry("flight-1", "2026-10-10", "2026-10-17", floatPtr(2400), models.SourceScraper, time.Hour)
	business.CabinClass = models.CabinBusiness
	entries = append(entries, business)

	for _, e := range entries {
		if err := storage.UpsertEntry(ctx, e); err != nil {
			t.Fatalf("Failed to upsert entry: %v", err)
		}
	}

	got, err := storage.GetEntries(ctx, "flight-1", models.CabinEconomy, 2)
	if err != nil {
		t.Fatalf("Failed to get entries: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("Expected 2 economy entries for flight-1, got %d", len(got))
	}
	// Sorted by departure date
	if got[0].DepartureDate != "2026-10-09" {
		t.Errorf("Expected entries sorted by departure date, got %s first", got[0].DepartureDate)
	}
}

func TestFlexBestUnderMaxAge(t *testing.T) {
	storage := NewFlexStorage(newTestDB(t), arbor.NewLogger())
	ctx := context.Background()

	entries := []*models.FlexPriceEntry{
		flexEntry("flight-1", "2026-10-08", "2026-10-15", floatPtr(650), models.SourceScraper, 48*time.Hour), // stale
		flexEntry("flight-1", "2026-10-09", "2026-10-16", nil, models.SourceError, time.Hour),                // failed probe
		flexEntry("flight-1", "2026-10-10", "2026-10-17", floatPtr(790), models.SourceScraper, time.Hour),
		flexEntry("flight-1", "2026-10-11", "2026-10-18", floatPtr(740), models.SourceScraper, 2*time.Hour),
	}
	for _, e := range entries {
		if err := storage.UpsertEntry(ctx, e); err != nil {
			t.Fatalf("Failed to upsert entry: %v", err)
		}
	}

	best, err := storage.BestUnderMaxAge(ctx, "flight-1", models.CabinEconomy, 2, 24*time.Hour)
	if err != nil {
		t.Fatalf("Failed to get best entry: %v", err)
	}
	if *best.Price != 740 {
		t.Errorf("Expected cheapest fresh entry 740, got %v", *best.Price)
	}

	// Nothing fresh enough
	if _, err := storage.BestUnderMaxAge(ctx, "flight-1", models.CabinEconomy, 2, time.Minute); err != interfaces.ErrNotFound {
		t.Errorf("Expected ErrNotFound with tight max age, got %v", err)
	}
}
