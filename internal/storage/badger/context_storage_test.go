package badger

import (
	"context"
	"testing"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/farewatch/internal/interfaces"
	"github.com/ternarybob/farewatch/internal/models"
)

func TestContextSnapshotFreshness(t *testing.T) {
	storage := NewContextStorage(newTestDB(t), arbor.NewLogger())
	ctx := context.Background()

	old := &models.ContextSnapshot{
		FlightID:  "flight-1",
		Headlines: []string{"old headline"},
		FetchedAt: time.Now().UTC().Add(-48 * time.Hour),
	}
	fresh := &models.ContextSnapshot{
		FlightID:    "flight-1",
		Headlines:   []string{"fresh headline"},
		HolidayNote: "School holidays in NSW",
		FetchedAt:   time.Now().UTC().Add(-time.Hour),
	}
	for _, snap := range []*models.ContextSnapshot{old, fresh} {
		if err := storage.SaveSnapshot(ctx, snap); err != nil {
			t.Fatalf("Failed to save snapshot: %v", err)
		}
	}

	got, err := storage.LatestUnderMaxAge(ctx, "flight-1", 24*time.Hour)
	if err != nil {
		t.Fatalf("Failed to get snapshot: %v", err)
	}
	if len(got.Headlines) != 1 || got.Headlines[0] != "fresh headline" {
		t.Errorf("Expected the fresh snapshot, got %v", got.Headlines)
	}

	// Everything outside the window reads as a miss.
	if _, err := storage.LatestUnderMaxAge(ctx, "flight-1", time.Minute); err != interfaces.ErrNotFound {
		t.Errorf("Expected ErrNotFound with tight max age, got %v", err)
	}
	if _, err := storage.LatestUnderMaxAge(ctx, "flight-other", 24*time.Hour); err != interfaces.ErrNotFound {
		t.Errorf("Expected ErrNotFound for unknown flight, got %v", err)
	}
}
