package badger

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/farewatch/internal/interfaces"
	"github.com/ternarybob/farewatch/internal/models"
	"github.com/timshannon/badgerhold/v4"
)

func newTestDB(t *testing.T) *BadgerDB {
	t.Helper()

	tmpDir := t.TempDir()

	options := badgerhold.DefaultOptions
	options.Dir = tmpDir
	options.ValueDir = tmpDir
	options.Logger = nil

	store, err := badgerhold.Open(options)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })

	return &BadgerDB{store: store, logger: arbor.NewLogger()}
}

func newTestJobStorage(t *testing.T) interfaces.JobStorage {
	t.Helper()
	return NewJobStorage(newTestDB(t), arbor.NewLogger())
}

func statusPtr(s models.JobStatus) *models.JobStatus { return &s }

func TestClaimNextJobExactlyOnce(t *testing.T) {
	storage := newTestJobStorage(t)
	ctx := context.Background()

	job := models.NewJob("job-claim-1", models.JobTypeCheckNow, "flight-1", 1, nil)
	if err := storage.CreateJob(ctx, job); err != nil {
		t.Fatalf("Failed to create job: %v", err)
	}

	// Fire concurrent claims against a single queued job. Exactly one
	// caller must win; everyone else gets ErrNoQueuedJobs.
	const attempts = 20
	var wg sync.WaitGroup
	var mu sync.Mutex
	winners := 0
	wrongID := false
	var claimErr error

	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			claimed, err := storage.ClaimNextJob(ctx)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				winners++
				if claimed.ID != job.ID {
					wrongID = true
				}
			case err != interfaces.ErrNoQueuedJobs:
				claimErr = err
			}
		}()
	}
	wg.Wait()

	if claimErr != nil {
		t.Fatalf("Unexpected claim error: %v", claimErr)
	}
	if wrongID {
		t.Fatal("Claimed job did not match the queued job")
	}
	if winners != 1 {
		t.Fatalf("Expected exactly 1 successful claim, got %d", winners)
	}

	stored, err := storage.GetJob(ctx, job.ID)
	if err != nil {
		t.Fatalf("Failed to get job: %v", err)
	}
	if stored.Status != models.JobStatusRunning {
		t.Errorf("Expected status running, got %s", stored.Status)
	}
	if stored.StartedAt == nil {
		t.Error("Expected StartedAt to be set after claim")
	}
}

func TestClaimNextJobOldestFirst(t *testing.T) {
	storage := newTestJobStorage(t)
	ctx := context.Background()

	base := time.Now().UTC()
	newer := models.NewJob("job-newer", models.JobTypeCheckNow, "flight-1", 1, nil)
	newer.CreatedAt = base
	older := models.NewJob("job-older", models.JobTypeCheckAll, "", 0, nil)
	older.CreatedAt = base.Add(-time.Minute)

	if err := storage.CreateJob(ctx, newer); err != nil {
		t.Fatalf("Failed to create job: %v", err)
	}
	if err := storage.CreateJob(ctx, older); err != nil {
		t.Fatalf("Failed to create job: %v", err)
	}

	claimed, err := storage.ClaimNextJob(ctx)
	if err != nil {
		t.Fatalf("Failed to claim job: %v", err)
	}
	if claimed.ID != older.ID {
		t.Errorf("Expected oldest job %s, got %s", older.ID, claimed.ID)
	}
}

func TestClaimNextJobEmptyQueue(t *testing.T) {
	storage := newTestJobStorage(t)

	if _, err := storage.ClaimNextJob(context.Background()); err != interfaces.ErrNoQueuedJobs {
		t.Fatalf("Expected ErrNoQueuedJobs, got %v", err)
	}
}

func TestUpdateJobTransitions(t *testing.T) {
	storage := newTestJobStorage(t)
	ctx := context.Background()

	job := models.NewJob("job-trans-1", models.JobTypeCheckNow, "flight-1", 1, nil)
	if err := storage.CreateJob(ctx, job); err != nil {
		t.Fatalf("Failed to create job: %v", err)
	}

	// queued -> success is not a legal transition
	if err := storage.UpdateJob(ctx, job.ID, &models.JobUpdate{Status: statusPtr(models.JobStatusSuccess)}); err == nil {
		t.Error("Expected queued -> success to be rejected")
	}

	if _, err := storage.ClaimNextJob(ctx); err != nil {
		t.Fatalf("Failed to claim job: %v", err)
	}

	if err := storage.UpdateJob(ctx, job.ID, &models.JobUpdate{Status: statusPtr(models.JobStatusSuccess)}); err != nil {
		t.Fatalf("Failed to complete job: %v", err)
	}

	stored, err := storage.GetJob(ctx, job.ID)
	if err != nil {
		t.Fatalf("Failed to get job: %v", err)
	}
	if stored.Status != models.JobStatusSuccess {
		t.Errorf("Expected status success, got %s", stored.Status)
	}
	if stored.FinishedAt == nil {
		t.Error("Expected FinishedAt to be set on terminal status")
	}

	// Terminal states are final
	if err := storage.UpdateJob(ctx, job.ID, &models.JobUpdate{Status: statusPtr(models.JobStatusRunning)}); err == nil {
		t.Error("Expected success -> running to be rejected")
	}
}

func TestUpdateJobPartialFields(t *testing.T) {
	storage := newTestJobStorage(t)
	ctx := context.Background()

	job := models.NewJob("job-partial-1", models.JobTypeCheckAll, "", 3, nil)
	if err := storage.CreateJob(ctx, job); err != nil {
		t.Fatalf("Failed to create job: %v", err)
	}

	progress := 2
	if err := storage.UpdateJob(ctx, job.ID, &models.JobUpdate{ProgressCurrent: &progress}); err != nil {
		t.Fatalf("Failed to update progress: %v", err)
	}

	stored, err := storage.GetJob(ctx, job.ID)
	if err != nil {
		t.Fatalf("Failed to get job: %v", err)
	}
	if stored.ProgressCurrent != 2 {
		t.Errorf("Expected progress 2, got %d", stored.ProgressCurrent)
	}
	if stored.Status != models.JobStatusQueued {
		t.Errorf("Expected status unchanged, got %s", stored.Status)
	}

	// Empty update is a no-op, not an error
	if err := storage.UpdateJob(ctx, job.ID, &models.JobUpdate{}); err != nil {
		t.Fatalf("Empty update should be a no-op: %v", err)
	}
}

func TestUpdateJobNotFound(t *testing.T) {
	storage := newTestJobStorage(t)
	progress := 1
	err := storage.UpdateJob(context.Background(), "missing", &models.JobUpdate{ProgressCurrent: &progress})
	if err != interfaces.ErrNotFound {
		t.Fatalf("Expected ErrNotFound, got %v", err)
	}
}

func TestResetStuckJobs(t *testing.T) {
	storage := newTestJobStorage(t)
	ctx := context.Background()

	stuck := models.NewJob("job-stuck-1", models.JobTypeFlexScan, "flight-1", 11, nil)
	fresh := models.NewJob("job-fresh-1", models.JobTypeCheckNow, "flight-2", 1, nil)
	for _, j := range []*models.Job{stuck, fresh} {
		if err := storage.CreateJob(ctx, j); err != nil {
			t.Fatalf("Failed to create job: %v", err)
		}
	}

	// Claim both, then backdate one claim past the threshold.
	if _, err := storage.ClaimNextJob(ctx); err != nil {
		t.Fatalf("Failed to claim job: %v", err)
	}
	if _, err := storage.ClaimNextJob(ctx); err != nil {
		t.Fatalf("Failed to claim job: %v", err)
	}

	backdated := time.Now().UTC().Add(-time.Hour)
	if err := storage.UpdateJob(ctx, stuck.ID, &models.JobUpdate{StartedAt: &backdated}); err != nil {
		t.Fatalf("Failed to backdate job: %v", err)
	}

	count, err := storage.ResetStuckJobs(ctx, 30*time.Minute)
	if err != nil {
		t.Fatalf("Failed to reset stuck jobs: %v", err)
	}
	if count != 1 {
		t.Fatalf("Expected 1 reset job, got %d", count)
	}

	reset, err := storage.GetJob(ctx, stuck.ID)
	if err != nil {
		t.Fatalf("Failed to get job: %v", err)
	}
	if reset.Status != models.JobStatusQueued {
		t.Errorf("Expected status queued after reset, got %s", reset.Status)
	}
	if reset.StartedAt != nil {
		t.Error("Expected StartedAt cleared after reset")
	}

	untouched, err := storage.GetJob(ctx, fresh.ID)
	if err != nil {
		t.Fatalf("Failed to get job: %v", err)
	}
	if untouched.Status != models.JobStatusRunning {
		t.Errorf("Expected fresh job untouched, got %s", untouched.Status)
	}

	// The reset job is claimable again.
	claimed, err := storage.ClaimNextJob(ctx)
	if err != nil {
		t.Fatalf("Failed to reclaim reset job: %v", err)
	}
	if claimed.ID != stuck.ID {
		t.Errorf("Expected to reclaim %s, got %s", stuck.ID, claimed.ID)
	}
}

func TestListJobsFiltering(t *testing.T) {
	storage := newTestJobStorage(t)
	ctx := context.Background()

	base := time.Now().UTC()
	for i, jt := range []models.JobType{models.JobTypeCheckNow, models.JobTypeCheckAll, models.JobTypeCheckNow} {
		job := models.NewJob("job-list-"+string(rune('a'+i)), jt, "", 0, nil)
		job.CreatedAt = base.Add(time.Duration(i) * time.Second)
		if err := storage.CreateJob(ctx, job); err != nil {
			t.Fatalf("Failed to create job: %v", err)
		}
	}

	all, err := storage.ListJobs(ctx, nil)
	if err != nil {
		t.Fatalf("Failed to list jobs: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("Expected 3 jobs, got %d", len(all))
	}
	// Newest first
	if all[0].ID != "job-list-c" {
		t.Errorf("Expected newest job first, got %s", all[0].ID)
	}

	checkNow, err := storage.ListJobs(ctx, &interfaces.JobListOptions{Type: models.JobTypeCheckNow})
	if err != nil {
		t.Fatalf("Failed to list jobs: %v", err)
	}
	if len(checkNow) != 2 {
		t.Errorf("Expected 2 check_now jobs, got %d", len(checkNow))
	}

	queued, err := storage.CountJobsByStatus(ctx, models.JobStatusQueued)
	if err != nil {
		t.Fatalf("Failed to count jobs: %v", err)
	}
	if queued != 3 {
		t.Errorf("Expected 3 queued jobs, got %d", queued)
	}
}
