package scheduler

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/farewatch/internal/common"
	"github.com/ternarybob/farewatch/internal/interfaces"
	"github.com/ternarybob/farewatch/internal/models"
	"github.com/ternarybob/farewatch/internal/services/runner"
	"github.com/ternarybob/farewatch/internal/storage/badger"
)

func newTestScheduler(t *testing.T, config common.SchedulerConfig) (interfaces.SchedulerService, interfaces.StorageManager) {
	t.Helper()

	logger := arbor.NewLogger()
	store, err := badger.NewManager(logger, &common.BadgerConfig{Path: filepath.Join(t.TempDir(), "db")})
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	jobService := runner.NewJobService(store, runner.NewRemoteExecutor(logger), common.JobsConfig{
		ExecutionMode:         common.ExecutionModeRemote,
		StuckThresholdMinutes: 30,
	}, logger)

	return NewService(jobService, store.FlightStorage(), config, logger), store
}

func TestTriggerCheckAllNowCreatesQueuedJob(t *testing.T) {
	svc, store := newTestScheduler(t, common.SchedulerConfig{Enabled: true})

	jobID, err := svc.TriggerCheckAllNow()
	require.NoError(t, err)
	require.NotEmpty(t, jobID)

	job, err := store.JobStorage().GetJob(context.Background(), jobID)
	require.NoError(t, err)
	assert.Equal(t, models.JobTypeCheckAll, job.Type)
	assert.Equal(t, models.JobStatusQueued, job.Status)
}

func TestStartStopLifecycle(t *testing.T) {
	svc, _ := newTestScheduler(t, common.SchedulerConfig{
		Enabled:            true,
		CheckSchedule:      "0 0 */6 * * *",
		ContextSchedule:    "0 30 6 * * *",
		StuckSweepInterval: "5m",
	})

	assert.False(t, svc.IsRunning())

	require.NoError(t, svc.Start())
	assert.True(t, svc.IsRunning())

	err := svc.Start()
	require.Error(t, err, "second Start should be rejected")

	require.NoError(t, svc.Stop())
	assert.False(t, svc.IsRunning())

	// Stop on a stopped scheduler is a no-op.
	require.NoError(t, svc.Stop())
}

func TestNextCheckTimeFollowsLifecycle(t *testing.T) {
	svc, _ := newTestScheduler(t, common.SchedulerConfig{
		Enabled:            true,
		CheckSchedule:      "0 0 */6 * * *",
		ContextSchedule:    "0 30 6 * * *",
		StuckSweepInterval: "5m",
	})

	assert.Nil(t, svc.NextCheckTime())

	require.NoError(t, svc.Start())
	next := svc.NextCheckTime()
	require.NotNil(t, next)
	assert.True(t, next.After(time.Now()))

	require.NoError(t, svc.Stop())
	assert.Nil(t, svc.NextCheckTime())
}

func TestStartRejectsInvalidSchedule(t *testing.T) {
	svc, _ := newTestScheduler(t, common.SchedulerConfig{
		Enabled:       true,
		CheckSchedule: "not a cron expression",
	})

	err := svc.Start()
	require.Error(t, err)
	assert.False(t, svc.IsRunning())
}

func TestDisabledSchedulerDoesNotRun(t *testing.T) {
	svc, _ := newTestScheduler(t, common.SchedulerConfig{Enabled: false})

	require.NoError(t, svc.Start())
	assert.False(t, svc.IsRunning())
}

func TestScheduledCheckAllFires(t *testing.T) {
	svc, store := newTestScheduler(t, common.SchedulerConfig{
		Enabled:            true,
		CheckSchedule:      "* * * * * *", // Every second
		ContextSchedule:    "0 30 6 * * *",
		StuckSweepInterval: "5m",
	})

	require.NoError(t, svc.Start())
	defer svc.Stop()

	deadline := time.After(5 * time.Second)
	for {
		count, err := store.JobStorage().CountJobsByStatus(context.Background(), models.JobStatusQueued)
		require.NoError(t, err)
		if count > 0 {
			break
		}
		select {
		case <-deadline:
			t.Fatal("scheduled check_all never enqueued")
		case <-time.After(100 * time.Millisecond):
		}
	}

	jobs, err := store.JobStorage().ListJobs(context.Background(), &interfaces.JobListOptions{Type: models.JobTypeCheckAll})
	require.NoError(t, err)
	require.NotEmpty(t, jobs)
	assert.Equal(t, models.JobStatusQueued, jobs[0].Status)
}
