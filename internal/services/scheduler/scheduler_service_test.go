package scheduler

import (
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
)

func waitFor(t *testing.T, condition func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if condition() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}

func TestRegisterJob_Validation(t *testing.T) {
	service := NewService(arbor.NewLogger())
	noop := func() error { return nil }

	assert.Error(t, service.RegisterJob("bad", "not a cron", "", noop))
	// Five fields are missing the seconds field
	assert.Error(t, service.RegisterJob("five", "0 * * * *", "", noop))
	assert.Error(t, service.RegisterJob("nil", "0 0 1 * * *", "", nil))

	require.NoError(t, service.RegisterJob("gofer", "0 0 1 * * *", "Fetch chapters", noop))
	assert.Error(t, service.RegisterJob("gofer", "0 0 1 * * *", "", noop))
}

func TestTriggerJob_RecordsStatus(t *testing.T) {
	service := NewService(arbor.NewLogger())
	var runs int32

	require.NoError(t, service.RegisterJob("gofer", "0 0 1 * * *", "Fetch chapters", func() error {
		atomic.AddInt32(&runs, 1)
		return errors.New("source down")
	}))
	require.NoError(t, service.Start())
	defer service.Stop()

	require.NoError(t, service.TriggerJob("gofer"))
	waitFor(t, func() bool {
		status, err := service.GetJobStatus("gofer")
		return err == nil && status.LastRun != nil && !status.IsRunning
	})

	status, err := service.GetJobStatus("gofer")
	require.NoError(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&runs))
	assert.Equal(t, "source down", status.LastError)
	assert.Equal(t, "Fetch chapters", status.Description)
	require.NotNil(t, status.NextRun)
	assert.True(t, status.NextRun.After(time.Now()))

	assert.Error(t, service.TriggerJob("missing"))
	_, err = service.GetJobStatus("missing")
	assert.Error(t, err)
}

func TestTriggerJob_RejectsRunningJob(t *testing.T) {
	service := NewService(arbor.NewLogger())
	release := make(chan struct{})

	require.NoError(t, service.RegisterJob("gofer", "0 0 1 * * *", "", func() error {
		<-release
		return nil
	}))

	require.NoError(t, service.TriggerJob("gofer"))
	waitFor(t, func() bool {
		status, err := service.GetJobStatus("gofer")
		return err == nil && status.IsRunning
	})

	assert.ErrorIs(t, service.TriggerJob("gofer"), ErrJobRunning)
	close(release)
}

func TestTriggerJob_RecoversPanics(t *testing.T) {
	service := NewService(arbor.NewLogger())

	require.NoError(t, service.RegisterJob("explode", "0 0 1 * * *", "", func() error {
		panic("kaboom")
	}))

	require.NoError(t, service.TriggerJob("explode"))
	waitFor(t, func() bool {
		status, err := service.GetJobStatus("explode")
		return err == nil && status.LastRun != nil
	})

	status, err := service.GetJobStatus("explode")
	require.NoError(t, err)
	assert.False(t, status.IsRunning)
	assert.Contains(t, status.LastError, "kaboom")
}

func TestSchedule_RunsEverySecond(t *testing.T) {
	service := NewService(arbor.NewLogger())
	var runs int32

	require.NoError(t, service.RegisterJob("tick", "* * * * * *", "", func() error {
		atomic.AddInt32(&runs, 1)
		return nil
	}))
	require.NoError(t, service.Start())
	assert.True(t, service.IsRunning())
	assert.Error(t, service.Start())

	waitFor(t, func() bool { return atomic.LoadInt32(&runs) >= 1 })

	require.NoError(t, service.Stop())
	assert.False(t, service.IsRunning())
	require.NoError(t, service.Stop())

	statuses := service.GetAllJobStatuses()
	assert.Contains(t, statuses, "tick")
}
