package scheduler

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScheduledTask_RunsUntilCancelled(t *testing.T) {
	var runs atomic.Int32
	task, err := NewScheduledTask("@every 1s", func() { runs.Add(1) })
	require.NoError(t, err)

	require.Eventually(t, func() bool { return runs.Load() >= 1 }, 3*time.Second, 50*time.Millisecond)
	task.Cancel()
	task.Cancel()

	after := runs.Load()
	time.Sleep(1500 * time.Millisecond)
	assert.Equal(t, after, runs.Load())
}

func TestScheduledTask_InvalidSpec(t *testing.T) {
	_, err := NewScheduledTask("every now and then", func() {})
	require.Error(t, err)
}
