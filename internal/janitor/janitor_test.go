package janitor

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSweeper struct {
	calls int
}

func (f *fakeSweeper) SweepExpired() int {
	f.calls++
	return 0
}

func TestJanitorRunsScheduledSweep(t *testing.T) {
	sweeper := &fakeSweeper{}
	j, err := New(sweeper, "@every 10ms", nil)
	require.NoError(t, err)

	j.Start()
	defer j.Stop()

	assert.Eventually(t, func() bool {
		return sweeper.calls > 0
	}, time.Second, 5*time.Millisecond)
}

func TestNewRejectsInvalidSchedule(t *testing.T) {
	_, err := New(&fakeSweeper{}, "not a schedule", nil)
	assert.Error(t, err)
}
