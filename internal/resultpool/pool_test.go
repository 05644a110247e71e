package resultpool

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nodeforge/agentplatform/internal/message"
)

func TestGetBlocksUntilComplete(t *testing.T) {
	restore := pollInterval
	pollInterval = 5 * time.Millisecond
	defer func() { pollInterval = restore }()

	p := New(10, time.Minute)
	p.Submit(1)

	go func() {
		time.Sleep(20 * time.Millisecond)
		p.Complete(1, message.New("bot", "assistant", nil))
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	result, err := p.Get(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "bot", result.Name)
}

func TestGetUnknownTaskExpired(t *testing.T) {
	p := New(10, time.Minute)
	ctx := context.Background()

	_, err := p.Get(ctx, 999)
	assert.ErrorIs(t, err, ErrTaskExpired)
}

func TestCapacityEvictsOldest(t *testing.T) {
	p := New(2, time.Minute)
	p.Submit(1)
	p.Submit(2)
	p.Submit(3) // evicts task 1

	ctx := context.Background()
	_, err := p.Get(ctx, 1)
	assert.ErrorIs(t, err, ErrTaskExpired)

	assert.Equal(t, 2, p.Len())
}

func TestTTLExpiry(t *testing.T) {
	p := New(10, 30*time.Millisecond)
	p.Submit(1)

	time.Sleep(60 * time.Millisecond)

	ctx := context.Background()
	_, err := p.Get(ctx, 1)
	assert.ErrorIs(t, err, ErrTaskExpired)
}

func TestSweepExpiredRemovesStaleEntries(t *testing.T) {
	p := New(10, 10*time.Millisecond)
	p.Submit(1)
	p.Submit(2)

	time.Sleep(30 * time.Millisecond)

	removed := p.SweepExpired()
	assert.Equal(t, 2, removed)
	assert.Equal(t, 0, p.Len())
}

func TestGetCancelledContext(t *testing.T) {
	p := New(10, time.Minute)
	p.Submit(1)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := p.Get(ctx, 1)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
