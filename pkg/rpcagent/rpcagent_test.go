package rpcagent

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nodeforge/agentplatform/internal/classreg"
	"github.com/nodeforge/agentplatform/internal/message"
	"github.com/nodeforge/agentplatform/pkg/echoagent"
)

// countingResolver wraps a Resolver and counts how often it is called.
type countingResolver struct {
	inner Resolver
	calls int
}

func (c *countingResolver) Resolve(ctx context.Context, loc *message.PlaceholderLocator) (*message.Msg, error) {
	c.calls++
	return c.inner.Resolve(ctx, loc)
}

func testClasses(t *testing.T) *classreg.Registry {
	t.Helper()
	classes := classreg.New()
	echoagent.Register(classes)
	return classes
}

func TestLaunchReplyAndResolvePlaceholder(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	a, err := Launch(ctx, Config{
		ClassName:    echoagent.EchoClassName,
		LaunchServer: true,
		Classes:      testClasses(t),
	})
	require.NoError(t, err)
	defer a.Stop(context.Background())

	placeholder, err := a.Reply(ctx, message.New("user", "user", json.RawMessage(`"hello"`)))
	require.NoError(t, err)

	content, err := placeholder.Content(ctx)
	require.NoError(t, err)
	assert.JSONEq(t, `"hello"`, string(content))
}

func TestPlaceholderResolvesAtMostOnce(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	a, err := Launch(ctx, Config{
		ClassName:    echoagent.EchoClassName,
		LaunchServer: true,
		Classes:      testClasses(t),
	})
	require.NoError(t, err)
	defer a.Stop(context.Background())

	placeholder, err := a.Reply(ctx, message.New("user", "user", json.RawMessage(`"once"`)))
	require.NoError(t, err)
	counter := &countingResolver{inner: placeholder.resolver}
	placeholder.resolver = counter

	first, err := placeholder.Content(ctx)
	require.NoError(t, err)
	second, err := placeholder.Content(ctx)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, counter.calls)
}

func TestCloneInstancesIsIndependent(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	a, err := Launch(ctx, Config{
		ClassName:    echoagent.EchoClassName,
		LaunchServer: true,
		Classes:      testClasses(t),
	})
	require.NoError(t, err)
	defer a.Stop(context.Background())

	clones, err := a.CloneInstances(ctx, 1, false)
	require.NoError(t, err)
	require.Len(t, clones, 1)
	clone := clones[0]
	assert.NotEqual(t, a.AgentID(), clone.AgentID())

	require.NoError(t, clone.Stop(ctx))

	placeholder, err := a.Reply(ctx, message.New("user", "user", json.RawMessage(`"still alive"`)))
	require.NoError(t, err)
	content, err := placeholder.Content(ctx)
	require.NoError(t, err)
	assert.JSONEq(t, `"still alive"`, string(content))
}

func TestCloneInstancesIncludesSelfFirst(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	a, err := Launch(ctx, Config{
		ClassName:    echoagent.EchoClassName,
		LaunchServer: true,
		Classes:      testClasses(t),
	})
	require.NoError(t, err)
	defer a.Stop(context.Background())

	group, err := a.CloneInstances(ctx, 3, true)
	require.NoError(t, err)
	require.Len(t, group, 3)
	assert.Same(t, a, group[0])

	ids := map[string]bool{}
	for _, agent := range group {
		ids[agent.AgentID()] = true
	}
	assert.Len(t, ids, 3)

	for _, agent := range group[1:] {
		require.NoError(t, agent.Stop(ctx))
	}
}
