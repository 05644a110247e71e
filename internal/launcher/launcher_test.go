package launcher

import (
	"encoding/json"
	"fmt"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFindAvailablePortReturnsUsablePort(t *testing.T) {
	port, err := FindAvailablePort("localhost")
	require.NoError(t, err)
	assert.Greater(t, port, 0)

	lis, err := net.Listen("tcp", fmt.Sprintf("localhost:%d", port))
	require.NoError(t, err)
	defer lis.Close()
}

func TestCheckPortDetectsOccupiedPort(t *testing.T) {
	lis, err := net.Listen("tcp", "localhost:0")
	require.NoError(t, err)
	defer lis.Close()

	port := lis.Addr().(*net.TCPAddr).Port
	assert.True(t, CheckPort("localhost", port))
}

func TestCheckPortReportsFreePort(t *testing.T) {
	port, err := FindAvailablePort("localhost")
	require.NoError(t, err)
	assert.False(t, CheckPort("localhost", port))
}

func TestNewAutoSelectsPortWhenZero(t *testing.T) {
	l, err := New("localhost", 0, "", nil)
	require.NoError(t, err)
	assert.Greater(t, l.Port(), 0)
}

func TestNewReassignsOccupiedPort(t *testing.T) {
	lis, err := net.Listen("tcp", "localhost:0")
	require.NoError(t, err)
	defer lis.Close()
	port := lis.Addr().(*net.TCPAddr).Port

	l, err := New("localhost", port, "", nil)
	require.NoError(t, err)
	assert.NotEqual(t, port, l.Port())
	assert.False(t, CheckPort("localhost", l.Port()))
}

func TestBootstrapConfigRoundTrip(t *testing.T) {
	cfg := BootstrapConfig{Host: "localhost", Port: 5050, SharedSecret: "s3cr3t", LocalMode: true}
	data, err := marshalBootstrap(cfg)
	require.NoError(t, err)

	var decoded BootstrapConfig
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, cfg, decoded)
}
