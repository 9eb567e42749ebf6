package datadog

import (
	"net"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"eksupdater/internal/metrics"
)

func TestNewBackendRequiresAddr(t *testing.T) {
	_, err := NewBackend(Config{})
	assert.ErrorContains(t, err, "Addr is required")
}

func TestTags(t *testing.T) {
	assert.Nil(t, tags(nil))
	assert.Equal(t, []string{"dataset:zakazky", "kind:read"}, tags(metrics.Labels{"kind": "read", "dataset": "zakazky"}))
}

func TestBackendSendsUDP(t *testing.T) {
	conn, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)
	defer conn.Close()

	b, err := NewBackend(Config{
		Addr:       conn.LocalAddr().String(),
		Namespace:  "eks.",
		GlobalTags: []string{"env:test"},
	})
	require.NoError(t, err)

	b.IncCounter(metrics.FilesTotal, 2, metrics.Labels{"dataset": "zakazky"})
	require.NoError(t, b.Flush())
	defer b.Close()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	buf := make([]byte, 8192)
	var line string
	// The client may also emit its own telemetry packets.
	for line == "" {
		n, _, err := conn.ReadFrom(buf)
		require.NoError(t, err)
		for _, l := range strings.Split(string(buf[:n]), "\n") {
			if strings.HasPrefix(l, "eks."+metrics.FilesTotal+":") {
				line = l
			}
		}
	}

	assert.True(t, strings.HasPrefix(line, "eks."+metrics.FilesTotal+":2|c"), line)
	assert.Contains(t, line, "env:test")
	assert.Contains(t, line, "dataset:zakazky")
}
