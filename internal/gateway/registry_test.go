package gateway

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestRegistry(t *testing.T) (Registry, *Metrics) {
	t.Helper()
	metrics := NewMetrics(prometheus.NewRegistry())
	return NewRegistry(metrics, zap.NewNop()), metrics
}

func detachedConn(id string, user uint, queue int) *Conn {
	conf := DefaultConfig()
	conf.SendQueueSize = queue
	return newConn(id, user, nil, conf, zap.NewNop())
}

func TestRegistryTracksConnectionsPerUser(t *testing.T) {
	reg, metrics := newTestRegistry(t)
	a1, a2, b := detachedConn("a1", 1, 4), detachedConn("a2", 1, 4), detachedConn("b", 2, 4)
	assert.False(t, a1.ConnectedAt.IsZero())

	reg.Register(a1)
	reg.Register(a2)
	reg.Register(a2)
	reg.Register(b)
	assert.Equal(t, 2, reg.Connections(1))
	assert.Equal(t, 1, reg.Connections(2))
	assert.Equal(t, float64(3), testutil.ToFloat64(metrics.connections))

	assert.Equal(t, 2, reg.SendToUser(1, OutFrame{Event: PushFriendsUpdated}))
	assert.Len(t, a1.send, 1)
	assert.Len(t, a2.send, 1)
	assert.Empty(t, b.send)

	reg.Unregister(a1)
	reg.Unregister(a1)
	assert.Equal(t, 1, reg.Connections(1))
	assert.Equal(t, float64(2), testutil.ToFloat64(metrics.connections))
	assert.Equal(t, 0, reg.SendToUser(3, OutFrame{Event: PushFriendsUpdated}))
}

func TestRegistryDropsWhenQueueFullOrClosed(t *testing.T) {
	reg, metrics := newTestRegistry(t)
	slow := detachedConn("slow", 1, 1)
	closed := detachedConn("closed", 1, 1)
	closed.Close()
	reg.Register(slow)
	reg.Register(closed)

	require.Equal(t, 1, reg.SendToUser(1, OutFrame{Event: PushMessageReceived}))
	require.Equal(t, 0, reg.SendToUser(1, OutFrame{Event: PushMessageReceived}))

	assert.Equal(t, float64(3), testutil.ToFloat64(metrics.pushDropped.WithLabelValues(PushMessageReceived)))
}

func TestCheckOrigin(t *testing.T) {
	conf := DefaultConfig()
	conf.AllowedOrigins = []string{"https://app.example.com"}
	g := &Gateway{conf: conf}

	for origin, want := range map[string]bool{
		"":                         true,
		"https://app.example.com":  true,
		"https://evil.example.com": false,
	} {
		r := newRequestWithOrigin(origin)
		assert.Equal(t, want, g.checkOrigin(r), origin)
	}
}

func newRequestWithOrigin(origin string) *http.Request {
	r := httptest.NewRequest(http.MethodGet, "/ws", nil)
	if origin != "" {
		r.Header.Set("Origin", origin)
	}
	return r
}
