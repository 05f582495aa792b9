package gateway

import (
	"encoding/json"
	"sync"

	"go.uber.org/zap"
)

// Registry maps users to their live connections so pushes can reach every
// connection of a user. It is the gateway's only shared mutable state.
type Registry interface {
	Register(c *Conn)
	Unregister(c *Conn)
	SendToUser(userID uint, frame OutFrame) int
	Connections(userID uint) int
}

type connRegistry struct {
	mu      sync.RWMutex
	byUser  map[uint]map[string]*Conn
	metrics *Metrics
	log     *zap.Logger
}

// NewRegistry creates an empty in-process Registry
func NewRegistry(metrics *Metrics, log *zap.Logger) Registry {
	return &connRegistry{
		byUser:  make(map[uint]map[string]*Conn),
		metrics: metrics,
		log:     log,
	}
}

func (r *connRegistry) Register(c *Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()

	conns := r.byUser[c.UserID]
	if conns == nil {
		conns = make(map[string]*Conn)
		r.byUser[c.UserID] = conns
	}
	if _, exists := conns[c.ID]; !exists {
		conns[c.ID] = c
		r.metrics.connections.Inc()
	}
}

func (r *connRegistry) Unregister(c *Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()

	conns := r.byUser[c.UserID]
	if _, ok := conns[c.ID]; !ok {
		return
	}
	delete(conns, c.ID)
	if len(conns) == 0 {
		delete(r.byUser, c.UserID)
	}
	r.metrics.connections.Dec()
}

// SendToUser queues frame on every connection of userID and returns how many accepted it.
func (r *connRegistry) SendToUser(userID uint, frame OutFrame) int {
	r.mu.RLock()
	targets := make([]*Conn, 0, len(r.byUser[userID]))
	for _, c := range r.byUser[userID] {
		targets = append(targets, c)
	}
	r.mu.RUnlock()

	if len(targets) == 0 {
		return 0
	}
	data, err := json.Marshal(frame)
	if err != nil {
		r.log.Error("Could not encode push", zap.String("event", frame.Event), zap.Error(err))
		return 0
	}

	delivered := 0
	for _, c := range targets {
		if c.enqueue(data) {
			delivered++
			continue
		}
		r.metrics.pushDropped.WithLabelValues(frame.Event).Inc()
		r.log.Warn("Dropped push", zap.String("event", frame.Event), zap.Uint("user", userID), zap.String("conn", c.ID))
	}
	return delivered
}

func (r *connRegistry) Connections(userID uint) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byUser[userID])
}
