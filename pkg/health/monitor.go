// Package health tracks backend reachability without heartbeat traffic.
// Connectivity is probed once at startup; afterwards the state is refreshed
// only as a side effect of real network operations reporting their outcome.
package health

import (
	"context"
	"sync"
	"time"

	"ai-chat-core/internal/pkg/logger"
)

const defaultProbeTimeout = 3 * time.Second

// ProbeFunc performs one reachability round-trip against the backend.
type ProbeFunc func(ctx context.Context) error

type Monitor struct {
	mu        sync.RWMutex
	checked   bool
	connected bool

	probeOnce sync.Once
	probe     ProbeFunc
	timeout   time.Duration
	logger    logger.ILogger
}

// NewMonitor starts in the optimistic state: connected until proven otherwise,
// so the UI does not flash a disconnected banner before the first real signal.
func NewMonitor(probe ProbeFunc, timeout time.Duration, log logger.ILogger) *Monitor {
	if timeout <= 0 {
		timeout = defaultProbeTimeout
	}
	return &Monitor{
		connected: true,
		probe:     probe,
		timeout:   timeout,
		logger:    log,
	}
}

// InitialProbe runs the one-time reachability check. Subsequent calls are
// no-ops and return the latest known state. A probe timeout counts as a
// connection failure.
func (m *Monitor) InitialProbe(ctx context.Context) bool {
	m.probeOnce.Do(func() {
		probeCtx, cancel := context.WithTimeout(ctx, m.timeout)
		defer cancel()

		err := m.probe(probeCtx)

		m.mu.Lock()
		m.checked = true
		m.connected = err == nil
		m.mu.Unlock()

		if err != nil {
			m.logger.Warn("Health", "Initial backend probe failed", map[string]interface{}{"error": err.Error()})
		} else {
			m.logger.Info("Health", "Initial backend probe succeeded", nil)
		}
	})

	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.connected
}

// ReportOutcome piggybacks connectivity inference on real application traffic.
func (m *Monitor) ReportOutcome(success bool) {
	m.mu.Lock()
	m.connected = success
	m.mu.Unlock()
}

// IsConnected returns true until InitialProbe completes, then the latest
// known state.
func (m *Monitor) IsConnected() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if !m.checked {
		return true
	}
	return m.connected
}
