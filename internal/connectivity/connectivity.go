// Package connectivity provides the online/offline signal consumed by the
// sync coordinator and the emergency dispatcher.
package connectivity

import (
	"context"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Source exposes the current connectivity state and transition events.
// Implementations fan out edge-triggered transitions; subscribers are
// never polled in a tight loop.
type Source interface {
	// Current returns the latest known online state.
	Current() bool
	// Subscribe registers a listener for transitions and returns a stop
	// function. The listener is called with the new state on every edge.
	Subscribe(listener func(online bool)) (stop func())
}

// notifier implements the shared subscribe/fan-out machinery.
type notifier struct {
	mu        sync.Mutex
	online    bool
	listeners map[int]func(online bool)
	nextID    int
}

func newNotifier(online bool) *notifier {
	return &notifier{
		online:    online,
		listeners: make(map[int]func(online bool)),
	}
}

func (n *notifier) Current() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.online
}

func (n *notifier) Subscribe(listener func(online bool)) func() {
	n.mu.Lock()
	id := n.nextID
	n.nextID++
	n.listeners[id] = listener
	n.mu.Unlock()

	return func() {
		n.mu.Lock()
		delete(n.listeners, id)
		n.mu.Unlock()
	}
}

// set updates the state and notifies listeners on an edge.
func (n *notifier) set(online bool) {
	n.mu.Lock()
	if n.online == online {
		n.mu.Unlock()
		return
	}
	n.online = online
	listeners := make([]func(bool), 0, len(n.listeners))
	for _, l := range n.listeners {
		listeners = append(listeners, l)
	}
	n.mu.Unlock()

	for _, l := range listeners {
		l(online)
	}
}

// Manual is a Source whose state is driven by the caller. Used by tests
// and by platforms that surface their own connectivity events.
type Manual struct {
	*notifier
}

// NewManual creates a Manual source with an initial state.
func NewManual(online bool) *Manual {
	return &Manual{notifier: newNotifier(online)}
}

// Set updates the state, notifying subscribers on a transition.
func (m *Manual) Set(online bool) {
	m.set(online)
}

// Monitor probes a URL on a ticker and publishes transitions. A reachable
// probe endpoint (any HTTP response) counts as online; transport failure
// counts as offline.
type Monitor struct {
	*notifier
	probeURL string
	interval time.Duration
	http     *http.Client
	log      *zap.Logger

	stopOnce sync.Once
	stopCh   chan struct{}
	done     chan struct{}
}

// NewMonitor creates a probing Monitor. It starts pessimistic (offline)
// until the first successful probe.
func NewMonitor(probeURL string, interval time.Duration, httpClient *http.Client, logger *zap.Logger) *Monitor {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Monitor{
		notifier: newNotifier(false),
		probeURL: probeURL,
		interval: interval,
		http:     httpClient,
		log:      logger,
		stopCh:   make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start begins probing until Stop is called or ctx is cancelled. The
// first probe runs immediately.
func (m *Monitor) Start(ctx context.Context) {
	go func() {
		defer close(m.done)

		m.probe(ctx)
		ticker := time.NewTicker(m.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-m.stopCh:
				return
			case <-ticker.C:
				m.probe(ctx)
			}
		}
	}()
}

// Stop halts probing. Safe to call twice.
func (m *Monitor) Stop() {
	m.stopOnce.Do(func() { close(m.stopCh) })
	<-m.done
}

func (m *Monitor) probe(ctx context.Context) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, m.probeURL, nil)
	if err != nil {
		m.set(false)
		return
	}

	resp, err := m.http.Do(req)
	if err != nil {
		if m.Current() {
			m.log.Info("connectivity lost", zap.Error(err))
		}
		m.set(false)
		return
	}
	resp.Body.Close()

	if !m.Current() {
		m.log.Info("connectivity restored", zap.String("probe", m.probeURL))
	}
	m.set(true)
}
