package eventloop

import "sync"

// Manual is a test-only Dispatcher that runs nothing until Drain is called,
// which lets tests decide exactly when queued continuations execute.
type Manual struct {
	mu    sync.Mutex
	queue []func()
}

// NewManual creates an empty manual queue.
func NewManual() *Manual {
	return &Manual{}
}

// Post enqueues fn.
func (m *Manual) Post(fn func()) bool {
	if fn == nil {
		return false
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queue = append(m.queue, fn)
	return true
}

// Len returns the number of queued items.
func (m *Manual) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.queue)
}

// Drain runs queued work in order, including work posted while draining, and
// returns how many items ran.
func (m *Manual) Drain() int {
	ran := 0
	for {
		m.mu.Lock()
		if len(m.queue) == 0 {
			m.mu.Unlock()
			return ran
		}
		fn := m.queue[0]
		m.queue = m.queue[1:]
		m.mu.Unlock()

		// Execute outside the lock so fn may post more work.
		fn()
		ran++
	}
}
