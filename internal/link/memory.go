package link

import "sync"

// Memory is a process-local link backed by in-memory FIFO queues. Used by
// tests and the memory link mode, where publish and ingest share a process.
type Memory struct {
	mu     sync.Mutex
	rx     [][]byte
	peer   *Memory
	closed bool
}

// Pair returns two cross-connected memory links: frames sent on one side
// become receivable on the other.
func Pair() (*Memory, *Memory) {
	a := &Memory{}
	b := &Memory{}
	a.peer = b
	b.peer = a
	return a, b
}

// Loopback returns a link whose sends feed its own receive queue, so a
// single bus instance observes its own publishes.
func Loopback() *Memory {
	m := &Memory{}
	m.peer = m
	return m
}

func (m *Memory) Send(frame []byte) error {
	dst := m.peer
	dst.mu.Lock()
	defer dst.mu.Unlock()
	if dst.closed {
		return ErrClosed
	}
	dst.rx = append(dst.rx, append([]byte(nil), frame...))
	return nil
}

func (m *Memory) Available() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.rx) > 0
}

func (m *Memory) Receive() ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.rx) == 0 {
		if m.closed {
			return nil, ErrClosed
		}
		return nil, ErrNoFrame
	}
	frame := m.rx[0]
	m.rx = m.rx[1:]
	return frame, nil
}

func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}
