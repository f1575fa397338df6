package link

import (
	"bufio"
	"errors"
	"io"
	"log"
	"sync"
)

// Stream adapts any io.ReadWriteCloser carrying the framing from framing.go
// into a Link: a serial device file, a pipe, a socket, or a QUIC stream.
// A background reader drains incoming frames into a FIFO queue so Available
// never blocks; frames failing their digest check are dropped with a report.
type Stream struct {
	rwc io.ReadWriteCloser
	log *log.Logger

	wmu sync.Mutex // serializes writeFrame calls

	mu     sync.Mutex
	rx     [][]byte
	rdErr  error
	closed bool
}

// NewStream wraps rwc and starts the reader. The logger receives dropped
// frame reports; nil means log.Default().
func NewStream(rwc io.ReadWriteCloser, logger *log.Logger) *Stream {
	if logger == nil {
		logger = log.Default()
	}
	s := &Stream{rwc: rwc, log: logger}
	go s.readLoop()
	return s
}

func (s *Stream) readLoop() {
	br := bufio.NewReader(s.rwc)
	for {
		frame, err := readFrame(br)
		if err != nil {
			if errors.Is(err, ErrBadDigest) {
				s.log.Printf("link: dropping corrupt frame: %v", err)
				continue
			}
			s.mu.Lock()
			if !s.closed {
				s.rdErr = err
			}
			s.mu.Unlock()
			return
		}
		if len(frame) == 0 {
			continue // keepalive
		}
		s.mu.Lock()
		s.rx = append(s.rx, frame)
		s.mu.Unlock()
	}
}

func (s *Stream) Send(frame []byte) error {
	s.wmu.Lock()
	defer s.wmu.Unlock()
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return ErrClosed
	}
	return writeFrame(s.rwc, frame)
}

func (s *Stream) Available() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.rx) > 0
}

func (s *Stream) Receive() ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.rx) > 0 {
		frame := s.rx[0]
		s.rx = s.rx[1:]
		return frame, nil
	}
	if s.closed {
		return nil, ErrClosed
	}
	if s.rdErr != nil {
		return nil, s.rdErr
	}
	return nil, ErrNoFrame
}

func (s *Stream) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()
	return s.rwc.Close()
}
