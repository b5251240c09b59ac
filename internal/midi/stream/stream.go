// Package stream turns callback based MIDI delivery into the blocking
// contracts.InputConnection that listeners read from.
package stream

import (
	"io"
	"sync"
	"sync/atomic"

	"github.com/leandrodaf/midiviewer/sdk/contracts"
)

// Stream is an InputConnection fed by a driver callback.
//
// Push never blocks the driver. Messages are queued in a FIFO and returned
// by Next in the order they were pushed. With a positive limit the queue is
// bounded and overflowing messages are dropped with a warning; a limit of
// zero keeps every message.
type Stream struct {
	logger  contracts.Logger
	filter  *contracts.MIDIEventFilter
	limit   int
	release func() error

	mu     sync.Mutex
	queue  []contracts.Message
	err    error // set once the stream has ended
	closed bool  // ended by Close: queued messages are discarded

	notify chan struct{}
	done   chan struct{}

	endOnce   sync.Once
	closeOnce sync.Once
	closeErr  error

	dropped atomic.Uint64
}

// New creates a Stream holding at most limit unread messages, or any
// number of them when limit is zero or negative. release is called exactly
// once, on the first Close, to detach the stream from the device.
func New(limit int, logger contracts.Logger, filter *contracts.MIDIEventFilter, release func() error) *Stream {
	if limit < 0 {
		limit = 0
	}
	return &Stream{
		logger:  logger,
		filter:  filter,
		limit:   limit,
		release: release,
		notify:  make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
}

// Push queues a received message. It reports false when the message was
// filtered out, dropped or the stream already ended.
func (s *Stream) Push(msg contracts.Message) bool {
	if len(msg.Data) == 0 {
		s.logger.Warn(contracts.ErrIncompleteMessage.Error())
		return false
	}
	if !s.filter.Allows(msg) {
		s.logger.Debug("MIDI message filtered out", s.logger.Field().Uint8("command", uint8(msg.Command())))
		return false
	}

	s.mu.Lock()
	if s.err != nil {
		s.mu.Unlock()
		return false
	}
	if s.limit > 0 && len(s.queue) >= s.limit {
		s.mu.Unlock()
		s.dropped.Add(1)
		s.logger.Warn("MIDI event buffer full; dropping message",
			s.logger.Field().Uint64("dropped", s.dropped.Load()))
		return false
	}
	s.queue = append(s.queue, msg)
	s.mu.Unlock()

	select {
	case s.notify <- struct{}{}:
	default:
	}
	return true
}

// Next blocks until a message is available or the stream ends.
// After Fail, messages pushed before the failure are still returned, then
// the failure cause. After Close it returns io.EOF, or the earlier failure
// cause, and nothing that was still queued.
func (s *Stream) Next() (contracts.Message, error) {
	for {
		s.mu.Lock()
		if s.closed {
			err := s.err
			s.mu.Unlock()
			return contracts.Message{}, err
		}
		if len(s.queue) > 0 {
			msg := s.queue[0]
			s.queue[0] = contracts.Message{}
			s.queue = s.queue[1:]
			if len(s.queue) == 0 {
				s.queue = nil
			}
			s.mu.Unlock()
			return msg, nil
		}
		if s.err != nil {
			err := s.err
			s.mu.Unlock()
			return contracts.Message{}, err
		}
		s.mu.Unlock()

		select {
		case <-s.notify:
		case <-s.done:
		}
	}
}

// Fail ends the stream with err, which Next returns once the queue is
// drained. The device is released by the reader's Close, not here, so Fail
// is safe to call from inside a driver callback.
func (s *Stream) Fail(err error) {
	if err == nil {
		err = io.EOF
	}
	s.end(err, false)
}

// Close ends the stream and releases the device. It is idempotent.
func (s *Stream) Close() error {
	s.end(io.EOF, true)
	s.closeOnce.Do(func() {
		if s.release != nil {
			s.closeErr = s.release()
		}
	})
	return s.closeErr
}

// Done is closed once the stream has ended.
func (s *Stream) Done() <-chan struct{} {
	return s.done
}

// Dropped returns how many messages were discarded because the queue was full.
func (s *Stream) Dropped() uint64 {
	return s.dropped.Load()
}

// Pending returns the number of queued, unread messages.
func (s *Stream) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}

func (s *Stream) end(err error, discard bool) {
	s.mu.Lock()
	if s.err == nil {
		s.err = err
	}
	if discard {
		s.closed = true
		s.queue = nil
	}
	s.mu.Unlock()

	s.endOnce.Do(func() {
		close(s.done)
	})
}
