// Package listener runs one MIDI input connection on a background goroutine
// and forwards what it receives, as text lines, to a contracts.Sink.
package listener

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"

	"github.com/leandrodaf/midiviewer/internal/logger"
	"github.com/leandrodaf/midiviewer/internal/metrics"
	"github.com/leandrodaf/midiviewer/sdk/contracts"
)

// ErrSessionReused is returned by Start on a session that was already started.
var ErrSessionReused = errors.New("listener session already started")

// ListeningLine returns the status line emitted once device is open.
func ListeningLine(device string) string {
	return "🎧 Listening on: " + device
}

// ErrorLine returns the line emitted when a session ends on err.
func ErrorLine(err error) string {
	return fmt.Sprintf("Error: %v", err)
}

// Session owns a single connection to one input device.
//
// A Session is single use: it is created for one start request and
// discarded once stopped. Stop closes the connection, which is what
// unblocks the worker's pending receive; the running flag only guards
// against forwarding a message that raced with the close.
type Session struct {
	deviceName string
	driver     contracts.InputDriver
	sink       contracts.Sink
	logger     contracts.Logger
	metrics    *metrics.Listener

	running atomic.Bool
	started atomic.Bool

	// emitMu orders sink writes against Stop, so nothing reaches the
	// sink after Stop has returned.
	emitMu sync.Mutex

	connMu sync.Mutex
	conn   contracts.InputConnection

	done chan struct{}
}

// SessionOption configures a Session.
type SessionOption func(*Session)

// WithLogger sets the diagnostic logger.
func WithLogger(l contracts.Logger) SessionOption {
	return func(s *Session) {
		s.logger = l
	}
}

// WithMetrics records session activity on m.
func WithMetrics(m *metrics.Listener) SessionOption {
	return func(s *Session) {
		s.metrics = m
	}
}

// NewSession prepares a session for deviceName. Nothing is opened until Start.
func NewSession(deviceName string, driver contracts.InputDriver, sink contracts.Sink, opts ...SessionOption) *Session {
	s := &Session{
		deviceName: deviceName,
		driver:     driver,
		sink:       sink,
		done:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logger.NewNopLogger()
	}
	if s.sink == nil {
		s.sink = func(string) {}
	}
	return s
}

// DeviceName returns the device this session listens to.
func (s *Session) DeviceName() string {
	return s.deviceName
}

// Running reports whether the session is active or about to become active.
func (s *Session) Running() bool {
	return s.running.Load()
}

// Done is closed once the worker has exited and cleaned up.
// For a session that was never started it is never closed.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Start spawns the worker and returns immediately. The device is opened
// by the worker; failures are reported through the sink.
func (s *Session) Start() error {
	if !s.started.CompareAndSwap(false, true) {
		return ErrSessionReused
	}
	s.running.Store(true)
	s.metrics.SessionStarted(s.deviceName)
	s.logger.Debug("Starting listener session", s.logger.Field().String("device", s.deviceName))
	go s.run()
	return nil
}

// Stop requests cancellation. It may be called any number of times, from
// any goroutine except from inside the sink, and before Start. It does not
// wait for the worker; use Wait or StopAndWait for that.
func (s *Session) Stop() {
	s.emitMu.Lock()
	wasRunning := s.running.Swap(false)
	s.emitMu.Unlock()

	s.closeConn()
	if wasRunning {
		s.logger.Debug("Listener session stop requested", s.logger.Field().String("device", s.deviceName))
	}
}

// Wait blocks until the worker has exited or ctx is done.
// Waiting on a session that was never started returns immediately.
func (s *Session) Wait(ctx context.Context) error {
	if !s.started.Load() {
		return nil
	}
	select {
	case <-s.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// StopAndWait stops the session and waits for the worker to exit.
func (s *Session) StopAndWait(ctx context.Context) error {
	s.Stop()
	return s.Wait(ctx)
}

func (s *Session) run() {
	defer s.cleanup()

	conn, err := s.driver.OpenInput(s.deviceName)
	if err != nil {
		s.fail(err)
		return
	}
	if !s.adopt(conn) {
		// Stop won the race with the open.
		_ = conn.Close()
		return
	}

	s.emit(ListeningLine(s.deviceName))
	s.logger.Info("Listening on MIDI input", s.logger.Field().String("device", s.deviceName))

	for s.running.Load() {
		msg, err := conn.Next()
		if err != nil {
			if !errors.Is(err, io.EOF) {
				s.fail(err)
			}
			return
		}
		if s.emit(msg.String()) {
			s.metrics.MessageReceived(s.deviceName)
		}
	}
}

// adopt stores conn as the session's handle unless the session was stopped
// while the device was being opened.
func (s *Session) adopt(conn contracts.InputConnection) bool {
	s.connMu.Lock()
	defer s.connMu.Unlock()
	if !s.running.Load() {
		return false
	}
	s.conn = conn
	return true
}

// emit forwards line to the sink unless the session has been stopped.
func (s *Session) emit(line string) bool {
	s.emitMu.Lock()
	defer s.emitMu.Unlock()
	if !s.running.Load() {
		return false
	}
	s.sink(line)
	return true
}

func (s *Session) fail(err error) {
	if s.emit(ErrorLine(err)) {
		s.metrics.SessionFailed(s.deviceName)
	}
	s.logger.Warn("Listener session ended with error",
		s.logger.Field().String("device", s.deviceName),
		s.logger.Field().Error("error", err))
}

func (s *Session) closeConn() {
	s.connMu.Lock()
	conn := s.conn
	s.conn = nil
	s.connMu.Unlock()

	if conn == nil {
		return
	}
	if err := conn.Close(); err != nil {
		s.logger.Warn("Failed to close MIDI input",
			s.logger.Field().String("device", s.deviceName),
			s.logger.Field().Error("error", err))
	}
}

func (s *Session) cleanup() {
	s.running.Store(false)
	s.closeConn()
	s.metrics.SessionEnded()
	s.logger.Debug("Listener session finished", s.logger.Field().String("device", s.deviceName))
	close(s.done)
}
