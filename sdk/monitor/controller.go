// Package monitor holds the front-end independent controller of the MIDI
// viewer: device list, start/stop toggle and message log.
package monitor

import (
	"context"
	"errors"
	"sync"

	"github.com/leandrodaf/midiviewer/internal/logger"
	"github.com/leandrodaf/midiviewer/internal/sinks"
	"github.com/leandrodaf/midiviewer/sdk/contracts"
	"github.com/leandrodaf/midiviewer/sdk/listener"
	"go.uber.org/multierr"
)

// Status lines written to the view's log.
const (
	RefreshedLine = "🔁 Refreshed device list."
	StoppedLine   = "🛑 Stopped listening."
)

// Warning shown when start is requested without a device.
const (
	MissingSelectionTitle   = "Missing selection"
	MissingSelectionMessage = "Please select a MIDI input device."
)

var (
	// ErrNoDeviceSelected is returned by Start when the device name is empty.
	ErrNoDeviceSelected = errors.New("no MIDI input device selected")
	// ErrAlreadyListening is returned by Start while a session is active.
	ErrAlreadyListening = errors.New("already listening")
	// ErrNotListening is returned by Stop when no session is active.
	ErrNotListening = errors.New("not listening")
	// ErrClosed is returned once the controller has been closed.
	ErrClosed = errors.New("controller closed")
)

// View receives one-way notifications from the Controller. Log is also
// called from listener goroutines; implementations marshal onto their own
// thread if they need to.
type View interface {
	ShowDevices(devices []contracts.DeviceInfo)
	SetListening(listening bool)
	Log(line string)
	Warn(title, message string)
}

// Controller owns zero or one listener session at a time.
type Controller struct {
	driver      contracts.InputDriver
	view        View
	logger      contracts.Logger
	sink        contracts.Sink
	sessionOpts []listener.SessionOption

	mu      sync.Mutex
	session *listener.Session
	devices []contracts.DeviceInfo
	closed  bool
}

// Option configures a Controller.
type Option func(*Controller)

// WithLogger sets the diagnostic logger.
func WithLogger(l contracts.Logger) Option {
	return func(c *Controller) {
		c.logger = l
	}
}

// WithSessionOptions passes options to every session the controller creates.
func WithSessionOptions(opts ...listener.SessionOption) Option {
	return func(c *Controller) {
		c.sessionOpts = append(c.sessionOpts, opts...)
	}
}

// WithMessageSink also sends every session line to sink, after the view.
func WithMessageSink(sink contracts.Sink) Option {
	return func(c *Controller) {
		c.sink = sink
	}
}

// NewController creates a controller for driver reporting to view.
func NewController(driver contracts.InputDriver, view View, opts ...Option) *Controller {
	c := &Controller{
		driver: driver,
		view:   view,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = logger.NewNopLogger()
	}
	return c
}

// Devices returns the device list from the last refresh.
func (c *Controller) Devices() []contracts.DeviceInfo {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]contracts.DeviceInfo(nil), c.devices...)
}

// Listening reports whether a session is active.
func (c *Controller) Listening() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session != nil && c.session.Running()
}

// Refresh enumerates the input devices again. It never touches an active session.
func (c *Controller) Refresh() error {
	if err := c.loadDevices(); err != nil {
		return err
	}
	c.view.Log(RefreshedLine)
	return nil
}

// Start opens device on a new session. An empty name is a validation
// error: the view is warned and no session is created.
func (c *Controller) Start(device string) error {
	if device == "" {
		c.view.Warn(MissingSelectionTitle, MissingSelectionMessage)
		return ErrNoDeviceSelected
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if c.session != nil && c.session.Running() {
		c.mu.Unlock()
		return ErrAlreadyListening
	}

	sink := sinks.Multi(c.view.Log, c.sink)
	session := listener.NewSession(device, c.driver, sink, append([]listener.SessionOption{listener.WithLogger(c.logger)}, c.sessionOpts...)...)
	if err := session.Start(); err != nil {
		c.mu.Unlock()
		return err
	}
	c.session = session
	c.mu.Unlock()

	c.view.SetListening(true)
	c.logger.Info("Listening session started", c.logger.Field().String("device", device))
	go c.watch(session)
	return nil
}

// Stop ends the active session and waits for its worker to exit.
func (c *Controller) Stop(ctx context.Context) error {
	c.mu.Lock()
	session := c.session
	c.session = nil
	c.mu.Unlock()

	if session == nil {
		return ErrNotListening
	}

	err := session.StopAndWait(ctx)
	c.view.SetListening(false)
	if lerr := c.loadDevices(); lerr != nil {
		c.logger.Warn("Failed to refresh devices after stop", c.logger.Field().Error("error", lerr))
	}
	c.view.Log(StoppedLine)
	return err
}

// Toggle stops the active session, or starts one on device when idle.
func (c *Controller) Toggle(ctx context.Context, device string) error {
	if c.Listening() {
		return c.Stop(ctx)
	}
	return c.Start(device)
}

// Close stops any session and releases the driver. The controller cannot
// be used afterwards.
func (c *Controller) Close(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	session := c.session
	c.session = nil
	c.mu.Unlock()

	var err error
	if session != nil {
		err = multierr.Append(err, session.StopAndWait(ctx))
	}
	return multierr.Append(err, c.driver.Close())
}

// watch flips the view back to idle when a session ends on its own,
// e.g. after the device was unplugged.
func (c *Controller) watch(session *listener.Session) {
	<-session.Done()

	c.mu.Lock()
	current := c.session == session
	if current {
		c.session = nil
	}
	c.mu.Unlock()

	if current {
		c.logger.Info("Listening session ended", c.logger.Field().String("device", session.DeviceName()))
		c.view.SetListening(false)
	}
}

func (c *Controller) loadDevices() error {
	devices, err := c.driver.ListInputs()
	if err != nil {
		c.logger.Error("Failed to list MIDI inputs", c.logger.Field().Error("error", err))
		return err
	}

	c.mu.Lock()
	c.devices = devices
	c.mu.Unlock()

	c.view.ShowDevices(devices)
	return nil
}
