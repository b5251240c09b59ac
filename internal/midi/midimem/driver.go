// Package midimem provides an in-process input driver with virtual ports.
// Messages are injected with Port.Send and devices can be unplugged while
// connections are open, which makes it the driver of choice for tests and
// demos without hardware.
package midimem

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/leandrodaf/midiviewer/internal/midi/stream"
	"github.com/leandrodaf/midiviewer/sdk/contracts"
	"go.uber.org/multierr"
)

// Driver holds a set of virtual input ports.
type Driver struct {
	logger     contracts.Logger
	filter     *contracts.MIDIEventFilter
	bufferSize int

	mu     sync.Mutex
	closed bool
	ports  map[string]*Port
	opens  int
}

// Port is a virtual input device.
type Port struct {
	name         string
	manufacturer string
	driver       *Driver

	mu    sync.Mutex
	conns map[*stream.Stream]struct{}
}

// NewDriver creates an empty in-memory driver.
func NewDriver(options *contracts.ClientOptions) (contracts.InputDriver, error) {
	return New(options), nil
}

// New is NewDriver returning the concrete type, so callers can add ports.
func New(options *contracts.ClientOptions) *Driver {
	options.Logger.Info("MIDI driver created", options.Logger.Field().String("backend", "memory"))
	return &Driver{
		logger:     options.Logger,
		filter:     options.MIDIEventFilter,
		bufferSize: options.BufferSize,
		ports:      make(map[string]*Port),
	}
}

// AddPort plugs in a virtual device. Adding an existing name returns the existing port.
func (d *Driver) AddPort(name, manufacturer string) *Port {
	d.mu.Lock()
	defer d.mu.Unlock()

	if p, ok := d.ports[name]; ok {
		return p
	}
	p := &Port{
		name:         name,
		manufacturer: manufacturer,
		driver:       d,
		conns:        make(map[*stream.Stream]struct{}),
	}
	d.ports[name] = p
	return p
}

// Port returns the virtual device with the given name.
func (d *Driver) Port(name string) (*Port, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	p, ok := d.ports[name]
	return p, ok
}

// Opens reports how many connections were opened since the driver was created.
func (d *Driver) Opens() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.opens
}

// ListInputs lists the plugged in ports sorted by name.
func (d *Driver) ListInputs() ([]contracts.DeviceInfo, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return nil, contracts.ErrDriverClosed
	}

	devices := make([]contracts.DeviceInfo, 0, len(d.ports))
	for _, p := range d.ports {
		devices = append(devices, contracts.DeviceInfo{
			Name:         p.name,
			Manufacturer: p.manufacturer,
			EntityName:   p.name,
		})
	}
	sort.Slice(devices, func(i, j int) bool { return devices[i].Name < devices[j].Name })
	return devices, nil
}

// OpenInput connects to a plugged in port.
func (d *Driver) OpenInput(name string) (contracts.InputConnection, error) {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil, contracts.ErrDriverClosed
	}
	p, ok := d.ports[name]
	if !ok {
		d.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", contracts.ErrDeviceNotFound, name)
	}
	d.opens++
	d.mu.Unlock()

	var s *stream.Stream
	s = stream.New(d.bufferSize, d.logger, d.filter, func() error {
		p.detach(s)
		return nil
	})
	p.attach(s)
	d.logger.Debug("MIDI device connected", d.logger.Field().String("device", name))
	return s, nil
}

// Close closes every open connection.
func (d *Driver) Close() error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	ports := make([]*Port, 0, len(d.ports))
	for _, p := range d.ports {
		ports = append(ports, p)
	}
	d.mu.Unlock()

	var err error
	for _, p := range ports {
		for _, s := range p.connections() {
			err = multierr.Append(err, s.Close())
		}
	}
	return err
}

// Name returns the device name.
func (p *Port) Name() string {
	return p.name
}

// Send delivers one message per argument to every open connection.
func (p *Port) Send(messages ...[]byte) {
	for _, data := range messages {
		msg := contracts.Message{
			Timestamp: uint64(time.Now().UTC().UnixNano()),
			Data:      append([]byte(nil), data...),
		}
		for _, s := range p.connections() {
			s.Push(msg)
		}
	}
}

// Connections returns the number of open connections.
func (p *Port) Connections() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.conns)
}

// Unplug removes the device. Open connections fail with ErrDeviceRemoved.
func (p *Port) Unplug() {
	p.driver.mu.Lock()
	delete(p.driver.ports, p.name)
	p.driver.mu.Unlock()

	for _, s := range p.connections() {
		s.Fail(fmt.Errorf("%w: %s", contracts.ErrDeviceRemoved, p.name))
	}
}

func (p *Port) attach(s *stream.Stream) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.conns[s] = struct{}{}
}

func (p *Port) detach(s *stream.Stream) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.conns, s)
}

func (p *Port) connections() []*stream.Stream {
	p.mu.Lock()
	defer p.mu.Unlock()
	conns := make([]*stream.Stream, 0, len(p.conns))
	for s := range p.conns {
		conns = append(conns, s)
	}
	return conns
}
