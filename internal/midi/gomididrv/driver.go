// Package gomididrv is the portable input backend built on gomidi v2 and rtmidi.
package gomididrv

import (
	"fmt"
	"sync"
	"time"

	"github.com/leandrodaf/midiviewer/internal/midi/stream"
	"github.com/leandrodaf/midiviewer/sdk/contracts"
	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
	_ "gitlab.com/gomidi/midi/v2/drivers/rtmididrv" // registers the rtmidi driver
	"go.uber.org/multierr"
)

// Driver lists and opens input ports through the registered gomidi driver.
type Driver struct {
	logger     contracts.Logger
	filter     *contracts.MIDIEventFilter
	bufferSize int

	mu     sync.Mutex
	closed bool
	conns  map[*stream.Stream]struct{}
}

// NewDriver creates the gomidi backed input driver.
func NewDriver(options *contracts.ClientOptions) (contracts.InputDriver, error) {
	options.Logger.Info("MIDI driver created", options.Logger.Field().String("backend", "gomidi"))
	return &Driver{
		logger:     options.Logger,
		filter:     options.MIDIEventFilter,
		bufferSize: options.BufferSize,
		conns:      make(map[*stream.Stream]struct{}),
	}, nil
}

// ListInputs returns the input ports known to rtmidi.
func (d *Driver) ListInputs() ([]contracts.DeviceInfo, error) {
	if d.isClosed() {
		return nil, contracts.ErrDriverClosed
	}

	ins := midi.GetInPorts()
	if len(ins) == 0 {
		d.logger.Warn(contracts.ErrNoMIDIDevices.Error())
		return nil, nil
	}

	devices := make([]contracts.DeviceInfo, len(ins))
	for i, in := range ins {
		devices[i] = contracts.DeviceInfo{
			Name:       in.String(),
			EntityName: in.String(),
		}
	}
	return devices, nil
}

// OpenInput opens the port whose name matches exactly and starts listening to it.
func (d *Driver) OpenInput(name string) (contracts.InputConnection, error) {
	if d.isClosed() {
		return nil, contracts.ErrDriverClosed
	}

	in, err := findInPort(name)
	if err != nil {
		d.logger.Error("MIDI input not found", d.logger.Field().String("device", name))
		return nil, err
	}

	var stop func()
	s := stream.New(d.bufferSize, d.logger, d.filter, func() error {
		if stop != nil {
			stop()
		}
		d.logger.Debug("MIDI input released", d.logger.Field().String("device", name))
		return in.Close()
	})

	stop, err = midi.ListenTo(in, func(msg midi.Message, _ int32) {
		data := make([]byte, len(msg))
		copy(data, msg)
		s.Push(contracts.Message{
			Timestamp: uint64(time.Now().UTC().UnixNano()),
			Data:      data,
		})
	}, midi.HandleError(func(err error) {
		d.logger.Error("MIDI input failed", d.logger.Field().String("device", name), d.logger.Field().Error("error", err))
		s.Fail(fmt.Errorf("%w: %v", contracts.ErrDeviceRemoved, err))
	}))
	if err != nil {
		_ = in.Close()
		return nil, fmt.Errorf("listen to MIDI input %q: %w", name, err)
	}

	d.track(s)
	d.logger.Info("MIDI device connected", d.logger.Field().String("device", name))
	return s, nil
}

// Close ends every open connection and shuts the rtmidi driver down.
func (d *Driver) Close() error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	conns := make([]*stream.Stream, 0, len(d.conns))
	for s := range d.conns {
		conns = append(conns, s)
	}
	d.mu.Unlock()

	var err error
	for _, s := range conns {
		err = multierr.Append(err, s.Close())
	}
	midi.CloseDriver()
	d.logger.Info("MIDI driver closed")
	return err
}

func (d *Driver) track(s *stream.Stream) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.conns[s] = struct{}{}
	go func() {
		<-s.Done()
		d.mu.Lock()
		delete(d.conns, s)
		d.mu.Unlock()
	}()
}

func (d *Driver) isClosed() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.closed
}

func findInPort(name string) (drivers.In, error) {
	for _, in := range midi.GetInPorts() {
		if in.String() == name {
			return in, nil
		}
	}
	in, err := midi.FindInPort(name)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", contracts.ErrDeviceNotFound, name)
	}
	return in, nil
}
