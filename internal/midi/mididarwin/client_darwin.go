//go:build darwin
// +build darwin

package mididarwin

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/leandrodaf/midiviewer/internal/midi/stream"
	"github.com/leandrodaf/midiviewer/sdk/contracts"
	"github.com/youpy/go-coremidi"
	"go.uber.org/multierr"
)

// Error definitions for CoreMIDI connection issues.
var (
	ErrMIDIConnectionError = errors.New("error connecting to MIDI device")
	ErrCreateInputPort     = errors.New("error creating input port")
)

// internalPortConnection is an interface for handling disconnection from a MIDI port.
type internalPortConnection interface {
	Disconnect()
}

// InputDriver opens CoreMIDI sources on Darwin (macOS) systems.
// Each opened source gets its own input port so connections can be
// closed independently.
type InputDriver struct {
	logger     contracts.Logger
	client     coremidi.Client            // CoreMIDI client instance for MIDI operations.
	filter     *contracts.MIDIEventFilter // Filter for specific MIDI events.
	bufferSize int

	mu     sync.Mutex // Guards conns and closed.
	closed bool
	conns  map[*stream.Stream]struct{}
}

// NewMIDIClient creates the CoreMIDI client backing the driver.
func NewMIDIClient(options *contracts.ClientOptions) (contracts.InputDriver, error) {
	client, err := coremidi.NewClient(options.CoreMIDIConfig.ClientName)
	if err != nil {
		return nil, err
	}
	options.Logger.Info("MIDI client successfully created", options.Logger.Field().String("backend", "coremidi"))

	return &InputDriver{
		logger:     options.Logger,
		client:     client,
		filter:     options.MIDIEventFilter,
		bufferSize: options.BufferSize,
		conns:      make(map[*stream.Stream]struct{}),
	}, nil
}

// ListInputs retrieves the available CoreMIDI sources.
func (m *InputDriver) ListInputs() ([]contracts.DeviceInfo, error) {
	sources, err := coremidi.AllSources()
	if err != nil {
		return nil, fmt.Errorf("error listing MIDI sources: %w", err)
	}
	if len(sources) == 0 {
		m.logger.Warn(contracts.ErrNoMIDIDevices.Error())
		return nil, nil
	}

	devices := make([]contracts.DeviceInfo, len(sources))
	for i, source := range sources {
		sourceEntity := source.Entity()
		devices[i] = contracts.DeviceInfo{
			Name:         source.Name(),
			EntityName:   sourceEntity.Name(),
			Manufacturer: sourceEntity.Manufacturer(),
		}
	}
	return devices, nil
}

// OpenInput connects a new input port to the source with the given name.
func (m *InputDriver) OpenInput(name string) (contracts.InputConnection, error) {
	m.mu.Lock()
	closed := m.closed
	m.mu.Unlock()
	if closed {
		return nil, contracts.ErrDriverClosed
	}

	sources, err := coremidi.AllSources()
	if err != nil {
		return nil, fmt.Errorf("error retrieving MIDI sources: %w", err)
	}

	var (
		source coremidi.Source
		found  bool
	)
	for _, s := range sources {
		if s.Name() == name {
			source, found = s, true
			break
		}
	}
	if !found {
		m.logger.Error(contracts.ErrDeviceNotFound.Error(), m.logger.Field().String("deviceName", name))
		return nil, fmt.Errorf("%w: %s", contracts.ErrDeviceNotFound, name)
	}

	var (
		portConn internalPortConnection
		s        *stream.Stream
	)
	s = stream.New(m.bufferSize, m.logger, m.filter, func() error {
		if portConn != nil {
			portConn.Disconnect()
		}
		m.mu.Lock()
		delete(m.conns, s)
		m.mu.Unlock()
		return nil
	})

	inputPort, err := coremidi.NewInputPort(m.client, "Input Port "+name, func(_ coremidi.Source, packet coremidi.Packet) {
		m.handlePacket(s, packet)
	})
	if err != nil {
		m.logger.Error(ErrCreateInputPort.Error(), m.logger.Field().Error("error", err))
		return nil, fmt.Errorf("%w: %v", ErrCreateInputPort, err)
	}

	portConn, err = inputPort.Connect(source)
	if err != nil {
		m.logger.Error(ErrMIDIConnectionError.Error(), m.logger.Field().Error("error", err))
		return nil, fmt.Errorf("%w: %v", ErrMIDIConnectionError, err)
	}

	m.mu.Lock()
	m.conns[s] = struct{}{}
	m.mu.Unlock()

	m.logger.Info("MIDI device successfully connected", m.logger.Field().String("deviceName", name))
	return s, nil
}

// handlePacket forwards one CoreMIDI packet to the connection's stream.
func (m *InputDriver) handlePacket(s *stream.Stream, packet coremidi.Packet) {
	if len(packet.Data) == 0 {
		m.logger.Warn(contracts.ErrIncompleteMessage.Error())
		return
	}
	data := make([]byte, len(packet.Data))
	copy(data, packet.Data)
	s.Push(contracts.Message{
		Timestamp: uint64(time.Now().UTC().UnixNano()),
		Data:      data,
	})
}

// Close disconnects every open input port.
func (m *InputDriver) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	conns := make([]*stream.Stream, 0, len(m.conns))
	for s := range m.conns {
		conns = append(conns, s)
	}
	m.mu.Unlock()

	var err error
	for _, s := range conns {
		err = multierr.Append(err, s.Close())
	}
	m.logger.Info("CoreMIDI driver closed")
	return err
}
