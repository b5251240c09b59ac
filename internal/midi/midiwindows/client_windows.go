//go:build windows
// +build windows

package midiwindows

import (
	"fmt"
	"sync"
	"time"
	"unsafe"

	"github.com/leandrodaf/midiviewer/internal/midi/stream"
	"github.com/leandrodaf/midiviewer/sdk/contracts"
	"go.uber.org/multierr"
	"golang.org/x/sys/windows"
)

// Type definitions for MIDI handles
type HMIDIIN windows.Handle

// Constants for callback flags
const (
	CALLBACK_FUNCTION = 0x00030000 // Indicates that the callback is a function
	MIDI_IO_STATUS    = 0x00000020 // MIDI input/output status
)

// Constants for MIDI message types
const (
	MIM_OPEN      = 0x3C1 // MIDI device opened
	MIM_CLOSE     = 0x3C2 // MIDI device closed
	MIM_DATA      = 0x3C3 // MIDI data received
	MIM_ERROR     = 0x3C5 // MIDI error
	MIM_LONGERROR = 0x3C6 // Long MIDI error
	MIM_MOREDATA  = 0x3CC // More MIDI data available
)

// Struct representing MIDI device capabilities
type midiInCaps struct {
	wMid           uint16
	wPid           uint16
	vDriverVersion uint32
	szPname        [32]uint16
	dwSupport      uint32
}

// Load the winmm.dll library and required functions
var (
	winmm                = windows.NewLazySystemDLL("winmm.dll")
	procMidiInGetNumDevs = winmm.NewProc("midiInGetNumDevs")
	procMidiInGetDevCaps = winmm.NewProc("midiInGetDevCapsW")
	procMidiInOpen       = winmm.NewProc("midiInOpen")
	procMidiInStart      = winmm.NewProc("midiInStart")
	procMidiInStop       = winmm.NewProc("midiInStop")
	procMidiInClose      = winmm.NewProc("midiInClose")
)

// The callback is created once: windows.NewCallback slots are never freed.
var (
	callbackOnce sync.Once
	callback     uintptr

	registryMu sync.Mutex
	registry   = map[uintptr]*winConn{}
	nextID     uintptr
)

// winConn is one open WinMM input handle.
type winConn struct {
	handle HMIDIIN
	name   string
	logger contracts.Logger
	stream *stream.Stream
}

// InputDriver opens WinMM input devices.
type InputDriver struct {
	logger     contracts.Logger
	filter     *contracts.MIDIEventFilter
	bufferSize int

	mu     sync.Mutex
	closed bool
	conns  map[uintptr]*winConn
}

// NewMIDIClient creates the WinMM input driver.
func NewMIDIClient(options *contracts.ClientOptions) (contracts.InputDriver, error) {
	options.Logger.Info("MIDI client created for Windows", options.Logger.Field().String("backend", "winmm"))
	callbackOnce.Do(func() {
		callback = windows.NewCallback(midiInCallback)
	})

	return &InputDriver{
		logger:     options.Logger,
		filter:     options.MIDIEventFilter,
		bufferSize: options.BufferSize,
		conns:      make(map[uintptr]*winConn),
	}, nil
}

// ListInputs lists the available MIDI input devices
func (m *InputDriver) ListInputs() ([]contracts.DeviceInfo, error) {
	r0, _, _ := procMidiInGetNumDevs.Call()
	numDevices := uint32(r0)
	if numDevices == 0 {
		m.logger.Warn(contracts.ErrNoMIDIDevices.Error())
		return nil, nil
	}

	devices := make([]contracts.DeviceInfo, 0, numDevices)
	for i := uint32(0); i < numDevices; i++ {
		caps, err := deviceCaps(i)
		if err != nil {
			m.logger.Warn(fmt.Sprintf("Failed to get information for MIDI device %d", i))
			continue
		}
		deviceName := windows.UTF16ToString(caps.szPname[:])
		devices = append(devices, contracts.DeviceInfo{
			Name:         deviceName,
			EntityName:   deviceName,
			Manufacturer: fmt.Sprintf("MID: %d PID: %d", caps.wMid, caps.wPid),
		})
	}
	return devices, nil
}

// OpenInput opens and starts the device with the given name.
func (m *InputDriver) OpenInput(name string) (contracts.InputConnection, error) {
	m.mu.Lock()
	closed := m.closed
	m.mu.Unlock()
	if closed {
		return nil, contracts.ErrDriverClosed
	}

	deviceID, err := findDevice(name)
	if err != nil {
		m.logger.Error("MIDI input not found", m.logger.Field().String("device", name))
		return nil, err
	}

	conn := &winConn{name: name, logger: m.logger}

	registryMu.Lock()
	nextID++
	id := nextID
	registry[id] = conn
	registryMu.Unlock()

	conn.stream = stream.New(m.bufferSize, m.logger, m.filter, func() error {
		defer m.forget(id)
		return conn.close()
	})

	fdwOpen := CALLBACK_FUNCTION | MIDI_IO_STATUS
	r1, _, callErr := procMidiInOpen.Call(
		uintptr(unsafe.Pointer(&conn.handle)),
		uintptr(deviceID),
		callback,
		id,
		uintptr(fdwOpen),
	)
	if r1 != 0 {
		m.forget(id)
		m.logger.Error(fmt.Sprintf("Failed to open MIDI device %d: %v", deviceID, callErr))
		return nil, fmt.Errorf("failed to open MIDI device %q: %v", name, callErr)
	}

	r1, _, callErr = procMidiInStart.Call(uintptr(conn.handle))
	if r1 != 0 {
		_, _, _ = procMidiInClose.Call(uintptr(conn.handle))
		m.forget(id)
		m.logger.Error(fmt.Sprintf("Failed to start MIDI capture: %v", callErr))
		return nil, fmt.Errorf("failed to start MIDI device %q: %v", name, callErr)
	}

	m.mu.Lock()
	m.conns[id] = conn
	m.mu.Unlock()

	m.logger.Info(fmt.Sprintf("MIDI device %d connected", deviceID), m.logger.Field().String("device", name))
	return conn.stream, nil
}

// Close stops and closes every open device.
func (m *InputDriver) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	conns := make([]*winConn, 0, len(m.conns))
	for _, c := range m.conns {
		conns = append(conns, c)
	}
	m.mu.Unlock()

	var err error
	for _, c := range conns {
		err = multierr.Append(err, c.stream.Close())
	}
	m.logger.Info("WinMM driver closed")
	return err
}

func (m *InputDriver) forget(id uintptr) {
	registryMu.Lock()
	delete(registry, id)
	registryMu.Unlock()

	m.mu.Lock()
	delete(m.conns, id)
	m.mu.Unlock()
}

// close stops the capture and releases the handle
func (c *winConn) close() error {
	if c.handle == 0 {
		return fmt.Errorf("invalid MIDI device handle")
	}

	r1, _, err := procMidiInStop.Call(uintptr(c.handle))
	if r1 != 0 {
		c.logger.Error(fmt.Sprintf("Failed to stop MIDI capture: %v", err))
		return err
	}

	r1, _, err = procMidiInClose.Call(uintptr(c.handle))
	if r1 != 0 {
		c.logger.Error(fmt.Sprintf("Failed to close MIDI device: %v", err))
		return err
	}

	c.handle = 0
	return nil
}

// midiInCallback processes incoming MIDI messages
func midiInCallback(hMidiIn uintptr, wMsg uint32, dwInstance uintptr, dwParam1 uintptr, dwParam2 uintptr) uintptr {
	registryMu.Lock()
	c, ok := registry[dwInstance]
	registryMu.Unlock()
	if !ok {
		return 0
	}

	switch wMsg {
	case MIM_OPEN:
		c.logger.Debug("MIDI device opened", c.logger.Field().String("device", c.name))
	case MIM_CLOSE:
		c.logger.Debug("MIDI device closed", c.logger.Field().String("device", c.name))
		c.stream.Fail(fmt.Errorf("%w: %s", contracts.ErrDeviceRemoved, c.name))
	case MIM_DATA:
		status := byte(dwParam1 & 0xFF)
		data1 := byte((dwParam1 >> 8) & 0xFF)
		data2 := byte((dwParam1 >> 16) & 0xFF)

		c.stream.Push(contracts.Message{
			Timestamp: uint64(time.Now().UTC().UnixNano()),
			Data:      shortMessage(status, data1, data2),
		})
	case MIM_ERROR, MIM_LONGERROR:
		c.logger.Error(fmt.Sprintf("MIDI error: msg=0x%X", wMsg))
	case MIM_MOREDATA:
		c.logger.Debug("Received MIM_MOREDATA message; ignored")
	default:
		c.logger.Warn(fmt.Sprintf("Unknown MIDI message: 0x%X", wMsg))
	}

	return 0
}

func deviceCaps(id uint32) (midiInCaps, error) {
	var caps midiInCaps
	r1, _, _ := procMidiInGetDevCaps.Call(
		uintptr(id),
		uintptr(unsafe.Pointer(&caps)),
		unsafe.Sizeof(caps),
	)
	if r1 != 0 {
		return caps, fmt.Errorf("midiInGetDevCaps(%d) failed with code %d", id, r1)
	}
	return caps, nil
}

func findDevice(name string) (uint32, error) {
	r0, _, _ := procMidiInGetNumDevs.Call()
	for i := uint32(0); i < uint32(r0); i++ {
		caps, err := deviceCaps(i)
		if err != nil {
			continue
		}
		if windows.UTF16ToString(caps.szPname[:]) == name {
			return i, nil
		}
	}
	return 0, fmt.Errorf("%w: %s", contracts.ErrDeviceNotFound, name)
}
