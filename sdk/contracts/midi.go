package contracts

import (
	"errors"

	gomidi "gitlab.com/gomidi/midi/v2"
)

// Errors shared by every driver implementation.
var (
	ErrNoMIDIDevices     = errors.New("no MIDI devices found")
	ErrDeviceNotFound    = errors.New("MIDI device not found")
	ErrDeviceRemoved     = errors.New("MIDI device removed")
	ErrDriverClosed      = errors.New("MIDI driver closed")
	ErrIncompleteMessage = errors.New("incomplete MIDI message")
)

// Message is a single MIDI event as received from an input device.
type Message struct {
	Timestamp uint64 // Timestamp indicates when the event was received, in Unix nanoseconds.
	Data      []byte // Data holds the raw message bytes, status byte first.
}

// Command returns the status nibble of a channel message (e.g. NoteOn),
// or the whole status byte for system messages.
func (m Message) Command() MIDICommand {
	if len(m.Data) == 0 {
		return 0
	}
	if m.Data[0] >= 0xF0 {
		return MIDICommand(m.Data[0])
	}
	return MIDICommand(m.Data[0] & 0xF0)
}

// Channel returns the zero-based channel of a channel message.
func (m Message) Channel() (uint8, bool) {
	if len(m.Data) == 0 || m.Data[0] >= 0xF0 {
		return 0, false
	}
	return m.Data[0] & 0x0F, true
}

// String renders the message the way gomidi prints it,
// e.g. "NoteOn channel: 0 key: 60 velocity: 100".
func (m Message) String() string {
	return gomidi.Message(m.Data).String()
}

// InputConnection is an open subscription to one input device.
//
// Next blocks until a message arrives or the connection ends. It returns
// io.EOF once the connection has been closed, or the error that terminated
// it (for instance ErrDeviceRemoved). Close must be safe to call from any
// goroutine, more than once, and must unblock a pending Next.
type InputConnection interface {
	Next() (Message, error)
	Close() error
}

// InputDriver enumerates and opens MIDI input devices.
type InputDriver interface {
	ListInputs() ([]DeviceInfo, error)              // Lists all available input devices.
	OpenInput(name string) (InputConnection, error) // Opens the input device with the given name.
	Close() error                                   // Releases the driver.
}

// Sink consumes the human-readable lines produced by a listener,
// one line per status change, message or error.
type Sink func(line string)
