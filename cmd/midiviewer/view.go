package main

import (
	"fmt"
	"io"
	"sync"

	"github.com/leandrodaf/midiviewer/sdk/contracts"
)

// terminalView prints controller notifications as plain lines.
type terminalView struct {
	mu        sync.Mutex
	out       io.Writer
	errOut    io.Writer
	listening bool
}

func newTerminalView(out, errOut io.Writer) *terminalView {
	return &terminalView{out: out, errOut: errOut}
}

func (v *terminalView) ShowDevices(devices []contracts.DeviceInfo) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if len(devices) == 0 {
		fmt.Fprintln(v.out, "No MIDI input devices found.")
		return
	}
	fmt.Fprintln(v.out, "Input devices:")
	for i, d := range devices {
		fmt.Fprintf(v.out, "  %d: %s\n", i, d.Name)
	}
}

func (v *terminalView) SetListening(listening bool) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.listening == listening {
		return
	}
	v.listening = listening
	if listening {
		fmt.Fprintln(v.out, "Type \"stop\" to stop listening, \"quit\" to exit.")
		return
	}
	fmt.Fprintln(v.out, "Type \"start <device>\" to listen, \"refresh\" to reload devices.")
}

func (v *terminalView) Log(line string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	fmt.Fprintln(v.out, line)
}

func (v *terminalView) Warn(title, message string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	fmt.Fprintf(v.errOut, "%s: %s\n", title, message)
}

// Print writes command output, such as the help text.
func (v *terminalView) Print(text string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	fmt.Fprintln(v.out, text)
}

// Error reports a failed command.
func (v *terminalView) Error(err error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	fmt.Fprintln(v.errOut, err)
}

func (v *terminalView) Listening() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.listening
}
