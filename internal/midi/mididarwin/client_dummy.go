//go:build !darwin
// +build !darwin

package mididarwin

import (
	"fmt"

	"github.com/leandrodaf/midiviewer/sdk/contracts"
)

// ErrUnavailable is returned when CoreMIDI is requested outside macOS.
var ErrUnavailable = fmt.Errorf("CoreMIDI is not available on this platform")

// NewMIDIClient refuses to create a CoreMIDI driver on non-macOS systems.
func NewMIDIClient(options *contracts.ClientOptions) (contracts.InputDriver, error) {
	options.Logger.Warn("CoreMIDI driver requested on a non-macOS system")
	return nil, ErrUnavailable
}
