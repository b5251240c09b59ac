//go:build !windows
// +build !windows

package midiwindows

import (
	"fmt"

	"github.com/leandrodaf/midiviewer/sdk/contracts"
)

// ErrUnavailable is returned when WinMM is requested outside Windows.
var ErrUnavailable = fmt.Errorf("WinMM is not available on this platform")

// NewMIDIClient refuses to create a WinMM driver on non-Windows systems.
func NewMIDIClient(options *contracts.ClientOptions) (contracts.InputDriver, error) {
	options.Logger.Warn("WinMM driver requested on a non-Windows system")
	return nil, ErrUnavailable
}
