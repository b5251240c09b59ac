package midi

import (
	"errors"
	"fmt"
	"runtime"
	"sort"

	"github.com/leandrodaf/midiviewer/internal/midi/gomididrv"
	"github.com/leandrodaf/midiviewer/internal/midi/mididarwin"
	"github.com/leandrodaf/midiviewer/internal/midi/midimem"
	"github.com/leandrodaf/midiviewer/internal/midi/midiwindows"
	"github.com/leandrodaf/midiviewer/sdk/contracts"
)

// Backend names accepted by WithDriver.
const (
	DriverGoMIDI   = "gomidi"
	DriverCoreMIDI = "coremidi"
	DriverWinMM    = "winmm"
	DriverMemory   = "memory"
)

var (
	// ErrUnsupportedOS is returned when a backend is not available on the running operating system.
	ErrUnsupportedOS = errors.New("unsupported operating system")
	// ErrUnsupportedDriver is returned for an unknown backend name.
	ErrUnsupportedDriver = errors.New("unsupported MIDI driver")
)

type initializer func(*contracts.ClientOptions) (contracts.InputDriver, error)

// driverInitializers maps backend names to their constructors.
var driverInitializers = map[string]initializer{
	DriverGoMIDI:   gomididrv.NewDriver,
	DriverCoreMIDI: mididarwin.NewMIDIClient,  // macOS (Darwin) only.
	DriverWinMM:    midiwindows.NewMIDIClient, // Windows only.
	DriverMemory:   midimem.NewDriver,
}

// nativeDrivers lists the operating system each platform specific backend needs.
var nativeDrivers = map[string]string{
	DriverCoreMIDI: "darwin",
	DriverWinMM:    "windows",
}

// Drivers returns the backend names in a stable order.
func Drivers() []string {
	names := make([]string, 0, len(driverInitializers))
	for name := range driverInitializers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// NewDriver creates an input driver from the given options.
// It applies default options and selects the backend named by WithDriver.
//
// opts ...contracts.Option: A variadic list of option functions to customize the driver.
//
// Returns:
//   - contracts.InputDriver: The selected backend.
//   - error: ErrUnsupportedDriver, ErrUnsupportedOS or a backend initialization error.
func NewDriver(opts ...contracts.Option) (contracts.InputDriver, error) {
	options, err := applyDefaultOptions(opts...)
	if err != nil {
		return nil, err
	}

	return newDriver(&options)
}

func newDriver(opts *contracts.ClientOptions) (contracts.InputDriver, error) {
	initialize, exists := driverInitializers[opts.Driver]
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedDriver, opts.Driver)
	}
	if goos, native := nativeDrivers[opts.Driver]; native && goos != runtime.GOOS {
		return nil, fmt.Errorf("%w: %s driver needs %s, running on %s", ErrUnsupportedOS, opts.Driver, goos, runtime.GOOS)
	}

	driver, err := initialize(opts)
	if err != nil {
		opts.Logger.Error("Failed to initialize MIDI driver",
			opts.Logger.Field().String("driver", opts.Driver),
			opts.Logger.Field().Error("error", err))
		return nil, err
	}
	return driver, nil
}
