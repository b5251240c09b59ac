// Package config loads the viewer settings from the environment.
package config

import (
	"fmt"
	"io"
	"strings"

	envstruct "code.cloudfoundry.org/go-envstruct"
	"github.com/leandrodaf/midiviewer/sdk/contracts"
)

// Config holds the settings shared by every midiviewer command.
// Command line flags take precedence over these values.
type Config struct {
	Driver      string   `env:"MIDIVIEWER_DRIVER,       report"`
	LogLevel    string   `env:"MIDIVIEWER_LOG_LEVEL,    report"`
	LogFile     string   `env:"MIDIVIEWER_LOG_FILE,     report"`
	Output      string   `env:"MIDIVIEWER_OUTPUT,       report"`
	MetricsAddr string   `env:"MIDIVIEWER_METRICS_ADDR, report"`
	BufferSize  int      `env:"MIDIVIEWER_BUFFER_SIZE,  report"`
	Device      string   `env:"MIDIVIEWER_DEVICE,       report"`
	Commands    []string `env:"MIDIVIEWER_COMMANDS, report"`
}

// Default returns the configuration used when nothing is set.
func Default() Config {
	return Config{
		Driver:   "gomidi",
		LogLevel: "warn",
	}
}

// Load reads the environment on top of Default.
func Load() (Config, error) {
	cfg := Default()
	if err := envstruct.Load(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to load config from environment: %w", err)
	}
	return cfg, nil
}

// Report writes the reportable settings to w as a table.
func Report(w io.Writer, cfg *Config) error {
	envstruct.ReportWriter = w
	return envstruct.WriteReport(cfg)
}

// ParseLogLevel converts a level name to a contracts.LogLevel.
func ParseLogLevel(name string) (contracts.LogLevel, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "info":
		return contracts.InfoLevel, nil
	case "debug":
		return contracts.DebugLevel, nil
	case "warn", "warning":
		return contracts.WarnLevel, nil
	case "error":
		return contracts.ErrorLevel, nil
	case "fatal":
		return contracts.FatalLevel, nil
	default:
		return contracts.InfoLevel, fmt.Errorf("unknown log level %q", name)
	}
}

var commandNames = map[string]contracts.MIDICommand{
	"noteoff":           contracts.NoteOff,
	"noteon":            contracts.NoteOn,
	"polyaftertouch":    contracts.PolyAftertouch,
	"controlchange":     contracts.ControlChange,
	"programchange":     contracts.ProgramChange,
	"channelaftertouch": contracts.ChannelAftertouch,
	"pitchbend":         contracts.PitchBend,
}

// ParseFilter builds an event filter from command names such as
// "noteon" or "control_change". No names means no filter.
func ParseFilter(names []string) (*contracts.MIDIEventFilter, error) {
	var filter contracts.MIDIEventFilter
	for _, name := range names {
		key := strings.ToLower(strings.NewReplacer("_", "", "-", "", " ", "").Replace(name))
		if key == "" {
			continue
		}
		command, ok := commandNames[key]
		if !ok {
			return nil, fmt.Errorf("unknown MIDI command %q", name)
		}
		filter.Commands = append(filter.Commands, command)
	}
	if len(filter.Commands) == 0 {
		return nil, nil
	}
	return &filter, nil
}
