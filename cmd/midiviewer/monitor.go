package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/leandrodaf/midiviewer/internal/config"
	"github.com/leandrodaf/midiviewer/internal/metrics"
	"github.com/leandrodaf/midiviewer/internal/sinks"
	"github.com/leandrodaf/midiviewer/sdk/contracts"
	"github.com/leandrodaf/midiviewer/sdk/listener"
	"github.com/leandrodaf/midiviewer/sdk/monitor"
	"github.com/manifoldco/promptui"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 2 * time.Second

// Interactive commands read from stdin.
const (
	actionStart   = "start"
	actionStop    = "stop"
	actionToggle  = "toggle"
	actionRefresh = "refresh"
	actionDevices = "devices"
	actionQuit    = "quit"
	actionHelp    = "help"
)

var actionAliases = map[string]string{
	"s": actionStart, "start": actionStart,
	"x": actionStop, "stop": actionStop,
	"t": actionToggle, "toggle": actionToggle,
	"r": actionRefresh, "refresh": actionRefresh,
	"l": actionDevices, "ls": actionDevices, "devices": actionDevices,
	"q": actionQuit, "quit": actionQuit, "exit": actionQuit,
	"h": actionHelp, "?": actionHelp, "help": actionHelp,
}

const helpText = `Commands:
  start [device|index]  listen to a device
  stop                  stop listening
  toggle [device]       start or stop
  refresh               reload the device list
  devices               show the device list
  quit                  exit`

func runMonitor(cmd *cobra.Command, cfg *config.Config) error {
	driver, log, err := newInputDriver(cfg)
	if err != nil {
		return err
	}
	if err := reportSettings(cmd.ErrOrStderr(), cfg); err != nil {
		log.Warn("Failed to report settings", log.Field().Error("error", err))
	}

	reg := prometheus.NewRegistry()
	listenerMetrics, err := metrics.NewListener(reg)
	if err != nil {
		_ = driver.Close()
		return err
	}

	view := newTerminalView(cmd.OutOrStdout(), cmd.ErrOrStderr())
	opts := []monitor.Option{
		monitor.WithLogger(log),
		monitor.WithSessionOptions(listener.WithMetrics(listenerMetrics)),
	}

	if cfg.Output != "" {
		fileSink, err := sinks.NewFileSink(afero.NewOsFs(), cfg.Output, log)
		if err != nil {
			_ = driver.Close()
			return err
		}
		defer fileSink.Close()
		opts = append(opts, monitor.WithMessageSink(fileSink.Sink()))
	}

	controller := monitor.NewController(driver, view, opts...)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.MetricsAddr != "" {
		server := &http.Server{Addr: cfg.MetricsAddr, Handler: metrics.Handler(reg)}
		go func() {
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error("Metrics server failed", log.Field().Error("error", err))
			}
		}()
		defer shutdownServer(server)
	}

	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := controller.Close(closeCtx); err != nil {
			log.Warn("Shutdown did not complete cleanly", log.Field().Error("error", err))
		}
	}()

	if err := controller.Refresh(); err != nil {
		return err
	}

	device := cfg.Device
	if device == "" {
		device, err = selectDevice(controller.Devices())
		if err != nil {
			return err
		}
	}
	if err := controller.Start(device); err != nil && !errors.Is(err, monitor.ErrNoDeviceSelected) {
		return err
	}

	return commandLoop(ctx, controller, view, cmd.InOrStdin())
}

// selectDevice asks the user to pick an input device. An interrupted
// prompt or an empty device list yields an empty name.
func selectDevice(devices []contracts.DeviceInfo) (string, error) {
	if len(devices) == 0 {
		return "", nil
	}
	prompt := promptui.Select{
		Label: "Input Device",
		Items: contracts.DeviceNames(devices),
	}
	_, name, err := prompt.Run()
	if errors.Is(err, promptui.ErrInterrupt) || errors.Is(err, promptui.ErrEOF) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("device selection: %w", err)
	}
	return name, nil
}

func commandLoop(ctx context.Context, controller *monitor.Controller, view *terminalView, in io.Reader) error {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				// stdin closed: keep listening until interrupted.
				<-ctx.Done()
				return nil
			}
			quit, err := dispatch(ctx, controller, view, line)
			if err != nil {
				view.Error(err)
			}
			if quit {
				return nil
			}
		}
	}
}

func dispatch(ctx context.Context, controller *monitor.Controller, view *terminalView, line string) (bool, error) {
	action, arg := parseCommand(line)
	switch action {
	case "":
		return false, nil
	case actionStart:
		return false, startDevice(controller, arg)
	case actionStop:
		return false, stopListening(ctx, controller)
	case actionToggle:
		if controller.Listening() {
			return false, stopListening(ctx, controller)
		}
		return false, startDevice(controller, arg)
	case actionRefresh:
		return false, controller.Refresh()
	case actionDevices:
		view.ShowDevices(controller.Devices())
		return false, nil
	case actionQuit:
		return true, nil
	case actionHelp:
		view.Print(helpText)
		return false, nil
	default:
		return false, fmt.Errorf("unknown command %q, type \"help\"", line)
	}
}

func startDevice(controller *monitor.Controller, arg string) error {
	err := controller.Start(resolveDevice(arg, controller.Devices()))
	if errors.Is(err, monitor.ErrNoDeviceSelected) {
		return nil
	}
	return err
}

func stopListening(ctx context.Context, controller *monitor.Controller) error {
	stopCtx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()
	return controller.Stop(stopCtx)
}

// parseCommand splits an input line into a canonical action and its argument.
func parseCommand(line string) (string, string) {
	line = strings.TrimSpace(line)
	if line == "" {
		return "", ""
	}
	word, arg, _ := strings.Cut(line, " ")
	action, ok := actionAliases[strings.ToLower(word)]
	if !ok {
		return "unknown", line
	}
	return action, strings.TrimSpace(arg)
}

// resolveDevice accepts a device name or its index in devices.
func resolveDevice(arg string, devices []contracts.DeviceInfo) string {
	if i, err := strconv.Atoi(arg); err == nil && i >= 0 && i < len(devices) {
		return devices[i].Name
	}
	return arg
}

func shutdownServer(server *http.Server) {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	_ = server.Shutdown(ctx)
}
