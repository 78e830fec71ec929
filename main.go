// SPDX-License-Identifier: MIT
package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"specverb/cmd"
	"specverb/internal/audio"
	"specverb/internal/build"
	"specverb/internal/log"
	"specverb/internal/params"
	"specverb/internal/spectral"
	"specverb/internal/transport"
	"specverb/internal/transport/udp"
	"specverb/internal/tui"
)

// main is the entry point for the spectral reverb.
// The program flow is divided into three distinct phases:
//
// 1. Startup Phase (Cold Path):
//   - Initialize build information
//   - Configure runtime settings
//   - Parse command line arguments and configuration
//   - Restore parameter state
//   - Execute one-off commands if requested
//
// 2. Concurrent Phase (Hot Path):
//   - Start the duplex stream driving the processor
//   - Start recording if enabled
//   - Publish magnitude snapshots to display transports
//
// 3. Shutdown Phase (Cold Path):
//   - Handle termination signals
//   - Stop publishing and recording
//   - Clean up resources and save parameter state
func main() {
	// ==================== STARTUP PHASE (Cold Path) ====================

	if err := build.Initialize(); err != nil {
		log.Fatal(err)
	}

	// Limit OS threads to optimize for real-time audio processing:
	// - One thread dedicated to the audio callback (time-critical)
	// - One thread for display publishing, transports and I/O
	runtime.GOMAXPROCS(2)

	inv, err := cmd.ParseArgs(os.Args[1:])
	if err != nil {
		log.Fatal(err)
	}
	if inv.Command == "" {
		return // help or version was printed
	}
	cfg := inv.Config

	level, _ := log.ParseLevel(cfg.LogLevel)
	log.SetLevel(level)
	log.Infof("%s", build.GetBuildFlags())

	store, err := loadParams(cfg.Params, cfg.StateFile, inv.Params)
	if err != nil {
		log.Fatal(err)
	}

	switch inv.Command {
	case cmd.CommandParams:
		if err := cmd.PrintParams(os.Stdout, store); err != nil {
			log.Fatal(err)
		}
		return
	case cmd.CommandList:
		if err := listDevices(inv); err != nil {
			log.Fatal(err)
		}
		return
	}

	if err := run(inv, store); err != nil {
		log.Fatal(err)
	}
}

// loadParams builds the parameter store from the config section, then the
// state file if it exists, then explicit assignments.
func loadParams(initial params.State, stateFile string, assignments []string) (*params.Store, error) {
	store := params.NewStore()
	store.Replace(initial.Params())

	if stateFile != "" {
		err := store.LoadState(stateFile)
		switch {
		case err == nil:
			log.Infof("parameters: restored state from %s", stateFile)
		case errors.Is(err, fs.ErrNotExist):
			log.Debugf("parameters: no state file at %s yet", stateFile)
		default:
			return nil, err
		}
	}

	for _, a := range assignments {
		if err := store.Apply(a); err != nil {
			return nil, err
		}
	}
	return store, nil
}

// listDevices handles the one-off device listing and the interactive
// device browser.
func listDevices(inv *cmd.Invocation) error {
	if err := audio.Initialize(); err != nil {
		return err
	}
	defer audio.Terminate()

	if !inv.Interactive {
		return audio.ListDevices(os.Stdout)
	}

	sel, ok, err := tui.StartDeviceListUI()
	if err != nil || !ok {
		return err
	}
	sel.Apply(&inv.Config.Audio)
	fmt.Println("Add this to your configuration file:")
	fmt.Println()
	return cmd.PrintAudioConfig(os.Stdout, inv.Config.Audio)
}

func run(inv *cmd.Invocation, store *params.Store) error {
	cfg := inv.Config

	transform, err := spectral.NewTransform(cfg.Spectral.Transform, cfg.Spectral.FrameSize)
	if err != nil {
		return err
	}
	processor, err := spectral.NewProcessor(cfg.ProcessorConfig(),
		spectral.WithTransform(transform),
		spectral.WithParams(store),
	)
	if err != nil {
		return err
	}

	if err := audio.Initialize(); err != nil {
		return err
	}
	defer audio.Terminate()

	engine, err := audio.NewEngine(cfg.Audio, processor)
	if err != nil {
		return err
	}

	// Done channel for signal handling
	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	// ==================== CONCURRENT PHASE (Hot Path) ====================

	// CRITICAL: Start of real-time audio processing
	// The first call to Start triggers PortAudio to begin calling the
	// callback function, marking the start of the hot path
	if err := engine.Start(); err != nil {
		return err
	}

	if cfg.Recording.Enabled {
		if err := engine.StartRecording(inv.OutputFile, cfg.Recording.BitDepth); err != nil {
			engine.Close()
			return err
		}
	}

	publisher, err := startPublisher(cfg.Display.RateHz, processor, store, inv)
	if err != nil {
		engine.Close()
		return err
	}

	fmt.Printf("%s running, press Ctrl+C to stop.\n", build.GetBuildFlags().Name)

	// Block until termination signal is received
	<-done

	// ==================== SHUTDOWN PHASE (Cold Path) ====================

	var errs []error
	if publisher != nil {
		errs = append(errs, publisher.Close())
	}
	if cfg.Recording.Enabled {
		fmt.Printf("\nRecording saved to: %s\n", inv.OutputFile)
	}
	errs = append(errs, engine.Close())

	stats := engine.Stats()
	log.Infof("processed %d blocks, %d hops, %d failed callbacks, %d xruns",
		stats.Blocks, processor.Frames(), stats.Errors, stats.XRuns)

	if cfg.StateFile != "" {
		if err := store.SaveState(cfg.StateFile); err != nil {
			errs = append(errs, err)
		} else {
			log.Infof("parameters: saved state to %s", cfg.StateFile)
		}
	}
	return errors.Join(errs...)
}

// startPublisher connects the configured display transports to the
// processor's magnitude snapshot. It returns nil when no transport is
// enabled.
func startPublisher(rateHz float64, processor *spectral.Processor, store *params.Store, inv *cmd.Invocation) (*transport.Publisher, error) {
	display := inv.Config.Display
	var transports []transport.Transport
	closeAll := func() {
		for _, t := range transports {
			t.Close()
		}
	}

	if display.WebSocketEnabled {
		ws, err := transport.NewWebSocketTransport(display.WebSocketAddress, store)
		if err != nil {
			return nil, err
		}
		transports = append(transports, ws)
	}
	if display.UDPEnabled {
		u, err := udp.NewTransport(display.UDPTargetAddress)
		if err != nil {
			closeAll()
			return nil, err
		}
		transports = append(transports, u)
	}
	if display.LogFrames {
		transports = append(transports, transport.NewLoggingTransport())
	}
	if len(transports) == 0 {
		return nil, nil
	}

	publisher, err := transport.NewPublisher(processor.Magnitudes(),
		processor.SampleRate(), processor.FrameSize(), rateHz, transports...)
	if err != nil {
		closeAll()
		return nil, err
	}
	publisher.Start()
	return publisher, nil
}
