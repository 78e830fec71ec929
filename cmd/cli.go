// SPDX-License-Identifier: MIT
package cmd

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"specverb/internal/build"
	"specverb/internal/config"
)

// Commands selected by the parsed arguments.
const (
	CommandRun    = "run"
	CommandList   = "list"
	CommandParams = "params"
)

// Invocation is the result of parsing the command line: which command to
// run and the configuration it runs with.
type Invocation struct {
	Command     string
	Config      *config.Config
	Params      []string // name=value assignments applied after the state file
	Interactive bool     // list: open the device browser
	OutputFile  string   // recording path, generated when not given
}

// flagValues receives the raw flag values before they are layered over the
// loaded configuration.
type flagValues struct {
	configPath      string
	inputDevice     int
	outputDevice    int
	channels        int
	sampleRate      float64
	framesPerBuffer int
	frameSize       int
	lowLatency      bool
	record          bool
	output          string
	state           string
	params          []string
	verbose         bool
	interactive     bool
}

// ParseArgs parses args (without the program name). It returns an
// Invocation with an empty Command when cobra only printed help or the
// version.
func ParseArgs(args []string) (*Invocation, error) {
	buildInfo := build.GetBuildFlags()
	defaults := config.Default()
	inv := &Invocation{}
	var flags flagValues

	rootCmd := &cobra.Command{
		Use:           buildInfo.Name,
		Short:         buildInfo.Description,
		Version:       buildInfo.Version,
		SilenceErrors: true,
		SilenceUsage:  true,
		Args:          cobra.NoArgs,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd:   true,
			DisableDescriptions: true,
			DisableNoDescFlag:   true,
			HiddenDefaultCmd:    true,
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			inv.Command = CommandRun
			return nil
		},
	}

	// Display help message
	rootCmd.SetHelpCommand(&cobra.Command{Hidden: true})

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List available audio devices",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			inv.Command = CommandList
			return nil
		},
	}
	listCmd.Flags().BoolVar(&flags.interactive, "interactive", false,
		"Browse devices and choose input, output and sample rate")
	rootCmd.AddCommand(listCmd)

	paramsCmd := &cobra.Command{
		Use:   "params",
		Short: "Show reverb parameters, their ranges and current values",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			inv.Command = CommandParams
			return nil
		},
	}
	rootCmd.AddCommand(paramsCmd)

	pf := rootCmd.PersistentFlags()

	pf.StringVarP(&flags.configPath, "config", "c", "",
		"Path to a YAML configuration file (default: specverb.yaml or config.yaml)")

	// Audio Device Configuration
	pf.IntVarP(&flags.inputDevice, "input-device", "i", defaults.Audio.InputDevice,
		"Input device ID. Use 'list' command to see available devices.")
	pf.IntVarP(&flags.outputDevice, "output-device", "d", defaults.Audio.OutputDevice,
		"Output device ID. Use 'list' command to see available devices.")
	pf.IntVar(&flags.channels, "channels", defaults.Audio.Channels,
		"Number of channels in and out (1=mono, 2=stereo)")
	pf.Float64VarP(&flags.sampleRate, "sample-rate", "s", defaults.Audio.SampleRate,
		"Sample rate, measured in Hertz (Hz)")
	pf.IntVarP(&flags.framesPerBuffer, "frames-per-buffer", "b", defaults.Audio.FramesPerBuffer,
		"The number of frames per buffer (affects latency)")
	pf.BoolVarP(&flags.lowLatency, "low-latency", "l", defaults.Audio.LowLatency,
		"Use low latency device settings")

	// Spectral Configuration
	pf.IntVarP(&flags.frameSize, "frame-size", "n", defaults.Spectral.FrameSize,
		"Analysis frame size, a power of two (latency is one frame less a sample)")

	// Recording Configuration
	pf.BoolVarP(&flags.record, "record", "r", defaults.Recording.Enabled,
		"Record the processed output")
	pf.StringVarP(&flags.output, "output", "o", "",
		"Output file name. Default is <output_dir>/specverb-DD-MM-YYYY-HHMMSS.wav")

	// Parameters
	pf.StringVar(&flags.state, "state", defaults.StateFile,
		"Parameter state file, loaded at start and saved on exit")
	pf.StringArrayVarP(&flags.params, "param", "p", nil,
		"Set a parameter, e.g. -p wet_dry=0.3 (repeatable)")

	// Debug Configuration
	pf.BoolVarP(&flags.verbose, "verbose", "v", false,
		"Show verbose output")

	rootCmd.SetArgs(args)
	if err := rootCmd.Execute(); err != nil {
		return nil, err
	}
	if inv.Command == "" {
		return inv, nil
	}

	cfg, err := config.LoadConfig(flags.configPath)
	if err != nil {
		return nil, err
	}
	applyFlags(cfg, pf.Changed, flags)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid flags: %w", err)
	}

	inv.Config = cfg
	inv.Params = flags.params
	inv.Interactive = flags.interactive
	inv.OutputFile = flags.output
	if inv.OutputFile == "" {
		inv.OutputFile = RecordingPath(cfg.Recording.OutputDir, time.Now())
	}
	return inv, nil
}

// applyFlags layers explicitly set flags over the file and environment
// configuration.
func applyFlags(cfg *config.Config, changed func(string) bool, f flagValues) {
	if changed("input-device") {
		cfg.Audio.InputDevice = f.inputDevice
	}
	if changed("output-device") {
		cfg.Audio.OutputDevice = f.outputDevice
	}
	if changed("channels") {
		cfg.Audio.Channels = f.channels
	}
	if changed("sample-rate") {
		cfg.Audio.SampleRate = f.sampleRate
	}
	if changed("frames-per-buffer") {
		cfg.Audio.FramesPerBuffer = f.framesPerBuffer
	}
	if changed("low-latency") {
		cfg.Audio.LowLatency = f.lowLatency
	}
	if changed("frame-size") {
		cfg.Spectral.FrameSize = f.frameSize
	}
	if changed("record") {
		cfg.Recording.Enabled = f.record
	}
	if changed("state") {
		cfg.StateFile = f.state
	}
	if f.verbose {
		cfg.LogLevel = "debug"
	}
}

// RecordingPath names a recording after its start time.
func RecordingPath(dir string, now time.Time) string {
	return filepath.Join(dir, "specverb-"+now.UTC().Format("02-01-2006-150405")+".wav")
}
