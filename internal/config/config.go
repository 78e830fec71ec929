// SPDX-License-Identifier: MIT
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"specverb/internal/log"
	"specverb/internal/params"
	"specverb/internal/spectral"
	"specverb/pkg/bitint"
)

// Hardware and processing limits.
const (
	MinDeviceID     = -1     // -1 represents the system default device
	MinSampleRate   = 8000   // Minimum usable sample rate (Hz)
	MaxSampleRate   = 192000 // Maximum supported sample rate (Hz)
	MaxBufferFrames = 8192   // Maximum frames per buffer
	MaxChannels     = 8
	MaxFrameSize    = 1 << 16
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "SPECVERB_"

// Config represents the main application configuration structure, loaded from YAML.
type Config struct {
	LogLevel  string          `yaml:"log_level"`  // Logging level (e.g., "debug", "info", "warn", "error").
	Audio     AudioConfig     `yaml:"audio"`      // Live device settings.
	Spectral  SpectralConfig  `yaml:"spectral"`   // Analysis/synthesis shape.
	Params    params.State    `yaml:"params"`     // Initial reverb parameters.
	Display   DisplayConfig   `yaml:"display"`    // Magnitude snapshot publishing.
	Recording RecordingConfig `yaml:"recording"`  // Capture of the processed output.
	StateFile string          `yaml:"state_file"` // Persisted parameter state, loaded at start and saved on exit.
}

// AudioConfig holds settings related to audio input/output.
type AudioConfig struct {
	InputDevice     int     `yaml:"input_device"`      // PortAudio device index for audio input (-1 for default).
	OutputDevice    int     `yaml:"output_device"`     // PortAudio device index for audio output (-1 for default).
	SampleRate      float64 `yaml:"sample_rate"`       // Sample rate in Hz (e.g., 44100, 48000).
	FramesPerBuffer int     `yaml:"frames_per_buffer"` // Frames per device callback.
	Channels        int     `yaml:"channels"`          // Channels in and out; layouts are always symmetric.
	LowLatency      bool    `yaml:"low_latency"`       // Request low latency settings from the PortAudio devices.
}

// SpectralConfig holds the frame geometry and transform backend.
type SpectralConfig struct {
	FrameSize  int    `yaml:"frame_size"`  // Analysis frame N, a power of two.
	HopDivisor int    `yaml:"hop_divisor"` // Hop is frame_size / hop_divisor.
	Transform  string `yaml:"transform"`   // "real" or "complex".
}

// HopSize returns the hop length implied by the frame size and divisor.
func (s SpectralConfig) HopSize() int {
	if s.HopDivisor <= 0 {
		return 0
	}
	return s.FrameSize / s.HopDivisor
}

// DisplayConfig holds settings for the magnitude display publisher.
type DisplayConfig struct {
	RateHz           float64 `yaml:"rate_hz"`            // Snapshot publish rate.
	WebSocketEnabled bool    `yaml:"websocket_enabled"`  // Serve JSON frames over a websocket.
	WebSocketAddress string  `yaml:"websocket_address"`  // Listen address, e.g. ":8080".
	UDPEnabled       bool    `yaml:"udp_enabled"`        // Send binary frames over UDP.
	UDPTargetAddress string  `yaml:"udp_target_address"` // Target address and port for UDP packets (e.g., "127.0.0.1:9090").
	LogFrames        bool    `yaml:"log_frames"`         // Log a summary of every published frame at debug level.
}

// RecordingConfig holds settings related to audio recording functionality.
type RecordingConfig struct {
	Enabled   bool   `yaml:"enabled"`    // Record the processed output to file.
	OutputDir string `yaml:"output_dir"` // Directory to save recorded audio files.
	BitDepth  int    `yaml:"bit_depth"`  // Bit depth for recorded audio (16, 24 or 32).
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		LogLevel: "info",
		Audio: AudioConfig{
			InputDevice:     MinDeviceID,
			OutputDevice:    MinDeviceID,
			SampleRate:      48000,
			FramesPerBuffer: 512,
			Channels:        2,
			LowLatency:      false,
		},
		Spectral: SpectralConfig{
			FrameSize:  spectral.DefaultFrameSize,
			HopDivisor: spectral.DefaultHopDivisor,
			Transform:  spectral.TransformReal,
		},
		Params: params.DefaultState(),
		Display: DisplayConfig{
			RateHz:           30,
			WebSocketEnabled: false,
			WebSocketAddress: ":8080",
			UDPEnabled:       false,
			UDPTargetAddress: "127.0.0.1:9090",
		},
		Recording: RecordingConfig{
			Enabled:   false,
			OutputDir: "./recordings",
			BitDepth:  16,
		},
	}
}

// DefaultCandidates are searched in order when no config path is given.
var DefaultCandidates = []string{"specverb.yaml", "config.yaml"}

// LoadConfig loads configuration from a YAML file specified by path. If path is empty,
// it searches DefaultCandidates. If no file is found, it uses built-in defaults.
// After loading defaults or from file, it applies environment variable overrides
// and validates the final configuration.
func LoadConfig(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		for _, candidate := range DefaultCandidates {
			if _, err := os.Stat(candidate); err == nil {
				path = candidate
				break
			}
		}
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
		log.Debugf("configuration: loaded %s", path)
	}

	// Apply environment variable overrides AFTER loading from file.
	if err := cfg.applyEnvOverrides(os.LookupEnv); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks every section for values the engine cannot run with.
func (c *Config) Validate() error {
	if _, ok := log.ParseLevel(c.LogLevel); !ok {
		return fmt.Errorf("log_level %q is not one of debug, info, warn, error", c.LogLevel)
	}

	a := c.Audio
	if a.InputDevice < MinDeviceID || a.OutputDevice < MinDeviceID {
		return fmt.Errorf("audio device ids must be >= %d", MinDeviceID)
	}
	if a.SampleRate < MinSampleRate || a.SampleRate > MaxSampleRate {
		return fmt.Errorf("audio.sample_rate %v outside [%d, %d]", a.SampleRate, MinSampleRate, MaxSampleRate)
	}
	if a.FramesPerBuffer <= 0 || a.FramesPerBuffer > MaxBufferFrames {
		return fmt.Errorf("audio.frames_per_buffer %d outside [1, %d]", a.FramesPerBuffer, MaxBufferFrames)
	}
	if a.Channels < 1 || a.Channels > MaxChannels {
		return fmt.Errorf("audio.channels %d outside [1, %d]", a.Channels, MaxChannels)
	}

	s := c.Spectral
	if !bitint.IsPowerOfTwo(s.FrameSize) || s.FrameSize < spectral.MinFrameSize || s.FrameSize > MaxFrameSize {
		return fmt.Errorf("spectral.frame_size %d must be a power of two in [%d, %d]", s.FrameSize, spectral.MinFrameSize, MaxFrameSize)
	}
	if s.HopDivisor < spectral.MinOverlap || !bitint.Divides(s.HopDivisor, s.FrameSize) {
		return fmt.Errorf("spectral.hop_divisor %d must be >= %d and divide frame_size %d", s.HopDivisor, spectral.MinOverlap, s.FrameSize)
	}
	if _, err := spectral.NewTransform(s.Transform, s.FrameSize); err != nil {
		return fmt.Errorf("spectral.transform: %w", err)
	}

	if c.Display.RateHz <= 0 {
		return fmt.Errorf("display.rate_hz must be positive, got %v", c.Display.RateHz)
	}
	if c.Display.UDPEnabled && !strings.Contains(c.Display.UDPTargetAddress, ":") {
		return fmt.Errorf("display.udp_target_address %q appears invalid (missing port?)", c.Display.UDPTargetAddress)
	}
	if c.Display.WebSocketEnabled && c.Display.WebSocketAddress == "" {
		return fmt.Errorf("display.websocket_address must be set when the websocket is enabled")
	}

	switch c.Recording.BitDepth {
	case 16, 24, 32:
	default:
		return fmt.Errorf("recording.bit_depth %d must be 16, 24 or 32", c.Recording.BitDepth)
	}

	return nil
}

// applyEnvOverrides reads SPECVERB_* variables through lookup. Malformed
// values are errors rather than being silently ignored.
func (c *Config) applyEnvOverrides(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if val, ok := lookup(EnvPrefix + key); ok {
			*dst = val
			log.Infof("configuration: overriding %s from env: %s", strings.ToLower(key), val)
		}
	}
	integer := func(key string, dst *int) error {
		val, ok := lookup(EnvPrefix + key)
		if !ok {
			return nil
		}
		n, err := strconv.Atoi(val)
		if err != nil {
			return fmt.Errorf("env %s%s: %w", EnvPrefix, key, err)
		}
		*dst = n
		log.Infof("configuration: overriding %s from env: %d", strings.ToLower(key), n)
		return nil
	}
	boolean := func(key string, dst *bool) error {
		val, ok := lookup(EnvPrefix + key)
		if !ok {
			return nil
		}
		b, err := strconv.ParseBool(val)
		if err != nil {
			return fmt.Errorf("env %s%s: %w", EnvPrefix, key, err)
		}
		*dst = b
		log.Infof("configuration: overriding %s from env: %v", strings.ToLower(key), b)
		return nil
	}

	str("LOG_LEVEL", &c.LogLevel)
	str("TRANSFORM", &c.Spectral.Transform)
	str("WS_ADDRESS", &c.Display.WebSocketAddress)
	str("UDP_TARGET_ADDRESS", &c.Display.UDPTargetAddress)
	str("STATE_FILE", &c.StateFile)
	str("RECORDING_DIR", &c.Recording.OutputDir)

	if val, ok := lookup(EnvPrefix + "SAMPLE_RATE"); ok {
		rate, err := strconv.ParseFloat(val, 64)
		if err != nil {
			return fmt.Errorf("env %sSAMPLE_RATE: %w", EnvPrefix, err)
		}
		c.Audio.SampleRate = rate
		log.Infof("configuration: overriding sample_rate from env: %v", rate)
	}

	for _, o := range []struct {
		key string
		dst *int
	}{
		{"INPUT_DEVICE", &c.Audio.InputDevice},
		{"OUTPUT_DEVICE", &c.Audio.OutputDevice},
		{"CHANNELS", &c.Audio.Channels},
		{"FRAMES_PER_BUFFER", &c.Audio.FramesPerBuffer},
		{"FRAME_SIZE", &c.Spectral.FrameSize},
	} {
		if err := integer(o.key, o.dst); err != nil {
			return err
		}
	}

	for _, o := range []struct {
		key string
		dst *bool
	}{
		{"WS_ENABLED", &c.Display.WebSocketEnabled},
		{"UDP_ENABLED", &c.Display.UDPEnabled},
		{"RECORDING", &c.Recording.Enabled},
	} {
		if err := boolean(o.key, o.dst); err != nil {
			return err
		}
	}

	return nil
}

// ProcessorConfig converts the spectral and audio sections into the shape
// of a spectral.Processor.
func (c *Config) ProcessorConfig() spectral.Config {
	return spectral.Config{
		FrameSize: c.Spectral.FrameSize,
		HopSize:   c.Spectral.HopSize(),
		Channels:  c.Audio.Channels,
	}
}
