// SPDX-License-Identifier: MIT
/*
Package audio drives the spectral processor from a PortAudio duplex stream:
- Non-interleaved float32 capture and playback with equal channel counts
- Processor.Process called directly from the stream callback
- WAV recording of the processed output through a writer goroutine

Thread Safety:
- The stream callback only touches pre-allocated buffers and atomics
- The recorder is swapped in and out through an atomic pointer
- Locks OS thread during audio processing
*/
package audio

import (
	"errors"
	"fmt"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/gordonklaus/portaudio"

	"specverb/internal/config"
	"specverb/internal/log"
	"specverb/internal/spectral"
)

var logger = log.Named("audio")

var (
	ErrAlreadyRecording = errors.New("audio: already recording")
	ErrStreamRunning    = errors.New("audio: stream already running")
)

// Stats are the engine's callback counters.
type Stats struct {
	Blocks  uint64 // callbacks processed
	Errors  uint64 // callbacks that produced silence because Process failed
	XRuns   uint64 // callbacks flagged with an underflow or overflow
	Dropped uint64 // recorder blocks dropped
}

type Engine struct {
	// Core configuration and state.
	config    config.AudioConfig
	processor *spectral.Processor

	// Devices and stream.
	inputDevice   *portaudio.DeviceInfo
	outputDevice  *portaudio.DeviceInfo
	inputLatency  time.Duration
	outputLatency time.Duration
	stream        *portaudio.Stream

	// Recording of the processed output.
	recorder  atomic.Pointer[Recorder]
	recordBuf []float32 // interleaved copy of out for the recorder

	blocks atomic.Uint64
	failed atomic.Uint64
	xruns  atomic.Uint64
}

// NewEngine resolves the configured devices and checks that both can carry
// the processor's channel count. PortAudio must be initialised.
func NewEngine(cfg config.AudioConfig, processor *spectral.Processor) (*Engine, error) {
	if processor.Channels() != cfg.Channels {
		return nil, fmt.Errorf("%w: processor has %d channels, audio config %d",
			spectral.ErrChannelMismatch, processor.Channels(), cfg.Channels)
	}

	inputDevice, err := InputDevice(cfg.InputDevice)
	if err != nil {
		return nil, err
	}
	outputDevice, err := OutputDevice(cfg.OutputDevice)
	if err != nil {
		return nil, err
	}
	if inputDevice.MaxInputChannels < cfg.Channels {
		return nil, fmt.Errorf("input device %s supports %d channels, need %d",
			inputDevice.Name, inputDevice.MaxInputChannels, cfg.Channels)
	}
	if outputDevice.MaxOutputChannels < cfg.Channels {
		return nil, fmt.Errorf("output device %s supports %d channels, need %d",
			outputDevice.Name, outputDevice.MaxOutputChannels, cfg.Channels)
	}

	engine := newEngine(cfg, processor)
	engine.inputDevice = inputDevice
	engine.outputDevice = outputDevice

	if cfg.LowLatency {
		engine.inputLatency = inputDevice.DefaultLowInputLatency
		engine.outputLatency = outputDevice.DefaultLowOutputLatency
	} else {
		engine.inputLatency = inputDevice.DefaultHighInputLatency
		engine.outputLatency = outputDevice.DefaultHighOutputLatency
	}

	return engine, nil
}

func newEngine(cfg config.AudioConfig, processor *spectral.Processor) *Engine {
	return &Engine{
		config:    cfg,
		processor: processor,
		recordBuf: make([]float32, cfg.FramesPerBuffer*cfg.Channels),
	}
}

// Start initialises the processor for the configured rate and block size
// and opens the duplex stream.
func (e *Engine) Start() error {
	if e.stream != nil {
		return ErrStreamRunning
	}
	if err := e.processor.Initialize(e.config.SampleRate, e.config.FramesPerBuffer); err != nil {
		return err
	}

	params := portaudio.StreamParameters{
		Input: portaudio.StreamDeviceParameters{
			Channels: e.config.Channels,
			Device:   e.inputDevice,
			Latency:  e.inputLatency,
		},
		Output: portaudio.StreamDeviceParameters{
			Channels: e.config.Channels,
			Device:   e.outputDevice,
			Latency:  e.outputLatency,
		},
		FramesPerBuffer: e.config.FramesPerBuffer,
		SampleRate:      e.config.SampleRate,
	}

	stream, err := portaudio.OpenStream(params, e.process)
	if err != nil {
		return fmt.Errorf("failed to open duplex stream: %w", err)
	}
	if err := stream.Start(); err != nil {
		stream.Close()
		return fmt.Errorf("failed to start duplex stream: %w", err)
	}
	e.stream = stream

	info := stream.Info()
	logger.Infof("stream started: %s -> %s, %d ch @ %.0f Hz, input latency %v, output latency %v",
		e.inputDevice.Name, e.outputDevice.Name, e.config.Channels, info.SampleRate,
		info.InputLatency, info.OutputLatency)
	logger.Infof("processing latency %d samples (%.1f ms), tail %.2f s",
		e.processor.Latency(),
		float64(e.processor.Latency())/e.config.SampleRate*1000,
		e.processor.TailLength())
	return nil
}

// Stop closes the stream. The processor keeps its state until Close.
func (e *Engine) Stop() error {
	if e.stream == nil {
		return nil
	}
	stream := e.stream
	e.stream = nil

	if err := stream.Stop(); err != nil {
		stream.Close()
		return fmt.Errorf("failed to stop duplex stream: %w", err)
	}
	if err := stream.Close(); err != nil {
		return fmt.Errorf("failed to close duplex stream: %w", err)
	}
	logger.Debugf("stream stopped after %d blocks", e.blocks.Load())
	return nil
}

// process is the duplex stream callback.
// Performance Critical:
// - Runs in a dedicated OS thread (LockOSThread)
// - Uses pre-allocated buffers only
// - No dynamic allocations in the hot path
func (e *Engine) process(in, out [][]float32, _ portaudio.StreamCallbackTimeInfo, flags portaudio.StreamCallbackFlags) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	if flags != 0 {
		e.xruns.Add(1)
	}

	if err := e.processor.Process(in, out); err != nil {
		for ch := range out {
			clear(out[ch])
		}
		e.failed.Add(1)
		return
	}
	e.blocks.Add(1)

	if r := e.recorder.Load(); r != nil {
		r.Write(e.interleave(out))
	}
}

// interleave copies channel-major out into recordBuf. Blocks longer than the
// configured buffer are truncated to it.
func (e *Engine) interleave(out [][]float32) []float32 {
	channels := len(out)
	frames := min(len(out[0]), len(e.recordBuf)/channels)
	buf := e.recordBuf[:frames*channels]
	for ch, samples := range out {
		for i := range frames {
			buf[i*channels+ch] = samples[i]
		}
	}
	return buf
}

// StartRecording begins capturing the processed output to a WAV file.
func (e *Engine) StartRecording(path string, bitDepth int) error {
	if e.recorder.Load() != nil {
		return ErrAlreadyRecording
	}
	r, err := NewRecorder(path, e.config.SampleRate, e.config.Channels, bitDepth, len(e.recordBuf))
	if err != nil {
		return err
	}
	if !e.recorder.CompareAndSwap(nil, r) {
		r.Close()
		return ErrAlreadyRecording
	}
	logger.Infof("recording %d-bit output to %s", bitDepth, path)
	return nil
}

// StopRecording detaches the recorder and finalises its file.
func (e *Engine) StopRecording() error {
	r := e.recorder.Swap(nil)
	if r == nil {
		return nil
	}
	err := r.Close()
	if dropped := r.Dropped(); dropped > 0 {
		logger.Warnf("recording dropped %d blocks", dropped)
	}
	logger.Infof("recorded %d frames to %s", r.Frames(), r.Path())
	return err
}

// Recording reports whether output is being captured.
func (e *Engine) Recording() bool { return e.recorder.Load() != nil }

// Stats returns a snapshot of the callback counters.
func (e *Engine) Stats() Stats {
	s := Stats{
		Blocks: e.blocks.Load(),
		Errors: e.failed.Load(),
		XRuns:  e.xruns.Load(),
	}
	if r := e.recorder.Load(); r != nil {
		s.Dropped = r.Dropped()
	}
	return s
}

// Close stops recording and the stream, then shuts the processor down.
func (e *Engine) Close() error {
	recErr := e.StopRecording()
	streamErr := e.Stop()
	e.processor.Shutdown()
	return errors.Join(recErr, streamErr)
}
