// SPDX-License-Identifier: MIT
/*
Package spectral implements a real-time short-time Fourier reverb:
- Shared-cursor input and overlap-add output rings per channel
- Periodic Hann analysis/synthesis at 75% overlap
- Per-bin band gain, spread, decay, damping and density modulation
- Spectral freeze that holds and resynthesises the last spectrum
- Lock-guarded magnitude snapshot for display readers

Thread Safety:
- Process and ProcessInterleaved belong to the audio thread
- Magnitudes() is the only state shared with other goroutines
- All buffers are allocated by NewProcessor and Initialize, never in Process
*/
package spectral

import (
	"fmt"
	"math"
	"sync/atomic"
)

const (
	// MinFrameSize is the smallest accepted analysis frame.
	MinFrameSize = 16
	// DefaultFrameSize is the analysis frame used when none is configured.
	DefaultFrameSize = 4096
	// DefaultHopDivisor gives 75% overlap.
	DefaultHopDivisor = 4
	// MinOverlap is the fewest frames that may cover one sample. Below it
	// the squared Hann sum ripples and overlap-add is no longer exact.
	MinOverlap = 4
)

// ParamSource supplies the parameter snapshot read at the start of each
// block. Load is called on the audio thread and must not block.
type ParamSource interface {
	Load() Params
}

// Fixed is a ParamSource that always returns the same values.
type Fixed Params

// Load implements ParamSource.
func (f Fixed) Load() Params { return Params(f) }

// Config is the shape of a Processor. It cannot change after construction.
type Config struct {
	FrameSize int // N, power of two
	HopSize   int // H, 0 selects N/4
	Channels  int
}

// Option configures a Processor.
type Option func(*Processor)

// WithTransform replaces the default real FFT.
func WithTransform(t Transform) Option {
	return func(p *Processor) { p.transform = t }
}

// WithStage replaces the default reverb Effect.
func WithStage(s Stage) Option {
	return func(p *Processor) { p.stage = s }
}

// WithParams sets the parameter source. Without it the factory defaults are
// used.
func WithParams(src ParamSource) Option {
	return func(p *Processor) { p.params = src }
}

// Processor owns every piece of engine state for one stream: the shared
// frame clock, the input and output rings, the per-channel spectra and the
// magnitude snapshot.
type Processor struct {
	cfg Config

	clock     *FrameClock
	window    *Window
	acc       *Accumulator
	rec       *Reconstructor
	transform Transform
	stage     Stage
	params    ParamSource
	snapshot  *MagnitudeSnapshot

	frame   []float64      // windowed analysis frame
	synth   []float64      // inverse transform output
	spectra [][]complex128 // per-channel spectrum, kept between hops for freeze
	held    []bool         // spectra[ch] holds a processed frame

	sampleRate  float64
	blockSize   int
	initialized bool
	frames      atomic.Uint64
}

// NewProcessor validates cfg, builds the pipeline and applies opts. The
// returned Processor must be initialised before it processes audio.
func NewProcessor(cfg Config, opts ...Option) (*Processor, error) {
	if cfg.FrameSize == 0 {
		cfg.FrameSize = DefaultFrameSize
	}
	if cfg.HopSize == 0 {
		cfg.HopSize = cfg.FrameSize / DefaultHopDivisor
	}
	if cfg.Channels < 1 {
		return nil, fmt.Errorf("%w: %d", ErrChannelCount, cfg.Channels)
	}
	if cfg.HopSize < 0 {
		return nil, fmt.Errorf("%w: hop %d", ErrHopSize, cfg.HopSize)
	}

	clock, err := NewFrameClock(cfg.FrameSize, cfg.HopSize)
	if err != nil {
		return nil, err
	}
	win, err := NewHannWindow(cfg.FrameSize)
	if err != nil {
		return nil, err
	}
	acc, err := NewAccumulator(clock, win, cfg.Channels)
	if err != nil {
		return nil, err
	}
	rec, err := NewReconstructor(clock, win, cfg.Channels)
	if err != nil {
		return nil, err
	}
	if err := checkPipeline(acc, rec); err != nil {
		return nil, err
	}

	p := &Processor{
		cfg:      cfg,
		clock:    clock,
		window:   win,
		acc:      acc,
		rec:      rec,
		snapshot: NewMagnitudeSnapshot(cfg.FrameSize / 2),
		frame:    make([]float64, cfg.FrameSize),
		synth:    make([]float64, cfg.FrameSize),
		spectra:  make([][]complex128, cfg.Channels),
		held:     make([]bool, cfg.Channels),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.transform == nil {
		p.transform = NewRealFFT(cfg.FrameSize)
	}
	if p.stage == nil {
		p.stage = NewEffect()
	}
	if p.params == nil {
		p.params = Fixed(DefaultParams())
	}
	if p.transform.Len() != cfg.FrameSize {
		return nil, fmt.Errorf("%w: transform %d, frame %d", ErrTransformSize, p.transform.Len(), cfg.FrameSize)
	}

	return p, nil
}

func checkPipeline(acc *Accumulator, rec *Reconstructor) error {
	if acc.Channels() != rec.Channels() {
		return fmt.Errorf("%w: accumulator %d, reconstructor %d", ErrChannelMismatch, acc.Channels(), rec.Channels())
	}
	return nil
}

// Initialize prepares the processor for a stream. Every ring and spectrum is
// cleared, so calling it again restarts the engine from silence.
func (p *Processor) Initialize(sampleRate float64, blockSize int) error {
	if sampleRate <= 0 || math.IsInf(sampleRate, 0) || math.IsNaN(sampleRate) {
		return fmt.Errorf("%w: %v", ErrSampleRate, sampleRate)
	}
	if blockSize <= 0 {
		return fmt.Errorf("%w: %d", ErrBlockSize, blockSize)
	}

	p.clock.Reset()
	p.acc.Reset()
	p.rec.Reset()
	p.snapshot.Reset()
	for ch := range p.spectra {
		if p.spectra[ch] == nil {
			p.spectra[ch] = make([]complex128, p.cfg.FrameSize)
		} else {
			clear(p.spectra[ch])
		}
		p.held[ch] = false
	}
	p.frames.Store(0)

	p.sampleRate = sampleRate
	p.blockSize = blockSize
	p.initialized = true
	return nil
}

// Shutdown releases the ring and spectrum storage. Process fails with
// ErrNotInitialized until the next Initialize.
func (p *Processor) Shutdown() {
	if !p.initialized {
		return
	}
	p.initialized = false
	p.acc.Release()
	p.rec.Release()
	for ch := range p.spectra {
		p.spectra[ch] = nil
		p.held[ch] = false
	}
}

// Process runs one channel-major block. in and out must carry Channels()
// slices of equal length; out may alias in.
func (p *Processor) Process(in, out [][]float32) error {
	if !p.initialized {
		return ErrNotInitialized
	}
	if len(in) != p.cfg.Channels || len(out) != p.cfg.Channels {
		return ErrChannelMismatch
	}
	n := len(in[0])
	for ch := range in {
		if len(in[ch]) != n || len(out[ch]) != n {
			return ErrBlockLength
		}
	}

	params := p.params.Load()
	wet := clampUnit(params.WetDry)
	dry := 1 - wet

	// Every channel of a sample frame goes in before any comes out, so a
	// hop completed by this frame already reaches the cell drained for it.
	for s := range n {
		ready := false
		for ch := range p.cfg.Channels {
			ready = p.acc.Push(ch, float64(in[ch][s]))
		}
		if ready {
			p.processHop(params)
		}
		for ch := range p.cfg.Channels {
			x := float64(in[ch][s])
			out[ch][s] = float32(dry*x + wet*p.rec.Drain(ch))
		}
	}
	return nil
}

// ProcessInterleaved runs one interleaved block of len(in)/Channels() sample
// frames. out may alias in.
func (p *Processor) ProcessInterleaved(in, out []float32) error {
	if !p.initialized {
		return ErrNotInitialized
	}
	if len(in) != len(out) {
		return ErrBlockLength
	}
	if len(in)%p.cfg.Channels != 0 {
		return ErrChannelMismatch
	}

	params := p.params.Load()
	wet := clampUnit(params.WetDry)
	dry := 1 - wet
	channels := p.cfg.Channels

	for base := 0; base < len(in); base += channels {
		ready := false
		for ch := range channels {
			ready = p.acc.Push(ch, float64(in[base+ch]))
		}
		if ready {
			p.processHop(params)
		}
		for ch := range channels {
			x := float64(in[base+ch])
			out[base+ch] = float32(dry*x + wet*p.rec.Drain(ch))
		}
	}
	return nil
}

// processHop analyses, transforms and resynthesises one frame per channel.
// A frozen channel that already holds a spectrum skips analysis and the
// effect, so the same spectrum is overlap-added every hop.
func (p *Processor) processHop(params Params) {
	for ch, spectrum := range p.spectra {
		if !params.Freeze || !p.held[ch] {
			p.acc.Extract(ch, p.frame)
			p.transform.Forward(spectrum, p.frame)
			p.stage.Apply(spectrum, params)
			p.held[ch] = true
		}
		p.transform.Inverse(p.synth, spectrum)
		p.rec.Accumulate(ch, p.synth)
	}
	p.snapshot.Publish(p.spectra[0])
	p.frames.Add(1)
}

func clampUnit(v float64) float64 {
	return math.Min(1, math.Max(0, v))
}

// Latency is the delay, in samples, from an input sample to its processed
// counterpart in the output. A sample is final once the frame it opens has
// been resynthesised, FrameSize-1 samples after it arrived.
func (p *Processor) Latency() int { return p.cfg.FrameSize - 1 }

// TailLength is how long, in seconds, output keeps sounding after the input
// falls silent with freeze off. It is zero before Initialize.
func (p *Processor) TailLength() float64 {
	if p.sampleRate == 0 {
		return 0
	}
	return float64(2*p.cfg.FrameSize) / p.sampleRate
}

// FrameSize returns N.
func (p *Processor) FrameSize() int { return p.cfg.FrameSize }

// HopSize returns H.
func (p *Processor) HopSize() int { return p.cfg.HopSize }

// Channels returns the configured channel count.
func (p *Processor) Channels() int { return p.cfg.Channels }

// SampleRate returns the rate passed to Initialize.
func (p *Processor) SampleRate() float64 { return p.sampleRate }

// BlockSize returns the nominal block size passed to Initialize.
func (p *Processor) BlockSize() int { return p.blockSize }

// Initialized reports whether Process may be called.
func (p *Processor) Initialized() bool { return p.initialized }

// Frames returns how many hops have been processed since Initialize. It is
// safe to call from any goroutine.
func (p *Processor) Frames() uint64 { return p.frames.Load() }

// Magnitudes returns the snapshot shared with display readers.
func (p *Processor) Magnitudes() *MagnitudeSnapshot { return p.snapshot }

// Window returns the analysis/synthesis window.
func (p *Processor) Window() *Window { return p.window }

// FrequencyForBin converts bin i to its centre frequency in Hz.
func (p *Processor) FrequencyForBin(i int) float64 {
	return float64(i) * p.sampleRate / float64(p.cfg.FrameSize)
}
