// SPDX-License-Identifier: MIT
package audio

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"runtime"
	"sync/atomic"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// DefaultRecorderSlots is how many blocks may be in flight between the
// audio thread and the writer goroutine.
const DefaultRecorderSlots = 32

var (
	ErrBitDepth       = errors.New("audio: unsupported bit depth")
	ErrRecorderClosed = errors.New("audio: recorder is closed")
)

// pcmWriter is the encoder side of a Recorder. *wav.Encoder implements it.
type pcmWriter interface {
	Write(buf *audio.IntBuffer) error
	Close() error
}

// Recorder captures interleaved float blocks to a PCM WAV file. Write
// runs on the audio thread: it converts into a pre-allocated buffer and
// hands it to the writer goroutine without blocking or locking. Blocks are
// dropped when the writer falls behind.
type Recorder struct {
	path     string
	file     *os.File
	encoder  pcmWriter
	channels int
	maxValue float64

	free   chan *audio.IntBuffer
	filled chan *audio.IntBuffer
	done   chan struct{}

	closed  atomic.Bool
	writers atomic.Int32 // Write calls past the closed check
	err     error

	frames  atomic.Uint64
	dropped atomic.Uint64
}

// NewRecorder creates path and starts the writer goroutine. blockSamples
// is the largest interleaved block Write will accept.
func NewRecorder(path string, sampleRate float64, channels, bitDepth, blockSamples int) (*Recorder, error) {
	if err := checkBitDepth(bitDepth); err != nil {
		return nil, err
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create recording directory: %w", err)
		}
	}

	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create recording file: %w", err)
	}

	encoder := wav.NewEncoder(file, int(sampleRate), bitDepth, channels, 1)
	r := newRecorder(encoder, sampleRate, channels, bitDepth, blockSamples, DefaultRecorderSlots)
	r.path = path
	r.file = file
	return r, nil
}

func checkBitDepth(bitDepth int) error {
	switch bitDepth {
	case 16, 24, 32:
		return nil
	default:
		return fmt.Errorf("%w: %d", ErrBitDepth, bitDepth)
	}
}

func newRecorder(w pcmWriter, sampleRate float64, channels, bitDepth, blockSamples, slots int) *Recorder {
	r := &Recorder{
		encoder:  w,
		channels: channels,
		maxValue: float64(int64(1)<<(bitDepth-1) - 1),
		free:     make(chan *audio.IntBuffer, slots),
		filled:   make(chan *audio.IntBuffer, slots),
		done:     make(chan struct{}),
	}
	format := &audio.Format{NumChannels: channels, SampleRate: int(sampleRate)}
	for range slots {
		r.free <- &audio.IntBuffer{
			Format:         format,
			Data:           make([]int, 0, blockSamples),
			SourceBitDepth: bitDepth,
		}
	}
	go r.run()
	return r
}

// run is the writer goroutine. It stops at the first encoder error and
// keeps recycling buffers so that Write never stalls.
func (r *Recorder) run() {
	defer close(r.done)
	var failed bool
	for buf := range r.filled {
		if !failed {
			if err := r.encoder.Write(buf); err != nil {
				r.err = fmt.Errorf("failed to write recording: %w", err)
				failed = true
			} else {
				r.frames.Add(uint64(len(buf.Data) / r.channels))
			}
		}
		r.free <- buf
	}
}

// Write queues one interleaved block. It reports false if the block was
// dropped because no buffer was free, the block is too large or the
// recorder is closed.
func (r *Recorder) Write(block []float32) bool {
	if len(block)%r.channels != 0 {
		r.dropped.Add(1)
		return false
	}

	// Announce before checking closed, so Close cannot miss a Write that
	// is about to send on filled.
	r.writers.Add(1)
	defer r.writers.Add(-1)
	if r.closed.Load() {
		return false
	}

	var buf *audio.IntBuffer
	select {
	case buf = <-r.free:
	default:
		r.dropped.Add(1)
		return false
	}
	if len(block) > cap(buf.Data) {
		r.free <- buf
		r.dropped.Add(1)
		return false
	}

	buf.Data = buf.Data[:len(block)]
	for i, v := range block {
		buf.Data[i] = r.quantize(v)
	}
	r.filled <- buf
	return true
}

func (r *Recorder) quantize(v float32) int {
	s := math.Max(-1, math.Min(1, float64(v)))
	return int(math.Round(s * r.maxValue))
}

// Close flushes queued blocks, finalises the WAV header and closes the
// file. It returns the first write error, if any. Writes racing with Close
// finish or are refused before the queue is closed.
func (r *Recorder) Close() error {
	if !r.closed.CompareAndSwap(false, true) {
		return nil
	}
	for r.writers.Load() != 0 {
		runtime.Gosched()
	}
	close(r.filled)

	<-r.done

	err := r.err
	if cerr := r.encoder.Close(); cerr != nil && err == nil {
		err = fmt.Errorf("failed to finalise recording: %w", cerr)
	}
	if r.file != nil {
		if cerr := r.file.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("failed to close recording file: %w", cerr)
		}
	}
	return err
}

// Path returns the file being written.
func (r *Recorder) Path() string { return r.path }

// Frames returns how many sample frames have reached the encoder.
func (r *Recorder) Frames() uint64 { return r.frames.Load() }

// Dropped returns how many blocks were discarded.
func (r *Recorder) Dropped() uint64 { return r.dropped.Load() }
