// SPDX-License-Identifier: MIT
package audio

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-audio/wav"
	"github.com/gordonklaus/portaudio"

	"specverb/internal/config"
	"specverb/internal/spectral"
)

const (
	testSampleRate = 48000
	testFrameSize  = 64
	testBlockSize  = 32
)

type nopStage struct{}

func (nopStage) Apply([]complex128, spectral.Params) {}

func testAudioConfig() config.AudioConfig {
	return config.AudioConfig{
		InputDevice:     config.MinDeviceID,
		OutputDevice:    config.MinDeviceID,
		SampleRate:      testSampleRate,
		FramesPerBuffer: testBlockSize,
		Channels:        2,
	}
}

func newTestEngine(t testing.TB, wet float64) *Engine {
	t.Helper()
	p := spectral.DefaultParams()
	p.WetDry = wet
	proc, err := spectral.NewProcessor(
		spectral.Config{FrameSize: testFrameSize, Channels: 2},
		spectral.WithStage(nopStage{}),
		spectral.WithParams(spectral.Fixed(p)),
	)
	if err != nil {
		t.Fatalf("NewProcessor() error: %v", err)
	}
	cfg := testAudioConfig()
	if err := proc.Initialize(cfg.SampleRate, cfg.FramesPerBuffer); err != nil {
		t.Fatalf("Initialize() error: %v", err)
	}
	return newEngine(cfg, proc)
}

func stereoBlock(frames int) [][]float32 {
	return [][]float32{make([]float32, frames), make([]float32, frames)}
}

func testSignal(ch, i int) float32 {
	return float32(0.5 * math.Sin(2*math.Pi*float64(i)*float64(ch+3)/testFrameSize))
}

func TestEngineProcessDelaysByLatency(t *testing.T) {
	e := newTestEngine(t, 1)
	latency := e.processor.Latency()

	const blocks = 12
	in, out := stereoBlock(testBlockSize), stereoBlock(testBlockSize)
	var got [2][]float32
	for b := range blocks {
		for ch := range in {
			for i := range in[ch] {
				in[ch][i] = testSignal(ch, b*testBlockSize+i)
			}
		}
		e.process(in, out, portaudio.StreamCallbackTimeInfo{}, 0)
		for ch := range out {
			got[ch] = append(got[ch], out[ch]...)
		}
	}

	for ch := range got {
		for i := 2 * latency; i < len(got[ch]); i++ {
			want := testSignal(ch, i-latency)
			if d := math.Abs(float64(got[ch][i] - want)); d > 1e-4 {
				t.Fatalf("channel %d sample %d = %f, want %f", ch, i, got[ch][i], want)
			}
		}
	}

	if s := e.Stats(); s.Blocks != blocks || s.Errors != 0 || s.XRuns != 0 {
		t.Errorf("Stats() = %+v", s)
	}
}

func TestEngineProcessFailureSilences(t *testing.T) {
	e := newTestEngine(t, 0.5)
	e.processor.Shutdown()

	in, out := stereoBlock(testBlockSize), stereoBlock(testBlockSize)
	for ch := range out {
		for i := range out[ch] {
			in[ch][i] = 1
			out[ch][i] = 1
		}
	}
	e.process(in, out, portaudio.StreamCallbackTimeInfo{}, portaudio.InputOverflow)

	for ch := range out {
		for i, v := range out[ch] {
			if v != 0 {
				t.Fatalf("out[%d][%d] = %f, want silence", ch, i, v)
			}
		}
	}
	if s := e.Stats(); s.Errors != 1 || s.XRuns != 1 || s.Blocks != 0 {
		t.Errorf("Stats() = %+v", s)
	}
}

func TestEngineInterleave(t *testing.T) {
	e := newTestEngine(t, 0)
	out := [][]float32{{1, 2, 3}, {-1, -2, -3}}
	got := e.interleave(out)
	want := []float32{1, -1, 2, -2, 3, -3}
	if len(got) != len(want) {
		t.Fatalf("len = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("got[%d] = %f, want %f", i, got[i], want[i])
		}
	}

	long := stereoBlock(testBlockSize * 2)
	if n := len(e.interleave(long)); n != testBlockSize*2 {
		t.Errorf("oversized block interleaved to %d samples, want %d", n, testBlockSize*2)
	}
}

func TestEngineRecording(t *testing.T) {
	e := newTestEngine(t, 0)
	path := filepath.Join(t.TempDir(), "out.wav")

	if err := e.StartRecording(path, 16); err != nil {
		t.Fatalf("StartRecording() error: %v", err)
	}
	if !e.Recording() {
		t.Error("Recording() = false after StartRecording")
	}
	if err := e.StartRecording(path, 16); !errors.Is(err, ErrAlreadyRecording) {
		t.Errorf("second StartRecording() error = %v, want ErrAlreadyRecording", err)
	}

	in, out := stereoBlock(testBlockSize), stereoBlock(testBlockSize)
	for ch := range in {
		for i := range in[ch] {
			in[ch][i] = 0.25
		}
	}
	const blocks = 5
	for range blocks {
		e.process(in, out, portaudio.StreamCallbackTimeInfo{}, 0)
	}

	if err := e.StopRecording(); err != nil {
		t.Fatalf("StopRecording() error: %v", err)
	}
	if e.Recording() {
		t.Error("Recording() = true after StopRecording")
	}
	if err := e.StopRecording(); err != nil {
		t.Errorf("StopRecording() when idle error: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	d := wav.NewDecoder(f)
	buf, err := d.FullPCMBuffer()
	if err != nil {
		t.Fatalf("FullPCMBuffer() error: %v", err)
	}
	if len(buf.Data) != blocks*testBlockSize*2 {
		t.Fatalf("recorded %d samples, want %d", len(buf.Data), blocks*testBlockSize*2)
	}
	// Dry only, so the file holds the input itself.
	if want := int(math.Round(0.25 * 32767)); buf.Data[0] != want {
		t.Errorf("first sample = %d, want %d", buf.Data[0], want)
	}
}

func TestEngineCloseStopsRecording(t *testing.T) {
	e := newTestEngine(t, 0)
	if err := e.StartRecording(filepath.Join(t.TempDir(), "close.wav"), 24); err != nil {
		t.Fatal(err)
	}
	in, out := stereoBlock(testBlockSize), stereoBlock(testBlockSize)
	e.process(in, out, portaudio.StreamCallbackTimeInfo{}, 0)

	if err := e.Close(); err != nil {
		t.Fatalf("Close() error: %v", err)
	}
	if e.Recording() {
		t.Error("Close() should stop recording")
	}
	if e.processor.Initialized() {
		t.Error("Close() should shut the processor down")
	}
}

func TestNewEngineChannelMismatch(t *testing.T) {
	proc, err := spectral.NewProcessor(spectral.Config{FrameSize: testFrameSize, Channels: 1})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := NewEngine(testAudioConfig(), proc); !errors.Is(err, spectral.ErrChannelMismatch) {
		t.Errorf("NewEngine() error = %v, want ErrChannelMismatch", err)
	}
}

func TestEngineProcessNoAllocs(t *testing.T) {
	e := newTestEngine(t, 0.5)
	in, out := stereoBlock(testBlockSize), stereoBlock(testBlockSize)

	allocs := testing.AllocsPerRun(100, func() {
		e.process(in, out, portaudio.StreamCallbackTimeInfo{}, 0)
	})
	if allocs > 0 {
		t.Errorf("process() allocated: got %.1f allocs, want 0", allocs)
	}
}

func BenchmarkEngineProcess(b *testing.B) {
	e := newTestEngine(b, 0.5)
	in, out := stereoBlock(testBlockSize), stereoBlock(testBlockSize)
	for ch := range in {
		for i := range in[ch] {
			in[ch][i] = testSignal(ch, i)
		}
	}

	b.ReportAllocs()
	for b.Loop() {
		e.process(in, out, portaudio.StreamCallbackTimeInfo{}, 0)
	}
}
