// SPDX-License-Identifier: MIT
package utils

import (
	"math"
	"testing"
)

const (
	testSize       = 1024
	testSampleRate = 44100
	testFrequency  = 440.0 // A4 note
)

func TestComplexWave(t *testing.T) {
	tests := []struct {
		name       string
		size       int
		sampleRate float64
	}{
		{"Standard", 1024, 44100},
		{"Small", 16, 8000},
		{"Large", 8192, 96000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := ComplexWave(tt.size, tt.sampleRate)

			if len(result) != tt.size {
				t.Errorf("ComplexWave() buffer size = %d, want %d", len(result), tt.size)
			}
			if PeakAmplitude(result) == 0 {
				t.Errorf("ComplexWave() produced all zeros")
			}
			if PeakAmplitude(result) > 0.9 {
				t.Errorf("ComplexWave() peak = %f, want <= 0.9", PeakAmplitude(result))
			}
		})
	}
}

func TestSineWaveZeroCrossings(t *testing.T) {
	tests := []struct {
		name       string
		sampleRate float64
		frequency  float64
	}{
		{"A4 Note", 44100, 440.0},
		{"Middle C", 44100, 261.63},
		{"High Sample Rate", 192000, 440.0},
		{"Low Sample Rate", 8000, 440.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := SineWave(testSize, tt.sampleRate, tt.frequency, 1)

			crossCount := 0
			for i := 1; i < len(result); i++ {
				if (result[i-1] < 0) != (result[i] < 0) {
					crossCount++
				}
			}

			samplesPerCycle := tt.sampleRate / tt.frequency
			expected := float64(testSize) / (samplesPerCycle / 2)
			tolerance := 0.2*expected + 1

			if math.Abs(float64(crossCount)-expected) > tolerance {
				t.Errorf("SineWave() zero crossings = %d, expected approximately %.1f±%.1f",
					crossCount, expected, tolerance)
			}
		})
	}
}

func TestRMS(t *testing.T) {
	tests := []struct {
		name  string
		input []float32
		want  float64
	}{
		{"Empty", nil, 0},
		{"Constant", []float32{0.5, 0.5, -0.5, -0.5}, 0.5},
		{"Single", []float32{-2}, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := RMS(tt.input); math.Abs(got-tt.want) > 1e-12 {
				t.Errorf("RMS() = %f, want %f", got, tt.want)
			}
		})
	}

	// A full-cycle sine has RMS amplitude/sqrt(2).
	sine := BinSine(testSize, testSize, 8, 1)
	if got := RMS(sine); math.Abs(got-1/math.Sqrt2) > 1e-6 {
		t.Errorf("RMS(sine) = %f, want %f", got, 1/math.Sqrt2)
	}
}

func TestImpulse(t *testing.T) {
	x := Impulse(8, 3, 0.25)
	for i, v := range x {
		want := float32(0)
		if i == 3 {
			want = 0.25
		}
		if v != want {
			t.Errorf("Impulse()[%d] = %f, want %f", i, v, want)
		}
	}
	if PeakAmplitude(Impulse(4, 10, 1)) != 0 {
		t.Errorf("Impulse() outside the buffer should be silent")
	}
}

func TestMaxAbsDiff(t *testing.T) {
	a := []float32{0, 1, 2}
	b := []float32{0, 1.5, 1, 100}
	if got := MaxAbsDiff(a, b); got != 1 {
		t.Errorf("MaxAbsDiff() = %f, want 1", got)
	}
}

func TestFindPeakBin(t *testing.T) {
	mags := make([]float64, testSize)
	for i := range mags {
		mags[i] = math.Exp(-0.01 * math.Pow(float64(i-testSize/4), 2))
	}

	tests := []struct {
		name     string
		mags     []float64
		start    int
		end      int
		expected int
	}{
		{"Full Range", mags, 0, testSize - 1, testSize / 4},
		{"Partial Range Start", mags, testSize / 8, testSize - 1, testSize / 4},
		{"Partial Range End", mags, 0, testSize / 3, testSize / 4},
		{"Negative Start", mags, -10, testSize - 1, testSize / 4},
		{"Out of Range End", mags, 0, testSize * 2, testSize / 4},
		{"Empty Slice", []float64{}, 0, 10, 0},
		{"Single Value", []float64{1.0}, 0, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if result := FindPeakBin(tt.mags, tt.start, tt.end); result != tt.expected {
				t.Errorf("FindPeakBin() = %d, want %d", result, tt.expected)
			}
		})
	}

	allocs := testing.AllocsPerRun(100, func() {
		FindPeakBin(mags, 0, len(mags)-1)
	})
	if allocs > 0 {
		t.Errorf("FindPeakBin allocated memory: got %.1f allocs, want 0", allocs)
	}
}

func BenchmarkSineWave(b *testing.B) {
	b.ReportAllocs()
	for b.Loop() {
		SineWave(testSize, testSampleRate, testFrequency, 1)
	}
}

func BenchmarkFindPeakBin(b *testing.B) {
	mags := make([]float64, 8192)
	for i := range mags {
		mags[i] = math.Exp(-0.01 * math.Pow(float64(i-4096), 2))
	}

	b.ReportAllocs()
	for b.Loop() {
		FindPeakBin(mags, 0, len(mags)-1)
	}
}
