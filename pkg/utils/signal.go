// SPDX-License-Identifier: MIT

// Package utils holds signal generators and measurements shared by tests.
package utils

import "math"

// ComplexWave is a 440 Hz tone with its second and third harmonics.
func ComplexWave(size int, sampleRate float64) []float32 {
	buffer := make([]float32, size)
	for i := range buffer {
		tm := float64(i) / sampleRate
		signal := math.Sin(2*math.Pi*440*tm)*0.5 +
			math.Sin(2*math.Pi*880*tm)*0.3 +
			math.Sin(2*math.Pi*1320*tm)*0.2
		buffer[i] = float32(signal * 0.9)
	}
	return buffer
}

// SineWave returns size samples of a sine at frequency Hz.
func SineWave(size int, sampleRate, frequency, amplitude float64) []float32 {
	buffer := make([]float32, size)
	for i := range buffer {
		t := float64(i) / sampleRate
		buffer[i] = float32(amplitude * math.Sin(2*math.Pi*frequency*t))
	}
	return buffer
}

// BinSine returns a sine that completes exactly bin cycles every frameSize
// samples, so it lands in the centre of one analysis bin.
func BinSine(size, frameSize, bin int, amplitude float64) []float32 {
	buffer := make([]float32, size)
	for i := range buffer {
		phase := 2 * math.Pi * float64(bin) * float64(i) / float64(frameSize)
		buffer[i] = float32(amplitude * math.Sin(phase))
	}
	return buffer
}

// Impulse returns size samples that are zero except for amplitude at at.
func Impulse(size, at int, amplitude float32) []float32 {
	buffer := make([]float32, size)
	if at >= 0 && at < size {
		buffer[at] = amplitude
	}
	return buffer
}

// RMS returns the root mean square of x, zero for an empty slice.
func RMS(x []float32) float64 {
	if len(x) == 0 {
		return 0
	}
	var sum float64
	for _, v := range x {
		sum += float64(v) * float64(v)
	}
	return math.Sqrt(sum / float64(len(x)))
}

// PeakAmplitude returns the largest absolute sample value in x.
func PeakAmplitude(x []float32) float64 {
	var peak float64
	for _, v := range x {
		peak = math.Max(peak, math.Abs(float64(v)))
	}
	return peak
}

// MaxAbsDiff returns the largest absolute difference between a and b over
// their common length.
func MaxAbsDiff(a, b []float32) float64 {
	var d float64
	for i := range min(len(a), len(b)) {
		d = math.Max(d, math.Abs(float64(a[i])-float64(b[i])))
	}
	return d
}

// FindPeakBin returns the index of the largest value in
// magnitudes[startBin:endBin+1], clamping the range to the slice.
func FindPeakBin(magnitudes []float64, startBin, endBin int) int {
	if len(magnitudes) == 0 {
		return 0
	}

	if startBin < 0 {
		startBin = 0
	}

	if endBin >= len(magnitudes) {
		endBin = len(magnitudes) - 1
	}

	peakBin := startBin
	peakValue := magnitudes[startBin]

	for bin := startBin + 1; bin <= endBin; bin++ {
		if magnitudes[bin] > peakValue {
			peakValue = magnitudes[bin]
			peakBin = bin
		}
	}

	return peakBin
}
