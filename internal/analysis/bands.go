// SPDX-License-Identifier: MIT

// Package analysis summarises magnitude snapshots for display: the energy
// of the reverb's three gain bands, a set of named frequency ranges, and
// the spectral peak.
package analysis

import (
	"math"

	"specverb/internal/spectral"
)

// FrequencyBand defines the name and frequency range for an energy band.
type FrequencyBand struct {
	Name   string  `json:"name"`
	LowHz  float64 `json:"low_hz"`
	HighHz float64 `json:"high_hz"`
}

// DefaultFrequencyBands are the named ranges reported alongside the gain
// bands. The last range is open-ended up to Nyquist.
var DefaultFrequencyBands = []FrequencyBand{
	{Name: "sub", LowHz: 20, HighHz: 60},
	{Name: "bass", LowHz: 60, HighHz: 250},
	{Name: "lowMid", LowHz: 250, HighHz: 500},
	{Name: "mid", LowHz: 500, HighHz: 2000},
	{Name: "highMid", LowHz: 2000, HighHz: 4000},
	{Name: "treble", LowHz: 4000, HighHz: math.Inf(1)},
}

// BandLevel is the display level of one named band.
type BandLevel struct {
	Name  string  `json:"name"`
	Level float64 `json:"level"`
}

// Summary is the per-snapshot analysis sent to display clients.
type Summary struct {
	Low     float64     `json:"low"`  // RMS magnitude of the low gain band
	Mid     float64     `json:"mid"`  // RMS magnitude of the mid gain band
	High    float64     `json:"high"` // RMS magnitude of the high gain band
	PeakBin int         `json:"peak_bin"`
	PeakHz  float64     `json:"peak_hz"`
	Bands   []BandLevel `json:"bands"`
}

// DisplayLevel maps a linear magnitude onto [0, 1] with the compressive
// curve used by the spectrum view.
func DisplayLevel(magnitude float64) float64 {
	level := 0.35 * math.Log10(1+100*magnitude)
	return math.Min(1, math.Max(0, level))
}

// Analyzer computes Summaries for snapshots of a fixed frame geometry. It
// keeps scratch state and is not safe for concurrent use.
type Analyzer struct {
	sampleRate float64
	frameSize  int
	bands      []FrequencyBand
	energy     []float64
	counts     []int
}

// NewAnalyzer returns an Analyzer for snapshots of frameSize/2 bins taken at
// sampleRate. A nil bands slice selects DefaultFrequencyBands.
func NewAnalyzer(sampleRate float64, frameSize int, bands []FrequencyBand) *Analyzer {
	if bands == nil {
		bands = DefaultFrequencyBands
	}
	return &Analyzer{
		sampleRate: sampleRate,
		frameSize:  frameSize,
		bands:      bands,
		energy:     make([]float64, len(bands)),
		counts:     make([]int, len(bands)),
	}
}

// FrequencyForBin returns the centre frequency of bin i.
func (a *Analyzer) FrequencyForBin(i int) float64 {
	return float64(i) * a.sampleRate / float64(a.frameSize)
}

// Analyze summarises mags, the magnitudes of bins [0, N/2). DC is excluded
// from every band because the effect never touches it.
func (a *Analyzer) Analyze(mags []float64) Summary {
	var s Summary
	bins := len(mags)
	if bins < 2 {
		return s
	}

	var gain [3]float64
	var gainCount [3]int
	clear(a.energy)
	clear(a.counts)

	peak := 1
	for i := 1; i < bins; i++ {
		e := mags[i] * mags[i]
		b := spectral.BandForBin(i, bins)
		gain[b] += e
		gainCount[b]++

		if mags[i] > mags[peak] {
			peak = i
		}

		freq := a.FrequencyForBin(i)
		for j, band := range a.bands {
			if freq >= band.LowHz && freq < band.HighHz {
				a.energy[j] += e
				a.counts[j]++
				break
			}
		}
	}

	rms := func(sum float64, n int) float64 {
		if n == 0 {
			return 0
		}
		return math.Sqrt(sum / float64(n))
	}

	s.Low = rms(gain[spectral.BandLow], gainCount[spectral.BandLow])
	s.Mid = rms(gain[spectral.BandMid], gainCount[spectral.BandMid])
	s.High = rms(gain[spectral.BandHigh], gainCount[spectral.BandHigh])
	s.PeakBin = peak
	s.PeakHz = a.FrequencyForBin(peak)

	s.Bands = make([]BandLevel, len(a.bands))
	for j, band := range a.bands {
		s.Bands[j] = BandLevel{Name: band.Name, Level: DisplayLevel(rms(a.energy[j], a.counts[j]))}
	}
	return s
}
