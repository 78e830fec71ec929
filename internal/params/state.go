// SPDX-License-Identifier: MIT
package params

import (
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"specverb/internal/spectral"
)

// State is the persisted form of the parameter set. It doubles as the
// params section of the config file.
type State struct {
	WetDry   float64 `yaml:"wet_dry"`
	Time     float64 `yaml:"time"`
	Density  float64 `yaml:"density"`
	Damping  float64 `yaml:"damping"`
	Size     float64 `yaml:"size"`
	LowBand  float64 `yaml:"low_band"`
	MidBand  float64 `yaml:"mid_band"`
	HighBand float64 `yaml:"high_band"`
	Freeze   bool    `yaml:"freeze"`
}

// StateOf captures p.
func StateOf(p spectral.Params) State {
	return State{
		WetDry:   p.WetDry,
		Time:     p.Time,
		Density:  p.Density,
		Damping:  p.Damping,
		Size:     p.Size,
		LowBand:  p.LowBand,
		MidBand:  p.MidBand,
		HighBand: p.HighBand,
		Freeze:   p.Freeze,
	}
}

// DefaultState returns the factory defaults.
func DefaultState() State {
	return StateOf(spectral.DefaultParams())
}

// Params converts the state back to a clamped parameter set.
func (st State) Params() spectral.Params {
	return Sanitize(spectral.Params{
		WetDry:   st.WetDry,
		Time:     st.Time,
		Density:  st.Density,
		Damping:  st.Damping,
		Size:     st.Size,
		LowBand:  st.LowBand,
		MidBand:  st.MidBand,
		HighBand: st.HighBand,
		Freeze:   st.Freeze,
	})
}

// Encode writes the state as YAML.
func (st State) Encode(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(st); err != nil {
		return fmt.Errorf("failed to encode parameter state: %w", err)
	}
	return enc.Close()
}

// DecodeState reads a YAML state. Keys missing from the document keep
// their default values.
func DecodeState(r io.Reader) (State, error) {
	st := DefaultState()
	if err := yaml.NewDecoder(r).Decode(&st); err != nil && err != io.EOF {
		return State{}, fmt.Errorf("failed to parse parameter state: %w", err)
	}
	return st, nil
}

// SaveState writes the store's current parameters to path.
func (s *Store) SaveState(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create state file: %w", err)
	}
	if err := StateOf(s.Load()).Encode(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// LoadState replaces the store's parameters with those saved at path.
func (s *Store) LoadState(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open state file: %w", err)
	}
	defer f.Close()

	st, err := DecodeState(f)
	if err != nil {
		return err
	}
	s.Replace(st.Params())
	return nil
}
