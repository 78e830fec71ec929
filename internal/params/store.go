// SPDX-License-Identifier: MIT

// Package params holds the nine reverb parameters shared between the
// control side (CLI, config, websocket clients) and the audio thread.
package params

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	"specverb/internal/spectral"
)

// Parameter identifiers, as used in config files, state files and on the
// wire.
const (
	WetDry   = "wet_dry"
	Time     = "time"
	Density  = "density"
	Damping  = "damping"
	Size     = "size"
	LowBand  = "low_band"
	MidBand  = "mid_band"
	HighBand = "high_band"
	Freeze   = "freeze"
)

var (
	ErrUnknownParam = errors.New("params: unknown parameter")
	ErrInvalidValue = errors.New("params: invalid value")
)

// Definition describes one parameter. Toggles are stored as 0 or 1 and any
// value above 0.5 switches them on.
type Definition struct {
	ID      string
	Name    string
	Min     float64
	Max     float64
	Default float64
	Toggle  bool

	get func(*spectral.Params) float64
	set func(*spectral.Params, float64)
}

// Clamp limits v to the parameter range. Toggles snap to 0 or 1.
func (d Definition) Clamp(v float64) float64 {
	if d.Toggle {
		if v > 0.5 {
			return 1
		}
		return 0
	}
	return math.Min(d.Max, math.Max(d.Min, v))
}

// Format renders v the way the parameter list prints it.
func (d Definition) Format(v float64) string {
	if d.Toggle {
		if v > 0.5 {
			return "on"
		}
		return "off"
	}
	return strconv.FormatFloat(v, 'f', 2, 64)
}

func boolValue(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

var definitions = []Definition{
	{ID: WetDry, Name: "Wet/Dry", Min: 0, Max: 1, Default: 0.5,
		get: func(p *spectral.Params) float64 { return p.WetDry },
		set: func(p *spectral.Params, v float64) { p.WetDry = v }},
	{ID: Time, Name: "Time", Min: 0.1, Max: 10, Default: 2,
		get: func(p *spectral.Params) float64 { return p.Time },
		set: func(p *spectral.Params, v float64) { p.Time = v }},
	{ID: Density, Name: "Density", Min: 0, Max: 1, Default: 0.5,
		get: func(p *spectral.Params) float64 { return p.Density },
		set: func(p *spectral.Params, v float64) { p.Density = v }},
	{ID: Damping, Name: "Damping", Min: 0, Max: 1, Default: 0.5,
		get: func(p *spectral.Params) float64 { return p.Damping },
		set: func(p *spectral.Params, v float64) { p.Damping = v }},
	{ID: Size, Name: "Size", Min: 0, Max: 1, Default: 0.5,
		get: func(p *spectral.Params) float64 { return p.Size },
		set: func(p *spectral.Params, v float64) { p.Size = v }},
	{ID: LowBand, Name: "Low Band", Min: 0, Max: 1, Default: 1,
		get: func(p *spectral.Params) float64 { return p.LowBand },
		set: func(p *spectral.Params, v float64) { p.LowBand = v }},
	{ID: MidBand, Name: "Mid Band", Min: 0, Max: 1, Default: 1,
		get: func(p *spectral.Params) float64 { return p.MidBand },
		set: func(p *spectral.Params, v float64) { p.MidBand = v }},
	{ID: HighBand, Name: "High Band", Min: 0, Max: 1, Default: 1,
		get: func(p *spectral.Params) float64 { return p.HighBand },
		set: func(p *spectral.Params, v float64) { p.HighBand = v }},
	{ID: Freeze, Name: "Freeze", Min: 0, Max: 1, Default: 0, Toggle: true,
		get: func(p *spectral.Params) float64 { return boolValue(p.Freeze) },
		set: func(p *spectral.Params, v float64) { p.Freeze = v > 0.5 }},
}

// Definitions returns the parameter descriptions in display order.
func Definitions() []Definition {
	out := make([]Definition, len(definitions))
	copy(out, definitions)
	return out
}

// Lookup finds a parameter by ID.
func Lookup(id string) (Definition, bool) {
	for _, s := range definitions {
		if s.ID == id {
			return s, true
		}
	}
	return Definition{}, false
}

// Sanitize clamps every field of p into range.
func Sanitize(p spectral.Params) spectral.Params {
	defaults := spectral.DefaultParams()
	for _, s := range definitions {
		v := s.get(&p)
		if math.IsNaN(v) {
			v = s.get(&defaults)
		}
		s.set(&p, s.Clamp(v))
	}
	return p
}

// Store publishes parameter snapshots to the audio thread. Readers get a
// consistent copy from one atomic load; writers are serialised and swap in
// a fresh snapshot.
type Store struct {
	mu  sync.Mutex
	cur atomic.Pointer[spectral.Params]
}

// NewStore returns a store holding the factory defaults.
func NewStore() *Store {
	s := &Store{}
	p := spectral.DefaultParams()
	s.cur.Store(&p)
	return s
}

// Load implements spectral.ParamSource.
func (s *Store) Load() spectral.Params {
	return *s.cur.Load()
}

// Get returns the current value of parameter id.
func (s *Store) Get(id string) (float64, error) {
	def, ok := Lookup(id)
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownParam, id)
	}
	p := s.cur.Load()
	return def.get(p), nil
}

// Set stores v, clamped to the range of parameter id.
func (s *Store) Set(id string, v float64) error {
	def, ok := Lookup(id)
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownParam, id)
	}
	if math.IsNaN(v) {
		return fmt.Errorf("%w: %s = NaN", ErrInvalidValue, id)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	next := *s.cur.Load()
	def.set(&next, def.Clamp(v))
	s.cur.Store(&next)
	return nil
}

// SetBool switches a toggle parameter.
func (s *Store) SetBool(id string, on bool) error {
	def, ok := Lookup(id)
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownParam, id)
	}
	if !def.Toggle {
		return fmt.Errorf("%w: %s is not a toggle", ErrInvalidValue, id)
	}
	return s.Set(id, boolValue(on))
}

// Replace stores all of p at once, clamped into range.
func (s *Store) Replace(p spectral.Params) {
	p = Sanitize(p)
	s.mu.Lock()
	s.cur.Store(&p)
	s.mu.Unlock()
}

// Reset restores the factory defaults.
func (s *Store) Reset() {
	s.Replace(spectral.DefaultParams())
}

// Apply parses an assignment of the form "name=value". Toggles also accept
// true/false/on/off.
func (s *Store) Apply(assignment string) error {
	id, raw, ok := strings.Cut(assignment, "=")
	if !ok {
		return fmt.Errorf("%w: %q is not name=value", ErrInvalidValue, assignment)
	}
	id = strings.TrimSpace(id)
	raw = strings.TrimSpace(raw)

	def, found := Lookup(id)
	if !found {
		return fmt.Errorf("%w: %q", ErrUnknownParam, id)
	}
	if def.Toggle {
		switch strings.ToLower(raw) {
		case "on", "true", "yes":
			return s.Set(id, 1)
		case "off", "false", "no":
			return s.Set(id, 0)
		}
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrInvalidValue, id, err)
	}
	return s.Set(id, v)
}

// Values returns the current value of every parameter, in display order.
func (s *Store) Values() []float64 {
	p := s.cur.Load()
	out := make([]float64, len(definitions))
	for i, def := range definitions {
		out[i] = def.get(p)
	}
	return out
}

var _ spectral.ParamSource = (*Store)(nil)
