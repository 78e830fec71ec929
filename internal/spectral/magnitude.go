// SPDX-License-Identifier: MIT
package spectral

import (
	"fmt"
	"math/cmplx"
	"runtime"
	"sync/atomic"
)

// SpinLock is a test-and-set lock for the short critical section between
// the audio thread and the display reader. It never parks the goroutine in
// the scheduler's wait queues, only yields while contended.
type SpinLock struct {
	held atomic.Bool
}

// Lock spins until the lock is acquired.
func (l *SpinLock) Lock() {
	for !l.held.CompareAndSwap(false, true) {
		runtime.Gosched()
	}
}

// TryLock acquires the lock if it is free.
func (l *SpinLock) TryLock() bool {
	return l.held.CompareAndSwap(false, true)
}

// Unlock releases the lock.
func (l *SpinLock) Unlock() {
	l.held.Store(false)
}

// MagnitudeSnapshot holds the magnitudes of the most recent frame's lower
// N/2 bins. Writers and readers both take the lock, so a reader never sees
// a partially copied snapshot.
type MagnitudeSnapshot struct {
	mu      SpinLock
	values  []float64
	scratch []float64
	seq     uint64
}

// NewMagnitudeSnapshot allocates a snapshot of the given number of bins.
func NewMagnitudeSnapshot(bins int) *MagnitudeSnapshot {
	return &MagnitudeSnapshot{
		values:  make([]float64, bins),
		scratch: make([]float64, bins),
	}
}

// Bins returns the snapshot length.
func (s *MagnitudeSnapshot) Bins() int { return len(s.values) }

// Publish stores |frame[i]| for the first Bins() bins. Magnitudes are
// computed before the lock is taken so the critical section is a copy.
func (s *MagnitudeSnapshot) Publish(frame []complex128) {
	for i := range s.scratch {
		s.scratch[i] = cmplx.Abs(frame[i])
	}
	s.mu.Lock()
	copy(s.values, s.scratch)
	s.seq++
	s.mu.Unlock()
}

// CopyInto copies the current snapshot into dst and returns its sequence
// number. dst must hold exactly Bins() values.
func (s *MagnitudeSnapshot) CopyInto(dst []float64) (uint64, error) {
	if len(dst) != len(s.values) {
		return 0, fmt.Errorf("%w: got %d, want %d", ErrSnapshotLength, len(dst), len(s.values))
	}
	s.mu.Lock()
	copy(dst, s.values)
	seq := s.seq
	s.mu.Unlock()
	return seq, nil
}

// Magnitudes returns a freshly allocated copy of the snapshot.
func (s *MagnitudeSnapshot) Magnitudes() []float64 {
	out := make([]float64, len(s.values))
	s.mu.Lock()
	copy(out, s.values)
	s.mu.Unlock()
	return out
}

// Sequence returns how many snapshots have been published.
func (s *MagnitudeSnapshot) Sequence() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.seq
}

// Reset zeroes the snapshot and its sequence.
func (s *MagnitudeSnapshot) Reset() {
	s.mu.Lock()
	clear(s.values)
	s.seq = 0
	s.mu.Unlock()
}
