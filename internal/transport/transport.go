// SPDX-License-Identifier: MIT

// Package transport moves magnitude snapshots from the engine to display
// clients and carries parameter changes back.
package transport

import "specverb/internal/analysis"

// FrameType tags spectrum frames on the wire.
const FrameType = "spectrum"

// Frame is one published magnitude snapshot with its analysis. The
// publisher reuses a single Frame, so transports must encode or copy what
// they need before Send returns.
type Frame struct {
	Type       string           `json:"type"`
	Sequence   uint64           `json:"sequence"`
	Timestamp  int64            `json:"timestamp"` // Unix nanoseconds
	SampleRate float64          `json:"sample_rate"`
	FrameSize  int              `json:"frame_size"`
	Magnitudes []float64        `json:"magnitudes"`
	Summary    analysis.Summary `json:"summary"`
}

// Transport defines a generic interface for sending frames to clients.
// Implementations should be thread-safe.
type Transport interface {
	Send(frame *Frame) error
	Close() error
}

// MagnitudeSource is read by the publisher on its own goroutine.
// *spectral.MagnitudeSnapshot implements it.
type MagnitudeSource interface {
	Bins() int
	CopyInto(dst []float64) (uint64, error)
}

// ParamSink receives parameter changes from clients. *params.Store
// implements it.
type ParamSink interface {
	Set(id string, value float64) error
}
