// SPDX-License-Identifier: MIT
package transport

import (
	"sync/atomic"

	"specverb/internal/log"
)

// LoggingTransport implements the Transport interface by logging a one-line
// summary of each frame at debug level.
type LoggingTransport struct {
	logger *log.Logger
	frames atomic.Uint64
}

// NewLoggingTransport creates a new LoggingTransport instance.
func NewLoggingTransport() *LoggingTransport {
	lt := &LoggingTransport{logger: log.Named("display")}
	lt.logger.Infof("using logging transport")
	return lt
}

// Send logs the frame summary.
func (lt *LoggingTransport) Send(frame *Frame) error {
	lt.frames.Add(1)
	s := frame.Summary
	lt.logger.Debugf("frame %d: peak %.1f Hz (bin %d), low %.4f mid %.4f high %.4f",
		frame.Sequence, s.PeakHz, s.PeakBin, s.Low, s.Mid, s.High)
	return nil
}

// Frames returns how many frames have been logged.
func (lt *LoggingTransport) Frames() uint64 { return lt.frames.Load() }

// Close is a no-op for LoggingTransport.
func (lt *LoggingTransport) Close() error {
	lt.logger.Debugf("logging transport closed after %d frames", lt.frames.Load())
	return nil
}

// Ensure LoggingTransport satisfies the interface at compile time.
var _ Transport = (*LoggingTransport)(nil)
