// SPDX-License-Identifier: MIT
package spectral

import "errors"

// Construction errors. They are returned wrapped with the offending value,
// so match them with errors.Is.
var (
	ErrFrameSize        = errors.New("spectral: frame size must be a power of two >= 16")
	ErrHopSize          = errors.New("spectral: hop size must divide the frame size at least four times")
	ErrChannelCount     = errors.New("spectral: channel count must be at least 1")
	ErrChannelMismatch  = errors.New("spectral: channel count mismatch")
	ErrTransformSize    = errors.New("spectral: transform length does not match frame size")
	ErrWindowSize       = errors.New("spectral: window length does not match frame size")
	ErrUnknownTransform = errors.New("spectral: unknown transform")
)

// Lifecycle and block errors. These are returned unwrapped from the hot
// path so that reporting them never allocates.
var (
	ErrNotInitialized = errors.New("spectral: processor is not initialized")
	ErrBlockLength    = errors.New("spectral: block length mismatch between channels")
	ErrSampleRate     = errors.New("spectral: sample rate must be positive and finite")
	ErrBlockSize      = errors.New("spectral: block size must be positive")
	ErrSnapshotLength = errors.New("spectral: destination length does not match snapshot bins")
)
