// SPDX-License-Identifier: MIT
package udp

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"specverb/internal/transport"
)

/*
UDP Packet Structure (BigEndian)

+-----------------------------------------------------------------------------+
| Field             | Data Type      | Size (Bytes) | Description             |
|-------------------|----------------|--------------|-------------------------|
| Sequence Number   | uint32         | 4            | Snapshot sequence       |
| Timestamp         | int64          | 8            | Nanoseconds since epoch |
| Sample Rate       | float32        | 4            | Hz                      |
| Band Energy       | [3]float32     | 12           | Low, mid, high RMS      |
| Magnitude Count   | uint16         | 2            | Number of floats (M)    |
| Magnitudes        | []float32      | M * 4        | Bins 0 .. M-1           |
+-----------------------------------------------------------------------------+
*/

// HeaderSize is the number of bytes before the magnitude payload.
const HeaderSize = 4 + 8 + 4 + 12 + 2

// MaxMagnitudes is the most bins one packet can carry.
const MaxMagnitudes = math.MaxUint16

var ErrShortPacket = errors.New("udp: packet too short")

// Packet is the decoded form of one datagram.
type Packet struct {
	Sequence   uint32
	Timestamp  int64
	SampleRate float32
	Bands      [3]float32
	Magnitudes []float32
}

type header struct {
	Sequence   uint32
	Timestamp  int64
	SampleRate float32
	Bands      [3]float32
	Count      uint16
}

// Encoder packs frames into a reusable buffer.
type Encoder struct {
	buf  bytes.Buffer
	mags []float32
}

// Encode packs frame and returns the packet bytes. The slice is only valid
// until the next call.
func (e *Encoder) Encode(frame *transport.Frame) ([]byte, error) {
	n := len(frame.Magnitudes)
	if n > MaxMagnitudes {
		return nil, fmt.Errorf("udp: %d magnitudes exceed packet limit %d", n, MaxMagnitudes)
	}
	if cap(e.mags) < n {
		e.mags = make([]float32, n)
	}
	e.mags = e.mags[:n]
	for i, v := range frame.Magnitudes {
		e.mags[i] = float32(v)
	}

	h := header{
		Sequence:   uint32(frame.Sequence),
		Timestamp:  frame.Timestamp,
		SampleRate: float32(frame.SampleRate),
		Bands: [3]float32{
			float32(frame.Summary.Low),
			float32(frame.Summary.Mid),
			float32(frame.Summary.High),
		},
		Count: uint16(n),
	}

	e.buf.Reset()
	err := binary.Write(&e.buf, binary.BigEndian, h)
	if err == nil {
		err = binary.Write(&e.buf, binary.BigEndian, e.mags)
	}
	if err != nil {
		return nil, fmt.Errorf("udp: error packing frame: %w", err)
	}
	return e.buf.Bytes(), nil
}

// Decode parses one datagram.
func Decode(data []byte) (Packet, error) {
	if len(data) < HeaderSize {
		return Packet{}, fmt.Errorf("%w: %d bytes", ErrShortPacket, len(data))
	}
	r := bytes.NewReader(data)
	var h header
	if err := binary.Read(r, binary.BigEndian, &h); err != nil {
		return Packet{}, fmt.Errorf("udp: bad header: %w", err)
	}
	if want := HeaderSize + 4*int(h.Count); len(data) < want {
		return Packet{}, fmt.Errorf("%w: %d bytes, header announces %d", ErrShortPacket, len(data), want)
	}
	p := Packet{
		Sequence:   h.Sequence,
		Timestamp:  h.Timestamp,
		SampleRate: h.SampleRate,
		Bands:      h.Bands,
		Magnitudes: make([]float32, h.Count),
	}
	if err := binary.Read(r, binary.BigEndian, p.Magnitudes); err != nil {
		return Packet{}, fmt.Errorf("udp: bad payload: %w", err)
	}
	return p, nil
}
