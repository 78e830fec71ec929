// SPDX-License-Identifier: MIT

// Package udp sends spectrum frames as compact binary datagrams.
package udp

import (
	"sync"

	"specverb/internal/transport"
)

// Transport packs each frame and sends it with a Sender.
type Transport struct {
	mu     sync.Mutex
	sender *Sender
	enc    Encoder
}

// NewTransport dials targetAddress.
func NewTransport(targetAddress string) (*Transport, error) {
	sender, err := NewSender(targetAddress)
	if err != nil {
		return nil, err
	}
	return &Transport{sender: sender}, nil
}

// Send implements transport.Transport.
func (t *Transport) Send(frame *transport.Frame) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	packet, err := t.enc.Encode(frame)
	if err != nil {
		return err
	}
	if err := t.sender.Send(packet); err != nil {
		return err
	}
	logger.Debugf("sent packet %d (%d bytes)", frame.Sequence, len(packet))
	return nil
}

// Close implements transport.Transport.
func (t *Transport) Close() error {
	return t.sender.Close()
}

var _ transport.Transport = (*Transport)(nil)
