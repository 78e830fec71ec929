// SPDX-License-Identifier: MIT
package transport

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"specverb/internal/spectral"
)

// recordingTransport keeps a copy of every frame it is sent.
type recordingTransport struct {
	mu     sync.Mutex
	frames []Frame
	closed bool
}

func (r *recordingTransport) Send(frame *Frame) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	f := *frame
	f.Magnitudes = append([]float64(nil), frame.Magnitudes...)
	r.frames = append(r.frames, f)
	return nil
}

func (r *recordingTransport) Close() error {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()
	return nil
}

func (r *recordingTransport) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.frames)
}

// publishTone stores a snapshot with a single peak at bin.
func publishTone(s *spectral.MagnitudeSnapshot, bin int, mag float64) {
	frame := make([]complex128, 2*s.Bins())
	frame[bin] = complex(mag, 0)
	s.Publish(frame)
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestPublisherSkipsUnchangedSnapshots(t *testing.T) {
	const frameSize = 256
	snap := spectral.NewMagnitudeSnapshot(frameSize / 2)
	rec := &recordingTransport{}

	p, err := NewPublisher(snap, 48000, frameSize, 30, rec)
	if err != nil {
		t.Fatal(err)
	}
	if p.Interval() != time.Second/30 {
		t.Errorf("Interval() = %s, want %s", p.Interval(), time.Second/30)
	}

	if p.Publish() {
		t.Error("published before any snapshot existed")
	}
	publishTone(snap, 40, 2)
	if !p.Publish() {
		t.Fatal("new snapshot was not published")
	}
	if p.Publish() {
		t.Error("unchanged snapshot was published twice")
	}

	f := rec.frames[0]
	if f.Type != FrameType || f.Sequence != 1 || f.FrameSize != frameSize || f.SampleRate != 48000 {
		t.Errorf("frame header = %+v", f)
	}
	if f.Magnitudes[40] != 2 || f.Summary.PeakBin != 40 {
		t.Errorf("frame payload: mag %f, peak bin %d", f.Magnitudes[40], f.Summary.PeakBin)
	}
	if p.Sent() != 1 {
		t.Errorf("Sent() = %d, want 1", p.Sent())
	}

	if err := p.Close(); err != nil {
		t.Fatal(err)
	}
	if !rec.closed {
		t.Error("Close() did not close transports")
	}
}

func TestPublisherStartStop(t *testing.T) {
	const frameSize = 128
	snap := spectral.NewMagnitudeSnapshot(frameSize / 2)
	rec := &recordingTransport{}

	p, err := NewPublisher(snap, 48000, frameSize, 200, rec)
	if err != nil {
		t.Fatal(err)
	}
	p.Start()
	p.Start() // no-op

	publishTone(snap, 3, 1)
	waitFor(t, "first frame", func() bool { return rec.count() >= 1 })
	publishTone(snap, 5, 1)
	waitFor(t, "second frame", func() bool { return rec.count() >= 2 })

	if err := p.Stop(); err != nil {
		t.Fatal(err)
	}
	if err := p.Stop(); err != nil {
		t.Fatal(err)
	}
	sent := p.Sent()
	publishTone(snap, 7, 1)
	time.Sleep(20 * time.Millisecond)
	if p.Sent() != sent {
		t.Errorf("publisher kept running after Stop")
	}
}

func TestNewPublisherValidation(t *testing.T) {
	if _, err := NewPublisher(nil, 48000, 256, 30); err == nil {
		t.Error("expected error for nil source")
	}
	if _, err := NewPublisher(spectral.NewMagnitudeSnapshot(64), 48000, 256, 30); err == nil {
		t.Error("expected error for mismatched bins")
	}
	p, err := NewPublisher(spectral.NewMagnitudeSnapshot(128), 48000, 256, -1)
	if err != nil {
		t.Fatal(err)
	}
	if p.Interval() != time.Second/DefaultRate {
		t.Errorf("Interval() = %s, want default", p.Interval())
	}
}

func TestLoggingTransport(t *testing.T) {
	lt := NewLoggingTransport()
	for range 3 {
		if err := lt.Send(&Frame{}); err != nil {
			t.Fatal(err)
		}
	}
	if lt.Frames() != 3 {
		t.Errorf("Frames() = %d, want 3", lt.Frames())
	}
	if err := lt.Close(); err != nil {
		t.Fatal(err)
	}
}

// paramRecorder is a ParamSink that forwards every accepted change.
type paramRecorder struct {
	changes chan ParamMessage
}

func (p *paramRecorder) Set(id string, value float64) error {
	if id == "bogus" {
		return errors.New("unknown")
	}
	p.changes <- ParamMessage{ID: id, Value: value}
	return nil
}

func dialTransport(t *testing.T, wst *WebSocketTransport) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial("ws://"+wst.Addr().String()+"/ws", nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	waitFor(t, "client registration", func() bool { return wst.Clients() > 0 })
	return conn
}

func TestWebSocketBroadcast(t *testing.T) {
	wst, err := NewWebSocketTransport("127.0.0.1:0", nil)
	if err != nil {
		t.Fatal(err)
	}
	defer wst.Close()

	// No clients yet: Send is a no-op.
	if err := wst.Send(&Frame{Type: FrameType}); err != nil {
		t.Fatal(err)
	}

	conn := dialTransport(t, wst)

	frame := &Frame{Type: FrameType, Sequence: 9, FrameSize: 8, Magnitudes: []float64{0, 1, 2, 3}}
	if err := wst.Send(frame); err != nil {
		t.Fatal(err)
	}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var got Frame
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatal(err)
	}
	if got.Sequence != 9 || len(got.Magnitudes) != 4 || got.Magnitudes[3] != 3 {
		t.Errorf("received %+v", got)
	}
}

func TestWebSocketParamMessages(t *testing.T) {
	sink := &paramRecorder{changes: make(chan ParamMessage, 4)}
	wst, err := NewWebSocketTransport("127.0.0.1:0", sink)
	if err != nil {
		t.Fatal(err)
	}
	defer wst.Close()

	conn := dialTransport(t, wst)

	messages := []string{
		`not json`,
		`{"type":"hello"}`,
		`{"type":"param","id":"bogus","value":1}`,
		`{"type":"param","id":"size","value":0.25}`,
	}
	for _, m := range messages {
		if err := conn.WriteMessage(websocket.TextMessage, []byte(m)); err != nil {
			t.Fatal(err)
		}
	}

	select {
	case change := <-sink.changes:
		if change.ID != "size" || change.Value != 0.25 {
			t.Errorf("sink received %+v, want size=0.25", change)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("parameter change never reached the sink")
	}
}

func TestWebSocketClose(t *testing.T) {
	wst, err := NewWebSocketTransport("127.0.0.1:0", nil)
	if err != nil {
		t.Fatal(err)
	}
	conn := dialTransport(t, wst)

	if err := wst.Close(); err != nil {
		t.Fatal(err)
	}
	if err := wst.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := conn.ReadMessage(); err == nil {
		t.Error("client still connected after Close")
	}
}
