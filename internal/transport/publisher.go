// SPDX-License-Identifier: MIT
package transport

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"specverb/internal/analysis"
	"specverb/internal/log"
)

// DefaultRate is the display refresh rate in frames per second.
const DefaultRate = 30

// Publisher periodically copies the magnitude snapshot, analyses it and
// hands the resulting Frame to every transport. It runs in a separate
// goroutine managed by Start and Stop, and is the only reader of the
// snapshot besides one-off CLI queries.
type Publisher struct {
	source     MagnitudeSource
	analyzer   *analysis.Analyzer
	transports []Transport
	interval   time.Duration
	logger     *log.Logger

	ticker   *time.Ticker   // Ticker that triggers publishing.
	doneChan chan struct{}  // Channel used to signal the publisher goroutine to stop.
	stopOnce sync.Once      // Ensures the stop logic runs only once per Start/Stop cycle.
	wg       sync.WaitGroup // Waits for the publisher goroutine to finish during Stop.
	mu       sync.Mutex     // Protects access to ticker and doneChan during Start/Stop.

	frame   Frame  // Reused for every publish.
	lastSeq uint64 // Snapshot sequence of the last published frame.
	sent    uint64
}

// NewPublisher creates a publisher that reads source at rateHz. The frame
// geometry is needed to label frames and convert bins to Hz. A non-positive
// rate selects DefaultRate.
func NewPublisher(source MagnitudeSource, sampleRate float64, frameSize int, rateHz float64, transports ...Transport) (*Publisher, error) {
	if source == nil {
		return nil, errors.New("publisher: magnitude source cannot be nil")
	}
	if source.Bins() != frameSize/2 {
		return nil, fmt.Errorf("publisher: source has %d bins, frame size %d needs %d", source.Bins(), frameSize, frameSize/2)
	}

	logger := log.Named("display")
	if rateHz <= 0 {
		logger.Warnf("invalid publish rate %v, defaulting to %d Hz", rateHz, DefaultRate)
		rateHz = DefaultRate
	}
	interval := time.Duration(float64(time.Second) / rateHz)
	logger.Infof("publisher: %d bins every %s to %d transport(s)", source.Bins(), interval, len(transports))

	return &Publisher{
		source:     source,
		analyzer:   analysis.NewAnalyzer(sampleRate, frameSize, nil),
		transports: transports,
		interval:   interval,
		logger:     logger,
		frame: Frame{
			Type:       FrameType,
			SampleRate: sampleRate,
			FrameSize:  frameSize,
			Magnitudes: make([]float64, source.Bins()),
		},
	}, nil
}

// Interval returns the time between publishes.
func (p *Publisher) Interval() time.Duration { return p.interval }

// Start begins the periodic publishing process. It is safe to call Start
// multiple times; subsequent calls are no-ops if already started.
func (p *Publisher) Start() {
	p.mu.Lock()
	if p.ticker != nil {
		p.mu.Unlock()
		p.logger.Warnf("publisher: Start called but already running")
		return
	}

	p.ticker = time.NewTicker(p.interval)
	p.doneChan = make(chan struct{})
	p.stopOnce = sync.Once{}

	// Capture local variables for the goroutine to avoid data races on p.ticker/p.doneChan
	ticker := p.ticker
	doneChan := p.doneChan
	p.mu.Unlock()

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		for {
			select {
			case <-ticker.C:
				p.Publish()
			case <-doneChan:
				return
			}
		}
	}()
}

// Stop signals the publisher goroutine to terminate and waits for it to
// exit. It is safe to call Stop multiple times.
func (p *Publisher) Stop() error {
	p.mu.Lock()
	if p.ticker == nil {
		p.mu.Unlock()
		return nil
	}
	p.stopOnce.Do(func() {
		close(p.doneChan)
		p.ticker.Stop()
		p.ticker = nil
	})
	p.mu.Unlock()

	p.wg.Wait()
	p.logger.Debugf("publisher stopped after %d frames", p.Sent())
	return nil
}

// Publish reads the snapshot once and sends it if it changed since the last
// publish. It reports whether a frame went out. Publish is called from the
// ticker goroutine; calling it concurrently with a running publisher races.
func (p *Publisher) Publish() bool {
	seq, err := p.source.CopyInto(p.frame.Magnitudes)
	if err != nil {
		p.logger.Errorf("error getting magnitudes: %v", err)
		return false
	}
	if seq == p.lastSeq {
		return false
	}
	p.lastSeq = seq

	p.frame.Sequence = seq
	p.frame.Timestamp = time.Now().UnixNano()
	p.frame.Summary = p.analyzer.Analyze(p.frame.Magnitudes)

	for _, t := range p.transports {
		if err := t.Send(&p.frame); err != nil {
			p.logger.Debugf("send of frame %d failed: %v", seq, err)
		}
	}

	p.mu.Lock()
	p.sent++
	p.mu.Unlock()
	return true
}

// Sent returns how many frames have been published.
func (p *Publisher) Sent() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.sent
}

// Close stops the publisher and closes every transport.
func (p *Publisher) Close() error {
	err := p.Stop()
	for _, t := range p.transports {
		err = errors.Join(err, t.Close())
	}
	return err
}
