// Package wakeword matches configured trigger phrases against a
// continuous transcript stream from a speech-to-text collaborator.
package wakeword

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/edenlabs/eden/internal/events"
	"github.com/edenlabs/eden/internal/models"
)

// Transcript is one recognition result from the stream.
type Transcript struct {
	Text       string
	Confidence float64
}

// Recognizer is the continuous speech-to-text collaborator. Start opens
// a transcript stream that stays live until the context is cancelled or
// the underlying recognition fails; a closed channel signals
// termination.
type Recognizer interface {
	Start(ctx context.Context) (<-chan Transcript, error)
	Stop() error
}

const defaultRestartDelay = 2 * time.Second

// Detector consumes a Recognizer stream and publishes a wake-word event
// for the first configured phrase that matches each transcript. If the
// stream terminates while the detector is still enabled, it restarts
// after restartDelay.
type Detector struct {
	recognizer   Recognizer
	bus          *events.Bus
	phrases      []string
	threshold    float64
	restartDelay time.Duration

	mu      sync.Mutex
	enabled bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewDetector creates a detector for the given phrases. Phrase order is
// match priority.
func NewDetector(recognizer Recognizer, bus *events.Bus, phrases []string, sensitivity models.Sensitivity) *Detector {
	return &Detector{
		recognizer:   recognizer,
		bus:          bus,
		phrases:      phrases,
		threshold:    thresholdFor(sensitivity),
		restartDelay: defaultRestartDelay,
	}
}

// Start begins consuming the transcript stream. No-op if already
// running.
func (d *Detector) Start() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.enabled {
		return nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	d.enabled = true
	d.cancel = cancel
	d.done = make(chan struct{})

	go d.run(ctx, d.done)

	slog.Info("wake-word detector started", "phrases", d.phrases, "threshold", d.threshold)
	return nil
}

// Stop cancels the stream and waits for the consumer to exit.
// Idempotent.
func (d *Detector) Stop() {
	d.mu.Lock()
	if !d.enabled {
		d.mu.Unlock()
		return
	}
	d.enabled = false
	cancel := d.cancel
	done := d.done
	d.mu.Unlock()

	cancel()
	if err := d.recognizer.Stop(); err != nil {
		slog.Warn("stopping recognizer failed", "error", err)
	}
	<-done
	slog.Info("wake-word detector stopped")
}

func (d *Detector) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	for {
		stream, err := d.recognizer.Start(ctx)
		if err != nil {
			slog.Warn("recognizer start failed, retrying", "error", err, "delay", d.restartDelay)
			if !d.sleep(ctx) {
				return
			}
			continue
		}

		for transcript := range stream {
			d.handle(transcript)
		}

		if ctx.Err() != nil {
			return
		}
		slog.Warn("transcript stream terminated, restarting", "delay", d.restartDelay)
		if !d.sleep(ctx) {
			return
		}
	}
}

func (d *Detector) sleep(ctx context.Context) bool {
	timer := time.NewTimer(d.restartDelay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

func (d *Detector) handle(transcript Transcript) {
	normalized := normalize(transcript.Text)
	if normalized == "" {
		return
	}

	phrase, ok := matchPhrase(normalized, d.phrases, d.threshold)
	if !ok {
		return
	}

	slog.Debug("wake word detected", "phrase", phrase, "confidence", transcript.Confidence)
	d.bus.Publish(events.TopicWakeWordDetected, models.WakeWordEvent{
		Phrase:     phrase,
		Confidence: transcript.Confidence,
		Timestamp:  time.Now(),
	})
}

// noopRecognizer is the degraded fallback when continuous recognition is
// unavailable on the host: it produces no transcripts, it never
// terminates, and the detector stays quietly enabled. Wake-word
// activation simply does not happen in this configuration; it is a
// documented no-op, not a silent failure.
type noopRecognizer struct{}

// NewNoopRecognizer returns the degraded-mode recognizer.
func NewNoopRecognizer() Recognizer {
	return noopRecognizer{}
}

func (noopRecognizer) Start(ctx context.Context) (<-chan Transcript, error) {
	ch := make(chan Transcript)
	go func() {
		<-ctx.Done()
		close(ch)
	}()
	return ch, nil
}

func (noopRecognizer) Stop() error {
	return nil
}
