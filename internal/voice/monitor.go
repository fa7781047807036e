// Package voice implements the voice activity monitor: a two-state
// energy-threshold detector sampled on a fixed tick, publishing
// speech-start and speech-end events on the bus.
package voice

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/edenlabs/eden/internal/events"
	"github.com/edenlabs/eden/internal/models"
	"github.com/edenlabs/eden/internal/scheduler"
)

// EnergySource is the audio capture collaborator. Sample returns the
// instantaneous energy of the input, normalized to roughly [0, 1].
type EnergySource interface {
	Open() error
	Sample() (float64, error)
	Close() error
}

const (
	tickInterval      = 100 * time.Millisecond
	minSpeechDuration = 300 * time.Millisecond
	silenceDuration   = 800 * time.Millisecond

	// endConfidence is the fixed nominal confidence on speech-end; the
	// threshold crossing already happened, so there is nothing left to
	// estimate.
	endConfidence = 0.85
)

// thresholdFor maps sensitivity to a fixed energy threshold. Higher
// sensitivity means quieter speech is picked up, so a lower threshold.
func thresholdFor(s models.Sensitivity) float64 {
	switch s {
	case models.SensitivityLow:
		return 0.60
	case models.SensitivityHigh:
		return 0.20
	default:
		return 0.40
	}
}

// Monitor samples an EnergySource every 100ms and tracks a speaking/idle
// state machine. Each tick is O(1) and reads instantaneous state; ticks
// never queue behind a slow consumer because bus publishes are
// non-blocking.
type Monitor struct {
	source    EnergySource
	bus       *events.Bus
	threshold float64

	mu        sync.Mutex
	started   bool
	speaking  bool
	aboveTime time.Duration
	silence   time.Duration
	task      *scheduler.Task
}

// NewMonitor creates a monitor with the sensitivity-derived threshold.
func NewMonitor(source EnergySource, bus *events.Bus, sensitivity models.Sensitivity) *Monitor {
	return &Monitor{
		source:    source,
		bus:       bus,
		threshold: thresholdFor(sensitivity),
	}
}

// Start opens the capture source and begins sampling. No-op if already
// started.
func (m *Monitor) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.started {
		return nil
	}

	if err := m.source.Open(); err != nil {
		return fmt.Errorf("open energy source: %w", err)
	}

	m.started = true
	m.speaking = false
	m.aboveTime = 0
	m.silence = 0
	m.task = scheduler.Repeat("voice-sampling", tickInterval, m.tick)

	slog.Info("voice monitor started", "threshold", m.threshold)
	return nil
}

// Stop cancels sampling and releases the capture source. Idempotent, and
// releases resources regardless of how the monitor got here.
func (m *Monitor) Stop() {
	m.mu.Lock()
	if !m.started {
		m.mu.Unlock()
		return
	}
	m.started = false
	task := m.task
	m.task = nil
	m.speaking = false
	m.mu.Unlock()

	if task != nil {
		task.Stop()
	}
	if err := m.source.Close(); err != nil {
		slog.Warn("closing energy source failed", "error", err)
	}
	slog.Info("voice monitor stopped")
}

// Speaking reports whether speech is currently being tracked.
func (m *Monitor) Speaking() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.speaking
}

// tick advances the state machine by one sampling period. Each tick
// stands for tickInterval of elapsed time; durations are accumulated in
// tick units, which keeps the machine deterministic under test.
func (m *Monitor) tick() {
	energy, err := m.source.Sample()
	if err != nil {
		slog.Warn("energy sample failed", "error", err)
		return
	}

	var emit *models.VoiceEvent

	m.mu.Lock()
	switch {
	case !m.speaking:
		if energy > m.threshold {
			m.speaking = true
			m.aboveTime = tickInterval
			m.silence = 0

			confidence := energy / m.threshold
			if confidence > 1 {
				confidence = 1
			}
			emit = &models.VoiceEvent{Type: models.SpeechStart, Confidence: confidence}
		}

	case energy > m.threshold:
		m.aboveTime += tickInterval
		m.silence = 0

	default:
		m.silence += tickInterval
		if m.silence >= silenceDuration {
			duration := m.aboveTime
			m.speaking = false
			m.aboveTime = 0
			m.silence = 0

			if duration >= minSpeechDuration {
				emit = &models.VoiceEvent{Type: models.SpeechEnd, Confidence: endConfidence, Duration: duration}
			} else {
				slog.Debug("speech burst below minimum duration, discarded", "duration", duration)
			}
		}
	}
	m.mu.Unlock()

	if emit == nil {
		return
	}
	switch emit.Type {
	case models.SpeechStart:
		m.bus.Publish(events.TopicSpeechStart, *emit)
	case models.SpeechEnd:
		m.bus.Publish(events.TopicSpeechEnd, *emit)
	}
}
