package voice

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edenlabs/eden/internal/events"
	"github.com/edenlabs/eden/internal/models"
)

// fakeSource replays a scripted sequence of energy samples.
type fakeSource struct {
	mu      sync.Mutex
	samples []float64
	pos     int
	opened  int
	closed  int
	openErr error
}

func (f *fakeSource) Open() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.openErr != nil {
		return f.openErr
	}
	f.opened++
	return nil
}

func (f *fakeSource) Sample() (float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.pos >= len(f.samples) {
		return 0, nil
	}
	s := f.samples[f.pos]
	f.pos++
	return s, nil
}

func (f *fakeSource) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed++
	return nil
}

// drive steps the monitor through n ticks without the scheduler, so the
// state machine runs deterministically.
func drive(m *Monitor, n int) {
	for i := 0; i < n; i++ {
		m.tick()
	}
}

func collect(sub *events.Subscription) []events.Event {
	var out []events.Event
	for {
		select {
		case ev := <-sub.C():
			out = append(out, ev)
		default:
			return out
		}
	}
}

func TestSpeechStartConfidence(t *testing.T) {
	bus := events.NewBus()
	defer bus.Close()
	sub := bus.Subscribe(events.TopicSpeechStart)

	// Medium sensitivity threshold is 0.40.
	src := &fakeSource{samples: []float64{0.1, 0.2, 0.5}}
	m := NewMonitor(src, bus, models.SensitivityMedium)

	drive(m, 3)

	evs := collect(sub)
	require.Len(t, evs, 1)
	ve := evs[0].Payload.(models.VoiceEvent)
	assert.Equal(t, models.SpeechStart, ve.Type)
	assert.InDelta(t, 0.5/0.4, ve.Confidence, 1e-9)
	assert.True(t, m.Speaking())
}

func TestSpeechStartConfidenceClamped(t *testing.T) {
	bus := events.NewBus()
	defer bus.Close()
	sub := bus.Subscribe(events.TopicSpeechStart)

	src := &fakeSource{samples: []float64{0.95}}
	m := NewMonitor(src, bus, models.SensitivityMedium)
	drive(m, 1)

	evs := collect(sub)
	require.Len(t, evs, 1)
	assert.Equal(t, 1.0, evs[0].Payload.(models.VoiceEvent).Confidence)
}

func TestSpeechEndDuration(t *testing.T) {
	bus := events.NewBus()
	defer bus.Close()
	sub := bus.Subscribe(events.TopicSpeechEnd)

	// 5 ticks above threshold (500ms of speech), then 8 ticks of
	// silence (800ms) to trip the exit.
	samples := []float64{0.6, 0.6, 0.6, 0.6, 0.6, 0, 0, 0, 0, 0, 0, 0, 0}
	src := &fakeSource{samples: samples}
	m := NewMonitor(src, bus, models.SensitivityMedium)

	drive(m, len(samples))

	evs := collect(sub)
	require.Len(t, evs, 1)
	ve := evs[0].Payload.(models.VoiceEvent)
	assert.Equal(t, models.SpeechEnd, ve.Type)
	assert.Equal(t, 500*time.Millisecond, ve.Duration)
	assert.Equal(t, endConfidence, ve.Confidence)
	assert.False(t, m.Speaking())
}

func TestShortBurstDiscarded(t *testing.T) {
	bus := events.NewBus()
	defer bus.Close()
	startSub := bus.Subscribe(events.TopicSpeechStart)
	endSub := bus.Subscribe(events.TopicSpeechEnd)

	// 2 ticks of speech (200ms) is under the 300ms minimum.
	samples := []float64{0.6, 0.6, 0, 0, 0, 0, 0, 0, 0, 0}
	src := &fakeSource{samples: samples}
	m := NewMonitor(src, bus, models.SensitivityMedium)

	drive(m, len(samples))

	assert.Len(t, collect(startSub), 1, "speech_start still fires")
	assert.Empty(t, collect(endSub), "short burst must be silently discarded")
	assert.False(t, m.Speaking())
}

func TestBriefSilenceDoesNotEndSpeech(t *testing.T) {
	bus := events.NewBus()
	defer bus.Close()
	sub := bus.Subscribe(events.TopicSpeechEnd)

	// Speech with a 400ms gap in the middle stays one utterance; the
	// gap is under the 800ms silence window.
	samples := []float64{0.6, 0.6, 0.6, 0, 0, 0, 0, 0.6, 0.6}
	src := &fakeSource{samples: samples}
	m := NewMonitor(src, bus, models.SensitivityMedium)

	drive(m, len(samples))

	assert.Empty(t, collect(sub))
	assert.True(t, m.Speaking())
}

func TestDurationCountsOnlyAboveThreshold(t *testing.T) {
	bus := events.NewBus()
	defer bus.Close()
	sub := bus.Subscribe(events.TopicSpeechEnd)

	// 4 ticks above, a 3-tick dip, then silence. Duration must be
	// 400ms, not 700ms.
	samples := []float64{0.6, 0.6, 0.6, 0.6, 0, 0, 0, 0, 0, 0, 0, 0}
	src := &fakeSource{samples: samples}
	m := NewMonitor(src, bus, models.SensitivityMedium)

	drive(m, len(samples))

	evs := collect(sub)
	require.Len(t, evs, 1)
	assert.Equal(t, 400*time.Millisecond, evs[0].Payload.(models.VoiceEvent).Duration)
}

func TestSensitivityThresholds(t *testing.T) {
	assert.Equal(t, 0.60, thresholdFor(models.SensitivityLow))
	assert.Equal(t, 0.40, thresholdFor(models.SensitivityMedium))
	assert.Equal(t, 0.20, thresholdFor(models.SensitivityHigh))
}

func TestStartStopLifecycle(t *testing.T) {
	bus := events.NewBus()
	defer bus.Close()

	src := &fakeSource{}
	m := NewMonitor(src, bus, models.SensitivityMedium)

	require.NoError(t, m.Start())
	require.NoError(t, m.Start()) // already started, no-op
	assert.Equal(t, 1, src.opened)

	m.Stop()
	m.Stop() // idempotent
	assert.Equal(t, 1, src.closed)
	assert.False(t, m.Speaking())
}

func TestStartOpenFailure(t *testing.T) {
	bus := events.NewBus()
	defer bus.Close()

	src := &fakeSource{openErr: errors.New("no capture device")}
	m := NewMonitor(src, bus, models.SensitivityMedium)

	err := m.Start()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "open energy source")

	// Stop after a failed start releases nothing twice.
	m.Stop()
	assert.Equal(t, 0, src.closed)
}
