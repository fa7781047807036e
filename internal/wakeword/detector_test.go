package wakeword

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edenlabs/eden/internal/events"
	"github.com/edenlabs/eden/internal/models"
)

func TestSimilarity(t *testing.T) {
	tests := []struct {
		a, b string
		want float64
	}{
		{"eden", "eden", 1.0},
		// Adjacent transposition is one edit, not two.
		{"edne", "eden", 0.75},
		{"aden", "eden", 0.75},
		{"edn", "eden", 0.75},
		{"xxxx", "eden", 0.0},
		{"", "", 1.0},
		{"", "eden", 0.0},
	}

	for _, tt := range tests {
		assert.InDelta(t, tt.want, similarity(tt.a, tt.b), 1e-9, "similarity(%q, %q)", tt.a, tt.b)
	}
}

func TestMatchPhraseTiers(t *testing.T) {
	phrases := []string{"eden", "hey assistant"}
	threshold := thresholdFor(models.SensitivityMedium)

	tests := []struct {
		name       string
		transcript string
		wantPhrase string
		wantMatch  bool
	}{
		{"exact", "eden", "eden", true},
		{"exact with case and space", "  EDEN ", "eden", true},
		{"substring", "okay eden what time is it", "eden", true},
		{"fuzzy transposition at boundary", "edne", "eden", true},
		{"fuzzy below threshold", "ebon", "", false},
		{"no match", "completely unrelated words", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			phrase, ok := matchPhrase(normalize(tt.transcript), phrases, threshold)
			assert.Equal(t, tt.wantMatch, ok)
			if tt.wantMatch {
				assert.Equal(t, tt.wantPhrase, phrase)
			}
		})
	}
}

func TestMatchPhraseSecondPhrase(t *testing.T) {
	phrases := []string{"eden", "hey assistant"}
	phrase, ok := matchPhrase(normalize("hey assistant are you there"), phrases, 0.99)
	require.True(t, ok)
	assert.Equal(t, "hey assistant", phrase)
}

func TestMatchPhraseDeclarationOrderWins(t *testing.T) {
	// Both phrases match; the first declared wins.
	phrases := []string{"good eden", "eden"}
	phrase, ok := matchPhrase(normalize("good eden morning"), phrases, 0.75)
	require.True(t, ok)
	assert.Equal(t, "good eden", phrase)
}

func TestHighSensitivityRejectsTransposition(t *testing.T) {
	phrases := []string{"eden"}
	// 0.75 similarity is under the high-sensitivity 0.85 threshold.
	_, ok := matchPhrase("edne", phrases, thresholdFor(models.SensitivityHigh))
	assert.False(t, ok)

	// But it clears low sensitivity.
	_, ok = matchPhrase("edne", phrases, thresholdFor(models.SensitivityLow))
	assert.True(t, ok)
}

// fakeRecognizer hands out scripted transcript streams, one per Start.
type fakeRecognizer struct {
	mu      sync.Mutex
	scripts [][]Transcript
	starts  int
	stops   int
}

func (f *fakeRecognizer) Start(ctx context.Context) (<-chan Transcript, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var script []Transcript
	if f.starts < len(f.scripts) {
		script = f.scripts[f.starts]
	}
	f.starts++
	exhausted := f.starts > len(f.scripts)

	ch := make(chan Transcript)
	go func() {
		defer close(ch)
		for _, tr := range script {
			select {
			case ch <- tr:
			case <-ctx.Done():
				return
			}
		}
		if exhausted {
			// Out of scripts: hold the stream open until cancelled so
			// the detector stops restarting.
			<-ctx.Done()
		}
	}()
	return ch, nil
}

func (f *fakeRecognizer) Stop() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stops++
	return nil
}

func (f *fakeRecognizer) startCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.starts
}

func waitForEvent(t *testing.T, sub *events.Subscription) events.Event {
	t.Helper()
	select {
	case ev := <-sub.C():
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for wake-word event")
		return events.Event{}
	}
}

func TestDetectorPublishesEvent(t *testing.T) {
	bus := events.NewBus()
	defer bus.Close()
	sub := bus.Subscribe(events.TopicWakeWordDetected)

	rec := &fakeRecognizer{scripts: [][]Transcript{{
		{Text: "nothing interesting", Confidence: 0.9},
		{Text: "hey eden", Confidence: 0.82},
	}}}
	d := NewDetector(rec, bus, []string{"eden"}, models.SensitivityMedium)
	d.restartDelay = 5 * time.Millisecond

	require.NoError(t, d.Start())
	defer d.Stop()

	ev := waitForEvent(t, sub)
	we := ev.Payload.(models.WakeWordEvent)
	assert.Equal(t, "eden", we.Phrase)
	assert.Equal(t, 0.82, we.Confidence)
	assert.False(t, we.Timestamp.IsZero())
}

func TestDetectorRestartsAfterStreamEnds(t *testing.T) {
	bus := events.NewBus()
	defer bus.Close()
	sub := bus.Subscribe(events.TopicWakeWordDetected)

	// First stream ends without a match; the match arrives on the
	// restarted stream.
	rec := &fakeRecognizer{scripts: [][]Transcript{
		{{Text: "no match here", Confidence: 0.9}},
		{{Text: "eden", Confidence: 0.95}},
	}}
	d := NewDetector(rec, bus, []string{"eden"}, models.SensitivityMedium)
	d.restartDelay = 5 * time.Millisecond

	require.NoError(t, d.Start())
	defer d.Stop()

	ev := waitForEvent(t, sub)
	assert.Equal(t, "eden", ev.Payload.(models.WakeWordEvent).Phrase)
	assert.GreaterOrEqual(t, rec.startCount(), 2)
}

func TestDetectorStopIsIdempotent(t *testing.T) {
	bus := events.NewBus()
	defer bus.Close()

	rec := &fakeRecognizer{}
	d := NewDetector(rec, bus, []string{"eden"}, models.SensitivityMedium)
	d.restartDelay = 5 * time.Millisecond

	require.NoError(t, d.Start())
	require.NoError(t, d.Start()) // already running

	d.Stop()
	d.Stop()
	assert.Equal(t, 1, rec.stops)
}

func TestNoopRecognizerNeverTerminates(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	rec := NewNoopRecognizer()

	stream, err := rec.Start(ctx)
	require.NoError(t, err)

	select {
	case _, ok := <-stream:
		assert.Fail(t, "unexpected receive", "ok=%v", ok)
	case <-time.After(50 * time.Millisecond):
	}

	cancel()
	_, ok := <-stream
	assert.False(t, ok, "stream closes on cancel")
	assert.NoError(t, rec.Stop())
}
