// Package orchestrator sequences retrieval, grounding, generation, and
// validation for each conversational turn, and coordinates the ambient
// voice, wake-word, idle, and proactive signals around it.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/edenlabs/eden/internal/config"
	"github.com/edenlabs/eden/internal/events"
	"github.com/edenlabs/eden/internal/grounding"
	"github.com/edenlabs/eden/internal/memory"
	"github.com/edenlabs/eden/internal/models"
	"github.com/edenlabs/eden/internal/scheduler"
)

// ErrNotInitialized is returned when ProcessQuery or a listening control
// runs before Initialize.
var ErrNotInitialized = errors.New("orchestrator not initialized")

// idleTickInterval drives idle-duration recomputation; idleNotifyEvery
// is the boundary at which idle-update events fire.
const (
	idleTickInterval = time.Minute
	idleNotifyEvery  = 15
)

// MemoryStore is what the orchestrator needs from the episodic store.
type MemoryStore interface {
	SearchEpisodes(ctx context.Context, query string, opts memory.SearchOptions) (*models.SearchResult, error)
	StoreEpisode(ctx context.Context, ep *models.Episode) (string, error)
}

// Generator is the generation engine: one call in flight at a time,
// which ProcessQuery's serialization guarantees.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// AmbientComponent is a start/stoppable ambient input (voice monitor,
// wake-word detector).
type AmbientComponent interface {
	Start() error
	Stop()
}

// Deps are the injected collaborators. No singletons; everything is
// constructed by the caller and owned here for its lifetime.
type Deps struct {
	Store     MemoryStore
	Validator grounding.Validator
	Generator Generator
	Bus       *events.Bus
	Voice     AmbientComponent
	WakeWord  AmbientComponent
	Runner    *scheduler.Runner
}

// QueryOptions tune a single ProcessQuery call.
type QueryOptions struct {
	ForceMode      models.Mode
	SkipGrounding  bool
	ConversationID string
}

// QueryResult is the full outcome of one turn: the response text, a
// snapshot of the conversation context, and the grounding verdict when
// the grounded path ran.
type QueryResult struct {
	Response   string                     `json:"response"`
	Context    models.ConversationContext `json:"context"`
	Validation *models.ValidationSummary  `json:"validation,omitempty"`
}

// Orchestrator owns the conversation state machine. ProcessQuery calls
// are serialized by turnMu: overlapping turns would interleave writes to
// the shared context and race the generation engine. State access uses
// the separate mu with short critical sections so the idle and voice
// timers keep ticking during long generations.
type Orchestrator struct {
	deps Deps

	// turnMu serializes ProcessQuery end to end.
	turnMu sync.Mutex

	mu          sync.Mutex
	opts        config.AssistantOptions
	convCtx     models.ConversationContext
	initialized bool

	proactivePaused bool
	lastIdleNotify  int

	proactiveTask *scheduler.Task
	ambientSub    *events.Subscription
	ambientDone   chan struct{}
}

// New creates an orchestrator. Call Initialize before use.
func New(opts config.AssistantOptions, deps Deps) *Orchestrator {
	return &Orchestrator{
		deps: deps,
		opts: opts,
		convCtx: models.ConversationContext{
			Mode:            models.ModeFast,
			VoiceState:      models.VoiceIdle,
			LastInteraction: time.Now(),
		},
	}
}

// Initialize starts the ambient machinery per the enabled flags: the
// proactive scheduler, the voice monitor, the wake-word detector, and
// the 1-minute idle tick. Component start failures are fatal.
func (o *Orchestrator) Initialize() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.initialized {
		return nil
	}

	if o.opts.VADEnabled && o.deps.Voice != nil {
		if err := o.deps.Voice.Start(); err != nil {
			return fmt.Errorf("start voice monitor: %w", err)
		}
	}
	if o.opts.WakeWordEnabled && o.deps.WakeWord != nil {
		if err := o.deps.WakeWord.Start(); err != nil {
			return fmt.Errorf("start wake-word detector: %w", err)
		}
	}
	if o.opts.ProactiveEnabled {
		o.proactiveTask = o.deps.Runner.Repeat("proactive", o.opts.ProactiveFrequency, o.proactiveTick)
	}
	o.deps.Runner.Repeat("idle-tick", idleTickInterval, o.idleTick)

	o.ambientSub = o.deps.Bus.Subscribe(events.TopicSpeechEnd, events.TopicWakeWordDetected)
	o.ambientDone = make(chan struct{})
	go o.consumeAmbient(o.ambientSub, o.ambientDone)

	o.initialized = true
	slog.Info("orchestrator initialized",
		"grounding", o.opts.GroundingEnabled,
		"proactive", o.opts.ProactiveEnabled,
		"vad", o.opts.VADEnabled,
		"wake_word", o.opts.WakeWordEnabled)
	return nil
}

// consumeAmbient fans ambient detections into conversational behavior:
// a finished utterance requests that the recording be processed, and a
// wake word puts the assistant into listening.
func (o *Orchestrator) consumeAmbient(sub *events.Subscription, done chan struct{}) {
	defer close(done)
	for ev := range sub.C() {
		switch ev.Topic {
		case events.TopicSpeechEnd:
			o.deps.Bus.Publish(events.TopicRecordingRequest, ev.Payload)
		case events.TopicWakeWordDetected:
			if err := o.StartListening(); err != nil {
				slog.Warn("auto-start listening failed", "error", err)
			}
		}
	}
}

// ProcessQuery runs one conversational turn. Retrieval and validation
// failures propagate; generation failures are converted to a localized
// fallback and never surface. Proactive scheduling is paused for the
// duration of the turn.
func (o *Orchestrator) ProcessQuery(ctx context.Context, query string, queryOpts QueryOptions) (*QueryResult, error) {
	o.turnMu.Lock()
	defer o.turnMu.Unlock()

	o.mu.Lock()
	if !o.initialized {
		o.mu.Unlock()
		return nil, ErrNotInitialized
	}
	o.proactivePaused = true
	o.convCtx.LastInteraction = time.Now()
	o.convCtx.IdleMinutes = 0
	o.lastIdleNotify = 0
	opts := o.opts
	o.mu.Unlock()

	defer func() {
		o.mu.Lock()
		o.proactivePaused = false
		o.mu.Unlock()
	}()

	retrieved, err := o.deps.Store.SearchEpisodes(ctx, query, memory.SearchOptions{
		TopK:           opts.RetrievalTopK,
		MinSimilarity:  opts.MinSimilarity,
		ConversationID: queryOpts.ConversationID,
	})
	if err != nil {
		return nil, fmt.Errorf("retrieve episodes: %w", err)
	}

	bestSimilarity := 0.0
	if len(retrieved.Episodes) > 0 {
		bestSimilarity = retrieved.Episodes[0].Similarity
	}
	mode := determineMode(query, queryOpts.ForceMode, bestSimilarity, opts.FastModeThreshold)

	var response string
	var summary *models.ValidationSummary

	if opts.GroundingEnabled && !queryOpts.SkipGrounding {
		response, summary, mode, err = o.groundedTurn(ctx, query, retrieved.Episodes, mode, opts)
		if err != nil {
			return nil, err
		}
	} else {
		response = o.directTurn(ctx, query, retrieved.Episodes, mode)
	}

	o.mu.Lock()
	o.convCtx.Mode = mode
	o.convCtx.LastValidation = summary
	snapshot := o.convCtx
	o.mu.Unlock()

	if _, storeErr := o.deps.Store.StoreEpisode(ctx, &models.Episode{
		ConversationID:    queryOpts.ConversationID,
		UserMessage:       query,
		AssistantResponse: response,
	}); storeErr != nil {
		slog.Warn("recording exchange failed", "error", storeErr)
	}

	return &QueryResult{
		Response:   response,
		Context:    snapshot,
		Validation: summary,
	}, nil
}

// groundedTurn runs generate → validate → assess, with exactly one
// regeneration in detailed mode when the assessed risk exceeds the
// configured tolerance. If the regenerated response is still risky it is
// kept anyway; bounded latency wins over a second retry.
func (o *Orchestrator) groundedTurn(ctx context.Context, query string, episodes []models.RetrievedEpisode, mode models.Mode, opts config.AssistantOptions) (string, *models.ValidationSummary, models.Mode, error) {
	bundle, err := o.deps.Validator.GenerateGroundedResponse(ctx, query, episodes)
	if err != nil {
		return "", nil, mode, fmt.Errorf("build context bundle: %w", err)
	}

	prompt := o.deps.Validator.CreatePrompt(query, bundle, mode)
	response, genErr := o.deps.Generator.Generate(ctx, prompt)
	if genErr != nil {
		slog.Error("generation failed, returning fallback", "mode", mode, "error", genErr)
		return fallbackFor(mode), nil, mode, nil
	}

	summary, err := o.validate(ctx, response, bundle, false)
	if err != nil {
		return "", nil, mode, err
	}

	if !summary.Risk.Exceeds(opts.HallucinationRiskTolerance) {
		return response, summary, mode, nil
	}

	slog.Info("hallucination risk above tolerance, regenerating once",
		"risk", summary.Risk, "tolerance", opts.HallucinationRiskTolerance)

	mode = models.ModeDetailed
	prompt = o.deps.Validator.CreatePrompt(query, bundle, mode)
	regenerated, genErr := o.deps.Generator.Generate(ctx, prompt)
	if genErr != nil {
		slog.Error("regeneration failed, returning fallback", "error", genErr)
		summary.Regenerated = true
		return fallbackFor(mode), summary, mode, nil
	}

	regenSummary, err := o.validate(ctx, regenerated, bundle, true)
	if err != nil {
		return "", nil, mode, err
	}
	return regenerated, regenSummary, mode, nil
}

func (o *Orchestrator) validate(ctx context.Context, response string, bundle *grounding.ContextBundle, regenerated bool) (*models.ValidationSummary, error) {
	result, err := o.deps.Validator.ValidateResponse(ctx, response, bundle)
	if err != nil {
		return nil, fmt.Errorf("validate response: %w", err)
	}
	risk := o.deps.Validator.AssessHallucinationRisk(response, bundle, result)
	return &models.ValidationSummary{
		IsGrounded:  result.IsGrounded,
		Confidence:  result.Confidence,
		Risk:        risk,
		Regenerated: regenerated,
	}, nil
}

// directTurn bypasses grounding: the prompt is the query plus raw
// retrieved exchanges, and no validation summary is produced.
func (o *Orchestrator) directTurn(ctx context.Context, query string, episodes []models.RetrievedEpisode, mode models.Mode) string {
	var b strings.Builder
	if len(episodes) > 0 {
		b.WriteString("Earlier exchanges:\n")
		for i := range episodes {
			fmt.Fprintf(&b, "User: %s\nAssistant: %s\n", episodes[i].UserMessage, episodes[i].AssistantResponse)
		}
		b.WriteString("\n")
	}
	fmt.Fprintf(&b, "User: %s", query)

	response, err := o.deps.Generator.Generate(ctx, b.String())
	if err != nil {
		slog.Error("generation failed, returning fallback", "mode", mode, "error", err)
		return fallbackFor(mode)
	}
	return response
}

// StartListening moves the voice pipeline into listening and announces
// it on the bus. Ensures the voice monitor is running when VAD is
// enabled.
func (o *Orchestrator) StartListening() error {
	o.mu.Lock()
	if !o.initialized {
		o.mu.Unlock()
		return ErrNotInitialized
	}
	if o.opts.VADEnabled && o.deps.Voice != nil {
		if err := o.deps.Voice.Start(); err != nil {
			o.mu.Unlock()
			return fmt.Errorf("start voice monitor: %w", err)
		}
	}
	o.convCtx.VoiceState = models.VoiceListening
	o.mu.Unlock()

	o.deps.Bus.Publish(events.TopicStartListening, nil)
	return nil
}

// StopListening returns the voice pipeline to idle.
func (o *Orchestrator) StopListening() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if !o.initialized {
		return ErrNotInitialized
	}
	o.convCtx.VoiceState = models.VoiceIdle
	return nil
}

// TriggerProactiveMessage generates an unprompted check-in and publishes
// it. Generation failures degrade to a fallback, like any other turn.
func (o *Orchestrator) TriggerProactiveMessage(ctx context.Context) (string, error) {
	o.mu.Lock()
	if !o.initialized {
		o.mu.Unlock()
		return "", ErrNotInitialized
	}
	personalityPrompt := o.deps.Validator.CreatePrompt("", nil, models.ModeProactive)
	o.mu.Unlock()

	message, err := o.deps.Generator.Generate(ctx, personalityPrompt)
	if err != nil {
		slog.Error("proactive generation failed, returning fallback", "error", err)
		message = fallbackFor(models.ModeProactive)
	}

	o.deps.Bus.Publish(events.TopicProactiveMessage, message)
	return message, nil
}

// proactiveTick runs on the proactive schedule. Skipped while a turn is
// being handled.
func (o *Orchestrator) proactiveTick() {
	o.mu.Lock()
	paused := o.proactivePaused
	o.mu.Unlock()
	if paused {
		return
	}
	if _, err := o.TriggerProactiveMessage(context.Background()); err != nil {
		slog.Warn("proactive tick failed", "error", err)
	}
}

// idleTick recomputes idle duration and emits an idle-update at every
// 15-idle-minute boundary, once per boundary.
func (o *Orchestrator) idleTick() {
	o.mu.Lock()
	idle := int(time.Since(o.convCtx.LastInteraction).Minutes())
	o.convCtx.IdleMinutes = idle

	notify := idle > 0 && idle%idleNotifyEvery == 0 && idle != o.lastIdleNotify
	if notify {
		o.lastIdleNotify = idle
	}
	o.mu.Unlock()

	if notify {
		o.deps.Bus.Publish(events.TopicIdleUpdate, idle)
	}
}

// UpdateConfig swaps the assistant options at runtime and reconciles the
// ambient components with the new flags.
func (o *Orchestrator) UpdateConfig(opts config.AssistantOptions) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if !o.initialized {
		return ErrNotInitialized
	}

	previous := o.opts
	o.opts = opts

	if o.deps.Voice != nil && previous.VADEnabled != opts.VADEnabled {
		if opts.VADEnabled {
			if err := o.deps.Voice.Start(); err != nil {
				return fmt.Errorf("start voice monitor: %w", err)
			}
		} else {
			o.deps.Voice.Stop()
		}
	}
	if o.deps.WakeWord != nil && previous.WakeWordEnabled != opts.WakeWordEnabled {
		if opts.WakeWordEnabled {
			if err := o.deps.WakeWord.Start(); err != nil {
				return fmt.Errorf("start wake-word detector: %w", err)
			}
		} else {
			o.deps.WakeWord.Stop()
		}
	}

	proactiveChanged := previous.ProactiveEnabled != opts.ProactiveEnabled ||
		previous.ProactiveFrequency != opts.ProactiveFrequency
	if proactiveChanged {
		if o.proactiveTask != nil {
			o.proactiveTask.Stop()
			o.proactiveTask = nil
		}
		if opts.ProactiveEnabled {
			o.proactiveTask = o.deps.Runner.Repeat("proactive", opts.ProactiveFrequency, o.proactiveTick)
		}
	}

	slog.Info("configuration updated")
	return nil
}

// Context returns a snapshot of the conversation context.
func (o *Orchestrator) Context() models.ConversationContext {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.convCtx
}

// Close stops every periodic task and ambient component
// deterministically. Idempotent.
func (o *Orchestrator) Close() {
	o.mu.Lock()
	if !o.initialized {
		o.mu.Unlock()
		return
	}
	o.initialized = false
	sub := o.ambientSub
	done := o.ambientDone
	o.ambientSub = nil
	o.ambientDone = nil
	o.proactiveTask = nil
	o.mu.Unlock()

	o.deps.Runner.StopAll()
	if o.deps.Voice != nil {
		o.deps.Voice.Stop()
	}
	if o.deps.WakeWord != nil {
		o.deps.WakeWord.Stop()
	}
	if sub != nil {
		sub.Unsubscribe()
		<-done
	}
	slog.Info("orchestrator closed")
}
