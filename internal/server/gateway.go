// Package server exposes the assistant to the UI over a WebSocket
// gateway: bus events are pushed to connected clients as JSON frames,
// and clients send commands that map onto the orchestrator surface.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/edenlabs/eden/internal/config"
	"github.com/edenlabs/eden/internal/events"
	"github.com/edenlabs/eden/internal/metrics"
	"github.com/edenlabs/eden/internal/models"
	"github.com/edenlabs/eden/internal/orchestrator"
)

// Conversation is the orchestrator surface the gateway drives.
// Implemented by orchestrator.Orchestrator.
type Conversation interface {
	ProcessQuery(ctx context.Context, query string, opts orchestrator.QueryOptions) (*orchestrator.QueryResult, error)
	StartListening() error
	StopListening() error
	UpdateConfig(opts config.AssistantOptions) error
	TriggerProactiveMessage(ctx context.Context) (string, error)
	Context() models.ConversationContext
}

var _ Conversation = (*orchestrator.Orchestrator)(nil)

const (
	writeTimeout = 10 * time.Second
	// outboundBuffer bounds per-client queueing; a client that cannot
	// keep up gets disconnected rather than backing up the bus.
	outboundBuffer = 64
)

// commandFrame is an inbound client message.
type commandFrame struct {
	Type           string                   `json:"type"`
	ID             string                   `json:"id,omitempty"`
	Query          string                   `json:"query,omitempty"`
	ForceMode      string                   `json:"force_mode,omitempty"`
	SkipGrounding  bool                     `json:"skip_grounding,omitempty"`
	ConversationID string                   `json:"conversation_id,omitempty"`
	Options        *config.AssistantOptions `json:"options,omitempty"`
}

// frame is an outbound message: a pushed bus event, a command result, or
// a command error.
type frame struct {
	Kind    string       `json:"kind"`
	ID      string       `json:"id,omitempty"`
	Topic   events.Topic `json:"topic,omitempty"`
	Payload any          `json:"payload,omitempty"`
	Error   string       `json:"error,omitempty"`
}

// Gateway serves the WebSocket endpoint and a couple of plain HTTP
// status routes.
type Gateway struct {
	conv      Conversation
	bus       *events.Bus
	collector *metrics.Collector
	logger    *slog.Logger
	upgrader  websocket.Upgrader
}

// NewGateway creates a gateway over the given conversation surface.
func NewGateway(conv Conversation, bus *events.Bus, collector *metrics.Collector, logger *slog.Logger) *Gateway {
	return &Gateway{
		conv:      conv,
		bus:       bus,
		collector: collector,
		logger:    logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// The UI is a local desktop shell; the gateway binds to
			// localhost and does not enforce an origin allowlist.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

// Handler returns the HTTP routes: /ws for the event/command socket,
// /healthz and /stats for plain status.
func (g *Gateway) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", g.handleWS)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("/stats", g.handleStats)
	return mux
}

// Run serves until the context is cancelled, then shuts down gracefully.
func (g *Gateway) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           g.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		g.logger.Info("gateway listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("gateway: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func (g *Gateway) handleStats(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	payload := map[string]any{
		"context": g.conv.Context(),
		"bus":     g.bus.Metrics(),
	}
	if g.collector != nil {
		payload["operations"] = g.collector.Snapshot()
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		g.logger.Warn("encoding stats failed", "error", err)
	}
}

func (g *Gateway) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		g.logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	client := &client{
		gateway: g,
		conn:    conn,
		sub:     g.bus.Subscribe(),
		out:     make(chan frame, outboundBuffer),
		done:    make(chan struct{}),
	}
	g.logger.Info("ui client connected", "remote", r.RemoteAddr)

	go client.writePump()
	go client.forwardEvents()
	client.readPump(r.Context())
}

// client is one connected UI. A single writer goroutine owns the
// connection's write side; events and command results are funneled
// through out.
type client struct {
	gateway *Gateway
	conn    *websocket.Conn
	sub     *events.Subscription
	out     chan frame
	done    chan struct{}
}

func (c *client) forwardEvents() {
	for ev := range c.sub.C() {
		select {
		case c.out <- frame{Kind: "event", Topic: ev.Topic, Payload: ev.Payload}:
		case <-c.done:
			return
		default:
			c.gateway.logger.Warn("ui client too slow, dropping connection")
			c.conn.Close()
			return
		}
	}
}

func (c *client) writePump() {
	for {
		select {
		case f := <-c.out:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.conn.WriteJSON(f); err != nil {
				c.conn.Close()
				return
			}
		case <-c.done:
			return
		}
	}
}

func (c *client) readPump(ctx context.Context) {
	defer func() {
		c.sub.Unsubscribe()
		close(c.done)
		c.conn.Close()
		c.gateway.logger.Info("ui client disconnected")
	}()

	for {
		var cmd commandFrame
		if err := c.conn.ReadJSON(&cmd); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.gateway.logger.Warn("ui read failed", "error", err)
			}
			return
		}

		result, err := c.gateway.dispatch(ctx, cmd)
		reply := frame{Kind: "result", ID: cmd.ID, Payload: result}
		if err != nil {
			reply = frame{Kind: "error", ID: cmd.ID, Error: err.Error()}
		}

		select {
		case c.out <- reply:
		case <-c.done:
			return
		}
	}
}

// dispatch maps a command onto the conversation surface.
func (g *Gateway) dispatch(ctx context.Context, cmd commandFrame) (any, error) {
	switch cmd.Type {
	case "process_query":
		opts := orchestrator.QueryOptions{
			SkipGrounding:  cmd.SkipGrounding,
			ConversationID: cmd.ConversationID,
		}
		if cmd.ForceMode != "" {
			mode, err := models.ParseMode(cmd.ForceMode)
			if err != nil {
				return nil, err
			}
			opts.ForceMode = mode
		}
		return g.conv.ProcessQuery(ctx, cmd.Query, opts)

	case "start_listening":
		return g.conv.Context(), g.conv.StartListening()

	case "stop_listening":
		return g.conv.Context(), g.conv.StopListening()

	case "update_config":
		if cmd.Options == nil {
			return nil, fmt.Errorf("update_config requires options")
		}
		return g.conv.Context(), g.conv.UpdateConfig(*cmd.Options)

	case "trigger_proactive":
		return g.conv.TriggerProactiveMessage(ctx)

	case "get_context":
		return g.conv.Context(), nil

	default:
		return nil, fmt.Errorf("unknown command: %q", cmd.Type)
	}
}
