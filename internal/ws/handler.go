// Package ws exposes the kernel terminal over WebSocket: one shell session
// per connection, line-in / events-out.
package ws

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/oopisos/kernel/internal/infrastructure/logging"
	"github.com/oopisos/kernel/internal/infrastructure/monitoring"
	"github.com/oopisos/kernel/internal/session"
	"github.com/oopisos/kernel/internal/shared/types"
	"github.com/oopisos/kernel/internal/shell/executor"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // origins are filtered by the CORS layer
	},
}

// Message is the client-to-kernel frame.
type Message struct {
	Type string `json:"type"`
	Line string `json:"line,omitempty"`
}

// Event is the kernel-to-client frame.
type Event struct {
	Type string      `json:"type"`
	Data interface{} `json:"data,omitempty"`
}

// Handler manages WebSocket terminal connections.
type Handler struct {
	exec     *executor.Executor
	sessions *session.Manager
	metrics  *monitoring.Metrics
	log      *logging.Logger
}

// NewHandler creates the terminal handler.
func NewHandler(exec *executor.Executor, sessions *session.Manager, metrics *monitoring.Metrics, log *logging.Logger) *Handler {
	return &Handler{exec: exec, sessions: sessions, metrics: metrics, log: log}
}

// HandleConnection upgrades the request and runs the terminal loop. The
// connection owns one session; closing it drops the session and its jobs.
func (h *Handler) HandleConnection(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	reqCtx := c.Request.Context()
	sess := h.sessions.Open(reqCtx, session.DefaultUser)
	defer func() {
		h.exec.DropJobs(sess)
		h.sessions.Close(sess)
		h.metrics.DecWSConnections()
		h.metrics.SetSessionsActive(h.sessions.Count())
	}()
	h.metrics.IncWSConnections()
	h.metrics.SetSessionsActive(h.sessions.Count())

	term := &terminal{conn: conn, metrics: h.metrics}
	term.send(Event{Type: "prompt", Data: executor.Prompt(sess)})

	for {
		var msg Message
		if err := conn.ReadJSON(&msg); err != nil {
			return
		}
		h.metrics.RecordWSMessage("in", msg.Type)

		switch msg.Type {
		case "execute":
			h.execute(reqCtx, term, sess, msg.Line)
		case "ping":
			term.send(Event{Type: "pong"})
		default:
			term.send(Event{Type: "error", Data: map[string]string{
				"message": "unknown message type: " + msg.Type,
			}})
		}
	}
}

func (h *Handler) execute(ctx context.Context, term *terminal, sess *session.Session, line string) {
	out := h.exec.Execute(ctx, sess, term, line)

	if out.Effect == types.EffectClearScreen {
		term.send(Event{Type: "clear"})
	}
	if out.Output != "" {
		term.send(Event{Type: "output", Data: out.Output})
	}
	if out.Errors != "" {
		term.send(Event{Type: "error", Data: map[string]string{"message": out.Errors}})
	}
	if out.Effect == types.EffectReboot {
		term.send(Event{Type: "reboot"})
	}
	term.send(Event{Type: "prompt", Data: executor.Prompt(sess)})
}

// terminal wraps the connection with the event vocabulary and implements
// the command prompter over a request/response exchange.
type terminal struct {
	conn    *websocket.Conn
	metrics *monitoring.Metrics
}

func (t *terminal) send(ev Event) {
	t.metrics.RecordWSMessage("out", ev.Type)
	_ = t.conn.WriteJSON(ev)
}

// ask sends a prompt request and waits for the client's response frame.
// The exchange runs on the read-loop goroutine, so no other input can
// interleave.
func (t *terminal) ask(ctx context.Context, kind, prompt string) (string, error) {
	t.send(Event{Type: "prompt_request", Data: map[string]string{
		"kind":   kind,
		"prompt": prompt,
	}})
	deadline := time.Now().Add(5 * time.Minute)
	_ = t.conn.SetReadDeadline(deadline)
	defer t.conn.SetReadDeadline(time.Time{})

	for {
		if err := ctx.Err(); err != nil {
			return "", types.NewError(types.KindAborted, "prompt aborted")
		}
		var msg Message
		if err := t.conn.ReadJSON(&msg); err != nil {
			return "", types.NewError(types.KindNotInteractive, "terminal went away during prompt")
		}
		t.metrics.RecordWSMessage("in", msg.Type)
		if msg.Type == "prompt_response" {
			return msg.Line, nil
		}
		t.send(Event{Type: "error", Data: map[string]string{
			"message": "a prompt is pending; send prompt_response",
		}})
	}
}

// ReadLine implements command.Prompter.
func (t *terminal) ReadLine(ctx context.Context, prompt string) (string, error) {
	return t.ask(ctx, "line", prompt)
}

// ReadSecret implements command.Prompter.
func (t *terminal) ReadSecret(ctx context.Context, prompt string) (string, error) {
	return t.ask(ctx, "secret", prompt)
}

// Confirm implements command.Prompter.
func (t *terminal) Confirm(ctx context.Context, prompt string) (bool, error) {
	answer, err := t.ask(ctx, "confirm", prompt)
	if err != nil {
		return false, err
	}
	switch answer {
	case "y", "Y", "yes", "YES":
		return true, nil
	}
	return false, nil
}
