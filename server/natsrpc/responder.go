// Package natsrpc serves resolve turns as NATS request/reply.
package natsrpc

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/pkg/errors"

	"github.com/hrygo/slotsense/ai/agents/scheduler"
	"github.com/hrygo/slotsense/server"
	"github.com/hrygo/slotsense/server/service/schedule"
)

const (
	defaultRequestTimeout = 30 * time.Second
	connectTimeout        = 5 * time.Second
)

// Config configures the responder.
type Config struct {
	URL     string
	Subject string
	Name    string
	// RequestTimeout bounds one turn, since NATS messages carry no deadline.
	RequestTimeout time.Duration
}

// Reply is the JSON answer to one request. Status mirrors the HTTP status
// the same outcome gets from the HTTP adapter.
type Reply struct {
	Status   int                 `json:"status"`
	Decision *scheduler.Decision `json:"decision,omitempty"`
	Error    *server.ErrorBody   `json:"error,omitempty"`
}

type Responder struct {
	cfg      Config
	resolver server.Resolver
	conn     *nats.Conn
}

// NewResponder creates a responder without connecting.
func NewResponder(cfg Config, resolver server.Resolver) *Responder {
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = defaultRequestTimeout
	}
	if cfg.Name == "" {
		cfg.Name = "slotsense"
	}
	return &Responder{cfg: cfg, resolver: resolver}
}

// Start connects and subscribes. It returns once the subscription is live.
func (r *Responder) Start() error {
	conn, err := nats.Connect(r.cfg.URL,
		nats.Name(r.cfg.Name),
		nats.Timeout(connectTimeout),
		nats.ReconnectWait(2*time.Second),
		nats.MaxReconnects(-1),
	)
	if err != nil {
		return errors.Wrap(err, "failed to connect to NATS")
	}
	slog.Info("connected to NATS", "url", r.cfg.URL)

	if _, err := conn.Subscribe(r.cfg.Subject, r.handleMsg); err != nil {
		conn.Close()
		return errors.Wrapf(err, "failed to subscribe to %s", r.cfg.Subject)
	}
	r.conn = conn
	slog.Info("subscribed to NATS subject", "subject", r.cfg.Subject)
	return nil
}

// Run starts the responder and blocks until ctx is done.
func (r *Responder) Run(ctx context.Context) error {
	if err := r.Start(); err != nil {
		return err
	}
	<-ctx.Done()
	return r.Close()
}

func (r *Responder) handleMsg(msg *nats.Msg) {
	ctx, cancel := context.WithTimeout(context.Background(), r.cfg.RequestTimeout)
	defer cancel()

	if err := msg.Respond(r.handle(ctx, msg.Data)); err != nil {
		slog.Warn("failed to send NATS reply", "subject", msg.Subject, "error", err)
	}
}

// handle decodes one request and encodes its reply.
func (r *Responder) handle(ctx context.Context, data []byte) []byte {
	var req scheduler.ResolveRequest
	reply := Reply{}
	if err := json.Unmarshal(data, &req); err != nil {
		status, body := server.ErrorResponse(&schedule.ValidationError{Field: "body", Reason: "must be a JSON object with a query"})
		reply.Status, reply.Error = status, &body
		return encode(reply)
	}

	decision, err := r.resolver.Resolve(ctx, req)
	if err != nil {
		status, body := server.ErrorResponse(err)
		reply.Status, reply.Error = status, &body
		slog.Warn("resolve over NATS failed", "conversation_id", body.ConversationID, "error", err)
		return encode(reply)
	}
	reply.Status, reply.Decision = http.StatusOK, decision
	return encode(reply)
}

func encode(reply Reply) []byte {
	data, err := json.Marshal(reply)
	if err != nil {
		slog.Error("failed to marshal NATS reply", "error", err)
		return []byte(`{"status":500,"error":{"error":"internal","message":"Something went wrong while handling your request. Please try again."}}`)
	}
	return data
}

// Close drains pending requests and closes the connection.
func (r *Responder) Close() error {
	if r.conn == nil {
		return nil
	}
	if err := r.conn.Drain(); err != nil {
		slog.Warn("failed to drain NATS connection", "error", err)
		r.conn.Close()
	}
	slog.Info("NATS connection closed")
	return nil
}
