// Package notify delivers user-facing notifications (toasts) through an
// explicit Sink that is injected into whichever component emits them.
package notify

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// Severity classifies a notification.
type Severity string

const (
	SeveritySuccess Severity = "success"
	SeverityError   Severity = "error"
	SeverityInfo    Severity = "info"
)

// DefaultLife is how long a toast stays visible.
const DefaultLife = 3 * time.Second

// Notification is a single user-visible message.
type Notification struct {
	Severity Severity      `json:"severity"`
	Summary  string        `json:"summary"`
	Detail   string        `json:"detail"`
	Life     time.Duration `json:"life"`
}

// Success builds a success notification.
func Success(detail string) Notification {
	return Notification{Severity: SeveritySuccess, Summary: "Success", Detail: detail, Life: DefaultLife}
}

// Failure builds an error notification whose detail is the given message.
func Failure(detail string) Notification {
	return Notification{Severity: SeverityError, Summary: "Error", Detail: detail, Life: DefaultLife}
}

// Sink receives notifications.
type Sink interface {
	Notify(ctx context.Context, n Notification)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, n Notification)

// Notify calls f.
func (f SinkFunc) Notify(ctx context.Context, n Notification) { f(ctx, n) }

// Discard drops every notification.
var Discard Sink = SinkFunc(func(context.Context, Notification) {})

// Fanout delivers each notification to every sink in order.
type Fanout []Sink

// Notify implements Sink.
func (f Fanout) Notify(ctx context.Context, n Notification) {
	for _, s := range f {
		if s != nil {
			s.Notify(ctx, n)
		}
	}
}

// LogSink writes notifications to a slog.Logger.
type LogSink struct {
	Logger *slog.Logger
}

// Notify implements Sink.
func (s LogSink) Notify(ctx context.Context, n Notification) {
	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}
	level := slog.LevelInfo
	if n.Severity == SeverityError {
		level = slog.LevelWarn
	}
	logger.Log(ctx, level, "notification",
		slog.String("severity", string(n.Severity)),
		slog.String("detail", n.Detail),
	)
}

// Collector accumulates the notifications raised while serving one request.
type Collector struct {
	mu    sync.Mutex
	items []Notification
}

// Add appends n.
func (c *Collector) Add(n Notification) {
	c.mu.Lock()
	c.items = append(c.items, n)
	c.mu.Unlock()
}

// Drain returns the collected notifications and empties the collector.
func (c *Collector) Drain() []Notification {
	c.mu.Lock()
	defer c.mu.Unlock()
	items := c.items
	c.items = nil
	return items
}

type collectorKey struct{}

// WithCollector returns a context carrying a fresh Collector.
func WithCollector(ctx context.Context) (context.Context, *Collector) {
	c := &Collector{}
	return context.WithValue(ctx, collectorKey{}, c), c
}

// CollectorFrom returns the Collector carried by ctx, if any.
func CollectorFrom(ctx context.Context) (*Collector, bool) {
	if ctx == nil {
		return nil, false
	}
	c, ok := ctx.Value(collectorKey{}).(*Collector)
	return c, ok && c != nil
}

// ContextSink appends notifications to the Collector found in the context.
// Notifications raised outside a collecting context are dropped.
type ContextSink struct{}

// Notify implements Sink.
func (ContextSink) Notify(ctx context.Context, n Notification) {
	if c, ok := CollectorFrom(ctx); ok {
		c.Add(n)
	}
}

// Skip reports whether err should not be turned into a notification:
// requests cancelled by their caller are not user-visible failures.
func Skip(err error) bool {
	return errors.Is(err, context.Canceled)
}
