package logger

import (
	"context"
	"log/slog"
	"os"
	"sync"
)

// Appender is a sink attached to the root logger. It sees every record that
// passes its own Enabled check.
type Appender interface {
	slog.Handler
	Name() string
}

// Root is the process root logger. Appenders can be attached and detached at
// any time; loggers derived with With/WithGroup observe the change.
type Root struct {
	*slog.Logger

	mu        sync.RWMutex
	appenders []Appender
}

// New creates a root logger based on the environment.
// For "production", the console handler is JSON.
// For other environments, it is a text handler with debug level.
func New(env string) *Root {
	var handler slog.Handler
	if env == "production" {
		handler = slog.NewJSONHandler(os.Stdout, nil)
	} else {
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		})
	}
	return NewWithHandler(handler)
}

// NewWithHandler creates a root logger writing console output to handler.
func NewWithHandler(console slog.Handler) *Root {
	r := &Root{}
	r.Logger = slog.New(&fanoutHandler{root: r, console: console})
	return r
}

// AddAppender attaches a to the root logger. Adding the same appender twice is a no-op.
func (r *Root) AddAppender(a Appender) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.appenders {
		if existing == a {
			return
		}
	}
	next := make([]Appender, 0, len(r.appenders)+1)
	next = append(next, r.appenders...)
	r.appenders = append(next, a)
}

// RemoveAppender detaches a, reporting whether it was attached.
func (r *Root) RemoveAppender(a Appender) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, existing := range r.appenders {
		if existing == a {
			next := make([]Appender, 0, len(r.appenders)-1)
			next = append(next, r.appenders[:i]...)
			r.appenders = append(next, r.appenders[i+1:]...)
			return true
		}
	}
	return false
}

// Appenders returns the currently attached appenders.
func (r *Root) Appenders() []Appender {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.appenders
}

// fanoutHandler writes to the console and to every attached appender.
// Attributes and groups are replayed onto appenders per record because
// appenders may be attached after a derived logger was created.
type fanoutHandler struct {
	root    *Root
	console slog.Handler
	derive  []func(slog.Handler) slog.Handler
}

func (h *fanoutHandler) Enabled(ctx context.Context, l slog.Level) bool {
	if h.console.Enabled(ctx, l) {
		return true
	}
	for _, a := range h.root.Appenders() {
		if a.Enabled(ctx, l) {
			return true
		}
	}
	return false
}

func (h *fanoutHandler) Handle(ctx context.Context, r slog.Record) error {
	var firstErr error
	if h.console.Enabled(ctx, r.Level) {
		firstErr = h.console.Handle(ctx, r)
	}

	for _, a := range h.root.Appenders() {
		if !a.Enabled(ctx, r.Level) {
			continue
		}
		var target slog.Handler = a
		for _, d := range h.derive {
			target = d(target)
		}
		if err := target.Handle(ctx, r.Clone()); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (h *fanoutHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	if len(attrs) == 0 {
		return h
	}
	return h.with(h.console.WithAttrs(attrs), func(next slog.Handler) slog.Handler {
		return next.WithAttrs(attrs)
	})
}

func (h *fanoutHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	return h.with(h.console.WithGroup(name), func(next slog.Handler) slog.Handler {
		return next.WithGroup(name)
	})
}

func (h *fanoutHandler) with(console slog.Handler, d func(slog.Handler) slog.Handler) *fanoutHandler {
	derive := make([]func(slog.Handler) slog.Handler, 0, len(h.derive)+1)
	derive = append(derive, h.derive...)
	return &fanoutHandler{
		root:    h.root,
		console: console,
		derive:  append(derive, d),
	}
}
