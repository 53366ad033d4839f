// Package zerolog adapts github.com/rs/zerolog to the safeconn logger
// interface, for applications that already log through zerolog.
package zerolog

import (
	"fmt"
	"io"

	"github.com/rs/zerolog"
)

// Handler implements logger.Logger on top of a zerolog.Logger.
type Handler struct {
	logger zerolog.Logger
}

// New returns a Handler writing timestamped events to w.
func New(w io.Writer) *Handler {
	return &Handler{logger: zerolog.New(w).With().Timestamp().Logger()}
}

// FromLogger wraps an existing zerolog.Logger.
func FromLogger(l zerolog.Logger) *Handler {
	return &Handler{logger: l}
}

func (h *Handler) Error(msg string, args ...any) {
	withFields(h.logger.Error(), args).Msg(msg)
}

func (h *Handler) Warn(msg string, args ...any) {
	withFields(h.logger.Warn(), args).Msg(msg)
}

func (h *Handler) Info(msg string, args ...any) {
	withFields(h.logger.Info(), args).Msg(msg)
}

func (h *Handler) Debug(msg string, args ...any) {
	withFields(h.logger.Debug(), args).Msg(msg)
}

// withFields folds slog-style key-value pairs into the event. A trailing key
// without a value is logged as-is under the "arg" key.
func withFields(ev *zerolog.Event, args []any) *zerolog.Event {
	for i := 0; i+1 < len(args); i += 2 {
		key, ok := args[i].(string)
		if !ok {
			key = fmt.Sprint(args[i])
		}
		ev = ev.Interface(key, args[i+1])
	}
	if len(args)%2 == 1 {
		ev = ev.Interface("arg", args[len(args)-1])
	}
	return ev
}
