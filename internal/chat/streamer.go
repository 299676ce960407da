package chat

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/ashureev/agent-studio/internal/stream"
)

// Outcome summarizes a finished exchange.
type Outcome struct {
	Mode     Mode
	Fallback bool
	// Err is the failure that ended the exchange, if any. It has already
	// been rendered into the reply text; callers only need it for logging.
	Err error
}

// Streamer runs exchanges against a live transport and substitutes the
// fallback transport when the live one is missing or unreachable.
type Streamer struct {
	live     Transport
	fallback Transport
	logger   *slog.Logger
}

// NewStreamer creates a streamer. A nil live transport sends every exchange
// straight to the fallback; a nil fallback uses Fallback{}.
func NewStreamer(live, fallback Transport, logger *slog.Logger) *Streamer {
	if fallback == nil {
		fallback = Fallback{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Streamer{live: live, fallback: fallback, logger: logger}
}

// Stream sends req and routes every frame of the response into ex. It
// never returns an error separately: every failure ends up either as a
// fallback reply or as an inline error marker in ex.
func (s *Streamer) Stream(ctx context.Context, req Request, ex *Exchange) Outcome {
	if s.live == nil {
		return s.recover(ctx, req, ex, fmt.Errorf("%w: no backend configured", ErrUnavailable))
	}

	ex.Log(EntryInfo, "Sending message to agent backend", map[string]any{
		"history": len(req.History),
		"agent":   req.Draft.DisplayName(),
	})

	body, err := s.live.Send(ctx, req)
	if err != nil {
		return s.recover(ctx, req, ex, err)
	}
	if err := consume(ctx, body, ex); err != nil {
		return s.recover(ctx, req, ex, err)
	}

	ex.Log(EntrySuccess, "Response complete", map[string]any{"frames": ex.Frames()})
	return Outcome{Mode: ex.Mode()}
}

func (s *Streamer) recover(ctx context.Context, req Request, ex *Exchange, cause error) Outcome {
	switch {
	case errors.Is(cause, context.Canceled):
		ex.Log(EntryInfo, "Exchange cancelled", nil)
		return Outcome{Mode: ex.Mode(), Err: cause}

	case errors.Is(cause, context.DeadlineExceeded):
		ex.Fail(errors.New("response timed out"))
		return Outcome{Mode: ex.Mode(), Err: cause}

	case IsFallbackCause(cause):
		s.logger.Warn("agent backend unavailable, using local fallback",
			"exchange_id", ex.ID(), "partial", ex.Text() != "", "error", cause)
		ex.Log(EntryInfo, "Switching to local fallback", map[string]any{"cause": cause.Error()})
		ex.SetMode(ModeMock)
		ex.separate()
		ex.publish()

		body, err := s.fallback.Send(ctx, req)
		if err == nil {
			err = consume(ctx, body, ex)
		}
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return Outcome{Mode: ModeMock, Fallback: true, Err: err}
			}
			ex.Fail(err)
			return Outcome{Mode: ModeMock, Fallback: true, Err: err}
		}
		ex.Log(EntrySuccess, "Fallback reply complete", nil)
		return Outcome{Mode: ModeMock, Fallback: true}

	default:
		s.logger.Error("agent exchange failed", "exchange_id", ex.ID(), "error", cause)
		ex.Fail(cause)
		return Outcome{Mode: ex.Mode(), Err: cause}
	}
}

// consume routes every line of body into ex and closes body.
func consume(ctx context.Context, body io.ReadCloser, ex *Exchange) error {
	defer body.Close()
	for line, err := range stream.Lines(ctx, body) {
		if err != nil {
			return err
		}
		ex.Route(line)
	}
	return nil
}
