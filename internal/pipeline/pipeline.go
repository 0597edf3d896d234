// Package pipeline drives signals from a source through conversion and the
// query engine to the console, one event at a time.
package pipeline

import (
	"context"
	stderrors "errors"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/mcncl/dbusjq/internal/envelope"
	"github.com/mcncl/dbusjq/internal/errors"
	"github.com/mcncl/dbusjq/internal/models"
)

// Source yields events in delivery order. Next blocks until an event is
// available and returns io.EOF once the stream has ended.
type Source interface {
	Next(ctx context.Context) (models.Event, error)
}

// Runner executes the query against one serialized record.
type Runner interface {
	Run(ctx context.Context, input string) (string, error)
}

// Printer writes one result line.
type Printer interface {
	Print(line string) error
}

// Recorder receives per-event outcomes. It may be nil.
type Recorder interface {
	Processed(elapsed time.Duration)
	Failed(stage string)
}

// Driver pulls events from Source until it ends or a stage fails. There is
// no per-event recovery: the first failure ends the run.
type Driver struct {
	Source  Source
	Query   Runner
	Printer Printer
	Logger  *slog.Logger
	Metrics Recorder
}

// Run processes events until the source is exhausted (nil), ctx is
// cancelled (nil) or an event fails (a categorized *errors.AppError).
func (d *Driver) Run(ctx context.Context) error {
	logger := d.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	for count := 0; ; count++ {
		event, err := d.Source.Next(ctx)
		if stderrors.Is(err, io.EOF) {
			logger.Info("signal stream ended", "events", count)
			return nil
		}
		if ctx.Err() != nil {
			logger.Info("interrupted", "events", count)
			return nil
		}
		if err != nil {
			d.failed(errors.ErrorTypePayload)
			return errors.NewPayloadError("couldn't receive signal", err)
		}

		logger.Debug("received signal",
			"sender", event.Sender,
			"path", event.Path,
			"interface", event.Interface,
			"member", event.Member,
		)

		if err := d.process(ctx, event); err != nil {
			if ctx.Err() != nil {
				logger.Info("interrupted", "events", count)
				return nil
			}
			var appErr *errors.AppError
			if stderrors.As(err, &appErr) {
				d.failed(appErr.Type)
			}
			return err
		}
	}
}

func (d *Driver) process(ctx context.Context, event models.Event) error {
	start := time.Now()

	record, err := envelope.Build(event)
	if err != nil {
		return err
	}
	text, err := envelope.Marshal(record)
	if err != nil {
		return err
	}

	filtered, err := d.Query.Run(ctx, text)
	if err != nil {
		return errors.NewQueryError("jq failed to run", err)
	}
	filtered = strings.TrimSuffix(filtered, "\n")

	if err := d.Printer.Print(filtered); err != nil {
		return errors.NewOutputError("failed to write to stdout", err)
	}

	if d.Metrics != nil {
		d.Metrics.Processed(time.Since(start))
	}
	return nil
}

func (d *Driver) failed(stage errors.ErrorType) {
	if d.Metrics != nil {
		d.Metrics.Failed(string(stage))
	}
}
