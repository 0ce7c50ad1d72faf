// Package pipeline runs the ingestion batch job: read unprocessed messages
// from the device store, resolve each sender to a stable identity, classify
// importance, persist, and publish progress until the store is exhausted.
package pipeline

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/rotisserie/eris"

	"github.com/summerlabs/notifai/internal/classify"
	"github.com/summerlabs/notifai/internal/device"
	"github.com/summerlabs/notifai/internal/identity"
	"github.com/summerlabs/notifai/internal/store"
)

// Notifier consumes newly classified messages and run progress. Implemented
// by notify.Router; nil-safe via the noopNotifier.
type Notifier interface {
	OnMessageClassified(ctx context.Context, msg *store.Message, sender *store.Sender)
	OnIngestProgress(ctx context.Context, processed, total int64)
}

type noopNotifier struct{}

func (noopNotifier) OnMessageClassified(context.Context, *store.Message, *store.Sender) {}
func (noopNotifier) OnIngestProgress(context.Context, int64, int64)                     {}

// Options configures pipeline behavior.
type Options struct {
	// BatchSize is the number of device records processed per batch.
	BatchSize int

	// MaxRetries bounds the retry loop for retryable run faults.
	MaxRetries int
}

// DefaultOptions returns sensible defaults.
func DefaultOptions() *Options {
	return &Options{
		BatchSize:  100,
		MaxRetries: 3,
	}
}

// Pipeline executes one ingestion run at a time against the store.
type Pipeline struct {
	store      *store.Store
	source     device.Source
	resolver   *identity.Resolver
	classifier *classify.Classifier
	notifier   Notifier
	progress   *Broadcaster
	logger     *slog.Logger
	opts       *Options
}

// New creates a Pipeline.
func New(st *store.Store, source device.Source, resolver *identity.Resolver, classifier *classify.Classifier, opts *Options) *Pipeline {
	if opts == nil {
		opts = DefaultOptions()
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = 100
	}
	return &Pipeline{
		store:      st,
		source:     source,
		resolver:   resolver,
		classifier: classifier,
		notifier:   noopNotifier{},
		progress:   NewBroadcaster(),
		logger:     slog.Default(),
		opts:       opts,
	}
}

// WithLogger sets the logger.
func (p *Pipeline) WithLogger(logger *slog.Logger) *Pipeline {
	p.logger = logger
	return p
}

// WithNotifier sets the notification consumer.
func (p *Pipeline) WithNotifier(n Notifier) *Pipeline {
	if n != nil {
		p.notifier = n
	}
	return p
}

// Progress returns the broadcaster publishing this pipeline's snapshots.
func (p *Pipeline) Progress() *Broadcaster {
	return p.progress
}

// errSuperseded marks a run cancelled because a newer generation exists.
var errSuperseded = fmt.Errorf("run superseded: %w", context.Canceled)

// execute drives one run through the retry-bounded state machine until a
// terminal state is recorded. The returned error is the terminal fault
// (nil on success).
func (p *Pipeline) execute(ctx context.Context, run *store.IngestRun) error {
	retries := 0
	cursor := int64(-1)

	for {
		err := p.runAttempt(ctx, run, &cursor)
		if err == nil {
			if err := p.store.CompleteRun(run.ID, run.Total, run.Total); err != nil {
				p.logger.Warn("failed to record run completion", "job", run.JobName, "error", err)
			}
			if err := p.store.SetProcessingCompleted(true); err != nil {
				p.logger.Warn("failed to set completion flag", "error", err)
			}
			p.progress.Publish(Snapshot{Status: StatusSuccess, Processed: run.Total, Total: run.Total})
			return nil
		}

		kind := ClassifyError(err)

		if kind == KindCancelled {
			_ = p.store.CancelRun(run.ID, kind.UserMessage())
			p.progress.Publish(Snapshot{
				Status:       StatusError,
				Processed:    run.Processed,
				Total:        run.Total,
				ErrorMessage: kind.UserMessage(),
			})
			return eris.Wrap(err, kind.UserMessage())
		}

		if kind.Retryable() && retries < p.opts.MaxRetries {
			retries++
			p.logger.Warn("run attempt failed, retrying",
				"job", run.JobName,
				"attempt", retries,
				"max", p.opts.MaxRetries,
				"kind", string(kind),
				"error", err)
			if err := p.store.SetRunStatus(run.ID, store.RunRetrying); err != nil {
				p.logger.Warn("failed to record retrying status", "error", err)
			}
			continue
		}

		wrapped := eris.Wrap(err, kind.UserMessage())
		if err := p.store.FailRun(run.ID, string(kind), kind.UserMessage()); err != nil {
			p.logger.Warn("failed to record run failure", "error", err)
		}
		p.progress.Publish(Snapshot{
			Status:       StatusError,
			Processed:    run.Processed,
			Total:        run.Total,
			ErrorMessage: kind.UserMessage(),
		})
		return wrapped
	}
}

// runAttempt performs one pass over the unprocessed device records. The
// total is snapshotted once per run; the device store growing mid-scan
// neither crashes the run nor double-counts records. The cursor is carried
// across retry attempts so records an earlier attempt consumed or skipped
// are not re-listed and re-counted.
func (p *Pipeline) runAttempt(ctx context.Context, run *store.IngestRun, cursor *int64) error {
	if *cursor < 0 {
		watermark, err := p.store.MaxExternalID()
		if err != nil {
			return fmt.Errorf("read ingest watermark: %w", err)
		}
		*cursor = watermark
	}

	if run.Total == 0 {
		total, err := p.source.Count(ctx, *cursor)
		if err != nil {
			return fmt.Errorf("count unprocessed: %w", err)
		}
		run.Total = total
		if err := p.store.UpdateRunProgress(run.ID, run.Processed, run.Total); err != nil {
			return fmt.Errorf("persist total: %w", err)
		}
	}

	p.progress.Publish(Snapshot{Status: StatusLoading, Processed: run.Processed, Total: run.Total})

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		gen, err := p.store.CurrentGeneration(run.JobName)
		if err != nil {
			return fmt.Errorf("check generation: %w", err)
		}
		if gen != run.Generation {
			return errSuperseded
		}

		batch, err := p.source.List(ctx, *cursor, p.opts.BatchSize)
		if err != nil {
			return fmt.Errorf("list device messages: %w", err)
		}
		if len(batch) == 0 {
			return nil
		}

		for _, raw := range batch {
			if err := p.ingestOne(ctx, raw); err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				if structural(err) {
					return err
				}
				p.logger.Warn("skipping message",
					"external_id", raw.ExternalID,
					"error", err)
			}
			run.Processed++
			*cursor = raw.ExternalID
		}

		if err := p.store.UpdateRunProgress(run.ID, run.Processed, run.Total); err != nil {
			return fmt.Errorf("persist checkpoint: %w", err)
		}
		p.progress.Publish(Snapshot{Status: StatusLoading, Processed: run.Processed, Total: run.Total})
		p.notifier.OnIngestProgress(ctx, run.Processed, run.Total)
	}
}

// ingestOne resolves, classifies, persists, and routes a single raw message.
// Resolution and classification faults are per-message (log + skip); a store
// write failure is structural and aborts the run.
func (p *Pipeline) ingestOne(ctx context.Context, raw device.RawMessage) error {
	sender, err := p.resolver.Resolve(ctx, raw.Address)
	if err != nil {
		return fmt.Errorf("resolve sender: %w", err)
	}

	tier := p.classifier.Classify(raw.Body, sender.SenderType)

	msg := &store.Message{
		SenderID:       sender.ID,
		Body:           raw.Body,
		DateMs:         raw.DateMs,
		ImportanceTier: tier,
		ExternalID:     sql.NullInt64{Int64: raw.ExternalID, Valid: true},
		Direction:      store.Direction(raw.Direction),
		IsRead:         raw.Read,
	}
	if raw.DeliveryStatus != nil {
		msg.DeliveryStatus = sql.NullInt64{Int64: int64(*raw.DeliveryStatus), Valid: true}
	}

	id, err := p.store.UpsertMessage(msg)
	if err != nil {
		return &structuralError{fmt.Errorf("upsert message %d: %w", raw.ExternalID, err)}
	}
	msg.ID = id

	p.notifier.OnMessageClassified(ctx, msg, sender)
	return nil
}

// structuralError marks faults that must abort the run instead of being
// skipped per-message.
type structuralError struct{ err error }

func (e *structuralError) Error() string { return e.err.Error() }
func (e *structuralError) Unwrap() error { return e.err }

func structural(err error) bool {
	var se *structuralError
	return eris.As(err, &se)
}
