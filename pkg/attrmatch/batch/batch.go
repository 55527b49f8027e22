// Package batch buffers attribute-value records and writes them to a sink
// in bulk.
package batch

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/cognicore/attrmatch/pkg/attrmatch/attr"
)

// DefaultThreshold is the buffered size above which Insert flushes.
const DefaultThreshold = 10000

// Sink receives flushed batches. A call must be all-or-nothing.
type Sink interface {
	BulkUpsert(ctx context.Context, records []attr.Record) error
}

// Batcher accumulates records for one sequence. It is not safe for
// concurrent use; parallel runs each own a Batcher.
type Batcher struct {
	sink       Sink
	sequenceID int64
	threshold  int
	logger     zerolog.Logger

	buf     []attr.Record
	flushed int
}

// New creates a batcher. A threshold <= 0 selects DefaultThreshold.
func New(sink Sink, sequenceID int64, threshold int, logger zerolog.Logger) *Batcher {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	return &Batcher{
		sink:       sink,
		sequenceID: sequenceID,
		threshold:  threshold,
		logger:     logger,
	}
}

// Insert stamps records with the sequence id and buffers them, flushing
// once the buffer grows past the threshold.
func (b *Batcher) Insert(ctx context.Context, records ...attr.Record) error {
	for _, r := range records {
		r.SequenceID = b.sequenceID
		b.buf = append(b.buf, r)
		if len(b.buf) > b.threshold {
			if err := b.Flush(ctx); err != nil {
				return err
			}
		}
	}
	return nil
}

// Flush writes buffered records. An empty buffer is a no-op. On failure the
// buffer is kept so the caller can retry or abort.
func (b *Batcher) Flush(ctx context.Context) error {
	if len(b.buf) == 0 {
		return nil
	}
	if err := b.sink.BulkUpsert(ctx, b.buf); err != nil {
		return fmt.Errorf("flush %d records: %w", len(b.buf), err)
	}
	b.logger.Debug().Int("records", len(b.buf)).Int64("sequence_id", b.sequenceID).Msg("batch flushed")
	b.flushed += len(b.buf)
	b.buf = nil
	return nil
}

// Pending returns the number of buffered records.
func (b *Batcher) Pending() int {
	return len(b.buf)
}

// Flushed returns the number of records written so far.
func (b *Batcher) Flushed() int {
	return b.flushed
}
