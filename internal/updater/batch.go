package updater

import (
	"context"

	"eksupdater/pkg/records"
)

// DefaultBatchSize is the number of records per upsert request.
const DefaultBatchSize = 1000

type flushFunc func(ctx context.Context, recs []records.Record) error

// batcher accumulates records and hands them to flush in groups of size.
type batcher struct {
	size  int
	buf   []records.Record
	flush flushFunc

	batches int
	records int
}

func newBatcher(size int, flush flushFunc) *batcher {
	if size < 1 {
		size = DefaultBatchSize
	}
	return &batcher{size: size, flush: flush, buf: make([]records.Record, 0, size)}
}

// Add appends r and flushes when the batch is full.
func (b *batcher) Add(ctx context.Context, r records.Record) error {
	b.buf = append(b.buf, r)
	if len(b.buf) >= b.size {
		return b.Flush(ctx)
	}
	return nil
}

// Flush sends the pending records, if any. On error the records stay
// pending.
func (b *batcher) Flush(ctx context.Context) error {
	if len(b.buf) == 0 {
		return nil
	}
	if err := b.flush(ctx, b.buf); err != nil {
		return err
	}
	b.batches++
	b.records += len(b.buf)
	b.buf = make([]records.Record, 0, b.size)
	return nil
}
