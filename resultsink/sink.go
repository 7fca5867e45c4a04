// Package resultsink persists match records via interchangeable
// back-ends: a batched database insert or a CSV spool, optionally
// archived to S3-compatible storage.
package resultsink

import (
	"context"

	"github.com/qinqiang2000/redflush-matcher/model"
)

// Sink accepts a chunk of match records. Implementations decide their own
// batching/chunking; callers may call Put multiple times per bill.
type Sink interface {
	Put(ctx context.Context, records []model.MatchResult) error
}

// OutputPather is implemented by sinks that spool to a per-bill file on
// disk (CSVSink and the S3ArchiveSink decorator wrapping one). Matchers
// type-assert against it to populate MatchStats.OutputFile without
// depending on a concrete sink type; DBSink implements neither.
type OutputPather interface {
	OutputPathFor(billID int64) string
}
