package resultsink

import (
	"context"

	"github.com/qinqiang2000/redflush-matcher/model"
)

// DBSink persists match records into the match_result relation via
// model.Store.InsertMatchResults, which applies the spec's ≤1000-row
// chunking and 30s per-chunk timeout.
type DBSink struct {
	Store *model.Store
}

func (s *DBSink) Put(ctx context.Context, records []model.MatchResult) error {
	if len(records) == 0 {
		return nil
	}
	return s.Store.InsertMatchResults(ctx, records)
}
