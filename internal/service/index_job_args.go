package service

import (
	"context"

	"github.com/google/uuid"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/rivertype"
)

const (
	indexBusinessKind = "index_business"
	// IndexQueueName is the River queue used for business index jobs.
	IndexQueueName = "indexing"
	// IndexMaxAttempts is one: failed index jobs are never retried, backfill repairs them.
	IndexMaxAttempts = 1
)

// JobInserter inserts index jobs (River client).
type JobInserter interface {
	Insert(ctx context.Context, args river.JobArgs, opts *river.InsertOpts) (*rivertype.JobInsertResult, error)
}

// IndexBusinessArgs is the job payload for reconciling the index entry of one business.
// The worker reads the current business state, so jobs carry no operation and run in any order.
type IndexBusinessArgs struct {
	BusinessID uuid.UUID `json:"business_id"`
}

// Kind returns the River job kind.
func (IndexBusinessArgs) Kind() string { return indexBusinessKind }

// InsertOpts places index jobs on IndexQueueName with a single attempt.
func (IndexBusinessArgs) InsertOpts() river.InsertOpts {
	return river.InsertOpts{Queue: IndexQueueName, MaxAttempts: IndexMaxAttempts}
}

var (
	_ river.JobArgs               = IndexBusinessArgs{}
	_ river.JobArgsWithInsertOpts = IndexBusinessArgs{}
)
