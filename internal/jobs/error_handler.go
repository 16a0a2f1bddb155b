// Package jobs provides River client plumbing shared by the job workers.
package jobs

import (
	"context"
	"log/slog"

	"github.com/riverqueue/river"
	"github.com/riverqueue/river/rivertype"
)

// FailureRecorder receives one observation per failed or panicked job (observability.IndexingMetrics).
type FailureRecorder interface {
	RecordJobFailure(ctx context.Context, kind string, panicked bool)
}

// ErrorHandler logs job errors and panics. recorder may be nil.
type ErrorHandler struct {
	recorder FailureRecorder
}

// NewErrorHandler creates an ErrorHandler.
func NewErrorHandler(recorder FailureRecorder) *ErrorHandler {
	return &ErrorHandler{recorder: recorder}
}

// HandleError is called when a job returns an error.
func (h *ErrorHandler) HandleError(ctx context.Context, job *rivertype.JobRow, err error) *river.ErrorHandlerResult {
	slog.ErrorContext(ctx, "jobs: job failed",
		"job_kind", job.Kind,
		"job_id", job.ID,
		"attempt", job.Attempt,
		"max_attempts", job.MaxAttempts,
		"error", err,
	)

	if h.recorder != nil {
		h.recorder.RecordJobFailure(ctx, job.Kind, false)
	}

	// nil keeps River's default retry schedule
	return nil
}

// HandlePanic is called when a job panics.
func (h *ErrorHandler) HandlePanic(ctx context.Context, job *rivertype.JobRow, panicVal any, trace string) *river.ErrorHandlerResult {
	slog.ErrorContext(ctx, "jobs: job panicked",
		"job_kind", job.Kind,
		"job_id", job.ID,
		"attempt", job.Attempt,
		"panic_value", panicVal,
		"stack_trace", trace,
	)

	if h.recorder != nil {
		h.recorder.RecordJobFailure(ctx, job.Kind, true)
	}

	return nil
}

var _ river.ErrorHandler = (*ErrorHandler)(nil)
