package orchestrator

import (
	"context"
	"errors"
	"fmt"

	"github.com/lewflauta/AgenticSocialBot/internal/backend"
	"github.com/lewflauta/AgenticSocialBot/internal/runner"
)

var (
	// ErrTranscriptUnavailable is returned when the transcript is empty or
	// cannot be fetched. No backend call is made in that case.
	ErrTranscriptUnavailable = errors.New("transcript unavailable")
	// ErrNotScheduled is returned when the Scheduler finished without
	// creating a calendar event.
	ErrNotScheduled = errors.New("no calendar event was created")
)

// ErrorKind names a failure class for reporting.
type ErrorKind string

const (
	KindTranscriptUnavailable  ErrorKind = "TranscriptUnavailable"
	KindBackendUnavailable     ErrorKind = "BackendUnavailable"
	KindBackendRejected        ErrorKind = "BackendRejected"
	KindToolNotFound           ErrorKind = "ToolNotFound"
	KindToolExecutionFailed    ErrorKind = "ToolExecutionFailed"
	KindSchemaViolation        ErrorKind = "SchemaViolation"
	KindIterationLimitExceeded ErrorKind = "IterationLimitExceeded"
	KindNotScheduled           ErrorKind = "NotScheduled"
	KindCanceled               ErrorKind = "Canceled"
	KindInternal               ErrorKind = "Internal"
)

var kinds = []struct {
	err  error
	kind ErrorKind
}{
	{ErrTranscriptUnavailable, KindTranscriptUnavailable},
	{backend.ErrRejected, KindBackendRejected},
	{runner.ErrBackendUnavailable, KindBackendUnavailable},
	{runner.ErrToolNotFound, KindToolNotFound},
	{runner.ErrToolExecutionFailed, KindToolExecutionFailed},
	{runner.ErrSchemaViolation, KindSchemaViolation},
	{runner.ErrIterationLimitExceeded, KindIterationLimitExceeded},
	{ErrNotScheduled, KindNotScheduled},
	{context.Canceled, KindCanceled},
	{context.DeadlineExceeded, KindCanceled},
}

// KindOf classifies err.
func KindOf(err error) ErrorKind {
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.kind
		}
	}
	return KindInternal
}

// StageError reports which stage aborted a run.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s stage failed (%s): %v", e.Stage, e.Kind(), e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// Kind classifies the underlying error.
func (e *StageError) Kind() ErrorKind {
	return KindOf(e.Err)
}
