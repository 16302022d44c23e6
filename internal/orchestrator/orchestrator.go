// Package orchestrator sequences the Writer, Critic, Storage and Scheduler
// roles over one transcript and enforces the quality gate after evaluation.
package orchestrator

import (
	"context"
	"time"

	"github.com/lewflauta/AgenticSocialBot/internal/agent"
	"github.com/lewflauta/AgenticSocialBot/internal/backend"
	"github.com/lewflauta/AgenticSocialBot/internal/runner"
)

// Stage identifies a pipeline state.
type Stage int

const (
	StageFetching Stage = iota
	StageWriting
	StageEvaluating
	StageStoring
	StageScheduling
)

func (s Stage) String() string {
	names := [...]string{
		"fetching",
		"writing",
		"evaluating",
		"storing",
		"scheduling",
	}
	if s >= 0 && int(s) < len(names) {
		return names[s]
	}
	return "unknown"
}

// Outcome is the terminal result of one pipeline run. Exactly one of
// Rejected and Stored != nil holds for a run that reached the gate.
type Outcome struct {
	RunID         string                    `json:"run_id"`
	VideoID       string                    `json:"video_id,omitempty"`
	Content       string                    `json:"content,omitempty"`
	Feedback      *agent.EvaluationFeedback `json:"feedback,omitempty"`
	Rejected      bool                      `json:"rejected"`
	Stored        *agent.StoredPosts        `json:"stored,omitempty"`
	ScheduledLink string                    `json:"scheduled_link,omitempty"`
	Invocations   []runner.ToolInvocation   `json:"invocations,omitempty"`
	StartedAt     time.Time                 `json:"started_at"`
	FinishedAt    time.Time                 `json:"finished_at"`
}

// Published reports whether the run went through scheduling.
func (o *Outcome) Published() bool {
	return o != nil && !o.Rejected && o.Stored != nil && o.ScheduledLink != ""
}

// ProgressEvent is emitted to observers during pipeline execution.
type ProgressEvent struct {
	RunID   string
	VideoID string
	Stage   Stage
	Status  ProgressStatus
	Message string
}

// ProgressStatus is the state of a stage within a run.
type ProgressStatus string

const (
	ProgressWorking  ProgressStatus = "working"
	ProgressComplete ProgressStatus = "complete"
	ProgressFailed   ProgressStatus = "failed"
	ProgressRejected ProgressStatus = "rejected"
)

// RoleRunner executes one role against a conversation.
type RoleRunner interface {
	Run(ctx context.Context, role agent.Role, input []backend.Message) (*runner.Result, error)
}

// Orchestrator runs the social pipeline.
type Orchestrator interface {
	// Run fetches the transcript for videoID and executes the pipeline.
	Run(ctx context.Context, videoID string) (*Outcome, error)

	// Execute runs the pipeline over an already fetched transcript.
	Execute(ctx context.Context, transcript string) (*Outcome, error)

	// Progress returns a channel that emits progress events.
	Progress() <-chan ProgressEvent
}
