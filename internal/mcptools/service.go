package mcptools

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/lewflauta/AgenticSocialBot/internal/history"
	"github.com/lewflauta/AgenticSocialBot/internal/orchestrator"
)

// DefaultListLimit caps list_runs when the caller gives no limit.
const DefaultListLimit = 20

// RunHistory is the read side of the run history.
type RunHistory interface {
	Get(ctx context.Context, id string) (*history.Run, error)
	List(ctx context.Context, limit int) ([]history.Run, error)
}

// PipelineService handles MCP tool calls for serve-mcp mode. It wraps an
// Orchestrator to execute runs and a RunHistory to report on them.
type PipelineService struct {
	pipeline orchestrator.Orchestrator
	runs     RunHistory
}

// NewPipelineService creates a PipelineService. runs may be nil, in which
// case get_run and list_runs report that history is disabled.
func NewPipelineService(pipeline orchestrator.Orchestrator, runs RunHistory) *PipelineService {
	return &PipelineService{pipeline: pipeline, runs: runs}
}

// RunPipeline executes one pipeline run. Pipeline failures are reported in
// the output rather than as a tool error so the caller sees the failing stage.
func (s *PipelineService) RunPipeline(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input RunPipelineInput,
) (*mcp.CallToolResult, RunPipelineOutput, error) {
	var (
		out *orchestrator.Outcome
		err error
	)
	switch {
	case strings.TrimSpace(input.Transcript) != "":
		out, err = s.pipeline.Execute(ctx, input.Transcript)
	case strings.TrimSpace(input.VideoID) != "":
		out, err = s.pipeline.Run(ctx, strings.TrimSpace(input.VideoID))
	default:
		return nil, RunPipelineOutput{}, errors.New("either videoId or transcript is required")
	}
	return nil, toRunOutput(out, err), nil
}

// GetRun returns one recorded run.
func (s *PipelineService) GetRun(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input GetRunInput,
) (*mcp.CallToolResult, RunPipelineOutput, error) {
	if s.runs == nil {
		return nil, RunPipelineOutput{}, errors.New("run history is disabled")
	}
	run, err := s.runs.Get(ctx, input.ID)
	if err != nil {
		return nil, RunPipelineOutput{}, err
	}
	return nil, fromRun(run), nil
}

// ListRuns returns the most recent runs.
func (s *PipelineService) ListRuns(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input ListRunsInput,
) (*mcp.CallToolResult, ListRunsOutput, error) {
	if s.runs == nil {
		return nil, ListRunsOutput{}, errors.New("run history is disabled")
	}
	limit := input.Limit
	if limit <= 0 {
		limit = DefaultListLimit
	}
	runs, err := s.runs.List(ctx, limit)
	if err != nil {
		return nil, ListRunsOutput{}, fmt.Errorf("list runs: %w", err)
	}

	summaries := make([]RunSummary, 0, len(runs))
	for _, run := range runs {
		summary := RunSummary{
			RunID:     run.ID,
			VideoID:   run.VideoID,
			Status:    string(run.Status),
			ErrorKind: run.ErrorKind,
			StartedAt: run.StartedAt.Format(time.RFC3339),
		}
		if run.Score != nil {
			summary.Score = *run.Score
		}
		if !run.FinishedAt.IsZero() {
			summary.FinishedAt = run.FinishedAt.Format(time.RFC3339)
		}
		summaries = append(summaries, summary)
	}
	return nil, ListRunsOutput{Runs: summaries}, nil
}

func toRunOutput(out *orchestrator.Outcome, runErr error) RunPipelineOutput {
	if out == nil {
		out = &orchestrator.Outcome{}
	}
	run := history.FromOutcome(out, runErr)
	return fromRun(&run)
}

func fromRun(run *history.Run) RunPipelineOutput {
	res := RunPipelineOutput{
		RunID:         run.ID,
		VideoID:       run.VideoID,
		Status:        string(run.Status),
		Feedback:      run.Feedback,
		Content:       run.Content,
		ScheduledLink: run.ScheduledLink,
		ErrorStage:    run.ErrorStage,
		ErrorKind:     run.ErrorKind,
		Message:       run.ErrorMessage,
	}
	if run.Score != nil {
		res.Score = *run.Score
	}
	if run.Stored != nil {
		for _, p := range run.Stored.Posts {
			res.Stored = append(res.Stored, StoredPost{Platform: p.Platform, Filename: p.Filename, Link: p.Filelink})
		}
	}
	return res
}
