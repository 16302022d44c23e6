package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/lewflauta/AgenticSocialBot/internal/agent"
	"github.com/lewflauta/AgenticSocialBot/internal/backend"
	"github.com/lewflauta/AgenticSocialBot/internal/logging"
	"github.com/lewflauta/AgenticSocialBot/internal/runner"
	"github.com/lewflauta/AgenticSocialBot/internal/services/transcript"
)

// Compile-time interface check.
var _ Orchestrator = (*Pipeline)(nil)

// DefaultThreshold is the minimum Critic score that passes the gate.
const DefaultThreshold = 7

// Config holds the per-pipeline settings.
type Config struct {
	Platforms []string
	Threshold int
}

// HistoryRecorder persists terminal outcomes. runErr is nil for published
// and rejected runs.
type HistoryRecorder interface {
	Record(ctx context.Context, outcome *Outcome, runErr error) error
}

// Pipeline implements Orchestrator. It holds no per-run state, so one
// Pipeline may execute several runs concurrently.
type Pipeline struct {
	cfg      Config
	fetcher  transcript.Fetcher
	runner   RoleRunner
	roles    *agent.Registry
	progress *ProgressReporter
	history  HistoryRecorder
	log      logging.Logger
	now      func() time.Time
}

// Option customizes a Pipeline.
type Option func(*Pipeline)

// WithHistory records every terminal outcome.
func WithHistory(h HistoryRecorder) Option {
	return func(p *Pipeline) { p.history = h }
}

// WithLogger sets the logger.
func WithLogger(log logging.Logger) Option {
	return func(p *Pipeline) {
		if log != nil {
			p.log = log
		}
	}
}

// WithClock overrides time.Now for run timestamps.
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) {
		if now != nil {
			p.now = now
		}
	}
}

// NewPipeline creates a Pipeline. fetcher may be nil when only Execute is
// used.
func NewPipeline(cfg Config, fetcher transcript.Fetcher, run RoleRunner, roles *agent.Registry, opts ...Option) (*Pipeline, error) {
	if run == nil {
		return nil, errors.New("orchestrator: runner is required")
	}
	if roles == nil {
		return nil, errors.New("orchestrator: role registry is required")
	}
	if len(cfg.Platforms) == 0 {
		return nil, errors.New("orchestrator: at least one platform is required")
	}
	if cfg.Threshold <= 0 {
		cfg.Threshold = DefaultThreshold
	}
	p := &Pipeline{
		cfg:      cfg,
		fetcher:  fetcher,
		runner:   run,
		roles:    roles,
		progress: NewProgressReporter(),
		log:      logging.NewDiscard(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Progress returns a channel that emits progress events.
func (p *Pipeline) Progress() <-chan ProgressEvent {
	return p.progress.Subscribe()
}

// Close shuts down the progress reporter. Callers should invoke this when the
// pipeline is no longer needed.
func (p *Pipeline) Close() {
	p.progress.Close()
}

// Run fetches the transcript for videoID and executes the pipeline.
func (p *Pipeline) Run(ctx context.Context, videoID string) (*Outcome, error) {
	out := p.newOutcome(videoID)
	p.emit(out, StageFetching, ProgressWorking, "")

	if p.fetcher == nil {
		return p.fail(ctx, out, StageFetching, fmt.Errorf("%w: no transcript source configured", ErrTranscriptUnavailable))
	}
	start := time.Now()
	text, err := p.fetcher.Fetch(ctx, videoID)
	stageDuration.WithLabelValues(StageFetching.String()).Observe(time.Since(start).Seconds())
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return p.fail(ctx, out, StageFetching, ctxErr)
		}
		return p.fail(ctx, out, StageFetching, fmt.Errorf("%w: %w", ErrTranscriptUnavailable, err))
	}
	return p.execute(ctx, out, text)
}

// Execute runs the pipeline over an already fetched transcript.
func (p *Pipeline) Execute(ctx context.Context, text string) (*Outcome, error) {
	out := p.newOutcome("")
	p.emit(out, StageFetching, ProgressWorking, "")
	return p.execute(ctx, out, text)
}

// execute drives Writing → Evaluating → (Storing → Scheduling | Rejected).
// On failure the returned Outcome holds what completed before the failing
// stage.
func (p *Pipeline) execute(ctx context.Context, out *Outcome, text string) (*Outcome, error) {
	activeRuns.Inc()
	defer activeRuns.Dec()

	if strings.TrimSpace(text) == "" {
		return p.fail(ctx, out, StageFetching, fmt.Errorf("%w: empty transcript", ErrTranscriptUnavailable))
	}
	p.emit(out, StageFetching, ProgressComplete, "")

	prompt := BuildPrompt(p.cfg.Platforms, text)

	written, err := p.runStage(ctx, out, StageWriting, agent.RoleWriter, prompt)
	if err != nil {
		return p.fail(ctx, out, StageWriting, err)
	}
	content, err := reconcileContent(written)
	if err != nil {
		return p.fail(ctx, out, StageWriting, err)
	}
	out.Content = content
	p.emit(out, StageWriting, ProgressComplete, "")

	evaluated, err := p.runStage(ctx, out, StageEvaluating, agent.RoleCritic, evaluationPrompt(prompt, content))
	if err != nil {
		return p.fail(ctx, out, StageEvaluating, err)
	}
	feedback, err := runner.Decode[agent.EvaluationFeedback](evaluated)
	if err != nil {
		return p.fail(ctx, out, StageEvaluating, err)
	}
	out.Feedback = &feedback
	criticScore.Observe(float64(feedback.Score))

	if feedback.Score < p.cfg.Threshold {
		out.Rejected = true
		out.FinishedAt = p.now()
		msg := fmt.Sprintf("score %d below threshold %d", feedback.Score, p.cfg.Threshold)
		p.emit(out, StageEvaluating, ProgressRejected, msg)
		p.entry(out).WithField("score", feedback.Score).Info("content rejected by critic")
		runsTotal.WithLabelValues("rejected").Inc()
		p.record(ctx, out, nil)
		return out, nil
	}
	p.emit(out, StageEvaluating, ProgressComplete, fmt.Sprintf("score %d", feedback.Score))

	storedRes, err := p.runStage(ctx, out, StageStoring, agent.RoleStorage, content)
	if err != nil {
		return p.fail(ctx, out, StageStoring, err)
	}
	stored, err := reconcileStored(storedRes, p.cfg.Platforms)
	if err != nil {
		return p.fail(ctx, out, StageStoring, err)
	}
	out.Stored = &stored
	p.emit(out, StageStoring, ProgressComplete, fmt.Sprintf("%d posts", len(stored.Posts)))

	scheduled, err := p.runStage(ctx, out, StageScheduling, agent.RoleScheduler, stored.String())
	if err != nil {
		return p.fail(ctx, out, StageScheduling, err)
	}
	link, err := scheduledLink(scheduled)
	if err != nil {
		return p.fail(ctx, out, StageScheduling, err)
	}
	out.ScheduledLink = link
	out.FinishedAt = p.now()
	p.emit(out, StageScheduling, ProgressComplete, link)

	p.entry(out).WithField("link", link).Info("posts stored and scheduled")
	runsTotal.WithLabelValues("published").Inc()
	p.record(ctx, out, nil)
	return out, nil
}

// runStage executes one role over a single user message. The stage's
// invocations are appended to the outcome only after the role completes.
func (p *Pipeline) runStage(ctx context.Context, out *Outcome, stage Stage, roleName, input string) (*runner.Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	role, err := p.roles.Get(roleName)
	if err != nil {
		return nil, err
	}
	p.emit(out, stage, ProgressWorking, "")
	p.entry(out).WithField("stage", stage.String()).Debug("stage started")

	start := time.Now()
	res, err := p.runner.Run(ctx, role, []backend.Message{{Role: backend.RoleUser, Content: input}})
	stageDuration.WithLabelValues(stage.String()).Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, err
	}
	out.Invocations = append(out.Invocations, res.Invocations...)
	return res, nil
}

func (p *Pipeline) fail(ctx context.Context, out *Outcome, stage Stage, err error) (*Outcome, error) {
	serr := &StageError{Stage: stage, Err: err}
	out.FinishedAt = p.now()
	p.emit(out, stage, ProgressFailed, err.Error())
	p.entry(out).WithError(err).WithFields(logging.Fields{
		"stage": stage.String(),
		"kind":  string(serr.Kind()),
	}).Error("pipeline run failed")
	runsTotal.WithLabelValues("failed").Inc()
	p.record(ctx, out, serr)
	return out, serr
}

func (p *Pipeline) record(ctx context.Context, out *Outcome, runErr error) {
	if p.history == nil {
		return
	}
	// A cancelled run is still recorded.
	if err := p.history.Record(context.WithoutCancel(ctx), out, runErr); err != nil {
		p.entry(out).WithError(err).Warn("failed to record run history")
	}
}

func (p *Pipeline) newOutcome(videoID string) *Outcome {
	return &Outcome{
		RunID:     uuid.NewString(),
		VideoID:   videoID,
		StartedAt: p.now(),
	}
}

func (p *Pipeline) emit(out *Outcome, stage Stage, status ProgressStatus, msg string) {
	p.progress.Emit(ProgressEvent{
		RunID:   out.RunID,
		VideoID: out.VideoID,
		Stage:   stage,
		Status:  status,
		Message: msg,
	})
}

func (p *Pipeline) entry(out *Outcome) logging.Entry {
	return p.log.WithFields(logging.Fields{
		"run_id":   out.RunID,
		"video_id": out.VideoID,
	})
}
