package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/lewflauta/AgenticSocialBot/internal/agent"
	"github.com/lewflauta/AgenticSocialBot/internal/backend"
	"github.com/lewflauta/AgenticSocialBot/internal/config"
	"github.com/lewflauta/AgenticSocialBot/internal/history"
	"github.com/lewflauta/AgenticSocialBot/internal/logging"
	"github.com/lewflauta/AgenticSocialBot/internal/orchestrator"
	"github.com/lewflauta/AgenticSocialBot/internal/runner"
	"github.com/lewflauta/AgenticSocialBot/internal/schedule"
	"github.com/lewflauta/AgenticSocialBot/internal/services/calendar"
	"github.com/lewflauta/AgenticSocialBot/internal/services/drive"
	"github.com/lewflauta/AgenticSocialBot/internal/services/google"
	"github.com/lewflauta/AgenticSocialBot/internal/services/transcript"
	"github.com/lewflauta/AgenticSocialBot/internal/tools"
)

// app is the fully wired pipeline plus the resources it owns.
type app struct {
	pipeline *orchestrator.Pipeline
	toolset  *tools.Registry
	history  *history.Store
}

func (a *app) Close() {
	a.pipeline.Close()
	if a.history != nil {
		_ = a.history.Close()
	}
}

// newApp builds the pipeline described by cfg.
func newApp(ctx context.Context, cfg *config.Config, log logging.Logger) (*app, error) {
	policy, err := schedule.NewPolicy(cfg.Schedule.Timezone, cfg.Schedule.StartHour, cfg.Schedule.EndHour)
	if err != nil {
		return nil, err
	}

	backends, err := newBackends(cfg.Backend)
	if err != nil {
		return nil, err
	}

	var googleClient *http.Client
	if cfg.Storage.Driver == "drive" || cfg.Calendar.Driver == "google" {
		googleClient, err = google.NewServiceAccountClient(ctx, cfg.Google.CredentialsFile)
		if err != nil {
			return nil, err
		}
	}

	var storage drive.Persister = drive.Local{Dir: cfg.Storage.Dir}
	if cfg.Storage.Driver == "drive" {
		storage, err = drive.NewDrive(ctx, googleClient, cfg.Storage.DriveFolderID, "")
		if err != nil {
			return nil, err
		}
	}

	var cal calendar.Inserter = calendar.ICS{Dir: cfg.Calendar.Dir}
	if cfg.Calendar.Driver == "google" {
		cal, err = calendar.NewGoogle(ctx, googleClient, cfg.Calendar.CalendarID, "")
		if err != nil {
			return nil, err
		}
	}

	var fetcher transcript.Fetcher = transcript.NewYouTube(nil, cfg.Transcript.Language)
	if cfg.Transcript.Source == "dir" {
		fetcher = transcript.Dir{Path: cfg.Transcript.Dir}
	}

	toolset := tools.NewRegistry()
	if err := tools.RegisterSocial(toolset, tools.SocialDeps{
		Writer:   backends.tool,
		Searcher: backends.search,
		Storage:  storage,
		Calendar: cal,
		Policy:   policy,
	}); err != nil {
		return nil, err
	}

	run, err := runner.New(backends.role, toolset, runner.Config{
		MaxIterations:  cfg.MaxIterations,
		BackendTimeout: cfg.Backend.Timeout,
		ToolTimeout:    cfg.Backend.ToolTimeout,
	}, runner.WithLogger(log))
	if err != nil {
		return nil, err
	}

	var roleOpts []agent.RoleOption
	if backends.search != nil {
		roleOpts = append(roleOpts, agent.WithWebSearch())
	}
	roles, err := agent.NewRegistry(cfg.Platforms, roleOpts...)
	if err != nil {
		return nil, err
	}

	a := &app{toolset: toolset}
	opts := []orchestrator.Option{orchestrator.WithLogger(log)}
	if cfg.HistoryPath != "" {
		a.history, err = history.Open(cfg.HistoryPath)
		if err != nil {
			return nil, err
		}
		opts = append(opts, orchestrator.WithHistory(a.history))
	}

	a.pipeline, err = orchestrator.NewPipeline(orchestrator.Config{
		Platforms: cfg.Platforms,
		Threshold: cfg.Threshold,
	}, fetcher, run, roles, opts...)
	if err != nil {
		if a.history != nil {
			_ = a.history.Close()
		}
		return nil, err
	}
	return a, nil
}

// backends are the model endpoints the pipeline talks to. search is nil
// unless a search model is configured.
type backends struct {
	role   backend.Backend
	tool   backend.Backend
	search backend.Backend
}

// newBackends returns the backend the roles run on, the one generate_post
// writes with and the optional web_search backend.
func newBackends(cfg config.BackendConfig) (backends, error) {
	switch cfg.Provider {
	case "", "openai":
	default:
		return backends{}, fmt.Errorf("unsupported backend provider %q", cfg.Provider)
	}
	if cfg.APIKey == "" && cfg.BaseURL == "" {
		return backends{}, errors.New("no API key configured: set OPENAI_API_KEY or backend.apiKey")
	}

	base := backend.OpenAIConfig{
		APIKey:          cfg.APIKey,
		BaseURL:         cfg.BaseURL,
		Model:           cfg.Model,
		MaxOutputTokens: cfg.MaxOutputToken,
		RetryAttempts:   cfg.RetryAttempts,
	}
	out := backends{role: backend.NewOpenAI(base)}

	toolCfg := base
	if cfg.ToolModel != "" {
		toolCfg.Model = cfg.ToolModel
	}
	out.tool = backend.NewOpenAI(toolCfg)

	if cfg.SearchModel != "" {
		searchCfg := base
		searchCfg.Model = cfg.SearchModel
		searchCfg.WebSearch = true
		out.search = backend.NewOpenAI(searchCfg)
	}
	return out, nil
}

// openHistory opens the run history read-only commands use.
func openHistory(cfg *config.Config) (*history.Store, error) {
	if cfg.HistoryPath == "" {
		return nil, errors.New("run history is disabled: set historyPath in socialbot.yml")
	}
	return history.Open(cfg.HistoryPath)
}
