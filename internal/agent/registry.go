package agent

import (
	"fmt"
	"strings"
	"sync"

	"github.com/lewflauta/AgenticSocialBot/internal/prompts"
	"github.com/lewflauta/AgenticSocialBot/internal/tools"
)

// Role names.
const (
	RoleWriter    = "writer"
	RoleCritic    = "critic"
	RoleStorage   = "storage"
	RoleScheduler = "scheduler"
)

// Registry maps role names to their definitions. It is safe for concurrent
// use.
type Registry struct {
	mu    sync.RWMutex
	roles map[string]Role
}

// RoleOption adjusts the default roles.
type RoleOption func(*roleOptions)

type roleOptions struct {
	webSearch bool
}

// WithWebSearch lets the Writer call web_search before drafting.
func WithWebSearch() RoleOption {
	return func(o *roleOptions) { o.webSearch = true }
}

// NewRegistry creates a Registry pre-registered with the Writer, Critic,
// Storage and Scheduler roles for platforms.
func NewRegistry(platforms []string, opts ...RoleOption) (*Registry, error) {
	roles, err := DefaultRoles(platforms, opts...)
	if err != nil {
		return nil, err
	}
	r := &Registry{roles: make(map[string]Role, len(roles))}
	for _, role := range roles {
		r.roles[role.Name] = role
	}
	return r, nil
}

// Get returns the role registered under name.
func (r *Registry) Get(name string) (Role, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	role, ok := r.roles[name]
	if !ok {
		return Role{}, fmt.Errorf("no role registered under %q", name)
	}
	return role, nil
}

// Set replaces or adds a role.
func (r *Registry) Set(role Role) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.roles[role.Name] = role
}

// DefaultRoles builds the four pipeline roles.
func DefaultRoles(platforms []string, opts ...RoleOption) ([]Role, error) {
	if len(platforms) == 0 {
		return nil, fmt.Errorf("agent: at least one platform is required")
	}
	var o roleOptions
	for _, opt := range opts {
		opt(&o)
	}
	target := "Target platforms: " + strings.Join(platforms, ", ") + "."

	writerTools := []string{tools.GeneratePost}
	writerInstructions := prompts.MustGet(prompts.Writer) + "\n\n" + target
	if o.webSearch {
		writerTools = append(writerTools, tools.WebSearch)
		writerInstructions += "\n\nWhen the transcript mentions products or events you are unsure about, " +
			"call `web_search` first and pass what you learn to `generate_post` alongside the transcript."
	}

	feedback, err := NewOutputSchema[EvaluationFeedback]("evaluation_feedback")
	if err != nil {
		return nil, err
	}
	lo, hi := float64(MinScore), float64(MaxScore)
	feedback.Schema.Properties["score"].Minimum = &lo
	feedback.Schema.Properties["score"].Maximum = &hi
	if feedback, err = newOutputSchema(feedback.Name, feedback.Schema); err != nil {
		return nil, err
	}

	stored, err := NewOutputSchema[StoredPosts]("stored_posts")
	if err != nil {
		return nil, err
	}

	return []Role{
		{
			Name:         RoleWriter,
			Instructions: writerInstructions,
			AllowedTools: writerTools,
		},
		{
			Name:         RoleCritic,
			Instructions: prompts.MustGet(prompts.Critic),
			Output:       feedback,
		},
		{
			Name:         RoleStorage,
			Instructions: prompts.MustGet(prompts.Storage) + "\n\n" + target,
			AllowedTools: []string{tools.SavePost},
			Output:       stored,
		},
		{
			Name:         RoleScheduler,
			Instructions: prompts.MustGet(prompts.Scheduler),
			AllowedTools: []string{tools.CurrentTime, tools.CreateCalendarEvent},
		},
	}, nil
}
