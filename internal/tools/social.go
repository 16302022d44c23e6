package tools

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lewflauta/AgenticSocialBot/internal/backend"
	"github.com/lewflauta/AgenticSocialBot/internal/prompts"
	"github.com/lewflauta/AgenticSocialBot/internal/schedule"
	"github.com/lewflauta/AgenticSocialBot/internal/services/calendar"
	"github.com/lewflauta/AgenticSocialBot/internal/services/drive"
)

// Tool names registered by RegisterSocial.
const (
	GeneratePost        = "generate_post"
	SavePost            = "save_post"
	CurrentTime         = "current_time"
	CreateCalendarEvent = "create_calendar_event"
	WebSearch           = "web_search"
)

// SocialDeps are the collaborators behind the social toolset. Writer is the
// backend used by generate_post; Now defaults to time.Now. web_search is
// only registered when Searcher is set.
type SocialDeps struct {
	Writer   backend.Backend
	Searcher backend.Backend
	Storage  drive.Persister
	Calendar calendar.Inserter
	Policy   schedule.Policy
	Now      func() time.Time
}

// GeneratePostInput is the input of generate_post.
type GeneratePostInput struct {
	Transcript string `json:"transcript" jsonschema:"full video transcript to base the post on"`
	Platform   string `json:"platform" jsonschema:"target social platform, e.g. LinkedIn or Instagram"`
}

// GeneratePostOutput is the result of generate_post.
type GeneratePostOutput struct {
	Platform string `json:"platform"`
	Post     string `json:"post"`
}

// SavePostInput is the input of save_post.
type SavePostInput struct {
	Content  string `json:"content" jsonschema:"post text to persist"`
	Filename string `json:"filename" jsonschema:"file name for the stored post, e.g. linkedin-post.txt"`
}

// SavePostOutput is the result of save_post. Filename is the name the post
// was stored under, which may differ from the requested one.
type SavePostOutput struct {
	Filename string `json:"filename"`
	Link     string `json:"link"`
}

// WebSearchInput is the input of web_search.
type WebSearchInput struct {
	Query string `json:"query" jsonschema:"what to look up, e.g. the product or event named in the transcript"`
}

// WebSearchOutput is the result of web_search.
type WebSearchOutput struct {
	Query  string `json:"query"`
	Answer string `json:"answer"`
}

// CurrentTimeInput is the (empty) input of current_time.
type CurrentTimeInput struct{}

// CurrentTimeOutput is the result of current_time. NextSlot is the earliest
// whole hour inside the publishing window.
type CurrentTimeOutput struct {
	Time        string `json:"time"`
	Timezone    string `json:"timezone"`
	Weekday     string `json:"weekday"`
	WindowStart int    `json:"window_start_hour"`
	WindowEnd   int    `json:"window_end_hour"`
	NextSlot    string `json:"next_slot"`
}

// CreateCalendarEventInput is the input of create_calendar_event.
type CreateCalendarEventInput struct {
	Title       string `json:"title" jsonschema:"short event title"`
	Description string `json:"description" jsonschema:"what is being published, with links"`
	Time        string `json:"time" jsonschema:"publish time in RFC 3339; a time without offset is read in the reference timezone"`
}

// CreateCalendarEventOutput is the result of create_calendar_event.
type CreateCalendarEventOutput struct {
	Link  string `json:"link"`
	Start string `json:"start"`
	End   string `json:"end"`
}

// RegisterSocial registers generate_post, save_post, current_time and
// create_calendar_event on r, plus web_search when deps.Searcher is set.
func RegisterSocial(r *Registry, deps SocialDeps) error {
	if deps.Writer == nil || deps.Storage == nil || deps.Calendar == nil {
		return errors.New("tools: social toolset needs a writer backend, storage and calendar")
	}
	if deps.Policy.Location == nil {
		return errors.New("tools: social toolset needs a schedule policy")
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	s := &social{deps: deps, instructions: prompts.MustGet(prompts.ContentExpert)}

	err := errors.Join(
		Register(r, GeneratePost, "Create a post for one social platform from a video transcript.", s.generatePost),
		Register(r, SavePost, "Persist a post and return a shareable link to the stored file.", s.savePost),
		Register(r, CurrentTime, "Return the current time in the reference timezone and the next valid publish slot.", s.currentTime),
		Register(r, CreateCalendarEvent, "Create a one-hour publication event on the calendar. The time must be on a weekday inside the afternoon window.", s.createCalendarEvent),
	)
	if err != nil || deps.Searcher == nil {
		return err
	}
	s.searchInstructions = prompts.MustGet(prompts.WebSearch)
	return Register(r, WebSearch, "Search the web for facts that give a post current context, such as release dates or names mentioned in the transcript.", s.webSearch)
}

type social struct {
	deps               SocialDeps
	instructions       string
	searchInstructions string
}

func (s *social) generatePost(ctx context.Context, in GeneratePostInput) (GeneratePostOutput, error) {
	platform := strings.TrimSpace(in.Platform)
	if platform == "" {
		return GeneratePostOutput{}, errors.New("generate_post: platform is required")
	}
	if strings.TrimSpace(in.Transcript) == "" {
		return GeneratePostOutput{}, errors.New("generate_post: transcript is required")
	}

	resp, err := s.deps.Writer.Complete(ctx, backend.Request{
		Instructions: s.instructions,
		Messages: []backend.Message{{
			Role:    backend.RoleUser,
			Content: fmt.Sprintf("Create a %s post using this transcript: %s", platform, in.Transcript),
		}},
	})
	if err != nil {
		return GeneratePostOutput{}, fmt.Errorf("generate_post: %w", err)
	}
	answer, ok := resp.(backend.FinalAnswer)
	if !ok {
		return GeneratePostOutput{}, errors.New("generate_post: backend requested tools instead of answering")
	}
	post := strings.TrimSpace(answer.Text)
	if post == "" {
		post = strings.TrimSpace(string(answer.Structured))
	}
	if post == "" {
		return GeneratePostOutput{}, errors.New("generate_post: backend returned an empty post")
	}
	return GeneratePostOutput{Platform: platform, Post: post}, nil
}

func (s *social) webSearch(ctx context.Context, in WebSearchInput) (WebSearchOutput, error) {
	query := strings.TrimSpace(in.Query)
	if query == "" {
		return WebSearchOutput{}, errors.New("web_search: query is required")
	}
	resp, err := s.deps.Searcher.Complete(ctx, backend.Request{
		Instructions: s.searchInstructions,
		Messages:     []backend.Message{{Role: backend.RoleUser, Content: query}},
	})
	if err != nil {
		return WebSearchOutput{}, fmt.Errorf("web_search: %w", err)
	}
	answer, ok := resp.(backend.FinalAnswer)
	if !ok {
		return WebSearchOutput{}, errors.New("web_search: backend requested tools instead of answering")
	}
	text := strings.TrimSpace(answer.Text)
	if text == "" {
		return WebSearchOutput{}, errors.New("web_search: backend returned no results")
	}
	return WebSearchOutput{Query: query, Answer: text}, nil
}

func (s *social) savePost(ctx context.Context, in SavePostInput) (SavePostOutput, error) {
	if strings.TrimSpace(in.Content) == "" {
		return SavePostOutput{}, errors.New("save_post: content is required")
	}
	name, err := drive.CleanFilename(in.Filename)
	if err != nil {
		return SavePostOutput{}, fmt.Errorf("save_post: %w", err)
	}
	file, err := s.deps.Storage.Store(ctx, []byte(in.Content), name)
	if err != nil {
		return SavePostOutput{}, fmt.Errorf("save_post: %w", err)
	}
	return SavePostOutput{Filename: file.Name, Link: file.Link}, nil
}

func (s *social) currentTime(_ context.Context, _ CurrentTimeInput) (CurrentTimeOutput, error) {
	p := s.deps.Policy
	now := s.deps.Now().In(p.Location)
	return CurrentTimeOutput{
		Time:        now.Format(time.RFC3339),
		Timezone:    p.Location.String(),
		Weekday:     now.Weekday().String(),
		WindowStart: p.StartHour,
		WindowEnd:   p.EndHour,
		NextSlot:    p.NextSlot(now).Format(time.RFC3339),
	}, nil
}

func (s *social) createCalendarEvent(ctx context.Context, in CreateCalendarEventInput) (CreateCalendarEventOutput, error) {
	p := s.deps.Policy
	start, err := parseEventTime(in.Time, p.Location)
	if err != nil {
		return CreateCalendarEventOutput{}, fmt.Errorf("create_calendar_event: %w", err)
	}
	if err := p.Check(start); err != nil {
		return CreateCalendarEventOutput{}, fmt.Errorf("create_calendar_event: %w", err)
	}
	if start.Before(s.deps.Now()) {
		return CreateCalendarEventOutput{}, fmt.Errorf("create_calendar_event: %s is in the past", start.Format(time.RFC3339))
	}

	start = start.In(p.Location)
	end := start.Add(time.Hour)
	link, err := s.deps.Calendar.Insert(ctx, calendar.Event{
		Title:       in.Title,
		Description: in.Description,
		Start:       start,
		End:         end,
		TimeZone:    p.Location.String(),
		Reminders:   calendar.DefaultReminders,
	})
	if err != nil {
		return CreateCalendarEventOutput{}, fmt.Errorf("create_calendar_event: %w", err)
	}
	return CreateCalendarEventOutput{
		Link:  link,
		Start: start.Format(time.RFC3339),
		End:   end.Format(time.RFC3339),
	}, nil
}

var localLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
}

func parseEventTime(value string, loc *time.Location) (time.Time, error) {
	value = strings.TrimSpace(value)
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t, nil
	}
	for _, layout := range localLayouts {
		if t, err := time.ParseInLocation(layout, value, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised time %q, want RFC 3339", value)
}
