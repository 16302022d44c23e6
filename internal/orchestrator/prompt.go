package orchestrator

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/lewflauta/AgenticSocialBot/internal/agent"
	"github.com/lewflauta/AgenticSocialBot/internal/runner"
	"github.com/lewflauta/AgenticSocialBot/internal/tools"
)

// BuildPrompt synthesizes the Writer's driving instruction.
func BuildPrompt(platforms []string, transcript string) string {
	return fmt.Sprintf("Create a %s post based on this transcript: %s", joinPlatforms(platforms), transcript)
}

// evaluationPrompt combines the writer prompt with the generated content.
func evaluationPrompt(prompt, content string) string {
	return prompt + "\n\nGenerated: " + content
}

func joinPlatforms(platforms []string) string {
	switch len(platforms) {
	case 0:
		return "social media"
	case 1:
		return platforms[0]
	default:
		return strings.Join(platforms[:len(platforms)-1], ", ") + " and " + platforms[len(platforms)-1]
	}
}

// reconcileContent turns the Writer's result into a single post text.
// generate_post results win when present, joined in call order and prefixed
// with their platform; otherwise the final text is used.
func reconcileContent(res *runner.Result) (string, error) {
	var blocks []string
	for _, inv := range res.InvocationsOf(tools.GeneratePost) {
		var out tools.GeneratePostOutput
		if err := json.Unmarshal([]byte(inv.Result), &out); err != nil {
			return "", fmt.Errorf("%w: decode %s result: %w", runner.ErrSchemaViolation, tools.GeneratePost, err)
		}
		post := strings.TrimSpace(out.Post)
		if post == "" {
			continue
		}
		if out.Platform != "" {
			post = out.Platform + ":\n" + post
		}
		blocks = append(blocks, post)
	}
	if len(blocks) > 0 {
		return strings.Join(blocks, "\n\n"), nil
	}

	if text, ok := res.Text(); ok {
		if text = strings.TrimSpace(text); text != "" {
			return text, nil
		}
	}
	return "", fmt.Errorf("%w: writer produced no content", runner.ErrSchemaViolation)
}

// scheduledLink returns the link of the last calendar event the Scheduler
// created.
func scheduledLink(res *runner.Result) (string, error) {
	invs := res.InvocationsOf(tools.CreateCalendarEvent)
	if len(invs) == 0 {
		return "", ErrNotScheduled
	}
	var out tools.CreateCalendarEventOutput
	if err := json.Unmarshal([]byte(invs[len(invs)-1].Result), &out); err != nil || out.Link == "" {
		return "", fmt.Errorf("%w: unreadable %s result", ErrNotScheduled, tools.CreateCalendarEvent)
	}
	return out.Link, nil
}

// reconcileStored checks the Storage role's report against the save_post
// calls that actually ran. Every reported link must come from a save_post
// result and every platform must have a post. Filenames are taken from the
// save_post results, since the persister may rename files.
func reconcileStored(res *runner.Result, platforms []string) (agent.StoredPosts, error) {
	stored, err := runner.Decode[agent.StoredPosts](res)
	if err != nil {
		return agent.StoredPosts{}, err
	}
	if len(stored.Posts) == 0 {
		return agent.StoredPosts{}, fmt.Errorf("%w: storage reported no posts", runner.ErrSchemaViolation)
	}

	saved := make(map[string]tools.SavePostOutput)
	for _, inv := range res.InvocationsOf(tools.SavePost) {
		var out tools.SavePostOutput
		if err := json.Unmarshal([]byte(inv.Result), &out); err != nil {
			return agent.StoredPosts{}, fmt.Errorf("%w: decode %s result: %w", runner.ErrSchemaViolation, tools.SavePost, err)
		}
		saved[out.Link] = out
	}

	covered := make(map[string]bool, len(platforms))
	posts := make([]agent.StoredPost, 0, len(stored.Posts))
	for _, post := range stored.Posts {
		out, ok := saved[post.Filelink]
		if !ok || post.Filelink == "" {
			return agent.StoredPosts{}, fmt.Errorf("%w: %s link %q was not returned by %s",
				runner.ErrSchemaViolation, post.Platform, post.Filelink, tools.SavePost)
		}
		platform, ok := matchPlatform(platforms, post.Platform)
		if !ok {
			return agent.StoredPosts{}, fmt.Errorf("%w: post for unexpected platform %q", runner.ErrSchemaViolation, post.Platform)
		}
		if covered[platform] {
			return agent.StoredPosts{}, fmt.Errorf("%w: more than one stored post for %s", runner.ErrSchemaViolation, platform)
		}
		covered[platform] = true
		posts = append(posts, agent.StoredPost{Platform: platform, Filename: out.Filename, Filelink: out.Link})
	}

	var missing []string
	for _, platform := range platforms {
		if !covered[platform] {
			missing = append(missing, platform)
		}
	}
	if len(missing) > 0 {
		return agent.StoredPosts{}, fmt.Errorf("%w: no stored post for %s", runner.ErrSchemaViolation, strings.Join(missing, ", "))
	}
	return agent.StoredPosts{Posts: posts}, nil
}

func matchPlatform(platforms []string, name string) (string, bool) {
	name = strings.TrimSpace(name)
	for _, p := range platforms {
		if strings.EqualFold(p, name) {
			return p, true
		}
	}
	return "", false
}
