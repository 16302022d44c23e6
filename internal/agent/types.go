package agent

import (
	"fmt"
	"strings"
)

// Score bounds accepted from the Critic.
const (
	MinScore = 1
	MaxScore = 10
)

// EvaluationFeedback is the Critic's verdict on the generated content.
type EvaluationFeedback struct {
	Feedback string `json:"feedback" jsonschema:"concrete feedback on the drafts"`
	Score    int    `json:"score" jsonschema:"overall quality from 1 (unusable) to 10 (ready to publish)"`
}

// StoredPost records one persisted post.
type StoredPost struct {
	Platform string `json:"platform" jsonschema:"platform the post was written for"`
	Filename string `json:"filename" jsonschema:"file name the post was saved under"`
	Filelink string `json:"filelink" jsonschema:"link returned by save_post"`
}

// StoredPosts is the Storage role's answer.
type StoredPosts struct {
	Posts []StoredPost `json:"posts" jsonschema:"one entry per stored post"`
}

// String renders the stored posts as the text handed to the Scheduler.
func (s StoredPosts) String() string {
	if len(s.Posts) == 0 {
		return "No posts were stored."
	}
	var b strings.Builder
	b.WriteString("Stored posts:\n")
	for _, p := range s.Posts {
		fmt.Fprintf(&b, "- %s: %s (%s)\n", p.Platform, p.Filename, p.Filelink)
	}
	return strings.TrimRight(b.String(), "\n")
}

// Platforms returns the platform of every stored post, in order.
func (s StoredPosts) Platforms() []string {
	out := make([]string, len(s.Posts))
	for i, p := range s.Posts {
		out[i] = p.Platform
	}
	return out
}
