// Package prompts embeds the role instructions shipped inside the socialbot
// binary. Each instruction lives in its own markdown file named after the
// role.
package prompts

import (
	"embed"
	"fmt"
	"strings"
)

//go:embed *.md
var files embed.FS

// Instruction names.
const (
	Writer        = "writer"
	Critic        = "critic"
	Storage       = "storage"
	Scheduler     = "scheduler"
	ContentExpert = "content_expert"
	WebSearch     = "web_search"
)

// Get returns the trimmed instruction text for name.
func Get(name string) (string, error) {
	data, err := files.ReadFile(name + ".md")
	if err != nil {
		return "", fmt.Errorf("prompts: unknown instruction %q: %w", name, err)
	}
	return strings.TrimSpace(string(data)), nil
}

// MustGet is Get for instructions known at compile time.
func MustGet(name string) string {
	text, err := Get(name)
	if err != nil {
		panic(err)
	}
	return text
}
