//go:build e2e

package e2e

import (
	"context"
	"encoding/json"
	"flag"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lewflauta/AgenticSocialBot/internal/agent"
	"github.com/lewflauta/AgenticSocialBot/internal/backend"
	"github.com/lewflauta/AgenticSocialBot/internal/backend/backendtest"
	"github.com/lewflauta/AgenticSocialBot/internal/orchestrator"
	"github.com/lewflauta/AgenticSocialBot/internal/runner"
	"github.com/lewflauta/AgenticSocialBot/internal/schedule"
	"github.com/lewflauta/AgenticSocialBot/internal/services/calendar"
	"github.com/lewflauta/AgenticSocialBot/internal/services/drive"
	"github.com/lewflauta/AgenticSocialBot/internal/services/transcript"
	"github.com/lewflauta/AgenticSocialBot/internal/tools"
)

var update = flag.Bool("update", false, "update golden files")

// goldenDir returns the path to the testdata/golden directory.
func goldenDir() string {
	return filepath.Join("..", "..", "testdata", "golden")
}

func transcriptDir() string {
	return filepath.Join("..", "..", "testdata", "fixtures", "transcripts")
}

// goldenFiles maps output files to golden filenames.
var goldenFiles = []struct {
	output string
	golden string
}{
	{"content.txt", "shipping_content.txt"},
	{filepath.Join("posts", "linkedin-post.txt"), "shipping_linkedin-post.txt"},
	{filepath.Join("posts", "instagram-post.txt"), "shipping_instagram-post.txt"},
}

// runPipelineForGolden runs the shipping fixture through the real runner,
// local storage and the ICS calendar with scripted backends, and returns the
// output directory.
func runPipelineForGolden(t *testing.T) string {
	t.Helper()
	outputDir := t.TempDir()

	policy, err := schedule.NewPolicy("Europe/Amsterdam", 12, 17)
	require.NoError(t, err)
	now := time.Date(2026, 10, 16, 10, 30, 0, 0, policy.Location)

	linkedIn := "Small releases beat big launches.\n\nWe ship every change behind a flag to 5% of users first and watch two numbers. Twelve deploys a day, zero rollbacks in four months.\n\nMake your next change small enough to explain in one sentence."
	instagram := "Ship small. Watch two numbers. Sleep well. 🚀\n\n#shipping #devops #startups"

	toolWriter := backendtest.NewScripted(backendtest.Text(linkedIn), backendtest.Text(instagram))
	roleBackend := backendtest.NewScripted(
		backendtest.Calls(
			backend.ToolCall{ID: "w1", Name: tools.GeneratePost, Arguments: backendtest.Args(tools.GeneratePostInput{Transcript: "see transcript", Platform: "LinkedIn"})},
			backend.ToolCall{ID: "w2", Name: tools.GeneratePost, Arguments: backendtest.Args(tools.GeneratePostInput{Transcript: "see transcript", Platform: "Instagram"})},
		),
		backendtest.Text("Both posts are drafted."),
		backendtest.Structured(agent.EvaluationFeedback{Feedback: "Concrete numbers, clear takeaway.", Score: 9}),
		backendtest.Calls(
			backend.ToolCall{ID: "s1", Name: tools.SavePost, Arguments: backendtest.Args(tools.SavePostInput{Content: linkedIn, Filename: "linkedin-post.txt"})},
			backend.ToolCall{ID: "s2", Name: tools.SavePost, Arguments: backendtest.Args(tools.SavePostInput{Content: instagram, Filename: "instagram-post.txt"})},
		),
		backendtest.StructuredFrom(storedFromResults),
		backendtest.Call("c1", tools.CreateCalendarEvent, tools.CreateCalendarEventInput{
			Title: "Publish shipping posts",
			Time:  "2026-10-16T14:00:00+02:00",
		}),
		backendtest.Text("Scheduled for 14:00."),
	)

	registry := tools.NewRegistry()
	require.NoError(t, tools.RegisterSocial(registry, tools.SocialDeps{
		Writer:   toolWriter,
		Storage:  drive.Local{Dir: filepath.Join(outputDir, "posts")},
		Calendar: calendar.ICS{Dir: filepath.Join(outputDir, "calendar"), Now: func() time.Time { return now }},
		Policy:   policy,
		Now:      func() time.Time { return now },
	}))
	run, err := runner.New(roleBackend, registry, runner.Config{})
	require.NoError(t, err)
	roles, err := agent.NewRegistry([]string{"LinkedIn", "Instagram"})
	require.NoError(t, err)

	pipeline, err := orchestrator.NewPipeline(
		orchestrator.Config{Platforms: []string{"LinkedIn", "Instagram"}},
		transcript.Dir{Path: transcriptDir()}, run, roles,
	)
	require.NoError(t, err)
	progressCh := pipeline.Progress()
	drainDone := make(chan struct{})
	go func() {
		defer close(drainDone)
		for range progressCh {
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	out, err := pipeline.Run(ctx, "shipping")
	require.NoError(t, err)
	require.True(t, out.Published())

	pipeline.Close()
	<-drainDone

	require.NoError(t, os.WriteFile(filepath.Join(outputDir, "content.txt"), []byte(out.Content), 0o644))
	return outputDir
}

// storedFromResults reports the posts exactly as save_post returned them.
func storedFromResults(req backend.Request) any {
	var stored agent.StoredPosts
	for _, msg := range req.Messages {
		if msg.Role != backend.RoleTool || msg.Name != tools.SavePost {
			continue
		}
		var out tools.SavePostOutput
		if err := json.Unmarshal([]byte(msg.Content), &out); err != nil {
			continue
		}
		platform := "Instagram"
		if strings.HasPrefix(out.Filename, "linkedin") {
			platform = "LinkedIn"
		}
		stored.Posts = append(stored.Posts, agent.StoredPost{Platform: platform, Filename: out.Filename, Filelink: out.Link})
	}
	return stored
}

// TestGolden compares the pipeline output against golden files. If golden
// files do not exist, the test is skipped with a message to run with -update.
func TestGolden(t *testing.T) {
	outputDir := runPipelineForGolden(t)
	gDir := goldenDir()

	for _, gf := range goldenFiles {
		t.Run(gf.golden, func(t *testing.T) {
			golden, err := os.ReadFile(filepath.Join(gDir, gf.golden))
			if os.IsNotExist(err) {
				t.Skipf("golden file %s not found; run with -update to generate", gf.golden)
				return
			}
			require.NoError(t, err)

			actual, err := os.ReadFile(filepath.Join(outputDir, gf.output))
			require.NoError(t, err)
			assert.Equal(t, string(golden), string(actual), "output for %s does not match golden file", gf.output)
		})
	}

	events, err := os.ReadDir(filepath.Join(outputDir, "calendar"))
	require.NoError(t, err)
	assert.Len(t, events, 1)
}

// TestUpdateGolden regenerates golden files from the current pipeline output.
// Run with: go test -tags e2e -run TestUpdateGolden ./internal/e2e/ -update
func TestUpdateGolden(t *testing.T) {
	if !*update {
		t.Skip("skipping golden file update; run with -update flag")
	}

	outputDir := runPipelineForGolden(t)
	gDir := goldenDir()
	require.NoError(t, os.MkdirAll(gDir, 0o755))

	for _, gf := range goldenFiles {
		data, err := os.ReadFile(filepath.Join(outputDir, gf.output))
		require.NoError(t, err)
		require.NoError(t, os.WriteFile(filepath.Join(gDir, gf.golden), data, 0o644))
		t.Logf("updated %s", gf.golden)
	}
}
