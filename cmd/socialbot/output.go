package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/lewflauta/AgenticSocialBot/internal/orchestrator"
)

// writeJSON encodes v as indented JSON to the command's stdout.
func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

type jsonResult struct {
	VideoID   string                `json:"video_id,omitempty"`
	Outcome   *orchestrator.Outcome `json:"outcome,omitempty"`
	Error     string                `json:"error,omitempty"`
	ErrorKind string                `json:"error_kind,omitempty"`
}

func toJSONResults(results []orchestrator.BatchResult) []jsonResult {
	out := make([]jsonResult, len(results))
	for i, res := range results {
		out[i] = jsonResult{VideoID: res.VideoID, Outcome: res.Outcome}
		if res.Err != nil {
			out[i].Error = res.Err.Error()
			out[i].ErrorKind = string(orchestrator.KindOf(res.Err))
		}
	}
	return out
}

// printResult renders one run for humans.
func printResult(w io.Writer, res orchestrator.BatchResult, threshold int) {
	if res.VideoID != "" {
		fmt.Fprintf(w, "Video: %s\n", res.VideoID)
	}
	out := res.Outcome
	if out != nil && out.RunID != "" {
		fmt.Fprintf(w, "Run: %s\n", out.RunID)
	}
	if out != nil && out.Feedback != nil {
		fmt.Fprintf(w, "Score: %d\n", out.Feedback.Score)
		fmt.Fprintf(w, "Feedback: %s\n", out.Feedback.Feedback)
	}

	switch {
	case res.Err != nil:
		fmt.Fprintf(w, "Failed: %v\n", res.Err)
		if orchestrator.KindOf(res.Err) == orchestrator.KindBackendRejected {
			fmt.Fprintln(w, "The backend refused the request; check backend.apiKey, backend.model and backend.baseURL.")
		}
	case out == nil:
		fmt.Fprintln(w, "Failed: no outcome")
	case out.Rejected:
		fmt.Fprintf(w, "Not published: score %d is below the threshold of %d\n", out.Feedback.Score, threshold)
	default:
		if out.Stored != nil {
			fmt.Fprintln(w, "Stored:")
			for _, p := range out.Stored.Posts {
				fmt.Fprintf(w, "  - %s: %s (%s)\n", p.Platform, p.Filename, p.Filelink)
			}
		}
		fmt.Fprintf(w, "Scheduled: %s\n", out.ScheduledLink)
	}
}
