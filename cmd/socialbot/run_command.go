package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/spf13/cobra"

	"github.com/lewflauta/AgenticSocialBot/internal/orchestrator"
)

func newRunCommand(ctx *commandContext) *cobra.Command {
	var (
		transcriptFile string
		jsonOutput     bool
		quiet          bool
	)

	cmd := &cobra.Command{
		Use:   "run [video-id...]",
		Short: "Write, review, store and schedule posts for one or more videos",
		Args: func(cmd *cobra.Command, args []string) error {
			if transcriptFile == "" && len(args) == 0 {
				return errors.New("give at least one video ID or --transcript-file")
			}
			if transcriptFile != "" && len(args) > 0 {
				return errors.New("--transcript-file cannot be combined with video IDs")
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			a, err := newApp(cmd.Context(), cfg, ctx.logger(cfg))
			if err != nil {
				return err
			}

			var wg sync.WaitGroup
			if !quiet && !jsonOutput {
				wg.Add(1)
				go func() {
					defer wg.Done()
					for ev := range a.pipeline.Progress() {
						fmt.Fprintln(cmd.ErrOrStderr(), orchestrator.FormatProgress(ev))
					}
				}()
			}
			defer wg.Wait()
			defer a.Close()

			if transcriptFile != "" {
				text, err := readTranscript(cmd.InOrStdin(), transcriptFile)
				if err != nil {
					return err
				}
				out, runErr := a.pipeline.Execute(cmd.Context(), text)
				return report(cmd, []orchestrator.BatchResult{{Outcome: out, Err: runErr}}, cfg.Threshold, jsonOutput)
			}

			results := orchestrator.RunBatch(cmd.Context(), a.pipeline, args, cfg.Concurrency)
			return report(cmd, results, cfg.Threshold, jsonOutput)
		},
	}

	cmd.Flags().StringVarP(&transcriptFile, "transcript-file", "f", "", "Read the transcript from a file (- for stdin) instead of fetching it")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print outcomes as JSON")
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "Do not print stage progress")
	return cmd
}

func readTranscript(stdin io.Reader, path string) (string, error) {
	if path == "-" {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return "", fmt.Errorf("read transcript from stdin: %w", err)
		}
		return string(data), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read transcript: %w", err)
	}
	return string(data), nil
}

// report prints every result and returns an error when any run failed.
func report(cmd *cobra.Command, results []orchestrator.BatchResult, threshold int, jsonOutput bool) error {
	if jsonOutput {
		if err := writeJSON(cmd, toJSONResults(results)); err != nil {
			return err
		}
	} else {
		for i, res := range results {
			if i > 0 {
				fmt.Fprintln(cmd.OutOrStdout())
			}
			printResult(cmd.OutOrStdout(), res, threshold)
		}
	}

	failed := 0
	for _, res := range results {
		if res.Err != nil {
			failed++
		}
	}
	switch {
	case failed == 0:
		return nil
	case len(results) == 1:
		return results[0].Err
	default:
		return fmt.Errorf("%d of %d runs failed", failed, len(results))
	}
}
