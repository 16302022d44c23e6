package main

import (
	"github.com/spf13/cobra"

	"github.com/lewflauta/AgenticSocialBot/internal/mcptools"
	"github.com/lewflauta/AgenticSocialBot/internal/tools"
)

func newServeCommand(ctx *commandContext) *cobra.Command {
	var (
		httpAddr  string
		withTools bool
	)

	cmd := &cobra.Command{
		Use:   "serve-mcp",
		Short: "Serve the pipeline as MCP tools over stdio or HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			log := ctx.logger(cfg)
			a, err := newApp(cmd.Context(), cfg, log)
			if err != nil {
				return err
			}
			defer a.Close()

			var runs mcptools.RunHistory
			if a.history != nil {
				runs = a.history
			}
			svc := mcptools.NewPipelineService(a.pipeline, runs)
			var toolset *tools.Registry
			if withTools {
				toolset = a.toolset
			}
			server := mcptools.NewMCPServer(svc, toolset)

			if httpAddr != "" {
				log.WithField("addr", httpAddr).Info("serving MCP over HTTP")
				return mcptools.RunHTTP(cmd.Context(), server, httpAddr)
			}
			return mcptools.RunStdio(cmd.Context(), server)
		},
	}
	cmd.Flags().StringVar(&httpAddr, "http", "", "Serve streamable HTTP on this address (with /metrics) instead of stdio")
	cmd.Flags().BoolVar(&withTools, "expose-tools", false, "Also expose generate_post, save_post, current_time and create_calendar_event")
	return cmd
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := cmd.OutOrStdout().Write([]byte(mcptools.Version() + "\n"))
			return err
		},
	}
}
