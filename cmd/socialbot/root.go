package main

import (
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"github.com/lewflauta/AgenticSocialBot/internal/config"
	"github.com/lewflauta/AgenticSocialBot/internal/logging"
)

type commandContext struct {
	configFlag string
	dirFlag    string
	verbose    bool

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		c.config, c.configErr = config.Load(c.dirFlag, strings.TrimSpace(c.configFlag))
	})
	return c.config, c.configErr
}

func (c *commandContext) logger(cfg *config.Config) logging.Logger {
	level := cfg.Log.Level
	if c.verbose {
		level = "debug"
	}
	return logging.NewLoggerWithService("socialbot", logging.Options{
		Level:  level,
		Format: cfg.Log.Format,
	})
}

func newRootCommand() *cobra.Command {
	ctx := &commandContext{}

	rootCmd := &cobra.Command{
		Use:           "socialbot",
		Short:         "Turn video transcripts into scheduled social media posts",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Name() == "version" || cmd.Name() == "init" {
				return nil
			}
			_, err := ctx.ensureConfig()
			return err
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVarP(&ctx.configFlag, "config", "c", "", "Configuration file path (default: socialbot.yml in --dir)")
	rootCmd.PersistentFlags().StringVar(&ctx.dirFlag, "dir", ".", "Directory holding socialbot.yml and .env")
	rootCmd.PersistentFlags().BoolVarP(&ctx.verbose, "verbose", "v", false, "Enable debug logging")

	rootCmd.AddCommand(newRunCommand(ctx))
	rootCmd.AddCommand(newHistoryCommand(ctx))
	rootCmd.AddCommand(newServeCommand(ctx))
	rootCmd.AddCommand(newInitCommand(ctx))
	rootCmd.AddCommand(newVersionCommand())

	return rootCmd
}
