package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/chazu/matgraph/pkg/config"
	"github.com/chazu/matgraph/pkg/logging"
	"github.com/chazu/matgraph/pkg/shadergen"
	"github.com/chazu/matgraph/pkg/store"
	"github.com/chazu/matgraph/pkg/texture"
)

// cli holds the state shared by every subcommand for one invocation.
type cli struct {
	configPath string
	project    string
	template   string
	logLevel   string

	cfg    config.Config
	logger *slog.Logger
	store  *store.Store
}

func newRootCmd() *cobra.Command {
	c := &cli{}
	root := &cobra.Command{
		Use:           "matc",
		Short:         "Compile and inspect material blueprints",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return c.open(cmd)
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if c.store == nil {
				return nil
			}
			return c.store.Close()
		},
	}

	root.PersistentFlags().StringVar(&c.configPath, "config", config.FileName,
		"Path to the project configuration")
	root.PersistentFlags().StringVar(&c.project, "project", "",
		"Project root (overrides the configuration)")
	root.PersistentFlags().StringVar(&c.template, "template", "",
		"Fragment shader template (overrides the configuration)")
	root.PersistentFlags().StringVar(&c.logLevel, "log-level", "",
		"Log level: debug, info, warn, error")

	root.AddCommand(
		c.compileCmd(),
		c.validateCmd(),
		c.treeCmd(),
		c.syncCmd(),
		c.scriptCmd(),
		c.newCmd(),
	)
	return root
}

// open loads the configuration, builds the logger and opens the store.
func (c *cli) open(cmd *cobra.Command) error {
	cfg, err := config.Load(c.configPath)
	if err != nil {
		return err
	}
	if c.project != "" {
		cfg.ProjectRoot = c.project
	}
	if c.template != "" {
		cfg.ShaderTemplate = c.template
	}
	if c.logLevel != "" {
		cfg.LogLevel = c.logLevel
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	opts := cfg.Logging()
	opts.Output = cmd.ErrOrStderr()
	logger, err := logging.New(opts)
	if err != nil {
		return err
	}

	st, err := store.New(cfg.ProjectRoot, logger)
	if err != nil {
		return fmt.Errorf("open project: %w", err)
	}
	c.cfg, c.logger, c.store = cfg, logger, st
	return nil
}

func (c *cli) generator() *shadergen.Generator {
	return shadergen.New(c.store,
		shadergen.WithTemplate(c.cfg.ShaderTemplate),
		shadergen.WithPlaceholder(c.cfg.Placeholder),
		shadergen.WithLoader(texture.NewFileLoader(c.store.Root())),
		shadergen.WithLogger(c.logger),
	)
}
