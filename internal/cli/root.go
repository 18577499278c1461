// Package cli implements the nextedit command tree.
package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"slices"

	"github.com/ggoodman/nextedit-go/config"
	"github.com/ggoodman/nextedit-go/fetch"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	EnvFile string
	Format  string // "yaml" | "json"
	Verbose bool

	cfg     *config.Config
	handler slog.Handler
	// fetcher is replaced in tests.
	fetcher fetch.Fetcher
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"yaml", "json"}

// NewRootCommand creates the root command.
func NewRootCommand() *cobra.Command {
	return newRootCommand(&RootOptions{})
}

func newRootCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "nextedit",
		Short:         "Next edit suggestions and validated GitHub API access",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return opts.load(cmd)
		},
	}

	cmd.PersistentFlags().StringVar(&opts.EnvFile, "env-file", ".env", "dotenv file loaded before reading the environment")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "yaml", "output format (yaml|json)")
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "debug logging to stderr")

	cmd.AddCommand(newSuggestCommand(opts))
	cmd.AddCommand(newUserCommand(opts))
	cmd.AddCommand(newFileCommand(opts))
	cmd.AddCommand(newPullRequestCommand(opts))
	cmd.AddCommand(newSessionsCommand(opts))
	cmd.AddCommand(newAgentsCommand(opts))
	cmd.AddCommand(newSchemaCommand(opts))

	return cmd
}

// load reads the dotenv file, then the environment. A missing dotenv file
// is only an error when the flag was set explicitly.
func (o *RootOptions) load(cmd *cobra.Command) error {
	if o.EnvFile != "" {
		if err := godotenv.Load(o.EnvFile); err != nil {
			if !errors.Is(err, fs.ErrNotExist) || cmd.Flags().Changed("env-file") {
				return fmt.Errorf("load env (%s): %w", o.EnvFile, err)
			}
		}
	}
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	o.cfg = cfg

	level, _ := cfg.Level()
	if o.Verbose {
		level = slog.LevelDebug
	}
	o.handler = slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level})
	if o.fetcher == nil {
		o.fetcher = fetch.NewHTTP(nil, fetch.WithTimeout(cfg.RequestTimeout))
	}
	return nil
}
