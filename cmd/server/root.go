package main

import (
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"endpointhub/internal/config"
	"endpointhub/internal/observability/logging"
)

type rootOptions struct {
	configFile string
	out        io.Writer
}

func newRootCmd(out io.Writer) *cobra.Command {
	opts := &rootOptions{out: out}
	cmd := &cobra.Command{
		Use:   "endpointhub",
		Short: "endpointhub - a catalog driven HTTP API gateway",
		Long: `endpointhub serves a catalog of small JSON API modules. Every module is
mounted under /api behind the same rate limit, role check and parameter
validation, and the whole catalog is described at /api/metadata.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.SetOut(out)

	flags := cmd.PersistentFlags()
	flags.StringVar(&opts.configFile, "config", "", "path to a config file (yaml, json or toml)")
	flags.String("log-level", "", "log level (debug, info, warn, error)")
	flags.String("log-format", "", "log format (json or text)")
	flags.String("api-prefix", "", "path prefix for catalog routes")

	cmd.AddCommand(newServeCmd(opts), newRoutesCmd(opts))
	return cmd
}

// loadConfig resolves configuration for cmd, letting explicitly set flags
// override the file and environment.
func (o *rootOptions) loadConfig(cmd *cobra.Command) (config.Config, error) {
	v := config.New()
	if err := config.BindFlags(v, cmd.Flags()); err != nil {
		return config.Config{}, err
	}
	result, err := config.Load(v, o.configFile)
	if err != nil {
		return config.Config{}, err
	}
	return result.Config, nil
}

func newLogger(cfg config.Config, w io.Writer) *slog.Logger {
	return logging.New(logging.Config{Level: cfg.Log.Level, Format: cfg.Log.Format, Writer: w})
}
