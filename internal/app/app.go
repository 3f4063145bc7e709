// Package app wires the gateway components behind a cobra command line.
package app

import (
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sirosfoundation/go-as4-gateway/internal/config"
)

// Run executes the root command.
func Run(out, stderr io.Writer) error {
	c := RootCommand(out, stderr)
	return c.Execute()
}

// env is filled in before any subcommand runs
type env struct {
	config *config.Config
	logger *slog.Logger
}

// RootCommand builds the command tree.
func RootCommand(out, stderr io.Writer) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "as4-gateway",
		Short:         "AS4 gateway",
		SilenceErrors: true,
	}

	cmd.SetOut(out)
	cmd.SetErr(stderr)
	cmd.Root().SilenceUsage = true

	var configFile, verbosityLevel string
	e := &env{}
	cmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		var err error
		if configFile != "" {
			e.config, err = config.Load(configFile)
		} else {
			e.config = config.Default()
		}
		if err != nil {
			return err
		}

		if verbosityLevel == "" {
			verbosityLevel = e.config.Logging.Level
		}
		e.logger, err = newLogger(stderr, verbosityLevel, e.config.Logging.Format)
		return err
	}

	cmd.AddCommand(NewCmdServe(e))
	cmd.AddCommand(NewCmdValidate(out))
	cmd.AddCommand(NewCmdVersion(out))

	cmd.PersistentFlags().StringVarP(&verbosityLevel, "verbosity", "v", "", "Log level (debug, info, warn, error)")
	cmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "Configuration file")

	return cmd
}

func newLogger(out io.Writer, level, format string) (*slog.Logger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("parsing log level: %w", err)
	}
	opts := &slog.HandlerOptions{Level: lvl}

	var handler slog.Handler
	switch strings.ToLower(format) {
	case "json":
		handler = slog.NewJSONHandler(out, opts)
	case "", "text":
		handler = slog.NewTextHandler(out, opts)
	default:
		return nil, fmt.Errorf("unknown log format %q", format)
	}
	return slog.New(handler), nil
}
