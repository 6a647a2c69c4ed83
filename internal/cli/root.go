// Package cli implements the consultctl operator commands.
package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/ashureev/campaign-consult/internal/app"
	"github.com/ashureev/campaign-consult/internal/config"
	"github.com/ashureev/campaign-consult/internal/logging"
)

// Version is reported by the MCP server; set with -ldflags at build time.
var Version = "dev"

type options struct {
	dbPath   string
	logLevel string
}

// NewRootCmd builds the consultctl command tree.
func NewRootCmd() *cobra.Command {
	opts := &options{}
	root := &cobra.Command{
		Use:           "consultctl",
		Short:         "Operate the campaign consultation engine",
		Long:          "consultctl runs local consultations, inspects archived campaign briefs and serves consultations to MCP clients.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&opts.dbPath, "db", "d", "", "Brief archive path (default: $DB_PATH or ./data/consultations.db)")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "Log level: debug, info, warn, error (default: $LOG_LEVEL)")

	root.AddCommand(
		newChatCmd(opts),
		newBriefsCmd(opts),
		newMCPCmd(opts),
		newHealthCmd(),
	)
	return root
}

// loadConfig reads the environment and applies flag overrides.
func (o *options) loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if o.dbPath != "" {
		cfg.DBPath = o.dbPath
	}
	if o.logLevel != "" {
		cfg.LogLevel = o.logLevel
	}
	return cfg, nil
}

// buildCore wires the engine. Logs go to stderr so stdout stays clean for
// conversation output and the MCP stdio transport.
func (o *options) buildCore(ctx context.Context, stderr io.Writer) (*app.Core, error) {
	cfg, err := o.loadConfig()
	if err != nil {
		return nil, err
	}
	logger := logging.InitWriter(stderr, cfg.Env, cfg.LogLevel)
	core, err := app.Build(ctx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("build engine: %w", err)
	}
	return core, nil
}

func closeCore(core *app.Core) {
	if err := core.Close(); err != nil {
		slog.Warn("failed to close resources", "error", err)
	}
}
