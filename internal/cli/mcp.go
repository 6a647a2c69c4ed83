package cli

import (
	"github.com/spf13/cobra"

	"github.com/ashureev/campaign-consult/internal/mcp"
)

func newMCPCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve consultations as MCP tools over stdio",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			core, err := opts.buildCore(cmd.Context(), cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer closeCore(core)
			return mcp.Run(core.Service, Version)
		},
	}
}
