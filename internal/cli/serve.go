package cli

import (
	"github.com/spf13/cobra"

	"ai-force-assess/internal/web"
)

// ServeCommand creates the serve command.
func ServeCommand(opts *rootOptions) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the REST API server",
		Long: `Run the REST API: master flow orchestration, CMDB imports, asset
inventory, questionnaires and the legacy unified-discovery endpoints.
Shuts down gracefully on SIGINT/SIGTERM.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return web.Run(cmd.Context(), web.Options{
				ConfigDir: opts.configDir,
				Addr:      addr,
				Mock:      opts.mock,
			})
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (overrides config, e.g. :8181)")

	return cmd
}
