// Package cli implements the `assess` command tree. Every subcommand builds
// its data store from the shared configuration so the CLI and the web server
// always talk to the same backend.
package cli

import (
	"github.com/spf13/cobra"

	"ai-force-assess/internal/config"
	"ai-force-assess/internal/datastore"
	"ai-force-assess/internal/store"
)

// rootOptions carry the persistent flags shared by every subcommand.
type rootOptions struct {
	tenantID  string
	configDir string
	mock      bool
}

// RootCommand builds the `assess` command tree.
func RootCommand() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:   "assess",
		Short: "AI Force Assess - migration assessment platform",
		Long: `AI Force Assess manages IT migration assessments: CMDB imports,
asset inventory, dependency analysis, tech debt scoring, 6R migration
recommendations and the master flows that orchestrate them.

Examples:
  # Initialize the database schema
  assess init-db

  # Import a CMDB export and run field mapping + cleansing
  assess import --file servers.csv --load

  # Create and drive a discovery flow
  assess flow create --type discovery --name "Q3 datacenter sweep"
  assess flow advance --flow-id <uuid>

  # Run the REST API
  assess serve --addr :8181`,
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	root.PersistentFlags().StringVar(&opts.tenantID, "tenant", store.DemoTenantID, "Tenant ID to operate as")
	root.PersistentFlags().StringVar(&opts.configDir, "config-dir", "", "Directory containing server.yaml (defaults to search path)")
	root.PersistentFlags().BoolVar(&opts.mock, "mock", false, "Use the in-memory mock store instead of PostgreSQL")

	root.AddCommand(
		InitDBCommand(opts),
		SeedCommand(opts),
		ServeCommand(opts),
		ImportCommand(opts),
		FlowCommand(opts),
		VersionCommand(),
	)

	return root
}

// openDataStore builds the data store the persistent flags select.
func (o *rootOptions) openDataStore() (datastore.DataStore, error) {
	cfg := config.GetDataStoreConfig()
	if o.mock {
		cfg = datastore.Config{Type: datastore.MockStore}
	}
	return datastore.NewDataStore(cfg)
}
