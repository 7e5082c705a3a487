package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

// InitDBCommand creates the init-db command.
func InitDBCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "init-db",
		Short: "Create the assess schema and all tables",
		Long: `Create the assess schema, the master flow tables, and every domain
table (import batches, assets, dependencies, questionnaires, tech debt,
recommendations). Safe to run repeatedly; existing tables are left alone.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ds, err := opts.openDataStore()
			if err != nil {
				return fmt.Errorf("connecting data store: %w", err)
			}
			defer ds.Close()

			if err := ds.InitDB(cmd.Context()); err != nil {
				return fmt.Errorf("initializing schema: %w", err)
			}
			fmt.Println("✅ Schema initialized")
			return nil
		},
	}
}

// demoSeeder is implemented by stores that can load the demo estate.
type demoSeeder interface {
	SeedDemo(ctx context.Context) error
}

// SeedCommand creates the seed command.
func SeedCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Load a small demo estate for the demo tenant",
		Long: `Initialize the schema if needed, then load a handful of servers,
dependencies and a retired candidate under the demo tenant so flows have
something to work on.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ds, err := opts.openDataStore()
			if err != nil {
				return fmt.Errorf("connecting data store: %w", err)
			}
			defer ds.Close()

			ctx := cmd.Context()
			if err := ds.InitDB(ctx); err != nil {
				return fmt.Errorf("initializing schema: %w", err)
			}

			seeder, ok := ds.(demoSeeder)
			if !ok {
				return fmt.Errorf("the %s store does not support seeding; run against PostgreSQL", storeLabel(opts))
			}
			if err := seeder.SeedDemo(ctx); err != nil {
				return fmt.Errorf("seeding demo data: %w", err)
			}
			fmt.Println("✅ Demo estate loaded")
			return nil
		},
	}
}

func storeLabel(opts *rootOptions) string {
	if opts.mock {
		return "mock"
	}
	return "configured"
}
