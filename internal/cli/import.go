package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"ai-force-assess/internal/agent"
	"ai-force-assess/internal/cmdb"
	"ai-force-assess/internal/config"
	"ai-force-assess/internal/store"
)

// ImportCommand creates the import command.
func ImportCommand(opts *rootOptions) *cobra.Command {
	var (
		file       string
		format     string
		sourceName string
		load       bool
	)

	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import a CMDB export: parse, map fields, cleanse",
		Long: `Parse a CMDB export (CSV or JSON), create an import batch, run the
field mapping crew against the canonical dictionary, then cleanse the
mapped records. With --load the cleansed assets are written to the
inventory as well.

Examples:
  assess import --file servers.csv
  assess import --file export.json --format json --load
  assess import --file dump.csv --source-name "servicenow-prod" --load`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runImport(cmd.Context(), opts, file, format, sourceName, load)
		},
	}

	cmd.Flags().StringVar(&file, "file", "", "Path to the CMDB export (required)")
	cmd.Flags().StringVar(&format, "format", "", "Input format: csv or json (auto-detected when empty)")
	cmd.Flags().StringVar(&sourceName, "source-name", "", "Label for the import source (defaults to the file name)")
	cmd.Flags().BoolVar(&load, "load", false, "Load the cleansed assets into the inventory")
	cmd.MarkFlagRequired("file")

	return cmd
}

func runImport(ctx context.Context, opts *rootOptions, file, format, sourceName string, load bool) error {
	data, err := os.ReadFile(file)
	if err != nil {
		return fmt.Errorf("reading %s: %w", file, err)
	}
	if len(data) == 0 {
		return fmt.Errorf("%s is empty", file)
	}
	if format == "" {
		format = cmdb.DetectFormat(data)
	}
	if sourceName == "" {
		sourceName = filepath.Base(file)
	}

	extract, err := cmdb.Parse(format, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("parsing %s: %w", file, err)
	}

	ds, err := opts.openDataStore()
	if err != nil {
		return fmt.Errorf("connecting data store: %w", err)
	}
	defer ds.Close()

	rawRows, err := json.Marshal(extract.Rows)
	if err != nil {
		return fmt.Errorf("encoding rows: %w", err)
	}
	batch := &store.ImportBatch{
		TenantID:    opts.tenantID,
		SourceName:  sourceName,
		Format:      format,
		RecordCount: len(extract.Rows),
		Status:      "received",
		RawColumns:  extract.Columns,
		RawRows:     rawRows,
	}
	batchID, err := ds.CreateImportBatch(ctx, batch)
	if err != nil {
		return fmt.Errorf("creating import batch: %w", err)
	}
	fmt.Printf("Batch %s: %d records from %s (%s)\n", batchID, len(extract.Rows), sourceName, format)

	ag := buildAgent(ctx)
	defer ag.Close()

	mapper := cmdb.NewMapper(agent.NewFieldMappingCrew(ag))
	mappings, consult, err := mapper.SuggestMappings(ctx, opts.tenantID, batchID, extract)
	if err != nil {
		return fmt.Errorf("suggesting mappings: %w", err)
	}
	if consult != nil {
		fmt.Printf("Crew consulted for %d unresolved columns\n", len(consult.Columns))
	}
	if err := ds.SaveFieldMappings(ctx, mappings); err != nil {
		return fmt.Errorf("saving mappings: %w", err)
	}
	if err := ds.UpdateImportBatchStatus(ctx, opts.tenantID, batchID, "mapped"); err != nil {
		return fmt.Errorf("updating batch status: %w", err)
	}

	fmt.Println("\nField mappings:")
	for _, m := range mappings {
		target := m.CanonicalField
		if target == "" {
			target = "(unmapped)"
		}
		fmt.Printf("  %-24s -> %-16s %.0f%% (%s)\n", m.SourceColumn, target, m.Confidence*100, m.Method)
	}

	assets := cmdb.ApplyMappings(opts.tenantID, batchID, extract, mappings)
	cleansed, findings := cmdb.Cleanse(opts.tenantID, batchID, assets)
	if err := ds.SaveCleansingFindings(ctx, findings); err != nil {
		return fmt.Errorf("saving cleansing findings: %w", err)
	}
	if err := ds.UpdateImportBatchStatus(ctx, opts.tenantID, batchID, "cleansed"); err != nil {
		return fmt.Errorf("updating batch status: %w", err)
	}

	fmt.Printf("\nCleansing: %d records kept, %d findings\n", len(cleansed), len(findings))
	for _, f := range findings {
		fmt.Printf("  [%s] %s %s: %q -> %q\n", f.Rule, f.Hostname, f.Field, f.BeforeValue, f.AfterValue)
	}

	if !load {
		fmt.Printf("\nRun with --load, or attach batch %s to a discovery flow, to load the inventory.\n", batchID)
		return nil
	}

	loaded, err := ds.Inventory().UpsertAssets(ctx, cleansed)
	if err != nil {
		return fmt.Errorf("loading assets: %w", err)
	}
	if err := ds.UpdateImportBatchStatus(ctx, opts.tenantID, batchID, "loaded"); err != nil {
		return fmt.Errorf("updating batch status: %w", err)
	}
	fmt.Printf("✅ %d assets loaded into the inventory\n", len(loaded))
	return nil
}

// buildAgent mirrors the server wiring: Gemini when a key is configured,
// the mock agent otherwise.
func buildAgent(ctx context.Context) agent.Agent {
	if apiKey := config.GetAPIKey(); apiKey != "" {
		gemini, err := agent.NewGeminiAgent(ctx, apiKey)
		if err == nil {
			return gemini
		}
		log.Printf("falling back to mock agent: %v", err)
	}
	return agent.NewMockAgent()
}
