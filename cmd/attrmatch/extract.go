package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cognicore/attrmatch/pkg/attrmatch"
)

var (
	extractSource   int64
	extractSequence int64
	extractFilter   string
	extractWorkers  int
	extractNoBar    bool
)

var extractCmd = &cobra.Command{
	Use:   "extract",
	Short: "Extract attribute values for a source and sequence",
	Long: `Run the two extraction passes for every product of a source: review
ratings, product names and review text first, then descriptions. Records are
written to the attribute_values table in bulk.`,
	Args: cobra.NoArgs,
	RunE: runExtract,
}

func init() {
	extractCmd.Flags().Int64Var(&extractSource, "source", 0, "source id (required)")
	extractCmd.Flags().Int64Var(&extractSequence, "sequence", 0, "sequence id (required)")
	extractCmd.Flags().StringVar(&extractFilter, "filter", "", "only process products whose name contains this text")
	extractCmd.Flags().IntVar(&extractWorkers, "workers", 0, "parallel chunk workers (default from config)")
	extractCmd.Flags().BoolVar(&extractNoBar, "no-progress", false, "disable the progress bar")
	extractCmd.MarkFlagRequired("source")
	extractCmd.MarkFlagRequired("sequence")
	rootCmd.AddCommand(extractCmd)
}

func runExtract(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	ec := a.cfg.Extraction
	req := attrmatch.ExtractRequest{
		SourceID:           extractSource,
		SequenceID:         extractSequence,
		RatingCode:         ec.RatingCode,
		DebugProductFilter: ec.DebugProductFilter,
		BatchSize:          ec.BatchSize,
		Workers:            ec.Workers,
		ChunkSize:          ec.ChunkSize,
	}
	if extractFilter != "" {
		req.DebugProductFilter = extractFilter
	}
	if extractWorkers > 0 {
		req.Workers = extractWorkers
	}

	var bar *passProgress
	if !extractNoBar {
		bar = newPassProgress(cmd.ErrOrStderr())
		req.Progress = bar.Update
	}

	summary, err := a.engine.Extract(ctx, req)
	if bar != nil {
		bar.Finish()
	}
	if err != nil {
		return fmt.Errorf("extract: %w", err)
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(summary)
}
