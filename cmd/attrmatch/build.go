package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Build and publish the attribute dictionary",
	Long: `Load every dictionary row from the database, compute token weights, the
ordered dictionary, ambiguity map and bigram index, and publish them as the
latest artifact bundle.`,
	Args: cobra.NoArgs,
	RunE: runBuild,
}

func init() {
	rootCmd.AddCommand(buildCmd)
}

func runBuild(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	res, err := a.engine.BuildDictionary(ctx)
	if err != nil {
		return fmt.Errorf("build dictionary: %w", err)
	}

	out := cmd.OutOrStdout()
	b := res.Bundle
	fmt.Fprintf(out, "bundle:     %s\n", b.RunID)
	fmt.Fprintf(out, "rows:       %d\n", b.Report.Rows)
	fmt.Fprintf(out, "entities:   %d\n", b.Dictionary.Len())
	fmt.Fprintf(out, "tokens:     %d\n", len(b.Weights))
	fmt.Fprintf(out, "cutoff:     %.4f\n", b.Cutoff)
	fmt.Fprintf(out, "postings:   %d (added %d, incremental %t)\n", b.Index.Size(), res.Added, res.Incremental)
	fmt.Fprintf(out, "ambiguous:  %d\n", len(b.Ambiguity))
	fmt.Fprintf(out, "skipped:    %d\n", len(b.Report.Skipped))
	for _, s := range b.Report.Skipped {
		fmt.Fprintf(out, "  row %d: %s\n", s.RowID, s.Reason)
	}
	fmt.Fprintf(out, "fallbacks:  %d\n", len(b.Report.Fallbacks))
	for _, f := range b.Report.Fallbacks {
		fmt.Fprintf(out, "  row %d: %q\n", f.RowID, f.Text)
	}
	if len(res.Suggestions) > 0 {
		fmt.Fprintln(out, "stopword candidates:")
		for _, c := range res.Suggestions {
			fmt.Fprintf(out, "  %-20s df=%.0f%%\n", c.Token, c.Score*100)
		}
	}
	return nil
}
