package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cognicore/attrmatch/pkg/attrmatch/config"
)

var importCmd = &cobra.Command{
	Use:   "import <fixture.yaml>",
	Short: "Seed the database from a YAML fixture",
	Long: `Upsert attributes, dictionary rows, products, reviews and descriptions
from a YAML fixture into the configured database.`,
	Args: cobra.ExactArgs(1),
	RunE: runImport,
}

func init() {
	rootCmd.AddCommand(importCmd)
}

func runImport(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	f, err := config.LoadFixture(args[0])
	if err != nil {
		return err
	}

	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := f.Apply(ctx, a.store); err != nil {
		return fmt.Errorf("import %s: %w", args[0], err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "imported %d attributes, %d dictionary rows, %d products, %d reviews, %d descriptions\n",
		len(f.Attributes), len(f.Dictionary), len(f.Products), len(f.Reviews), len(f.Descriptions))
	return nil
}
