package main

import (
	"github.com/spf13/cobra"
)

var (
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "attrmatch",
	Short: "Dictionary-driven product attribute extraction",
	Long: `attrmatch builds a weighted attribute-value dictionary from the database,
publishes it as a versioned artifact bundle, and extracts attribute values from
product names, reviews and descriptions.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
