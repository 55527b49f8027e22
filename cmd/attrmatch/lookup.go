package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/cognicore/attrmatch/pkg/attrmatch/attr"
)

var lookupExplain bool

var lookupCmd = &cobra.Command{
	Use:   "lookup <sentence>",
	Short: "Look up attribute candidates for a sentence",
	Long: `Normalize a sentence and match it against the latest dictionary bundle.
Prints the candidates in the wire format lookup services answer with.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runLookup,
}

func init() {
	lookupCmd.Flags().BoolVar(&lookupExplain, "explain", false, "print matched entities with scores")
	rootCmd.AddCommand(lookupCmd)
}

func runLookup(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	sentence := strings.Join(args, " ")
	out := cmd.OutOrStdout()

	if lookupExplain {
		matches, err := a.engine.Explain(ctx, sentence)
		if err != nil {
			return err
		}
		for _, m := range matches {
			fmt.Fprintf(out, "%-12s %-30q score=%.3f/%.3f exact=%d fuzzy=%d\n",
				m.Entity.AttributeCode, m.Entity.NormalizedText, m.Score, m.Entity.MaxScore, m.Exact, m.Fuzzy)
		}
		return nil
	}

	cands, err := a.engine.Lookup(ctx, sentence)
	if err != nil {
		return err
	}
	resp := attr.WireResponse{Attributes: make([]attr.WireCandidate, 0, len(cands))}
	for _, c := range cands {
		resp.Attributes = append(resp.Attributes, c.Wire())
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(resp)
}
