package main

import (
	"fmt"

	"github.com/casualjim/aviary/registry"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

func newCostCmd(_ *rootOptions) *cobra.Command {
	var (
		input  uint64
		output uint64
		cached bool
	)

	cmd := &cobra.Command{
		Use:   "cost <provider> <model>",
		Short: "Estimate the cost of a request against a model",
		Long:  "Estimate the USD cost of a request from its input and output token counts, using the catalog compiled into this binary.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			reg := registry.LoadEmbedded(registry.WithLogger(cliLogger(cmd)))
			if _, ok := reg.ByID(args[0]); !ok {
				return fmt.Errorf("unknown provider %q", args[0])
			}
			m, ok := reg.Model(args[0], args[1])
			if !ok {
				return fmt.Errorf("unknown model %q for provider %q", args[1], args[0])
			}

			out := cmd.OutOrStdout()
			cost := m.CalculateCost(input, output, cached)
			fmt.Fprintf(out, "%s %s\n", color.CyanString(m.Name), color.New(color.Faint).Sprintf("(%s/%s)", args[0], m.ID))
			fmt.Fprintf(out, "  input tokens:  %d\n", input)
			fmt.Fprintf(out, "  output tokens: %d\n", output)
			if cached && !m.HasCachedPricing() {
				fmt.Fprintln(out, color.YellowString("  no cached pricing, using standard prices"))
			}
			if !m.FitsInContext(input) {
				fmt.Fprintln(out, color.YellowString("  input exceeds the context window of %d tokens", m.ContextWindow))
			}
			fmt.Fprintf(out, "  cost:          %s\n", color.GreenString("$%.6f", cost))
			return nil
		},
	}
	cmd.Flags().Uint64Var(&input, "in", 0, "input tokens")
	cmd.Flags().Uint64Var(&output, "out", 0, "output tokens")
	cmd.Flags().BoolVar(&cached, "cached", false, "use cached prices where the model has them")
	return cmd
}
