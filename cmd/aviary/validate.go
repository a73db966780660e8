package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/casualjim/aviary/catalog/definitions"
	"github.com/casualjim/aviary/registry"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

func newValidateCmd(_ *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "validate [definition.json...]",
		Short: "Validate provider definitions",
		Long:  "Load provider definitions and report every diagnostic. Without arguments the catalog compiled into this binary is checked. Exits non-zero when a definition would be dropped.",
		RunE: func(cmd *cobra.Command, args []string) error {
			defs := definitions.All()
			if len(args) > 0 {
				var err error
				if defs, err = readDefinitions(args); err != nil {
					return err
				}
			}

			reg := registry.Load(defs, registry.WithLogger(discardLogger()))
			out := cmd.OutOrStdout()
			for _, d := range reg.Diagnostics() {
				label := color.YellowString("warning")
				if d.Dropped() {
					label = color.RedString("error")
				}
				fmt.Fprintf(out, "%s %s: %s\n", label, d.Definition, d.Reason)
			}
			fmt.Fprintf(out, "%d providers, %d models, %d dropped\n", reg.Count(), reg.ModelCount(), reg.Dropped())

			if n := reg.Dropped(); n > 0 {
				return fmt.Errorf("%d of %d definitions are invalid", n, len(defs))
			}
			return nil
		},
	}
}

func readDefinitions(paths []string) ([]definitions.Definition, error) {
	defs := make([]definitions.Definition, 0, len(paths))
	for _, p := range paths {
		raw, err := os.ReadFile(p)
		if err != nil {
			return nil, err
		}
		name := strings.TrimSuffix(filepath.Base(p), filepath.Ext(p))
		defs = append(defs, definitions.Definition{Name: name, Raw: raw})
	}
	return defs, nil
}
