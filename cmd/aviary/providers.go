package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/casualjim/aviary/catalog"
	"github.com/casualjim/aviary/client"
	"github.com/casualjim/aviary/registry"
	"github.com/charmbracelet/glamour"
	"github.com/fatih/color"
	json "github.com/goccy/go-json"
	"github.com/k0kubun/pp/v3"
	"github.com/spf13/cobra"
)

type sourceOptions struct {
	serverURL string
	local     bool
}

func (so *sourceOptions) bind(cmd *cobra.Command) {
	cmd.Flags().StringVar(&so.serverURL, "server", client.DefaultBaseURL, "base URL of the aviary server")
	cmd.Flags().BoolVar(&so.local, "local", false, "read the catalog compiled into this binary instead of a server")
}

func (so *sourceOptions) providers(cmd *cobra.Command) ([]catalog.Provider, error) {
	if so.local {
		return registry.LoadEmbedded(registry.WithLogger(cliLogger(cmd))).All(), nil
	}
	return client.New(client.WithBaseURL(so.serverURL)).Providers(cmd.Context())
}

func (so *sourceOptions) provider(cmd *cobra.Command, id string) (catalog.Provider, error) {
	if so.local {
		p, ok := registry.LoadEmbedded(registry.WithLogger(cliLogger(cmd))).ByID(id)
		if !ok {
			return catalog.Provider{}, fmt.Errorf("provider %q: %w", id, client.ErrNotFound)
		}
		return p, nil
	}
	p, err := client.New(client.WithBaseURL(so.serverURL)).Provider(cmd.Context(), id)
	if err != nil {
		return catalog.Provider{}, fmt.Errorf("provider %q: %w", id, err)
	}
	return p, nil
}

func newProvidersCmd(_ *rootOptions) *cobra.Command {
	var (
		so       sourceOptions
		markdown bool
		asJSON   bool
	)

	cmd := &cobra.Command{
		Use:   "providers",
		Short: "List the providers in the catalog",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			providers, err := so.providers(cmd)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			switch {
			case asJSON:
				b, err := json.MarshalIndent(providers, "", "  ")
				if err != nil {
					return err
				}
				_, err = fmt.Fprintln(out, string(b))
				return err
			case markdown:
				return renderMarkdown(out, providers)
			default:
				return renderTable(out, providers)
			}
		},
	}
	so.bind(cmd)
	cmd.Flags().BoolVar(&markdown, "markdown", false, "render the catalog as markdown")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the raw JSON catalog")
	cmd.MarkFlagsMutuallyExclusive("markdown", "json")
	return cmd
}

func newProviderCmd(_ *rootOptions) *cobra.Command {
	var so sourceOptions

	cmd := &cobra.Command{
		Use:   "provider <id>",
		Short: "Show every detail of one provider",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := so.provider(cmd, args[0])
			if err != nil {
				return err
			}

			printer := pp.New()
			printer.SetOutput(cmd.OutOrStdout())
			printer.SetColoringEnabled(!color.NoColor)
			_, err = printer.Println(p)
			return err
		},
	}
	so.bind(cmd)
	return cmd
}

func renderTable(w io.Writer, providers []catalog.Provider) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tTYPE\tMODELS\tDEFAULT LARGE\tDEFAULT SMALL")
	for _, p := range providers {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\t%s\n",
			color.CyanString(p.ID),
			p.Name,
			p.Type,
			len(p.Models),
			modelName(p.DefaultLargeModel()),
			modelName(p.DefaultSmallModel()),
		)
	}
	return tw.Flush()
}

func modelName(m catalog.Model, ok bool) string {
	if !ok {
		return "-"
	}
	return m.ID
}

func renderMarkdown(w io.Writer, providers []catalog.Provider) error {
	renderer, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(120),
	)
	if err != nil {
		return err
	}
	out, err := renderer.Render(catalogMarkdown(providers))
	if err != nil {
		return err
	}
	_, err = io.WriteString(w, out)
	return err
}

// catalogMarkdown renders one section per provider with a table of its models.
func catalogMarkdown(providers []catalog.Provider) string {
	var b strings.Builder
	b.WriteString("# Provider catalog\n\n")
	for _, p := range providers {
		fmt.Fprintf(&b, "## %s (`%s`)\n\n", p.Name, p.ID)
		fmt.Fprintf(&b, "Type: `%s`", p.Type)
		if p.APIEndpoint != nil {
			fmt.Fprintf(&b, " · Endpoint: `%s`", *p.APIEndpoint)
		}
		b.WriteString("\n\n")

		if len(p.Models) == 0 {
			b.WriteString("_No models._\n\n")
			continue
		}
		b.WriteString("| Model | Context | Max tokens | $/1M in | $/1M out | Reasoning | Attachments |\n")
		b.WriteString("|---|---:|---:|---:|---:|:---:|:---:|\n")
		for _, m := range p.Models {
			fmt.Fprintf(&b, "| %s | %d | %d | %s | %s | %s | %s |\n",
				m.Name,
				m.ContextWindow,
				m.DefaultMaxTokens,
				price(m.CostPer1MIn),
				price(m.CostPer1MOut),
				check(m.CanReason),
				check(m.SupportsAttachments),
			)
		}
		b.WriteString("\n")
	}
	return b.String()
}

func price(v float64) string {
	return fmt.Sprintf("%.2f", v)
}

func check(v bool) string {
	if v {
		return "✓"
	}
	return ""
}
