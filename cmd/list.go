package cmd

import (
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"firestige.xyz/dissect/internal/engine"
	"firestige.xyz/dissect/internal/plugin"
	"firestige.xyz/dissect/internal/session"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List dissectors and their dispatch registrations",
	Long: `
List the built-in dissectors, then load the enabled ones and print every
dispatch registration the engine holds: postdissectors, table entries,
decode-as candidates and heuristics.

Examples:
  dissect list
  dissect list -c dissect.yml   # registrations with config options applied
`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := loadConfig()
		if err != nil {
			exitWithError("failed to load config", err)
		}
		s, err := session.New(cfg, nil)
		if err != nil {
			exitWithError("failed to load dissectors", err)
		}
		if err := runList(plugin.ListDissectors(), s.Engine().Registrations(), os.Stdout); err != nil {
			exitWithError("failed to list dissectors", err)
		}
	},
}

func runList(dissectors []plugin.Metadata, regs []engine.RegistrationInfo, w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "DISSECTOR\tDEPENDS ON\tDESCRIPTION")
	for _, d := range dissectors {
		deps := "-"
		if len(d.Dependencies) > 0 {
			deps = strings.Join(d.Dependencies, ",")
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\n", d.Name, deps, d.Description)
	}
	fmt.Fprintln(tw)
	fmt.Fprintln(tw, "PROTOCOL\tKIND\tTABLE\tDETAIL")
	for _, r := range regs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", r.Protocol, r.Kind, dash(r.Table), dash(r.Detail))
	}
	return tw.Flush()
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
