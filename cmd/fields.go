package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"firestige.xyz/dissect/internal/engine"
	"firestige.xyz/dissect/internal/session"
)

var fieldsFormat string

var fieldsCmd = &cobra.Command{
	Use:   "fields",
	Short: "Print the registered protocols and fields",
	Long: `
Load the enabled dissectors and print every protocol and field the engine
registered, one per line:

  P  <name>  <filter>
  F  <name>  <abbrev>  <kind>  <protocol>  <display>  <bitmask>  <blurb>

Examples:
  dissect fields              # tab separated
  dissect fields -o yaml      # YAML document
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
		if err := runFields(s.Engine(), fieldsFormat, os.Stdout); err != nil {
			exitWithError("failed to print fields", err)
		}
	},
}

func init() {
	fieldsCmd.Flags().StringVarP(&fieldsFormat, "output", "o", "text", "output format: text or yaml")
}

// catalog is the registration state of an initialized engine.
type catalog interface {
	Protocols() []engine.ProtocolInfo
	Fields() []engine.FieldInfo
}

func runFields(c catalog, format string, w io.Writer) error {
	switch format {
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		doc := struct {
			Protocols []engine.ProtocolInfo `yaml:"protocols"`
			Fields    []engine.FieldInfo    `yaml:"fields"`
		}{c.Protocols(), c.Fields()}
		if err := enc.Encode(doc); err != nil {
			return err
		}
		return enc.Close()
	case "text":
		for _, p := range c.Protocols() {
			fmt.Fprintf(w, "P\t%s\t%s\n", p.Name, p.Filter)
		}
		for _, f := range c.Fields() {
			fmt.Fprintf(w, "F\t%s\t%s\t%s\t%s\t%s\t0x%x\t%s\n",
				f.Name, f.Abbrev, f.Kind, f.Protocol, f.Display, f.Bitmask, f.Blurb)
		}
		return nil
	default:
		return fmt.Errorf("unknown output format %q", format)
	}
}
