package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"firestige.xyz/dissect/internal/config"
	"firestige.xyz/dissect/internal/session"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a configuration file",
	Long: `Validate a configuration file without reading any capture.

The file is parsed, the enabled dissectors are loaded with their options
and the decode-as and heuristic selections are applied. Any error that
would stop "dissect run" is reported.

Examples:
  dissect validate -c dissect.yml`,
	Run: func(cmd *cobra.Command, args []string) {
		if err := runValidate(os.Stdout); err != nil {
			fmt.Fprintf(os.Stderr, "INVALID: %v\n", err)
			os.Exit(1)
		}
	},
}

func runValidate(w io.Writer) error {
	cfg, err := config.Load(configFile)
	if err != nil {
		return err
	}
	s, err := session.New(cfg, nil)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "VALID: %d dissector(s), %d decode-as rule(s), %d heuristic override(s)\n",
		len(s.Plugins()), len(cfg.Engine.DecodeAs), len(cfg.Engine.Heuristics))
	return nil
}
