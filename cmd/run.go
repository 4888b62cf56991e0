package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"firestige.xyz/dissect/internal/capture"
	"firestige.xyz/dissect/internal/config"
	"firestige.xyz/dissect/internal/session"
)

var (
	readFile    string
	outFormat   string
	hexBytes    bool
	frameLimit  int
	filterPorts []uint
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Dissect a capture file",
	Long: `
Replay a pcap or pcapng file through the dissector engine and print the
protocol tree of every frame.

Flags override the matching config file keys.

Examples:
  dissect run -r calls.pcap                   # text trees of every frame
  dissect run -r calls.pcap -F yaml -x        # YAML documents with hex bytes
  dissect run -c dissect.yml -r calls.pcapng  # dissector options from config
  dissect run -r calls.pcap -p 5060 -n 10     # first 10 frames on port 5060
`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := loadConfig()
		if err != nil {
			exitWithError("failed to load config", err)
		}
		if err := applyRunFlags(cmd, cfg); err != nil {
			exitWithError("invalid flags", err)
		}

		s, err := session.New(cfg, nil)
		if err != nil {
			exitWithError("failed to load dissectors", err)
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		if err := runRun(ctx, s, os.Stdout, os.Stderr); err != nil {
			exitWithError("run failed", err)
		}
	},
}

func init() {
	runCmd.Flags().StringVarP(&readFile, "read", "r", "", "capture file to read (pcap or pcapng)")
	runCmd.Flags().StringVarP(&outFormat, "format", "F", "", "output format: text, yaml or kafka")
	runCmd.Flags().BoolVarP(&hexBytes, "bytes", "x", false, "append a hex dump of every frame")
	runCmd.Flags().IntVarP(&frameLimit, "count", "n", 0, "stop after this many frames")
	runCmd.Flags().UintSliceVarP(&filterPorts, "port", "p", nil, "only frames with one of these TCP/UDP ports")
}

// applyRunFlags copies the flags that were set onto cfg.
func applyRunFlags(cmd *cobra.Command, cfg *config.Config) error {
	flags := cmd.Flags()
	if flags.Changed("read") {
		cfg.Capture.File = readFile
	}
	if flags.Changed("format") {
		cfg.Output.Format = outFormat
	}
	if flags.Changed("bytes") {
		cfg.Output.Bytes = hexBytes
	}
	if flags.Changed("count") {
		cfg.Capture.Limit = frameLimit
	}
	if flags.Changed("port") {
		cfg.Capture.Ports = cfg.Capture.Ports[:0]
		for _, p := range filterPorts {
			if p == 0 || p > 65535 {
				return fmt.Errorf("port %d out of range", p)
			}
			cfg.Capture.Ports = append(cfg.Capture.Ports, uint16(p))
		}
	}
	if cfg.Capture.File == "" {
		return fmt.Errorf("no capture file: use -r or capture.file")
	}
	return cfg.ValidateAndApplyDefaults()
}

// runner is the part of a session the run command drives.
type runner interface {
	ID() string
	Run(ctx context.Context, w io.Writer) (*capture.Stats, error)
}

func runRun(ctx context.Context, r runner, out, summary io.Writer) error {
	stats, err := r.Run(ctx, out)
	if err != nil {
		return err
	}
	fmt.Fprintf(summary, "%d frames read, %d filtered, %d dissected (session %s)\n",
		stats.Read, stats.Filtered, stats.Delivered, r.ID())
	return nil
}
