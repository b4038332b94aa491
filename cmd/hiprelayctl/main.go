// hiprelayctl checks configuration and drives the relay by hand.
//
// Usage:
//
//	hiprelayctl validate -c hiprelay.yaml
//	hiprelayctl send alert -c hiprelay.yaml --project 42 --message "disk full"
//	hiprelayctl send event -c hiprelay.yaml --project 42 --group 7 --level error --summary "NullPointer"
//	hiprelayctl dedup check -c hiprelay.yaml --group 7
//	hiprelayctl status
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "dev"

type globalOpts struct {
	configPath string
	output     string
	verbose    bool
}

func newRootCmd() *cobra.Command {
	opts := &globalOpts{}
	root := &cobra.Command{
		Use:   "hiprelayctl",
		Short: "Inspect and exercise a hiprelay configuration",
		Long: `hiprelayctl validates hiprelay config files and pushes single events
through the same dispatcher the daemon uses, synchronously.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "./hiprelay.yaml", "Path to config file (yaml or json)")
	root.PersistentFlags().StringVarP(&opts.output, "output", "o", "text", "Output format: text, json")
	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "Log dispatcher activity to stderr")

	root.AddCommand(validateCmd(opts))
	root.AddCommand(sendCmd(opts))
	root.AddCommand(dedupCmd(opts))
	root.AddCommand(statusCmd(opts))
	return root
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
