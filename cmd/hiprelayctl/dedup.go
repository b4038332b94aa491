package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"hiprelay/internal/app"
	"hiprelay/internal/dedup"
	"hiprelay/internal/event"
)

type dedupResult struct {
	Key        string `json:"key"`
	Suppressed bool   `json:"suppressed"`
}

func dedupCmd(opts *globalOpts) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dedup",
		Short: "Inspect the dedup marker store",
	}
	cmd.AddCommand(dedupCheckCmd(opts))
	cmd.AddCommand(dedupPruneCmd(opts))
	return cmd
}

func openCache(cmd *cobra.Command, opts *globalOpts) (dedup.Cache, error) {
	cfg, err := loadConfig(cmd.Context(), opts)
	if err != nil {
		return nil, err
	}
	dc, err := app.DedupConfig(cfg)
	if err != nil {
		return nil, err
	}
	return dedup.Open(cmd.Context(), dc, cliLogger(opts))
}

func dedupCheckCmd(opts *globalOpts) *cobra.Command {
	var group string
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Report whether notifications for a group are currently suppressed",
		Long: `Look up the marker for an error group in the configured store.
The memory driver lives inside the daemon, so this is only useful with
the sqlite and nats drivers.

Examples:
  hiprelayctl dedup check --group 7`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := openCache(cmd, opts)
			if err != nil {
				return err
			}
			defer c.Close()

			key := dedup.Key(event.ID(group).String())
			found, err := c.Get(cmd.Context(), key)
			if err != nil {
				return err
			}
			res := dedupResult{Key: key, Suppressed: found}
			return render(cmd.OutOrStdout(), opts, res, func(w io.Writer) {
				state := "clear"
				if found {
					state = "suppressed"
				}
				fmt.Fprintf(w, "%s: %s\n", key, state)
			})
		},
	}
	cmd.Flags().StringVarP(&group, "group", "g", "", "Error group id (required)")
	_ = cmd.MarkFlagRequired("group")
	return cmd
}

func dedupPruneCmd(opts *globalOpts) *cobra.Command {
	return &cobra.Command{
		Use:   "prune",
		Short: "Remove expired markers now",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := openCache(cmd, opts)
			if err != nil {
				return err
			}
			defer c.Close()

			p, ok := c.(dedup.Pruner)
			if !ok {
				fmt.Fprintln(cmd.OutOrStdout(), "driver expires markers on its own; nothing to prune")
				return nil
			}
			n, err := p.Prune(cmd.Context())
			if err != nil {
				return err
			}
			return render(cmd.OutOrStdout(), opts, map[string]int{"removed": n}, func(w io.Writer) {
				fmt.Fprintf(w, "removed %d expired markers\n", n)
			})
		},
	}
}
