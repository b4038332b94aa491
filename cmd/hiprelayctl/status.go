package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"hiprelay/pkg/sdunit"
)

func statusCmd(opts *globalOpts) *cobra.Command {
	var unit string
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the systemd state of the daemon",
		Long: `Query systemd over D-Bus for the relay daemon unit.

Examples:
  hiprelayctl status
  hiprelayctl status --unit hiprelayd@staging`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Second)
			defer cancel()
			st, err := sdunit.Query(ctx, unit)
			if err != nil {
				return err
			}
			return render(cmd.OutOrStdout(), opts, st, func(w io.Writer) {
				fmt.Fprintln(w, st.String())
			})
		},
	}
	cmd.Flags().StringVarP(&unit, "unit", "u", "hiprelayd", "systemd unit name")
	return cmd
}
