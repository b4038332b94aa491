package main

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"hiprelay/internal/project"
)

type validateResult struct {
	Path         string   `json:"path"`
	Valid        bool     `json:"valid"`
	DedupDriver  string   `json:"dedup_driver"`
	Configured   []string `json:"configured_projects"`
	Unconfigured []string `json:"unconfigured_projects,omitempty"`
}

func validateCmd(opts *globalOpts) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Check a config file without starting the daemon",
		Long: `Decode the config strictly and run every validation rule the daemon
applies at startup and before a hot reload.

Examples:
  hiprelayctl validate -c /etc/hiprelay/hiprelay.yaml
  hiprelayctl validate -c hiprelay.json -o json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd.Context(), opts)
			if err != nil {
				return err
			}
			res := validateResult{Path: opts.configPath, Valid: true, DedupDriver: strings.TrimSpace(cfg.Dedup.Driver)}
			if res.DedupDriver == "" {
				res.DedupDriver = "memory"
			}
			for id := range cfg.Projects {
				if _, err := cfg.Resolve(id); err == nil {
					res.Configured = append(res.Configured, id)
				} else if errors.Is(err, project.ErrNotConfigured) {
					res.Unconfigured = append(res.Unconfigured, id)
				}
			}
			sort.Strings(res.Configured)
			sort.Strings(res.Unconfigured)

			return render(cmd.OutOrStdout(), opts, res, func(w io.Writer) {
				fmt.Fprintf(w, "%s: ok\n", res.Path)
				fmt.Fprintf(w, "dedup driver: %s\n", res.DedupDriver)
				fmt.Fprintf(w, "configured projects: %d %v\n", len(res.Configured), res.Configured)
				if len(res.Unconfigured) > 0 {
					fmt.Fprintf(w, "unconfigured projects (skipped): %v\n", res.Unconfigured)
				}
			})
		},
	}
}
