package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"hiprelay/internal/config"
	logx "hiprelay/pkg/logx"
)

func loadConfig(ctx context.Context, opts *globalOpts) (*config.Config, error) {
	m := config.NewConfigManager(opts.configPath)
	cfg, err := m.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", opts.configPath, err)
	}
	return cfg, nil
}

func cliLogger(opts *globalOpts) logx.Logger {
	if !opts.verbose {
		return logx.Nop()
	}
	return logx.NewJSON(os.Stderr, "debug")
}

// render writes v as JSON, or text via fn.
func render(w io.Writer, opts *globalOpts, v any, text func(io.Writer)) error {
	switch strings.ToLower(strings.TrimSpace(opts.output)) {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case "", "text":
		text(w)
		return nil
	default:
		return fmt.Errorf("unknown output format %q", opts.output)
	}
}
