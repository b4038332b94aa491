package config

import (
	"sort"
	"strings"

	logx "hiprelay/pkg/logx"
)

// SummarizeConfigChange returns (1) a compact list of changed sections,
// (2) safe structured attrs for logging (never includes tokens), and
// (3) the ids of projects that were added, removed or modified.
func SummarizeConfigChange(oldCfg, newCfg *Config) ([]string, []logx.Field, []string) {
	if oldCfg == nil {
		oldCfg = &Config{}
	}
	if newCfg == nil {
		newCfg = &Config{}
	}

	changed := make([]string, 0, 6)
	attrs := make([]logx.Field, 0, 16)

	if oldCfg.Logging != newCfg.Logging {
		changed = append(changed, "logging")
		attrs = append(attrs,
			logx.String("logging.level", newCfg.Logging.Level),
			logx.Bool("logging.console", newCfg.Logging.Console),
			logx.Bool("logging.file_enabled", newCfg.Logging.File.Enabled),
		)
	}

	if oldCfg.Relay != newCfg.Relay {
		changed = append(changed, "relay")
		attrs = append(attrs,
			logx.Int("relay.workers", newCfg.Relay.Workers),
			logx.Int("relay.queue_size", newCfg.Relay.QueueSize),
			logx.Float64("relay.rate_per_sec", newCfg.Relay.RatePerSec),
			logx.String("relay.default_timeout", strings.TrimSpace(newCfg.Relay.DefaultTimeout)),
			logx.String("relay.sender_name", strings.TrimSpace(newCfg.Relay.SenderName)),
		)
	}

	if oldCfg.Dedup != newCfg.Dedup {
		changed = append(changed, "dedup")
		attrs = append(attrs,
			logx.String("dedup.driver", strings.TrimSpace(newCfg.Dedup.Driver)),
			logx.String("dedup.prune_schedule", strings.TrimSpace(newCfg.Dedup.PruneSchedule)),
		)
	}

	if oldCfg.Ingest != newCfg.Ingest {
		changed = append(changed, "ingest")
		attrs = append(attrs,
			logx.String("ingest.http_addr", strings.TrimSpace(newCfg.Ingest.HTTPAddr)),
			logx.Bool("ingest.nats_enabled", strings.TrimSpace(newCfg.Ingest.NATSURL) != ""),
		)
	}

	if oldCfg.Metrics != newCfg.Metrics {
		changed = append(changed, "metrics")
		attrs = append(attrs,
			logx.Bool("metrics.enabled", newCfg.Metrics.Enabled),
			logx.Bool("metrics.pprof", newCfg.Metrics.Pprof),
		)
	}

	projects := diffProjects(oldCfg.Projects, newCfg.Projects)
	if len(projects) > 0 {
		changed = append(changed, "projects")
		attrs = append(attrs,
			logx.Int("projects.changed_count", len(projects)),
			logx.Int("projects.configured_count", countConfigured(newCfg.Projects)),
		)
	}

	sort.Strings(changed)
	return changed, attrs, projects
}

// RestartRequired lists changed sections that only take effect after a
// daemon restart (listeners, stores, pool sizing).
func RestartRequired(oldCfg, newCfg *Config) []string {
	if oldCfg == nil || newCfg == nil {
		return nil
	}
	var out []string
	if oldCfg.Dedup != newCfg.Dedup {
		out = append(out, "dedup")
	}
	if oldCfg.Ingest != newCfg.Ingest {
		out = append(out, "ingest")
	}
	if oldCfg.Metrics != newCfg.Metrics {
		out = append(out, "metrics")
	}
	if oldCfg.Relay.Workers != newCfg.Relay.Workers || oldCfg.Relay.QueueSize != newCfg.Relay.QueueSize {
		out = append(out, "relay.workers")
	}
	return out
}

func countConfigured(m map[string]ProjectConfig) int {
	n := 0
	for _, p := range m {
		if p.Project(0).Configured() {
			n++
		}
	}
	return n
}

func diffProjects(oldM, newM map[string]ProjectConfig) []string {
	set := map[string]struct{}{}
	for k := range oldM {
		set[k] = struct{}{}
	}
	for k := range newM {
		set[k] = struct{}{}
	}

	out := make([]string, 0, len(set))
	for id := range set {
		o, oOK := oldM[id]
		n, nOK := newM[id]
		if oOK != nOK || o != n {
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out
}
