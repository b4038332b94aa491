package config

// Config is the on-disk daemon configuration (JSON or YAML).
//
// Durations are Go duration strings ("500ms", "10s", "1m") except the
// per-project delay/timeout, which are seconds.
type Config struct {
	Logging LoggingConfig `json:"logging"`
	Relay   RelayConfig   `json:"relay"`
	Dedup   DedupConfig   `json:"dedup"`
	Ingest  IngestConfig  `json:"ingest"`
	Metrics MetricsConfig `json:"metrics"`

	// Projects maps a monitoring project id to its chat settings.
	// Projects missing here (or without token/room) are not configured.
	Projects map[string]ProjectConfig `json:"projects"`
}

type LoggingConfig struct {
	Level   string      `json:"level"`
	Console bool        `json:"console"`
	File    LoggingFile `json:"file"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// RelayConfig controls the async dispatch pipeline.
//
// Defaults (when fields are omitted/zero):
//   - workers: 4
//   - queue_size: 1024
//   - rate_per_sec: 0 (no outbound limit)
//   - default_timeout: "3s"
//   - sender_name: "Sentry"
type RelayConfig struct {
	Workers        int     `json:"workers,omitempty"`
	QueueSize      int     `json:"queue_size,omitempty"`
	RatePerSec     float64 `json:"rate_per_sec,omitempty"`
	DefaultTimeout string  `json:"default_timeout,omitempty"`
	SenderName     string  `json:"sender_name,omitempty"`
}

// DedupConfig selects the dedup marker store.
//
// Example:
//
//	"dedup": { "driver": "sqlite", "path": "/var/lib/hiprelay/dedup.db" }
type DedupConfig struct {
	Driver      string `json:"driver"`                 // memory | sqlite | nats
	Path        string `json:"path,omitempty"`         // sqlite
	BusyTimeout string `json:"busy_timeout,omitempty"` // sqlite
	NATSURL     string `json:"nats_url,omitempty"`     // nats
	Bucket      string `json:"bucket,omitempty"`       // nats
	BucketTTL   string `json:"bucket_ttl,omitempty"`   // nats
	MaxEntries  int    `json:"max_entries,omitempty"`  // memory

	// PruneSchedule is a cron spec or descriptor ("@every 10m").
	// Use "off" to disable pruning.
	PruneSchedule string `json:"prune_schedule,omitempty"`
}

// IngestConfig controls event intake. Empty addresses disable a listener.
type IngestConfig struct {
	HTTPAddr string `json:"http_addr,omitempty"`

	NATSURL       string `json:"nats_url,omitempty"`
	SubjectPrefix string `json:"subject_prefix,omitempty"` // default "hiprelay"
	QueueGroup    string `json:"queue_group,omitempty"`    // default "hiprelay"
}

type MetricsConfig struct {
	Enabled bool `json:"enabled"`

	// Pprof serves /debug/pprof/ on the ingest HTTP listener. A token is
	// required unless ingest.http_addr is a loopback address.
	Pprof      bool   `json:"pprof,omitempty"`
	PprofToken string `json:"pprof_token,omitempty"` // accepts ${ENV}
}

// Token returns the pprof token with ${ENV} references resolved.
func (m MetricsConfig) Token() string { return expandEnv(m.PprofToken) }

// ProjectConfig holds one project's chat settings.
//
// Token and room accept ${ENV} references. Delay is seconds (>= 60 when
// set, default 3600); timeout is whole seconds (default relay.default_timeout).
type ProjectConfig struct {
	Token              string  `json:"token"`
	Room               string  `json:"room"`
	Notify             bool    `json:"notify,omitempty"`
	IncludeProjectName bool    `json:"include_project_name,omitempty"`
	Endpoint           string  `json:"endpoint,omitempty"`
	Delay              float64 `json:"delay,omitempty"`
	Timeout            int     `json:"timeout,omitempty"`
}
