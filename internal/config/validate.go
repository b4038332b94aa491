package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"sort"
	"strings"

	"hiprelay/internal/dedup"
	"hiprelay/internal/project"
	logx "hiprelay/pkg/logx"
)

// PruneOff disables the dedup pruner.
const PruneOff = "off"

// Validate checks cross-field rules that strict decoding cannot express.
// It reports every problem found, joined.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errors.New("config is nil")
	}
	var errs []error
	add := func(err error) {
		if err != nil {
			errs = append(errs, err)
		}
	}
	addf := func(format string, args ...any) { errs = append(errs, fmt.Errorf(format, args...)) }

	if lvl := strings.TrimSpace(cfg.Logging.Level); lvl != "" && !logx.ValidLevel(lvl) {
		addf("logging.level: unknown level %q", lvl)
	}
	if cfg.Logging.File.Enabled && strings.TrimSpace(cfg.Logging.File.Path) == "" {
		addf("logging.file.path: required when file logging is enabled")
	}

	r := cfg.Relay
	if r.Workers < 0 {
		addf("relay.workers: must be >= 0")
	}
	if r.QueueSize < 0 {
		addf("relay.queue_size: must be >= 0")
	}
	if r.RatePerSec < 0 {
		addf("relay.rate_per_sec: must be >= 0")
	}
	_, err := ParseDurationField("relay.default_timeout", r.DefaultTimeout)
	add(err)

	d := cfg.Dedup
	driver := strings.ToLower(strings.TrimSpace(d.Driver))
	if !dedup.ValidDriver(driver) {
		addf("dedup.driver: unknown driver %q", d.Driver)
	}
	switch driver {
	case "sqlite", "sqlite3":
		if strings.TrimSpace(d.Path) == "" {
			addf("dedup.path: required for the sqlite driver")
		}
	case "nats":
		if strings.TrimSpace(d.NATSURL) == "" {
			addf("dedup.nats_url: required for the nats driver")
		}
	}
	if d.MaxEntries < 0 {
		addf("dedup.max_entries: must be >= 0")
	}
	_, err = ParseDurationField("dedup.busy_timeout", d.BusyTimeout)
	add(err)
	_, err = ParseDurationField("dedup.bucket_ttl", d.BucketTTL)
	add(err)
	if s := strings.TrimSpace(d.PruneSchedule); !strings.EqualFold(s, PruneOff) {
		_, err = dedup.ParseSchedule(s)
		add(err)
	}

	in := cfg.Ingest
	if p := strings.TrimSpace(in.SubjectPrefix); strings.ContainsAny(p, "*> \t") {
		addf("ingest.subject_prefix: wildcards and spaces are not allowed")
	}
	if u := strings.TrimSpace(in.NATSURL); u != "" {
		if _, err := url.Parse(u); err != nil {
			addf("ingest.nats_url: %v", err)
		}
	}

	if cfg.Metrics.Pprof {
		addr := strings.TrimSpace(in.HTTPAddr)
		switch {
		case addr == "":
			addf("metrics.pprof: requires ingest.http_addr")
		case cfg.Metrics.Token() == "" && !isLoopbackAddr(addr):
			addf("metrics.pprof_token: required when ingest.http_addr is not a loopback address")
		}
	}

	ids := make([]string, 0, len(cfg.Projects))
	for id := range cfg.Projects {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		add(validateProject(id, cfg.Projects[id]))
	}

	return errors.Join(errs...)
}

func validateProject(id string, p ProjectConfig) error {
	path := "projects." + id
	if strings.TrimSpace(id) == "" {
		return errors.New("projects: empty project id")
	}
	var errs []error

	hasToken := strings.TrimSpace(p.Token) != ""
	hasRoom := strings.TrimSpace(p.Room) != ""
	if hasToken != hasRoom {
		errs = append(errs, fmt.Errorf("%s: token and room must be set together", path))
	}

	if p.Delay != 0 {
		d, err := secondsDuration(path+".delay", p.Delay)
		switch {
		case err != nil:
			errs = append(errs, err)
		case d < project.MinDelay:
			errs = append(errs, fmt.Errorf("%s.delay: must be at least %d seconds", path, int(project.MinDelay.Seconds())))
		}
	}
	if p.Timeout < 0 {
		errs = append(errs, fmt.Errorf("%s.timeout: must be >= 0", path))
	}
	if ep := strings.TrimSpace(p.Endpoint); ep != "" {
		if err := checkEndpoint(ep); err != nil {
			errs = append(errs, fmt.Errorf("%s.endpoint: %w", path, err))
		}
	}
	return errors.Join(errs...)
}

func checkEndpoint(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("scheme must be http or https, got %q", u.Scheme)
	}
	if u.Host == "" {
		return errors.New("missing host")
	}
	return nil
}

// isLoopbackAddr reports whether host:port binds only to loopback.
// An empty host means all interfaces.
func isLoopbackAddr(addr string) bool {
	h, _, err := net.SplitHostPort(addr)
	if err != nil {
		return false
	}
	h = strings.TrimSpace(h)
	if h == "" {
		return false
	}
	if strings.EqualFold(h, "localhost") {
		return true
	}
	ip := net.ParseIP(h)
	return ip != nil && ip.IsLoopback()
}
