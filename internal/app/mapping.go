package app

import (
	"context"
	"strings"
	"time"

	"hiprelay/internal/config"
	"hiprelay/internal/dedup"
	"hiprelay/internal/eventbus"
	"hiprelay/internal/hipchat"
	"hiprelay/internal/metrics"
	"hiprelay/internal/project"
	"hiprelay/internal/relay"
	logx "hiprelay/pkg/logx"
)

func mapLogConfig(cfg *config.Config) logx.Config {
	return logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	}
}

// DedupConfig maps the dedup section onto the store options.
func DedupConfig(cfg *config.Config) (dedup.Config, error) {
	d := cfg.Dedup
	busy, err := config.ParseDurationField("dedup.busy_timeout", d.BusyTimeout)
	if err != nil {
		return dedup.Config{}, err
	}
	ttl, err := config.ParseDurationField("dedup.bucket_ttl", d.BucketTTL)
	if err != nil {
		return dedup.Config{}, err
	}
	return dedup.Config{
		Driver:      d.Driver,
		MaxEntries:  d.MaxEntries,
		Path:        d.Path,
		BusyTimeout: busy,
		NATSURL:     d.NATSURL,
		Bucket:      d.Bucket,
		BucketTTL:   ttl,
	}, nil
}

// pruneSchedule returns the cron spec, or "" when pruning is off.
func pruneSchedule(cfg *config.Config) string {
	s := strings.TrimSpace(cfg.Dedup.PruneSchedule)
	if strings.EqualFold(s, config.PruneOff) {
		return ""
	}
	if s == "" {
		return dedup.DefaultPruneSchedule
	}
	return s
}

func mapPoolConfig(cfg *config.Config) relay.PoolConfig {
	return relay.PoolConfig{Workers: cfg.Relay.Workers, QueueSize: cfg.Relay.QueueSize}
}

// Relay bundles the synchronous delivery path shared by the daemon and the CLI.
type Relay struct {
	Dispatcher *relay.Dispatcher
	Client     *hipchat.Client
	Cache      dedup.Cache
}

// Close releases the dedup store.
func (r *Relay) Close() error {
	if r == nil || r.Cache == nil {
		return nil
	}
	return r.Cache.Close()
}

// BuildRelay opens the dedup store and wires a dispatcher for cfg.
func BuildRelay(ctx context.Context, cfg *config.Config, resolver project.Resolver, log logx.Logger, bus eventbus.Bus, m *metrics.Metrics) (*Relay, error) {
	if log.IsZero() {
		log = logx.Nop()
	}
	dc, err := DedupConfig(cfg)
	if err != nil {
		return nil, err
	}
	cache, err := dedup.Open(ctx, dc, log.Named("dedup"))
	if err != nil {
		return nil, err
	}
	client := hipchat.New(hipchat.Config{RatePerSec: cfg.Relay.RatePerSec})
	disp := relay.NewDispatcher(relay.Deps{
		Resolver: resolver,
		Cache:    cache,
		Sender:   client,
		Log:      log.Named("relay"),
		Bus:      bus,
		Metrics:  m,
		From:     cfg.Relay.SenderName,
	})
	return &Relay{Dispatcher: disp, Client: client, Cache: cache}, nil
}

// boundedStep runs fn with at most max of the caller's remaining deadline.
func boundedStep(ctx context.Context, max time.Duration) (context.Context, context.CancelFunc) {
	if dl, ok := ctx.Deadline(); ok {
		if rem := time.Until(dl); rem < max {
			max = rem
		}
	}
	if max <= 0 {
		max = time.Millisecond
	}
	return context.WithTimeout(ctx, max)
}
