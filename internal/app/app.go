// Package app wires the relay daemon: config, logging, dedup store,
// dispatcher, worker pool and ingest listeners.
package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"hiprelay/internal/config"
	"hiprelay/internal/dedup"
	"hiprelay/internal/eventbus"
	"hiprelay/internal/ingest"
	"hiprelay/internal/metrics"
	"hiprelay/internal/relay"
	rtsup "hiprelay/internal/runtime/supervisor"
	logx "hiprelay/pkg/logx"
)

type App struct {
	cfgm *config.ConfigManager
	sup  *rtsup.Supervisor

	log     logx.Logger
	logs    *logx.Service
	bus     *eventbus.MemBus
	metrics *metrics.Metrics

	relay *Relay
	pool  *relay.Pool

	httpIn *ingest.HTTPServer
	natsIn *ingest.NATSSubscriber

	pruneSpec string
}

// New loads cfgPath and builds every component. Nothing runs until Start.
func New(ctx context.Context, cfgPath string) (*App, error) {
	cfgm := config.NewConfigManager(cfgPath)
	cfg, err := cfgm.Load(ctx)
	if err != nil {
		return nil, err
	}

	logSvc, root := logx.NewService(mapLogConfig(cfg))
	log := root.Named("app")
	cfgm.SetLogger(root.Named("config"))

	bus := eventbus.New()
	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.New()
	}

	r, err := BuildRelay(ctx, cfg, config.NewLive(cfgm), root, bus, m)
	if err != nil {
		_ = logSvc.Close()
		return nil, fmt.Errorf("dedup store: %w", err)
	}
	log.Info("dedup store ready", logx.String("driver", strings.TrimSpace(cfg.Dedup.Driver)))

	pool := relay.NewPool(mapPoolConfig(cfg), r.Dispatcher, root.Named("relay.pool"), bus, m)

	a := &App{
		cfgm:      cfgm,
		log:       log,
		logs:      logSvc,
		bus:       bus,
		metrics:   m,
		relay:     r,
		pool:      pool,
		pruneSpec: pruneSchedule(cfg),
	}

	if addr := strings.TrimSpace(cfg.Ingest.HTTPAddr); addr != "" {
		hc := ingest.HTTPConfig{Addr: addr, Pprof: cfg.Metrics.Pprof, PprofToken: cfg.Metrics.Token()}
		if m != nil {
			hc.Metrics = m.Handler()
		}
		a.httpIn = ingest.NewHTTP(hc, pool, root.Named("ingest.http"))
	}
	if url := strings.TrimSpace(cfg.Ingest.NATSURL); url != "" {
		a.natsIn = ingest.NewNATS(ingest.NATSConfig{
			URL:           url,
			SubjectPrefix: cfg.Ingest.SubjectPrefix,
			QueueGroup:    cfg.Ingest.QueueGroup,
		}, pool, root.Named("ingest.nats"))
	}
	if a.httpIn == nil && a.natsIn == nil {
		log.Warn("no ingest listener configured; events can only be sent with hiprelayctl")
	}
	return a, nil
}

// Done is closed when the app supervisor context is canceled (fatal error or Stop()).
func (a *App) Done() <-chan struct{} {
	if a.sup == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return a.sup.Context().Done()
}

// Err returns the first fatal error observed by the supervisor (if any).
func (a *App) Err() error {
	if a.sup == nil {
		return nil
	}
	return a.sup.Err()
}

// HTTPAddr is the bound ingest address ("" when disabled or not yet listening).
func (a *App) HTTPAddr() string {
	if a.httpIn == nil {
		return ""
	}
	return a.httpIn.Addr()
}

func (a *App) Start(ctx context.Context) error {
	a.sup = rtsup.New(ctx,
		rtsup.WithLogger(a.log),
		rtsup.WithCancelOnError(true),
		rtsup.WithRestartHook(func(name string, err error) {
			a.metrics.ObserveRestart(name)
			eventbus.Publish(a.bus, TopicRestart, RestartEvent{Name: name, Error: err.Error()})
		}),
	)

	// The pool outlives the app context so Stop can drain it.
	a.pool.Start(context.WithoutCancel(a.sup.Context()))

	if a.httpIn != nil {
		a.sup.GoRestart("ingest.http", a.httpIn.Run, rtsup.WithRestartBackoff(500*time.Millisecond, 10*time.Second))
	}
	if a.natsIn != nil {
		a.sup.GoRestart("ingest.nats", a.natsIn.Run, rtsup.WithRestartBackoff(time.Second, 30*time.Second))
	}
	if a.pruneSpec != "" {
		cache := a.relay.Cache
		log := a.log.Named("dedup.prune")
		a.sup.Go("dedup.prune", func(c context.Context) error {
			return dedup.RunPruner(c, cache, a.pruneSpec, log)
		})
	}

	events, unsub := a.bus.Subscribe(128, "relay.")
	a.sup.Go0("eventbus.log", func(c context.Context) {
		defer unsub()
		for {
			select {
			case <-c.Done():
				return
			case e, ok := <-events:
				if !ok {
					return
				}
				fields := []logx.Field{logx.String("type", e.Type)}
				if de, ok := e.Data.(relay.DispatchEvent); ok {
					fields = append(fields, logx.String("dispatch", de.ID), logx.String("project", de.ProjectID))
					if de.GroupID != "" {
						fields = append(fields, logx.String("group", de.GroupID))
					}
				}
				a.log.Debug("event", fields...)
			}
		}
	})

	sub := a.cfgm.Subscribe(8)
	a.sup.Go0("config.reload", func(c context.Context) {
		defer a.cfgm.Unsubscribe(sub)
		lastApplied := a.cfgm.Get()
		for {
			select {
			case <-c.Done():
				return
			case newCfg, ok := <-sub:
				if !ok {
					return
				}
				a.applyConfig(lastApplied, newCfg)
				lastApplied = newCfg
			}
		}
	})

	a.sup.Go("config.watch", a.cfgm.Watch)

	a.log.Info("app started",
		logx.Bool("http", a.httpIn != nil),
		logx.Bool("nats", a.natsIn != nil),
		logx.Bool("metrics", a.metrics != nil),
		logx.String("prune_schedule", a.pruneSpec),
	)
	return nil
}

// applyConfig applies the hot-reloadable parts of newCfg. Projects need no
// action: the dispatcher reads them live.
func (a *App) applyConfig(oldCfg, newCfg *config.Config) {
	sections, attrs, projects := config.SummarizeConfigChange(oldCfg, newCfg)
	if len(sections) == 0 {
		a.log.Info("config reloaded (no changes)")
		return
	}
	if len(projects) > 0 {
		a.log.Debug("project settings changed", logx.Any("projects", projects))
	}

	if err := a.logs.Apply(mapLogConfig(newCfg)); err != nil {
		a.log.Warn("log sinks not fully applied", logx.Err(err))
	}
	a.relay.Client.SetRate(newCfg.Relay.RatePerSec)
	if n := a.relay.Client.Retain(newCfg.AuthTokens()); n > 0 {
		a.log.Debug("dropped rate limiters of removed tokens", logx.Int("count", n))
	}
	a.relay.Dispatcher.SetFrom(newCfg.Relay.SenderName)
	a.pool.Apply(mapPoolConfig(newCfg))

	if pending := config.RestartRequired(oldCfg, newCfg); len(pending) > 0 {
		a.log.Warn("config changes need a restart to take effect", logx.String("sections", strings.Join(pending, ",")))
	}

	fields := append([]logx.Field{logx.String("changed", strings.Join(sections, ","))}, attrs...)
	a.log.Info("config reloaded", fields...)
}

func (a *App) Stop(ctx context.Context, reason StopReason) error {
	if a.sup == nil {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}
	a.log.Info("stopping", logx.String("reason", string(reason)))

	// Cancel first: listeners stop accepting while the pool drains.
	a.sup.Cancel()

	step := func(name string, max time.Duration, fn func(context.Context) error) {
		start := time.Now()
		stepCtx, cancel := boundedStep(ctx, max)
		defer cancel()

		done := make(chan error, 1)
		go func() {
			defer func() {
				if r := recover(); r != nil {
					done <- fmt.Errorf("panic in stop step %s: %v", name, r)
				}
			}()
			done <- fn(stepCtx)
		}()

		select {
		case err := <-done:
			if err != nil {
				a.log.Warn("stop step error", logx.String("name", name), logx.Err(err))
			}
			a.log.Debug("stop step end", logx.String("name", name), logx.Duration("took", time.Since(start)))
		case <-stepCtx.Done():
			a.log.Warn("stop step deadline reached (continuing)", logx.String("name", name), logx.Duration("elapsed", time.Since(start)))
		}
	}

	step("supervisor", 5*time.Second, a.sup.Wait)
	step("relay.pool", 5*time.Second, func(c context.Context) error { a.pool.Stop(c); return nil })
	step("dedup", 2*time.Second, func(context.Context) error { return a.relay.Close() })

	st := a.bus.Stats()
	a.log.Info("stopped", logx.Int("events_published", int(st.Published)), logx.Int("events_dropped", int(st.Dropped)))
	if a.logs != nil {
		_ = a.logs.Close()
	}
	return nil
}

// Reload re-reads the config file now (SIGHUP). It reports whether a new
// snapshot was published; an invalid file leaves the current one active.
// The log file is reopened either way so external rotation works.
func (a *App) Reload(ctx context.Context) (bool, error) {
	if err := a.logs.Reopen(); err != nil {
		a.log.Warn("log file reopen failed", logx.Err(err))
	}
	return a.cfgm.Reload(ctx)
}
