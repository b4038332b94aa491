package relay

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"hiprelay/internal/event"
	"hiprelay/internal/eventbus"
	"hiprelay/internal/metrics"
	rtsup "hiprelay/internal/runtime/supervisor"
	logx "hiprelay/pkg/logx"
)

var (
	ErrQueueFull = errors.New("relay queue full")
	ErrStopped   = errors.New("relay stopped")
)

const (
	DefaultWorkers   = 4
	DefaultQueueSize = 1024
)

// PoolConfig sizes the async pipeline. Changes apply on the next Start.
type PoolConfig struct {
	Workers   int
	QueueSize int
}

func (c PoolConfig) withDefaults() PoolConfig {
	if c.Workers <= 0 {
		c.Workers = DefaultWorkers
	}
	if c.QueueSize <= 0 {
		c.QueueSize = DefaultQueueSize
	}
	return c
}

type job struct {
	alert    *event.Alert
	group    *event.Group
	enqueued time.Time
}

func (j job) kind() string {
	if j.alert != nil {
		return KindAlert
	}
	return KindGroup
}

// Pool decouples event intake from delivery: a bounded queue drained by a
// fixed worker set. Enqueue never blocks; a full queue is reported to the
// caller and the event is dropped.
//
// It is safe for concurrent use.
type Pool struct {
	mu sync.Mutex

	notifier Notifier
	log      logx.Logger
	bus      eventbus.Bus
	metrics  *metrics.Metrics

	cfg PoolConfig

	accepting bool
	sendWG    sync.WaitGroup

	queue    chan job
	sup      *rtsup.Supervisor
	stopDone chan struct{} // non-nil while stopping
}

func NewPool(cfg PoolConfig, n Notifier, log logx.Logger, bus eventbus.Bus, m *metrics.Metrics) *Pool {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Pool{
		notifier: n,
		log:      log,
		bus:      bus,
		metrics:  m,
		cfg:      cfg.withDefaults(),
	}
}

// Apply records new sizing; a running pool keeps its current queue and workers.
func (p *Pool) Apply(cfg PoolConfig) {
	cfg = cfg.withDefaults()
	p.mu.Lock()
	changed := cfg != p.cfg
	running := p.queue != nil
	p.cfg = cfg
	p.mu.Unlock()
	if changed && running {
		p.log.Info("relay pool sizing changed; applies after restart", logx.Int("workers", cfg.Workers), logx.Int("queue_size", cfg.QueueSize))
	}
}

// Supervisor returns the pool's supervisor (nil if not started).
func (p *Pool) Supervisor() *rtsup.Supervisor {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.sup
}

// Start is idempotent.
func (p *Pool) Start(ctx context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}

	p.mu.Lock()
	if p.stopDone != nil {
		done := p.stopDone
		p.mu.Unlock()
		select {
		case <-done:
		case <-ctx.Done():
			return
		}
		p.mu.Lock()
	}
	if p.queue != nil {
		p.mu.Unlock()
		return
	}

	cfg := p.cfg
	p.queue = make(chan job, cfg.QueueSize)
	p.accepting = true
	p.sup = rtsup.New(ctx,
		rtsup.WithLogger(p.log.Named("relay.pool")),
		rtsup.WithCancelOnError(false),
		rtsup.WithRestartHook(func(name string, _ error) { p.metrics.ObserveRestart(name) }),
	)
	sup := p.sup
	q := p.queue
	p.mu.Unlock()

	for i := 0; i < cfg.Workers; i++ {
		sup.GoRestart(fmt.Sprintf("worker.%d", i), func(c context.Context) error {
			p.workerLoop(c, q)
			p.mu.Lock()
			stopping := p.stopDone != nil
			p.mu.Unlock()
			if stopping || c.Err() != nil {
				return nil
			}
			return errors.New("relay worker exited unexpectedly")
		})
	}
	p.log.Info("relay pool started", logx.Int("workers", cfg.Workers), logx.Int("queue_size", cfg.QueueSize))
}

// Stop stops intake and drains the queue until ctx is done; whatever is
// left after that is abandoned.
func (p *Pool) Stop(ctx context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}

	p.mu.Lock()
	q := p.queue
	sup := p.sup
	if q == nil {
		p.mu.Unlock()
		return
	}
	if p.stopDone != nil {
		done := p.stopDone
		p.mu.Unlock()
		select {
		case <-done:
		case <-ctx.Done():
		}
		return
	}
	done := make(chan struct{})
	p.stopDone = done
	p.accepting = false
	p.mu.Unlock()

	go func() {
		defer close(done)
		// In-flight enqueues finish before the queue closes.
		p.sendWG.Wait()
		close(q)
		_ = sup.Wait(context.Background())

		p.mu.Lock()
		p.queue = nil
		p.stopDone = nil
		p.sup = nil
		p.mu.Unlock()
		p.metrics.SetQueueDepth(0)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		left := len(q)
		sup.Cancel()
		p.log.Warn("relay pool stop timed out; abandoning queued events", logx.Int("queued", left))
	}
}

// SubmitAlert enqueues an alert for asynchronous dispatch.
func (p *Pool) SubmitAlert(ctx context.Context, ev event.Alert) error {
	return p.submit(ctx, job{alert: &ev})
}

// SubmitGroupEvent enqueues a group event for asynchronous dispatch.
func (p *Pool) SubmitGroupEvent(ctx context.Context, ev event.Group) error {
	return p.submit(ctx, job{group: &ev})
}

func (p *Pool) submit(ctx context.Context, j job) error {
	if ctx != nil {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
	}

	p.mu.Lock()
	if !p.accepting || p.queue == nil {
		p.mu.Unlock()
		return ErrStopped
	}
	q := p.queue
	p.sendWG.Add(1)
	p.mu.Unlock()
	defer p.sendWG.Done()

	j.enqueued = time.Now()
	select {
	case q <- j:
		p.metrics.SetQueueDepth(len(q))
		return nil
	default:
		p.metrics.ObserveDropped("queue_full")
		p.log.Warn("relay queue full; event dropped", logx.String("kind", j.kind()), logx.Int("capacity", cap(q)))
		eventbus.Publish(p.bus, TopicDropped, DispatchEvent{Kind: j.kind(), ProjectID: j.projectID(), Error: ErrQueueFull.Error(), At: j.enqueued})
		return ErrQueueFull
	}
}

func (j job) projectID() string {
	if j.alert != nil {
		return j.alert.ProjectID
	}
	if j.group != nil {
		return j.group.ProjectID
	}
	return ""
}

// Len reports the number of queued events.
func (p *Pool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.queue)
}

func (p *Pool) workerLoop(ctx context.Context, q <-chan job) {
	for {
		select {
		case <-ctx.Done():
			return
		case j, ok := <-q:
			if !ok {
				return
			}
			p.metrics.SetQueueDepth(len(q))
			p.run(ctx, j)
		}
	}
}

func (p *Pool) run(ctx context.Context, j job) {
	if wait := time.Since(j.enqueued); wait > time.Second {
		p.log.Debug("relay job waited in queue", logx.String("kind", j.kind()), logx.Duration("wait", wait))
	}
	switch {
	case j.alert != nil:
		p.notifier.OnAlert(ctx, *j.alert)
	case j.group != nil:
		p.notifier.OnGroupEvent(ctx, *j.group)
	}
}
