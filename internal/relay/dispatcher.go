package relay

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"hiprelay/internal/dedup"
	"hiprelay/internal/event"
	"hiprelay/internal/eventbus"
	"hiprelay/internal/hipchat"
	"hiprelay/internal/message"
	"hiprelay/internal/metrics"
	"hiprelay/internal/project"
	logx "hiprelay/pkg/logx"
)

// ErrNoGroupID marks a group event that cannot be deduplicated.
var ErrNoGroupID = errors.New("group event has no group id")

// markerTimeout bounds the dedup write that follows a send.
const markerTimeout = 2 * time.Second

// Deps wires a Dispatcher. Resolver, Cache and Sender are required.
type Deps struct {
	Resolver project.Resolver
	Cache    dedup.Cache
	Sender   hipchat.Sender
	Log      logx.Logger
	Bus      eventbus.Bus
	Metrics  *metrics.Metrics
	// From is the sender name shown in the room (default "Sentry").
	From string
}

// Dispatcher implements Notifier. It holds no per-event state and is safe
// for concurrent use; the dedup cache is the only shared mutable resource.
type Dispatcher struct {
	resolver project.Resolver
	cache    dedup.Cache
	sender   hipchat.Sender
	log      logx.Logger
	bus      eventbus.Bus
	metrics  *metrics.Metrics

	mu   sync.RWMutex
	from string
}

var _ Notifier = (*Dispatcher)(nil)

func NewDispatcher(d Deps) *Dispatcher {
	if d.Log.IsZero() {
		d.Log = logx.Nop()
	}
	disp := &Dispatcher{
		resolver: d.Resolver,
		cache:    d.Cache,
		sender:   d.Sender,
		log:      d.Log,
		bus:      d.Bus,
		metrics:  d.Metrics,
	}
	disp.SetFrom(d.From)
	return disp
}

// SetFrom changes the sender name used for subsequent messages.
func (d *Dispatcher) SetFrom(from string) {
	from = strings.TrimSpace(from)
	if from == "" {
		from = hipchat.DefaultFrom
	}
	d.mu.Lock()
	d.from = from
	d.mu.Unlock()
}

func (d *Dispatcher) senderName() string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.from
}

// OnAlert sends every alert of a configured project. Alerts are never deduplicated.
func (d *Dispatcher) OnAlert(ctx context.Context, ev event.Alert) Result {
	if ctx == nil {
		ctx = context.Background()
	}
	res := Result{ID: uuid.NewString(), Kind: KindAlert}
	de := DispatchEvent{ID: res.ID, Kind: KindAlert, ProjectID: ev.ProjectID}
	log := d.log.With(logx.String("dispatch", res.ID), logx.String("kind", KindAlert), logx.String("project", ev.ProjectID))

	cfg, ok := d.resolve(ev.ProjectID, log)
	if !ok {
		return d.finish(res, de, OutcomeSkipped, nil)
	}

	text, color := message.FormatAlert(cfg, ev)
	err := d.send(ctx, KindAlert, cfg, text, color, log)
	if err != nil {
		return d.finish(res, de, OutcomeFailed, err)
	}
	return d.finish(res, de, OutcomeSent, nil)
}

// OnGroupEvent sends a grouped error event unless a dedup marker for its
// group is live. The marker is written after the attempt whatever its result.
func (d *Dispatcher) OnGroupEvent(ctx context.Context, ev event.Group) Result {
	if ctx == nil {
		ctx = context.Background()
	}
	groupID := strings.TrimSpace(ev.GroupID.String())
	res := Result{ID: uuid.NewString(), Kind: KindGroup}
	de := DispatchEvent{ID: res.ID, Kind: KindGroup, ProjectID: ev.ProjectID, GroupID: groupID}
	log := d.log.With(
		logx.String("dispatch", res.ID),
		logx.String("kind", KindGroup),
		logx.String("project", ev.ProjectID),
		logx.String("group", groupID),
	)

	cfg, ok := d.resolve(ev.ProjectID, log)
	if !ok {
		return d.finish(res, de, OutcomeSkipped, nil)
	}
	if groupID == "" {
		log.Warn("group event dropped", logx.Err(ErrNoGroupID))
		return d.finish(res, de, OutcomeSkipped, ErrNoGroupID)
	}

	key := dedup.Key(groupID)
	found, err := d.cache.Get(ctx, key)
	if err != nil {
		// Fail open: a broken cache must not silence notifications.
		log.Warn("dedup lookup failed; sending anyway", logx.String("key", key), logx.Err(err))
	} else if found {
		log.Debug("notification suppressed", logx.String("key", key))
		return d.finish(res, de, OutcomeSuppressed, nil)
	}

	text, color := message.FormatGroupEvent(cfg, ev)
	sendErr := d.send(ctx, KindGroup, cfg, text, color, log)

	mctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), markerTimeout)
	if err := d.cache.SetWithTTL(mctx, key, cfg.Delay); err != nil {
		log.Warn("dedup marker not stored", logx.String("key", key), logx.Err(err))
	}
	cancel()

	if sendErr != nil {
		return d.finish(res, de, OutcomeFailed, sendErr)
	}
	return d.finish(res, de, OutcomeSent, nil)
}

func (d *Dispatcher) resolve(projectID string, log logx.Logger) (project.Config, bool) {
	cfg, err := d.resolver.Resolve(projectID)
	switch {
	case err == nil:
		return cfg, true
	case errors.Is(err, project.ErrNotConfigured):
		log.Debug("project not configured; skipping")
	default:
		log.Warn("project settings unavailable; skipping", logx.Err(err))
	}
	return project.Config{}, false
}

func (d *Dispatcher) send(ctx context.Context, kind string, cfg project.Config, text string, color message.Color, log logx.Logger) error {
	msg := hipchat.Message{
		Endpoint:  cfg.Endpoint,
		AuthToken: cfg.Token,
		RoomID:    cfg.Room,
		From:      d.senderName(),
		Body:      text,
		Notify:    cfg.Notify,
		Color:     color,
	}
	start := time.Now()
	err := d.sender.Send(ctx, msg, cfg.Timeout)
	took := time.Since(start)
	d.metrics.ObserveSend(kind, took)
	if err == nil {
		log.Debug("notification sent", logx.String("room", cfg.Room), logx.String("color", string(color)), logx.Duration("took", took))
		return nil
	}

	ek := hipchat.Kind(err)
	d.metrics.ObserveDeliveryError(string(ek))
	fields := []logx.Field{logx.String("error_kind", string(ek)), logx.String("room", cfg.Room), logx.Duration("took", took), logx.Err(err)}
	switch ek {
	case hipchat.KindUnexpectedResponse:
		log.Error("unexpected response", fields...)
	case hipchat.KindNotConfirmed:
		log.Error("event was not sent to hipchat", fields...)
	default:
		log.Error("notification delivery failed", fields...)
	}
	return err
}

func (d *Dispatcher) finish(res Result, de DispatchEvent, o Outcome, err error) Result {
	res.Outcome = o
	res.Err = err
	de.Outcome = o
	de.At = time.Now()
	if err != nil {
		de.Error = err.Error()
		if o == OutcomeFailed {
			de.ErrorKind = string(hipchat.Kind(err))
		}
	}
	d.metrics.ObserveDispatch(res.Kind, string(o))
	eventbus.Publish(d.bus, topicFor(o), de)
	return res
}
