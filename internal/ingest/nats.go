package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go"

	"hiprelay/internal/event"
	logx "hiprelay/pkg/logx"
)

const (
	DefaultSubjectPrefix = "hiprelay"
	DefaultQueueGroup    = "hiprelay"
)

// NATSConfig configures the NATS subscriber. Payloads are the JSON event
// shapes and must carry project_id.
type NATSConfig struct {
	URL           string
	SubjectPrefix string
	QueueGroup    string
}

func (c NATSConfig) subjects() (alert, group string) {
	p := strings.TrimSpace(c.SubjectPrefix)
	if p == "" {
		p = DefaultSubjectPrefix
	}
	return p + ".alert", p + ".event"
}

// NATSSubscriber consumes events published on <prefix>.alert and
// <prefix>.event. Instances sharing a queue group split the stream.
type NATSSubscriber struct {
	cfg NATSConfig
	sub Submitter
	log logx.Logger
}

func NewNATS(cfg NATSConfig, sub Submitter, log logx.Logger) *NATSSubscriber {
	if log.IsZero() {
		log = logx.Nop()
	}
	if strings.TrimSpace(cfg.QueueGroup) == "" {
		cfg.QueueGroup = DefaultQueueGroup
	}
	return &NATSSubscriber{cfg: cfg, sub: sub, log: log}
}

// Run connects, consumes until ctx is canceled, then drains.
func (s *NATSSubscriber) Run(ctx context.Context) error {
	url := strings.TrimSpace(s.cfg.URL)
	if url == "" {
		return errors.New("ingest: nats url is empty")
	}
	nc, err := nats.Connect(url,
		nats.Name("hiprelay-ingest"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.RetryOnFailedConnect(true),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				s.log.Warn("nats disconnected", logx.Err(err))
				return
			}
			s.log.Warn("nats disconnected")
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			s.log.Info("nats reconnected")
		}),
	)
	if err != nil {
		return fmt.Errorf("ingest: connect nats: %w", err)
	}
	defer nc.Close()
	return s.Serve(ctx, nc)
}

// Serve consumes on an existing connection until ctx is canceled.
// The caller keeps ownership of nc.
func (s *NATSSubscriber) Serve(ctx context.Context, nc *nats.Conn) error {
	alertSubj, groupSubj := s.cfg.subjects()
	subs := make([]*nats.Subscription, 0, 2)
	defer func() {
		for _, sub := range subs {
			_ = sub.Drain()
		}
	}()
	for _, subj := range []string{alertSubj, groupSubj} {
		sub, err := nc.QueueSubscribe(subj, s.cfg.QueueGroup, func(msg *nats.Msg) {
			s.handle(ctx, msg)
		})
		if err != nil {
			return fmt.Errorf("ingest: subscribe %s: %w", subj, err)
		}
		subs = append(subs, sub)
	}
	if err := nc.Flush(); err != nil {
		return fmt.Errorf("ingest: flush subscriptions: %w", err)
	}
	s.log.Info("ingest nats subscribed", logx.String("alert_subject", alertSubj), logx.String("event_subject", groupSubj), logx.String("queue", s.cfg.QueueGroup))

	<-ctx.Done()
	s.log.Info("ingest nats stopping")
	return nil
}

func (s *NATSSubscriber) handle(ctx context.Context, msg *nats.Msg) {
	alertSubj, groupSubj := s.cfg.subjects()
	var err error
	switch msg.Subject {
	case alertSubj:
		var v any
		if v, err = decodeBytes(msg.Data, "", false); err == nil {
			err = s.sub.SubmitAlert(ctx, v.(event.Alert))
		}
	case groupSubj:
		var v any
		if v, err = decodeBytes(msg.Data, "", true); err == nil {
			err = s.sub.SubmitGroupEvent(ctx, v.(event.Group))
		}
	default:
		err = fmt.Errorf("%w: unexpected subject %q", ErrBadEvent, msg.Subject)
	}

	if err != nil {
		if errors.Is(err, ErrBadEvent) {
			s.log.Warn("ingest dropped malformed message", logx.String("subject", msg.Subject), logx.Err(err))
		} else {
			s.log.Warn("ingest submit failed", logx.String("subject", msg.Subject), logx.Err(err))
		}
	}
	s.reply(msg, err)
}

// reply acknowledges request-style publishes; fire-and-forget messages have no reply subject.
func (s *NATSSubscriber) reply(msg *nats.Msg, err error) {
	if msg.Reply == "" {
		return
	}
	ack := map[string]string{"status": "accepted"}
	if err != nil {
		ack = map[string]string{"status": "rejected", "error": err.Error()}
	}
	b, _ := json.Marshal(ack)
	if rerr := msg.Respond(b); rerr != nil {
		s.log.Debug("ingest reply failed", logx.String("subject", msg.Subject), logx.Err(rerr))
	}
}
