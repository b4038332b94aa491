package dedup

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	logx "hiprelay/pkg/logx"
)

const (
	defaultBucket    = "hiprelay_dedup"
	defaultBucketTTL = 24 * time.Hour
)

// NATS is a Cache backed by a JetStream KeyValue bucket. Each value holds the
// unix-millisecond expiry of its marker; the bucket TTL bounds how long any
// marker is stored, so delays longer than the bucket TTL are cut short.
type NATS struct {
	kv     jetstream.KeyValue
	nc     *nats.Conn
	ownsNC bool
	log    logx.Logger

	now func() time.Time
}

// OpenNATS connects to url and opens (or creates) the bucket.
func OpenNATS(ctx context.Context, url, bucket string, ttl time.Duration, log logx.Logger) (*NATS, error) {
	if strings.TrimSpace(url) == "" {
		url = nats.DefaultURL
	}
	nc, err := nats.Connect(url, nats.Name("hiprelay-dedup"))
	if err != nil {
		return nil, fmt.Errorf("dedup: connect nats: %w", err)
	}
	c, err := NewNATS(ctx, nc, bucket, ttl, log)
	if err != nil {
		nc.Close()
		return nil, err
	}
	c.ownsNC = true
	return c, nil
}

// NewNATS opens (or creates) the bucket on an existing connection.
// The caller keeps ownership of nc.
func NewNATS(ctx context.Context, nc *nats.Conn, bucket string, ttl time.Duration, log logx.Logger) (*NATS, error) {
	if log.IsZero() {
		log = logx.Nop()
	}
	if strings.TrimSpace(bucket) == "" {
		bucket = defaultBucket
	}
	if ttl <= 0 {
		ttl = defaultBucketTTL
	}
	js, err := jetstream.New(nc)
	if err != nil {
		return nil, fmt.Errorf("dedup: jetstream: %w", err)
	}
	kv, err := js.KeyValue(ctx, bucket)
	if errors.Is(err, jetstream.ErrBucketNotFound) {
		kv, err = js.CreateKeyValue(ctx, jetstream.KeyValueConfig{
			Bucket:      bucket,
			Description: "hiprelay notification dedup markers",
			History:     1,
			TTL:         ttl,
			Storage:     jetstream.FileStorage,
		})
		if err == nil {
			log.Info("dedup bucket created", logx.String("bucket", bucket), logx.Duration("ttl", ttl))
		}
	}
	if err != nil {
		return nil, fmt.Errorf("dedup: open bucket %q: %w", bucket, err)
	}
	return &NATS{kv: kv, nc: nc, log: log, now: time.Now}, nil
}

func (c *NATS) Get(ctx context.Context, key string) (bool, error) {
	entry, err := c.kv.Get(ctx, natsKey(key))
	if errors.Is(err, jetstream.ErrKeyNotFound) || errors.Is(err, jetstream.ErrKeyDeleted) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	until, err := strconv.ParseInt(string(entry.Value()), 10, 64)
	if err != nil {
		// Foreign or corrupted value; treat as absent.
		return false, nil
	}
	return c.now().UnixMilli() < until, nil
}

func (c *NATS) SetWithTTL(ctx context.Context, key string, ttl time.Duration) error {
	if key == "" || ttl <= 0 {
		return nil
	}
	until := c.now().Add(ttl).UnixMilli()
	_, err := c.kv.Put(ctx, natsKey(key), []byte(strconv.FormatInt(until, 10)))
	return err
}

func (c *NATS) Close() error {
	if c.ownsNC && c.nc != nil {
		c.nc.Close()
	}
	return nil
}

// natsKey maps arbitrary keys onto the KV key alphabet [-/_=a-zA-Z0-9].
// Other bytes, '.', and '=' itself are written as =XX.
func natsKey(key string) string {
	var b strings.Builder
	b.Grow(len(key))
	for i := 0; i < len(key); i++ {
		ch := key[i]
		switch {
		case ch >= 'a' && ch <= 'z', ch >= 'A' && ch <= 'Z', ch >= '0' && ch <= '9',
			ch == '-', ch == '_', ch == '/':
			b.WriteByte(ch)
		default:
			fmt.Fprintf(&b, "=%02X", ch)
		}
	}
	return b.String()
}
