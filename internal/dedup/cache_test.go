package dedup

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	logx "hiprelay/pkg/logx"
)

type clock struct{ t time.Time }

func (c *clock) now() time.Time          { return c.t }
func (c *clock) advance(d time.Duration) { c.t = c.t.Add(d) }

func TestKey(t *testing.T) {
	assert.Equal(t, "delay_42", Key("42"))
}

func TestMemoryExpiresAfterTTL(t *testing.T) {
	ctx := context.Background()
	clk := &clock{t: time.Unix(1_700_000_000, 0)}
	m := NewMemory(0)
	m.now = clk.now

	found, err := m.Get(ctx, "delay_42")
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, m.SetWithTTL(ctx, "delay_42", 60*time.Second))
	clk.advance(10 * time.Second)
	found, _ = m.Get(ctx, "delay_42")
	assert.True(t, found)

	clk.advance(60 * time.Second)
	found, _ = m.Get(ctx, "delay_42")
	assert.False(t, found)
}

func TestMemorySetOverwrites(t *testing.T) {
	ctx := context.Background()
	clk := &clock{t: time.Unix(1_700_000_000, 0)}
	m := NewMemory(0)
	m.now = clk.now

	require.NoError(t, m.SetWithTTL(ctx, "k", time.Minute))
	clk.advance(50 * time.Second)
	require.NoError(t, m.SetWithTTL(ctx, "k", time.Minute))
	clk.advance(50 * time.Second)
	found, _ := m.Get(ctx, "k")
	assert.True(t, found)
}

func TestMemoryCapAndPrune(t *testing.T) {
	ctx := context.Background()
	clk := &clock{t: time.Unix(1_700_000_000, 0)}
	m := NewMemory(3)
	m.now = clk.now

	for i, k := range []string{"a", "b", "c", "d"} {
		require.NoError(t, m.SetWithTTL(ctx, k, time.Duration(i+1)*time.Minute))
	}
	assert.Equal(t, 3, m.Len())
	found, _ := m.Get(ctx, "a")
	assert.False(t, found, "earliest expiry is evicted first")

	clk.advance(150 * time.Second)
	n, err := m.Prune(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, 2, m.Len())
}

func TestMemoryClosed(t *testing.T) {
	m := NewMemory(0)
	require.NoError(t, m.Close())
	_, err := m.Get(context.Background(), "k")
	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, m.SetWithTTL(context.Background(), "k", time.Minute), ErrClosed)
}

func TestSQLiteSharedBetweenHandles(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "dedup", "relay.db")

	a, err := OpenSQLite(ctx, path, 0, logx.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })
	b, err := OpenSQLite(ctx, path, 0, logx.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = b.Close() })

	clk := &clock{t: time.Now()}
	a.now, b.now = clk.now, clk.now

	require.NoError(t, a.SetWithTTL(ctx, Key("7"), time.Minute))
	found, err := b.Get(ctx, Key("7"))
	require.NoError(t, err)
	assert.True(t, found)

	clk.advance(2 * time.Minute)
	found, err = b.Get(ctx, Key("7"))
	require.NoError(t, err)
	assert.False(t, found)

	n, err := a.Prune(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestOpenDrivers(t *testing.T) {
	ctx := context.Background()

	c, err := Open(ctx, Config{}, logx.Logger{})
	require.NoError(t, err)
	assert.IsType(t, &Memory{}, c)

	c, err = Open(ctx, Config{Driver: "sqlite", Path: filepath.Join(t.TempDir(), "d.db")}, logx.Nop())
	require.NoError(t, err)
	assert.IsType(t, &SQLite{}, c)
	require.NoError(t, c.Close())

	_, err = Open(ctx, Config{Driver: "redis"}, logx.Nop())
	assert.Error(t, err)
	assert.False(t, ValidDriver("redis"))
	assert.True(t, ValidDriver("NATS"))

	_, err = Open(ctx, Config{Driver: "sqlite"}, logx.Nop())
	assert.Error(t, err)
}

func TestNATSKeyAlphabet(t *testing.T) {
	assert.Equal(t, "delay_42", natsKey("delay_42"))
	assert.Equal(t, "delay_a=2Eb=3Dc=20d", natsKey("delay_a.b=c d"))
	assert.Equal(t, "delay_=C3=A9", natsKey("delay_é"))
}

func TestParseSchedule(t *testing.T) {
	_, err := ParseSchedule("")
	assert.NoError(t, err)
	_, err = ParseSchedule("*/5 * * * *")
	assert.NoError(t, err)
	_, err = ParseSchedule("sometimes")
	assert.Error(t, err)
}

func TestRunPrunerStopsOnCancel(t *testing.T) {
	m := NewMemory(0)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- RunPruner(ctx, m, "@every 1s", logx.Nop()) }()
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("pruner did not stop")
	}
}

// TestNATSRoundTrip needs a JetStream-enabled server:
//
//	HIPRELAY_TEST_NATS_URL=nats://127.0.0.1:4222 go test ./internal/dedup
func TestNATSRoundTrip(t *testing.T) {
	url := os.Getenv("HIPRELAY_TEST_NATS_URL")
	if url == "" {
		t.Skip("HIPRELAY_TEST_NATS_URL not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	c, err := OpenNATS(ctx, url, "hiprelay_test_"+time.Now().Format("150405"), time.Hour, logx.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })

	key := Key(time.Now().Format("150405.000"))
	found, err := c.Get(ctx, key)
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, c.SetWithTTL(ctx, key, time.Minute))
	found, err = c.Get(ctx, key)
	require.NoError(t, err)
	assert.True(t, found)
}
