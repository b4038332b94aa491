package app

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hiprelay/internal/config"
	"hiprelay/internal/dedup"
)

type chatServer struct {
	*httptest.Server
	mu   sync.Mutex
	msgs []url.Values
}

func newChatServer(t *testing.T) *chatServer {
	t.Helper()
	cs := &chatServer{}
	cs.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		v, _ := url.ParseQuery(string(raw))
		cs.mu.Lock()
		cs.msgs = append(cs.msgs, v)
		cs.mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"status":"sent"}`)
	}))
	t.Cleanup(cs.Close)
	return cs
}

func (cs *chatServer) messages() []url.Values {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	return append([]url.Values(nil), cs.msgs...)
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "hiprelay.yaml")
	require.NoError(t, os.WriteFile(p, []byte(body), 0o600))
	return p
}

func TestAppRelaysAndDeduplicates(t *testing.T) {
	chat := newChatServer(t)
	path := writeConfig(t, fmt.Sprintf(`
logging:
  level: error
relay:
  workers: 1
  sender_name: Monitor
dedup:
  driver: memory
  prune_schedule: "off"
ingest:
  http_addr: 127.0.0.1:0
metrics:
  enabled: true
projects:
  p1:
    token: tok
    room: ops
    include_project_name: true
    endpoint: %s
`, chat.URL))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	a, err := New(ctx, path)
	require.NoError(t, err)
	require.NoError(t, a.Start(ctx))
	defer func() {
		sctx, scancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer scancel()
		assert.NoError(t, a.Stop(sctx, StopSignal))
	}()

	require.Eventually(t, func() bool { return a.HTTPAddr() != "" }, 3*time.Second, 10*time.Millisecond)
	base := "http://" + a.HTTPAddr()

	body := `{"group_id":"42","project_name":"Billing","level":"error","summary":"NullPointer","url":"http://x/g/42"}`
	for i := 0; i < 2; i++ {
		resp, err := http.Post(base+"/v1/projects/p1/events", "application/json", strings.NewReader(body))
		require.NoError(t, err)
		_ = resp.Body.Close()
		require.Equal(t, http.StatusAccepted, resp.StatusCode)
	}
	// Unconfigured project: accepted by ingest, skipped by the dispatcher.
	resp, err := http.Post(base+"/v1/projects/nope/alerts", "application/json", strings.NewReader(`{"message":"x"}`))
	require.NoError(t, err)
	_ = resp.Body.Close()

	require.Eventually(t, func() bool {
		return strings.Contains(scrape(t, base), `hiprelay_dispatch_total{kind="group",outcome="suppressed"} 1`)
	}, 5*time.Second, 20*time.Millisecond)

	msgs := chat.messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "Monitor", msgs[0].Get("from"))
	assert.Equal(t, "ops", msgs[0].Get("room_id"))
	assert.Equal(t, `[ERROR] <strong>Billing</strong> NullPointer [<a href="http://x/g/42">view</a>]`, msgs[0].Get("message"))
	assert.Equal(t, "red", msgs[0].Get("color"))
}

func scrape(t *testing.T, base string) string {
	t.Helper()
	resp, err := http.Get(base + "/metrics")
	if err != nil {
		return ""
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)
	return string(b)
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	path := writeConfig(t, "projects:\n  p1:\n    token: tok\n")
	_, err := New(context.Background(), path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "token and room must be set together")
}

func TestPruneSchedule(t *testing.T) {
	assert.Equal(t, dedup.DefaultPruneSchedule, pruneSchedule(&config.Config{}))
	assert.Equal(t, "", pruneSchedule(&config.Config{Dedup: config.DedupConfig{PruneSchedule: "OFF"}}))
	assert.Equal(t, "@hourly", pruneSchedule(&config.Config{Dedup: config.DedupConfig{PruneSchedule: " @hourly "}}))
}

func TestMapDedupConfig(t *testing.T) {
	dc, err := DedupConfig(&config.Config{Dedup: config.DedupConfig{
		Driver: "nats", NATSURL: "nats://x:4222", Bucket: "b", BucketTTL: "2h", BusyTimeout: "1s",
	}})
	require.NoError(t, err)
	assert.Equal(t, "nats", dc.Driver)
	assert.Equal(t, 2*time.Hour, dc.BucketTTL)
	assert.Equal(t, time.Second, dc.BusyTimeout)

	_, err = DedupConfig(&config.Config{Dedup: config.DedupConfig{BucketTTL: "forever"}})
	assert.Error(t, err)
}
