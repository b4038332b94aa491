package eventbus

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublishFansOut(t *testing.T) {
	b := New()
	a, unsubA := b.Subscribe(1)
	c, unsubC := b.Subscribe(1)
	defer unsubA()
	defer unsubC()

	Publish(b, "relay.sent", 1)
	ea := <-a
	ec := <-c
	assert.Equal(t, "relay.sent", ea.Type)
	assert.Equal(t, 1, ec.Data)
	assert.False(t, ea.Time.IsZero())
	assert.Equal(t, Stats{Subscribers: 2, Published: 1}, b.Stats())
}

func TestSubscribePrefixFilter(t *testing.T) {
	b := New()
	relayCh, unsubRelay := b.Subscribe(4, "relay.")
	defer unsubRelay()
	otherCh, unsubOther := b.Subscribe(4, "config.", "ingest.")
	defer unsubOther()

	Publish(b, "relay.sent", nil)
	Publish(b, "config.reloaded", nil)
	Publish(b, "dedup.pruned", nil)

	require.Len(t, relayCh, 1)
	assert.Equal(t, "relay.sent", (<-relayCh).Type)
	require.Len(t, otherCh, 1)
	assert.Equal(t, "config.reloaded", (<-otherCh).Type)

	// Filtered-out events are not drops.
	assert.Equal(t, uint64(0), b.Stats().Dropped)
}

func TestSlowSubscriberDrops(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe(1)
	b.Publish(Event{Type: "a"})
	b.Publish(Event{Type: "b"})
	assert.Equal(t, uint64(1), b.Stats().Dropped)
	unsub()
	unsub()

	var got []string
	for e := range ch {
		got = append(got, e.Type)
	}
	require.Equal(t, []string{"a"}, got)

	// Publishing after unsubscribe is harmless.
	b.Publish(Event{Type: "c"})
	Publish(nil, "ignored", nil)
	st := b.Stats()
	assert.Equal(t, 0, st.Subscribers)
	assert.Equal(t, uint64(3), st.Published)
}
