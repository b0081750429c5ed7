package realtime

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type received struct {
	event   string
	payload []byte
}

func newRedisPubSub(t *testing.T) (*RedisPubSub, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewRedisPubSub(rdb, zap.NewNop()), mr
}

func waitFor(t *testing.T, ch <-chan received) received {
	t.Helper()
	select {
	case r := <-ch:
		return r
	case <-time.After(2 * time.Second):
		t.Fatal("no event received")
		return received{}
	}
}

func TestRedisPubSub_RoundTrip(t *testing.T) {
	ps, mr := newRedisPubSub(t)
	got := make(chan received, 4)

	cancel, err := ps.SubscribeOrganization(org(1), func(event string, payload []byte) {
		got <- received{event: event, payload: payload}
	})
	require.NoError(t, err)
	defer cancel()
	assert.Equal(t, []string{Channel(org(1))}, mr.PubSubChannels(""))

	require.NoError(t, ps.PublishOrganizationEvent(context.Background(), org(2), "vote_cast", []byte(`{"yes_votes":9}`)))
	require.NoError(t, ps.PublishOrganizationEvent(context.Background(), org(1), "vote_cast", []byte(`{"yes_votes":1}`)))

	r := waitFor(t, got)
	assert.Equal(t, "vote_cast", r.event)
	assert.JSONEq(t, `{"yes_votes":1}`, string(r.payload))
	assert.Empty(t, got, "events of other organizations are not delivered")
}

func TestRedisPubSub_DropsMalformed(t *testing.T) {
	ps, mr := newRedisPubSub(t)
	got := make(chan received, 4)

	cancel, err := ps.SubscribeOrganization(org(1), func(event string, payload []byte) {
		got <- received{event: event, payload: payload}
	})
	require.NoError(t, err)
	defer cancel()

	mr.Publish(Channel(org(1)), "not json")
	require.NoError(t, ps.PublishOrganizationEvent(context.Background(), org(1), "proposal_closed", []byte(`{}`)))

	assert.Equal(t, "proposal_closed", waitFor(t, got).event)
}

func TestRedisPubSub_Cancel(t *testing.T) {
	ps, mr := newRedisPubSub(t)

	cancel, err := ps.SubscribeOrganization(org(1), func(string, []byte) {})
	require.NoError(t, err)
	cancel()

	assert.Eventually(t, func() bool {
		return len(mr.PubSubChannels("")) == 0
	}, 2*time.Second, 10*time.Millisecond)
}

func TestHub_RedisDeliversOnce(t *testing.T) {
	ps, _ := newRedisPubSub(t)
	h := NewHub(zap.NewNop(), ps, ps)
	a := newClient(h, "a", org(1))
	h.Register(a)
	defer h.Unregister(a)

	require.NoError(t, h.Publish(context.Background(), org(1), "proposal_created", map[string]int{"sequence_id": 0}))

	select {
	case msg := <-a.send:
		assert.Equal(t, "proposal_created", msg.Event)
		var body map[string]int
		require.NoError(t, json.Unmarshal(msg.Data, &body))
		assert.Equal(t, 0, body["sequence_id"])
	case <-time.After(2 * time.Second):
		t.Fatal("no event delivered")
	}
	time.Sleep(50 * time.Millisecond)
	assert.Empty(t, a.send)
}
