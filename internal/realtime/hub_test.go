package realtime

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/bytedance/sonic"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestHub(t *testing.T) *Hub {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewHub(rdb, zap.NewNop())
}

func TestChannelNaming(t *testing.T) {
	assert.Equal(t, "notify:user-1", NotifyChannel("user-1"))
	assert.Equal(t, "chat:private:a_b", ChatChannel("private", "a_b"))
}

func TestHub_PublishSubscribe(t *testing.T) {
	hub := newTestHub(t)
	ctx := context.Background()

	sub, err := hub.Subscribe(ctx, NotifyChannel("user-1"))
	require.NoError(t, err)
	defer sub.Close()

	type event struct {
		Title string `json:"title"`
	}
	require.NoError(t, hub.Publish(ctx, NotifyChannel("user-1"), event{Title: "approved"}))

	select {
	case raw := <-sub.Events():
		var got event
		require.NoError(t, sonic.Unmarshal(raw, &got))
		assert.Equal(t, "approved", got.Title)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
	}
}

func TestHub_SubscriptionIsScoped(t *testing.T) {
	hub := newTestHub(t)
	ctx := context.Background()

	sub, err := hub.Subscribe(ctx, NotifyChannel("user-1"))
	require.NoError(t, err)
	defer sub.Close()

	// Traffic for another user must not arrive.
	require.NoError(t, hub.Publish(ctx, NotifyChannel("user-2"), map[string]string{"title": "other"}))

	select {
	case raw := <-sub.Events():
		t.Fatalf("received event for another user: %s", raw)
	case <-time.After(200 * time.Millisecond):
	}
}

func TestSubscription_CloseIsIdempotent(t *testing.T) {
	hub := newTestHub(t)
	ctx := context.Background()

	sub, err := hub.Subscribe(ctx, ChatChannel("career", "a_b"))
	require.NoError(t, err)

	require.NoError(t, sub.Close())
	require.NoError(t, sub.Close())

	// Events channel drains and closes after Close.
	select {
	case _, ok := <-sub.Events():
		assert.False(t, ok)
	case <-time.After(2 * time.Second):
		t.Fatal("events channel did not close")
	}
}
