package realtime

import (
	"context"
	"fmt"
	"sync"

	"github.com/bytedance/sonic"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Channel naming. One channel per notification recipient and one per
// chat conversation, so a subscriber only ever receives its own traffic.
func NotifyChannel(userID string) string { return "notify:" + userID }

func ChatChannel(space, conversationID string) string {
	return fmt.Sprintf("chat:%s:%s", space, conversationID)
}

// Hub fans events out over Redis pub/sub. Every Subscribe call returns a
// Subscription whose lifetime is owned by the caller; Close releases the
// underlying pub/sub connection.
type Hub struct {
	rdb *redis.Client
	log *zap.Logger
}

func NewHub(rdb *redis.Client, log *zap.Logger) *Hub {
	return &Hub{rdb: rdb, log: log}
}

// Publish marshals v and sends it to channel. A publish with no subscribers
// is not an error.
func (h *Hub) Publish(ctx context.Context, channel string, v interface{}) error {
	payload, err := sonic.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if err := h.rdb.Publish(ctx, channel, payload).Err(); err != nil {
		return fmt.Errorf("publish to %s: %w", channel, err)
	}
	return nil
}

// Subscribe opens a dedicated pub/sub connection for channel. The caller
// must Close the returned Subscription when done.
func (h *Hub) Subscribe(ctx context.Context, channel string) (*Subscription, error) {
	ps := h.rdb.Subscribe(ctx, channel)
	// Wait for the subscription to be confirmed before handing it out.
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, fmt.Errorf("subscribe to %s: %w", channel, err)
	}
	sub := &Subscription{
		channel: channel,
		ps:      ps,
		out:     make(chan []byte, 16),
		log:     h.log,
	}
	go sub.pump()
	return sub, nil
}

// Subscription is a scoped listener on a single channel.
type Subscription struct {
	channel string
	ps      *redis.PubSub
	out     chan []byte

	closeOnce sync.Once
	log       *zap.Logger
}

// Events yields raw message payloads. The channel is closed when the
// subscription closes.
func (s *Subscription) Events() <-chan []byte { return s.out }

// Close tears down the pub/sub connection. Idempotent.
func (s *Subscription) Close() error {
	var err error
	s.closeOnce.Do(func() {
		err = s.ps.Close()
	})
	return err
}

func (s *Subscription) pump() {
	defer close(s.out)
	for msg := range s.ps.Channel() {
		select {
		case s.out <- []byte(msg.Payload):
		default:
			// Slow consumer, drop rather than block the pump.
			s.log.Warn("dropping realtime event for slow consumer",
				zap.String("channel", s.channel))
		}
	}
}
