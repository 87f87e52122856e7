// Package realtime fans out change notices to open client streams. Events carry no
// payload beyond what changed; clients refetch the resource.
package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const subscriberBuffer = 16

type Event struct {
	Type           string    `json:"type"`
	ConversationID uint      `json:"conversation_id"`
	ResourceID     string    `json:"resource_id,omitempty"`
	ActorID        uint      `json:"actor_id,omitempty"`
	At             time.Time `json:"at"`
}

// Event types.
const (
	EventMessageCreated   = "message.created"
	EventMessagesRead     = "messages.read"
	EventMeetingUpdated   = "meeting.updated"
	EventAgreementUpdated = "agreement.updated"
	EventNotification     = "notification.created"
)

// Bus publishes events on a topic and delivers them to subscribers of that topic.
type Bus interface {
	Publish(ctx context.Context, topic string, ev Event) error
	// Subscribe returns a channel of events and a cancel func that releases the subscription.
	Subscribe(ctx context.Context, topic string) (<-chan Event, func(), error)
}

func ConversationTopic(conversationID uint) string {
	return fmt.Sprintf("conversation:%d", conversationID)
}

func UserTopic(userID uint) string {
	return fmt.Sprintf("user:%d", userID)
}

// RedisBus uses Redis pub/sub so that every API instance sees every event.
type RedisBus struct {
	client *redis.Client
	logger *slog.Logger
}

func NewRedisBus(client *redis.Client, logger *slog.Logger) *RedisBus {
	return &RedisBus{client: client, logger: logger}
}

func (b *RedisBus) Publish(ctx context.Context, topic string, ev Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return b.client.Publish(ctx, topic, payload).Err()
}

func (b *RedisBus) Subscribe(ctx context.Context, topic string) (<-chan Event, func(), error) {
	sub := b.client.Subscribe(ctx, topic)
	// Wait for the subscription confirmation so no event published after return is lost.
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, nil, err
	}

	out := make(chan Event, subscriberBuffer)
	done := make(chan struct{})
	go func() {
		defer close(out)
		msgs := sub.Channel()
		for {
			select {
			case <-done:
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				var ev Event
				if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
					b.logger.Warn("dropping malformed realtime event", "topic", topic, "error", err)
					continue
				}
				select {
				case out <- ev:
				case <-done:
					return
				}
			}
		}
	}()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			close(done)
			_ = sub.Close()
		})
	}
	return out, cancel, nil
}

// MemoryBus delivers events within a single process.
type MemoryBus struct {
	mu     sync.RWMutex
	subs   map[string]map[*memorySub]struct{}
	logger *slog.Logger
}

type memorySub struct {
	ch     chan Event
	closed bool
}

func NewMemoryBus(logger *slog.Logger) *MemoryBus {
	return &MemoryBus{subs: make(map[string]map[*memorySub]struct{}), logger: logger}
}

// Publish never blocks; a subscriber whose buffer is full misses the event.
func (b *MemoryBus) Publish(_ context.Context, topic string, ev Event) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for s := range b.subs[topic] {
		select {
		case s.ch <- ev:
		default:
			b.logger.Warn("realtime subscriber is slow, dropping event", "topic", topic)
		}
	}
	return nil
}

func (b *MemoryBus) Subscribe(_ context.Context, topic string) (<-chan Event, func(), error) {
	s := &memorySub{ch: make(chan Event, subscriberBuffer)}

	b.mu.Lock()
	if b.subs[topic] == nil {
		b.subs[topic] = make(map[*memorySub]struct{})
	}
	b.subs[topic][s] = struct{}{}
	b.mu.Unlock()

	cancel := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if s.closed {
			return
		}
		s.closed = true
		delete(b.subs[topic], s)
		if len(b.subs[topic]) == 0 {
			delete(b.subs, topic)
		}
		close(s.ch)
	}
	return s.ch, cancel, nil
}

// Subscribers reports how many open subscriptions a topic has.
func (b *MemoryBus) Subscribers(topic string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[topic])
}
