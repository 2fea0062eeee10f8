package memstore

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/raphaelgruber/convo/internal/chat"
)

// subscriberBufferSize is the channel buffer for each subscriber.
const subscriberBufferSize = 64

// broadcaster provides in-memory pub/sub of created messages per conversation.
type broadcaster struct {
	mu          sync.RWMutex
	subscribers map[string]map[string]chan chat.MessageEvent // conversationID -> subID -> ch
	logger      *slog.Logger
}

func newBroadcaster(logger *slog.Logger) *broadcaster {
	return &broadcaster{
		subscribers: make(map[string]map[string]chan chat.MessageEvent),
		logger:      logger,
	}
}

// subscribe registers a subscriber for the conversation. The subscription is
// removed and its channel closed when ctx is cancelled.
func (b *broadcaster) subscribe(ctx context.Context, conversationID string) <-chan chat.MessageEvent {
	subID := uuid.New().String()
	ch := make(chan chat.MessageEvent, subscriberBufferSize)

	b.mu.Lock()
	if _, ok := b.subscribers[conversationID]; !ok {
		b.subscribers[conversationID] = make(map[string]chan chat.MessageEvent)
	}
	b.subscribers[conversationID][subID] = ch
	b.mu.Unlock()

	b.logger.Debug("subscriber added", "conversation_id", conversationID, "sub_id", subID)

	go func() {
		<-ctx.Done()
		b.unsubscribe(conversationID, subID)
	}()

	return ch
}

// publish sends an event to all subscribers of the conversation.
// Non-blocking: events are dropped for subscribers whose channels are full.
func (b *broadcaster) publish(conversationID string, ev chat.MessageEvent) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for subID, ch := range b.subscribers[conversationID] {
		select {
		case ch <- ev:
		default:
			b.logger.Warn("dropped event for slow subscriber",
				"conversation_id", conversationID,
				"sub_id", subID)
		}
	}
}

func (b *broadcaster) unsubscribe(conversationID, subID string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs, ok := b.subscribers[conversationID]
	if !ok {
		return
	}
	ch, exists := subs[subID]
	if !exists {
		return
	}

	delete(subs, subID)
	close(ch)
	if len(subs) == 0 {
		delete(b.subscribers, conversationID)
	}

	b.logger.Debug("subscriber removed", "conversation_id", conversationID, "sub_id", subID)
}

// count returns the number of live subscribers for a conversation.
func (b *broadcaster) count(conversationID string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers[conversationID])
}
