package memstore

import (
	"context"
	"fmt"
	"time"

	"github.com/raphaelgruber/convo/internal/chat"
)

// DemoConversationID identifies the conversation seeded by SeedDemo.
const DemoConversationID = "demo"

// DemoBotName is the seeded user who answers in the demo conversation.
const DemoBotName = "Ada"

// SeedDemo stores a small sample conversation and returns it together with
// the seeded user who answers messages in it.
func (s *Store) SeedDemo() (chat.Conversation, chat.User) {
	ada := NewUser(DemoBotName)
	linus := NewUser("Linus")

	conv := chat.Conversation{
		ID:    DemoConversationID,
		Title: "Welcome to convo",
		Messages: []chat.Message{
			{ID: "demo-1", Body: "Hi! This conversation lives in memory.", User: ada},
			{ID: "demo-2", Body: "Type a message and press enter to post it.", User: linus},
			{ID: "demo-3", Body: "Ada answers every message you send.", User: ada},
		},
	}
	s.Seed(conv)
	return conv, ada
}

// Echo answers every message the store's author writes to the conversation
// with a reply from bot, after delay. It runs until ctx is cancelled.
func (s *Store) Echo(ctx context.Context, conversationID string, bot chat.User, delay time.Duration) error {
	events, err := s.SubscribeMessages(ctx, conversationID)
	if err != nil {
		return err
	}

	for ev := range events {
		if ev.Message == nil || ev.Message.User.ID != s.Author().ID {
			continue
		}

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil
		}

		reply := fmt.Sprintf("%s said %q", ev.Message.User.Name, ev.Message.Body)
		if _, err := s.Post(ctx, conversationID, bot, reply); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
	}
	return nil
}
