// Package memstore is an in-memory chat backend. It serves the same load,
// subscribe and write operations as the GraphQL client and backs the demo mode.
package memstore

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/raphaelgruber/convo/internal/chat"
)

// localUserPrefix marks the ID of the user writing through CreateMessage.
const localUserPrefix = "local-"

// ErrNotFound indicates the requested conversation does not exist.
var ErrNotFound = errors.New("conversation not found")

// Store holds conversations in memory.
type Store struct {
	mu            sync.RWMutex
	conversations map[string]chat.Conversation
	author        chat.User
	feed          *broadcaster
	logger        *slog.Logger
}

// New creates an empty store. Messages written through the store are
// attributed to a user named authorName. Pass nil logger for default.
func New(authorName string, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "memstore")

	// The local author lives in its own ID namespace, apart from seeded users
	author := NewUser(authorName)
	author.ID = localUserPrefix + author.ID

	return &Store{
		conversations: make(map[string]chat.Conversation),
		author:        author,
		feed:          newBroadcaster(logger),
		logger:        logger,
	}
}

// NewUser builds a user whose ID and avatar hash derive from the name.
func NewUser(name string) chat.User {
	sum := md5.Sum([]byte(strings.ToLower(strings.TrimSpace(name))))
	return chat.User{
		ID:         "user-" + strings.ToLower(strings.ReplaceAll(name, " ", "-")),
		Name:       name,
		AvatarHash: hex.EncodeToString(sum[:]),
	}
}

// Author returns the user messages written through the store are attributed to.
func (s *Store) Author() chat.User {
	return s.author
}

// Seed stores conv, replacing any conversation with the same ID.
func (s *Store) Seed(conv chat.Conversation) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conversations[conv.ID] = conv.Clone()
}

// Conversation returns a copy of the stored conversation.
func (s *Store) Conversation(ctx context.Context, id string) (*chat.Conversation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	conv, ok := s.conversations[id]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	clone := conv.Clone()
	if clone.Messages == nil {
		clone.Messages = []chat.Message{}
	}
	return &clone, nil
}

// SubscribeMessages returns a feed of messages created in the conversation
// from now on. The channel is closed when ctx is cancelled.
func (s *Store) SubscribeMessages(ctx context.Context, conversationID string) (<-chan chat.MessageEvent, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	_, ok := s.conversations[conversationID]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, conversationID)
	}

	return s.feed.subscribe(ctx, conversationID), nil
}

// CreateMessage appends a message by the store's author and notifies subscribers.
func (s *Store) CreateMessage(ctx context.Context, conversationID, body string) (string, error) {
	return s.Post(ctx, conversationID, s.author, body)
}

// Post appends a message by an arbitrary user and notifies subscribers.
func (s *Store) Post(ctx context.Context, conversationID string, user chat.User, body string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	msg := chat.Message{
		ID:   uuid.New().String(),
		Body: body,
		User: user,
	}

	s.mu.Lock()
	conv, ok := s.conversations[conversationID]
	if !ok {
		s.mu.Unlock()
		return "", fmt.Errorf("%w: %s", ErrNotFound, conversationID)
	}
	conv, _ = chat.AppendMessage(conv, msg)
	s.conversations[conversationID] = conv
	// Publish under the lock so subscribers see messages in store order
	s.feed.publish(conversationID, chat.MessageEvent{Message: &msg})
	s.mu.Unlock()

	s.logger.Debug("message created", "conversation_id", conversationID, "message_id", msg.ID, "user", user.Name)
	return msg.ID, nil
}

// Notify delivers a payload-less notification to the conversation's subscribers.
func (s *Store) Notify(conversationID string) {
	s.feed.publish(conversationID, chat.MessageEvent{})
}

// Subscribers returns the number of live feeds for the conversation.
func (s *Store) Subscribers(conversationID string) int {
	return s.feed.count(conversationID)
}
