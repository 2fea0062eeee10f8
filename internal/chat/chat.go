// Package chat defines the conversation data model shared by the client, the
// in-memory backend and the conversation view.
package chat

import (
	"fmt"
	"slices"
)

// gravatarBaseURL is where avatar hashes are resolved.
const gravatarBaseURL = "https://www.gravatar.com/avatar/"

// User is the author of a message.
type User struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	AvatarHash string `json:"gravatarMd5"`
}

// AvatarURL returns the Gravatar image URL for the user's avatar hash.
// An empty hash yields the default identicon.
func (u User) AvatarURL(size int) string {
	if size <= 0 {
		size = 80
	}
	return fmt.Sprintf("%s%s?s=%d&d=identicon", gravatarBaseURL, u.AvatarHash, size)
}

// Message is a single authored text entry within a conversation.
type Message struct {
	ID   string `json:"id"`
	Body string `json:"body"`
	User User   `json:"user"`
}

// Conversation is a titled collection of messages in arrival order.
type Conversation struct {
	ID       string    `json:"id"`
	Title    string    `json:"title"`
	Messages []Message `json:"messages"`
}

// MessageEvent is one item delivered by a live feed.
// Message is nil for notifications that carry no payload.
type MessageEvent struct {
	Message *Message
	Err     error
}

// HasMessage reports whether a message with the given ID is present.
func (c Conversation) HasMessage(id string) bool {
	return slices.ContainsFunc(c.Messages, func(m Message) bool {
		return m.ID == id
	})
}

// Clone returns a copy of c that shares no backing storage with it.
func (c Conversation) Clone() Conversation {
	c.Messages = slices.Clone(c.Messages)
	return c
}

// AppendMessage returns a new conversation with msg appended to the end of the
// message sequence. conv itself is left untouched. If a message with the same
// ID is already present, conv is returned unchanged and the second result is
// false.
func AppendMessage(conv Conversation, msg Message) (Conversation, bool) {
	if conv.HasMessage(msg.ID) {
		return conv, false
	}

	next := conv
	next.Messages = make([]Message, len(conv.Messages), len(conv.Messages)+1)
	copy(next.Messages, conv.Messages)
	next.Messages = append(next.Messages, msg)
	return next, true
}
