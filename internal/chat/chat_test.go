package chat

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleConversation() Conversation {
	alice := User{ID: "u1", Name: "Alice", AvatarHash: "abc"}
	bob := User{ID: "u2", Name: "Bob", AvatarHash: "def"}
	return Conversation{
		ID:    "c1",
		Title: "Lunch",
		Messages: []Message{
			{ID: "m1", Body: "hungry?", User: alice},
			{ID: "m2", Body: "always", User: bob},
		},
	}
}

func TestAppendMessage(t *testing.T) {
	conv := sampleConversation()
	msg := Message{ID: "m9", Body: "hi", User: User{ID: "u1", Name: "Alice"}}

	next, added := AppendMessage(conv, msg)
	require.True(t, added)
	require.Len(t, next.Messages, 3)
	assert.Equal(t, "m1", next.Messages[0].ID)
	assert.Equal(t, "m2", next.Messages[1].ID)
	assert.Equal(t, msg, next.Messages[2])
	assert.Equal(t, conv.ID, next.ID)
	assert.Equal(t, conv.Title, next.Title)

	// Original value is untouched
	assert.Len(t, conv.Messages, 2)
}

func TestAppendMessageDoesNotAlias(t *testing.T) {
	conv := sampleConversation()
	// Spare capacity would let a naive append write into conv's backing array
	conv.Messages = append(make([]Message, 0, 10), conv.Messages...)

	a, _ := AppendMessage(conv, Message{ID: "a"})
	b, _ := AppendMessage(conv, Message{ID: "b"})

	assert.Equal(t, "a", a.Messages[2].ID)
	assert.Equal(t, "b", b.Messages[2].ID)

	a.Messages[0].Body = "changed"
	assert.Equal(t, "hungry?", conv.Messages[0].Body)
}

func TestAppendMessageSkipsDuplicate(t *testing.T) {
	conv := sampleConversation()

	next, added := AppendMessage(conv, Message{ID: "m2", Body: "again"})
	assert.False(t, added)
	require.Len(t, next.Messages, 2)
	assert.Equal(t, "always", next.Messages[1].Body)
}

func TestAppendMessageToEmptyConversation(t *testing.T) {
	next, added := AppendMessage(Conversation{ID: "c1"}, Message{ID: "m1"})
	assert.True(t, added)
	assert.Len(t, next.Messages, 1)
}

func TestHasMessage(t *testing.T) {
	conv := sampleConversation()
	assert.True(t, conv.HasMessage("m1"))
	assert.False(t, conv.HasMessage("m3"))
	assert.False(t, Conversation{}.HasMessage(""))
}

func TestClone(t *testing.T) {
	conv := sampleConversation()
	clone := conv.Clone()
	clone.Messages[0].Body = "changed"
	assert.Equal(t, "hungry?", conv.Messages[0].Body)
}

func TestAvatarURL(t *testing.T) {
	tests := []struct {
		name string
		user User
		size int
		want string
	}{
		{"with hash", User{AvatarHash: "abc123"}, 40, "https://www.gravatar.com/avatar/abc123?s=40&d=identicon"},
		{"default size", User{AvatarHash: "abc123"}, 0, "https://www.gravatar.com/avatar/abc123?s=80&d=identicon"},
		{"empty hash", User{}, 32, "https://www.gravatar.com/avatar/?s=32&d=identicon"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.user.AvatarURL(tt.size))
		})
	}
}
