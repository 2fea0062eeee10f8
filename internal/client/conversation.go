package client

import (
	"context"
	"time"

	"github.com/raphaelgruber/convo/internal/chat"
	"github.com/raphaelgruber/convo/internal/metrics"
)

const getConversationQuery = `
	query GetConversation($id: String!) {
		conversation(id: $id) {
			id
			title
			messages {
				id
				body
				user { id name gravatarMd5 }
			}
		}
	}
`

const createMessageMutation = `
	mutation CreateMessage($conversationId: String!, $body: String!) {
		createMessage(conversationId: $conversationId, body: $body) {
			id
		}
	}
`

// Conversation retrieves a conversation with its messages.
// Returns ErrNotFound if the server has no conversation with that ID.
func (c *Client) Conversation(ctx context.Context, id string) (*chat.Conversation, error) {
	start := time.Now()

	var result struct {
		Conversation *chat.Conversation `json:"conversation"`
	}
	err := c.Execute(ctx, getConversationQuery, map[string]any{"id": id}, &result)
	if err == nil && result.Conversation == nil {
		err = ErrNotFound
	}
	c.metrics.RecordTiming(metrics.OpLoad, time.Since(start), err != nil)
	if err != nil {
		return nil, err
	}

	if result.Conversation.Messages == nil {
		result.Conversation.Messages = []chat.Message{}
	}
	return result.Conversation, nil
}

// CreateMessage posts body to the conversation and returns the new message ID.
// The body is sent as given; empty bodies are left for the server to judge.
func (c *Client) CreateMessage(ctx context.Context, conversationID, body string) (string, error) {
	start := time.Now()

	var result struct {
		CreateMessage struct {
			ID string `json:"id"`
		} `json:"createMessage"`
	}
	err := c.Execute(ctx, createMessageMutation, map[string]any{
		"conversationId": conversationID,
		"body":           body,
	}, &result)
	c.metrics.RecordTiming(metrics.OpWrite, time.Since(start), err != nil)
	if err != nil {
		return "", err
	}
	return result.CreateMessage.ID, nil
}
