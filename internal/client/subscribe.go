package client

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/raphaelgruber/convo/internal/chat"
	"github.com/raphaelgruber/convo/internal/metrics"
)

// graphql-transport-ws protocol message types
const (
	gqlConnectionInit      = "connection_init"
	gqlConnectionAck       = "connection_ack"
	gqlPing                = "ping"
	gqlPong                = "pong"
	gqlSubscribe           = "subscribe"
	gqlNext                = "next"
	gqlError               = "error"
	gqlComplete            = "complete"
	gqlConnectionKeepAlive = "ka"
)

// eventBufferSize is the channel buffer between the socket reader and the consumer.
const eventBufferSize = 16

const messageCreatedSubscription = `
	subscription onMessageCreated($conversationId: String!) {
		messageCreated(conversationId: $conversationId) {
			id
			body
			user { id name gravatarMd5 }
		}
	}
`

// wsMessage represents a graphql-transport-ws protocol message.
type wsMessage struct {
	ID      string          `json:"id,omitempty"`
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// wsSubscribePayload is the payload for subscribe messages.
type wsSubscribePayload struct {
	Query         string         `json:"query"`
	OperationName string         `json:"operationName,omitempty"`
	Variables     map[string]any `json:"variables,omitempty"`
}

// wsEndpoint converts the HTTP endpoint into its WebSocket equivalent.
func (c *Client) wsEndpoint() (string, error) {
	u, err := url.Parse(c.endpoint)
	if err != nil {
		return "", fmt.Errorf("parse endpoint: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("unsupported endpoint scheme %q", u.Scheme)
	}
	return u.String(), nil
}

// SubscribeMessages opens a live feed of messages created in the conversation.
//
// The connection handshake happens before SubscribeMessages returns; after that
// events are delivered on the returned channel in arrival order. A feed
// notification without payload arrives as an event with a nil Message. The
// channel is closed when the server completes the subscription, after a
// terminal error event, or once ctx is cancelled.
func (c *Client) SubscribeMessages(ctx context.Context, conversationID string) (<-chan chat.MessageEvent, error) {
	start := time.Now()
	op, err := parseOperation(messageCreatedSubscription)
	if err != nil {
		return nil, err
	}

	sub, err := c.openSubscription(ctx, op, map[string]any{"conversationId": conversationID})
	c.metrics.RecordTiming(metrics.OpSubscribe, time.Since(start), err != nil)
	c.logRequest(op, map[string]any{"conversationId": conversationID}, time.Since(start), err)
	if err != nil {
		return nil, err
	}

	events := make(chan chat.MessageEvent, eventBufferSize)
	go sub.run(ctx, events, c.metrics)
	return events, nil
}

// subscription is one graphql-transport-ws session carrying a single operation.
type subscription struct {
	id   string
	conn *websocket.Conn

	writeMu sync.Mutex
	once    sync.Once
	logger  *slog.Logger
}

func (c *Client) openSubscription(ctx context.Context, op operation, vars map[string]any) (*subscription, error) {
	endpoint, err := c.wsEndpoint()
	if err != nil {
		return nil, err
	}

	// Connect with graphql-transport-ws subprotocol
	conn, _, err := c.dialer.DialContext(ctx, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("websocket connect: %w", err)
	}

	sub := &subscription{
		id:     uuid.New().String(),
		conn:   conn,
		logger: c.logger,
	}

	// Cancellation closes the socket under a pending handshake
	stopWatch := context.AfterFunc(ctx, func() { conn.Close() })
	err = sub.handshake(ctx, c.dialer.HandshakeTimeout)
	stopWatch()
	if ctxErr := ctx.Err(); ctxErr != nil {
		conn.Close()
		return nil, fmt.Errorf("connection handshake: %w", ctxErr)
	}
	if err != nil {
		conn.Close()
		return nil, err
	}

	payload, err := json.Marshal(wsSubscribePayload{
		Query:         messageCreatedSubscription,
		OperationName: op.name,
		Variables:     vars,
	})
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("marshal subscribe payload: %w", err)
	}
	if err := sub.write(wsMessage{ID: sub.id, Type: gqlSubscribe, Payload: payload}); err != nil {
		conn.Close()
		return nil, fmt.Errorf("send subscribe: %w", err)
	}

	return sub, nil
}

// handshake sends connection_init and waits for connection_ack.
func (s *subscription) handshake(ctx context.Context, timeout time.Duration) error {
	if err := s.write(wsMessage{Type: gqlConnectionInit}); err != nil {
		return fmt.Errorf("send connection_init: %w", err)
	}

	deadline := time.Now().Add(timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := s.conn.SetReadDeadline(deadline); err != nil {
		return fmt.Errorf("set read deadline: %w", err)
	}

	for {
		var msg wsMessage
		if err := s.conn.ReadJSON(&msg); err != nil {
			return fmt.Errorf("read connection_ack: %w", err)
		}
		switch msg.Type {
		case gqlConnectionAck:
			return s.conn.SetReadDeadline(time.Time{})
		case gqlPing:
			if err := s.write(wsMessage{Type: gqlPong}); err != nil {
				return fmt.Errorf("send pong: %w", err)
			}
		case gqlConnectionKeepAlive:
		default:
			return fmt.Errorf("expected connection_ack, got %s", msg.Type)
		}
	}
}

// write serialises writes; gorilla connections allow one concurrent writer.
func (s *subscription) write(msg wsMessage) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.conn.WriteJSON(msg)
}

// close tells the server we are done (best effort) and closes the socket.
func (s *subscription) close(sendComplete bool) {
	s.once.Do(func() {
		if sendComplete {
			s.writeMu.Lock()
			_ = s.conn.SetWriteDeadline(time.Now().Add(time.Second))
			_ = s.conn.WriteJSON(wsMessage{ID: s.id, Type: gqlComplete})
			s.writeMu.Unlock()
		}
		s.conn.Close()
	})
}

// run reads protocol messages until completion, error or cancellation.
func (s *subscription) run(ctx context.Context, events chan<- chat.MessageEvent, mc *metrics.Collector) {
	defer close(events)

	// Handle context cancellation in a separate goroutine
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			s.close(true)
		case <-done:
		}
	}()
	defer func() { s.close(ctx.Err() != nil) }()

	emit := func(ev chat.MessageEvent) bool {
		select {
		case events <- ev:
			return true
		case <-ctx.Done():
			return false
		}
	}

	for {
		var msg wsMessage
		if err := s.conn.ReadJSON(&msg); err != nil {
			// Cancellation closes the socket under the reader
			if ctx.Err() != nil {
				return
			}
			emit(chat.MessageEvent{Err: fmt.Errorf("read message: %w", err)})
			return
		}

		switch msg.Type {
		case gqlNext:
			if msg.ID != s.id {
				continue
			}
			ev := decodeNext(msg.Payload)
			if ev.Message != nil {
				mc.RecordEvent()
			}
			if !emit(ev) {
				return
			}

		case gqlError:
			emit(chat.MessageEvent{Err: decodeError(msg.Payload)})
			return

		case gqlComplete:
			s.logger.Debug("subscription completed by server", "subscription_id", s.id)
			return

		case gqlPing:
			if err := s.write(wsMessage{Type: gqlPong}); err != nil {
				s.logger.Warn("failed to answer ping", "error", err)
			}

		case gqlConnectionKeepAlive, gqlPong:
			continue

		default:
			// Ignore unknown message types
			continue
		}
	}
}

// decodeNext turns a next payload into an event. Missing data yields an empty event.
func decodeNext(payload json.RawMessage) chat.MessageEvent {
	var data struct {
		Data *struct {
			MessageCreated *chat.Message `json:"messageCreated"`
		} `json:"data"`
		Errors []graphQLError `json:"errors,omitempty"`
	}
	if len(payload) == 0 || string(payload) == "null" {
		return chat.MessageEvent{}
	}
	if err := json.Unmarshal(payload, &data); err != nil {
		return chat.MessageEvent{Err: fmt.Errorf("unmarshal next payload: %w", err)}
	}
	if len(data.Errors) > 0 {
		return chat.MessageEvent{Err: newGraphQLError(data.Errors)}
	}
	if data.Data == nil {
		return chat.MessageEvent{}
	}
	return chat.MessageEvent{Message: data.Data.MessageCreated}
}

func decodeError(payload json.RawMessage) error {
	var errs []graphQLError
	if err := json.Unmarshal(payload, &errs); err != nil {
		return fmt.Errorf("subscription error: %s", strings.TrimSpace(string(payload)))
	}
	return fmt.Errorf("subscription error: %w", newGraphQLError(errs))
}
