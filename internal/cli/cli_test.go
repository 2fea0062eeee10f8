package cli

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/gorilla/websocket"
	"github.com/raphaelgruber/convo/internal/chat"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordedRequest struct {
	OperationName string         `json:"operationName"`
	Variables     map[string]any `json:"variables"`
}

// chatAPI is a canned GraphQL endpoint for exercising the commands end to end.
type chatAPI struct {
	mu       sync.Mutex
	requests []recordedRequest
}

func (a *chatAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if websocket.IsWebSocketUpgrade(r) {
		a.serveFeed(w, r)
		return
	}

	var req recordedRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	a.mu.Lock()
	a.requests = append(a.requests, req)
	a.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	switch {
	case req.OperationName == "GetConversation" && req.Variables["id"] == "c1":
		_, _ = io.WriteString(w, `{"data":{"conversation":{"id":"c1","title":"Lunch plans","messages":[
			{"id":"m1","body":"hungry?","user":{"id":"u1","name":"Alice","gravatarMd5":"abc"}},
			{"id":"m2","body":"always","user":{"id":"u2","name":"Bob","gravatarMd5":"def"}}
		]}}}`)
	case req.OperationName == "GetConversation":
		_, _ = io.WriteString(w, `{"data":{"conversation":null}}`)
	case req.OperationName == "CreateMessage":
		_, _ = io.WriteString(w, `{"data":{"createMessage":{"id":"m3"}}}`)
	default:
		_, _ = io.WriteString(w, `{"errors":[{"message":"unknown operation"}]}`)
	}
}

func (a *chatAPI) serveFeed(w http.ResponseWriter, r *http.Request) {
	upgrader := websocket.Upgrader{Subprotocols: []string{"graphql-transport-ws"}}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	var msg struct {
		ID   string `json:"id"`
		Type string `json:"type"`
	}
	if err := conn.ReadJSON(&msg); err != nil {
		return
	}
	_ = conn.WriteJSON(map[string]any{"type": "connection_ack"})
	if err := conn.ReadJSON(&msg); err != nil {
		return
	}

	id := msg.ID
	_ = conn.WriteJSON(map[string]any{"id": id, "type": "next", "payload": map[string]any{
		"data": map[string]any{"messageCreated": map[string]any{
			"id": "m9", "body": "hi", "user": map[string]any{"id": "u2", "name": "Bob", "gravatarMd5": "def"},
		}},
	}})
	_ = conn.WriteJSON(map[string]any{"id": id, "type": "next", "payload": map[string]any{"data": nil}})
	_ = conn.WriteJSON(map[string]any{"id": id, "type": "complete"})
	_, _, _ = conn.ReadMessage()
}

func (a *chatAPI) last() recordedRequest {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.requests[len(a.requests)-1]
}

func newChatAPI(t *testing.T) (*chatAPI, string) {
	api := &chatAPI{}
	srv := httptest.NewServer(api)
	t.Cleanup(srv.Close)
	return api, srv.URL + "/graphql"
}

// execute runs the root command with args and returns what it printed.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("CONVO_LOG_FILE", filepath.Join(dir, "convo.log"))
	t.Setenv("CONVO_CONFIG", filepath.Join(dir, "missing.yaml"))
	t.Setenv("CONVO_LOG_LEVEL", "error")

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestShow(t *testing.T) {
	api, url := newChatAPI(t)

	out, err := execute(t, "--server", url, "show", "c1")
	require.NoError(t, err)

	assert.Contains(t, out, "Lunch plans")
	assert.Contains(t, out, "Alice: hungry?")
	assert.Contains(t, out, "Bob: always")
	assert.Less(t, strings.Index(out, "hungry?"), strings.Index(out, "always"))
	assert.Equal(t, "GetConversation", api.last().OperationName)
}

func TestShowVerboseListsParticipants(t *testing.T) {
	_, url := newChatAPI(t)
	t.Cleanup(func() { verbose = false })

	out, err := execute(t, "--server", url, "show", "c1", "-v")
	require.NoError(t, err)

	assert.Contains(t, out, "2 messages")
	assert.Contains(t, out, "  Alice https://www.gravatar.com/avatar/abc?s=64&d=identicon\n")
	assert.Contains(t, out, "  Bob https://www.gravatar.com/avatar/def?s=64&d=identicon\n")
	assert.Less(t, strings.Index(out, "  Alice"), strings.Index(out, "  Bob"))
}

func TestParticipants(t *testing.T) {
	alice := chat.User{ID: "u1", Name: "Alice"}
	bob := chat.User{ID: "u2", Name: "Bob"}
	msgs := []chat.Message{
		{ID: "m1", User: alice},
		{ID: "m2", User: bob},
		{ID: "m3", User: alice},
	}

	assert.Equal(t, []chat.User{alice, bob}, participants(msgs))
	assert.Empty(t, participants(nil))
}

func TestShowNotFound(t *testing.T) {
	_, url := newChatAPI(t)

	_, err := execute(t, "--server", url, "show", "nope")
	assert.EqualError(t, err, "conversation nope not found")
}

func TestSend(t *testing.T) {
	api, url := newChatAPI(t)

	out, err := execute(t, "--server", url, "send", "c1", "on my way")
	require.NoError(t, err)

	assert.Equal(t, "m3\n", out)
	req := api.last()
	assert.Equal(t, "CreateMessage", req.OperationName)
	assert.Equal(t, map[string]any{"conversationId": "c1", "body": "on my way"}, req.Variables)
}

func TestSendEmptyBody(t *testing.T) {
	api, url := newChatAPI(t)

	_, err := execute(t, "--server", url, "send", "c1", "")
	require.NoError(t, err)
	assert.Equal(t, "", api.last().Variables["body"])
}

func TestTail(t *testing.T) {
	_, url := newChatAPI(t)

	out, err := execute(t, "--server", url, "tail", "c1")
	require.NoError(t, err)

	assert.Equal(t, "Bob: hi\n", out)
}

func TestInteractiveCommandsNeedTerminal(t *testing.T) {
	orig := isInteractive
	isInteractive = func() bool { return false }
	t.Cleanup(func() { isInteractive = orig })

	for _, args := range [][]string{{"open", "c1"}, {"demo"}} {
		t.Run(args[0], func(t *testing.T) {
			_, err := execute(t, args...)
			assert.ErrorContains(t, err, "needs an interactive terminal")
		})
	}
}

func TestArgsValidation(t *testing.T) {
	_, err := execute(t, "send", "c1")
	assert.Error(t, err)
}
