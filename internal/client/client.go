// Package client provides a GraphQL client for the chat API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/gorilla/websocket"
	"github.com/raphaelgruber/convo/internal/metrics"
	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/parser"
)

const defaultEndpoint = "http://localhost:4000/graphql"

// maxVarLogLen is the maximum length for logged variables before truncation.
const maxVarLogLen = 200

// slowRequestThreshold is the duration above which requests are logged at WARN level.
const slowRequestThreshold = 500 * time.Millisecond

// Client is a GraphQL client for the chat API.
type Client struct {
	endpoint   string
	httpClient *http.Client
	dialer     *websocket.Dialer
	logger     *slog.Logger
	metrics    *metrics.Collector
}

// Option configures a Client.
type Option func(*Client)

// WithTimeout sets the timeout for queries and mutations.
// Subscriptions are bounded by their context only.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.httpClient.Timeout = d
	}
}

// WithHTTPClient replaces the HTTP client used for queries and mutations.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithLogger sets the logger for request logging.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		c.logger = l
	}
}

// WithMetrics records operation timings into mc.
func WithMetrics(mc *metrics.Collector) Option {
	return func(c *Client) {
		c.metrics = mc
	}
}

// New creates a new GraphQL client. If endpoint is empty, localhost:4000 is used.
func New(endpoint string, opts ...Option) *Client {
	if endpoint == "" {
		endpoint = defaultEndpoint
	}

	c := &Client{
		endpoint:   endpoint,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		dialer: &websocket.Dialer{
			HandshakeTimeout: 10 * time.Second,
			Subprotocols:     []string{"graphql-transport-ws"},
		},
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With("component", "client")
	return c
}

// Endpoint returns the HTTP endpoint the client talks to.
func (c *Client) Endpoint() string {
	return c.endpoint
}

// graphQLRequest is the request payload for GraphQL operations.
type graphQLRequest struct {
	Query         string         `json:"query"`
	OperationName string         `json:"operationName,omitempty"`
	Variables     map[string]any `json:"variables,omitempty"`
}

// graphQLResponse is the response payload from GraphQL operations.
type graphQLResponse struct {
	Data   json.RawMessage `json:"data"`
	Errors []graphQLError  `json:"errors,omitempty"`
}

// graphQLError represents a GraphQL error on the wire.
type graphQLError struct {
	Message string `json:"message"`
	Path    []any  `json:"path,omitempty"`
}

// operation describes a parsed GraphQL document.
type operation struct {
	name string
	kind ast.Operation
}

var operationCache sync.Map // query string -> operation

// parseOperation extracts the name and kind of the single operation in query.
func parseOperation(query string) (operation, error) {
	if op, ok := operationCache.Load(query); ok {
		return op.(operation), nil
	}

	doc, err := parser.ParseQuery(&ast.Source{Input: query})
	if err != nil {
		return operation{}, fmt.Errorf("parse document: %w", err)
	}
	if len(doc.Operations) != 1 {
		return operation{}, fmt.Errorf("document must contain exactly one operation, got %d", len(doc.Operations))
	}

	op := operation{name: doc.Operations[0].Name, kind: doc.Operations[0].Operation}
	operationCache.Store(query, op)
	return op, nil
}

// Execute sends a GraphQL query/mutation and returns the result.
func (c *Client) Execute(ctx context.Context, query string, variables map[string]any, result any) error {
	op, err := parseOperation(query)
	if err != nil {
		return err
	}
	if op.kind == ast.Subscription {
		return fmt.Errorf("%s: subscriptions are not supported over HTTP", op.name)
	}

	start := time.Now()
	err = c.execute(ctx, op, query, variables, result)
	c.logRequest(op, variables, time.Since(start), err)
	return err
}

func (c *Client) execute(ctx context.Context, op operation, query string, variables map[string]any, result any) error {
	reqBody, err := json.Marshal(graphQLRequest{
		Query:         query,
		OperationName: op.name,
		Variables:     variables,
	})
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(reqBody))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return &StatusError{Code: resp.StatusCode, Status: resp.Status, Body: string(body)}
	}

	var gqlResp graphQLResponse
	if err := json.Unmarshal(body, &gqlResp); err != nil {
		return fmt.Errorf("unmarshal response: %w", err)
	}

	if len(gqlResp.Errors) > 0 {
		return newGraphQLError(gqlResp.Errors)
	}

	if result != nil && len(gqlResp.Data) > 0 {
		if err := json.Unmarshal(gqlResp.Data, result); err != nil {
			return fmt.Errorf("unmarshal data: %w", err)
		}
	}

	return nil
}

// logRequest logs a finished operation with timing.
// Slow requests are logged at WARN level, failures at ERROR.
func (c *Client) logRequest(op operation, variables map[string]any, duration time.Duration, err error) {
	attrs := []any{
		"operation", op.name,
		"kind", string(op.kind),
		"duration_ms", duration.Milliseconds(),
	}
	if len(variables) > 0 {
		attrs = append(attrs, "variables", truncate(fmt.Sprintf("%v", variables), maxVarLogLen))
	}

	switch {
	case err != nil && !errors.Is(err, context.Canceled):
		attrs = append(attrs, "error", err.Error())
		c.logger.Error("request failed", attrs...)
	case duration > slowRequestThreshold:
		c.logger.Warn("slow request", attrs...)
	default:
		c.logger.Debug("request completed", attrs...)
	}
}

// truncate shortens a string to maxLen, adding "..." if truncated.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen < 3 {
		return s[:runeBoundary(s, maxLen)]
	}
	return s[:runeBoundary(s, maxLen-3)] + "..."
}

// runeBoundary moves i back to the start of the rune it falls in.
func runeBoundary(s string, i int) int {
	for i > 0 && !utf8.RuneStart(s[i]) {
		i--
	}
	return i
}
