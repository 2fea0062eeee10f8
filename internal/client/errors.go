package client

import (
	"errors"
	"fmt"
)

// ErrNotFound indicates the requested conversation does not exist.
var ErrNotFound = errors.New("conversation not found")

// GraphQLError is returned when the server answers with a GraphQL error list.
// Message holds the first error; Count the total number reported.
type GraphQLError struct {
	Message string
	Path    []any
	Count   int
}

func newGraphQLError(errs []graphQLError) *GraphQLError {
	if len(errs) == 0 {
		return &GraphQLError{Message: "unknown", Count: 0}
	}
	return &GraphQLError{Message: errs[0].Message, Path: errs[0].Path, Count: len(errs)}
}

func (e *GraphQLError) Error() string {
	return "graphql error: " + e.Message
}

// StatusError is returned when the server responds with a non-200 HTTP status.
type StatusError struct {
	Code   int
	Status string
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("server error: %s - %s", e.Status, truncate(e.Body, maxVarLogLen))
}
