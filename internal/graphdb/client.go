package graphdb

import (
	"context"
	"errors"
)

// Client is the contract the consent repository needs from the underlying
// graph database.
type Client interface {
	RunWrite(ctx context.Context, cypher string, params map[string]any) ([]Row, error)
	RunRead(ctx context.Context, cypher string, params map[string]any) ([]Row, error)
	VerifyConnectivity(ctx context.Context) error
	Close(ctx context.Context) error
}

// Row groups the key-value pairs of a single result record.
type Row map[string]any

// String returns the named column as a string, or "" when absent or of
// another type.
func (r Row) String(key string) string {
	if v, ok := r[key].(string); ok {
		return v
	}
	return ""
}

// Int64 returns the named column as an int64, or 0 when absent.
func (r Row) Int64(key string) int64 {
	switch v := r[key].(type) {
	case int64:
		return v
	case int:
		return int64(v)
	case float64:
		return int64(v)
	}
	return 0
}

// Options configures a graph client implementation.
type Options struct {
	URI            string
	Database       string
	Username       string
	Password       string
	MaxConnections int
}

// ErrMissingURI indicates the graph URI is not provided.
var ErrMissingURI = errors.New("graph URI is required")
