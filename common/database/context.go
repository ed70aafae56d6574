// Package database holds timeouts shared by the saved search store.
package database

import (
	"context"
	"time"
)

// Standard timeout durations for database operations
const (
	// DefaultQueryTimeout is the timeout for read queries
	DefaultQueryTimeout = 5 * time.Second

	// DefaultWriteTimeout is the timeout for write operations
	DefaultWriteTimeout = 10 * time.Second
)

// QueryContext creates a context with DefaultQueryTimeout.
// Use this for SELECT queries and read operations.
func QueryContext(parent context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, DefaultQueryTimeout)
}

// WriteContext creates a context with DefaultWriteTimeout.
// Use this for INSERT and DELETE operations.
func WriteContext(parent context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, DefaultWriteTimeout)
}
