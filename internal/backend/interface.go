// Package backend builds the persistence and event stack selected by
// configuration.
package backend

import (
	"context"

	"fintrack/internal/ports"
)

// Store is everything the services need from persistence.
type Store interface {
	ports.TransactionStore
	ports.UserStore
	ports.Pinger
}

// CleanupFunc represents a cleanup function for resources
type CleanupFunc func() error

// BackendResult contains the backend instance and optional cleanup function.
// Events is nil when no broker is configured or reachable.
type BackendResult struct {
	Store   Store
	Events  ports.EventPublisher
	Cleanup CleanupFunc
}

// Factory creates backends based on configuration
type Factory interface {
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)
}

// Config holds configuration for backend creation
type Config struct {
	Type BackendType

	SQLiteDBPath string
	PostgresURL  string

	AMQPURL      string
	AMQPExchange string
}

// BackendType represents the type of backend
type BackendType string

const (
	MemoryBackend   BackendType = "memory"
	SQLiteBackend   BackendType = "sqlite"
	PostgresBackend BackendType = "postgres"
)

// String implements fmt.Stringer
func (bt BackendType) String() string {
	return string(bt)
}

// IsValid returns true if the backend type is valid
func (bt BackendType) IsValid() bool {
	switch bt {
	case MemoryBackend, SQLiteBackend, PostgresBackend:
		return true
	default:
		return false
	}
}
