package backend

import (
	"context"
	"errors"
	"fmt"

	"fintrack/internal/amqp"
	"fintrack/internal/log"
	"fintrack/internal/ports"
	"fintrack/internal/storage"
	"fintrack/internal/storage/memory"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *log.Logger
}

// NewFactory creates a new backend factory
func NewFactory(logger *log.Logger) Factory {
	if logger == nil {
		logger = log.Discard()
	}
	return &DefaultFactory{logger: logger.WithComponent(log.ComponentBackend)}
}

// CreateBackend implements Factory.CreateBackend
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*BackendResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	var (
		store  Store
		closer func() error
	)
	switch config.Type {
	case MemoryBackend:
		mem := memory.New()
		store, closer = mem, mem.Close
		f.logger.WarnContext(ctx, "Using in-memory backend, data will not survive a restart")
	case SQLiteBackend:
		db, err := storage.OpenSQLite(config.SQLiteDBPath)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize SQLite storage: %w", err)
		}
		store, closer = db, db.Close
		f.logger.InfoContext(ctx, "Initialized SQLite backend", "db_path", config.SQLiteDBPath)
	case PostgresBackend:
		db, err := storage.OpenPostgres(config.PostgresURL)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize PostgreSQL storage: %w", err)
		}
		store, closer = db, db.Close
		f.logger.InfoContext(ctx, "Initialized PostgreSQL backend")
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}

	events, amqpClient := f.createPublisher(ctx, config)

	return &BackendResult{
		Store:  store,
		Events: events,
		Cleanup: func() error {
			var errs []error
			if amqpClient != nil {
				if err := amqpClient.Close(); err != nil {
					errs = append(errs, fmt.Errorf("amqp: %w", err))
				}
			}
			if err := closer(); err != nil {
				errs = append(errs, fmt.Errorf("storage: %w", err))
			}
			return errors.Join(errs...)
		},
	}, nil
}

// createPublisher connects to the broker when configured. Failure is not
// fatal: transactions are still stored, only events are skipped.
func (f *DefaultFactory) createPublisher(ctx context.Context, config Config) (ports.EventPublisher, *amqp.Client) {
	if config.AMQPURL == "" {
		return nil, nil
	}
	client, err := amqp.Dial(ctx, config.AMQPURL, config.AMQPExchange, f.logger)
	if err != nil {
		f.logger.WarnContext(ctx, "Failed to initialize AMQP client, continuing without events", log.FieldError, err)
		return nil, nil
	}
	f.logger.InfoContext(ctx, "Initialized AMQP publisher", "exchange", config.AMQPExchange)
	return client, client
}
