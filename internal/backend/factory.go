package backend

import (
	"context"
	"errors"
	"fmt"

	"lifeassistant/internal/amqp"
	"lifeassistant/internal/log"
	"lifeassistant/internal/store"
	"lifeassistant/internal/store/sqlite"
	"lifeassistant/internal/store/supabase"
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
	return &DefaultFactory{
		logger: logger.WithComponent(log.ComponentBackend),
	}
}

// CreateBackend implements Factory.CreateBackend
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*BackendResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	var (
		st  store.ConversationStore
		err error
	)
	switch config.Type {
	case SQLiteBackend:
		st, err = f.createSQLiteStore(config)
	case SupabaseBackend:
		st, err = f.createSupabaseStore(config)
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
	if err != nil {
		return nil, err
	}

	publisher := f.createPublisher(config)

	return &BackendResult{
		Store:     st,
		Publisher: publisher,
		Cleanup: func() error {
			var errs []error
			if publisher != nil {
				errs = append(errs, publisher.Close())
			}
			errs = append(errs, st.Close())
			return errors.Join(errs...)
		},
	}, nil
}

func (f *DefaultFactory) createSQLiteStore(config Config) (store.ConversationStore, error) {
	st, err := sqlite.Open(config.SQLiteDBPath, sqlite.WithLogger(f.logger))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize SQLite store: %w", err)
	}
	f.logger.Info("Initialized SQLite backend", "db_path", config.SQLiteDBPath)
	return st, nil
}

func (f *DefaultFactory) createSupabaseStore(config Config) (store.ConversationStore, error) {
	st, err := supabase.New(supabase.Options{
		URL:     config.SupabaseURL,
		AnonKey: config.SupabaseAnonKey,
		Logger:  f.logger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Supabase store: %w", err)
	}
	f.logger.Info("Initialized Supabase backend", "url", config.SupabaseURL)
	return st, nil
}

// createPublisher returns nil when AMQP is unset or unreachable; chat turn
// events are optional.
func (f *DefaultFactory) createPublisher(config Config) *amqp.Client {
	if config.AMQPURL == "" {
		return nil
	}
	client, err := amqp.NewClient(config.AMQPURL, config.AMQPExchange, config.AMQPRoutingKey, f.logger)
	if err != nil {
		f.logger.Warn("Failed to initialize AMQP client, continuing without chat events", "error", err)
		return nil
	}
	f.logger.Info("Initialized AMQP client",
		"exchange", config.AMQPExchange,
		"routing_key", config.AMQPRoutingKey)
	return client
}
