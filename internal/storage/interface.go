// Package storage provides the persistence layer of the gateway.
//
// # Interface Design
//
// A [Store] bundles the repositories the gateway needs:
//
//   - the PMode document read by [pmode.Cache]
//   - the user message log and the signal message log read and written by
//     [messagelog.Tracker]
//
// and runs units of work through [txn.Runner]. Repositories look up the
// transaction bound to the context, so any call made with the context passed
// to InTx joins the transaction.
//
// # Implementations
//
// The mongodb and postgres sub-packages provide production backends. The
// in-memory store serves tests and single-node trials.
//
// # Concurrency
//
// All store implementations must be safe for concurrent use from multiple
// goroutines.
package storage

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/sirosfoundation/go-as4-gateway/internal/messagelog"
	"github.com/sirosfoundation/go-as4-gateway/internal/storage/mongodb"
	"github.com/sirosfoundation/go-as4-gateway/internal/storage/postgres"
	"github.com/sirosfoundation/go-as4-gateway/internal/txn"
	"github.com/sirosfoundation/go-as4-gateway/pkg/pmode"
)

// Store is the main storage interface combining all repositories
type Store interface {
	txn.Runner

	// PModes returns the PMode document repository
	PModes() pmode.Repository

	// UserMessageLogs returns the user message log repository
	UserMessageLogs() messagelog.Repository[*messagelog.UserMessageLog]

	// SignalMessageLogs returns the signal message log repository
	SignalMessageLogs() messagelog.Repository[*messagelog.SignalMessageLog]

	// Close releases storage resources
	Close(ctx context.Context) error

	// Ping checks database connectivity
	Ping(ctx context.Context) error
}

// Drivers
const (
	DriverMemory   = "memory"
	DriverMongoDB  = "mongodb"
	DriverPostgres = "postgres"
)

// Config selects and configures a backend
type Config struct {
	Driver string
	// URI is the MongoDB URI or the PostgreSQL connection string
	URI      string
	Database string
	// Transactions enables MongoDB multi-document transactions
	Transactions bool
}

// Open connects to the configured backend. The memory driver is for tests
// and development only: its InTx does not roll back writes when fn fails.
func Open(ctx context.Context, cfg Config, logger *slog.Logger) (Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	switch cfg.Driver {
	case DriverMemory, "":
		logger.Warn("using in-memory storage, data is lost on restart")
		return NewMemoryStore(), nil
	case DriverMongoDB:
		s, err := mongodb.NewStore(ctx, &mongodb.Config{
			URI:          cfg.URI,
			Database:     cfg.Database,
			Transactions: cfg.Transactions,
		})
		if err != nil {
			return nil, err
		}
		logger.Info("connected to MongoDB", "database", cfg.Database)
		return s, nil
	case DriverPostgres:
		s, err := postgres.NewStore(ctx, cfg.URI)
		if err != nil {
			return nil, err
		}
		logger.Info("connected to PostgreSQL")
		return s, nil
	}
	return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
}
