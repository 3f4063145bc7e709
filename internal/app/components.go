package app

import (
	"context"
	"crypto/x509"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/sirosfoundation/go-as4-gateway/internal/config"
	"github.com/sirosfoundation/go-as4-gateway/internal/inbound"
	"github.com/sirosfoundation/go-as4-gateway/internal/messagelog"
	"github.com/sirosfoundation/go-as4-gateway/internal/metrics"
	"github.com/sirosfoundation/go-as4-gateway/internal/policy"
	"github.com/sirosfoundation/go-as4-gateway/internal/pull"
	"github.com/sirosfoundation/go-as4-gateway/internal/server"
	"github.com/sirosfoundation/go-as4-gateway/internal/storage"
	"github.com/sirosfoundation/go-as4-gateway/pkg/message"
	"github.com/sirosfoundation/go-as4-gateway/pkg/pmode"
	"github.com/sirosfoundation/go-as4-gateway/pkg/transport"
)

// components is the assembled gateway
type components struct {
	store      storage.Store
	pmodes     *pmode.Cache
	policies   *policy.Resolver
	userLogs   *messagelog.Tracker[*messagelog.UserMessageLog]
	signalLogs *messagelog.Tracker[*messagelog.SignalMessageLog]
	metrics    *metrics.Registry

	// nil unless pulling is enabled
	queue     *pull.ChannelQueue
	consumer  *pull.Consumer
	scheduler *pull.Scheduler
}

func build(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*components, error) {
	store, err := storage.Open(ctx, storageConfig(cfg.Storage), logger)
	if err != nil {
		return nil, err
	}

	c := &components{
		store:      store,
		pmodes:     pmode.NewCache(store.PModes(), pmode.XMLParser{}, logger.With("component", "pmode")),
		policies:   policy.NewResolver(cfg.Pull.PolicyDir),
		userLogs:   messagelog.NewTracker(messagelog.UserMessages, store.UserMessageLogs(), logger),
		signalLogs: messagelog.NewTracker(messagelog.SignalMessages, store.SignalMessageLogs(), logger),
		metrics:    metrics.NewRegistry(),
	}

	if err := bootstrapPMode(ctx, store.PModes(), c.pmodes, cfg.PMode.File, logger); err != nil {
		store.Close(ctx)
		return nil, err
	}

	if !cfg.Pull.Enabled {
		return c, nil
	}

	httpsConfig, err := transportConfig(cfg.Transport)
	if err != nil {
		store.Close(ctx)
		return nil, err
	}
	builder := message.NewBuilder()
	handler := inbound.NewHandler(inbound.Config{
		PModes:     c.pmodes,
		UserLogs:   c.userLogs,
		SignalLogs: c.signalLogs,
		Tx:         store,
		Builder:    builder,
		Backend:    "log",
		Logger:     logger.With("component", "inbound"),
	})
	processor := pull.NewProcessor(pull.Config{
		PModes:     c.pmodes,
		Policies:   c.policies,
		Builder:    builder,
		Dispatcher: transport.NewDispatcher(httpsConfig, logger.With("component", "transport")),
		Handler:    handler,
		Notifier:   inbound.LogNotifier{Logger: logger.With("component", "backend")},
		Metrics:    c.metrics,
		Logger:     logger.With("component", "pull"),
	})

	c.queue = pull.NewChannelQueue(cfg.Pull.QueueSize, cfg.Pull.MaxDeliveries)
	c.consumer = pull.NewConsumer(c.queue, processor, cfg.Pull.Workers, logger.With("component", "pull"))
	c.scheduler, err = pull.NewScheduler(pull.SchedulerConfig{
		Cron:                 cfg.Pull.Cron,
		NotifyBackendOnError: cfg.Pull.NotifyBackendOnError,
		Logger:               logger.With("component", "scheduler"),
	}, c.pmodes, c.queue)
	if err != nil {
		store.Close(ctx)
		return nil, err
	}
	return c, nil
}

func (c *components) serverDeps() server.Deps {
	deps := server.Deps{
		Store:      c.store,
		PModes:     c.pmodes,
		UserLogs:   c.userLogs,
		SignalLogs: c.signalLogs,
		Metrics:    c.metrics.Handler(),
	}
	// Assigned only when set so the interfaces stay nil
	if c.queue != nil {
		deps.Queue = c.queue
		deps.Trigger = c.scheduler
	}
	return deps
}

// reload refreshes the PMode snapshot and drops cached policies
func (c *components) reload(ctx context.Context, logger *slog.Logger) {
	c.policies.Invalidate()
	if err := c.pmodes.Refresh(ctx); err != nil {
		logger.Error("pmode reload failed", "error", err)
		return
	}
	logger.Info("pmode configuration reloaded")
}

func storageConfig(cfg config.StorageConfig) storage.Config {
	switch cfg.Type {
	case storage.DriverMongoDB:
		return storage.Config{
			Driver:       storage.DriverMongoDB,
			URI:          cfg.MongoDB.URI,
			Database:     cfg.MongoDB.Database,
			Transactions: cfg.MongoDB.Transactions,
		}
	case storage.DriverPostgres:
		return storage.Config{Driver: storage.DriverPostgres, URI: cfg.Postgres.URL}
	}
	return storage.Config{Driver: cfg.Type}
}

// bootstrapPMode uploads file when storage holds no document yet.
func bootstrapPMode(ctx context.Context, repo pmode.Repository, cache *pmode.Cache, file string, logger *slog.Logger) error {
	if file == "" {
		return nil
	}
	exists, err := repo.Exists(ctx)
	if err != nil {
		return fmt.Errorf("checking pmode document: %w", err)
	}
	if exists {
		logger.Debug("pmode document already stored, ignoring bootstrap file", "file", file)
		return nil
	}
	raw, err := os.ReadFile(file)
	if err != nil {
		return fmt.Errorf("reading pmode file: %w", err)
	}
	if err := cache.Replace(ctx, raw); err != nil {
		return fmt.Errorf("uploading %s: %w", file, err)
	}
	logger.Info("pmode document uploaded", "file", file)
	return nil
}

func transportConfig(cfg config.TransportConfig) (*transport.HTTPSConfig, error) {
	c := transport.DefaultHTTPSConfig()
	if cfg.Timeout > 0 {
		c.Timeout = cfg.Timeout
	}
	if cfg.UserAgent != "" {
		c.UserAgent = cfg.UserAgent
	}
	switch cfg.MinTLS {
	case "", "1.2":
		c.MinTLSVersion = transport.TLS12
	case "1.3":
		c.MinTLSVersion = transport.TLS13
	default:
		return nil, fmt.Errorf("unsupported minimum TLS version %q", cfg.MinTLS)
	}
	if cfg.RootCAFile != "" {
		pem, err := os.ReadFile(cfg.RootCAFile)
		if err != nil {
			return nil, fmt.Errorf("reading root CA file: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pem) {
			return nil, errors.New("root CA file contains no certificates")
		}
		c.RootCAs = pool
	}
	return c, nil
}
