package pull

import (
	"context"
	"log/slog"

	"golang.org/x/sync/errgroup"
)

// ItemProcessor handles one work item
type ItemProcessor interface {
	Process(ctx context.Context, item WorkItem) error
}

// Consumer drains a ChannelQueue with a fixed pool of workers, one work
// item per worker at a time.
type Consumer struct {
	queue     *ChannelQueue
	processor ItemProcessor
	workers   int
	logger    *slog.Logger
}

// NewConsumer creates a consumer with the given number of workers
func NewConsumer(queue *ChannelQueue, processor ItemProcessor, workers int, logger *slog.Logger) *Consumer {
	if workers < 1 {
		workers = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Consumer{queue: queue, processor: processor, workers: workers, logger: logger}
}

// Run processes deliveries until ctx is done.
func (c *Consumer) Run(ctx context.Context) error {
	c.logger.Info("pull consumer started", "workers", c.workers)
	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < c.workers; i++ {
		g.Go(func() error {
			c.work(ctx)
			return nil
		})
	}
	err := g.Wait()
	c.logger.Info("pull consumer stopped")
	return err
}

func (c *Consumer) work(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case d := <-c.queue.Deliveries():
			c.handle(ctx, d)
		}
	}
}

func (c *Consumer) handle(ctx context.Context, d Delivery) {
	err := c.processor.Process(ctx, d.Item)
	if err == nil {
		return
	}

	class := Classify(err)
	log := c.logger.With("mpc", d.Item.Mpc, "pmode_key", d.Item.PModeKey, "attempt", d.Attempt, "class", class.String())
	if !class.Retriable() {
		log.Error("pull request failed", "error", err)
		return
	}

	requeued, qerr := c.queue.Redeliver(d)
	switch {
	case qerr != nil:
		log.Error("pull request failed, cannot redeliver", "error", err, "queue_error", qerr)
	case requeued:
		log.Warn("pull request failed, redelivering", "error", err)
	default:
		log.Error("pull request failed, deliveries exhausted", "error", err)
	}
}
