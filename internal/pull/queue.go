package pull

import (
	"context"
	"errors"
)

// ErrQueueFull is returned when a work item cannot be buffered
var ErrQueueFull = errors.New("pull queue is full")

// Queue accepts work items
type Queue interface {
	Enqueue(ctx context.Context, item WorkItem) error
}

// Delivery is one attempt at a work item
type Delivery struct {
	Item    WorkItem
	Attempt int
}

// ChannelQueue buffers work items in process memory. Items whose processing
// fails with a retriable class are delivered again, at most maxDeliveries
// times in total.
type ChannelQueue struct {
	ch            chan Delivery
	maxDeliveries int
}

// NewChannelQueue creates a queue holding up to size items.
func NewChannelQueue(size, maxDeliveries int) *ChannelQueue {
	if size < 1 {
		size = 1
	}
	if maxDeliveries < 1 {
		maxDeliveries = 1
	}
	return &ChannelQueue{ch: make(chan Delivery, size), maxDeliveries: maxDeliveries}
}

// Enqueue buffers item, waiting for room until ctx is done.
func (q *ChannelQueue) Enqueue(ctx context.Context, item WorkItem) error {
	select {
	case q.ch <- Delivery{Item: item, Attempt: 1}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Deliveries returns the channel consumers receive from.
func (q *ChannelQueue) Deliveries() <-chan Delivery {
	return q.ch
}

// Redeliver puts d back for another attempt. It never blocks: it returns
// false when the attempts are exhausted and ErrQueueFull when there is no
// room.
func (q *ChannelQueue) Redeliver(d Delivery) (bool, error) {
	if d.Attempt >= q.maxDeliveries {
		return false, nil
	}
	select {
	case q.ch <- Delivery{Item: d.Item, Attempt: d.Attempt + 1}:
		return true, nil
	default:
		return false, ErrQueueFull
	}
}

// Len returns the number of buffered deliveries.
func (q *ChannelQueue) Len() int {
	return len(q.ch)
}
