// Package messagelog tracks the delivery status of every message handled by
// the gateway.
package messagelog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sirosfoundation/go-as4-gateway/internal/txn"
	"github.com/sirosfoundation/go-as4-gateway/pkg/ebms"
)

// Tracker owns the status transitions and queries of one kind of message log.
// The same algorithm serves user and signal message logs.
type Tracker[R Record] struct {
	kind   Kind[R]
	repo   Repository[R]
	now    func() time.Time
	logger *slog.Logger
}

// TrackerOption configures a Tracker
type TrackerOption[R Record] func(*Tracker[R])

// WithClock sets the clock used to stamp transitions
func WithClock[R Record](now func() time.Time) TrackerOption[R] {
	return func(t *Tracker[R]) {
		t.now = now
	}
}

// NewTracker creates a tracker over repo
func NewTracker[R Record](kind Kind[R], repo Repository[R], logger *slog.Logger, opts ...TrackerOption[R]) *Tracker[R] {
	if logger == nil {
		logger = slog.Default()
	}
	t := &Tracker[R]{
		kind:   kind,
		repo:   repo,
		now:    func() time.Time { return time.Now().UTC() },
		logger: logger.With("log", kind.Name),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Create records a message entering the gateway. Received defaults to now.
func (t *Tracker[R]) Create(ctx context.Context, r R) error {
	base := r.Base()
	if base.MessageID == "" {
		return fmt.Errorf("message log requires a message id")
	}
	if !base.Status.Settable() {
		return fmt.Errorf("cannot create message log %s with status %q", base.MessageID, base.Status)
	}
	if base.Received.IsZero() {
		base.Received = t.now()
	}
	if err := t.repo.Insert(ctx, r); err != nil {
		return fmt.Errorf("creating message log %s: %w", base.MessageID, err)
	}
	t.logger.Debug("message log created", "message_id", base.MessageID, "status", base.Status)
	return nil
}

// SetStatus moves a message to status and stamps the timestamp the status
// records: deleted for DELETED and both ACKNOWLEDGED states, downloaded for
// DOWNLOADED and failed for SEND_FAILURE. Other statuses stamp nothing.
func (t *Tracker[R]) SetStatus(ctx context.Context, messageID string, status Status) error {
	if !status.Settable() {
		return fmt.Errorf("cannot set message %s to status %q", messageID, status)
	}
	u := StatusUpdate{Status: status, Stamp: StampFor(status), At: t.now()}
	if err := t.repo.ApplyStatus(ctx, messageID, u); err != nil {
		return fmt.Errorf("setting status of %s to %s: %w", messageID, status, err)
	}
	t.logger.Debug("message status changed", "message_id", messageID, "status", status)
	return nil
}

// SetAsDeleted marks the message deleted.
func (t *Tracker[R]) SetAsDeleted(ctx context.Context, messageID string) error {
	return t.SetStatus(ctx, messageID, Deleted)
}

// SetAsDownloaded marks the message downloaded.
func (t *Tracker[R]) SetAsDownloaded(ctx context.Context, messageID string) error {
	return t.SetStatus(ctx, messageID, Downloaded)
}

// SetAsAcknowledged marks the message acknowledged.
func (t *Tracker[R]) SetAsAcknowledged(ctx context.Context, messageID string) error {
	return t.SetStatus(ctx, messageID, Acknowledged)
}

// SetAsAckWithWarnings marks the message acknowledged with warnings.
func (t *Tracker[R]) SetAsAckWithWarnings(ctx context.Context, messageID string) error {
	return t.SetStatus(ctx, messageID, AcknowledgedWithWarning)
}

// SetAsWaitingForReceipt marks the message as sent and awaiting its receipt.
func (t *Tracker[R]) SetAsWaitingForReceipt(ctx context.Context, messageID string) error {
	return t.SetStatus(ctx, messageID, WaitingForReceipt)
}

// SetAsSendFailure marks the message as failed.
func (t *Tracker[R]) SetAsSendFailure(ctx context.Context, messageID string) error {
	return t.SetStatus(ctx, messageID, SendFailure)
}

// SetIntermediaryPullStatus marks the message BEING_PULLED. The write is
// issued outside any transaction bound to ctx and commits immediately, so
// the marker survives a rollback of the caller's unit of work.
func (t *Tracker[R]) SetIntermediaryPullStatus(ctx context.Context, messageID string) error {
	return t.SetStatus(txn.Detach(ctx), messageID, BeingPulled)
}

// Status returns the status of a message, or NotFound for an unknown id.
func (t *Tracker[R]) Status(ctx context.Context, messageID string) (Status, error) {
	r, err := t.repo.FindByMessageID(ctx, messageID)
	if errors.Is(err, ErrMessageNotFound) {
		return NotFound, nil
	}
	if err != nil {
		return "", fmt.Errorf("reading status of %s: %w", messageID, err)
	}
	return r.Base().Status, nil
}

// Find returns the log of a message.
func (t *Tracker[R]) Find(ctx context.Context, messageID string) (R, error) {
	return t.repo.FindByMessageID(ctx, messageID)
}

// FindByRole returns the log of a message handled in the given role.
func (t *Tracker[R]) FindByRole(ctx context.Context, messageID string, role ebms.Role) (R, error) {
	return t.repo.FindByMessageIDAndRole(ctx, messageID, role)
}

// FindPaged returns up to limit records matching filters, skipping offset.
// An empty sortColumn orders by received time, newest first.
func (t *Tracker[R]) FindPaged(ctx context.Context, offset, limit int, sortColumn string, ascending bool, filters map[string]any) ([]R, error) {
	preds, err := t.kind.Predicates(filters)
	if err != nil {
		return nil, err
	}
	q := Query{Predicates: preds, Offset: offset, Limit: limit, Ascending: ascending}
	if sortColumn == "" {
		q.SortColumn = t.kind.Columns["received"].Name
		q.Ascending = false
	} else {
		c, err := t.kind.Column(sortColumn)
		if err != nil {
			return nil, err
		}
		q.SortColumn = c.Name
	}
	return t.repo.FindPaged(ctx, q)
}

// Count returns the number of records matching filters.
func (t *Tracker[R]) Count(ctx context.Context, filters map[string]any) (int64, error) {
	preds, err := t.kind.Predicates(filters)
	if err != nil {
		return 0, err
	}
	return t.repo.Count(ctx, preds)
}
