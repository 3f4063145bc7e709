package messagelog

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sirosfoundation/go-as4-gateway/pkg/ebms"
)

var clock = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func newUserTracker(t *testing.T) (*Tracker[*UserMessageLog], *MemoryRepository[*UserMessageLog]) {
	t.Helper()
	repo := NewMemoryRepository(UserMessages)
	tracker := NewTracker[*UserMessageLog](UserMessages, repo, nil, WithClock[*UserMessageLog](func() time.Time { return clock }))
	return tracker, repo
}

func createUserLog(t *testing.T, tr *Tracker[*UserMessageLog], id string, status Status) {
	t.Helper()
	require.NoError(t, tr.Create(context.Background(), &UserMessageLog{
		Log: Log{MessageID: id, MSHRole: ebms.RoleSending, Status: status, Mpc: "mpc1"},
	}))
}

func TestSetStatusStamps(t *testing.T) {
	tests := []struct {
		status     Status
		downloaded bool
		deleted    bool
		failed     bool
	}{
		{Downloaded, true, false, false},
		{Deleted, false, true, false},
		{Acknowledged, false, true, false},
		{AcknowledgedWithWarning, false, true, false},
		{SendFailure, false, false, true},
		{WaitingForReceipt, false, false, false},
		{BeingPulled, false, false, false},
		{ReadyToPull, false, false, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			ctx := context.Background()
			tr, _ := newUserTracker(t)
			createUserLog(t, tr, "msg-1", Received)

			require.NoError(t, tr.SetStatus(ctx, "msg-1", tt.status))

			got, err := tr.Find(ctx, "msg-1")
			require.NoError(t, err)
			assert.Equal(t, tt.status, got.Status)
			assert.Equal(t, tt.downloaded, got.Downloaded != nil, "downloaded")
			assert.Equal(t, tt.deleted, got.Deleted != nil, "deleted")
			assert.Equal(t, tt.failed, got.Failed != nil, "failed")
			for _, ts := range []*time.Time{got.Downloaded, got.Deleted, got.Failed} {
				if ts != nil {
					assert.Equal(t, clock, *ts)
				}
			}
		})
	}
}

func TestSetStatusKeepsEarlierStamps(t *testing.T) {
	ctx := context.Background()
	tr, _ := newUserTracker(t)
	createUserLog(t, tr, "msg-1", Received)

	require.NoError(t, tr.SetAsDownloaded(ctx, "msg-1"))
	require.NoError(t, tr.SetAsDeleted(ctx, "msg-1"))

	got, err := tr.Find(ctx, "msg-1")
	require.NoError(t, err)
	assert.NotNil(t, got.Downloaded)
	assert.NotNil(t, got.Deleted)
	assert.Nil(t, got.Failed)
}

func TestNamedTransitions(t *testing.T) {
	ctx := context.Background()
	tr, _ := newUserTracker(t)
	createUserLog(t, tr, "msg-1", Received)

	steps := []struct {
		set  func(context.Context, string) error
		want Status
	}{
		{tr.SetAsWaitingForReceipt, WaitingForReceipt},
		{tr.SetAsAcknowledged, Acknowledged},
		{tr.SetAsAckWithWarnings, AcknowledgedWithWarning},
		{tr.SetAsSendFailure, SendFailure},
		{tr.SetAsDownloaded, Downloaded},
		{tr.SetAsDeleted, Deleted},
	}
	for _, step := range steps {
		require.NoError(t, step.set(ctx, "msg-1"))
		status, err := tr.Status(ctx, "msg-1")
		require.NoError(t, err)
		assert.Equal(t, step.want, status)
	}
}

func TestSetStatusUnknownMessage(t *testing.T) {
	tr, _ := newUserTracker(t)
	err := tr.SetStatus(context.Background(), "missing", Downloaded)
	assert.ErrorIs(t, err, ErrMessageNotFound)
}

func TestSetStatusRejectsNotFound(t *testing.T) {
	tr, _ := newUserTracker(t)
	createUserLog(t, tr, "msg-1", Received)
	assert.Error(t, tr.SetStatus(context.Background(), "msg-1", NotFound))
}

func TestStatusUnknownIsNotFound(t *testing.T) {
	tr, _ := newUserTracker(t)
	status, err := tr.Status(context.Background(), "never-seen")
	require.NoError(t, err)
	assert.Equal(t, NotFound, status)
}

type failingRepository struct {
	Repository[*UserMessageLog]
}

func (failingRepository) FindByMessageID(ctx context.Context, id string) (*UserMessageLog, error) {
	return nil, errors.New("connection reset")
}

func TestStatusPropagatesStorageErrors(t *testing.T) {
	tr := NewTracker[*UserMessageLog](UserMessages, failingRepository{}, nil)
	_, err := tr.Status(context.Background(), "msg-1")
	assert.ErrorContains(t, err, "connection reset")
}

func TestCreate(t *testing.T) {
	ctx := context.Background()
	tr, _ := newUserTracker(t)
	createUserLog(t, tr, "msg-1", ReadyToPull)

	got, err := tr.Find(ctx, "msg-1")
	require.NoError(t, err)
	assert.Equal(t, clock, got.Received)

	err = tr.Create(ctx, &UserMessageLog{Log: Log{MessageID: "msg-1", Status: Received}})
	assert.ErrorIs(t, err, ErrDuplicateMessage)

	assert.Error(t, tr.Create(ctx, &UserMessageLog{Log: Log{Status: Received}}))
	assert.Error(t, tr.Create(ctx, &UserMessageLog{Log: Log{MessageID: "msg-2", Status: NotFound}}))
}

func TestFindByRole(t *testing.T) {
	ctx := context.Background()
	tr, _ := newUserTracker(t)
	createUserLog(t, tr, "msg-1", Received)

	_, err := tr.FindByRole(ctx, "msg-1", ebms.RoleSending)
	require.NoError(t, err)
	_, err = tr.FindByRole(ctx, "msg-1", ebms.RoleReceiving)
	assert.ErrorIs(t, err, ErrMessageNotFound)
}

type ctxKey struct{}

type ctxRecordingRepository struct {
	*MemoryRepository[*UserMessageLog]
	seen any
}

func (r *ctxRecordingRepository) ApplyStatus(ctx context.Context, id string, u StatusUpdate) error {
	r.seen = ctx.Value(ctxKey{})
	return r.MemoryRepository.ApplyStatus(ctx, id, u)
}

func TestSetIntermediaryPullStatusIsDetached(t *testing.T) {
	repo := &ctxRecordingRepository{MemoryRepository: NewMemoryRepository(UserMessages)}
	tr := NewTracker[*UserMessageLog](UserMessages, repo, nil)
	ctx := context.WithValue(context.Background(), ctxKey{}, "outer-tx")
	require.NoError(t, tr.Create(ctx, &UserMessageLog{Log: Log{MessageID: "msg-1", Status: ReadyToPull}}))

	require.NoError(t, tr.SetStatus(ctx, "msg-1", WaitingForReceipt))
	assert.Equal(t, "outer-tx", repo.seen)

	require.NoError(t, tr.SetIntermediaryPullStatus(ctx, "msg-1"))
	assert.Nil(t, repo.seen)

	status, err := tr.Status(ctx, "msg-1")
	require.NoError(t, err)
	assert.Equal(t, BeingPulled, status)
}

func TestSignalTrackerSharesAlgorithm(t *testing.T) {
	ctx := context.Background()
	tr := NewTracker[*SignalMessageLog](SignalMessages, NewMemoryRepository(SignalMessages), nil)
	require.NoError(t, tr.Create(ctx, &SignalMessageLog{
		Log:            Log{MessageID: "sig-1", MSHRole: ebms.RoleSending, Status: Received},
		RefToMessageID: "msg-1",
	}))
	require.NoError(t, tr.SetAsAcknowledged(ctx, "sig-1"))

	got, err := tr.Find(ctx, "sig-1")
	require.NoError(t, err)
	assert.Equal(t, Acknowledged, got.Status)
	assert.NotNil(t, got.Deleted)
	assert.Equal(t, "msg-1", got.RefToMessageID)

	n, err := tr.Count(ctx, map[string]any{"refToMessageId": "msg-%"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}
