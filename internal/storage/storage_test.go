package storage

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sirosfoundation/go-as4-gateway/internal/messagelog"
	"github.com/sirosfoundation/go-as4-gateway/internal/storage/mongodb"
	"github.com/sirosfoundation/go-as4-gateway/internal/storage/postgres"
	"github.com/sirosfoundation/go-as4-gateway/pkg/ebms"
)

var (
	_ Store = (*MemoryStore)(nil)
	_ Store = (*mongodb.Store)(nil)
	_ Store = (*postgres.Store)(nil)
)

func TestOpenMemory(t *testing.T) {
	ctx := context.Background()
	for _, driver := range []string{"", DriverMemory} {
		s, err := Open(ctx, Config{Driver: driver}, nil)
		require.NoError(t, err)
		assert.IsType(t, &MemoryStore{}, s)
		assert.NoError(t, s.Ping(ctx))
	}
}

func TestOpenUnknownDriver(t *testing.T) {
	_, err := Open(context.Background(), Config{Driver: "sqlite"}, nil)
	assert.ErrorContains(t, err, `unknown storage driver "sqlite"`)
}

func TestMemoryStoreInTxKeepsWritesOnFailure(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	boom := errors.New("boom")

	err := s.InTx(ctx, func(ctx context.Context) error {
		require.NoError(t, s.UserMessageLogs().Insert(ctx, &messagelog.UserMessageLog{Log: messagelog.Log{
			MessageID: "kept",
			MSHRole:   ebms.RoleReceiving,
			Status:    messagelog.Received,
		}}))
		return boom
	})
	assert.ErrorIs(t, err, boom)

	_, err = s.UserMessageLogs().FindByMessageID(ctx, "kept")
	assert.NoError(t, err)
}

func TestMemoryStoreInTx(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	err := s.InTx(ctx, func(ctx context.Context) error {
		return s.UserMessageLogs().Insert(ctx, &messagelog.UserMessageLog{Log: messagelog.Log{
			MessageID: "m1",
			MSHRole:   ebms.RoleSending,
			Status:    messagelog.ReadyToPull,
		}})
	})
	require.NoError(t, err)

	got, err := s.UserMessageLogs().FindByMessageID(ctx, "m1")
	require.NoError(t, err)
	assert.Equal(t, messagelog.ReadyToPull, got.Status)

	exists, err := s.PModes().Exists(ctx)
	require.NoError(t, err)
	assert.False(t, exists)
}
