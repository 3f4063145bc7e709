package storage

import (
	"context"

	"github.com/sirosfoundation/go-as4-gateway/internal/messagelog"
	"github.com/sirosfoundation/go-as4-gateway/internal/txn"
	"github.com/sirosfoundation/go-as4-gateway/pkg/pmode"
)

// MemoryStore keeps everything in process memory. InTx runs directly: writes
// are not rolled back when fn fails.
type MemoryStore struct {
	pmodes     *pmode.MemoryRepository
	userLogs   *messagelog.MemoryRepository[*messagelog.UserMessageLog]
	signalLogs *messagelog.MemoryRepository[*messagelog.SignalMessageLog]
}

// NewMemoryStore creates an empty store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		pmodes:     pmode.NewMemoryRepository(nil),
		userLogs:   messagelog.NewMemoryRepository(messagelog.UserMessages),
		signalLogs: messagelog.NewMemoryRepository(messagelog.SignalMessages),
	}
}

func (m *MemoryStore) PModes() pmode.Repository { return m.pmodes }

func (m *MemoryStore) UserMessageLogs() messagelog.Repository[*messagelog.UserMessageLog] {
	return m.userLogs
}

func (m *MemoryStore) SignalMessageLogs() messagelog.Repository[*messagelog.SignalMessageLog] {
	return m.signalLogs
}

func (m *MemoryStore) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return txn.Direct.InTx(ctx, fn)
}

func (m *MemoryStore) Close(ctx context.Context) error { return nil }

func (m *MemoryStore) Ping(ctx context.Context) error { return nil }
