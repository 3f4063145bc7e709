package messagelog

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sirosfoundation/go-as4-gateway/pkg/ebms"
)

func TestPredicates(t *testing.T) {
	from := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)

	preds, err := UserMessages.Predicates(map[string]any{
		"messageId":     "abc%",
		"messageStatus": Acknowledged,
		"mshRole":       ebms.RoleSending,
		ReceivedFrom:    from,
		ReceivedTo:      to,
		"backend":       "",
		"endpoint":      nil,
		"deleted":       time.Time{},
	})
	require.NoError(t, err)
	assert.Equal(t, []Predicate{
		{Column: "message_id", Op: OpLike, Value: "abc%"},
		{Column: "status", Op: OpEqual, Value: Acknowledged},
		{Column: "msh_role", Op: OpEqual, Value: ebms.RoleSending},
		{Column: "received", Op: OpGreaterOrEqual, Value: from},
		{Column: "received", Op: OpLessOrEqual, Value: to},
	}, preds)
}

func TestPredicatesRejectsUnknownField(t *testing.T) {
	_, err := UserMessages.Predicates(map[string]any{"password": "x"})
	assert.ErrorIs(t, err, ErrUnknownField)

	_, err = UserMessages.Predicates(map[string]any{"refToMessageId": "x"})
	assert.ErrorIs(t, err, ErrUnknownField)

	_, err = UserMessages.Predicates(map[string]any{ReceivedFrom: "yesterday"})
	assert.Error(t, err)
}

func TestLikePattern(t *testing.T) {
	tests := []struct {
		pattern string
		want    string
	}{
		{"abc", `^abc$`},
		{"abc%", `^abc.*$`},
		{"a_c", `^a.c$`},
		{"a.b%", `^a\.b.*$`},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, LikePattern(tt.pattern))
	}
}

func seedLogs(t *testing.T) *Tracker[*UserMessageLog] {
	t.Helper()
	tr, _ := newUserTracker(t)
	ctx := context.Background()
	base := time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)
	logs := []*UserMessageLog{
		{Log: Log{MessageID: "order-1", MSHRole: ebms.RoleSending, Status: Acknowledged, Received: base}, Backend: "ws"},
		{Log: Log{MessageID: "order-2", MSHRole: ebms.RoleSending, Status: SendFailure, Received: base.Add(24 * time.Hour)}, Backend: "ws"},
		{Log: Log{MessageID: "invoice-1", MSHRole: ebms.RoleReceiving, Status: Received, Received: base.Add(48 * time.Hour)}, Backend: "fs"},
		{Log: Log{MessageID: "invoice-2", MSHRole: ebms.RoleReceiving, Status: Downloaded, Received: base.Add(72 * time.Hour)}, Backend: "fs"},
	}
	for _, l := range logs {
		require.NoError(t, tr.Create(ctx, l))
	}
	return tr
}

func ids(logs []*UserMessageLog) []string {
	out := make([]string, 0, len(logs))
	for _, l := range logs {
		out = append(out, l.MessageID)
	}
	return out
}

func TestFindPaged(t *testing.T) {
	ctx := context.Background()
	tr := seedLogs(t)

	all, err := tr.FindPaged(ctx, 0, 10, "", false, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"invoice-2", "invoice-1", "order-2", "order-1"}, ids(all))

	page, err := tr.FindPaged(ctx, 1, 2, "messageId", true, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"invoice-2", "order-1"}, ids(page))

	orders, err := tr.FindPaged(ctx, 0, 10, "received", true, map[string]any{"messageId": "order-%"})
	require.NoError(t, err)
	assert.Equal(t, []string{"order-1", "order-2"}, ids(orders))

	failed, err := tr.FindPaged(ctx, 0, 10, "", false, map[string]any{"messageStatus": SendFailure})
	require.NoError(t, err)
	assert.Equal(t, []string{"order-2"}, ids(failed))

	window, err := tr.FindPaged(ctx, 0, 10, "received", true, map[string]any{
		ReceivedFrom: time.Date(2024, 1, 11, 0, 0, 0, 0, time.UTC),
		ReceivedTo:   time.Date(2024, 1, 12, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"order-2", "invoice-1"}, ids(window), "bounds are inclusive")

	beyond, err := tr.FindPaged(ctx, 10, 10, "", false, nil)
	require.NoError(t, err)
	assert.Empty(t, beyond)

	_, err = tr.FindPaged(ctx, 0, 10, "secret", true, nil)
	assert.ErrorIs(t, err, ErrUnknownField)
}

func TestCount(t *testing.T) {
	ctx := context.Background()
	tr := seedLogs(t)

	n, err := tr.Count(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(4), n)

	n, err = tr.Count(ctx, map[string]any{"backend": "fs", "mshRole": ebms.RoleReceiving})
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	n, err = tr.Count(ctx, map[string]any{"messageId": "invoice-_", "backend": ""})
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}

func TestCompileLikes(t *testing.T) {
	preds := []Predicate{
		{Column: "backend", Op: OpEqual, Value: "fs"},
		{Column: "message_id", Op: OpLike, Value: "order-%"},
		{Column: "received", Op: OpGreaterOrEqual, Value: time.Now()},
		{Column: "mpc", Op: OpLike, Value: "mpc_"},
	}

	likes := compileLikes(preds)
	require.Len(t, likes, len(preds))
	assert.Nil(t, likes[0])
	assert.Nil(t, likes[2])
	require.NotNil(t, likes[1])
	assert.Equal(t, `^order-.*$`, likes[1].String())
	require.NotNil(t, likes[3])
	assert.True(t, likes[3].MatchString("mpc1"))
	assert.False(t, likes[3].MatchString("mpc12"))
}

func TestLikeFilterAcrossManyRecords(t *testing.T) {
	ctx := context.Background()
	tr, _ := newUserTracker(t)
	for i := range 50 {
		backend := "ws"
		if i%2 == 0 {
			backend = "fs"
		}
		require.NoError(t, tr.Create(ctx, &UserMessageLog{
			Log:     Log{MessageID: fmt.Sprintf("batch-%02d", i), MSHRole: ebms.RoleReceiving, Status: Received},
			Backend: backend,
		}))
	}

	tests := []struct {
		name    string
		filters map[string]any
		want    int64
	}{
		{"prefix", map[string]any{"messageId": "batch-%"}, 50},
		{"single character", map[string]any{"messageId": "batch-0_"}, 10},
		{"two patterns", map[string]any{"messageId": "batch-1_", "backend": "fs"}, 5},
		{"no match", map[string]any{"messageId": "order-%"}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n, err := tr.Count(ctx, tt.filters)
			require.NoError(t, err)
			assert.Equal(t, tt.want, n)
		})
	}
}
