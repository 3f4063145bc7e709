package postgres

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/sirosfoundation/go-as4-gateway/internal/messagelog"
	"github.com/sirosfoundation/go-as4-gateway/pkg/ebms"
)

var logColumns = []string{"message_id", "msh_role", "status", "mpc", "received", "downloaded", "deleted", "failed"}

// table maps one record kind onto its columns
type table[R messagelog.Record] struct {
	name    string
	columns []string
	values  func(R) []any
	scan    func(pgx.Row) (R, error)
}

var userMessageTable = table[*messagelog.UserMessageLog]{
	name:    messagelog.UserMessages.Name,
	columns: append(slices.Clone(logColumns), "backend", "endpoint"),
	values: func(r *messagelog.UserMessageLog) []any {
		return append(logValues(&r.Log), r.Backend, r.Endpoint)
	},
	scan: func(row pgx.Row) (*messagelog.UserMessageLog, error) {
		r := &messagelog.UserMessageLog{}
		var role, status string
		err := row.Scan(&r.MessageID, &role, &status, &r.Mpc, &r.Received,
			&r.Downloaded, &r.Deleted, &r.Failed, &r.Backend, &r.Endpoint)
		r.MSHRole, r.Status = ebms.Role(role), messagelog.Status(status)
		return r, err
	},
}

var signalMessageTable = table[*messagelog.SignalMessageLog]{
	name:    messagelog.SignalMessages.Name,
	columns: append(slices.Clone(logColumns), "ref_to_message_id"),
	values: func(r *messagelog.SignalMessageLog) []any {
		return append(logValues(&r.Log), r.RefToMessageID)
	},
	scan: func(row pgx.Row) (*messagelog.SignalMessageLog, error) {
		r := &messagelog.SignalMessageLog{}
		var role, status string
		err := row.Scan(&r.MessageID, &role, &status, &r.Mpc, &r.Received,
			&r.Downloaded, &r.Deleted, &r.Failed, &r.RefToMessageID)
		r.MSHRole, r.Status = ebms.Role(role), messagelog.Status(status)
		return r, err
	},
}

func logValues(l *messagelog.Log) []any {
	return []any{l.MessageID, string(l.MSHRole), string(l.Status), l.Mpc, l.Received.UTC(), l.Downloaded, l.Deleted, l.Failed}
}

// LogRepository stores one kind of message log in a table
type LogRepository[R messagelog.Record] struct {
	store *Store
	table table[R]
}

// Insert implements messagelog.Repository.
func (r *LogRepository[R]) Insert(ctx context.Context, rec R) error {
	placeholders := make([]string, len(r.table.columns))
	for i := range placeholders {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
	}
	sql := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		r.table.name, strings.Join(r.table.columns, ", "), strings.Join(placeholders, ", "))

	_, err := r.store.querier(ctx).Exec(ctx, sql, r.table.values(rec)...)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return messagelog.ErrDuplicateMessage
		}
		return fmt.Errorf("postgres: insert %s: %w", r.table.name, err)
	}
	return nil
}

// FindByMessageID implements messagelog.Repository.
func (r *LogRepository[R]) FindByMessageID(ctx context.Context, messageID string) (R, error) {
	return r.findOne(ctx, "message_id = $1", messageID)
}

// FindByMessageIDAndRole implements messagelog.Repository.
func (r *LogRepository[R]) FindByMessageIDAndRole(ctx context.Context, messageID string, role ebms.Role) (R, error) {
	return r.findOne(ctx, "message_id = $1 AND msh_role = $2", messageID, string(role))
}

func (r *LogRepository[R]) findOne(ctx context.Context, where string, args ...any) (R, error) {
	sql := fmt.Sprintf("SELECT %s FROM %s WHERE %s", strings.Join(r.table.columns, ", "), r.table.name, where)
	rec, err := r.table.scan(r.store.querier(ctx).QueryRow(ctx, sql, args...))
	if err != nil {
		var zero R
		if errors.Is(err, pgx.ErrNoRows) {
			return zero, messagelog.ErrMessageNotFound
		}
		return zero, fmt.Errorf("postgres: find %s: %w", r.table.name, err)
	}
	return rec, nil
}

// ApplyStatus implements messagelog.Repository with one UPDATE statement.
func (r *LogRepository[R]) ApplyStatus(ctx context.Context, messageID string, u messagelog.StatusUpdate) error {
	sql, args := statusUpdateSQL(r.table.name, messageID, u)
	tag, err := r.store.querier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("postgres: update %s status: %w", r.table.name, err)
	}
	if tag.RowsAffected() == 0 {
		return messagelog.ErrMessageNotFound
	}
	return nil
}

// FindPaged implements messagelog.Repository.
func (r *LogRepository[R]) FindPaged(ctx context.Context, q messagelog.Query) ([]R, error) {
	sql, args, err := selectSQL(r.table.name, r.table.columns, q)
	if err != nil {
		return nil, err
	}
	rows, err := r.store.querier(ctx).Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: query %s: %w", r.table.name, err)
	}
	defer rows.Close()

	records := []R{}
	for rows.Next() {
		rec, err := r.table.scan(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan %s: %w", r.table.name, err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// Count implements messagelog.Repository.
func (r *LogRepository[R]) Count(ctx context.Context, preds []messagelog.Predicate) (int64, error) {
	where, args := whereClause(preds, nil)
	var n int64
	err := r.store.querier(ctx).QueryRow(ctx, "SELECT COUNT(*) FROM "+r.table.name+where, args...).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("postgres: count %s: %w", r.table.name, err)
	}
	return n, nil
}

func statusUpdateSQL(tableName, messageID string, u messagelog.StatusUpdate) (string, []any) {
	set := "status = $2"
	args := []any{messageID, string(u.Status)}
	switch u.Stamp {
	case messagelog.StampDownloaded:
		set += ", downloaded = $3"
	case messagelog.StampDeleted:
		set += ", deleted = $3"
	case messagelog.StampFailed:
		set += ", failed = $3"
	}
	if u.Stamp != messagelog.StampNone {
		args = append(args, u.At.UTC())
	}
	return fmt.Sprintf("UPDATE %s SET %s WHERE message_id = $1", tableName, set), args
}

func selectSQL(tableName string, columns []string, q messagelog.Query) (string, []any, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "SELECT %s FROM %s", strings.Join(columns, ", "), tableName)
	where, args := whereClause(q.Predicates, nil)
	b.WriteString(where)

	if q.SortColumn != "" {
		if !slices.Contains(columns, q.SortColumn) {
			return "", nil, fmt.Errorf("%w: sort column %q", messagelog.ErrUnknownField, q.SortColumn)
		}
		dir := "DESC"
		if q.Ascending {
			dir = "ASC"
		}
		fmt.Fprintf(&b, " ORDER BY %s %s", q.SortColumn, dir)
	}
	if q.Limit > 0 {
		args = append(args, q.Limit)
		fmt.Fprintf(&b, " LIMIT $%d", len(args))
	}
	if q.Offset > 0 {
		args = append(args, q.Offset)
		fmt.Fprintf(&b, " OFFSET $%d", len(args))
	}
	return b.String(), args, nil
}

// whereClause renders predicates as a WHERE clause with numbered
// placeholders continuing after args. Column names come from the kind's
// whitelist and are never taken from callers.
func whereClause(preds []messagelog.Predicate, args []any) (string, []any) {
	if len(preds) == 0 {
		return "", args
	}
	conds := make([]string, 0, len(preds))
	for _, p := range preds {
		args = append(args, sqlValue(p.Value))
		conds = append(conds, fmt.Sprintf("%s %s $%d", p.Column, p.Op, len(args)))
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func sqlValue(v any) any {
	switch x := v.(type) {
	case messagelog.Status:
		return string(x)
	case ebms.Role:
		return string(x)
	case time.Time:
		return x.UTC()
	}
	return v
}
