package messagelog

import (
	"cmp"
	"context"
	"reflect"
	"regexp"
	"slices"
	"sync"
	"time"

	"github.com/sirosfoundation/go-as4-gateway/pkg/ebms"
)

// MemoryRepository keeps message logs in process memory. Records are copied
// on the way in and out.
type MemoryRepository[R Record] struct {
	kind    Kind[R]
	getters map[string]func(R) any

	mu      sync.Mutex
	records map[string]R
	order   []string
}

// NewMemoryRepository creates an empty repository for kind
func NewMemoryRepository[R Record](kind Kind[R]) *MemoryRepository[R] {
	getters := make(map[string]func(R) any, len(kind.Columns))
	for _, c := range kind.Columns {
		getters[c.Name] = c.Get
	}
	return &MemoryRepository[R]{
		kind:    kind,
		getters: getters,
		records: make(map[string]R),
	}
}

// Insert implements Repository.
func (m *MemoryRepository[R]) Insert(ctx context.Context, r R) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := r.Base().MessageID
	if _, exists := m.records[id]; exists {
		return ErrDuplicateMessage
	}
	m.records[id] = m.kind.Clone(r)
	m.order = append(m.order, id)
	return nil
}

// FindByMessageID implements Repository.
func (m *MemoryRepository[R]) FindByMessageID(ctx context.Context, messageID string) (R, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.records[messageID]
	if !ok {
		var zero R
		return zero, ErrMessageNotFound
	}
	return m.kind.Clone(r), nil
}

// FindByMessageIDAndRole implements Repository.
func (m *MemoryRepository[R]) FindByMessageIDAndRole(ctx context.Context, messageID string, role ebms.Role) (R, error) {
	r, err := m.FindByMessageID(ctx, messageID)
	if err != nil {
		return r, err
	}
	if r.Base().MSHRole != role {
		var zero R
		return zero, ErrMessageNotFound
	}
	return r, nil
}

// ApplyStatus implements Repository.
func (m *MemoryRepository[R]) ApplyStatus(ctx context.Context, messageID string, u StatusUpdate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.records[messageID]
	if !ok {
		return ErrMessageNotFound
	}
	updated := m.kind.Clone(r)
	updated.Base().Apply(u)
	m.records[messageID] = updated
	return nil
}

// FindPaged implements Repository.
func (m *MemoryRepository[R]) FindPaged(ctx context.Context, q Query) ([]R, error) {
	m.mu.Lock()
	matched := m.match(q.Predicates)
	m.mu.Unlock()

	if get, ok := m.getters[q.SortColumn]; ok {
		slices.SortStableFunc(matched, func(a, b R) int {
			c := compareValues(get(a), get(b))
			if !q.Ascending {
				c = -c
			}
			return c
		})
	}

	if q.Offset >= len(matched) {
		return []R{}, nil
	}
	matched = matched[q.Offset:]
	if q.Limit > 0 && q.Limit < len(matched) {
		matched = matched[:q.Limit]
	}
	return matched, nil
}

// Count implements Repository.
func (m *MemoryRepository[R]) Count(ctx context.Context, preds []Predicate) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.match(preds))), nil
}

func (m *MemoryRepository[R]) match(preds []Predicate) []R {
	likes := compileLikes(preds)
	var out []R
	for _, id := range m.order {
		r := m.records[id]
		ok := true
		for i, p := range preds {
			get, known := m.getters[p.Column]
			if !known || !evaluate(deref(get(r)), p, likes[i]) {
				ok = false
				break
			}
		}
		if ok {
			out = append(out, m.kind.Clone(r))
		}
	}
	return out
}

// compileLikes returns the regexp of every LIKE predicate, indexed as preds.
func compileLikes(preds []Predicate) []*regexp.Regexp {
	likes := make([]*regexp.Regexp, len(preds))
	for i, p := range preds {
		if p.Op != OpLike {
			continue
		}
		pattern, _ := p.Value.(string)
		likes[i] = regexp.MustCompile(LikePattern(pattern))
	}
	return likes
}

func evaluate(v any, p Predicate, like *regexp.Regexp) bool {
	switch p.Op {
	case OpLike:
		s, ok := stringValue(v)
		return ok && like.MatchString(s)
	case OpEqual:
		return equalValues(v, p.Value)
	case OpGreaterOrEqual, OpLessOrEqual:
		t, ok := v.(time.Time)
		bound, bok := p.Value.(time.Time)
		if !ok || !bok || t.IsZero() {
			return false
		}
		if p.Op == OpGreaterOrEqual {
			return !t.Before(bound)
		}
		return !t.After(bound)
	}
	return false
}

func deref(v any) any {
	if t, ok := v.(*time.Time); ok {
		if t == nil {
			return nil
		}
		return *t
	}
	return v
}

func stringValue(v any) (string, bool) {
	if v == nil {
		return "", false
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.String {
		return rv.String(), true
	}
	return "", false
}

func equalValues(a, b any) bool {
	if sa, ok := stringValue(a); ok {
		sb, ok := stringValue(b)
		return ok && sa == sb
	}
	if ta, ok := a.(time.Time); ok {
		tb, ok := b.(time.Time)
		return ok && ta.Equal(tb)
	}
	return reflect.DeepEqual(a, deref(b))
}

func compareValues(a, b any) int {
	a, b = deref(a), deref(b)
	if sa, ok := stringValue(a); ok {
		sb, _ := stringValue(b)
		return cmp.Compare(sa, sb)
	}
	ta, aok := a.(time.Time)
	tb, bok := b.(time.Time)
	switch {
	case aok && bok:
		return ta.Compare(tb)
	case aok:
		return 1
	case bok:
		return -1
	}
	return 0
}
