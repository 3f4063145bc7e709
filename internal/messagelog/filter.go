package messagelog

import (
	"errors"
	"fmt"
	"maps"
	"regexp"
	"slices"
	"strings"
	"time"
)

// Filter keys selecting an inclusive range on the received timestamp
const (
	ReceivedFrom = "receivedFrom"
	ReceivedTo   = "receivedTo"
)

// ErrUnknownField is returned for a filter or sort field the kind does not expose
var ErrUnknownField = errors.New("unknown message log field")

// Operator is the comparison of a Predicate
type Operator int

const (
	OpEqual Operator = iota
	OpLike
	OpGreaterOrEqual
	OpLessOrEqual
)

func (o Operator) String() string {
	switch o {
	case OpEqual:
		return "="
	case OpLike:
		return "LIKE"
	case OpGreaterOrEqual:
		return ">="
	case OpLessOrEqual:
		return "<="
	}
	return fmt.Sprintf("Operator(%d)", int(o))
}

// Predicate is a backend-neutral condition on one column
type Predicate struct {
	Column string
	Op     Operator
	Value  any
}

// Column maps a filter field onto a storage column
type Column[R Record] struct {
	Name string
	Get  func(R) any
}

// Kind describes one concrete log type to the generic tracker and repositories
type Kind[R Record] struct {
	// Name is the collection or table holding the records
	Name    string
	New     func() R
	Clone   func(R) R
	Columns map[string]Column[R]
}

// Column returns the storage column of a filter field.
func (k Kind[R]) Column(field string) (Column[R], error) {
	c, ok := k.Columns[field]
	if !ok {
		return Column[R]{}, fmt.Errorf("%w: %q", ErrUnknownField, field)
	}
	return c, nil
}

// Predicates converts filters into predicates. A string is a LIKE pattern,
// a time under ReceivedFrom or ReceivedTo bounds the received column and any
// other value must match exactly. Nil, empty and zero values are ignored.
func (k Kind[R]) Predicates(filters map[string]any) ([]Predicate, error) {
	var preds []Predicate
	for _, field := range slices.Sorted(maps.Keys(filters)) {
		value := filters[field]
		if isEmpty(value) {
			continue
		}
		switch field {
		case ReceivedFrom, ReceivedTo:
			t, ok := value.(time.Time)
			if !ok {
				return nil, fmt.Errorf("filter %s requires a time, got %T", field, value)
			}
			op := OpGreaterOrEqual
			if field == ReceivedTo {
				op = OpLessOrEqual
			}
			preds = append(preds, Predicate{Column: k.Columns["received"].Name, Op: op, Value: t})
			continue
		}

		c, err := k.Column(field)
		if err != nil {
			return nil, err
		}
		if s, ok := value.(string); ok {
			preds = append(preds, Predicate{Column: c.Name, Op: OpLike, Value: s})
			continue
		}
		preds = append(preds, Predicate{Column: c.Name, Op: OpEqual, Value: value})
	}
	return preds, nil
}

func isEmpty(v any) bool {
	switch x := v.(type) {
	case nil:
		return true
	case string:
		return x == ""
	case time.Time:
		return x.IsZero()
	case *time.Time:
		return x == nil || x.IsZero()
	}
	return false
}

// LikePattern translates a LIKE pattern into an anchored regular expression:
// % matches any run of characters and _ matches exactly one.
func LikePattern(pattern string) string {
	var b strings.Builder
	b.WriteString("^")
	for _, r := range pattern {
		switch r {
		case '%':
			b.WriteString(".*")
		case '_':
			b.WriteString(".")
		default:
			b.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	b.WriteString("$")
	return b.String()
}
