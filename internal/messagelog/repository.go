package messagelog

import (
	"context"
	"errors"

	"github.com/sirosfoundation/go-as4-gateway/pkg/ebms"
)

var (
	// ErrMessageNotFound is returned when no log exists for a message id
	ErrMessageNotFound = errors.New("message log not found")

	// ErrDuplicateMessage is returned when a log already exists for a message id
	ErrDuplicateMessage = errors.New("message log already exists")
)

// Query selects a page of records
type Query struct {
	Predicates []Predicate
	Offset     int
	Limit      int
	// SortColumn is a storage column name, empty for backend order
	SortColumn string
	Ascending  bool
}

// Repository stores one kind of message log.
//
// ApplyStatus must read and write the record as one atomic operation so two
// concurrent transitions of the same message cannot interleave.
type Repository[R Record] interface {
	Insert(ctx context.Context, r R) error
	FindByMessageID(ctx context.Context, messageID string) (R, error)
	FindByMessageIDAndRole(ctx context.Context, messageID string, role ebms.Role) (R, error)
	ApplyStatus(ctx context.Context, messageID string, u StatusUpdate) error
	FindPaged(ctx context.Context, q Query) ([]R, error)
	Count(ctx context.Context, preds []Predicate) (int64, error)
}
