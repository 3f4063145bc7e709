// Package txn carries units of work through contexts.
package txn

import (
	"context"
	"time"
)

// Runner executes fn inside one unit of work. Storage backends bind the
// transaction to the context passed to fn.
type Runner interface {
	InTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// RunnerFunc adapts a function to Runner
type RunnerFunc func(ctx context.Context, fn func(ctx context.Context) error) error

// InTx implements Runner.
func (f RunnerFunc) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return f(ctx, fn)
}

// Direct runs fn without a transaction
var Direct Runner = RunnerFunc(func(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
})

// Detach returns a context that keeps the deadline and cancellation of
// parent but none of its values. Writes issued with it never join a
// transaction or session bound to parent and commit on their own.
func Detach(parent context.Context) context.Context {
	return detached{parent: parent}
}

type detached struct {
	parent context.Context
}

func (d detached) Deadline() (time.Time, bool) { return d.parent.Deadline() }
func (d detached) Done() <-chan struct{}       { return d.parent.Done() }
func (d detached) Err() error                  { return d.parent.Err() }
func (d detached) Value(key any) any           { return nil }
