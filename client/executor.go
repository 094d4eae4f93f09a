package client

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
)

// SingleFunc runs the item at index of a batch.
type SingleFunc func(ctx context.Context, index int, d Descriptor) *Envelope

// Executor runs the items of a batch. Run returns once every item has
// finished, with result i belonging to descriptor i. A failing or panicking
// item yields its own failure envelope and never affects the others.
type Executor interface {
	Run(ctx context.Context, descriptors []Descriptor, fn SingleFunc) []*Envelope
}

// PoolExecutor runs at most MaxWorkers items at a time.
type PoolExecutor struct {
	MaxWorkers int
}

// Run executes every item on the bounded pool.
func (p PoolExecutor) Run(ctx context.Context, descriptors []Descriptor, fn SingleFunc) []*Envelope {
	out := make([]*Envelope, len(descriptors))
	if len(descriptors) == 0 {
		return out
	}

	workers := p.MaxWorkers
	if workers < 1 {
		workers = 1
	}

	var g errgroup.Group
	g.SetLimit(workers)
	for i, d := range descriptors {
		g.Go(func() error {
			out[i] = runItem(ctx, i, d, fn)
			return nil
		})
	}
	_ = g.Wait()
	return out
}

// SequentialExecutor runs items one after another in input order.
type SequentialExecutor struct{}

// Run executes every item on the calling goroutine.
func (SequentialExecutor) Run(ctx context.Context, descriptors []Descriptor, fn SingleFunc) []*Envelope {
	out := make([]*Envelope, len(descriptors))
	for i, d := range descriptors {
		out[i] = runItem(ctx, i, d, fn)
	}
	return out
}

func runItem(ctx context.Context, i int, d Descriptor, fn SingleFunc) (env *Envelope) {
	defer func() {
		if r := recover(); r != nil {
			env = failure(CodeUnexpected, fmt.Sprintf("unexpected error: %v", r))
		}
	}()
	env = fn(ctx, i, d)
	if env == nil {
		env = failure(CodeUnexpected, "unexpected error: no envelope produced")
	}
	return env
}

var (
	_ Executor = PoolExecutor{}
	_ Executor = SequentialExecutor{}
)
