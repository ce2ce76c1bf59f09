package datatree

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/leapstack-labs/datatree/pkg/dataset"
	"golang.org/x/sync/errgroup"
)

// Option configures Map.
type Option func(*mapConfig)

type mapConfig struct {
	logger      *slog.Logger
	parallelism int
}

// WithLogger logs one debug line per transformed node.
func WithLogger(logger *slog.Logger) Option {
	return func(c *mapConfig) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithParallelism transforms up to n nodes concurrently. Values below 2 run
// sequentially. The result does not depend on n.
func WithParallelism(n int) Option {
	return func(c *mapConfig) {
		c.parallelism = n
	}
}

// Map applies op to the payload of every node of t and returns a new tree
// with the same names, parent/child structure and child order. Nodes without
// a payload stay without one. t is not modified.
//
// If op fails on any node Map returns a *NodeError wrapping the dataset error
// and no tree.
func Map(t *Tree, op Op, opts ...Option) (*Tree, error) {
	cfg := mapConfig{
		logger:      slog.New(slog.DiscardHandler),
		parallelism: 1,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if op == nil {
		return nil, fmt.Errorf("map: %w: nil operation", dataset.ErrUnsupported)
	}

	fn, err := op.prepare(t)
	if err != nil {
		return nil, err
	}

	out := &Tree{nodes: t.cloneNodes()}
	apply := func(id NodeID) error {
		ds := t.nodes[id].data
		if ds == nil {
			return nil
		}
		res, err := fn(id, ds)
		if err != nil {
			return &NodeError{Path: t.Path(id), Op: op.String(), Err: err}
		}
		out.nodes[id].data = res
		cfg.logger.Debug("applied operation", "op", op.String(), "node", t.Path(id))
		return nil
	}

	order := t.preorder(t.Root())
	if cfg.parallelism < 2 || len(order) < 2 {
		for _, id := range order {
			if err := apply(id); err != nil {
				return nil, err
			}
		}
		return out, nil
	}

	// Each goroutine writes only its own node slot.
	eg, egCtx := errgroup.WithContext(context.Background())
	eg.SetLimit(cfg.parallelism)
	for _, id := range order {
		eg.Go(func() error {
			if egCtx.Err() != nil {
				return nil
			}
			return apply(id)
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
