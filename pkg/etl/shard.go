package etl

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"
)

const shardSize = 24 * time.Hour

// WindowFunc processes one [start, end] sub-window. endInclusive tells
// the callee whether the end boundary belongs to this window.
type WindowFunc func(ctx context.Context, start, end time.Time, endInclusive bool) error

// ShardWindow splits [start, end] into fixed 24-hour sub-windows and runs
// fn over each with up to workers in flight. Sub-windows use an exclusive
// end so a record landing exactly on a boundary is processed once; after
// all sub-windows complete, the final chunk runs sequentially with an
// inclusive end so boundary records are not lost.
func ShardWindow(ctx context.Context, start, end time.Time, workers int, fn WindowFunc) error {
	if workers < 1 {
		workers = 1
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	cur := start
	for !cur.Add(shardSize).After(end) {
		shardStart, shardEnd := cur, cur.Add(shardSize)
		g.Go(func() error {
			return fn(gctx, shardStart, shardEnd, false)
		})
		cur = shardEnd
	}
	if err := g.Wait(); err != nil {
		return err
	}

	return fn(ctx, cur, end, true)
}
