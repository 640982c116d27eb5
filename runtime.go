package timewarp

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// SceneFunc renders eye frames and submits them to the exchange until ctx
// ends or SubmitFrame reports ErrExchangeClosed.
type SceneFunc func(ctx context.Context) error

// RunPair runs the warp scheduler and a scene producer on their own
// goroutines and waits for both.
//
// Cancelling ctx, the scene returning, or the scheduler failing stops
// both: the exchange is closed so a scene blocked in SubmitFrame returns.
// Shutdown errors (ErrExchangeClosed, context cancellation) are not
// reported; the first other error is.
func RunPair(ctx context.Context, s *Scheduler, scene SceneFunc) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)
	stop := context.AfterFunc(gctx, s.exchange.Close)
	defer stop()

	g.Go(func() error {
		return s.Run(gctx)
	})
	g.Go(func() error {
		defer cancel()
		if err := scene(gctx); err != nil && !isShutdown(err) {
			return err
		}
		return nil
	})

	err := g.Wait()
	Logger().Info("timewarp: stopped", "err", err, "ticks", s.ticks.Load(), "warps", s.warps.Load())
	return err
}
