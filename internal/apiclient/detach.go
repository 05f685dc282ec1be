package apiclient

import (
	"context"
	"time"

	"github.com/truthinlistings/dashboard/internal/logging"
)

// DetachSaveHistory saves an analysis to history as a detached task. The
// save runs on its own goroutine, bounded by SaveTimeout and free of ctx's
// cancellation (ctx contributes only its values, such as forwarded
// cookies). A failure is logged at warn level and never returned to the
// caller. The channel yields the outcome once and is then closed; callers
// in the request path must not wait on it.
func (c *Client) DetachSaveHistory(ctx context.Context, listing ListingInput, result AnalysisResult) <-chan error {
	done := make(chan error, 1)
	base := context.WithoutCancel(ctx)

	c.detached.Add(1)
	go func() {
		defer c.detached.Done()
		defer close(done)

		saveCtx, cancel := context.WithTimeout(base, c.cfg.SaveTimeout)
		defer cancel()

		err := c.SaveHistory(saveCtx, listing, result)
		if err != nil {
			c.logger.Warn("failed to save to history",
				logging.Field{Key: "title", Value: listing.Title},
				logging.Err(err))
		} else {
			c.logger.Debug("saved analysis to history", logging.Field{Key: "title", Value: listing.Title})
		}
		done <- err
	}()
	return done
}

// Wait blocks until every detached save has finished or ctx ends.
func (c *Client) Wait(ctx context.Context) error {
	finished := make(chan struct{})
	go func() {
		c.detached.Wait()
		close(finished)
	}()
	select {
	case <-finished:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// WaitTimeout is Wait with a fixed deadline.
func (c *Client) WaitTimeout(d time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), d)
	defer cancel()
	return c.Wait(ctx)
}
