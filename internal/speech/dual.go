package speech

import (
	"context"
	"os"
	"path/filepath"

	"golang.org/x/sync/errgroup"

	"avatarpipe/internal/pkg/errors"
)

// Dual is the pair of takes a reviewer chooses between.
type Dual struct {
	Stable     Output
	Expressive Output
}

// DualPaths returns the Option A and Option B paths for a base path without
// extension.
func DualPaths(basePath string) (stable, expressive string) {
	dir, stem := filepath.Dir(basePath), filepath.Base(basePath)
	return filepath.Join(dir, stem+"_OptionA.mp3"), filepath.Join(dir, stem+"_OptionB.mp3")
}

// SynthesizeDual produces the Stable and Expressive takes concurrently. Both
// succeed or the call fails; on failure the take this call wrote is removed.
// Files it did not write, such as takes from an earlier run, are left alone.
func (c *Client) SynthesizeDual(ctx context.Context, text, basePath string) (Dual, error) {
	stablePath, expressivePath := DualPaths(basePath)

	var dual Dual
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		out, err := c.Synthesize(gctx, text, stablePath, Stable)
		if err != nil {
			return err
		}
		dual.Stable = out
		return nil
	})
	g.Go(func() error {
		out, err := c.Synthesize(gctx, text, expressivePath, Expressive)
		if err != nil {
			return err
		}
		dual.Expressive = out
		return nil
	})

	if err := g.Wait(); err != nil {
		// Wait orders the writes above before these reads.
		for _, out := range []Output{dual.Stable, dual.Expressive} {
			if out.Path == "" {
				continue
			}
			if rmErr := os.Remove(out.Path); rmErr == nil {
				c.log.FromContext(ctx).Warn("removed orphaned take", "path", out.Path)
			}
		}
		return Dual{}, errors.Wrap(err, "speech.dual", "dual synthesis failed")
	}
	return dual, nil
}
