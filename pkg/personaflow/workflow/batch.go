package workflow

import (
	"context"

	"github.com/randalmurphal/personaflow/pkg/personaflow"
	"golang.org/x/sync/errgroup"
)

// Request is one workflow invocation.
type Request struct {
	Persona personaflow.PersonaType
	Query   string
	Context string
}

// ExecuteBatch runs the requests as independent workflow runs, at most
// MaxConcurrency at a time. Every run has its own task, timeout, and
// client state. Results are returned in request order.
//
// Individual run failures are reported in their Result; only a
// construction error (which would fail every run the same way) aborts
// the batch.
func (o *Orchestrator) ExecuteBatch(ctx context.Context, reqs []Request) ([]*Result, error) {
	results := make([]*Result, len(reqs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.settings.MaxConcurrency)

	for i, req := range reqs {
		g.Go(func() error {
			res, err := o.Execute(gctx, req.Persona, req.Query, req.Context)
			if err != nil {
				return err
			}
			results[i] = res
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
