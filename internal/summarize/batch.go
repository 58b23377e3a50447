package summarize

import (
	"context"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/Zuo-Peng/cc-summarize/internal/turn"
)

const DefaultConcurrency = 4

// Batch summarizes turns with at most concurrency calls in flight. Results
// are in turn order; a failed turn carries its error in Result.Err and does
// not stop the others.
func Batch(ctx context.Context, s Summarizer, turns []turn.Turn, mode Mode, concurrency int) []Result {
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	results := make([]Result, len(turns))

	var g errgroup.Group
	g.SetLimit(concurrency)
	for i := range turns {
		i := i
		g.Go(func() error {
			req := NewRequest(&turns[i], mode)
			if err := ctx.Err(); err != nil {
				results[i] = Result{Fingerprint: req.Fingerprint, Err: err}
				return nil
			}
			res, err := s.Summarize(ctx, req)
			if err != nil {
				log.Warn().Err(err).Int("turn", i+1).Str("session", req.SessionID).Msg("summary failed")
				res.Err = err
				if res.ToolCalls == nil {
					res.ToolCalls = CompactToolCalls(&turns[i], mode)
				}
			}
			if res.Fingerprint == "" {
				res.Fingerprint = req.Fingerprint
			}
			results[i] = res
			return nil
		})
	}
	_ = g.Wait()
	return results
}
