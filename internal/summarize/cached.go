package summarize

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/Zuo-Peng/cc-summarize/internal/cache"
)

// Cached consults Store before calling Next and stores what Next returns.
// Failed calls are recorded as failures, never as summaries.
type Cached struct {
	Next  Summarizer
	Store *cache.Store
}

func NewCached(next Summarizer, store *cache.Store) *Cached {
	return &Cached{Next: next, Store: store}
}

func (c *Cached) Summarize(ctx context.Context, req Request) (Result, error) {
	if cfg, ok := c.Next.(Configured); ok {
		req = req.Rekey(cfg.Settings())
	}
	if entry, ok := c.Store.Get(req.Fingerprint); ok {
		var res Result
		if err := entry.Decode(&res); err == nil {
			res.Fingerprint = req.Fingerprint
			res.Cached = true
			res.ToolCalls = CompactToolCalls(req.Turn, req.Mode)
			return res, nil
		}
		log.Debug().Str("fingerprint", req.Fingerprint).Msg("cached payload undecodable, summarizing again")
	}

	res, err := c.Next.Summarize(ctx, req)
	res.Fingerprint = req.Fingerprint
	meta := cache.Meta{Mode: string(req.Mode), SessionID: req.SessionID}
	if err != nil {
		if ctx.Err() == nil {
			if _, ferr := c.Store.PutFailure(req.Fingerprint, meta, err); ferr != nil {
				log.Debug().Err(ferr).Str("fingerprint", req.Fingerprint).Msg("could not record summary failure")
			}
		}
		return res, err
	}

	if _, perr := c.Store.Put(req.Fingerprint, res, meta); perr != nil {
		log.Debug().Err(perr).Str("fingerprint", req.Fingerprint).Msg("could not cache summary")
	}
	return res, nil
}
