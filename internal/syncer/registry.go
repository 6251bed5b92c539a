package syncer

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Registry indexes syncers by entity name in registration order.
type Registry struct {
	byName map[string]int
	order  []Syncer
}

// NewRegistry creates a registry.
func NewRegistry(syncers ...Syncer) *Registry {
	r := &Registry{byName: make(map[string]int)}
	for _, s := range syncers {
		r.Register(s)
	}
	return r
}

// Register adds s, replacing any syncer with the same name.
func (r *Registry) Register(s Syncer) {
	if i, ok := r.byName[s.Name()]; ok {
		r.order[i] = s
		return
	}
	r.byName[s.Name()] = len(r.order)
	r.order = append(r.order, s)
}

// Get returns the syncer for entity.
func (r *Registry) Get(entity string) (Syncer, bool) {
	i, ok := r.byName[entity]
	if !ok {
		return nil, false
	}
	return r.order[i], true
}

// All returns every syncer in registration order.
func (r *Registry) All() []Syncer { return append([]Syncer(nil), r.order...) }

// StartupDownload downloads every entity concurrently, starting the i-th
// after i*stagger so the cache writes do not all land at once. Failures are
// logged per entity; the returned results are in registration order.
func (r *Registry) StartupDownload(ctx context.Context, stagger time.Duration, logger *zap.Logger) []DownloadResult {
	results := make([]DownloadResult, len(r.order))
	g, ctx := errgroup.WithContext(ctx)
	for i, s := range r.order {
		i, s := i, s
		g.Go(func() error {
			if d := time.Duration(i) * stagger; d > 0 {
				t := time.NewTimer(d)
				select {
				case <-ctx.Done():
					t.Stop()
					return nil
				case <-t.C:
				}
			}
			res, err := s.Download(ctx)
			if err != nil {
				logger.Warn("startup download failed", zap.String("entity", s.Name()), zap.Error(err))
				res.Entity = s.Name()
			}
			results[i] = res
			return nil
		})
	}
	_ = g.Wait()
	return results
}
