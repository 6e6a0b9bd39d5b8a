package tasks

import (
	"context"
	"fmt"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"mediashare/internal/metrics"
	"mediashare/internal/storage"
)

// ReferenceChecker reports which stored URLs are still used by catalog rows.
type ReferenceChecker interface {
	ReferencedPaths(ctx context.Context, paths []string) (map[string]bool, error)
}

type Processor struct {
	refs   ReferenceChecker
	store  storage.Store
	prefix string
	grace  time.Duration
	clock  clock.Clock
	logger zerolog.Logger
}

func NewProcessor(refs ReferenceChecker, store storage.Store, prefix string, grace time.Duration, clk clock.Clock, logger zerolog.Logger) *Processor {
	if clk == nil {
		clk = clock.New()
	}
	return &Processor{
		refs:   refs,
		store:  store,
		prefix: prefix,
		grace:  grace,
		clock:  clk,
		logger: logger,
	}
}

func (p *Processor) Handle(ctx context.Context, msg redis.XMessage) error {
	task, err := Decode(msg.Values)
	if err != nil {
		return err
	}

	switch task.Type {
	case TypeCleanup:
		removed, err := p.SweepOrphans(ctx)
		metrics.RecordTask(task.Type, err)
		if err != nil {
			return fmt.Errorf("orphan sweep: %w", err)
		}
		p.logger.Info().
			Str("task_id", task.ID).
			Int("removed", removed).
			Msg("orphan sweep finished")
		return nil
	default:
		p.logger.Warn().Str("type", task.Type).Str("task_id", task.ID).Msg("unknown task type")
		return nil
	}
}

// SweepOrphans deletes stored files that no catalog row references and that are older
// than the grace period. Younger files may belong to an upload still in flight.
func (p *Processor) SweepOrphans(ctx context.Context) (int, error) {
	objects, err := p.store.List(ctx)
	if err != nil {
		return 0, fmt.Errorf("list stored files: %w", err)
	}

	cutoff := p.clock.Now().Add(-p.grace)
	candidates := make([]storage.Object, 0, len(objects))
	paths := make([]string, 0, len(objects))
	for _, obj := range objects {
		if obj.ModTime.After(cutoff) {
			continue
		}
		candidates = append(candidates, obj)
		paths = append(paths, storage.URLFor(p.prefix, obj.Name))
	}
	if len(candidates) == 0 {
		return 0, nil
	}

	referenced, err := p.refs.ReferencedPaths(ctx, paths)
	if err != nil {
		return 0, fmt.Errorf("load references: %w", err)
	}

	removed := 0
	for i, obj := range candidates {
		if referenced[paths[i]] {
			continue
		}
		if err := p.store.Delete(ctx, obj.Name); err != nil {
			p.logger.Error().Err(err).Str("path", obj.Name).Msg("delete orphan failed")
			continue
		}
		removed++
		p.logger.Debug().Str("path", obj.Name).Msg("orphan removed")
	}
	metrics.OrphansRemovedTotal.Add(float64(removed))
	return removed, nil
}
