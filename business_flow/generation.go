package businessflow

import (
	"context"
	"sync/atomic"

	"github.com/printshop-os/pricing-engine/models"
	"github.com/printshop-os/pricing-engine/repository"
)

// GenerationCounter tracks the ruleset generation: a monotonic counter bumped
// by every rule mutation and mixed into every cache key. The durable value
// lives in the sequence_counters table; an in-process mirror serves lock-free
// reads on the calculation path.
//
// The mirror is advanced only after the bumping transaction commits, so a
// rolled-back mutation never moves the visible generation.
type GenerationCounter struct {
	seqRepo repository.SequenceCounterRepository
	current atomic.Uint64
}

// NewGenerationCounter creates a counter backed by the given repository
func NewGenerationCounter(seqRepo repository.SequenceCounterRepository) *GenerationCounter {
	return &GenerationCounter{seqRepo: seqRepo}
}

// Load reads the durable counter into the in-process mirror. Called once at
// boot before traffic is served.
func (g *GenerationCounter) Load(ctx context.Context) error {
	v, err := g.seqRepo.Current(ctx, models.SequenceRulesetGeneration)
	if err != nil {
		return err
	}
	g.current.Store(v)
	return nil
}

// Current returns the mirrored generation
func (g *GenerationCounter) Current() uint64 {
	return g.current.Load()
}

// Next bumps the durable counter and returns the new value. It honors a
// transaction carried in ctx; the caller publishes the value with Set after
// the transaction commits.
func (g *GenerationCounter) Next(ctx context.Context) (uint64, error) {
	return g.seqRepo.Next(ctx, models.SequenceRulesetGeneration)
}

// Set publishes a committed generation to the mirror. Values never move
// backwards; a stale publish under concurrent bumps is ignored.
func (g *GenerationCounter) Set(v uint64) {
	for {
		cur := g.current.Load()
		if v <= cur || g.current.CompareAndSwap(cur, v) {
			return
		}
	}
}
