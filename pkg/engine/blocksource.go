package engine

import (
	"sync/atomic"
	"time"

	"github.com/castellan-labs/disburse/pkg/schedule"
)

// BlockSource is the time/height oracle supplying the reference Sweep
// evaluates triggers against.
type BlockSource interface {
	Current() schedule.BlockRef
}

// SystemBlockSource reads wall-clock time and a height fed in externally
// (e.g. from a chain listener). Height only ever advances.
type SystemBlockSource struct {
	height atomic.Uint64
}

var _ BlockSource = (*SystemBlockSource)(nil)

func NewSystemBlockSource(initialHeight uint64) *SystemBlockSource {
	s := &SystemBlockSource{}
	s.height.Store(initialHeight)
	return s
}

// ObserveHeight records a newly observed chain height; lower values are
// ignored so a lagging feed can never rewind the oracle.
func (s *SystemBlockSource) ObserveHeight(h uint64) {
	for {
		cur := s.height.Load()
		if h <= cur {
			return
		}
		if s.height.CompareAndSwap(cur, h) {
			return
		}
	}
}

func (s *SystemBlockSource) Current() schedule.BlockRef {
	return schedule.BlockRef{
		Height: s.height.Load(),
		Time:   time.Now().UTC(),
	}
}

// FixedBlockSource returns a constant reference; used in tests and demos.
type FixedBlockSource schedule.BlockRef

func (f FixedBlockSource) Current() schedule.BlockRef {
	return schedule.BlockRef(f)
}
