package engine_test

import (
	"testing"

	"github.com/castellan-labs/disburse/pkg/engine"

	"github.com/stretchr/testify/assert"
)

func TestSystemBlockSource_HeightNeverRewinds(t *testing.T) {
	src := engine.NewSystemBlockSource(10)

	src.ObserveHeight(15)
	assert.Equal(t, uint64(15), src.Current().Height)

	// A lagging feed must not rewind the oracle.
	src.ObserveHeight(12)
	assert.Equal(t, uint64(15), src.Current().Height)

	src.ObserveHeight(16)
	assert.Equal(t, uint64(16), src.Current().Height)
	assert.False(t, src.Current().Time.IsZero())
}
