package padsp

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAllocationGroupReleasesLIFO(t *testing.T) {
	var order []int
	var g AllocationGroup

	g.Defer(func() { order = append(order, 1) })
	g.Defer(func() { order = append(order, 2) })
	g.Defer(func() { order = append(order, 3) })

	g.Release()

	assert.Equal(t, []int{3, 2, 1}, order)
}

func TestAllocationGroupReleaseIsIdempotent(t *testing.T) {
	calls := 0
	var g AllocationGroup
	g.Defer(func() { calls++ })

	g.Release()
	g.Release()

	assert.Equal(t, 1, calls)
}

func TestAllocationGroupCommitSuppressesRelease(t *testing.T) {
	calls := 0
	var g AllocationGroup
	g.Defer(func() { calls++ })

	g.Commit()
	g.Release()

	assert.Equal(t, 0, calls)
}
