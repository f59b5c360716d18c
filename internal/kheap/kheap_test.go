package kheap

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAllocTwoSmallObjectsDiffer(t *testing.T) {
	a, err := NewAllocator(64*1024, nil)
	require.NoError(t, err)

	p0, ok := a.Alloc(16, 8)
	require.True(t, ok)
	p1, ok := a.Alloc(16, 8)
	require.True(t, ok)
	assert.Equal(t, uint32(16), p1-p0)
}

func TestDeallocReallocIsLIFOWithinASlab(t *testing.T) {
	a, err := NewAllocator(64*1024, nil)
	require.NoError(t, err)

	p0, _ := a.Alloc(16, 8)
	_, _ = a.Alloc(16, 8)

	a.Dealloc(p0, 16)
	p2, ok := a.Alloc(16, 8)
	require.True(t, ok)
	assert.Equal(t, p0, p2)
}

func TestLargeAllocationBypassesToPages(t *testing.T) {
	// 4 pages remaining: two 5000-byte (2-page) allocations succeed, a
	// third fails — spec.md §8 scenario 6.
	a, err := NewAllocator(4*4096, nil)
	require.NoError(t, err)

	_, ok := a.Alloc(5000, 8)
	require.True(t, ok)
	_, ok = a.Alloc(5000, 8)
	require.True(t, ok)
	_, ok = a.Alloc(5000, 8)
	assert.False(t, ok, "third 5000-byte allocation should fail: arena exhausted")
}

func TestDeallocOfLargeAllocationIsANoop(t *testing.T) {
	a, err := NewAllocator(4*4096, nil)
	require.NoError(t, err)

	p, ok := a.Alloc(5000, 8)
	require.True(t, ok)

	assert.NotPanics(t, func() { a.Dealloc(p, 5000) })
}

func TestConcurrentAllocDeallocIsSafe(t *testing.T) {
	a, err := NewAllocator(1024*1024, nil)
	require.NoError(t, err)

	var wg sync.WaitGroup
	results := make([][]uint32, 16)
	for g := 0; g < 16; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			ptrs := make([]uint32, 0, 32)
			for i := 0; i < 32; i++ {
				p, ok := a.Alloc(32, 8)
				if ok {
					ptrs = append(ptrs, p)
				}
			}
			for _, p := range ptrs {
				a.Dealloc(p, 32)
			}
			results[g] = ptrs
		}(g)
	}
	wg.Wait()

	for _, ptrs := range results {
		assert.Len(t, ptrs, 32)
	}
}

func TestAllocZeroSizePanics(t *testing.T) {
	a, err := NewAllocator(4096, nil)
	require.NoError(t, err)

	assert.Panics(t, func() { a.Alloc(0, 8) })
}
