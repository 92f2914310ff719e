package crdt

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVectorClock_Compare(t *testing.T) {
	tests := []struct {
		a        VectorClock
		b        VectorClock
		name     string
		expected Order
	}{
		{
			name:     "both empty",
			a:        VectorClock{},
			b:        VectorClock{},
			expected: Equal,
		},
		{
			name:     "identical",
			a:        VectorClock{"d1": 2, "d2": 1},
			b:        VectorClock{"d1": 2, "d2": 1},
			expected: Equal,
		},
		{
			name:     "missing entry treated as zero",
			a:        VectorClock{"d1": 1},
			b:        VectorClock{"d1": 1, "d2": 0},
			expected: Equal,
		},
		{
			name:     "strictly before",
			a:        VectorClock{"d1": 1, "d2": 1},
			b:        VectorClock{"d1": 2, "d2": 1},
			expected: Before,
		},
		{
			name:     "before via missing device",
			a:        VectorClock{"d1": 1},
			b:        VectorClock{"d1": 1, "d2": 3},
			expected: Before,
		},
		{
			name:     "after",
			a:        VectorClock{"d1": 3, "d2": 1},
			b:        VectorClock{"d1": 2},
			expected: After,
		},
		{
			name:     "concurrent",
			a:        VectorClock{"d1": 2, "d2": 1},
			b:        VectorClock{"d1": 1, "d2": 2},
			expected: Concurrent,
		},
		{
			name:     "concurrent with disjoint devices",
			a:        VectorClock{"d1": 1},
			b:        VectorClock{"d2": 1},
			expected: Concurrent,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.a.Compare(tt.b))
		})
	}
}

func TestVectorClock_Compare_Antisymmetric(t *testing.T) {
	a := VectorClock{"d1": 1, "d2": 4}
	b := VectorClock{"d1": 2, "d2": 5}

	assert.Equal(t, Before, a.Compare(b))
	assert.Equal(t, After, b.Compare(a))

	c := VectorClock{"d1": 3, "d2": 1}
	assert.Equal(t, Concurrent, a.Compare(c))
	assert.Equal(t, Concurrent, c.Compare(a))
}

func TestMerge(t *testing.T) {
	a := VectorClock{"d1": 2, "d2": 1}
	b := VectorClock{"d1": 1, "d2": 2, "d3": 7}

	merged := Merge(a, b)

	assert.Equal(t, VectorClock{"d1": 2, "d2": 2, "d3": 7}, merged)
	assert.True(t, merged.Dominates(a))
	assert.True(t, merged.Dominates(b))

	// Аргументы не изменяются
	assert.Equal(t, VectorClock{"d1": 2, "d2": 1}, a)
	assert.Equal(t, VectorClock{"d1": 1, "d2": 2, "d3": 7}, b)
}

func TestMerge_Properties(t *testing.T) {
	a := VectorClock{"d1": 2, "d2": 1}
	b := VectorClock{"d1": 1, "d3": 4}
	c := VectorClock{"d2": 9}

	t.Run("commutative", func(t *testing.T) {
		assert.Equal(t, Merge(a, b), Merge(b, a))
	})

	t.Run("associative", func(t *testing.T) {
		assert.Equal(t, Merge(Merge(a, b), c), Merge(a, Merge(b, c)))
	})

	t.Run("idempotent", func(t *testing.T) {
		merged := Merge(a, b)
		assert.Equal(t, merged, Merge(merged, a))
		assert.Equal(t, merged, Merge(merged, b))
		assert.Equal(t, merged, Merge(merged, merged))
	})

	t.Run("nil inputs", func(t *testing.T) {
		assert.Equal(t, VectorClock{}, Merge(nil, nil))
		assert.Equal(t, a, Merge(nil, a))
	})
}

func TestVectorClock_Increment(t *testing.T) {
	clock := NewVectorClock()

	next := clock.Increment("d1")
	require.NotNil(t, next)
	assert.Equal(t, int64(1), next.Get("d1"))
	assert.Equal(t, int64(0), clock.Get("d1"), "Increment must not mutate the receiver")

	next = next.Increment("d1").Increment("d2")
	assert.Equal(t, VectorClock{"d1": 2, "d2": 1}, next)
	assert.Equal(t, After, next.Compare(clock))
}

func TestVectorClock_Increment_Monotonicity(t *testing.T) {
	clock := NewVectorClock()

	var previous int64
	for i := 0; i < 100; i++ {
		clock = clock.Increment("d1")
		assert.Greater(t, clock.Get("d1"), previous, "Counter should always increase")
		previous = clock.Get("d1")
	}
}

func TestVectorClock_IsZero(t *testing.T) {
	assert.True(t, VectorClock(nil).IsZero())
	assert.True(t, VectorClock{"d1": 0}.IsZero())
	assert.False(t, VectorClock{"d1": 1}.IsZero())
}

func TestVectorClock_String(t *testing.T) {
	assert.Equal(t, "{}", NewVectorClock().String())
	assert.Equal(t, "{a:1, b:2, c:3}", VectorClock{"c": 3, "a": 1, "b": 2}.String())
}

func TestVectorClock_ConcurrentReads(t *testing.T) {
	shared := VectorClock{"d1": 5, "d2": 3}

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			other := VectorClock{"d1": 4, "d2": 4}
			merged := Merge(shared, other)
			assert.Equal(t, Concurrent, shared.Compare(other))
			assert.True(t, merged.Dominates(shared))
		}()
	}
	wg.Wait()

	assert.Equal(t, VectorClock{"d1": 5, "d2": 3}, shared)
}

func TestOrder_String(t *testing.T) {
	assert.Equal(t, "before", Before.String())
	assert.Equal(t, "after", After.String())
	assert.Equal(t, "equal", Equal.String())
	assert.Equal(t, "concurrent", Concurrent.String())
	assert.Equal(t, "order(42)", Order(42).String())
}
