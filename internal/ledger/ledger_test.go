package ledger

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeductAndAdd(t *testing.T) {
	t.Parallel()

	s, err := New(100)
	require.NoError(t, err)

	require.NoError(t, s.Deduct(40))
	assert.Equal(t, int64(60), s.Chips())

	require.NoError(t, s.Add(15))
	assert.Equal(t, int64(75), s.Chips())
}

func TestOverdrawRejectedWithoutMutation(t *testing.T) {
	t.Parallel()

	s, err := New(50)
	require.NoError(t, err)

	chips, version := s.Snapshot()
	assert.ErrorIs(t, s.Deduct(51), ErrInsufficientChips)

	afterChips, afterVersion := s.Snapshot()
	assert.Equal(t, chips, afterChips, "failed deduct must not change the stack")
	assert.Equal(t, version, afterVersion, "failed deduct must not bump the version")
}

func TestNegativeAmountsRejected(t *testing.T) {
	t.Parallel()

	s, err := New(10)
	require.NoError(t, err)
	assert.ErrorIs(t, s.Deduct(-1), ErrInvalidAmount)
	assert.ErrorIs(t, s.Add(-1), ErrInvalidAmount)

	_, err = New(-5)
	assert.ErrorIs(t, err, ErrInvalidAmount)
}

func TestVersionIncrementsPerMutation(t *testing.T) {
	t.Parallel()

	s, err := New(10)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), s.Version())

	require.NoError(t, s.Deduct(5))
	require.NoError(t, s.Add(5))
	require.NoError(t, s.Deduct(0))
	assert.Equal(t, uint64(3), s.Version())
}

func TestConcurrentDeductsNeverOverdraw(t *testing.T) {
	t.Parallel()

	const stack = 50
	const callers = 200

	s, err := New(stack)
	require.NoError(t, err)

	var wg sync.WaitGroup
	var mu sync.Mutex
	successes := 0

	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if s.Deduct(1) == nil {
				mu.Lock()
				successes++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	// Exactly as many deductions as the stack could cover, never negative.
	assert.Equal(t, stack, successes)
	assert.Equal(t, int64(0), s.Chips())
}
