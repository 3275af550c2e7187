package vectorstore

import (
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPutEstablishesDimension(t *testing.T) {
	store := New()

	require.NoError(t, store.Put("a", []float32{1, 2, 3}))
	assert.Equal(t, 3, store.Dimension())

	err := store.Put("b", []float32{1, 2})
	require.ErrorIs(t, err, ErrDimensionMismatch)

	// Rejected put leaves the store unchanged.
	assert.Equal(t, 1, store.Len())
	_, err = store.Get("b")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPutCopiesVector(t *testing.T) {
	store := New()
	vector := []float32{1, 2, 3}

	require.NoError(t, store.Put("a", vector))
	vector[0] = 99

	got, err := store.Get("a")
	require.NoError(t, err)
	assert.Equal(t, float32(1), got[0])
}

func TestResumeLastWriteWins(t *testing.T) {
	store := New()

	_, err := store.Resume()
	require.ErrorIs(t, err, ErrResumeNotSet)

	require.NoError(t, store.SetResume([]float32{1, 0}))
	require.NoError(t, store.SetResume([]float32{0, 1}))

	got, err := store.Resume()
	require.NoError(t, err)
	assert.Equal(t, []float32{0, 1}, got)
}

func TestResumeDimensionChecked(t *testing.T) {
	store := New()

	require.NoError(t, store.Put("a", []float32{1, 2, 3}))

	err := store.SetResume([]float32{1, 2})
	require.ErrorIs(t, err, ErrDimensionMismatch)
}

func TestAllSnapshotIgnoresLaterPuts(t *testing.T) {
	store := New()
	require.NoError(t, store.Put("a", []float32{1}))

	snapshot := store.All()
	require.NoError(t, store.Put("b", []float32{2}))

	assert.Len(t, snapshot, 1)
	assert.Equal(t, 2, store.Len())
}

func TestConcurrentPuts(t *testing.T) {
	store := New()
	const n = 64

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_ = store.Put(fmt.Sprintf("id-%03d", i), []float32{float32(i), 1, 2})
		}(i)
	}
	wg.Wait()

	require.Equal(t, n, store.Len())
	for i := 0; i < n; i++ {
		got, err := store.Get(fmt.Sprintf("id-%03d", i))
		require.NoError(t, err)
		assert.Equal(t, float32(i), got[0])
	}
}

func TestEmptyVectorRejected(t *testing.T) {
	store := New()

	assert.True(t, errors.Is(store.Put("a", nil), ErrEmptyVector))
	assert.True(t, errors.Is(store.SetResume([]float32{}), ErrEmptyVector))
}
