package embedding

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fakeProvider derives behavior from the submitted texts: "transient" and
// "fatal" markers trigger the matching failure for the whole batch, "wide"
// returns a vector of a different dimension.
type fakeProvider struct {
	mu        sync.Mutex
	calls     int
	failFirst int // fail this many calls transiently before succeeding
}

func (p *fakeProvider) Embed(_ context.Context, texts []string) ([][]float32, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++

	if p.failFirst >= p.calls {
		return nil, Transient(errors.New("rate limited"))
	}

	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		switch {
		case strings.Contains(text, "transient"):
			return nil, Transient(errors.New("rate limited"))
		case strings.Contains(text, "fatal"):
			return nil, Fatal(errors.New("invalid request"))
		case strings.Contains(text, "wide"):
			vectors[i] = []float32{1, 2, 3}
		default:
			vectors[i] = []float32{float32(len(text)), 1}
		}
	}
	return vectors, nil
}

func testConfig() Config {
	return Config{
		BatchSize:         2,
		MaxAttempts:       3,
		InitialBackoff:    time.Millisecond,
		MaxBackoff:        5 * time.Millisecond,
		BackoffMultiplier: 2,
		Concurrency:       2,
	}
}

func newTestBatcher(t *testing.T, provider Provider, cfg Config) *Batcher {
	t.Helper()
	batcher, err := NewBatcher(provider, cfg, zap.NewNop())
	require.NoError(t, err)
	return batcher
}

func items(ids ...string) []Item {
	out := make([]Item, 0, len(ids))
	for _, id := range ids {
		out = append(out, Item{ID: id, Text: "text for " + id})
	}
	return out
}

func TestNewBatcherValidatesConfig(t *testing.T) {
	provider := &fakeProvider{}

	for name, cfg := range map[string]Config{
		"zero batch size":   {MaxAttempts: 1, BackoffMultiplier: 2, Concurrency: 1},
		"zero attempts":     {BatchSize: 2, BackoffMultiplier: 2, Concurrency: 1},
		"small multiplier":  {BatchSize: 2, MaxAttempts: 1, BackoffMultiplier: 0.5, Concurrency: 1},
		"zero concurrency":  {BatchSize: 2, MaxAttempts: 1, BackoffMultiplier: 2},
		"negative text len": {BatchSize: 2, MaxAttempts: 1, BackoffMultiplier: 2, Concurrency: 1, MaxTextLen: -1},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := NewBatcher(provider, cfg, zap.NewNop())
			require.Error(t, err)
		})
	}

	_, err := NewBatcher(nil, testConfig(), zap.NewNop())
	require.Error(t, err)
}

func TestRunEmbedsAllItems(t *testing.T) {
	batcher := newTestBatcher(t, &fakeProvider{}, testConfig())

	result, err := batcher.Run(context.Background(), items("a", "b", "c", "d", "e"))
	require.NoError(t, err)

	assert.Len(t, result.Vectors, 5)
	assert.Empty(t, result.Failures)
	assert.Equal(t, 2, result.Dimension)
}

func TestRunRetriesTransientFailures(t *testing.T) {
	provider := &fakeProvider{failFirst: 2}
	cfg := testConfig()
	cfg.Concurrency = 1
	batcher := newTestBatcher(t, provider, cfg)

	result, err := batcher.Run(context.Background(), items("a", "b"))
	require.NoError(t, err)

	assert.Len(t, result.Vectors, 2)
	assert.Equal(t, 3, provider.calls)
}

func TestRunPartialFailureContainment(t *testing.T) {
	// Batch 2 of 3 fails permanently; items from batches 1 and 3 must
	// still be embedded.
	batcher := newTestBatcher(t, &fakeProvider{}, testConfig())

	input := []Item{
		{ID: "a1", Text: "ok"},
		{ID: "a2", Text: "ok"},
		{ID: "b1", Text: "fatal input"},
		{ID: "b2", Text: "ok"},
		{ID: "c1", Text: "ok"},
	}

	result, err := batcher.Run(context.Background(), input)
	require.NoError(t, err)

	assert.Len(t, result.Vectors, 3)
	for _, id := range []string{"a1", "a2", "c1"} {
		assert.Contains(t, result.Vectors, id)
	}

	require.Len(t, result.Failures, 2)
	failed := map[string]bool{}
	for _, failure := range result.Failures {
		failed[failure.ID] = true
		assert.NotEmpty(t, failure.Reason)
	}
	assert.True(t, failed["b1"] && failed["b2"])
}

func TestRunFailuresSortedByID(t *testing.T) {
	// Single-item batches running concurrently complete in arbitrary
	// order; the failure list must come back sorted all the same.
	cfg := testConfig()
	cfg.BatchSize = 1

	input := []Item{
		{ID: "z", Text: "fatal input"},
		{ID: "a", Text: "ok"},
		{ID: "m", Text: "fatal input"},
		{ID: "c", Text: "fatal input"},
	}

	for i := 0; i < 20; i++ {
		batcher := newTestBatcher(t, &fakeProvider{}, cfg)

		result, err := batcher.Run(context.Background(), input)
		require.NoError(t, err)

		require.Len(t, result.Failures, 3)
		assert.Equal(t, "c", result.Failures[0].ID)
		assert.Equal(t, "m", result.Failures[1].ID)
		assert.Equal(t, "z", result.Failures[2].ID)
	}
}

func TestRunFatalNotRetried(t *testing.T) {
	provider := &fakeProvider{}
	cfg := testConfig()
	cfg.BatchSize = 10
	batcher := newTestBatcher(t, provider, cfg)

	result, err := batcher.Run(context.Background(), []Item{{ID: "x", Text: "fatal input"}})
	require.ErrorIs(t, err, ErrProviderUnavailable)
	assert.Equal(t, 1, provider.calls)
	assert.Len(t, result.Failures, 1)
}

func TestRunTransientExhaustsAttempts(t *testing.T) {
	provider := &fakeProvider{}
	cfg := testConfig()
	cfg.BatchSize = 10
	batcher := newTestBatcher(t, provider, cfg)

	_, err := batcher.Run(context.Background(), []Item{{ID: "x", Text: "transient input"}})
	require.ErrorIs(t, err, ErrProviderUnavailable)
	assert.Equal(t, cfg.MaxAttempts, provider.calls)
}

func TestRunDimensionMismatchFailsBatch(t *testing.T) {
	provider := &fakeProvider{}
	cfg := testConfig()
	cfg.Concurrency = 1
	batcher := newTestBatcher(t, provider, cfg)

	// First batch establishes dimension 2; the "wide" item comes back
	// with dimension 3 and fails its whole batch, unretried.
	input := []Item{
		{ID: "a1", Text: "ok"},
		{ID: "a2", Text: "ok"},
		{ID: "b1", Text: "wide"},
		{ID: "b2", Text: "ok"},
	}

	result, err := batcher.Run(context.Background(), input)
	require.NoError(t, err)

	assert.Len(t, result.Vectors, 2)
	assert.Equal(t, 2, result.Dimension)
	require.Len(t, result.Failures, 2)
	assert.Contains(t, result.Failures[0].Reason, "dimension")
	assert.Equal(t, 2, provider.calls)
}

func TestRunCancelledContext(t *testing.T) {
	batcher := newTestBatcher(t, &fakeProvider{failFirst: 100}, testConfig())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := batcher.Run(ctx, items("a", "b"))
	require.ErrorIs(t, err, context.Canceled)
}

func TestRunEmptyInput(t *testing.T) {
	batcher := newTestBatcher(t, &fakeProvider{}, testConfig())

	result, err := batcher.Run(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, result.Vectors)
}

func TestPartitionPreservesOrder(t *testing.T) {
	input := items("a", "b", "c", "d", "e")

	batches := partition(input, 2)

	require.Len(t, batches, 3)
	assert.Equal(t, "a", batches[0][0].ID)
	assert.Equal(t, "b", batches[0][1].ID)
	assert.Equal(t, "e", batches[2][0].ID)
}

func TestTruncateTextDeterministic(t *testing.T) {
	text := strings.Repeat("résumé ", 100)

	first := truncateText(text, 50)
	second := truncateText(text, 50)

	assert.Equal(t, first, second)
	assert.Equal(t, 50, len([]rune(first)))
	assert.Equal(t, "short", truncateText("short", 50))
	assert.Equal(t, text, truncateText(text, 0))
}
