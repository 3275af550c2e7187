package embedding

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/cgruenke/jobrank/internal/utils"
)

// ErrProviderUnavailable is returned when every batch of a run failed; the
// provider is considered down and there is nothing to rank.
var ErrProviderUnavailable = errors.New("embedding provider unavailable")

// Item is one (identifier, text) input to the batcher.
type Item struct {
	ID   string
	Text string
}

// Failure records an item the batcher could not embed. Failures are data,
// not errors: the caller ranks whatever succeeded and reports the rest.
type Failure struct {
	ID     string
	Reason string
}

// Result holds the per-item outcome of a batcher run. Every vector in
// Vectors has length Dimension.
type Result struct {
	Vectors   map[string][]float32
	Failures  []Failure
	Dimension int
}

type Config struct {
	// BatchSize is the maximum number of texts per provider call.
	BatchSize int `mapstructure:"batch-size"`
	// MaxTextLen truncates each text to this many runes before submission.
	// Zero disables truncation.
	MaxTextLen int `mapstructure:"max-text-len"`
	// MaxAttempts caps provider calls per batch, first try included.
	MaxAttempts int `mapstructure:"max-attempts"`
	// InitialBackoff, BackoffMultiplier and MaxBackoff shape the wait
	// between retries of a transiently failed batch.
	InitialBackoff    time.Duration `mapstructure:"initial-backoff"`
	MaxBackoff        time.Duration `mapstructure:"max-backoff"`
	BackoffMultiplier float64       `mapstructure:"backoff-multiplier"`
	// Concurrency bounds the number of in-flight provider calls.
	Concurrency int `mapstructure:"concurrency"`
	// RequestsPerSecond paces provider calls across all workers. Zero
	// means unpaced.
	RequestsPerSecond float64 `mapstructure:"requests-per-second"`
}

func (c *Config) validate() error {
	if c.BatchSize <= 0 {
		return fmt.Errorf("batch size must be positive, got %d", c.BatchSize)
	}
	if c.MaxTextLen < 0 {
		return fmt.Errorf("max text length must not be negative, got %d", c.MaxTextLen)
	}
	if c.MaxAttempts <= 0 {
		return fmt.Errorf("max attempts must be positive, got %d", c.MaxAttempts)
	}
	if c.InitialBackoff < 0 || c.MaxBackoff < 0 {
		return fmt.Errorf("backoff durations must not be negative")
	}
	if c.BackoffMultiplier < 1 {
		return fmt.Errorf("backoff multiplier must be >= 1, got %g", c.BackoffMultiplier)
	}
	if c.Concurrency <= 0 {
		return fmt.Errorf("concurrency must be positive, got %d", c.Concurrency)
	}
	if c.RequestsPerSecond < 0 {
		return fmt.Errorf("requests per second must not be negative, got %g", c.RequestsPerSecond)
	}
	return nil
}

// Batcher partitions input items into batches, calls the provider with
// bounded concurrency and retry, and collects vectors and per-item failures.
type Batcher struct {
	provider Provider
	cfg      Config
	limiter  *rate.Limiter
	logger   *zap.Logger
}

func NewBatcher(provider Provider, cfg Config, logger *zap.Logger) (*Batcher, error) {
	if provider == nil {
		return nil, errors.New("provider is required")
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("batcher config: %w", err)
	}

	limiter := rate.NewLimiter(rate.Inf, 1)
	if cfg.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1)
	}

	return &Batcher{
		provider: provider,
		cfg:      cfg,
		limiter:  limiter,
		logger:   logger,
	}, nil
}

// Run embeds all items. Batches run concurrently up to the configured limit;
// a batch that exhausts retries marks only its own items failed. Run returns
// an error only when the context is cancelled or every batch failed.
func (b *Batcher) Run(ctx context.Context, items []Item) (*Result, error) {
	result := &Result{
		Vectors: make(map[string][]float32, len(items)),
	}
	if len(items) == 0 {
		return result, nil
	}

	batches := partition(items, b.cfg.BatchSize)

	b.logger.Info("embedding items",
		zap.Int("items", len(items)),
		zap.Int("batches", len(batches)),
		zap.Int("batch_size", b.cfg.BatchSize),
		zap.Int("concurrency", b.cfg.Concurrency),
	)

	var mu sync.Mutex

	group, gctx := errgroup.WithContext(ctx)
	group.SetLimit(b.cfg.Concurrency)

	for idx, batch := range batches {
		group.Go(func() error {
			vectors, err := b.embedBatch(gctx, idx, batch)

			mu.Lock()
			defer mu.Unlock()

			if err == nil {
				err = b.acceptLocked(result, batch, vectors)
			}
			if err != nil {
				if gctx.Err() != nil {
					// Cancelled mid-flight: leave the items
					// unreported rather than marking them failed.
					return gctx.Err()
				}
				b.logger.Warn("batch failed",
					zap.Int("batch", idx),
					zap.Int("items", len(batch)),
					zap.Error(err),
				)
				for _, item := range batch {
					result.Failures = append(result.Failures, Failure{ID: item.ID, Reason: err.Error()})
				}
			}

			return nil
		})
	}

	waitErr := group.Wait()

	// Failures arrive in batch-completion order; sort them so the failure
	// summary reads the same across runs with identical input.
	sort.Slice(result.Failures, func(i, j int) bool {
		return result.Failures[i].ID < result.Failures[j].ID
	})

	if waitErr != nil {
		// Vectors from batches that completed before cancellation stay
		// usable for a partial ranking.
		return result, waitErr
	}

	if len(result.Vectors) == 0 {
		return result, fmt.Errorf("all %d batches failed: %w", len(batches), ErrProviderUnavailable)
	}

	b.logger.Info("embedding finished",
		zap.Int("embedded", len(result.Vectors)),
		zap.Int("failed", len(result.Failures)),
		zap.Int("dimension", result.Dimension),
	)

	return result, nil
}

// acceptLocked validates a successful batch response against the run
// dimension and merges it into the result. Caller holds the result mutex.
func (b *Batcher) acceptLocked(result *Result, batch []Item, vectors [][]float32) error {
	if len(vectors) != len(batch) {
		return Fatal(fmt.Errorf("provider returned %d vectors for %d inputs", len(vectors), len(batch)))
	}

	dim := result.Dimension
	for _, vector := range vectors {
		if len(vector) == 0 {
			return Fatal(errors.New("provider returned an empty vector"))
		}
		if dim == 0 {
			dim = len(vector)
		}
		if len(vector) != dim {
			return Fatal(fmt.Errorf("vector dimension %d does not match run dimension %d", len(vector), dim))
		}
		for _, v := range vector {
			if math.IsNaN(float64(v)) || math.IsInf(float64(v), 0) {
				return Fatal(errors.New("provider returned a non-finite vector component"))
			}
		}
	}

	result.Dimension = dim
	for i, item := range batch {
		result.Vectors[item.ID] = vectors[i]
	}

	return nil
}

// embedBatch calls the provider for one batch, retrying transient failures
// with exponential backoff. Fatal failures and dimension violations are not
// retried.
func (b *Batcher) embedBatch(ctx context.Context, idx int, batch []Item) ([][]float32, error) {
	texts := make([]string, len(batch))
	for i, item := range batch {
		texts[i] = truncateText(item.Text, b.cfg.MaxTextLen)
	}

	backoff := b.cfg.InitialBackoff
	var lastErr error

	for attempt := 1; attempt <= b.cfg.MaxAttempts; attempt++ {
		if err := b.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		vectors, err := b.provider.Embed(ctx, texts)
		if err == nil {
			return vectors, nil
		}
		lastErr = err

		if !IsTransient(err) {
			return nil, err
		}
		if attempt == b.cfg.MaxAttempts {
			break
		}

		b.logger.Debug("transient provider error, backing off",
			zap.Int("batch", idx),
			zap.Int("attempt", attempt),
			zap.Duration("backoff", backoff),
			zap.String("first_text", utils.TruncateForLog(texts[0], 120)),
			zap.Error(err),
		)

		if err := utils.WaitFor(ctx, backoff); err != nil {
			return nil, err
		}

		backoff = time.Duration(float64(backoff) * b.cfg.BackoffMultiplier)
		if b.cfg.MaxBackoff > 0 && backoff > b.cfg.MaxBackoff {
			backoff = b.cfg.MaxBackoff
		}
	}

	return nil, fmt.Errorf("exhausted %d attempts: %w", b.cfg.MaxAttempts, lastErr)
}

// partition splits items into consecutive groups of at most size, preserving
// input order.
func partition(items []Item, size int) [][]Item {
	batches := make([][]Item, 0, (len(items)+size-1)/size)
	for start := 0; start < len(items); start += size {
		end := start + size
		if end > len(items) {
			end = len(items)
		}
		batches = append(batches, items[start:end])
	}
	return batches
}

// truncateText deterministically cuts text to limit runes, from the end.
func truncateText(s string, limit int) string {
	if limit <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}
