// Package ranking orders stored job vectors by cosine similarity to the
// resume vector, with a deterministic tie-break.
package ranking

import (
	"errors"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/cgruenke/jobrank/internal/vectorstore"
)

const defaultEpsilon = 1e-9

// ErrDegenerateResume is returned when the resume vector itself has zero
// norm; nothing can be ranked against it.
var ErrDegenerateResume = errors.New("resume vector is degenerate")

// Result is a single ranked posting.
type Result struct {
	ID    string  `json:"job_key"`
	Score float64 `json:"similarity"`
}

// Ranking is the ordered output of a run: the top-N results plus the
// identifiers excluded for degenerate vectors.
type Ranking struct {
	Results  []Result
	Excluded []string
}

type Config struct {
	// TopN limits the output length. Zero or negative is a configuration
	// error.
	TopN int
	// Epsilon is the score distance within which two results are
	// considered tied. Defaults to 1e-9.
	Epsilon float64
}

type Ranker struct {
	topN    int
	epsilon float64
	logger  *zap.Logger
}

func New(cfg Config, logger *zap.Logger) (*Ranker, error) {
	if cfg.TopN <= 0 {
		return nil, fmt.Errorf("top-n must be positive, got %d", cfg.TopN)
	}
	if cfg.Epsilon < 0 {
		return nil, fmt.Errorf("epsilon must not be negative, got %g", cfg.Epsilon)
	}
	if cfg.Epsilon == 0 {
		cfg.Epsilon = defaultEpsilon
	}

	return &Ranker{topN: cfg.TopN, epsilon: cfg.Epsilon, logger: logger}, nil
}

// Rank scores every stored job vector against the resume vector and returns
// the top-N results in descending score order. Scores within epsilon of each
// other tie and are broken by ascending identifier, so repeated calls over
// the same store contents produce identical output. Degenerate job vectors
// are excluded and reported, not fatal; fewer than N valid vectors is not an
// error.
func (r *Ranker) Rank(store *vectorstore.Store) (*Ranking, error) {
	resume, err := store.Resume()
	if err != nil {
		return nil, err
	}
	if Norm(resume) == 0 {
		return nil, ErrDegenerateResume
	}

	entries := store.All()
	results := make([]Result, 0, len(entries))
	var excluded []string

	for _, entry := range entries {
		score, err := Cosine(resume, entry.Vector)
		if err != nil {
			if errors.Is(err, ErrDegenerateVector) {
				excluded = append(excluded, entry.ID)
				continue
			}
			return nil, fmt.Errorf("scoring %q: %w", entry.ID, err)
		}

		results = append(results, Result{ID: entry.ID, Score: score})
	}

	// All() iterates a map, so the input order must be fixed before the
	// epsilon comparator runs: within-epsilon is not transitive, and an
	// unstable sort over a shuffled slice reorders ties between calls.
	// The stable sort leaves epsilon-ties in ascending identifier order.
	sort.Slice(results, func(i, j int) bool {
		return results[i].ID < results[j].ID
	})
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score+r.epsilon
	})

	sort.Strings(excluded)

	if len(excluded) > 0 {
		r.logger.Info("excluded degenerate vectors from ranking",
			zap.Int("count", len(excluded)),
			zap.Strings("job_keys", excluded),
		)
	}

	if len(results) > r.topN {
		results = results[:r.topN]
	}

	return &Ranking{Results: results, Excluded: excluded}, nil
}
