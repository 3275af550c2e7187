// Package filtering runs record filters sequentially before embedding, with
// per-step accounting.
package filtering

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/cgruenke/jobrank/internal/prep"
)

// Filter represents a single filtering step applied to cleaned records.
type Filter interface {
	Name() string
	Apply(records []*prep.Record) ([]*prep.Record, Step, error)
}

// Step describes the result of executing a filtering step.
type Step struct {
	Initial int
	Dropped int
	Left    int
}

type Filtering struct {
	steps  []Filter
	logger *zap.Logger
}

func New(steps []Filter, logger *zap.Logger) *Filtering {
	return &Filtering{steps: steps, logger: logger}
}

// Run executes the filters in order, returning the remaining records.
func (f *Filtering) Run(records []*prep.Record) ([]*prep.Record, error) {
	for _, step := range f.steps {
		next, info, err := step.Apply(records)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", step.Name(), err)
		}

		f.logger.Info("filter step",
			zap.String("name", step.Name()),
			zap.Int("initial", info.Initial),
			zap.Int("dropped", info.Dropped),
			zap.Int("left", info.Left),
		)

		records = next
	}

	return records, nil
}
