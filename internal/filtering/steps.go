package filtering

import (
	"strings"

	"github.com/cgruenke/jobrank/internal/prep"
)

type dedupeFilter struct{}

// NewDedupe creates a filter that drops records with a duplicate identifier,
// keeping the first occurrence. Scraper responses occasionally repeat a job
// under several search facets.
func NewDedupe() Filter {
	return &dedupeFilter{}
}

func (f *dedupeFilter) Name() string { return "dedupe" }

func (f *dedupeFilter) Apply(records []*prep.Record) ([]*prep.Record, Step, error) {
	initial := len(records)
	seen := make(map[string]bool, initial)
	kept := make([]*prep.Record, 0, initial)

	for _, record := range records {
		if seen[record.ID] {
			continue
		}
		seen[record.ID] = true
		kept = append(kept, record)
	}

	return kept, Step{Initial: initial, Dropped: initial - len(kept), Left: len(kept)}, nil
}

type emptyDescriptionFilter struct{}

// NewEmptyDescription creates a filter that drops records whose description
// carries no usable text. Such records embed to near-noise vectors.
func NewEmptyDescription() Filter {
	return &emptyDescriptionFilter{}
}

func (f *emptyDescriptionFilter) Name() string { return "empty_description" }

func (f *emptyDescriptionFilter) Apply(records []*prep.Record) ([]*prep.Record, Step, error) {
	initial := len(records)
	kept := make([]*prep.Record, 0, initial)

	for _, record := range records {
		desc := strings.TrimSpace(record.Description)
		if desc == "" || desc == "n/a" {
			continue
		}
		kept = append(kept, record)
	}

	return kept, Step{Initial: initial, Dropped: initial - len(kept), Left: len(kept)}, nil
}

type excludedCompaniesFilter struct {
	companies []string
}

// NewExcludedCompanies creates a filter that drops records from companies
// listed in the config. Matching is case-insensitive.
func NewExcludedCompanies(companies []string) Filter {
	return &excludedCompaniesFilter{companies: companies}
}

func (f *excludedCompaniesFilter) Name() string { return "excluded_companies" }

func (f *excludedCompaniesFilter) Apply(records []*prep.Record) ([]*prep.Record, Step, error) {
	initial := len(records)
	if len(f.companies) == 0 {
		return records, Step{Initial: initial, Dropped: 0, Left: initial}, nil
	}

	excluded := make(map[string]bool, len(f.companies))
	for _, company := range f.companies {
		excluded[strings.ToLower(strings.TrimSpace(company))] = true
	}

	kept := make([]*prep.Record, 0, initial)
	for _, record := range records {
		if excluded[strings.ToLower(record.Company)] {
			continue
		}
		kept = append(kept, record)
	}

	return kept, Step{Initial: initial, Dropped: initial - len(kept), Left: len(kept)}, nil
}
