package jobsearch

import (
	"fmt"

	"github.com/mitchellh/mapstructure"
)

const (
	JobPath = "/api/job"
)

type SearchParams struct {
	Query    string `yaml:"query"`
	Location string `yaml:"location"`
	JobType  string `yaml:"job_type" mapstructure:"job_type"`
	Radius   string `yaml:"radius"`
	Sort     string `yaml:"sort"`
	// FromDays must be one of 1, 3, 7, 14 per the scraper API.
	FromDays string `yaml:"from_days" mapstructure:"from_days"`
	Country  string `yaml:"country"`
	MaxRows  int    `yaml:"max_rows" mapstructure:"max_rows"`
}

// scraperPayload is the request body shape expected by the scraper endpoint.
type scraperPayload struct {
	Scraper map[string]any `json:"scraper"`
}

func (c *Client) search(params *SearchParams) (*Postings, error) {
	var postings []*Posting

	if params.MaxRows == 0 {
		params.MaxRows = defaultMaxRows
	}
	if params.FromDays == "" {
		params.FromDays = defaultFromDays
	}

	payload := buildPayload(params)
	apiURLJob := fmt.Sprintf("%s%s", c.APIURL, JobPath)

	items, err := c.PostJob(apiURLJob, payload)
	if err != nil {
		return nil, err
	}

	cfg := &mapstructure.DecoderConfig{
		Metadata: nil,
		Result:   &postings,
		TagName:  "json",
	}
	decoder, _ := mapstructure.NewDecoder(cfg)
	decoder.Decode(items)

	return &Postings{
		Items: postings,
	}, nil
}

func buildPayload(params *SearchParams) *scraperPayload {
	scraper := map[string]any{
		"maxRows":  params.MaxRows,
		"query":    params.Query,
		"fromDays": params.FromDays,
	}

	optional := map[string]string{
		"location": params.Location,
		"jobType":  params.JobType,
		"radius":   params.Radius,
		"sort":     params.Sort,
		"country":  params.Country,
	}
	for key, value := range optional {
		if value != "" {
			scraper[key] = value
		}
	}

	return &scraperPayload{Scraper: scraper}
}
