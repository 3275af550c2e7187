// Package prep normalizes acquired postings and the resume into cleaned,
// immutable records ready for embedding.
package prep

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/cgruenke/jobrank/internal/jobsearch"
)

const (
	// MissingFill replaces empty required fields with a placeholder.
	MissingFill = "fill"
	// MissingDrop removes records with an empty title or description.
	MissingDrop = "drop"

	missingPlaceholder = "n/a"
)

var (
	whitespaceRe = regexp.MustCompile(`\s+`)
	specialRe    = regexp.MustCompile(`[^0-9A-Za-z\.\,\;\:\-\(\)\s%/@#&+']`)
	locationRe   = regexp.MustCompile(`[^\w\s,\.]`)
)

var locationAliases = map[string]string{
	"st louis":            "saint louis, mo",
	"st. louis":           "saint louis, mo",
	"saint louis":         "saint louis, mo",
	"st louis mo":         "saint louis, mo",
	"st. louis, mo":       "saint louis, mo",
	"saint louis, mo":     "saint louis, mo",
	"st louis, missouri":  "saint louis, mo",
}

// Record is a cleaned posting. Immutable once produced.
type Record struct {
	ID          string
	Title       string
	Company     string
	Location    string
	Description string
	URL         string
	Published   string
}

// EmbedText joins the fields submitted to the embedding provider.
func (r *Record) EmbedText() string {
	parts := make([]string, 0, 4)
	for _, part := range []string{r.Title, r.Company, r.Location, r.Description} {
		if part != "" && part != missingPlaceholder {
			parts = append(parts, part)
		}
	}
	return strings.Join(parts, " ")
}

type Options struct {
	Lowercase     bool
	StripSpecial  bool
	MissingPolicy string
}

type Cleaner struct {
	opts   Options
	logger *zap.Logger
}

func NewCleaner(opts Options, logger *zap.Logger) (*Cleaner, error) {
	if opts.MissingPolicy == "" {
		opts.MissingPolicy = MissingFill
	}
	if opts.MissingPolicy != MissingFill && opts.MissingPolicy != MissingDrop {
		return nil, fmt.Errorf("unknown missing policy: %s", opts.MissingPolicy)
	}

	return &Cleaner{opts: opts, logger: logger}, nil
}

// Clean converts raw postings into cleaned records. Postings without a key
// are dropped regardless of the missing policy, since the key is the record
// identity for the rest of the pipeline.
func (c *Cleaner) Clean(postings *jobsearch.Postings) []*Record {
	records := make([]*Record, 0, postings.Len())

	for _, posting := range postings.Items {
		if posting.Key == "" {
			c.logger.Debug("dropping posting without a job key", zap.String("title", posting.Title))
			continue
		}

		record := c.cleanPosting(posting)
		if record == nil {
			c.logger.Debug("dropping posting with missing fields", zap.String("job_key", posting.Key))
			continue
		}

		records = append(records, record)
	}

	return records
}

func (c *Cleaner) cleanPosting(posting *jobsearch.Posting) *Record {
	desc := posting.DescriptionText
	if desc == "" {
		desc = HTMLToText(posting.DescriptionHTML)
	}

	title := c.cleanField(posting.Title)
	company := c.cleanField(posting.CompanyName)
	desc = c.cleanField(desc)
	location := NormalizeLocation(posting.FormattedLocation())

	if c.opts.MissingPolicy == MissingDrop && (title == "" || desc == "") {
		return nil
	}

	if c.opts.MissingPolicy == MissingFill {
		if title == "" {
			title = missingPlaceholder
		}
		if company == "" {
			company = missingPlaceholder
		}
		if location == "" {
			location = missingPlaceholder
		}
		if desc == "" {
			desc = missingPlaceholder
		}
	}

	return &Record{
		ID:          posting.Key,
		Title:       title,
		Company:     company,
		Location:    location,
		Description: desc,
		URL:         posting.JobURL,
		Published:   posting.DatePublished,
	}
}

func (c *Cleaner) cleanField(s string) string {
	if c.opts.Lowercase {
		s = strings.ToLower(s)
	}
	if c.opts.StripSpecial {
		s = specialRe.ReplaceAllString(s, " ")
	}
	return NormalizeWhitespace(s)
}

// HTMLToText strips markup from an HTML fragment, dropping script, style and
// noscript subtrees, and collapses whitespace.
func HTMLToText(html string) string {
	if html == "" {
		return ""
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return NormalizeWhitespace(html)
	}

	doc.Find("script, style, noscript").Remove()

	return NormalizeWhitespace(doc.Text())
}

func NormalizeWhitespace(s string) string {
	return strings.TrimSpace(whitespaceRe.ReplaceAllString(s, " "))
}

// NormalizeLocation lowercases a location string and resolves known aliases.
func NormalizeLocation(loc string) string {
	if loc == "" {
		return loc
	}

	s := strings.ToLower(strings.TrimSpace(loc))
	s = locationRe.ReplaceAllString(s, "")
	s = strings.ReplaceAll(s, "missouri", "mo")
	s = strings.ReplaceAll(s, "county", "")

	for alias, canonical := range locationAliases {
		if strings.Contains(s, alias) {
			return canonical
		}
	}

	return NormalizeWhitespace(s)
}
