package jobsearch

import (
	"encoding/json"
	"fmt"
	"os"
)

const (
	PostingKeyField     = "Key"
	PostingCompanyField = "CompanyName"
)

type Postings struct {
	Items []*Posting
}

type Posting struct {
	Key         string `json:"jobKey,omitempty"`
	Title       string `json:"title,omitempty"`
	CompanyName string `json:"companyName,omitempty"`
	Location    struct {
		City                 string `json:"city,omitempty"`
		State                string `json:"state,omitempty"`
		FormattedAddress     string `json:"formattedAddress,omitempty"`
		FormattedAddressLong string `json:"formattedAddressLong,omitempty"`
	} `json:"location,omitempty"`
	DescriptionText string `json:"descriptionText,omitempty"`
	DescriptionHTML string `json:"descriptionHtml,omitempty"`
	Salary          struct {
		Text string `json:"salaryText,omitempty"`
	} `json:"salary,omitempty"`
	JobURL        string `json:"jobUrl,omitempty"`
	DatePublished string `json:"datePublished,omitempty"`
	JobType       []struct {
		Name string `json:"name,omitempty"`
	} `json:"jobType,omitempty"`
	Remote bool `json:"isRemote,omitempty"`
}

func (p *Posting) GetStringField(name string) string {
	switch name {
	case PostingKeyField:
		return p.Key
	case PostingCompanyField:
		return p.CompanyName

	default:
		return ""
	}
}

// FormattedLocation returns the best available location string for a posting.
func (p *Posting) FormattedLocation() string {
	if p.Location.FormattedAddressLong != "" {
		return p.Location.FormattedAddressLong
	}
	if p.Location.FormattedAddress != "" {
		return p.Location.FormattedAddress
	}
	if p.Location.City != "" && p.Location.State != "" {
		return fmt.Sprintf("%s %s", p.Location.City, p.Location.State)
	}
	return p.Location.City
}

func (p *Postings) Len() int {
	return len(p.Items)
}

func (p *Postings) FindByKey(key string) *Posting {
	for _, posting := range p.Items {
		if posting.Key == key {
			return posting
		}
	}
	return nil
}

func (p *Postings) Keys() []string {
	keys := make([]string, 0)
	for _, posting := range p.Items {
		keys = append(keys, posting.Key)
	}
	return keys
}

// Exclude removes postings from list matching the given field values.
func (p *Postings) Exclude(name string, targets []string) []string {
	var excluded []string
	for _, target := range targets {
		for idx, posting := range p.Items {
			if posting.GetStringField(name) == target {
				p.RemoveByIndex(idx)
				excluded = append(excluded, posting.Key)
				break
			}
		}
	}
	return excluded
}

// RemoveByIndex removes a posting from list by index. Does not preserve order.
func (p *Postings) RemoveByIndex(idx int) {
	p.Items[idx] = p.Items[len(p.Items)-1]
	p.Items = p.Items[:len(p.Items)-1]
}

// ReportByCompany groups brief posting info under "Company (key)" map keys.
func (p *Postings) ReportByCompany() map[string][]map[string]string {
	report := make(map[string][]map[string]string)
	for _, posting := range p.Items {
		key := posting.CompanyName
		report[key] = append(report[key], map[string]string{
			"title":     posting.Title,
			"url":       posting.JobURL,
			"location":  posting.FormattedLocation(),
			"salary":    posting.Salary.Text,
			"published": posting.DatePublished,
		})
	}
	return report
}

func (p *Postings) DumpToTmpFile() (string, error) {
	file, err := os.CreateTemp("", "postings_*.json")
	if err != nil {
		return "", err
	}
	defer file.Close()

	enc := json.NewEncoder(file)
	enc.SetIndent("", "  ")
	if err := enc.Encode(p); err != nil {
		return "", err
	}
	return file.Name(), nil
}
