package prep

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

var sectionHeadingRe = regexp.MustCompile(`(?im)^\s*(experience|education|skills|projects|summary|certifications)\s*[:\-]?\s*$`)

// Resume is the single cleaned resume for a run.
type Resume struct {
	Text     string
	Sections map[string]string
}

// EmbedText returns the text submitted to the embedding provider.
func (r *Resume) EmbedText() string {
	return r.Text
}

// LoadResume reads a plain-text resume file and splits it into sections by
// common headings. Only .txt is supported; extract PDF resumes to text first.
func LoadResume(path string) (*Resume, error) {
	if ext := strings.ToLower(filepath.Ext(path)); ext != ".txt" {
		return nil, fmt.Errorf("unsupported resume format %q (.txt only)", ext)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading resume: %w", err)
	}

	text := NormalizeWhitespace(string(data))
	if text == "" {
		return nil, fmt.Errorf("resume file %q is empty", path)
	}

	return &Resume{
		Text:     text,
		Sections: splitSections(string(data)),
	}, nil
}

func splitSections(text string) map[string]string {
	sections := make(map[string]string)

	matches := sectionHeadingRe.FindAllStringSubmatchIndex(text, -1)
	if len(matches) == 0 {
		sections["full"] = NormalizeWhitespace(text)
		return sections
	}

	for i, match := range matches {
		heading := strings.ToLower(text[match[2]:match[3]])
		start := match[1]
		end := len(text)
		if i+1 < len(matches) {
			end = matches[i+1][0]
		}
		body := NormalizeWhitespace(text[start:end])
		if body != "" {
			sections[heading] = body
		}
	}

	return sections
}
