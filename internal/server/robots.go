package server

import (
	"fmt"
	"strings"

	"github.com/temoto/robotstxt"
)

const robotsAgent = "*"

// RobotsPolicy is the robots.txt served by the study and the per-path
// indexing decision derived from it
type RobotsPolicy struct {
	body string
	data *robotstxt.RobotsData
}

// NewRobotsPolicy builds a robots.txt disallowing the given path prefixes for all agents.
// The generated text is parsed back so the served file and the header decisions agree.
func NewRobotsPolicy(disallow []string) (*RobotsPolicy, error) {
	var b strings.Builder
	b.WriteString("User-agent: *\n")

	if len(disallow) == 0 {
		b.WriteString("Disallow:\n")
	}
	for _, path := range disallow {
		path = strings.TrimSpace(path)
		if !strings.HasPrefix(path, "/") {
			return nil, fmt.Errorf("robots disallow path %q must start with /", path)
		}
		fmt.Fprintf(&b, "Disallow: %s\n", path)
	}

	body := b.String()

	data, err := robotstxt.FromString(body)
	if err != nil {
		return nil, fmt.Errorf("parse robots.txt: %w", err)
	}

	return &RobotsPolicy{body: body, data: data}, nil
}

// Body returns the robots.txt text
func (p *RobotsPolicy) Body() string {
	return p.body
}

// Indexable reports whether crawlers may fetch path
func (p *RobotsPolicy) Indexable(path string) bool {
	return p.data.TestAgent(path, robotsAgent)
}
