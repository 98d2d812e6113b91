package model

import (
	"errors"
	"fmt"
	"runtime"
	"time"
)

// Config is the complete factstudy configuration
// Field tags serve both yaml.v3 (config show/init) and viper's mapstructure decoding
type Config struct {
	AppEnv      string            `yaml:"app_env" mapstructure:"app_env"`
	Results     ResultsConfig     `yaml:"results" mapstructure:"results"`
	Citation    CitationConfig    `yaml:"citation" mapstructure:"citation"`
	Excerpt     ExcerptConfig     `yaml:"excerpt" mapstructure:"excerpt"`
	Study       StudyConfig       `yaml:"study" mapstructure:"study"`
	Server      ServerConfig      `yaml:"server" mapstructure:"server"`
	Cache       CacheConfig       `yaml:"cache" mapstructure:"cache"`
	Concurrency ConcurrencyConfig `yaml:"concurrency" mapstructure:"concurrency"`
	Theme       Theme             `yaml:"theme" mapstructure:"theme"`
	Output      OutputConfig      `yaml:"output" mapstructure:"output"`
}

// ResultsConfig locates the pre-generated fact-checking results
type ResultsConfig struct {
	Dir        string `yaml:"dir" mapstructure:"dir"`                 // Holds Answer_Attributions/ and Web_Evidence/
	ClaimsFile string `yaml:"claims_file" mapstructure:"claims_file"` // Ordered list of claim records
}

// CitationConfig controls which sources a justification sentence cites
type CitationConfig struct {
	MinAbsThreshold   float64 `yaml:"min_abs_threshold" mapstructure:"min_abs_threshold"`
	MaxRatioThreshold float64 `yaml:"max_ratio_threshold" mapstructure:"max_ratio_threshold"`
	MaxCitations      int     `yaml:"max_citations" mapstructure:"max_citations"`
}

// ExcerptConfig controls the evidence window shown in citation tooltips
type ExcerptConfig struct {
	SentencesBefore int    `yaml:"sentences_before" mapstructure:"sentences_before"`
	SentencesAfter  int    `yaml:"sentences_after" mapstructure:"sentences_after"`
	HighlightClass  string `yaml:"highlight_class" mapstructure:"highlight_class"`
}

// StudyConfig controls participant routing
type StudyConfig struct {
	Group              int           `yaml:"group" mapstructure:"group"`                 // Default experiment group
	AssignGroups       []int         `yaml:"assign_groups" mapstructure:"assign_groups"` // If set, participants are spread over these groups
	AllowGroupOverride bool          `yaml:"allow_group_override" mapstructure:"allow_group_override"`
	SurveyBaseURL      string        `yaml:"survey_base_url" mapstructure:"survey_base_url"`
	CookieName         string        `yaml:"cookie_name" mapstructure:"cookie_name"`
	CookieSecret       string        `yaml:"cookie_secret" mapstructure:"cookie_secret"`
	CookieMaxAge       time.Duration `yaml:"cookie_max_age" mapstructure:"cookie_max_age"`
	SecureCookie       bool          `yaml:"secure_cookie" mapstructure:"secure_cookie"`
}

// ServerConfig controls the HTTP listener
type ServerConfig struct {
	Addr              string        `yaml:"addr" mapstructure:"addr"`
	ReadHeaderTimeout time.Duration `yaml:"read_header_timeout" mapstructure:"read_header_timeout"`
	ShutdownTimeout   time.Duration `yaml:"shutdown_timeout" mapstructure:"shutdown_timeout"`
	RequestsPerMinute float64       `yaml:"requests_per_minute" mapstructure:"requests_per_minute"`
	Burst             int           `yaml:"burst" mapstructure:"burst"`
	MaxLimiters       int           `yaml:"max_limiters" mapstructure:"max_limiters"`
	TrustProxyHeaders bool          `yaml:"trust_proxy_headers" mapstructure:"trust_proxy_headers"` // Read the client address from X-Forwarded-For / X-Real-IP
	RobotsDisallow    []string      `yaml:"robots_disallow" mapstructure:"robots_disallow"`
	EnablePreview     bool          `yaml:"enable_preview" mapstructure:"enable_preview"` // Serve /claims/{idx} outside the participant flow
}

// CacheConfig controls caching of evidence pages and rendered fragments
type CacheConfig struct {
	Enabled   bool          `yaml:"enabled" mapstructure:"enabled"`
	MemoryTTL time.Duration `yaml:"memory_ttl" mapstructure:"memory_ttl"`
	Dir       string        `yaml:"dir" mapstructure:"dir"`
	DiskTTL   time.Duration `yaml:"disk_ttl" mapstructure:"disk_ttl"`
}

// ConcurrencyConfig controls the prerender and check worker pools
type ConcurrencyConfig struct {
	Workers int `yaml:"workers" mapstructure:"workers"`
}

// OutputConfig controls CLI output
type OutputConfig struct {
	Verbose bool `yaml:"verbose" mapstructure:"verbose"`
}

// DefaultConfig returns the configuration used by the original study deployment
func DefaultConfig() *Config {
	return &Config{
		AppEnv: "local",
		Results: ResultsConfig{
			Dir:        "fc_results",
			ClaimsFile: "data/results.json",
		},
		Citation: CitationConfig{
			MinAbsThreshold:   5,
			MaxRatioThreshold: 0.3,
			MaxCitations:      3,
		},
		Excerpt: ExcerptConfig{
			SentencesBefore: 2,
			SentencesAfter:  3,
			HighlightClass:  "highlight",
		},
		Study: StudyConfig{
			Group:         int(GroupCitations),
			SurveyBaseURL: "https://jonas-peschel.github.io/fact-checking-surveys",
			CookieName:    "fact-checking-user-study",
			CookieMaxAge:  30 * 24 * time.Hour,
		},
		Server: ServerConfig{
			Addr:              ":8080",
			ReadHeaderTimeout: 10 * time.Second,
			ShutdownTimeout:   15 * time.Second,
			RequestsPerMinute: 120,
			Burst:             20,
			MaxLimiters:       10000,
			RobotsDisallow:    []string{"/"},
		},
		Cache: CacheConfig{
			Enabled:   true,
			MemoryTTL: time.Hour,
			Dir:       ".factstudy-cache",
			DiskTTL:   7 * 24 * time.Hour,
		},
		Concurrency: ConcurrencyConfig{
			Workers: runtime.NumCPU(),
		},
		Theme: DefaultTheme(),
	}
}

// Validate checks values that would otherwise surface as confusing render failures
func (c *Config) Validate() error {
	var errs []error

	if c.Citation.MinAbsThreshold < 0 {
		errs = append(errs, fmt.Errorf("citation.min_abs_threshold must be >= 0, got %v", c.Citation.MinAbsThreshold))
	}
	if c.Citation.MaxRatioThreshold < 0 || c.Citation.MaxRatioThreshold > 1 {
		errs = append(errs, fmt.Errorf("citation.max_ratio_threshold must be in [0,1], got %v", c.Citation.MaxRatioThreshold))
	}
	if c.Citation.MaxCitations < 0 {
		errs = append(errs, fmt.Errorf("citation.max_citations must be >= 0, got %d", c.Citation.MaxCitations))
	}
	if c.Excerpt.SentencesBefore < 0 || c.Excerpt.SentencesAfter < 0 {
		errs = append(errs, errors.New("excerpt sentence counts must be >= 0"))
	}
	if !ValidGroup(c.Study.Group) {
		errs = append(errs, fmt.Errorf("study.group must be 1, 2 or 3, got %d", c.Study.Group))
	}
	for _, g := range c.Study.AssignGroups {
		if !ValidGroup(g) {
			errs = append(errs, fmt.Errorf("study.assign_groups contains invalid group %d", g))
		}
	}

	return errors.Join(errs...)
}

// ValidGroup reports whether g is a recognized experiment group value
func ValidGroup(g int) bool {
	return g >= int(GroupPlain) && g <= int(GroupInteractive)
}
