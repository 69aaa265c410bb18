package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration is a time.Duration that unmarshals from YAML strings like "5m"
// or "90s".
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// RateWindow is one sliding rate-limit window: at most Max submissions per
// identity within the trailing Length.
type RateWindow struct {
	Name   string   `yaml:"name"`
	Length Duration `yaml:"length"`
	Max    int      `yaml:"max"`
}

// Policy holds the tunable abuse-mitigation policy. Every field has a
// default matching the shipped behavior; a YAML policy file can override
// any subset of them.
type Policy struct {
	SpamKeywords    []string     `yaml:"spam_keywords"`
	SpamPatterns    []string     `yaml:"spam_patterns"`
	HoneypotFields  []string     `yaml:"honeypot_fields"`
	BotUserAgents   []string     `yaml:"bot_user_agents"`
	RateWindows     []RateWindow `yaml:"rate_windows"`
	SpamThreshold   float64      `yaml:"spam_threshold"`
	ChallengeMaxAge Duration     `yaml:"challenge_max_age"`
	ChallengeMinGap Duration     `yaml:"challenge_min_gap"`
	RetentionDays   int          `yaml:"retention_days"`
}

// DefaultPolicy returns the built-in abuse-mitigation policy.
func DefaultPolicy() Policy {
	return Policy{
		SpamKeywords: []string{
			"bitcoin", "cryptocurrency", "investment", "trading", "forex", "casino",
			"viagra", "cialis", "pharmacy", "pills", "weight loss", "diet pills",
			"make money", "earn money", "work from home", "business opportunity",
			"guaranteed", "no risk", "limited time", "act now", "urgent",
			"click here", "visit our website", "check out our", "amazing deal",
			"seo services", "backlinks", "increase traffic", "ranking",
			"loan", "credit", "debt", "mortgage", "insurance",
			"replica", "fake", "counterfeit", "cheap", "discount",
		},
		SpamPatterns: []string{
			`https?://[^\s]+`, // URLs
			`\b[A-Z]{3,}\b`,   // all-caps runs
			`[!]{2,}`,         // repeated exclamation marks
			`\$\d+`,           // dollar amounts
			`\b\d{10,}\b`,     // long digit runs
			`[^\w\s]{3,}`,     // runs of non-word characters
		},
		HoneypotFields: []string{"website", "url", "phone_number", "fax", "company"},
		BotUserAgents: []string{
			"bot", "crawler", "spider", "scraper", "curl", "wget", "python",
			"requests", "urllib", "java", "go-http", "okhttp",
		},
		RateWindows: []RateWindow{
			{Name: "per_minute", Length: Duration(time.Minute), Max: 2},
			{Name: "per_hour", Length: Duration(time.Hour), Max: 10},
			{Name: "per_day", Length: Duration(24 * time.Hour), Max: 50},
		},
		SpamThreshold:   0.7,
		ChallengeMaxAge: Duration(5 * time.Minute),
		ChallengeMinGap: Duration(2 * time.Second),
		RetentionDays:   30,
	}
}

// LoadPolicy reads a YAML policy file and overlays it on DefaultPolicy.
// Fields absent from the file keep their defaults. An empty path returns
// the defaults unchanged.
func LoadPolicy(path string) (Policy, error) {
	policy := DefaultPolicy()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return policy, fmt.Errorf("read policy file: %w", err)
		}
		if err := yaml.Unmarshal(data, &policy); err != nil {
			return policy, fmt.Errorf("parse policy file: %w", err)
		}
	}

	// Validate even without a file so edits to the defaults are caught.
	if err := policy.validate(); err != nil {
		return policy, err
	}
	return policy, nil
}

func (p Policy) validate() error {
	if p.SpamThreshold <= 0 || p.SpamThreshold > 1 {
		return fmt.Errorf("spam_threshold must be in (0, 1], got %g", p.SpamThreshold)
	}
	if p.ChallengeMaxAge <= 0 {
		return fmt.Errorf("challenge_max_age must be positive, got %s", p.ChallengeMaxAge.Std())
	}
	if p.ChallengeMinGap < 0 {
		return fmt.Errorf("challenge_min_gap must not be negative, got %s", p.ChallengeMinGap.Std())
	}
	if p.RetentionDays <= 0 {
		return fmt.Errorf("retention_days must be positive, got %d", p.RetentionDays)
	}
	for _, w := range p.RateWindows {
		if w.Length <= 0 || w.Max <= 0 {
			return fmt.Errorf("rate window %q must have positive length and max", w.Name)
		}
	}
	return nil
}
