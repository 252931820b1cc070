// Package riskmatrix defines the risk matrix configuration: the
// consequence and likelihood question tables and the priority bands
// that a risk score is matched against.
package riskmatrix

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/structiq/fieldscan-agent/models"
)

// Option is a selectable answer carrying its severity factor.
type Option struct {
	ID            string  `yaml:"id"             json:"id"`
	Label         string  `yaml:"label"          json:"label"`
	Factor        float64 `yaml:"factor"         json:"factor"`
	NotApplicable bool    `yaml:"not_applicable" json:"not_applicable,omitempty"`
}

// Question is one wizard step with its ordered options.
type Question struct {
	ID      string   `yaml:"id"      json:"id"`
	Prompt  string   `yaml:"prompt"  json:"prompt"`
	Options []Option `yaml:"options" json:"options"`
}

// Option returns the option with the given ID, or nil.
func (q *Question) Option(id string) *Option {
	for i := range q.Options {
		if q.Options[i].ID == id {
			return &q.Options[i]
		}
	}
	return nil
}

// Band maps a score interval to a priority code. Bounds are encoded
// with bracket characters: '[' / ']' inclusive, '(' / ')' exclusive.
type Band struct {
	Code   string `yaml:"code"   json:"code"`
	Range  string `yaml:"range"  json:"range"`
	Action string `yaml:"action" json:"action,omitempty"`
}

// Matrix is the full risk matrix configuration.
type Matrix struct {
	Revision        string     `yaml:"revision"              json:"revision"`
	Consequences    []Question `yaml:"consequence_questions" json:"consequence_questions"`
	Likelihood      Question   `yaml:"likelihood_question"   json:"likelihood_question"`
	Bands           []Band     `yaml:"priority_bands"        json:"priority_bands"`
	DefaultPriority string     `yaml:"default_priority"      json:"default_priority"`
}

// Validate checks the matrix is usable by the wizard and the engine.
func (m *Matrix) Validate() error {
	if len(m.Consequences) != 4 {
		return fmt.Errorf("expected 4 consequence questions, got %d", len(m.Consequences))
	}
	for _, q := range m.Consequences {
		if len(q.Options) == 0 {
			return fmt.Errorf("consequence question %q has no options", q.ID)
		}
	}
	if len(m.Likelihood.Options) == 0 {
		return fmt.Errorf("likelihood question has no options")
	}
	for _, b := range m.Bands {
		if _, err := ParseInterval(b.Range); err != nil {
			return fmt.Errorf("band %s: %w", b.Code, err)
		}
	}
	return nil
}

// MatchPriority returns the priority for a score: the first band whose
// interval contains it, otherwise the matrix default (P4 if unset).
func (m *Matrix) MatchPriority(score float64) models.PriorityLevel {
	for _, b := range m.Bands {
		iv, err := ParseInterval(b.Range)
		if err != nil {
			continue
		}
		if iv.Contains(score) {
			return models.MapPriority(b.Code)
		}
	}
	if m.DefaultPriority != "" {
		return models.MapPriority(m.DefaultPriority)
	}
	return models.PriorityP4
}

// Interval is a numeric range with independently inclusive bounds.
type Interval struct {
	Low, High         float64
	LowIncl, HighIncl bool
}

// Contains reports whether v falls inside the interval.
func (iv Interval) Contains(v float64) bool {
	if v < iv.Low || (v == iv.Low && !iv.LowIncl) {
		return false
	}
	if v > iv.High || (v == iv.High && !iv.HighIncl) {
		return false
	}
	return true
}

// ParseInterval parses a bracket-encoded range such as "[0,2)" or "(6,9]".
func ParseInterval(s string) (Interval, error) {
	var iv Interval
	t := strings.TrimSpace(s)
	if len(t) < 5 {
		return iv, fmt.Errorf("invalid interval %q", s)
	}

	switch t[0] {
	case '[':
		iv.LowIncl = true
	case '(':
	default:
		return iv, fmt.Errorf("invalid interval %q: expected '[' or '('", s)
	}
	switch t[len(t)-1] {
	case ']':
		iv.HighIncl = true
	case ')':
	default:
		return iv, fmt.Errorf("invalid interval %q: expected ']' or ')'", s)
	}

	parts := strings.Split(t[1:len(t)-1], ",")
	if len(parts) != 2 {
		return iv, fmt.Errorf("invalid interval %q: expected two bounds", s)
	}
	low, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return iv, fmt.Errorf("invalid interval %q: lower bound: %w", s, err)
	}
	high, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return iv, fmt.Errorf("invalid interval %q: upper bound: %w", s, err)
	}
	if high < low {
		return iv, fmt.Errorf("invalid interval %q: upper bound below lower", s)
	}
	iv.Low, iv.High = low, high
	return iv, nil
}
