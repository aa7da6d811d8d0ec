// Package testutil loads golden-file test fixtures shared between the
// package's table-driven tests and recorded example scenarios. A
// fixture's template, context, and expected output live in YAML so a
// scenario can be written once and read by more than one test.
package testutil

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Settings mirrors the subset of Environment configuration a fixture
// can exercise: custom delimiters, whitespace control, and the
// undefined-value strictness level.
type Settings struct {
	Markers             []string `yaml:"markers"`
	LineStatementPrefix string   `yaml:"line_statement_prefix"`
	LineCommentPrefix   string   `yaml:"line_comment_prefix"`
	KeepTrailingNewline bool     `yaml:"keep_trailing_newline"`
	LstripBlocks        bool     `yaml:"lstrip_blocks"`
	TrimBlocks          bool     `yaml:"trim_blocks"`
	Undefined           string   `yaml:"undefined"`
}

// HasMarkers reports whether the fixture overrides the block/var/comment
// delimiters.
func (s *Settings) HasMarkers() bool {
	if s == nil {
		return false
	}
	for _, m := range s.Markers {
		if m != "" {
			return true
		}
	}
	return false
}

// Case is a single named scenario: a template, the context it renders
// against, and the output it must produce. ExpectErrorKind, when
// non-empty, marks the case as one that must fail rather than render.
type Case struct {
	Name           string         `yaml:"name"`
	Template       string         `yaml:"template"`
	Context        map[string]any `yaml:"context"`
	Expected       string         `yaml:"expected"`
	ExpectErrorKind string        `yaml:"expect_error_kind"`
	Settings       *Settings      `yaml:"settings"`
}

// Fixture is the top-level shape of a testdata/*.yaml golden file: a
// description plus a list of cases, all rendered against independent
// Environments.
type Fixture struct {
	Description string `yaml:"description"`
	Cases       []Case `yaml:"cases"`
}

// Load reads and parses a single YAML fixture file.
func Load(path string) (*Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("testutil: reading %s: %w", path, err)
	}
	var fixture Fixture
	if err := yaml.Unmarshal(data, &fixture); err != nil {
		return nil, fmt.Errorf("testutil: parsing %s: %w", path, err)
	}
	return &fixture, nil
}

// Glob finds and loads every fixture matching a glob pattern, in
// lexical filename order.
func Glob(pattern string) ([]*Fixture, []string, error) {
	matches, err := filepath.Glob(pattern)
	if err != nil {
		return nil, nil, err
	}
	fixtures := make([]*Fixture, 0, len(matches))
	for _, path := range matches {
		fixture, err := Load(path)
		if err != nil {
			return nil, nil, err
		}
		fixtures = append(fixtures, fixture)
	}
	return fixtures, matches, nil
}
