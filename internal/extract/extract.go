// Package extract provides declarative rule-based entity extraction for CaseFlow.
//
// The extractor pulls named fields out of free text using ordered regex rules
// without requiring an LLM or external API. Rules are compiled once at process
// start and the resulting RuleSet is immutable, so concurrent readers are
// always safe.
package extract

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/BTreeMap/CaseFlow/internal/models"
)

// FieldSpec declares the extraction rules for one field.
type FieldSpec struct {
	Name          string
	Section       string
	Multi         bool
	CaseSensitive bool
	Patterns      []string
}

// fieldRules is the compiled form of a FieldSpec.
type fieldRules struct {
	spec  FieldSpec
	rules []*regexp.Regexp
}

// RuleSet is an immutable, process-wide table of extraction rules keyed by
// field name. Construct it once via Compile and share it freely.
type RuleSet struct {
	fields map[string]*fieldRules
	order  []string
}

// Compile builds a RuleSet from field specs. Matching is case-insensitive
// unless the spec says otherwise. Patterns are tried in declared order.
func Compile(specs []FieldSpec) (*RuleSet, error) {
	rs := &RuleSet{fields: make(map[string]*fieldRules, len(specs))}
	for _, spec := range specs {
		if spec.Name == "" {
			return nil, fmt.Errorf("extraction rule with empty field name")
		}
		if _, exists := rs.fields[spec.Name]; exists {
			return nil, fmt.Errorf("duplicate extraction rules for field %s", spec.Name)
		}
		if len(spec.Patterns) == 0 {
			return nil, fmt.Errorf("field %s declares no patterns", spec.Name)
		}
		fr := &fieldRules{spec: spec, rules: make([]*regexp.Regexp, 0, len(spec.Patterns))}
		for _, pattern := range spec.Patterns {
			if !spec.CaseSensitive {
				pattern = "(?i)" + pattern
			}
			re, err := regexp.Compile(pattern)
			if err != nil {
				return nil, fmt.Errorf("field %s pattern %q: %w", spec.Name, pattern, err)
			}
			fr.rules = append(fr.rules, re)
		}
		rs.fields[spec.Name] = fr
		rs.order = append(rs.order, spec.Name)
	}
	return rs, nil
}

// Fields returns every field name in declaration order.
func (rs *RuleSet) Fields() []string {
	fields := make([]string, len(rs.order))
	copy(fields, rs.order)
	return fields
}

// Spec returns the declared spec for a field.
func (rs *RuleSet) Spec(field string) (FieldSpec, bool) {
	fr, ok := rs.fields[field]
	if !ok {
		return FieldSpec{}, false
	}
	return fr.spec, true
}

// Section returns the section owning the given field.
func (rs *RuleSet) Section(field string) (string, bool) {
	fr, ok := rs.fields[field]
	if !ok {
		return "", false
	}
	return fr.spec.Section, true
}

// Extract applies the rules for the named fields to the message and returns a
// mapping of field name to matched value(s). Fields with no match are simply
// absent from the result, never present with an empty value. Extract is a pure
// function: the same message and field set always yield the same result.
func (rs *RuleSet) Extract(message string, fields []string) models.Extraction {
	result := make(models.Extraction)
	for _, field := range fields {
		fr, ok := rs.fields[field]
		if !ok {
			continue
		}
		if fr.spec.Multi {
			if items := fr.extractAll(message); len(items) > 0 {
				result[field] = models.MultiValue(items)
			}
			continue
		}
		if text := fr.extractFirst(message); text != "" {
			result[field] = models.ScalarValue(text)
		}
	}
	return result
}

// extractFirst returns the first non-empty match across the field's rules.
// Rules are tried in declared order; the first rule that matches wins.
func (fr *fieldRules) extractFirst(message string) string {
	for _, re := range fr.rules {
		match := re.FindStringSubmatch(message)
		if match == nil {
			continue
		}
		if text := captureOf(match); text != "" {
			return text
		}
	}
	return ""
}

// extractAll unions all non-overlapping matches across the field's rules,
// preserving order of discovery and dropping duplicates.
func (fr *fieldRules) extractAll(message string) []string {
	var items []string
	seen := make(map[string]bool)
	for _, re := range fr.rules {
		for _, match := range re.FindAllStringSubmatch(message, -1) {
			text := captureOf(match)
			if text == "" || seen[text] {
				continue
			}
			seen[text] = true
			items = append(items, text)
		}
	}
	return items
}

// captureOf returns the first capture group if the pattern declares one,
// otherwise the whole match.
func captureOf(match []string) string {
	if len(match) > 1 && match[1] != "" {
		return strings.TrimSpace(match[1])
	}
	return strings.TrimSpace(match[0])
}
