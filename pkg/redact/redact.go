// Package redact derives the deterministic PII-redacted view of chain
// entries served on the public transparency surface. It never mutates
// the ledger: Redact copies, and the output exists only per-request.
//
// The shipped rule set is a documented under-approximation (no
// international phone formats); callers can pass Redact their own
// Rules, for example DefaultRules with extra patterns appended. Nothing
// loads patterns from configuration.
package redact

import (
	"encoding/json"
	"fmt"
	"regexp"

	"github.com/sentinelgov/auditchain/pkg/types"
)

// Placeholder replaces every redacted span.
const Placeholder = "[REDACTED]"

// excludedFields are never redacted: receipts, timestamps, tool names,
// statuses and the structural hash fields must stay byte-stable so the
// transparency view remains checkable against the chain.
var excludedFields = map[string]bool{
	"receipt_id":           true,
	"timestamp":            true,
	"tool_name":            true,
	"execution_status":     true,
	"prev_hash":            true,
	"entry_hash":           true,
	"policy_snapshot_hash": true,
	"merkle_root_snapshot": true,
	"event_hash":           true,
	"kind":                 true,
	"index":                true,
	"pulse_sequence":       true,
}

// nameFields hold person names and are redacted wholesale rather than
// pattern-matched.
var nameFields = map[string]bool{
	"admin_name":  true,
	"admin_email": true,
}

// Rules is an ordered regex rule set applied to every non-excluded
// string field.
type Rules struct {
	Patterns []*regexp.Regexp
}

// DefaultRules covers emails, E.164 and common US phone formats, and
// US-style postal addresses.
func DefaultRules() *Rules {
	return &Rules{Patterns: []*regexp.Regexp{
		// Email addresses.
		regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`),
		// E.164 phone numbers.
		regexp.MustCompile(`\+[1-9]\d{6,14}`),
		// Common US phone formats: (555) 123-4567, 555-123-4567, 555.123.4567.
		regexp.MustCompile(`\(?\d{3}\)?[\s.\-]\d{3}[\s.\-]\d{4}`),
		// US-style street addresses.
		regexp.MustCompile(`\d+\s+[A-Za-z0-9.\s]+\s(?:Street|St|Avenue|Ave|Boulevard|Blvd|Drive|Dr|Lane|Ln|Road|Rd|Court|Ct|Way|Place|Pl)\.?\b`),
	}}
}

// apply runs every pattern over s.
func (r *Rules) apply(s string) string {
	for _, p := range r.Patterns {
		s = p.ReplaceAllString(s, Placeholder)
	}
	return s
}

// Redact returns a redacted copy of entry. Determinism: the same
// logical entry always redacts to the same output, so the public view
// is reproducible.
func Redact(entry types.Entry, rules *Rules) (types.Entry, error) {
	if rules == nil {
		rules = DefaultRules()
	}

	raw, err := json.Marshal(entry)
	if err != nil {
		return types.Entry{}, fmt.Errorf("redact: marshal entry: %w", err)
	}
	var tree map[string]interface{}
	if err := json.Unmarshal(raw, &tree); err != nil {
		return types.Entry{}, fmt.Errorf("redact: decode entry: %w", err)
	}

	for field, value := range tree {
		if excludedFields[field] {
			continue
		}
		if nameFields[field] {
			if s, ok := value.(string); ok && s != "" {
				tree[field] = Placeholder
			}
			continue
		}
		tree[field] = redactValue(value, rules)
	}

	out, err := json.Marshal(tree)
	if err != nil {
		return types.Entry{}, fmt.Errorf("redact: re-encode entry: %w", err)
	}
	var redacted types.Entry
	if err := json.Unmarshal(out, &redacted); err != nil {
		return types.Entry{}, fmt.Errorf("redact: parse redacted entry: %w", err)
	}
	return redacted, nil
}

// redactValue walks nested payload values (tool arguments, execution
// results) redacting every string it finds.
func redactValue(v interface{}, rules *Rules) interface{} {
	switch t := v.(type) {
	case string:
		return rules.apply(t)
	case map[string]interface{}:
		for k, inner := range t {
			t[k] = redactValue(inner, rules)
		}
		return t
	case []interface{}:
		for i, inner := range t {
			t[i] = redactValue(inner, rules)
		}
		return t
	default:
		return v
	}
}

// ShouldRedact interprets the per-request transparency flag the HTTP
// collaborator reads from its httpOnly cookie.
func ShouldRedact(cookieValue string) bool {
	switch cookieValue {
	case "1", "true", "on":
		return true
	}
	return false
}
