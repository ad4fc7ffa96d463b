// Package normalize turns unstructured provider replies into the structured
// shapes the API promises. Providers routinely deviate from the requested
// format, so every parser here is two-stage: a strict JSON decode first, then
// a deterministic fallback that always yields some usable result.
package normalize

import (
	"encoding/json"
	"math"
	"strings"
	"unicode/utf8"

	"github.com/arbiterhq/arbiter/pkg/domain"
)

// maxFallbackOptions caps how many options the line-scanning fallback keeps.
const maxFallbackOptions = 6

// weightTolerance is how far a criteria weight sum may drift from 100 before
// rescaling kicks in.
const weightTolerance = 5.0

// optionMarkers are the characters that introduce (and decorate) option lines
// in free-form replies.
const optionMarkers = "•-*\""

// Options decodes a reply expected to be a JSON array of strings. When the
// reply is not valid JSON or not an array, it falls back to scanning the text
// line by line. The result is never nil.
func Options(raw string) []string {
	var options []string
	if err := json.Unmarshal([]byte(raw), &options); err == nil && options != nil {
		return options
	}
	return optionsFromText(raw)
}

// optionsFromText extracts options from free-form text: one candidate per
// line, recognised by a leading quote or bullet marker, stripped of marker
// characters and capped at maxFallbackOptions. Line order is preserved.
func optionsFromText(raw string) []string {
	options := []string{}
	for _, line := range strings.Split(strings.TrimSpace(raw), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		first, _ := utf8.DecodeRuneInString(line)
		if !strings.ContainsRune(optionMarkers, first) {
			continue
		}
		cleaned := strings.TrimSpace(strings.Trim(line, optionMarkers))
		if cleaned == "" {
			continue
		}
		options = append(options, cleaned)
		if len(options) == maxFallbackOptions {
			break
		}
	}
	return options
}

// DefaultCriteria returns the fixed criteria used when a criteria reply
// cannot be decoded.
func DefaultCriteria() []domain.Criterion {
	return []domain.Criterion{
		{Name: "Cost", Weight: 25},
		{Name: "Feasibility", Weight: 25},
		{Name: "Long-term Impact", Weight: 25},
		{Name: "Personal Preference", Weight: 25},
	}
}

// Criteria decodes a reply expected to be a JSON array of {name, weight}
// objects. Undecodable replies produce DefaultCriteria. A weight absent from
// an object counts as 0. When the decoded weights sum more than
// weightTolerance away from 100, every weight is rescaled proportionally and
// rounded to one decimal place; a non-positive sum cannot be rescaled and
// also produces DefaultCriteria.
func Criteria(raw string) []domain.Criterion {
	var criteria []domain.Criterion
	if err := json.Unmarshal([]byte(raw), &criteria); err != nil || criteria == nil {
		return DefaultCriteria()
	}
	if len(criteria) == 0 {
		return criteria
	}

	sum := 0.0
	for _, c := range criteria {
		sum += c.Weight
	}
	if math.Abs(sum-100) <= weightTolerance {
		return criteria
	}
	if sum <= 0 {
		return DefaultCriteria()
	}

	for i := range criteria {
		criteria[i].Weight = round1(criteria[i].Weight / sum * 100)
	}
	return criteria
}

func round1(x float64) float64 {
	return math.Round(x*10) / 10
}
