// ABOUTME: Stage, status, name, and department canonicalization
// ABOUTME: Unknown vocabulary passes through unchanged so it stays visible
package normalize

import (
	"strings"
	"unicode"

	"github.com/harperreed/crmpulse/models"
)

// collapseSpaces trims s and folds every whitespace run into one space.
func collapseSpaces(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// stageKey keeps only letters and digits, lowercased.
func stageKey(s string) string {
	var b strings.Builder
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(unicode.ToLower(r))
		}
	}
	return b.String()
}

// NormalizeStage maps a raw stage label to its canonical form.
// Unrecognized labels are returned unchanged.
func (v *Vocabulary) NormalizeStage(raw string) string {
	if canonical, ok := v.stageIndex[stageKey(raw)]; ok {
		return canonical
	}
	return raw
}

// NormalizeStatus maps a raw task status (label or numeric code) to its canonical form.
func (v *Vocabulary) NormalizeStatus(raw string) string {
	if canonical, ok := v.statusIndex[stageKey(raw)]; ok {
		return canonical
	}
	return raw
}

// NormalizePriority maps a raw priority (label or numeric code) to its canonical form.
func (v *Vocabulary) NormalizePriority(raw string) string {
	if canonical, ok := v.priority[stageKey(raw)]; ok {
		return canonical
	}
	return raw
}

// NormalizeName maps a raw person name to a known person, accepting
// "Last First" as well as "First Last". Unknown names come back cleaned.
func (v *Vocabulary) NormalizeName(raw string) string {
	name := collapseSpaces(raw)
	if name == "" || v.people[name] {
		return name
	}

	tokens := strings.Fields(name)
	if len(tokens) != 2 {
		return name
	}

	for _, person := range v.personTokens {
		if tokens[0] == person[0] && tokens[1] == person[1] {
			return person[0] + " " + person[1]
		}
		if tokens[0] == person[1] && tokens[1] == person[0] {
			return person[0] + " " + person[1]
		}
	}
	return name
}

// Department returns the department of a canonical responsible name.
func (v *Vocabulary) Department(responsible string) string {
	if dept, ok := v.department[responsible]; ok {
		return dept
	}
	return models.UnknownLabel
}

// IsKnownPerson reports whether name is in the people list.
func (v *Vocabulary) IsKnownPerson(name string) bool {
	return v.people[name]
}
