package sqlflow

import (
	"context"
	"fmt"
	"regexp"
	"strings"
)

// disallowedPattern matches the mutating / DDL keywords the pipeline refuses
// to touch, as whole words, case-insensitively.
var disallowedPattern = regexp.MustCompile(`(?i)\b(CREATE|DELETE|DROP|INSERT|UPDATE|ALTER|TRUNCATE|EXEC|EXECUTE)\b`)

// findDisallowed returns the deduplicated, uppercased disallowed keywords
// found in text. Order follows first appearance.
func findDisallowed(text string) []string {
	matches := disallowedPattern.FindAllString(text, -1)
	if len(matches) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(matches))
	var found []string
	for _, m := range matches {
		kw := strings.ToUpper(m)
		if !seen[kw] {
			seen[kw] = true
			found = append(found, kw)
		}
	}
	return found
}

// preSafetyCheck screens the translated question before anything else runs.
// The lexical block-list fires first; when it passes, the model classifies
// the input for toxic content. Either failure ends the run.
func (p *Pipeline) preSafetyCheck(ctx context.Context, s *State) {
	s.Err = false

	if found := findDisallowed(s.TranslatedQuestion); len(found) > 0 {
		s.log.Warn("input contains disallowed SQL operations", "keywords", found)
		s.Err = true
		s.appendAssistant("Your query contains disallowed SQL operations and cannot be processed.")
		return
	}

	resp, err := p.Model.Complete(ctx, fmt.Sprintf(inputSafetyPrompt, s.TranslatedQuestion))
	if err != nil {
		s.log.Error("safety classification failed", "error", err)
		s.Err = true
		s.appendAssistant("Your query could not be checked for safety and cannot be processed.")
		return
	}

	if !strings.EqualFold(strings.TrimSpace(resp), "safe") {
		s.log.Warn("input classified as inappropriate")
		s.Err = true
		s.appendAssistant("Your query contains inappropriate content and cannot be processed.")
		return
	}

	s.log.Debug("input passed safety check")
}

// postSafetyCheck re-screens the generated SQL. Only the lexical block-list
// runs here; the semantic classifier is not reapplied to generated SQL.
// Unlike the pre-check, a failure routes back to generation while attempts
// remain.
func (p *Pipeline) postSafetyCheck(s *State) {
	s.Err = false

	sqlCode := ""
	if s.Candidate != nil {
		sqlCode = s.Candidate.SQLCode
	}

	found := findDisallowed(sqlCode)
	if len(found) == 0 {
		s.log.Debug("generated SQL passed safety check")
		return
	}

	s.log.Warn("generated SQL contains disallowed operations", "keywords", found)
	s.Err = true
	s.appendAssistant(fmt.Sprintf(
		"The generated SQL query contains disallowed SQL operations: %s and cannot be processed.",
		strings.Join(found, ", ")))
}
