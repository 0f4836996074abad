package assistant

import (
	"regexp"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/randalmurphal/chopchop/internal/model"
)

const (
	minQuestionLen = 10
	maxQuestionLen = 200
	maxQuestions   = 5
)

// listPrefixPattern strips bullet and ordinal prefixes from reply lines.
var listPrefixPattern = regexp.MustCompile(`^(?:[-*•]|\d+[.)])\s*`)

// ExtractQuestions pulls usable clarification questions out of free text:
// trimmed lines ending in "?", 10-200 chars, de-duplicated case-insensitively
// (first seen wins), capped at 5.
func ExtractQuestions(text string) []string {
	seen := make(map[string]bool)
	var out []string

	for _, line := range strings.Split(text, "\n") {
		q := strings.TrimSpace(listPrefixPattern.ReplaceAllString(strings.TrimSpace(line), ""))
		if !strings.HasSuffix(q, "?") {
			continue
		}
		if len(q) < minQuestionLen || len(q) > maxQuestionLen {
			continue
		}
		key := strings.ToLower(q)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, q)
		if len(out) == maxQuestions {
			break
		}
	}
	return out
}

// ExtractPlanContent strips a wrapping code fence from the reply, if any,
// and returns the trimmed markdown.
func ExtractPlanContent(text string) string {
	trimmed := strings.TrimSpace(text)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}
	lines := strings.Split(trimmed, "\n")
	if len(lines) < 2 {
		return trimmed
	}
	lines = lines[1:]
	if strings.TrimSpace(lines[len(lines)-1]) == "```" {
		lines = lines[:len(lines)-1]
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

// ExtractSubtasks locates a JSON array in the reply (bare, fenced, or
// embedded in prose) and maps its elements onto subtasks. Elements without
// a title are skipped. Orders are assigned by position.
func ExtractSubtasks(text string) []model.Subtask {
	payload := locateJSONArray(text)
	if payload == "" {
		return nil
	}

	parsed := gjson.Parse(payload)
	if !parsed.IsArray() {
		return nil
	}

	var out []model.Subtask
	for _, item := range parsed.Array() {
		title := strings.TrimSpace(item.Get("title").String())
		if title == "" {
			continue
		}
		st := model.Subtask{
			ID:                  model.NewID("ST"),
			Title:               title,
			Description:         item.Get("description").String(),
			AcceptanceCriteria:  stringList(item.Get("acceptance_criteria")),
			Guardrails:          stringList(item.Get("guardrails")),
			EstimatedHours:      int(item.Get("estimated_hours").Int()),
			IsTooBig:            item.Get("is_too_big").Bool(),
			Tags:                stringList(item.Get("tags")),
			DependsOn:           stringList(item.Get("depends_on")),
			PrerequisiteTaskIDs: stringList(item.Get("prerequisite_task_ids")),
			AffectedFiles:       stringList(item.Get("affected_files")),
			Order:               len(out) + 1,
		}
		if st.EstimatedHours < 0 {
			st.EstimatedHours = 0
		}
		if len(st.AcceptanceCriteria) == 0 {
			st.AcceptanceCriteria = []string{title + " is complete and reviewed"}
		}
		out = append(out, st)
	}
	return out
}

// locateJSONArray finds the JSON array payload in a reply: the whole text,
// a fenced block, or the outermost bracketed span.
func locateJSONArray(text string) string {
	trimmed := strings.TrimSpace(text)
	if gjson.Valid(trimmed) && gjson.Parse(trimmed).IsArray() {
		return trimmed
	}

	if start := strings.Index(trimmed, "```"); start >= 0 {
		rest := trimmed[start+3:]
		if nl := strings.Index(rest, "\n"); nl >= 0 {
			rest = rest[nl+1:]
		}
		if end := strings.Index(rest, "```"); end >= 0 {
			block := strings.TrimSpace(rest[:end])
			if gjson.Valid(block) && gjson.Parse(block).IsArray() {
				return block
			}
		}
	}

	open := strings.Index(trimmed, "[")
	close := strings.LastIndex(trimmed, "]")
	if open >= 0 && close > open {
		span := trimmed[open : close+1]
		if gjson.Valid(span) && gjson.Parse(span).IsArray() {
			return span
		}
	}
	return ""
}

func stringList(r gjson.Result) []string {
	if !r.IsArray() {
		return nil
	}
	var out []string
	for _, item := range r.Array() {
		if s := strings.TrimSpace(item.String()); s != "" {
			out = append(out, s)
		}
	}
	return out
}
