// Package planmd converts execution-plan markdown into structured plan
// steps and back. Parsing is a small line classifier (heading, metadata
// comment, content) so the round-trip behavior stays mechanically checkable.
package planmd

import (
	"regexp"
	"strings"

	"github.com/randalmurphal/chopchop/internal/model"
)

// Metadata markers carried through serialization. These are round-trip
// annotations, not meant for direct user editing.
const (
	GroupedUnitMarker = "<!-- GROUPED_UNIT:"
	AllowSplitMarker  = "<!-- ALLOW_SPLIT:"
)

// headingPattern matches a level-2 or level-3 heading, optionally with a
// leading ordinal like "1." after the hashes.
var headingPattern = regexp.MustCompile(`^(#{2,3})\s+(?:\d+\.\s*)?(.*)$`)

type lineClass int

const (
	classContent lineClass = iota
	classHeading
	classMetadata
	classBlank
)

func classify(line string) (lineClass, string) {
	trimmed := strings.TrimSpace(line)
	switch {
	case trimmed == "":
		return classBlank, ""
	case strings.Contains(trimmed, GroupedUnitMarker):
		return classMetadata, GroupedUnitMarker
	case strings.Contains(trimmed, AllowSplitMarker):
		return classMetadata, AllowSplitMarker
	}
	if m := headingPattern.FindStringSubmatch(trimmed); m != nil {
		return classHeading, strings.TrimSpace(m[2])
	}
	return classContent, trimmed
}

// Parse scans markdown line by line and returns the structured steps.
// Each H2/H3 heading opens a step; non-heading, non-empty lines until the
// next heading accumulate into its description. Steps with empty titles are
// discarded. Markdown with zero headings yields an empty list.
func Parse(markdown string) []model.PlanStep {
	var steps []model.PlanStep
	var current *model.PlanStep
	var descLines []string

	flush := func() {
		if current == nil {
			return
		}
		if strings.TrimSpace(current.Title) != "" {
			current.Description = strings.Join(descLines, "\n")
			current.Order = len(steps) + 1
			steps = append(steps, *current)
		}
		current = nil
		descLines = nil
	}

	for _, line := range strings.Split(markdown, "\n") {
		class, text := classify(line)
		switch class {
		case classHeading:
			flush()
			current = &model.PlanStep{
				ID:       model.NewID("STEP"),
				Title:    text,
				Subtasks: []model.Subtask{},
			}
		case classMetadata:
			if current != nil {
				switch text {
				case GroupedUnitMarker:
					current.IsGroupedUnit = true
				case AllowSplitMarker:
					current.AllowSplit = true
				}
			}
		case classContent:
			if current != nil {
				descLines = append(descLines, text)
			}
		case classBlank:
			// Blank lines separate paragraphs but carry no step content.
		}
	}
	flush()

	return steps
}

// Serialize renders steps back to markdown. Content preceding the first
// heading in originalMarkdown is preserved verbatim as an intro block.
// Serializing an empty step list returns the original content unchanged.
func Serialize(steps []model.PlanStep, originalMarkdown string) string {
	if len(steps) == 0 {
		return originalMarkdown
	}

	var b strings.Builder
	if intro := introBlock(originalMarkdown); intro != "" {
		b.WriteString(intro)
		b.WriteString("\n\n")
	}

	for i, step := range steps {
		if i > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString("## ")
		b.WriteString(step.Title)
		if step.IsGroupedUnit {
			b.WriteString("\n")
			b.WriteString(GroupedUnitMarker + " true -->")
		}
		if step.AllowSplit {
			b.WriteString("\n")
			b.WriteString(AllowSplitMarker + " true -->")
		}
		if desc := strings.TrimSpace(step.Description); desc != "" {
			b.WriteString("\n")
			b.WriteString(desc)
		}
	}

	return strings.TrimSpace(b.String())
}

// introBlock returns the trimmed content preceding the first heading.
func introBlock(markdown string) string {
	var intro []string
	for _, line := range strings.Split(markdown, "\n") {
		if class, _ := classify(line); class == classHeading {
			break
		}
		intro = append(intro, line)
	}
	return strings.TrimSpace(strings.Join(intro, "\n"))
}
