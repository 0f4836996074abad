// Package split turns one oversized subtask into two or more balanced
// subtasks, delegating to the planning assistant when one is available and
// falling back to a deterministic two-way split otherwise.
package split

import (
	"context"
	"strings"

	"github.com/randalmurphal/chopchop/internal/errors"
	"github.com/randalmurphal/chopchop/internal/model"
	"github.com/randalmurphal/chopchop/internal/reorder"
)

// Splitter is the assistant capability this package needs. A nil Splitter
// selects the deterministic fallback directly.
type Splitter interface {
	SplitSubtask(ctx context.Context, st model.Subtask) ([]model.Subtask, error)
}

// Split breaks st into at least two subtasks. Assistant output is accepted
// verbatim when every result has a non-empty title; on assistant failure or
// unusable output the deterministic fallback applies. The returned parts
// occupy contiguous orders starting at st.Order.
func Split(ctx context.Context, st model.Subtask, assistant Splitter) ([]model.Subtask, error) {
	var parts []model.Subtask

	if assistant != nil {
		suggested, err := assistant.SplitSubtask(ctx, st)
		if err == nil && usable(suggested) {
			parts = suggested
		}
	}
	if parts == nil {
		parts = Fallback(st)
	}

	if !usable(parts) {
		return nil, errors.ErrSplitDegenerate(st.Title)
	}

	for i := range parts {
		parts[i].Order = st.Order + i
	}
	return parts, nil
}

// usable reports whether a split result is committable: at least two parts,
// each with a non-blank title.
func usable(parts []model.Subtask) bool {
	if len(parts) < 2 {
		return false
	}
	for _, p := range parts {
		if strings.TrimSpace(p.Title) == "" {
			return false
		}
	}
	return true
}

// Fallback produces the deterministic two-way split. Acceptance criteria
// are divided at the ceiling of half; guardrails, tags, and dependency
// references are copied to both parts; estimated hours split ceil/floor so
// the parts sum exactly to the original.
func Fallback(st model.Subtask) []model.Subtask {
	mid := (len(st.AcceptanceCriteria) + 1) / 2

	part1 := st.Clone()
	part1.ID = model.ChildID(st.ID, 1)
	part1.Title = st.Title + " - Part 1"
	part1.AcceptanceCriteria = append([]string(nil), st.AcceptanceCriteria[:mid]...)
	part1.EstimatedHours = (st.EstimatedHours + 1) / 2
	part1.IsTooBig = false
	part1.Guardrails = append(part1.Guardrails, "Split from \""+st.Title+"\"; coordinate with the other part")

	part2 := st.Clone()
	part2.ID = model.ChildID(st.ID, 2)
	part2.Title = st.Title + " - Part 2"
	part2.AcceptanceCriteria = append([]string(nil), st.AcceptanceCriteria[mid:]...)
	part2.EstimatedHours = st.EstimatedHours / 2
	part2.IsTooBig = false
	part2.Guardrails = append(part2.Guardrails, "Split from \""+st.Title+"\"; coordinate with the other part")

	return []model.Subtask{part1, part2}
}

// Apply commits a split into the subtask list: the entry matching id is
// replaced by parts and everything after shifts by len(parts)-1. The list
// is renumbered densely as the final step.
func Apply(list []model.Subtask, id string, parts []model.Subtask) []model.Subtask {
	for i := range list {
		if list[i].ID == id {
			return reorder.SpliceAt(list, i, parts, reorder.SetSubtaskOrder)
		}
	}
	return reorder.Renumber(list, reorder.SetSubtaskOrder)
}
