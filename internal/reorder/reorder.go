// Package reorder maintains stable ordering of plan steps and subtasks
// under insert, delete, and move operations. Every mutating operation ends
// with an unconditional renumber so Order values stay dense, 1-based, and
// strictly ascending.
package reorder

import "github.com/randalmurphal/chopchop/internal/model"

// Renumber assigns dense 1-based orders matching array position. It is the
// final step of every mutating operation and is safe to call on any list.
func Renumber[T any](list []T, setOrder func(*T, int)) []T {
	for i := range list {
		setOrder(&list[i], i+1)
	}
	return list
}

// Move relocates the element at fromIndex to toIndex and renumbers.
// Out-of-range indices leave the list unchanged (apart from renumbering).
func Move[T any](list []T, fromIndex, toIndex int, setOrder func(*T, int)) []T {
	if fromIndex < 0 || fromIndex >= len(list) || toIndex < 0 || toIndex >= len(list) {
		return Renumber(list, setOrder)
	}
	item := list[fromIndex]
	list = append(list[:fromIndex], list[fromIndex+1:]...)
	list = append(list[:toIndex], append([]T{item}, list[toIndex:]...)...)
	return Renumber(list, setOrder)
}

// InsertAfter inserts item immediately after the element with anchorID and
// renumbers. An unknown anchor appends to the end.
func InsertAfter[T any](list []T, anchorID string, item T, id func(T) string, setOrder func(*T, int)) []T {
	pos := len(list)
	for i := range list {
		if id(list[i]) == anchorID {
			pos = i + 1
			break
		}
	}
	list = append(list[:pos], append([]T{item}, list[pos:]...)...)
	return Renumber(list, setOrder)
}

// Remove deletes the element with the given id and closes the gap.
// A nonexistent id is a no-op, not an error.
func Remove[T any](list []T, removeID string, id func(T) string, setOrder func(*T, int)) []T {
	for i := range list {
		if id(list[i]) == removeID {
			list = append(list[:i], list[i+1:]...)
			break
		}
	}
	return Renumber(list, setOrder)
}

// SpliceAt replaces the element at index with the given replacements and
// renumbers, shifting everything after by len(replacements)-1. The split
// engine uses this to commit a split in place.
func SpliceAt[T any](list []T, index int, replacements []T, setOrder func(*T, int)) []T {
	if index < 0 || index >= len(list) {
		return Renumber(list, setOrder)
	}
	out := make([]T, 0, len(list)+len(replacements)-1)
	out = append(out, list[:index]...)
	out = append(out, replacements...)
	out = append(out, list[index+1:]...)
	return Renumber(out, setOrder)
}

// Accessors for the two ordered list types. Passing these keeps call sites
// uniform across steps and subtasks.

func SubtaskID(s model.Subtask) string        { return s.ID }
func SetSubtaskOrder(s *model.Subtask, n int) { s.Order = n }
func StepID(s model.PlanStep) string          { return s.ID }
func SetStepOrder(s *model.PlanStep, n int)   { s.Order = n }

// MoveSubtask relocates a subtask by index.
func MoveSubtask(list []model.Subtask, from, to int) []model.Subtask {
	return Move(list, from, to, SetSubtaskOrder)
}

// RemoveSubtask deletes a subtask by id.
func RemoveSubtask(list []model.Subtask, id string) []model.Subtask {
	return Remove(list, id, SubtaskID, SetSubtaskOrder)
}

// InsertSubtaskAfter inserts a subtask after the anchor id.
func InsertSubtaskAfter(list []model.Subtask, anchorID string, item model.Subtask) []model.Subtask {
	return InsertAfter(list, anchorID, item, SubtaskID, SetSubtaskOrder)
}

// MoveStep relocates a plan step by index.
func MoveStep(list []model.PlanStep, from, to int) []model.PlanStep {
	return Move(list, from, to, SetStepOrder)
}

// RemoveStep deletes a plan step by id.
func RemoveStep(list []model.PlanStep, id string) []model.PlanStep {
	return Remove(list, id, StepID, SetStepOrder)
}

// InsertStepAfter inserts a plan step after the anchor id.
func InsertStepAfter(list []model.PlanStep, anchorID string, item model.PlanStep) []model.PlanStep {
	return InsertAfter(list, anchorID, item, StepID, SetStepOrder)
}
