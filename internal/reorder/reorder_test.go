package reorder

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/randalmurphal/chopchop/internal/model"
)

func subtasks(n int) []model.Subtask {
	list := make([]model.Subtask, n)
	for i := range list {
		list[i] = model.Subtask{
			ID:    fmt.Sprintf("ST-%d", i+1),
			Title: fmt.Sprintf("Task %d", i+1),
			Order: i + 1,
		}
	}
	return list
}

func assertDense(t *testing.T, list []model.Subtask) {
	t.Helper()
	for i, s := range list {
		if s.Order != i+1 {
			t.Fatalf("order not dense at %d: got %d, list %+v", i, s.Order, list)
		}
	}
}

func TestMoveSubtask(t *testing.T) {
	list := MoveSubtask(subtasks(4), 0, 2)

	wantIDs := []string{"ST-2", "ST-3", "ST-1", "ST-4"}
	for i, want := range wantIDs {
		if list[i].ID != want {
			t.Errorf("position %d = %s, want %s", i, list[i].ID, want)
		}
	}
	assertDense(t, list)
}

func TestMoveSubtask_OutOfRange(t *testing.T) {
	list := MoveSubtask(subtasks(3), 5, 1)
	if len(list) != 3 {
		t.Fatalf("expected 3 items, got %d", len(list))
	}
	assertDense(t, list)
}

func TestRemoveSubtask(t *testing.T) {
	list := RemoveSubtask(subtasks(3), "ST-2")
	if len(list) != 2 {
		t.Fatalf("expected 2 items, got %d", len(list))
	}
	if list[0].ID != "ST-1" || list[1].ID != "ST-3" {
		t.Errorf("unexpected ids: %s, %s", list[0].ID, list[1].ID)
	}
	assertDense(t, list)
}

func TestRemoveSubtask_MissingIDIsNoop(t *testing.T) {
	list := RemoveSubtask(subtasks(3), "ST-99")
	if len(list) != 3 {
		t.Fatalf("expected 3 items, got %d", len(list))
	}
	assertDense(t, list)
}

func TestInsertSubtaskAfter(t *testing.T) {
	item := model.Subtask{ID: "ST-NEW", Title: "New"}
	list := InsertSubtaskAfter(subtasks(3), "ST-1", item)

	if list[1].ID != "ST-NEW" {
		t.Errorf("position 1 = %s, want ST-NEW", list[1].ID)
	}
	assertDense(t, list)
}

func TestInsertSubtaskAfter_UnknownAnchorAppends(t *testing.T) {
	item := model.Subtask{ID: "ST-NEW", Title: "New"}
	list := InsertSubtaskAfter(subtasks(2), "ST-missing", item)

	if list[len(list)-1].ID != "ST-NEW" {
		t.Errorf("expected new item appended, got %s", list[len(list)-1].ID)
	}
	assertDense(t, list)
}

func TestSpliceAt(t *testing.T) {
	parts := []model.Subtask{
		{ID: "ST-2-p1", Title: "Part 1"},
		{ID: "ST-2-p2", Title: "Part 2"},
	}
	list := SpliceAt(subtasks(3), 1, parts, SetSubtaskOrder)

	if len(list) != 4 {
		t.Fatalf("expected 4 items, got %d", len(list))
	}
	if list[1].ID != "ST-2-p1" || list[2].ID != "ST-2-p2" {
		t.Errorf("splice misplaced: %s, %s", list[1].ID, list[2].ID)
	}
	if list[3].ID != "ST-3" || list[3].Order != 4 {
		t.Errorf("trailing item not shifted: %s order %d", list[3].ID, list[3].Order)
	}
	assertDense(t, list)
}

func TestStepOperations(t *testing.T) {
	steps := []model.PlanStep{
		{ID: "STEP-1", Title: "A", Order: 1},
		{ID: "STEP-2", Title: "B", Order: 2},
		{ID: "STEP-3", Title: "C", Order: 3},
	}

	moved := MoveStep(steps, 2, 0)
	if moved[0].ID != "STEP-3" || moved[0].Order != 1 {
		t.Errorf("move failed: %+v", moved[0])
	}

	removed := RemoveStep(moved, "STEP-1")
	if len(removed) != 2 {
		t.Fatalf("expected 2 steps, got %d", len(removed))
	}
	for i, s := range removed {
		if s.Order != i+1 {
			t.Errorf("step order not dense at %d: %d", i, s.Order)
		}
	}
}

// Random sequences of operations must always leave a dense 1..n ordering.
func TestOrderInvariantUnderRandomOps(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	list := subtasks(6)

	for i := 0; i < 200; i++ {
		switch rng.Intn(3) {
		case 0:
			if len(list) > 1 {
				list = MoveSubtask(list, rng.Intn(len(list)), rng.Intn(len(list)))
			}
		case 1:
			item := model.Subtask{ID: fmt.Sprintf("ST-new-%d", i)}
			anchor := "ST-missing"
			if len(list) > 0 {
				anchor = list[rng.Intn(len(list))].ID
			}
			list = InsertSubtaskAfter(list, anchor, item)
		case 2:
			if len(list) > 1 {
				list = RemoveSubtask(list, list[rng.Intn(len(list))].ID)
			}
		}
		assertDense(t, list)
	}
}
