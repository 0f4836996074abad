package split

import (
	"context"
	"errors"
	"testing"

	"github.com/randalmurphal/chopchop/internal/model"
)

type mockSplitter struct {
	parts []model.Subtask
	err   error
	calls int
}

func (m *mockSplitter) SplitSubtask(_ context.Context, _ model.Subtask) ([]model.Subtask, error) {
	m.calls++
	return m.parts, m.err
}

func bigTask() model.Subtask {
	return model.Subtask{
		ID:                 "ST-big",
		Title:              "Big Task",
		Description:        "Does everything",
		AcceptanceCriteria: []string{"a", "b", "c"},
		Guardrails:         []string{"do not break prod"},
		EstimatedHours:     5,
		Order:              2,
		IsTooBig:           true,
		Tags:               []string{"backend"},
		DependsOn:          []string{"ST-1"},
	}
}

func TestSplit_DeterministicFallback(t *testing.T) {
	parts, err := Split(context.Background(), bigTask(), nil)
	if err != nil {
		t.Fatalf("Split() error = %v", err)
	}
	if len(parts) != 2 {
		t.Fatalf("expected 2 parts, got %d", len(parts))
	}

	if parts[0].Title != "Big Task - Part 1" || parts[1].Title != "Big Task - Part 2" {
		t.Errorf("titles = %q, %q", parts[0].Title, parts[1].Title)
	}

	if len(parts[0].AcceptanceCriteria) != 2 || parts[0].AcceptanceCriteria[0] != "a" || parts[0].AcceptanceCriteria[1] != "b" {
		t.Errorf("part 1 criteria = %v, want [a b]", parts[0].AcceptanceCriteria)
	}
	if len(parts[1].AcceptanceCriteria) != 1 || parts[1].AcceptanceCriteria[0] != "c" {
		t.Errorf("part 2 criteria = %v, want [c]", parts[1].AcceptanceCriteria)
	}

	if parts[0].EstimatedHours != 3 || parts[1].EstimatedHours != 2 {
		t.Errorf("hours = %d, %d, want 3, 2", parts[0].EstimatedHours, parts[1].EstimatedHours)
	}

	if parts[0].IsTooBig || parts[1].IsTooBig {
		t.Error("split parts must not keep the too-big flag")
	}

	if parts[0].Order != 2 || parts[1].Order != 3 {
		t.Errorf("orders = %d, %d, want 2, 3", parts[0].Order, parts[1].Order)
	}

	// Dependency references and tags are copied to both parts unchanged.
	for i, p := range parts {
		if len(p.DependsOn) != 1 || p.DependsOn[0] != "ST-1" {
			t.Errorf("part %d depends_on = %v", i+1, p.DependsOn)
		}
		if len(p.Tags) != 1 || p.Tags[0] != "backend" {
			t.Errorf("part %d tags = %v", i+1, p.Tags)
		}
	}

	// IDs derive from the parent.
	if parts[0].ID != "ST-big-p1" || parts[1].ID != "ST-big-p2" {
		t.Errorf("ids = %s, %s", parts[0].ID, parts[1].ID)
	}
}

func TestSplit_CriteriaUnionPreserved(t *testing.T) {
	cases := [][]string{
		{},
		{"only"},
		{"a", "b"},
		{"a", "b", "c", "d", "e"},
	}

	for _, criteria := range cases {
		st := bigTask()
		st.AcceptanceCriteria = criteria

		parts, err := Split(context.Background(), st, nil)
		if err != nil {
			t.Fatalf("Split() error = %v", err)
		}

		var union []string
		for _, p := range parts {
			union = append(union, p.AcceptanceCriteria...)
		}
		if len(union) != len(criteria) {
			t.Fatalf("criteria count changed: %v -> %v", criteria, union)
		}
		for i := range criteria {
			if union[i] != criteria[i] {
				t.Errorf("criteria reordered: %v -> %v", criteria, union)
			}
		}

		total := 0
		for _, p := range parts {
			total += p.EstimatedHours
		}
		if total != st.EstimatedHours {
			t.Errorf("hours sum = %d, want %d", total, st.EstimatedHours)
		}
	}
}

func TestSplit_AssistantAcceptedVerbatim(t *testing.T) {
	suggested := []model.Subtask{
		{ID: "x1", Title: "Schema work"},
		{ID: "x2", Title: "API work"},
		{ID: "x3", Title: "UI work"},
	}
	m := &mockSplitter{parts: suggested}

	parts, err := Split(context.Background(), bigTask(), m)
	if err != nil {
		t.Fatalf("Split() error = %v", err)
	}
	if len(parts) != 3 {
		t.Fatalf("expected 3 parts, got %d", len(parts))
	}
	if parts[0].Title != "Schema work" {
		t.Errorf("assistant result not accepted verbatim: %q", parts[0].Title)
	}
	// Orders are contiguous from the original position regardless of source.
	for i, p := range parts {
		if p.Order != 2+i {
			t.Errorf("part %d order = %d, want %d", i, p.Order, 2+i)
		}
	}
}

func TestSplit_AssistantErrorFallsBack(t *testing.T) {
	m := &mockSplitter{err: errors.New("timeout")}

	parts, err := Split(context.Background(), bigTask(), m)
	if err != nil {
		t.Fatalf("Split() error = %v", err)
	}
	if m.calls != 1 {
		t.Errorf("assistant calls = %d, want 1", m.calls)
	}
	if len(parts) != 2 || parts[0].Title != "Big Task - Part 1" {
		t.Errorf("expected deterministic fallback, got %+v", parts)
	}
}

func TestSplit_BlankTitleFallsBack(t *testing.T) {
	m := &mockSplitter{parts: []model.Subtask{
		{Title: "ok"},
		{Title: "   "},
	}}

	parts, err := Split(context.Background(), bigTask(), m)
	if err != nil {
		t.Fatalf("Split() error = %v", err)
	}
	if parts[0].Title != "Big Task - Part 1" {
		t.Errorf("expected fallback after blank-title suggestion, got %q", parts[0].Title)
	}
}

func TestApply(t *testing.T) {
	list := []model.Subtask{
		{ID: "ST-1", Title: "first", Order: 1},
		{ID: "ST-big", Title: "Big Task", Order: 2},
		{ID: "ST-3", Title: "third", Order: 3},
	}
	parts := []model.Subtask{
		{ID: "ST-big-p1", Title: "Big Task - Part 1"},
		{ID: "ST-big-p2", Title: "Big Task - Part 2"},
	}

	out := Apply(list, "ST-big", parts)
	if len(out) != 4 {
		t.Fatalf("expected 4 subtasks, got %d", len(out))
	}
	wantIDs := []string{"ST-1", "ST-big-p1", "ST-big-p2", "ST-3"}
	for i, want := range wantIDs {
		if out[i].ID != want {
			t.Errorf("position %d = %s, want %s", i, out[i].ID, want)
		}
		if out[i].Order != i+1 {
			t.Errorf("position %d order = %d, want %d", i, out[i].Order, i+1)
		}
	}
}

func TestApply_UnknownIDRenumbersOnly(t *testing.T) {
	list := []model.Subtask{
		{ID: "ST-1", Order: 7},
		{ID: "ST-2", Order: 9},
	}
	out := Apply(list, "ST-missing", nil)
	if len(out) != 2 || out[0].Order != 1 || out[1].Order != 2 {
		t.Errorf("expected renumber only, got %+v", out)
	}
}
