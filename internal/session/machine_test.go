package session

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/randalmurphal/chopchop/internal/config"
	chop "github.com/randalmurphal/chopchop/internal/errors"
	"github.com/randalmurphal/chopchop/internal/model"
)

// countingAssistant records calls and returns canned data.
type countingAssistant struct {
	questionCalls int
	planCalls     int
	subtaskCalls  int
	splitCalls    int
	splitResult   []model.Subtask
}

func (a *countingAssistant) GenerateClarificationQuestions(context.Context, model.Issue) ([]model.ClarificationQuestion, error) {
	a.questionCalls++
	return []model.ClarificationQuestion{
		{ID: "Q-1", Question: "What is the scope of this change?", Required: true},
		{ID: "Q-2", Question: "Any constraints to respect?"},
	}, nil
}

func (a *countingAssistant) GenerateExecutionPlan(context.Context, model.Issue, []model.ClarificationQuestion) (string, error) {
	a.planCalls++
	return "Intro.\n\n## Step one\nDo a thing.\n\n## Step two\nDo another.", nil
}

func (a *countingAssistant) GenerateSubtasks(context.Context, *model.ExecutionPlan) ([]model.Subtask, error) {
	a.subtaskCalls++
	return []model.Subtask{
		{ID: "ST-1", Title: "First", AcceptanceCriteria: []string{"done"}},
		{ID: "ST-2", Title: "Second", AcceptanceCriteria: []string{"done"}},
	}, nil
}

func (a *countingAssistant) SplitSubtask(context.Context, model.Subtask) ([]model.Subtask, error) {
	a.splitCalls++
	return a.splitResult, nil
}

func usableConfig() config.AppConfig {
	return config.AppConfig{GitHubPAT: "p", GitHubRepo: "o/r", OpenAIAPIKey: "k"}
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// advanceTo walks the machine forward to the target stage, loading the
// issue and answering required questions along the way.
func advanceTo(t *testing.T, m *Machine, target Stage) {
	t.Helper()
	ctx := context.Background()

	m.Dispatch(SetConfig{Config: usableConfig()})
	for m.State().Current != target {
		switch m.State().Current {
		case StageInput:
			if m.State().Issue == nil {
				m.Dispatch(SetIssue{Issue: model.Issue{ID: "ISS-1", Title: "Add dark mode", Body: "body"}})
			}
		case StageClarification:
			for _, q := range m.State().Questions {
				if q.Required && !q.Answered() {
					m.Dispatch(AnswerQuestion{ID: q.ID, Answer: "whole app"})
				}
			}
		}
		if err := m.Advance(ctx); err != nil {
			t.Fatalf("advance from %s: %v", m.State().Current, err)
		}
	}
}

func TestAdvance_GuardRefusesWithoutConfig(t *testing.T) {
	m := New(&countingAssistant{}, testLogger())

	err := m.Advance(context.Background())
	if err == nil {
		t.Fatal("expected guard failure without usable config")
	}
	if m.State().Current != StageConfig {
		t.Errorf("stage = %s, want config", m.State().Current)
	}
	if m.State().Err == nil {
		t.Error("guard failure should populate the error slot")
	}
}

func TestAdvance_FullForwardWalk(t *testing.T) {
	a := &countingAssistant{}
	m := New(a, testLogger())

	advanceTo(t, m, StageApproval)

	s := m.State()
	if s.Current != StageApproval {
		t.Fatalf("stage = %s, want approval", s.Current)
	}
	if a.questionCalls != 1 || a.planCalls != 1 || a.subtaskCalls != 1 {
		t.Errorf("generator calls = %d/%d/%d, want 1/1/1",
			a.questionCalls, a.planCalls, a.subtaskCalls)
	}
	if s.Plan == nil || len(s.Plan.Steps) != 2 {
		t.Fatalf("plan steps not parsed: %+v", s.Plan)
	}
	if len(s.Subtasks) != 2 || s.Subtasks[0].Order != 1 || s.Subtasks[1].Order != 2 {
		t.Errorf("subtasks not renumbered: %+v", s.Subtasks)
	}
}

func TestAdvance_RequiredQuestionGates(t *testing.T) {
	m := New(&countingAssistant{}, testLogger())
	advanceTo(t, m, StageClarification)

	// Required question unanswered: plan entry must be refused.
	err := m.Advance(context.Background())
	if err == nil {
		t.Fatal("expected refusal with unanswered required question")
	}
	ce := chop.AsChopError(err)
	if ce == nil || ce.Code != chop.CodeQuestionUnanswered {
		t.Errorf("error = %v, want QUESTION_UNANSWERED", err)
	}
	if m.State().Current != StageClarification {
		t.Errorf("stage moved despite guard failure: %s", m.State().Current)
	}
}

func TestEntryGuard_SubtasksWithoutPlan(t *testing.T) {
	a := &countingAssistant{}
	m := New(a, testLogger())

	if err := m.Guard(StageSubtasks); err == nil {
		t.Fatal("expected guard failure without plan")
	}
	// No auto-generation may have been attempted.
	if a.subtaskCalls != 0 {
		t.Errorf("subtask generator invoked %d times during refused entry", a.subtaskCalls)
	}
}

func TestAutoGeneration_IdempotentAcrossReentry(t *testing.T) {
	a := &countingAssistant{}
	m := New(a, testLogger())
	advanceTo(t, m, StageSubtasks)

	// Go back to clarification, then forward again twice.
	if err := m.GoTo(StageClarification); err != nil {
		t.Fatalf("GoTo: %v", err)
	}
	if err := m.Advance(context.Background()); err != nil {
		t.Fatalf("re-advance to plan: %v", err)
	}
	if err := m.Advance(context.Background()); err != nil {
		t.Fatalf("re-advance to subtasks: %v", err)
	}

	if a.questionCalls != 1 || a.planCalls != 1 || a.subtaskCalls != 1 {
		t.Errorf("generator calls = %d/%d/%d after re-entry, want 1/1/1",
			a.questionCalls, a.planCalls, a.subtaskCalls)
	}
}

func TestGoTo_BackwardKeepsDownstreamData(t *testing.T) {
	m := New(&countingAssistant{}, testLogger())
	advanceTo(t, m, StageSubtasks)

	if err := m.GoTo(StageInput); err != nil {
		t.Fatalf("GoTo: %v", err)
	}
	s := m.State()
	if s.Current != StageInput {
		t.Errorf("stage = %s, want input", s.Current)
	}
	if s.Plan == nil || len(s.Subtasks) == 0 {
		t.Error("backward navigation must not clear downstream data")
	}
}

func TestGoTo_ForwardAndUnvisitedRefused(t *testing.T) {
	m := New(&countingAssistant{}, testLogger())
	m.Dispatch(SetConfig{Config: usableConfig()})

	if err := m.GoTo(StageApproval); err == nil {
		t.Error("jump to unvisited stage must fail")
	}

	advanceTo(t, m, StageClarification)
	if err := m.GoTo(StageClarification); err != nil {
		t.Errorf("jump to current stage should succeed: %v", err)
	}
}

func TestLoading_BlocksAdvance(t *testing.T) {
	m := New(&countingAssistant{}, testLogger())
	m.Dispatch(SetConfig{Config: usableConfig()})
	m.Dispatch(SetLoading{Loading: true})

	if err := m.Advance(context.Background()); err == nil {
		t.Error("advance must be refused while loading")
	}
}

func TestSplitSubtask_CommitsInPlace(t *testing.T) {
	a := &countingAssistant{
		splitResult: []model.Subtask{
			{ID: "ST-1-p1", Title: "First - Part 1", AcceptanceCriteria: []string{"a"}},
			{ID: "ST-1-p2", Title: "First - Part 2", AcceptanceCriteria: []string{"b"}},
		},
	}
	m := New(a, testLogger())
	advanceTo(t, m, StageSubtasks)

	if err := m.SplitSubtask(context.Background(), "ST-1"); err != nil {
		t.Fatalf("SplitSubtask: %v", err)
	}

	s := m.State()
	if len(s.Subtasks) != 3 {
		t.Fatalf("expected 3 subtasks after split, got %d", len(s.Subtasks))
	}
	wantIDs := []string{"ST-1-p1", "ST-1-p2", "ST-2"}
	for i, want := range wantIDs {
		if s.Subtasks[i].ID != want {
			t.Errorf("position %d = %s, want %s", i, s.Subtasks[i].ID, want)
		}
		if s.Subtasks[i].Order != i+1 {
			t.Errorf("position %d order = %d", i, s.Subtasks[i].Order)
		}
	}
}

func TestSplitSubtask_UnknownID(t *testing.T) {
	m := New(&countingAssistant{}, testLogger())
	advanceTo(t, m, StageSubtasks)

	if err := m.SplitSubtask(context.Background(), "ST-missing"); err == nil {
		t.Error("expected error for unknown subtask id")
	}
}

func TestReduce_PlanContentAuthoritativeUntilRegenerate(t *testing.T) {
	m := New(&countingAssistant{}, testLogger())
	advanceTo(t, m, StagePlan)

	before := len(m.State().Plan.Steps)
	m.Dispatch(UpdatePlanContent{Content: "## Only step\nEverything at once."})

	if got := len(m.State().Plan.Steps); got != before {
		t.Errorf("steps regenerated implicitly: %d -> %d", before, got)
	}

	m.Dispatch(RegenerateSteps{})
	steps := m.State().Plan.Steps
	if len(steps) != 1 || steps[0].Title != "Only step" {
		t.Errorf("steps after regenerate = %+v", steps)
	}
}

func TestReduce_SetStepsSerializesContent(t *testing.T) {
	m := New(&countingAssistant{}, testLogger())
	advanceTo(t, m, StagePlan)

	steps := m.State().Plan.Steps
	steps[0].Title = "Renamed step"
	m.Dispatch(SetSteps{Steps: steps})

	plan := m.State().Plan
	if plan.Content == "" || plan.Steps[0].Title != "Renamed step" {
		t.Fatalf("steps not applied: %+v", plan.Steps)
	}
	// Content is re-serialized from the edited steps and keeps the intro.
	if want := "## Renamed step"; !strings.Contains(plan.Content, want) {
		t.Errorf("content missing %q:\n%s", want, plan.Content)
	}
	if !strings.Contains(plan.Content, "Intro.") {
		t.Errorf("intro block lost:\n%s", plan.Content)
	}
}

func TestReduce_ToggleFlagsIndependent(t *testing.T) {
	m := New(&countingAssistant{}, testLogger())
	advanceTo(t, m, StagePlan)

	id := m.State().Plan.Steps[0].ID
	m.Dispatch(ToggleStepGrouped{ID: id})

	step := m.State().Plan.Steps[0]
	if !step.IsGroupedUnit || step.AllowSplit {
		t.Errorf("grouped toggle affected allow-split: %+v", step)
	}

	m.Dispatch(ToggleStepAllowSplit{ID: id})
	step = m.State().Plan.Steps[0]
	if !step.IsGroupedUnit || !step.AllowSplit {
		t.Errorf("flags = %+v, want both set", step)
	}
}

func TestState_SnapshotsSafeDuringOperations(t *testing.T) {
	a := &countingAssistant{}
	m := New(a, testLogger())

	// A reader polls snapshots while the walk advances and regenerates,
	// the way the UI renders while an operation runs on its goroutine.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 1000; i++ {
			s := m.State()
			s.Visited[StageApproval] = true // snapshot map must be isolated
			_ = len(s.Questions)
		}
	}()

	advanceTo(t, m, StageApproval)
	<-done

	if m.State().Current != StageApproval {
		t.Errorf("stage = %s, want approval", m.State().Current)
	}
	if m.State().Visited[StageApproval] != true {
		t.Error("approval should be visited by the walk itself")
	}
}

func TestState_VisitedCopyIsolated(t *testing.T) {
	m := New(&countingAssistant{}, testLogger())

	s := m.State()
	s.Visited[StageApproval] = true

	if m.State().Visited[StageApproval] {
		t.Error("mutating a snapshot's visited set leaked into the machine")
	}
}

func TestAdvance_LogsTransitions(t *testing.T) {
	var buf strings.Builder
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	m := New(&countingAssistant{}, logger)

	m.Dispatch(SetConfig{Config: usableConfig()})
	if err := m.Advance(context.Background()); err != nil {
		t.Fatalf("advance: %v", err)
	}
	if !strings.Contains(buf.String(), "stage advanced") {
		t.Errorf("transition not logged:\n%s", buf.String())
	}

	m.Dispatch(SetIssue{Issue: model.Issue{ID: "ISS-1", Title: "t", Body: "b"}})
	if err := m.Advance(context.Background()); err != nil {
		t.Fatalf("advance: %v", err)
	}
	if err := m.GoTo(StageInput); err != nil {
		t.Fatalf("GoTo: %v", err)
	}
	if !strings.Contains(buf.String(), "stage revisited") {
		t.Errorf("backward jump not logged:\n%s", buf.String())
	}
}

func TestReduce_ErrorSlotSupersedes(t *testing.T) {
	m := New(&countingAssistant{}, testLogger())

	m.Dispatch(SetError{Err: chop.New(chop.CodeIssueMissing, "first")})
	m.Dispatch(SetError{Err: chop.New(chop.CodePlanMissing, "second")})

	ce := chop.AsChopError(m.State().Err)
	if ce == nil || ce.Code != chop.CodePlanMissing {
		t.Errorf("error slot = %v, want the most recent error", m.State().Err)
	}

	m.Dispatch(ClearError{})
	if m.State().Err != nil {
		t.Error("error slot not cleared")
	}
}
