// Package assistant wraps the planning assistant behind a small interface:
// clarification questions, execution plans, subtask breakdowns, and splits.
// Every operation has a deterministic local fallback, so the wizard keeps
// working when the remote call fails or returns unusable content.
package assistant

import (
	"context"
	"fmt"
	"strings"

	"github.com/randalmurphal/chopchop/internal/model"
	"github.com/randalmurphal/chopchop/internal/planmd"
	"github.com/randalmurphal/chopchop/internal/split"
)

// Assistant is the planning capability the workflow consumes.
type Assistant interface {
	// GenerateClarificationQuestions returns 1-5 questions about the issue.
	GenerateClarificationQuestions(ctx context.Context, issue model.Issue) ([]model.ClarificationQuestion, error)

	// GenerateExecutionPlan returns plan markdown for the issue, taking
	// answered clarification questions into account.
	GenerateExecutionPlan(ctx context.Context, issue model.Issue, questions []model.ClarificationQuestion) (string, error)

	// GenerateSubtasks converts the plan into a subtask breakdown.
	GenerateSubtasks(ctx context.Context, plan *model.ExecutionPlan) ([]model.Subtask, error)

	// SplitSubtask breaks one subtask into two or more.
	SplitSubtask(ctx context.Context, st model.Subtask) ([]model.Subtask, error)
}

// Fallback is the deterministic, offline Assistant. It backs every remote
// operation and serves as the sole assistant when no API key is configured.
type Fallback struct{}

var _ Assistant = Fallback{}
var _ split.Splitter = Fallback{}

// genericQuestions is the mandatory baseline question set. Issue-specific
// questions are prepended when the issue body gives enough to go on.
var genericQuestions = []string{
	"What does a finished implementation look like for this issue?",
	"Which parts of the codebase are expected to change?",
	"Are there constraints on approach, dependencies, or compatibility?",
	"How should the change be tested and verified?",
}

// GenerateClarificationQuestions returns the generic question set, with a
// scoping question first when the issue body is thin.
func (Fallback) GenerateClarificationQuestions(_ context.Context, issue model.Issue) ([]model.ClarificationQuestion, error) {
	questions := make([]string, 0, len(genericQuestions)+1)
	if len(strings.TrimSpace(issue.Body)) < 80 {
		questions = append(questions,
			fmt.Sprintf("The issue %q has little detail; what outcome is expected?", issue.Title))
	}
	questions = append(questions, genericQuestions...)
	if len(questions) > 5 {
		questions = questions[:5]
	}

	out := make([]model.ClarificationQuestion, len(questions))
	for i, q := range questions {
		out[i] = model.ClarificationQuestion{
			ID:       fmt.Sprintf("Q-%d", i+1),
			Question: q,
			Required: i == 0,
		}
	}
	return out, nil
}

// GenerateExecutionPlan returns a skeletal plan built from the issue and
// any answered questions.
func (Fallback) GenerateExecutionPlan(_ context.Context, issue model.Issue, questions []model.ClarificationQuestion) (string, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "Execution plan for %q.\n", issue.Title)
	if notes := answerNotes(questions); notes != "" {
		b.WriteString("Informed by clarification answers:\n")
		b.WriteString(notes)
		b.WriteString("\n")
	}
	b.WriteString("\n## Investigate and confirm scope\n")
	b.WriteString("Read the affected code paths and confirm the boundaries of the change.\n")
	b.WriteString("\n## Implement the change\n")
	fmt.Fprintf(&b, "Make the code changes needed for %q.\n", issue.Title)
	b.WriteString("\n## Add tests\n")
	b.WriteString("Cover the new behavior, including the edge cases raised during clarification.\n")
	b.WriteString("\n## Update documentation\n")
	b.WriteString("Record user-facing or operational changes.\n")
	return b.String(), nil
}

// GenerateSubtasks maps plan steps one-to-one onto subtasks. A step without
// a parseable description still yields a subtask with a single criterion.
func (Fallback) GenerateSubtasks(_ context.Context, plan *model.ExecutionPlan) ([]model.Subtask, error) {
	steps := plan.Steps
	if len(steps) == 0 {
		steps = planmd.Parse(plan.Content)
	}

	var out []model.Subtask
	for _, step := range steps {
		criteria := criteriaFromDescription(step.Description)
		if len(criteria) == 0 {
			criteria = []string{step.Title + " is complete and reviewed"}
		}
		out = append(out, model.Subtask{
			ID:                 model.NewID("ST"),
			Title:              step.Title,
			Description:        step.Description,
			AcceptanceCriteria: criteria,
			EstimatedHours:     2,
			Order:              len(out) + 1,
		})
	}
	if len(out) == 0 {
		out = append(out, model.Subtask{
			ID:                 model.NewID("ST"),
			Title:              plan.Title,
			Description:        plan.Content,
			AcceptanceCriteria: []string{"Plan is implemented and reviewed"},
			EstimatedHours:     4,
			Order:              1,
		})
	}
	return out, nil
}

// SplitSubtask applies the deterministic two-way split.
func (Fallback) SplitSubtask(_ context.Context, st model.Subtask) ([]model.Subtask, error) {
	return split.Fallback(st), nil
}

// answerNotes renders answered questions as "- question: answer" lines.
func answerNotes(questions []model.ClarificationQuestion) string {
	var lines []string
	for _, q := range questions {
		if q.Answered() {
			lines = append(lines, fmt.Sprintf("- %s %s", q.Question, strings.TrimSpace(q.Answer)))
		}
	}
	return strings.Join(lines, "\n")
}

// criteriaFromDescription turns each sentence-like description line into an
// acceptance criterion.
func criteriaFromDescription(desc string) []string {
	var out []string
	for _, line := range strings.Split(desc, "\n") {
		line = strings.TrimSpace(strings.TrimLeft(strings.TrimSpace(line), "-* "))
		if line != "" {
			out = append(out, line)
		}
	}
	return out
}
