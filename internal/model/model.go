// Package model defines the canonical data types for a ChopChop session:
// the loaded issue, clarification questions, the execution plan and its
// steps, subtasks, and the record of issues created on GitHub.
package model

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Issue is a GitHub issue (fetched or pasted) being decomposed.
// Immutable once loaded into a session.
type Issue struct {
	ID         string `json:"id"`
	Title      string `json:"title"`
	Body       string `json:"body"`
	URL        string `json:"url,omitempty"`
	Number     int    `json:"number,omitempty"`
	Repository string `json:"repository,omitempty"`
}

// ClarificationQuestion is a single question the assistant asks before
// planning. Required questions gate advancement past the clarification stage.
type ClarificationQuestion struct {
	ID       string `json:"id"`
	Question string `json:"question"`
	Answer   string `json:"answer,omitempty"`
	Required bool   `json:"required"`
}

// Answered reports whether the question has a non-blank answer.
func (q ClarificationQuestion) Answered() bool {
	return strings.TrimSpace(q.Answer) != ""
}

// ExecutionPlan holds the assistant-generated plan. Content is the single
// source of truth; Steps is a derived projection regenerated on demand.
type ExecutionPlan struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	Content     string     `json:"content"`
	Steps       []PlanStep `json:"steps"`
	// Subtasks is the approved breakdown at save time, so a saved plan
	// round-trips with the work items it produced.
	Subtasks  []Subtask `json:"subtasks,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// PlanStep is one structured step parsed out of plan content.
type PlanStep struct {
	ID            string    `json:"id"`
	Title         string    `json:"title"`
	Description   string    `json:"description,omitempty"`
	Order         int       `json:"order"`
	Subtasks      []Subtask `json:"subtasks"`
	IsGroupedUnit bool      `json:"is_grouped_unit"`
	AllowSplit    bool      `json:"allow_split"`
}

// Subtask is an actionable unit of work derived from the plan, sized to
// land as a single issue (and ideally a single PR).
type Subtask struct {
	ID                  string   `json:"id"`
	Title               string   `json:"title"`
	Description         string   `json:"description,omitempty"`
	AcceptanceCriteria  []string `json:"acceptance_criteria"`
	Guardrails          []string `json:"guardrails,omitempty"`
	EstimatedHours      int      `json:"estimated_hours"`
	Order               int      `json:"order"`
	IsTooBig            bool     `json:"is_too_big"`
	Tags                []string `json:"tags,omitempty"`
	DependsOn           []string `json:"depends_on,omitempty"`
	PrerequisiteTaskIDs []string `json:"prerequisite_task_ids,omitempty"`
	AffectedFiles       []string `json:"affected_files,omitempty"`
}

// Clone returns a deep copy of the subtask. Slice fields are copied so the
// split engine can hand out independent parts without aliasing.
func (s Subtask) Clone() Subtask {
	c := s
	c.AcceptanceCriteria = append([]string(nil), s.AcceptanceCriteria...)
	c.Guardrails = append([]string(nil), s.Guardrails...)
	c.Tags = append([]string(nil), s.Tags...)
	c.DependsOn = append([]string(nil), s.DependsOn...)
	c.PrerequisiteTaskIDs = append([]string(nil), s.PrerequisiteTaskIDs...)
	c.AffectedFiles = append([]string(nil), s.AffectedFiles...)
	return c
}

// CreatedIssue records one GitHub issue created from a subtask.
// Append-only within a session.
type CreatedIssue struct {
	Number    int    `json:"number"`
	URL       string `json:"url"`
	Title     string `json:"title"`
	SubtaskID string `json:"subtask_id"`
}

// NewID returns a fresh short identifier with the given prefix,
// e.g. "ST-1a2b3c4d".
func NewID(prefix string) string {
	return prefix + "-" + uuid.New().String()[:8]
}

// ChildID derives a deterministic identifier for a part of a split subtask.
// Deriving from the parent ID keeps re-splits collision-free without
// another round of random IDs.
func ChildID(parentID string, part int) string {
	return fmt.Sprintf("%s-p%d", parentID, part)
}

// ParseIssueMarkdown builds an Issue from pasted markdown: the first heading
// line becomes the title, everything after it the body. Input with no
// heading uses the first non-empty line as the title.
func ParseIssueMarkdown(text string) Issue {
	lines := strings.Split(text, "\n")
	title := ""
	bodyStart := 0
	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		title = strings.TrimSpace(strings.TrimLeft(trimmed, "# "))
		bodyStart = i + 1
		break
	}
	body := strings.TrimSpace(strings.Join(lines[bodyStart:], "\n"))
	return Issue{
		ID:    NewID("ISS"),
		Title: title,
		Body:  body,
	}
}
