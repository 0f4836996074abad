// Package session owns the wizard's workflow state machine: the ordered
// stages, the guard conditions for advancing, and the single session state
// record that every other component mutates only through declared actions.
package session

import (
	"time"

	"github.com/randalmurphal/chopchop/internal/config"
	"github.com/randalmurphal/chopchop/internal/model"
	"github.com/randalmurphal/chopchop/internal/planmd"
	"github.com/randalmurphal/chopchop/internal/reorder"
	"github.com/randalmurphal/chopchop/internal/split"
	"github.com/randalmurphal/chopchop/internal/storage"
)

// State is the aggregate session state. It has exactly one writer, the
// Machine, which applies the closed Action set below.
type State struct {
	Current       Stage
	Config        config.AppConfig
	Issue         *model.Issue
	Questions     []model.ClarificationQuestion
	Plan          *model.ExecutionPlan
	Subtasks      []model.Subtask
	CreatedIssues []model.CreatedIssue
	SavedPlans    []storage.PlanMeta
	Loading       bool
	Err           error
	Visited       map[Stage]bool
}

// Action is one declared state transition. The set is closed: components
// never write State fields directly.
type Action interface{ isAction() }

type SetConfig struct{ Config config.AppConfig }

// SetIssue loads the issue for the session.
type SetIssue struct{ Issue model.Issue }

// SetQuestions replaces the clarification question list.
type SetQuestions struct{ Questions []model.ClarificationQuestion }

// AnswerQuestion records the answer to one question.
type AnswerQuestion struct{ ID, Answer string }

// SetPlan installs a freshly generated plan; steps are parsed from content.
type SetPlan struct{ Plan model.ExecutionPlan }

// UpdatePlanContent applies a user edit to the plan markdown. Content is
// authoritative; steps go stale until RegenerateSteps.
type UpdatePlanContent struct{ Content string }

// RegenerateSteps re-derives the structured steps from plan content.
type RegenerateSteps struct{}

// SetSteps replaces the structured steps and re-serializes plan content
// from them, preserving the intro block.
type SetSteps struct{ Steps []model.PlanStep }

// SetSubtasks replaces the subtask list.
type SetSubtasks struct{ Subtasks []model.Subtask }

// UpdateSubtask replaces one subtask by ID. Unknown IDs are ignored.
type UpdateSubtask struct{ Subtask model.Subtask }

// ApplySplit commits a split: the subtask with ID is replaced by Parts.
type ApplySplit struct {
	ID    string
	Parts []model.Subtask
}

// MoveSubtask relocates a subtask between positions.
type MoveSubtask struct{ From, To int }

// RemoveSubtask deletes a subtask; a missing ID is a no-op.
type RemoveSubtask struct{ ID string }

// ToggleStepGrouped flips the grouped-unit flag on a plan step.
type ToggleStepGrouped struct{ ID string }

// ToggleStepAllowSplit flips the allow-split override on a plan step.
type ToggleStepAllowSplit struct{ ID string }

// AppendCreatedIssue records one successfully created GitHub issue.
type AppendCreatedIssue struct{ Issue model.CreatedIssue }

// SetSavedPlans refreshes the saved-plan listing.
type SetSavedPlans struct{ Plans []storage.PlanMeta }

// SetLoading marks a network operation in flight.
type SetLoading struct{ Loading bool }

// SetError records the current error; it supersedes any earlier one.
type SetError struct{ Err error }

// ClearError empties the error slot.
type ClearError struct{}

// enterStage is dispatched internally by the Machine on stage changes.
type enterStage struct{ Stage Stage }

func (SetConfig) isAction()            {}
func (SetIssue) isAction()             {}
func (SetQuestions) isAction()         {}
func (AnswerQuestion) isAction()       {}
func (SetPlan) isAction()              {}
func (UpdatePlanContent) isAction()    {}
func (RegenerateSteps) isAction()      {}
func (SetSteps) isAction()             {}
func (SetSubtasks) isAction()          {}
func (UpdateSubtask) isAction()        {}
func (ApplySplit) isAction()           {}
func (MoveSubtask) isAction()          {}
func (RemoveSubtask) isAction()        {}
func (ToggleStepGrouped) isAction()    {}
func (ToggleStepAllowSplit) isAction() {}
func (AppendCreatedIssue) isAction()   {}
func (SetSavedPlans) isAction()        {}
func (SetLoading) isAction()           {}
func (SetError) isAction()             {}
func (ClearError) isAction()           {}
func (enterStage) isAction()           {}

// reduce applies one action to the state. It is the only place State
// fields are written.
func reduce(s *State, action Action) {
	switch a := action.(type) {
	case SetConfig:
		s.Config = a.Config

	case SetIssue:
		issue := a.Issue
		s.Issue = &issue

	case SetQuestions:
		s.Questions = a.Questions

	case AnswerQuestion:
		for i := range s.Questions {
			if s.Questions[i].ID == a.ID {
				s.Questions[i].Answer = a.Answer
				break
			}
		}

	case SetPlan:
		plan := a.Plan
		plan.Steps = planmd.Parse(plan.Content)
		if plan.CreatedAt.IsZero() {
			plan.CreatedAt = time.Now().UTC()
		}
		plan.UpdatedAt = time.Now().UTC()
		s.Plan = &plan

	case UpdatePlanContent:
		if s.Plan != nil {
			s.Plan.Content = a.Content
			s.Plan.UpdatedAt = time.Now().UTC()
		}

	case RegenerateSteps:
		if s.Plan != nil {
			s.Plan.Steps = planmd.Parse(s.Plan.Content)
		}

	case SetSteps:
		if s.Plan != nil {
			steps := reorder.Renumber(a.Steps, reorder.SetStepOrder)
			s.Plan.Steps = steps
			s.Plan.Content = planmd.Serialize(steps, s.Plan.Content)
			s.Plan.UpdatedAt = time.Now().UTC()
		}

	case SetSubtasks:
		s.Subtasks = reorder.Renumber(a.Subtasks, reorder.SetSubtaskOrder)

	case UpdateSubtask:
		for i := range s.Subtasks {
			if s.Subtasks[i].ID == a.Subtask.ID {
				order := s.Subtasks[i].Order
				s.Subtasks[i] = a.Subtask
				s.Subtasks[i].Order = order
				break
			}
		}

	case ApplySplit:
		s.Subtasks = split.Apply(s.Subtasks, a.ID, a.Parts)

	case MoveSubtask:
		s.Subtasks = reorder.MoveSubtask(s.Subtasks, a.From, a.To)

	case RemoveSubtask:
		s.Subtasks = reorder.RemoveSubtask(s.Subtasks, a.ID)

	case ToggleStepGrouped:
		if s.Plan != nil {
			for i := range s.Plan.Steps {
				if s.Plan.Steps[i].ID == a.ID {
					s.Plan.Steps[i].IsGroupedUnit = !s.Plan.Steps[i].IsGroupedUnit
					break
				}
			}
		}

	case ToggleStepAllowSplit:
		if s.Plan != nil {
			for i := range s.Plan.Steps {
				if s.Plan.Steps[i].ID == a.ID {
					s.Plan.Steps[i].AllowSplit = !s.Plan.Steps[i].AllowSplit
					break
				}
			}
		}

	case AppendCreatedIssue:
		s.CreatedIssues = append(s.CreatedIssues, a.Issue)

	case SetSavedPlans:
		s.SavedPlans = a.Plans

	case SetLoading:
		s.Loading = a.Loading

	case SetError:
		s.Err = a.Err

	case ClearError:
		s.Err = nil

	case enterStage:
		s.Current = a.Stage
		s.Visited[a.Stage] = true
	}
}
