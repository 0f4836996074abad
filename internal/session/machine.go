package session

import (
	"context"
	"log/slog"
	"sync"

	"github.com/randalmurphal/chopchop/internal/assistant"
	chop "github.com/randalmurphal/chopchop/internal/errors"
	"github.com/randalmurphal/chopchop/internal/model"
	"github.com/randalmurphal/chopchop/internal/split"
)

// Machine is the workflow state machine. It is the single writer of the
// session State; the UI reads state snapshots and dispatches actions or
// invokes the guarded operations below. Operations may run on a background
// goroutine while the UI keeps rendering, so all state access goes through
// the mutex and State returns an isolated snapshot.
type Machine struct {
	mu        sync.Mutex
	state     State
	assistant assistant.Assistant
	logger    *slog.Logger
}

// New creates a machine at the configuration stage.
func New(a assistant.Assistant, logger *slog.Logger) *Machine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Machine{
		state: State{
			Current: StageConfig,
			Visited: map[Stage]bool{StageConfig: true},
		},
		assistant: a,
		logger:    logger,
	}
}

// State returns a snapshot of the session state. The Visited map is copied
// so the snapshot shares no mutable structure with the live state.
func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.state
	s.Visited = make(map[Stage]bool, len(m.state.Visited))
	for k, v := range m.state.Visited {
		s.Visited[k] = v
	}
	return s
}

// Dispatch applies one action to the state.
func (m *Machine) Dispatch(action Action) {
	m.mu.Lock()
	defer m.mu.Unlock()
	reduce(&m.state, action)
}

// Guard returns nil when the entry condition for target holds.
func (m *Machine) Guard(target Stage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return guard(&m.state, target)
}

// guard checks the entry condition for target. Callers hold the mutex.
func guard(s *State, target Stage) error {
	switch target {
	case StageConfig:
		return nil
	case StageInput:
		if !s.Config.Usable() {
			return chop.ErrConfigMissing(s.Config.MissingField())
		}
	case StageClarification:
		if s.Issue == nil {
			return chop.New(chop.CodeIssueMissing, "no issue loaded")
		}
	case StagePlan:
		if s.Issue == nil {
			return chop.New(chop.CodeIssueMissing, "no issue loaded")
		}
		if !s.Config.Usable() {
			return chop.ErrConfigMissing(s.Config.MissingField())
		}
		for _, q := range s.Questions {
			if q.Required && !q.Answered() {
				return chop.ErrQuestionUnanswered(q.Question)
			}
		}
	case StageSubtasks:
		if s.Plan == nil {
			return chop.New(chop.CodePlanMissing, "no execution plan")
		}
	case StageApproval:
		if len(s.Subtasks) == 0 {
			return chop.New(chop.CodeSubtasksMissing, "no subtasks to approve")
		}
	}
	return nil
}

// autoGens declares, per stage, the auto-invoked generator: on entry, if
// the target collection is empty, run the generator exactly once.
// Re-entering a stage whose data is already populated regenerates nothing.
var autoGens = map[Stage]struct {
	empty func(*State) bool
	run   func(*Machine, context.Context) error
}{
	StageClarification: {
		empty: func(s *State) bool { return len(s.Questions) == 0 },
		run:   (*Machine).GenerateQuestions,
	},
	StagePlan: {
		empty: func(s *State) bool { return s.Plan == nil },
		run:   (*Machine).GeneratePlan,
	},
	StageSubtasks: {
		empty: func(s *State) bool { return len(s.Subtasks) == 0 },
		run:   (*Machine).GenerateSubtasks,
	},
}

// Advance validates the next stage's guard and, only if satisfied, moves
// forward and runs the stage's auto-generation. Refused while Loading.
func (m *Machine) Advance(ctx context.Context) error {
	m.mu.Lock()
	if m.state.Loading {
		m.mu.Unlock()
		return chop.New(chop.CodeConfigInvalid, "operation in flight")
	}
	next, ok := Next(m.state.Current)
	if !ok {
		m.mu.Unlock()
		return nil
	}
	if err := guard(&m.state, next); err != nil {
		reduce(&m.state, SetError{Err: err})
		m.mu.Unlock()
		return err
	}
	from := m.state.Current
	reduce(&m.state, ClearError{})
	reduce(&m.state, enterStage{Stage: next})
	gen, hasGen := autoGens[next]
	needGen := hasGen && gen.empty(&m.state)
	m.mu.Unlock()

	m.logger.Debug("stage advanced", "from", from, "to", next)
	if needGen {
		return gen.run(m, ctx)
	}
	return nil
}

// GoTo jumps backward to an earlier, already-visited stage. It never
// clears any stage's data; downstream work may be stale relative to edits,
// which is not auto-detected.
func (m *Machine) GoTo(target Stage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.state.Visited[target] {
		return chop.Newf(chop.CodeConfigInvalid, "stage %s not yet visited", target)
	}
	if !Before(target, m.state.Current) {
		return chop.Newf(chop.CodeConfigInvalid, "cannot jump forward to %s", target)
	}
	from := m.state.Current
	reduce(&m.state, enterStage{Stage: target})
	m.logger.Debug("stage revisited", "from", from, "to", target)
	return nil
}

// run wraps a network operation: clears the error slot, holds Loading for
// the duration, and records any failure.
func (m *Machine) run(op string, fn func() error) error {
	m.mu.Lock()
	if m.state.Loading {
		m.mu.Unlock()
		return chop.New(chop.CodeConfigInvalid, "operation in flight")
	}
	reduce(&m.state, ClearError{})
	reduce(&m.state, SetLoading{Loading: true})
	m.mu.Unlock()

	err := fn()

	m.mu.Lock()
	reduce(&m.state, SetLoading{Loading: false})
	if err != nil {
		reduce(&m.state, SetError{Err: err})
	}
	m.mu.Unlock()

	if err != nil {
		m.logger.Warn("operation failed", "op", op, "error", err)
	}
	return err
}

// GenerateQuestions (re)generates the clarification questions.
func (m *Machine) GenerateQuestions(ctx context.Context) error {
	s := m.State()
	if s.Issue == nil {
		return chop.New(chop.CodeIssueMissing, "no issue loaded")
	}
	issue := *s.Issue
	return m.run("generate questions", func() error {
		questions, err := m.assistant.GenerateClarificationQuestions(ctx, issue)
		if err != nil {
			return err
		}
		m.Dispatch(SetQuestions{Questions: questions})
		return nil
	})
}

// GeneratePlan (re)generates the execution plan from the issue and the
// answered questions.
func (m *Machine) GeneratePlan(ctx context.Context) error {
	s := m.State()
	if s.Issue == nil {
		return chop.New(chop.CodeIssueMissing, "no issue loaded")
	}
	issue := *s.Issue
	questions := s.Questions
	return m.run("generate plan", func() error {
		content, err := m.assistant.GenerateExecutionPlan(ctx, issue, questions)
		if err != nil {
			return err
		}
		m.Dispatch(SetPlan{Plan: model.ExecutionPlan{
			ID:      model.NewID("PLAN"),
			Title:   issue.Title,
			Content: content,
		}})
		return nil
	})
}

// GenerateSubtasks (re)generates the subtask breakdown from the plan.
func (m *Machine) GenerateSubtasks(ctx context.Context) error {
	s := m.State()
	if s.Plan == nil {
		return chop.New(chop.CodePlanMissing, "no execution plan")
	}
	plan := *s.Plan
	return m.run("generate subtasks", func() error {
		subtasks, err := m.assistant.GenerateSubtasks(ctx, &plan)
		if err != nil {
			return err
		}
		m.Dispatch(SetSubtasks{Subtasks: subtasks})
		return nil
	})
}

// SplitSubtask splits the identified subtask and commits the result in
// place. The split engine falls back deterministically when the assistant
// cannot produce a usable breakdown.
func (m *Machine) SplitSubtask(ctx context.Context, id string) error {
	s := m.State()
	var st model.Subtask
	found := false
	for i := range s.Subtasks {
		if s.Subtasks[i].ID == id {
			st = s.Subtasks[i].Clone()
			found = true
			break
		}
	}
	if !found {
		return chop.Newf(chop.CodeSubtasksMissing, "subtask %s not found", id)
	}
	return m.run("split subtask", func() error {
		parts, err := split.Split(ctx, st, m.assistant)
		if err != nil {
			return err
		}
		m.Dispatch(ApplySplit{ID: id, Parts: parts})
		return nil
	})
}
