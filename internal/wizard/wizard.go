// Package wizard is the Bubbletea front end for the decomposition workflow.
// It renders one view per stage and drives the session machine; all state
// transitions go through the machine, never through the view models.
package wizard

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	chop "github.com/randalmurphal/chopchop/internal/errors"
	"github.com/randalmurphal/chopchop/internal/issuestore"
	"github.com/randalmurphal/chopchop/internal/model"
	"github.com/randalmurphal/chopchop/internal/orchestrator"
	"github.com/randalmurphal/chopchop/internal/session"
	"github.com/randalmurphal/chopchop/internal/storage"
)

// Deps bundles the collaborators the wizard needs beyond the machine.
type Deps struct {
	KV    storage.KV
	Plans *storage.PlanLibrary
	// NewStore builds an issue store from the current credentials. Called
	// lazily so config edits take effect without restarting.
	NewStore func(token, repo string) (issuestore.Store, error)
	// NewOrchestrator wraps a store; tests inject a no-delay variant.
	NewOrchestrator func(issuestore.Store) *orchestrator.Orchestrator
}

// Styles contains the wizard's visual styling.
type Styles struct {
	Title    lipgloss.Style
	Crumb    lipgloss.Style
	Active   lipgloss.Style
	Subtle   lipgloss.Style
	Error    lipgloss.Style
	Success  lipgloss.Style
	Warning  lipgloss.Style
	Selected lipgloss.Style
}

// DefaultStyles returns the default wizard styling.
func DefaultStyles() Styles {
	return Styles{
		Title: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("205")).
			MarginBottom(1),
		Crumb:    lipgloss.NewStyle().Foreground(lipgloss.Color("241")),
		Active:   lipgloss.NewStyle().Foreground(lipgloss.Color("205")).Bold(true),
		Subtle:   lipgloss.NewStyle().Foreground(lipgloss.Color("241")),
		Error:    lipgloss.NewStyle().Foreground(lipgloss.Color("196")),
		Success:  lipgloss.NewStyle().Foreground(lipgloss.Color("46")),
		Warning:  lipgloss.NewStyle().Foreground(lipgloss.Color("214")),
		Selected: lipgloss.NewStyle().Foreground(lipgloss.Color("170")),
	}
}

// Model is the root Bubbletea model hosting the per-stage views.
type Model struct {
	machine *session.Machine
	deps    Deps
	styles  Styles

	busy    bool
	spin    spinner.Model
	confirm string

	configView   configView
	inputView    inputView
	clarifyView  clarifyView
	planView     planView
	subtasksView subtasksView
	approvalView approvalView

	progressCh chan orchestrator.Progress
	progress   []orchestrator.Progress

	width    int
	quitting bool
}

// PlainStyles returns styling with no color, for non-color terminals.
func PlainStyles() Styles {
	plain := lipgloss.NewStyle()
	return Styles{
		Title:    plain.Bold(true),
		Crumb:    plain,
		Active:   plain.Bold(true),
		Subtle:   plain,
		Error:    plain,
		Success:  plain,
		Warning:  plain,
		Selected: plain.Bold(true),
	}
}

// New creates the wizard model over an existing machine.
func New(machine *session.Machine, deps Deps) *Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	m := &Model{
		machine: machine,
		deps:    deps,
		styles:  DefaultStyles(),
		spin:    sp,
	}
	m.syncViews()
	return m
}

// WithStyles sets custom styling for the wizard.
func (m *Model) WithStyles(styles Styles) *Model {
	m.styles = styles
	return m
}

// Run executes the wizard until the user quits or finishes approval.
func (m *Model) Run() error {
	p := tea.NewProgram(m, tea.WithAltScreen())
	_, err := p.Run()
	if err != nil {
		return fmt.Errorf("wizard error: %w", err)
	}
	return nil
}

// opDoneMsg reports completion of a machine operation run off-thread.
type opDoneMsg struct{ err error }

// fetchDoneMsg carries a fetched issue back into the update loop.
type fetchDoneMsg struct {
	issue *model.Issue
	err   error
}

// checksDoneMsg carries the result of the config access checks.
type checksDoneMsg struct{ summary string }

// progressMsg is one orchestrator progress snapshot.
type progressMsg orchestrator.Progress

// createDoneMsg reports the end of the issue creation run.
type createDoneMsg struct {
	created []model.CreatedIssue
	err     error
}

func (m *Model) Init() tea.Cmd {
	return m.spin.Tick
}

// runOp executes a blocking machine operation as a command. The busy flag
// set by the caller keeps a second operation from starting meanwhile.
func runOp(op func() error) tea.Cmd {
	return func() tea.Msg {
		return opDoneMsg{err: op()}
	}
}

// waitProgress reads one snapshot off the progress channel.
func waitProgress(ch chan orchestrator.Progress) tea.Cmd {
	return func() tea.Msg {
		p, ok := <-ch
		if !ok {
			return nil
		}
		return progressMsg(p)
	}
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd

	case opDoneMsg:
		m.busy = false
		m.syncViews()
		return m, nil

	case checksDoneMsg:
		m.busy = false
		m.configView.checked = msg.summary
		return m, nil

	case fetchDoneMsg:
		m.busy = false
		if msg.err != nil {
			m.machine.Dispatch(session.SetError{Err: msg.err})
		} else {
			m.machine.Dispatch(session.ClearError{})
			m.machine.Dispatch(session.SetIssue{Issue: *msg.issue})
		}
		m.syncViews()
		return m, nil

	case progressMsg:
		m.progress = append(m.progress, orchestrator.Progress(msg))
		return m, waitProgress(m.progressCh)

	case createDoneMsg:
		m.busy = false
		for _, c := range msg.created {
			m.machine.Dispatch(session.AppendCreatedIssue{Issue: c})
		}
		if msg.err != nil {
			m.machine.Dispatch(session.SetError{Err: msg.err})
		}
		m.approvalView.done = true
		m.syncViews()
		return m, nil

	case tea.KeyMsg:
		return m.updateKey(msg)
	}

	return m, m.updateStage(msg)
}

func (m *Model) updateKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		m.quitting = true
		return m, tea.Quit
	case "ctrl+p":
		// Backward navigation stays available while an operation runs;
		// the in-flight result still lands in its stage's data.
		m.goBack()
		return m, nil
	}

	if m.busy {
		// Everything else is ignored while an operation runs.
		return m, nil
	}

	switch msg.String() {
	case "ctrl+n":
		return m, m.advance()
	}
	return m, m.updateStage(msg)
}

// advance moves the machine forward. Guard failures surface in the error
// slot; generation runs off-thread behind the busy flag.
func (m *Model) advance() tea.Cmd {
	m.busy = true
	return runOp(func() error {
		return m.machine.Advance(context.Background())
	})
}

// goBack returns to the previous visited stage, keeping all data.
func (m *Model) goBack() {
	cur := m.machine.State().Current
	for i, st := range session.Stages {
		if st == cur && i > 0 {
			if err := m.machine.GoTo(session.Stages[i-1]); err == nil {
				m.syncViews()
			}
			return
		}
	}
}

// updateStage routes a message to the current stage's view.
func (m *Model) updateStage(msg tea.Msg) tea.Cmd {
	var cmd tea.Cmd
	switch m.machine.State().Current {
	case session.StageConfig:
		cmd = m.configView.update(m, msg)
	case session.StageInput:
		cmd = m.inputView.update(m, msg)
	case session.StageClarification:
		cmd = m.clarifyView.update(m, msg)
	case session.StagePlan:
		cmd = m.planView.update(m, msg)
	case session.StageSubtasks:
		cmd = m.subtasksView.update(m, msg)
	case session.StageApproval:
		cmd = m.approvalView.update(m, msg)
	}
	return cmd
}

// syncViews refreshes per-stage view state from the machine snapshot.
func (m *Model) syncViews() {
	s := m.machine.State()
	m.configView.sync(m, s)
	m.inputView.sync(m, s)
	m.clarifyView.sync(m, s)
	m.planView.sync(m, s)
	m.subtasksView.sync(m, s)
	m.approvalView.sync(m, s)
}

func (m *Model) View() string {
	if m.quitting {
		return ""
	}
	s := m.machine.State()

	var b strings.Builder
	b.WriteString(m.breadcrumb(s) + "\n\n")
	b.WriteString(m.styles.Title.Render(s.Current.Title()) + "\n")

	if m.busy {
		b.WriteString(m.spin.View() + " " + m.styles.Subtle.Render("working...") + "\n\n")
	}

	switch s.Current {
	case session.StageConfig:
		b.WriteString(m.configView.view(m, s))
	case session.StageInput:
		b.WriteString(m.inputView.view(m, s))
	case session.StageClarification:
		b.WriteString(m.clarifyView.view(m, s))
	case session.StagePlan:
		b.WriteString(m.planView.view(m, s))
	case session.StageSubtasks:
		b.WriteString(m.subtasksView.view(m, s))
	case session.StageApproval:
		b.WriteString(m.approvalView.view(m, s))
	}

	if s.Err != nil {
		b.WriteString("\n" + m.styles.Error.Render(errorLine(s.Err)) + "\n")
	}
	b.WriteString("\n" + m.styles.Subtle.Render("ctrl+n: next • ctrl+p: back • ctrl+c: quit"))
	return b.String()
}

// breadcrumb renders the stage trail with the current stage highlighted.
func (m *Model) breadcrumb(s session.State) string {
	parts := make([]string, 0, len(session.Stages))
	for _, st := range session.Stages {
		label := st.Title()
		switch {
		case st == s.Current:
			label = m.styles.Active.Render(label)
		case s.Visited[st]:
			label = m.styles.Crumb.Render(label)
		default:
			label = m.styles.Subtle.Render(label)
		}
		parts = append(parts, label)
	}
	return strings.Join(parts, m.styles.Subtle.Render(" › "))
}

func errorLine(err error) string {
	if ce := chop.AsChopError(err); ce != nil {
		return ce.UserMessage()
	}
	return err.Error()
}
