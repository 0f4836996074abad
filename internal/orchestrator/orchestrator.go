// Package orchestrator turns an approved subtask list into GitHub issues,
// one per subtask, in order, with progress reporting and partial-failure
// semantics: everything created before a failure stays created.
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	chop "github.com/randalmurphal/chopchop/internal/errors"
	"github.com/randalmurphal/chopchop/internal/issuestore"
	"github.com/randalmurphal/chopchop/internal/model"
)

// Status labels one phase of a single issue creation.
type Status string

const (
	StatusCreating  Status = "creating"
	StatusCompleted Status = "completed"
	StatusError     Status = "error"
)

// Progress is a snapshot emitted before and after each creation attempt.
type Progress struct {
	CurrentIssue int
	TotalIssues  int
	CurrentTask  string
	Status       Status
	Error        string
}

// ProgressFunc receives progress snapshots. May be nil.
type ProgressFunc func(Progress)

// Orchestrator creates issues through a Store sequentially.
type Orchestrator struct {
	store  issuestore.Store
	logger *slog.Logger
	// delay between consecutive successful creations, spent only when
	// another creation follows. Keeps the run under abuse-rate limits.
	delay func(context.Context)
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithPaceDelay overrides the inter-creation delay. Tests pass a no-op.
func WithPaceDelay(d func(context.Context)) Option {
	return func(o *Orchestrator) { o.delay = d }
}

// New creates an Orchestrator with the default 500ms pacing delay.
func New(store issuestore.Store, logger *slog.Logger, opts ...Option) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	o := &Orchestrator{
		store:  store,
		logger: logger,
		delay:  sleepDelay(500 * time.Millisecond),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

func sleepDelay(d time.Duration) func(context.Context) {
	return func(ctx context.Context) {
		t := time.NewTimer(d)
		defer t.Stop()
		select {
		case <-ctx.Done():
		case <-t.C:
		}
	}
}

// CreateAll creates one issue per subtask in ascending Order. On the first
// failure it stops immediately and returns the issues created so far along
// with an error naming the failed subtask. Already-created issues are never
// rolled back.
func (o *Orchestrator) CreateAll(ctx context.Context, subtasks []model.Subtask, ownerRepo string, parent *model.Issue, progress ProgressFunc) ([]model.CreatedIssue, error) {
	owner, repo, ok := strings.Cut(ownerRepo, "/")
	if !ok || owner == "" || repo == "" {
		return nil, chop.Newf(chop.CodeConfigInvalid, "invalid repository %q, want owner/repo", ownerRepo)
	}
	if progress == nil {
		progress = func(Progress) {}
	}

	ordered := append([]model.Subtask(nil), subtasks...)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Order < ordered[j].Order })

	total := len(ordered)
	created := make([]model.CreatedIssue, 0, total)

	for i, st := range ordered {
		progress(Progress{
			CurrentIssue: i + 1,
			TotalIssues:  total,
			CurrentTask:  st.Title,
			Status:       StatusCreating,
		})

		body := FormatBody(st, parent)
		issue, err := o.store.CreateIssue(ctx, owner, repo, st.Title, body, st.Tags)
		if err != nil {
			o.logger.Error("issue creation failed",
				"subtask", st.ID, "title", st.Title, "error", err)
			progress(Progress{
				CurrentIssue: i + 1,
				TotalIssues:  total,
				CurrentTask:  st.Title,
				Status:       StatusError,
				Error:        err.Error(),
			})
			return created, chop.ErrIssueCreateFailed(st.Title, err)
		}

		issue.SubtaskID = st.ID
		created = append(created, *issue)
		o.logger.Info("issue created",
			"subtask", st.ID, "number", issue.Number, "url", issue.URL)
		progress(Progress{
			CurrentIssue: i + 1,
			TotalIssues:  total,
			CurrentTask:  st.Title,
			Status:       StatusCompleted,
		})

		if i < total-1 {
			o.delay(ctx)
			if err := ctx.Err(); err != nil {
				return created, chop.Wrap(chop.CodeIssueCreateFailed, "issue creation cancelled", err)
			}
		}
	}
	return created, nil
}

// FormatBody renders the issue body for one subtask: parent linkage, the
// description, a checkbox list of acceptance criteria, guardrail warnings,
// and an oversize banner when the subtask was flagged too big.
func FormatBody(st model.Subtask, parent *model.Issue) string {
	var b strings.Builder

	if parent != nil {
		switch {
		case parent.URL != "":
			fmt.Fprintf(&b, "Part of %s\n\n", parent.URL)
		case parent.Number > 0:
			fmt.Fprintf(&b, "Part of #%d\n\n", parent.Number)
		case parent.Title != "":
			fmt.Fprintf(&b, "Part of: %s\n\n", parent.Title)
		}
	}

	if st.IsTooBig {
		b.WriteString("> [!WARNING]\n> This subtask was flagged as too large for a single PR. Consider splitting it further.\n\n")
	}

	if desc := strings.TrimSpace(st.Description); desc != "" {
		b.WriteString(desc)
		b.WriteString("\n\n")
	}

	if len(st.AcceptanceCriteria) > 0 {
		b.WriteString("## Acceptance Criteria\n\n")
		for _, c := range st.AcceptanceCriteria {
			fmt.Fprintf(&b, "- [ ] %s\n", c)
		}
		b.WriteString("\n")
	}

	if len(st.Guardrails) > 0 {
		b.WriteString("## Guardrails\n\n")
		for _, g := range st.Guardrails {
			fmt.Fprintf(&b, "- ⚠️ %s\n", g)
		}
		b.WriteString("\n")
	}

	if len(st.DependsOn) > 0 {
		b.WriteString("## Depends On\n\n")
		for _, d := range st.DependsOn {
			fmt.Fprintf(&b, "- %s\n", d)
		}
		b.WriteString("\n")
	}

	if st.EstimatedHours > 0 {
		fmt.Fprintf(&b, "**Estimated effort:** %dh\n", st.EstimatedHours)
	}

	return strings.TrimRight(b.String(), "\n") + "\n"
}
