// Package errors provides structured error types for chopchop.
package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
)

// Code represents a unique error code.
type Code string

// Error codes for chopchop.
const (
	// Validation errors: bad or missing user input, blocks a transition.
	CodeConfigMissing      Code = "CONFIG_MISSING"
	CodeIssueMissing       Code = "ISSUE_MISSING"
	CodeQuestionUnanswered Code = "QUESTION_UNANSWERED"
	CodePlanMissing        Code = "PLAN_MISSING"
	CodeSubtasksMissing    Code = "SUBTASKS_MISSING"
	CodeSplitDegenerate    Code = "SPLIT_DEGENERATE"

	// Remote call errors: an assistant or issue-store call failed.
	CodeAssistantUnavailable Code = "ASSISTANT_UNAVAILABLE"
	CodeAssistantTimeout     Code = "ASSISTANT_TIMEOUT"
	CodeAssistantBadReply    Code = "ASSISTANT_BAD_REPLY"
	CodeStoreAuthFailed      Code = "STORE_AUTH_FAILED"
	CodeStoreUnavailable     Code = "STORE_UNAVAILABLE"
	CodeStoreNotFound        Code = "STORE_NOT_FOUND"
	CodeStoreRateLimited     Code = "STORE_RATE_LIMITED"
	CodeStoreForbidden       Code = "STORE_FORBIDDEN"
	CodeIssueCreateFailed    Code = "ISSUE_CREATE_FAILED"

	// Format errors: malformed imported JSON or markdown.
	CodeConfigInvalid Code = "CONFIG_INVALID"
	CodePlanInvalid   Code = "PLAN_INVALID"
)

// Kind groups error codes into the recovery classes the UI cares about.
type Kind int

const (
	KindUnknown Kind = iota
	// KindValidation blocks a transition; the user fixes the input and retries.
	KindValidation
	// KindRemote means a network call failed; a fallback or partial result applies.
	KindRemote
	// KindFormat means an imported file was rejected; state is unchanged.
	KindFormat
)

var codeKinds = map[Code]Kind{
	CodeConfigMissing:        KindValidation,
	CodeIssueMissing:         KindValidation,
	CodeQuestionUnanswered:   KindValidation,
	CodePlanMissing:          KindValidation,
	CodeSubtasksMissing:      KindValidation,
	CodeSplitDegenerate:      KindValidation,
	CodeAssistantUnavailable: KindRemote,
	CodeAssistantTimeout:     KindRemote,
	CodeAssistantBadReply:    KindRemote,
	CodeStoreAuthFailed:      KindRemote,
	CodeStoreUnavailable:     KindRemote,
	CodeStoreNotFound:        KindRemote,
	CodeStoreRateLimited:     KindRemote,
	CodeStoreForbidden:       KindRemote,
	CodeIssueCreateFailed:    KindRemote,
	CodeConfigInvalid:        KindFormat,
	CodePlanInvalid:          KindFormat,
}

// ChopError is the structured error type for chopchop.
type ChopError struct {
	Code  Code   `json:"code"`
	What  string `json:"what"`
	Why   string `json:"why,omitempty"`
	Fix   string `json:"fix,omitempty"`
	Cause error  `json:"-"`
}

// Error implements the error interface.
func (e *ChopError) Error() string {
	var b strings.Builder
	b.WriteString(e.What)
	if e.Why != "" {
		b.WriteString(": ")
		b.WriteString(e.Why)
	}
	if e.Cause != nil {
		b.WriteString(": ")
		b.WriteString(e.Cause.Error())
	}
	return b.String()
}

// Unwrap returns the underlying cause.
func (e *ChopError) Unwrap() error {
	return e.Cause
}

// Kind returns the recovery class for this error.
func (e *ChopError) Kind() Kind {
	if k, ok := codeKinds[e.Code]; ok {
		return k
	}
	return KindUnknown
}

// UserMessage returns a user-friendly message for display in the wizard.
func (e *ChopError) UserMessage() string {
	var b strings.Builder
	b.WriteString(e.What)
	if e.Why != "" {
		b.WriteString("\n")
		b.WriteString(e.Why)
	}
	if e.Fix != "" {
		b.WriteString("\nFix: ")
		b.WriteString(e.Fix)
	}
	return b.String()
}

// Is reports whether target is a ChopError with the same code.
func (e *ChopError) Is(target error) bool {
	t, ok := target.(*ChopError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// WithCause returns a copy of the error with the given cause.
func (e *ChopError) WithCause(err error) *ChopError {
	return &ChopError{
		Code:  e.Code,
		What:  e.What,
		Why:   e.Why,
		Fix:   e.Fix,
		Cause: err,
	}
}

// New creates a ChopError with the given code and message.
func New(code Code, what string) *ChopError {
	return &ChopError{Code: code, What: what}
}

// Newf creates a ChopError with a formatted message.
func Newf(code Code, format string, args ...any) *ChopError {
	return &ChopError{Code: code, What: fmt.Sprintf(format, args...)}
}

// Wrap wraps a generic error into a ChopError.
func Wrap(code Code, what string, cause error) *ChopError {
	return &ChopError{Code: code, What: what, Cause: cause}
}

// AsChopError attempts to convert an error to a ChopError.
// Returns nil if the error is not a ChopError.
func AsChopError(err error) *ChopError {
	var ce *ChopError
	if stderrors.As(err, &ce) {
		return ce
	}
	return nil
}

// KindOf returns the recovery class of err, or KindUnknown for plain errors.
func KindOf(err error) Kind {
	if ce := AsChopError(err); ce != nil {
		return ce.Kind()
	}
	return KindUnknown
}

// --- Error constructors ---

// ErrConfigMissing reports that required credentials are not configured.
func ErrConfigMissing(field string) *ChopError {
	return &ChopError{
		Code: CodeConfigMissing,
		What: fmt.Sprintf("missing required configuration: %s", field),
		Why:  "This stage needs credentials that are not set",
		Fix:  "Fill in the configuration stage, or run 'chopchop config import'",
	}
}

// ErrQuestionUnanswered reports a required clarification question left blank.
func ErrQuestionUnanswered(question string) *ChopError {
	return &ChopError{
		Code: CodeQuestionUnanswered,
		What: "a required question is unanswered",
		Why:  question,
		Fix:  "Answer every required question before continuing",
	}
}

// ErrAssistantTimeout reports an assistant call that exceeded its deadline.
func ErrAssistantTimeout(op string) *ChopError {
	return &ChopError{
		Code: CodeAssistantTimeout,
		What: fmt.Sprintf("assistant timed out during %s", op),
		Why:  "No response received before the deadline",
		Fix:  "Retry, or continue with the locally generated fallback",
	}
}

// ErrSplitDegenerate reports a split that produced unusable results.
func ErrSplitDegenerate(title string) *ChopError {
	return &ChopError{
		Code: CodeSplitDegenerate,
		What: fmt.Sprintf("split of %q produced fewer than two usable parts", title),
		Why:  "Each part of a split needs a non-empty title",
		Fix:  "Retry the split",
	}
}

// ErrIssueCreateFailed reports a failed GitHub issue creation, naming the
// subtask whose creation failed.
func ErrIssueCreateFailed(subtaskTitle string, cause error) *ChopError {
	return &ChopError{
		Code:  CodeIssueCreateFailed,
		What:  fmt.Sprintf("failed to create issue for %q", subtaskTitle),
		Why:   "Issues created before this one were kept",
		Fix:   "Fix the reported cause and re-run approval for the remaining subtasks",
		Cause: cause,
	}
}
