// Package issuestore wraps the GitHub REST API behind the small surface
// the wizard needs: fetching the source issue, creating sub-issues, and
// validating credentials.
package issuestore

import (
	"context"
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"strings"

	gogithub "github.com/google/go-github/v82/github"

	chop "github.com/randalmurphal/chopchop/internal/errors"
	"github.com/randalmurphal/chopchop/internal/model"
)

// Store is the issue-store capability consumed by the wizard and the
// creation orchestrator.
type Store interface {
	// FetchIssue loads an issue by reference: a full issue URL,
	// "owner/repo#123", "#123", or a bare number against the default repo.
	FetchIssue(ctx context.Context, ref string) (*model.Issue, error)

	// CreateIssue creates one issue and returns its record.
	CreateIssue(ctx context.Context, owner, repo, title, body string, labels []string) (*model.CreatedIssue, error)

	// ValidateToken reports whether the token authenticates. Never errors.
	ValidateToken(ctx context.Context) bool

	// ValidateRepoRead reports read access to the default repo. Never errors.
	ValidateRepoRead(ctx context.Context) bool

	// ValidateRepoWrite reports write access to the default repo. Never errors.
	ValidateRepoWrite(ctx context.Context) bool
}

// GitHub implements Store with the go-github client.
type GitHub struct {
	client *gogithub.Client
	owner  string
	repo   string
}

var _ Store = (*GitHub)(nil)

// bearerTransport adds an Authorization header to every request.
type bearerTransport struct {
	token string
	base  http.RoundTripper
}

func (t *bearerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req2 := req.Clone(req.Context())
	req2.Header.Set("Authorization", "Bearer "+t.token)
	base := t.base
	if base == nil {
		base = http.DefaultTransport
	}
	return base.RoundTrip(req2)
}

// New creates a GitHub store for the default "owner/repo".
func New(token, ownerRepo string) (*GitHub, error) {
	parts := strings.SplitN(ownerRepo, "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return nil, fmt.Errorf("invalid repository %q, want owner/repo", ownerRepo)
	}

	httpClient := &http.Client{
		Transport: &bearerTransport{token: token},
	}
	return &GitHub{
		client: gogithub.NewClient(httpClient),
		owner:  parts[0],
		repo:   parts[1],
	}, nil
}

// NewWithClient creates a store around an existing go-github client.
// Tests use this with a stub API server.
func NewWithClient(client *gogithub.Client, owner, repo string) *GitHub {
	return &GitHub{client: client, owner: owner, repo: repo}
}

var issueURLPattern = regexp.MustCompile(`github\.com/([^/]+)/([^/]+)/issues/(\d+)`)

// ParseRef resolves an issue reference to owner, repo, and number. The
// default owner/repo fills in references that omit them.
func ParseRef(ref, defaultOwner, defaultRepo string) (string, string, int, error) {
	ref = strings.TrimSpace(ref)

	if m := issueURLPattern.FindStringSubmatch(ref); m != nil {
		n, _ := strconv.Atoi(m[3])
		return m[1], m[2], n, nil
	}

	if strings.Contains(ref, "#") {
		parts := strings.SplitN(ref, "#", 2)
		n, err := strconv.Atoi(strings.TrimSpace(parts[1]))
		if err != nil || n <= 0 {
			return "", "", 0, fmt.Errorf("invalid issue number in %q", ref)
		}
		if repoPart := strings.TrimSpace(parts[0]); repoPart != "" {
			or := strings.SplitN(repoPart, "/", 2)
			if len(or) != 2 {
				return "", "", 0, fmt.Errorf("invalid repository in %q", ref)
			}
			return or[0], or[1], n, nil
		}
		return defaultOwner, defaultRepo, n, nil
	}

	if n, err := strconv.Atoi(ref); err == nil && n > 0 {
		return defaultOwner, defaultRepo, n, nil
	}
	return "", "", 0, fmt.Errorf("unrecognized issue reference %q", ref)
}

// FetchIssue loads an issue by reference.
func (g *GitHub) FetchIssue(ctx context.Context, ref string) (*model.Issue, error) {
	owner, repo, number, err := ParseRef(ref, g.owner, g.repo)
	if err != nil {
		return nil, chop.Wrap(chop.CodeStoreNotFound, "cannot resolve issue reference", err)
	}

	issue, resp, err := g.client.Issues.Get(ctx, owner, repo, number)
	if err != nil {
		return nil, mapError(resp, fmt.Sprintf("fetch issue %s/%s#%d", owner, repo, number), err)
	}

	return &model.Issue{
		ID:         model.NewID("ISS"),
		Title:      issue.GetTitle(),
		Body:       issue.GetBody(),
		URL:        issue.GetHTMLURL(),
		Number:     issue.GetNumber(),
		Repository: owner + "/" + repo,
	}, nil
}

// CreateIssue creates one issue.
func (g *GitHub) CreateIssue(ctx context.Context, owner, repo, title, body string, labels []string) (*model.CreatedIssue, error) {
	req := &gogithub.IssueRequest{
		Title: gogithub.Ptr(title),
		Body:  gogithub.Ptr(body),
	}
	if len(labels) > 0 {
		req.Labels = &labels
	}

	created, resp, err := g.client.Issues.Create(ctx, owner, repo, req)
	if err != nil {
		return nil, mapError(resp, fmt.Sprintf("create issue in %s/%s", owner, repo), err)
	}

	return &model.CreatedIssue{
		Number: created.GetNumber(),
		URL:    created.GetHTMLURL(),
		Title:  created.GetTitle(),
	}, nil
}

// ValidateToken checks the token by fetching the authenticated user.
func (g *GitHub) ValidateToken(ctx context.Context) bool {
	_, _, err := g.client.Users.Get(ctx, "")
	return err == nil
}

// ValidateRepoRead checks read access by fetching the repository.
func (g *GitHub) ValidateRepoRead(ctx context.Context) bool {
	_, _, err := g.client.Repositories.Get(ctx, g.owner, g.repo)
	return err == nil
}

// ValidateRepoWrite checks write access via the repository's reported
// push permission.
func (g *GitHub) ValidateRepoWrite(ctx context.Context) bool {
	repo, _, err := g.client.Repositories.Get(ctx, g.owner, g.repo)
	if err != nil {
		return false
	}
	return repo.GetPermissions().GetPush()
}

// mapError converts a go-github failure into the store error taxonomy.
// A nil response means the request never reached GitHub (transport error),
// which is reported as unavailable rather than a status-derived code.
func mapError(resp *gogithub.Response, what string, err error) error {
	code := chop.CodeStoreUnavailable
	if resp != nil {
		switch resp.StatusCode {
		case http.StatusUnauthorized:
			code = chop.CodeStoreAuthFailed
		case http.StatusForbidden:
			code = chop.CodeStoreForbidden
			if resp.Rate.Remaining == 0 {
				code = chop.CodeStoreRateLimited
			}
		case http.StatusNotFound:
			code = chop.CodeStoreNotFound
		default:
			code = chop.CodeStoreAuthFailed
		}
	}
	return chop.Wrap(code, what+" failed", err)
}
