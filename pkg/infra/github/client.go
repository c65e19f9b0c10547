package github

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/bradleyfalzon/ghinstallation/v2"
	"github.com/camaraproject/release-bot/pkg/domain/interfaces"
	"github.com/camaraproject/release-bot/pkg/domain/model"
	"github.com/camaraproject/release-bot/pkg/domain/types"
	"github.com/cenkalti/backoff/v5"
	"github.com/google/go-github/v75/github"
	"github.com/m-mizutani/goerr/v2"
)

const maxAPIRetries = 4

type client struct {
	githubClient *github.Client
}

// NewClient creates a new GitHub client with App authentication
func NewClient(appID, installationID int64, privateKey []byte) (interfaces.GitHubClient, error) {
	itr, err := ghinstallation.New(http.DefaultTransport, appID, installationID, privateKey)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create GitHub App transport", goerr.T(types.ErrTagInfra))
	}

	githubClient := github.NewClient(&http.Client{Transport: itr})

	return &client{
		githubClient: githubClient,
	}, nil
}

// call runs one API operation with retry on transient failures.
// Client errors are permanent: retrying a 404 or a 422 only burns rate
// limit.
func call[T any](ctx context.Context, op func() (T, *github.Response, error)) (T, *github.Response, error) {
	var lastResp *github.Response
	v, err := backoff.Retry(ctx, func() (T, error) {
		v, resp, err := op()
		lastResp = resp
		if err != nil && !isRetryable(resp, err) {
			return v, backoff.Permanent(err)
		}
		return v, err
	},
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxTries(maxAPIRetries),
	)
	return v, lastResp, err
}

func isRetryable(resp *github.Response, err error) bool {
	var rateErr *github.RateLimitError
	var abuseErr *github.AbuseRateLimitError
	if errors.As(err, &rateErr) || errors.As(err, &abuseErr) {
		return true
	}
	return resp != nil && resp.StatusCode >= http.StatusInternalServerError
}

func isNotFound(resp *github.Response, err error) bool {
	if resp != nil && resp.StatusCode == http.StatusNotFound {
		return true
	}
	var ghErr *github.ErrorResponse
	return errors.As(err, &ghErr) && ghErr.Response != nil &&
		ghErr.Response.StatusCode == http.StatusNotFound
}

func infraErr(err error, msg string, repo model.RepoRef) error {
	return goerr.Wrap(err, msg, goerr.T(types.ErrTagInfra), goerr.V("repo", repo.FullName()))
}

// TagExists checks for an exact tag ref. ListMatchingRefs matches by
// prefix, so the results are filtered for an exact name.
func (c *client) TagExists(ctx context.Context, repo model.RepoRef, tag string) (bool, error) {
	refs, resp, err := call(ctx, func() ([]*github.Reference, *github.Response, error) {
		return c.githubClient.Git.ListMatchingRefs(ctx, repo.Owner, repo.Name, &github.ReferenceListOptions{
			Ref: "tags/" + tag,
		})
	})
	if err != nil {
		if isNotFound(resp, err) {
			return false, nil
		}
		return false, infraErr(err, "failed to list tag refs", repo)
	}

	want := "refs/tags/" + tag
	for _, ref := range refs {
		if ref.GetRef() == want {
			return true, nil
		}
	}
	return false, nil
}

func (c *client) ListBranches(ctx context.Context, repo model.RepoRef, prefix string) ([]model.Branch, error) {
	refs, resp, err := call(ctx, func() ([]*github.Reference, *github.Response, error) {
		return c.githubClient.Git.ListMatchingRefs(ctx, repo.Owner, repo.Name, &github.ReferenceListOptions{
			Ref: "heads/" + prefix,
		})
	})
	if err != nil {
		if isNotFound(resp, err) {
			return nil, nil
		}
		return nil, infraErr(err, "failed to list branch refs", repo)
	}

	var branches []model.Branch
	for _, ref := range refs {
		name := strings.TrimPrefix(ref.GetRef(), "refs/heads/")
		if !strings.HasPrefix(name, prefix) {
			continue
		}
		branches = append(branches, model.Branch{
			Name: name,
			SHA:  ref.GetObject().GetSHA(),
		})
	}
	return branches, nil
}

func (c *client) GetBranchHeadSHA(ctx context.Context, repo model.RepoRef, branch string) (string, error) {
	ref, _, err := call(ctx, func() (*github.Reference, *github.Response, error) {
		return c.githubClient.Git.GetRef(ctx, repo.Owner, repo.Name, "heads/"+branch)
	})
	if err != nil {
		return "", goerr.Wrap(err, "failed to get branch head",
			goerr.T(types.ErrTagInfra), goerr.V("branch", branch))
	}
	return ref.GetObject().GetSHA(), nil
}

func (c *client) GetFileContent(ctx context.Context, repo model.RepoRef, path, ref string) ([]byte, bool, error) {
	file, resp, err := call(ctx, func() (*github.RepositoryContent, *github.Response, error) {
		f, _, resp, err := c.githubClient.Repositories.GetContents(ctx, repo.Owner, repo.Name, path, &github.RepositoryContentGetOptions{
			Ref: ref,
		})
		return f, resp, err
	})
	if err != nil {
		if isNotFound(resp, err) {
			return nil, false, nil
		}
		return nil, false, goerr.Wrap(err, "failed to get file content",
			goerr.T(types.ErrTagInfra), goerr.V("path", path), goerr.V("ref", ref))
	}
	if file == nil {
		// Path resolved to a directory
		return nil, false, nil
	}

	content, err := file.GetContent()
	if err != nil {
		return nil, false, goerr.Wrap(err, "failed to decode file content",
			goerr.T(types.ErrTagInfra), goerr.V("path", path))
	}
	return []byte(content), true, nil
}

func (c *client) ListReleases(ctx context.Context, repo model.RepoRef, includeDrafts bool) ([]model.Release, error) {
	var out []model.Release
	opts := &github.ListOptions{PerPage: 100}
	for {
		releases, resp, err := call(ctx, func() ([]*github.RepositoryRelease, *github.Response, error) {
			return c.githubClient.Repositories.ListReleases(ctx, repo.Owner, repo.Name, opts)
		})
		if err != nil {
			return nil, infraErr(err, "failed to list releases", repo)
		}
		for _, r := range releases {
			if r.GetDraft() && !includeDrafts {
				continue
			}
			out = append(out, toRelease(r))
		}
		if resp == nil || resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	return out, nil
}

func (c *client) GetDraftRelease(ctx context.Context, repo model.RepoRef, tag string) (*model.Release, error) {
	releases, err := c.ListReleases(ctx, repo, true)
	if err != nil {
		return nil, err
	}
	for i := range releases {
		if releases[i].Draft && releases[i].TagName == tag {
			return &releases[i], nil
		}
	}
	return nil, nil
}

func (c *client) FindPullRequestForBranch(ctx context.Context, repo model.RepoRef, head string) (int, error) {
	prs, _, err := call(ctx, func() ([]*github.PullRequest, *github.Response, error) {
		return c.githubClient.PullRequests.List(ctx, repo.Owner, repo.Name, &github.PullRequestListOptions{
			State: "open",
			Head:  repo.Owner + ":" + head,
		})
	})
	if err != nil {
		return 0, infraErr(err, "failed to list pull requests", repo)
	}
	if len(prs) == 0 {
		return 0, nil
	}
	return prs[0].GetNumber(), nil
}

// GetPermissionTier maps repository permission to an authorization
// tier: admin is codeowner, write and maintain are release managers,
// everything else has no command authority.
func (c *client) GetPermissionTier(ctx context.Context, repo model.RepoRef, user string) (model.PermissionTier, error) {
	level, resp, err := call(ctx, func() (*github.RepositoryPermissionLevel, *github.Response, error) {
		return c.githubClient.Repositories.GetPermissionLevel(ctx, repo.Owner, repo.Name, user)
	})
	if err != nil {
		if isNotFound(resp, err) {
			return model.TierNone, nil
		}
		return model.TierNone, goerr.Wrap(err, "failed to get permission level",
			goerr.T(types.ErrTagInfra), goerr.V("user", user))
	}

	switch level.GetPermission() {
	case "admin":
		return model.TierCodeowner, nil
	case "write", "maintain":
		return model.TierReleaseManager, nil
	}
	return model.TierNone, nil
}

func (c *client) CreateBranch(ctx context.Context, repo model.RepoRef, name, sha string) error {
	_, _, err := call(ctx, func() (*github.Reference, *github.Response, error) {
		return c.githubClient.Git.CreateRef(ctx, repo.Owner, repo.Name, github.CreateRef{
			Ref: "refs/heads/" + name,
			SHA: sha,
		})
	})
	if err != nil {
		return goerr.Wrap(err, "failed to create branch",
			goerr.T(types.ErrTagInfra), goerr.V("branch", name))
	}
	return nil
}

func (c *client) DeleteBranch(ctx context.Context, repo model.RepoRef, name string) (bool, error) {
	resp, err := backoffDelete(ctx, func() (*github.Response, error) {
		return c.githubClient.Git.DeleteRef(ctx, repo.Owner, repo.Name, "heads/"+name)
	})
	if err != nil {
		if isNotFound(resp, err) {
			return false, nil
		}
		return false, goerr.Wrap(err, "failed to delete branch",
			goerr.T(types.ErrTagInfra), goerr.V("branch", name))
	}
	return true, nil
}

func (c *client) RenameBranch(ctx context.Context, repo model.RepoRef, oldName, newName string) error {
	_, _, err := call(ctx, func() (*github.Branch, *github.Response, error) {
		return c.githubClient.Repositories.RenameBranch(ctx, repo.Owner, repo.Name, oldName, newName)
	})
	if err != nil {
		return goerr.Wrap(err, "failed to rename branch",
			goerr.T(types.ErrTagInfra), goerr.V("branch", oldName))
	}
	return nil
}

func (c *client) CreateTag(ctx context.Context, repo model.RepoRef, tag, sha string) error {
	_, _, err := call(ctx, func() (*github.Reference, *github.Response, error) {
		return c.githubClient.Git.CreateRef(ctx, repo.Owner, repo.Name, github.CreateRef{
			Ref: "refs/tags/" + tag,
			SHA: sha,
		})
	})
	if err != nil {
		return goerr.Wrap(err, "failed to create tag",
			goerr.T(types.ErrTagInfra), goerr.V("tag", tag))
	}
	return nil
}

// PutFile creates or updates a file. An update needs the current blob
// SHA, so the file is looked up first.
func (c *client) PutFile(ctx context.Context, repo model.RepoRef, path, branch, message string, content []byte) (string, error) {
	opts := &github.RepositoryContentFileOptions{
		Message: github.Ptr(message),
		Content: content,
		Branch:  github.Ptr(branch),
	}

	existing, resp, err := call(ctx, func() (*github.RepositoryContent, *github.Response, error) {
		f, _, resp, err := c.githubClient.Repositories.GetContents(ctx, repo.Owner, repo.Name, path, &github.RepositoryContentGetOptions{
			Ref: branch,
		})
		return f, resp, err
	})
	if err != nil && !isNotFound(resp, err) {
		return "", goerr.Wrap(err, "failed to check existing file",
			goerr.T(types.ErrTagInfra), goerr.V("path", path))
	}
	if existing != nil {
		opts.SHA = existing.SHA
	}

	result, _, err := call(ctx, func() (*github.RepositoryContentResponse, *github.Response, error) {
		if opts.SHA != nil {
			return c.githubClient.Repositories.UpdateFile(ctx, repo.Owner, repo.Name, path, opts)
		}
		return c.githubClient.Repositories.CreateFile(ctx, repo.Owner, repo.Name, path, opts)
	})
	if err != nil {
		return "", goerr.Wrap(err, "failed to write file",
			goerr.T(types.ErrTagInfra), goerr.V("path", path), goerr.V("branch", branch))
	}
	return result.GetSHA(), nil
}

func (c *client) DeleteFile(ctx context.Context, repo model.RepoRef, path, branch, message string) error {
	existing, resp, err := call(ctx, func() (*github.RepositoryContent, *github.Response, error) {
		f, _, resp, err := c.githubClient.Repositories.GetContents(ctx, repo.Owner, repo.Name, path, &github.RepositoryContentGetOptions{
			Ref: branch,
		})
		return f, resp, err
	})
	if err != nil {
		if isNotFound(resp, err) {
			return nil
		}
		return goerr.Wrap(err, "failed to check file before delete",
			goerr.T(types.ErrTagInfra), goerr.V("path", path))
	}

	_, _, err = call(ctx, func() (*github.RepositoryContentResponse, *github.Response, error) {
		return c.githubClient.Repositories.DeleteFile(ctx, repo.Owner, repo.Name, path, &github.RepositoryContentFileOptions{
			Message: github.Ptr(message),
			SHA:     existing.SHA,
			Branch:  github.Ptr(branch),
		})
	})
	if err != nil {
		return goerr.Wrap(err, "failed to delete file",
			goerr.T(types.ErrTagInfra), goerr.V("path", path), goerr.V("branch", branch))
	}
	return nil
}

func (c *client) CreatePullRequest(ctx context.Context, repo model.RepoRef, title, body, head, base string) (int, string, error) {
	pr, _, err := call(ctx, func() (*github.PullRequest, *github.Response, error) {
		return c.githubClient.PullRequests.Create(ctx, repo.Owner, repo.Name, &github.NewPullRequest{
			Title: github.Ptr(title),
			Body:  github.Ptr(body),
			Head:  github.Ptr(head),
			Base:  github.Ptr(base),
		})
	})
	if err != nil {
		return 0, "", infraErr(err, "failed to create pull request", repo)
	}
	return pr.GetNumber(), pr.GetHTMLURL(), nil
}

func (c *client) PublishRelease(ctx context.Context, repo model.RepoRef, releaseID int64) (string, error) {
	release, _, err := call(ctx, func() (*github.RepositoryRelease, *github.Response, error) {
		return c.githubClient.Repositories.EditRelease(ctx, repo.Owner, repo.Name, releaseID, &github.RepositoryRelease{
			Draft: github.Ptr(false),
		})
	})
	if err != nil {
		return "", goerr.Wrap(err, "failed to publish release",
			goerr.T(types.ErrTagInfra), goerr.V("release_id", releaseID))
	}
	return release.GetHTMLURL(), nil
}

// MarkReleaseLatest is a separate edit because the platform ignores the
// make_latest attribute while the release is still a draft.
func (c *client) MarkReleaseLatest(ctx context.Context, repo model.RepoRef, releaseID int64) error {
	_, _, err := call(ctx, func() (*github.RepositoryRelease, *github.Response, error) {
		return c.githubClient.Repositories.EditRelease(ctx, repo.Owner, repo.Name, releaseID, &github.RepositoryRelease{
			MakeLatest: github.Ptr("true"),
		})
	})
	if err != nil {
		return goerr.Wrap(err, "failed to mark release latest",
			goerr.T(types.ErrTagInfra), goerr.V("release_id", releaseID))
	}
	return nil
}

func (c *client) DeleteRelease(ctx context.Context, repo model.RepoRef, releaseID int64) error {
	_, err := backoffDelete(ctx, func() (*github.Response, error) {
		return c.githubClient.Repositories.DeleteRelease(ctx, repo.Owner, repo.Name, releaseID)
	})
	if err != nil {
		return goerr.Wrap(err, "failed to delete release",
			goerr.T(types.ErrTagInfra), goerr.V("release_id", releaseID))
	}
	return nil
}

func (c *client) CreateDraftRelease(ctx context.Context, repo model.RepoRef, tag, name, body, commitish string, prerelease bool) (*model.Release, error) {
	release, _, err := call(ctx, func() (*github.RepositoryRelease, *github.Response, error) {
		return c.githubClient.Repositories.CreateRelease(ctx, repo.Owner, repo.Name, &github.RepositoryRelease{
			TagName:         github.Ptr(tag),
			Name:            github.Ptr(name),
			Body:            github.Ptr(body),
			TargetCommitish: github.Ptr(commitish),
			Draft:           github.Ptr(true),
			Prerelease:      github.Ptr(prerelease),
		})
	})
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create draft release",
			goerr.T(types.ErrTagInfra), goerr.V("tag", tag))
	}
	out := toRelease(release)
	return &out, nil
}

func (c *client) ListOpenIssues(ctx context.Context, repo model.RepoRef, label string) ([]model.TrackingIssue, error) {
	var out []model.TrackingIssue
	opts := &github.IssueListByRepoOptions{
		State:       "open",
		Labels:      []string{label},
		ListOptions: github.ListOptions{PerPage: 100},
	}
	for {
		issues, resp, err := call(ctx, func() ([]*github.Issue, *github.Response, error) {
			return c.githubClient.Issues.ListByRepo(ctx, repo.Owner, repo.Name, opts)
		})
		if err != nil {
			return nil, infraErr(err, "failed to list issues", repo)
		}
		for _, issue := range issues {
			if issue.IsPullRequest() {
				continue
			}
			out = append(out, toIssue(issue))
		}
		if resp == nil || resp.NextPage == 0 {
			break
		}
		opts.ListOptions.Page = resp.NextPage
	}
	return out, nil
}

func (c *client) GetIssue(ctx context.Context, repo model.RepoRef, number int) (*model.TrackingIssue, error) {
	issue, _, err := call(ctx, func() (*github.Issue, *github.Response, error) {
		return c.githubClient.Issues.Get(ctx, repo.Owner, repo.Name, number)
	})
	if err != nil {
		return nil, goerr.Wrap(err, "failed to get issue",
			goerr.T(types.ErrTagInfra), goerr.V("issue", number))
	}
	out := toIssue(issue)
	return &out, nil
}

func (c *client) CreateIssue(ctx context.Context, repo model.RepoRef, title, body string, labels []string) (*model.TrackingIssue, error) {
	issue, _, err := call(ctx, func() (*github.Issue, *github.Response, error) {
		return c.githubClient.Issues.Create(ctx, repo.Owner, repo.Name, &github.IssueRequest{
			Title:  github.Ptr(title),
			Body:   github.Ptr(body),
			Labels: &labels,
		})
	})
	if err != nil {
		return nil, infraErr(err, "failed to create issue", repo)
	}
	out := toIssue(issue)
	return &out, nil
}

func (c *client) UpdateIssue(ctx context.Context, repo model.RepoRef, number int, title, body *string) error {
	req := &github.IssueRequest{Title: title, Body: body}
	_, _, err := call(ctx, func() (*github.Issue, *github.Response, error) {
		return c.githubClient.Issues.Edit(ctx, repo.Owner, repo.Name, number, req)
	})
	if err != nil {
		return goerr.Wrap(err, "failed to update issue",
			goerr.T(types.ErrTagInfra), goerr.V("issue", number))
	}
	return nil
}

func (c *client) CloseIssue(ctx context.Context, repo model.RepoRef, number int, reason string) error {
	req := &github.IssueRequest{State: github.Ptr("closed")}
	if reason != "" {
		req.StateReason = github.Ptr(reason)
	}
	_, _, err := call(ctx, func() (*github.Issue, *github.Response, error) {
		return c.githubClient.Issues.Edit(ctx, repo.Owner, repo.Name, number, req)
	})
	if err != nil {
		return goerr.Wrap(err, "failed to close issue",
			goerr.T(types.ErrTagInfra), goerr.V("issue", number))
	}
	return nil
}

func (c *client) ReopenIssue(ctx context.Context, repo model.RepoRef, number int) error {
	_, _, err := call(ctx, func() (*github.Issue, *github.Response, error) {
		return c.githubClient.Issues.Edit(ctx, repo.Owner, repo.Name, number, &github.IssueRequest{
			State: github.Ptr("open"),
		})
	})
	if err != nil {
		return goerr.Wrap(err, "failed to reopen issue",
			goerr.T(types.ErrTagInfra), goerr.V("issue", number))
	}
	return nil
}

func (c *client) AddLabels(ctx context.Context, repo model.RepoRef, number int, labels []string) error {
	_, _, err := call(ctx, func() ([]*github.Label, *github.Response, error) {
		return c.githubClient.Issues.AddLabelsToIssue(ctx, repo.Owner, repo.Name, number, labels)
	})
	if err != nil {
		return goerr.Wrap(err, "failed to add labels",
			goerr.T(types.ErrTagInfra), goerr.V("issue", number))
	}
	return nil
}

func (c *client) RemoveLabel(ctx context.Context, repo model.RepoRef, number int, label string) error {
	resp, err := backoffDelete(ctx, func() (*github.Response, error) {
		return c.githubClient.Issues.RemoveLabelForIssue(ctx, repo.Owner, repo.Name, number, label)
	})
	if err != nil {
		if isNotFound(resp, err) {
			return nil
		}
		return goerr.Wrap(err, "failed to remove label",
			goerr.T(types.ErrTagInfra), goerr.V("issue", number), goerr.V("label", label))
	}
	return nil
}

// EnsureLabel creates the label when missing; true means it was created
func (c *client) EnsureLabel(ctx context.Context, repo model.RepoRef, label model.Label) (bool, error) {
	_, resp, err := call(ctx, func() (*github.Label, *github.Response, error) {
		return c.githubClient.Issues.GetLabel(ctx, repo.Owner, repo.Name, label.Name)
	})
	if err == nil {
		return false, nil
	}
	if !isNotFound(resp, err) {
		return false, goerr.Wrap(err, "failed to get label",
			goerr.T(types.ErrTagInfra), goerr.V("label", label.Name))
	}

	_, _, err = call(ctx, func() (*github.Label, *github.Response, error) {
		return c.githubClient.Issues.CreateLabel(ctx, repo.Owner, repo.Name, &github.Label{
			Name:        github.Ptr(label.Name),
			Color:       github.Ptr(label.Color),
			Description: github.Ptr(label.Description),
		})
	})
	if err != nil {
		return false, goerr.Wrap(err, "failed to create label",
			goerr.T(types.ErrTagInfra), goerr.V("label", label.Name))
	}
	return true, nil
}

func (c *client) CreateComment(ctx context.Context, repo model.RepoRef, number int, body string) error {
	_, _, err := call(ctx, func() (*github.IssueComment, *github.Response, error) {
		return c.githubClient.Issues.CreateComment(ctx, repo.Owner, repo.Name, number, &github.IssueComment{
			Body: github.Ptr(body),
		})
	})
	if err != nil {
		return goerr.Wrap(err, "failed to create comment",
			goerr.T(types.ErrTagInfra), goerr.V("issue", number))
	}
	return nil
}

// backoffDelete retries operations that return only a response
func backoffDelete(ctx context.Context, op func() (*github.Response, error)) (*github.Response, error) {
	var lastResp *github.Response
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		resp, err := op()
		lastResp = resp
		if err != nil && !isRetryable(resp, err) {
			return struct{}{}, backoff.Permanent(err)
		}
		return struct{}{}, err
	},
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxTries(maxAPIRetries),
	)
	return lastResp, err
}

func toRelease(r *github.RepositoryRelease) model.Release {
	return model.Release{
		ID:         r.GetID(),
		TagName:    r.GetTagName(),
		Name:       r.GetName(),
		Draft:      r.GetDraft(),
		Prerelease: r.GetPrerelease(),
		HTMLURL:    r.GetHTMLURL(),
	}
}

func toIssue(issue *github.Issue) model.TrackingIssue {
	labels := make([]string, 0, len(issue.Labels))
	for _, l := range issue.Labels {
		labels = append(labels, l.GetName())
	}
	return model.TrackingIssue{
		Number: issue.GetNumber(),
		Title:  issue.GetTitle(),
		Body:   issue.GetBody(),
		Labels: labels,
		Open:   issue.GetState() == "open",
	}
}
