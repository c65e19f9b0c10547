package interfaces

import (
	"context"

	"github.com/camaraproject/release-bot/pkg/domain/model"
)

// GitHubClient abstracts the hosting platform. Read methods report
// absence through their return values, not through errors; returned
// errors always indicate infrastructure problems.
type GitHubClient interface {
	// TagExists reports whether a tag with the given name exists
	TagExists(ctx context.Context, repo model.RepoRef, tag string) (bool, error)

	// ListBranches returns branches whose name starts with prefix
	ListBranches(ctx context.Context, repo model.RepoRef, prefix string) ([]model.Branch, error)

	// GetBranchHeadSHA returns the head commit of a branch
	GetBranchHeadSHA(ctx context.Context, repo model.RepoRef, branch string) (string, error)

	// GetFileContent fetches a file from a ref. The bool return is
	// false when the file does not exist on that ref.
	GetFileContent(ctx context.Context, repo model.RepoRef, path, ref string) ([]byte, bool, error)

	// ListReleases returns releases, optionally including drafts
	ListReleases(ctx context.Context, repo model.RepoRef, includeDrafts bool) ([]model.Release, error)

	// GetDraftRelease returns the draft release for a tag, or nil
	GetDraftRelease(ctx context.Context, repo model.RepoRef, tag string) (*model.Release, error)

	// FindPullRequestForBranch returns the open PR number for a head
	// branch, or 0 when none exists
	FindPullRequestForBranch(ctx context.Context, repo model.RepoRef, head string) (int, error)

	// GetPermissionTier maps the user's repository permission to an
	// authorization tier
	GetPermissionTier(ctx context.Context, repo model.RepoRef, user string) (model.PermissionTier, error)

	// CreateBranch creates a branch pointing at the given commit
	CreateBranch(ctx context.Context, repo model.RepoRef, name, sha string) error

	// DeleteBranch deletes a branch; false when it did not exist
	DeleteBranch(ctx context.Context, repo model.RepoRef, name string) (bool, error)

	// RenameBranch renames a branch
	RenameBranch(ctx context.Context, repo model.RepoRef, oldName, newName string) error

	// CreateTag creates a lightweight tag at the given commit
	CreateTag(ctx context.Context, repo model.RepoRef, tag, sha string) error

	// PutFile creates or updates a file on a branch and returns the
	// commit SHA
	PutFile(ctx context.Context, repo model.RepoRef, path, branch, message string, content []byte) (string, error)

	// DeleteFile removes a file from a branch
	DeleteFile(ctx context.Context, repo model.RepoRef, path, branch, message string) error

	// CreatePullRequest opens a PR and returns its number and URL
	CreatePullRequest(ctx context.Context, repo model.RepoRef, title, body, head, base string) (int, string, error)

	// PublishRelease turns a draft release into a published one and
	// returns the release URL. Marking latest is a separate call since
	// the platform ignores it on drafts.
	PublishRelease(ctx context.Context, repo model.RepoRef, releaseID int64) (string, error)
	MarkReleaseLatest(ctx context.Context, repo model.RepoRef, releaseID int64) error

	// DeleteRelease removes a release object (used for drafts)
	DeleteRelease(ctx context.Context, repo model.RepoRef, releaseID int64) error

	// CreateDraftRelease creates an unpublished release for a tag
	// targeting the given commitish
	CreateDraftRelease(ctx context.Context, repo model.RepoRef, tag, name, body, commitish string, prerelease bool) (*model.Release, error)

	// Issue operations
	ListOpenIssues(ctx context.Context, repo model.RepoRef, label string) ([]model.TrackingIssue, error)
	GetIssue(ctx context.Context, repo model.RepoRef, number int) (*model.TrackingIssue, error)
	CreateIssue(ctx context.Context, repo model.RepoRef, title, body string, labels []string) (*model.TrackingIssue, error)
	UpdateIssue(ctx context.Context, repo model.RepoRef, number int, title, body *string) error
	CloseIssue(ctx context.Context, repo model.RepoRef, number int, reason string) error
	ReopenIssue(ctx context.Context, repo model.RepoRef, number int) error
	AddLabels(ctx context.Context, repo model.RepoRef, number int, labels []string) error
	RemoveLabel(ctx context.Context, repo model.RepoRef, number int, label string) error
	EnsureLabel(ctx context.Context, repo model.RepoRef, label model.Label) (bool, error)
	CreateComment(ctx context.Context, repo model.RepoRef, number int, body string) error
}
