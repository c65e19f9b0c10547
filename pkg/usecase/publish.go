package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/camaraproject/release-bot/pkg/domain/interfaces"
	"github.com/camaraproject/release-bot/pkg/domain/model"
	"github.com/camaraproject/release-bot/pkg/domain/types"
	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"
)

// PublishService implements draft creation, draft deletion and the
// final publication transition.
type PublishService struct {
	gh  interfaces.GitHubClient
	now func() time.Time
}

// NewPublishService creates the publication handler
func NewPublishService(gh interfaces.GitHubClient) *PublishService {
	return &PublishService{gh: gh, now: time.Now}
}

// CreateDraft performs snapshot-active -> draft-ready, triggered by the
// release review PR merge event rather than a slash command.
func (p *PublishService) CreateDraft(ctx context.Context, repo model.RepoRef, info *model.ReleaseInfo) (*model.HandlerDelta, error) {
	snap := info.Snapshot
	if snap == nil {
		return nil, goerr.New("no active snapshot for draft creation",
			goerr.T(types.ErrTagState), goerr.V("release_tag", info.ReleaseTag))
	}

	existing, err := p.gh.GetDraftRelease(ctx, repo, info.ReleaseTag)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to check existing draft", goerr.T(types.ErrTagInfra))
	}
	if existing != nil {
		// Duplicate merge delivery; the draft already references the
		// snapshot, so there is nothing to do.
		ctxlog.From(ctx).Info("draft release already exists", "tag", info.ReleaseTag)
		return &model.HandlerDelta{DraftReleaseURL: existing.HTMLURL}, nil
	}

	prerelease := info.ReleaseType == model.TypePreReleaseAlpha || info.ReleaseType == model.TypePreReleaseRC
	name := fmt.Sprintf("%s %s", repo.Name, info.ReleaseTag)
	body := fmt.Sprintf("Draft release for `%s` from snapshot `%s`.", info.ReleaseTag, snap.SnapshotID)

	draft, err := p.gh.CreateDraftRelease(ctx, repo, info.ReleaseTag, name, body, snap.SnapshotBranch, prerelease)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create draft release", goerr.T(types.ErrTagInfra))
	}

	ctxlog.From(ctx).Info("draft release created", "tag", info.ReleaseTag, "url", draft.HTMLURL)
	return &model.HandlerDelta{DraftReleaseURL: draft.HTMLURL}, nil
}

// DeleteDraft performs draft-ready -> planned: removes the draft
// release object and the snapshot's derivative branches.
func (p *PublishService) DeleteDraft(ctx context.Context, repo model.RepoRef, info *model.ReleaseInfo, reason string) (*model.HandlerDelta, error) {
	draft, err := p.gh.GetDraftRelease(ctx, repo, info.ReleaseTag)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to find draft release", goerr.T(types.ErrTagInfra))
	}
	if draft == nil {
		return nil, goerr.New("no draft release to delete",
			goerr.T(types.ErrTagState), goerr.V("release_tag", info.ReleaseTag))
	}

	logger := ctxlog.From(ctx)
	logger.Info("deleting draft release", "tag", info.ReleaseTag, "reason", reason)

	if err := p.gh.DeleteRelease(ctx, repo, draft.ID); err != nil {
		return nil, goerr.Wrap(err, "failed to delete draft release", goerr.T(types.ErrTagInfra))
	}

	if snap := info.Snapshot; snap != nil {
		for _, branch := range []string{snap.ReviewBranch, snap.SnapshotBranch} {
			deleted, err := p.gh.DeleteBranch(ctx, repo, branch)
			if err != nil {
				return nil, goerr.Wrap(err, "failed to delete branch",
					goerr.T(types.ErrTagInfra), goerr.V("branch", branch))
			}
			if !deleted {
				logger.Warn("branch already deleted", "branch", branch)
			}
		}
	}

	return &model.HandlerDelta{Reason: reason}, nil
}

// Publish performs draft-ready -> published.
//
// The sequence is not atomic at the platform level. Each completed step
// is recorded and attached to any error so a partial failure reports
// exactly how far it got; mutating steps are never silently retried.
//
// Steps: finalize metadata (set release_date, the single mutation of
// the generated document) -> publish the draft (creates the release
// tag) -> mark latest for non-prereleases -> create the src/ reference
// tag -> clean up branches.
func (p *PublishService) Publish(ctx context.Context, repo model.RepoRef, info *model.ReleaseInfo) (*model.HandlerDelta, error) {
	logger := ctxlog.From(ctx)
	snap := info.Snapshot
	if snap == nil {
		return nil, goerr.New("no active snapshot for publication",
			goerr.T(types.ErrTagState), goerr.V("release_tag", info.ReleaseTag))
	}

	var completed []string
	fail := func(err error, msg string) error {
		return goerr.Wrap(err, msg,
			goerr.T(types.ErrTagInfra),
			goerr.TV(types.ErrVarCompletedSteps, completed),
			goerr.V("release_tag", info.ReleaseTag),
		)
	}

	draft, err := p.gh.GetDraftRelease(ctx, repo, info.ReleaseTag)
	if err != nil {
		return nil, fail(err, "failed to find draft release")
	}
	if draft == nil {
		return nil, goerr.New("no draft release found for tag",
			goerr.T(types.ErrTagState), goerr.V("release_tag", info.ReleaseTag))
	}

	// Step 1: finalize metadata
	if err := p.finalizeMetadata(ctx, repo, snap.SnapshotBranch, info.ReleaseTag); err != nil {
		return nil, fail(err, "failed to finalize release metadata")
	}
	completed = append(completed, "finalize_metadata")

	// Step 2: publish the draft (creates the immutable release tag)
	releaseURL, err := p.gh.PublishRelease(ctx, repo, draft.ID)
	if err != nil {
		return nil, fail(err, "failed to publish draft release")
	}
	completed = append(completed, "publish_draft")

	// Step 3: mark latest; only meaningful for non-prereleases and
	// best-effort, a failure here must not abort the publication
	if !draft.Prerelease {
		if err := p.gh.MarkReleaseLatest(ctx, repo, draft.ID); err != nil {
			logger.Warn("failed to mark release as latest", "tag", info.ReleaseTag, "error", err)
		} else {
			completed = append(completed, "mark_latest")
		}
	}

	// Step 4: reference tag pointing at the originating trunk commit
	referenceTag := types.ReferenceTagPrefix + info.ReleaseTag
	refExists, err := p.gh.TagExists(ctx, repo, referenceTag)
	if err != nil {
		return nil, fail(err, "failed to check reference tag")
	}
	if refExists {
		logger.Warn("reference tag already exists", "tag", referenceTag)
	} else if err := p.gh.CreateTag(ctx, repo, referenceTag, snap.SrcCommitSHA); err != nil {
		return nil, fail(err, "failed to create reference tag")
	}
	completed = append(completed, "reference_tag")

	// Step 5: branch cleanup; failures are reported but non-fatal,
	// the release is already published
	if deleted, err := p.gh.DeleteBranch(ctx, repo, snap.SnapshotBranch); err != nil {
		logger.Error("failed to delete snapshot branch", "branch", snap.SnapshotBranch, "error", err)
	} else if !deleted {
		logger.Warn("snapshot branch already deleted", "branch", snap.SnapshotBranch)
	}
	publishedReview := snap.ReviewBranch + "-published"
	if err := p.gh.RenameBranch(ctx, repo, snap.ReviewBranch, publishedReview); err != nil {
		logger.Error("failed to rename review branch", "branch", snap.ReviewBranch, "error", err)
	}
	completed = append(completed, "cleanup_branches")

	logger.Info("release published",
		"release_tag", info.ReleaseTag,
		"release_url", releaseURL,
		"reference_tag", referenceTag,
	)

	return &model.HandlerDelta{
		ReleaseURL:   releaseURL,
		ReferenceTag: referenceTag,
		SrcCommitSHA: snap.SrcCommitSHA,
	}, nil
}

// finalizeMetadata sets release_date in the generated metadata document
// on the snapshot branch. This is the document's only post-creation
// mutation and happens exactly once.
func (p *PublishService) finalizeMetadata(ctx context.Context, repo model.RepoRef, snapshotBranch, releaseTag string) error {
	content, found, err := p.gh.GetFileContent(ctx, repo, types.ReleaseMetadataFile, snapshotBranch)
	if err != nil {
		return goerr.Wrap(err, "failed to read release metadata")
	}
	if !found {
		return goerr.New("release metadata missing on snapshot branch",
			goerr.T(types.ErrTagValidation), goerr.V("branch", snapshotBranch))
	}

	md, err := model.ParseReleaseMetadata(content)
	if err != nil {
		return goerr.Wrap(err, "failed to parse release metadata", goerr.T(types.ErrTagValidation))
	}

	releaseDate := p.now().UTC().Format("2006-01-02T15:04:05Z")
	md.Repository.ReleaseDate = &releaseDate

	updated, err := md.Marshal()
	if err != nil {
		return goerr.Wrap(err, "failed to serialize release metadata")
	}

	message := fmt.Sprintf("chore: finalize %s for %s", types.ReleaseMetadataFile, releaseTag)
	if _, err := p.gh.PutFile(ctx, repo, types.ReleaseMetadataFile, snapshotBranch, message, updated); err != nil {
		return goerr.Wrap(err, "failed to write finalized metadata")
	}
	return nil
}
