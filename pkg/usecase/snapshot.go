package usecase

import (
	"context"
	"fmt"
	"strconv"

	"github.com/camaraproject/release-bot/pkg/domain/interfaces"
	"github.com/camaraproject/release-bot/pkg/domain/model"
	"github.com/camaraproject/release-bot/pkg/domain/types"
	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"
)

const shortSHALength = 7

// SnapshotService implements the create-snapshot and discard-snapshot
// transitions.
type SnapshotService struct {
	gh       interfaces.GitHubClient
	versions *VersionCalculator
}

// NewSnapshotService creates the snapshot handler
func NewSnapshotService(gh interfaces.GitHubClient, versions *VersionCalculator) *SnapshotService {
	return &SnapshotService{gh: gh, versions: versions}
}

// Create performs planned -> snapshot-active.
//
// The operation is atomic-or-rolled-back: any branch created before a
// later step fails is deleted before the error is returned. Partial
// snapshot branches left behind by an earlier crashed run are detected
// and removed before creating new ones.
func (s *SnapshotService) Create(ctx context.Context, repo model.RepoRef, info *model.ReleaseInfo) (*model.HandlerDelta, error) {
	logger := ctxlog.From(ctx)
	plan := info.Plan
	releaseTag := info.ReleaseTag

	if err := s.cleanupPartialSnapshots(ctx, repo, releaseTag); err != nil {
		return nil, err
	}

	baseSHA, err := s.gh.GetBranchHeadSHA(ctx, repo, types.DefaultTrunkBranch)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to resolve trunk head", goerr.T(types.ErrTagInfra))
	}

	apiVersions, err := s.versions.CalculateForPlan(ctx, repo, plan)
	if err != nil {
		return nil, err
	}

	snapshotID := fmt.Sprintf("%s-%s", releaseTag, shortSHA(baseSHA))
	snapshotBranch := types.SnapshotBranchPrefix + snapshotID
	reviewBranch := types.ReviewBranchPrefix + snapshotID

	logger.Info("creating release snapshot",
		"snapshot_id", snapshotID,
		"src_commit_sha", baseSHA,
		"api_count", len(apiVersions),
	)

	var created []string
	rollback := func(cause error) error {
		for _, branch := range created {
			if _, derr := s.gh.DeleteBranch(ctx, repo, branch); derr != nil {
				logger.Error("rollback failed to delete branch", "branch", branch, "error", derr)
			}
		}
		return cause
	}

	if err := s.gh.CreateBranch(ctx, repo, snapshotBranch, baseSHA); err != nil {
		return nil, goerr.Wrap(err, "failed to create snapshot branch",
			goerr.T(types.ErrTagInfra), goerr.V("branch", snapshotBranch))
	}
	created = append(created, snapshotBranch)

	titles := make(map[string]string, len(plan.APIs))
	for _, api := range plan.APIs {
		titles[api.APIName] = api.APIName
	}
	md := model.BuildReleaseMetadata(repo, plan, apiVersions, titles, baseSHA)
	content, err := md.Marshal()
	if err != nil {
		return nil, rollback(goerr.Wrap(err, "failed to serialize release metadata",
			goerr.T(types.ErrTagValidation)))
	}

	message := fmt.Sprintf("Release automation: create snapshot %s", snapshotID)
	if _, err := s.gh.PutFile(ctx, repo, types.ReleaseMetadataFile, snapshotBranch, message, content); err != nil {
		return nil, rollback(goerr.Wrap(err, "failed to write release metadata",
			goerr.T(types.ErrTagInfra), goerr.V("branch", snapshotBranch)))
	}

	// The plan file is an input document; it must not appear on the
	// snapshot branch where the generated metadata is authoritative.
	planMessage := fmt.Sprintf("Release automation: remove %s from snapshot", types.ReleasePlanFile)
	if err := s.gh.DeleteFile(ctx, repo, types.ReleasePlanFile, snapshotBranch, planMessage); err != nil {
		return nil, rollback(goerr.Wrap(err, "failed to remove release plan from snapshot",
			goerr.T(types.ErrTagInfra), goerr.V("branch", snapshotBranch)))
	}

	snapshotHead, err := s.gh.GetBranchHeadSHA(ctx, repo, snapshotBranch)
	if err != nil {
		return nil, rollback(goerr.Wrap(err, "failed to resolve snapshot head",
			goerr.T(types.ErrTagInfra)))
	}

	if err := s.gh.CreateBranch(ctx, repo, reviewBranch, snapshotHead); err != nil {
		return nil, rollback(goerr.Wrap(err, "failed to create review branch",
			goerr.T(types.ErrTagInfra), goerr.V("branch", reviewBranch)))
	}
	created = append(created, reviewBranch)

	prTitle := fmt.Sprintf("Release %s review (%s)", releaseTag, snapshotID)
	prBody := fmt.Sprintf("Review of release snapshot `%s`. Merging this PR marks the snapshot ready for a draft release.", snapshotID)
	prNumber, prURL, err := s.gh.CreatePullRequest(ctx, repo, prTitle, prBody, reviewBranch, snapshotBranch)
	if err != nil {
		return nil, rollback(goerr.Wrap(err, "failed to create release PR",
			goerr.T(types.ErrTagInfra)))
	}

	logger.Info("snapshot created",
		"snapshot_branch", snapshotBranch,
		"review_branch", reviewBranch,
		"release_pr", prNumber,
	)

	apis := make([]model.APIMetadata, 0, len(plan.APIs))
	for _, api := range plan.APIs {
		if version, ok := apiVersions[api.APIName]; ok {
			apis = append(apis, model.APIMetadata{
				APIName:    api.APIName,
				APIVersion: version,
				APITitle:   titles[api.APIName],
			})
		}
	}

	return &model.HandlerDelta{
		SnapshotID:      snapshotID,
		SnapshotBranch:  snapshotBranch,
		ReviewBranch:    reviewBranch,
		SrcCommitSHA:    baseSHA,
		ReleasePRNumber: strconv.Itoa(prNumber),
		ReleasePRURL:    prURL,
		APIs:            apis,
	}, nil
}

// Discard performs snapshot-active -> planned. The reason is captured
// by the caller for the audit trail before this runs.
func (s *SnapshotService) Discard(ctx context.Context, repo model.RepoRef, info *model.ReleaseInfo, reason string) (*model.HandlerDelta, error) {
	snap := info.Snapshot
	if snap == nil {
		return nil, goerr.New("no active snapshot to discard",
			goerr.T(types.ErrTagState), goerr.V("release_tag", info.ReleaseTag))
	}

	logger := ctxlog.From(ctx)
	logger.Info("discarding snapshot",
		"snapshot_id", snap.SnapshotID,
		"reason", reason,
	)

	for _, branch := range []string{snap.ReviewBranch, snap.SnapshotBranch} {
		deleted, err := s.gh.DeleteBranch(ctx, repo, branch)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to delete branch",
				goerr.T(types.ErrTagInfra), goerr.V("branch", branch))
		}
		if !deleted {
			logger.Warn("branch already deleted", "branch", branch)
		}
	}

	return &model.HandlerDelta{
		SnapshotID: snap.SnapshotID,
		Reason:     reason,
	}, nil
}

// cleanupPartialSnapshots removes snapshot and review branches left by
// a previously failed creation so a retry never produces two
// half-created snapshots.
func (s *SnapshotService) cleanupPartialSnapshots(ctx context.Context, repo model.RepoRef, releaseTag string) error {
	logger := ctxlog.From(ctx)

	for _, prefix := range []string{
		types.SnapshotBranchPrefix + releaseTag + "-",
		types.ReviewBranchPrefix + releaseTag + "-",
	} {
		branches, err := s.gh.ListBranches(ctx, repo, prefix)
		if err != nil {
			return goerr.Wrap(err, "failed to list stale branches", goerr.T(types.ErrTagInfra))
		}
		for _, branch := range branches {
			logger.Warn("removing stale partial snapshot branch", "branch", branch.Name)
			if _, err := s.gh.DeleteBranch(ctx, repo, branch.Name); err != nil {
				return goerr.Wrap(err, "failed to delete stale branch",
					goerr.T(types.ErrTagInfra), goerr.V("branch", branch.Name))
			}
		}
	}
	return nil
}

func shortSHA(sha string) string {
	if len(sha) <= shortSHALength {
		return sha
	}
	return sha[:shortSHALength]
}
