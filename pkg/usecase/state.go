package usecase

import (
	"context"
	"strings"

	"github.com/camaraproject/release-bot/pkg/domain/interfaces"
	"github.com/camaraproject/release-bot/pkg/domain/model"
	"github.com/camaraproject/release-bot/pkg/domain/types"
	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"
)

// StateManager derives the release lifecycle state from repository
// artifacts. All operations are read-only; state is recomputed from
// scratch on every call so it always reflects ground truth, even after
// manual artifact edits.
type StateManager struct {
	gh interfaces.GitHubClient
}

// NewStateManager creates a state manager backed by the given client
func NewStateManager(gh interfaces.GitHubClient) *StateManager {
	return &StateManager{gh: gh}
}

// CurrentReleaseInfo derives the release tag and state from artifacts.
//
// Precedence, first match wins:
//  1. published tag exists               -> published
//  2. snapshot branch exists
//     draft release exists              -> draft-ready
//     otherwise                         -> snapshot-active
//  3. release-plan.yaml on trunk
//     target_release_type == none       -> not-planned
//     otherwise                         -> planned
//
// Configuration problems (missing file, malformed YAML, missing field)
// are returned as *model.ConfigError, never as a state. Any other error
// is an infrastructure failure.
func (m *StateManager) CurrentReleaseInfo(ctx context.Context, repo model.RepoRef) (*model.ReleaseInfo, error) {
	plan, cfgErr, err := m.readReleasePlan(ctx, repo, types.DefaultTrunkBranch)
	if err != nil {
		return nil, err
	}
	if cfgErr != nil {
		// Tagged so callers can branch on the class without unwrapping;
		// errors.As still reaches the *ConfigError underneath.
		return nil, goerr.Wrap(cfgErr, "release configuration is invalid",
			goerr.T(types.ErrTagConfig), goerr.V("kind", string(cfgErr.Kind)))
	}

	releaseTag := plan.Repository.TargetReleaseTag
	releaseType := plan.Repository.TargetReleaseType

	// Published tag takes precedence over everything else: the tag is
	// immutable and authoritative for the existence check alone.
	published, err := m.gh.TagExists(ctx, repo, releaseTag)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to check release tag", goerr.T(types.ErrTagInfra))
	}
	if published {
		return &model.ReleaseInfo{
			ReleaseTag:  releaseTag,
			State:       model.StatePublished,
			Source:      model.SourceTag,
			ReleaseType: releaseType,
			MetaRelease: plan.Repository.MetaRelease,
			IssueNumber: m.findTrackingIssue(ctx, repo, releaseTag),
			Plan:        plan,
		}, nil
	}

	snapshot, err := m.CurrentSnapshot(ctx, repo, releaseTag)
	if err != nil {
		return nil, err
	}

	if snapshot != nil {
		// Snapshot exists: the generated metadata document is now the
		// authoritative source for the release tag.
		effectiveTag := releaseTag
		if tag := model.TagFromSnapshotID(snapshot.SnapshotID); tag != "" {
			effectiveTag = tag
		}

		state := model.StateSnapshotActive
		draft, err := m.gh.GetDraftRelease(ctx, repo, effectiveTag)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to check draft release", goerr.T(types.ErrTagInfra))
		}
		if draft != nil {
			state = model.StateDraftReady
		}

		info := &model.ReleaseInfo{
			ReleaseTag:  effectiveTag,
			State:       state,
			Source:      model.SourceMetadata,
			ReleaseType: snapshot.ReleaseType,
			MetaRelease: plan.Repository.MetaRelease,
			Snapshot:    snapshot,
			IssueNumber: m.findTrackingIssue(ctx, repo, effectiveTag),
			Plan:        plan,
		}
		if info.ReleaseType == "" {
			info.ReleaseType = releaseType
		}
		return info, nil
	}

	state := model.StatePlanned
	if releaseType == model.TypeNone {
		state = model.StateNotPlanned
	}

	return &model.ReleaseInfo{
		ReleaseTag:  releaseTag,
		State:       state,
		Source:      model.SourcePlan,
		ReleaseType: releaseType,
		MetaRelease: plan.Repository.MetaRelease,
		IssueNumber: m.findTrackingIssue(ctx, repo, releaseTag),
		Plan:        plan,
	}, nil
}

// CurrentSnapshot returns the active snapshot for a release tag, or nil
// when no snapshot branch exists. Facts are merged from the branch
// itself and the generated metadata document on it.
func (m *StateManager) CurrentSnapshot(ctx context.Context, repo model.RepoRef, releaseTag string) (*model.SnapshotInfo, error) {
	prefix := types.SnapshotBranchPrefix + releaseTag + "-"
	branches, err := m.gh.ListBranches(ctx, repo, prefix)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list snapshot branches", goerr.T(types.ErrTagInfra))
	}
	if len(branches) == 0 {
		return nil, nil
	}

	// One active snapshot per release is an invariant the handlers
	// maintain; if stale branches remain, use the first match.
	branch := branches[0]
	snapshotID := model.SnapshotIDFromBranch(branch.Name)

	info := &model.SnapshotInfo{
		SnapshotID:     snapshotID,
		SnapshotBranch: branch.Name,
		ReviewBranch:   types.ReviewBranchPrefix + snapshotID,
		SrcCommitSHA:   branch.SHA,
	}

	content, found, err := m.gh.GetFileContent(ctx, repo, types.ReleaseMetadataFile, branch.Name)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to read release metadata", goerr.T(types.ErrTagInfra))
	}
	if found {
		md, perr := model.ParseReleaseMetadata(content)
		if perr != nil {
			ctxlog.From(ctx).Warn("unparsable release-metadata.yaml on snapshot branch",
				"branch", branch.Name, "error", perr)
		} else {
			if md.Repository.SrcCommitSHA != "" {
				info.SrcCommitSHA = md.Repository.SrcCommitSHA
			}
			info.ReleaseType = md.Repository.ReleaseType
			info.APIs = md.APIs
			if md.Dependencies != nil {
				info.Dependencies = *md.Dependencies
			}
		}
	}

	prNumber, err := m.gh.FindPullRequestForBranch(ctx, repo, info.ReviewBranch)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to find release PR", goerr.T(types.ErrTagInfra))
	}
	info.ReleasePRNumber = prNumber

	return info, nil
}

// findTrackingIssue returns the number of the open workflow-owned
// tracking issue for the release tag, or 0. Lookup failures are logged
// and treated as absence: the issue number is a convenience fact, not a
// state input.
func (m *StateManager) findTrackingIssue(ctx context.Context, repo model.RepoRef, releaseTag string) int {
	issues, err := m.gh.ListOpenIssues(ctx, repo, model.ReleaseIssueLabel)
	if err != nil {
		ctxlog.From(ctx).Warn("failed to search tracking issues", "error", err)
		return 0
	}

	for _, issue := range issues {
		if !issue.WorkflowOwned() {
			continue
		}
		if strings.Contains(issue.Title, releaseTag) {
			return issue.Number
		}
	}
	return 0
}

// readReleasePlan reads and validates release-plan.yaml from a ref,
// keeping the three configuration error kinds distinct from
// infrastructure failures.
func (m *StateManager) readReleasePlan(ctx context.Context, repo model.RepoRef, ref string) (*model.ReleasePlan, *model.ConfigError, error) {
	content, found, err := m.gh.GetFileContent(ctx, repo, types.ReleasePlanFile, ref)
	if err != nil {
		return nil, nil, goerr.Wrap(err, "failed to read release plan", goerr.T(types.ErrTagInfra))
	}
	if !found {
		return nil, &model.ConfigError{
			Kind:     model.ConfigErrorMissingFile,
			Message:  "no " + types.ReleasePlanFile + " found on " + ref + " branch",
			FilePath: types.ReleasePlanFile,
		}, nil
	}

	plan, cfgErr := model.ParseReleasePlan(content)
	if cfgErr != nil {
		return nil, cfgErr, nil
	}
	return plan, nil, nil
}
