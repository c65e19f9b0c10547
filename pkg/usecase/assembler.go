package usecase

import (
	"strconv"

	"github.com/camaraproject/release-bot/pkg/domain/model"
	"github.com/camaraproject/release-bot/pkg/domain/types"
)

// AssembleContext merges trigger metadata, derived state facts and an
// optional handler delta into one complete BotContext. Layering order
// is trigger < derived facts < handler delta, last writer wins; every
// declared field ends up present with a defined default even when its
// source artifact does not exist yet.
func AssembleContext(repo model.RepoRef, trigger model.TriggerInfo, info *model.ReleaseInfo, delta *model.HandlerDelta) model.BotContext {
	ctx := model.BotContext{
		Command:         trigger.Command,
		CommandArgs:     trigger.CommandArgs,
		User:            trigger.User,
		TriggerType:     string(trigger.Type),
		TriggerPRNumber: trigger.TriggerPRNumber,
		TriggerPRURL:    trigger.TriggerPRURL,
		WorkflowRunURL:  trigger.WorkflowRunURL,
		ReleasePlanURL:  repo.FileURL(types.DefaultTrunkBranch, types.ReleasePlanFile),
		APIs:            []model.APIMetadata{},
	}

	if info != nil {
		applyReleaseInfo(repo, &ctx, info)
	}

	if delta != nil {
		applyDelta(repo, &ctx, delta)
	}

	ctx.DeriveFlags()
	return ctx
}

// AssembleErrorContext builds a context for a configuration error. The
// error pseudo-state carries no release facts beyond the error itself.
func AssembleErrorContext(repo model.RepoRef, trigger model.TriggerInfo, cfgErr *model.ConfigError) model.BotContext {
	ctx := AssembleContext(repo, trigger, nil, nil)
	ctx.ErrorMessage = cfgErr.Message
	ctx.ErrorType = string(cfgErr.Kind)
	ctx.DeriveFlags()
	return ctx
}

func applyReleaseInfo(repo model.RepoRef, ctx *model.BotContext, info *model.ReleaseInfo) {
	ctx.ReleaseTag = info.ReleaseTag
	ctx.State = string(info.State)
	ctx.ReleaseType = string(info.ReleaseType)
	ctx.MetaRelease = info.MetaRelease

	if info.Plan != nil {
		ctx.CommonalitiesRelease = info.Plan.Dependencies.CommonalitiesRelease
		ctx.ICMRelease = info.Plan.Dependencies.ICMRelease
		// Plan targets show up in the API list even before a snapshot
		// exists; calculated versions stay empty until then.
		for _, api := range info.Plan.APIs {
			ctx.APIs = append(ctx.APIs, model.APIMetadata{APIName: api.APIName})
		}
	}

	if snap := info.Snapshot; snap != nil {
		ctx.SnapshotID = snap.SnapshotID
		ctx.SnapshotBranch = snap.SnapshotBranch
		ctx.SnapshotBranchURL = repo.BranchURL(snap.SnapshotBranch)
		ctx.ReviewBranch = snap.ReviewBranch
		ctx.ReviewBranchURL = repo.BranchURL(snap.ReviewBranch)
		ctx.SrcCommitSHA = snap.SrcCommitSHA
		if snap.ReleasePRNumber > 0 {
			ctx.ReleasePRNumber = strconv.Itoa(snap.ReleasePRNumber)
			ctx.ReleasePRURL = repo.PullURL(snap.ReleasePRNumber)
		}
		if len(snap.APIs) > 0 {
			// Generated metadata is more complete than the plan list
			ctx.APIs = append([]model.APIMetadata{}, snap.APIs...)
		}
		if snap.Dependencies.CommonalitiesRelease != "" {
			ctx.CommonalitiesRelease = snap.Dependencies.CommonalitiesRelease
		}
		if snap.Dependencies.ICMRelease != "" {
			ctx.ICMRelease = snap.Dependencies.ICMRelease
		}
	}
}

func applyDelta(repo model.RepoRef, ctx *model.BotContext, delta *model.HandlerDelta) {
	if delta.SnapshotID != "" {
		ctx.SnapshotID = delta.SnapshotID
	}
	if delta.SnapshotBranch != "" {
		ctx.SnapshotBranch = delta.SnapshotBranch
		ctx.SnapshotBranchURL = repo.BranchURL(delta.SnapshotBranch)
	}
	if delta.ReviewBranch != "" {
		ctx.ReviewBranch = delta.ReviewBranch
		ctx.ReviewBranchURL = repo.BranchURL(delta.ReviewBranch)
	}
	if delta.SrcCommitSHA != "" {
		ctx.SrcCommitSHA = delta.SrcCommitSHA
	}
	if delta.ReleasePRNumber != "" {
		ctx.ReleasePRNumber = delta.ReleasePRNumber
	}
	if delta.ReleasePRURL != "" {
		ctx.ReleasePRURL = delta.ReleasePRURL
	}
	if delta.DraftReleaseURL != "" {
		ctx.DraftReleaseURL = delta.DraftReleaseURL
	}
	if delta.ReleaseURL != "" {
		ctx.ReleaseURL = delta.ReleaseURL
	}
	if delta.ReferenceTag != "" {
		ctx.ReferenceTag = delta.ReferenceTag
		ctx.ReferenceTagURL = repo.TagURL(delta.ReferenceTag)
	}
	if delta.SyncPRNumber != "" {
		ctx.SyncPRNumber = delta.SyncPRNumber
	}
	if delta.SyncPRURL != "" {
		ctx.SyncPRURL = delta.SyncPRURL
	}
	if delta.Reason != "" {
		ctx.Reason = delta.Reason
	}
	if len(delta.APIs) > 0 {
		ctx.APIs = append([]model.APIMetadata{}, delta.APIs...)
	}
	if delta.ReferenceTagURL != "" {
		ctx.ReferenceTagURL = delta.ReferenceTagURL
	}
}
