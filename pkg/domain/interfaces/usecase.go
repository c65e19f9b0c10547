package interfaces

import (
	"context"

	"github.com/camaraproject/release-bot/pkg/domain/model"
)

// WebhookUseCase defines the interface for webhook event processing
type WebhookUseCase interface {
	// ProcessEvent processes a webhook event
	ProcessEvent(ctx context.Context, event *model.WebhookEvent) error
}

// ReleaseWorkflow defines the entry points of one serialized unit of
// work. Each method re-derives state from artifacts before acting.
type ReleaseWorkflow interface {
	// HandleCommand validates and executes a slash command issued on
	// the tracking issue
	HandleCommand(ctx context.Context, repo model.RepoRef, issueNumber int, cmd model.Command) error

	// HandleIssueClosed applies the closure policy for a close event
	// on a workflow-owned tracking issue
	HandleIssueClosed(ctx context.Context, repo model.RepoRef, issueNumber int, actor string) error

	// HandlePlanChange reconciles the tracking issue after a change to
	// release-plan.yaml on the trunk branch
	HandlePlanChange(ctx context.Context, repo model.RepoRef, trigger model.TriggerInfo) error

	// HandleReviewMerge creates the draft release after the release
	// review PR is merged
	HandleReviewMerge(ctx context.Context, repo model.RepoRef, headBranch string) error
}
