package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/camaraproject/release-bot/pkg/domain/interfaces"
	"github.com/camaraproject/release-bot/pkg/domain/model"
	"github.com/camaraproject/release-bot/pkg/domain/types"
	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"
)

// Workflow orchestrates one serialized unit of work: derive state from
// artifacts, validate, dispatch the handler, reconcile the tracking
// issue and report the outcome as an issue comment.
type Workflow struct {
	gh        interfaces.GitHubClient
	state     *StateManager
	snapshots *SnapshotService
	publisher *PublishService
	issues    *IssueSynchronizer
}

var _ interfaces.ReleaseWorkflow = (*Workflow)(nil)

// NewWorkflow wires the workflow from its collaborators
func NewWorkflow(gh interfaces.GitHubClient) *Workflow {
	versions := NewVersionCalculator(gh)
	return &Workflow{
		gh:        gh,
		state:     NewStateManager(gh),
		snapshots: NewSnapshotService(gh, versions),
		publisher: NewPublishService(gh),
		issues:    NewIssueSynchronizer(gh),
	}
}

// HandleCommand processes a slash command from a tracking-issue comment.
// Rejections are reported as comments and are not errors: the work unit
// completed by rejecting.
func (w *Workflow) HandleCommand(ctx context.Context, repo model.RepoRef, issueNumber int, cmd model.Command) error {
	logger := ctxlog.From(ctx)
	logger.Info("handling command",
		"verb", string(cmd.Verb), "actor", cmd.Actor, "issue", issueNumber)

	trigger := model.TriggerInfo{
		Type:        model.TriggerCommand,
		Command:     string(cmd.Verb),
		CommandArgs: cmd.Args,
		User:        cmd.Actor,
	}

	// Permission gating comes first so an unauthorized caller gets a
	// permission rejection even when the configuration is broken.
	tier, err := w.gh.GetPermissionTier(ctx, repo, cmd.Actor)
	if err != nil {
		return goerr.Wrap(err, "failed to resolve permission tier", goerr.T(types.ErrTagInfra))
	}
	if perr := CheckPermission(cmd, tier); perr != nil {
		logger.Info("command rejected", "verb", string(cmd.Verb), "error", perr)
		return w.comment(ctx, repo, issueNumber, rejectionComment(cmd, perr))
	}

	info, err := w.deriveOrReport(ctx, repo, trigger, issueNumber)
	if err != nil || info == nil {
		return err
	}

	if verr := ValidateCommand(cmd, info.State, tier, info.ReleaseTag); verr != nil {
		logger.Info("command rejected", "verb", string(cmd.Verb), "error", verr)
		return w.comment(ctx, repo, issueNumber, rejectionComment(cmd, verr))
	}

	delta, herr := w.dispatch(ctx, repo, info, cmd)
	if herr != nil {
		logger.Error("command handler failed", "verb", string(cmd.Verb), "error", herr)
		if cerr := w.comment(ctx, repo, issueNumber, failureComment(cmd, herr)); cerr != nil {
			logger.Error("failed to report handler failure", "error", cerr)
		}
		return herr
	}

	// Re-derive after the mutation so the issue reflects the new state
	// rather than the handler's expectation of it.
	after, err := w.state.CurrentReleaseInfo(ctx, repo)
	if err != nil {
		return err
	}
	bot := AssembleContext(repo, trigger, after, delta)

	if cmd.Verb == model.VerbPublishRelease {
		if err := w.issues.ClosePublished(ctx, repo, issueNumber, bot); err != nil {
			return err
		}
	} else if _, err := w.issues.Reconcile(ctx, repo, after, bot); err != nil {
		return err
	}

	return w.comment(ctx, repo, issueNumber, successComment(cmd, bot))
}

// HandleIssueClosed applies the closure policy to a close event. State
// is re-derived at handling time, not event time.
func (w *Workflow) HandleIssueClosed(ctx context.Context, repo model.RepoRef, issueNumber int, actor string) error {
	ctxlog.From(ctx).Info("handling issue close", "issue", issueNumber, "actor", actor)

	info, err := w.state.CurrentReleaseInfo(ctx, repo)
	if err != nil {
		var cfgErr *model.ConfigError
		if errors.As(err, &cfgErr) {
			// Broken configuration cannot justify forcing an issue to
			// stay open.
			ctxlog.From(ctx).Warn("closure accepted under config error", "kind", string(cfgErr.Kind))
			return nil
		}
		return err
	}

	_, err = w.issues.HandleClose(ctx, repo, issueNumber, info.State)
	return err
}

// HandlePlanChange reconciles the tracking issue after a trunk change
// to the release plan.
func (w *Workflow) HandlePlanChange(ctx context.Context, repo model.RepoRef, trigger model.TriggerInfo) error {
	ctxlog.From(ctx).Info("handling release plan change", "repo", repo.FullName())

	trigger.Type = model.TriggerPlanChange
	info, err := w.deriveOrReport(ctx, repo, trigger, 0)
	if err != nil || info == nil {
		return err
	}

	bot := AssembleContext(repo, trigger, info, nil)
	result, err := w.issues.Reconcile(ctx, repo, info, bot)
	if err != nil {
		return err
	}
	ctxlog.From(ctx).Info("plan change reconciled",
		"action", string(result.Action), "issue", result.IssueNumber)
	return nil
}

// HandleReviewMerge creates the draft release once the release review
// PR is merged. Non-review branches are ignored.
func (w *Workflow) HandleReviewMerge(ctx context.Context, repo model.RepoRef, headBranch string) error {
	if !strings.HasPrefix(headBranch, types.ReviewBranchPrefix) {
		return nil
	}
	logger := ctxlog.From(ctx)
	logger.Info("handling review merge", "branch", headBranch)

	trigger := model.TriggerInfo{Type: model.TriggerMergeEvent}
	info, err := w.deriveOrReport(ctx, repo, trigger, 0)
	if err != nil || info == nil {
		return err
	}

	if info.State != model.StateSnapshotActive && info.State != model.StateDraftReady {
		logger.Warn("review merge in unexpected state", "state", string(info.State))
		return nil
	}

	delta, err := w.publisher.CreateDraft(ctx, repo, info)
	if err != nil {
		return err
	}

	after, err := w.state.CurrentReleaseInfo(ctx, repo)
	if err != nil {
		return err
	}
	bot := AssembleContext(repo, trigger, after, delta)
	if _, err := w.issues.Reconcile(ctx, repo, after, bot); err != nil {
		return err
	}

	if after.IssueNumber > 0 && bot.DraftReleaseURL != "" {
		body := fmt.Sprintf("Draft release created: %s\n\nReview the draft, then publish with `/publish-release --confirm %s` or delete it with `/delete-draft <reason>`.",
			bot.DraftReleaseURL, after.ReleaseTag)
		return w.comment(ctx, repo, after.IssueNumber, body)
	}
	return nil
}

// dispatch routes a validated command to its handler
func (w *Workflow) dispatch(ctx context.Context, repo model.RepoRef, info *model.ReleaseInfo, cmd model.Command) (*model.HandlerDelta, error) {
	switch cmd.Verb {
	case model.VerbCreateSnapshot:
		return w.snapshots.Create(ctx, repo, info)
	case model.VerbDiscardSnapshot:
		return w.snapshots.Discard(ctx, repo, info, cmd.Reason)
	case model.VerbDeleteDraft:
		return w.publisher.DeleteDraft(ctx, repo, info, cmd.Reason)
	case model.VerbPublishRelease:
		return w.publisher.Publish(ctx, repo, info)
	}
	return nil, goerr.New("no handler for command",
		goerr.T(types.ErrTagValidation), goerr.V("verb", string(cmd.Verb)))
}

// deriveOrReport derives release info, converting a configuration error
// into a tracking-issue comment. A nil info with nil error means the
// config error was reported and the work unit is done.
func (w *Workflow) deriveOrReport(ctx context.Context, repo model.RepoRef, trigger model.TriggerInfo, issueNumber int) (*model.ReleaseInfo, error) {
	info, err := w.state.CurrentReleaseInfo(ctx, repo)
	if err == nil {
		return info, nil
	}

	var cfgErr *model.ConfigError
	if !errors.As(err, &cfgErr) {
		return nil, err
	}

	logger := ctxlog.From(ctx)
	logger.Warn("configuration error", "kind", string(cfgErr.Kind), "message", cfgErr.Message)

	bot := AssembleErrorContext(repo, trigger, cfgErr)
	target := issueNumber
	if target == 0 {
		target = w.findAnyTrackingIssue(ctx, repo)
	}
	if target == 0 {
		return nil, nil
	}
	return nil, w.comment(ctx, repo, target, configErrorComment(bot))
}

func (w *Workflow) findAnyTrackingIssue(ctx context.Context, repo model.RepoRef) int {
	issues, err := w.gh.ListOpenIssues(ctx, repo, model.ReleaseIssueLabel)
	if err != nil || len(issues) == 0 {
		return 0
	}
	for _, issue := range issues {
		if issue.WorkflowOwned() {
			return issue.Number
		}
	}
	return 0
}

func (w *Workflow) comment(ctx context.Context, repo model.RepoRef, issueNumber int, body string) error {
	if issueNumber == 0 {
		return nil
	}
	if err := w.gh.CreateComment(ctx, repo, issueNumber, body); err != nil {
		return goerr.Wrap(err, "failed to post comment",
			goerr.T(types.ErrTagInfra), goerr.V("issue", issueNumber))
	}
	return nil
}

func rejectionComment(cmd model.Command, verr error) string {
	var b strings.Builder
	fmt.Fprintf(&b, "`/%s` was rejected.\n\n", cmd.Verb)
	fmt.Fprintf(&b, "**Reason:** %s\n", verr.Error())
	if values := goerr.Values(verr); len(values) > 0 {
		b.WriteString("\n")
		for _, key := range []string{"required_tier", "actual_tier", "required_state", "current_state", "submitted_tag", "expected_tag"} {
			if v, ok := values[key]; ok {
				fmt.Fprintf(&b, "- %s: `%v`\n", strings.ReplaceAll(key, "_", " "), v)
			}
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

func failureComment(cmd model.Command, herr error) string {
	var b strings.Builder
	fmt.Fprintf(&b, "`/%s` failed.\n\n**Error:** %s\n", cmd.Verb, herr.Error())
	if steps, ok := goerr.GetTypedValue(herr, types.ErrVarCompletedSteps); ok && len(steps) > 0 {
		b.WriteString("\n**Completed steps before failure:**\n")
		for _, step := range steps {
			fmt.Fprintf(&b, "- `%s`\n", step)
		}
		b.WriteString("\nManual intervention may be required; do not blindly retry.")
	}
	return strings.TrimRight(b.String(), "\n")
}

func successComment(cmd model.Command, bot model.BotContext) string {
	var b strings.Builder
	switch cmd.Verb {
	case model.VerbCreateSnapshot:
		fmt.Fprintf(&b, "Snapshot `%s` created.\n\n", bot.SnapshotID)
		fmt.Fprintf(&b, "- Snapshot branch: [`%s`](%s)\n", bot.SnapshotBranch, bot.SnapshotBranchURL)
		fmt.Fprintf(&b, "- Review PR: [#%s](%s)\n\n", bot.ReleasePRNumber, bot.ReleasePRURL)
		b.WriteString("Merge the review PR to create the draft release.")
	case model.VerbDiscardSnapshot:
		fmt.Fprintf(&b, "Snapshot discarded. The release is back in `planned`.\n\n**Reason:** %s", bot.Reason)
	case model.VerbDeleteDraft:
		fmt.Fprintf(&b, "Draft release deleted. The release is back in `planned`.\n\n**Reason:** %s", bot.Reason)
	case model.VerbPublishRelease:
		fmt.Fprintf(&b, "Release `%s` published: %s\n\n", bot.ReleaseTag, bot.ReleaseURL)
		fmt.Fprintf(&b, "- Source reference tag: [`%s`](%s)\n", bot.ReferenceTag, bot.ReferenceTagURL)
		fmt.Fprintf(&b, "- Source commit: `%s`", bot.SrcCommitSHAShort)
	}
	return b.String()
}

func configErrorComment(bot model.BotContext) string {
	var b strings.Builder
	b.WriteString("The release configuration is invalid and no action was taken.\n\n")
	fmt.Fprintf(&b, "**Problem (%s):** %s\n\n", bot.ErrorType, bot.ErrorMessage)
	switch {
	case bot.IsMissingFile:
		fmt.Fprintf(&b, "Add a `%s` to the `%s` branch to enable release automation.", types.ReleasePlanFile, types.DefaultTrunkBranch)
	case bot.IsMalformedYAML:
		fmt.Fprintf(&b, "Fix the YAML syntax in [`%s`](%s).", types.ReleasePlanFile, bot.ReleasePlanURL)
	case bot.IsMissingField:
		fmt.Fprintf(&b, "Add the missing field to [`%s`](%s).", types.ReleasePlanFile, bot.ReleasePlanURL)
	}
	return strings.TrimRight(b.String(), "\n")
}
