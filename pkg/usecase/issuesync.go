package usecase

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/camaraproject/release-bot/pkg/domain/interfaces"
	"github.com/camaraproject/release-bot/pkg/domain/model"
	"github.com/camaraproject/release-bot/pkg/domain/types"
	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"
)

// CloseReaction is what the synchronizer does when a workflow-owned
// issue is closed in a given state.
type CloseReaction int

const (
	ReactionNone CloseReaction = iota
	ReactionReopen
)

// ClosurePolicy is the total function from state to closure behavior.
// The tracking issue is never a source of truth: closing it must not
// change state, and states with an in-flight release reopen it.
func ClosurePolicy(state model.ReleaseState) (allowed bool, reaction CloseReaction) {
	switch state {
	case model.StatePlanned:
		return true, ReactionNone
	case model.StateSnapshotActive:
		return false, ReactionReopen
	case model.StateDraftReady:
		return false, ReactionReopen
	case model.StatePublished:
		return true, ReactionNone
	case model.StateNotPlanned:
		// Explicitly no reopening: a fresh issue is created only if
		// the plan later changes back to a valid release type.
		return true, ReactionNone
	}
	return true, ReactionNone
}

// SyncAction describes what a reconciliation did
type SyncAction string

const (
	SyncCreated  SyncAction = "created"
	SyncUpdated  SyncAction = "updated"
	SyncReopened SyncAction = "reopened"
	SyncClosed   SyncAction = "closed"
	SyncNone     SyncAction = "none"
)

// SyncResult reports the outcome of one reconciliation
type SyncResult struct {
	Action      SyncAction
	IssueNumber int
	Reason      string
}

// IssueSynchronizer reconciles the lifecycle-tracking issue against
// derived state. Only issues carrying the workflow marker are managed;
// manually created issues are ignored entirely.
type IssueSynchronizer struct {
	gh interfaces.GitHubClient

	// labelsEnsured is shared by all per-repository workers
	mu            sync.Mutex
	labelsEnsured map[string]bool
}

// NewIssueSynchronizer creates the synchronizer
func NewIssueSynchronizer(gh interfaces.GitHubClient) *IssueSynchronizer {
	return &IssueSynchronizer{gh: gh, labelsEnsured: map[string]bool{}}
}

// Reconcile ensures the tracking issue exists and reflects the derived
// state. A new issue is created iff the state is planned and no open
// workflow-owned issue exists.
func (s *IssueSynchronizer) Reconcile(ctx context.Context, repo model.RepoRef, info *model.ReleaseInfo, bot model.BotContext) (*SyncResult, error) {
	if err := s.ensureLabels(ctx, repo); err != nil {
		return nil, err
	}

	issue, err := s.findWorkflowOwnedIssue(ctx, repo, info.ReleaseTag)
	if err != nil {
		return nil, err
	}

	if issue == nil {
		if info.State != model.StatePlanned {
			return &SyncResult{Action: SyncNone, Reason: "no_planned_release"}, nil
		}
		created, err := s.createIssue(ctx, repo, info, bot)
		if err != nil {
			return nil, err
		}
		return &SyncResult{Action: SyncCreated, IssueNumber: created.Number}, nil
	}

	changed, err := s.updateIssue(ctx, repo, issue, info, bot)
	if err != nil {
		return nil, err
	}
	if !changed {
		return &SyncResult{Action: SyncNone, IssueNumber: issue.Number, Reason: "up_to_date"}, nil
	}
	return &SyncResult{Action: SyncUpdated, IssueNumber: issue.Number}, nil
}

// HandleClose applies the closure policy to a close event. Reopening
// occurs iff the state is snapshot-active or draft-ready at the time of
// the close; the close event never changes release state.
func (s *IssueSynchronizer) HandleClose(ctx context.Context, repo model.RepoRef, issueNumber int, state model.ReleaseState) (*SyncResult, error) {
	logger := ctxlog.From(ctx)

	issue, err := s.gh.GetIssue(ctx, repo, issueNumber)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to fetch closed issue", goerr.T(types.ErrTagInfra))
	}
	if !issue.WorkflowOwned() {
		return &SyncResult{Action: SyncNone, Reason: "not_workflow_owned"}, nil
	}

	allowed, reaction := ClosurePolicy(state)
	if allowed || reaction != ReactionReopen {
		logger.Info("issue closure accepted", "issue", issueNumber, "state", string(state))
		return &SyncResult{Action: SyncNone, Reason: "closure_allowed"}, nil
	}

	logger.Info("reopening issue closed in active state",
		"issue", issueNumber, "state", string(state))
	if err := s.gh.ReopenIssue(ctx, repo, issueNumber); err != nil {
		return nil, goerr.Wrap(err, "failed to reopen issue", goerr.T(types.ErrTagInfra))
	}

	comment := fmt.Sprintf("This release tracking issue cannot be closed while the release is in state `%s`. It has been reopened. Use `/discard-snapshot <reason>` or `/delete-draft <reason>` to abandon the in-flight release first.", state)
	if err := s.gh.CreateComment(ctx, repo, issueNumber, comment); err != nil {
		logger.Warn("failed to comment on reopened issue", "issue", issueNumber, "error", err)
	}

	return &SyncResult{Action: SyncReopened, IssueNumber: issueNumber}, nil
}

// ClosePublished closes the tracking issue after publication with the
// publication facts recorded in its STATE section.
func (s *IssueSynchronizer) ClosePublished(ctx context.Context, repo model.RepoRef, issueNumber int, bot model.BotContext) error {
	issue, err := s.gh.GetIssue(ctx, repo, issueNumber)
	if err != nil {
		return goerr.Wrap(err, "failed to fetch tracking issue", goerr.T(types.ErrTagInfra))
	}

	body := model.UpdateSection(issue.Body, model.SectionState, publishedStateSection(bot))
	body = model.UpdateSection(body, model.SectionActions, "No actions available. The release is published.")
	if body != issue.Body {
		if err := s.gh.UpdateIssue(ctx, repo, issueNumber, nil, &body); err != nil {
			return goerr.Wrap(err, "failed to update tracking issue", goerr.T(types.ErrTagInfra))
		}
	}

	if err := s.setStateLabel(ctx, repo, issue, model.StatePublished); err != nil {
		return err
	}

	if err := s.gh.CloseIssue(ctx, repo, issueNumber, "completed"); err != nil {
		return goerr.Wrap(err, "failed to close tracking issue", goerr.T(types.ErrTagInfra))
	}
	return nil
}

func (s *IssueSynchronizer) findWorkflowOwnedIssue(ctx context.Context, repo model.RepoRef, releaseTag string) (*model.TrackingIssue, error) {
	issues, err := s.gh.ListOpenIssues(ctx, repo, model.ReleaseIssueLabel)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to search tracking issues", goerr.T(types.ErrTagInfra))
	}

	for i := range issues {
		issue := &issues[i]
		if !issue.WorkflowOwned() {
			continue
		}
		if strings.Contains(issue.Title, releaseTag) {
			return issue, nil
		}
	}
	return nil, nil
}

func (s *IssueSynchronizer) createIssue(ctx context.Context, repo model.RepoRef, info *model.ReleaseInfo, bot model.BotContext) (*model.TrackingIssue, error) {
	title := model.IssueTitle(info.ReleaseTag, info.ReleaseType, info.MetaRelease)
	body := model.NewIssueBody()
	body = model.UpdateSection(body, model.SectionState, stateSection(info, bot))
	body = model.UpdateSection(body, model.SectionConfig, configSection(bot))
	body = model.UpdateSection(body, model.SectionActions, actionsSection(info.State, info.ReleaseTag))

	labels := []string{model.ReleaseIssueLabel, info.State.Label()}
	issue, err := s.gh.CreateIssue(ctx, repo, title, body, labels)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create tracking issue", goerr.T(types.ErrTagInfra))
	}

	ctxlog.From(ctx).Info("tracking issue created",
		"issue", issue.Number, "release_tag", info.ReleaseTag)
	return issue, nil
}

func (s *IssueSynchronizer) updateIssue(ctx context.Context, repo model.RepoRef, issue *model.TrackingIssue, info *model.ReleaseInfo, bot model.BotContext) (bool, error) {
	changed := false

	expectedLabel := info.State.Label()
	hasLabel := false
	for _, l := range issue.Labels {
		if l == expectedLabel {
			hasLabel = true
			break
		}
	}
	if !hasLabel {
		if err := s.setStateLabel(ctx, repo, issue, info.State); err != nil {
			return false, err
		}
		changed = true
	}

	body := model.UpdateSection(issue.Body, model.SectionState, stateSection(info, bot))
	body = model.UpdateSection(body, model.SectionConfig, configSection(bot))
	body = model.UpdateSection(body, model.SectionActions, actionsSection(info.State, info.ReleaseTag))

	expectedTitle := model.IssueTitle(info.ReleaseTag, info.ReleaseType, info.MetaRelease)
	var newTitle *string
	if issue.Title != expectedTitle {
		newTitle = &expectedTitle
	}

	if body != issue.Body || newTitle != nil {
		var newBody *string
		if body != issue.Body {
			newBody = &body
		}
		if err := s.gh.UpdateIssue(ctx, repo, issue.Number, newTitle, newBody); err != nil {
			return false, goerr.Wrap(err, "failed to update tracking issue", goerr.T(types.ErrTagInfra))
		}
		changed = true
	}

	return changed, nil
}

// setStateLabel swaps the release-state label, leaving others intact
func (s *IssueSynchronizer) setStateLabel(ctx context.Context, repo model.RepoRef, issue *model.TrackingIssue, state model.ReleaseState) error {
	for _, old := range issue.StateLabels() {
		if old == state.Label() {
			continue
		}
		if err := s.gh.RemoveLabel(ctx, repo, issue.Number, old); err != nil {
			return goerr.Wrap(err, "failed to remove state label",
				goerr.T(types.ErrTagInfra), goerr.V("label", old))
		}
	}
	if err := s.gh.AddLabels(ctx, repo, issue.Number, []string{state.Label()}); err != nil {
		return goerr.Wrap(err, "failed to add state label",
			goerr.T(types.ErrTagInfra), goerr.V("label", state.Label()))
	}
	return nil
}

// ensureLabels creates missing required labels once per repository.
// EnsureLabel is idempotent, so two workers racing on the first call
// for one repository at worst ensure twice.
func (s *IssueSynchronizer) ensureLabels(ctx context.Context, repo model.RepoRef) error {
	s.mu.Lock()
	done := s.labelsEnsured[repo.FullName()]
	s.mu.Unlock()
	if done {
		return nil
	}

	for _, label := range RequiredLabels() {
		if _, err := s.gh.EnsureLabel(ctx, repo, label); err != nil {
			return goerr.Wrap(err, "failed to ensure label",
				goerr.T(types.ErrTagInfra), goerr.V("label", label.Name))
		}
	}

	s.mu.Lock()
	s.labelsEnsured[repo.FullName()] = true
	s.mu.Unlock()
	return nil
}

// RequiredLabels lists the labels the synchronizer depends on
func RequiredLabels() []model.Label {
	return model.RequiredLabels
}
