package github

import (
	"context"
	"strings"

	"github.com/camaraproject/release-bot/pkg/domain/interfaces"
	"github.com/camaraproject/release-bot/pkg/domain/model"
	"github.com/camaraproject/release-bot/pkg/domain/types"
	"github.com/camaraproject/release-bot/pkg/utils/queue"
	"github.com/google/go-github/v75/github"
	"github.com/google/uuid"
	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"
)

// EventProcessor turns webhook events into serialized workflow tasks.
// Events for the same repository are enqueued in arrival order on that
// repository's worker; the webhook response never waits for the work.
type EventProcessor struct {
	workflow interfaces.ReleaseWorkflow
	queue    *queue.Queue
}

var _ interfaces.WebhookUseCase = (*EventProcessor)(nil)

// NewEventProcessor creates the processor backed by the given workflow
func NewEventProcessor(workflow interfaces.ReleaseWorkflow, q *queue.Queue) *EventProcessor {
	return &EventProcessor{
		workflow: workflow,
		queue:    q,
	}
}

// ProcessEvent routes one webhook event. Unsupported types and actions
// are acknowledged without work; parse failures are errors.
func (p *EventProcessor) ProcessEvent(ctx context.Context, event *model.WebhookEvent) error {
	logger := ctxlog.From(ctx)
	logger.Info("processing webhook event",
		"id", event.ID,
		"type", string(event.Type),
		"action", event.Action,
		"repository", event.Repository,
		"sender", event.Sender,
	)

	if !event.IsSupportedEvent() {
		logger.Debug("ignoring unsupported event",
			"type", string(event.Type), "action", event.Action)
		return nil
	}

	// The bot's own mutations produce events; processing them would
	// loop.
	if strings.HasSuffix(event.Sender, "[bot]") {
		logger.Debug("ignoring event from bot sender", "sender", event.Sender)
		return nil
	}

	payload, err := github.ParseWebHook(string(event.Type), event.RawPayload)
	if err != nil {
		return goerr.Wrap(err, "failed to parse webhook payload",
			goerr.T(types.ErrTagValidation), goerr.V("type", string(event.Type)))
	}

	switch e := payload.(type) {
	case *github.IssueCommentEvent:
		return p.processIssueComment(ctx, e)
	case *github.IssuesEvent:
		return p.processIssueClosed(ctx, e)
	case *github.PushEvent:
		return p.processPush(ctx, e)
	case *github.PullRequestEvent:
		return p.processPullRequest(ctx, e)
	}
	return nil
}

// Shutdown drains the work queue
func (p *EventProcessor) Shutdown() {
	p.queue.Shutdown()
}

func (p *EventProcessor) processIssueComment(ctx context.Context, e *github.IssueCommentEvent) error {
	logger := ctxlog.From(ctx)

	issue := e.GetIssue()
	if issue == nil || !strings.Contains(issue.GetBody(), model.WorkflowMarker) {
		return nil
	}

	cmd, ok := model.ParseCommand(e.GetComment().GetBody(), e.GetSender().GetLogin())
	if !ok {
		// Ordinary discussion comments and unknown verbs are ignored
		return nil
	}

	repo := repoRef(e.GetRepo())
	issueNumber := issue.GetNumber()
	logger.Info("command received",
		"verb", string(cmd.Verb), "actor", cmd.Actor,
		"repository", repo.FullName(), "issue", issueNumber)

	p.submit(ctx, repo, func(taskCtx context.Context) error {
		return p.workflow.HandleCommand(taskCtx, repo, issueNumber, cmd)
	})
	return nil
}

func (p *EventProcessor) processIssueClosed(ctx context.Context, e *github.IssuesEvent) error {
	issue := e.GetIssue()
	if issue == nil || !strings.Contains(issue.GetBody(), model.WorkflowMarker) {
		return nil
	}

	repo := repoRef(e.GetRepo())
	issueNumber := issue.GetNumber()
	actor := e.GetSender().GetLogin()

	p.submit(ctx, repo, func(taskCtx context.Context) error {
		return p.workflow.HandleIssueClosed(taskCtx, repo, issueNumber, actor)
	})
	return nil
}

// processPush reacts only to trunk pushes that touch the release plan
func (p *EventProcessor) processPush(ctx context.Context, e *github.PushEvent) error {
	if e.GetRef() != "refs/heads/"+types.DefaultTrunkBranch {
		return nil
	}

	touched := false
	for _, commit := range e.Commits {
		for _, files := range [][]string{commit.Added, commit.Modified, commit.Removed} {
			for _, f := range files {
				if f == types.ReleasePlanFile {
					touched = true
				}
			}
		}
	}
	if !touched {
		return nil
	}

	repo := model.RepoRef{
		Owner: e.GetRepo().GetOwner().GetLogin(),
		Name:  e.GetRepo().GetName(),
	}
	trigger := model.TriggerInfo{
		Type: model.TriggerPlanChange,
		User: e.GetSender().GetLogin(),
	}

	p.submit(ctx, repo, func(taskCtx context.Context) error {
		return p.workflow.HandlePlanChange(taskCtx, repo, trigger)
	})
	return nil
}

func (p *EventProcessor) processPullRequest(ctx context.Context, e *github.PullRequestEvent) error {
	pr := e.GetPullRequest()
	if pr == nil || !pr.GetMerged() {
		return nil
	}
	headBranch := pr.GetHead().GetRef()
	if !strings.HasPrefix(headBranch, types.ReviewBranchPrefix) {
		return nil
	}

	repo := repoRef(e.GetRepo())
	p.submit(ctx, repo, func(taskCtx context.Context) error {
		return p.workflow.HandleReviewMerge(taskCtx, repo, headBranch)
	})
	return nil
}

// submit enqueues a task with a correlation ID bound to its logger so
// every log line of one work unit can be tied together.
func (p *EventProcessor) submit(ctx context.Context, repo model.RepoRef, task queue.Task) {
	correlationID := uuid.NewString()
	ctx = ctxlog.With(ctx, ctxlog.From(ctx).With(
		"correlation_id", correlationID,
		"repository", repo.FullName(),
	))
	wrapped := func(taskCtx context.Context) error {
		if err := task(taskCtx); err != nil {
			return goerr.Wrap(err, "work unit failed",
				goerr.TV(types.ErrVarCorrelationID, correlationID))
		}
		return nil
	}
	if !p.queue.Submit(ctx, repo.FullName(), wrapped) {
		ctxlog.From(ctx).Warn("work queue is shut down, dropping event",
			"repository", repo.FullName())
	}
}

func repoRef(repo *github.Repository) model.RepoRef {
	return model.RepoRef{
		Owner: repo.GetOwner().GetLogin(),
		Name:  repo.GetName(),
	}
}
