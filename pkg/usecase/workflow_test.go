package usecase_test

import (
	"context"
	"strings"
	"testing"

	"github.com/camaraproject/release-bot/pkg/domain/model"
	"github.com/camaraproject/release-bot/pkg/domain/types"
	"github.com/camaraproject/release-bot/pkg/usecase"
	"github.com/m-mizutani/gt"
)

// setupPlanned returns a workflow over a repository in planned state
// with an open tracking issue.
func setupPlanned(t *testing.T) (*usecase.Workflow, *fakeGitHub, int) {
	t.Helper()
	ctx := context.Background()

	gh := seededFake()
	gh.permissions["alice"] = model.TierCodeowner
	gh.permissions["bob"] = model.TierReleaseManager

	w := usecase.NewWorkflow(gh)
	gt.NoError(t, w.HandlePlanChange(ctx, testRepo, model.TriggerInfo{User: "alice"}))

	gt.Value(t, len(gh.issues)).Equal(1)
	var issueNumber int
	for n := range gh.issues {
		issueNumber = n
	}
	return w, gh, issueNumber
}

// advanceToSnapshot runs create-snapshot as a codeowner
func advanceToSnapshot(t *testing.T, w *usecase.Workflow, gh *fakeGitHub, issueNumber int) string {
	t.Helper()
	ctx := context.Background()

	cmd := model.Command{Verb: model.VerbCreateSnapshot, Actor: "alice"}
	gt.NoError(t, w.HandleCommand(ctx, testRepo, issueNumber, cmd))

	branches, err := gh.ListBranches(ctx, testRepo, types.SnapshotBranchPrefix)
	gt.NoError(t, err)
	gt.Value(t, len(branches)).Equal(1)
	return branches[0].Name
}

// advanceToDraft merges the review PR so the draft release exists
func advanceToDraft(t *testing.T, w *usecase.Workflow, gh *fakeGitHub, snapshotBranch string) {
	t.Helper()
	ctx := context.Background()

	snapshotID := model.SnapshotIDFromBranch(snapshotBranch)
	gt.NoError(t, w.HandleReviewMerge(ctx, testRepo, types.ReviewBranchPrefix+snapshotID))

	draft, err := gh.GetDraftRelease(ctx, testRepo, "r1.2")
	gt.NoError(t, err)
	gt.Value(t, draft).NotNil()
}

func TestWorkflow_PlanChangeCreatesIssue(t *testing.T) {
	_, gh, issueNumber := setupPlanned(t)

	issue, err := gh.GetIssue(context.Background(), testRepo, issueNumber)
	gt.NoError(t, err)
	gt.True(t, issue.WorkflowOwned())
	gt.True(t, issue.Open)
	gt.True(t, strings.Contains(issue.Title, "r1.2"))
	gt.Value(t, issue.StateLabels()).Equal([]string{model.StatePlanned.Label()})
}

func TestWorkflow_CreateSnapshot(t *testing.T) {
	ctx := context.Background()
	w, gh, issueNumber := setupPlanned(t)

	snapshotBranch := advanceToSnapshot(t, w, gh, issueNumber)

	// Generated metadata replaces the plan on the snapshot branch
	_, found, err := gh.GetFileContent(ctx, testRepo, types.ReleaseMetadataFile, snapshotBranch)
	gt.NoError(t, err)
	gt.True(t, found)
	_, found, err = gh.GetFileContent(ctx, testRepo, types.ReleasePlanFile, snapshotBranch)
	gt.NoError(t, err)
	gt.False(t, found)

	// The plan on trunk is untouched
	_, found, err = gh.GetFileContent(ctx, testRepo, types.ReleasePlanFile, types.DefaultTrunkBranch)
	gt.NoError(t, err)
	gt.True(t, found)

	// Review PR exists and the success comment names the snapshot
	snapshotID := model.SnapshotIDFromBranch(snapshotBranch)
	gt.Value(t, gh.prs[types.ReviewBranchPrefix+snapshotID]).Equal(1)
	gt.True(t, strings.Contains(gh.lastComment(issueNumber), snapshotID))

	issue, err := gh.GetIssue(ctx, testRepo, issueNumber)
	gt.NoError(t, err)
	gt.Value(t, issue.StateLabels()).Equal([]string{model.StateSnapshotActive.Label()})
}

func TestWorkflow_CommandRejections(t *testing.T) {
	ctx := context.Background()

	t.Run("unauthorized actor", func(t *testing.T) {
		w, gh, issueNumber := setupPlanned(t)

		cmd := model.Command{Verb: model.VerbCreateSnapshot, Actor: "carol"}
		gt.NoError(t, w.HandleCommand(ctx, testRepo, issueNumber, cmd))

		comment := gh.lastComment(issueNumber)
		gt.True(t, strings.Contains(comment, "rejected"))
		gt.True(t, strings.Contains(comment, "insufficient permission"))

		branches, err := gh.ListBranches(ctx, testRepo, types.SnapshotBranchPrefix)
		gt.NoError(t, err)
		gt.Value(t, len(branches)).Equal(0)
	})

	t.Run("command invalid in state", func(t *testing.T) {
		w, gh, issueNumber := setupPlanned(t)

		cmd := model.Command{Verb: model.VerbDiscardSnapshot, Actor: "bob", Reason: "wrong cut"}
		gt.NoError(t, w.HandleCommand(ctx, testRepo, issueNumber, cmd))

		comment := gh.lastComment(issueNumber)
		gt.True(t, strings.Contains(comment, "rejected"))
		gt.True(t, strings.Contains(comment, "not valid in current state"))
	})

	t.Run("confirm tag mismatch names both tags", func(t *testing.T) {
		w, gh, issueNumber := setupPlanned(t)
		snapshotBranch := advanceToSnapshot(t, w, gh, issueNumber)
		advanceToDraft(t, w, gh, snapshotBranch)

		cmd := model.Command{Verb: model.VerbPublishRelease, Actor: "alice", ConfirmTag: "r9.9"}
		gt.NoError(t, w.HandleCommand(ctx, testRepo, issueNumber, cmd))

		comment := gh.lastComment(issueNumber)
		gt.True(t, strings.Contains(comment, "r9.9"))
		gt.True(t, strings.Contains(comment, "r1.2"))

		// The draft survives a rejected publication
		draft, err := gh.GetDraftRelease(ctx, testRepo, "r1.2")
		gt.NoError(t, err)
		gt.Value(t, draft).NotNil()
	})
}

func TestWorkflow_DiscardSnapshot(t *testing.T) {
	ctx := context.Background()
	w, gh, issueNumber := setupPlanned(t)
	advanceToSnapshot(t, w, gh, issueNumber)

	cmd := model.Command{Verb: model.VerbDiscardSnapshot, Actor: "bob", Reason: "bad trunk state"}
	gt.NoError(t, w.HandleCommand(ctx, testRepo, issueNumber, cmd))

	branches, err := gh.ListBranches(ctx, testRepo, types.SnapshotBranchPrefix)
	gt.NoError(t, err)
	gt.Value(t, len(branches)).Equal(0)
	branches, err = gh.ListBranches(ctx, testRepo, types.ReviewBranchPrefix)
	gt.NoError(t, err)
	gt.Value(t, len(branches)).Equal(0)

	gt.True(t, strings.Contains(gh.lastComment(issueNumber), "bad trunk state"))

	issue, err := gh.GetIssue(ctx, testRepo, issueNumber)
	gt.NoError(t, err)
	gt.Value(t, issue.StateLabels()).Equal([]string{model.StatePlanned.Label()})
}

func TestWorkflow_DeleteDraft(t *testing.T) {
	ctx := context.Background()
	w, gh, issueNumber := setupPlanned(t)
	snapshotBranch := advanceToSnapshot(t, w, gh, issueNumber)
	advanceToDraft(t, w, gh, snapshotBranch)

	cmd := model.Command{Verb: model.VerbDeleteDraft, Actor: "bob", Reason: "metadata wrong"}
	gt.NoError(t, w.HandleCommand(ctx, testRepo, issueNumber, cmd))

	draft, err := gh.GetDraftRelease(ctx, testRepo, "r1.2")
	gt.NoError(t, err)
	gt.Value(t, draft).Nil()

	branches, err := gh.ListBranches(ctx, testRepo, types.SnapshotBranchPrefix)
	gt.NoError(t, err)
	gt.Value(t, len(branches)).Equal(0)
}

func TestWorkflow_PublishRelease(t *testing.T) {
	ctx := context.Background()
	w, gh, issueNumber := setupPlanned(t)
	snapshotBranch := advanceToSnapshot(t, w, gh, issueNumber)
	advanceToDraft(t, w, gh, snapshotBranch)

	cmd := model.Command{Verb: model.VerbPublishRelease, Actor: "alice", ConfirmTag: "r1.2"}
	gt.NoError(t, w.HandleCommand(ctx, testRepo, issueNumber, cmd))

	// Release tag and source reference tag exist
	published, err := gh.TagExists(ctx, testRepo, "r1.2")
	gt.NoError(t, err)
	gt.True(t, published)
	refTag, err := gh.TagExists(ctx, testRepo, types.ReferenceTagPrefix+"r1.2")
	gt.NoError(t, err)
	gt.True(t, refTag)
	gt.Value(t, gh.tags[types.ReferenceTagPrefix+"r1.2"]).Equal(trunkSHA)

	// Metadata reachable via the release tag carries the release date
	content, found, err := gh.GetFileContent(ctx, testRepo, types.ReleaseMetadataFile, "r1.2")
	gt.NoError(t, err)
	gt.True(t, found)
	md, err := model.ParseReleaseMetadata(content)
	gt.NoError(t, err)
	gt.False(t, md.Repository.ReleaseDate == nil)

	// Snapshot branch removed, review branch kept under -published
	branches, err := gh.ListBranches(ctx, testRepo, types.SnapshotBranchPrefix)
	gt.NoError(t, err)
	gt.Value(t, len(branches)).Equal(0)
	renamed, err := gh.ListBranches(ctx, testRepo, types.ReviewBranchPrefix)
	gt.NoError(t, err)
	gt.Value(t, len(renamed)).Equal(1)
	gt.True(t, strings.HasSuffix(renamed[0].Name, "-published"))

	// Tracking issue closed as completed
	issue, err := gh.GetIssue(ctx, testRepo, issueNumber)
	gt.NoError(t, err)
	gt.False(t, issue.Open)
	gt.Value(t, issue.StateLabels()).Equal([]string{model.StatePublished.Label()})

	gt.True(t, strings.Contains(gh.lastComment(issueNumber), "published"))
}

func TestWorkflow_IssueClosedReopens(t *testing.T) {
	ctx := context.Background()
	w, gh, issueNumber := setupPlanned(t)
	advanceToSnapshot(t, w, gh, issueNumber)

	gt.NoError(t, gh.CloseIssue(ctx, testRepo, issueNumber, ""))
	gt.NoError(t, w.HandleIssueClosed(ctx, testRepo, issueNumber, "alice"))

	issue, err := gh.GetIssue(ctx, testRepo, issueNumber)
	gt.NoError(t, err)
	gt.True(t, issue.Open)
}

func TestWorkflow_ConfigErrorReported(t *testing.T) {
	ctx := context.Background()
	w, gh, issueNumber := setupPlanned(t)

	// Break the plan after the issue exists
	gh.setFile(types.DefaultTrunkBranch, types.ReleasePlanFile, []byte("repository: [broken"))

	cmd := model.Command{Verb: model.VerbCreateSnapshot, Actor: "alice"}
	gt.NoError(t, w.HandleCommand(ctx, testRepo, issueNumber, cmd))

	comment := gh.lastComment(issueNumber)
	gt.True(t, strings.Contains(comment, "configuration is invalid"))
	gt.True(t, strings.Contains(comment, "malformed_yaml"))
}

func TestWorkflow_PermissionRejectionPrecedesConfigError(t *testing.T) {
	ctx := context.Background()
	w, gh, issueNumber := setupPlanned(t)

	// An unauthorized caller on a misconfigured repo is told about the
	// permission, not the configuration.
	gh.setFile(types.DefaultTrunkBranch, types.ReleasePlanFile, []byte("repository: [broken"))

	cmd := model.Command{Verb: model.VerbCreateSnapshot, Actor: "carol"}
	gt.NoError(t, w.HandleCommand(ctx, testRepo, issueNumber, cmd))

	comment := gh.lastComment(issueNumber)
	gt.True(t, strings.Contains(comment, "insufficient permission"))
	gt.False(t, strings.Contains(comment, "configuration is invalid"))
}

func TestWorkflow_ReviewMergeIgnoresOtherBranches(t *testing.T) {
	ctx := context.Background()
	w, gh, _ := setupPlanned(t)

	gt.NoError(t, w.HandleReviewMerge(ctx, testRepo, "feature/some-change"))

	draft, err := gh.GetDraftRelease(ctx, testRepo, "r1.2")
	gt.NoError(t, err)
	gt.Value(t, draft).Nil()
}
