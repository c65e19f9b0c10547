package usecase_test

import (
	"strings"
	"testing"

	"github.com/camaraproject/release-bot/pkg/domain/model"
	"github.com/camaraproject/release-bot/pkg/domain/types"
	"github.com/camaraproject/release-bot/pkg/usecase"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gt"
)

func TestValidateCommand_Gating(t *testing.T) {
	t.Run("create-snapshot allowed for codeowner in planned", func(t *testing.T) {
		cmd := model.Command{Verb: model.VerbCreateSnapshot, Actor: "alice"}
		gt.NoError(t, usecase.ValidateCommand(cmd, model.StatePlanned, model.TierCodeowner, "r1.2"))
	})

	t.Run("release manager cannot create snapshot", func(t *testing.T) {
		cmd := model.Command{Verb: model.VerbCreateSnapshot, Actor: "bob"}
		err := usecase.ValidateCommand(cmd, model.StatePlanned, model.TierReleaseManager, "r1.2")
		gt.Error(t, err)
		gt.True(t, goerr.HasTag(err, types.ErrTagPermission))
	})

	t.Run("permission rejection precedes state rejection", func(t *testing.T) {
		// Wrong tier AND wrong state: the permission failure must win
		cmd := model.Command{Verb: model.VerbCreateSnapshot, Actor: "mallory"}
		err := usecase.ValidateCommand(cmd, model.StatePublished, model.TierNone, "r1.2")
		gt.Error(t, err)
		gt.True(t, goerr.HasTag(err, types.ErrTagPermission))
		gt.False(t, goerr.HasTag(err, types.ErrTagState))
	})

	t.Run("wrong state is rejected with state tag", func(t *testing.T) {
		cmd := model.Command{Verb: model.VerbDiscardSnapshot, Actor: "alice", Reason: "bad cut"}
		err := usecase.ValidateCommand(cmd, model.StatePlanned, model.TierCodeowner, "r1.2")
		gt.Error(t, err)
		gt.True(t, goerr.HasTag(err, types.ErrTagState))
	})

	t.Run("discard requires a reason", func(t *testing.T) {
		cmd := model.Command{Verb: model.VerbDiscardSnapshot, Actor: "alice"}
		err := usecase.ValidateCommand(cmd, model.StateSnapshotActive, model.TierReleaseManager, "r1.2")
		gt.Error(t, err)
		gt.True(t, goerr.HasTag(err, types.ErrTagValidation))
	})

	t.Run("delete-draft requires a reason", func(t *testing.T) {
		cmd := model.Command{Verb: model.VerbDeleteDraft, Actor: "alice"}
		err := usecase.ValidateCommand(cmd, model.StateDraftReady, model.TierReleaseManager, "r1.2")
		gt.Error(t, err)
	})

	t.Run("publish requires confirm tag", func(t *testing.T) {
		cmd := model.Command{Verb: model.VerbPublishRelease, Actor: "alice"}
		err := usecase.ValidateCommand(cmd, model.StateDraftReady, model.TierCodeowner, "r1.2")
		gt.Error(t, err)
	})

	t.Run("confirm tag mismatch echoes both tags", func(t *testing.T) {
		cmd := model.Command{Verb: model.VerbPublishRelease, Actor: "alice", ConfirmTag: "r1.3"}
		err := usecase.ValidateCommand(cmd, model.StateDraftReady, model.TierCodeowner, "r1.2")
		gt.Error(t, err)

		values := goerr.Values(err)
		gt.Value(t, values["submitted_tag"]).Equal("r1.3")
		gt.Value(t, values["expected_tag"]).Equal("r1.2")
		gt.True(t, strings.Contains(err.Error(), "does not match"))
	})

	t.Run("publish with matching confirm succeeds", func(t *testing.T) {
		cmd := model.Command{Verb: model.VerbPublishRelease, Actor: "alice", ConfirmTag: "r1.2"}
		gt.NoError(t, usecase.ValidateCommand(cmd, model.StateDraftReady, model.TierCodeowner, "r1.2"))
	})

	t.Run("publish needs codeowner", func(t *testing.T) {
		cmd := model.Command{Verb: model.VerbPublishRelease, Actor: "bob", ConfirmTag: "r1.2"}
		err := usecase.ValidateCommand(cmd, model.StateDraftReady, model.TierReleaseManager, "r1.2")
		gt.Error(t, err)
		gt.True(t, goerr.HasTag(err, types.ErrTagPermission))
	})
}
