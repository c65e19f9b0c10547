package usecase_test

import (
	"testing"

	"github.com/camaraproject/release-bot/pkg/domain/model"
	"github.com/camaraproject/release-bot/pkg/usecase"
	"github.com/m-mizutani/gt"
)

func TestAssembleContext(t *testing.T) {
	trigger := model.TriggerInfo{
		Type:    model.TriggerCommand,
		Command: "create-snapshot",
		User:    "alice",
	}

	t.Run("defaults are present without artifacts", func(t *testing.T) {
		bot := usecase.AssembleContext(testRepo, trigger, nil, nil)
		gt.Value(t, bot.ReleaseTag).Equal("")
		gt.Value(t, bot.SnapshotID).Equal("")
		gt.False(t, bot.APIs == nil)
		gt.Value(t, len(bot.APIs)).Equal(0)
		gt.True(t, bot.TriggerIsCommand)
		gt.False(t, bot.TriggerIsIssueClose)
		gt.False(t, bot.HasReason)
	})

	t.Run("derived facts are layered in", func(t *testing.T) {
		info := &model.ReleaseInfo{
			ReleaseTag:  "r1.2",
			State:       model.StateSnapshotActive,
			ReleaseType: model.TypePreReleaseRC,
			MetaRelease: "Fall25",
			Snapshot: &model.SnapshotInfo{
				SnapshotID:      "r1.2-0123456",
				SnapshotBranch:  "release-snapshot/r1.2-0123456",
				ReviewBranch:    "release-review/r1.2-0123456",
				SrcCommitSHA:    trunkSHA,
				ReleasePRNumber: 7,
				APIs: []model.APIMetadata{
					{APIName: "qod", APIVersion: "0.11.0-rc.1"},
				},
			},
			Plan: &model.ReleasePlan{
				Dependencies: model.Dependencies{CommonalitiesRelease: "r3.2"},
			},
		}

		bot := usecase.AssembleContext(testRepo, trigger, info, nil)
		gt.Value(t, bot.ReleaseTag).Equal("r1.2")
		gt.Value(t, bot.ShortType).Equal("rc")
		gt.Value(t, bot.SrcCommitSHAShort).Equal(trunkSHA[:7])
		gt.Value(t, bot.ReleasePRNumber).Equal("7")
		gt.Value(t, bot.CommonalitiesRelease).Equal("r3.2")
		gt.Value(t, len(bot.APIs)).Equal(1)
		gt.True(t, bot.StateSnapshotActive)
		gt.False(t, bot.StateDraftReady)
		gt.True(t, bot.HasMetaRelease)
	})

	t.Run("handler delta wins over derived facts", func(t *testing.T) {
		info := &model.ReleaseInfo{
			ReleaseTag: "r1.2",
			State:      model.StateDraftReady,
			Snapshot:   &model.SnapshotInfo{SnapshotID: "r1.2-0123456"},
		}
		delta := &model.HandlerDelta{
			SnapshotID: "r1.2-fffffff",
			ReleaseURL: "https://example.com/release",
			Reason:     "obsolete cut",
		}

		bot := usecase.AssembleContext(testRepo, trigger, info, delta)
		gt.Value(t, bot.SnapshotID).Equal("r1.2-fffffff")
		gt.Value(t, bot.ReleaseURL).Equal("https://example.com/release")
		gt.True(t, bot.HasReason)
	})

	t.Run("error context sets exactly one error flag", func(t *testing.T) {
		cfgErr := &model.ConfigError{
			Kind:    model.ConfigErrorMalformed,
			Message: "invalid YAML",
		}
		bot := usecase.AssembleErrorContext(testRepo, trigger, cfgErr)
		gt.False(t, bot.IsMissingFile)
		gt.True(t, bot.IsMalformedYAML)
		gt.False(t, bot.IsMissingField)
		gt.Value(t, bot.ErrorMessage).Equal("invalid YAML")
	})
}
