package model_test

import (
	"strings"
	"testing"

	"github.com/camaraproject/release-bot/pkg/domain/model"
	"github.com/m-mizutani/gt"
)

func TestReleaseMetadata_ReleaseDate(t *testing.T) {
	repo := model.RepoRef{Owner: "camaraproject", Name: "QualityOnDemand"}
	plan := &model.ReleasePlan{
		Repository: model.PlanRepository{
			TargetReleaseTag:  "r1.2",
			TargetReleaseType: model.TypePreReleaseAlpha,
		},
		APIs: []model.PlanAPI{
			{APIName: "quality-on-demand", TargetVersion: "0.11.0"},
		},
	}

	t.Run("serializes as null before publication", func(t *testing.T) {
		md := model.BuildReleaseMetadata(repo, plan,
			map[string]string{"quality-on-demand": "0.11.0-alpha.1"},
			map[string]string{}, "0123456789abcdef")

		out, err := md.Marshal()
		gt.NoError(t, err)
		gt.True(t, strings.Contains(string(out), "release_date: null"))
	})

	t.Run("round-trips a finalized date", func(t *testing.T) {
		md := model.BuildReleaseMetadata(repo, plan,
			map[string]string{"quality-on-demand": "0.11.0-alpha.1"},
			map[string]string{}, "0123456789abcdef")
		date := "2026-08-30T12:00:00Z"
		md.Repository.ReleaseDate = &date

		out, err := md.Marshal()
		gt.NoError(t, err)

		parsed, err := model.ParseReleaseMetadata(out)
		gt.NoError(t, err)
		gt.False(t, parsed.Repository.ReleaseDate == nil)
		gt.Value(t, *parsed.Repository.ReleaseDate).Equal(date)
	})
}
