package usecase

import (
	"fmt"
	"strings"

	"github.com/camaraproject/release-bot/pkg/domain/model"
)

// stateSection renders the STATE block of the tracking issue from the
// assembled context. Markdown only; the surrounding markers are owned
// by model.UpdateSection.
func stateSection(info *model.ReleaseInfo, bot model.BotContext) string {
	var b strings.Builder

	fmt.Fprintf(&b, "**Release tag:** `%s`\n", bot.ReleaseTag)
	fmt.Fprintf(&b, "**Release type:** %s\n", bot.ReleaseType)
	fmt.Fprintf(&b, "**State:** `%s`\n", bot.State)
	if bot.HasMetaRelease {
		fmt.Fprintf(&b, "**Meta-release:** %s\n", bot.MetaRelease)
	}

	if bot.StateSnapshotActive || bot.StateDraftReady {
		fmt.Fprintf(&b, "\n**Snapshot:** `%s`\n", bot.SnapshotID)
		fmt.Fprintf(&b, "**Snapshot branch:** [`%s`](%s)\n", bot.SnapshotBranch, bot.SnapshotBranchURL)
		fmt.Fprintf(&b, "**Source commit:** `%s`\n", bot.SrcCommitSHAShort)
		if bot.ReleasePRNumber != "" {
			fmt.Fprintf(&b, "**Review PR:** [#%s](%s)\n", bot.ReleasePRNumber, bot.ReleasePRURL)
		}
	}
	if bot.StateDraftReady && bot.DraftReleaseURL != "" {
		fmt.Fprintf(&b, "**Draft release:** %s\n", bot.DraftReleaseURL)
	}

	if len(bot.APIs) > 0 {
		b.WriteString("\n| API | Version |\n|---|---|\n")
		for _, api := range bot.APIs {
			version := api.APIVersion
			if version == "" {
				version = "_pending_"
			}
			fmt.Fprintf(&b, "| %s | `%s` |\n", api.APIName, version)
		}
	}

	return strings.TrimRight(b.String(), "\n")
}

// publishedStateSection renders the final STATE block written when the
// issue is closed after publication.
func publishedStateSection(bot model.BotContext) string {
	var b strings.Builder

	fmt.Fprintf(&b, "**Release tag:** `%s`\n", bot.ReleaseTag)
	fmt.Fprintf(&b, "**State:** `%s`\n", string(model.StatePublished))
	if bot.ReleaseURL != "" {
		fmt.Fprintf(&b, "**Release:** %s\n", bot.ReleaseURL)
	}
	if bot.ReferenceTag != "" {
		fmt.Fprintf(&b, "**Source reference tag:** [`%s`](%s)\n", bot.ReferenceTag, bot.ReferenceTagURL)
	}
	if bot.SrcCommitSHAShort != "" {
		fmt.Fprintf(&b, "**Source commit:** `%s`\n", bot.SrcCommitSHAShort)
	}

	return strings.TrimRight(b.String(), "\n")
}

// configSection renders the CONFIG block: plan location and declared
// dependencies.
func configSection(bot model.BotContext) string {
	var b strings.Builder

	fmt.Fprintf(&b, "**Release plan:** %s\n", bot.ReleasePlanURL)
	if bot.CommonalitiesRelease != "" {
		fmt.Fprintf(&b, "**Commonalities:** `%s`\n", bot.CommonalitiesRelease)
	}
	if bot.ICMRelease != "" {
		fmt.Fprintf(&b, "**Identity & Consent:** `%s`\n", bot.ICMRelease)
	}

	return strings.TrimRight(b.String(), "\n")
}

// actionsSection lists the commands available in the current state so
// maintainers never need to consult external documentation.
func actionsSection(state model.ReleaseState, releaseTag string) string {
	switch state {
	case model.StatePlanned:
		return "- `/create-snapshot` (codeowners): freeze the current trunk into a release snapshot"
	case model.StateSnapshotActive:
		return "- Merge the release review PR to create the draft release\n" +
			"- `/discard-snapshot <reason>` (release managers): abandon the snapshot and return to planned"
	case model.StateDraftReady:
		return fmt.Sprintf("- `/publish-release --confirm %s` (codeowners): publish the draft release\n"+
			"- `/delete-draft <reason>` (release managers): delete the draft and return to planned", releaseTag)
	case model.StatePublished:
		return "No actions available. The release is published."
	case model.StateNotPlanned:
		return "No actions available. Set a valid release type in the release plan to start a release."
	}
	return ""
}
