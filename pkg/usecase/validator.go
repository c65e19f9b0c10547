package usecase

import (
	"github.com/camaraproject/release-bot/pkg/domain/model"
	"github.com/camaraproject/release-bot/pkg/domain/types"
	"github.com/m-mizutani/goerr/v2"
)

// commandSpec is the gating descriptor for one command. New mutating
// commands are added by extending the table, not the validation logic.
type commandSpec struct {
	requiredState model.ReleaseState
	minimumTier   model.PermissionTier
	needsReason   bool
	needsConfirm  bool
}

var commandTable = map[model.CommandVerb]commandSpec{
	model.VerbCreateSnapshot: {
		requiredState: model.StatePlanned,
		minimumTier:   model.TierCodeowner,
	},
	model.VerbDiscardSnapshot: {
		requiredState: model.StateSnapshotActive,
		minimumTier:   model.TierReleaseManager,
		needsReason:   true,
	},
	model.VerbDeleteDraft: {
		requiredState: model.StateDraftReady,
		minimumTier:   model.TierReleaseManager,
		needsReason:   true,
	},
	model.VerbPublishRelease: {
		requiredState: model.StateDraftReady,
		minimumTier:   model.TierCodeowner,
		needsConfirm:  true,
	},
}

// CheckPermission gates a parsed command against the caller's tier
// alone. It needs no derived state, so the workflow runs it before
// reading any configuration: an unauthorized caller is told so even
// when the release plan is broken.
func CheckPermission(cmd model.Command, tier model.PermissionTier) error {
	spec, ok := commandTable[cmd.Verb]
	if !ok {
		// Unrecognized verbs never reach the validator; a missing
		// descriptor is a programming error.
		return goerr.New("no descriptor for command",
			goerr.T(types.ErrTagValidation), goerr.V("verb", string(cmd.Verb)))
	}

	if tier < spec.minimumTier {
		return goerr.New("insufficient permission for command",
			goerr.T(types.ErrTagPermission),
			goerr.V("verb", string(cmd.Verb)),
			goerr.V("actor", cmd.Actor),
			goerr.V("required_tier", spec.minimumTier.String()),
			goerr.V("actual_tier", tier.String()),
		)
	}
	return nil
}

// ValidateCommand gates a parsed command against the derived state and
// the caller's permission tier. Permission failures take precedence
// over state failures in the reported rejection; the confirm-tag
// mismatch is a distinct reason echoing both tags.
func ValidateCommand(cmd model.Command, state model.ReleaseState, tier model.PermissionTier, releaseTag string) error {
	if err := CheckPermission(cmd, tier); err != nil {
		return err
	}
	spec := commandTable[cmd.Verb]

	if state != spec.requiredState {
		return goerr.New("command not valid in current state",
			goerr.T(types.ErrTagState),
			goerr.V("verb", string(cmd.Verb)),
			goerr.V("required_state", string(spec.requiredState)),
			goerr.V("current_state", string(state)),
		)
	}

	if spec.needsReason && cmd.Reason == "" {
		return goerr.New("command requires a reason argument",
			goerr.T(types.ErrTagValidation),
			goerr.V("verb", string(cmd.Verb)),
		)
	}

	if spec.needsConfirm {
		if cmd.ConfirmTag == "" {
			return goerr.New("command requires --confirm with the release tag",
				goerr.T(types.ErrTagValidation),
				goerr.V("verb", string(cmd.Verb)),
				goerr.V("expected_tag", releaseTag),
			)
		}
		if cmd.ConfirmTag != releaseTag {
			return goerr.New("confirm tag does not match current release tag",
				goerr.T(types.ErrTagValidation),
				goerr.V("verb", string(cmd.Verb)),
				goerr.V("submitted_tag", cmd.ConfirmTag),
				goerr.V("expected_tag", releaseTag),
			)
		}
	}

	return nil
}
