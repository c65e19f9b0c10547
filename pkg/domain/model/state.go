package model

import (
	"strings"
	"time"

	"github.com/camaraproject/release-bot/pkg/domain/types"
)

// ReleaseState is the authoritative lifecycle state of a release.
// It is never persisted: every invocation re-derives it from repository
// artifacts (tags, branches, draft releases, release-plan.yaml).
type ReleaseState string

const (
	StatePlanned        ReleaseState = "planned"
	StateSnapshotActive ReleaseState = "snapshot-active"
	StateDraftReady     ReleaseState = "draft-ready"
	StatePublished      ReleaseState = "published"
	StateNotPlanned     ReleaseState = "not-planned"
)

// Label returns the issue label name for the state
func (s ReleaseState) Label() string {
	return "release-state:" + string(s)
}

// ConfigErrorKind categorizes release-plan.yaml problems. Configuration
// errors are a failure mode, not a release state.
type ConfigErrorKind string

const (
	ConfigErrorMissingFile  ConfigErrorKind = "missing_file"
	ConfigErrorMalformed    ConfigErrorKind = "malformed_yaml"
	ConfigErrorMissingField ConfigErrorKind = "missing_field"
)

// ConfigError describes a configuration problem that prevents state
// derivation. It is user-actionable and never retried.
type ConfigError struct {
	Kind      ConfigErrorKind
	Message   string
	FilePath  string
	FieldPath string
}

func (e *ConfigError) Error() string {
	return e.Message
}

// SnapshotInfo describes an active release snapshot.
//
// The snapshot ID is derived from the branch name:
// release-snapshot/r4.1-abc1234 -> r4.1-abc1234
type SnapshotInfo struct {
	SnapshotID      string
	SnapshotBranch  string
	ReviewBranch    string
	SrcCommitSHA    string
	CreatedAt       time.Time
	ReleasePRNumber int
	ReleaseType     ReleaseType
	APIs            []APIMetadata
	Dependencies    Dependencies
}

// SnapshotIDFromBranch strips the snapshot branch prefix
func SnapshotIDFromBranch(branch string) string {
	return strings.TrimPrefix(branch, types.SnapshotBranchPrefix)
}

// TagFromSnapshotID recovers the release tag from a snapshot ID
// (r4.1-abc1234 -> r4.1). Used as a fallback when the metadata document
// on the snapshot branch is unreadable.
func TagFromSnapshotID(snapshotID string) string {
	if i := strings.LastIndex(snapshotID, "-"); i > 0 {
		return snapshotID[:i]
	}
	return snapshotID
}

// InfoSource names the artifact that determined the release tag
type InfoSource string

const (
	SourceTag      InfoSource = "tag"
	SourceMetadata InfoSource = "release-metadata.yaml"
	SourcePlan     InfoSource = "release-plan.yaml"
)

// ReleaseInfo is the result of state derivation: the authoritative state
// plus the facts attached to it. A nil Snapshot means no snapshot branch
// exists. IssueNumber is 0 when no workflow-owned tracking issue is open.
type ReleaseInfo struct {
	ReleaseTag  string
	State       ReleaseState
	Source      InfoSource
	ReleaseType ReleaseType
	MetaRelease string
	Snapshot    *SnapshotInfo
	IssueNumber int
	Plan        *ReleasePlan
}
