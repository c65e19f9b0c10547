package types

// Version is the application version, overridden at build time via
// -ldflags "-X github.com/camaraproject/release-bot/pkg/domain/types.Version=..."
var Version = "dev"

// AppName is used in health responses and user agent strings
const AppName = "release-bot"

// File paths of the declared and generated configuration documents
const (
	ReleasePlanFile     = "release-plan.yaml"
	ReleaseMetadataFile = "release-metadata.yaml"
)

// Branch and tag naming conventions
const (
	SnapshotBranchPrefix = "release-snapshot/"
	ReviewBranchPrefix   = "release-review/"
	ReferenceTagPrefix   = "src/"
)

// DefaultTrunkBranch is the branch release-plan.yaml is read from
const DefaultTrunkBranch = "main"
