package model

// TriggerType identifies what started the current invocation
type TriggerType string

const (
	TriggerCommand    TriggerType = "command"
	TriggerIssueClose TriggerType = "issue_close"
	TriggerPlanChange TriggerType = "release_plan_change"
	TriggerMergeEvent TriggerType = "merge_event"
)

// TriggerInfo carries the event metadata layered first into BotContext
type TriggerInfo struct {
	Type            TriggerType
	Command         string
	CommandArgs     string
	User            string
	TriggerPRNumber string
	TriggerPRURL    string
	WorkflowRunURL  string
}

// HandlerDelta is the result of a command handler, layered last into
// BotContext. Non-zero fields override the base assembly.
type HandlerDelta struct {
	SnapshotID      string
	SnapshotBranch  string
	ReviewBranch    string
	SrcCommitSHA    string
	ReleasePRNumber string
	ReleasePRURL    string
	DraftReleaseURL string
	ReleaseURL      string
	ReferenceTag    string
	ReferenceTagURL string
	SyncPRNumber    string
	SyncPRURL       string
	Reason          string
	APIs            []APIMetadata
}

// BotContext is the complete, default-filled context handed to every
// presentation and issue-sync consumer. Every field is always present
// with a type-appropriate default; boolean flags are derived from the
// string fields by DeriveFlags and never set independently.
type BotContext struct {
	// Trigger fields
	Command         string
	CommandArgs     string
	User            string
	TriggerType     string
	TriggerPRNumber string
	TriggerPRURL    string

	// Issue creation fields
	ClosedIssueNumber string
	ClosedIssueURL    string
	ReleasePlanURL    string

	// State fields
	ReleaseTag  string
	State       string
	ReleaseType string
	MetaRelease string
	ShortType   string

	// Snapshot fields
	SnapshotID        string
	SnapshotBranch    string
	SnapshotBranchURL string
	ReviewBranch      string
	ReviewBranchURL   string
	SrcCommitSHA      string
	SrcCommitSHAShort string
	ReleasePRNumber   string
	ReleasePRURL      string

	// API list: one entry per API with its calculated version
	APIs []APIMetadata

	// Dependency fields
	CommonalitiesRelease string
	ICMRelease           string

	// Error fields
	ErrorMessage string
	ErrorType    string

	// Display fields
	WorkflowRunURL  string
	DraftReleaseURL string
	Reason          string

	// Publication fields
	ReleaseURL      string
	ReferenceTag    string
	ReferenceTagURL string
	SyncPRNumber    string
	SyncPRURL       string
	ConfirmTag      string

	// Derived boolean flags (set by DeriveFlags)
	IsMissingFile       bool
	IsMalformedYAML     bool
	IsMissingField      bool
	StateSnapshotActive bool
	StateDraftReady     bool
	StatePublished      bool
	TriggerIsCommand    bool
	TriggerIsIssueClose bool
	TriggerIsPlanChange bool
	HasMetaRelease      bool
	HasReason           bool
}

// DeriveFlags computes the boolean convenience flags and derived string
// fields. Flags are a pure function of the string fields, which keeps
// mutually exclusive flags from ever being set independently.
func (c *BotContext) DeriveFlags() {
	c.IsMissingFile = c.ErrorType == string(ConfigErrorMissingFile)
	c.IsMalformedYAML = c.ErrorType == string(ConfigErrorMalformed)
	c.IsMissingField = c.ErrorType == string(ConfigErrorMissingField)
	c.StateSnapshotActive = c.State == string(StateSnapshotActive)
	c.StateDraftReady = c.State == string(StateDraftReady)
	c.StatePublished = c.State == string(StatePublished)
	c.TriggerIsCommand = c.TriggerType == string(TriggerCommand)
	c.TriggerIsIssueClose = c.TriggerType == string(TriggerIssueClose)
	c.TriggerIsPlanChange = c.TriggerType == string(TriggerPlanChange)
	c.HasMetaRelease = c.MetaRelease != ""
	c.HasReason = c.Reason != ""
	if c.ShortType == "" {
		c.ShortType = ReleaseType(c.ReleaseType).Short()
	}
	if c.SrcCommitSHAShort == "" && len(c.SrcCommitSHA) >= 7 {
		c.SrcCommitSHAShort = c.SrcCommitSHA[:7]
	}
}
