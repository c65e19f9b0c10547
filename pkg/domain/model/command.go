package model

import "strings"

// CommandVerb identifies a mutating slash command
type CommandVerb string

const (
	VerbCreateSnapshot  CommandVerb = "create-snapshot"
	VerbDiscardSnapshot CommandVerb = "discard-snapshot"
	VerbDeleteDraft     CommandVerb = "delete-draft"
	VerbPublishRelease  CommandVerb = "publish-release"
)

// PermissionTier is the caller's authorization level, ordered by power
type PermissionTier int

const (
	TierNone PermissionTier = iota
	TierReleaseManager
	TierCodeowner
)

func (t PermissionTier) String() string {
	switch t {
	case TierCodeowner:
		return "codeowner"
	case TierReleaseManager:
		return "release-manager"
	}
	return "none"
}

// Command is a parsed user directive from a tracking-issue comment.
// It exists only within one invocation.
type Command struct {
	Verb       CommandVerb
	Args       string
	Reason     string
	ConfirmTag string
	Actor      string
}

// ParseCommand parses the first line of an issue comment into a
// Command. The second return value is false when the comment does not
// carry a recognized slash command; unrecognized verbs are ignored, not
// rejected.
func ParseCommand(body, actor string) (Command, bool) {
	line := body
	if i := strings.IndexByte(line, '\n'); i >= 0 {
		line = line[:i]
	}
	line = strings.TrimSpace(line)

	if !strings.HasPrefix(line, "/") {
		return Command{}, false
	}

	fields := strings.Fields(line[1:])
	if len(fields) == 0 {
		return Command{}, false
	}

	cmd := Command{Actor: actor}
	args := fields[1:]

	switch CommandVerb(fields[0]) {
	case VerbCreateSnapshot:
		cmd.Verb = VerbCreateSnapshot
	case VerbDiscardSnapshot:
		cmd.Verb = VerbDiscardSnapshot
		cmd.Reason = strings.Join(args, " ")
	case VerbDeleteDraft:
		cmd.Verb = VerbDeleteDraft
		cmd.Reason = strings.Join(args, " ")
	case VerbPublishRelease:
		cmd.Verb = VerbPublishRelease
		for i := 0; i < len(args); i++ {
			if args[i] == "--confirm" && i+1 < len(args) {
				cmd.ConfirmTag = args[i+1]
				i++
			}
		}
	default:
		return Command{}, false
	}

	cmd.Args = strings.Join(args, " ")
	return cmd, true
}
