package model

import (
	"fmt"
	"regexp"
	"strings"
)

// WorkflowMarker identifies issues owned by the automation. Issues
// without this marker are never managed.
const WorkflowMarker = "<!-- release-automation:workflow-owned -->"

// ReleaseIssueLabel is attached to every workflow-owned tracking issue
const ReleaseIssueLabel = "release-issue"

// StateLabelPrefix prefixes the per-state issue labels
const StateLabelPrefix = "release-state:"

// Label describes an issue label to be ensured in the repository
type Label struct {
	Name        string
	Color       string
	Description string
}

// RequiredLabels are created on demand before any label operation
var RequiredLabels = []Label{
	{ReleaseIssueLabel, "5319E7", "Release tracking issue managed by automation"},
	{StateLabelPrefix + "planned", "0E8A16", "Release is planned"},
	{StateLabelPrefix + "snapshot-active", "FBCA04", "Release snapshot is active"},
	{StateLabelPrefix + "draft-ready", "1D76DB", "Draft release is ready"},
	{StateLabelPrefix + "published", "0E8A16", "Release has been published"},
	{StateLabelPrefix + "not-planned", "C2C9D1", "No release is currently planned"},
}

// TrackingIssue is the lifecycle-tracking issue. Its open/closed status
// is reconciled against derived state and is never authoritative.
type TrackingIssue struct {
	Number int
	Title  string
	Body   string
	Labels []string
	Open   bool
}

// WorkflowOwned reports whether the issue carries the automation marker
func (i *TrackingIssue) WorkflowOwned() bool {
	return strings.Contains(i.Body, WorkflowMarker)
}

// StateLabels returns the release-state labels currently on the issue
func (i *TrackingIssue) StateLabels() []string {
	var out []string
	for _, l := range i.Labels {
		if strings.HasPrefix(l, StateLabelPrefix) {
			out = append(out, l)
		}
	}
	return out
}

// Reserved sections in the issue body are delimited by HTML comment
// markers. Only content inside the markers is automation-owned; content
// outside is preserved verbatim.
const (
	SectionState   = "STATE"
	SectionConfig  = "CONFIG"
	SectionActions = "ACTIONS"
)

func sectionPattern(section string) *regexp.Regexp {
	name := regexp.QuoteMeta(section)
	return regexp.MustCompile(`(?s)<!-- BEGIN:` + name + ` -->\n(.*?)\n<!-- END:` + name + ` -->`)
}

// UpdateSection replaces the content between the section markers. When
// the section is absent the body is returned unchanged.
func UpdateSection(body, section, content string) string {
	re := sectionPattern(section)
	if !re.MatchString(body) {
		return body
	}
	replacement := fmt.Sprintf("<!-- BEGIN:%s -->\n%s\n<!-- END:%s -->", section, content, section)
	return re.ReplaceAllString(body, replacement)
}

// SectionContent extracts the content of a reserved section. The second
// return value is false when the section is not present.
func SectionContent(body, section string) (string, bool) {
	m := sectionPattern(section).FindStringSubmatch(body)
	if m == nil {
		return "", false
	}
	return m[1], true
}

// NewIssueBody builds the initial body of a tracking issue with the
// workflow marker and empty reserved sections.
func NewIssueBody() string {
	var b strings.Builder
	b.WriteString(WorkflowMarker + "\n\n")
	for _, section := range []string{SectionState, SectionConfig, SectionActions} {
		fmt.Fprintf(&b, "<!-- BEGIN:%s -->\n\n<!-- END:%s -->\n\n", section, section)
	}
	return b.String()
}

// IssueTitle builds the standardized tracking-issue title
func IssueTitle(releaseTag string, releaseType ReleaseType, metaRelease string) string {
	title := fmt.Sprintf("Release %s (%s)", releaseTag, releaseType.Short())
	if metaRelease != "" {
		title += fmt.Sprintf(" - %s", metaRelease)
	}
	return title
}
