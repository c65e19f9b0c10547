package usecase

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strconv"

	"github.com/camaraproject/release-bot/pkg/domain/interfaces"
	"github.com/camaraproject/release-bot/pkg/domain/model"
	"github.com/camaraproject/release-bot/pkg/domain/types"
	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"
)

// versionPattern matches a pre-release version with extension: 1.2.3-rc.4
var versionPattern = regexp.MustCompile(`^(\d+\.\d+\.\d+)-([a-z]+)\.(\d+)$`)

// urlVersionPattern parses x.y.z with an optional -status.n suffix
var urlVersionPattern = regexp.MustCompile(`^(\d+)\.(\d+)\.(\d+)(?:-([a-z]+)\.(\d+))?$`)

// CalculateURLVersion computes the URL version component for an API
// version string:
//
//	0.3.0          -> v0.3
//	1.0.0          -> v1
//	0.3.0-alpha.1  -> v0.3alpha1
//	1.2.0-rc.3     -> v1rc3
//	wip            -> vwip
func CalculateURLVersion(apiVersion string) string {
	if apiVersion == "wip" {
		return "vwip"
	}

	m := urlVersionPattern.FindStringSubmatch(apiVersion)
	if m == nil {
		return "vwip"
	}

	major := m[1]
	minor := m[2]
	status := m[4]
	extension := m[5]

	var base string
	if major == "0" {
		base = "v0." + minor
	} else {
		base = "v" + major
	}

	if status != "" && extension != "" {
		return base + status + extension
	}
	return base
}

// VersionCalculator computes release-specific API version strings.
//
// Public releases use the target version unchanged. Pre-releases get a
// monotonically increasing extension suffix derived from the release
// history, so successive cuts of the same base version and status are
// distinguishable.
type VersionCalculator struct {
	gh interfaces.GitHubClient
}

// NewVersionCalculator creates a calculator backed by the given client
func NewVersionCalculator(gh interfaces.GitHubClient) *VersionCalculator {
	return &VersionCalculator{gh: gh}
}

// Calculate returns the full version string for one API.
//
// Extensions must form a gap-free 1..n sequence per (api, version,
// status) tuple. A duplicate or a gap in the history is a data
// integrity violation and fails loudly: silently picking a number could
// produce a duplicate published version string.
func (c *VersionCalculator) Calculate(ctx context.Context, repo model.RepoRef, apiName, targetVersion string, targetStatus model.APIStatus) (string, error) {
	if targetStatus == model.StatusPublic {
		return targetVersion, nil
	}

	extensions, err := c.findExistingExtensions(ctx, repo, apiName, targetVersion, targetStatus)
	if err != nil {
		return "", err
	}

	sort.Ints(extensions)
	for i, ext := range extensions {
		if ext != i+1 {
			return "", goerr.New("corrupt version history: extensions are not a gap-free sequence",
				goerr.T(types.ErrTagValidation),
				goerr.V("api_name", apiName),
				goerr.V("target_version", targetVersion),
				goerr.V("target_status", string(targetStatus)),
				goerr.V("extensions", extensions),
			)
		}
	}

	return fmt.Sprintf("%s-%s.%d", targetVersion, targetStatus, len(extensions)+1), nil
}

// CalculateForPlan computes versions for every API declared in the plan
func (c *VersionCalculator) CalculateForPlan(ctx context.Context, repo model.RepoRef, plan *model.ReleasePlan) (map[string]string, error) {
	versions := make(map[string]string, len(plan.APIs))

	for _, api := range plan.APIs {
		if api.APIName == "" || api.TargetVersion == "" {
			continue
		}
		status := api.TargetStatus
		if status == "" {
			status = model.StatusPublic
		}
		version, err := c.Calculate(ctx, repo, api.APIName, api.TargetVersion, status)
		if err != nil {
			return nil, err
		}
		versions[api.APIName] = version
	}

	return versions, nil
}

// findExistingExtensions scans the metadata of every published release
// for versions of the same API, base version and status.
func (c *VersionCalculator) findExistingExtensions(ctx context.Context, repo model.RepoRef, apiName, targetVersion string, targetStatus model.APIStatus) ([]int, error) {
	releases, err := c.gh.ListReleases(ctx, repo, false)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list releases", goerr.T(types.ErrTagInfra))
	}

	var extensions []int
	for _, release := range releases {
		content, found, err := c.gh.GetFileContent(ctx, repo, types.ReleaseMetadataFile, release.TagName)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to read release metadata",
				goerr.T(types.ErrTagInfra), goerr.V("tag", release.TagName))
		}
		if !found {
			continue
		}

		md, perr := model.ParseReleaseMetadata(content)
		if perr != nil {
			ctxlog.From(ctx).Warn("unparsable release metadata in history",
				"tag", release.TagName, "error", perr)
			continue
		}

		for _, api := range md.APIs {
			if api.APIName != apiName {
				continue
			}
			if ext, ok := parseExtension(api.APIVersion, targetVersion, string(targetStatus)); ok {
				extensions = append(extensions, ext)
			}
		}
	}

	return extensions, nil
}

// parseExtension returns the extension number when the version matches
// the target base version and status exactly.
func parseExtension(version, targetVersion, targetStatus string) (int, bool) {
	m := versionPattern.FindStringSubmatch(version)
	if m == nil {
		return 0, false
	}
	base, status, ext := m[1], m[2], m[3]
	if status != targetStatus || base != targetVersion {
		return 0, false
	}
	n, err := strconv.Atoi(ext)
	if err != nil {
		return 0, false
	}
	return n, true
}
