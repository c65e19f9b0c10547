package model

import (
	"fmt"

	"github.com/camaraproject/release-bot/pkg/domain/types"
	"gopkg.in/yaml.v3"
)

// ReleaseType is the declared intent of a release
type ReleaseType string

const (
	TypePreReleaseAlpha ReleaseType = "pre-release-alpha"
	TypePreReleaseRC    ReleaseType = "pre-release-rc"
	TypePublicRelease   ReleaseType = "public-release"
	TypeMaintenance     ReleaseType = "maintenance-release"
	TypeNone            ReleaseType = "none"
)

// Valid reports whether the release type is one of the declared values
func (t ReleaseType) Valid() bool {
	switch t {
	case TypePreReleaseAlpha, TypePreReleaseRC, TypePublicRelease, TypeMaintenance, TypeNone:
		return true
	}
	return false
}

// Short returns the display form used in titles and messages
func (t ReleaseType) Short() string {
	switch t {
	case TypePreReleaseAlpha:
		return "alpha"
	case TypePreReleaseRC:
		return "rc"
	case TypePublicRelease:
		return "public"
	case TypeMaintenance:
		return "maintenance"
	}
	return string(t)
}

// APIStatus is the target status of a single API in the plan
type APIStatus string

const (
	StatusAlpha  APIStatus = "alpha"
	StatusRC     APIStatus = "rc"
	StatusPublic APIStatus = "public"
)

// PlanAPI declares the target version and status for one API
type PlanAPI struct {
	APIName       string    `yaml:"api_name"`
	TargetVersion string    `yaml:"target_api_version"`
	TargetStatus  APIStatus `yaml:"target_api_status"`
}

// Dependencies holds declared dependency release tags
type Dependencies struct {
	CommonalitiesRelease string `yaml:"commonalities_release"`
	ICMRelease           string `yaml:"identity_consent_management_release"`
}

// PlanRepository is the repository section of release-plan.yaml
type PlanRepository struct {
	TargetReleaseTag  string      `yaml:"target_release_tag"`
	TargetReleaseType ReleaseType `yaml:"target_release_type"`
	MetaRelease       string      `yaml:"meta_release"`
}

// ReleasePlan is the declared release intent, read from
// release-plan.yaml on the trunk branch. Maintainer-owned; each read
// yields an immutable snapshot.
type ReleasePlan struct {
	Repository   PlanRepository `yaml:"repository"`
	APIs         []PlanAPI      `yaml:"apis"`
	Dependencies Dependencies   `yaml:"dependencies"`
}

// ParseReleasePlan parses and validates release-plan.yaml content.
// The three failure kinds (missing file is handled by the caller,
// malformed YAML, missing required field) map to distinct ConfigError
// kinds so each can be reported to the user separately.
func ParseReleasePlan(content []byte) (*ReleasePlan, *ConfigError) {
	var plan ReleasePlan
	if err := yaml.Unmarshal(content, &plan); err != nil {
		return nil, &ConfigError{
			Kind:     ConfigErrorMalformed,
			Message:  fmt.Sprintf("invalid YAML syntax in %s: %v", types.ReleasePlanFile, err),
			FilePath: types.ReleasePlanFile,
		}
	}

	if plan.Repository == (PlanRepository{}) {
		return nil, &ConfigError{
			Kind:      ConfigErrorMissingField,
			Message:   fmt.Sprintf("missing 'repository' section in %s", types.ReleasePlanFile),
			FilePath:  types.ReleasePlanFile,
			FieldPath: "repository",
		}
	}

	if plan.Repository.TargetReleaseTag == "" {
		return nil, &ConfigError{
			Kind:      ConfigErrorMissingField,
			Message:   fmt.Sprintf("missing 'target_release_tag' in %s repository section", types.ReleasePlanFile),
			FilePath:  types.ReleasePlanFile,
			FieldPath: "repository.target_release_tag",
		}
	}

	if plan.Repository.TargetReleaseType == "" {
		return nil, &ConfigError{
			Kind:      ConfigErrorMissingField,
			Message:   fmt.Sprintf("missing 'target_release_type' in %s repository section", types.ReleasePlanFile),
			FilePath:  types.ReleasePlanFile,
			FieldPath: "repository.target_release_type",
		}
	}

	if !plan.Repository.TargetReleaseType.Valid() {
		return nil, &ConfigError{
			Kind: ConfigErrorMissingField,
			Message: fmt.Sprintf("invalid 'target_release_type' value %q in %s",
				plan.Repository.TargetReleaseType, types.ReleasePlanFile),
			FilePath:  types.ReleasePlanFile,
			FieldPath: "repository.target_release_type",
		}
	}

	return &plan, nil
}
