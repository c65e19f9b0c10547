package model

import (
	"gopkg.in/yaml.v3"
)

// APIMetadata records the calculated version of one API in a release
type APIMetadata struct {
	APIName    string `yaml:"api_name"`
	APIVersion string `yaml:"api_version"`
	APITitle   string `yaml:"api_title"`
}

// MetadataRepository is the repository section of release-metadata.yaml.
// ReleaseDate serializes as null until publication; it is the only
// field mutated after snapshot creation, exactly once.
type MetadataRepository struct {
	RepositoryName string      `yaml:"repository_name"`
	ReleaseTag     string      `yaml:"release_tag"`
	ReleaseType    ReleaseType `yaml:"release_type"`
	ReleaseDate    *string     `yaml:"release_date"`
	SrcCommitSHA   string      `yaml:"src_commit_sha"`
	ReleaseNotes   string      `yaml:"release_notes,omitempty"`
}

// ReleaseMetadata is the generated facts document persisted on the
// snapshot branch and, after publication, reachable via the release tag.
type ReleaseMetadata struct {
	Repository   MetadataRepository `yaml:"repository"`
	APIs         []APIMetadata      `yaml:"apis"`
	Dependencies *Dependencies      `yaml:"dependencies,omitempty"`
}

// ParseReleaseMetadata parses release-metadata.yaml content
func ParseReleaseMetadata(content []byte) (*ReleaseMetadata, error) {
	var md ReleaseMetadata
	if err := yaml.Unmarshal(content, &md); err != nil {
		return nil, err
	}
	return &md, nil
}

// Marshal serializes the metadata for committing to a branch
func (m *ReleaseMetadata) Marshal() ([]byte, error) {
	return yaml.Marshal(m)
}

// BuildReleaseMetadata assembles the generated metadata document at
// snapshot creation time from the plan, the calculated versions and the
// source commit. ReleaseDate stays null until publication.
func BuildReleaseMetadata(repo RepoRef, plan *ReleasePlan, versions map[string]string, titles map[string]string, srcCommitSHA string) *ReleaseMetadata {
	md := &ReleaseMetadata{
		Repository: MetadataRepository{
			RepositoryName: repo.Name,
			ReleaseTag:     plan.Repository.TargetReleaseTag,
			ReleaseType:    plan.Repository.TargetReleaseType,
			SrcCommitSHA:   srcCommitSHA,
		},
	}

	for _, api := range plan.APIs {
		version, ok := versions[api.APIName]
		if !ok {
			continue
		}
		md.APIs = append(md.APIs, APIMetadata{
			APIName:    api.APIName,
			APIVersion: version,
			APITitle:   titles[api.APIName],
		})
	}

	if plan.Dependencies != (Dependencies{}) {
		deps := plan.Dependencies
		md.Dependencies = &deps
	}

	return md
}
