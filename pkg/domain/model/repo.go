package model

import "fmt"

// RepoRef identifies a repository on the hosting platform
type RepoRef struct {
	Owner string
	Name  string
}

// FullName returns the "owner/name" form used in logs and queue keys
func (r RepoRef) FullName() string {
	return r.Owner + "/" + r.Name
}

// BranchURL returns the web URL of a branch tree
func (r RepoRef) BranchURL(branch string) string {
	return fmt.Sprintf("https://github.com/%s/%s/tree/%s", r.Owner, r.Name, branch)
}

// TagURL returns the web URL of a tag
func (r RepoRef) TagURL(tag string) string {
	return fmt.Sprintf("https://github.com/%s/%s/releases/tag/%s", r.Owner, r.Name, tag)
}

// PullURL returns the web URL of a pull request
func (r RepoRef) PullURL(number int) string {
	return fmt.Sprintf("https://github.com/%s/%s/pull/%d", r.Owner, r.Name, number)
}

// FileURL returns the web URL of a file on a ref
func (r RepoRef) FileURL(ref, path string) string {
	return fmt.Sprintf("https://github.com/%s/%s/blob/%s/%s", r.Owner, r.Name, ref, path)
}
