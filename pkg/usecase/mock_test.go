package usecase_test

import (
	"context"
	"fmt"
	"sync"

	"github.com/camaraproject/release-bot/pkg/domain/model"
)

// fakeGitHub is an in-memory GitHubClient. It models just enough of
// the platform for scenario tests: refs carry file trees, publishing a
// draft creates its tag, and permissions are a lookup table.
type fakeGitHub struct {
	mu sync.Mutex

	branches    map[string]string            // branch name -> head SHA
	tags        map[string]string            // tag name -> SHA
	filesByRef  map[string]map[string][]byte // ref -> path -> content
	releases    []model.Release
	commitishes map[int64]string // release ID -> target commitish
	nextRelease int64

	issues    map[int]*model.TrackingIssue
	nextIssue int
	comments  map[int][]string

	prs    map[string]int // head branch -> PR number
	nextPR int

	permissions map[string]model.PermissionTier
	labels      map[string]model.Label

	failures map[string]error // method name -> injected error
}

func newFakeGitHub() *fakeGitHub {
	return &fakeGitHub{
		branches:    map[string]string{},
		tags:        map[string]string{},
		filesByRef:  map[string]map[string][]byte{},
		commitishes: map[int64]string{},
		issues:      map[int]*model.TrackingIssue{},
		comments:    map[int][]string{},
		prs:         map[string]int{},
		permissions: map[string]model.PermissionTier{},
		labels:      map[string]model.Label{},
		failures:    map[string]error{},
	}
}

func (f *fakeGitHub) setBranch(name, sha string) {
	f.branches[name] = sha
	if f.filesByRef[name] == nil {
		f.filesByRef[name] = map[string][]byte{}
	}
}

func (f *fakeGitHub) setFile(ref, path string, content []byte) {
	if f.filesByRef[ref] == nil {
		f.filesByRef[ref] = map[string][]byte{}
	}
	f.filesByRef[ref][path] = content
}

func (f *fakeGitHub) fail(method string) error {
	return f.failures[method]
}

func (f *fakeGitHub) TagExists(ctx context.Context, repo model.RepoRef, tag string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail("TagExists"); err != nil {
		return false, err
	}
	_, ok := f.tags[tag]
	return ok, nil
}

func (f *fakeGitHub) ListBranches(ctx context.Context, repo model.RepoRef, prefix string) ([]model.Branch, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail("ListBranches"); err != nil {
		return nil, err
	}
	var out []model.Branch
	for name, sha := range f.branches {
		if len(name) >= len(prefix) && name[:len(prefix)] == prefix {
			out = append(out, model.Branch{Name: name, SHA: sha})
		}
	}
	return out, nil
}

func (f *fakeGitHub) GetBranchHeadSHA(ctx context.Context, repo model.RepoRef, branch string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail("GetBranchHeadSHA"); err != nil {
		return "", err
	}
	sha, ok := f.branches[branch]
	if !ok {
		return "", fmt.Errorf("branch %s not found", branch)
	}
	return sha, nil
}

func (f *fakeGitHub) GetFileContent(ctx context.Context, repo model.RepoRef, path, ref string) ([]byte, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail("GetFileContent"); err != nil {
		return nil, false, err
	}
	files, ok := f.filesByRef[ref]
	if !ok {
		return nil, false, nil
	}
	content, ok := files[path]
	if !ok {
		return nil, false, nil
	}
	return content, true, nil
}

func (f *fakeGitHub) ListReleases(ctx context.Context, repo model.RepoRef, includeDrafts bool) ([]model.Release, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail("ListReleases"); err != nil {
		return nil, err
	}
	var out []model.Release
	for _, r := range f.releases {
		if r.Draft && !includeDrafts {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

func (f *fakeGitHub) GetDraftRelease(ctx context.Context, repo model.RepoRef, tag string) (*model.Release, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail("GetDraftRelease"); err != nil {
		return nil, err
	}
	for i := range f.releases {
		if f.releases[i].Draft && f.releases[i].TagName == tag {
			r := f.releases[i]
			return &r, nil
		}
	}
	return nil, nil
}

func (f *fakeGitHub) FindPullRequestForBranch(ctx context.Context, repo model.RepoRef, head string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.prs[head], nil
}

func (f *fakeGitHub) GetPermissionTier(ctx context.Context, repo model.RepoRef, user string) (model.PermissionTier, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail("GetPermissionTier"); err != nil {
		return model.TierNone, err
	}
	return f.permissions[user], nil
}

func (f *fakeGitHub) CreateBranch(ctx context.Context, repo model.RepoRef, name, sha string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail("CreateBranch"); err != nil {
		return err
	}
	if _, exists := f.branches[name]; exists {
		return fmt.Errorf("branch %s already exists", name)
	}
	f.branches[name] = sha

	// Copy the file tree of whatever ref the SHA points at
	files := map[string][]byte{}
	for ref, refSHA := range f.branches {
		if refSHA == sha && ref != name {
			for p, c := range f.filesByRef[ref] {
				files[p] = c
			}
		}
	}
	f.filesByRef[name] = files
	return nil
}

func (f *fakeGitHub) DeleteBranch(ctx context.Context, repo model.RepoRef, name string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail("DeleteBranch"); err != nil {
		return false, err
	}
	if _, ok := f.branches[name]; !ok {
		return false, nil
	}
	delete(f.branches, name)
	delete(f.filesByRef, name)
	return true, nil
}

func (f *fakeGitHub) RenameBranch(ctx context.Context, repo model.RepoRef, oldName, newName string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail("RenameBranch"); err != nil {
		return err
	}
	sha, ok := f.branches[oldName]
	if !ok {
		return fmt.Errorf("branch %s not found", oldName)
	}
	delete(f.branches, oldName)
	f.branches[newName] = sha
	f.filesByRef[newName] = f.filesByRef[oldName]
	delete(f.filesByRef, oldName)
	return nil
}

func (f *fakeGitHub) CreateTag(ctx context.Context, repo model.RepoRef, tag, sha string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail("CreateTag"); err != nil {
		return err
	}
	if _, exists := f.tags[tag]; exists {
		return fmt.Errorf("tag %s already exists", tag)
	}
	f.tags[tag] = sha
	return nil
}

func (f *fakeGitHub) PutFile(ctx context.Context, repo model.RepoRef, path, branch, message string, content []byte) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail("PutFile"); err != nil {
		return "", err
	}
	if _, ok := f.branches[branch]; !ok {
		return "", fmt.Errorf("branch %s not found", branch)
	}
	f.setFile(branch, path, content)
	return "commit-" + path, nil
}

func (f *fakeGitHub) DeleteFile(ctx context.Context, repo model.RepoRef, path, branch, message string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail("DeleteFile"); err != nil {
		return err
	}
	if files, ok := f.filesByRef[branch]; ok {
		delete(files, path)
	}
	return nil
}

func (f *fakeGitHub) CreatePullRequest(ctx context.Context, repo model.RepoRef, title, body, head, base string) (int, string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail("CreatePullRequest"); err != nil {
		return 0, "", err
	}
	f.nextPR++
	f.prs[head] = f.nextPR
	return f.nextPR, fmt.Sprintf("https://github.com/%s/pull/%d", repo.FullName(), f.nextPR), nil
}

func (f *fakeGitHub) PublishRelease(ctx context.Context, repo model.RepoRef, releaseID int64) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail("PublishRelease"); err != nil {
		return "", err
	}
	for i := range f.releases {
		if f.releases[i].ID != releaseID {
			continue
		}
		f.releases[i].Draft = false

		// Publishing creates the release tag from the target commitish
		tag := f.releases[i].TagName
		commitish := f.commitishes[releaseID]
		f.tags[tag] = f.branches[commitish]
		files := map[string][]byte{}
		for p, c := range f.filesByRef[commitish] {
			files[p] = c
		}
		f.filesByRef[tag] = files

		return f.releases[i].HTMLURL, nil
	}
	return "", fmt.Errorf("release %d not found", releaseID)
}

func (f *fakeGitHub) MarkReleaseLatest(ctx context.Context, repo model.RepoRef, releaseID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fail("MarkReleaseLatest")
}

func (f *fakeGitHub) DeleteRelease(ctx context.Context, repo model.RepoRef, releaseID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail("DeleteRelease"); err != nil {
		return err
	}
	for i := range f.releases {
		if f.releases[i].ID == releaseID {
			f.releases = append(f.releases[:i], f.releases[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("release %d not found", releaseID)
}

func (f *fakeGitHub) CreateDraftRelease(ctx context.Context, repo model.RepoRef, tag, name, body, commitish string, prerelease bool) (*model.Release, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail("CreateDraftRelease"); err != nil {
		return nil, err
	}
	f.nextRelease++
	release := model.Release{
		ID:         f.nextRelease,
		TagName:    tag,
		Name:       name,
		Draft:      true,
		Prerelease: prerelease,
		HTMLURL:    fmt.Sprintf("https://github.com/%s/releases/tag/%s", repo.FullName(), tag),
	}
	f.releases = append(f.releases, release)
	f.commitishes[release.ID] = commitish
	return &release, nil
}

func (f *fakeGitHub) ListOpenIssues(ctx context.Context, repo model.RepoRef, label string) ([]model.TrackingIssue, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail("ListOpenIssues"); err != nil {
		return nil, err
	}
	var out []model.TrackingIssue
	for _, issue := range f.issues {
		if !issue.Open {
			continue
		}
		for _, l := range issue.Labels {
			if l == label {
				out = append(out, *issue)
				break
			}
		}
	}
	return out, nil
}

func (f *fakeGitHub) GetIssue(ctx context.Context, repo model.RepoRef, number int) (*model.TrackingIssue, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	issue, ok := f.issues[number]
	if !ok {
		return nil, fmt.Errorf("issue %d not found", number)
	}
	copied := *issue
	return &copied, nil
}

func (f *fakeGitHub) CreateIssue(ctx context.Context, repo model.RepoRef, title, body string, labels []string) (*model.TrackingIssue, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail("CreateIssue"); err != nil {
		return nil, err
	}
	f.nextIssue++
	issue := &model.TrackingIssue{
		Number: f.nextIssue,
		Title:  title,
		Body:   body,
		Labels: append([]string{}, labels...),
		Open:   true,
	}
	f.issues[issue.Number] = issue
	copied := *issue
	return &copied, nil
}

func (f *fakeGitHub) UpdateIssue(ctx context.Context, repo model.RepoRef, number int, title, body *string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	issue, ok := f.issues[number]
	if !ok {
		return fmt.Errorf("issue %d not found", number)
	}
	if title != nil {
		issue.Title = *title
	}
	if body != nil {
		issue.Body = *body
	}
	return nil
}

func (f *fakeGitHub) CloseIssue(ctx context.Context, repo model.RepoRef, number int, reason string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	issue, ok := f.issues[number]
	if !ok {
		return fmt.Errorf("issue %d not found", number)
	}
	issue.Open = false
	return nil
}

func (f *fakeGitHub) ReopenIssue(ctx context.Context, repo model.RepoRef, number int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	issue, ok := f.issues[number]
	if !ok {
		return fmt.Errorf("issue %d not found", number)
	}
	issue.Open = true
	return nil
}

func (f *fakeGitHub) AddLabels(ctx context.Context, repo model.RepoRef, number int, labels []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	issue, ok := f.issues[number]
	if !ok {
		return fmt.Errorf("issue %d not found", number)
	}
	for _, add := range labels {
		exists := false
		for _, l := range issue.Labels {
			if l == add {
				exists = true
			}
		}
		if !exists {
			issue.Labels = append(issue.Labels, add)
		}
	}
	return nil
}

func (f *fakeGitHub) RemoveLabel(ctx context.Context, repo model.RepoRef, number int, label string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	issue, ok := f.issues[number]
	if !ok {
		return fmt.Errorf("issue %d not found", number)
	}
	for i, l := range issue.Labels {
		if l == label {
			issue.Labels = append(issue.Labels[:i], issue.Labels[i+1:]...)
			return nil
		}
	}
	return nil
}

func (f *fakeGitHub) EnsureLabel(ctx context.Context, repo model.RepoRef, label model.Label) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.labels[label.Name]; ok {
		return false, nil
	}
	f.labels[label.Name] = label
	return true, nil
}

func (f *fakeGitHub) CreateComment(ctx context.Context, repo model.RepoRef, number int, body string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail("CreateComment"); err != nil {
		return err
	}
	f.comments[number] = append(f.comments[number], body)
	return nil
}

func (f *fakeGitHub) lastComment(number int) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	comments := f.comments[number]
	if len(comments) == 0 {
		return ""
	}
	return comments[len(comments)-1]
}
