package model

// Branch is a lightweight view of a repository branch
type Branch struct {
	Name string
	SHA  string
}

// Release is a lightweight view of a platform release object
type Release struct {
	ID         int64
	TagName    string
	Name       string
	Draft      bool
	Prerelease bool
	HTMLURL    string
}
