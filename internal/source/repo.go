package source

import (
	"regexp"
	"strings"
)

// RepoRef names a GitHub repository.
type RepoRef struct {
	Owner string
	Repo  string
}

// String returns "owner/repo".
func (r RepoRef) String() string {
	return r.Owner + "/" + r.Repo
}

var repoLinkPattern = regexp.MustCompile(`github\.com[/:]([A-Za-z0-9](?:[A-Za-z0-9-]*[A-Za-z0-9])?)/([A-Za-z0-9._-]+)`)

// ExtractRepoRef returns the first github.com/<owner>/<repo> reference in
// text. A trailing ".git" is dropped from the repository name.
func ExtractRepoRef(text string) (RepoRef, bool) {
	for _, m := range repoLinkPattern.FindAllStringSubmatch(text, -1) {
		repo := strings.TrimSuffix(m[2], ".git")
		repo = strings.TrimRight(repo, ".")
		if repo == "" {
			continue
		}
		return RepoRef{Owner: m[1], Repo: repo}, true
	}
	return RepoRef{}, false
}

// ParseRepoRef accepts "owner/repo" or any text containing a GitHub link.
func ParseRepoRef(s string) (RepoRef, bool) {
	if ref, ok := ExtractRepoRef(s); ok {
		return ref, true
	}
	owner, repo, ok := strings.Cut(strings.TrimSpace(s), "/")
	if !ok || owner == "" || repo == "" || strings.Contains(repo, "/") {
		return RepoRef{}, false
	}
	return RepoRef{Owner: owner, Repo: strings.TrimSuffix(repo, ".git")}, true
}
