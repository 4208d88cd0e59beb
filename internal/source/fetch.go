// Package source resolves the raw text of the document a session plays.
package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
)

// ErrNotFound is returned when a ref has no document.
var ErrNotFound = errors.New("document not found")

// DefaultRefs are tried in order by FetchWithFallback when no refs are given.
var DefaultRefs = []string{"main", "master"}

// DefaultRawBase is the host serving raw repository files.
const DefaultRawBase = "https://raw.githubusercontent.com"

// DefaultMaxBytes bounds a fetched document.
const DefaultMaxBytes = 8 << 20

// ErrTooLarge is returned when a document exceeds the fetcher's size limit.
var ErrTooLarge = errors.New("document too large")

// TextFetcher resolves the document text for a repository at ref.
type TextFetcher interface {
	Fetch(ctx context.Context, owner, repo, ref string) (string, error)
}

// GitHubFetcher reads README.md from a repository's raw content host.
type GitHubFetcher struct {
	Client  *http.Client
	BaseURL string
	Path    string
	Logger  *slog.Logger
	// MaxBytes caps the document size; 0 means DefaultMaxBytes.
	MaxBytes int64
}

// NewGitHubFetcher creates a fetcher using client (nil uses NewHTTPClient("")).
func NewGitHubFetcher(client *http.Client) *GitHubFetcher {
	return &GitHubFetcher{Client: client}
}

// Fetch implements TextFetcher.
func (f *GitHubFetcher) Fetch(ctx context.Context, owner, repo, ref string) (string, error) {
	client := f.Client
	if client == nil {
		var err error
		if client, err = NewHTTPClient(""); err != nil {
			return "", err
		}
	}
	base := f.BaseURL
	if base == "" {
		base = DefaultRawBase
	}
	path := f.Path
	if path == "" {
		path = "README.md"
	}
	logger := f.Logger
	if logger == nil {
		logger = slog.Default()
	}

	u, err := url.JoinPath(base, owner, repo, ref, path)
	if err != nil {
		return "", fmt.Errorf("build url: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}

	logger.Debug("fetching document", "url", u)
	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch %s: %w", u, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return "", fmt.Errorf("%s/%s@%s: %w", owner, repo, ref, ErrNotFound)
	case resp.StatusCode != http.StatusOK:
		return "", fmt.Errorf("fetch %s: unexpected status %s", u, resp.Status)
	}

	limit := f.MaxBytes
	if limit <= 0 {
		limit = DefaultMaxBytes
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, limit+1))
	if err != nil {
		return "", fmt.Errorf("read %s: %w", u, err)
	}
	if int64(len(body)) > limit {
		return "", fmt.Errorf("%s: over %d bytes: %w", u, limit, ErrTooLarge)
	}
	return string(body), nil
}

// FileFetcher reads a local file and ignores owner, repo and ref.
type FileFetcher struct {
	Path string
}

// Fetch implements TextFetcher.
func (f FileFetcher) Fetch(ctx context.Context, _, _, _ string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	data, err := os.ReadFile(f.Path)
	if errors.Is(err, os.ErrNotExist) {
		return "", fmt.Errorf("%s: %w", f.Path, ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("read %s: %w", f.Path, err)
	}
	return string(data), nil
}

// FetchWithFallback tries each ref in order and returns the first document
// found along with its ref. Only ErrNotFound moves on to the next ref; any
// other error is returned immediately.
func FetchWithFallback(ctx context.Context, f TextFetcher, owner, repo string, refs ...string) (text, ref string, err error) {
	if len(refs) == 0 {
		refs = DefaultRefs
	}
	for _, ref = range refs {
		text, err = f.Fetch(ctx, owner, repo, ref)
		if err == nil {
			return text, ref, nil
		}
		if !errors.Is(err, ErrNotFound) {
			return "", "", err
		}
		slog.Debug("ref not found, trying next", "owner", owner, "repo", repo, "ref", ref)
	}
	return "", "", fmt.Errorf("%s/%s: no document on refs %v: %w", owner, repo, refs, ErrNotFound)
}
