package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/roach88/readmeplay/internal/config"
	"github.com/roach88/readmeplay/internal/source"
)

// document is a resolved document argument.
type document struct {
	Name    string
	Owner   string
	Repo    string
	Local   bool
	Fetcher source.TextFetcher
	Probe   source.Probe
}

// resolveDocument accepts a local path, "owner/repo" or any text holding a
// GitHub link. Existing files win over repository names.
func resolveDocument(arg string, forceFile bool, cfg config.Config) (document, error) {
	if forceFile || isFile(arg) {
		f := source.FileFetcher{Path: arg}
		return document{Name: arg, Local: true, Fetcher: f, Probe: source.FileProbe(f)}, nil
	}

	ref, ok := source.ParseRepoRef(arg)
	if !ok {
		return document{}, NewExitError(ExitCommandError,
			fmt.Sprintf("%q is neither a file nor a GitHub repository", arg))
	}

	client, err := source.NewHTTPClient(cfg.Proxy)
	if err != nil {
		return document{}, WrapExitError(ExitCommandError, "failed to build HTTP client", err)
	}
	return document{
		Name:    ref.String(),
		Owner:   ref.Owner,
		Repo:    ref.Repo,
		Fetcher: source.NewGitHubFetcher(client),
	}, nil
}

// fetch returns the document text and the ref it came from.
func (d document) fetch(ctx context.Context, refs []string) (string, string, error) {
	text, ref, err := source.FetchWithFallback(ctx, d.Fetcher, d.Owner, d.Repo, refs...)
	if err != nil {
		return "", "", WrapExitError(ExitCommandError, "failed to fetch document", err)
	}
	if d.Local {
		ref = ""
	}
	return text, ref, nil
}

func isFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
