package github

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// ErrInvalidReference is returned when a release's download_url does not
// name a host/owner/repo repository.
var ErrInvalidReference = errors.New("invalid repository reference")

// RepoRef identifies a repository at an artifact host.
type RepoRef struct {
	Host  string
	Owner string
	Repo  string
}

// ParseRepoRef parses a repository reference of the shape host/owner/repo,
// with or without a scheme. Trailing slashes are tolerated.
func ParseRepoRef(ref string) (RepoRef, error) {
	trimmed := strings.TrimRight(strings.TrimSpace(ref), "/")
	if trimmed == "" {
		return RepoRef{}, fmt.Errorf("%w: empty", ErrInvalidReference)
	}

	host := ""
	path := trimmed
	if strings.Contains(trimmed, "://") {
		u, err := url.Parse(trimmed)
		if err != nil || u.Host == "" {
			return RepoRef{}, fmt.Errorf("%w: %q", ErrInvalidReference, ref)
		}
		host = u.Host
		path = strings.Trim(u.Path, "/")
	}

	parts := strings.Split(path, "/")
	if host == "" {
		if len(parts) != 3 {
			return RepoRef{}, fmt.Errorf("%w: %q", ErrInvalidReference, ref)
		}
		host, parts = parts[0], parts[1:]
	}
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return RepoRef{}, fmt.Errorf("%w: %q", ErrInvalidReference, ref)
	}

	return RepoRef{Host: host, Owner: parts[0], Repo: parts[1]}, nil
}
