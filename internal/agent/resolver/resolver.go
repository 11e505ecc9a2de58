// Package resolver parses image references and selects registry
// credentials for them, grounded on the registry host parsing and
// credential lookup the teacher repo used for its GHCR-alternative
// checker, generalized to a small per-host credential table.
package resolver

import "strings"

// Credential is a username/token pair for one registry host.
type Credential struct {
	Username string
	Token    string
}

// Resolver parses image references and attaches registry credentials.
type Resolver struct {
	credentials map[string]Credential // keyed by registry host, e.g. "ghcr.io"
}

// New builds a Resolver. Per spec §6 only the ghcr.io row is populated from
// configuration today; the table is keyed by host so additional registries
// can be added without changing callers.
func New(credentials map[string]Credential) *Resolver {
	if credentials == nil {
		credentials = map[string]Credential{}
	}
	return &Resolver{credentials: credentials}
}

// Parsed is a normalized image reference.
type Parsed struct {
	Repo string
	Tag  string
	Host string
}

// Ref returns the canonical "repo:tag" string.
func (p Parsed) Ref() string {
	return p.Repo + ":" + p.Tag
}

// Parse splits "repo[:tag]" into repo and tag (defaulting to "latest"), and
// derives the registry host for credential lookup.
func Parse(imageRef string) Parsed {
	repo, tag := imageRef, "latest"
	// A colon after the last slash is a tag separator; a colon before it is
	// part of a registry host:port (e.g. "registry:5000/img"), so only split
	// on the segment after the final slash. With no slash at all, any colon
	// separates the tag (e.g. "demo:latest").
	lastSlash := strings.LastIndex(imageRef, "/")
	tagSep := strings.LastIndex(imageRef, ":")
	if tagSep > lastSlash {
		repo = imageRef[:tagSep]
		tag = imageRef[tagSep+1:]
	}
	return Parsed{Repo: repo, Tag: tag, Host: registryHost(repo)}
}

// registryHost derives the registry hostname from a repo path, following
// the same rule the teacher used: a first path segment containing a dot or
// colon is a registry host; otherwise the image is a Docker Hub reference.
func registryHost(repo string) string {
	first := repo
	if i := strings.Index(repo, "/"); i >= 0 {
		first = repo[:i]
	} else {
		return "docker.io"
	}
	if strings.Contains(first, ".") || strings.Contains(first, ":") || first == "localhost" {
		return first
	}
	return "docker.io"
}

// CredentialFor returns the configured credential for an image reference's
// registry host, and whether one was found. Any host without an entry in
// the table resolves to no credential (anonymous pull); the agent's
// configuration fills only the ghcr.io entry.
func (r *Resolver) CredentialFor(imageRef string) (Credential, bool) {
	host := Parse(imageRef).Host
	cred, ok := r.credentials[host]
	return cred, ok
}
