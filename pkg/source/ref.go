package source

import (
	"fmt"
	"strings"
)

// ParseRef maps a user-provided reference to a Source. Paths ending in .tgz
// or .tar.gz produce a TarballSource, every other path a LocalSource.
// Registry and git references are rejected: packages are only read from the
// local machine.
func ParseRef(ref string) (Source, error) {
	if ref == "" {
		return nil, fmt.Errorf("empty package reference")
	}
	if isRemoteRef(ref) {
		return nil, fmt.Errorf("invalid ref %q: only local directories and tarballs can be validated", ref)
	}
	if isTarball(ref) {
		return &TarballSource{Path: ref}, nil
	}
	return &LocalSource{Path: ref}, nil
}

func isTarball(ref string) bool {
	return strings.HasSuffix(ref, ".tgz") || strings.HasSuffix(ref, ".tar.gz")
}

// isRemoteRef reports whether ref looks like a registry specifier or a URL.
func isRemoteRef(ref string) bool {
	for _, scheme := range []string{"npm:", "git+", "git:", "http://", "https://"} {
		if strings.HasPrefix(ref, scheme) {
			return true
		}
	}
	return false
}
