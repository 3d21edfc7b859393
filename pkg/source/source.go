package source

import (
	"context"

	"github.com/agentpkg/snapcheck/pkg/snap"
)

// Source locates a snap package on the local machine and extracts the files
// the validation pipeline needs.
type Source interface {
	// Load reads the package. Files the manifest declares but the package
	// lacks are left absent for the pipeline to report.
	Load(ctx context.Context) (*Package, error)
}

type Package struct {
	Root      string                 // Directory or tarball the package was read from
	Integrity string                 // "sha256:<hex>" over the package content
	Files     *snap.UnvalidatedFiles // Candidate files for snap.ValidateNpmSnap
}
