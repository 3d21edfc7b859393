package snap

import (
	"context"
	"fmt"

	"github.com/agentpkg/snapcheck/pkg/manifest"
)

// SourceCodeDisplayName is how the bundle is named in failure messages.
const SourceCodeDisplayName = "source code bundle"

type requiredFile struct {
	name string
	get  func(*UnvalidatedFiles) *File
}

// requiredFiles is checked in order; the first absent entry is reported.
var requiredFiles = []requiredFile{
	{manifest.FileName, func(f *UnvalidatedFiles) *File { return f.Manifest }},
	{manifest.PackageJSONFileName, func(f *UnvalidatedFiles) *File { return f.PackageJSON }},
	{SourceCodeDisplayName, func(f *UnvalidatedFiles) *File { return f.SourceCode }},
}

func checkCompleteness(_ context.Context, r *run) error {
	for _, req := range requiredFiles {
		if !req.get(&r.in).present() {
			return missingFile(StageCompleteness, req.name)
		}
	}

	groups := []struct {
		field string
		files []*File
	}{
		{"source.files", r.in.AuxiliaryFiles},
		{"source.locales", r.in.LocalizationFiles},
	}
	for _, g := range groups {
		for i, f := range g.files {
			if f == nil {
				return missingFile(StageCompleteness, fmt.Sprintf("%s.%d", g.field, i))
			}
		}
	}
	return nil
}
