package checker

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/agentpkg/snapcheck/pkg/manifest"
	"github.com/agentpkg/snapcheck/pkg/snap"
	"github.com/agentpkg/snapcheck/pkg/source"
	"github.com/sirupsen/logrus"
)

// maxFixAttempts bounds the validate-rewrite loop. Each fixable field needs
// at most one pass, and the shasum is recomputed on every pass.
const maxFixAttempts = 5

// Fix is one manifest field rewritten by the fixer.
type Fix struct {
	Field string
	From  string
	To    string
}

// FixManifest validates the package directory at dir and, while the only
// problem is a fixable cross-reference mismatch, rewrites snap.manifest.json
// from package.json and the package contents. It returns the fixes applied
// and the remaining validation error, if any.
func (c *Checker) FixManifest(ctx context.Context, dir string) ([]Fix, error) {
	log := c.logger().WithField("dir", dir)
	src := &source.LocalSource{Path: dir}
	opts := append([]snap.Option{snap.WithLogger(log)}, c.Options...)

	var fixes []Fix
	for range maxFixAttempts {
		pkg, err := src.Load(ctx)
		if err != nil {
			return fixes, err
		}

		_, verr := snap.ValidateNpmSnap(ctx, *pkg.Files, opts...)
		if verr == nil {
			return fixes, nil
		}

		var se *snap.Error
		if !errors.As(verr, &se) || !se.Fixable() {
			return fixes, verr
		}

		data, applied, err := rewriteManifest(ctx, pkg.Files, se)
		if err != nil {
			return fixes, fmt.Errorf("fixing %s: %w", manifest.FileName, err)
		}

		path := filepath.Join(pkg.Root, manifest.FileName)
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return fixes, fmt.Errorf("writing %s: %w", path, err)
		}

		for _, f := range applied {
			log.WithFields(logrus.Fields{"field": f.Field, "from": f.From, "to": f.To}).Info("manifest field fixed")
			c.Metrics.observeFix(f)
		}
		fixes = append(fixes, applied...)
	}

	return fixes, fmt.Errorf("%s is still invalid after %d fix attempts", manifest.FileName, maxFixAttempts)
}

// rewriteManifest applies the fix for failure, then recomputes the shasum
// over the resulting manifest and the rest of the package.
func rewriteManifest(ctx context.Context, files *snap.UnvalidatedFiles, failure *snap.Error) ([]byte, []Fix, error) {
	schema := manifest.Schema{}
	m, err := schema.ValidateManifest(files.Manifest.Value)
	if err != nil {
		return nil, nil, err
	}
	p, err := schema.ValidatePackageJSON(files.PackageJSON.Value)
	if err != nil {
		return nil, nil, err
	}

	var fixes []Fix
	switch failure.Reason {
	case snap.ReasonNameMismatch:
		fixes = append(fixes, Fix{Field: failure.Field, From: m.Source.Location.NPM.PackageName, To: p.Name})
		m.Source.Location.NPM.PackageName = p.Name
	case snap.ReasonVersionMismatch:
		fixes = append(fixes, Fix{Field: failure.Field, From: m.Version, To: p.Version})
		m.Version = p.Version
	case snap.ReasonRepositoryMismatch:
		fixes = append(fixes, Fix{Field: failure.Field, From: failure.Expected, To: failure.Actual})
		m.Repository = nil
		if p.Repository != nil {
			repo := *p.Repository
			m.Repository = &repo
		}
	}

	data, err := manifest.Encode(m)
	if err != nil {
		return nil, nil, err
	}

	updated := *files
	updated.Manifest = &snap.File{Path: files.Manifest.Path, Value: data}
	shasum, err := snap.ComputeShasum(ctx, updated)
	if err != nil {
		return nil, nil, err
	}
	if shasum != m.Source.Shasum {
		fixes = append(fixes, Fix{Field: "source.shasum", From: m.Source.Shasum, To: shasum})
		m.Source.Shasum = shasum
		if data, err = manifest.Encode(m); err != nil {
			return nil, nil, err
		}
	}

	return data, fixes, nil
}
