package snap

import (
	"context"
	"fmt"

	"github.com/agentpkg/snapcheck/pkg/manifest"
)

// checkCrossReferences reconciles the manifest with package.json and with
// the files actually shipped. The manifest is authoritative: Expected on the
// returned error is the manifest's claim, Actual is what the package holds.
func checkCrossReferences(ctx context.Context, r *run) error {
	m, p := r.manifest, r.packageJSON
	npm := m.Source.Location.NPM

	if npm.PackageName != p.Name {
		return mismatch(ReasonNameMismatch, "source.location.npm.packageName", npm.PackageName, p.Name,
			`%q npm package name (%q) does not match the %q "name" field (%q).`,
			manifest.FileName, npm.PackageName, manifest.PackageJSONFileName, p.Name)
	}

	if m.Version != p.Version {
		return mismatch(ReasonVersionMismatch, "version", m.Version, p.Version,
			`%q npm package version (%q) does not match the %q "version" field (%q).`,
			manifest.FileName, m.Version, manifest.PackageJSONFileName, p.Version)
	}

	if (m.Repository != nil || p.Repository != nil) && !m.Repository.Equal(p.Repository) {
		return mismatch(ReasonRepositoryMismatch, "repository", repositoryString(m.Repository), repositoryString(p.Repository),
			`%q "repository" field does not match the %q "repository" field.`,
			manifest.FileName, manifest.PackageJSONFileName)
	}

	if err := checkSourcePath(npm, r.in.SourceCode); err != nil {
		return err
	}
	if err := checkIconPath(npm, r.in.SVGIcon); err != nil {
		return err
	}
	if err := checkDeclared("source.files", m.Source.Files, r.in.AuxiliaryFiles); err != nil {
		return err
	}
	if err := checkDeclared("source.locales", m.Source.Locales, r.in.LocalizationFiles); err != nil {
		return err
	}

	return checkShasum(ctx, r)
}

func checkSourcePath(npm manifest.NPMLocation, source *File) error {
	declared, actual := NormalizePath(npm.FilePath), NormalizePath(source.Path)
	if declared != actual {
		return mismatch(ReasonPathMismatch, "source.location.npm.filePath", declared, actual,
			`%q "source.location.npm.filePath" (%q) does not match the %s path (%q).`,
			manifest.FileName, npm.FilePath, SourceCodeDisplayName, source.Path)
	}
	return nil
}

func checkIconPath(npm manifest.NPMLocation, icon *File) error {
	if icon == nil {
		return nil
	}
	if npm.IconPath == "" {
		return mismatch(ReasonUndeclaredFile, "source.location.npm.iconPath", "", icon.Path,
			`File %q is not declared in %q "source.location.npm.iconPath".`,
			icon.Path, manifest.FileName)
	}
	declared, actual := NormalizePath(npm.IconPath), NormalizePath(icon.Path)
	if declared != actual {
		return mismatch(ReasonPathMismatch, "source.location.npm.iconPath", declared, actual,
			`%q "source.location.npm.iconPath" (%q) does not match the icon path (%q).`,
			manifest.FileName, npm.IconPath, icon.Path)
	}
	return nil
}

// checkDeclared requires the supplied files and the manifest's declared paths
// to name exactly the same set of files.
func checkDeclared(field string, declared []string, supplied []*File) error {
	have := make(map[string]bool, len(supplied))
	for _, f := range supplied {
		have[NormalizePath(f.Path)] = true
	}
	want := make(map[string]bool, len(declared))
	for _, d := range declared {
		want[NormalizePath(d)] = true
	}

	for _, d := range declared {
		if !have[NormalizePath(d)] {
			return mismatch(ReasonMissingDeclaredFile, field, d, "",
				`Missing file %q declared in %q %q.`, d, manifest.FileName, field)
		}
	}
	for _, f := range supplied {
		if !want[NormalizePath(f.Path)] {
			return mismatch(ReasonUndeclaredFile, field, "", f.Path,
				`File %q is not declared in %q %q.`, f.Path, manifest.FileName, field)
		}
	}
	return nil
}

func checkShasum(ctx context.Context, r *run) error {
	computed, err := ComputeShasum(ctx, r.in)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return cancelled(StageCrossReference, ctxErr)
		}
		return &Error{
			Kind:  ErrCrossReference,
			Stage: StageCrossReference,
			Field: "source.shasum",
			Msg:   fmt.Sprintf("Unable to compute the package shasum: %v.", err),
			Err:   err,
		}
	}

	declared := r.manifest.Source.Shasum
	if computed != declared {
		return mismatch(ReasonShasumMismatch, "source.shasum", declared, computed,
			`%q "shasum" field does not match computed shasum.`, manifest.FileName)
	}
	return nil
}

func repositoryString(r *manifest.Repository) string {
	if r == nil {
		return ""
	}
	return r.Type + "+" + r.URL
}
