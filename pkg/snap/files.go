package snap

import (
	"path"
	"strings"

	"github.com/agentpkg/snapcheck/pkg/manifest"
)

// File is a raw file taken from a package. Path is relative to the package
// root.
type File struct {
	Path  string
	Value []byte
}

func (f *File) present() bool {
	return f != nil && len(f.Value) > 0
}

func (f *File) clone() File {
	return File{Path: f.Path, Value: append([]byte(nil), f.Value...)}
}

func (f *File) String() string {
	return string(f.Value)
}

// VirtualFile is a file together with its validated, parsed contents.
type VirtualFile[T any] struct {
	File
	Result T
}

// UnvalidatedFiles is the untrusted file set extracted from a package. Every
// slot may be absent; the pipeline decides which absences are fatal.
type UnvalidatedFiles struct {
	Manifest          *File
	PackageJSON       *File
	SourceCode        *File
	SVGIcon           *File
	AuxiliaryFiles    []*File
	LocalizationFiles []*File
}

// Files is a package that passed every validation stage. Only a *Files
// returned by ValidateNpmSnap is accepted; the zero value holds nothing and
// was never validated. Accessors return copies, so an accepted package cannot
// be changed through them.
type Files struct {
	manifest          VirtualFile[*manifest.Manifest]
	packageJSON       VirtualFile[*manifest.PackageJSON]
	sourceCode        File
	svgIcon           *File
	auxiliaryFiles    []File
	localizationFiles []VirtualFile[*manifest.LocalizationFile]
}

func (f *Files) Manifest() VirtualFile[*manifest.Manifest] {
	return VirtualFile[*manifest.Manifest]{File: f.manifest.clone(), Result: f.manifest.Result.Clone()}
}

func (f *Files) PackageJSON() VirtualFile[*manifest.PackageJSON] {
	return VirtualFile[*manifest.PackageJSON]{File: f.packageJSON.clone(), Result: f.packageJSON.Result.Clone()}
}

func (f *Files) SourceCode() File { return f.sourceCode.clone() }

// SVGIcon returns the package icon and whether the package ships one.
func (f *Files) SVGIcon() (File, bool) {
	if f.svgIcon == nil {
		return File{}, false
	}
	return f.svgIcon.clone(), true
}

func (f *Files) AuxiliaryFiles() []File {
	var out []File
	for i := range f.auxiliaryFiles {
		out = append(out, f.auxiliaryFiles[i].clone())
	}
	return out
}

func (f *Files) LocalizationFiles() []VirtualFile[*manifest.LocalizationFile] {
	var out []VirtualFile[*manifest.LocalizationFile]
	for _, l := range f.localizationFiles {
		out = append(out, VirtualFile[*manifest.LocalizationFile]{File: l.clone(), Result: l.Result.Clone()})
	}
	return out
}

// NormalizePath makes declared and supplied paths comparable: "./a/b.js",
// "a//b.js" and "a/b.js" are the same file.
func NormalizePath(p string) string {
	return path.Clean(strings.TrimPrefix(p, "./"))
}
