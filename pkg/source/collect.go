package source

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"strings"

	"github.com/agentpkg/snapcheck/pkg/manifest"
	"github.com/agentpkg/snapcheck/pkg/snap"
)

// readFunc returns the contents of the slash-separated path rel, relative to
// the package root. Missing files are reported with an error matching
// fs.ErrNotExist.
type readFunc func(rel string) ([]byte, error)

// collect gathers the manifest, package.json and every file the manifest
// declares. The manifest is decoded leniently: a malformed manifest still
// yields whatever paths could be read, and the schema stage reports the rest.
func collect(ctx context.Context, read readFunc) (*snap.UnvalidatedFiles, error) {
	files := &snap.UnvalidatedFiles{}

	var err error
	if files.Manifest, err = readOptional(read, manifest.FileName); err != nil {
		return nil, err
	}
	if files.PackageJSON, err = readOptional(read, manifest.PackageJSONFileName); err != nil {
		return nil, err
	}
	if files.Manifest == nil {
		return files, nil
	}

	var m manifest.Manifest
	_ = json.Unmarshal(files.Manifest.Value, &m)
	npm := m.Source.Location.NPM

	if npm.FilePath != "" {
		if files.SourceCode, err = readDeclared(ctx, read, "source.location.npm.filePath", npm.FilePath); err != nil {
			return nil, err
		}
	}
	if npm.IconPath != "" {
		if files.SVGIcon, err = readDeclared(ctx, read, "source.location.npm.iconPath", npm.IconPath); err != nil {
			return nil, err
		}
	}
	if files.AuxiliaryFiles, err = readAll(ctx, read, "source.files", m.Source.Files); err != nil {
		return nil, err
	}
	if files.LocalizationFiles, err = readAll(ctx, read, "source.locales", m.Source.Locales); err != nil {
		return nil, err
	}

	return files, nil
}

func readAll(ctx context.Context, read readFunc, field string, declared []string) ([]*snap.File, error) {
	var out []*snap.File
	seen := map[string]bool{}
	for _, p := range declared {
		if seen[snap.NormalizePath(p)] {
			continue
		}
		seen[snap.NormalizePath(p)] = true

		f, err := readDeclared(ctx, read, field, p)
		if err != nil {
			return nil, err
		}
		if f != nil {
			out = append(out, f)
		}
	}
	return out, nil
}

func readDeclared(ctx context.Context, read readFunc, field, declared string) (*snap.File, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !insideRoot(declared) {
		return nil, fmt.Errorf("%q %q declares %q, which is outside the package root", manifest.FileName, field, declared)
	}
	return readOptional(read, snap.NormalizePath(declared))
}

func readOptional(read readFunc, rel string) (*snap.File, error) {
	data, err := read(rel)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", rel, err)
	}
	return &snap.File{Path: rel, Value: data}, nil
}

// insideRoot reports whether the slash-separated rel stays within the
// package root once cleaned.
func insideRoot(rel string) bool {
	if rel == "" || strings.HasPrefix(rel, "/") || strings.Contains(rel, "\\") {
		return false
	}
	clean := path.Clean(rel)
	return clean != ".." && !strings.HasPrefix(clean, "../")
}
