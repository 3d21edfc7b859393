package source

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// tarballPrefix is the directory npm pack places package content under.
const tarballPrefix = "package/"

// maxTarballEntrySize bounds a single extracted file.
const maxTarballEntrySize = 64 << 20

// TarballSource is a gzipped package tarball as produced by npm pack. It is
// read in memory and never extracted to disk.
type TarballSource struct {
	Path string
}

var _ Source = &TarballSource{}

func (t *TarballSource) Load(ctx context.Context) (*Package, error) {
	absPath, err := filepath.Abs(t.Path)
	if err != nil {
		return nil, fmt.Errorf("resolving absolute path for %q: %w", t.Path, err)
	}

	data, err := os.ReadFile(absPath)
	if err != nil {
		return nil, fmt.Errorf("reading tarball %s: %w", absPath, err)
	}

	entries, err := untar(ctx, data)
	if err != nil {
		return nil, fmt.Errorf("reading tarball %s: %w", absPath, err)
	}

	files, err := collect(ctx, func(rel string) ([]byte, error) {
		b, ok := entries[rel]
		if !ok {
			return nil, fs.ErrNotExist
		}
		return b, nil
	})
	if err != nil {
		return nil, err
	}

	sum := sha256.Sum256(data)
	return &Package{
		Root:      absPath,
		Integrity: hashPrefix + hex.EncodeToString(sum[:]),
		Files:     files,
	}, nil
}

const hashPrefix = "sha256:"

// untar returns the regular files under the npm package prefix, keyed by
// their cleaned path relative to it.
func untar(ctx context.Context, data []byte) (map[string][]byte, error) {
	gz, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer gz.Close()

	entries := map[string][]byte{}
	tr := tar.NewReader(gz)
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		if hdr.Typeflag != tar.TypeReg {
			continue
		}

		name := strings.TrimPrefix(hdr.Name, "./")
		if !strings.HasPrefix(name, tarballPrefix) {
			continue
		}
		rel := path.Clean(strings.TrimPrefix(name, tarballPrefix))
		if !insideRoot(rel) {
			return nil, fmt.Errorf("entry %q is outside the package root", hdr.Name)
		}
		if hdr.Size > maxTarballEntrySize {
			return nil, fmt.Errorf("entry %q exceeds %d bytes", hdr.Name, maxTarballEntrySize)
		}

		b, err := io.ReadAll(io.LimitReader(tr, maxTarballEntrySize))
		if err != nil {
			return nil, fmt.Errorf("reading entry %q: %w", hdr.Name, err)
		}
		entries[rel] = b
	}

	return entries, nil
}
