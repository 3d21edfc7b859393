package store

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"hash"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

const hashPrefix = "sha256:"

var (
	// ErrOutsideRoot is returned for paths that climb out of the store root.
	ErrOutsideRoot = errors.New("path is outside the package root")
	// ErrSymlink is returned for paths that pass through a symbolic link.
	ErrSymlink = errors.New("path goes through a symbolic link")
	// ErrNotRegular is returned when reading something other than a file.
	ErrNotRegular = errors.New("not a regular file")
)

// Store reads one extracted package directory. Reads never leave the root:
// paths that climb out of it or pass through a symbolic link are refused,
// so a package cannot make the loader read host files.
type Store interface {
	// Path returns the absolute filesystem path for the given segments
	// joined under the store root. Does not verify the path.
	Path(segments ...string) string
	// ReadFile reads the regular file at segments.
	ReadFile(segments ...string) ([]byte, error)
	// HashDir computes a "sha256:<hex>" integrity hash of the tree at
	// segments. Symbolic links contribute their target, never the
	// contents they point at.
	HashDir(segments ...string) (string, error)
}

// New returns a Store rooted at root. Relative roots are resolved against
// the working directory, and links in root itself are resolved once here.
func New(root string) (Store, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolving absolute path for %q: %w", root, err)
	}
	resolved, err := filepath.EvalSymlinks(abs)
	switch {
	case err == nil:
		abs = resolved
	case !errors.Is(err, fs.ErrNotExist):
		return nil, fmt.Errorf("resolving links in %q: %w", root, err)
	}
	return &store{root: abs}, nil
}

type store struct {
	root string
}

var _ Store = &store{}

func (s *store) Path(segments ...string) string {
	return filepath.Join(append([]string{s.root}, segments...)...)
}

// resolve returns segments relative to the root, after checking that every
// component below the root exists and is not a symbolic link. The last
// component's info is returned. Missing components yield an error matching
// fs.ErrNotExist.
func (s *store) resolve(segments ...string) (string, fs.FileInfo, error) {
	rel, err := filepath.Rel(s.root, s.Path(segments...))
	if err != nil {
		return "", nil, err
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", nil, fmt.Errorf("%w: %s", ErrOutsideRoot, filepath.Join(segments...))
	}

	info, err := os.Lstat(s.root)
	if err != nil {
		return "", nil, err
	}
	if rel == "." {
		return rel, info, nil
	}

	cur := s.root
	for _, part := range strings.Split(rel, string(filepath.Separator)) {
		cur = filepath.Join(cur, part)
		if info, err = os.Lstat(cur); err != nil {
			return "", nil, err
		}
		if info.Mode()&fs.ModeSymlink != 0 {
			return "", nil, fmt.Errorf("%w: %s", ErrSymlink, filepath.ToSlash(rel))
		}
	}
	return rel, info, nil
}

func (s *store) ReadFile(segments ...string) ([]byte, error) {
	rel, info, err := s.resolve(segments...)
	if err != nil {
		return nil, err
	}
	if !info.Mode().IsRegular() {
		return nil, fmt.Errorf("%w: %s", ErrNotRegular, filepath.ToSlash(rel))
	}
	return os.ReadFile(filepath.Join(s.root, rel))
}

type hashEntry struct {
	rel  string
	link bool
}

func (s *store) HashDir(segments ...string) (string, error) {
	rel, _, err := s.resolve(segments...)
	if err != nil {
		return "", err
	}
	dir := filepath.Join(s.root, rel)

	// WalkDir does not follow links, so a linked directory shows up as a
	// single entry.
	var entries []hashEntry
	err = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		link := d.Type()&fs.ModeSymlink != 0
		if d.IsDir() || (!link && !d.Type().IsRegular()) {
			return nil
		}
		r, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		entries = append(entries, hashEntry{rel: filepath.ToSlash(r), link: link})
		return nil
	})
	if err != nil {
		return "", err
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].rel < entries[j].rel })

	h := sha256.New()
	for _, e := range entries {
		full := filepath.Join(dir, filepath.FromSlash(e.rel))
		io.WriteString(h, e.rel)
		if e.link {
			target, err := os.Readlink(full)
			if err != nil {
				return "", err
			}
			io.WriteString(h, "\x00symlink\x00"+filepath.ToSlash(target))
			continue
		}
		if err := hashFile(h, full); err != nil {
			return "", err
		}
	}

	return hashPrefix + hex.EncodeToString(h.Sum(nil)), nil
}

func hashFile(h hash.Hash, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = io.Copy(h, f)
	return err
}
