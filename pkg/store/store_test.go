package store

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func newStore(t *testing.T, root string) Store {
	t.Helper()
	s, err := New(root)
	if err != nil {
		t.Fatalf("New(%q) error: %v", root, err)
	}
	return s
}

func TestPath(t *testing.T) {
	root := "/tmp/snap-root"

	tests := map[string]struct {
		segments []string
		want     string
	}{
		"no segments": {
			segments: nil,
			want:     root,
		},
		"single segment": {
			segments: []string{"package.json"},
			want:     filepath.Join(root, "package.json"),
		},
		"multiple segments": {
			segments: []string{"dist", "bundle.js"},
			want:     filepath.Join(root, "dist", "bundle.js"),
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			s := newStore(t, root)
			got := s.Path(tc.segments...)
			if got != tc.want {
				t.Errorf("Path(%v) = %q, want %q", tc.segments, got, tc.want)
			}
		})
	}
}

func TestNewResolvesRelativeRoot(t *testing.T) {
	s := newStore(t, ".")
	if !filepath.IsAbs(s.Path()) {
		t.Errorf("Path() = %q, want absolute path", s.Path())
	}
}

func TestReadFile(t *testing.T) {
	root := t.TempDir()
	s := newStore(t, root)

	os.MkdirAll(filepath.Join(root, "dist"), 0o755)
	os.WriteFile(filepath.Join(root, "dist", "bundle.js"), []byte("module.exports = {};"), 0o644)

	got, err := s.ReadFile("dist", "bundle.js")
	if err != nil {
		t.Fatalf("ReadFile() error: %v", err)
	}
	if string(got) != "module.exports = {};" {
		t.Errorf("ReadFile() = %q", got)
	}

	if _, err := s.ReadFile("nonexistent.txt"); err == nil {
		t.Fatal("expected error reading nonexistent file, got nil")
	}
}

func TestHashDir(t *testing.T) {
	computeExpected := func(pairs [][2]string) string {
		h := sha256.New()
		for _, p := range pairs {
			h.Write([]byte(p[0]))
			h.Write([]byte(p[1]))
		}
		return hashPrefix + hex.EncodeToString(h.Sum(nil))
	}

	tests := map[string]struct {
		files map[string]string
		pairs [][2]string
	}{
		"single file": {
			files: map[string]string{
				"package.json": "{}",
			},
			pairs: [][2]string{
				{"package.json", "{}"},
			},
		},
		"multiple files sorted order": {
			files: map[string]string{
				"snap.manifest.json": "m",
				"package.json":       "p",
				"README.md":          "r",
			},
			pairs: [][2]string{
				{"README.md", "r"},
				{"package.json", "p"},
				{"snap.manifest.json", "m"},
			},
		},
		"nested files use slash separators": {
			files: map[string]string{
				filepath.Join("dist", "bundle.js"): "code",
				"a.txt":                            "alpha",
			},
			pairs: [][2]string{
				{"a.txt", "alpha"},
				{"dist/bundle.js", "code"},
			},
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			root := t.TempDir()
			s := newStore(t, root)

			for relPath, content := range tc.files {
				full := filepath.Join(root, relPath)
				os.MkdirAll(filepath.Dir(full), 0o755)
				os.WriteFile(full, []byte(content), 0o644)
			}

			got, err := s.HashDir()
			if err != nil {
				t.Fatalf("HashDir() error: %v", err)
			}

			want := computeExpected(tc.pairs)
			if got != want {
				t.Errorf("HashDir() = %q, want %q", got, want)
			}

			if !strings.HasPrefix(got, hashPrefix) {
				t.Errorf("HashDir() result missing %q prefix", hashPrefix)
			}
		})
	}
}

func TestHashDirNonExistent(t *testing.T) {
	s := newStore(t, t.TempDir())

	_, err := s.HashDir("no-such-dir")
	if err == nil {
		t.Fatal("expected error hashing nonexistent directory, got nil")
	}
}

// symlink creates link pointing at target, skipping the test where the
// platform or user cannot create links.
func symlink(t *testing.T, target, link string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(link), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.Symlink(target, link); err != nil {
		t.Skipf("symlinks unavailable: %v", err)
	}
}

func TestReadFileRefusesEscapes(t *testing.T) {
	outside := t.TempDir()
	secret := filepath.Join(outside, "secret.txt")
	if err := os.WriteFile(secret, []byte("host file"), 0o644); err != nil {
		t.Fatal(err)
	}

	tests := map[string]struct {
		setup    func(root string)
		segments []string
		wantErr  error
	}{
		"symlinked file": {
			setup: func(root string) {
				symlink(t, secret, filepath.Join(root, "dist", "bundle.js"))
			},
			segments: []string{"dist", "bundle.js"},
			wantErr:  ErrSymlink,
		},
		"relative symlink": {
			setup: func(root string) {
				rel, _ := filepath.Rel(filepath.Join(root, "dist"), secret)
				symlink(t, rel, filepath.Join(root, "dist", "bundle.js"))
			},
			segments: []string{"dist", "bundle.js"},
			wantErr:  ErrSymlink,
		},
		"symlinked directory": {
			setup: func(root string) {
				symlink(t, outside, filepath.Join(root, "dist"))
			},
			segments: []string{"dist", "secret.txt"},
			wantErr:  ErrSymlink,
		},
		"parent segment": {
			segments: []string{"..", filepath.Base(outside), "secret.txt"},
			wantErr:  ErrOutsideRoot,
		},
		"directory": {
			setup: func(root string) {
				os.MkdirAll(filepath.Join(root, "dist", "bundle.js"), 0o755)
			},
			segments: []string{"dist", "bundle.js"},
			wantErr:  ErrNotRegular,
		},
		"missing": {
			segments: []string{"dist", "bundle.js"},
			wantErr:  fs.ErrNotExist,
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			root := t.TempDir()
			if tc.setup != nil {
				tc.setup(root)
			}
			s := newStore(t, root)

			got, err := s.ReadFile(tc.segments...)
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("ReadFile(%v) error = %v, want %v", tc.segments, err, tc.wantErr)
			}
			if got != nil {
				t.Errorf("ReadFile(%v) = %q, want nil", tc.segments, got)
			}
		})
	}
}

func TestNewResolvesLinkedRoot(t *testing.T) {
	target := t.TempDir()
	if err := os.WriteFile(filepath.Join(target, "package.json"), []byte("{}"), 0o644); err != nil {
		t.Fatal(err)
	}
	link := filepath.Join(t.TempDir(), "pkg")
	symlink(t, target, link)

	s := newStore(t, link)
	if _, err := s.ReadFile("package.json"); err != nil {
		t.Fatalf("ReadFile() through linked root error: %v", err)
	}
}

func TestHashDirDoesNotFollowSymlinks(t *testing.T) {
	outside := t.TempDir()
	secret := filepath.Join(outside, "secret.txt")
	if err := os.WriteFile(secret, []byte("one"), 0o644); err != nil {
		t.Fatal(err)
	}

	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, "a.txt"), []byte("alpha"), 0o644); err != nil {
		t.Fatal(err)
	}
	symlink(t, secret, filepath.Join(root, "link.txt"))
	symlink(t, outside, filepath.Join(root, "linkdir"))
	s := newStore(t, root)

	before, err := s.HashDir()
	if err != nil {
		t.Fatalf("HashDir() error: %v", err)
	}

	if err := os.WriteFile(secret, []byte("two"), 0o644); err != nil {
		t.Fatal(err)
	}
	after, err := s.HashDir()
	if err != nil {
		t.Fatalf("HashDir() error: %v", err)
	}
	if before != after {
		t.Errorf("HashDir() changed when a file outside the root changed: %q != %q", before, after)
	}

	if err := os.Remove(filepath.Join(root, "link.txt")); err != nil {
		t.Fatal(err)
	}
	symlink(t, filepath.Join(outside, "other.txt"), filepath.Join(root, "link.txt"))
	retargeted, err := s.HashDir()
	if err != nil {
		t.Fatalf("HashDir() error: %v", err)
	}
	if retargeted == after {
		t.Error("HashDir() did not change when a link was retargeted")
	}
}

func TestHashDirRefusesLinkedSubdirectory(t *testing.T) {
	root := t.TempDir()
	symlink(t, t.TempDir(), filepath.Join(root, "dist"))
	s := newStore(t, root)

	if _, err := s.HashDir("dist"); !errors.Is(err, ErrSymlink) {
		t.Fatalf("HashDir(dist) error = %v, want %v", err, ErrSymlink)
	}
}
