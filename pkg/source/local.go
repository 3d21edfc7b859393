package source

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/agentpkg/snapcheck/pkg/snap"
	"github.com/agentpkg/snapcheck/pkg/store"
)

// LocalSource is an extracted package directory.
type LocalSource struct {
	Path string
}

var _ Source = &LocalSource{}

func (l *LocalSource) Load(ctx context.Context) (*Package, error) {
	s, err := store.New(l.Path)
	if err != nil {
		return nil, err
	}
	absPath := s.Path()

	info, err := os.Stat(absPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("local source path does not exist: %s", absPath)
		}
		return nil, fmt.Errorf("checking local source path %s: %w", absPath, err)
	}

	if !info.IsDir() {
		return nil, fmt.Errorf("local source path is not a directory: %s", absPath)
	}

	files, err := Read(ctx, s)
	if err != nil {
		return nil, err
	}

	integrity, err := s.HashDir()
	if err != nil {
		return nil, fmt.Errorf("failed to compute integrity hash: %w", err)
	}

	return &Package{
		Root:      absPath,
		Integrity: integrity,
		Files:     files,
	}, nil
}

// Read extracts the candidate files of the package rooted at s.
func Read(ctx context.Context, s store.Store) (*snap.UnvalidatedFiles, error) {
	return collect(ctx, func(rel string) ([]byte, error) {
		return s.ReadFile(filepath.FromSlash(rel))
	})
}
