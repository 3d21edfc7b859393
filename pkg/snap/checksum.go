package snap

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/agentpkg/snapcheck/pkg/manifest"
)

// Checksum computes the package shasum over files: the SHA-256 of the
// concatenated SHA-256 digests of each file, taken in path order, encoded as
// standard base64. ctx is checked between files.
func Checksum(ctx context.Context, files []File) (string, error) {
	sorted := append([]File(nil), files...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Path < sorted[j].Path
	})

	digests := make([]byte, 0, len(sorted)*sha256.Size)
	for _, f := range sorted {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		sum := sha256.Sum256(f.Value)
		digests = append(digests, sum[:]...)
	}

	total := sha256.Sum256(digests)
	return base64.StdEncoding.EncodeToString(total[:]), nil
}

// ComputeShasum returns the shasum the manifest of files should declare.
// The manifest is hashed without its own source.shasum field.
func ComputeShasum(ctx context.Context, files UnvalidatedFiles) (string, error) {
	if files.Manifest == nil {
		return "", fmt.Errorf("no manifest to checksum")
	}
	m, err := ChecksummableManifest(files.Manifest.Value)
	if err != nil {
		return "", err
	}

	all := []File{{Path: files.Manifest.Path, Value: m}}
	for _, f := range []*File{files.SourceCode, files.SVGIcon} {
		if f != nil {
			all = append(all, *f)
		}
	}
	for _, group := range [][]*File{files.AuxiliaryFiles, files.LocalizationFiles} {
		for _, f := range group {
			if f != nil {
				all = append(all, *f)
			}
		}
	}

	return Checksum(ctx, all)
}

// ChecksummableManifest re-serializes a raw manifest with source.shasum
// removed, keys sorted and no insignificant whitespace, so that formatting
// changes do not alter the package shasum.
func ChecksummableManifest(raw []byte) ([]byte, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var doc map[string]any
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("decoding manifest for checksum: %w", err)
	}
	if err := manifest.ExpectEOF(dec); err != nil {
		return nil, fmt.Errorf("decoding manifest for checksum: %w", err)
	}
	if src, ok := doc["source"].(map[string]any); ok {
		delete(src, "shasum")
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(doc); err != nil {
		return nil, fmt.Errorf("encoding manifest for checksum: %w", err)
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}
