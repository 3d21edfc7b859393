package checker

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/agentpkg/snapcheck/pkg/snap"
	"github.com/agentpkg/snapcheck/pkg/source"
	"github.com/stretchr/testify/require"
)

const testIcon = `<svg xmlns="http://www.w3.org/2000/svg" width="24" height="24"/>`

func testManifest() map[string]any {
	return map[string]any{
		"version":      "1.0.0",
		"description":  "An example snap.",
		"proposedName": "Example",
		"repository":   map[string]any{"type": "git", "url": "https://github.com/acme/example.git"},
		"source": map[string]any{
			"shasum": "LXEWQrcmsEQBYnyp+6wy9chTD7GQPMTbAiWHF5IaSIE=",
			"location": map[string]any{
				"npm": map[string]any{
					"filePath":    "dist/bundle.js",
					"iconPath":    "images/icon.svg",
					"packageName": "@acme/example",
					"registry":    "https://registry.npmjs.org/",
				},
			},
		},
		"initialPermissions": map[string]any{"snap_dialog": map[string]any{}},
		"manifestVersion":    "0.1",
	}
}

func testPackageJSON() map[string]any {
	return map[string]any{
		"name":       "@acme/example",
		"version":    "1.0.0",
		"main":       "dist/bundle.js",
		"repository": map[string]any{"type": "git", "url": "https://github.com/acme/example.git"},
	}
}

// writeSnap writes a valid snap package to a new directory, with the
// manifest shasum computed over its contents.
func writeSnap(t *testing.T) string {
	t.Helper()
	return writeSnapWithIcon(t, testIcon)
}

// writeSnapWithIcon is writeSnap with the given icon contents. The shasum
// still matches, so only the icon itself can be at fault.
func writeSnapWithIcon(t *testing.T, icon string) string {
	t.Helper()
	dir := t.TempDir()

	writeFile(t, dir, "dist/bundle.js", "module.exports.onRpcRequest = () => null;")
	writeFile(t, dir, "images/icon.svg", icon)
	writeJSON(t, dir, "package.json", testPackageJSON())

	m := testManifest()
	writeJSON(t, dir, "snap.manifest.json", m)

	pkg, err := (&source.LocalSource{Path: dir}).Load(context.Background())
	require.NoError(t, err)
	shasum, err := snap.ComputeShasum(context.Background(), *pkg.Files)
	require.NoError(t, err)

	m["source"].(map[string]any)["shasum"] = shasum
	writeJSON(t, dir, "snap.manifest.json", m)

	return dir
}

func writeFile(t *testing.T, dir, rel, content string) {
	t.Helper()
	full := filepath.Join(dir, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
	require.NoError(t, os.WriteFile(full, []byte(content), 0o644))
}

func writeJSON(t *testing.T, dir, rel string, v any) {
	t.Helper()
	data, err := json.MarshalIndent(v, "", "  ")
	require.NoError(t, err)
	writeFile(t, dir, rel, string(data))
}

func readJSON(t *testing.T, dir, rel string) map[string]any {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(dir, rel))
	require.NoError(t, err)
	var out map[string]any
	require.NoError(t, json.Unmarshal(data, &out))
	return out
}
