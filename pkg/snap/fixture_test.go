package snap

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/agentpkg/snapcheck/pkg/manifest"
	"github.com/stretchr/testify/require"
)

const testIcon = `<svg xmlns="http://www.w3.org/2000/svg" width="24" height="24"><circle cx="12" cy="12" r="10"/></svg>`

// fixture builds a candidate package that passes validation unless a test
// changes it. build recomputes the manifest shasum unless keepShasum is set.
type fixture struct {
	manifest    map[string]any
	packageJSON map[string]any
	source      *File
	icon        *File
	aux         []*File
	locales     []*File
	keepShasum  bool
}

func newFixture() *fixture {
	return &fixture{
		manifest: map[string]any{
			"version":      "1.0.0",
			"description":  "An example snap.",
			"proposedName": "Example",
			"source": map[string]any{
				"shasum": "",
				"location": map[string]any{
					"npm": map[string]any{
						"filePath":    "dist/bundle.js",
						"packageName": "example",
						"registry":    "https://registry.npmjs.org",
					},
				},
			},
			"initialPermissions": map[string]any{"snap_dialog": map[string]any{}},
			"manifestVersion":    "0.1",
		},
		packageJSON: map[string]any{
			"name":    "example",
			"version": "1.0.0",
			"main":    "dist/bundle.js",
		},
		source: &File{Path: "dist/bundle.js", Value: []byte(`module.exports.onRpcRequest = () => null;`)},
	}
}

func (f *fixture) src() map[string]any {
	return f.manifest["source"].(map[string]any)
}

func (f *fixture) npm() map[string]any {
	return f.src()["location"].(map[string]any)["npm"].(map[string]any)
}

func (f *fixture) withIcon() *fixture {
	f.npm()["iconPath"] = "images/icon.svg"
	f.icon = &File{Path: "images/icon.svg", Value: []byte(testIcon)}
	return f
}

func (f *fixture) withLocales(locales ...map[string]any) *fixture {
	f.manifest["description"] = "{{ description }}"
	f.manifest["proposedName"] = "{{name}}"

	var paths []any
	for _, l := range locales {
		path := "locales/" + l["locale"].(string) + ".json"
		paths = append(paths, path)
		data, _ := json.Marshal(l)
		f.locales = append(f.locales, &File{Path: path, Value: data})
	}
	f.src()["locales"] = paths
	return f
}

func locale(name string, keys ...string) map[string]any {
	messages := map[string]any{}
	for _, k := range keys {
		messages[k] = map[string]any{"message": name + " " + k}
	}
	return map[string]any{"locale": name, "messages": messages}
}

func (f *fixture) build(t *testing.T) UnvalidatedFiles {
	t.Helper()

	files := UnvalidatedFiles{
		Manifest:          &File{Path: manifest.FileName, Value: mustJSON(t, f.manifest)},
		PackageJSON:       &File{Path: manifest.PackageJSONFileName, Value: mustJSON(t, f.packageJSON)},
		SourceCode:        f.source,
		SVGIcon:           f.icon,
		AuxiliaryFiles:    f.aux,
		LocalizationFiles: f.locales,
	}
	if f.keepShasum {
		return files
	}

	shasum, err := ComputeShasum(context.Background(), files)
	require.NoError(t, err)
	f.src()["shasum"] = shasum
	files.Manifest.Value = mustJSON(t, f.manifest)

	return files
}

func mustJSON(t *testing.T, v any) []byte {
	t.Helper()
	data, err := json.MarshalIndent(v, "", "  ")
	require.NoError(t, err)
	return data
}

// spySchema records which schema validators ran.
type spySchema struct {
	manifest.Schema
	calls []string
}

func (s *spySchema) ValidateManifest(data []byte) (*manifest.Manifest, error) {
	s.calls = append(s.calls, "manifest")
	return s.Schema.ValidateManifest(data)
}

func (s *spySchema) ValidatePackageJSON(data []byte) (*manifest.PackageJSON, error) {
	s.calls = append(s.calls, "packageJson")
	return s.Schema.ValidatePackageJSON(data)
}

func (s *spySchema) ValidateLocalization(data []byte) (*manifest.LocalizationFile, error) {
	s.calls = append(s.calls, "localization")
	return s.Schema.ValidateLocalization(data)
}
