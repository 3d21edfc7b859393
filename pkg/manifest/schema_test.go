package manifest

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validShasum = "LXEWQrcmsEQBYnyp+6wy9chTD7GQPMTbAiWHF5IaSIE="

func validManifest() map[string]any {
	return map[string]any{
		"version":      "1.0.0",
		"description":  "An example snap.",
		"proposedName": "Example",
		"source": map[string]any{
			"shasum": validShasum,
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

func encode(t *testing.T, v any) []byte {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	return data
}

func TestValidateManifest(t *testing.T) {
	tests := map[string]struct {
		mutate  func(m map[string]any)
		raw     string
		suffix  string
		wantErr string
	}{
		"valid": {},
		"valid with trailing whitespace": {
			suffix: "\n\n",
		},
		"valid with optional fields": {
			mutate: func(m map[string]any) {
				m["repository"] = map[string]any{"type": "git", "url": "https://github.com/acme/example.git"}
				m["platformVersion"] = "6.1.0"
				m["$schema"] = "https://example.com/schema.json"
				m["initialConnections"] = map[string]any{"https://example.com": map[string]any{}}
			},
		},
		"not json": {
			raw:     "{",
			wantErr: "Invalid snap manifest: Expected valid JSON",
		},
		"unknown field": {
			mutate:  func(m map[string]any) { m["bogus"] = true },
			wantErr: "Invalid snap manifest: At path: bogus -- Expected a known field, but received an unknown one.",
		},
		"key differing only in case": {
			mutate:  func(m map[string]any) { m["proposedname"] = "Evil" },
			wantErr: "Invalid snap manifest: At path: proposedname -- Expected a known field, but received an unknown one.",
		},
		"nested key differing only in case": {
			mutate: func(m map[string]any) {
				npm(m)["FilePath"] = "evil.js"
			},
			wantErr: "Invalid snap manifest: At path: source.location.npm.FilePath -- Expected a known field, but received an unknown one.",
		},
		"repository key differing only in case": {
			mutate: func(m map[string]any) {
				m["repository"] = map[string]any{"type": "git", "url": "u", "URL": "v"}
			},
			wantErr: "Invalid snap manifest: At path: repository.URL -- Expected a known field, but received an unknown one.",
		},
		"duplicate key": {
			raw:     `{"version":"1.0.0","version":"2.0.0"}`,
			wantErr: "Invalid snap manifest: At path: version -- Expected a field to appear once, but received it more than once.",
		},
		"second value appended": {
			suffix:  ` {"injected": true} garbage`,
			wantErr: "Invalid snap manifest: Expected a single JSON value, but received trailing data.",
		},
		"stray closing brace": {
			suffix:  `}`,
			wantErr: "Invalid snap manifest: Expected a single JSON value, but received trailing data.",
		},
		"free-form permissions keep any keys": {
			mutate: func(m map[string]any) {
				m["initialPermissions"] = map[string]any{"snap_dialog": map[string]any{"Anything": true}}
			},
		},
		"wrong type": {
			mutate:  func(m map[string]any) { m["version"] = 1 },
			wantErr: "Invalid snap manifest: At path: version -- Expected a value of type string, but received: number.",
		},
		"bad version": {
			mutate:  func(m map[string]any) { m["version"] = "v1" },
			wantErr: `Invalid snap manifest: At path: version -- Expected a valid SemVer version, but received "v1".`,
		},
		"version with leading zero": {
			mutate:  func(m map[string]any) { m["version"] = "1.02.3" },
			wantErr: `Invalid snap manifest: At path: version -- Expected a valid SemVer version, but received "1.02.3".`,
		},
		"platform version with leading zero prerelease": {
			mutate:  func(m map[string]any) { m["platformVersion"] = "1.0.0-01" },
			wantErr: `Invalid snap manifest: At path: platformVersion -- Expected a valid SemVer version, but received "1.0.0-01".`,
		},
		"empty description": {
			mutate:  func(m map[string]any) { m["description"] = "" },
			wantErr: "Invalid snap manifest: At path: description -- Expected a non-empty string.",
		},
		"long description": {
			mutate:  func(m map[string]any) { m["description"] = strings.Repeat("a", 281) },
			wantErr: "Invalid snap manifest: At path: description -- Expected a string with a length between 1 and 280, but received one with a length of 281.",
		},
		"bad shasum": {
			mutate: func(m map[string]any) {
				m["source"].(map[string]any)["shasum"] = "abc"
			},
			wantErr: `Invalid snap manifest: At path: source.shasum -- Expected a base64-encoded SHA-256 digest, but received "abc".`,
		},
		"escaping file path": {
			mutate: func(m map[string]any) {
				npm(m)["filePath"] = "../outside.js"
			},
			wantErr: `Invalid snap manifest: At path: source.location.npm.filePath -- Expected a path relative to the package root, but received "../outside.js".`,
		},
		"absolute icon path": {
			mutate: func(m map[string]any) {
				npm(m)["iconPath"] = "/etc/icon.svg"
			},
			wantErr: `Invalid snap manifest: At path: source.location.npm.iconPath -- Expected a path relative to the package root, but received "/etc/icon.svg".`,
		},
		"bad package name": {
			mutate: func(m map[string]any) {
				npm(m)["packageName"] = "Bad Name"
			},
			wantErr: `Invalid snap manifest: At path: source.location.npm.packageName -- Expected a valid npm package name, but received "Bad Name".`,
		},
		"other registry": {
			mutate: func(m map[string]any) {
				npm(m)["registry"] = "https://registry.example.com"
			},
			wantErr: `Invalid snap manifest: At path: source.location.npm.registry -- Expected "https://registry.npmjs.org", but received "https://registry.example.com".`,
		},
		"auxiliary file escapes": {
			mutate: func(m map[string]any) {
				m["source"].(map[string]any)["files"] = []any{"ok.json", "../../x"}
			},
			wantErr: `Invalid snap manifest: At path: source.files.1 -- Expected a path relative to the package root, but received "../../x".`,
		},
		"missing permissions": {
			mutate:  func(m map[string]any) { delete(m, "initialPermissions") },
			wantErr: "Invalid snap manifest: At path: initialPermissions -- Expected an object, but received undefined.",
		},
		"unsupported manifest version": {
			mutate:  func(m map[string]any) { m["manifestVersion"] = "0.2" },
			wantErr: `Invalid snap manifest: At path: manifestVersion -- Expected "0.1", but received "0.2".`,
		},
		"incomplete repository": {
			mutate:  func(m map[string]any) { m["repository"] = map[string]any{"type": "git"} },
			wantErr: "Invalid snap manifest: At path: repository.url -- Expected a non-empty string.",
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			data := []byte(tc.raw)
			if tc.raw == "" {
				m := validManifest()
				if tc.mutate != nil {
					tc.mutate(m)
				}
				data = encode(t, m)
			}
			data = append(data, tc.suffix...)

			got, err := Schema{}.ValidateManifest(data)
			if tc.wantErr == "" {
				require.NoError(t, err)
				assert.Equal(t, "@acme/example", got.Source.Location.NPM.PackageName)
				return
			}

			require.Error(t, err)
			assert.True(t, strings.HasPrefix(err.Error(), tc.wantErr), "got %q", err.Error())

			var se *SchemaError
			assert.ErrorAs(t, err, &se)
		})
	}
}

func npm(m map[string]any) map[string]any {
	return m["source"].(map[string]any)["location"].(map[string]any)["npm"].(map[string]any)
}

func TestValidatePackageJSON(t *testing.T) {
	tests := map[string]struct {
		raw     string
		wantErr string
	}{
		"valid": {
			raw: `{"name":"@acme/example","version":"1.0.0","main":"dist/bundle.js","scripts":{"build":"mm-snap build"}}`,
		},
		"missing name": {
			raw:     `{"version":"1.0.0"}`,
			wantErr: `Invalid package.json: At path: name -- Expected a valid npm package name, but received "".`,
		},
		"uppercase name": {
			raw:     `{"name":"Example","version":"1.0.0"}`,
			wantErr: `Invalid package.json: At path: name -- Expected a valid npm package name, but received "Example".`,
		},
		"bad version": {
			raw:     `{"name":"example","version":"latest"}`,
			wantErr: `Invalid package.json: At path: version -- Expected a valid SemVer version, but received "latest".`,
		},
		"string repository": {
			raw:     `{"name":"example","version":"1.0.0","repository":"github:acme/example"}`,
			wantErr: "Invalid package.json: At path: repository -- Expected a value of type object",
		},
		"not an object": {
			raw:     `[]`,
			wantErr: "Invalid package.json: ",
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			got, err := Schema{}.ValidatePackageJSON([]byte(tc.raw))
			if tc.wantErr == "" {
				require.NoError(t, err)
				assert.Equal(t, "@acme/example", got.Name)
				assert.Contains(t, got.Extra, "scripts")
				return
			}
			require.Error(t, err)
			assert.True(t, strings.HasPrefix(err.Error(), tc.wantErr), "got %q", err.Error())
		})
	}
}

func TestPackageJSONRoundTripKeepsExtra(t *testing.T) {
	raw := `{"name":"example","version":"1.0.0","license":"MIT"}`
	p, err := Schema{}.ValidatePackageJSON([]byte(raw))
	require.NoError(t, err)

	out, err := json.Marshal(p)
	require.NoError(t, err)
	assert.JSONEq(t, raw, string(out))
}

func TestValidateLocalization(t *testing.T) {
	tests := map[string]struct {
		raw     string
		wantErr string
	}{
		"valid": {
			raw: `{"locale":"en","messages":{"name":{"message":"Example","description":"The name"}}}`,
		},
		"empty locale": {
			raw:     `{"locale":"","messages":{}}`,
			wantErr: "Invalid localization file: At path: locale -- Expected a non-empty string.",
		},
		"missing messages": {
			raw:     `{"locale":"en"}`,
			wantErr: "Invalid localization file: At path: messages -- Expected an object, but received undefined.",
		},
		"message without text": {
			raw:     `{"locale":"en","messages":{"name":{"description":"x"}}}`,
			wantErr: "Invalid localization file: At path: messages.name.message -- Expected a string, but received undefined.",
		},
		"unknown message field": {
			raw:     `{"locale":"en","messages":{"name":{"message":"x","extra":1}}}`,
			wantErr: "Invalid localization file: At path: messages.name.extra -- Expected a known field",
		},
		"message key differing only in case": {
			raw:     `{"locale":"en","messages":{"name":{"message":"Example","Message":"Evil"}}}`,
			wantErr: "Invalid localization file: At path: messages.name.Message -- Expected a known field, but received an unknown one.",
		},
		"top-level key differing only in case": {
			raw:     `{"locale":"en","Locale":"fr","messages":{}}`,
			wantErr: "Invalid localization file: At path: Locale -- Expected a known field, but received an unknown one.",
		},
		"trailing value": {
			raw:     `{"locale":"en","messages":{}} {"locale":"fr"}`,
			wantErr: "Invalid localization file: Expected a single JSON value, but received trailing data.",
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			got, err := Schema{}.ValidateLocalization([]byte(tc.raw))
			if tc.wantErr == "" {
				require.NoError(t, err)
				assert.Equal(t, "Example", got.Messages["name"].Text())
				return
			}
			require.Error(t, err)
			assert.True(t, strings.HasPrefix(err.Error(), tc.wantErr), "got %q", err.Error())
		})
	}
}

func TestIsSemver(t *testing.T) {
	tests := map[string]bool{
		"1.0.0":              true,
		"0.0.0":              true,
		"1.2.3-beta.1":       true,
		"1.2.3-rc.1+build.5": true,
		"10.20.30":           true,
		"01.0.0":             false,
		"1.02.3":             false,
		"1.0.0-01":           false,
		"1.0":                false,
		"v1.0.0":             false,
		"":                   false,
	}

	for v, want := range tests {
		t.Run(v, func(t *testing.T) {
			assert.Equal(t, want, isSemver(v))
		})
	}
}

func TestIsValidPackageName(t *testing.T) {
	tests := map[string]bool{
		"example":                true,
		"@metamask/example-snap": true,
		"a.b_c~d":                true,
		"":                       false,
		"Example":                false,
		".hidden":                false,
		"_private":               false,
		"@scope/":                false,
		"has space":              false,
		strings.Repeat("a", 215): false,
	}

	for name, want := range tests {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, want, IsValidPackageName(name))
		})
	}
}

func TestRepositoryEqual(t *testing.T) {
	a := &Repository{Type: "git", URL: "u"}
	assert.True(t, (*Repository)(nil).Equal(nil))
	assert.False(t, a.Equal(nil))
	assert.False(t, (*Repository)(nil).Equal(a))
	assert.True(t, a.Equal(&Repository{Type: "git", URL: "u"}))
	assert.False(t, a.Equal(&Repository{Type: "git", URL: "v"}))
}
