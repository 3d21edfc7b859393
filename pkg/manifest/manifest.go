package manifest

import (
	"bytes"
	"encoding/json"
	"fmt"
)

const (
	// FileName is the name of the snap manifest at the package root.
	FileName = "snap.manifest.json"
	// PackageJSONFileName is the name of the npm package descriptor.
	PackageJSONFileName = "package.json"

	// SupportedManifestVersion is the only manifestVersion accepted.
	SupportedManifestVersion = "0.1"
	// NPMRegistry is the only registry a snap may be published to.
	NPMRegistry = "https://registry.npmjs.org"
)

// Manifest is the parsed form of snap.manifest.json. It is authoritative for
// the identity and integrity of a package.
type Manifest struct {
	Schema             string                     `json:"$schema,omitempty"`
	Version            string                     `json:"version"`
	Description        string                     `json:"description"`
	ProposedName       string                     `json:"proposedName"`
	Repository         *Repository                `json:"repository,omitempty"`
	Source             Source                     `json:"source"`
	InitialConnections map[string]json.RawMessage `json:"initialConnections,omitempty"`
	InitialPermissions map[string]json.RawMessage `json:"initialPermissions"`
	ManifestVersion    string                     `json:"manifestVersion"`
	PlatformVersion    string                     `json:"platformVersion,omitempty"`
}

type Repository struct {
	Type string `json:"type"`
	URL  string `json:"url"`
}

// Equal reports whether both repositories are absent or carry the same type
// and url.
func (r *Repository) Equal(other *Repository) bool {
	if r == nil || other == nil {
		return r == nil && other == nil
	}
	return r.Type == other.Type && r.URL == other.URL
}

type Source struct {
	Shasum   string   `json:"shasum"`
	Location Location `json:"location"`
	Files    []string `json:"files,omitempty"`
	Locales  []string `json:"locales,omitempty"`
}

type Location struct {
	NPM NPMLocation `json:"npm"`
}

type NPMLocation struct {
	FilePath    string `json:"filePath"`
	IconPath    string `json:"iconPath,omitempty"`
	PackageName string `json:"packageName"`
	Registry    string `json:"registry"`
}

// Clone returns a deep copy of m.
func (m *Manifest) Clone() *Manifest {
	if m == nil {
		return nil
	}
	out := *m
	if m.Repository != nil {
		repo := *m.Repository
		out.Repository = &repo
	}
	out.Source.Files = append([]string(nil), m.Source.Files...)
	out.Source.Locales = append([]string(nil), m.Source.Locales...)
	out.InitialConnections = cloneRaw(m.InitialConnections)
	out.InitialPermissions = cloneRaw(m.InitialPermissions)
	return &out
}

func cloneRaw(in map[string]json.RawMessage) map[string]json.RawMessage {
	if in == nil {
		return nil
	}
	out := make(map[string]json.RawMessage, len(in))
	for k, v := range in {
		out[k] = append(json.RawMessage(nil), v...)
	}
	return out
}

// LocalizableFields returns the manifest fields that may carry translation
// placeholders, keyed by their JSON name.
func (m *Manifest) LocalizableFields() map[string]string {
	return map[string]string{
		"description":  m.Description,
		"proposedName": m.ProposedName,
	}
}

// PackageJSON is the subset of package.json a snap package is checked
// against. Everything else is kept verbatim in Extra.
type PackageJSON struct {
	Name       string
	Version    string
	Main       string
	Repository *Repository
	Extra      map[string]json.RawMessage
}

func (p *PackageJSON) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}
	if fields == nil {
		return fmt.Errorf("expected an object")
	}

	targets := []struct {
		key    string
		target any
	}{
		{"name", &p.Name},
		{"version", &p.Version},
		{"main", &p.Main},
		{"repository", &p.Repository},
	}
	for _, t := range targets {
		key, target := t.key, t.target
		raw, ok := fields[key]
		if !ok {
			continue
		}
		if err := json.Unmarshal(raw, target); err != nil {
			return &json.UnmarshalTypeError{Value: string(raw), Field: key, Type: typeOf(target)}
		}
		delete(fields, key)
	}

	p.Extra = fields
	return nil
}

// Clone returns a deep copy of p.
func (p *PackageJSON) Clone() *PackageJSON {
	if p == nil {
		return nil
	}
	out := *p
	if p.Repository != nil {
		repo := *p.Repository
		out.Repository = &repo
	}
	out.Extra = cloneRaw(p.Extra)
	return &out
}

func (p PackageJSON) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(p.Extra)+4)
	for k, v := range p.Extra {
		out[k] = v
	}
	out["name"] = p.Name
	out["version"] = p.Version
	if p.Main != "" {
		out["main"] = p.Main
	}
	if p.Repository != nil {
		out["repository"] = p.Repository
	}
	return json.Marshal(out)
}

// LocalizationFile is one locale's translation table.
type LocalizationFile struct {
	Locale   string             `json:"locale"`
	Messages map[string]Message `json:"messages"`
}

// Clone returns a deep copy of l.
func (l *LocalizationFile) Clone() *LocalizationFile {
	if l == nil {
		return nil
	}
	out := &LocalizationFile{Locale: l.Locale}
	if l.Messages != nil {
		out.Messages = make(map[string]Message, len(l.Messages))
		for k, m := range l.Messages {
			if m.Message != nil {
				text := *m.Message
				m.Message = &text
			}
			out.Messages[k] = m
		}
	}
	return out
}

type Message struct {
	Message     *string `json:"message"`
	Description string  `json:"description,omitempty"`
}

// Text returns the translated message, or "" when it is missing.
func (m Message) Text() string {
	if m.Message == nil {
		return ""
	}
	return *m.Message
}

// Encode serializes m the way snap tooling writes manifests: two-space
// indentation, no HTML escaping and a trailing newline.
func Encode(m *Manifest) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(m); err != nil {
		return nil, fmt.Errorf("encoding manifest: %w", err)
	}
	return buf.Bytes(), nil
}
