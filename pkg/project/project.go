package project

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/agentpkg/snapcheck/pkg/config"
	"github.com/agentpkg/snapcheck/pkg/manifest"
	"github.com/agentpkg/snapcheck/pkg/snap"
	"github.com/agentpkg/snapcheck/pkg/source"
	"github.com/agentpkg/snapcheck/pkg/store"
)

const (
	BundlePath = "dist/bundle.js"
	IconPath   = "images/icon.svg"
	LocaleDir  = "locales"
)

// GitignoreEntries are paths a snap project typically keeps out of version
// control.
var GitignoreEntries = []string{
	"node_modules/",
	"*.tgz",
	"*.prom",
}

var (
	invalidNameChars = regexp.MustCompile(`[^a-z0-9-._~]+`)
	localeRegex      = regexp.MustCompile(`^[a-zA-Z]{2,3}([-_][a-zA-Z0-9]+)*$`)
)

const bundleSource = `module.exports.onRpcRequest = async ({ request }) => {
  switch (request.method) {
    case 'hello':
      return 'Hello from a snap!';
    default:
      throw new Error('Method not found.');
  }
};
`

const iconSource = `<svg xmlns="http://www.w3.org/2000/svg" width="32" height="32" viewBox="0 0 32 32"><circle cx="16" cy="16" r="14" fill="#6f4cff"/></svg>
`

// Options describes the package Init scaffolds.
type Options struct {
	Name         string
	Version      string
	ProposedName string
	Description  string
	Icon         bool
	// Locales, when set, moves proposedName and description into one
	// localization file per locale.
	Locales     []string
	Permissions []string
}

// InferName derives an npm package name from the given directory path.
func InferName(dir string) string {
	name := strings.ToLower(filepath.Base(dir))
	name = invalidNameChars.ReplaceAllString(name, "-")
	name = strings.TrimLeft(name, "-._~")
	if !manifest.IsValidPackageName(name) {
		return "snap"
	}
	return name
}

// DefaultOptions returns the options used when no prompt is shown.
func DefaultOptions(dir string) Options {
	return Options{
		Name:         InferName(dir),
		Version:      "0.1.0",
		ProposedName: "My Snap",
		Description:  "A snap scaffolded by snapcheck.",
		Icon:         true,
		Permissions:  []string{"endowment:rpc"},
	}
}

// Init scaffolds a snap package in dir that passes validation. It returns
// the files written, relative to dir. Returns an error if a manifest
// already exists.
func Init(ctx context.Context, dir string, opts Options) ([]string, error) {
	manifestPath := filepath.Join(dir, manifest.FileName)
	if _, err := os.Stat(manifestPath); err == nil {
		return nil, fmt.Errorf("%s already exists", manifest.FileName)
	}
	if !manifest.IsValidPackageName(opts.Name) {
		return nil, fmt.Errorf("invalid package name %q", opts.Name)
	}
	for _, locale := range opts.Locales {
		if !localeRegex.MatchString(locale) {
			return nil, fmt.Errorf("invalid locale %q", locale)
		}
	}

	m := &manifest.Manifest{
		Version:      opts.Version,
		Description:  opts.Description,
		ProposedName: opts.ProposedName,
		Source: manifest.Source{
			Location: manifest.Location{NPM: manifest.NPMLocation{
				FilePath:    BundlePath,
				PackageName: opts.Name,
				Registry:    manifest.NPMRegistry,
			}},
		},
		InitialPermissions: map[string]json.RawMessage{},
		ManifestVersion:    manifest.SupportedManifestVersion,
	}
	for _, p := range opts.Permissions {
		m.InitialPermissions[p] = json.RawMessage(`{}`)
	}

	pkg := map[string]any{
		"name":    opts.Name,
		"version": opts.Version,
		"main":    BundlePath,
		"files":   []string{"dist/", manifest.FileName},
	}

	written := map[string][]byte{BundlePath: []byte(bundleSource)}

	if opts.Icon {
		m.Source.Location.NPM.IconPath = IconPath
		written[IconPath] = []byte(iconSource)
		pkg["files"] = append(pkg["files"].([]string), "images/")
	}

	if len(opts.Locales) > 0 {
		m.ProposedName = "{{ proposedName }}"
		m.Description = "{{ description }}"
		for _, locale := range opts.Locales {
			rel := LocaleDir + "/" + locale + ".json"
			data, err := json.MarshalIndent(localizationFile(locale, opts), "", "  ")
			if err != nil {
				return nil, fmt.Errorf("marshaling %s: %w", rel, err)
			}
			m.Source.Locales = append(m.Source.Locales, rel)
			written[rel] = append(data, '\n')
		}
		pkg["files"] = append(pkg["files"].([]string), LocaleDir+"/")
	}

	pkgData, err := json.MarshalIndent(pkg, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshaling %s: %w", manifest.PackageJSONFileName, err)
	}
	written[manifest.PackageJSONFileName] = append(pkgData, '\n')

	manifestData, err := manifest.Encode(m)
	if err != nil {
		return nil, err
	}
	written[manifest.FileName] = manifestData

	var created []string
	for rel, data := range written {
		if err := writeFile(dir, rel, data); err != nil {
			return nil, err
		}
		created = append(created, rel)
	}

	if err := config.Write(dir, &config.Config{Output: config.OutputText, MaxIconSize: config.DefaultMaxIconSize}); err != nil {
		return nil, err
	}
	created = append(created, config.FileName)

	if err := writeShasum(ctx, dir, m); err != nil {
		return nil, err
	}

	sort.Strings(created)
	return created, nil
}

// writeShasum computes the package shasum from what is now on disk and
// rewrites the manifest with it.
func writeShasum(ctx context.Context, dir string, m *manifest.Manifest) error {
	s, err := store.New(dir)
	if err != nil {
		return err
	}
	files, err := source.Read(ctx, s)
	if err != nil {
		return err
	}
	shasum, err := snap.ComputeShasum(ctx, *files)
	if err != nil {
		return fmt.Errorf("computing shasum: %w", err)
	}

	m.Source.Shasum = shasum
	data, err := manifest.Encode(m)
	if err != nil {
		return err
	}
	return writeFile(dir, manifest.FileName, data)
}

func localizationFile(locale string, opts Options) map[string]any {
	return map[string]any{
		"locale": locale,
		"messages": map[string]any{
			"proposedName": map[string]any{"message": opts.ProposedName},
			"description":  map[string]any{"message": opts.Description},
		},
	}
}

func writeFile(dir, rel string, data []byte) error {
	full := filepath.Join(dir, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", filepath.Dir(full), err)
	}
	if err := os.WriteFile(full, data, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", full, err)
	}
	return nil
}

// EnsureGitignore appends to dir/.gitignore every entry that no existing
// pattern already covers, and returns the entries it added. A pattern covers
// an entry when they name the same path, with or without a trailing slash,
// or when the pattern is a glob matching the entry ("*.tgz" covers
// "snap-1.0.0.tgz"). Comments and negated patterns cover nothing.
func EnsureGitignore(dir string, entries []string) ([]string, error) {
	file := filepath.Join(dir, ".gitignore")

	existing, err := os.ReadFile(file)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("reading %s: %w", file, err)
	}

	var patterns []string
	for _, line := range strings.Split(string(existing), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, "!") {
			continue
		}
		patterns = append(patterns, line)
	}

	var added []string
	for _, entry := range entries {
		if ignored(patterns, entry) {
			continue
		}
		added = append(added, entry)
		patterns = append(patterns, entry)
	}
	if len(added) == 0 {
		return nil, nil
	}

	out := existing
	if len(out) > 0 && out[len(out)-1] != '\n' {
		out = append(out, '\n')
	}
	out = append(out, strings.Join(added, "\n")+"\n"...)
	if err := os.WriteFile(file, out, 0o644); err != nil {
		return nil, fmt.Errorf("writing %s: %w", file, err)
	}
	return added, nil
}

func ignored(patterns []string, entry string) bool {
	name := strings.TrimSuffix(entry, "/")
	for _, p := range patterns {
		p = strings.TrimPrefix(strings.TrimSuffix(p, "/"), "/")
		if p == name {
			return true
		}
		if ok, err := path.Match(p, name); err == nil && ok {
			return true
		}
	}
	return false
}
