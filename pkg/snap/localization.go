package snap

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/agentpkg/snapcheck/pkg/manifest"
)

var translationRegex = regexp.MustCompile(`\{\{\s?([a-zA-Z0-9_\s-]+?)\s?\}\}`)

// Placeholders returns the translation keys referenced by value, in order of
// first appearance.
func Placeholders(value string) []string {
	var keys []string
	seen := map[string]bool{}
	for _, match := range translationRegex.FindAllStringSubmatch(value, -1) {
		key := strings.TrimSpace(match[1])
		if !seen[key] {
			seen[key] = true
			keys = append(keys, key)
		}
	}
	return keys
}

// DeclaredMessageKeys maps every translation key the manifest references to
// the localizable field value it appears in.
func DeclaredMessageKeys(m *manifest.Manifest) map[string]string {
	fields := m.LocalizableFields()
	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)

	keys := map[string]string{}
	for _, name := range names {
		value := fields[name]
		for _, key := range Placeholders(value) {
			if _, ok := keys[key]; !ok {
				keys[key] = value
			}
		}
	}
	return keys
}

func checkLocalization(_ context.Context, r *run) error {
	declared := DeclaredMessageKeys(r.manifest)
	if len(r.in.LocalizationFiles) == 0 && len(declared) == 0 {
		return nil
	}

	validated := make([]VirtualFile[*manifest.LocalizationFile], 0, len(r.in.LocalizationFiles))
	for _, f := range r.in.LocalizationFiles {
		l, err := r.opts.schema.ValidateLocalization(f.Value)
		if err != nil {
			return &Error{
				Kind:  ErrLocalization,
				Stage: StageLocalization,
				Field: f.Path,
				Msg:   fmt.Sprintf("Failed to validate localization file %q: %s.", f.Path, strings.TrimSuffix(err.Error(), ".")),
				Err:   err,
			}
		}
		validated = append(validated, VirtualFile[*manifest.LocalizationFile]{File: f.clone(), Result: l})
	}

	wanted := sortedKeys(declared)
	if len(validated) == 0 {
		key := wanted[0]
		return localizationError(ErrLocalizationCoverage, "", key,
			"Failed to translate %q: No localization file found.", declared[key])
	}

	for _, v := range validated {
		l := v.Result
		for _, key := range wanted {
			if _, ok := l.Messages[key]; !ok {
				return localizationError(ErrLocalizationCoverage, v.Path, key,
					"Failed to translate %q: No translation found for %q in %q file.", declared[key], key, l.Locale)
			}
		}
		for _, key := range sortedKeys(l.Messages) {
			if _, ok := declared[key]; !ok {
				return localizationError(ErrLocalizationOrphan, v.Path, key,
					"%q file defines message %q which is not used by the manifest.", l.Locale, key)
			}
		}
	}

	r.localizationFiles = validated
	return nil
}

func localizationError(kind error, file, key, format string, args ...any) *Error {
	return &Error{
		Kind:     kind,
		Stage:    StageLocalization,
		Field:    file,
		Expected: key,
		Msg:      "Failed to localize Snap manifest: " + fmt.Sprintf(format, args...),
	}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
