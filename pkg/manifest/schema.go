package manifest

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path"
	"reflect"
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/Masterminds/semver/v3"
)

const (
	maxDescriptionLength  = 280
	maxProposedNameLength = 214
	maxPackageNameLength  = 214
	shasumLength          = 44
)

var packageNameRegex = regexp.MustCompile(`^(?:@[a-z0-9-*~][a-z0-9-*._~]*/)?[a-z0-9-~][a-z0-9-._~]*$`)

// Document names used in schema failure messages.
const (
	DocumentManifest     = "snap manifest"
	DocumentPackageJSON  = "package.json"
	DocumentLocalization = "localization file"
)

// SchemaError is a single schema violation in a document.
type SchemaError struct {
	Document string
	Path     string
	Reason   string
	Err      error
}

func (e *SchemaError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("Invalid %s: %s.", e.Document, e.Reason)
	}
	return fmt.Sprintf("Invalid %s: At path: %s -- %s.", e.Document, e.Path, e.Reason)
}

func (e *SchemaError) Unwrap() error { return e.Err }

// Schema validates raw snap documents. The zero value is ready to use.
type Schema struct{}

// ValidateManifest parses data as a snap manifest and checks every field
// constraint, returning the first violation.
func (Schema) ValidateManifest(data []byte) (*Manifest, error) {
	fail := failer(DocumentManifest)

	if err := checkKeys(data, manifestKeys, "", fail); err != nil {
		return nil, err
	}
	m := &Manifest{}
	if err := decodeStrict(data, m); err != nil {
		return nil, decodeError(DocumentManifest, err)
	}

	if !isSemver(m.Version) {
		return nil, fail("version", "Expected a valid SemVer version, but received %q", m.Version)
	}
	if err := checkLength("description", m.Description, maxDescriptionLength, fail); err != nil {
		return nil, err
	}
	if err := checkLength("proposedName", m.ProposedName, maxProposedNameLength, fail); err != nil {
		return nil, err
	}
	if m.Repository != nil {
		if m.Repository.Type == "" {
			return nil, fail("repository.type", "Expected a non-empty string")
		}
		if m.Repository.URL == "" {
			return nil, fail("repository.url", "Expected a non-empty string")
		}
	}

	src := m.Source
	if !isShasum(src.Shasum) {
		return nil, fail("source.shasum", "Expected a base64-encoded SHA-256 digest, but received %q", src.Shasum)
	}
	npm := src.Location.NPM
	if err := checkRelativePath("source.location.npm.filePath", npm.FilePath, fail); err != nil {
		return nil, err
	}
	if npm.IconPath != "" {
		if err := checkRelativePath("source.location.npm.iconPath", npm.IconPath, fail); err != nil {
			return nil, err
		}
	}
	if !IsValidPackageName(npm.PackageName) {
		return nil, fail("source.location.npm.packageName", "Expected a valid npm package name, but received %q", npm.PackageName)
	}
	if npm.Registry != NPMRegistry && npm.Registry != NPMRegistry+"/" {
		return nil, fail("source.location.npm.registry", "Expected %q, but received %q", NPMRegistry, npm.Registry)
	}
	for i, f := range src.Files {
		if err := checkRelativePath(fmt.Sprintf("source.files.%d", i), f, fail); err != nil {
			return nil, err
		}
	}
	for i, f := range src.Locales {
		if err := checkRelativePath(fmt.Sprintf("source.locales.%d", i), f, fail); err != nil {
			return nil, err
		}
	}

	if m.InitialPermissions == nil {
		return nil, fail("initialPermissions", "Expected an object, but received undefined")
	}
	if m.ManifestVersion != SupportedManifestVersion {
		return nil, fail("manifestVersion", "Expected %q, but received %q", SupportedManifestVersion, m.ManifestVersion)
	}
	if m.PlatformVersion != "" && !isSemver(m.PlatformVersion) {
		return nil, fail("platformVersion", "Expected a valid SemVer version, but received %q", m.PlatformVersion)
	}

	return m, nil
}

// ValidatePackageJSON parses data as an npm package descriptor and checks
// the fields a snap package relies on.
func (Schema) ValidatePackageJSON(data []byte) (*PackageJSON, error) {
	fail := failer(DocumentPackageJSON)

	p := &PackageJSON{}
	if err := json.Unmarshal(data, p); err != nil {
		return nil, decodeError(DocumentPackageJSON, err)
	}

	if p.Name == "" || !IsValidPackageName(p.Name) {
		return nil, fail("name", "Expected a valid npm package name, but received %q", p.Name)
	}
	if !isSemver(p.Version) {
		return nil, fail("version", "Expected a valid SemVer version, but received %q", p.Version)
	}
	if p.Repository != nil {
		if p.Repository.Type == "" {
			return nil, fail("repository.type", "Expected a non-empty string")
		}
		if p.Repository.URL == "" {
			return nil, fail("repository.url", "Expected a non-empty string")
		}
	}

	return p, nil
}

// ValidateLocalization parses data as a localization file.
func (Schema) ValidateLocalization(data []byte) (*LocalizationFile, error) {
	fail := failer(DocumentLocalization)

	if err := checkKeys(data, localizationKeys, "", fail); err != nil {
		return nil, err
	}
	l := &LocalizationFile{}
	if err := decodeStrict(data, l); err != nil {
		return nil, decodeError(DocumentLocalization, err)
	}

	if l.Locale == "" {
		return nil, fail("locale", "Expected a non-empty string")
	}
	if l.Messages == nil {
		return nil, fail("messages", "Expected an object, but received undefined")
	}

	keys := make([]string, 0, len(l.Messages))
	for k := range l.Messages {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if l.Messages[k].Message == nil {
			return nil, fail("messages."+k+".message", "Expected a string, but received undefined")
		}
	}

	return l, nil
}

// IsValidPackageName reports whether name is an acceptable npm package name.
func IsValidPackageName(name string) bool {
	if name == "" || len(name) > maxPackageNameLength {
		return false
	}
	return packageNameRegex.MatchString(name)
}

func isSemver(v string) bool {
	_, err := semver.StrictNewVersion(v)
	return err == nil
}

func isShasum(s string) bool {
	if len(s) != shasumLength {
		return false
	}
	b, err := base64.StdEncoding.DecodeString(s)
	return err == nil && len(b) == 32
}

func checkLength(field, value string, max int, fail func(string, string, ...any) error) error {
	n := utf8.RuneCountInString(value)
	if n == 0 {
		return fail(field, "Expected a non-empty string")
	}
	if n > max {
		return fail(field, "Expected a string with a length between 1 and %d, but received one with a length of %d", max, n)
	}
	return nil
}

func checkRelativePath(field, p string, fail func(string, string, ...any) error) error {
	if p == "" {
		return fail(field, "Expected a non-empty string")
	}
	clean := path.Clean(strings.TrimPrefix(p, "./"))
	if path.IsAbs(p) || clean == ".." || strings.HasPrefix(clean, "../") {
		return fail(field, "Expected a path relative to the package root, but received %q", p)
	}
	return nil
}

func failer(document string) func(string, string, ...any) error {
	return func(field, format string, args ...any) error {
		return &SchemaError{Document: document, Path: field, Reason: fmt.Sprintf(format, args...)}
	}
}

// ErrTrailingData is returned when a document holds more than one JSON value.
var ErrTrailingData = errors.New("unexpected data after the top-level value")

// decodeStrict decodes exactly one JSON value from data into v, rejecting
// unknown fields and anything after the value.
func decodeStrict(data []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return err
	}
	return ExpectEOF(dec)
}

// ExpectEOF reports ErrTrailingData unless dec has nothing left to read
// besides whitespace.
func ExpectEOF(dec *json.Decoder) error {
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return ErrTrailingData
	}
	return nil
}

func decodeError(document string, err error) error {
	var typeErr *json.UnmarshalTypeError
	var syntaxErr *json.SyntaxError
	switch {
	case errors.As(err, &typeErr):
		return &SchemaError{
			Document: document,
			Path:     typeErr.Field,
			Reason:   fmt.Sprintf("Expected a value of type %s, but received: %s", jsonTypeName(typeErr.Type), typeErr.Value),
			Err:      err,
		}
	case errors.Is(err, ErrTrailingData):
		return &SchemaError{Document: document, Reason: "Expected a single JSON value, but received trailing data", Err: err}
	case errors.As(err, &syntaxErr), errors.Is(err, io.ErrUnexpectedEOF), errors.Is(err, io.EOF):
		return &SchemaError{Document: document, Reason: fmt.Sprintf("Expected valid JSON: %v", err), Err: err}
	case strings.HasPrefix(err.Error(), "json: unknown field "):
		field := strings.Trim(strings.TrimPrefix(err.Error(), "json: unknown field "), `"`)
		return &SchemaError{Document: document, Path: field, Reason: "Expected a known field, but received an unknown one", Err: err}
	default:
		return &SchemaError{Document: document, Reason: err.Error(), Err: err}
	}
}

func jsonTypeName(t reflect.Type) string {
	if t == nil {
		return "value"
	}
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	switch t.Kind() {
	case reflect.String:
		return "string"
	case reflect.Slice, reflect.Array:
		return "array"
	case reflect.Map, reflect.Struct:
		return "object"
	case reflect.Bool:
		return "boolean"
	default:
		return t.Kind().String()
	}
}

func typeOf(target any) reflect.Type {
	return reflect.TypeOf(target).Elem()
}
