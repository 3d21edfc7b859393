package snap

import (
	"context"
	"io"

	"github.com/agentpkg/snapcheck/pkg/manifest"
	"github.com/sirupsen/logrus"
)

// DefaultMaxIconSize is the largest SVG icon, in bytes, a package may ship.
const DefaultMaxIconSize = 100_000

// Stage identifies a step of the validation pipeline.
type Stage int

const (
	StageStart Stage = iota
	StageCompleteness
	StageManifest
	StagePackageJSON
	StageCrossReference
	StageIcon
	StageLocalization
	StageAccepted
)

var stageNames = map[Stage]string{
	StageStart:          "start",
	StageCompleteness:   "completeness",
	StageManifest:       "manifest",
	StagePackageJSON:    "package-json",
	StageIcon:           "icon",
	StageCrossReference: "cross-reference",
	StageLocalization:   "localization",
	StageAccepted:       "accepted",
}

func (s Stage) String() string {
	if name, ok := stageNames[s]; ok {
		return name
	}
	return "unknown"
}

// SchemaValidator checks raw documents against their schemas. manifest.Schema
// is the default implementation.
type SchemaValidator interface {
	ValidateManifest(data []byte) (*manifest.Manifest, error)
	ValidatePackageJSON(data []byte) (*manifest.PackageJSON, error)
	ValidateLocalization(data []byte) (*manifest.LocalizationFile, error)
}

type options struct {
	errorPrefix string
	schema      SchemaValidator
	logger      logrus.FieldLogger
	maxIconSize int
	observe     func(Stage)
}

type Option func(*options)

// WithErrorPrefix prepends prefix to every failure message. Callers usually
// pass something ending in ": ", such as "npm:example@1.0.0: ".
func WithErrorPrefix(prefix string) Option {
	return func(o *options) { o.errorPrefix = prefix }
}

func WithSchemaValidator(v SchemaValidator) Option {
	return func(o *options) { o.schema = v }
}

func WithLogger(l logrus.FieldLogger) Option {
	return func(o *options) { o.logger = l }
}

func WithMaxIconSize(n int) Option {
	return func(o *options) { o.maxIconSize = n }
}

// WithStageObserver registers fn to be called as each stage completes.
func WithStageObserver(fn func(Stage)) Option {
	return func(o *options) { o.observe = fn }
}

func newOptions(opts []Option) *options {
	discard := logrus.New()
	discard.SetOutput(io.Discard)

	o := &options{
		schema:      manifest.Schema{},
		logger:      discard,
		maxIconSize: DefaultMaxIconSize,
		observe:     func(Stage) {},
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// run carries one candidate through the pipeline. Stages fill in the
// validated slots as they pass.
type run struct {
	opts *options
	in   UnvalidatedFiles

	manifest          *manifest.Manifest
	packageJSON       *manifest.PackageJSON
	localizationFiles []VirtualFile[*manifest.LocalizationFile]
}

type stage struct {
	id    Stage
	check func(ctx context.Context, r *run) error
}

// pipeline lists the stages in the order they must pass. A new check is
// added by inserting it here.
var pipeline = []stage{
	{StageCompleteness, checkCompleteness},
	{StageManifest, checkManifest},
	{StagePackageJSON, checkPackageJSON},
	{StageCrossReference, checkCrossReferences},
	{StageIcon, checkIcon},
	{StageLocalization, checkLocalization},
}

// ValidateNpmSnap validates the files extracted from an npm snap package and
// returns them as an accepted package. The first failing stage aborts the
// run; its error is an *Error whose message carries the configured prefix.
func ValidateNpmSnap(ctx context.Context, files UnvalidatedFiles, opts ...Option) (*Files, error) {
	r := &run{opts: newOptions(opts), in: files}
	log := r.opts.logger

	for _, s := range pipeline {
		if err := ctx.Err(); err != nil {
			return nil, Prefix(cancelled(s.id, err), r.opts.errorPrefix)
		}

		log.WithField("stage", s.id).Debug("running validation stage")
		if err := s.check(ctx, r); err != nil {
			log.WithField("stage", s.id).WithError(err).Debug("validation stage failed")
			return nil, Prefix(err, r.opts.errorPrefix)
		}
		r.opts.observe(s.id)
	}

	r.opts.observe(StageAccepted)
	return r.accept(), nil
}

func (r *run) accept() *Files {
	out := &Files{
		manifest:          VirtualFile[*manifest.Manifest]{File: r.in.Manifest.clone(), Result: r.manifest},
		packageJSON:       VirtualFile[*manifest.PackageJSON]{File: r.in.PackageJSON.clone(), Result: r.packageJSON},
		sourceCode:        r.in.SourceCode.clone(),
		localizationFiles: r.localizationFiles,
	}
	if r.in.SVGIcon != nil {
		icon := r.in.SVGIcon.clone()
		out.svgIcon = &icon
	}
	for _, f := range r.in.AuxiliaryFiles {
		out.auxiliaryFiles = append(out.auxiliaryFiles, f.clone())
	}
	return out
}
