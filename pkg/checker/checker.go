package checker

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/agentpkg/snapcheck/pkg/snap"
	"github.com/agentpkg/snapcheck/pkg/source"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// Outcome is the verdict for one package.
type Outcome string

const (
	OutcomeAccepted  Outcome = "accepted"
	OutcomeRejected  Outcome = "rejected"
	OutcomeCancelled Outcome = "cancelled"
	// OutcomeError means the package could not be read at all.
	OutcomeError Outcome = "error"
)

// Failure kind labels, as used in results and metrics.
const (
	KindNone                 = "none"
	KindLoad                 = "load"
	KindCancelled            = "cancelled"
	KindMissingArtifact      = "missing_artifact"
	KindSchema               = "schema"
	KindCrossReference       = "cross_reference"
	KindIcon                 = "icon"
	KindLocalizationCoverage = "localization_coverage"
	KindLocalizationOrphan   = "localization_orphan"
	KindLocalization         = "localization"
)

// Result is the outcome of checking one package reference.
type Result struct {
	Ref       string
	Root      string
	Integrity string
	Outcome   Outcome
	Kind      string
	Stage     snap.Stage
	Err       error
	Files     *snap.Files
	Duration  time.Duration
}

// Checker loads and validates packages. The zero value validates one
// package at a time and logs nothing.
type Checker struct {
	Logger  logrus.FieldLogger
	Metrics *Metrics
	Jobs    int
	Options []snap.Option
}

// CheckAll validates every ref concurrently, at most Jobs at a time. One
// package failing never affects another; results are in input order.
func (c *Checker) CheckAll(ctx context.Context, refs []string) []Result {
	results := make([]Result, len(refs))

	var g errgroup.Group
	g.SetLimit(max(c.Jobs, 1))

	for i, ref := range refs {
		g.Go(func() error {
			results[i] = c.Check(ctx, ref)
			return nil
		})
	}
	_ = g.Wait()

	return results
}

// Check loads the package at ref and runs the validation pipeline over it.
func (c *Checker) Check(ctx context.Context, ref string) Result {
	start := time.Now()
	log := c.logger().WithField("dir", ref)

	res := c.check(ctx, ref, log)
	res.Duration = time.Since(start)

	entry := log.WithFields(logrus.Fields{
		"outcome":  res.Outcome,
		"kind":     res.Kind,
		"duration": res.Duration,
	})
	switch res.Outcome {
	case OutcomeAccepted:
		entry.Info("package accepted")
	case OutcomeError:
		entry.WithError(res.Err).Error("package could not be read")
	default:
		entry.Warn(res.Err)
	}

	c.Metrics.observe(res)
	return res
}

func (c *Checker) check(ctx context.Context, ref string, log logrus.FieldLogger) Result {
	res := Result{Ref: ref}

	src, err := source.ParseRef(ref)
	if err != nil {
		return failed(res, err)
	}

	pkg, err := src.Load(ctx)
	if err != nil {
		return failed(res, fmt.Errorf("%s: %w", ref, err))
	}
	res.Root = pkg.Root
	res.Integrity = pkg.Integrity

	opts := append([]snap.Option{snap.WithLogger(log)}, c.Options...)
	opts = append(opts, snap.WithErrorPrefix(ref+": "))

	files, err := snap.ValidateNpmSnap(ctx, *pkg.Files, opts...)
	if err != nil {
		res.Err = err
		res.Kind = KindOf(err)
		res.Outcome = OutcomeRejected
		if errors.Is(err, snap.ErrCancelled) {
			res.Outcome = OutcomeCancelled
		}
		var se *snap.Error
		if errors.As(err, &se) {
			res.Stage = se.Stage
		}
		return res
	}

	res.Files = files
	res.Outcome = OutcomeAccepted
	res.Kind = KindNone
	res.Stage = snap.StageAccepted
	return res
}

// failed classifies an error raised before the pipeline could run.
func failed(res Result, err error) Result {
	res.Err = err
	res.Kind = KindLoad
	res.Outcome = OutcomeError
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		res.Kind = KindCancelled
		res.Outcome = OutcomeCancelled
	}
	return res
}

// KindOf returns the failure kind label of a pipeline error.
func KindOf(err error) string {
	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, snap.ErrCancelled):
		return KindCancelled
	case errors.Is(err, snap.ErrMissingArtifact):
		return KindMissingArtifact
	case errors.Is(err, snap.ErrSchemaValidation):
		return KindSchema
	case errors.Is(err, snap.ErrCrossReference):
		return KindCrossReference
	case errors.Is(err, snap.ErrIconValidation):
		return KindIcon
	case errors.Is(err, snap.ErrLocalizationCoverage):
		return KindLocalizationCoverage
	case errors.Is(err, snap.ErrLocalizationOrphan):
		return KindLocalizationOrphan
	case errors.Is(err, snap.ErrLocalization):
		return KindLocalization
	default:
		return KindLoad
	}
}

func (c *Checker) logger() logrus.FieldLogger {
	if c.Logger != nil {
		return c.Logger
	}
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}
