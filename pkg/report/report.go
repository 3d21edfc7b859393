// Package report renders checker results for people and for machines.
package report

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/agentpkg/snapcheck/pkg/checker"
	"github.com/agentpkg/snapcheck/pkg/config"
	"github.com/agentpkg/snapcheck/pkg/snap"
	"sigs.k8s.io/yaml"
)

type Report struct {
	Packages []Entry `json:"packages"`
	Summary  Summary `json:"summary"`
}

type Entry struct {
	Ref        string   `json:"ref"`
	Root       string   `json:"root,omitempty"`
	Integrity  string   `json:"integrity,omitempty"`
	Outcome    string   `json:"outcome"`
	Kind       string   `json:"kind"`
	Stage      string   `json:"stage,omitempty"`
	Reason     string   `json:"reason,omitempty"`
	Field      string   `json:"field,omitempty"`
	Expected   string   `json:"expected,omitempty"`
	Actual     string   `json:"actual,omitempty"`
	Message    string   `json:"message,omitempty"`
	DurationMS int64    `json:"durationMs"`
	Package    *Package `json:"package,omitempty"`
}

// Package summarizes an accepted snap.
type Package struct {
	Name         string   `json:"name"`
	Version      string   `json:"version"`
	ProposedName string   `json:"proposedName"`
	Shasum       string   `json:"shasum"`
	Icon         bool     `json:"icon"`
	Locales      []string `json:"locales,omitempty"`
}

type Summary struct {
	Total     int `json:"total"`
	Accepted  int `json:"accepted"`
	Rejected  int `json:"rejected"`
	Errors    int `json:"errors"`
	Cancelled int `json:"cancelled"`
}

// Build converts checker results into a report, keeping their order.
func Build(results []checker.Result) Report {
	r := Report{Packages: make([]Entry, 0, len(results))}
	for _, res := range results {
		r.Packages = append(r.Packages, entry(res))

		r.Summary.Total++
		switch res.Outcome {
		case checker.OutcomeAccepted:
			r.Summary.Accepted++
		case checker.OutcomeRejected:
			r.Summary.Rejected++
		case checker.OutcomeCancelled:
			r.Summary.Cancelled++
		default:
			r.Summary.Errors++
		}
	}
	return r
}

func entry(res checker.Result) Entry {
	e := Entry{
		Ref:        res.Ref,
		Root:       res.Root,
		Integrity:  res.Integrity,
		Outcome:    string(res.Outcome),
		Kind:       res.Kind,
		DurationMS: res.Duration.Round(time.Millisecond).Milliseconds(),
	}
	if res.Outcome != checker.OutcomeError {
		e.Stage = res.Stage.String()
	}
	if res.Err != nil {
		e.Message = res.Err.Error()
	}

	var se *snap.Error
	if errors.As(res.Err, &se) {
		e.Reason = string(se.Reason)
		e.Field = se.Field
		e.Expected = se.Expected
		e.Actual = se.Actual
	}

	if res.Files != nil {
		m := res.Files.Manifest().Result
		p := &Package{
			Name:         m.Source.Location.NPM.PackageName,
			Version:      m.Version,
			ProposedName: m.ProposedName,
			Shasum:       m.Source.Shasum,
		}
		_, p.Icon = res.Files.SVGIcon()
		for _, l := range res.Files.LocalizationFiles() {
			p.Locales = append(p.Locales, l.Result.Locale)
		}
		e.Package = p
	}

	return e
}

// Render writes the report for results to w in the given format.
func Render(w io.Writer, format string, results []checker.Result) error {
	r := Build(results)

	switch format {
	case config.OutputText, "":
		return renderText(w, r)
	case config.OutputJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		enc.SetEscapeHTML(false)
		return enc.Encode(r)
	case config.OutputYAML:
		data, err := yaml.Marshal(r)
		if err != nil {
			return fmt.Errorf("marshaling report: %w", err)
		}
		_, err = w.Write(data)
		return err
	default:
		return fmt.Errorf("unknown output format %q", format)
	}
}

var outcomeLabels = map[string]string{
	string(checker.OutcomeAccepted):  "PASS",
	string(checker.OutcomeRejected):  "FAIL",
	string(checker.OutcomeCancelled): "CANCELLED",
	string(checker.OutcomeError):     "ERROR",
}

func renderText(w io.Writer, r Report) error {
	for _, e := range r.Packages {
		label := outcomeLabels[e.Outcome]
		var err error
		if e.Package != nil {
			_, err = fmt.Fprintf(w, "%-9s %s (%s@%s)\n", label, e.Ref, e.Package.Name, e.Package.Version)
		} else {
			_, err = fmt.Fprintf(w, "%-9s %s\n          %s\n", label, e.Ref, e.Message)
		}
		if err != nil {
			return err
		}
	}

	s := r.Summary
	_, err := fmt.Fprintf(w, "\n%d package(s): %d passed, %d failed, %d errored, %d cancelled\n",
		s.Total, s.Accepted, s.Rejected, s.Errors, s.Cancelled)
	return err
}
