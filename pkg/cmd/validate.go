package cmd

import (
	"context"
	"fmt"

	"github.com/agentpkg/snapcheck/pkg/checker"
	"github.com/agentpkg/snapcheck/pkg/report"
	"github.com/agentpkg/snapcheck/pkg/snap"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
)

func newValidateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate [dir...]",
		Short: "Validate snap packages",
		Long: `Loads each package and runs it through the validation pipeline:
completeness, manifest, package.json, cross-references, icon and
localization. The first problem found in a package is reported.

Arguments are package directories or npm pack tarballs (.tgz). The
current directory is used when none is given.`,
		RunE: runValidate,
	}

	cmd.Flags().StringP("output", "o", "", "report format (text, json, yaml)")
	cmd.Flags().IntP("jobs", "j", 0, "packages to validate concurrently")
	cmd.Flags().Duration("timeout", 0, "overall deadline, 0 for none")
	cmd.Flags().Int("max-icon-size", 0, "largest accepted SVG icon in bytes")
	cmd.Flags().String("metrics-file", "", "write Prometheus metrics to this file")

	return cmd
}

func runValidate(cmd *cobra.Command, args []string) error {
	refs := args
	if len(refs) == 0 {
		refs = []string{"."}
	}

	ctx := cmd.Context()
	if Cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, Cfg.Timeout)
		defer cancel()
	}

	registry := prometheus.NewRegistry()
	c := &checker.Checker{
		Logger:  Logger,
		Metrics: checker.NewMetrics(registry),
		Jobs:    Cfg.Jobs,
		Options: []snap.Option{snap.WithMaxIconSize(Cfg.MaxIconSize)},
	}

	results := c.CheckAll(ctx, refs)

	if err := report.Render(cmd.OutOrStdout(), Cfg.Output, results); err != nil {
		return fmt.Errorf("rendering report: %w", err)
	}

	metricsFile, err := cmd.Flags().GetString("metrics-file")
	if err != nil {
		return err
	}
	if metricsFile != "" {
		if err := checker.WriteTextfile(registry, metricsFile); err != nil {
			return err
		}
	}

	failed := 0
	for _, res := range results {
		if res.Outcome != checker.OutcomeAccepted {
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d package(s) failed validation", failed, len(results))
	}
	return nil
}
