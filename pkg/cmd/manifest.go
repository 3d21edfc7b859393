package cmd

import (
	"errors"
	"fmt"

	"github.com/agentpkg/snapcheck/pkg/checker"
	"github.com/agentpkg/snapcheck/pkg/manifest"
	"github.com/agentpkg/snapcheck/pkg/snap"
	"github.com/spf13/cobra"
)

func newManifestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "manifest [dir]",
		Short: "Check a snap manifest against its package",
		Long: `Validates the package in dir (default ".").

With --fix, mismatches the package itself can settle are written back to
snap.manifest.json: the npm package name, version and repository are taken
from package.json, and the shasum is recomputed. Other problems are only
reported.`,
		Args: cobra.MaximumNArgs(1),
		RunE: runManifest,
	}

	cmd.Flags().Bool("fix", false, "rewrite fixable fields of snap.manifest.json")

	return cmd
}

func runManifest(cmd *cobra.Command, args []string) error {
	dir := "."
	if len(args) == 1 {
		dir = args[0]
	}

	fix, err := cmd.Flags().GetBool("fix")
	if err != nil {
		return err
	}

	c := &checker.Checker{
		Logger:  Logger,
		Options: []snap.Option{snap.WithMaxIconSize(Cfg.MaxIconSize)},
	}

	if !fix {
		res := c.Check(cmd.Context(), dir)
		if res.Outcome != checker.OutcomeAccepted {
			var se *snap.Error
			if errors.As(res.Err, &se) && se.Fixable() {
				return fmt.Errorf("%w (run with --fix to update %s)", res.Err, manifest.FileName)
			}
			return res.Err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s is valid\n", manifest.FileName)
		return nil
	}

	fixes, err := c.FixManifest(cmd.Context(), dir)
	for _, f := range fixes {
		fmt.Fprintf(cmd.OutOrStdout(), "Fixed %s: %q -> %q\n", f.Field, f.From, f.To)
	}
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "%s is valid\n", manifest.FileName)
	return nil
}
