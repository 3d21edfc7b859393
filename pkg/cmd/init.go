package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/agentpkg/snapcheck/pkg/project"
	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"
)

func newInitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init [dir]",
		Short: "Scaffold a new snap package",
		Long: `Creates a minimal snap package that passes validation: snap.manifest.json
with a correct shasum, package.json, a source bundle, an optional icon and
localization files, snapcheck.toml and .gitignore entries.`,
		Args: cobra.MaximumNArgs(1),
		RunE: runInit,
	}

	cmd.Flags().BoolP("yes", "y", false, "accept defaults without prompting")

	return cmd
}

func runInit(cmd *cobra.Command, args []string) error {
	dir := "."
	if len(args) == 1 {
		dir = args[0]
	}
	dir, err := filepath.Abs(dir)
	if err != nil {
		return fmt.Errorf("resolving %s: %w", dir, err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", dir, err)
	}

	yes, err := cmd.Flags().GetBool("yes")
	if err != nil {
		return err
	}

	opts := project.DefaultOptions(dir)
	gitignoreEntries := project.GitignoreEntries
	if !yes {
		if err := promptOptions(&opts); err != nil {
			return err
		}
		if gitignoreEntries, err = promptGitignore(); err != nil {
			return err
		}
	}

	created, err := project.Init(cmd.Context(), dir, opts)
	if err != nil {
		return err
	}
	for _, f := range created {
		fmt.Fprintf(cmd.OutOrStdout(), "Created %s\n", f)
	}

	added, err := project.EnsureGitignore(dir, gitignoreEntries)
	if err != nil {
		return err
	}
	for _, entry := range added {
		fmt.Fprintf(cmd.OutOrStdout(), "Added %s to .gitignore\n", entry)
	}

	return nil
}

// promptOptions uses huh to collect the package details.
func promptOptions(opts *project.Options) error {
	var locales string
	err := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("npm package name").
				Value(&opts.Name),
			huh.NewInput().
				Title("Proposed name").
				Value(&opts.ProposedName),
			huh.NewText().
				Title("Description").
				CharLimit(280).
				Value(&opts.Description),
			huh.NewConfirm().
				Title("Include an SVG icon?").
				Value(&opts.Icon),
			huh.NewInput().
				Title("Locales (comma-separated, empty for none)").
				Value(&locales),
		),
	).Run()
	if err != nil {
		return fmt.Errorf("prompt failed: %w", err)
	}

	for _, l := range strings.Split(locales, ",") {
		if l = strings.TrimSpace(l); l != "" {
			opts.Locales = append(opts.Locales, l)
		}
	}
	return nil
}

// promptGitignore uses huh to present a multi-select of .gitignore entries.
func promptGitignore() ([]string, error) {
	options := make([]huh.Option[string], len(project.GitignoreEntries))
	for i, entry := range project.GitignoreEntries {
		options[i] = huh.NewOption(entry, entry).Selected(true)
	}

	var selected []string
	err := huh.NewForm(
		huh.NewGroup(
			huh.NewMultiSelect[string]().
				Title("Add entries to .gitignore?").
				Options(options...).
				Value(&selected),
		),
	).Run()
	if err != nil {
		return nil, fmt.Errorf("prompt failed: %w", err)
	}

	return selected, nil
}
