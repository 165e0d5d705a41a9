package commands

import (
	"embed"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"

	"github.com/leapstack-labs/templar/internal/cli/output"
	"github.com/spf13/cobra"
)

//go:embed all:scaffold
var scaffoldFS embed.FS

const scaffoldRoot = "scaffold"

// NewInitCommand creates the init command.
func NewInitCommand() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init [directory]",
		Short: "Initialize a new templar project",
		Long: `Initialize a new templar project with a working example.

This creates:
  - templar.yaml configuration file
  - templates/ with a page template and an included partial
  - helpers/ with a Starlark helper namespace

Existing files are kept unless --force is given.`,
		Example: `  # Initialize in current directory
  templar init

  # Initialize in a new directory
  templar init my-docs

  # Overwrite existing files
  templar init --force`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) > 0 {
				dir = args[0]
			}

			cfg := getConfig()
			r := output.NewRenderer(cmd.OutOrStdout(), cmd.ErrOrStderr(), output.Mode(cfg.Format))

			return runInit(r, dir, force)
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Overwrite existing files")

	return cmd
}

func runInit(r *output.Renderer, dir string, force bool) error {
	if dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	configPath := filepath.Join(dir, "templar.yaml")
	if _, err := os.Stat(configPath); err == nil && !force {
		return fmt.Errorf("templar.yaml already exists. Use --force to overwrite")
	}

	written, err := copyScaffold(dir, force)
	if err != nil {
		return fmt.Errorf("failed to initialize project: %w", err)
	}

	for _, f := range written {
		r.StatusLine(f, "success", "")
	}

	r.Println("")
	r.Success("templar project initialized!")
	r.Println("")
	r.Println("Next steps:")
	r.Println("  templar generate   Render templates/index.md.tpl")
	r.Println("  templar run        Render and rebuild on change")
	r.Println("  templar helpers    List helper functions")

	return nil
}

// copyScaffold copies the embedded scaffold into targetDir and returns the
// files written, relative to targetDir. Existing files are skipped unless force is set.
func copyScaffold(targetDir string, force bool) ([]string, error) {
	var written []string

	err := fs.WalkDir(scaffoldFS, scaffoldRoot, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		rel := p[len(scaffoldRoot):]
		if rel == "" {
			return nil
		}
		rel = renameSpecialFiles(rel[1:])
		targetPath := filepath.Join(targetDir, filepath.FromSlash(rel))

		if d.IsDir() {
			return os.MkdirAll(targetPath, 0750)
		}

		if !force {
			if _, err := os.Stat(targetPath); err == nil {
				return nil
			}
		}

		content, err := scaffoldFS.ReadFile(p)
		if err != nil {
			return err
		}
		if err := os.WriteFile(targetPath, content, 0600); err != nil {
			return err
		}
		written = append(written, rel)
		return nil
	})

	return written, err
}

// renameSpecialFiles maps embedded names to their on-disk names ("gitignore" -> ".gitignore").
func renameSpecialFiles(p string) string {
	switch path.Base(p) {
	case "gitignore":
		return path.Join(path.Dir(p), ".gitignore")
	default:
		return p
	}
}
