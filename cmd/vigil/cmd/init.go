package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/vigilfs/vigil/internal/config"
)

func newInitCmd() *cobra.Command {
	var (
		user  bool
		force bool
	)

	cmd := &cobra.Command{
		Use:   "init [path]",
		Short: "Write a starter configuration file",
		Long: `Write a starter configuration file with the default settings.

By default this creates .vigil.yaml in the given directory (or the
current one). With --user it writes the user-level config instead,
backing up any existing one first.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if user {
				return runInitUser(cmd, force)
			}

			dir := "."
			if len(args) > 0 {
				dir = args[0]
			}
			return runInitProject(cmd, dir, force)
		},
	}

	cmd.Flags().BoolVar(&user, "user", false, "Write the user-level config instead of a project file")
	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing config file")

	return cmd
}

func runInitProject(cmd *cobra.Command, dir string, force bool) error {
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return fmt.Errorf("failed to resolve path: %w", err)
	}

	info, err := os.Stat(absDir)
	if err != nil {
		return fmt.Errorf("failed to access path: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("path is not a directory: %s", absDir)
	}

	path := filepath.Join(absDir, ".vigil.yaml")
	if fileExists(path) && !force {
		return fmt.Errorf("%s already exists, use --force to overwrite", path)
	}

	cfg := config.NewConfig()
	if err := cfg.WriteYAML(path); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	out := cmd.OutOrStdout()
	_, _ = fmt.Fprintf(out, "Created %s\n\n", path)
	_, _ = fmt.Fprintln(out, "Next steps:")
	_, _ = fmt.Fprintln(out, "  1. Set watch.pattern to narrow what gets reported")
	_, _ = fmt.Fprintln(out, "  2. Run 'vigil watch' to start watching")
	return nil
}

func runInitUser(cmd *cobra.Command, force bool) error {
	path := config.GetUserConfigPath()
	out := cmd.OutOrStdout()

	if config.UserConfigExists() {
		if !force {
			return fmt.Errorf("%s already exists, use --force to overwrite", path)
		}

		backup, err := config.BackupUserConfig()
		if err != nil {
			return fmt.Errorf("failed to back up existing config: %w", err)
		}
		_, _ = fmt.Fprintf(out, "Backed up existing config to %s\n", backup)
	}

	if err := os.MkdirAll(config.GetUserConfigDir(), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	cfg := config.NewConfig()
	if err := cfg.WriteYAML(path); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	_, _ = fmt.Fprintf(out, "Created %s\n", path)
	return nil
}
