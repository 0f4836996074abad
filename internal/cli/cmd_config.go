package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/randalmurphal/chopchop/internal/config"
)

// newConfigCmd creates the config command with subcommands.
func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "View and manage configuration",
		Long: `View and manage chopchop configuration.

Configuration holds the GitHub token, the default repository, and the
OpenAI API key. Values from CHOPCHOP_* environment variables override
the saved file at runtime.

Examples:
  chopchop config show                 # Show configuration (secrets masked)
  chopchop config export > cfg.json    # Export as JSON
  chopchop config import cfg.json      # Import from JSON`,
	}

	cmd.AddCommand(newConfigShowCmd())
	cmd.AddCommand(newConfigExportCmd())
	cmd.AddCommand(newConfigImportCmd())

	return cmd
}

func newConfigShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the saved configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			kv, err := openKV()
			if err != nil {
				return err
			}
			cfg := applyOverrides(config.Load(kv))

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "githubPat:    %s\n", maskSecret(cfg.GitHubPAT))
			fmt.Fprintf(out, "githubRepo:   %s\n", orUnset(cfg.GitHubRepo))
			fmt.Fprintf(out, "openaiApiKey: %s\n", maskSecret(cfg.OpenAIAPIKey))
			if cfg.Preferences.Theme != "" {
				fmt.Fprintf(out, "theme:        %s\n", cfg.Preferences.Theme)
			}
			return nil
		},
	}
}

func newConfigExportCmd() *cobra.Command {
	var outPath string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export configuration as JSON",
		Long: `Export the saved configuration as JSON, including credentials.
The output is meant for moving settings between machines; treat it as a
secret.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			kv, err := openKV()
			if err != nil {
				return err
			}
			data, err := config.Export(config.Load(kv))
			if err != nil {
				return err
			}
			if outPath != "" {
				return os.WriteFile(outPath, data, 0o600)
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(data))
			return nil
		},
	}

	cmd.Flags().StringVarP(&outPath, "output", "o", "", "write to file instead of stdout")
	return cmd
}

func newConfigImportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import <file>",
		Short: "Import configuration from JSON",
		Long: `Import configuration from a JSON export. Files written by older
releases that use the defaultRepo field are accepted and normalized.
A rejected file leaves the saved configuration unchanged.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read %s: %w", args[0], err)
			}
			cfg, err := config.Import(data)
			if err != nil {
				return err
			}
			kv, err := openKV()
			if err != nil {
				return err
			}
			if err := config.Save(kv, cfg); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Configuration imported.")
			return nil
		},
	}
}

// maskSecret keeps only a short prefix of a credential visible.
func maskSecret(s string) string {
	if s == "" {
		return "(unset)"
	}
	if len(s) <= 8 {
		return strings.Repeat("*", len(s))
	}
	return s[:4] + strings.Repeat("*", 8)
}

func orUnset(s string) string {
	if s == "" {
		return "(unset)"
	}
	return s
}
