// Package cli implements the chopchop command-line interface.
package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/randalmurphal/chopchop/internal/assistant"
	"github.com/randalmurphal/chopchop/internal/config"
	"github.com/randalmurphal/chopchop/internal/issuestore"
	"github.com/randalmurphal/chopchop/internal/model"
	"github.com/randalmurphal/chopchop/internal/orchestrator"
	"github.com/randalmurphal/chopchop/internal/session"
	"github.com/randalmurphal/chopchop/internal/storage"
	"github.com/randalmurphal/chopchop/internal/wizard"
)

var (
	dataDir string
	verbose bool
	noColor bool
)

// rootCmd represents the base command; running it without a subcommand
// launches the wizard.
var rootCmd = &cobra.Command{
	Use:   "chopchop",
	Short: "Decompose a GitHub issue into right-sized sub-issues",
	Long: `chopchop walks a GitHub issue through a guided decomposition:
clarifying questions, an editable execution plan, a reviewable subtask
breakdown, and finally one GitHub issue per approved subtask.

Quick start:
  chopchop                    Launch the wizard
  chopchop config show        Show saved configuration
  chopchop plans list         List saved plans`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runWizard()
	},
}

// Execute adds all child commands to the root command and runs it.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initEnv)

	rootCmd.PersistentFlags().StringVar(&dataDir, "data-dir", "", "data directory (default is ~/.chopchop)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose logging")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")

	rootCmd.AddCommand(newConfigCmd())
	rootCmd.AddCommand(newPlansCmd())
	rootCmd.AddCommand(newVersionCmd())
}

// initEnv binds CHOPCHOP_* environment variables and the persistent flags
// into viper. Config overrides are read back through applyOverrides.
func initEnv() {
	viper.SetEnvPrefix("CHOPCHOP")
	viper.AutomaticEnv()
	for _, key := range []string{"github_pat", "github_repo", "openai_api_key", "data_dir"} {
		_ = viper.BindEnv(key)
	}
	_ = viper.BindPFlag("data_dir", rootCmd.PersistentFlags().Lookup("data-dir"))
	_ = viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
}

// applyOverrides overlays viper-bound values (environment, flags) onto the
// saved configuration.
func applyOverrides(cfg config.AppConfig) config.AppConfig {
	if v := viper.GetString("github_pat"); v != "" {
		cfg.GitHubPAT = v
	}
	if v := viper.GetString("github_repo"); v != "" {
		cfg.GitHubRepo = v
	}
	if v := viper.GetString("openai_api_key"); v != "" {
		cfg.OpenAIAPIKey = v
	}
	return cfg
}

// useColor reports whether output should be colored.
func useColor() bool {
	return !noColor && isatty.IsTerminal(os.Stdout.Fd())
}

// newLogger builds the process logger. Logs go to a file inside the data
// directory so they never corrupt the TUI.
func newLogger() *slog.Logger {
	level := slog.LevelInfo
	if verbose || viper.GetBool("verbose") {
		level = slog.LevelDebug
	}
	dir := resolveDataDir()
	if err := os.MkdirAll(dir, 0o755); err == nil {
		f, err := os.OpenFile(filepath.Join(dir, "chopchop.log"),
			os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err == nil {
			return slog.New(slog.NewTextHandler(f, &slog.HandlerOptions{Level: level}))
		}
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

func resolveDataDir() string {
	if dataDir != "" {
		return dataDir
	}
	if v := viper.GetString("data_dir"); v != "" {
		return v
	}
	return storage.DefaultDir()
}

// openKV opens the file-backed key-value store in the data directory.
func openKV() (storage.KV, error) {
	return storage.NewFileKV(resolveDataDir())
}

// openPlans opens the saved-plan library in the data directory.
func openPlans() (*storage.PlanLibrary, error) {
	return storage.OpenPlanLibrary(filepath.Join(resolveDataDir(), "plans.db"))
}

// runWizard assembles the collaborators and runs the interactive wizard.
func runWizard() error {
	if !isatty.IsTerminal(os.Stdout.Fd()) {
		return fmt.Errorf("chopchop is interactive and needs a terminal")
	}
	logger := newLogger()

	kv, err := openKV()
	if err != nil {
		return fmt.Errorf("open data directory: %w", err)
	}
	cfg := applyOverrides(config.Load(kv))

	plans, err := openPlans()
	if err != nil {
		return fmt.Errorf("open plan library: %w", err)
	}
	defer plans.Close()

	// The assistant resolves the API key per call so a key entered in the
	// configuration stage takes effect without restarting.
	asst := &lazyAssistant{logger: logger}
	machine := session.New(asst, logger)
	asst.key = func() string { return machine.State().Config.OpenAIAPIKey }
	machine.Dispatch(session.SetConfig{Config: cfg})

	w := wizard.New(machine, wizard.Deps{
		KV:    kv,
		Plans: plans,
		NewStore: func(token, repo string) (issuestore.Store, error) {
			return issuestore.New(token, repo)
		},
		NewOrchestrator: func(s issuestore.Store) *orchestrator.Orchestrator {
			return orchestrator.New(s, logger)
		},
	})
	if !useColor() {
		w = w.WithStyles(wizard.PlainStyles())
	}
	return w.Run()
}

// lazyAssistant builds the backing assistant on every call from the
// currently configured API key. Without a key it is the deterministic
// fallback alone.
type lazyAssistant struct {
	key    func() string
	logger *slog.Logger
}

func (l *lazyAssistant) resolve() assistant.Assistant {
	var primary assistant.Assistant
	if key := l.key(); key != "" {
		primary = assistant.NewOpenAI(key)
	}
	return assistant.NewResilient(primary, l.logger)
}

func (l *lazyAssistant) GenerateClarificationQuestions(ctx context.Context, issue model.Issue) ([]model.ClarificationQuestion, error) {
	return l.resolve().GenerateClarificationQuestions(ctx, issue)
}

func (l *lazyAssistant) GenerateExecutionPlan(ctx context.Context, issue model.Issue, questions []model.ClarificationQuestion) (string, error) {
	return l.resolve().GenerateExecutionPlan(ctx, issue, questions)
}

func (l *lazyAssistant) GenerateSubtasks(ctx context.Context, plan *model.ExecutionPlan) ([]model.Subtask, error) {
	return l.resolve().GenerateSubtasks(ctx, plan)
}

func (l *lazyAssistant) SplitSubtask(ctx context.Context, st model.Subtask) ([]model.Subtask, error) {
	return l.resolve().SplitSubtask(ctx, st)
}
