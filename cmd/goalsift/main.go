package main

import (
	"fmt"
	"os"
	"time"

	"github.com/a-marczewski/goalsift/internal/classify"
	"github.com/a-marczewski/goalsift/internal/config"
	"github.com/a-marczewski/goalsift/internal/llm"
	"github.com/a-marczewski/goalsift/internal/logging"
	"github.com/a-marczewski/goalsift/internal/normalize"
	"github.com/a-marczewski/goalsift/internal/pipeline"
	"github.com/a-marczewski/goalsift/internal/result"
	"github.com/a-marczewski/goalsift/internal/storage"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const version = "v0.1.0"

var rootCmd = &cobra.Command{
	Use:   "goalsift",
	Short: "goalsift - filter calendar events and tasks against your goals",
	Long: `goalsift sends exported calendar events and tasks to an LLM in batches
and keeps the ones that align with your life goals and current focus areas.`,
}

func init() {
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(filterCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(completionCmd)

	registerFilterFlags(filterCmd)

	historyCmd.Flags().IntP("limit", "n", 10, "number of runs to show")
}

func registerFilterFlags(cmd *cobra.Command) {
	cmd.Flags().StringP("input", "i", "", "path to the pre-fetched export file (required)")
	cmd.Flags().StringP("output", "o", "", "output path (overrides config)")
	cmd.Flags().Float64("threshold", 0, "confidence threshold (overrides config)")
	_ = cmd.MarkFlagRequired("input")
}

// applyFlagOverrides layers explicit flags over the loaded configuration.
// Changed, not value, decides whether threshold applies: --threshold 0 is a
// legitimate override.
func applyFlagOverrides(cmd *cobra.Command, cfg *config.Config) {
	if outputPath, _ := cmd.Flags().GetString("output"); outputPath != "" {
		cfg.OutputPath = outputPath
	}
	if cmd.Flags().Changed("threshold") {
		cfg.ConfidenceThreshold, _ = cmd.Flags().GetFloat64("threshold")
	}
}

var completionCmd = &cobra.Command{
	Use:       "completion [bash|zsh|fish|powershell]",
	Short:     "Generate the autocompletion script for the specified shell",
	ValidArgs: []string{"bash", "zsh", "fish", "powershell"},
	Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
	RunE: func(cmd *cobra.Command, args []string) error {
		switch args[0] {
		case "bash":
			return cmd.Root().GenBashCompletion(os.Stdout)
		case "zsh":
			return cmd.Root().GenZshCompletion(os.Stdout)
		case "fish":
			return cmd.Root().GenFishCompletion(os.Stdout, true)
		case "powershell":
			return cmd.Root().GenPowerShellCompletionWithDesc(os.Stdout)
		}
		return nil
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("goalsift " + version)
	},
}

var filterCmd = &cobra.Command{
	Use:   "filter",
	Short: "Classify an export of events/tasks and write the filtered output",
	RunE:  runFilterCmd,
}

func runFilterCmd(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	applyFlagOverrides(cmd, cfg)

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logger, err := logging.NewLogger(cfg.LogLevel, cfg.LogFile)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer logger.Sync()

	inputPath, _ := cmd.Flags().GetString("input")
	file, err := os.Open(inputPath)
	if err != nil {
		return fmt.Errorf("failed to open input file: %w", err)
	}
	items, err := normalize.Load(file, logger)
	file.Close()
	if err != nil {
		return err
	}

	chatter, err := newChatter(cfg)
	if err != nil {
		return err
	}

	writer, err := result.NewWriter(cfg.OutputPath)
	if err != nil {
		return err
	}

	classifier := classify.New(chatter, logger)
	controller := pipeline.New(classifier, writer, logger, pipeline.Options{
		ConfidenceThreshold:  cfg.ConfidenceThreshold,
		BatchSize:            cfg.BatchSize,
		MaxConcurrentBatches: cfg.MaxConcurrentBatches,
		InterimSaveEvery:     cfg.InterimSaveEvery,
		FirstRetryBackoff:    time.Duration(cfg.RetryBackoffSeconds) * time.Second,
		SecondRetryBackoff:   time.Duration(cfg.SecondBackoffSeconds) * time.Second,
		RequestTimeout:       time.Duration(cfg.RequestTimeoutSeconds) * time.Second,
	})

	ctx := logging.ContextWithLogger(cmd.Context(), logger)
	startedAt := time.Now()
	outcome, err := controller.Run(ctx, items)
	if err != nil {
		// The exit status reflects whether the artifact was written, not
		// whether every item was confidently classified.
		return err
	}

	recordHistory(cfg, logger, outcome, startedAt, writer.Path())

	meta := outcome.Result.Metadata
	fmt.Printf("Retained %d of %d items (%d/%d batches succeeded)\n",
		meta.ItemsRetained, meta.TotalItemsProcessed,
		meta.SuccessfulBatches, meta.TotalBatches)
	fmt.Printf("Output written to %s\n", writer.Path())
	return nil
}

// recordHistory stores the run in the local history database. Failures are
// logged and swallowed; history is a convenience, not part of the run's
// contract.
func recordHistory(cfg *config.Config, logger *zap.Logger, outcome *pipeline.Outcome, startedAt time.Time, outputPath string) {
	db, err := storage.NewDB(cfg.DBPath)
	if err != nil {
		logger.Warn("failed to open history database", zap.Error(err))
		return
	}
	defer db.Close()

	meta := outcome.Result.Metadata
	err = storage.NewRunStore(db).Record(storage.Run{
		ID:                  meta.RunID,
		StartedAt:           startedAt,
		FinishedAt:          time.Now(),
		TotalItems:          meta.TotalItemsProcessed,
		ItemsRetained:       meta.ItemsRetained,
		TotalBatches:        meta.TotalBatches,
		SuccessfulBatches:   meta.SuccessfulBatches,
		ConfidenceThreshold: meta.ConfidenceThreshold,
		OutputPath:          outputPath,
	})
	if err != nil {
		logger.Warn("failed to record run history", zap.Error(err))
	}
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recent filtering runs",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadConfig()
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}

		db, err := storage.NewDB(cfg.DBPath)
		if err != nil {
			return fmt.Errorf("failed to open history database: %w", err)
		}
		defer db.Close()

		limit, _ := cmd.Flags().GetInt("limit")
		runs, err := storage.NewRunStore(db).ListRecent(limit)
		if err != nil {
			return err
		}
		if len(runs) == 0 {
			fmt.Println("No runs recorded yet.")
			return nil
		}

		for _, run := range runs {
			fmt.Printf("%s  %s  retained %d/%d  batches %d/%d  -> %s\n",
				run.FinishedAt.Local().Format("2006-01-02 15:04"),
				run.ID[:8],
				run.ItemsRetained, run.TotalItems,
				run.SuccessfulBatches, run.TotalBatches,
				run.OutputPath)
		}
		return nil
	},
}

// newChatter picks the LLM client for the configured provider.
func newChatter(cfg *config.Config) (llm.Chatter, error) {
	if llm.IsCLIProvider(cfg.LLMProvider) {
		return llm.NewCLIClient(llm.ParseCLIProvider(cfg.LLMProvider), cfg.LLMModel)
	}
	if cfg.LLMProvider != "http" && cfg.LLMProvider != "" {
		return nil, fmt.Errorf("unknown LLM provider: %s", cfg.LLMProvider)
	}
	return llm.NewClient(cfg.LLMBaseURL, cfg.LLMAPIKey, cfg.LLMModel), nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
