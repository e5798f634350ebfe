package main

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/randalmurphal/personaflow/pkg/personaflow"
	"github.com/randalmurphal/personaflow/pkg/personaflow/config"
	"github.com/randalmurphal/personaflow/pkg/personaflow/llm"
	"github.com/randalmurphal/personaflow/pkg/personaflow/tools"
	"github.com/randalmurphal/personaflow/pkg/personaflow/workflow"
	"github.com/randalmurphal/personaflow/pkg/personaflow/workflow/runlog"
)

var (
	// Global flags
	verbose    bool
	configPath string
	modelID    string
	provider   string
	apiKey     string
	baseURL    string
	dbPath     string

	logger *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "personaflow",
	Short: "personaflow - persona-driven LLM pipeline runner",
	Long: `personaflow runs persona pipelines against any supported LLM provider.

Every query passes a security gate before the persona pipeline executes.
Transient provider failures are retried automatically; each run has a
hard timeout and an auditable run log.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level := slog.LevelInfo
		if verbose {
			level = slog.LevelDebug
		}
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	},
	SilenceUsage: true,
}

var runCmd = &cobra.Command{
	Use:   "run [query]",
	Short: "Execute a single persona workflow",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		personaFlag, _ := cmd.Flags().GetString("persona")
		queryContext, _ := cmd.Flags().GetString("context")

		persona, err := personaflow.ParsePersona(personaFlag)
		if err != nil {
			return err
		}

		orch, store, err := buildOrchestrator()
		if err != nil {
			return err
		}
		defer closeStore(store)

		ctx, cancel := signalContext()
		defer cancel()

		result, err := orch.Execute(ctx, persona, args[0], queryContext)
		if err != nil {
			return err
		}
		printResult(result)
		return resultErr(result)
	},
}

var batchCmd = &cobra.Command{
	Use:   "batch [file]",
	Short: "Execute one workflow per line of a query file",
	Long: `Reads queries from a file (one per line, blank lines skipped) and runs
them concurrently, bounded by the configured concurrency ceiling.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		personaFlag, _ := cmd.Flags().GetString("persona")

		persona, err := personaflow.ParsePersona(personaFlag)
		if err != nil {
			return err
		}

		reqs, err := readRequests(args[0], persona)
		if err != nil {
			return err
		}
		if len(reqs) == 0 {
			return fmt.Errorf("no queries found in %s", args[0])
		}

		orch, store, err := buildOrchestrator()
		if err != nil {
			return err
		}
		defer closeStore(store)

		ctx, cancel := signalContext()
		defer cancel()

		results, err := orch.ExecuteBatch(ctx, reqs)
		if err != nil {
			return err
		}

		failed := 0
		for _, res := range results {
			printResult(res)
			if res.Status != workflow.StatusCompleted {
				failed++
			}
		}
		if failed > 0 {
			return fmt.Errorf("%d of %d workflows failed", failed, len(results))
		}
		return nil
	},
}

var scheduleCmd = &cobra.Command{
	Use:   "schedule [query]",
	Short: "Run the same workflow on a fixed interval until interrupted",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		personaFlag, _ := cmd.Flags().GetString("persona")
		queryContext, _ := cmd.Flags().GetString("context")
		interval, _ := cmd.Flags().GetDuration("interval")

		persona, err := personaflow.ParsePersona(personaFlag)
		if err != nil {
			return err
		}

		orch, store, err := buildOrchestrator()
		if err != nil {
			return err
		}
		defer closeStore(store)

		ctx, cancel := signalContext()
		defer cancel()

		sched := workflow.NewScheduler(orch, interval)
		results := sched.Start(ctx, workflow.Request{
			Persona: persona,
			Query:   args[0],
			Context: queryContext,
		})
		defer sched.Stop()

		logger.Info("scheduler started", "interval", interval, "persona", persona)
		for {
			select {
			case <-ctx.Done():
				return nil
			case res, ok := <-results:
				if !ok {
					return nil
				}
				printResult(res)
			}
		}
	},
}

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List recorded workflow runs",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		if dbPath == "" {
			return fmt.Errorf("runs requires --db")
		}
		store, err := runlog.NewSQLiteStore(dbPath)
		if err != nil {
			return err
		}
		defer store.Close()

		recs, err := store.List(limit)
		if err != nil {
			return err
		}
		for _, rec := range recs {
			line := fmt.Sprintf("%s  %-10s  %-9s", rec.RunID, rec.Persona, rec.Status)
			if rec.ErrKind != "" {
				line += "  " + rec.ErrKind
			}
			fmt.Println(line)
		}
		return nil
	},
}

func buildOrchestrator() (*workflow.Orchestrator, runlog.Store, error) {
	modelCfg, settings, serperKey, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}

	opts := []workflow.Option{
		workflow.WithSettings(settings),
		workflow.WithLogger(logger),
	}

	var store runlog.Store
	if dbPath != "" {
		store, err = runlog.NewSQLiteStore(dbPath)
		if err != nil {
			return nil, nil, fmt.Errorf("open run log: %w", err)
		}
		opts = append(opts, workflow.WithStore(store))
	}

	if serperKey != "" {
		search := tools.NewSearchTool(tools.NewSerperClient(serperKey))
		opts = append(opts, workflow.WithSearchTool(search))
	}

	orch, err := workflow.New(modelCfg, opts...)
	if err != nil {
		closeStore(store)
		return nil, nil, err
	}
	return orch, store, nil
}

// loadConfig merges the optional config file with flags and environment.
// Flags win over file values; environment fills API keys last.
func loadConfig() (llm.ModelConfig, config.Settings, string, error) {
	settings := config.DefaultSettings()
	modelCfg := llm.ModelConfig{}
	serperKey := os.Getenv("SERPER_API_KEY")

	if configPath != "" {
		cfg, err := config.FromFile(configPath)
		if err != nil {
			return modelCfg, settings, "", err
		}
		settings = config.SettingsFrom(cfg)

		model := cfg.Sub("model")
		modelCfg.ModelID = model.String("model_id", "")
		modelCfg.Provider = llm.Provider(model.String("provider", ""))
		modelCfg.Temperature = model.Float("temperature", 0)
		modelCfg.MaxTokens = model.Int("max_tokens", 0)
		modelCfg.APIKey = model.String("api_key", "")
		modelCfg.BaseURL = model.String("base_url", "")

		if k := cfg.Sub("tools").String("serper_api_key", ""); k != "" {
			serperKey = k
		}
	}

	if modelID != "" {
		modelCfg.ModelID = modelID
	}
	if provider != "" {
		modelCfg.Provider = llm.Provider(provider)
	}
	if apiKey != "" {
		modelCfg.APIKey = apiKey
	}
	if baseURL != "" {
		modelCfg.BaseURL = baseURL
	}
	if modelCfg.APIKey == "" {
		modelCfg.APIKey = os.Getenv("LLM_API_KEY")
	}

	return modelCfg, settings, serperKey, nil
}

func readRequests(path string, persona personaflow.PersonaType) ([]workflow.Request, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var reqs []workflow.Request
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		query := strings.TrimSpace(scanner.Text())
		if query == "" {
			continue
		}
		reqs = append(reqs, workflow.Request{Persona: persona, Query: query})
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return reqs, nil
}

// resultErr converts a non-completed run into a command error so that
// deferred cleanup runs before the process exits non-zero.
func resultErr(res *workflow.Result) error {
	if res.Status == workflow.StatusCompleted {
		return nil
	}
	return fmt.Errorf("workflow %s (%s)", res.Status, res.ErrKind)
}

func printResult(res *workflow.Result) {
	if res.Status == workflow.StatusCompleted {
		fmt.Printf("[%s] %s\n%s\n", res.RunID, res.Status, res.Output)
		return
	}
	fmt.Printf("[%s] %s (%s): %s\n", res.RunID, res.Status, res.ErrKind, res.ErrMessage)
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func closeStore(store runlog.Store) {
	if store != nil {
		_ = store.Close()
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to YAML or JSON config file")
	rootCmd.PersistentFlags().StringVarP(&modelID, "model", "m", "", "Model identifier (e.g. gpt-4o-mini)")
	rootCmd.PersistentFlags().StringVarP(&provider, "provider", "p", "", "Provider name (openai, google, anthropic, ...)")
	rootCmd.PersistentFlags().StringVar(&apiKey, "api-key", "", "Provider API key (defaults to LLM_API_KEY)")
	rootCmd.PersistentFlags().StringVar(&baseURL, "base-url", "", "Override the provider endpoint")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "SQLite run log path (omit to disable persistence)")

	runCmd.Flags().String("persona", string(personaflow.PersonaBaseQA), "Persona to run")
	runCmd.Flags().String("context", "", "Optional context for the query")

	batchCmd.Flags().String("persona", string(personaflow.PersonaBaseQA), "Persona to run")

	scheduleCmd.Flags().String("persona", string(personaflow.PersonaBaseQA), "Persona to run")
	scheduleCmd.Flags().String("context", "", "Optional context for the query")
	scheduleCmd.Flags().Duration("interval", time.Hour, "Interval between runs")

	runsCmd.Flags().Int("limit", 20, "Maximum number of runs to list")

	rootCmd.AddCommand(runCmd, batchCmd, scheduleCmd, runsCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
