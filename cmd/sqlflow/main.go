package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/lmittmann/tint"
	"github.com/spf13/cobra"

	"github.com/nexxia-ai/sqlflow"
	"github.com/nexxia-ai/sqlflow/ai"
	"github.com/nexxia-ai/sqlflow/config"
	"github.com/nexxia-ai/sqlflow/retrieval"
	"github.com/nexxia-ai/sqlflow/store"
)

const indexFile = "index.json"

var (
	cfgPath string
	cfg     *config.Config
)

func main() {
	root := &cobra.Command{
		Use:   "sqlflow",
		Short: "Ask a sqlite database questions in any language",
		Long: "sqlflow translates natural-language questions into SQL, validates the " +
			"SQL against the active database and answers in the language of the question.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// .env is optional; real env vars win either way
			if _, err := os.Stat(".env"); err == nil {
				if err := config.LoadEnvFile(".env"); err != nil {
					return err
				}
			}

			var err error
			cfg, err = config.Load(cfgPath)
			if err != nil {
				return err
			}

			setupLogging(cfg.LogLevel)
			return nil
		},
	}

	root.PersistentFlags().StringVar(&cfgPath, "config", "sqlflow.yaml", "path to the configuration file")

	root.AddCommand(newAskCmd())
	root.AddCommand(newServeCmd())
	root.AddCommand(newDBCmd())
	root.AddCommand(newIndexCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func setupLogging(level string) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	slog.SetDefault(slog.New(tint.NewHandler(os.Stderr, &tint.Options{Level: lvl})))
}

// newPipeline assembles the pipeline from the configuration: the completion
// model for the selected provider, the active database and the reference
// index when one has been built.
func newPipeline(ctx context.Context) (*sqlflow.Pipeline, *store.Store, error) {
	model, err := newModel(cfg.Model)
	if err != nil {
		return nil, nil, err
	}

	var genModel *ai.Model
	if cfg.GenerationModel != "" && cfg.GenerationModel != cfg.Model {
		genModel, err = newModel(cfg.GenerationModel)
		if err != nil {
			return nil, nil, err
		}
	}

	manager := store.NewManager(cfg.DataDir)
	st, err := store.Open(manager.ActivePath())
	if err != nil {
		return nil, nil, err
	}

	index, err := loadIndex(ctx)
	if err != nil {
		st.Close()
		return nil, nil, err
	}

	p := sqlflow.New(model, st, sqlflow.WithLogger(slog.Default()))
	p.GenerationModel = genModel
	p.Index = index
	p.MaxIterations = cfg.MaxIterations
	p.RetrievalK = cfg.RetrievalK
	return p, st, nil
}

func newModel(name string) (*ai.Model, error) {
	switch cfg.Provider {
	case "openai":
		return ai.NewOpenAIModel(name, ""), nil
	case "gemini":
		return ai.NewGeminiModel(name, ""), nil
	default:
		return nil, fmt.Errorf("unknown provider %q", cfg.Provider)
	}
}

// loadIndex returns the persisted reference index, or nil when none has been
// built yet. Generation still works without it, just without documentation
// context.
func loadIndex(ctx context.Context) (retrieval.Index, error) {
	path := filepath.Join(cfg.DataDir, indexFile)
	if _, err := os.Stat(path); err != nil {
		slog.Debug("no reference index found", "path", path)
		return nil, nil
	}

	embedder, err := retrieval.NewGenAIEmbedder(ctx, os.Getenv("GOOGLE_API_KEY"), cfg.EmbeddingModel)
	if err != nil {
		return nil, fmt.Errorf("reference index exists but embedder is unavailable: %w", err)
	}

	index := retrieval.NewMemoryIndex(embedder)
	if err := index.Load(path); err != nil {
		return nil, err
	}
	slog.Debug("loaded reference index", "path", path, "chunks", index.Len())
	return index, nil
}
