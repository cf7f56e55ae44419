// schemati is the command-line front end for the extraction pipeline:
// process a drawing, preview its tiling plan, inspect jobs, export
// results.
package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/schemati/schemati/internal/common"
	"github.com/schemati/schemati/internal/document"
	"github.com/schemati/schemati/internal/fragment"
	"github.com/schemati/schemati/internal/llm"
	"github.com/schemati/schemati/internal/llm/openai"
	"github.com/schemati/schemati/internal/pipeline"
	"github.com/schemati/schemati/internal/reconcile"
	"github.com/schemati/schemati/internal/store"
)

var (
	cfg        *common.Config
	logger     *slog.Logger
	configPath string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "schemati",
	Short: "Extract structured metadata from P&ID drawings",
	Long: `schemati tiles engineering drawings into fragments, extracts tagged
entities from each fragment with a vision model, and reconciles the
fragments into per-page results.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		level := slog.LevelWarn
		if verbose {
			level = slog.LevelInfo
		}
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
		slog.SetDefault(logger)

		cfg = common.LoadConfig()
		if configPath != "" {
			if err := common.LoadConfigFile(configPath, cfg); err != nil {
				return err
			}
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "YAML config file overlaying env settings")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log pipeline progress to stderr")
}

// newLoader builds the page loader from the active config.
func newLoader() *document.Loader {
	return document.NewLoader(document.LoaderConfig{
		DPI:       cfg.Image.DPI,
		MaxWidth:  cfg.Image.MaxWidth,
		MaxHeight: cfg.Image.MaxHeight,
		Pdftoppm:  cfg.Image.Pdftoppm,
	}, logger)
}

// newTiler builds the tiler from the active config.
func newTiler() (*fragment.Tiler, error) {
	return fragment.NewTiler(fragment.Config{
		TileWidth:           cfg.Fragment.TileWidth,
		TileHeight:          cfg.Fragment.TileHeight,
		OverlapRatio:        cfg.Fragment.OverlapRatio,
		ComplexityThreshold: cfg.Fragment.ComplexityThreshold,
		DynamicEnabled:      cfg.Fragment.DynamicEnabled,
	}, logger)
}

// newProcessor wires the full document pipeline.
func newProcessor() (*pipeline.Processor, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	tiler, err := newTiler()
	if err != nil {
		return nil, err
	}
	prompt, err := llm.LoadPrompt("extract_data")
	if err != nil {
		return nil, err
	}
	client := openai.NewClient(openai.Config{
		APIKey:            cfg.LLM.APIKey,
		BaseURL:           cfg.LLM.BaseURL,
		Model:             cfg.LLM.Model,
		Temperature:       cfg.LLM.Temperature,
		Timeout:           cfg.LLM.Timeout,
		RequestsPerSecond: cfg.LLM.RequestsPerSecond,
		Burst:             cfg.LLM.Burst,
		Lenient:           true,
	}, logger)

	fe := pipeline.NewFragmentExtractor(client, prompt, cfg.Workers.Fragments, logger)
	pp := pipeline.NewPagePipeline(tiler, fe, reconcile.NewReconciler(nil, logger), logger)
	return pipeline.NewProcessor(newLoader(), pp, cfg.Workers.Pages, logger), nil
}

// openStore opens the job store from the active config.
func openStore() (*store.Store, error) {
	return store.NewStore(cfg.Store.DataDir)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		slog.Error("command failed", "error", err)
		os.Exit(1)
	}
}
