// schematid watches inbox directories for P&ID drawings and runs each
// new file through the extraction pipeline.
package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/schemati/schemati/internal/async"
	"github.com/schemati/schemati/internal/common"
	"github.com/schemati/schemati/internal/document"
	"github.com/schemati/schemati/internal/fragment"
	"github.com/schemati/schemati/internal/ingest"
	"github.com/schemati/schemati/internal/llm"
	"github.com/schemati/schemati/internal/llm/openai"
	"github.com/schemati/schemati/internal/pipeline"
	"github.com/schemati/schemati/internal/reconcile"
	"github.com/schemati/schemati/internal/services/extraction"
	"github.com/schemati/schemati/internal/store"
)

func main() {
	configPath := flag.String("config", "", "optional YAML config file overlaying env settings")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	cfg := common.LoadConfig()
	if *configPath != "" {
		if err := common.LoadConfigFile(*configPath, cfg); err != nil {
			logger.Error("config file load failed", "path", *configPath, "error", err)
			os.Exit(1)
		}
	}
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	if len(cfg.Ingest.Roots) == 0 {
		logger.Error("no inbox roots configured, set INBOX_ROOTS")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := store.NewStore(cfg.Store.DataDir)
	if err != nil {
		logger.Error("store init failed", "error", err)
		os.Exit(1)
	}
	defer st.Close()
	logger.Info("store ready", "path", st.Path())

	if n, err := st.RecoverStaleJobs(ctx); err != nil {
		logger.Error("stale job recovery failed", "error", err)
		os.Exit(1)
	} else if n > 0 {
		logger.Warn("failed jobs interrupted by previous shutdown", "count", n)
	}

	prompt, err := llm.LoadPrompt("extract_data")
	if err != nil {
		logger.Error("prompt load failed", "error", err)
		os.Exit(1)
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

	tiler, err := fragment.NewTiler(fragment.Config{
		TileWidth:           cfg.Fragment.TileWidth,
		TileHeight:          cfg.Fragment.TileHeight,
		OverlapRatio:        cfg.Fragment.OverlapRatio,
		ComplexityThreshold: cfg.Fragment.ComplexityThreshold,
		DynamicEnabled:      cfg.Fragment.DynamicEnabled,
	}, logger)
	if err != nil {
		logger.Error("tiler init failed", "error", err)
		os.Exit(1)
	}

	loader := document.NewLoader(document.LoaderConfig{
		DPI:       cfg.Image.DPI,
		MaxWidth:  cfg.Image.MaxWidth,
		MaxHeight: cfg.Image.MaxHeight,
		Pdftoppm:  cfg.Image.Pdftoppm,
	}, logger)

	fragmentExtractor := pipeline.NewFragmentExtractor(client, prompt, cfg.Workers.Fragments, logger)
	pagePipeline := pipeline.NewPagePipeline(tiler, fragmentExtractor, reconcile.NewReconciler(nil, logger), logger)
	processor := pipeline.NewProcessor(loader, pagePipeline, cfg.Workers.Pages, logger)

	svc := extraction.NewService(st, processor, logger)
	queue := async.NewJobQueue(svc, logger,
		async.WithWorkers(cfg.Workers.Pages),
		async.WithQueueSize(cfg.Workers.QueueSize),
	)

	events, watchErrs, err := ingest.StartWatcher(ctx, ingest.WatchConfig{
		Roots:       cfg.Ingest.Roots,
		InitialScan: cfg.Ingest.InitialScan,
		Debounce:    cfg.Ingest.Debounce,
	}, logger)
	if err != nil {
		logger.Error("watcher start failed", "error", err)
		os.Exit(1)
	}

	logger.Info("schematid started", "roots", cfg.Ingest.Roots, "model", cfg.LLM.Model)

	for {
		select {
		case <-ctx.Done():
			logger.Info("shutting down...")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			queue.Shutdown(shutdownCtx)
			cancel()
			logger.Info("stopped")
			return
		case path, ok := <-events:
			if !ok {
				continue
			}
			job, err := svc.Submit(ctx, path)
			if err != nil {
				if errors.Is(err, extraction.ErrInFlight) {
					logger.Info("skipping duplicate event", "path", path)
				} else {
					logger.Error("submit failed", "path", path, "error", err)
				}
				continue
			}
			_ = queue.Enqueue(ctx, job)
		case err, ok := <-watchErrs:
			if ok && err != nil {
				logger.Error("watch error", "error", err)
			}
		}
	}
}
