// Package ingest discovers drawing files on disk, both by scanning
// directories and by watching them for new arrivals.
package ingest

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/schemati/schemati/constants"
)

type WatchConfig struct {
	Roots       []string      // directories to watch (recursive)
	InitialScan bool          // if true, walk roots and emit existing files
	Debounce    time.Duration // coalesce rapid update/rename bursts
}

// StartWatcher watches the configured roots and emits paths of drawing
// files as they appear or change. Emission blocks until the consumer
// reads, so no path is ever silently dropped. The channels close when
// ctx ends.
func StartWatcher(ctx context.Context, cfg WatchConfig, logger *slog.Logger) (<-chan string, <-chan error, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if len(cfg.Roots) == 0 {
		return nil, nil, errors.New("no roots provided")
	}
	evCh := make(chan string, 256)
	errCh := make(chan error, 1)

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, nil, err
	}

	// Add roots recursively; collect existing files for the initial
	// emit. The emit itself happens on the event goroutine so a large
	// inbox cannot deadlock startup.
	var initial []string
	addDir := func(root string) error {
		return filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
			if walkErr != nil {
				return walkErr
			}
			if d.IsDir() {
				return w.Add(path)
			}
			if cfg.InitialScan && constants.IsAllowedPath(path) {
				initial = append(initial, path)
			}
			return nil
		})
	}
	for _, r := range cfg.Roots {
		if err := addDir(r); err != nil {
			logger.Error("ingest.watch_root_failed", "root", r, "error", err)
			_ = w.Close()
			return nil, nil, err
		}
	}
	logger.Info("ingest.watching", "roots", cfg.Roots, "initial_scan", cfg.InitialScan)

	go func() {
		defer close(evCh)
		defer close(errCh)
		defer w.Close() //nolint:errcheck

		emit := func(p string) bool {
			select {
			case evCh <- p:
				return true
			case <-ctx.Done():
				return false
			}
		}

		for _, p := range initial {
			if !emit(p) {
				return
			}
		}

		// The debounce timer's channel is a case in the select below, so
		// every access to pending stays on this goroutine.
		debounce := time.NewTimer(time.Hour)
		if !debounce.Stop() {
			<-debounce.C
		}
		defer debounce.Stop()
		pending := map[string]struct{}{}

		sendPending := func() bool {
			for p := range pending {
				if !emit(p) {
					return false
				}
				delete(pending, p)
			}
			return true
		}

		for {
			select {
			case <-ctx.Done():
				return
			case <-debounce.C:
				if !sendPending() {
					return
				}
			case e, ok := <-w.Events:
				if !ok {
					return
				}
				if e.Op&fsnotify.Create == fsnotify.Create {
					// New directories need watching too; Add on a plain
					// file fails and that is fine.
					_ = w.Add(e.Name)
				}

				if constants.IsAllowedPath(e.Name) && (e.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename)) != 0 {
					pending[e.Name] = struct{}{}
					if cfg.Debounce > 0 {
						if !debounce.Stop() {
							select {
							case <-debounce.C:
							default:
							}
						}
						debounce.Reset(cfg.Debounce)
					} else if !sendPending() {
						return
					}
				}
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				logger.Error("ingest.watch_error", "error", err)
				select {
				case errCh <- err:
				default:
				}
			}
		}
	}()

	return evCh, errCh, nil
}
