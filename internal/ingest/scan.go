package ingest

import (
	"errors"
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/schemati/schemati/constants"
)

type ScanStats struct {
	Scanned uint32
	Matched uint32
	Failed  uint32
}

// ScanDirectory walks root and returns the drawing files it contains.
// Hidden files and directories are skipped. Walk errors on individual
// entries are counted, not fatal.
func ScanDirectory(root string) ([]string, ScanStats, error) {
	if strings.TrimSpace(root) == "" {
		return nil, ScanStats{}, errors.New("root path is required")
	}

	var paths []string
	var stats ScanStats

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		stats.Scanned++
		if walkErr != nil {
			stats.Failed++
			return nil // continue walking
		}
		if isHidden(path) && path != root {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}
		if !constants.IsAllowedPath(path) {
			return nil
		}
		stats.Matched++
		paths = append(paths, path)
		return nil
	})
	if err != nil {
		return paths, stats, err
	}
	return paths, stats, nil
}

func isHidden(path string) bool {
	return strings.HasPrefix(filepath.Base(path), ".")
}
