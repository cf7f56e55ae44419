package document

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/schemati/schemati/constants"
)

// LoaderConfig controls page rendering and decoding.
type LoaderConfig struct {
	DPI       int    // render resolution for PDF pages
	MaxWidth  int    // pages wider than this are downscaled before tiling
	MaxHeight int
	Pdftoppm  string // poppler binary, default "pdftoppm"
	MaxPages  int    // 0 = no limit
}

// Loader renders a source file (PDF or raster image) into a Document of
// page images. PDF rendering shells out to poppler's pdftoppm; raster
// images load directly.
type Loader struct {
	cfg    LoaderConfig
	runner Runner
	logger *slog.Logger
}

func NewLoader(cfg LoaderConfig, logger *slog.Logger) *Loader {
	if cfg.DPI <= 0 {
		cfg.DPI = 300
	}
	if cfg.MaxWidth <= 0 {
		cfg.MaxWidth = 2048
	}
	if cfg.MaxHeight <= 0 {
		cfg.MaxHeight = 2048
	}
	if cfg.Pdftoppm == "" {
		cfg.Pdftoppm = "pdftoppm"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{cfg: cfg, runner: execRunner{}, logger: logger}
}

// WithRunner replaces the command runner; used by tests.
func (l *Loader) WithRunner(r Runner) *Loader {
	l.runner = r
	return l
}

// LoadDocument produces a Document with ordered Pages from path.
func (l *Loader) LoadDocument(ctx context.Context, path string) (*Document, error) {
	start := time.Now()

	switch constants.MapExtToFormat(filepath.Ext(path)) {
	case "PDF":
		doc, err := l.loadPDF(ctx, path)
		if err != nil {
			return nil, err
		}
		l.logger.Info("loader.ok", "path", path, "pages", len(doc.Pages), "elapsed_ms", time.Since(start).Milliseconds())
		return doc, nil
	case "IMAGE":
		doc, err := l.loadImage(path)
		if err != nil {
			return nil, err
		}
		l.logger.Info("loader.ok", "path", path, "pages", 1, "elapsed_ms", time.Since(start).Milliseconds())
		return doc, nil
	default:
		return nil, fmt.Errorf("unsupported file type: %s", path)
	}
}

func (l *Loader) loadImage(path string) (*Document, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read image: %w", err)
	}
	content, err := l.preparePage(raw)
	if err != nil {
		return nil, fmt.Errorf("prepare image %s: %w", path, err)
	}
	return &Document{
		Path:  path,
		Pages: []*Page{NewPage(1, content)},
	}, nil
}

func (l *Loader) loadPDF(ctx context.Context, path string) (*Document, error) {
	tmpDir, err := os.MkdirTemp("", "schemati-pp-*")
	if err != nil {
		return nil, err
	}
	defer func() {
		if rmErr := os.RemoveAll(tmpDir); rmErr != nil {
			l.logger.Warn("loader.tmp_cleanup_failed", "dir", tmpDir, "error", rmErr)
		}
	}()

	prefix := filepath.Join(tmpDir, "page")
	// pdftoppm -r <dpi> -png <in.pdf> <tmp/page>
	_, errb, err := l.runner.Run(ctx, l.cfg.Pdftoppm, "-r", fmt.Sprintf("%d", l.cfg.DPI), "-png", path, prefix)
	if err != nil {
		return nil, fmt.Errorf("render pdf %s: %w: %s", path, err, truncate(string(errb), 512))
	}

	// collect generated pngs (prefix-1.png, prefix-2.png, ...)
	matches, _ := filepath.Glob(prefix + "-*.png")
	sort.Strings(matches)
	if l.cfg.MaxPages > 0 && len(matches) > l.cfg.MaxPages {
		matches = matches[:l.cfg.MaxPages]
	}
	if len(matches) == 0 {
		return nil, fmt.Errorf("pdftoppm produced no page images for %s", path)
	}

	pages := make([]*Page, 0, len(matches))
	for i, m := range matches {
		raw, err := os.ReadFile(m)
		if err != nil {
			return nil, fmt.Errorf("read rendered page %d: %w", i+1, err)
		}
		content, err := l.preparePage(raw)
		if err != nil {
			return nil, fmt.Errorf("prepare page %d: %w", i+1, err)
		}
		pages = append(pages, NewPage(i+1, content))
	}
	return &Document{Path: path, Pages: pages}, nil
}

// preparePage decodes a page image and downscales it to the configured
// maximum dimensions, re-encoding as PNG only when the size changed.
func (l *Loader) preparePage(raw []byte) ([]byte, error) {
	img, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, err
	}
	fitted := FitWithin(img, l.cfg.MaxWidth, l.cfg.MaxHeight)
	if fitted == img {
		return raw, nil
	}

	b := fitted.Bounds()
	l.logger.Debug("loader.downscaled",
		"from_w", img.Bounds().Dx(), "from_h", img.Bounds().Dy(),
		"to_w", b.Dx(), "to_h", b.Dy(),
	)
	var buf bytes.Buffer
	if err := png.Encode(&buf, fitted); err != nil {
		return nil, fmt.Errorf("encode downscaled page: %w", err)
	}
	return buf.Bytes(), nil
}
