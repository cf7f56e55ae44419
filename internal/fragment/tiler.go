package fragment

import (
	"bytes"
	"fmt"
	"image"
	"image/png"
	"log/slog"
	"math"
	"time"

	"github.com/schemati/schemati/internal/common"
	"github.com/schemati/schemati/internal/document"
)

// Config holds tiling parameters for one tiler instance.
type Config struct {
	TileWidth           int
	TileHeight          int
	OverlapRatio        float64
	ComplexityThreshold float64
	DynamicEnabled      bool
}

// Validate rejects non-positive tile dimensions and overlap ratios
// outside [0,1).
func (c Config) Validate() error {
	if c.TileWidth <= 0 || c.TileHeight <= 0 {
		return common.NewConfigurationError(fmt.Sprintf("tile dimensions must be positive, got %dx%d", c.TileWidth, c.TileHeight))
	}
	if c.OverlapRatio < 0 || c.OverlapRatio >= 1 {
		return common.NewConfigurationError(fmt.Sprintf("overlap ratio must be in [0,1), got %v", c.OverlapRatio))
	}
	if c.ComplexityThreshold < 0 || c.ComplexityThreshold > 1 {
		return common.NewConfigurationError(fmt.Sprintf("complexity threshold must be in [0,1], got %v", c.ComplexityThreshold))
	}
	return nil
}

// Tile is one cell of the tiling plan, in row-major order.
type Tile struct {
	Row, Col int
	Box      document.BBox
}

// Tiler computes a covering grid of overlapping tiles for a page and
// cuts the page image into encoded fragments.
type Tiler struct {
	cfg    Config
	filter *Filter
	logger *slog.Logger
}

// NewTiler validates cfg and builds a tiler. The complexity filter is
// only consulted when dynamic fragmentation is enabled.
func NewTiler(cfg Config, logger *slog.Logger) (*Tiler, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Tiler{
		cfg:    cfg,
		filter: NewFilter(cfg.ComplexityThreshold),
		logger: logger,
	}, nil
}

// Plan returns the tile grid for a page of the given size, row-major
// (top-to-bottom, left-to-right). Along each axis, consecutive tiles
// overlap by round(overlap_ratio x tile_dimension) pixels and the final
// tile runs to the page boundary instead of being padded past it. A
// page that fits in a single tile, or any page when dynamic
// fragmentation is off, yields one full-page tile.
func (t *Tiler) Plan(width, height int) []Tile {
	if !t.cfg.DynamicEnabled || (width <= t.cfg.TileWidth && height <= t.cfg.TileHeight) {
		return []Tile{{Row: 0, Col: 0, Box: document.BBox{X0: 0, Y0: 0, X1: width, Y1: height}}}
	}

	xs := axisStarts(width, t.cfg.TileWidth, t.cfg.OverlapRatio)
	ys := axisStarts(height, t.cfg.TileHeight, t.cfg.OverlapRatio)

	tiles := make([]Tile, 0, len(xs)*len(ys))
	for row, y := range ys {
		y1 := y + t.cfg.TileHeight
		if row == len(ys)-1 {
			y1 = height
		}
		for col, x := range xs {
			x1 := x + t.cfg.TileWidth
			if col == len(xs)-1 {
				x1 = width
			}
			tiles = append(tiles, Tile{
				Row: row,
				Col: col,
				Box: document.BBox{X0: x, Y0: y, X1: x1, Y1: y1},
			})
		}
	}
	return tiles
}

// axisStarts returns the tile start offsets along one axis. Interior
// tiles are nominal-sized and stepped by tileDim - overlapPx; the count
// is the minimal number of nominal tiles covering the extent.
func axisStarts(extent, tileDim int, overlapRatio float64) []int {
	if extent <= tileDim {
		return []int{0}
	}
	overlapPx := int(math.Round(overlapRatio * float64(tileDim)))
	step := tileDim - overlapPx
	if step < 1 {
		step = 1
	}
	n := (extent + tileDim - 1) / tileDim
	starts := make([]int, n)
	for i := range starts {
		starts[i] = i * step
	}
	return starts
}

// TilePage cuts the page into encoded fragments following the plan,
// dropping tiles the complexity filter marks as blank. Decoding
// failures are unrecoverable for the page.
func (t *Tiler) TilePage(page *document.Page) ([]document.PageFragment, error) {
	start := time.Now()

	img, err := page.Image()
	if err != nil {
		return nil, common.NewPageProcessingError(fmt.Sprintf("page %d", page.Number), err)
	}
	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()

	plan := t.Plan(width, height)
	if len(plan) == 1 {
		// Whole page as a single fragment: reuse the original encoding.
		return []document.PageFragment{{
			PageNumber:   page.Number,
			Row:          0,
			Col:          0,
			Box:          plan[0].Box,
			OverlapRatio: t.cfg.OverlapRatio,
			Content:      page.Content,
		}}, nil
	}

	fragments := make([]document.PageFragment, 0, len(plan))
	skipped := 0
	for _, tile := range plan {
		crop := cropImage(img, tile.Box)

		if t.cfg.DynamicEnabled && t.cfg.ComplexityThreshold > 0 {
			score := t.filter.Score(crop)
			if t.filter.SkipScore(score) {
				t.logger.Debug("tiler.skip_tile",
					"page", page.Number, "box", tile.Box.String(),
					"score", score, "threshold", t.cfg.ComplexityThreshold,
				)
				skipped++
				continue
			}
		}

		content, err := encodePNG(crop)
		if err != nil {
			return nil, common.NewPageProcessingError(fmt.Sprintf("encode tile %s of page %d", tile.Box, page.Number), err)
		}
		fragments = append(fragments, document.PageFragment{
			PageNumber:   page.Number,
			Row:          tile.Row,
			Col:          tile.Col,
			Box:          tile.Box,
			OverlapRatio: t.cfg.OverlapRatio,
			Content:      content,
		})
	}

	t.logger.Info("tiler.ok",
		"page", page.Number,
		"width", width, "height", height,
		"tiles", len(plan), "kept", len(fragments), "skipped", skipped,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return fragments, nil
}

type subImager interface {
	SubImage(r image.Rectangle) image.Image
}

// cropImage extracts the tile region. Most decoders return types with
// SubImage; anything else gets copied pixel by pixel.
func cropImage(img image.Image, box document.BBox) image.Image {
	r := box.Rect().Add(img.Bounds().Min)
	if si, ok := img.(subImager); ok {
		return si.SubImage(r)
	}
	dst := image.NewRGBA(image.Rect(0, 0, r.Dx(), r.Dy()))
	for y := 0; y < r.Dy(); y++ {
		for x := 0; x < r.Dx(); x++ {
			dst.Set(x, y, img.At(r.Min.X+x, r.Min.Y+y))
		}
	}
	return dst
}

func encodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
