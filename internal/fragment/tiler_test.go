package fragment

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/schemati/schemati/internal/document"
)

func mustTiler(t *testing.T, cfg Config) *Tiler {
	t.Helper()
	tiler, err := NewTiler(cfg, nil)
	require.NoError(t, err)
	return tiler
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"valid", Config{TileWidth: 1024, TileHeight: 1024, OverlapRatio: 0.1}, false},
		{"zero overlap", Config{TileWidth: 512, TileHeight: 512}, false},
		{"zero width", Config{TileWidth: 0, TileHeight: 1024}, true},
		{"negative height", Config{TileWidth: 1024, TileHeight: -1}, true},
		{"overlap one", Config{TileWidth: 1024, TileHeight: 1024, OverlapRatio: 1.0}, true},
		{"negative overlap", Config{TileWidth: 1024, TileHeight: 1024, OverlapRatio: -0.1}, true},
		{"threshold above one", Config{TileWidth: 1024, TileHeight: 1024, ComplexityThreshold: 1.5}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewTiler(tt.cfg, nil)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestPlanSingleTileWhenDynamicDisabled(t *testing.T) {
	tiler := mustTiler(t, Config{TileWidth: 1024, TileHeight: 1024, OverlapRatio: 0.1})

	plan := tiler.Plan(5000, 3000)
	require.Len(t, plan, 1)
	assert.Equal(t, document.BBox{X0: 0, Y0: 0, X1: 5000, Y1: 3000}, plan[0].Box)
}

func TestPlanSingleTileWhenPageFits(t *testing.T) {
	tiler := mustTiler(t, Config{TileWidth: 1024, TileHeight: 1024, OverlapRatio: 0.1, DynamicEnabled: true})

	plan := tiler.Plan(800, 600)
	require.Len(t, plan, 1)
	assert.Equal(t, document.BBox{X0: 0, Y0: 0, X1: 800, Y1: 600}, plan[0].Box)
}

func TestPlanWidePage(t *testing.T) {
	tiler := mustTiler(t, Config{TileWidth: 1024, TileHeight: 1024, OverlapRatio: 0.1, DynamicEnabled: true})

	plan := tiler.Plan(2048, 1024)
	require.Len(t, plan, 2)

	first, second := plan[0], plan[1]
	assert.Equal(t, 0, first.Col)
	assert.Equal(t, 1, second.Col)
	assert.Equal(t, document.BBox{X0: 0, Y0: 0, X1: 1024, Y1: 1024}, first.Box)
	assert.Equal(t, document.BBox{X0: 922, Y0: 0, X1: 2048, Y1: 1024}, second.Box)

	// round(0.1 * 1024) = 102 pixels of shared columns
	assert.Equal(t, 102, first.Box.X1-second.Box.X0)
}

func TestPlanCoversPage(t *testing.T) {
	cfg := Config{TileWidth: 1024, TileHeight: 1024, OverlapRatio: 0.1, DynamicEnabled: true}
	tiler := mustTiler(t, cfg)

	sizes := []struct{ w, h int }{
		{2048, 1024},
		{3000, 2200},
		{1025, 1025},
		{4096, 4096},
	}
	for _, s := range sizes {
		plan := tiler.Plan(s.w, s.h)
		require.NotEmpty(t, plan)

		covered := make([]bool, s.w)
		for _, tile := range plan {
			assert.GreaterOrEqual(t, tile.Box.X0, 0)
			assert.GreaterOrEqual(t, tile.Box.Y0, 0)
			assert.LessOrEqual(t, tile.Box.X1, s.w)
			assert.LessOrEqual(t, tile.Box.Y1, s.h)
			assert.Positive(t, tile.Box.Width())
			assert.Positive(t, tile.Box.Height())
			if tile.Row == 0 {
				for x := tile.Box.X0; x < tile.Box.X1; x++ {
					covered[x] = true
				}
			}
		}
		for x, ok := range covered {
			assert.True(t, ok, "column %d uncovered for %dx%d", x, s.w, s.h)
		}
	}
}

func TestPlanOverlapMatchesRatio(t *testing.T) {
	cfg := Config{TileWidth: 500, TileHeight: 500, OverlapRatio: 0.2, DynamicEnabled: true}
	tiler := mustTiler(t, cfg)

	plan := tiler.Plan(1500, 500)
	require.Len(t, plan, 3)

	want := int(math.Round(0.2 * 500))
	assert.Equal(t, plan[0].Box.X1-plan[1].Box.X0, want)
	// interior tiles are nominal-sized
	assert.Equal(t, 500, plan[0].Box.Width())
	assert.Equal(t, 500, plan[1].Box.Width())
}

// fill paints a solid rectangle of the given gray level.
func fill(img *image.Gray, r image.Rectangle, level uint8) {
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			img.SetGray(x, y, color.Gray{Y: level})
		}
	}
}

func encodeGray(t *testing.T, img *image.Gray) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestTilePageQuadrants(t *testing.T) {
	img := image.NewGray(image.Rect(0, 0, 64, 64))
	fill(img, img.Bounds(), 0) // all dark, nothing skippable

	page := document.NewPage(1, encodeGray(t, img))
	tiler := mustTiler(t, Config{TileWidth: 32, TileHeight: 32, DynamicEnabled: true})

	frags, err := tiler.TilePage(page)
	require.NoError(t, err)
	require.Len(t, frags, 4)

	for _, f := range frags {
		assert.Equal(t, 1, f.PageNumber)
		assert.Equal(t, 32, f.Box.Width())
		assert.Equal(t, 32, f.Box.Height())

		decoded, _, err := image.Decode(bytes.NewReader(f.Content))
		require.NoError(t, err)
		assert.Equal(t, 32, decoded.Bounds().Dx())
		assert.Equal(t, 32, decoded.Bounds().Dy())
	}
}

func TestTilePageSkipsBlankTiles(t *testing.T) {
	img := image.NewGray(image.Rect(0, 0, 64, 64))
	fill(img, img.Bounds(), 255)           // white page
	fill(img, image.Rect(4, 4, 28, 28), 0) // linework only in the top-left quadrant

	page := document.NewPage(1, encodeGray(t, img))
	tiler := mustTiler(t, Config{
		TileWidth: 32, TileHeight: 32,
		ComplexityThreshold: 0.05,
		DynamicEnabled:      true,
	})

	frags, err := tiler.TilePage(page)
	require.NoError(t, err)
	require.Len(t, frags, 1)
	assert.Equal(t, document.BBox{X0: 0, Y0: 0, X1: 32, Y1: 32}, frags[0].Box)
}

func TestTilePageSinglePlanReusesContent(t *testing.T) {
	img := image.NewGray(image.Rect(0, 0, 64, 64))
	content := encodeGray(t, img)
	page := document.NewPage(3, content)

	tiler := mustTiler(t, Config{TileWidth: 1024, TileHeight: 1024})
	frags, err := tiler.TilePage(page)
	require.NoError(t, err)
	require.Len(t, frags, 1)
	assert.Equal(t, content, frags[0].Content)
	assert.Equal(t, 3, frags[0].PageNumber)
}

func TestTilePageUndecodable(t *testing.T) {
	page := document.NewPage(1, []byte("not an image"))
	tiler := mustTiler(t, Config{TileWidth: 1024, TileHeight: 1024})

	_, err := tiler.TilePage(page)
	assert.Error(t, err)
}
