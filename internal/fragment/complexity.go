package fragment

import (
	"image"
	"image/color"
)

// whiteCutoff is the 8-bit luminance above which a pixel counts as
// background. 240 rather than 255 tolerates scanner noise and JPEG
// ringing around otherwise-white paper.
const whiteCutoff = 240

// Filter scores a tile's visual information density and decides whether
// it is worth sending to the model. The score is the fraction of
// non-background pixels: 0.0 for a perfectly white tile, approaching
// 1.0 for dense linework. This is a heuristic; the only property callers
// may rely on is that an emptier tile never scores higher than a busier
// one.
type Filter struct {
	Threshold float64
}

func NewFilter(threshold float64) *Filter {
	return &Filter{Threshold: threshold}
}

// Score returns the non-background pixel fraction in [0,1].
func (f *Filter) Score(img image.Image) float64 {
	if img == nil {
		return 0
	}
	b := img.Bounds()
	total := b.Dx() * b.Dy()
	if total == 0 {
		return 0
	}

	var busy int
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			g := color.GrayModel.Convert(img.At(x, y)).(color.Gray)
			if g.Y < whiteCutoff {
				busy++
			}
		}
	}
	return float64(busy) / float64(total)
}

// ShouldSkip reports whether the tile scores below the threshold and
// should be treated as blank. A zero threshold keeps every tile.
func (f *Filter) ShouldSkip(img image.Image) bool {
	if f == nil || f.Threshold <= 0 {
		return false
	}
	return f.SkipScore(f.Score(img))
}

// SkipScore applies the threshold to an already-computed score, so a
// caller that also logs the score only scans the tile once.
func (f *Filter) SkipScore(score float64) bool {
	if f == nil || f.Threshold <= 0 {
		return false
	}
	return score < f.Threshold
}
