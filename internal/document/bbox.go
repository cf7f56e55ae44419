package document

import (
	"fmt"
	"image"
)

// BBox is a pixel bounding box within a page, half-open on the
// right/bottom edges: [X0,X1) x [Y0,Y1).
type BBox struct {
	X0 int `json:"x0"`
	Y0 int `json:"y0"`
	X1 int `json:"x1"`
	Y1 int `json:"y1"`
}

func (b BBox) Width() int  { return b.X1 - b.X0 }
func (b BBox) Height() int { return b.Y1 - b.Y0 }

func (b BBox) Rect() image.Rectangle {
	return image.Rect(b.X0, b.Y0, b.X1, b.Y1)
}

func (b BBox) String() string {
	return fmt.Sprintf("(%d,%d,%d,%d)", b.X0, b.Y0, b.X1, b.Y1)
}

// CenterDistanceSq returns the squared distance between the box center
// and the page center, in quarter-pixel units. Integer math keeps the
// comparison exact for tie-breaking.
func (b BBox) CenterDistanceSq(pageWidth, pageHeight int) int64 {
	// Box center doubled vs page center doubled avoids fractions.
	dx := int64(b.X0+b.X1) - int64(pageWidth)
	dy := int64(b.Y0+b.Y1) - int64(pageHeight)
	return dx*dx + dy*dy
}
