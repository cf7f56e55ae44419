package document

import (
	"bytes"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"sync"
)

// Page holds one page of a document: its page number (1-based, unique
// within the document) and its encoded image content. The decoded pixel
// buffer is cached on first use. Pages are immutable after creation and
// owned exclusively by their parent Document.
type Page struct {
	Number  int
	Content []byte

	once sync.Once
	img  image.Image
	err  error
}

// NewPage creates a page from encoded image bytes (PNG or JPEG).
func NewPage(number int, content []byte) *Page {
	return &Page{Number: number, Content: content}
}

// Image decodes the page content into a pixel buffer, caching the
// result. A decode failure is sticky and returned on every call.
func (p *Page) Image() (image.Image, error) {
	p.once.Do(func() {
		img, _, err := image.Decode(bytes.NewReader(p.Content))
		if err != nil {
			p.err = fmt.Errorf("decode page %d: %w", p.Number, err)
			return
		}
		p.img = img
	})
	return p.img, p.err
}

// PageFragment is a rectangular sub-region of a page produced by the
// tiler. Fragments are ephemeral pipeline artifacts: they carry a
// back-reference to the parent page number but are not owned by the
// page and are discarded after extraction.
type PageFragment struct {
	PageNumber   int
	Row, Col     int
	Box          BBox
	OverlapRatio float64
	Content      []byte
}

// Document is an ordered collection of pages rendered from one source
// file.
type Document struct {
	Path  string
	Pages []*Page
}
