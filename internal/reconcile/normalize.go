package reconcile

import (
	"strings"
	"unicode"
)

// DefaultStripSet holds the punctuation characters removed when
// normalizing tags. Separators vary between drawings and between tiles
// of the same drawing ("P-101", "P101", "P_101", "P.101", "P 101" all
// name the same pump), so all of them collapse to one key. The set is
// configurable because the equivalence is a heuristic, not a standard.
const DefaultStripSet = "-_./ "

// Normalizer folds tag text variants onto one grouping key.
type Normalizer struct {
	strip map[rune]struct{}
}

// NewNormalizer builds a normalizer that removes the given characters.
// An empty stripSet falls back to DefaultStripSet.
func NewNormalizer(stripSet string) *Normalizer {
	if stripSet == "" {
		stripSet = DefaultStripSet
	}
	strip := make(map[rune]struct{}, len(stripSet))
	for _, r := range stripSet {
		strip[r] = struct{}{}
	}
	return &Normalizer{strip: strip}
}

// Key returns the grouping key for a tag: uppercased, all whitespace
// removed, and the configured punctuation stripped. An empty result
// means the tag carries no usable identity.
func (n *Normalizer) Key(tag string) string {
	var b strings.Builder
	b.Grow(len(tag))
	for _, r := range strings.ToUpper(tag) {
		if unicode.IsSpace(r) {
			continue
		}
		if _, drop := n.strip[r]; drop {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
