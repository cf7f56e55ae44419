package reconcile

import (
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/schemati/schemati/constants"
	"github.com/schemati/schemati/internal/document"
	"github.com/schemati/schemati/internal/llm"
)

// FragmentEntities is one fragment's contribution to a page: the raw
// extraction bundle tagged with the fragment's bounding box, plus any
// notes produced while extracting it (e.g. a contained extraction
// failure).
type FragmentEntities struct {
	Box      document.BBox
	Entities llm.PageEntities
	Notes    []string
}

// Reconciler merges per-fragment entity bundles into one de-duplicated
// page-level result. Overlapping tiles observe the same tags twice,
// sometimes with punctuation variants or clipped attributes; the merge
// is a set reconciliation keyed by normalized tag, with a deterministic
// tie-break for conflicting attribute values.
type Reconciler struct {
	norm   *Normalizer
	logger *slog.Logger
}

func NewReconciler(norm *Normalizer, logger *slog.Logger) *Reconciler {
	if norm == nil {
		norm = NewNormalizer("")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Reconciler{norm: norm, logger: logger}
}

// MergePage produces the PageResult for one page from its fragment
// bundles, given the page pixel dimensions (used by the tie-break).
//
// Merge rules:
//   - entities are partitioned by kind, then grouped by normalized tag;
//   - a group merges into one entity, attributes unioned key by key;
//   - conflicting non-empty values prefer the fragment whose center is
//     closer to the page center, then the lexicographically smaller
//     value — deterministic, not "best";
//   - title block fields merge per field name under the same rule;
//   - annotations dedupe only on exact text+location equality;
//   - warning strings union on exact equality.
func (r *Reconciler) MergePage(pageNumber, pageWidth, pageHeight int, frags []FragmentEntities) PageResult {
	start := time.Now()

	type group struct {
		members []Entity
	}
	var keyOrder []string
	byKey := make(map[string]*group)
	anon := 0

	for _, f := range frags {
		for _, e := range Flatten(f.Entities, f.Box) {
			var key string
			switch {
			case e.Kind == constants.KindAnnotation:
				// handled below, never merged by tag
				continue
			case e.Kind == constants.KindTitleBlockField:
				// field names are already canonical keys
				key = string(e.Kind) + "\x00" + e.Tag
			case r.norm.Key(e.Tag) == "":
				// no usable identity: emit as-is, never grouped
				anon++
				key = fmt.Sprintf("%s\x00#anon-%d", e.Kind, anon)
			default:
				key = string(e.Kind) + "\x00" + r.norm.Key(e.Tag)
			}
			g, ok := byKey[key]
			if !ok {
				g = &group{}
				byKey[key] = g
				keyOrder = append(keyOrder, key)
			}
			g.members = append(g.members, e)
		}
	}

	var merged []Entity
	duplicates := 0
	for _, key := range keyOrder {
		g := byKey[key]
		if len(g.members) > 1 {
			duplicates += len(g.members) - 1
		}
		merged = append(merged, mergeGroup(g.members, pageWidth, pageHeight))
	}

	res := PageResult{PageNumber: pageNumber}
	var titleFields []Entity
	for _, e := range merged {
		switch e.Kind {
		case constants.KindProcessLine:
			res.ProcessLines = append(res.ProcessLines, assembleProcessLine(e))
		case constants.KindInstrument:
			res.Instruments = append(res.Instruments, assembleInstrument(e))
		case constants.KindEquipment:
			res.Equipment = append(res.Equipment, assembleEquipment(e))
		case constants.KindValve:
			res.Valves = append(res.Valves, assembleValve(e))
		case constants.KindTitleBlockField:
			titleFields = append(titleFields, e)
		}
	}
	res.TitleBlock = assembleTitleBlock(titleFields)
	res.Annotations = dedupeAnnotations(frags)
	res.WarningsAndNotes = unionWarnings(frags)
	sortResult(&res)

	r.logger.Info("reconcile.ok",
		"page", pageNumber,
		"fragments", len(frags),
		"duplicates_collapsed", duplicates,
		"lines", len(res.ProcessLines),
		"instruments", len(res.Instruments),
		"equipment", len(res.Equipment),
		"valves", len(res.Valves),
		"annotations", len(res.Annotations),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return res
}

// mergeGroup collapses entities sharing a normalized key into one.
func mergeGroup(members []Entity, pageW, pageH int) Entity {
	if len(members) == 1 {
		return members[0]
	}

	// Canonical tag text: same tie-break as attribute conflicts.
	winner := members[0]
	for _, m := range members[1:] {
		if preferOver(m.Source, m.Tag, winner.Source, winner.Tag, pageW, pageH) {
			winner = m
		}
	}

	out := Entity{
		Kind:   winner.Kind,
		Tag:    winner.Tag,
		Source: winner.Source,
		Attrs:  make(map[string]string),
	}

	keys := attrKeyUnion(members)
	for _, k := range keys {
		var bestVal string
		var bestSrc document.BBox
		have := false
		for _, m := range members {
			v, ok := m.Attrs[k]
			if !ok || v == "" {
				continue
			}
			if !have || preferOver(m.Source, v, bestSrc, bestVal, pageW, pageH) {
				bestVal, bestSrc, have = v, m.Source, true
			}
		}
		if have {
			out.Attrs[k] = bestVal
		}
	}
	return out
}

// preferOver reports whether candidate (src a, value va) beats the
// incumbent (src b, value vb): closer fragment center to the page
// center first, lexicographically smaller value second.
func preferOver(a document.BBox, va string, b document.BBox, vb string, pageW, pageH int) bool {
	da := a.CenterDistanceSq(pageW, pageH)
	db := b.CenterDistanceSq(pageW, pageH)
	if da != db {
		return da < db
	}
	return va < vb
}

func attrKeyUnion(members []Entity) []string {
	seen := make(map[string]struct{})
	var keys []string
	for _, m := range members {
		for k := range m.Attrs {
			if _, ok := seen[k]; !ok {
				seen[k] = struct{}{}
				keys = append(keys, k)
			}
		}
	}
	sort.Strings(keys)
	return keys
}

// dedupeAnnotations keeps annotations in first-seen order, dropping
// only exact text+location duplicates. Free text is never merged.
func dedupeAnnotations(frags []FragmentEntities) []llm.Annotation {
	seen := make(map[string]struct{})
	var out []llm.Annotation
	for _, f := range frags {
		for _, a := range f.Entities.Annotations {
			key := a.Text + "\x00" + a.LocationDescription
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			out = append(out, a)
		}
	}
	return out
}

// unionWarnings collects model warnings and per-fragment notes, exact
// string dedup, first-seen order.
func unionWarnings(frags []FragmentEntities) []string {
	seen := make(map[string]struct{})
	var out []string
	add := func(s string) {
		if s == "" {
			return
		}
		if _, dup := seen[s]; dup {
			return
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	for _, f := range frags {
		for _, w := range f.Entities.WarningsAndNotes {
			add(w)
		}
		for _, n := range f.Notes {
			add(n)
		}
	}
	return out
}

// sortResult orders the set-valued slices by tag for stable output.
func sortResult(res *PageResult) {
	sort.Slice(res.ProcessLines, func(i, j int) bool {
		return res.ProcessLines[i].LineNumber < res.ProcessLines[j].LineNumber
	})
	sort.Slice(res.Instruments, func(i, j int) bool {
		return res.Instruments[i].Tag < res.Instruments[j].Tag
	})
	sort.Slice(res.Equipment, func(i, j int) bool {
		return res.Equipment[i].Tag < res.Equipment[j].Tag
	})
	sort.Slice(res.Valves, func(i, j int) bool {
		return res.Valves[i].Tag < res.Valves[j].Tag
	})
}
