package constants

// EntityKind is the closed set of extraction categories on a P&ID page.
// The reconciler switches on this tag; there is no open hierarchy.
type EntityKind string

const (
	KindInstrument      EntityKind = "instrument"
	KindEquipment       EntityKind = "equipment"
	KindValve           EntityKind = "valve"
	KindProcessLine     EntityKind = "process_line"
	KindAnnotation      EntityKind = "annotation"
	KindTitleBlockField EntityKind = "title_block_field"
)

// EntityKinds lists every kind in the canonical partition order used by
// the reconciler.
var EntityKinds = []EntityKind{
	KindProcessLine,
	KindInstrument,
	KindEquipment,
	KindValve,
	KindAnnotation,
	KindTitleBlockField,
}
