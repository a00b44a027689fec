// Package violation implements the violation state machine: a closed set of
// violation kinds, an append-only audit trail, and the monitor that decides
// when a stream of host-reported events crosses the line into forced
// submission.
package violation

// Class is the severity class of a violation kind.
type Class string

const (
	// ClassInstant marks deliberate cheating signals with no accidental
	// cause. A single occurrence forces submission.
	ClassInstant Class = "instant"
	// ClassEnvironmental marks context-loss events that can happen by
	// accident once. Tolerated up to the strike limit.
	ClassEnvironmental Class = "environmental"
)

// Kind identifies one violation kind. The set is closed: events with any
// other kind are discarded, never recorded.
type Kind string

const (
	KindFullscreenExit  Kind = "fullscreen_exit"
	KindTabSwitch       Kind = "tab_switch"
	KindWindowBlur      Kind = "window_blur"
	KindCopyAttempt     Kind = "copy_attempt"
	KindPasteAttempt    Kind = "paste_attempt"
	KindCutAttempt      Kind = "cut_attempt"
	KindDropAttempt     Kind = "drop_attempt"
	KindDevtoolsAttempt Kind = "devtools_attempt"
)

var classes = map[Kind]Class{
	KindFullscreenExit:  ClassEnvironmental,
	KindTabSwitch:       ClassEnvironmental,
	KindWindowBlur:      ClassEnvironmental,
	KindCopyAttempt:     ClassInstant,
	KindPasteAttempt:    ClassInstant,
	KindCutAttempt:      ClassInstant,
	KindDropAttempt:     ClassInstant,
	KindDevtoolsAttempt: ClassInstant,
}

var descriptions = map[Kind]string{
	KindFullscreenExit:  "fullscreen exited",
	KindTabSwitch:       "tab or window switch detected",
	KindWindowBlur:      "window lost focus",
	KindCopyAttempt:     "copy attempt detected",
	KindPasteAttempt:    "paste attempt detected",
	KindCutAttempt:      "cut attempt detected",
	KindDropAttempt:     "external content drop detected",
	KindDevtoolsAttempt: "developer tools shortcut detected",
}

// ParseKind maps a raw host-reported kind string to a Kind.
// Unrecognized strings return ok=false and must be discarded.
func ParseKind(s string) (Kind, bool) {
	k := Kind(s)
	_, ok := classes[k]
	return k, ok
}

// Class returns the severity class for a recognized kind.
func (k Kind) Class() Class {
	return classes[k]
}

// Valid reports whether k belongs to the closed kind set.
func (k Kind) Valid() bool {
	_, ok := classes[k]
	return ok
}

// Description is a short human-readable label for warning messages.
func (k Kind) Description() string {
	return descriptions[k]
}

// Kinds returns the closed set in a stable order.
func Kinds() []Kind {
	return []Kind{
		KindFullscreenExit,
		KindTabSwitch,
		KindWindowBlur,
		KindCopyAttempt,
		KindPasteAttempt,
		KindCutAttempt,
		KindDropAttempt,
		KindDevtoolsAttempt,
	}
}
