package model

import "strings"

// ItemKind is a coarse category derived from an item's free-text type label.
type ItemKind string

const (
	KindLecture   ItemKind = "lecture"
	KindExercise  ItemKind = "exercise"
	KindLanguage  ItemKind = "language"
	KindSeminar   ItemKind = "seminar"
	KindExam      ItemKind = "exam"
	KindCancelled ItemKind = "cancelled"
	KindUnknown   ItemKind = "unknown"
)

// CancelledType is the label upstream uses for a moved or cancelled session.
const CancelledType = "Przeniesienie zajęć"

// ResolveKind classifies a type label. Matching is by prefix on the lowered
// label because upstream decorates labels freely ("ćwiczenia e-learning",
// "wykład do wyboru").
func ResolveKind(label string) ItemKind {
	if label == CancelledType {
		return KindCancelled
	}
	l := strings.ToLower(strings.TrimSpace(label))
	switch {
	case strings.HasPrefix(l, "wykład"):
		return KindLecture
	case strings.HasPrefix(l, "ćwiczenia"),
		strings.HasPrefix(l, "laboratorium"),
		strings.HasPrefix(l, "konwersatorium"),
		strings.HasPrefix(l, "projekt"):
		return KindExercise
	case strings.HasPrefix(l, "lektorat"):
		return KindLanguage
	case strings.HasPrefix(l, "seminarium"), strings.HasPrefix(l, "proseminarium"):
		return KindSeminar
	case strings.HasPrefix(l, "egzamin"), strings.Contains(l, "zaliczenie"):
		return KindExam
	default:
		return KindUnknown
	}
}
