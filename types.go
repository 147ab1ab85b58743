package minidoc

import (
	"errors"

	"golang.org/x/net/html"
)

// NodePath represents the traversal steps from the root to a target node.
// Example: [0, 1, 3] means root -> child[0] -> child[1] -> child[3]
type NodePath []int

// Point is one boundary of a DetachedRange: a root-relative node path plus
// an offset inside the addressed node (byte offset for text nodes, child
// index for elements). Paths are computed against the normalized view of
// the tree, so they survive a serialize/reparse round trip.
type Point struct {
	Path   NodePath `json:"path"`
	Offset int      `json:"offset"`
}

// DetachedRange is a serializable encoding of a selection. End is nil for a
// collapsed caret.
type DetachedRange struct {
	Start Point  `json:"start"`
	End   *Point `json:"end,omitempty"`
}

// EmptyDetachedRange is the sentinel used as undo-history context before any
// real selection has been captured. It never attaches.
func EmptyDetachedRange() DetachedRange {
	return DetachedRange{Start: Point{Offset: -1}}
}

// IsEmpty reports whether d is the no-caret sentinel.
func (d DetachedRange) IsEmpty() bool {
	return len(d.Start.Path) == 0 && d.Start.Offset < 0
}

// Boundary is one live end of a Range: a node plus an offset (byte offset
// within a text node's data, child index within an element).
type Boundary struct {
	Node   *html.Node
	Offset int
}

// Range is a pair of boundary points inside the editable root. A collapsed
// range denotes a caret. Unlike a browser range it holds no live-update
// machinery; callers receive a fresh Range from every structural edit.
type Range struct {
	Start Boundary
	End   Boundary
}

// Caret builds a collapsed range at the given point.
func Caret(node *html.Node, offset int) *Range {
	b := Boundary{Node: node, Offset: offset}
	return &Range{Start: b, End: b}
}

// NewRange builds a range spanning two boundary points.
func NewRange(startNode *html.Node, startOffset int, endNode *html.Node, endOffset int) *Range {
	return &Range{
		Start: Boundary{Node: startNode, Offset: startOffset},
		End:   Boundary{Node: endNode, Offset: endOffset},
	}
}

// Collapsed reports whether the range denotes a caret.
func (r *Range) Collapsed() bool {
	return r.Start.Node == r.End.Node && r.Start.Offset == r.End.Offset
}

// CollapseToStart returns a caret at the range's start point.
func (r *Range) CollapseToStart() *Range {
	return Caret(r.Start.Node, r.Start.Offset)
}

// CollapseToEnd returns a caret at the range's end point.
func (r *Range) CollapseToEnd() *Range {
	return Caret(r.End.Node, r.End.Offset)
}

// StrDelta is the minimal single-contiguous-span difference between two
// serializations of the document: at byte Index, Old was replaced by New.
type StrDelta struct {
	Index int    `json:"index"`
	Old   string `json:"old"`
	New   string `json:"new"`
}

// HistoryState is the externally visible shape of one history snapshot.
type HistoryState struct {
	Doc string        `json:"doc"`
	Ctx DetachedRange `json:"ctx"`
}

var (
	// ErrNoSelection marks clipboard operations invoked without a usable
	// selection. Intent dispatch instead reports the intent unhandled.
	ErrNoSelection = errors.New("no selection inside editable root")

	// ErrUnknownCard is returned when mounting encounters a card element
	// whose type has no registered definition.
	ErrUnknownCard = errors.New("unknown card type")

	// ErrBadMiddleware is returned when a composition unit fails during
	// editor construction.
	ErrBadMiddleware = errors.New("invalid middleware")

	// ErrUploadCanceled mirrors the zero-status failure of an aborted
	// network request.
	ErrUploadCanceled = errors.New("upload canceled (status 0)")
)
