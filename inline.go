package minidoc

import (
	"strings"

	"golang.org/x/net/html"
)

// NormalizeTagName collapses presentational/semantic synonyms so toggling
// recognizes pre-existing markup using either spelling.
func NormalizeTagName(tag string) string {
	switch t := strings.ToLower(tag); t {
	case "b":
		return "strong"
	case "i":
		return "em"
	default:
		return t
	}
}

// matchesTag reports whether n is an element of the normalized tag.
func matchesTag(n *html.Node, tag string) bool {
	return NormalizeTagName(tagName(n)) == tag
}

// closestMatch walks ancestors of n (inclusive) up to root looking for a
// matching inline element.
func closestMatch(root, n *html.Node, tag string) *html.Node {
	for ; n != nil && n != root; n = n.Parent {
		if matchesTag(n, tag) {
			return n
		}
	}
	return nil
}

// containsMatch reports whether any descendant of n matches tag.
func containsMatch(n *html.Node, tag string) bool {
	found := false
	iterNodes(n, func(c *html.Node) bool {
		if c != n && matchesTag(c, tag) {
			found = true
		}
		return found
	})
	return found
}

// unwrapNode replaces el with its children.
func unwrapNode(el *html.Node) {
	parent := el.Parent
	for c := el.FirstChild; c != nil; {
		next := c.NextSibling
		el.RemoveChild(c)
		parent.InsertBefore(c, el)
		c = next
	}
	parent.RemoveChild(el)
}

// stripTag unwraps every matching descendant of n, depth first.
func stripTag(n *html.Node, tag string) {
	for c := n.FirstChild; c != nil; {
		next := c.NextSibling
		stripTag(c, tag)
		if matchesTag(c, tag) {
			unwrapNode(c)
		}
		c = next
	}
}

// pruneEmptyMatches drops matching elements under n that ended up with no
// content. Idempotent cleanup, safe to run from multiple call sites.
func pruneEmptyMatches(n *html.Node, tag string) {
	for c := n.FirstChild; c != nil; {
		next := c.NextSibling
		pruneEmptyMatches(c, tag)
		if matchesTag(c, tag) && IsEmptyNode(c, false) {
			detach(c)
		}
		c = next
	}
}

// wrapInlinable wraps one inlinable sub-range in a new element of tag, then
// makes the wrapper contiguous: merging with adjacent matching siblings and
// dropping the wrapper again when a matching ancestor already covers it.
// attrs (may be nil) is applied to the new wrapper; anchors carry href this
// way.
func wrapInlinable(root *html.Node, sub *Range, tag string, attrs Attrs) {
	ca := commonAncestor(root, sub.Start.Node, sub.End.Node)
	tailEnd := splitBoundary(ca, sub.End)
	tailStart := splitBoundary(ca, sub.Start)
	if tailStart == nil || tailStart == tailEnd {
		return
	}
	wrapper := El(tag, attrs)
	ca.InsertBefore(wrapper, tailStart)
	for n := tailStart; n != nil && n != tailEnd; {
		next := n.NextSibling
		ca.RemoveChild(n)
		wrapper.AppendChild(n)
		n = next
	}
	stripTag(wrapper, tag)

	if closestMatch(root, wrapper.Parent, tag) != nil {
		// already inside a matching wrap; the extra layer is redundant
		unwrapNode(wrapper)
		return
	}
	if prev := wrapper.PrevSibling; prev != nil && matchesTag(prev, tag) {
		moveChildren(prev, wrapper)
		detach(wrapper)
		wrapper = prev
		normalizeNode(wrapper)
	}
	if next := wrapper.NextSibling; next != nil && matchesTag(next, tag) {
		moveChildren(wrapper, next)
		detach(next)
		normalizeNode(wrapper)
	}
}

// unwrapInlinable removes the matching formatting from one inlinable
// sub-range. Splitting the matching ancestor clones any other inline
// wrappers along the boundary path, which is what reconstitutes the
// non-matching tags the extraction would otherwise discard.
func unwrapInlinable(root *html.Node, sub *Range, tag string) {
	container := commonAncestor(root, sub.Start.Node, sub.End.Node)
	if m := closestMatch(root, sub.Start.Node, tag); m != nil {
		container = commonAncestor(root, m, sub.End.Node)
		if container == m {
			container = m.Parent
		}
	}
	tailEnd := splitBoundary(container, sub.End)
	tailStart := splitBoundary(container, sub.Start)
	for n := tailStart; n != nil && n != tailEnd; {
		next := n.NextSibling
		stripTag(n, tag)
		if matchesTag(n, tag) {
			unwrapNode(n)
		}
		n = next
	}
	pruneEmptyMatches(container, tag)
}

// ToggleInlineRange applies or removes inline formatting across an
// arbitrarily shaped selection. The enable/disable decision comes from the
// first inlinable sub-range: when its anchor is neither inside nor itself
// containing a matching element, the toggle enables; otherwise it disables.
// Returns the post-edit selection spanning the toggled content.
func ToggleInlineRange(root *html.Node, r *Range, tagIn string) *Range {
	tag := NormalizeTagName(tagIn)
	subs := InlinableRanges(root, r)
	if len(subs) == 0 {
		return r
	}

	// The decision anchor is the first position holding actual content: a
	// boundary at the very end of a text node belongs to whatever follows.
	first := subs[0]
	anchor := first.Start
	if anchor.Node.Type == html.TextNode && anchor.Offset == len(anchor.Node.Data) && anchor.Node.NextSibling != nil {
		anchor = caretAtStart(anchor.Node.NextSibling)
	}
	enable := closestMatch(root, anchor.Node, tag) == nil &&
		!containsMatch(anchor.Node, tag)

	// Toggling rewrites text nodes; capture block-relative text offsets so
	// the result selection can be re-resolved afterwards.
	startBlock := closestBlock(root, first.Start.Node)
	endBlock := closestBlock(root, subs[len(subs)-1].End.Node)
	startOff := textOffsetOfBoundary(startBlock, first.Start)
	endOff := textOffsetOfBoundary(endBlock, subs[len(subs)-1].End)

	for _, sub := range subs {
		if enable {
			wrapInlinable(root, sub, tag, nil)
		} else {
			unwrapInlinable(root, sub, tag)
		}
	}
	pruneEmptyMatches(commonAncestor(root, startBlock, endBlock), tag)

	s := boundaryAtTextOffset(startBlock, startOff)
	e := boundaryAtTextOffset(endBlock, endOff)
	return &Range{Start: s, End: e}
}

// ToggleInline toggles inline formatting for the current selection. On a
// collapsed caret nothing in the tree changes; the normalized tag instead
// joins the pending set applied to the next typed character.
func (ed *Editor) ToggleInline(tagIn string) {
	tag := NormalizeTagName(tagIn)
	r, ok := ed.Selection()
	if !ok {
		return
	}
	if r.Collapsed() {
		if ed.toggledTags[tag] {
			delete(ed.toggledTags, tag)
		} else {
			ed.toggledTags[tag] = true
		}
		ed.emit(EventCaretChange)
		return
	}

	ed.isTogglingInline = true
	out := ToggleInlineRange(ed.root, r, tag)
	ed.SetSelection(out)
	ed.isTogglingInline = false
	ed.recomputeActiveTags()
	ed.noteChange()
}

// IsActive reports the effective format state at the caret: really-wrapped
// XOR queued-for-next-keystroke.
func (ed *Editor) IsActive(tagIn string) bool {
	tag := NormalizeTagName(tagIn)
	return ed.activeTags[tag] != ed.toggledTags[tag]
}

// recomputeActiveTags rebuilds the set of tags wrapping the caret by walking
// from the caret's node up to (but excluding) the root. A non-collapsed
// selection starting at the very end of a text node is anchored on the
// following content, which is what it actually covers.
func (ed *Editor) recomputeActiveTags() {
	ed.activeTags = map[string]bool{}
	r, ok := ed.Selection()
	if !ok {
		return
	}
	start := r.Start
	if !r.Collapsed() && start.Node.Type == html.TextNode &&
		start.Offset == len(start.Node.Data) && start.Node.NextSibling != nil {
		start = caretAtStart(start.Node.NextSibling)
	}
	for n := start.Node; n != nil && n != ed.root; n = n.Parent {
		if n.Type == html.ElementNode {
			ed.activeTags[NormalizeTagName(tagName(n))] = true
		}
	}
}

// applyPendingToggles wraps freshly inserted text in every queued tag, then
// clears the queue. The inserted span is addressed by block text offsets.
func (ed *Editor) applyPendingToggles(block *html.Node, startOff, endOff int) *Range {
	s := boundaryAtTextOffset(block, startOff)
	e := boundaryAtTextOffset(block, endOff)
	out := &Range{Start: s, End: e}
	ed.isTogglingInline = true
	for tag := range ed.toggledTags {
		out = ToggleInlineRange(ed.root, out, tag)
	}
	ed.isTogglingInline = false
	ed.toggledTags = map[string]bool{}
	return out.CollapseToEnd()
}
