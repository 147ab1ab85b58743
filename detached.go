package minidoc

import "golang.org/x/net/html"

// DetachRange converts a live range into a root-relative path encoding that
// survives serializing and rebuilding the tree. Indices and offsets are
// computed as if the tree had been normalized (adjacent text siblings
// merged, empty text nodes dropped) without actually mutating it: real
// normalization of a live tree breaks native selection state in at least
// one browser engine, so the live side only ever counts virtually.
func DetachRange(r *Range, root *html.Node) (DetachedRange, bool) {
	if r == nil {
		return DetachedRange{}, false
	}
	start, ok := detachBoundary(root, r.Start)
	if !ok {
		return DetachedRange{}, false
	}
	if r.Collapsed() {
		return DetachedRange{Start: start}, true
	}
	end, ok := detachBoundary(root, r.End)
	if !ok {
		return DetachedRange{}, false
	}
	return DetachedRange{Start: start, End: &end}, true
}

// AttachRange resolves a detached range against a (possibly rebuilt) root.
// Each visited parent is actually normalized on the way down, which is safe
// here: attachment only happens on trees freshly rebuilt from serialized
// content, never on a live interactive selection. Returns false when the
// stored path no longer resolves.
func AttachRange(d DetachedRange, root *html.Node) (*Range, bool) {
	if d.IsEmpty() {
		return nil, false
	}
	start, ok := attachBoundary(root, d.Start)
	if !ok {
		return nil, false
	}
	if d.End == nil {
		return Caret(start.Node, start.Offset), true
	}
	end, ok := attachBoundary(root, *d.End)
	if !ok {
		return nil, false
	}
	return &Range{Start: start, End: end}, true
}

func detachBoundary(root *html.Node, b Boundary) (Point, bool) {
	if b.Node == nil || !containsNode(root, b.Node) {
		return Point{}, false
	}
	offset := b.Offset
	if b.Node.Type == html.TextNode {
		// Text siblings preceding the boundary merge into the same run
		// under normalization, so their lengths shift the offset.
		for p := b.Node.PrevSibling; p != nil && p.Type == html.TextNode; p = p.PrevSibling {
			offset += len(p.Data)
		}
	} else {
		offset = normalizedOffset(b.Node, offset)
	}

	var path NodePath
	node := b.Node
	for node != root {
		parent := node.Parent
		if parent == nil {
			return Point{}, false
		}
		idx := normalizedChildIndex(parent, node)
		if idx < 0 {
			return Point{}, false
		}
		path = append(NodePath{idx}, path...)
		node = parent
	}
	return Point{Path: path, Offset: offset}, true
}

func attachBoundary(root *html.Node, p Point) (Boundary, bool) {
	node := root
	for _, idx := range p.Path {
		normalizeNode(node)
		child := nthChild(node, idx)
		if child == nil {
			return Boundary{}, false
		}
		node = child
	}
	if node.Type == html.TextNode {
		if p.Offset < 0 || p.Offset > len(node.Data) {
			return Boundary{}, false
		}
	} else {
		normalizeNode(node)
		if p.Offset < 0 || p.Offset > childCount(node) {
			return Boundary{}, false
		}
	}
	return Boundary{Node: node, Offset: p.Offset}, true
}

// normalizedChildIndex returns the index child would have among parent's
// children after a Node.normalize() pass: runs of adjacent text nodes count
// once, and empty text nodes neither count nor break a run.
func normalizedChildIndex(parent, child *html.Node) int {
	vi := -1
	prevWasText := false
	for c := parent.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.TextNode && c.Data == "" {
			if c == child {
				if prevWasText {
					return vi
				}
				return vi + 1
			}
			continue
		}
		isText := c.Type == html.TextNode
		if !(isText && prevWasText) {
			vi++
		}
		if c == child {
			return vi
		}
		prevWasText = isText
	}
	return -1
}

// normalizedOffset converts a child-index offset within an element into its
// post-normalization equivalent.
func normalizedOffset(parent *html.Node, offset int) int {
	vi := 0
	i := 0
	prevWasText := false
	for c := parent.FirstChild; c != nil && i < offset; c = c.NextSibling {
		i++
		if c.Type == html.TextNode && c.Data == "" {
			continue
		}
		isText := c.Type == html.TextNode
		if !(isText && prevWasText) {
			vi++
		}
		prevWasText = isText
	}
	return vi
}
