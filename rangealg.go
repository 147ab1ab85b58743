package minidoc

import "golang.org/x/net/html"

// FindContainerFunc resolves the element enclosing a caret node that a split
// operation should divide, e.g. the leaf or the nearest list item.
type FindContainerFunc func(root, node *html.Node) *html.Node

// FindLeafContainer is the FindContainerFunc for leaf-level splits.
func FindLeafContainer(root, node *html.Node) *html.Node {
	return FindLeaf(root, node)
}

// FindListItemContainer splits at the nearest enclosing <li>, falling back
// to the leaf.
func FindListItemContainer(root, node *html.Node) *html.Node {
	if li := closestElement(root, node, "li"); li != nil {
		return li
	}
	return FindLeaf(root, node)
}

// splitBoundary splits the ancestor chain of b so that the boundary falls
// cleanly between two children of container. Each ancestor between the
// boundary and container is cloned; the clone receives everything from the
// boundary onward. Returns the first node of the tail side (a child of
// container), or nil when the boundary sits at container's very end.
func splitBoundary(container *html.Node, b Boundary) *html.Node {
	node := b.Node
	if node == container {
		return nthChild(node, b.Offset)
	}

	var tail *html.Node
	var level *html.Node
	if node.Type == html.TextNode {
		switch {
		case b.Offset <= 0:
			tail = node
		case b.Offset >= len(node.Data):
			tail = node.NextSibling
		default:
			rest := newText(node.Data[b.Offset:])
			node.Parent.InsertBefore(rest, node.NextSibling)
			node.Data = node.Data[:b.Offset]
			tail = rest
		}
		level = node.Parent
	} else {
		tail = nthChild(node, b.Offset)
		level = node
	}

	for level != nil && level != container {
		parent := level.Parent
		clone := shallowClone(level)
		for n := tail; n != nil; {
			next := n.NextSibling
			level.RemoveChild(n)
			clone.AppendChild(n)
			n = next
		}
		parent.InsertBefore(clone, level.NextSibling)
		tail = clone
		level = parent
	}
	return tail
}

// commonAncestor returns the deepest element containing both a and b. When
// both sit in the same text node the answer is that node's parent: split
// operations need a container with children.
func commonAncestor(root, a, b *html.Node) *html.Node {
	seen := map[*html.Node]bool{}
	for n := a; n != nil; n = n.Parent {
		seen[n] = true
		if n == root {
			break
		}
	}
	for n := b; n != nil; n = n.Parent {
		if seen[n] {
			if n.Type == html.TextNode && n.Parent != nil {
				return n.Parent
			}
			return n
		}
	}
	return root
}

func depthBelow(ancestor, n *html.Node) int {
	d := 0
	for ; n != nil && n != ancestor; n = n.Parent {
		d++
	}
	return d
}

// deleteContents removes everything inside a non-collapsed range and returns
// a collapsed caret at the deletion point. Partially selected nodes are
// split in place; callers that want block merging run the merge themselves.
func deleteContents(root *html.Node, r *Range) *Range {
	r = orient(root, r)
	if r.Collapsed() {
		return r
	}
	ca := commonAncestor(root, r.Start.Node, r.End.Node)
	tailEnd := splitBoundary(ca, r.End)
	tailStart := splitBoundary(ca, r.Start)
	for n := tailStart; n != nil && n != tailEnd; {
		next := n.NextSibling
		ca.RemoveChild(n)
		n = next
	}
	if tailEnd != nil {
		return Caret(ca, childIndex(ca, tailEnd))
	}
	return Caret(ca, childCount(ca))
}

// textOffsetOfBoundary converts a boundary inside block into a cumulative
// text offset, so a caret can be re-resolved after normalization rewrites
// the text nodes underneath.
func textOffsetOfBoundary(block *html.Node, b Boundary) int {
	off := 0
	done := false
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if done {
			return
		}
		if n == b.Node {
			if n.Type == html.TextNode {
				off += b.Offset
			} else {
				i := 0
				for c := n.FirstChild; c != nil && i < b.Offset; c = c.NextSibling {
					off += len(textContent(c))
					i++
				}
			}
			done = true
			return
		}
		if n.Type == html.TextNode {
			off += len(n.Data)
			return
		}
		for c := n.FirstChild; c != nil && !done; c = c.NextSibling {
			walk(c)
		}
	}
	walk(block)
	return off
}

// DeleteAndMergeContents deletes a non-collapsed range and, when the range
// spanned two different blocks, merges the surviving end-block content into
// the start block. Collapsed ranges are a no-op. Returns the post-edit
// caret.
func DeleteAndMergeContents(root *html.Node, r *Range) *Range {
	r = orient(root, r)
	if r.Collapsed() {
		return r
	}
	startBlock := closestBlock(root, r.Start.Node)
	endBlock := closestBlock(root, r.End.Node)
	if startBlock == nil || endBlock == nil {
		return r
	}

	caretOff := textOffsetOfBoundary(startBlock, r.Start)

	if startBlock == endBlock {
		// Inline deletion inside one block. Browsers get this right
		// natively; the in-memory model splices directly.
		deleteContents(root, r)
		normalizeNode(startBlock)
		if IsEmptyNode(startBlock, true) {
			MakeEditable(startBlock)
			return Caret(startBlock, 0)
		}
		c := boundaryAtTextOffset(startBlock, caretOff)
		return Caret(c.Node, c.Offset)
	}

	ca := commonAncestor(root, startBlock, endBlock)
	endDepth := depthBelow(ca, endBlock)

	tailEnd := splitBoundary(ca, r.End)
	tailStart := splitBoundary(ca, r.Start)
	for n := tailStart; n != nil && n != tailEnd; {
		next := n.NextSibling
		ca.RemoveChild(n)
		n = next
	}

	// The surviving end block is the clone chain's innermost element: each
	// split level placed the deeper clone first.
	newEnd := tailEnd
	for i := 1; i < endDepth && newEnd != nil; i++ {
		newEnd = newEnd.FirstChild
	}

	if newEnd != nil && endDepth > 0 && newEnd != startBlock {
		// Merging a list item's content into a non-item start block must
		// not carry a nested sublist along: un-nest it into the item's
		// parent list first.
		if tagName(newEnd) == "li" && tagName(startBlock) != "li" {
			for c := newEnd.FirstChild; c != nil; {
				next := c.NextSibling
				if IsList(c) {
					insertAfter(c, newEnd)
				}
				c = next
			}
		}
		moveChildren(startBlock, newEnd)
		parent := newEnd.Parent
		detach(newEnd)
		// prune ancestors the merge emptied out
		for parent != nil && parent != ca && IsEmptyNode(parent, false) {
			next := parent.Parent
			detach(parent)
			parent = next
		}
	}

	normalizeNode(startBlock)
	if IsEmptyNode(startBlock, true) {
		MakeEditable(startBlock)
	}

	if leaf := FindLeaf(root, startBlock); leaf != nil {
		mergeAdjacentLists(leaf)
	}

	if IsEmptyNode(startBlock, true) {
		return Caret(startBlock, 0)
	}
	c := boundaryAtTextOffset(startBlock, caretOff)
	return Caret(c.Node, c.Offset)
}

// mergeAdjacentLists merges leaf with any adjacent sibling lists of the same
// type. Safe to call from multiple cleanup sites; returns the surviving
// list (or leaf unchanged when it is not a list).
func mergeAdjacentLists(leaf *html.Node) *html.Node {
	if !IsList(leaf) {
		return leaf
	}
	for next := leaf.NextSibling; next != nil && tagName(next) == tagName(leaf); next = leaf.NextSibling {
		moveChildren(leaf, next)
		detach(next)
	}
	if prev := leaf.PrevSibling; prev != nil && tagName(prev) == tagName(leaf) {
		moveChildren(prev, leaf)
		detach(leaf)
		return prev
	}
	return leaf
}

// replaceImmutableEnds swaps any immutable leaf touched by a range end for a
// fresh empty paragraph and retargets the boundary there, so structural
// splits never bisect a card.
func replaceImmutableEnds(root *html.Node, r *Range) *Range {
	out := *r
	if leaf := FindLeaf(root, r.Start.Node); leaf != nil && IsImmutable(leaf) {
		p := MakeEditable(El("p"))
		leaf.Parent.InsertBefore(p, leaf)
		detach(leaf)
		out.Start = Boundary{Node: p, Offset: 0}
		if r.End.Node == r.Start.Node {
			out.End = out.Start
		}
	}
	if out.End.Node != nil && out.End.Node != out.Start.Node {
		if leaf := FindLeaf(root, out.End.Node); leaf != nil && IsImmutable(leaf) {
			p := MakeEditable(El("p"))
			leaf.Parent.InsertBefore(p, leaf)
			detach(leaf)
			out.End = Boundary{Node: p, Offset: 0}
		}
	}
	return &out
}

// SplitContainer deletes the range's contents, locates the container
// enclosing the collapsed caret via findContainer, and splits it there. The
// tail is a new sibling holding everything from the caret onward. Head is
// nil when the split left nothing before the caret and the whole original
// container was consumed.
func SplitContainer(root *html.Node, findContainer FindContainerFunc, r *Range) (head, tail *html.Node) {
	r = orient(root, r)
	r = replaceImmutableEnds(root, r)
	if !r.Collapsed() {
		r = DeleteAndMergeContents(root, r)
	}
	container := findContainer(root, r.Start.Node)
	if container == nil || container.Parent == nil {
		return nil, nil
	}
	tail = splitBoundary(container.Parent, r.Start)
	head = container
	if IsEmptyNode(head, true) {
		detach(head)
		head = nil
	}
	return head, tail
}

// SplitAndInsert splits the container at the range, sandwiches the fragment
// between head and tail, then merges the fragment's edges into the
// surrounding slices where legal (never across a card or list boundary).
// Returns the post-edit caret at the end of the inserted content.
func SplitAndInsert(root *html.Node, findContainer FindContainerFunc, r *Range, frag []*html.Node) *Range {
	if len(frag) == 0 {
		return r.CollapseToStart()
	}
	head, tail := SplitContainer(root, findContainer, r)
	if tail == nil {
		return nil
	}
	parent := tail.Parent
	for _, n := range frag {
		detach(n)
		parent.InsertBefore(n, tail)
	}
	first, last := frag[0], frag[len(frag)-1]

	if IsEmptyNode(tail, true) {
		detach(tail)
		tail = nil
	}

	if head != nil && first.Type == html.ElementNode && !IsCard(first) && !IsList(first) && !IsList(head) {
		headLen := len(textContent(head))
		firstLen := len(textContent(first))
		moveChildren(head, first)
		detach(first)
		normalizeNode(head)
		if first == last {
			c := boundaryAtTextOffset(head, headLen+firstLen)
			if tail != nil && !IsList(tail) && !IsCard(tail) {
				moveChildren(head, tail)
				detach(tail)
				normalizeNode(head)
			}
			return Caret(c.Node, c.Offset)
		}
	}

	if tail != nil && last.Parent != nil && last.Type == html.ElementNode && !IsCard(last) && !IsList(last) && !IsList(tail) {
		lastLen := len(textContent(last))
		moveChildren(last, tail)
		detach(tail)
		normalizeNode(last)
		c := boundaryAtTextOffset(last, lastLen)
		return Caret(c.Node, c.Offset)
	}

	if last.Parent != nil {
		c := caretAtEnd(last)
		return Caret(c.Node, c.Offset)
	}
	c := caretAtEnd(parent)
	return Caret(c.Node, c.Offset)
}

// InlinableRanges decomposes a possibly multi-block range into sub-ranges
// that each fit entirely within a single block and are therefore safe to
// wrap in one inline element. Immutable nodes are atomic: never partially
// included. The leaf-scan approach also covers the degenerate boundary
// shape where the start node sits, in walker order, after the node that
// structurally contains the range's end.
func InlinableRanges(root *html.Node, r *Range) []*Range {
	r = orient(root, r)
	leafs := FindLeafs(root, r.Start.Node, r.End.Node)
	var all []*Range
	for _, leaf := range leafs {
		if IsImmutable(leaf) {
			continue
		}
		collectInlinable(leaf, &all)
	}

	var out []*Range
	for _, sub := range all {
		if compareBoundary(root, sub.End, r.Start) <= 0 {
			continue
		}
		if compareBoundary(root, sub.Start, r.End) >= 0 {
			continue
		}
		s, e := sub.Start, sub.End
		if compareBoundary(root, s, r.Start) < 0 {
			s = r.Start
		}
		if compareBoundary(root, e, r.End) > 0 {
			e = r.End
		}
		out = append(out, &Range{Start: s, End: e})
	}
	return out
}

func collectInlinable(n *html.Node, out *[]*Range) {
	var open *Range
	flush := func() {
		if open != nil {
			*out = append(*out, open)
			open = nil
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		switch {
		case c.Type == html.TextNode:
			if open == nil {
				open = NewRange(c, 0, c, len(c.Data))
			} else {
				open.End = Boundary{Node: c, Offset: len(c.Data)}
			}
		case IsImmutable(c):
			flush()
		case IsBlock(c):
			flush()
			collectInlinable(c, out)
		case tagName(c) == "br":
			// line breaks neither open nor close an inlinable run
		case c.Type == html.ElementNode:
			start := caretAtStart(c)
			end := caretAtEnd(c)
			if open == nil {
				open = &Range{Start: start, End: end}
			} else {
				open.End = end
			}
		}
	}
	flush()
}
