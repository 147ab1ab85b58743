package minidoc

import (
	"regexp"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/net/html"
)

// clipboardPolicy is the allowlist applied to every pasted HTML payload.
// Anything outside it is stripped, never an error: clipboard markup is
// structurally untrusted.
var clipboardPolicy = func() *bluemonday.Policy {
	p := bluemonday.NewPolicy()
	p.AllowStandardURLs()
	p.AllowElements(
		"p", "h1", "h2", "h3", "h4", "h5", "h6",
		"blockquote", "ol", "ul", "li", "hr", "br",
		"em", "i", "strong", "b", "a", "mark", "span", CardTag,
	)
	p.AllowAttrs("href").OnElements("a")
	p.AllowAttrs("data-bg").OnElements("mark")
	p.AllowAttrs("data-color").OnElements("span")
	p.AllowAttrs("type", "state").OnElements(CardTag)
	return p
}()

var urlPattern = regexp.MustCompile(`https?://[^\s<>"]+`)

// NormalizeClipboardHTML sanitizes an HTML clipboard payload into leaf
// content: allowlist filtering, card interior discard (card content is
// re-derived from state, never trusted raw), leaf synthesis for stray
// inline runs, line-break stripping, and auto-linkification.
func NormalizeClipboardHTML(payload string) ([]*html.Node, error) {
	clean := clipboardPolicy.Sanitize(payload)
	nodes, err := ParseFragmentHTML(clean)
	if err != nil {
		return nil, err
	}
	for _, n := range nodes {
		iterNodes(n, func(c *html.Node) bool {
			if IsCard(c) {
				removeChildren(c)
				return true
			}
			return false
		})
	}
	leafs := normalizeToLeafs(nodes)
	for _, leaf := range leafs {
		Linkify(leaf)
	}
	return leafs, nil
}

// NormalizeClipboardText is the plain-text fallback: one paragraph leaf per
// non-empty line.
func NormalizeClipboardText(payload string) []*html.Node {
	var out []*html.Node
	for _, line := range strings.Split(payload, "\n") {
		line = strings.TrimRight(line, "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		p := El("p", line)
		Linkify(p)
		out = append(out, p)
	}
	return out
}

// normalizeToLeafs wraps any top-level run of non-block nodes into a
// synthesized paragraph, re-homes stray list items, strips line-break
// elements and drops leafs left empty.
func normalizeToLeafs(nodes []*html.Node) []*html.Node {
	var out []*html.Node
	var run []*html.Node
	flush := func() {
		if len(run) > 0 {
			out = append(out, El("p", run))
			run = nil
		}
	}
	for _, n := range nodes {
		switch {
		case n.Type == html.TextNode && strings.TrimSpace(n.Data) == "":
			// inter-leaf whitespace from pretty-printed sources
		case tagName(n) == "li":
			flush()
			if len(out) > 0 && IsList(out[len(out)-1]) {
				detach(n)
				out[len(out)-1].AppendChild(n)
			} else {
				out = append(out, El("ul", n))
			}
		case IsBlock(n):
			flush()
			out = append(out, n)
		default:
			run = append(run, n)
		}
	}
	flush()

	var final []*html.Node
	for _, leaf := range out {
		if !IsCard(leaf) {
			stripBreaks(leaf)
		}
		if tagName(leaf) == "hr" || IsCard(leaf) || !IsEmptyNode(leaf, true) {
			final = append(final, leaf)
		}
	}
	return final
}

func stripBreaks(n *html.Node) {
	for c := n.FirstChild; c != nil; {
		next := c.NextSibling
		stripBreaks(c)
		if tagName(c) == "br" {
			detach(c)
		}
		c = next
	}
}

// Linkify replaces bare http(s) URL spans in text nodes with anchor
// elements, skipping text already inside an anchor or a card.
func Linkify(n *html.Node) {
	var texts []*html.Node
	iterNodes(n, func(c *html.Node) bool {
		if tagName(c) == "a" || IsCard(c) {
			return true
		}
		if c.Type == html.TextNode && urlPattern.MatchString(c.Data) {
			texts = append(texts, c)
		}
		return false
	})
	for _, t := range texts {
		parent := t.Parent
		if parent == nil {
			continue
		}
		data := t.Data
		pos := 0
		for _, loc := range urlPattern.FindAllStringIndex(data, -1) {
			if loc[0] > pos {
				parent.InsertBefore(newText(data[pos:loc[0]]), t)
			}
			url := data[loc[0]:loc[1]]
			parent.InsertBefore(El("a", Attrs{"href": url}, url), t)
			pos = loc[1]
		}
		if pos < len(data) {
			parent.InsertBefore(newText(data[pos:]), t)
		}
		parent.RemoveChild(t)
	}
}

// resolveLeafForBoundary maps a boundary onto its leaf, handling boundaries
// that sit directly on the root.
func resolveLeafForBoundary(root *html.Node, b Boundary) (*html.Node, Boundary) {
	if b.Node == root {
		leaf := nthChild(root, b.Offset)
		if leaf == nil {
			leaf = root.LastChild
		}
		if leaf == nil {
			return nil, b
		}
		return leaf, caretAtStart(leaf)
	}
	return FindLeaf(root, b.Node), b
}

// Paste merges normalized clipboard content into the document at r,
// following the insert decision table: after a card, replacing an empty
// target, structurally merging list-into-list, inlining single flow
// fragments, or sandwich-splitting everything else. Returns the post-edit
// selection.
func Paste(root *html.Node, r *Range, frag []*html.Node) *Range {
	if len(frag) == 0 {
		return r
	}
	r = orient(root, r)
	if !r.Collapsed() {
		r = DeleteAndMergeContents(root, r)
	}
	target, caret := resolveLeafForBoundary(root, r.Start)
	if target == nil {
		return r
	}
	r = Caret(caret.Node, caret.Offset)
	first := frag[0]
	last := frag[len(frag)-1]

	switch {
	case IsImmutable(target):
		ref := target
		for _, n := range frag {
			detach(n)
			insertAfter(n, ref)
			ref = n
		}
		idx := childIndex(last.Parent, last)
		return NewRange(last.Parent, idx, last.Parent, idx+1)

	case IsEmptyNode(target, true):
		ref := target
		for _, n := range frag {
			detach(n)
			insertAfter(n, ref)
			ref = n
		}
		detach(target)
		e := caretAtEnd(last)
		return Caret(e.Node, e.Offset)

	case IsList(target) && IsList(first):
		return pasteListIntoList(root, r, frag)

	case len(frag) == 1 && !IsList(first) && !IsCard(first) && tagName(first) != "hr":
		return insertInline(root, r, first)

	default:
		return SplitAndInsert(root, FindLeafContainer, r, frag)
	}
}

// insertInline splices a single flow fragment's content directly into the
// range instead of sandwiching new leafs around it.
func insertInline(root *html.Node, r *Range, frag *html.Node) *Range {
	block := closestBlock(root, r.Start.Node)
	if block == nil {
		return r
	}
	off := textOffsetOfBoundary(block, r.Start)
	insertedLen := len(textContent(frag))
	tail := splitBoundary(block, r.Start)
	for c := frag.FirstChild; c != nil; {
		next := c.NextSibling
		detach(c)
		if tail != nil {
			block.InsertBefore(c, tail)
		} else {
			block.AppendChild(c)
		}
		c = next
	}
	normalizeNode(block)
	c := boundaryAtTextOffset(block, off+insertedLen)
	return Caret(c.Node, c.Offset)
}

// pasteListIntoList merges a pasted list into the list item holding the
// caret: the pasted first item's content joins the target item, remaining
// items become following siblings, and the caret-side trailing content of
// the original item lands at the end of the pasted content.
func pasteListIntoList(root *html.Node, r *Range, frag []*html.Node) *Range {
	li := closestElement(root, r.Start.Node, "li")
	if li == nil {
		return SplitAndInsert(root, FindLeafContainer, r, frag)
	}
	pasted := frag[0]

	var items []*html.Node
	for c := pasted.FirstChild; c != nil; c = c.NextSibling {
		if tagName(c) == "li" {
			items = append(items, c)
		}
	}
	if len(items) == 0 {
		return r
	}

	// split the target item at the caret; liTail carries the trailing
	// caret-side content (including any nested sublist after the caret)
	liTail := splitBoundary(li.Parent, r.Start)

	firstItem := items[0]
	caretLen := len(textContent(li)) + len(textContent(firstItem))
	moveChildren(li, firstItem)
	normalizeNode(li)

	ref := li
	for _, item := range items[1:] {
		detach(item)
		insertAfter(item, ref)
		ref = item
	}

	caretHost := li
	if len(items) > 1 {
		lastItem := items[len(items)-1]
		caretLen = len(textContent(lastItem))
		if liTail != nil {
			moveChildren(lastItem, liTail)
			detach(liTail)
			normalizeNode(lastItem)
		}
		caretHost = lastItem
	} else if liTail != nil && IsEmptyNode(liTail, true) {
		detach(liTail)
	}

	// remaining pasted lists (rare multi-leaf paste) follow the target list
	listLeaf := FindLeaf(root, li)
	for _, extra := range frag[1:] {
		detach(extra)
		insertAfter(extra, listLeaf)
		listLeaf = extra
	}

	c := boundaryAtTextOffset(caretHost, caretLen)
	return Caret(c.Node, c.Offset)
}

// cloneTail deep-copies the content of node from boundary b to its end.
func cloneTail(node *html.Node, b Boundary) *html.Node {
	if node == b.Node && node.Type == html.TextNode {
		return newText(node.Data[b.Offset:])
	}
	clone := shallowClone(node)
	if node == b.Node {
		i := 0
		for c := node.FirstChild; c != nil; c = c.NextSibling {
			if i >= b.Offset {
				clone.AppendChild(deepClone(c))
			}
			i++
		}
		return clone
	}
	// find the child on the path to b
	var pivot *html.Node
	for c := node.FirstChild; c != nil; c = c.NextSibling {
		if containsNode(c, b.Node) {
			pivot = c
			break
		}
	}
	if pivot == nil {
		return deepClone(node)
	}
	clone.AppendChild(cloneTail(pivot, b))
	for c := pivot.NextSibling; c != nil; c = c.NextSibling {
		clone.AppendChild(deepClone(c))
	}
	return clone
}

// cloneHead deep-copies the content of node from its start to boundary b.
func cloneHead(node *html.Node, b Boundary) *html.Node {
	if node == b.Node && node.Type == html.TextNode {
		return newText(node.Data[:b.Offset])
	}
	clone := shallowClone(node)
	if node == b.Node {
		i := 0
		for c := node.FirstChild; c != nil && i < b.Offset; c = c.NextSibling {
			clone.AppendChild(deepClone(c))
			i++
		}
		return clone
	}
	var pivot *html.Node
	for c := node.FirstChild; c != nil; c = c.NextSibling {
		if containsNode(c, b.Node) {
			pivot = c
			break
		}
	}
	for c := node.FirstChild; c != nil && c != pivot; c = c.NextSibling {
		clone.AppendChild(deepClone(c))
	}
	if pivot != nil {
		clone.AppendChild(cloneHead(pivot, b))
	}
	return clone
}

// cloneRangeContents returns deep copies of everything inside r, splitting
// partially selected nodes the way a browser cloneContents would.
func cloneRangeContents(root *html.Node, r *Range) []*html.Node {
	r = orient(root, r)
	if r.Collapsed() {
		return nil
	}
	if r.Start.Node == r.End.Node && r.Start.Node.Type == html.TextNode {
		return []*html.Node{newText(r.Start.Node.Data[r.Start.Offset:r.End.Offset])}
	}
	ca := commonAncestor(root, r.Start.Node, r.End.Node)

	startChild := ca.FirstChild
	if r.Start.Node != ca {
		for c := ca.FirstChild; c != nil; c = c.NextSibling {
			if containsNode(c, r.Start.Node) {
				startChild = c
				break
			}
		}
	} else {
		startChild = nthChild(ca, r.Start.Offset)
	}
	endChild := ca.LastChild
	if r.End.Node != ca {
		for c := ca.FirstChild; c != nil; c = c.NextSibling {
			if containsNode(c, r.End.Node) {
				endChild = c
				break
			}
		}
	} else if idx := r.End.Offset - 1; idx >= 0 {
		endChild = nthChild(ca, idx)
	} else {
		return nil
	}

	var out []*html.Node
	for c := startChild; c != nil; c = c.NextSibling {
		switch {
		case c == startChild && r.Start.Node != ca && containsNode(c, r.Start.Node):
			if c == endChild && r.End.Node != ca {
				// both boundaries inside the same child: clamp both sides
				mid := cloneTail(c, r.Start)
				// re-resolve the end boundary inside the clone by text offset
				endOff := textOffsetOfBoundary(c, r.End) - textOffsetOfBoundary(c, r.Start)
				out = append(out, cloneHead(mid, boundaryAtTextOffset(mid, endOff)))
			} else {
				out = append(out, cloneTail(c, r.Start))
			}
		case c == endChild && r.End.Node != ca:
			out = append(out, cloneHead(c, r.End))
		default:
			out = append(out, deepClone(c))
		}
		if c == endChild {
			break
		}
	}
	return out
}

// leafsForRange resolves the leafs a range touches, including boundaries
// that sit directly on the root (a focused card selects as root offsets).
func leafsForRange(root *html.Node, r *Range) []*html.Node {
	startNode := r.Start.Node
	if startNode == root {
		if n := nthChild(root, r.Start.Offset); n != nil {
			startNode = n
		}
	}
	endNode := r.End.Node
	if endNode == root {
		// the end offset is exclusive
		if n := nthChild(root, r.End.Offset-1); n != nil {
			endNode = n
		}
	}
	return FindLeafs(root, startNode, endNode)
}

// ExtractSelection serializes the content of the current selection for the
// copy/cut clipboard payload. A selection entirely inside one list's items
// is promoted to a well-formed list element, inferring <li> wrapping when
// the clone starts mid-item.
func ExtractSelection(root *html.Node, r *Range) (string, error) {
	r = orient(root, r)
	leafs := leafsForRange(root, r)
	if len(leafs) == 0 {
		return "", nil
	}

	if len(leafs) == 1 && IsList(leafs[0]) {
		clones := cloneRangeContents(root, r)
		list := El(tagName(leafs[0]))
		var run []*html.Node
		flushRun := func() {
			if len(run) > 0 {
				list.AppendChild(El("li", run))
				run = nil
			}
		}
		for _, c := range clones {
			switch {
			case IsList(c):
				// the whole list was selected; its items come over as-is
				flushRun()
				moveChildren(list, c)
			case tagName(c) == "li":
				flushRun()
				list.AppendChild(c)
			default:
				run = append(run, c)
			}
		}
		flushRun()
		return RenderNode(list)
	}

	clones := cloneRangeContents(root, r)
	var b strings.Builder
	for _, c := range clones {
		s, err := RenderNode(c)
		if err != nil {
			return "", err
		}
		b.WriteString(s)
	}
	return b.String(), nil
}

// CutSelection extracts the selection payload and deletes the selection,
// removing a single fully-selected immutable leaf outright. Returns the
// payload plus the post-edit caret.
func CutSelection(root *html.Node, r *Range) (string, *Range, error) {
	r = orient(root, r)
	payload, err := ExtractSelection(root, r)
	if err != nil {
		return "", r, err
	}
	leafs := leafsForRange(root, r)
	if len(leafs) == 1 && IsImmutable(leafs[0]) {
		leaf := leafs[0]
		next := leaf.NextSibling
		parent := leaf.Parent
		detach(leaf)
		if parent.FirstChild == nil {
			p := MakeEditable(El("p"))
			parent.AppendChild(p)
			next = p
		}
		if next == nil {
			next = parent.LastChild
		}
		c := caretAtStart(next)
		return payload, Caret(c.Node, c.Offset), nil
	}
	if r.Start.Node == root && r.End.Node == root {
		// whole-leaf selection: remove the leafs outright
		for i := r.End.Offset - 1; i >= r.Start.Offset; i-- {
			if n := nthChild(root, i); n != nil {
				detach(n)
			}
		}
		if root.FirstChild == nil {
			root.AppendChild(MakeEditable(El("p")))
		}
		target := nthChild(root, r.Start.Offset)
		if target == nil {
			target = root.LastChild
		}
		c := caretAtStart(target)
		return payload, Caret(c.Node, c.Offset), nil
	}
	caret := DeleteAndMergeContents(root, r)
	return payload, caret, nil
}
