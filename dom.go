package minidoc

import (
	"bytes"
	"fmt"
	"sort"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// CardTag is the element name of the opaque card leaf. A card carries exactly
// two attributes, "type" and "state"; its children are render output only and
// never part of the document format.
const CardTag = "minidoc-card"

var (
	leafTags = map[string]bool{
		"p": true, "h1": true, "h2": true, "h3": true, "h4": true,
		"h5": true, "h6": true, "blockquote": true, "ul": true, "ol": true,
		"hr": true, CardTag: true,
	}
	blockTags = map[string]bool{
		"p": true, "div": true, "h1": true, "h2": true, "h3": true,
		"h4": true, "h5": true, "h6": true, "blockquote": true, "ul": true,
		"ol": true, "li": true, "hr": true, CardTag: true,
	}
	listTags = map[string]bool{"ul": true, "ol": true}
)

// fragmentContext is the parsing context handed to html.ParseFragment so
// input is treated as body content rather than a full document.
func fragmentContext() *html.Node {
	return &html.Node{Type: html.ElementNode, Data: "div", DataAtom: atom.Div}
}

// ParseFragmentHTML parses markup into a list of sibling nodes without
// enforcing an <html><body> envelope.
func ParseFragmentHTML(content string) ([]*html.Node, error) {
	nodes, err := html.ParseFragment(strings.NewReader(content), fragmentContext())
	if err != nil {
		return nil, fmt.Errorf("failed to parse fragment: %w", err)
	}
	return nodes, nil
}

// RenderNode converts a node tree back to a string.
func RenderNode(n *html.Node) (string, error) {
	var buf bytes.Buffer
	if err := html.Render(&buf, n); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// renderChildren serializes the children of n, in order.
func renderChildren(n *html.Node) (string, error) {
	var buf bytes.Buffer
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if err := html.Render(&buf, c); err != nil {
			return "", err
		}
	}
	return buf.String(), nil
}

// GetNode traverses the tree using the provided path to find a specific node.
func GetNode(root *html.Node, path NodePath) (*html.Node, error) {
	current := root
	for i, index := range path {
		child := nthChild(current, index)
		if child == nil {
			return nil, fmt.Errorf("node not found at path %v (failed at index %d, step %d)", path, index, i)
		}
		current = child
	}
	return current, nil
}

// GetPath finds the path from root to the target node, or nil when target is
// not a descendant of root.
func GetPath(root, target *html.Node) NodePath {
	var path NodePath
	current := target
	for current != root {
		parent := current.Parent
		if parent == nil {
			return nil
		}
		path = append(NodePath{childIndex(parent, current)}, path...)
		current = parent
	}
	return path
}

// nthChild finds the Nth child of a node. html.Node children are a linked
// list, so this is a walk.
func nthChild(parent *html.Node, index int) *html.Node {
	count := 0
	for c := parent.FirstChild; c != nil; c = c.NextSibling {
		if count == index {
			return c
		}
		count++
	}
	return nil
}

// childIndex returns the index of child within parent, or -1.
func childIndex(parent, child *html.Node) int {
	count := 0
	for c := parent.FirstChild; c != nil; c = c.NextSibling {
		if c == child {
			return count
		}
		count++
	}
	return -1
}

func childCount(n *html.Node) int {
	count := 0
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		count++
	}
	return count
}

func getAttr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func setAttr(n *html.Node, key, val string) {
	for i, a := range n.Attr {
		if a.Key == key {
			n.Attr[i].Val = val
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: key, Val: val})
}

// tagName returns the lower-case element name, or "" for non-elements.
func tagName(n *html.Node) string {
	if n == nil || n.Type != html.ElementNode {
		return ""
	}
	return strings.ToLower(n.Data)
}

// IsLeafTag reports whether tag is allowed as a direct child of the root.
func IsLeafTag(tag string) bool { return leafTags[tag] }

// IsBlock reports whether n renders as a block-level box.
func IsBlock(n *html.Node) bool { return blockTags[tagName(n)] }

// IsList reports whether n is an ordered or unordered list element.
func IsList(n *html.Node) bool { return listTags[tagName(n)] }

// IsCard reports whether n is an opaque card element.
func IsCard(n *html.Node) bool { return tagName(n) == CardTag }

// IsImmutable reports whether n is atomic with respect to text editing: the
// caret may sit next to it but never inside.
func IsImmutable(n *html.Node) bool {
	t := tagName(n)
	return t == CardTag || t == "hr"
}

// IsEmptyNode reports whether a tree walk under n finds no non-empty text
// node and no card, and, unless ignoreBreaks is set, no explicit <br>.
func IsEmptyNode(n *html.Node, ignoreBreaks bool) bool {
	empty := true
	iterNodes(n, func(c *html.Node) bool {
		switch {
		case c.Type == html.TextNode && c.Data != "":
			empty = false
		case IsCard(c):
			empty = false
		case !ignoreBreaks && tagName(c) == "br":
			empty = false
		}
		return !empty
	})
	return empty
}

// iterNodes walks n and its descendants in document order. The walk stops
// descending below any node for which f returns true.
func iterNodes(node *html.Node, f func(child *html.Node) bool) {
	if f(node) {
		return
	}
	for c := node.FirstChild; c != nil; c = c.NextSibling {
		iterNodes(c, f)
	}
}

// MakeEditable ensures a node that would otherwise render as empty has a
// minimal placeholder so the caret has somewhere to land. Mutative.
func MakeEditable(n *html.Node) *html.Node {
	if IsImmutable(n) || !IsEmptyNode(n, false) {
		return n
	}
	if IsList(n) {
		removeChildren(n)
		n.AppendChild(El("li", El("br")))
		return n
	}
	n.AppendChild(El("br"))
	return n
}

// Attrs assigns element attributes in El calls. A false bool value omits the
// attribute entirely; true emits it with an empty value.
type Attrs map[string]any

// El builds an element. The tag accepts a class shorthand ("p.intro"), and
// the remaining arguments may be Attrs maps, strings (appended as text
// nodes), nodes, nested slices, or nil (ignored).
func El(tag string, args ...any) *html.Node {
	name := tag
	if i := strings.IndexByte(tag, '.'); i >= 0 {
		name = tag[:i]
	}
	n := &html.Node{
		Type:     html.ElementNode,
		Data:     name,
		DataAtom: atom.Lookup([]byte(name)),
	}
	if i := strings.IndexByte(tag, '.'); i >= 0 {
		setAttr(n, "class", strings.ReplaceAll(tag[i+1:], ".", " "))
	}
	appendArgs(n, args)
	return n
}

func appendArgs(n *html.Node, args []any) {
	for _, arg := range args {
		switch v := arg.(type) {
		case nil:
			// falsy children are ignored
		case Attrs:
			// sorted so serialization is stable; the string-diff history
			// depends on identical trees rendering identically
			keys := make([]string, 0, len(v))
			for k := range v {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, k := range keys {
				switch val := v[k].(type) {
				case bool:
					if val {
						setAttr(n, k, "")
					}
				case string:
					setAttr(n, k, val)
				default:
					setAttr(n, k, fmt.Sprint(val))
				}
			}
		case string:
			if v != "" {
				n.AppendChild(newText(v))
			}
		case *html.Node:
			if v != nil {
				detach(v)
				n.AppendChild(v)
			}
		case []*html.Node:
			for _, c := range v {
				if c != nil {
					detach(c)
					n.AppendChild(c)
				}
			}
		case []any:
			appendArgs(n, v)
		default:
			n.AppendChild(newText(fmt.Sprint(v)))
		}
	}
}

func newText(s string) *html.Node {
	return &html.Node{Type: html.TextNode, Data: s}
}

// detach removes n from its parent, if any.
func detach(n *html.Node) {
	if n.Parent != nil {
		n.Parent.RemoveChild(n)
	}
}

// insertAfter places node immediately after ref under ref's parent.
func insertAfter(node, ref *html.Node) {
	detach(node)
	ref.Parent.InsertBefore(node, ref.NextSibling)
}

// moveChildren appends every child of src to dst, preserving order.
func moveChildren(dst, src *html.Node) {
	for c := src.FirstChild; c != nil; {
		next := c.NextSibling
		src.RemoveChild(c)
		dst.AppendChild(c)
		c = next
	}
}

func removeChildren(n *html.Node) {
	for c := n.FirstChild; c != nil; {
		next := c.NextSibling
		n.RemoveChild(c)
		c = next
	}
}

// shallowClone copies an element without its children.
func shallowClone(n *html.Node) *html.Node {
	clone := &html.Node{
		Type:     n.Type,
		Data:     n.Data,
		DataAtom: n.DataAtom,
	}
	clone.Attr = append([]html.Attribute(nil), n.Attr...)
	return clone
}

// deepClone copies a subtree.
func deepClone(n *html.Node) *html.Node {
	clone := shallowClone(n)
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		clone.AppendChild(deepClone(c))
	}
	return clone
}

// normalizeNode merges adjacent text children of n and drops empty text
// children, matching what Node.normalize() would do one level deep.
func normalizeNode(n *html.Node) {
	c := n.FirstChild
	for c != nil {
		next := c.NextSibling
		if c.Type == html.TextNode {
			if c.Data == "" {
				n.RemoveChild(c)
			} else {
				for next != nil && next.Type == html.TextNode {
					c.Data += next.Data
					after := next.NextSibling
					n.RemoveChild(next)
					next = after
				}
			}
		}
		c = next
	}
}

// textContent concatenates all text under n.
func textContent(n *html.Node) string {
	var b strings.Builder
	iterNodes(n, func(c *html.Node) bool {
		if c.Type == html.TextNode {
			b.WriteString(c.Data)
		}
		return false
	})
	return b.String()
}

// FindLeaf walks parents from node until the parent is the editable root;
// the child just below the root is the leaf. Returns nil when node is not
// under the root.
func FindLeaf(root, node *html.Node) *html.Node {
	for node != nil && node != root {
		if node.Parent == root {
			return node
		}
		node = node.Parent
	}
	return nil
}

// FindLeafs returns the leaf of startNode, then every next-sibling leaf up
// to and including the leaf of endNode.
func FindLeafs(root, startNode, endNode *html.Node) []*html.Node {
	start := FindLeaf(root, startNode)
	end := FindLeaf(root, endNode)
	if start == nil || end == nil {
		return nil
	}
	var leafs []*html.Node
	for n := start; n != nil; n = n.NextSibling {
		leafs = append(leafs, n)
		if n == end {
			return leafs
		}
	}
	// end was not a following sibling of start; fall back to just start
	return leafs[:1]
}

// closestBlock returns the nearest block-level ancestor of n (or n itself),
// stopping at root.
func closestBlock(root, n *html.Node) *html.Node {
	for n != nil && n != root {
		if IsBlock(n) {
			return n
		}
		n = n.Parent
	}
	return nil
}

// closestElement returns the nearest ancestor (or self) with the given tag,
// stopping below root.
func closestElement(root, n *html.Node, tag string) *html.Node {
	for n != nil && n != root {
		if tagName(n) == tag {
			return n
		}
		n = n.Parent
	}
	return nil
}

// caretAtStart descends to the first editable position inside n.
func caretAtStart(n *html.Node) Boundary {
	for c := n.FirstChild; c != nil; c = c.FirstChild {
		if c.Type == html.TextNode {
			return Boundary{Node: c, Offset: 0}
		}
		if IsImmutable(c) || c.FirstChild == nil {
			break
		}
	}
	return Boundary{Node: n, Offset: 0}
}

// caretAtEnd descends to the last editable position inside n.
func caretAtEnd(n *html.Node) Boundary {
	for c := n.LastChild; c != nil; c = c.LastChild {
		if c.Type == html.TextNode {
			return Boundary{Node: c, Offset: len(c.Data)}
		}
		if IsImmutable(c) || c.LastChild == nil {
			break
		}
	}
	return Boundary{Node: n, Offset: childCount(n)}
}

// boundaryAtTextOffset resolves a caret within block at the given cumulative
// text offset, walking text nodes in document order.
func boundaryAtTextOffset(block *html.Node, offset int) Boundary {
	var found *Boundary
	remaining := offset
	iterNodes(block, func(c *html.Node) bool {
		if found != nil {
			return true
		}
		if IsImmutable(c) && c != block {
			return true
		}
		if c.Type == html.TextNode {
			if remaining <= len(c.Data) {
				found = &Boundary{Node: c, Offset: remaining}
				return true
			}
			remaining -= len(c.Data)
		}
		return false
	})
	if found != nil {
		return *found
	}
	return caretAtEnd(block)
}

// boundaryKey flattens a boundary into a comparable path: the node path plus
// the offset as a final step. Used for document-order comparison.
func boundaryKey(root *html.Node, b Boundary) NodePath {
	path := GetPath(root, b.Node)
	return append(path, b.Offset)
}

// compareBoundary orders two boundaries in document order: -1, 0 or 1.
func compareBoundary(root *html.Node, a, b Boundary) int {
	pa, pb := boundaryKey(root, a), boundaryKey(root, b)
	for i := 0; i < len(pa) && i < len(pb); i++ {
		if pa[i] != pb[i] {
			if pa[i] < pb[i] {
				return -1
			}
			return 1
		}
	}
	switch {
	case len(pa) < len(pb):
		return -1
	case len(pa) > len(pb):
		return 1
	}
	return 0
}

// orient returns r with start and end swapped if they were reversed.
func orient(root *html.Node, r *Range) *Range {
	if compareBoundary(root, r.Start, r.End) > 0 {
		return &Range{Start: r.End, End: r.Start}
	}
	return r
}

// containsNode reports whether ancestor contains n (inclusive).
func containsNode(ancestor, n *html.Node) bool {
	for ; n != nil; n = n.Parent {
		if n == ancestor {
			return true
		}
	}
	return false
}
