package minidoc

import (
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// ToggleBlock converts every leaf touched by the range to tag, or back to
// paragraphs when every touched leaf already matches (the all-or-nothing
// rule). List leafs explode into one new leaf per item; nested sublists are
// discarded, since a heading cannot carry sub-structure.
func ToggleBlock(root *html.Node, r *Range, tagIn string) *Range {
	tag := strings.ToLower(tagIn)
	r = orient(root, r)
	leafs := FindLeafs(root, r.Start.Node, r.End.Node)
	if len(leafs) == 0 {
		return r
	}

	target := "p"
	for _, leaf := range leafs {
		if tagName(leaf) != tag {
			target = tag
			break
		}
	}

	var created []*html.Node
	for _, leaf := range leafs {
		if IsImmutable(leaf) {
			continue
		}
		if IsList(leaf) {
			for li := leaf.FirstChild; li != nil; {
				next := li.NextSibling
				if tagName(li) == "li" {
					created = append(created, explodeListItem(leaf, li, target))
				}
				li = next
			}
			detach(leaf)
			continue
		}
		nl := El(target)
		moveChildren(nl, leaf)
		MakeEditable(nl)
		leaf.Parent.InsertBefore(nl, leaf)
		detach(leaf)
		created = append(created, nl)
	}
	if len(created) == 0 {
		return r
	}
	return &Range{
		Start: caretAtStart(created[0]),
		End:   caretAtEnd(created[len(created)-1]),
	}
}

// explodeListItem rewraps one <li>'s inline content as a new leaf of target,
// inserted before the list. Nested sublists do not survive the conversion.
func explodeListItem(list, li *html.Node, target string) *html.Node {
	nl := El(target)
	for c := li.FirstChild; c != nil; {
		next := c.NextSibling
		if !IsList(c) {
			detach(c)
			nl.AppendChild(c)
		}
		c = next
	}
	MakeEditable(nl)
	list.Parent.InsertBefore(nl, list)
	return nl
}

// ToggleList converts the touched leafs into one list of tag, or back to
// paragraphs when every touched leaf is already a list of that type.
// Pre-existing lists contribute their items in place, with any nested
// sublists retagged to the target type rather than flattened.
func ToggleList(root *html.Node, r *Range, tagIn string) *Range {
	tag := strings.ToLower(tagIn)
	r = orient(root, r)
	leafs := FindLeafs(root, r.Start.Node, r.End.Node)
	if len(leafs) == 0 {
		return r
	}

	allMatch := true
	for _, leaf := range leafs {
		if tagName(leaf) != tag {
			allMatch = false
			break
		}
	}

	if allMatch {
		var created []*html.Node
		for _, leaf := range leafs {
			for li := leaf.FirstChild; li != nil; {
				next := li.NextSibling
				if tagName(li) == "li" {
					created = append(created, explodeListItem(leaf, li, "p"))
				}
				li = next
			}
			detach(leaf)
		}
		if len(created) == 0 {
			return r
		}
		return &Range{
			Start: caretAtStart(created[0]),
			End:   caretAtEnd(created[len(created)-1]),
		}
	}

	newList := El(tag)
	leafs[0].Parent.InsertBefore(newList, leafs[0])
	for _, leaf := range leafs {
		if IsImmutable(leaf) {
			continue
		}
		if IsList(leaf) {
			retagNestedLists(leaf, tag)
			moveChildren(newList, leaf)
		} else {
			li := El("li")
			moveChildren(li, leaf)
			newList.AppendChild(li)
		}
		detach(leaf)
	}
	MakeEditable(newList)
	newList = mergeAdjacentLists(newList)
	return &Range{
		Start: caretAtStart(newList),
		End:   caretAtEnd(newList),
	}
}

// retagNestedLists renames every sublist under n to tag, recursively.
func retagNestedLists(n *html.Node, tag string) {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if IsList(c) {
			c.Data = tag
			c.DataAtom = atom.Lookup([]byte(tag))
		}
		retagNestedLists(c, tag)
	}
}

// IndentListItem nests the caret's <li> into a sublist under its previous
// sibling item, creating the sublist when none exists. No previous sibling
// means nothing to nest under: no-op.
func IndentListItem(root *html.Node, r *Range) *Range {
	li := closestElement(root, r.Start.Node, "li")
	if li == nil {
		return r
	}
	prev := li.PrevSibling
	for prev != nil && tagName(prev) != "li" {
		prev = prev.PrevSibling
	}
	if prev == nil {
		return r
	}
	list := li.Parent
	sub := prev.LastChild
	if sub == nil || !IsList(sub) {
		sub = El(tagName(list))
		prev.AppendChild(sub)
	}
	detach(li)
	sub.AppendChild(li)
	return r
}

// OutdentListItem moves the caret's <li> up into the grandparent list, or,
// at the top level, converts it into a standalone paragraph leaf spliced in
// at that position with the item's own sublist content following it.
func OutdentListItem(root *html.Node, r *Range) *Range {
	li := closestElement(root, r.Start.Node, "li")
	if li == nil || li.Parent == nil {
		return r
	}
	list := li.Parent

	if tagName(list.Parent) == "li" {
		parentLi := list.Parent
		detach(li)
		insertAfter(li, parentLi)
		if list.FirstChild == nil {
			detach(list)
		}
		return r
	}

	// top-level item: paragraph conversion
	caretOff := textOffsetOfBoundary(li, r.Start)
	p := El("p")
	var nested []*html.Node
	for c := li.FirstChild; c != nil; {
		next := c.NextSibling
		detach(c)
		if IsList(c) {
			nested = append(nested, c)
		} else {
			p.AppendChild(c)
		}
		c = next
	}
	MakeEditable(p)

	var after []*html.Node
	for s := li.NextSibling; s != nil; {
		next := s.NextSibling
		detach(s)
		after = append(after, s)
		s = next
	}
	detach(li)

	insertAfter(p, list)
	ref := p
	for _, nl := range nested {
		insertAfter(nl, ref)
		ref = nl
	}
	if len(after) > 0 {
		tailList := El(tagName(list), after)
		insertAfter(tailList, ref)
	}
	if list.FirstChild == nil {
		detach(list)
	}
	c := boundaryAtTextOffset(p, caretOff)
	return Caret(c.Node, c.Offset)
}
