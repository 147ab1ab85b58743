package minidoc

import (
	"testing"

	"golang.org/x/net/html"
)

func TestSplitBoundaryMidText(t *testing.T) {
	root := parseRoot(t, `<p>Hello <em>big <strong>bold</strong></em> end</p>`)
	p := root.FirstChild
	bold := findText(t, root, "bold")

	tail := splitBoundary(p, Boundary{Node: bold, Offset: 2})
	if tail == nil || tail.Parent != p {
		t.Fatalf("Expected tail to be a child of the container")
	}
	got := renderRoot(t, root)
	want := `<p>Hello <em>big <strong>bo</strong></em><em><strong>ld</strong></em> end</p>`
	if got != want {
		t.Errorf("Want %q, Got %q", want, got)
	}
}

func TestSplitBoundaryAtTextEdges(t *testing.T) {
	root := parseRoot(t, `<p>abc</p>`)
	p := root.FirstChild
	abc := findText(t, root, "abc")

	// splitting at the start of the text must not cut the text node
	tail := splitBoundary(p, Boundary{Node: abc, Offset: 0})
	if tail != abc {
		t.Fatalf("Want the text node itself as tail")
	}
	if got := renderRoot(t, root); got != `<p>abc</p>` {
		t.Errorf("Split at start must not duplicate content, got %q", got)
	}

	// splitting at the very end of the container yields a nil tail
	tail = splitBoundary(p, Boundary{Node: abc, Offset: 3})
	if tail != nil {
		t.Errorf("Want nil tail at container end, got %v", tail)
	}
}

func TestSplitBoundaryClonesAncestors(t *testing.T) {
	// a boundary at the edge of nested inline markup still clones the chain
	root := parseRoot(t, `<p><em>abc</em></p>`)
	p := root.FirstChild
	abc := findText(t, root, "abc")

	tail := splitBoundary(p, Boundary{Node: abc, Offset: 3})
	if tagName(tail) != "em" || !IsEmptyNode(tail, false) {
		t.Fatalf("Want empty em clone as tail")
	}
	got := renderRoot(t, root)
	want := `<p><em>abc</em><em></em></p>`
	if got != want {
		t.Errorf("Want %q, Got %q", want, got)
	}
}

func TestDeleteContentsSameParent(t *testing.T) {
	root := parseRoot(t, `<p>Hello World</p>`)
	text := findText(t, root, "Hello")

	deleteContents(root, NewRange(text, 2, text, 8))
	p := root.FirstChild
	normalizeNode(p)
	if got := textContent(p); got != "Herld" {
		t.Errorf("Want 'Herld', got %q", got)
	}
}

func TestDeleteAndMergeSameBlock(t *testing.T) {
	root := parseRoot(t, `<p>Hello <strong>World</strong>!</p>`)
	hello := findText(t, root, "Hello")
	world := findText(t, root, "World")

	out := DeleteAndMergeContents(root, NewRange(hello, 3, world, 3))
	got := renderRoot(t, root)
	want := `<p>Hel<strong>ld</strong>!</p>`
	if got != want {
		t.Errorf("Want %q, Got %q", want, got)
	}
	if !out.Collapsed() {
		t.Errorf("Expected a collapsed caret")
	}
	if off := textOffsetOfBoundary(root.FirstChild, out.Start); off != 3 {
		t.Errorf("Want caret at text offset 3, got %d", off)
	}
}

func TestDeleteAndMergeAcrossLeafs(t *testing.T) {
	root := parseRoot(t, `<h1>Title</h1><p>Body text</p>`)
	title := findText(t, root, "Title")
	body := findText(t, root, "Body")

	DeleteAndMergeContents(root, NewRange(title, 3, body, 5))
	got := renderRoot(t, root)
	want := `<h1>Tittext</h1>`
	if got != want {
		t.Errorf("Want %q, Got %q", want, got)
	}
}

func TestDeleteAndMergeListItems(t *testing.T) {
	// deleting the boundary between two items merges them
	root := parseRoot(t, `<ul><li>A</li><li>B</li></ul>`)
	a := findText(t, root, "A")
	b := findText(t, root, "B")

	DeleteAndMergeContents(root, NewRange(a, 1, b, 0))
	got := renderRoot(t, root)
	want := `<ul><li>AB</li></ul>`
	if got != want {
		t.Errorf("Want %q, Got %q", want, got)
	}
}

func TestDeleteAndMergeParagraphIntoList(t *testing.T) {
	root := parseRoot(t, `<ul><li>One</li></ul><p>Two</p>`)
	one := findText(t, root, "One")
	two := findText(t, root, "Two")

	DeleteAndMergeContents(root, NewRange(one, 3, two, 0))
	got := renderRoot(t, root)
	want := `<ul><li>OneTwo</li></ul>`
	if got != want {
		t.Errorf("Want %q, Got %q", want, got)
	}
}

func TestDeleteAndMergeListItemIntoParagraphKeepsSublist(t *testing.T) {
	// the nested sublist must not ride along into the paragraph
	root := parseRoot(t, `<p>Top</p><ul><li>Item<ul><li>Sub</li></ul></li></ul>`)
	top := findText(t, root, "Top")
	item := findText(t, root, "Item")

	DeleteAndMergeContents(root, NewRange(top, 3, item, 0))
	got := renderRoot(t, root)
	want := `<p>TopItem</p><ul><ul><li>Sub</li></ul></ul>`
	if got != want {
		t.Errorf("Want %q, Got %q", want, got)
	}
}

func TestDeleteEntireSelectionLeavesEditableBlock(t *testing.T) {
	root := parseRoot(t, `<p>abc</p>`)
	text := findText(t, root, "abc")

	out := DeleteAndMergeContents(root, NewRange(text, 0, text, 3))
	got := renderRoot(t, root)
	want := `<p><br/></p>`
	if got != want {
		t.Errorf("Want placeholder paragraph, got %q", got)
	}
	if out.Start.Node != root.FirstChild || out.Start.Offset != 0 {
		t.Errorf("Want caret at the emptied block")
	}
}

func TestSplitContainerMidParagraph(t *testing.T) {
	root := parseRoot(t, `<p>HelloWorld</p>`)
	text := findText(t, root, "HelloWorld")

	head, tail := SplitContainer(root, FindLeafContainer, Caret(text, 5))
	if head == nil || tail == nil {
		t.Fatalf("Expected both halves, got head=%v tail=%v", head, tail)
	}
	got := renderRoot(t, root)
	want := `<p>Hello</p><p>World</p>`
	if got != want {
		t.Errorf("Want %q, Got %q", want, got)
	}
}

func TestSplitContainerAtStart(t *testing.T) {
	root := parseRoot(t, `<p>abc</p>`)
	text := findText(t, root, "abc")

	head, tail := SplitContainer(root, FindLeafContainer, Caret(text, 0))
	if head != nil {
		t.Errorf("Head must be nil when the whole container moves to the tail")
	}
	if tail == nil || textContent(tail) != "abc" {
		t.Fatalf("Tail must hold the full content")
	}
	got := renderRoot(t, root)
	if got != `<p>abc</p>` {
		t.Errorf("Want single paragraph, got %q", got)
	}
}

func TestSplitContainerListItem(t *testing.T) {
	root := parseRoot(t, `<ul><li>OneTwo</li><li>Three</li></ul>`)
	text := findText(t, root, "OneTwo")

	_, tail := SplitContainer(root, FindListItemContainer, Caret(text, 3))
	if tagName(tail) != "li" {
		t.Fatalf("Want li tail, got %q", tagName(tail))
	}
	got := renderRoot(t, root)
	want := `<ul><li>One</li><li>Two</li><li>Three</li></ul>`
	if got != want {
		t.Errorf("Want %q, Got %q", want, got)
	}
}

func TestSplitAndInsertMergesEdges(t *testing.T) {
	root := parseRoot(t, `<p>Hello</p>`)
	text := findText(t, root, "Hello")
	frag := []*html.Node{El("p", "AAA"), El("p", "BBB")}

	out := SplitAndInsert(root, FindLeafContainer, Caret(text, 2), frag)
	got := renderRoot(t, root)
	want := `<p>HeAAA</p><p>BBBllo</p>`
	if got != want {
		t.Errorf("Want %q, Got %q", want, got)
	}
	if out == nil || !out.Collapsed() {
		t.Fatalf("Expected a collapsed caret")
	}
	if out.Start.Node.Data != "BBBllo" || out.Start.Offset != 3 {
		t.Errorf("Want caret after inserted content, got %q offset %d", out.Start.Node.Data, out.Start.Offset)
	}
}

func TestSplitAndInsertSingleFragment(t *testing.T) {
	root := parseRoot(t, `<p>Hello</p>`)
	text := findText(t, root, "Hello")
	frag := []*html.Node{El("p", "XY")}

	SplitAndInsert(root, FindLeafContainer, Caret(text, 2), frag)
	got := renderRoot(t, root)
	want := `<p>HeXYllo</p>`
	if got != want {
		t.Errorf("Want %q, Got %q", want, got)
	}
}

func TestSplitAndInsertNeverMergesIntoList(t *testing.T) {
	root := parseRoot(t, `<p>Hello</p>`)
	text := findText(t, root, "Hello")
	frag := []*html.Node{El("ul", El("li", "item"))}

	SplitAndInsert(root, FindLeafContainer, Caret(text, 2), frag)
	got := renderRoot(t, root)
	want := `<p>He</p><ul><li>item</li></ul><p>llo</p>`
	if got != want {
		t.Errorf("Want %q, Got %q", want, got)
	}
}

func TestReplaceImmutableEnds(t *testing.T) {
	root := parseRoot(t, `<p>a</p><hr/><p>b</p>`)
	hr := root.FirstChild.NextSibling

	out := replaceImmutableEnds(root, Caret(hr, 0))
	if tagName(out.Start.Node) != "p" {
		t.Fatalf("Want paragraph replacement, got %q", tagName(out.Start.Node))
	}
	got := renderRoot(t, root)
	want := `<p>a</p><p><br/></p><p>b</p>`
	if got != want {
		t.Errorf("Want %q, Got %q", want, got)
	}
}

func TestInlinableRangesDecomposition(t *testing.T) {
	root := parseRoot(t, `<p>one</p><ul><li>two</li><li>three</li></ul><hr/><p>four</p>`)
	one := findText(t, root, "one")
	four := findText(t, root, "four")

	subs := InlinableRanges(root, NewRange(one, 1, four, 2))
	if len(subs) != 4 {
		t.Fatalf("Want 4 sub-ranges, got %d", len(subs))
	}

	// first and last clamp to the outer range
	if subs[0].Start.Node != one || subs[0].Start.Offset != 1 {
		t.Errorf("First sub-range must clamp to the range start")
	}
	last := subs[len(subs)-1]
	if last.End.Node != four || last.End.Offset != 2 {
		t.Errorf("Last sub-range must clamp to the range end")
	}

	// middle sub-ranges cover whole list items
	if got := textContent(closestBlock(root, subs[1].Start.Node)); got != "two" {
		t.Errorf("Want li 'two', got %q", got)
	}
	if got := textContent(closestBlock(root, subs[2].Start.Node)); got != "three" {
		t.Errorf("Want li 'three', got %q", got)
	}
}

func TestInlinableRangesSkipBreaks(t *testing.T) {
	root := parseRoot(t, `<p>ab<br/>cd</p>`)
	ab := findText(t, root, "ab")
	cd := findText(t, root, "cd")

	subs := InlinableRanges(root, NewRange(ab, 0, cd, 2))
	if len(subs) != 1 {
		t.Fatalf("A br must not split the run; got %d sub-ranges", len(subs))
	}
}

func TestMergeAdjacentLists(t *testing.T) {
	root := parseRoot(t, `<ul><li>a</li></ul><ul><li>b</li></ul><ol><li>c</li></ol>`)
	first := root.FirstChild

	survivor := mergeAdjacentLists(first)
	got := renderRoot(t, root)
	want := `<ul><li>a</li><li>b</li></ul><ol><li>c</li></ol>`
	if got != want {
		t.Errorf("Want %q, Got %q", want, got)
	}
	if survivor != root.FirstChild {
		t.Errorf("Survivor must be the first list")
	}
}
