package minidoc

import (
	"testing"
)

func TestToggleBlockConverts(t *testing.T) {
	root := parseRoot(t, `<p>One</p><p>Two</p>`)
	one := findText(t, root, "One")
	two := findText(t, root, "Two")

	out := ToggleBlock(root, NewRange(one, 0, two, 3), "h1")
	got := renderRoot(t, root)
	want := `<h1>One</h1><h1>Two</h1>`
	if got != want {
		t.Errorf("Want %q, Got %q", want, got)
	}
	if out.Start.Node.Data != "One" || out.End.Node.Data != "Two" {
		t.Errorf("Selection must span the converted leafs")
	}
}

func TestToggleBlockAllMatchRevertsToParagraph(t *testing.T) {
	root := parseRoot(t, `<h2>One</h2><h2>Two</h2>`)
	one := findText(t, root, "One")
	two := findText(t, root, "Two")

	ToggleBlock(root, NewRange(one, 0, two, 3), "h2")
	got := renderRoot(t, root)
	want := `<p>One</p><p>Two</p>`
	if got != want {
		t.Errorf("Want %q, Got %q", want, got)
	}
}

func TestToggleBlockMixedConvertsAll(t *testing.T) {
	root := parseRoot(t, `<h2>One</h2><p>Two</p>`)
	one := findText(t, root, "One")
	two := findText(t, root, "Two")

	ToggleBlock(root, NewRange(one, 0, two, 3), "h2")
	got := renderRoot(t, root)
	want := `<h2>One</h2><h2>Two</h2>`
	if got != want {
		t.Errorf("Want %q, Got %q", want, got)
	}
}

func TestToggleBlockExplodesList(t *testing.T) {
	root := parseRoot(t, `<ul><li>A</li><li>B<ul><li>Sub</li></ul></li></ul>`)
	a := findText(t, root, "A")
	b := findText(t, root, "B")

	ToggleBlock(root, NewRange(a, 0, b, 1), "h3")
	got := renderRoot(t, root)
	// nested sublists do not survive the conversion
	want := `<h3>A</h3><h3>B</h3>`
	if got != want {
		t.Errorf("Want %q, Got %q", want, got)
	}
}

func TestToggleBlockSkipsCards(t *testing.T) {
	root := parseRoot(t, `<p>a</p><minidoc-card type="x" state=""></minidoc-card><p>b</p>`)
	a := findText(t, root, "a")
	b := findText(t, root, "b")

	ToggleBlock(root, NewRange(a, 0, b, 1), "h1")
	got := renderRoot(t, root)
	want := `<h1>a</h1><minidoc-card type="x" state=""></minidoc-card><h1>b</h1>`
	if got != want {
		t.Errorf("Want %q, Got %q", want, got)
	}
}

func TestToggleListWrapsParagraphs(t *testing.T) {
	root := parseRoot(t, `<p>One</p><p>Two</p>`)
	one := findText(t, root, "One")
	two := findText(t, root, "Two")

	ToggleList(root, NewRange(one, 0, two, 3), "ul")
	got := renderRoot(t, root)
	want := `<ul><li>One</li><li>Two</li></ul>`
	if got != want {
		t.Errorf("Want %q, Got %q", want, got)
	}
}

func TestToggleListMergesExistingList(t *testing.T) {
	root := parseRoot(t, `<p>Zero</p><ol><li>One<ol><li>Sub</li></ol></li></ol>`)
	zero := findText(t, root, "Zero")
	one := findText(t, root, "One")

	ToggleList(root, NewRange(zero, 0, one, 3), "ul")
	got := renderRoot(t, root)
	// the existing list contributes items in place, sublists retagged
	want := `<ul><li>Zero</li><li>One<ul><li>Sub</li></ul></li></ul>`
	if got != want {
		t.Errorf("Want %q, Got %q", want, got)
	}
}

func TestToggleListAllMatchExplodes(t *testing.T) {
	root := parseRoot(t, `<ul><li>A</li><li>B</li></ul>`)
	a := findText(t, root, "A")
	b := findText(t, root, "B")

	ToggleList(root, NewRange(a, 0, b, 1), "ul")
	got := renderRoot(t, root)
	want := `<p>A</p><p>B</p>`
	if got != want {
		t.Errorf("Want %q, Got %q", want, got)
	}
}

func TestToggleListMergesWithNeighbor(t *testing.T) {
	root := parseRoot(t, `<ul><li>A</li></ul><p>B</p>`)
	b := findText(t, root, "B")

	ToggleList(root, Caret(b, 0), "ul")
	got := renderRoot(t, root)
	want := `<ul><li>A</li><li>B</li></ul>`
	if got != want {
		t.Errorf("Want %q, Got %q", want, got)
	}
}

func TestIndentListItem(t *testing.T) {
	root := parseRoot(t, `<ul><li>One</li><li>Two</li></ul>`)
	two := findText(t, root, "Two")

	IndentListItem(root, Caret(two, 0))
	got := renderRoot(t, root)
	want := `<ul><li>One<ul><li>Two</li></ul></li></ul>`
	if got != want {
		t.Errorf("Want %q, Got %q", want, got)
	}
}

func TestIndentFirstItemNoop(t *testing.T) {
	root := parseRoot(t, `<ul><li>One</li></ul>`)
	one := findText(t, root, "One")

	IndentListItem(root, Caret(one, 0))
	got := renderRoot(t, root)
	want := `<ul><li>One</li></ul>`
	if got != want {
		t.Errorf("First item must not indent, got %q", got)
	}
}

func TestIndentIntoExistingSublist(t *testing.T) {
	root := parseRoot(t, `<ul><li>One<ul><li>Sub</li></ul></li><li>Two</li></ul>`)
	two := findText(t, root, "Two")

	IndentListItem(root, Caret(two, 0))
	got := renderRoot(t, root)
	want := `<ul><li>One<ul><li>Sub</li><li>Two</li></ul></li></ul>`
	if got != want {
		t.Errorf("Want %q, Got %q", want, got)
	}
}

func TestOutdentNestedItem(t *testing.T) {
	root := parseRoot(t, `<ul><li>One<ul><li>Sub</li></ul></li></ul>`)
	sub := findText(t, root, "Sub")

	OutdentListItem(root, Caret(sub, 0))
	got := renderRoot(t, root)
	want := `<ul><li>One</li><li>Sub</li></ul>`
	if got != want {
		t.Errorf("Want %q, Got %q", want, got)
	}
}

func TestOutdentTopLevelItemBecomesParagraph(t *testing.T) {
	root := parseRoot(t, `<ul><li>One</li><li>Two</li><li>Three</li></ul>`)
	two := findText(t, root, "Two")

	out := OutdentListItem(root, Caret(two, 1))
	got := renderRoot(t, root)
	want := `<ul><li>One</li></ul><p>Two</p><ul><li>Three</li></ul>`
	if got != want {
		t.Errorf("Want %q, Got %q", want, got)
	}
	if out.Start.Node.Data != "Two" || out.Start.Offset != 1 {
		t.Errorf("Caret must survive the conversion, got %q offset %d", out.Start.Node.Data, out.Start.Offset)
	}
}

func TestOutdentOnlyItemRemovesList(t *testing.T) {
	root := parseRoot(t, `<ul><li>Solo</li></ul>`)
	solo := findText(t, root, "Solo")

	OutdentListItem(root, Caret(solo, 0))
	got := renderRoot(t, root)
	want := `<p>Solo</p>`
	if got != want {
		t.Errorf("Want %q, Got %q", want, got)
	}
}
