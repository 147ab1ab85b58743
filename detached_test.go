package minidoc

import (
	"testing"
)

func TestDetachAttachRoundTrip(t *testing.T) {
	root := parseRoot(t, `<p>Hello</p><ul><li>One</li><li>Two</li></ul>`)
	two := findText(t, root, "Two")
	hello := findText(t, root, "Hello")
	r := NewRange(hello, 1, two, 2)

	d, ok := DetachRange(r, root)
	if !ok {
		t.Fatalf("DetachRange failed")
	}

	// rebuild from serialization, as an undo step would
	doc := renderRoot(t, root)
	rebuilt := parseRoot(t, doc)

	out, ok := AttachRange(d, rebuilt)
	if !ok {
		t.Fatalf("AttachRange failed")
	}
	if out.Start.Node.Data != "Hello" || out.Start.Offset != 1 {
		t.Errorf("Start mismatch: %q offset %d", out.Start.Node.Data, out.Start.Offset)
	}
	if out.End.Node.Data != "Two" || out.End.Offset != 2 {
		t.Errorf("End mismatch: %q offset %d", out.End.Node.Data, out.End.Offset)
	}
}

func TestDetachCollapsedCaret(t *testing.T) {
	root := parseRoot(t, `<p>abc</p>`)
	text := findText(t, root, "abc")

	d, ok := DetachRange(Caret(text, 2), root)
	if !ok {
		t.Fatalf("DetachRange failed")
	}
	if d.End != nil {
		t.Errorf("Collapsed caret must detach without an end point")
	}

	out, ok := AttachRange(d, root)
	if !ok {
		t.Fatalf("AttachRange failed")
	}
	if !out.Collapsed() {
		t.Errorf("Reattached caret must be collapsed")
	}
}

func TestDetachCountsVirtuallyNormalized(t *testing.T) {
	// A fragmented text run ("Hel" + "" + "lo") must detach as if it were a
	// single "Hello" node, without mutating the live tree.
	root := parseRoot(t, ``)
	p := El("p")
	p.AppendChild(newText("Hel"))
	p.AppendChild(newText(""))
	p.AppendChild(newText("lo"))
	root.AppendChild(p)
	lo := p.LastChild

	d, ok := DetachRange(Caret(lo, 1), root)
	if !ok {
		t.Fatalf("DetachRange failed")
	}
	if got := d.Start.Offset; got != 4 {
		t.Errorf("Want offset 4 into merged run, got %d", got)
	}
	if len(d.Start.Path) != 2 || d.Start.Path[1] != 0 {
		t.Errorf("Want path ending at first (merged) text child, got %v", d.Start.Path)
	}
	if childCount(p) != 3 {
		t.Errorf("Detach must not mutate the live tree; child count is %d", childCount(p))
	}

	// a normalized rebuild resolves the same logical position
	rebuilt := parseRoot(t, renderRoot(t, root))
	out, ok := AttachRange(d, rebuilt)
	if !ok {
		t.Fatalf("AttachRange failed")
	}
	if out.Start.Node.Data != "Hello" || out.Start.Offset != 4 {
		t.Errorf("Want 'Hello' offset 4, got %q offset %d", out.Start.Node.Data, out.Start.Offset)
	}
}

func TestAttachStalePath(t *testing.T) {
	root := parseRoot(t, `<p>abc</p><p>def</p>`)
	def := findText(t, root, "def")
	d, ok := DetachRange(Caret(def, 3), root)
	if !ok {
		t.Fatalf("DetachRange failed")
	}

	shrunk := parseRoot(t, `<p>abc</p>`)
	if _, ok := AttachRange(d, shrunk); ok {
		t.Errorf("Expected attach failure against a tree missing the leaf")
	}

	// same shape but shorter text: offset out of bounds
	short := parseRoot(t, `<p>abc</p><p>d</p>`)
	if _, ok := AttachRange(d, short); ok {
		t.Errorf("Expected attach failure for an out-of-bounds offset")
	}
}

func TestDetachForeignNode(t *testing.T) {
	root := parseRoot(t, `<p>abc</p>`)
	stranger := El("p", "outside")
	if _, ok := DetachRange(Caret(stranger.FirstChild, 0), root); ok {
		t.Errorf("Expected detach failure for a node outside the root")
	}
}

func TestEmptyDetachedRange(t *testing.T) {
	d := EmptyDetachedRange()
	if !d.IsEmpty() {
		t.Errorf("Sentinel must report empty")
	}
	root := parseRoot(t, `<p>abc</p>`)
	if _, ok := AttachRange(d, root); ok {
		t.Errorf("Attaching the empty sentinel must fail")
	}
}
