package minidoc

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"golang.org/x/net/html"
)

// Event names emitted by an editor session.
const (
	EventCaretChange = "caretchange"
	EventChange      = "change"
	EventUndoCapture = "undocapture"
)

// Intent is a logical edit intention, decoupled from raw key names since
// browsers disagree about those.
type Intent int

const (
	IntentInsertParagraph Intent = iota
	IntentDeleteBackward
	IntentDeleteForward
	IntentIndent
	IntentOutdent
	IntentToggleBold
	IntentToggleItalic
	IntentToggleLink
	IntentUndo
	IntentRedo
	IntentInsertText
)

// Middleware is one composition unit of the editor pipeline. Units run in
// order at construction time and may read or override capabilities
// installed by earlier units. Returning nil or an error aborts
// construction: the editor cannot operate with a partial capability set.
type Middleware func(*Editor) (*Editor, error)

// Editor is a stateful editing session over one editable root. All
// operations run synchronously; the only deferral is the history commit
// buffer.
type Editor struct {
	root     *html.Node
	sel      *Range
	history  *History
	cards    *CardRegistry
	uploader Uploader
	readonly bool
	log      *slog.Logger

	activeTags  map[string]bool
	toggledTags map[string]bool

	// re-entrancy guards: programmatic selection updates fire the same
	// caretchange path as user-driven ones
	isTogglingInline  bool
	isApplyingHistory bool

	handlers    map[string][]func(*Editor)
	historyOpts []HistoryOption
	extra       []Middleware
}

// Option configures editor construction.
type Option func(*Editor)

// WithCards registers card definitions for the session.
func WithCards(defs ...CardDefinition) Option {
	return func(ed *Editor) {
		for _, d := range defs {
			ed.cards.Register(d)
		}
	}
}

// WithUploader installs the media upload collaborator.
func WithUploader(u Uploader) Option {
	return func(ed *Editor) { ed.uploader = u }
}

// WithReadonly renders cards in read-only mode.
func WithReadonly() Option {
	return func(ed *Editor) { ed.readonly = true }
}

// WithLogger overrides the session logger.
func WithLogger(l *slog.Logger) Option {
	return func(ed *Editor) { ed.log = l }
}

// WithHistoryOptions forwards options to the history unit.
func WithHistoryOptions(opts ...HistoryOption) Option {
	return func(ed *Editor) { ed.historyOpts = append(ed.historyOpts, opts...) }
}

// WithMiddleware appends extra composition units after the default
// pipeline.
func WithMiddleware(mw ...Middleware) Option {
	return func(ed *Editor) { ed.extra = append(ed.extra, mw...) }
}

// New builds an editor session from a serialized document. The default
// pipeline mounts the document, mounts cards, then installs history. The
// order matters: history snapshots require both serialization and a
// mounted tree. A middleware failure is a construction-time wiring error
// and fails fast.
func New(doc string, opts ...Option) (*Editor, error) {
	ed := &Editor{
		cards:       NewCardRegistry(),
		log:         slog.Default(),
		activeTags:  map[string]bool{},
		toggledTags: map[string]bool{},
		handlers:    map[string][]func(*Editor){},
	}
	for _, opt := range opts {
		opt(ed)
	}

	pipeline := append([]Middleware{
		mountDocument(doc),
		mountCards,
		installHistory,
	}, ed.extra...)

	for i, mw := range pipeline {
		next, err := mw(ed)
		if err != nil {
			return nil, fmt.Errorf("middleware %d: %w", i, err)
		}
		if next == nil {
			return nil, fmt.Errorf("middleware %d returned no editor: %w", i, ErrBadMiddleware)
		}
		ed = next
	}
	return ed, nil
}

// mountDocument parses the serialized document into the leaf model: a root
// element whose children are all leafs, with stray inline runs wrapped into
// synthesized paragraphs and empty leafs given placeholders.
func mountDocument(doc string) Middleware {
	return func(ed *Editor) (*Editor, error) {
		nodes, err := ParseFragmentHTML(doc)
		if err != nil {
			return nil, err
		}
		root := El("div.minidoc-editor")
		var run []*html.Node
		flush := func() {
			if len(run) > 0 {
				root.AppendChild(El("p", run))
				run = nil
			}
		}
		// root children must all be leafs: stray list items re-home into a
		// list, other block containers unwrap and reclassify their content
		var mount func(nodes []*html.Node)
		mount = func(nodes []*html.Node) {
			for _, n := range nodes {
				switch {
				case n.Type == html.TextNode && strings.TrimSpace(n.Data) == "":
				case tagName(n) == "li":
					flush()
					if last := root.LastChild; last != nil && IsList(last) {
						detach(n)
						last.AppendChild(n)
					} else {
						root.AppendChild(El("ul", n))
					}
				case IsLeafTag(tagName(n)):
					flush()
					detach(n)
					root.AppendChild(n)
				case IsBlock(n):
					flush()
					var kids []*html.Node
					for c := n.FirstChild; c != nil; c = c.NextSibling {
						kids = append(kids, c)
					}
					mount(kids)
				default:
					run = append(run, n)
				}
			}
		}
		mount(nodes)
		flush()
		if root.FirstChild == nil {
			root.AppendChild(El("p"))
		}
		for leaf := root.FirstChild; leaf != nil; leaf = leaf.NextSibling {
			MakeEditable(leaf)
		}
		ed.root = root
		return ed, nil
	}
}

func mountCards(ed *Editor) (*Editor, error) {
	err := ed.cards.Mount(ed.root, ed.readonly, func(card *html.Node) {
		ed.noteChange()
	})
	if err != nil {
		return nil, err
	}
	return ed, nil
}

func installHistory(ed *Editor) (*Editor, error) {
	ed.history = NewHistory(ed.snapshotState, ed.applyState, ed.historyOpts...)
	return ed, nil
}

// Root exposes the live editable tree.
func (ed *Editor) Root() *html.Node { return ed.root }

// History exposes the session's undo/redo engine.
func (ed *Editor) History() *History { return ed.history }

// Serialize produces the document string, delegating card leafs to the
// registry so only type and state survive.
func (ed *Editor) Serialize() (string, error) {
	return SerializeDocument(ed.root, ed.cards)
}

func (ed *Editor) snapshotState() HistoryState {
	doc, err := ed.Serialize()
	if err != nil {
		ed.log.Error("serialize for history snapshot", slog.String("error", err.Error()))
	}
	ctx := EmptyDetachedRange()
	if ed.sel != nil {
		if d, ok := DetachRange(ed.sel, ed.root); ok {
			ctx = d
		}
	}
	ed.emit(EventUndoCapture)
	return HistoryState{Doc: doc, Ctx: ctx}
}

func (ed *Editor) applyState(st HistoryState) {
	ed.isApplyingHistory = true
	defer func() { ed.isApplyingHistory = false }()

	nodes, err := ParseFragmentHTML(st.Doc)
	if err != nil {
		ed.log.Error("reparse history state", slog.String("error", err.Error()))
		return
	}
	removeChildren(ed.root)
	for _, n := range nodes {
		detach(n)
		ed.root.AppendChild(n)
	}
	if ed.root.FirstChild == nil {
		ed.root.AppendChild(MakeEditable(El("p")))
	}
	if err := ed.cards.Mount(ed.root, ed.readonly, func(card *html.Node) { ed.noteChange() }); err != nil {
		ed.log.Error("remount cards", slog.String("error", err.Error()))
	}

	// content restoration always succeeds; caret restoration degrades to
	// the first leaf when the stored path no longer resolves
	if r, ok := AttachRange(st.Ctx, ed.root); ok {
		ed.SetSelection(r)
	} else if first := ed.root.FirstChild; first != nil {
		c := caretAtStart(first)
		ed.SetSelection(Caret(c.Node, c.Offset))
	}
	ed.emit(EventChange)
}

// On subscribes a handler to a named event.
func (ed *Editor) On(event string, fn func(*Editor)) {
	ed.handlers[event] = append(ed.handlers[event], fn)
}

func (ed *Editor) emit(event string) {
	for _, fn := range ed.handlers[event] {
		fn(ed)
	}
}

// Selection returns the current selection, or false when none exists or it
// no longer points inside the editable root. Callers treat false as a
// silent no-op: the user may have clicked outside the editor between a
// toolbar action being queued and invoked.
func (ed *Editor) Selection() (*Range, bool) {
	if ed.sel == nil || ed.sel.Start.Node == nil || ed.sel.End.Node == nil {
		return nil, false
	}
	if !containsNode(ed.root, ed.sel.Start.Node) || !containsNode(ed.root, ed.sel.End.Node) {
		return nil, false
	}
	return ed.sel, true
}

// SetSelection installs a new selection and fires caretchange. Unless the
// change comes from the inline-toggle path itself, pending toggles are
// cleared and the active tag set is recomputed from the new caret.
func (ed *Editor) SetSelection(r *Range) {
	ed.sel = r
	if !ed.isTogglingInline {
		ed.toggledTags = map[string]bool{}
		ed.recomputeActiveTags()
	}
	ed.emit(EventCaretChange)
}

// noteChange fires the change event and feeds the history commit buffer.
func (ed *Editor) noteChange() {
	ed.emit(EventChange)
	if ed.history != nil && !ed.isApplyingHistory {
		ed.history.OnChange()
	}
}

// Perform routes one logical edit intent. The return value reports whether
// the editor took ownership of the intent; false means native behavior may
// proceed (the narrow verified-safe cases).
func (ed *Editor) Perform(intent Intent, args ...string) bool {
	arg := ""
	if len(args) > 0 {
		arg = args[0]
	}

	switch intent {
	case IntentUndo:
		ed.history.Undo()
		return true
	case IntentRedo:
		ed.history.Redo()
		return true
	}

	r, ok := ed.Selection()
	if !ok {
		return false
	}
	r = orient(ed.root, r)

	switch intent {
	case IntentInsertParagraph:
		ed.insertParagraph(r)
		return true
	case IntentDeleteBackward:
		return ed.deleteBackward(r)
	case IntentDeleteForward:
		return ed.deleteForward(r)
	case IntentIndent:
		if closestElement(ed.root, r.Start.Node, "li") == nil {
			return false
		}
		ed.SetSelection(IndentListItem(ed.root, r))
		ed.noteChange()
		return true
	case IntentOutdent:
		if closestElement(ed.root, r.Start.Node, "li") == nil {
			return false
		}
		ed.SetSelection(OutdentListItem(ed.root, r))
		ed.noteChange()
		return true
	case IntentToggleBold:
		// native bold must never apply; this keeps one source of truth
		// for which tags exist
		ed.ToggleInline("b")
		return true
	case IntentToggleItalic:
		ed.ToggleInline("i")
		return true
	case IntentToggleLink:
		ed.ToggleLink(arg)
		return true
	case IntentInsertText:
		return ed.insertText(r, arg)
	}
	return false
}

// ToggleBlockType converts the selected leafs per the all-or-nothing rule.
func (ed *Editor) ToggleBlockType(tag string) {
	r, ok := ed.Selection()
	if !ok {
		return
	}
	ed.SetSelection(ToggleBlock(ed.root, r, tag))
	ed.noteChange()
}

// ToggleListType converts the selected leafs into or out of a list.
func (ed *Editor) ToggleListType(tag string) {
	r, ok := ed.Selection()
	if !ok {
		return
	}
	ed.SetSelection(ToggleList(ed.root, r, tag))
	ed.noteChange()
}

// ToggleLink wraps the selection in an anchor, or removes the anchor the
// selection sits in. A collapsed caret can only remove: an empty href
// unwraps the enclosing anchor, anything else needs a real selection.
func (ed *Editor) ToggleLink(href string) {
	r, ok := ed.Selection()
	if !ok {
		return
	}
	if r.Collapsed() {
		m := closestMatch(ed.root, r.Start.Node, "a")
		if m == nil || href != "" {
			return
		}
		block := closestBlock(ed.root, r.Start.Node)
		off := textOffsetOfBoundary(block, r.Start)
		unwrapNode(m)
		normalizeNode(block)
		c := boundaryAtTextOffset(block, off)
		ed.SetSelection(Caret(c.Node, c.Offset))
		ed.noteChange()
		return
	}
	if closestMatch(ed.root, r.Start.Node, "a") != nil {
		ed.isTogglingInline = true
		out := ToggleInlineRange(ed.root, r, "a")
		ed.SetSelection(out)
		ed.isTogglingInline = false
		ed.recomputeActiveTags()
		ed.noteChange()
		return
	}
	subs := InlinableRanges(ed.root, r)
	if len(subs) == 0 {
		return
	}
	// wrapping splits text nodes, so the live selection must be reanchored
	// by block text offsets afterwards
	startBlock := closestBlock(ed.root, subs[0].Start.Node)
	endBlock := closestBlock(ed.root, subs[len(subs)-1].End.Node)
	startOff := textOffsetOfBoundary(startBlock, subs[0].Start)
	endOff := textOffsetOfBoundary(endBlock, subs[len(subs)-1].End)
	for _, sub := range subs {
		wrapInlinable(ed.root, sub, "a", Attrs{"href": href})
	}
	ed.isTogglingInline = true
	ed.SetSelection(&Range{
		Start: boundaryAtTextOffset(startBlock, startOff),
		End:   boundaryAtTextOffset(endBlock, endOff),
	})
	ed.isTogglingInline = false
	ed.recomputeActiveTags()
	ed.noteChange()
}

// PasteHTML sanitizes and inserts an HTML clipboard payload at the current
// selection. An empty or unusable payload is a no-op.
func (ed *Editor) PasteHTML(payload string) {
	frag, err := NormalizeClipboardHTML(payload)
	if err != nil || len(frag) == 0 {
		return
	}
	ed.pasteFragment(frag)
}

// PasteText inserts a plain-text clipboard payload, one paragraph per
// non-empty line.
func (ed *Editor) PasteText(payload string) {
	frag := NormalizeClipboardText(payload)
	if len(frag) == 0 {
		return
	}
	ed.pasteFragment(frag)
}

func (ed *Editor) pasteFragment(frag []*html.Node) {
	r, ok := ed.Selection()
	if !ok {
		return
	}
	out := Paste(ed.root, r, frag)
	if out != nil {
		ed.SetSelection(out)
	}
	ed.noteChange()
}

// Copy serializes the current selection for the clipboard.
func (ed *Editor) Copy() (string, error) {
	r, ok := ed.Selection()
	if !ok {
		return "", ErrNoSelection
	}
	return ExtractSelection(ed.root, r)
}

// Cut serializes and removes the current selection.
func (ed *Editor) Cut() (string, error) {
	r, ok := ed.Selection()
	if !ok {
		return "", ErrNoSelection
	}
	payload, caret, err := CutSelection(ed.root, r)
	if err != nil {
		return "", err
	}
	ed.SetSelection(caret)
	ed.noteChange()
	return payload, nil
}

// Upload runs media uploads through the configured collaborator. Cards use
// this for file drops; the editor itself only brokers the calls.
func (ed *Editor) Upload(ctx context.Context, reqs ...UploadRequest) ([]*UploadResult, error) {
	if ed.uploader == nil {
		return nil, fmt.Errorf("no uploader configured")
	}
	return UploadAll(ctx, ed.uploader, reqs)
}

func (ed *Editor) insertParagraph(r *Range) {
	fc := FindLeafContainer
	if closestElement(ed.root, r.Start.Node, "li") != nil {
		fc = FindListItemContainer
	}
	_, tail := SplitContainer(ed.root, fc, r)
	if tail == nil {
		return
	}
	// pressing Enter at the end of a heading continues in a paragraph
	if IsEmptyNode(tail, true) && strings.HasPrefix(tagName(tail), "h") && tagName(tail) != "hr" {
		p := El("p")
		tail.Parent.InsertBefore(p, tail)
		detach(tail)
		tail = p
	}
	MakeEditable(tail)
	c := caretAtStart(tail)
	ed.SetSelection(Caret(c.Node, c.Offset))
	ed.noteChange()
}

// cardSelection reports whether r selects exactly one immutable leaf.
func (ed *Editor) cardSelection(r *Range) *html.Node {
	if r.Start.Node != ed.root || r.End.Node != ed.root {
		return nil
	}
	if r.End.Offset != r.Start.Offset+1 {
		return nil
	}
	leaf := nthChild(ed.root, r.Start.Offset)
	if leaf != nil && IsImmutable(leaf) {
		return leaf
	}
	return nil
}

func (ed *Editor) deleteBackward(r *Range) bool {
	if card := ed.cardSelection(r); card != nil {
		// second backspace on a focused card removes it, leaving an empty
		// paragraph placeholder
		p := MakeEditable(El("p"))
		card.Parent.InsertBefore(p, card)
		detach(card)
		ed.SetSelection(Caret(p, 0))
		ed.noteChange()
		return true
	}
	if !r.Collapsed() {
		ed.SetSelection(DeleteAndMergeContents(ed.root, r))
		ed.noteChange()
		return true
	}

	leaf, caret := resolveLeafForBoundary(ed.root, r.Start)
	if leaf == nil {
		return false
	}
	block := closestBlock(ed.root, caret.Node)
	if block == nil {
		return false
	}
	off := textOffsetOfBoundary(block, caret)

	if off > 0 {
		// single-character deletion fully inside a block; mirror native
		// behavior with a rune-aware splice
		before := textContent(block)[:off]
		_, size := utf8.DecodeLastRuneInString(before)
		from := boundaryAtTextOffset(block, off-size)
		deleteContents(ed.root, &Range{Start: from, End: caret})
		normalizeNode(block)
		if IsEmptyNode(block, true) {
			MakeEditable(block)
			ed.SetSelection(Caret(block, 0))
		} else {
			c := boundaryAtTextOffset(block, off-size)
			ed.SetSelection(Caret(c.Node, c.Offset))
		}
		ed.noteChange()
		return true
	}

	// caret at block start: either focus a preceding immutable leaf or
	// merge into the previous block
	prevEnd, prevLeaf := ed.previousBlockEnd(block)
	if prevLeaf != nil && IsImmutable(prevLeaf) {
		idx := childIndex(ed.root, prevLeaf)
		ed.SetSelection(NewRange(ed.root, idx, ed.root, idx+1))
		return true
	}
	if prevEnd == nil {
		// start of document
		return true
	}
	out := DeleteAndMergeContents(ed.root, &Range{Start: *prevEnd, End: caret})
	ed.SetSelection(out)
	ed.noteChange()
	return true
}

func (ed *Editor) deleteForward(r *Range) bool {
	if card := ed.cardSelection(r); card != nil {
		p := MakeEditable(El("p"))
		card.Parent.InsertBefore(p, card)
		detach(card)
		ed.SetSelection(Caret(p, 0))
		ed.noteChange()
		return true
	}
	if !r.Collapsed() {
		ed.SetSelection(DeleteAndMergeContents(ed.root, r))
		ed.noteChange()
		return true
	}

	leaf, caret := resolveLeafForBoundary(ed.root, r.Start)
	if leaf == nil {
		return false
	}
	block := closestBlock(ed.root, caret.Node)
	if block == nil {
		return false
	}
	off := textOffsetOfBoundary(block, caret)
	content := textContent(block)

	if off < len(content) {
		_, size := utf8.DecodeRuneInString(content[off:])
		to := boundaryAtTextOffset(block, off+size)
		deleteContents(ed.root, &Range{Start: caret, End: to})
		normalizeNode(block)
		if IsEmptyNode(block, true) {
			MakeEditable(block)
			ed.SetSelection(Caret(block, 0))
		} else {
			c := boundaryAtTextOffset(block, off)
			ed.SetSelection(Caret(c.Node, c.Offset))
		}
		ed.noteChange()
		return true
	}

	nextStart, nextLeaf := ed.nextBlockStart(block)
	if nextLeaf != nil && IsImmutable(nextLeaf) {
		idx := childIndex(ed.root, nextLeaf)
		ed.SetSelection(NewRange(ed.root, idx, ed.root, idx+1))
		return true
	}
	if nextStart == nil {
		return true
	}
	out := DeleteAndMergeContents(ed.root, &Range{Start: caret, End: *nextStart})
	ed.SetSelection(out)
	ed.noteChange()
	return true
}

// previousBlockEnd finds the position a backward merge should reach: the
// end of the closest preceding block. The second return value reports an
// immutable node in the way (nil otherwise), so a card or rule can
// intercept the merge and get focused instead.
func (ed *Editor) previousBlockEnd(block *html.Node) (*Boundary, *html.Node) {
	for prev := block.PrevSibling; prev != nil; prev = prev.PrevSibling {
		if IsImmutable(prev) {
			return nil, prev
		}
		if IsBlock(prev) {
			b := caretAtEnd(deepestLastBlock(prev))
			return &b, nil
		}
	}
	leaf := FindLeaf(ed.root, block)
	if leaf == nil {
		return nil, nil
	}
	if block != leaf {
		// first block inside a nested structure: continue from the parent
		if parent := closestBlock(ed.root, block.Parent); parent != nil && parent != block {
			return ed.previousBlockEnd(parent)
		}
	}
	prevLeaf := leaf.PrevSibling
	if prevLeaf == nil {
		return nil, nil
	}
	if IsImmutable(prevLeaf) {
		return nil, prevLeaf
	}
	b := caretAtEnd(deepestLastBlock(prevLeaf))
	return &b, nil
}

// nextBlockStart is the forward-delete mirror of previousBlockEnd.
func (ed *Editor) nextBlockStart(block *html.Node) (*Boundary, *html.Node) {
	for next := block.NextSibling; next != nil; next = next.NextSibling {
		if IsImmutable(next) {
			return nil, next
		}
		if IsBlock(next) {
			b := caretAtStart(deepestFirstBlock(next))
			return &b, nil
		}
	}
	leaf := FindLeaf(ed.root, block)
	if leaf == nil {
		return nil, nil
	}
	if block != leaf {
		if parent := closestBlock(ed.root, block.Parent); parent != nil && parent != block {
			return ed.nextBlockStart(parent)
		}
	}
	nextLeaf := leaf.NextSibling
	if nextLeaf == nil {
		return nil, nil
	}
	if IsImmutable(nextLeaf) {
		return nil, nextLeaf
	}
	b := caretAtStart(deepestFirstBlock(nextLeaf))
	return &b, nil
}

// deepestLastBlock descends lists to the innermost trailing block.
func deepestLastBlock(n *html.Node) *html.Node {
	for {
		var deeper *html.Node
		for c := n.LastChild; c != nil; c = c.PrevSibling {
			if IsBlock(c) {
				deeper = c
				break
			}
		}
		if deeper == nil {
			return n
		}
		n = deeper
	}
}

// deepestFirstBlock descends lists to the innermost leading block.
func deepestFirstBlock(n *html.Node) *html.Node {
	for {
		var deeper *html.Node
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if IsBlock(c) {
				deeper = c
				break
			}
		}
		if deeper == nil {
			return n
		}
		n = deeper
	}
}

func (ed *Editor) insertText(r *Range, s string) bool {
	if s == "" {
		return false
	}
	if !r.Collapsed() {
		r = DeleteAndMergeContents(ed.root, r)
	}
	_, caret := resolveLeafForBoundary(ed.root, r.Start)
	block := closestBlock(ed.root, caret.Node)
	if block == nil {
		return false
	}
	if IsImmutable(block) {
		return false
	}

	startOff := textOffsetOfBoundary(block, caret)
	if IsEmptyNode(block, true) {
		removeChildren(block)
		block.AppendChild(newText(s))
		startOff = 0
	} else if caret.Node.Type == html.TextNode {
		t := caret.Node
		t.Data = t.Data[:caret.Offset] + s + t.Data[caret.Offset:]
	} else {
		t := newText(s)
		if ref := nthChild(caret.Node, caret.Offset); ref != nil {
			caret.Node.InsertBefore(t, ref)
		} else {
			caret.Node.AppendChild(t)
		}
	}

	endOff := startOff + len(s)
	if len(ed.toggledTags) > 0 {
		out := ed.applyPendingToggles(block, startOff, endOff)
		ed.SetSelection(out)
	} else {
		c := boundaryAtTextOffset(block, endOff)
		ed.SetSelection(Caret(c.Node, c.Offset))
	}
	ed.noteChange()
	return true
}
