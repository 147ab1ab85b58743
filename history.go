package minidoc

import (
	"sync"
	"time"
)

const (
	defaultHistoryDepth = 500
	defaultCommitDelay  = 500 * time.Millisecond
)

// SnapshotFunc returns the current document serialization plus detached
// caret context.
type SnapshotFunc func() HistoryState

// ApplyFunc restores a serialization and caret context onto the live tree.
type ApplyFunc func(HistoryState)

type historyEntry struct {
	delta   *StrDelta
	prevCtx DetachedRange
	ctx     DetachedRange
}

// History wraps the string-diff engine with commit buffering, redo-branch
// truncation and caret-context replay. One instance per document session.
type History struct {
	mu       sync.Mutex
	snapshot SnapshotFunc
	apply    ApplyFunc
	entries  []historyEntry
	index    int // last applied entry; -1 at the initial state
	doc      string
	ctx      DetachedRange
	maxDepth int
	delay    time.Duration
	timer    *time.Timer
	due      bool
}

// HistoryOption configures a History.
type HistoryOption func(*History)

// WithMaxDepth bounds the number of retained entries; the oldest entry is
// dropped first.
func WithMaxDepth(n int) HistoryOption {
	return func(h *History) { h.maxDepth = n }
}

// WithCommitDelay sets the quiet interval after which a buffered change
// auto-commits.
func WithCommitDelay(d time.Duration) HistoryOption {
	return func(h *History) { h.delay = d }
}

// NewHistory captures the initial snapshot as the baseline state. The
// initial caret context is the empty sentinel: no meaningful caret exists
// before the first real selection.
func NewHistory(snapshot SnapshotFunc, apply ApplyFunc, opts ...HistoryOption) *History {
	h := &History{
		snapshot: snapshot,
		apply:    apply,
		index:    -1,
		doc:      snapshot().Doc,
		ctx:      EmptyDetachedRange(),
		maxDepth: defaultHistoryDepth,
		delay:    defaultCommitDelay,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Commit finalizes the current document state into one history entry.
// Unchanged documents are skipped. A commit after undos discards the redo
// branch rather than merging it.
func (h *History) Commit() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.cancelPendingLocked()
	h.commitLocked()
}

func (h *History) cancelPendingLocked() {
	if h.timer != nil {
		h.timer.Stop()
		h.timer = nil
	}
}

// settleLocked performs a commit the timer has marked due. Runs on the
// caller's goroutine, so the snapshot never touches the document tree
// concurrently with an edit.
func (h *History) settleLocked() {
	if h.due {
		h.commitLocked()
	}
}

func (h *History) commitLocked() {
	h.due = false
	st := h.snapshot()
	d := Diff(h.doc, st.Doc)
	if d == nil {
		return
	}
	if h.index < len(h.entries)-1 {
		h.entries = h.entries[:h.index+1]
	}
	h.entries = append(h.entries, historyEntry{delta: d, prevCtx: h.ctx, ctx: st.Ctx})
	if len(h.entries) > h.maxDepth {
		h.entries = h.entries[1:]
	}
	h.index = len(h.entries) - 1
	h.doc = st.Doc
	h.ctx = st.Ctx
}

// OnChange schedules a buffered commit after the quiet interval unless one
// is already pending, coalescing rapid keystrokes into one undo step. The
// timer only marks the commit due; the snapshot itself runs on whichever
// caller enters next, keeping all document access on the editing goroutine.
func (h *History) OnChange() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.settleLocked()
	if h.timer != nil {
		return
	}
	h.timer = time.AfterFunc(h.delay, func() {
		h.mu.Lock()
		h.timer = nil
		h.due = true
		h.mu.Unlock()
	})
}

// Flush forces any buffered change to commit immediately. Pending edits are
// never silently dropped.
func (h *History) Flush() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.cancelPendingLocked()
	h.commitLocked()
}

// Undo steps back one entry, restoring the entry's pre-edit caret context.
// At the initial state it returns the current state unchanged: a boundary,
// not an error.
func (h *History) Undo() HistoryState {
	h.mu.Lock()
	h.cancelPendingLocked()
	h.commitLocked()
	if h.index < 0 {
		st := HistoryState{Doc: h.doc, Ctx: h.ctx}
		h.mu.Unlock()
		return st
	}
	e := h.entries[h.index]
	h.doc = e.delta.Undo(h.doc)
	h.ctx = e.prevCtx
	h.index--
	st := HistoryState{Doc: h.doc, Ctx: h.ctx}
	apply := h.apply
	h.mu.Unlock()
	if apply != nil {
		apply(st)
	}
	return st
}

// Redo steps forward one entry, restoring the entry's post-edit caret
// context. At the newest entry it returns the current state unchanged.
func (h *History) Redo() HistoryState {
	h.mu.Lock()
	h.cancelPendingLocked()
	h.commitLocked()
	if h.index >= len(h.entries)-1 {
		st := HistoryState{Doc: h.doc, Ctx: h.ctx}
		h.mu.Unlock()
		return st
	}
	h.index++
	e := h.entries[h.index]
	h.doc = e.delta.Redo(h.doc)
	h.ctx = e.ctx
	st := HistoryState{Doc: h.doc, Ctx: h.ctx}
	apply := h.apply
	h.mu.Unlock()
	if apply != nil {
		apply(st)
	}
	return st
}

// State returns the last committed document and caret context, committing
// first when the quiet interval has already elapsed.
func (h *History) State() HistoryState {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.settleLocked()
	return HistoryState{Doc: h.doc, Ctx: h.ctx}
}

// CanUndo reports whether an undo step exists, committing first when the
// quiet interval has already elapsed.
func (h *History) CanUndo() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.settleLocked()
	return h.index >= 0
}

// CanRedo reports whether a redo step exists.
func (h *History) CanRedo() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.settleLocked()
	return h.index < len(h.entries)-1
}
