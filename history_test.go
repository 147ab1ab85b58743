package minidoc

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// docHarness drives a History with a plain string standing in for the
// serialized document.
type docHarness struct {
	doc     string
	applied []string
	h       *History
}

func newDocHarness(initial string, opts ...HistoryOption) *docHarness {
	dh := &docHarness{doc: initial}
	dh.h = NewHistory(
		func() HistoryState { return HistoryState{Doc: dh.doc, Ctx: EmptyDetachedRange()} },
		func(st HistoryState) {
			dh.doc = st.Doc
			dh.applied = append(dh.applied, st.Doc)
		},
		opts...,
	)
	return dh
}

func (dh *docHarness) edit(doc string) {
	dh.doc = doc
	dh.h.Commit()
}

func TestHistoryUndoRedo(t *testing.T) {
	dh := newDocHarness("<p>a</p>")
	dh.edit("<p>ab</p>")
	dh.edit("<p>abc</p>")

	st := dh.h.Undo()
	assert.Equal(t, "<p>ab</p>", st.Doc)
	assert.Equal(t, "<p>ab</p>", dh.doc)

	st = dh.h.Undo()
	assert.Equal(t, "<p>a</p>", st.Doc)

	st = dh.h.Redo()
	assert.Equal(t, "<p>ab</p>", st.Doc)
	st = dh.h.Redo()
	assert.Equal(t, "<p>abc</p>", st.Doc)
}

func TestHistoryUndoAtBaseline(t *testing.T) {
	dh := newDocHarness("<p>a</p>")

	st := dh.h.Undo()
	assert.Equal(t, "<p>a</p>", st.Doc)
	assert.Empty(t, dh.applied, "undo at the baseline must not re-apply")
	assert.False(t, dh.h.CanUndo())
}

func TestHistoryRedoBranchDiscarded(t *testing.T) {
	dh := newDocHarness("a")
	dh.edit("ab")
	dh.edit("abc")

	dh.h.Undo()
	require.Equal(t, "ab", dh.doc)

	// a fresh edit after undo discards the "abc" branch
	dh.edit("abX")
	assert.False(t, dh.h.CanRedo())

	st := dh.h.Redo()
	assert.Equal(t, "abX", st.Doc, "redo past the newest entry stays put")

	dh.h.Undo()
	assert.Equal(t, "ab", dh.doc)
	dh.h.Undo()
	assert.Equal(t, "a", dh.doc)
}

func TestHistoryUnchangedCommitSkipped(t *testing.T) {
	dh := newDocHarness("same")
	dh.h.Commit()
	dh.h.Commit()
	assert.False(t, dh.h.CanUndo())
}

func TestHistoryDepthBound(t *testing.T) {
	dh := newDocHarness("0", WithMaxDepth(3))
	dh.edit("01")
	dh.edit("012")
	dh.edit("0123")
	dh.edit("01234")

	// only the newest three entries survive
	for dh.h.CanUndo() {
		dh.h.Undo()
	}
	assert.Equal(t, "01", dh.doc)
}

func TestHistoryCoalescesRapidChanges(t *testing.T) {
	dh := newDocHarness("x", WithCommitDelay(20*time.Millisecond))

	dh.doc = "xa"
	dh.h.OnChange()
	dh.doc = "xab"
	dh.h.OnChange()
	dh.doc = "xabc"
	dh.h.OnChange()

	require.Eventually(t, dh.h.CanUndo, time.Second, 5*time.Millisecond)

	st := dh.h.Undo()
	assert.Equal(t, "x", st.Doc, "rapid changes coalesce into one step")
}

func TestHistoryDeferredCommitRunsOnCaller(t *testing.T) {
	snapshots := 0
	doc := "a"
	h := NewHistory(
		func() HistoryState {
			snapshots++
			return HistoryState{Doc: doc, Ctx: EmptyDetachedRange()}
		},
		func(st HistoryState) { doc = st.Doc },
		WithCommitDelay(5*time.Millisecond),
	)
	require.Equal(t, 1, snapshots, "construction takes the baseline snapshot")

	doc = "ab"
	h.OnChange()
	time.Sleep(50 * time.Millisecond)

	// the elapsed timer must not snapshot on its own goroutine; the
	// document may be mid-edit on the caller's side
	require.Equal(t, 1, snapshots)

	require.True(t, h.CanUndo())
	require.Equal(t, 2, snapshots, "the due commit runs on the calling goroutine")
}

func TestHistoryUndoFlushesPending(t *testing.T) {
	dh := newDocHarness("x", WithCommitDelay(time.Hour))

	dh.doc = "xy"
	dh.h.OnChange()

	// the buffered edit must commit before stepping back, never be lost
	st := dh.h.Undo()
	assert.Equal(t, "x", st.Doc)
	st = dh.h.Redo()
	assert.Equal(t, "xy", st.Doc)
}

func TestHistoryFlush(t *testing.T) {
	dh := newDocHarness("x", WithCommitDelay(time.Hour))
	dh.doc = "xy"
	dh.h.OnChange()

	dh.h.Flush()
	assert.True(t, dh.h.CanUndo())
	assert.Equal(t, "xy", dh.h.State().Doc)
}

func TestHistoryDeltaGranularity(t *testing.T) {
	dh := newDocHarness("<p>Hello</p>")
	dh.edit("<p>Hello World</p>")

	// the engine stores the single changed hunk, not the whole document
	st := dh.h.Undo()
	assert.Equal(t, "<p>Hello</p>", st.Doc)
	st = dh.h.Redo()
	assert.Equal(t, "<p>Hello World</p>", st.Doc)
}
