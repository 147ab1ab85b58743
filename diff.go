package minidoc

// Diff computes the minimal single-contiguous-span difference between two
// document serializations. It scans the longest common prefix and then the
// longest common suffix that does not overlap the prefix; everything in
// between is the delta. Returns nil when the strings are equal, so no-op
// commits are detectable and skippable.
//
// This deliberately does not attempt a minimal multi-hunk diff. Editors
// generate localized edits almost always, so a single-hunk diff is
// sufficient and trivially invertible with one splice.
func Diff(s1, s2 string) *StrDelta {
	if s1 == s2 {
		return nil
	}

	shortest := len(s1)
	if len(s2) < shortest {
		shortest = len(s2)
	}

	prefix := 0
	for prefix < shortest && s1[prefix] == s2[prefix] {
		prefix++
	}

	suffix := 0
	for suffix < shortest-prefix && s1[len(s1)-1-suffix] == s2[len(s2)-1-suffix] {
		suffix++
	}

	return &StrDelta{
		Index: prefix,
		Old:   s1[prefix : len(s1)-suffix],
		New:   s2[prefix : len(s2)-suffix],
	}
}

// Undo reverses the delta against the newer string, reproducing the older
// one. Single splice, exact inverse of Redo.
func (d *StrDelta) Undo(s2 string) string {
	return s2[:d.Index] + d.Old + s2[d.Index+len(d.New):]
}

// Redo applies the delta to the older string, reproducing the newer one.
func (d *StrDelta) Redo(s1 string) string {
	return s1[:d.Index] + d.New + s1[d.Index+len(d.Old):]
}
