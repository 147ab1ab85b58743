package minidoc

import (
	"testing"
)

func TestDiffSingleHunk(t *testing.T) {
	tests := []struct {
		name    string
		s1      string
		s2      string
		index   int
		oldText string
		newText string
	}{
		{
			name:    "Append",
			s1:      "<p>Hello</p>",
			s2:      "<p>Hello World</p>",
			index:   8,
			oldText: "",
			newText: " World",
		},
		{
			name:    "Prepend",
			s1:      "World",
			s2:      "Hello World",
			index:   0,
			oldText: "",
			newText: "Hello ",
		},
		{
			name:    "Insert Middle",
			s1:      "<p>Hello World</p>",
			s2:      "<p>Hello Go World</p>",
			index:   9,
			oldText: "",
			newText: "Go ",
		},
		{
			name:    "Delete End",
			s1:      "<p>Hello World</p>",
			s2:      "<p>Hello</p>",
			index:   8,
			oldText: " World",
			newText: "",
		},
		{
			name:    "Replace Middle",
			s1:      "<p>Hello Old World</p>",
			s2:      "<p>Hello New World</p>",
			index:   9,
			oldText: "Old",
			newText: "New",
		},
		{
			name:    "Delete All",
			s1:      "abc",
			s2:      "",
			index:   0,
			oldText: "abc",
			newText: "",
		},
		{
			name:    "Insert Into Empty",
			s1:      "",
			s2:      "abc",
			index:   0,
			oldText: "",
			newText: "abc",
		},
		{
			name:    "Overlapping Repeat",
			s1:      "aaa",
			s2:      "aaaa",
			index:   3,
			oldText: "",
			newText: "a",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := Diff(tt.s1, tt.s2)
			if d == nil {
				t.Fatalf("Diff returned nil for differing strings")
			}
			if d.Index != tt.index {
				t.Errorf("Index mismatch. Want %d, Got %d", tt.index, d.Index)
			}
			if d.Old != tt.oldText {
				t.Errorf("Old mismatch. Want %q, Got %q", tt.oldText, d.Old)
			}
			if d.New != tt.newText {
				t.Errorf("New mismatch. Want %q, Got %q", tt.newText, d.New)
			}
		})
	}
}

func TestDiffEqualStrings(t *testing.T) {
	if d := Diff("same", "same"); d != nil {
		t.Errorf("Expected nil delta for equal strings, got %+v", d)
	}
	if d := Diff("", ""); d != nil {
		t.Errorf("Expected nil delta for empty strings, got %+v", d)
	}
}

func TestDiffRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		s1   string
		s2   string
	}{
		{"Simple Insert", "<p>ab</p>", "<p>axb</p>"},
		{"Simple Delete", "<p>abc</p>", "<p>ac</p>"},
		{"Replace", "<h1>Title</h1>", "<h1>Heading</h1>"},
		{"Disjoint", "abc", "xyz"},
		{"Common Affixes", "prefix-mid-suffix", "prefix-center-suffix"},
		{"Repeated Runs", "aaabaaa", "aaacaaa"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := Diff(tt.s1, tt.s2)
			if d == nil {
				t.Fatalf("Diff returned nil")
			}
			if got := d.Undo(tt.s2); got != tt.s1 {
				t.Errorf("Undo mismatch. Want %q, Got %q", tt.s1, got)
			}
			if got := d.Redo(tt.s1); got != tt.s2 {
				t.Errorf("Redo mismatch. Want %q, Got %q", tt.s2, got)
			}
		})
	}
}
