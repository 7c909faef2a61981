package knowledge

import (
	"strings"
	"testing"
)

func TestCanonicalize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "Functions should do one thing.", "Functions should do one thing."},
		{"leading and trailing space", "  hello world  ", "hello world"},
		{"internal runs collapse", "hello\t\t world\n\nagain", "hello world again"},
		{"casing preserved", "Clean Code", "Clean Code"},
		{"empty", "", ""},
		{"only whitespace", " \n\t ", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Canonicalize(tt.in); got != tt.want {
				t.Errorf("Canonicalize(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestHashContent_Deterministic(t *testing.T) {
	a := HashContent("Functions should do one thing.")
	b := HashContent("Functions should do one thing.")
	if a != b {
		t.Errorf("same input produced different digests: %s vs %s", a, b)
	}
	if len(a) != 64 {
		t.Errorf("digest length = %d, want 64 hex chars", len(a))
	}
}

func TestHashContent_WhitespaceAndCaseFolded(t *testing.T) {
	base := HashContent("Functions should do one thing.")

	equivalents := []string{
		"  Functions should do one thing.  ",
		"functions SHOULD do one thing.",
		"Functions\nshould\tdo  one thing.",
	}
	for _, in := range equivalents {
		if got := HashContent(in); got != base {
			t.Errorf("HashContent(%q) = %s, want %s (canonically equal content)", in, got, base)
		}
	}
}

func TestHashContent_DistinctContent(t *testing.T) {
	a := HashContent("Functions should do one thing.")
	b := HashContent("Functions should do two things.")
	if a == b {
		t.Error("distinct content produced identical digests")
	}
}

func TestHashContent_LowercaseHex(t *testing.T) {
	digest := HashContent("some content")
	if digest != strings.ToLower(digest) {
		t.Errorf("digest should be lowercase hex: %s", digest)
	}
}
