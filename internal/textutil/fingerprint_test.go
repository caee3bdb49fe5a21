package textutil

import (
	"testing"
	"unicode/utf8"
)

// TestFingerprintDeterministic verifies that equal content always hashes the same
func TestFingerprintDeterministic(t *testing.T) {
	testCases := []struct {
		name string
		a    string
		b    string
		same bool
	}{
		{
			name: "identical text",
			a:    "great video!",
			b:    "great video!",
			same: true,
		},
		{
			name: "whitespace differences collapse",
			a:    "  great   video! ",
			b:    "great video!",
			same: true,
		},
		{
			name: "different text",
			a:    "great video!",
			b:    "terrible video!",
			same: false,
		},
		{
			name: "case sensitive",
			a:    "Great video!",
			b:    "great video!",
			same: false,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			ha := Fingerprint(tc.a)
			hb := Fingerprint(tc.b)
			if (ha == hb) != tc.same {
				t.Errorf("Fingerprint(%q)=%s vs Fingerprint(%q)=%s, same=%v want %v",
					tc.a, ha, tc.b, hb, ha == hb, tc.same)
			}
			if len(ha) != 64 {
				t.Errorf("unexpected hash length: got %d, want 64", len(ha))
			}
		})
	}
}

func TestClean(t *testing.T) {
	got := Clean("\n  hello   world\t!\n")
	if got != "hello world !" {
		t.Errorf("Clean() = %q, want %q", got, "hello world !")
	}
}

func TestTruncate(t *testing.T) {
	if got := Truncate("abcdef", 4); got != "abcd" {
		t.Errorf("Truncate() = %q, want %q", got, "abcd")
	}
	if got := Truncate("ab", 4); got != "ab" {
		t.Errorf("Truncate() = %q, want %q", got, "ab")
	}
}

func TestTruncateKeepsRunesIntact(t *testing.T) {
	// "héllo": the é spans bytes 1-2, so a byte cut at 2 would split it.
	if got := Truncate("héllo", 2); got != "h" {
		t.Errorf("Truncate() = %q, want %q", got, "h")
	}
	for n := 0; n <= 8; n++ {
		got := Truncate("日本語", n)
		if !utf8.ValidString(got) {
			t.Errorf("Truncate(%q, %d) = %q is not valid UTF-8", "日本語", n, got)
		}
		if len(got) > n {
			t.Errorf("Truncate(%q, %d) returned %d bytes", "日本語", n, len(got))
		}
	}
}
