package cryptoutil

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"testing"
)

// SHA256Hex

func TestSHA256Hex_KnownVector(t *testing.T) {
	want := "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"
	if got := SHA256Hex([]byte{}); got != want {
		t.Fatalf("SHA256Hex(empty) = %q, want %q", got, want)
	}
}

func TestSHA256Hex_MatchesStdlib(t *testing.T) {
	data := []byte("This\nis\na\nstring\n")
	h := sha256.Sum256(data)
	if got, want := SHA256Hex(data), hex.EncodeToString(h[:]); got != want {
		t.Fatalf("SHA256Hex = %q, want %q", got, want)
	}
}

// HashEqual

func TestHashEqual(t *testing.T) {
	a := SHA256Hex([]byte("01234"))
	if !HashEqual(a, SHA256Hex([]byte("01234"))) {
		t.Fatal("same value should be equal")
	}
	if HashEqual(a, SHA256Hex([]byte("43210"))) {
		t.Fatal("different values should differ")
	}
	if HashEqual(a, strings.ToUpper(a)) {
		t.Fatal("comparison is case-sensitive")
	}
	if HashEqual(a, a[:32]) {
		t.Fatal("full hash should not equal its prefix")
	}
}

// ETag

func TestETag_Format(t *testing.T) {
	tag := ETag([]byte("01234"))
	if !strings.HasPrefix(tag, `"sha256-`) || !strings.HasSuffix(tag, `"`) {
		t.Fatalf("ETag = %q", tag)
	}
	if len(tag) != len(`"sha256-"`)+64 {
		t.Fatalf("ETag length = %d", len(tag))
	}
	if ETag([]byte("01234")) != tag {
		t.Fatal("ETag should be deterministic")
	}
}

func TestETagMatch(t *testing.T) {
	tag := ETag([]byte("String A\n"))
	other := ETag([]byte("String B\n"))

	tests := []struct {
		header string
		want   bool
	}{
		{"", false},
		{"*", true},
		{tag, true},
		{"W/" + tag, true},
		{other, false},
		{other + ", " + tag, true},
		{" " + other + " ,W/" + tag + " ", true},
		{`"sha256-"`, false},
	}
	for _, tt := range tests {
		if got := ETagMatch(tt.header, tag); got != tt.want {
			t.Errorf("ETagMatch(%q) = %v, want %v", tt.header, got, tt.want)
		}
	}
	if ETagMatch("*", "") {
		t.Fatal("empty etag never matches")
	}
}

// Fuzz

func FuzzSHA256Hex(f *testing.F) {
	f.Add([]byte(""))
	f.Add([]byte("hello"))
	f.Add([]byte{0xff, 0xfe, 0xfd})

	f.Fuzz(func(t *testing.T, data []byte) {
		result := SHA256Hex(data)
		if len(result) != 64 || result != strings.ToLower(result) {
			t.Errorf("SHA256Hex = %q", result)
		}
		h := sha256.Sum256(data)
		if want := hex.EncodeToString(h[:]); result != want {
			t.Errorf("SHA256Hex = %q, stdlib = %q", result, want)
		}
	})
}

func FuzzHashEqual(f *testing.F) {
	f.Add("abc", "abc")
	f.Add("abc", "def")
	f.Add("", "")

	f.Fuzz(func(t *testing.T, a, b string) {
		if got := HashEqual(a, b); got != (a == b) {
			t.Errorf("HashEqual(%q, %q) = %v", a, b, got)
		}
		if HashEqual(a, b) != HashEqual(b, a) {
			t.Errorf("HashEqual not symmetric for %q, %q", a, b)
		}
	})
}
