package keys

import (
	"strings"
	"testing"
)

func TestKeyDeterministic(t *testing.T) {
	a := Key("sentinel", "item-1", "data")
	b := Key("sentinel", "item-1", "data")
	if a != b {
		t.Fatalf("same inputs gave different keys: %q vs %q", a, b)
	}
	if !strings.HasPrefix(a, "asset:sentinel:item-1:data:h=") {
		t.Fatalf("unexpected key shape: %q", a)
	}
}

func TestKeyDistinguishesSegments(t *testing.T) {
	// sanitized segments may collide; the hash over the raw triple
	// must not
	pairs := [][2]string{
		{Key("a", "b", "c"), Key("a", "b", "d")},
		{Key("a", "b", "c"), Key("a", "x", "c")},
		{Key("a", "b", "c"), Key("z", "b", "c")},
		{Key("a/b", "c", "d"), Key("a", "b/c", "d")},
	}
	for _, p := range pairs {
		if p[0] == p[1] {
			t.Fatalf("distinct triples collided: %q", p[0])
		}
	}
}

func TestSanitize(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"plain", "plain"},
		{"With Space", "With_Space"},
		{"a//b", "a-b"},
		{"a..b", "a..b"},
		{"  trimmed  ", "trimmed"},
		{"", "-"},
		{"ünïcode", "-n-code"},
	}
	for _, tc := range cases {
		if got := sanitize(tc.in); got != tc.want {
			t.Fatalf("sanitize(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestSanitizeTruncates(t *testing.T) {
	long := strings.Repeat("a", 500)
	if got := sanitize(long); len(got) != maxSegmentLen {
		t.Fatalf("len = %d, want %d", len(got), maxSegmentLen)
	}
}
