package util

import "testing"

func TestParseBoolDefault(t *testing.T) {
	cases := []struct {
		in   string
		def  bool
		want bool
	}{
		{"", true, true},
		{"false", true, false},
		{"1", false, true},
		{"maybe", true, true},
	}
	for _, c := range cases {
		if got := ParseBoolDefault(c.in, c.def); got != c.want {
			t.Fatalf("ParseBoolDefault(%q, %v) = %v", c.in, c.def, got)
		}
	}
}

func TestNormalizeHeader(t *testing.T) {
	if got := NormalizeHeader("\ufeff  Math Score "); got != "math score" {
		t.Fatalf("unexpected header %q", got)
	}
}
