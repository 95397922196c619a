package storage

import "testing"

func TestTokenize(t *testing.T) {
	cases := []struct {
		in   string
		want []string
	}{
		{"Kyiv", []string{"kyiv"}},
		{"New York City", []string{"new", "york", "city"}},
		{"Donetsk-People's Republic", []string{"donetsk", "people", "s", "republic"}},
		{"  ", nil},
		{"MH17", []string{"mh17"}},
	}
	for _, tc := range cases {
		got := Tokenize(tc.in)
		if len(got) != len(tc.want) {
			t.Errorf("Tokenize(%q) = %v, want %v", tc.in, got, tc.want)
			continue
		}
		for i := range got {
			if got[i] != tc.want[i] {
				t.Errorf("Tokenize(%q)[%d] = %q, want %q", tc.in, i, got[i], tc.want[i])
			}
		}
	}
}

func TestBoundedLevenshtein(t *testing.T) {
	cases := []struct {
		a, b string
		max  int
		want int
	}{
		{"kyiv", "kyiv", 2, 0},
		{"kyiv", "kiev", 2, 2},
		{"kyiv", "kyi", 2, 1},
		{"moscow", "minsk", 2, 3}, // exceeds max, reported as max+1
		{"", "ab", 2, 2},
		{"ab", "", 1, 2}, // exceeds max
		{"luhansk", "lugansk", 1, 1},
	}
	for _, tc := range cases {
		got := BoundedLevenshtein(tc.a, tc.b, tc.max)
		if got != tc.want {
			t.Errorf("BoundedLevenshtein(%q, %q, %d) = %d, want %d", tc.a, tc.b, tc.max, got, tc.want)
		}
	}
}
