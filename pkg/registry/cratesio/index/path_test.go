package index

import "testing"

func TestEntryPath(t *testing.T) {
	cases := []struct {
		name string
		want string
	}{
		{"a", "1/a"},
		{"ab", "2/ab"},
		{"abc", "3/a/abc"},
		{"abcd", "ab/cd/abcd"},
		{"eliseissuperdupercute", "el/is/eliseissuperdupercute"},
	}
	for _, c := range cases {
		if got := EntryPath(c.name); got != c.want {
			t.Errorf("EntryPath(%q) = %q, want %q", c.name, got, c.want)
		}
	}
}

func TestEntryPathLowercases(t *testing.T) {
	if got, want := EntryPath("FOO"), EntryPath("foo"); got != want {
		t.Errorf("EntryPath is not case-insensitive: %q != %q", got, want)
	}
}

func TestEntryPathPanicsOnInvalidName(t *testing.T) {
	cases := []string{"", ".", "a/b", "a.b", "a\\b"}
	for _, name := range cases {
		func() {
			defer func() {
				if recover() == nil {
					t.Errorf("EntryPath(%q) did not panic", name)
				}
			}()
			EntryPath(name)
		}()
	}
}
