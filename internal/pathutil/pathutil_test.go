// File: internal/pathutil/pathutil_test.go
package pathutil

import "testing"

func TestToPOSIX(t *testing.T) {
	cases := map[string]string{
		`C:\repo\src\main.go`: "repo/src/main.go",
		`src\main.go`:         "src/main.go",
		"src/main.go":         "src/main.go",
		`D:\a\b`:              "a/b",
	}
	for in, want := range cases {
		if got := ToPOSIX(in); got != want {
			t.Errorf("ToPOSIX(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestJoin(t *testing.T) {
	got := Join(`C:\repo\`, `\src\`, "main.go")
	want := "repo/src/main.go"
	if got != want {
		t.Errorf("Join(...) = %q, want %q", got, want)
	}
}

func TestIsWindowsStyle(t *testing.T) {
	if !IsWindowsStyle(`C:\repo\main.go`) {
		t.Error("expected Windows-style path to be detected")
	}
	if IsWindowsStyle("repo/main.go") {
		t.Error("did not expect POSIX path to be flagged Windows-style")
	}
}
