package version

import "testing"

func TestString(t *testing.T) {
	oldV, oldC := Version, Commit
	defer func() { Version, Commit = oldV, oldC }()

	Version, Commit = "1.2.3", ""
	if got := String(); got != "1.2.3" {
		t.Fatalf("got %q", got)
	}
	Commit = "abc123"
	if got := String(); got != "1.2.3 (abc123)" {
		t.Fatalf("got %q", got)
	}
}
