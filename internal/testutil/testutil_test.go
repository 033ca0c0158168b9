package testutil

import "testing"

func TestCharMajorMem(t *testing.T) {
	// mem (/dev/null, /dev/zero) has been major 1 forever.
	if got := CharMajor(t, "mem"); got != 1 {
		t.Fatalf("mem major is %d, want 1", got)
	}
}
