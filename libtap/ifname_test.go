package libtap

import (
	"errors"
	"strings"
	"testing"
)

func TestValidNameAccepts(t *testing.T) {
	for _, name := range []string{
		"a",
		"tap0",
		"macvtap-vm1",
		"eth0.100",
		"...",
		".a",
		"a..",
		"x_y@z",
		strings.Repeat("a", IfNameSize-1),
		"été",
	} {
		if !ValidName(name) {
			t.Errorf("ValidName(%q) = false, want true", name)
		}
	}
}

func TestValidNameRejects(t *testing.T) {
	for _, name := range []string{
		"",
		".",
		"..",
		strings.Repeat("a", IfNameSize),
		strings.Repeat("a", IfNameSize+1),
		strings.Repeat("a", 255),
		"a\x00b",
	} {
		if ValidName(name) {
			t.Errorf("ValidName(%q) = true, want false", name)
		}
	}
}

func TestValidNameForbiddenCharacters(t *testing.T) {
	forbidden := []byte{'/', ':', ' ', '\t', '\n', '\v', '\f', '\r', 0xa0}
	for _, c := range forbidden {
		ch := string([]byte{c})
		for _, name := range []string{
			ch,
			ch + "tap0",
			"tap" + ch + "0",
			"tap0" + ch,
			strings.Repeat("a", IfNameSize-2) + ch,
		} {
			if ValidName(name) {
				t.Errorf("ValidName(%q) = true, want false", name)
			}
		}
	}
}

func TestValidNameLengthBoundary(t *testing.T) {
	for n := 1; n <= IfNameSize+1; n++ {
		name := strings.Repeat("t", n)
		want := n < IfNameSize
		if got := ValidName(name); got != want {
			t.Errorf("ValidName(len %d) = %v, want %v", n, got, want)
		}
	}
}

func TestValidateNameError(t *testing.T) {
	err := validateName("tap/0")
	if !errors.Is(err, ErrArgumentInvalid) {
		t.Fatalf("expected ErrArgumentInvalid, got %v", err)
	}
	if !strings.Contains(err.Error(), `"tap/0"`) {
		t.Fatalf("error does not quote the name: %v", err)
	}
	if err := validateName("tap0"); err != nil {
		t.Fatal(err)
	}
}
