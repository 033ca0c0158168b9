package libtap

import "strconv"

// IfNameSize mirrors the kernel's IFNAMSIZ, which includes the
// terminating NUL.
const IfNameSize = 16

// ValidName reports whether name is acceptable to the kernel as a
// network interface name, following dev_valid_name() in net/core/dev.c.
func ValidName(name string) bool {
	if name == "" || len(name) >= IfNameSize {
		return false
	}
	if name == "." || name == ".." {
		return false
	}
	for i := 0; i < len(name); i++ {
		switch c := name[i]; {
		case c == '/', c == ':', c == 0:
			return false
		case isSpace(c):
			return false
		}
	}
	return true
}

// isSpace is the kernel's isspace(): lib/ctype.c marks HT..CR, SP and
// the Latin-1 no-break space.
func isSpace(c byte) bool {
	return (c >= '\t' && c <= '\r') || c == ' ' || c == 0xa0
}

func validateName(name string) error {
	if !ValidName(name) {
		return newError(ErrArgumentInvalid, "validate interface name "+strconv.Quote(name), nil)
	}
	return nil
}
