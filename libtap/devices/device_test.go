package devices

import "testing"

func TestNumberMkdevRoundTrip(t *testing.T) {
	for _, n := range []Number{
		{Major: 237, Minor: 2},
		{Major: 1, Minor: 1},
		{Major: 4095, Minor: 1048575},
		{Major: 10, Minor: 300},
	} {
		got := FromMkdev(n.Mkdev())
		if got != n {
			t.Errorf("FromMkdev(%v.Mkdev()) = %v", n, got)
		}
	}
}

func TestNumberValid(t *testing.T) {
	tests := []struct {
		n     Number
		valid bool
	}{
		{Number{Major: 237, Minor: 2}, true},
		{Number{Major: 0, Minor: 2}, false},
		{Number{Major: 237, Minor: 0}, false},
		{Number{}, false},
	}
	for _, tc := range tests {
		if got := tc.n.Valid(); got != tc.valid {
			t.Errorf("%v.Valid() = %v, want %v", tc.n, got, tc.valid)
		}
	}
}

func TestNumberString(t *testing.T) {
	if got := (Number{Major: 237, Minor: 2}).String(); got != "237:2" {
		t.Fatalf("got %q, want %q", got, "237:2")
	}
}
