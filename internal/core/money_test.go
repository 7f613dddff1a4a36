package core

import "testing"

func TestFromMilliunits(t *testing.T) {
	if got := FromMilliunits(2000000); got != 2000 {
		t.Fatalf("FromMilliunits(2000000)=%v", got)
	}
	if got := FromMilliunits(-450000); got != -450 {
		t.Fatalf("FromMilliunits(-450000)=%v", got)
	}
	if got := FromMilliunits(1234); got != 1.234 {
		t.Fatalf("FromMilliunits(1234)=%v", got)
	}
}

func TestFormatCurrency(t *testing.T) {
	cases := []struct {
		in   float64
		want string
	}{
		{1550, "$1,550.00"},
		{0.5, "$0.50"},
		{1234567.891, "$1,234,567.89"},
		{-12, "-$12.00"},
	}
	for _, tc := range cases {
		if got := FormatCurrency(tc.in); got != tc.want {
			t.Errorf("FormatCurrency(%v)=%q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestFormatWhole(t *testing.T) {
	if got := FormatWhole(1549.6); got != "$1,550" {
		t.Fatalf("FormatWhole=%q", got)
	}
	if got := FormatWhole(-450); got != "-$450" {
		t.Fatalf("FormatWhole=%q", got)
	}
}
