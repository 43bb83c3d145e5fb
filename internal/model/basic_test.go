package model

import (
	"testing"
)

func TestParsePrice(t *testing.T) {
	cases := []struct {
		in   string
		want Price
	}{
		{"0", 0},
		{"1", 1_0000_0000},
		{"100.5", 100_5000_0000},
		{"0.00000001", 1},
		{"30000.01", 30000_0100_0000},
		{"-2.5", -2_5000_0000},
		{"+3", 3_0000_0000},
		// digits beyond the scale truncate
		{"1.123456789", 1_1234_5678},
	}
	for _, c := range cases {
		got, err := ParsePrice(c.in)
		if err != nil {
			t.Fatalf("parse %q: %v", c.in, err)
		}
		if got != c.want {
			t.Fatalf("parse %q: got %d want %d", c.in, got, c.want)
		}
	}
}

func TestParsePriceRejectsMalformed(t *testing.T) {
	for _, in := range []string{"", "-", "+", "abc", "1.2.3", "1,5", "12a"} {
		if _, err := ParsePrice(in); err == nil {
			t.Fatalf("parse %q: expected error", in)
		}
	}
}

func TestPriceString(t *testing.T) {
	cases := []struct {
		in   Price
		want string
	}{
		{0, "0.00000000"},
		{1, "0.00000001"},
		{1_0000_0000, "1.00000000"},
		{100_5000_0000, "100.50000000"},
		{-2_5000_0000, "-2.50000000"},
	}
	for _, c := range cases {
		if got := c.in.String(); got != c.want {
			t.Fatalf("format %d: got %q want %q", c.in, got, c.want)
		}
	}
}

func TestParseQuantityRoundTrip(t *testing.T) {
	q, err := ParseQuantity("12.34500000")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if got := q.String(); got != "12.34500000" {
		t.Fatalf("round trip mismatch: %q", got)
	}
}
