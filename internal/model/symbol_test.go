package model

import "testing"

func TestParseSymbol(t *testing.T) {
	cases := []struct {
		in   string
		want Symbol
	}{
		{"BTC/USDT", Symbol{Base: "BTC", Quote: "USDT"}},
		{"eth-usd", Symbol{Base: "ETH", Quote: "USD"}},
		{"sol/USDT", Symbol{Base: "SOL", Quote: "USDT"}},
	}
	for _, c := range cases {
		got, err := ParseSymbol(c.in)
		if err != nil {
			t.Fatalf("parse %q: %v", c.in, err)
		}
		if got != c.want {
			t.Fatalf("parse %q: got %+v want %+v", c.in, got, c.want)
		}
	}
}

func TestParseSymbolRejectsMalformed(t *testing.T) {
	for _, in := range []string{"", "BTCUSDT", "/USDT", "BTC/", "-"} {
		if _, err := ParseSymbol(in); err == nil {
			t.Fatalf("parse %q: expected error", in)
		}
	}
}

func TestSymbolRenderings(t *testing.T) {
	s := NewSymbol("btc", "usdt")
	if s.String() != "BTC/USDT" {
		t.Fatalf("string: %q", s.String())
	}
	if s.Concat() != "BTCUSDT" {
		t.Fatalf("concat: %q", s.Concat())
	}
	if s.IsZero() {
		t.Fatal("symbol should not be zero")
	}
	if !(Symbol{}).IsZero() {
		t.Fatal("empty symbol should be zero")
	}
}
