package core

import (
	"encoding/json"
	"errors"
	"math"
	"testing"
)

func TestParseMoney(t *testing.T) {
	cases := []struct {
		in  string
		out int64
		ok  bool
	}{
		{"1", 100, true},
		{"1.0", 100, true},
		{"1.23", 123, true},
		{"1,23", 123, true},
		{"0.01", 1, true},
		{"1.005", 101, true}, // half-up rounding
		{"12.345", 1235, true},
		{" 2.50 ", 250, true},
		{"0", 0, true},
		{"-1", 0, false},
		{"abc", 0, false},
		{"1.2.3", 0, false},
		{"", 0, false},
	}
	for _, tc := range cases {
		got, err := ParseMoney(tc.in)
		if tc.ok {
			if err != nil || got.Cents != tc.out {
				t.Fatalf("%q expected %d, got %d (err=%v)", tc.in, tc.out, got.Cents, err)
			}
		} else if err == nil {
			t.Fatalf("%q expected error", tc.in)
		}
	}
}

func TestMoneyString(t *testing.T) {
	cases := map[int64]string{
		0:      "0.00",
		5:      "0.05",
		10000:  "100.00",
		-4000:  "-40.00",
		123456: "1234.56",
	}
	for cents, want := range cases {
		if got := (Money{Cents: cents}).String(); got != want {
			t.Errorf("Money{%d}.String() = %q, want %q", cents, got, want)
		}
	}
}

func TestMoneyJSON(t *testing.T) {
	b, err := json.Marshal(Money{Cents: 6000})
	if err != nil || string(b) != `"60.00"` {
		t.Fatalf("marshal: %s err=%v", b, err)
	}

	var fromString, fromNumber Money
	if err := json.Unmarshal([]byte(`"12.30"`), &fromString); err != nil || fromString.Cents != 1230 {
		t.Fatalf("string: %+v err=%v", fromString, err)
	}
	if err := json.Unmarshal([]byte(`12.3`), &fromNumber); err != nil || fromNumber.Cents != 1230 {
		t.Fatalf("number: %+v err=%v", fromNumber, err)
	}

	var bad Money
	if err := json.Unmarshal([]byte(`"-3"`), &bad); err == nil {
		t.Fatal("expected error for negative amount")
	}
}

func TestMoneyCheckedAdd(t *testing.T) {
	got, err := Money{Cents: 150}.CheckedAdd(Money{Cents: 250})
	if err != nil || got.Cents != 400 {
		t.Fatalf("got %d err=%v", got.Cents, err)
	}
	if _, err := (Money{Cents: math.MaxInt64}).CheckedAdd(Money{Cents: 1}); !errors.Is(err, ErrAmountOverflow) {
		t.Fatalf("expected overflow, got %v", err)
	}
	if _, err := (Money{Cents: math.MinInt64}).CheckedAdd(Money{Cents: -1}); !errors.Is(err, ErrAmountOverflow) {
		t.Fatalf("expected negative overflow, got %v", err)
	}
}
