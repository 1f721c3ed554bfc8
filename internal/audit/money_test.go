package audit

import "testing"

func TestParseAmount(t *testing.T) {
	cases := []struct {
		raw  string
		want int64
	}{
		{"1.234,56", 123456},
		{"R$ 1.234,56", 123456},
		{"R$1.234,56", 123456},
		{"1234,5", 123450},
		{"1234.56", 123456},
		{"1.234", 123400},
		{"1.234.567", 123456700},
		{"150", 15000},
		{"0", 0},
		{"", 0},
		{"nan", 0},
		{"NULL", 0},
		{"-10,50", -1050},
		{",50", 50},
	}

	for _, tc := range cases {
		got, err := ParseAmount(tc.raw)
		if err != nil {
			t.Fatalf("ParseAmount(%q): %v", tc.raw, err)
		}
		if got != tc.want {
			t.Fatalf("ParseAmount(%q) = %d, want %d", tc.raw, got, tc.want)
		}
	}
}

func TestParseAmountRejectsGarbage(t *testing.T) {
	for _, raw := range []string{"abc", "12x4", "R$ dez"} {
		if _, err := ParseAmount(raw); err == nil {
			t.Fatalf("ParseAmount(%q): expected error", raw)
		}
	}
}
