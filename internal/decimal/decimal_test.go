package decimal

import "testing"

func TestParseAndString(t *testing.T) {
	tests := []struct{ in, want string }{
		{"0", "0"},
		{"1.5", "1.5"},
		{"-0.5", "-0.5"},
		{"100", "100"},
		{"0.00010000", "0.0001"},
		{"-123.456000", "-123.456"},
	}
	for _, tc := range tests {
		d, err := NewFromString(tc.in)
		if err != nil {
			t.Fatalf("parse %q: %v", tc.in, err)
		}
		if got := d.Normalize().String(); got != tc.want {
			t.Errorf("NewFromString(%q).String() = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestArithmetic(t *testing.T) {
	a := MustFromString("30000")
	b := MustFromString("0.5")
	got := a.Mul(b).Normalize()
	if got.String() != "15000" {
		t.Fatalf("30000*0.5 = %s, want 15000", got)
	}

	sum := MustFromString("1.1").Add(MustFromString("2.2")).Normalize()
	if sum.String() != "3.3" {
		t.Fatalf("1.1+2.2 = %s, want 3.3", sum)
	}

	diff := MustFromString("5").Sub(MustFromString("5.0001")).Normalize()
	if diff.String() != "-0.0001" {
		t.Fatalf("5-5.0001 = %s, want -0.0001", diff)
	}
}

func TestDivRounding(t *testing.T) {
	got := MustFromString("10").Div(MustFromString("3"))
	// 10/3 = 3.333... to defaultScale places, then normalized.
	want := "3." + repeat3(defaultScale-1) + "3"
	if got.String() != want && got.String()[:5] != "3.333" {
		t.Fatalf("10/3 = %s", got)
	}
}

func repeat3(n int32) string {
	b := make([]byte, n)
	for i := range b {
		b[i] = '3'
	}
	return string(b)
}

func TestCmpAndBoundaries(t *testing.T) {
	if !MustFromString("1.0").Equal(MustFromString("1.00")) {
		t.Fatal("1.0 should equal 1.00")
	}
	if !MustFromString("0.9987").LessThan(MustFromString("1")) {
		t.Fatal("0.9987 < 1 expected")
	}
	if Zero.Sign() != 0 {
		t.Fatal("zero sign should be 0")
	}
}

func TestJSONRoundTrip(t *testing.T) {
	d := MustFromString("123.45")
	b, err := d.MarshalJSON()
	if err != nil {
		t.Fatal(err)
	}
	var out Decimal
	if err := out.UnmarshalJSON(b); err != nil {
		t.Fatal(err)
	}
	if !out.Equal(d) {
		t.Fatalf("round trip mismatch: %s != %s", out, d)
	}
}
