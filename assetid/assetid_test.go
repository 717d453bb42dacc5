package assetid

import "testing"

func TestNativeAndToken(t *testing.T) {
	if got := Native("Bitcoin"); got != "blockchain:bitcoin:native" {
		t.Fatalf("Native = %q", got)
	}
	if got := Token("Ethereum", "0xDEADBEEF00000000000000000000000000000000", FamilyEVM); got != "blockchain:ethereum:token:0xdeadbeef00000000000000000000000000000000" {
		t.Fatalf("Token = %q", got)
	}
}

func TestFiat(t *testing.T) {
	if got := Fiat("usd"); got != "fiat:USD" {
		t.Fatalf("Fiat = %q", got)
	}
}

func TestAddressFamilyCaseSensitivity(t *testing.T) {
	base58 := "1A1zP1eP5QGefi2DMPTfTL5SLmv7DivfNa"
	if got := NormalizeAddress(base58, FamilyBase58); got != base58 {
		t.Fatalf("base58 address must be preserved as-is, got %q", got)
	}
	xpub := "xpub6CUGRUonZSQ4TWtTMmzXdrXDtypWKiKrhko4egpiMZbpiaQL2jkwSB1icqYh2cfDfVxdx4df189oLKnC5fSwqPfgyP3hooxujYzAu3fDVmz"
	if got := NormalizeAddress(xpub, FamilyExtendedPublicKey); got != xpub {
		t.Fatalf("xpub must be preserved as-is")
	}
}

func TestParseRoundTrip(t *testing.T) {
	p, err := Parse(Native("near"))
	if err != nil || p.Kind != KindNative || p.Chain != "near" {
		t.Fatalf("Parse(Native) = %+v, %v", p, err)
	}
	p, err = Parse(Token("ethereum", "0xabc", FamilyEVM))
	if err != nil || p.Kind != KindToken || p.Address != "0xabc" {
		t.Fatalf("Parse(Token) = %+v, %v", p, err)
	}
	p, err = Parse(Fiat("EUR"))
	if err != nil || p.Kind != KindFiat || p.ISOCode != "EUR" {
		t.Fatalf("Parse(Fiat) = %+v, %v", p, err)
	}
	if _, err := Parse("garbage"); err == nil {
		t.Fatal("expected error for unrecognized identity")
	}
}

func TestIsFiat(t *testing.T) {
	if !IsFiat("fiat:USD") {
		t.Fatal("fiat:USD should be fiat")
	}
	if IsFiat("blockchain:bitcoin:native") {
		t.Fatal("native BTC should not be fiat")
	}
}
