// Package assetid constructs and normalizes the canonical asset identity
// strings: blockchain:<chain>:native, blockchain:<chain>:token:<address>,
// and fiat:<ISO_4217>.
package assetid

import (
	"fmt"
	"strings"
)

// AddressFamily selects the normalization rule for a contract/token
// address, since different chains use incompatible case conventions.
type AddressFamily int

const (
	// FamilyEVM lowercases hex addresses (0x-prefixed).
	FamilyEVM AddressFamily = iota
	// FamilyBech32CashAddr lowercases the whole address (Bitcoin bech32,
	// Bitcoin Cash cashaddr).
	FamilyBech32CashAddr
	// FamilyBase58 keeps legacy Base58 addresses exactly as provided —
	// Base58 is case-sensitive by construction.
	FamilyBase58
	// FamilyExtendedPublicKey keeps xpub/ypub/zpub exactly as provided.
	FamilyExtendedPublicKey
)

// NormalizeChain lowercases a chain name to its canonical chain ID. Callers
// are expected to pass already-canonical chain slugs (e.g. "ethereum",
// "bitcoin", "near"); this only guards against stray casing from upstream
// provider configuration.
func NormalizeChain(chain string) string {
	return strings.ToLower(strings.TrimSpace(chain))
}

// NormalizeAddress applies the family-specific casing rule.
func NormalizeAddress(addr string, family AddressFamily) string {
	switch family {
	case FamilyEVM, FamilyBech32CashAddr:
		return strings.ToLower(strings.TrimSpace(addr))
	case FamilyBase58, FamilyExtendedPublicKey:
		return strings.TrimSpace(addr)
	default:
		return strings.TrimSpace(addr)
	}
}

// Native returns the asset identity for a chain's native asset, e.g.
// "blockchain:bitcoin:native".
func Native(chain string) string {
	return fmt.Sprintf("blockchain:%s:native", NormalizeChain(chain))
}

// Token returns the asset identity for a token contract on chain, e.g.
// "blockchain:ethereum:token:0xdeadbeef...".
func Token(chain, contractAddress string, family AddressFamily) string {
	return fmt.Sprintf("blockchain:%s:token:%s", NormalizeChain(chain), NormalizeAddress(contractAddress, family))
}

// Fiat returns the asset identity for an ISO 4217 fiat currency, e.g.
// "fiat:USD". The code is upper-cased since ISO 4217 codes are
// conventionally uppercase regardless of how the source presented them.
func Fiat(isoCode string) string {
	return fmt.Sprintf("fiat:%s", strings.ToUpper(strings.TrimSpace(isoCode)))
}

// Kind classifies a canonical asset identity string.
type Kind int

const (
	KindUnknown Kind = iota
	KindNative
	KindToken
	KindFiat
)

// Parsed is the decomposed form of a canonical asset identity.
type Parsed struct {
	Kind    Kind
	Chain   string // set for KindNative/KindToken
	Address string // set for KindToken
	ISOCode string // set for KindFiat
}

// Parse decomposes a canonical asset identity string produced by Native,
// Token, or Fiat. It returns an error for anything that doesn't match one
// of the three canonical shapes — processors must fail fast rather than
// guess at an unrecognized identity.
func Parse(id string) (Parsed, error) {
	parts := strings.SplitN(id, ":", 4)
	switch {
	case len(parts) == 2 && parts[0] == "fiat":
		return Parsed{Kind: KindFiat, ISOCode: parts[1]}, nil
	case len(parts) == 3 && parts[0] == "blockchain" && parts[2] == "native":
		return Parsed{Kind: KindNative, Chain: parts[1]}, nil
	case len(parts) == 4 && parts[0] == "blockchain" && parts[2] == "token":
		return Parsed{Kind: KindToken, Chain: parts[1], Address: parts[3]}, nil
	default:
		return Parsed{}, fmt.Errorf("assetid: unrecognized identity %q", id)
	}
}

// IsFiat is a convenience predicate used by the cost-basis engine, which
// tolerates missing prices on fiat movements but not on crypto ones.
func IsFiat(id string) bool {
	p, err := Parse(id)
	return err == nil && p.Kind == KindFiat
}
