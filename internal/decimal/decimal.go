// Package decimal implements arbitrary-precision decimal arithmetic for
// every monetary and asset-quantity value in the core, built on
// math/big.Int against a per-value scale rather than a fixed one, the
// same way wei arithmetic works against a fixed 18-decimal scale. This
// generalizes that approach to an arbitrary, per-value scale so it works
// for fiat cents, 8-decimal BTC, and 18-decimal ERC-20s alike. See
// DESIGN.md for why this is stdlib (math/big) rather than a third-party
// dependency.
package decimal

import (
	"fmt"
	"math/big"
)

// defaultScale bounds the number of decimal digits kept after division,
// matching the precision needed for 18-decimal token amounts plus a margin
// for intermediate cost-basis-per-unit computations.
const defaultScale = 36

// Decimal is an immutable arbitrary-precision decimal: value == coeff *
// 10^(-scale). All arithmetic returns a new Decimal; none mutates its
// receiver or operand.
type Decimal struct {
	coeff *big.Int
	scale int32
}

var pow10Cache = map[int32]*big.Int{}

func pow10(n int32) *big.Int {
	if n < 0 {
		panic("decimal: negative power of ten")
	}
	if v, ok := pow10Cache[n]; ok {
		return v
	}
	v := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(n)), nil)
	pow10Cache[n] = v
	return v
}

// Zero is the additive identity.
var Zero = Decimal{coeff: big.NewInt(0), scale: 0}

// NewFromInt64 builds an integer-valued Decimal.
func NewFromInt64(v int64) Decimal {
	return Decimal{coeff: big.NewInt(v), scale: 0}
}

// NewFromString parses a base-10 literal such as "123.456000" or "-0.5".
// It never uses float parsing, per the core's invariant that
// parseFloat/IEEE-754 is forbidden in math paths.
func NewFromString(s string) (Decimal, error) {
	if s == "" {
		return Decimal{}, fmt.Errorf("decimal: empty string")
	}
	neg := false
	if s[0] == '+' || s[0] == '-' {
		neg = s[0] == '-'
		s = s[1:]
	}
	intPart := s
	fracPart := ""
	if i := indexByte(s, '.'); i >= 0 {
		intPart, fracPart = s[:i], s[i+1:]
	}
	if intPart == "" {
		intPart = "0"
	}
	digits := intPart + fracPart
	if digits == "" {
		return Decimal{}, fmt.Errorf("decimal: invalid literal %q", s)
	}
	coeff, ok := new(big.Int).SetString(digits, 10)
	if !ok {
		return Decimal{}, fmt.Errorf("decimal: invalid literal %q", s)
	}
	if neg {
		coeff.Neg(coeff)
	}
	return Decimal{coeff: coeff, scale: int32(len(fracPart))}, nil
}

func indexByte(s string, b byte) int {
	for i := 0; i < len(s); i++ {
		if s[i] == b {
			return i
		}
	}
	return -1
}

// MustFromString is NewFromString, panicking on parse error. Intended for
// constants and tests, never for parsing untrusted provider data.
func MustFromString(s string) Decimal {
	d, err := NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func (d Decimal) rescale(scale int32) Decimal {
	if d.coeff == nil {
		d = Zero
	}
	if d.scale == scale {
		return d
	}
	if scale > d.scale {
		factor := pow10(scale - d.scale)
		return Decimal{coeff: new(big.Int).Mul(d.coeff, factor), scale: scale}
	}
	factor := pow10(d.scale - scale)
	q := new(big.Int)
	q.Quo(d.coeff, factor)
	return Decimal{coeff: q, scale: scale}
}

func align(a, b Decimal) (int32, *big.Int, *big.Int) {
	scale := a.scale
	if b.scale > scale {
		scale = b.scale
	}
	return scale, a.rescale(scale).coeff, b.rescale(scale).coeff
}

// Add returns a+b.
func (a Decimal) Add(b Decimal) Decimal {
	scale, x, y := align(a, b)
	return Decimal{coeff: new(big.Int).Add(x, y), scale: scale}
}

// Sub returns a-b.
func (a Decimal) Sub(b Decimal) Decimal {
	scale, x, y := align(a, b)
	return Decimal{coeff: new(big.Int).Sub(x, y), scale: scale}
}

// Mul returns a*b with scale = a.scale + b.scale (no rounding).
func (a Decimal) Mul(b Decimal) Decimal {
	if a.coeff == nil {
		a = Zero
	}
	if b.coeff == nil {
		b = Zero
	}
	return Decimal{coeff: new(big.Int).Mul(a.coeff, b.coeff), scale: a.scale + b.scale}
}

// Div returns a/b rounded to defaultScale decimal places, half-up.
// Division by zero panics: every call site in the cost-basis engine
// guards against zero-quantity lots before dividing.
func (a Decimal) Div(b Decimal) Decimal {
	if b.IsZero() {
		panic("decimal: division by zero")
	}
	// a/b = (a.coeff * 10^scale) / (b.coeff * 10^(a.scale-b.scale))
	num := new(big.Int).Mul(a.coeff, pow10(defaultScale+b.scale))
	den := new(big.Int).Mul(b.coeff, pow10(a.scale))
	q, r := new(big.Int).QuoRem(num, den, new(big.Int))
	// round half-up away from zero
	r2 := new(big.Int).Mul(r, big.NewInt(2))
	r2.Abs(r2)
	if r2.Cmp(new(big.Int).Abs(den)) >= 0 {
		if (num.Sign() < 0) != (den.Sign() < 0) {
			q.Sub(q, big.NewInt(1))
		} else {
			q.Add(q, big.NewInt(1))
		}
	}
	return Decimal{coeff: q, scale: defaultScale}.Normalize()
}

// Neg returns -a.
func (a Decimal) Neg() Decimal {
	if a.coeff == nil {
		return Zero
	}
	return Decimal{coeff: new(big.Int).Neg(a.coeff), scale: a.scale}
}

// Abs returns the absolute value of a.
func (a Decimal) Abs() Decimal {
	if a.coeff == nil {
		return Zero
	}
	return Decimal{coeff: new(big.Int).Abs(a.coeff), scale: a.scale}
}

// IsZero reports whether a is exactly zero.
func (a Decimal) IsZero() bool { return a.coeff == nil || a.coeff.Sign() == 0 }

// Sign returns -1, 0, or 1.
func (a Decimal) Sign() int {
	if a.coeff == nil {
		return 0
	}
	return a.coeff.Sign()
}

// Cmp compares a and b, returning -1, 0, or 1.
func (a Decimal) Cmp(b Decimal) int {
	_, x, y := align(a, b)
	return x.Cmp(y)
}

// LessThan, GreaterThan, Equal are Cmp conveniences used throughout the
// matcher and cost-basis engine for readability at call sites.
func (a Decimal) LessThan(b Decimal) bool    { return a.Cmp(b) < 0 }
func (a Decimal) GreaterThan(b Decimal) bool { return a.Cmp(b) > 0 }
func (a Decimal) Equal(b Decimal) bool       { return a.Cmp(b) == 0 }
func (a Decimal) LessOrEqual(b Decimal) bool    { return a.Cmp(b) <= 0 }
func (a Decimal) GreaterOrEqual(b Decimal) bool { return a.Cmp(b) >= 0 }

// Min / Max.
func Min(a, b Decimal) Decimal {
	if a.Cmp(b) <= 0 {
		return a
	}
	return b
}
func Max(a, b Decimal) Decimal {
	if a.Cmp(b) >= 0 {
		return a
	}
	return b
}

// Normalize trims trailing zero digits down to a minimum scale, keeping
// string output stable (e.g. "1.5" rather than "1.500000...0").
func (a Decimal) Normalize() Decimal {
	if a.coeff == nil || a.coeff.Sign() == 0 {
		return Decimal{coeff: big.NewInt(0), scale: 0}
	}
	c := new(big.Int).Set(a.coeff)
	scale := a.scale
	ten := big.NewInt(10)
	for scale > 0 {
		q, r := new(big.Int).QuoRem(c, ten, new(big.Int))
		if r.Sign() != 0 {
			break
		}
		c = q
		scale--
	}
	return Decimal{coeff: c, scale: scale}
}

// String renders the canonical base-10 representation.
func (a Decimal) String() string {
	if a.coeff == nil {
		return "0"
	}
	neg := a.coeff.Sign() < 0
	abs := new(big.Int).Abs(a.coeff)
	s := abs.String()
	if a.scale == 0 {
		if neg {
			return "-" + s
		}
		return s
	}
	for int32(len(s)) <= a.scale {
		s = "0" + s
	}
	intPart := s[:int32(len(s))-a.scale]
	fracPart := s[int32(len(s))-a.scale:]
	out := intPart + "." + fracPart
	if neg {
		out = "-" + out
	}
	return out
}

// Float64 returns a lossy float approximation. Amount arithmetic stays in
// Decimal; Float64 is used for ratios compared against float thresholds
// (the matcher's amount similarity, the net/gross variance check).
func (a Decimal) Float64() float64 {
	f := new(big.Float).SetInt(a.coeff)
	f.Quo(f, new(big.Float).SetInt(pow10(a.scale)))
	v, _ := f.Float64()
	return v
}

// MarshalJSON/UnmarshalJSON let Decimal round-trip through JSON as a
// string, never a numeric literal, so json.Number/float64 never enters
// the math path.
func (a Decimal) MarshalJSON() ([]byte, error) {
	return []byte(`"` + a.String() + `"`), nil
}

func (a *Decimal) UnmarshalJSON(b []byte) error {
	s := string(b)
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = s[1 : len(s)-1]
	}
	d, err := NewFromString(s)
	if err != nil {
		return err
	}
	*a = d
	return nil
}
