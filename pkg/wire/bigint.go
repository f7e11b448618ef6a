// Package wire provides lossless JSON encodings for values that do not
// survive a float64 round trip. Nonces, deadlines and chain ids travel as
// decimal strings.
package wire

import (
	"errors"
	"fmt"
	"math/big"
	"strings"
)

var ErrInvalidInteger = errors.New("invalid decimal integer")

// BigInt marshals as a decimal string ("3", never 3 or 3e0) and accepts
// either a decimal string or a bare JSON number on the way in.
type BigInt struct {
	v big.Int
}

func NewBigInt(v *big.Int) BigInt {
	var out BigInt
	if v != nil {
		out.v.Set(v)
	}
	return out
}

func FromUint64(v uint64) BigInt {
	var out BigInt
	out.v.SetUint64(v)
	return out
}

func (b BigInt) Int() *big.Int { return new(big.Int).Set(&b.v) }

func (b BigInt) String() string { return b.v.String() }

func (b BigInt) MarshalJSON() ([]byte, error) {
	return []byte(`"` + b.v.String() + `"`), nil
}

func (b *BigInt) UnmarshalJSON(data []byte) error {
	s := strings.TrimSpace(string(data))
	if s == "null" {
		return nil
	}
	if strings.HasPrefix(s, `"`) {
		if len(s) < 2 || !strings.HasSuffix(s, `"`) {
			return ErrInvalidInteger
		}
		s = s[1 : len(s)-1]
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return ErrInvalidInteger
	}
	if _, ok := b.v.SetString(s, 10); !ok {
		return fmt.Errorf("%w: %q", ErrInvalidInteger, s)
	}
	return nil
}
