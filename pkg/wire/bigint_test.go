package wire

import (
	"encoding/json"
	"errors"
	"math/big"
	"testing"
)

func TestBigIntMarshalsAsDecimalString(t *testing.T) {
	huge, ok := new(big.Int).SetString("115792089237316195423570985008687907853269984665640564039457584007913129639935", 10)
	if !ok {
		t.Fatalf("SetString failed")
	}
	cases := []struct {
		in   BigInt
		want string
	}{
		{BigInt{}, `"0"`},
		{FromUint64(3), `"3"`},
		{NewBigInt(big.NewInt(-7)), `"-7"`},
		{NewBigInt(huge), `"` + huge.String() + `"`},
	}
	for _, tc := range cases {
		got, err := json.Marshal(tc.in)
		if err != nil {
			t.Fatalf("Marshal(%s): %v", tc.in.String(), err)
		}
		if string(got) != tc.want {
			t.Fatalf("Marshal(%s) = %s, want %s", tc.in.String(), got, tc.want)
		}
	}
}

func TestBigIntUnmarshalAcceptsStringAndNumber(t *testing.T) {
	for _, raw := range []string{`"42"`, `42`, ` "42" `} {
		var b BigInt
		if err := json.Unmarshal([]byte(raw), &b); err != nil {
			t.Fatalf("Unmarshal(%s): %v", raw, err)
		}
		if b.String() != "42" {
			t.Fatalf("Unmarshal(%s) = %s, want 42", raw, b.String())
		}
	}
}

func TestBigIntUnmarshalRejectsGarbage(t *testing.T) {
	for _, raw := range []string{`""`, `"abc"`, `"1e9"`, `"0x10"`, `3.5`} {
		var b BigInt
		err := json.Unmarshal([]byte(raw), &b)
		if err == nil {
			t.Fatalf("expected Unmarshal(%s) to fail", raw)
		}
		if !errors.Is(err, ErrInvalidInteger) {
			t.Fatalf("Unmarshal(%s): expected ErrInvalidInteger, got %v", raw, err)
		}
	}
}

func TestBigIntSurvivesValuesBeyondFloat64(t *testing.T) {
	// 2^53 + 1 is the first integer a float64 cannot represent.
	in := NewBigInt(new(big.Int).Add(new(big.Int).Lsh(big.NewInt(1), 53), big.NewInt(1)))
	raw, err := json.Marshal(in)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var out BigInt
	if err := json.Unmarshal(raw, &out); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if out.Int().Cmp(in.Int()) != 0 {
		t.Fatalf("round trip lost precision: %s != %s", out.String(), in.String())
	}
}

func TestBigIntIntReturnsCopy(t *testing.T) {
	b := FromUint64(10)
	b.Int().SetUint64(99)
	if b.String() != "10" {
		t.Fatalf("Int() leaked internal state: %s", b.String())
	}
}
