package nvme

import (
	"encoding/binary"
	"math/big"
	"math/bits"

	"github.com/binaryphile/nvme-logs/internal/structured"
)

// Uint128 is a little-endian 128-bit counter as used by the SMART log.
type Uint128 struct {
	Lo, Hi uint64
}

func getUint128(b []byte) Uint128 {
	return Uint128{
		Lo: binary.LittleEndian.Uint64(b[0:8]),
		Hi: binary.LittleEndian.Uint64(b[8:16]),
	}
}

func putUint128(b []byte, v Uint128) {
	binary.LittleEndian.PutUint64(b[0:8], v.Lo)
	binary.LittleEndian.PutUint64(b[8:16], v.Hi)
}

// IsUint64 reports whether the value fits in 64 bits.
func (u Uint128) IsUint64() bool { return u.Hi == 0 }

// Big returns the value as a big.Int.
func (u Uint128) Big() *big.Int {
	n := new(big.Int).SetUint64(u.Hi)
	n.Lsh(n, 64)
	return n.Or(n, new(big.Int).SetUint64(u.Lo))
}

func (u Uint128) String() string { return u.Big().String() }

func (u Uint128) Structured() structured.Value {
	if u.IsUint64() {
		return structured.Uint(u.Lo)
	}
	return structured.BigInt(u.Big())
}

func mulUint64(a, b uint64) Uint128 {
	hi, lo := bits.Mul64(a, b)
	return Uint128{Lo: lo, Hi: hi}
}

// Float64 returns the nearest float64. Precision is lost above 2^53.
func (u Uint128) Float64() float64 {
	return float64(u.Hi)*(1<<64) + float64(u.Lo)
}
