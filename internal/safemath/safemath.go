package safemath

import (
	"errors"

	"github.com/holiman/uint256"
)

var (
	// ErrOverflow is returned when a result does not fit in uint64.
	ErrOverflow = errors.New("arithmetic overflow")
	// ErrUnderflow is returned when a subtraction would go below zero.
	ErrUnderflow = errors.New("arithmetic underflow")
	// ErrDivisionByZero is returned for a zero divisor.
	ErrDivisionByZero = errors.New("division by zero")
)

// Add returns a+b or ErrOverflow.
func Add(a, b uint64) (uint64, error) {
	sum := a + b
	if sum < a {
		return 0, ErrOverflow
	}
	return sum, nil
}

// Sub returns a-b or ErrUnderflow.
func Sub(a, b uint64) (uint64, error) {
	if b > a {
		return 0, ErrUnderflow
	}
	return a - b, nil
}

// Mul returns a*b or ErrOverflow.
func Mul(a, b uint64) (uint64, error) {
	if a == 0 || b == 0 {
		return 0, nil
	}
	product := a * b
	if product/b != a {
		return 0, ErrOverflow
	}
	return product, nil
}

// MulDiv returns floor(a*b/d) using a 256-bit intermediate.
func MulDiv(a, b, d uint64) (uint64, error) {
	if d == 0 {
		return 0, ErrDivisionByZero
	}
	z := new(uint256.Int).Mul(uint256.NewInt(a), uint256.NewInt(b))
	z.Div(z, uint256.NewInt(d))
	return toUint64(z)
}

// MulDivUp returns ceil(a*b/d) using a 256-bit intermediate.
func MulDivUp(a, b, d uint64) (uint64, error) {
	if d == 0 {
		return 0, ErrDivisionByZero
	}
	num := new(uint256.Int).Mul(uint256.NewInt(a), uint256.NewInt(b))
	return DivUp(num, uint256.NewInt(d))
}

// DivUp returns ceil(n/d) for 256-bit operands.
func DivUp(n, d *uint256.Int) (uint64, error) {
	if d.IsZero() {
		return 0, ErrDivisionByZero
	}
	q, r := new(uint256.Int), new(uint256.Int)
	q.DivMod(n, d, r)
	if !r.IsZero() {
		q.AddUint64(q, 1)
	}
	return toUint64(q)
}

// Product returns the product of all factors as a 256-bit integer.
// The caller is responsible for keeping the factor count small enough to fit.
func Product(factors ...uint64) *uint256.Int {
	z := uint256.NewInt(1)
	for _, f := range factors {
		z.Mul(z, uint256.NewInt(f))
	}
	return z
}

// SqrtProduct returns floor(sqrt(a*b)).
func SqrtProduct(a, b uint64) uint64 {
	z := new(uint256.Int).Mul(uint256.NewInt(a), uint256.NewInt(b))
	z.Sqrt(z)
	// sqrt of a 128-bit value always fits.
	return z.Uint64()
}

// Pow10 returns 10^exp or ErrOverflow.
func Pow10(exp uint8) (uint64, error) {
	if exp > 19 {
		return 0, ErrOverflow
	}
	out := uint64(1)
	for i := uint8(0); i < exp; i++ {
		out *= 10
	}
	return out, nil
}

// ToUint64 narrows a 256-bit value.
func ToUint64(z *uint256.Int) (uint64, error) {
	return toUint64(z)
}

func toUint64(z *uint256.Int) (uint64, error) {
	if !z.IsUint64() {
		return 0, ErrOverflow
	}
	return z.Uint64(), nil
}
