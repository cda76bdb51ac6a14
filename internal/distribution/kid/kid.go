// Package kid generates and validates donation reference codes. A KID is the
// number a donor types into a bank transfer message field, so it is plain
// digits only: eight significant digits followed by one Luhn check digit.
package kid

import (
	"context"
	"crypto/rand"
	"errors"
	"math/big"
)

const (
	significantDigits = 8
	// Length is the full code length including the check digit.
	Length = significantDigits + 1

	maxAttempts = 1000
)

// ErrGenerationExhausted means no unused code was found within the attempt
// budget. At realistic scale this indicates an exhausted code space or a
// broken existence check, and is fatal.
var ErrGenerationExhausted = errors.New("kid_generation_exhausted")

// ExistsFunc reports whether a candidate code is already registered.
type ExistsFunc func(ctx context.Context, kid string) (bool, error)

// Generate produces a fresh code guaranteed unused according to exists.
func Generate(ctx context.Context, exists ExistsFunc) (string, error) {
	for attempt := 0; attempt < maxAttempts; attempt++ {
		candidate, err := random()
		if err != nil {
			return "", err
		}
		taken, err := exists(ctx, candidate)
		if err != nil {
			return "", err
		}
		if !taken {
			return candidate, nil
		}
	}
	return "", ErrGenerationExhausted
}

// Validate reports whether code has the right shape and a correct check digit.
func Validate(code string) bool {
	if len(code) != Length {
		return false
	}
	for _, r := range code {
		if r < '0' || r > '9' {
			return false
		}
	}
	return checkDigit(code[:Length-1]) == int(code[Length-1]-'0')
}

func random() (string, error) {
	digits := make([]byte, Length)
	for i := 0; i < significantDigits; i++ {
		// Leading zeros are allowed everywhere but the first position,
		// keeping the printed length fixed.
		low := int64(0)
		if i == 0 {
			low = 1
		}
		n, err := rand.Int(rand.Reader, big.NewInt(10-low))
		if err != nil {
			return "", err
		}
		digits[i] = byte('0' + low + n.Int64())
	}
	digits[Length-1] = byte('0' + checkDigit(string(digits[:significantDigits])))
	return string(digits), nil
}

// checkDigit computes the Luhn check digit for a run of digits, catching
// single-digit transcription errors and adjacent transpositions.
func checkDigit(digits string) int {
	sum := 0
	double := true
	for i := len(digits) - 1; i >= 0; i-- {
		d := int(digits[i] - '0')
		if double {
			d *= 2
			if d > 9 {
				d -= 9
			}
		}
		double = !double
		sum += d
	}
	return (10 - sum%10) % 10
}
