package kid

import (
	"context"
	"errors"
	"testing"
)

func neverExists(ctx context.Context, kid string) (bool, error) { return false, nil }

func TestGenerateProducesValidCodes(t *testing.T) {
	for i := 0; i < 100; i++ {
		code, err := Generate(context.Background(), neverExists)
		if err != nil {
			t.Fatalf("generate: %v", err)
		}
		if len(code) != Length {
			t.Fatalf("expected length %d, got %q", Length, code)
		}
		if !Validate(code) {
			t.Fatalf("generated code %q fails validation", code)
		}
	}
}

func TestGenerateNoCollisions(t *testing.T) {
	seen := make(map[string]struct{}, 10000)
	exists := func(ctx context.Context, kid string) (bool, error) {
		_, ok := seen[kid]
		return ok, nil
	}
	for i := 0; i < 10000; i++ {
		code, err := Generate(context.Background(), exists)
		if err != nil {
			t.Fatalf("generate %d: %v", i, err)
		}
		if _, dup := seen[code]; dup {
			t.Fatalf("code %q generated twice", code)
		}
		seen[code] = struct{}{}
	}
}

func TestGenerateExhaustion(t *testing.T) {
	allTaken := func(ctx context.Context, kid string) (bool, error) { return true, nil }
	_, err := Generate(context.Background(), allTaken)
	if !errors.Is(err, ErrGenerationExhausted) {
		t.Fatalf("expected ErrGenerationExhausted, got %v", err)
	}
}

func TestValidateRejectsMalformed(t *testing.T) {
	cases := []string{
		"",
		"12345678",    // too short
		"1234567890",  // too long
		"12345678a",   // non-digit
		"123 45678",   // separator
	}
	for _, code := range cases {
		if Validate(code) {
			t.Fatalf("expected %q to be invalid", code)
		}
	}
}

func TestValidateCatchesTranscriptionErrors(t *testing.T) {
	code, err := Generate(context.Background(), neverExists)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	// Single-digit substitution in every position.
	for i := 0; i < Length; i++ {
		mutated := []byte(code)
		mutated[i] = '0' + (mutated[i]-'0'+1)%10
		if Validate(string(mutated)) {
			t.Fatalf("substitution at %d in %q passed validation", i, code)
		}
	}

	// Adjacent transpositions of unequal digits. The 09<->90 pair is the
	// one transposition Luhn cannot detect, so it is skipped.
	for i := 0; i < Length-1; i++ {
		a, b := code[i]-'0', code[i+1]-'0'
		if a == b || (a == 0 && b == 9) || (a == 9 && b == 0) {
			continue
		}
		mutated := []byte(code)
		mutated[i], mutated[i+1] = mutated[i+1], mutated[i]
		if Validate(string(mutated)) {
			t.Fatalf("transposition at %d in %q passed validation", i, code)
		}
	}
}
