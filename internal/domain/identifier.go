package domain

import (
	"fmt"
	"unicode"
)

const maxIdentifierLen = 128

// IdempotencyKey is the client-supplied token that collapses duplicate
// submission attempts into a single transaction.
type IdempotencyKey string

func NewIdempotencyKey(s string) (IdempotencyKey, error) {
	if err := validateIdentifier(s); err != nil {
		return "", fmt.Errorf("NewIdempotencyKey: %w: %w", err, ErrInvalidIdempotencyKey)
	}
	return IdempotencyKey(s), nil
}

func (k IdempotencyKey) String() string { return string(k) }

// ExternalReference is the identifier a payment provider assigns to its side
// of a transaction.
type ExternalReference string

func NewExternalReference(s string) (ExternalReference, error) {
	if err := validateIdentifier(s); err != nil {
		return "", fmt.Errorf("NewExternalReference: %w: %w", err, ErrInvalidExternalReference)
	}
	return ExternalReference(s), nil
}

func (r ExternalReference) String() string { return string(r) }

func validateIdentifier(s string) error {
	if s == "" {
		return fmt.Errorf("empty")
	}
	if len(s) > maxIdentifierLen {
		return fmt.Errorf("longer than %d bytes", maxIdentifierLen)
	}
	for _, r := range s {
		if r > unicode.MaxASCII || !unicode.IsPrint(r) || unicode.IsSpace(r) {
			return fmt.Errorf("contains non-printable or whitespace character")
		}
	}
	return nil
}
