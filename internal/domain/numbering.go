package domain

import (
	"fmt"
	"strconv"
	"strings"
)

// Number formats per document type. The period is the calendar year of the
// issue date.
var numberPrefixes = map[DocumentType]string{
	DocumentTypeInvoice: "FAC",
	DocumentTypeQuote:   "DEV",
}

// DefaultNumberPadding is the zero-padded width of the ordinal.
const DefaultNumberPadding = 4

// NumberPrefix returns the prefix used for t, or "" for an unknown type.
func NumberPrefix(t DocumentType) string {
	return numberPrefixes[t]
}

// FormatDocumentNumber renders prefix-period-ordinal, e.g. FAC-2026-0001.
// Ordinals wider than padding are printed in full.
func FormatDocumentNumber(prefix string, period int32, ordinal int64, padding int32) string {
	return fmt.Sprintf("%s-%d-%0*d", prefix, period, int(padding), ordinal)
}

// ParseDocumentNumber splits a formatted number back into its parts.
func ParseDocumentNumber(number string) (prefix string, period int32, ordinal int64, err error) {
	parts := strings.Split(number, "-")
	if len(parts) != 3 || parts[0] == "" {
		return "", 0, 0, fmt.Errorf("malformed document number %q", number)
	}
	year, err := strconv.ParseInt(parts[1], 10, 32)
	if err != nil {
		return "", 0, 0, fmt.Errorf("malformed period in %q: %w", number, err)
	}
	ord, err := strconv.ParseInt(parts[2], 10, 64)
	if err != nil {
		return "", 0, 0, fmt.Errorf("malformed ordinal in %q: %w", number, err)
	}
	return parts[0], int32(year), ord, nil
}

// Numbering errors.
var (
	ErrScopeUnresolvable   = Errorf(EINVALID, "", "Numbering scope cannot be resolved")
	ErrConcurrencyConflict = Errorf(EUNAVAILABLE, "", "Document numbering is temporarily unavailable")
)
