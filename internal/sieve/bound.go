package sieve

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	apperrors "github.com/prime-sieve/pkg/errors"
)

// ParseBound parses a decimal upper bound. Surrounding whitespace and "_"
// digit separators are accepted; signs, fractions and values above
// 2^64-1 are rejected with INVALID_BOUND.
func ParseBound(s string) (uint64, error) {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return 0, apperrors.New(apperrors.CodeInvalidBound, "bound is empty")
	}
	if strings.HasPrefix(trimmed, "-") {
		return 0, apperrors.New(apperrors.CodeInvalidBound, fmt.Sprintf("bound %q is negative", trimmed))
	}
	if strings.HasPrefix(trimmed, "_") || strings.HasSuffix(trimmed, "_") || strings.Contains(trimmed, "__") {
		return 0, apperrors.New(apperrors.CodeInvalidBound, fmt.Sprintf("bound %q has misplaced separators", trimmed))
	}

	n, err := strconv.ParseUint(strings.ReplaceAll(trimmed, "_", ""), 10, 64)
	if err != nil {
		if errors.Is(err, strconv.ErrRange) {
			return 0, apperrors.Wrap(apperrors.CodeInvalidBound, fmt.Sprintf("bound %q exceeds 18446744073709551615", trimmed), err)
		}
		return 0, apperrors.Wrap(apperrors.CodeInvalidBound, fmt.Sprintf("bound %q is not a decimal integer", trimmed), err)
	}
	return n, nil
}
