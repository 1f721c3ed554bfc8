package audit

import (
	"fmt"
	"strconv"
	"strings"
)

// ParseAmount converts a Brazilian-formatted monetary value to centavos.
// Accepted forms include "1.234,56", "R$ 1.234,56", "1234,5", "1234.56" and
// plain integers. A value with dots only and a three-digit final group is
// read as thousand separators ("1.234" is 1234 reais). Blank-ish values
// parse as zero.
func ParseAmount(raw string) (int64, error) {
	if isBlankish(raw) {
		return 0, nil
	}

	value := strings.TrimSpace(raw)
	value = strings.TrimPrefix(value, "R$")
	value = strings.TrimPrefix(value, "r$")
	value = strings.ReplaceAll(value, " ", "")
	value = strings.ReplaceAll(value, " ", "")
	if value == "" {
		return 0, nil
	}

	negative := false
	if strings.HasPrefix(value, "-") {
		negative = true
		value = value[1:]
	}

	intPart := value
	fracPart := ""

	switch {
	case strings.Contains(value, ","):
		// Comma is the decimal mark; dots are thousand separators.
		intPart = strings.ReplaceAll(value[:strings.LastIndex(value, ",")], ".", "")
		fracPart = value[strings.LastIndex(value, ",")+1:]
	case strings.Contains(value, "."):
		lastDot := strings.LastIndex(value, ".")
		tail := value[lastDot+1:]
		if len(tail) == 3 {
			// 1.234 or 1.234.567 reads as thousand separators only.
			intPart = strings.ReplaceAll(value, ".", "")
		} else {
			intPart = strings.ReplaceAll(value[:lastDot], ".", "")
			fracPart = tail
		}
	}

	if intPart == "" {
		intPart = "0"
	}
	whole, err := strconv.ParseInt(intPart, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse amount %q: %w", raw, err)
	}

	cents := int64(0)
	if fracPart != "" {
		if len(fracPart) > 2 {
			fracPart = fracPart[:2]
		}
		for len(fracPart) < 2 {
			fracPart += "0"
		}
		cents, err = strconv.ParseInt(fracPart, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("parse amount %q: %w", raw, err)
		}
	}

	total := whole*100 + cents
	if negative {
		total = -total
	}
	return total, nil
}
