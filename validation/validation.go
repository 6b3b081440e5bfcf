package validation

import (
	"math"
	"strings"
	"unicode/utf8"

	"github.com/shopspring/decimal"
)

// Upper bounds of the storage columns: prices are DECIMAL(10,2), counts INTEGER.
var MaxPrice = decimal.RequireFromString("99999999.99")

const MaxInt = math.MaxInt32

type Violations map[string]string

func (v Violations) Empty() bool { return len(v) == 0 }

// Err returns nil when there are no violations, otherwise an *Error carrying them.
func (v Violations) Err() error {
	if v.Empty() {
		return nil
	}
	return &Error{Violations: v}
}

// Error is the field-level validation failure returned by services.
type Error struct {
	Violations Violations
}

func (e *Error) Error() string { return "validation_failed" }

// Basic validators
func Required(field, value string, v Violations) {
	if strings.TrimSpace(value) == "" {
		v[field] = "required"
	}
}

func MaxLength(field, value string, maxLen int, v Violations) {
	if utf8.RuneCountInString(value) > maxLen {
		v[field] = "too_long"
	}
}

func PositiveInt(field string, val int, v Violations) {
	if val <= 0 {
		v[field] = "must_be_positive"
		return
	}
	if val > MaxInt {
		v[field] = "too_large"
	}
}

func NonNegativeInt(field string, val int, v Violations) {
	if val < 0 {
		v[field] = "must_not_be_negative"
		return
	}
	if val > MaxInt {
		v[field] = "too_large"
	}
}

// Price checks a monetary amount is positive, fits DECIMAL(10,2) and has at
// most two decimals.
func Price(field string, val decimal.Decimal, v Violations) {
	if !val.IsPositive() {
		v[field] = "must_be_positive"
		return
	}
	if val.GreaterThan(MaxPrice) {
		v[field] = "too_large"
		return
	}
	if !val.Equal(val.Round(2)) {
		v[field] = "max_two_decimals"
	}
}
