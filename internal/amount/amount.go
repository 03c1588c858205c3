package amount

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

const (
	// USDCDecimals is the number of base-unit decimals of USDC.
	USDCDecimals int32 = 6
	// MaxInputFraction bounds fractional digits accepted from users.
	MaxInputFraction = 2
)

var (
	ErrInvalidAmount   = errors.New("enter a valid amount")
	ErrTooManyDecimals = errors.New("amount can have at most 2 decimal places")
	ErrNonPositive     = errors.New("amount must be greater than zero")
)

var userAmountPattern = regexp.MustCompile(`^(\d+)(?:\.(\d*))?$|^\.(\d+)$`)

// ParseUserAmount validates a decimal amount typed by the user.
func ParseUserAmount(input string) (decimal.Decimal, error) {
	s := strings.TrimSpace(input)
	m := userAmountPattern.FindStringSubmatch(s)
	if m == nil {
		return decimal.Decimal{}, ErrInvalidAmount
	}
	if len(m[2]) > MaxInputFraction || len(m[3]) > MaxInputFraction {
		return decimal.Decimal{}, ErrTooManyDecimals
	}
	s = strings.TrimSuffix(s, ".")
	if strings.HasPrefix(s, ".") {
		s = "0" + s
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("%w: %v", ErrInvalidAmount, err)
	}
	if !d.IsPositive() {
		return decimal.Decimal{}, ErrNonPositive
	}
	return d, nil
}

// ToBaseUnits multiplies d by 10^decimals and rounds half away from zero.
func ToBaseUnits(d decimal.Decimal, decimals int32) string {
	return d.Shift(decimals).Round(0).String()
}

// UserToBaseUnits parses user input and returns USDC base units.
func UserToBaseUnits(input string) (string, error) {
	d, err := ParseUserAmount(input)
	if err != nil {
		return "", err
	}
	return ToBaseUnits(d, USDCDecimals), nil
}

// FromBaseUnits converts an integer base-unit string back to a decimal.
func FromBaseUnits(base string, decimals int32) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(base))
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("parse base units %q: %w", base, err)
	}
	if !d.Equal(d.Truncate(0)) {
		return decimal.Decimal{}, fmt.Errorf("base units %q are not an integer", base)
	}
	return d.Shift(-decimals), nil
}

// Display formats base units with two decimals, e.g. "25000000" -> "25.00".
func Display(base string, decimals int32) string {
	d, err := FromBaseUnits(base, decimals)
	if err != nil {
		return base
	}
	return d.StringFixed(MaxInputFraction)
}
