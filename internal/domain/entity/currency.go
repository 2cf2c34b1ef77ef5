package entity

import (
	"fmt"
	"strings"
)

// Currency is one of the supported ledger currencies.
type Currency string

const (
	USD Currency = "USD"
	LBP Currency = "LBP"
)

// SupportedCurrencies lists every currency a user holds a balance in.
var SupportedCurrencies = []Currency{USD, LBP} //nolint:gochecknoglobals

var numericCodes = map[string]Currency{ //nolint:gochecknoglobals
	"840": USD,
	"422": LBP,
}

// ParseCurrency maps an alphabetic code to a Currency, rejecting unknown codes.
func ParseCurrency(s string) (Currency, error) {
	c := Currency(strings.ToUpper(strings.TrimSpace(s)))
	switch c {
	case USD, LBP:
		return c, nil
	case "":
		return "", ErrMissingCurrency
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedCurrency, s)
	}
}

// CurrencyFromNumeric maps an ISO 4217 numeric code ("840") to a Currency.
func CurrencyFromNumeric(code string) (Currency, error) {
	c, ok := numericCodes[strings.TrimSpace(code)]
	if !ok {
		return "", fmt.Errorf("%w: numeric code %q", ErrUnsupportedCurrency, code)
	}
	return c, nil
}

// NumericCode returns the ISO 4217 numeric code.
func (c Currency) NumericCode() string {
	for code, cur := range numericCodes {
		if cur == c {
			return code
		}
	}
	return ""
}

// MinorUnitExponent is the number of decimal places in one major unit.
// LBP is carried with two decimals as well.
func (c Currency) MinorUnitExponent() int32 {
	return 2
}

func (c Currency) String() string { return string(c) }

func (c Currency) MarshalText() ([]byte, error) {
	if _, err := ParseCurrency(string(c)); err != nil {
		return nil, err
	}
	return []byte(c), nil
}

func (c *Currency) UnmarshalText(text []byte) error {
	parsed, err := ParseCurrency(string(text))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}
