// Package amount parses currency-formatted figures such as "$1,234.56".
//
// Accepted grammar, after trimming surrounding whitespace:
//
//	["-"] ["$"] digits ["." digits]
//
// where digits is either a plain run of digits or groups of three separated
// by commas ("1,234,567"). Anything else is rejected.
package amount

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

// ErrEmpty is returned for blank input.
var ErrEmpty = errors.New("amount: empty value")

// SyntaxError reports input that does not match the amount grammar.
type SyntaxError struct {
	Input string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("amount: malformed value %q", e.Input)
}

var pattern = regexp.MustCompile(`^(-?)\$?([0-9]{1,3}(?:,[0-9]{3})+|[0-9]+)(\.[0-9]+)?$`)

// ParseDecimal parses s into an exact decimal.
func ParseDecimal(s string) (decimal.Decimal, error) {
	txt := strings.TrimSpace(s)
	if txt == "" {
		return decimal.Zero, ErrEmpty
	}
	m := pattern.FindStringSubmatch(txt)
	if m == nil {
		return decimal.Zero, &SyntaxError{Input: s}
	}
	d, err := decimal.NewFromString(m[1] + strings.ReplaceAll(m[2], ",", "") + m[3])
	if err != nil {
		return decimal.Zero, &SyntaxError{Input: s}
	}
	return d, nil
}

// Parse parses s into a float64.
func Parse(s string) (float64, error) {
	d, err := ParseDecimal(s)
	if err != nil {
		return 0, err
	}
	return d.InexactFloat64(), nil
}

// OrZero parses s and returns 0 for blank input. Malformed input is still an error.
func OrZero(s string) (float64, error) {
	v, err := Parse(s)
	if errors.Is(err, ErrEmpty) {
		return 0, nil
	}
	return v, err
}
