package core

// numeric.go reads and prints numbers the way the pressure reports were
// originally produced: a cell is numeric when it starts with a decimal
// literal, whatever follows it ("100 PSI", "80psi", "12.5 bar").

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"unicode"
)

// numericPrefix matches the longest decimal literal at the start of a cell.
// An exponent without digits ("1e") is not part of the literal.
var numericPrefix = regexp.MustCompile(`^[+-]?(?:Infinity|(?:\d+(?:\.\d*)?|\.\d+)(?:[eE][+-]?\d+)?)`)

// ParseNumber returns the value of the numeric prefix of s, or NaN when s does
// not start with a number. Leading whitespace is ignored.
func ParseNumber(s string) float64 {
	s = strings.TrimLeftFunc(s, unicode.IsSpace)
	m := numericPrefix.FindString(s)
	if m == "" {
		return math.NaN()
	}

	switch m {
	case "Infinity", "+Infinity":
		return math.Inf(1)
	case "-Infinity":
		return math.Inf(-1)
	}

	// Out-of-range literals still come back as ±Inf or 0, which is what we want.
	v, err := strconv.ParseFloat(m, 64)
	if err != nil {
		if ne, ok := err.(*strconv.NumError); ok && ne.Err == strconv.ErrRange {
			return v
		}
		return math.NaN()
	}
	return v
}

// FormatNumber prints v in the shortest form that round-trips, using
// exponent notation only for very large or very small magnitudes.
func FormatNumber(v float64) string {
	switch {
	case math.IsNaN(v):
		return "NaN"
	case math.IsInf(v, 1):
		return "Infinity"
	case math.IsInf(v, -1):
		return "-Infinity"
	case v == 0:
		return "0"
	}

	abs := math.Abs(v)
	if abs >= 1e21 || abs < 1e-6 {
		s := strconv.FormatFloat(v, 'e', -1, 64)
		// strconv pads the exponent to two digits ("1e-07"); drop the padding.
		mant, exp, _ := strings.Cut(s, "e")
		sign := exp[:1]
		exp = strings.TrimLeft(exp[1:], "0")
		if exp == "" {
			exp = "0"
		}
		return mant + "e" + sign + exp
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}
