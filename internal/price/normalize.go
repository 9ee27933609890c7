package price

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var (
	// ErrParseFailure means the text held a numeric token that is not a
	// valid positive amount.
	ErrParseFailure = errors.New("price text could not be parsed")
	// errNoNumber means the text held no digits at all.
	errNoNumber = errors.New("no numeric token in text")
)

var numericToken = regexp.MustCompile(`\.?[0-9][0-9.,]*`)

// Normalize extracts the first numeric token from text, drops thousands
// separators and parses it. Commas are always treated as thousands
// separators and a trailing period is ignored. A leading period is a
// decimal point ("$.99") unless it ends a word such as "Rs.".
func Normalize(text string) (float64, error) {
	loc := numericToken.FindStringIndex(text)
	if loc == nil {
		return 0, errNoNumber
	}
	tok := text[loc[0]:loc[1]]
	if tok[0] == '.' && loc[0] > 0 && isLetter(text[loc[0]-1]) {
		tok = tok[1:]
	}
	clean := strings.TrimRight(strings.ReplaceAll(tok, ",", ""), ".")
	v, err := strconv.ParseFloat(clean, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrParseFailure, tok)
	}
	if v <= 0 {
		return 0, fmt.Errorf("%w: %q is not positive", ErrParseFailure, tok)
	}
	return v, nil
}

func isLetter(b byte) bool {
	return (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z')
}

type currencyMark struct {
	mark string
	code string
}

// Ordered so that longer marks win over their prefixes at the same index.
var currencyMarks = []currencyMark{
	{"US$", "USD"},
	{"USD", "USD"},
	{"$", "USD"},
	{"₹", "INR"},
	{"INR", "INR"},
	{"Rs.", "INR"},
	{"Rs", "INR"},
	{"€", "EUR"},
	{"EUR", "EUR"},
	{"£", "GBP"},
	{"GBP", "GBP"},
}

// DetectCurrency returns the ISO code of the earliest currency mark in text,
// or "" when there is none.
func DetectCurrency(text string) string {
	best, code := -1, ""
	for _, m := range currencyMarks {
		i := strings.Index(text, m.mark)
		if i < 0 {
			continue
		}
		if best < 0 || i < best {
			best, code = i, m.code
		}
	}
	return code
}
