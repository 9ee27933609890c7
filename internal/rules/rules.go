// Package rules holds the pure business checks applied by the purchase-flow
// tasks: account naming, product title filtering, rating parsing and
// search-filter detection.
package rules

import (
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"unicode"
)

// UsernameLength is the exact length a username must have.
const UsernameLength = 10

var alnum = regexp.MustCompile(`^[A-Za-z0-9]+$`)

// ValidUsername reports whether name is exactly ten ASCII letters or digits.
func ValidUsername(name string) bool {
	return len(name) == UsernameLength && alnum.MatchString(name)
}

// StartsWithForbidden reports whether the first letter of s, ignoring
// leading spaces and case, is one of forbidden.
func StartsWithForbidden(s, forbidden string) bool {
	s = strings.TrimSpace(s)
	if s == "" {
		return false
	}
	first := []rune(s)[0]
	return strings.ContainsRune(strings.ToUpper(forbidden), unicode.ToUpper(first))
}

// ForbiddenLetters returns the letters of forbidden that occur anywhere in s,
// case-insensitively, in the order they are listed in forbidden.
func ForbiddenLetters(s, forbidden string) []string {
	upper := strings.ToUpper(s)
	var hits []string
	seen := map[rune]bool{}
	for _, r := range strings.ToUpper(forbidden) {
		if seen[r] || unicode.IsSpace(r) {
			continue
		}
		seen[r] = true
		if strings.ContainsRune(upper, r) {
			hits = append(hits, string(r))
		}
	}
	return hits
}

var greetings = []string{"hello,", "hello", "hi,", "hi", "welcome,", "welcome"}

// ProfileName strips a leading greeting from an account label such as
// "Hello, John" and returns the remaining name.
func ProfileName(label string) string {
	label = strings.Join(strings.Fields(label), " ")
	lower := strings.ToLower(label)
	for _, g := range greetings {
		if strings.HasPrefix(lower, g+" ") {
			return strings.TrimSpace(label[len(g):])
		}
	}
	return label
}

// SignedOut reports whether an account label still asks the user to sign in.
func SignedOut(label string) bool {
	return strings.Contains(strings.ToLower(label), "sign in")
}

var junkFragments = []string{"reload", "balance", "gift card", "amazon currency"}

// IsJunkTitle reports whether a search result title is a store credit or
// similar non-product entry.
func IsJunkTitle(title string) bool {
	lower := strings.ToLower(title)
	if strings.TrimSpace(lower) == "" {
		return true
	}
	for _, f := range junkFragments {
		if strings.Contains(lower, f) {
			return true
		}
	}
	return false
}

var ratingToken = regexp.MustCompile(`^\d+(\.\d+)?$`)

// RatingFromText returns the first whitespace-separated token of text that
// is a plain decimal, as in "4 Stars & Up".
func RatingFromText(text string) (float64, bool) {
	for _, part := range strings.Fields(text) {
		if !ratingToken.MatchString(part) {
			continue
		}
		if v, err := strconv.ParseFloat(part, 64); err == nil {
			return v, true
		}
	}
	return 0, false
}

var ratingParam = regexp.MustCompile(`p_72(?:=|%3A|:)(\d+(?:\.\d+)?)`)

// RatingFromHref reads the star bound from a review refinement link, either
// as p_72=4- or in the encoded rh=p_72%3A4- form.
func RatingFromHref(href string) (float64, bool) {
	m := ratingParam.FindStringSubmatch(href)
	if m == nil {
		return 0, false
	}
	v, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// Rating combines RatingFromText and RatingFromHref, preferring the text.
func Rating(text, href string) (float64, bool) {
	if v, ok := RatingFromText(text); ok && v > 0 {
		return v, true
	}
	return RatingFromHref(href)
}

var brandStopwords = map[string]bool{
	"the": true, "and": true, "for": true, "with": true, "from": true,
	"this": true, "that": true, "computer": true, "chrome": true,
}

// BrandInTitle returns the first capitalized word of title that starts with
// prefix and is not a common word.
func BrandInTitle(title, prefix string) (string, bool) {
	if prefix == "" {
		return "", false
	}
	up := strings.ToUpper(prefix)
	for _, word := range strings.Fields(title) {
		word = strings.TrimFunc(word, func(r rune) bool { return !unicode.IsLetter(r) && !unicode.IsDigit(r) })
		if len([]rune(word)) < 2 || brandStopwords[strings.ToLower(word)] {
			continue
		}
		if !unicode.IsUpper([]rune(word)[0]) {
			continue
		}
		if strings.HasPrefix(strings.ToUpper(word), up) {
			return word, true
		}
	}
	return "", false
}

// BrandMatches reports whether a brand label begins with prefix.
func BrandMatches(brand, prefix string) bool {
	brand = strings.TrimSpace(brand)
	return brand != "" && prefix != "" && strings.HasPrefix(strings.ToUpper(brand), strings.ToUpper(prefix))
}

// FilterState summarizes which refinements a search URL carries.
type FilterState struct {
	Price  bool
	Rating bool
}

// FiltersFromURL inspects a search results URL for price (low-price,
// high-price or p_36) and rating (p_72) refinements.
func FiltersFromURL(raw string) FilterState {
	decoded := raw
	if u, err := url.QueryUnescape(raw); err == nil {
		decoded = u
	}
	var st FilterState
	for _, s := range []string{raw, decoded} {
		if strings.Contains(s, "low-price=") || strings.Contains(s, "high-price=") || strings.Contains(s, "p_36") {
			st.Price = true
		}
		if strings.Contains(s, "p_72") {
			st.Rating = true
		}
	}
	return st
}

// IndicatesPriceFilter reports whether an active-refinement label looks like
// a price filter.
func IndicatesPriceFilter(text string) bool {
	lower := strings.ToLower(text)
	return strings.Contains(lower, "price") || strings.ContainsAny(text, "$₹")
}

var starLabel = regexp.MustCompile(`(?i)\d+(\.\d+)?\s*stars?`)

// IndicatesRatingFilter reports whether an active-refinement label looks like
// a star rating filter.
func IndicatesRatingFilter(text string) bool {
	return starLabel.MatchString(text) || strings.Contains(strings.ToLower(text), "stars & up")
}
