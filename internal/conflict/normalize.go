package conflict

import (
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var (
	yesVariants = map[string]bool{"yes": true, "y": true, "true": true, "1": true, "enabled": true, "on": true}
	noVariants  = map[string]bool{"no": true, "n": true, "false": true, "0": true, "disabled": true, "off": true}
)

// datePatterns recognise date-like strings; a match anywhere in the value counts.
var datePatterns = []*regexp.Regexp{
	regexp.MustCompile(`\d{1,2}[-/]\d{1,2}[-/]\d{2,4}`),
	regexp.MustCompile(`\d{4}[-/]\d{1,2}[-/]\d{1,2}`),
	regexp.MustCompile(`(?i)(?:Q[1-4]|FY)\s*\d{4}`),
	regexp.MustCompile(`(?i)(?:Jan|Feb|Mar|Apr|May|Jun|Jul|Aug|Sep|Oct|Nov|Dec)\s+\d{1,2},?\s+\d{4}`),
}

var (
	// numericString is a whole-string match used to route strings like
	// "$1,250,000" or "2.5M" to numeric comparison.
	numericString = regexp.MustCompile(`^\s*\$?\s*-?[\d,]*\.?\d+\s*[KMB]?\s*$`)
	// scaledNumber extracts a leading number and optional magnitude suffix.
	scaledNumber = regexp.MustCompile(`^\s*(-?[\d.]+)\s*([KMB])?`)
	// nonNumeric strips everything except digits, dots and minus signs.
	nonNumeric = regexp.MustCompile(`[^\d.\-]`)
)

var multipliers = map[string]float64{"K": 1e3, "M": 1e6, "B": 1e9}

// normalizeText lowercases and trims s. Lowercasing, unlike case folding,
// keeps "ß" and "ss" apart. A Caser is stateful, so one is created per call
// to keep callers goroutine-safe.
func normalizeText(s string) string {
	return strings.TrimSpace(cases.Lower(language.Und).String(s))
}

func isDateString(s string) bool {
	for _, re := range datePatterns {
		if re.MatchString(s) {
			return true
		}
	}
	return false
}

// numberValue converts Go numeric kinds to float64.
func numberValue(v any) (float64, bool) {
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case float32:
		f = float64(n)
	case int:
		f = float64(n)
	case int8:
		f = float64(n)
	case int16:
		f = float64(n)
	case int32:
		f = float64(n)
	case int64:
		f = float64(n)
	case uint:
		f = float64(n)
	case uint8:
		f = float64(n)
	case uint16:
		f = float64(n)
	case uint32:
		f = float64(n)
	case uint64:
		f = float64(n)
	case json.Number:
		parsed, err := n.Float64()
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// parseScaled is the currency and unit aware coercion used for detection:
// "$" and "," are removed and a K/M/B suffix scales the leading number.
func parseScaled(v any) (float64, bool) {
	if f, ok := numberValue(v); ok {
		return f, true
	}
	s, ok := v.(string)
	if !ok {
		return 0, false
	}
	cleaned := strings.NewReplacer("$", "", ",", "").Replace(s)
	m := scaledNumber.FindStringSubmatch(cleaned)
	if m == nil {
		return 0, false
	}
	f, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, false
	}
	if mul, ok := multipliers[m[2]]; ok {
		f *= mul
	}
	return f, true
}

// parseLoose is the best-effort coercion used by the numeric resolution
// strategies: every character other than digits, "." and "-" is dropped.
// Magnitude suffixes are not applied.
func parseLoose(v any) (float64, bool) {
	if f, ok := numberValue(v); ok {
		return f, true
	}
	s, ok := v.(string)
	if !ok {
		return 0, false
	}
	f, err := strconv.ParseFloat(nonNumeric.ReplaceAllString(s, ""), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// voteKey normalizes a value for majority voting. Yes/no-like strings become
// booleans, other strings are lowercased and trimmed, everything else is kept.
func voteKey(v any) any {
	s, ok := v.(string)
	if !ok {
		return v
	}
	n := normalizeText(s)
	switch {
	case yesVariants[n]:
		return true
	case noVariants[n]:
		return false
	default:
		return n
	}
}

// identity returns a comparable key for any value, including maps and slices.
// Numbers of any Go kind share one key space, so 1 and 1.0 are the same value.
func identity(v any) string {
	if k, ok := numberKey(v); ok {
		return "number:" + k
	}
	return fmt.Sprintf("%T:%v", v, v)
}

// numberKey renders a numeric value canonically. Integers keep every digit.
func numberKey(v any) (string, bool) {
	switch n := v.(type) {
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return fmt.Sprint(n), true
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return strconv.FormatInt(i, 10), true
		}
	}
	f, ok := numberValue(v)
	if !ok {
		return "", false
	}
	if f == math.Trunc(f) {
		return strconv.FormatFloat(f, 'f', -1, 64), true
	}
	return strconv.FormatFloat(f, 'g', -1, 64), true
}
