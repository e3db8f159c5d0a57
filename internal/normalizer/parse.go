package normalizer

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// firstString returns the first non-empty string among the given keys.
func firstString(raw RawRecord, keys ...string) string {
	for _, k := range keys {
		v, ok := raw[k]
		if !ok {
			continue
		}
		if s, ok := v.(string); ok {
			if s = strings.TrimSpace(s); s != "" {
				return s
			}
		}
	}
	return ""
}

// firstValue returns the first present non-nil value among the given keys.
func firstValue(raw RawRecord, keys ...string) (any, bool) {
	for _, k := range keys {
		if v, ok := raw[k]; ok && v != nil {
			return v, true
		}
	}
	return nil, false
}

// categoryText extracts the raw category string, joining breadcrumb lists
// with " / ".
func categoryText(raw RawRecord, keys ...string) string {
	v, ok := firstValue(raw, keys...)
	if !ok {
		return ""
	}

	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case []any:
		parts := make([]string, 0, len(t))
		for _, item := range t {
			if s, ok := item.(string); ok {
				if s = strings.TrimSpace(s); s != "" {
					parts = append(parts, s)
				}
			}
		}
		return strings.Join(parts, " / ")
	case []string:
		return strings.Join(t, " / ")
	}

	return ""
}

// currencyTokens maps spellings seen inside price strings to ISO codes.
// Checked in order; longer spellings come before their prefixes.
var currencyTokens = []struct {
	token string
	code  string
}{
	{"lei", "RON"},
	{"leu", "RON"},
	{"ron", "RON"},
	{"euro", "EUR"},
	{"eur", "EUR"},
	{"€", "EUR"},
	{"usd", "USD"},
	{"$", "USD"},
}

// parsePrice turns a raw price value into an amount plus an optional
// currency hint. Accepts plain numbers and strings like "1,49 lei",
// "1.234,56 RON", or "12.99".
func parsePrice(v any) (float64, string, error) {
	switch t := v.(type) {
	case float64:
		if t < 0 {
			return 0, "", fmt.Errorf("negative price %v", t)
		}
		return t, "", nil
	case int:
		if t < 0 {
			return 0, "", fmt.Errorf("negative price %v", t)
		}
		return float64(t), "", nil
	case int64:
		if t < 0 {
			return 0, "", fmt.Errorf("negative price %v", t)
		}
		return float64(t), "", nil
	case string:
		return parsePriceString(t)
	}
	return 0, "", fmt.Errorf("unsupported price type %T", v)
}

func parsePriceString(orig string) (float64, string, error) {
	s := strings.ToLower(strings.TrimSpace(orig))
	if s == "" {
		return 0, "", fmt.Errorf("empty price")
	}

	currency := ""
	for _, ct := range currencyTokens {
		if strings.Contains(s, ct.token) {
			currency = ct.code
			s = strings.ReplaceAll(s, ct.token, "")
			break
		}
	}

	s = strings.ReplaceAll(s, " ", "")
	s = strings.ReplaceAll(s, "\u00a0", "") // vendors pad prices with nbsp

	// European exports write "1.234,56": dots are grouping when a comma is
	// present, and the comma is the decimal point.
	if strings.Contains(s, ",") {
		if strings.Contains(s, ".") {
			s = strings.ReplaceAll(s, ".", "")
		}
		s = strings.Replace(s, ",", ".", 1)
	}

	amount, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, "", fmt.Errorf("unparseable price %q", orig)
	}
	if amount < 0 {
		return 0, "", fmt.Errorf("negative price %q", orig)
	}

	return amount, currency, nil
}

// packPattern splits "500 g", "1,5l", "6 buc" style quantity strings.
var packPattern = regexp.MustCompile(`^([0-9]+(?:[.,][0-9]+)?)\s*([a-zA-Z]+)\.?$`)

// packUnits normalizes unit spellings to the canonical short forms.
var packUnits = map[string]string{
	"g":         "g",
	"gr":        "g",
	"grame":     "g",
	"kg":        "kg",
	"kilograme": "kg",
	"ml":        "ml",
	"l":         "l",
	"litri":     "l",
	"litru":     "l",
	"buc":       "buc",
	"bucati":    "buc",
	"bucata":    "buc",
	"pcs":       "buc",
	"pc":        "buc",
}

// parsePack reads a quantity string. Unreadable values are not an error,
// plenty of exports leave the field free-form; callers get zero values.
func parsePack(s string) (float64, string) {
	m := packPattern.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return 0, ""
	}

	unit, ok := packUnits[strings.ToLower(m[2])]
	if !ok {
		return 0, ""
	}

	value, err := strconv.ParseFloat(strings.Replace(m[1], ",", ".", 1), 64)
	if err != nil || value <= 0 {
		return 0, ""
	}

	return value, unit
}

// unitPrice derives a per-kilogram, per-liter, or per-piece price, rounded
// to two decimals.
func unitPrice(price, size float64, unit string) float64 {
	if price <= 0 || size <= 0 {
		return 0
	}

	var per float64
	switch unit {
	case "g", "ml":
		per = price / size * 1000
	case "kg", "l", "buc":
		per = price / size
	default:
		return 0
	}

	return math.Round(per*100) / 100
}

// coerceStock folds the vendor's availability field into a boolean. A
// missing field counts as in stock, vendors rarely export delisted
// products; so do values nothing below recognizes.
func coerceStock(v any, present bool) bool {
	if !present || v == nil {
		return true
	}

	switch t := v.(type) {
	case bool:
		return t
	case float64:
		return t > 0
	case int:
		return t > 0
	case string:
		return stockFromString(t)
	}

	return true
}

func stockFromString(s string) bool {
	s = strings.ToLower(strings.TrimSpace(s))
	switch s {
	case "", "da", "yes", "true", "1", "y":
		return true
	case "nu", "no", "false", "0", "n":
		return false
	}

	// "indisponibil" contains "disponibil"; check the negatives first.
	for _, w := range []string{"indisponibil", "epuizat", "out of stock", "unavailable"} {
		if strings.Contains(s, w) {
			return false
		}
	}

	return true
}

// coerceBool reads promo-style flags: booleans, numbers, and yes-ish
// strings.
func coerceBool(v any) bool {
	switch t := v.(type) {
	case bool:
		return t
	case float64:
		return t > 0
	case int:
		return t > 0
	case string:
		s := strings.ToLower(strings.TrimSpace(t))
		return s == "da" || s == "yes" || s == "true" || s == "1"
	}
	return false
}

// stringList coerces a raw value into a list of non-empty strings. Accepts
// a single string or a list.
func stringList(v any) []string {
	switch t := v.(type) {
	case string:
		if s := strings.TrimSpace(t); s != "" {
			return []string{s}
		}
	case []string:
		out := make([]string, 0, len(t))
		for _, s := range t {
			if s = strings.TrimSpace(s); s != "" {
				out = append(out, s)
			}
		}
		if len(out) > 0 {
			return out
		}
	case []any:
		out := make([]string, 0, len(t))
		for _, item := range t {
			if s, ok := item.(string); ok {
				if s = strings.TrimSpace(s); s != "" {
					out = append(out, s)
				}
			}
		}
		if len(out) > 0 {
			return out
		}
	}
	return nil
}

var timeLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func parseTime(s string) (time.Time, bool) {
	for _, layout := range timeLayouts {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts, true
		}
	}
	return time.Time{}, false
}
