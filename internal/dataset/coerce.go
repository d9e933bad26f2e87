package dataset

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/ashureev/salesbot/internal/domain"
)

// ErrInvalidDate is returned when a non-blank date cannot be parsed.
var ErrInvalidDate = errors.New("invalid date")

// Day-first layouts, most specific first. Year-first ISO forms are kept
// because already-normalized files are common.
var dateLayouts = []string{
	"2/1/2006",
	"2/1/2006 15:04",
	"2/1/2006 15:04:05",
	"2-1-2006",
	"2-1-2006 15:04",
	"2-1-2006 15:04:05",
	"2.1.2006",
	"2/1/06",
	"2-1-06",
	domain.DateLayout,
	"2006-01-02 15:04",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	time.RFC3339,
	"2006/01/02",
}

// ParseNumber coerces s to a number. Blank or unparseable input yields nil,
// including comma-bearing tokens such as "12,5" or "1,234".
func ParseNumber(s string) *float64 {
	s = strings.TrimSpace(s)
	if s == "" || strings.ContainsAny(s, "xXpP_") {
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

// ParseDayFirstDate parses s with the day-first convention and returns the
// calendar date at UTC midnight. Blank input yields nil without error.
func ParseDayFirstDate(s string) (*time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	for _, layout := range dateLayouts {
		t, err := time.Parse(layout, s)
		if err != nil {
			continue
		}
		d := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
		return &d, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrInvalidDate, s)
}

// CoerceDate is ParseDayFirstDate with invalid input mapped to nil.
func CoerceDate(s string) *time.Time {
	d, err := ParseDayFirstDate(s)
	if err != nil {
		return nil
	}
	return d
}

// FillPromotion maps null, empty and whitespace-only promotion types to
// domain.NoPromotion. Other values pass through unchanged.
func FillPromotion(s string, valid bool) string {
	if !valid || strings.TrimSpace(s) == "" {
		return domain.NoPromotion
	}
	return s
}

// ToBool casts a stored flag to bool. Storage may hand back integers,
// floats, booleans or text; NULL is false.
func ToBool(v any) bool {
	switch x := v.(type) {
	case nil:
		return false
	case bool:
		return x
	case int64:
		return x != 0
	case int:
		return x != 0
	case float64:
		return x != 0 && !math.IsNaN(x)
	case []byte:
		return textToBool(string(x))
	case string:
		return textToBool(x)
	default:
		return false
	}
}

func textToBool(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "true", "t", "yes", "y":
		return true
	case "", "0", "false", "f", "no", "n":
		return false
	}
	if n := ParseNumber(s); n != nil {
		return *n != 0
	}
	return false
}
