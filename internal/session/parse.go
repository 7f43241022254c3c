package session

import (
	"errors"
	"math"
	"strconv"
	"strings"
	"unicode"

	"github.com/shopspring/decimal"
)

var (
	// ErrInvalidDuration is returned for malformed duration text.
	ErrInvalidDuration = errors.New("use a duration like 30m, 2h30m or 1d")
	// ErrDurationTooShort is returned for durations under five minutes.
	ErrDurationTooShort = errors.New("minimum is 5 minutes")
	// ErrInvalidNumber is returned for non-positive or malformed values.
	ErrInvalidNumber = errors.New("enter a positive number")
	// ErrInvalidPercent is returned for percentages outside (0, 100].
	ErrInvalidPercent = errors.New("enter a percentage between 0 and 100")
)

var durationUnits = map[string]int{
	"d":       24 * 60,
	"day":     24 * 60,
	"days":    24 * 60,
	"h":       60,
	"hr":      60,
	"hrs":     60,
	"hour":    60,
	"hours":   60,
	"m":       1,
	"min":     1,
	"mins":    1,
	"minute":  1,
	"minutes": 1,
}

var magnitudeSuffixes = map[byte]decimal.Decimal{
	'k': decimal.NewFromInt(1_000),
	'm': decimal.NewFromInt(1_000_000),
	'b': decimal.NewFromInt(1_000_000_000),
}

// ParseDuration converts text such as "1d12h" or "2h 30m" into whole minutes.
func ParseDuration(text string) (int, error) {
	s := []rune(strings.ToLower(strings.TrimSpace(text)))
	if len(s) == 0 {
		return 0, ErrInvalidDuration
	}

	total := 0
	i := 0
	for i < len(s) {
		for i < len(s) && unicode.IsSpace(s[i]) {
			i++
		}
		if i == len(s) {
			break
		}

		start := i
		for i < len(s) && s[i] >= '0' && s[i] <= '9' {
			i++
		}
		if start == i {
			return 0, ErrInvalidDuration
		}
		n, err := strconv.Atoi(string(s[start:i]))
		if err != nil {
			return 0, ErrInvalidDuration
		}

		for i < len(s) && unicode.IsSpace(s[i]) {
			i++
		}

		start = i
		for i < len(s) && unicode.IsLetter(s[i]) {
			i++
		}
		factor, ok := durationUnits[string(s[start:i])]
		if !ok {
			return 0, ErrInvalidDuration
		}

		if n > (math.MaxInt32-total)/factor {
			return 0, ErrInvalidDuration
		}
		total += n * factor
	}

	if total < MinIntervalMinutes {
		return 0, ErrDurationTooShort
	}

	return total, nil
}

// ParseTriggerValue parses values like "50000", "$50,000", "50k" or "1.5m".
func ParseTriggerValue(text string) (decimal.Decimal, error) {
	s := strings.ToLower(strings.TrimSpace(text))
	s = strings.TrimPrefix(s, "$")
	s = strings.ReplaceAll(s, ",", "")
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, ErrInvalidNumber
	}

	multiplier := decimal.NewFromInt(1)
	if m, ok := magnitudeSuffixes[s[len(s)-1]]; ok {
		multiplier = m
		s = strings.TrimSpace(s[:len(s)-1])
	}

	value, err := decimal.NewFromString(s)
	if err != nil || !value.IsPositive() {
		return decimal.Zero, ErrInvalidNumber
	}

	return value.Mul(multiplier), nil
}

// ParseAmount parses a positive base-asset amount.
func ParseAmount(text string) (decimal.Decimal, error) {
	s := strings.ReplaceAll(strings.TrimSpace(text), ",", "")
	value, err := decimal.NewFromString(s)
	if err != nil || !value.IsPositive() {
		return decimal.Zero, ErrInvalidNumber
	}
	return value, nil
}

// ParsePercent parses a percentage in (0, 100], with an optional % sign.
func ParsePercent(text string) (decimal.Decimal, error) {
	s := strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(text), "%"))
	value, err := decimal.NewFromString(s)
	if err != nil || !value.IsPositive() || value.GreaterThan(decimal.NewFromInt(100)) {
		return decimal.Zero, ErrInvalidPercent
	}
	return value, nil
}
