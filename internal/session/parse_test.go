package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDuration(t *testing.T) {
	testCases := []struct {
		input    string
		expected int
		err      error
	}{
		{input: "1d", expected: 1440},
		{input: "2h30m", expected: 150},
		{input: "1d12h", expected: 2160},
		{input: "5m", expected: 5},
		{input: "2 hours 15 mins", expected: 135},
		{input: "1DAY", expected: 1440},
		{input: " 3hr ", expected: 180},
		{input: "2h\t30m", expected: 150},
		{input: "1d\n2 h", expected: 1560},
		{input: "90s", err: ErrInvalidDuration},
		{input: "", err: ErrInvalidDuration},
		{input: "   ", err: ErrInvalidDuration},
		{input: "4m", err: ErrDurationTooShort},
		{input: "10", err: ErrInvalidDuration},
		{input: "h", err: ErrInvalidDuration},
		{input: "1x", err: ErrInvalidDuration},
		{input: "-5m", err: ErrInvalidDuration},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.input, func(t *testing.T) {
			got, err := ParseDuration(tc.input)
			if tc.err != nil {
				assert.ErrorIs(t, err, tc.err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.expected, got)
		})
	}
}

func TestParseTriggerValue(t *testing.T) {
	testCases := []struct {
		input    string
		expected string
		ok       bool
	}{
		{input: "50000", expected: "50000", ok: true},
		{input: "50k", expected: "50000", ok: true},
		{input: "1.5m", expected: "1500000", ok: true},
		{input: "$2B", expected: "2000000000", ok: true},
		{input: "$50,000", expected: "50000", ok: true},
		{input: "0.00042", expected: "0.00042", ok: true},
		{input: "0", ok: false},
		{input: "-10", ok: false},
		{input: "k", ok: false},
		{input: "abc", ok: false},
		{input: "$", ok: false},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.input, func(t *testing.T) {
			got, err := ParseTriggerValue(tc.input)
			if !tc.ok {
				assert.ErrorIs(t, err, ErrInvalidNumber)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.expected, got.String())
		})
	}
}

func TestParseAmountAndPercent(t *testing.T) {
	amount, err := ParseAmount(" 0.25 ")
	require.NoError(t, err)
	assert.Equal(t, "0.25", amount.String())

	_, err = ParseAmount("0")
	assert.ErrorIs(t, err, ErrInvalidNumber)

	pct, err := ParsePercent("50%")
	require.NoError(t, err)
	assert.Equal(t, "50", pct.String())

	pct, err = ParsePercent("100")
	require.NoError(t, err)
	assert.Equal(t, "100", pct.String())

	for _, bad := range []string{"0", "100.5", "-1", "half"} {
		_, err = ParsePercent(bad)
		assert.ErrorIs(t, err, ErrInvalidPercent, bad)
	}
}
