package util

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormatLargeNumber(t *testing.T) {
	cases := []struct {
		in   float64
		want string
	}{
		{2.4135e12, "2.41T"},
		{1e12, "1.00T"},
		{312.5e9, "312.50B"},
		{1e9, "1.00B"},
		{950_000_000, "950,000,000"},
		{1234.4, "1,234"},
		{999, "999"},
		{0, "0"},
		{-5.5e9, "-5.50B"},
		{-1234567, "-1,234,567"},
		{math.NaN(), "N/A"},
		{math.Inf(1), "N/A"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, FormatLargeNumber(tc.in), "input %v", tc.in)
	}
	assert.Equal(t, "N/A", FormatLargeNumberPtr(nil))
}

func TestParseIntDefault(t *testing.T) {
	assert.Equal(t, 20, ParseIntDefault("", 20))
	assert.Equal(t, 20, ParseIntDefault("x", 20))
	assert.Equal(t, 5, ParseIntDefault("5", 20))
}
