package money

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseAmountMinor(t *testing.T) {
	cases := []struct {
		in   string
		want int64
	}{
		{"150", 15000},
		{"1.50", 150},
		{"1,5", 150},
		{"57.75", 5775},
		{"57,75", 5775},
		{" 100 ", 10000},
		{"0.01", 1},
		{",5", 50},
		{"100000", 10_000_000},
	}
	for _, tc := range cases {
		got, err := ParseAmountMinor(tc.in)
		assert.NoError(t, err, tc.in)
		assert.Equal(t, tc.want, got, tc.in)
	}
}

func TestParseAmountMinorRejects(t *testing.T) {
	formatErrs := []string{"", "   ", "abc", "1.234", "1.2.3", "-5", "1e3", "12 34", "."}
	for _, in := range formatErrs {
		_, err := ParseAmountMinor(in)
		assert.True(t, errors.Is(err, ErrAmountFormat), "%q: %v", in, err)
	}

	rangeErrs := []string{"0", "0.00", "100000.01", "100001", "999999999999999999999"}
	for _, in := range rangeErrs {
		_, err := ParseAmountMinor(in)
		assert.True(t, errors.Is(err, ErrAmountRange), "%q: %v", in, err)
	}
}

func TestParseFormatRoundTrip(t *testing.T) {
	for _, in := range []string{"0.01", "1.00", "57.75", "100000.00"} {
		minor, err := ParseAmountMinor(in)
		assert.NoError(t, err)
		assert.Equal(t, in, FormatMinor(minor))
	}
}

func TestFormatMinor(t *testing.T) {
	assert.Equal(t, "57.75", FormatMinor(5775))
	assert.Equal(t, "1.00", FormatMinor(100))
	assert.Equal(t, "0.05", FormatMinor(5))
	assert.Equal(t, "0.00", FormatMinor(0))
	assert.Equal(t, "-1.50", FormatMinor(-150))
}

func TestRoundMajorToMinor(t *testing.T) {
	assert.Equal(t, int64(5775), RoundMajorToMinor(57.75))
	assert.Equal(t, int64(10000), RoundMajorToMinor(100))
	assert.Equal(t, int64(25), RoundMajorToMinor(0.25))
	assert.Equal(t, int64(-350), RoundMajorToMinor(-3.5))
	assert.Equal(t, int64(0), RoundMajorToMinor(0))
}
