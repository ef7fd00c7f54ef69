package ingest

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestParseIntStringExamples(t *testing.T) {
	cases := []struct {
		s         string
		precision int
		want      string
	}{
		{"150000000", 8, "1.5"},
		{"5", 8, "0.00000005"},
		{"100000000", 8, "1"},
		{"0", 8, "0"},
		{"12345", 2, "123.45"},
		{"1", 0, "1"},
	}

	for _, c := range cases {
		got, err := ParseIntString(c.s, c.precision)
		require.NoError(t, err)
		want, err := decimal.NewFromString(c.want)
		require.NoError(t, err)
		require.True(t, got.Equal(want), "ParseIntString(%q, %d) = %s, want %s", c.s, c.precision, got, want)
	}
}

// TestParseIntStringRoundTrip is the property test from the testable
// properties section: parseFromIntString(s, p) * 10^p == s.
func TestParseIntStringRoundTrip(t *testing.T) {
	samples := []struct {
		s         string
		precision int
	}{
		{"1", 8},
		{"99999999", 8},
		{"100000000", 8},
		{"123456789012", 8},
		{"7", 0},
		{"42", 3},
	}

	for _, s := range samples {
		got, err := ParseIntString(s.s, s.precision)
		require.NoError(t, err)

		scale := decimal.New(1, int32(s.precision))
		scaled := got.Mul(scale)

		want, err := decimal.NewFromString(s.s)
		require.NoError(t, err)

		require.True(t, scaled.Equal(want),
			"ParseIntString(%q, %d) * 10^%d = %s, want %s", s.s, s.precision, s.precision, scaled, want)
	}
}
