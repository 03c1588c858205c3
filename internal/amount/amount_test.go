package amount

import (
	"fmt"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUserToBaseUnits(t *testing.T) {
	cases := map[string]string{
		"12.34": "12340000",
		"25.00": "25000000",
		"25":    "25000000",
		"0.01":  "10000",
		"0.1":   "100000",
		".5":    "500000",
		"7.":    "7000000",
		" 3.30": "3300000",
	}
	for in, want := range cases {
		got, err := UserToBaseUnits(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
}

func TestTwoDecimalInputsAreExact(t *testing.T) {
	for cents := int64(1); cents <= 200000; cents += 7 {
		input := fmt.Sprintf("%d.%02d", cents/100, cents%100)
		got, err := UserToBaseUnits(input)
		require.NoError(t, err, input)
		n, err := strconv.ParseInt(got, 10, 64)
		require.NoError(t, err)
		if n != cents*10000 {
			t.Fatalf("%s: got %d want %d", input, n, cents*10000)
		}
	}
}

func TestParseUserAmountRejects(t *testing.T) {
	cases := map[string]error{
		"":      ErrInvalidAmount,
		"abc":   ErrInvalidAmount,
		"-1":    ErrInvalidAmount,
		"1e3":   ErrInvalidAmount,
		"1.2.3": ErrInvalidAmount,
		"1.234": ErrTooManyDecimals,
		"0":     ErrNonPositive,
		"0.00":  ErrNonPositive,
	}
	for in, want := range cases {
		_, err := ParseUserAmount(in)
		assert.ErrorIs(t, err, want, in)
	}
}

func TestFromBaseUnits(t *testing.T) {
	d, err := FromBaseUnits("12340000", USDCDecimals)
	require.NoError(t, err)
	assert.Equal(t, "12.34", d.String())
	assert.Equal(t, "25.00", Display("25000000", USDCDecimals))

	_, err = FromBaseUnits("1.5", USDCDecimals)
	require.Error(t, err)
	assert.Equal(t, "oops", Display("oops", USDCDecimals))
}
