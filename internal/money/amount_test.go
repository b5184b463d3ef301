package money

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseKeepsMinorUnits(t *testing.T) {
	cases := map[string]int64{
		"0":       0,
		"10":      1000,
		"10.5":    1050,
		"23.50":   2350,
		"-5.00":   -500,
		"0.01":    1,
		"1234.56": 123456,
	}
	for in, want := range cases {
		got, err := Parse(in)
		require.NoError(t, err, in)
		require.Equal(t, want, got.Cents(), in)
	}
}

func TestParseRejectsExtraPrecision(t *testing.T) {
	_, err := Parse("1.005")
	require.ErrorIs(t, err, ErrInvalidAmount)

	_, err = Parse("abc")
	require.ErrorIs(t, err, ErrInvalidAmount)
}

func TestArithmeticHasNoDrift(t *testing.T) {
	var total Amount
	for i := 0; i < 1000; i++ {
		total = total.Add(MustParse("0.10"))
	}
	require.Equal(t, MustParse("100.00"), total)
	require.Equal(t, MustParse("30.00"), MustParse("10.00").Mul(3))
	require.Equal(t, MustParse("6.50"), MustParse("30.00").Sub(MustParse("23.50")))
	require.Equal(t, Zero, MustParse("-1.00").ClampZero())
}

func TestJSONUsesDecimalStrings(t *testing.T) {
	raw, err := json.Marshal(struct {
		Total Amount `json:"total"`
	}{Total: MustParse("118")})
	require.NoError(t, err)
	require.JSONEq(t, `{"total":"118.00"}`, string(raw))

	var in struct {
		A Amount `json:"a"`
		B Amount `json:"b"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"a":"15.00","b":8.5}`), &in))
	require.Equal(t, int64(1500), in.A.Cents())
	require.Equal(t, int64(850), in.B.Cents())

	require.Error(t, json.Unmarshal([]byte(`{"a":"1.999"}`), &in))
}

func TestFormatUsesCommaDecimal(t *testing.T) {
	require.Equal(t, "R$ 1.234,50", Format(MustParse("1234.5")))
	require.Equal(t, "R$ 0,00", Format(Zero))
	require.Equal(t, "-R$ 5,00", Format(MustParse("-5")))
	require.Equal(t, "118,00", FormatPlain(MustParse("118")))
}

func TestParseDisplay(t *testing.T) {
	a, err := ParseDisplay("R$ 1.234,50")
	require.NoError(t, err)
	require.Equal(t, int64(123450), a.Cents())

	a, err = ParseDisplay("-5,5")
	require.NoError(t, err)
	require.Equal(t, int64(-550), a.Cents())
}
