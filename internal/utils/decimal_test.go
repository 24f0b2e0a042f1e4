package utils

import (
	"math/big"
	"testing"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToMinorUnits(t *testing.T) {
	cases := []struct {
		name     string
		amount   string
		currency string
		expected int64
		wantErr  bool
	}{
		{name: "rupees to paise", amount: "450.00", currency: "INR", expected: 45000},
		{name: "lowercase currency", amount: "12.5", currency: "usd", expected: 1250},
		{name: "zero decimal currency", amount: "1200", currency: "JPY", expected: 1200},
		{name: "three decimal currency", amount: "1.234", currency: "KWD", expected: 1234},
		{name: "zero amount", amount: "0", currency: "INR", expected: 0},
		{name: "sub-paisa precision rejected", amount: "10.005", currency: "INR", wantErr: true},
		{name: "negative rejected", amount: "-1.00", currency: "INR", wantErr: true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ToMinorUnits(decimal.RequireFromString(tc.amount), tc.currency)
			if tc.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.expected, got)
		})
	}
}

func TestFromMinorUnits(t *testing.T) {
	assert.True(t, FromMinorUnits(45000, "INR").Equal(decimal.RequireFromString("450")))
	assert.True(t, FromMinorUnits(1200, "JPY").Equal(decimal.NewFromInt(1200)))
}

func TestNumericToDecimal(t *testing.T) {
	valid := NumericToDecimal(pgtype.Numeric{Int: big.NewInt(12345), Exp: -2, Valid: true})
	require.True(t, valid.Valid)
	assert.Equal(t, "123.45", valid.Decimal.String())

	assert.False(t, NumericToDecimal(pgtype.Numeric{}).Valid)
	assert.False(t, NumericToDecimal(pgtype.Numeric{NaN: true, Valid: true}).Valid)
}

func TestDecimalToNumericRoundTrip(t *testing.T) {
	in := decimal.RequireFromString("99.90")
	out := NumericToDecimal(DecimalToNumeric(in))
	require.True(t, out.Valid)
	assert.True(t, in.Equal(out.Decimal))

	assert.False(t, NullDecimalToNumeric(decimal.NullDecimal{}).Valid)
}

func TestVerifyHMACSHA256Hex(t *testing.T) {
	sig := HMACSHA256Hex("secret", "order_1|pay_1")
	assert.True(t, VerifyHMACSHA256Hex("secret", "order_1|pay_1", sig))
	assert.False(t, VerifyHMACSHA256Hex("secret", "order_1|pay_2", sig))
	assert.False(t, VerifyHMACSHA256Hex("other", "order_1|pay_1", sig))
	assert.False(t, VerifyHMACSHA256Hex("secret", "order_1|pay_1", "not-hex"))
	assert.False(t, VerifyHMACSHA256Hex("secret", "order_1|pay_1", ""))
}
