package utils

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
)

// NumericToDecimal converts a scanned numeric column without going through float64.
// NULL, NaN and infinities come back as an invalid NullDecimal.
func NumericToDecimal(value pgtype.Numeric) decimal.NullDecimal {
	if !value.Valid || value.NaN || value.InfinityModifier != pgtype.Finite || value.Int == nil {
		return decimal.NullDecimal{}
	}
	return decimal.NullDecimal{Decimal: decimal.NewFromBigInt(value.Int, value.Exp), Valid: true}
}

func DecimalToNumeric(value decimal.Decimal) pgtype.Numeric {
	return pgtype.Numeric{Int: new(big.Int).Set(value.Coefficient()), Exp: value.Exponent(), Valid: true}
}

func NullDecimalToNumeric(value decimal.NullDecimal) pgtype.Numeric {
	if !value.Valid {
		return pgtype.Numeric{}
	}
	return DecimalToNumeric(value.Decimal)
}

// zero-decimal and three-decimal currencies; everything else uses two.
var currencyExponents = map[string]int32{
	"JPY": 0,
	"KRW": 0,
	"VND": 0,
	"CLP": 0,
	"ISK": 0,
	"BHD": 3,
	"KWD": 3,
	"OMR": 3,
	"JOD": 3,
	"TND": 3,
}

func CurrencyExponent(currency string) int32 {
	if exp, ok := currencyExponents[strings.ToUpper(strings.TrimSpace(currency))]; ok {
		return exp
	}
	return 2
}

// ToMinorUnits converts an amount to the smallest currency unit, e.g. 450.00 INR -> 45000 paise.
func ToMinorUnits(amount decimal.Decimal, currency string) (int64, error) {
	if amount.IsNegative() {
		return 0, fmt.Errorf("amount must not be negative: %s", amount.String())
	}
	shifted := amount.Shift(CurrencyExponent(currency))
	if !shifted.Equal(shifted.Round(0)) {
		return 0, fmt.Errorf("amount %s has more precision than %s allows", amount.String(), strings.ToUpper(currency))
	}
	if !shifted.BigInt().IsInt64() {
		return 0, fmt.Errorf("amount %s overflows minor units", amount.String())
	}
	return shifted.IntPart(), nil
}

func FromMinorUnits(amount int64, currency string) decimal.Decimal {
	return decimal.New(amount, -CurrencyExponent(currency))
}
