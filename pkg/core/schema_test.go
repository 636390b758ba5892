package core

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDecimalTypeAndValue(t *testing.T) {
	typ := DecimalOf(10, 2)
	assert.Equal(t, KindDecimal, typ.Kind)
	assert.Equal(t, "Decimal(10, 2)", typ.String())

	v := Decimal{Coef: big.NewInt(-1234), Scale: 2}
	assert.Equal(t, "-12.34", v.String())
	assert.Equal(t, 0, v.Rat().Cmp(big.NewRat(-1234, 100)))
	assert.Equal(t, "-12.34", FormatValue(v))
}

func TestFormatValue(t *testing.T) {
	assert.Equal(t, "NULL", FormatValue(nil))
	assert.Equal(t, "0x0aff", FormatValue([]byte{0x0a, 0xff}))
	assert.Equal(t, "1.5", FormatValue(1.5))
	assert.Equal(t, "true", FormatValue(true))
}
