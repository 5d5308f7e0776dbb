package engine_test

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meridianbank/loan-engine/engine"
)

func TestParseAmount_CommaDecimalSeparator(t *testing.T) {
	got, err := engine.ParseAmount("1000,50")
	require.NoError(t, err)
	assert.True(t, dec("1000.50").Equal(got), "got %s", got)
}

func TestParseAmount_LargeCommaString(t *testing.T) {
	got, err := engine.ParseAmount("2406072,29")
	require.NoError(t, err)
	assert.True(t, dec("2406072.29").Equal(got), "got %s", got)
}

func TestParseAmount_PlainString(t *testing.T) {
	got, err := engine.ParseAmount("123.45")
	require.NoError(t, err)
	assert.True(t, dec("123.45").Equal(got))
}

func TestParseAmount_NilAndEmptyAreZero(t *testing.T) {
	got, err := engine.ParseAmount(nil)
	require.NoError(t, err)
	assert.True(t, got.IsZero())

	got, err = engine.ParseAmount("")
	require.NoError(t, err)
	assert.True(t, got.IsZero())

	got, err = engine.ParseAmount("   ")
	require.NoError(t, err)
	assert.True(t, got.IsZero())
}

func TestParseAmount_JSONNumber(t *testing.T) {
	got, err := engine.ParseAmount(json.Number("99.99"))
	require.NoError(t, err)
	assert.True(t, dec("99.99").Equal(got))
}

func TestParseAmount_NativeNumbers(t *testing.T) {
	got, err := engine.ParseAmount(500)
	require.NoError(t, err)
	assert.True(t, dec("500").Equal(got))

	got, err = engine.ParseAmount(int64(7))
	require.NoError(t, err)
	assert.True(t, dec("7").Equal(got))

	got, err = engine.ParseAmount(12.5)
	require.NoError(t, err)
	assert.True(t, dec("12.5").Equal(got))
}

func TestParseAmount_Malformed_ReturnsTypedError(t *testing.T) {
	_, err := engine.ParseAmount("twelve")
	require.Error(t, err)
	assert.ErrorIs(t, err, engine.ErrInvalidNumericFormat)

	var nfe *engine.InvalidNumericFormatError
	require.True(t, errors.As(err, &nfe))
	assert.Equal(t, "twelve", nfe.Raw)
}

func TestParseAmount_UnsupportedType_Errors(t *testing.T) {
	_, err := engine.ParseAmount(struct{}{})
	assert.ErrorIs(t, err, engine.ErrInvalidNumericFormat)
}
