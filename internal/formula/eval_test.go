package formula

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEvalCapacityScaling(t *testing.T) {
	got, err := Eval("kwp * 1000", 5.5)
	require.NoError(t, err)
	require.InDelta(t, 5500.0, got, 1e-9)
}

func TestEvalPrecedenceAndParens(t *testing.T) {
	got, err := Eval("2 + kwp * 3", 4)
	require.NoError(t, err)
	require.InDelta(t, 14.0, got, 1e-9)

	got, err = Eval("(2 + kwp) * 3", 4)
	require.NoError(t, err)
	require.InDelta(t, 18.0, got, 1e-9)
}

func TestEvalUnaryMinus(t *testing.T) {
	got, err := Eval("-kwp + 10", 3)
	require.NoError(t, err)
	require.InDelta(t, 7.0, got, 1e-9)

	got, err = Eval("2 * -3", 0)
	require.NoError(t, err)
	require.InDelta(t, -6.0, got, 1e-9)
}

func TestEvalDivisionByZero(t *testing.T) {
	_, err := Eval("1/(kwp-5)", 5)
	require.ErrorIs(t, err, ErrDivisionByZero)
}

func TestEvalMismatchedParentheses(t *testing.T) {
	_, err := Eval("(kwp+1", 2)
	require.ErrorIs(t, err, ErrMismatchedParentheses)

	_, err = Eval("kwp+1)", 2)
	require.ErrorIs(t, err, ErrMismatchedParentheses)
}

func TestEvalRejectsForeignInput(t *testing.T) {
	_, err := Eval("kwp + x", 2)
	require.ErrorIs(t, err, ErrInvalidExpression)

	_, err = Eval("kwp; drop", 2)
	require.ErrorIs(t, err, ErrInvalidExpression)

	_, err = Eval("", 2)
	require.ErrorIs(t, err, ErrInvalidExpression)
}

func TestValidateStructureOnly(t *testing.T) {
	require.NoError(t, Validate("1/(kwp-1)"))
	require.NoError(t, Validate("kwp * 1000 / 540"))
	require.ErrorIs(t, Validate("kwp kwp"), ErrInvalidExpression)
	require.ErrorIs(t, Validate("* kwp"), ErrInvalidExpression)
}

func TestEvalDeterministic(t *testing.T) {
	first, err := Eval("(kwp + 0.5) * 12 - kwp / 4", 7.25)
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		again, err := Eval("(kwp + 0.5) * 12 - kwp / 4", 7.25)
		require.NoError(t, err)
		require.Equal(t, first, again)
	}
}