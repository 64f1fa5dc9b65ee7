package queueconfig

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMatchesExpressionEmptyAlwaysMatches(t *testing.T) {
	ok, err := MatchesExpression("", nil)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestMatchesExpressionBooleanCombinations(t *testing.T) {
	held := map[string]bool{"linux": true, "large": true}

	cases := []struct {
		expr string
		want bool
	}{
		{"linux", true},
		{"windows", false},
		{"linux && large", true},
		{"linux && spot", false},
		{"windows || linux", true},
		{"!windows", true},
		{"!linux", false},
	}
	for _, c := range cases {
		ok, err := MatchesExpression(c.expr, held)
		require.NoErrorf(t, err, "expression %q", c.expr)
		assert.Equalf(t, c.want, ok, "expression %q", c.expr)
	}
}

func TestMatchesExpressionUnheldLabelIsFalse(t *testing.T) {
	ok, err := MatchesExpression("gpu", map[string]bool{"linux": true})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMatchesExpressionMalformedReturnsError(t *testing.T) {
	_, err := MatchesExpression("linux &&", nil)
	assert.Error(t, err)
}

func TestMatchesExpressionNonBooleanResultIsError(t *testing.T) {
	_, err := MatchesExpression(`"not-a-bool"`, nil)
	assert.Error(t, err)
}
