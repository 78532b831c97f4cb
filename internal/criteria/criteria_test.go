package criteria

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskorch/tm/internal/models"
)

func crit(measurable string) []models.Criterion {
	return []models.Criterion{{Criterion: "check", Measurable: measurable}}
}

func TestEvaluateLiterals(t *testing.T) {
	assert.True(t, Evaluate(crit("true"), nil).OverallPass)

	res := Evaluate(crit("false"), nil)
	assert.False(t, res.OverallPass)
	require.Len(t, res.Failures, 1)
	assert.Contains(t, res.Failures[0].Reason, "false")
}

func TestEvaluateBareIdentifier(t *testing.T) {
	ctx := map[string]any{
		"tests_pass": true,
		"lint_clean": false,
		"coverage":   82.5,
		"empty":      "",
	}

	assert.True(t, Evaluate(crit("tests_pass"), ctx).OverallPass)
	assert.False(t, Evaluate(crit("lint_clean"), ctx).OverallPass)
	assert.True(t, Evaluate(crit("coverage"), ctx).OverallPass)
	assert.False(t, Evaluate(crit("empty"), ctx).OverallPass)
}

func TestEvaluateUnknownIdentifier(t *testing.T) {
	res := Evaluate(crit("nonexistent"), map[string]any{})
	assert.False(t, res.OverallPass)
	require.Len(t, res.Failures, 1)
	assert.Contains(t, res.Failures[0].Reason, "unknown identifier")
}

func TestEvaluateNumericComparisons(t *testing.T) {
	ctx := map[string]any{"coverage": 82.5, "errors": 0}

	cases := []struct {
		measurable string
		pass       bool
	}{
		{"coverage >= 80", true},
		{"coverage > 82.5", false},
		{"coverage <= 82.5", true},
		{"coverage < 80", false},
		{"coverage == 82.5", true},
		{"coverage != 82.5", false},
		{"errors == 0", true},
	}
	for _, tc := range cases {
		res := Evaluate(crit(tc.measurable), ctx)
		assert.Equal(t, tc.pass, res.OverallPass, tc.measurable)
	}
}

func TestEvaluateStringEquality(t *testing.T) {
	ctx := map[string]any{"env": "staging"}

	assert.True(t, Evaluate(crit(`env == "staging"`), ctx).OverallPass)
	assert.False(t, Evaluate(crit(`env == "production"`), ctx).OverallPass)
	assert.True(t, Evaluate(crit(`env != 'production'`), ctx).OverallPass)

	// ordering comparisons on strings are rejected, which fails the criterion
	res := Evaluate(crit(`env > "a"`), ctx)
	assert.False(t, res.OverallPass)
}

func TestEvaluateTypeMismatch(t *testing.T) {
	ctx := map[string]any{"coverage": "lots"}
	res := Evaluate(crit("coverage >= 80"), ctx)
	assert.False(t, res.OverallPass)
	require.Len(t, res.Failures, 1)
	assert.Contains(t, res.Failures[0].Reason, "not a number")
}

func TestEvaluateMalformedMeasurable(t *testing.T) {
	for _, m := range []string{"", "80 >= coverage", "a == b == c", "a ==", `a == "unterminated`} {
		res := Evaluate(crit(m), map[string]any{"a": 1})
		assert.False(t, res.OverallPass, "measurable %q should fail", m)
	}
}

func TestEvaluateMixedList(t *testing.T) {
	criteria := []models.Criterion{
		{Criterion: "tests pass", Measurable: "tests_pass"},
		{Criterion: "coverage threshold", Measurable: "coverage >= 80"},
		{Criterion: "no regressions", Measurable: "regressions == 0"},
	}
	ctx := map[string]any{"tests_pass": true, "coverage": 75.0, "regressions": 0}

	res := Evaluate(criteria, ctx)
	assert.False(t, res.OverallPass)
	assert.Len(t, res.Results, 3)
	require.Len(t, res.Failures, 1)
	assert.Equal(t, "coverage threshold", res.Failures[0].Criterion)
}
