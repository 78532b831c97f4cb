// Package criteria evaluates success-criterion expressions against a
// caller-supplied context map. The measurable language is deliberately tiny:
// boolean literals, a bare identifier (truthiness), or a single comparison of
// an identifier against a number or string. It is not a general expression
// evaluator.
package criteria

import (
	"fmt"
	"strings"

	"github.com/taskorch/tm/internal/models"
)

// Result is the outcome of evaluating a criterion list.
type Result struct {
	OverallPass bool                     `json:"overall_pass"`
	Results     []models.CriterionResult `json:"results"`
	Failures    []models.CriterionResult `json:"failures,omitempty"`
}

// Evaluate runs every criterion's measurable against the context map.
// Evaluation never fails as a whole: a malformed measurable or an unknown
// identifier makes that one criterion fail with a reason.
func Evaluate(criteria []models.Criterion, ctx map[string]any) Result {
	res := Result{OverallPass: true}
	for _, c := range criteria {
		passed, reason := evalMeasurable(c.Measurable, ctx)
		cr := models.CriterionResult{Criterion: c.Criterion, Passed: passed, Reason: reason}
		res.Results = append(res.Results, cr)
		if !passed {
			res.OverallPass = false
			res.Failures = append(res.Failures, cr)
		}
	}
	return res
}

func evalMeasurable(measurable string, ctx map[string]any) (bool, string) {
	expr, err := parse(measurable)
	if err != nil {
		return false, err.Error()
	}
	return expr.eval(ctx)
}

// expr is a parsed measurable.
type expr struct {
	// literal bool ("true"/"false")
	isLiteral bool
	literal   bool

	ident string

	// comparison; empty op means bare identifier truthiness
	op       string
	numRHS   float64
	strRHS   string
	isStrCmp bool
}

func (e *expr) eval(ctx map[string]any) (bool, string) {
	if e.isLiteral {
		if !e.literal {
			return false, "criterion is marked false"
		}
		return true, ""
	}

	val, ok := ctx[e.ident]
	if !ok {
		return false, fmt.Sprintf("unknown identifier %q", e.ident)
	}

	if e.op == "" {
		if truthy(val) {
			return true, ""
		}
		return false, fmt.Sprintf("%s is falsy (%v)", e.ident, val)
	}

	if e.isStrCmp {
		s, ok := val.(string)
		if !ok {
			return false, fmt.Sprintf("%s is not a string (%v)", e.ident, val)
		}
		passed := (s == e.strRHS) == (e.op == "==")
		if !passed {
			return false, fmt.Sprintf("%s %s %q failed (got %q)", e.ident, e.op, e.strRHS, s)
		}
		return true, ""
	}

	n, ok := asNumber(val)
	if !ok {
		return false, fmt.Sprintf("%s is not a number (%v)", e.ident, val)
	}
	if compare(n, e.op, e.numRHS) {
		return true, ""
	}
	return false, fmt.Sprintf("%s %s %g failed (got %g)", e.ident, e.op, e.numRHS, n)
}

func compare(lhs float64, op string, rhs float64) bool {
	switch op {
	case "<":
		return lhs < rhs
	case "<=":
		return lhs <= rhs
	case "==":
		return lhs == rhs
	case "!=":
		return lhs != rhs
	case ">=":
		return lhs >= rhs
	case ">":
		return lhs > rhs
	}
	return false
}

func truthy(val any) bool {
	switch v := val.(type) {
	case bool:
		return v
	case string:
		return v != "" && !strings.EqualFold(v, "false")
	default:
		n, ok := asNumber(val)
		return ok && n != 0
	}
}

func asNumber(val any) (float64, bool) {
	switch v := val.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case uint:
		return float64(v), true
	}
	return 0, false
}
