package queueconfig

import (
	"fmt"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclsyntax"
	"github.com/zclconf/go-cty/cty"
)

// MatchesExpression evaluates a boolean label expression (e.g.
// "linux && large", "!spot") against the set of labels a node
// currently carries. Every identifier referenced in expr becomes a
// cty.Bool variable set to whether held contains it, so arbitrary
// boolean combinations compose the same way Jenkins' label expression
// grammar does, without needing a hand-rolled parser.
func MatchesExpression(expr string, held map[string]bool) (bool, error) {
	if expr == "" {
		return true, nil
	}

	parsed, diags := hclsyntax.ParseExpression([]byte(expr), "<label>", hcl.InitialPos)
	if diags.HasErrors() {
		return false, fmt.Errorf("queueconfig: parse label expression %q: %w", expr, diags)
	}

	vars := make(map[string]cty.Value)
	for _, v := range parsed.Variables() {
		name := v.RootName()
		vars[name] = cty.BoolVal(held[name])
	}

	ctx := &hcl.EvalContext{Variables: vars}
	val, diags := parsed.Value(ctx)
	if diags.HasErrors() {
		return false, fmt.Errorf("queueconfig: evaluate label expression %q: %w", expr, diags)
	}
	if val.Type() != cty.Bool {
		return false, fmt.Errorf("queueconfig: label expression %q did not evaluate to a boolean", expr)
	}
	return val.True(), nil
}
