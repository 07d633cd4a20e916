package scenario

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/cel-go/cel"

	"github.com/nextlevelbuilder/rodchain/pkg/browser"
)

// celEnv declares the variables a node predicate can read.
var celEnv = func() *cel.Env {
	env, err := cel.NewEnv(
		cel.Variable("text", cel.StringType),
		cel.Variable("value", cel.StringType),
		cel.Variable("classes", cel.ListType(cel.StringType)),
		cel.Variable("selector", cel.StringType),
	)
	if err != nil {
		panic(fmt.Sprintf("scenario: cel env: %v", err))
	}
	return env
}()

// predicate is a compiled boolean CEL expression over one node.
type predicate struct {
	expr string
	prg  cel.Program
}

func compilePredicate(expr string) (*predicate, error) {
	ast, iss := celEnv.Compile(expr)
	if iss != nil && iss.Err() != nil {
		return nil, fmt.Errorf("cel %q: %w", expr, iss.Err())
	}
	if ast.OutputType() != cel.BoolType {
		return nil, fmt.Errorf("cel %q: result is %s, want bool", expr, ast.OutputType())
	}
	prg, err := celEnv.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("cel %q: %w", expr, err)
	}
	return &predicate{expr: expr, prg: prg}, nil
}

// match reads the node's text, value and classes and evaluates the expression.
func (p *predicate) match(ctx context.Context, n *browser.Node) (bool, error) {
	text, err := n.Text().Await(ctx)
	if err != nil {
		return false, err
	}
	value, err := n.Value().Await(ctx)
	if err != nil {
		return false, err
	}
	classes, err := n.Classes().Await(ctx)
	if err != nil {
		return false, err
	}
	selector, _ := n.Selector()

	out, _, err := p.prg.ContextEval(ctx, map[string]any{
		"text":     text,
		"value":    value,
		"classes":  classes,
		"selector": selector,
	})
	if err != nil {
		return false, fmt.Errorf("cel %q: %w", p.expr, err)
	}
	ok, isBool := out.Value().(bool)
	if !isBool {
		return false, fmt.Errorf("cel %q: result %v is not a bool", p.expr, out.Value())
	}
	return ok, nil
}

// probe is match with a missing element counted as false.
func (p *predicate) probe(ctx context.Context, n *browser.Node) (bool, error) {
	ok, err := p.match(ctx, n)
	if errors.Is(err, browser.ErrNoSuchElement) {
		return false, nil
	}
	return ok, err
}
