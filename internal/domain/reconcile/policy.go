package reconcile

import (
	"fmt"

	"github.com/google/cel-go/cel"

	"supplyhub/internal/domain/orders"
)

// Policy decides the inventory effect of a status transition.
type Policy interface {
	Decide(from, to orders.Status) (orders.Action, error)
}

// DefaultPolicy adds stock when an order becomes CONFIRMED and reverses it
// when a CONFIRMED order leaves that state for anything other than
// SHIPPED or RECEIVED.
type DefaultPolicy struct{}

// Decide implements Policy.
func (DefaultPolicy) Decide(from, to orders.Status) (orders.Action, error) {
	switch {
	case from != orders.StatusConfirmed && to == orders.StatusConfirmed:
		return orders.ActionAddStock, nil
	case from == orders.StatusConfirmed && to == orders.StatusCancelled:
		return orders.ActionRemoveStock, nil
	case from == orders.StatusConfirmed &&
		to != orders.StatusConfirmed && to != orders.StatusShipped && to != orders.StatusReceived:
		return orders.ActionRemoveStock, nil
	default:
		return orders.ActionNone, nil
	}
}

// Rules equivalent to DefaultPolicy, over the string variables old and new.
const (
	DefaultAddRule    = `old != "CONFIRMED" && new == "CONFIRMED"`
	DefaultRemoveRule = `old == "CONFIRMED" && !(new in ["CONFIRMED", "SHIPPED", "RECEIVED"])`
)

// CELPolicy evaluates two boolean CEL expressions, one selecting stock
// additions and one selecting removals.
type CELPolicy struct {
	add    cel.Program
	remove cel.Program
}

// NewCELPolicy compiles the rules. Empty rules fall back to the defaults.
func NewCELPolicy(addRule, removeRule string) (*CELPolicy, error) {
	if addRule == "" {
		addRule = DefaultAddRule
	}
	if removeRule == "" {
		removeRule = DefaultRemoveRule
	}

	env, err := cel.NewEnv(
		cel.Variable("old", cel.StringType),
		cel.Variable("new", cel.StringType),
	)
	if err != nil {
		return nil, fmt.Errorf("cel env: %w", err)
	}

	add, err := compileRule(env, addRule)
	if err != nil {
		return nil, fmt.Errorf("add rule: %w", err)
	}
	remove, err := compileRule(env, removeRule)
	if err != nil {
		return nil, fmt.Errorf("remove rule: %w", err)
	}
	return &CELPolicy{add: add, remove: remove}, nil
}

func compileRule(env *cel.Env, rule string) (cel.Program, error) {
	ast, iss := env.Compile(rule)
	if iss != nil && iss.Err() != nil {
		return nil, iss.Err()
	}
	if !ast.OutputType().IsExactType(cel.BoolType) {
		return nil, fmt.Errorf("rule %q must evaluate to bool, got %s", rule, ast.OutputType())
	}
	return env.Program(ast)
}

// Decide implements Policy. A transition matching both rules is an error.
func (p *CELPolicy) Decide(from, to orders.Status) (orders.Action, error) {
	vars := map[string]any{"old": string(from), "new": string(to)}

	add, err := evalBool(p.add, vars)
	if err != nil {
		return orders.ActionNone, err
	}
	remove, err := evalBool(p.remove, vars)
	if err != nil {
		return orders.ActionNone, err
	}

	switch {
	case add && remove:
		return orders.ActionNone, fmt.Errorf("transition %s -> %s matches both stock rules", from, to)
	case add:
		return orders.ActionAddStock, nil
	case remove:
		return orders.ActionRemoveStock, nil
	default:
		return orders.ActionNone, nil
	}
}

func evalBool(prg cel.Program, vars map[string]any) (bool, error) {
	out, _, err := prg.Eval(vars)
	if err != nil {
		return false, fmt.Errorf("evaluate rule: %w", err)
	}
	b, ok := out.Value().(bool)
	if !ok {
		return false, fmt.Errorf("rule returned %T, want bool", out.Value())
	}
	return b, nil
}

var (
	_ Policy = DefaultPolicy{}
	_ Policy = (*CELPolicy)(nil)
)
