// Package filterexpr parses AIP-160 style filter and order_by strings into
// predicates a repository query can consume. Only AND conjunctions of
// equality and startsWith over whitelisted string fields are accepted.
package filterexpr

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/cel-go/cel"
	exprpb "google.golang.org/genproto/googleapis/api/expr/v1alpha1"
)

// Op represents a supported comparison operation.
type Op string

const (
	OpEQ Op = "=="
	OpSW Op = "startsWith"
)

// Predicate is one field comparison extracted from a filter expression.
type Predicate struct {
	Field string
	Op    Op
	Value string
}

// Order is a parsed order_by segment.
type Order struct {
	Key  string
	Desc bool
}

// Parse validates the filter against the whitelisted field names and returns
// its conjuncts. An empty filter yields no predicates.
func Parse(filter string, fields []string) ([]Predicate, error) {
	filter = strings.TrimSpace(filter)
	if filter == "" {
		return nil, nil
	}
	if len(fields) == 0 {
		return nil, errors.New("filter schema has no fields defined")
	}

	allowed := make(map[string]struct{}, len(fields))
	opts := make([]cel.EnvOption, 0, len(fields))
	for _, name := range fields {
		allowed[name] = struct{}{}
		opts = append(opts, cel.Variable(name, cel.StringType))
	}

	env, err := cel.NewEnv(opts...)
	if err != nil {
		return nil, err
	}

	ast, issues := env.Parse(filter)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("invalid filter: %w", issues.Err())
	}
	parsed, err := cel.AstToParsedExpr(ast)
	if err != nil {
		return nil, fmt.Errorf("failed to convert AST: %w", err)
	}

	conjuncts, err := extractConjuncts(parsed.GetExpr())
	if err != nil {
		return nil, err
	}

	predicates := make([]Predicate, 0, len(conjuncts))
	for _, expr := range conjuncts {
		pred, err := parsePredicate(expr)
		if err != nil {
			return nil, err
		}
		if _, ok := allowed[pred.Field]; !ok {
			return nil, fmt.Errorf("field %q is not allowed", pred.Field)
		}
		predicates = append(predicates, pred)
	}
	return predicates, nil
}

// ParseOrderBy validates a single "key [asc|desc]" segment against the
// whitelist. An empty input returns the zero Order with ok=false so the
// caller can apply its default.
func ParseOrderBy(raw string, keys []string) (Order, bool, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Order{}, false, nil
	}

	parts := strings.Fields(raw)
	if len(parts) > 2 {
		return Order{}, false, fmt.Errorf("invalid order segment %q", raw)
	}

	found := false
	for _, key := range keys {
		if parts[0] == key {
			found = true
			break
		}
	}
	if !found {
		return Order{}, false, fmt.Errorf("field %q cannot be used for ordering", parts[0])
	}

	ord := Order{Key: parts[0]}
	if len(parts) == 2 {
		switch strings.ToLower(parts[1]) {
		case "asc":
		case "desc":
			ord.Desc = true
		default:
			return Order{}, false, fmt.Errorf("invalid direction %q for field %q", parts[1], parts[0])
		}
	}
	return ord, true, nil
}

// extractConjuncts flattens nested AND chains; cel-go emits them as binary
// calls.
func extractConjuncts(expr *exprpb.Expr) ([]*exprpb.Expr, error) {
	if expr == nil {
		return nil, errors.New("empty expression")
	}

	call := expr.GetCallExpr()
	if call == nil {
		return []*exprpb.Expr{expr}, nil
	}

	switch call.Function {
	case "_&&_":
		if len(call.Args) < 2 || call.Target != nil {
			return nil, errors.New("logical AND must have at least two operands")
		}
		var result []*exprpb.Expr
		for _, arg := range call.Args {
			conjuncts, err := extractConjuncts(arg)
			if err != nil {
				return nil, err
			}
			result = append(result, conjuncts...)
		}
		return result, nil
	case "_||_", "_?_:_", "!_":
		return nil, fmt.Errorf("logical operator %q is not supported; only AND is allowed", call.Function)
	default:
		return []*exprpb.Expr{expr}, nil
	}
}

func parsePredicate(expr *exprpb.Expr) (Predicate, error) {
	call := expr.GetCallExpr()
	if call == nil {
		return Predicate{}, errors.New("unsupported expression; expected comparison or function call")
	}

	switch call.Function {
	case "_==_":
		if call.Target != nil || len(call.Args) != 2 {
			return Predicate{}, errors.New("operator == expects two operands")
		}
		return buildPredicate(OpEQ, call.Args[0], call.Args[1])
	case "startsWith":
		var fieldExpr, valueExpr *exprpb.Expr
		if call.Target != nil {
			if len(call.Args) != 1 {
				return Predicate{}, errors.New("startsWith with receiver must have exactly one argument")
			}
			fieldExpr, valueExpr = call.Target, call.Args[0]
		} else {
			if len(call.Args) != 2 {
				return Predicate{}, errors.New("startsWith must have exactly two arguments")
			}
			fieldExpr, valueExpr = call.Args[0], call.Args[1]
		}
		return buildPredicate(OpSW, fieldExpr, valueExpr)
	default:
		return Predicate{}, fmt.Errorf("function %q is not supported", call.Function)
	}
}

func buildPredicate(op Op, fieldExpr, valueExpr *exprpb.Expr) (Predicate, error) {
	ident := fieldExpr.GetIdentExpr()
	if ident == nil {
		return Predicate{}, errors.New("left-hand side must be an identifier")
	}

	constant := valueExpr.GetConstExpr()
	if constant == nil {
		return Predicate{}, errors.New("right-hand side must be a string literal")
	}
	str, ok := constant.ConstantKind.(*exprpb.Constant_StringValue)
	if !ok {
		return Predicate{}, errors.New("right-hand side must be a string literal")
	}

	return Predicate{Field: ident.GetName(), Op: op, Value: str.StringValue}, nil
}
