package query

import (
	"fmt"
	"strings"
)

// Op is a comparison operator used by a Predicate.
type Op int

const (
	OpRaw Op = iota
	OpEq
	OpNe
	OpGt
	OpGte
	OpLt
	OpLte
	OpIn
	OpLike
	OpIsNull
	OpNotNull
)

var opSymbols = map[Op]string{
	OpEq:      "=",
	OpNe:      "<>",
	OpGt:      ">",
	OpGte:     ">=",
	OpLt:      "<",
	OpLte:     "<=",
	OpIn:      "IN",
	OpLike:    "LIKE",
	OpIsNull:  "IS NULL",
	OpNotNull: "IS NOT NULL",
}

func (o Op) String() string {
	if s, ok := opSymbols[o]; ok {
		return s
	}
	return "RAW"
}

// ParseOp maps an operator symbol such as ">=" or "in" to an Op.
func ParseOp(s string) (Op, bool) {
	s = strings.ToUpper(strings.TrimSpace(s))
	if s == "!=" {
		return OpNe, true
	}
	for op, sym := range opSymbols {
		if sym == s {
			return op, true
		}
	}
	return OpRaw, false
}

// Predicate is one filter condition. Raw predicates carry an expression
// with '?' placeholders; the others compare Column with Value.
type Predicate struct {
	Column string
	Op     Op
	Value  any
	Raw    string
	Args   []any
	Or     bool
}

// Eq builds "column = value".
func Eq(column string, value any) Predicate {
	return Predicate{Column: column, Op: OpEq, Value: value}
}

// In builds "column IN (values...)". values must be a slice.
func In(column string, values []any) Predicate {
	return Predicate{Column: column, Op: OpIn, Value: values}
}

// Cmp builds a comparison with an arbitrary operator.
func Cmp(column string, op Op, value any) Predicate {
	return Predicate{Column: column, Op: op, Value: value}
}

// Raw builds a raw condition such as "age > ? AND age < ?".
func Raw(expr string, args ...any) Predicate {
	return Predicate{Op: OpRaw, Raw: expr, Args: args}
}

func (p Predicate) String() string {
	prefix := "AND"
	if p.Or {
		prefix = "OR"
	}
	switch p.Op {
	case OpRaw:
		return fmt.Sprintf("%s %s %v", prefix, p.Raw, p.Args)
	case OpIsNull, OpNotNull:
		return fmt.Sprintf("%s %s %s", prefix, p.Column, p.Op)
	default:
		return fmt.Sprintf("%s %s %s %v", prefix, p.Column, p.Op, p.Value)
	}
}

func (p Predicate) clone() Predicate {
	if len(p.Args) > 0 {
		p.Args = append([]any(nil), p.Args...)
	}
	if values, ok := p.Value.([]any); ok {
		p.Value = append([]any(nil), values...)
	}
	return p
}
