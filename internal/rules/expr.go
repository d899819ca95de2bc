package rules

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ErrInvalidExpression is wrapped by every evaluation failure.
var ErrInvalidExpression = errors.New("invalid expression")

var (
	ErrSyntax          = fmt.Errorf("%w: syntax", ErrInvalidExpression)
	ErrUnknownVariable = fmt.Errorf("%w: unknown variable", ErrInvalidExpression)
	ErrDivisionByZero  = fmt.Errorf("%w: division by zero", ErrInvalidExpression)
	ErrNonFinite       = fmt.Errorf("%w: non-finite result", ErrInvalidExpression)
)

type tokenKind int

const (
	tokNumber tokenKind = iota
	tokIdent
	tokOp
	tokLParen
	tokRParen
)

type token struct {
	kind tokenKind
	num  float64
	text string
}

// unary minus is carried through the RPN queue as "~"
const opNeg = "~"

func precedence(op string) int {
	switch op {
	case opNeg:
		return 3
	case "*", "/":
		return 2
	case "+", "-":
		return 1
	}
	return 0
}

func tokenize(expr string) ([]token, error) {
	var out []token
	for i := 0; i < len(expr); {
		c := expr[i]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			i++
		case c >= '0' && c <= '9' || c == '.':
			j := i
			dot := false
			for j < len(expr) && (expr[j] >= '0' && expr[j] <= '9' || expr[j] == '.' && !dot) {
				if expr[j] == '.' {
					dot = true
				}
				j++
			}
			n, err := strconv.ParseFloat(expr[i:j], 64)
			if err != nil {
				return nil, ErrSyntax
			}
			out = append(out, token{kind: tokNumber, num: n})
			i = j
		case isIdentStart(c):
			j := i + 1
			for j < len(expr) && (isIdentStart(expr[j]) || expr[j] >= '0' && expr[j] <= '9') {
				j++
			}
			out = append(out, token{kind: tokIdent, text: expr[i:j]})
			i = j
		case c == '+' || c == '-' || c == '*' || c == '/':
			out = append(out, token{kind: tokOp, text: string(c)})
			i++
		case c == '(':
			out = append(out, token{kind: tokLParen})
			i++
		case c == ')':
			out = append(out, token{kind: tokRParen})
			i++
		default:
			return nil, ErrSyntax
		}
	}
	return out, nil
}

func isIdentStart(c byte) bool {
	return c == '_' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z'
}

// toRPN runs the shunting-yard algorithm. expecting tracks whether the next
// token must be a value, which both detects unary minus and rejects
// sequences like "1 2" or "* 3".
func toRPN(tokens []token) ([]token, error) {
	var out, ops []token
	expecting := true
	for _, tk := range tokens {
		switch tk.kind {
		case tokNumber, tokIdent:
			if !expecting {
				return nil, ErrSyntax
			}
			out = append(out, tk)
			expecting = false
		case tokLParen:
			if !expecting {
				return nil, ErrSyntax
			}
			ops = append(ops, tk)
		case tokRParen:
			if expecting {
				return nil, ErrSyntax
			}
			matched := false
			for len(ops) > 0 {
				top := ops[len(ops)-1]
				ops = ops[:len(ops)-1]
				if top.kind == tokLParen {
					matched = true
					break
				}
				out = append(out, top)
			}
			if !matched {
				return nil, ErrSyntax
			}
		case tokOp:
			if expecting {
				if tk.text != "-" {
					return nil, ErrSyntax
				}
				ops = append(ops, token{kind: tokOp, text: opNeg})
				continue
			}
			p := precedence(tk.text)
			for len(ops) > 0 {
				top := ops[len(ops)-1]
				if top.kind != tokOp || precedence(top.text) < p {
					break
				}
				out = append(out, top)
				ops = ops[:len(ops)-1]
			}
			ops = append(ops, tk)
			expecting = true
		}
	}
	if expecting {
		return nil, ErrSyntax
	}
	for len(ops) > 0 {
		top := ops[len(ops)-1]
		ops = ops[:len(ops)-1]
		if top.kind == tokLParen {
			return nil, ErrSyntax
		}
		out = append(out, top)
	}
	return out, nil
}

func evalRPN(rpn []token, vars map[string]float64) (float64, error) {
	stack := make([]float64, 0, len(rpn))
	for _, tk := range rpn {
		switch tk.kind {
		case tokNumber:
			stack = append(stack, tk.num)
		case tokIdent:
			v, ok := vars[tk.text]
			if !ok {
				return 0, ErrUnknownVariable
			}
			stack = append(stack, v)
		case tokOp:
			if tk.text == opNeg {
				if len(stack) < 1 {
					return 0, ErrSyntax
				}
				stack[len(stack)-1] = -stack[len(stack)-1]
				continue
			}
			if len(stack) < 2 {
				return 0, ErrSyntax
			}
			a, b := stack[len(stack)-2], stack[len(stack)-1]
			stack = stack[:len(stack)-2]
			var r float64
			switch tk.text {
			case "+":
				r = a + b
			case "-":
				r = a - b
			case "*":
				r = a * b
			case "/":
				if b == 0 {
					return 0, ErrDivisionByZero
				}
				r = a / b
			}
			stack = append(stack, r)
		}
	}
	if len(stack) != 1 {
		return 0, ErrSyntax
	}
	if math.IsNaN(stack[0]) || math.IsInf(stack[0], 0) {
		return 0, ErrNonFinite
	}
	return stack[0], nil
}

// Eval evaluates a small arithmetic expression over vars. Every failure is
// one of the sentinel errors above; Eval never panics.
func Eval(expr string, vars map[string]float64) (float64, error) {
	tokens, err := tokenize(expr)
	if err != nil {
		return 0, err
	}
	if len(tokens) == 0 {
		return 0, ErrSyntax
	}
	rpn, err := toRPN(tokens)
	if err != nil {
		return 0, err
	}
	return evalRPN(rpn, vars)
}

// ResolveValue turns an authored rule value into the comparison operand.
// Strings that mention a bound variable are evaluated; anything else, and any
// expression that fails, is returned untouched.
func ResolveValue(v any, vars map[string]float64) any {
	s, ok := v.(string)
	if !ok || !mentionsAny(s, vars) {
		return v
	}
	n, err := Eval(s, vars)
	if err != nil {
		return v
	}
	return n
}

func mentionsAny(s string, vars map[string]float64) bool {
	for name := range vars {
		if strings.Contains(s, name) {
			return true
		}
	}
	return false
}
