// Package formula evaluates the restricted arithmetic expressions used by
// kit BOM lines to derive quantities from system capacity. The grammar is
// deliberately tiny: numbers, the kwp variable, + - * / and parentheses.
package formula

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

var (
	// ErrInvalidExpression indicates structurally broken input.
	ErrInvalidExpression = errors.New("formula: invalid expression")
	// ErrMismatchedParentheses indicates unbalanced parentheses.
	ErrMismatchedParentheses = errors.New("formula: mismatched parentheses")
	// ErrDivisionByZero indicates a divisor magnitude below epsilon.
	ErrDivisionByZero = errors.New("formula: division by zero")
)

const epsilon = 1e-9

// Variable is the single free variable accepted by the grammar.
const Variable = "kwp"

type tokenKind int

const (
	tokenNumber tokenKind = iota
	tokenVariable
	tokenOperator
	tokenLeftParen
	tokenRightParen
)

type token struct {
	kind  tokenKind
	value float64
	op    byte
}

// Validate reports whether the expression parses under the restricted
// grammar. It checks structure only; runtime failures such as division by
// zero depend on the kwp binding and are reported by Eval.
func Validate(expr string) error {
	if err := checkCharset(expr); err != nil {
		return err
	}
	tokens, err := tokenize(expr)
	if err != nil {
		return err
	}
	if len(tokens) == 0 {
		return fmt.Errorf("%w: empty", ErrInvalidExpression)
	}
	rpn, err := toRPN(tokens)
	if err != nil {
		return err
	}
	depth := 0
	for _, t := range rpn {
		switch t.kind {
		case tokenNumber, tokenVariable:
			depth++
		case tokenOperator:
			if t.op == 'n' {
				if depth < 1 {
					return ErrInvalidExpression
				}
				continue
			}
			if depth < 2 {
				return ErrInvalidExpression
			}
			depth--
		}
	}
	if depth != 1 {
		return ErrInvalidExpression
	}
	return nil
}

// Eval computes the expression with kwp bound to the given capacity.
// Same expression and same kwp always yield the same value.
func Eval(expr string, kwp float64) (float64, error) {
	if err := checkCharset(expr); err != nil {
		return 0, err
	}
	tokens, err := tokenize(expr)
	if err != nil {
		return 0, err
	}
	if len(tokens) == 0 {
		return 0, fmt.Errorf("%w: empty", ErrInvalidExpression)
	}
	rpn, err := toRPN(tokens)
	if err != nil {
		return 0, err
	}
	return evalRPN(rpn, kwp)
}

func checkCharset(expr string) error {
	for _, r := range expr {
		switch {
		case r >= '0' && r <= '9':
		case r == '.' || r == '+' || r == '-' || r == '*' || r == '/' || r == '(' || r == ')':
		case r == ' ' || r == '\t':
		case r == 'k' || r == 'w' || r == 'p':
		default:
			return fmt.Errorf("%w: illegal character %q", ErrInvalidExpression, r)
		}
	}
	return nil
}

func tokenize(expr string) ([]token, error) {
	var tokens []token
	i := 0
	for i < len(expr) {
		c := expr[i]
		switch {
		case c == ' ' || c == '\t':
			i++
		case c >= '0' && c <= '9' || c == '.':
			j := i
			for j < len(expr) && (expr[j] >= '0' && expr[j] <= '9' || expr[j] == '.') {
				j++
			}
			val, err := strconv.ParseFloat(expr[i:j], 64)
			if err != nil {
				return nil, fmt.Errorf("%w: bad number %q", ErrInvalidExpression, expr[i:j])
			}
			tokens = append(tokens, token{kind: tokenNumber, value: val})
			i = j
		case c == 'k' || c == 'w' || c == 'p':
			j := i
			for j < len(expr) && (expr[j] == 'k' || expr[j] == 'w' || expr[j] == 'p') {
				j++
			}
			if !strings.EqualFold(expr[i:j], Variable) {
				return nil, fmt.Errorf("%w: unknown identifier %q", ErrInvalidExpression, expr[i:j])
			}
			tokens = append(tokens, token{kind: tokenVariable})
			i = j
		case c == '(':
			tokens = append(tokens, token{kind: tokenLeftParen})
			i++
		case c == ')':
			tokens = append(tokens, token{kind: tokenRightParen})
			i++
		case c == '+' || c == '-' || c == '*' || c == '/':
			op := c
			if c == '-' && isUnaryPosition(tokens) {
				op = 'n'
			}
			if c == '+' && isUnaryPosition(tokens) {
				// Unary plus is a no-op.
				i++
				continue
			}
			tokens = append(tokens, token{kind: tokenOperator, op: op})
			i++
		default:
			return nil, fmt.Errorf("%w: unexpected %q", ErrInvalidExpression, c)
		}
	}
	return tokens, nil
}

func isUnaryPosition(tokens []token) bool {
	if len(tokens) == 0 {
		return true
	}
	last := tokens[len(tokens)-1]
	return last.kind == tokenOperator || last.kind == tokenLeftParen
}

func precedence(op byte) int {
	switch op {
	case 'n':
		return 3
	case '*', '/':
		return 2
	default:
		return 1
	}
}

// toRPN runs the shunting-yard algorithm. Unary minus ('n') is right
// associative and binds tighter than the binary operators.
func toRPN(tokens []token) ([]token, error) {
	var output []token
	var stack []token
	for _, t := range tokens {
		switch t.kind {
		case tokenNumber, tokenVariable:
			output = append(output, t)
		case tokenOperator:
			for len(stack) > 0 {
				top := stack[len(stack)-1]
				if top.kind != tokenOperator {
					break
				}
				if precedence(top.op) > precedence(t.op) || (precedence(top.op) == precedence(t.op) && t.op != 'n') {
					output = append(output, top)
					stack = stack[:len(stack)-1]
					continue
				}
				break
			}
			stack = append(stack, t)
		case tokenLeftParen:
			stack = append(stack, t)
		case tokenRightParen:
			matched := false
			for len(stack) > 0 {
				top := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				if top.kind == tokenLeftParen {
					matched = true
					break
				}
				output = append(output, top)
			}
			if !matched {
				return nil, ErrMismatchedParentheses
			}
		}
	}
	for len(stack) > 0 {
		top := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if top.kind == tokenLeftParen {
			return nil, ErrMismatchedParentheses
		}
		output = append(output, top)
	}
	return output, nil
}

func evalRPN(rpn []token, kwp float64) (float64, error) {
	var stack []float64
	pop := func() (float64, bool) {
		if len(stack) == 0 {
			return 0, false
		}
		v := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		return v, true
	}
	for _, t := range rpn {
		switch t.kind {
		case tokenNumber:
			stack = append(stack, t.value)
		case tokenVariable:
			stack = append(stack, kwp)
		case tokenOperator:
			if t.op == 'n' {
				v, ok := pop()
				if !ok {
					return 0, ErrInvalidExpression
				}
				stack = append(stack, -v)
				continue
			}
			right, ok := pop()
			if !ok {
				return 0, ErrInvalidExpression
			}
			left, ok := pop()
			if !ok {
				return 0, ErrInvalidExpression
			}
			switch t.op {
			case '+':
				stack = append(stack, left+right)
			case '-':
				stack = append(stack, left-right)
			case '*':
				stack = append(stack, left*right)
			case '/':
				if math.Abs(right) < epsilon {
					return 0, ErrDivisionByZero
				}
				stack = append(stack, left/right)
			}
		}
	}
	if len(stack) != 1 {
		return 0, ErrInvalidExpression
	}
	return stack[0], nil
}
