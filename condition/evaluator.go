// Package condition evaluates the boolean expressions used by conditional
// workflow nodes. Expressions are evaluated after variable substitution, so
// operands arrive as plain text and types are inferred per operand.
package condition

import (
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

// Result strings returned by Evaluate. Conditional nodes always produce one
// of these two literals, never an error.
const (
	ResultTrue  = "TRUE"
	ResultFalse = "FALSE"
)

// Evaluator parses and evaluates infix boolean expressions. AND binds tighter
// than OR; parentheses group. A malformed expression evaluates to FALSE.
type Evaluator struct {
	logger *zap.Logger
}

// NewEvaluator creates an evaluator. A nil logger falls back to zap.NewNop.
func NewEvaluator(logger *zap.Logger) *Evaluator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Evaluator{logger: logger.With(zap.String("component", "condition"))}
}

// Evaluate resolves the expression to "TRUE" or "FALSE". Parse and type
// errors are recovered locally: the result is "FALSE".
func (e *Evaluator) Evaluate(expr string) string {
	ok, err := e.evaluate(expr)
	if err != nil {
		e.logger.Debug("condition evaluation failed, defaulting to FALSE",
			zap.String("expression", expr),
			zap.Error(err),
		)
		return ResultFalse
	}
	if ok {
		return ResultTrue
	}
	return ResultFalse
}

func (e *Evaluator) evaluate(expr string) (bool, error) {
	tokens, err := lex(expr)
	if err != nil {
		return false, err
	}
	p := &parser{tokens: tokens}
	result, err := p.parseOr()
	if err != nil {
		return false, err
	}
	if !p.atEnd() {
		return false, fmt.Errorf("unexpected trailing token %q", p.peek().text)
	}
	return result, nil
}

// -----------------------------------------------------------------------------
// Lexer
// -----------------------------------------------------------------------------

type tokenKind int

const (
	tokOperand tokenKind = iota
	tokQuoted
	tokOp
	tokAnd
	tokOr
	tokLParen
	tokRParen
)

type token struct {
	kind tokenKind
	text string
}

func lex(expr string) ([]token, error) {
	var tokens []token
	i := 0
	for i < len(expr) {
		c := expr[i]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			i++
		case c == '(':
			tokens = append(tokens, token{tokLParen, "("})
			i++
		case c == ')':
			tokens = append(tokens, token{tokRParen, ")"})
			i++
		case c == '\'' || c == '"':
			end := strings.IndexByte(expr[i+1:], c)
			if end < 0 {
				return nil, fmt.Errorf("unterminated quote at offset %d", i)
			}
			tokens = append(tokens, token{tokQuoted, expr[i+1 : i+1+end]})
			i += end + 2
		case isOpChar(c):
			op, n, err := lexOp(expr[i:])
			if err != nil {
				return nil, err
			}
			tokens = append(tokens, token{tokOp, op})
			i += n
		default:
			start := i
			for i < len(expr) && !isBareTerminator(expr[i]) {
				i++
			}
			word := expr[start:i]
			switch {
			case strings.EqualFold(word, "AND"):
				tokens = append(tokens, token{tokAnd, word})
			case strings.EqualFold(word, "OR"):
				tokens = append(tokens, token{tokOr, word})
			default:
				tokens = append(tokens, token{tokOperand, word})
			}
		}
	}
	return tokens, nil
}

func isOpChar(c byte) bool {
	return c == '=' || c == '!' || c == '<' || c == '>'
}

func isBareTerminator(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r' ||
		c == '(' || c == ')' || c == '\'' || c == '"' || isOpChar(c)
}

func lexOp(s string) (string, int, error) {
	if len(s) >= 2 && s[1] == '=' {
		switch s[0] {
		case '=', '!', '<', '>':
			return s[:2], 2, nil
		}
	}
	switch s[0] {
	case '<', '>':
		return s[:1], 1, nil
	}
	return "", 0, fmt.Errorf("invalid operator starting with %q", string(s[0]))
}

// -----------------------------------------------------------------------------
// Parser
// -----------------------------------------------------------------------------

type parser struct {
	tokens []token
	pos    int
}

func (p *parser) atEnd() bool    { return p.pos >= len(p.tokens) }
func (p *parser) peek() token    { return p.tokens[p.pos] }
func (p *parser) advance() token { t := p.tokens[p.pos]; p.pos++; return t }

// parseOr := parseAnd (OR parseAnd)*
func (p *parser) parseOr() (bool, error) {
	left, err := p.parseAnd()
	if err != nil {
		return false, err
	}
	for !p.atEnd() && p.peek().kind == tokOr {
		p.advance()
		right, err := p.parseAnd()
		if err != nil {
			return false, err
		}
		left = left || right
	}
	return left, nil
}

// parseAnd := parseTerm (AND parseTerm)*
func (p *parser) parseAnd() (bool, error) {
	left, err := p.parseTerm()
	if err != nil {
		return false, err
	}
	for !p.atEnd() && p.peek().kind == tokAnd {
		p.advance()
		right, err := p.parseTerm()
		if err != nil {
			return false, err
		}
		left = left && right
	}
	return left, nil
}

// parseTerm := '(' parseOr ')' | operand [op operand]
func (p *parser) parseTerm() (bool, error) {
	if p.atEnd() {
		return false, fmt.Errorf("unexpected end of expression")
	}
	if p.peek().kind == tokLParen {
		p.advance()
		inner, err := p.parseOr()
		if err != nil {
			return false, err
		}
		if p.atEnd() || p.peek().kind != tokRParen {
			return false, fmt.Errorf("missing closing parenthesis")
		}
		p.advance()
		return inner, nil
	}

	left, err := p.operand()
	if err != nil {
		return false, err
	}
	if p.atEnd() || p.peek().kind != tokOp {
		// A bare operand stands alone only when it is a boolean literal.
		if left.kind != kindBool {
			return false, fmt.Errorf("bare operand %q is not a boolean", left.str)
		}
		return left.b, nil
	}
	op := p.advance().text
	right, err := p.operand()
	if err != nil {
		return false, err
	}
	return compare(left, right, op), nil
}

func (p *parser) operand() (value, error) {
	if p.atEnd() {
		return value{}, fmt.Errorf("expected operand, got end of expression")
	}
	t := p.advance()
	switch t.kind {
	case tokQuoted:
		return value{kind: kindString, str: t.text}, nil
	case tokOperand:
		return inferValue(t.text), nil
	default:
		return value{}, fmt.Errorf("expected operand, got %q", t.text)
	}
}

// -----------------------------------------------------------------------------
// Operand typing and comparison
// -----------------------------------------------------------------------------

type valueKind int

const (
	kindNumber valueKind = iota
	kindString
	kindBool
)

type value struct {
	kind valueKind
	num  float64
	str  string
	b    bool
}

// inferValue applies the per-operand typing rule for unquoted text: TRUE and
// FALSE (any case) are booleans, numeric text is a number, the rest stays a
// string.
func inferValue(text string) value {
	if strings.EqualFold(text, "true") {
		return value{kind: kindBool, b: true, str: text}
	}
	if strings.EqualFold(text, "false") {
		return value{kind: kindBool, b: false, str: text}
	}
	if n, err := strconv.ParseFloat(text, 64); err == nil {
		return value{kind: kindNumber, num: n, str: text}
	}
	return value{kind: kindString, str: text}
}

// compare applies op across operands of the same kind. Mixed-kind comparisons
// are false by rule, never an error.
func compare(a, b value, op string) bool {
	if a.kind != b.kind {
		return false
	}
	switch a.kind {
	case kindBool:
		switch op {
		case "==":
			return a.b == b.b
		case "!=":
			return a.b != b.b
		}
		return false
	case kindNumber:
		switch op {
		case "==":
			return a.num == b.num
		case "!=":
			return a.num != b.num
		case ">":
			return a.num > b.num
		case "<":
			return a.num < b.num
		case ">=":
			return a.num >= b.num
		case "<=":
			return a.num <= b.num
		}
		return false
	default:
		switch op {
		case "==":
			return a.str == b.str
		case "!=":
			return a.str != b.str
		case ">":
			return a.str > b.str
		case "<":
			return a.str < b.str
		case ">=":
			return a.str >= b.str
		case "<=":
			return a.str <= b.str
		}
		return false
	}
}
