package agent

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

// ErrBadExpression indicates a malformed calculator argument.
var ErrBadExpression = errors.New("invalid arithmetic expression")

// evalExpression evaluates +, -, *, / and parentheses over decimal numbers.
func evalExpression(input string) (float64, error) {
	p := &exprParser{input: strings.TrimSpace(input)}
	if p.input == "" {
		return 0, fmt.Errorf("%w: empty input", ErrBadExpression)
	}
	value, err := p.parseSum()
	if err != nil {
		return 0, err
	}
	p.skipSpaces()
	if p.pos != len(p.input) {
		return 0, fmt.Errorf("%w: unexpected %q at position %d", ErrBadExpression, p.input[p.pos], p.pos)
	}
	return value, nil
}

// formatNumber trims trailing zeros so integer results read as integers.
func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

type exprParser struct {
	input string
	pos   int
}

func (p *exprParser) skipSpaces() {
	for p.pos < len(p.input) && unicode.IsSpace(rune(p.input[p.pos])) {
		p.pos++
	}
}

func (p *exprParser) peek() (byte, bool) {
	p.skipSpaces()
	if p.pos >= len(p.input) {
		return 0, false
	}
	return p.input[p.pos], true
}

func (p *exprParser) parseSum() (float64, error) {
	value, err := p.parseProduct()
	if err != nil {
		return 0, err
	}
	for {
		op, ok := p.peek()
		if !ok || (op != '+' && op != '-') {
			return value, nil
		}
		p.pos++
		rhs, err := p.parseProduct()
		if err != nil {
			return 0, err
		}
		if op == '+' {
			value += rhs
		} else {
			value -= rhs
		}
	}
}

func (p *exprParser) parseProduct() (float64, error) {
	value, err := p.parseUnary()
	if err != nil {
		return 0, err
	}
	for {
		op, ok := p.peek()
		if !ok || (op != '*' && op != '/') {
			return value, nil
		}
		p.pos++
		rhs, err := p.parseUnary()
		if err != nil {
			return 0, err
		}
		if op == '*' {
			value *= rhs
		} else {
			if rhs == 0 {
				return 0, fmt.Errorf("%w: division by zero", ErrBadExpression)
			}
			value /= rhs
		}
	}
}

func (p *exprParser) parseUnary() (float64, error) {
	op, ok := p.peek()
	if ok && (op == '+' || op == '-') {
		p.pos++
		value, err := p.parseUnary()
		if err != nil {
			return 0, err
		}
		if op == '-' {
			return -value, nil
		}
		return value, nil
	}
	return p.parseAtom()
}

func (p *exprParser) parseAtom() (float64, error) {
	c, ok := p.peek()
	if !ok {
		return 0, fmt.Errorf("%w: unexpected end of input", ErrBadExpression)
	}
	if c == '(' {
		p.pos++
		value, err := p.parseSum()
		if err != nil {
			return 0, err
		}
		if c, ok := p.peek(); !ok || c != ')' {
			return 0, fmt.Errorf("%w: missing closing parenthesis", ErrBadExpression)
		}
		p.pos++
		return value, nil
	}

	start := p.pos
	for p.pos < len(p.input) {
		c := p.input[p.pos]
		if (c >= '0' && c <= '9') || c == '.' {
			p.pos++
			continue
		}
		break
	}
	if start == p.pos {
		return 0, fmt.Errorf("%w: expected number at position %d", ErrBadExpression, start)
	}
	value, err := strconv.ParseFloat(p.input[start:p.pos], 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q is not a number", ErrBadExpression, p.input[start:p.pos])
	}
	return value, nil
}
