package services

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode"
)

// evalExpression evaluates an arithmetic expression supporting + - * / ^,
// parentheses, unary minus and decimal numbers.
func evalExpression(input string) (float64, error) {
	p := &exprParser{input: strings.TrimSpace(input)}
	if p.input == "" {
		return 0, fmt.Errorf("empty expression")
	}

	result, err := p.parseExpr()
	if err != nil {
		return 0, err
	}
	p.skipSpaces()
	if p.pos != len(p.input) {
		return 0, fmt.Errorf("unexpected character %q at position %d", p.input[p.pos], p.pos)
	}
	if math.IsInf(result, 0) || math.IsNaN(result) {
		return 0, fmt.Errorf("expression result is not a finite number")
	}
	return result, nil
}

// formatNumber trims trailing zeros so "2+2" renders as "4", not "4.000000".
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

// parseExpr handles + and - (lowest precedence).
func (p *exprParser) parseExpr() (float64, error) {
	left, err := p.parseTerm()
	if err != nil {
		return 0, err
	}
	for {
		ch, ok := p.peek()
		if !ok || (ch != '+' && ch != '-') {
			return left, nil
		}
		p.pos++
		right, err := p.parseTerm()
		if err != nil {
			return 0, err
		}
		if ch == '+' {
			left += right
		} else {
			left -= right
		}
	}
}

// parseTerm handles * and /.
func (p *exprParser) parseTerm() (float64, error) {
	left, err := p.parsePower()
	if err != nil {
		return 0, err
	}
	for {
		ch, ok := p.peek()
		if !ok || (ch != '*' && ch != '/') {
			return left, nil
		}
		p.pos++
		right, err := p.parsePower()
		if err != nil {
			return 0, err
		}
		if ch == '*' {
			left *= right
		} else {
			if right == 0 {
				return 0, fmt.Errorf("division by zero")
			}
			left /= right
		}
	}
}

// parsePower handles ^ (right-associative).
func (p *exprParser) parsePower() (float64, error) {
	base, err := p.parseUnary()
	if err != nil {
		return 0, err
	}
	ch, ok := p.peek()
	if !ok || ch != '^' {
		return base, nil
	}
	p.pos++
	exp, err := p.parsePower()
	if err != nil {
		return 0, err
	}
	return math.Pow(base, exp), nil
}

func (p *exprParser) parseUnary() (float64, error) {
	ch, ok := p.peek()
	if ok && ch == '-' {
		p.pos++
		v, err := p.parseUnary()
		if err != nil {
			return 0, err
		}
		return -v, nil
	}
	if ok && ch == '+' {
		p.pos++
		return p.parseUnary()
	}
	return p.parsePrimary()
}

func (p *exprParser) parsePrimary() (float64, error) {
	ch, ok := p.peek()
	if !ok {
		return 0, fmt.Errorf("unexpected end of expression")
	}

	if ch == '(' {
		p.pos++
		v, err := p.parseExpr()
		if err != nil {
			return 0, err
		}
		ch, ok = p.peek()
		if !ok || ch != ')' {
			return 0, fmt.Errorf("missing closing parenthesis")
		}
		p.pos++
		return v, nil
	}

	start := p.pos
	for p.pos < len(p.input) && (unicode.IsDigit(rune(p.input[p.pos])) || p.input[p.pos] == '.') {
		p.pos++
	}
	if start == p.pos {
		return 0, fmt.Errorf("expected number at position %d", start)
	}

	v, err := strconv.ParseFloat(p.input[start:p.pos], 64)
	if err != nil {
		return 0, fmt.Errorf("invalid number %q", p.input[start:p.pos])
	}
	return v, nil
}
