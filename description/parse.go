package description

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

// ErrSyntax is returned for malformed connections and references.
var ErrSyntax = errors.New("syntax error")

// NoIndex marks a reference without array index.
const NoIndex = -1

// Ref references a graph boundary endpoint "name" or a node endpoint
// "node.endpoint". Both node and endpoint may carry an array index.
type Ref struct {
	Name          string
	Index         int
	Endpoint      string
	EndpointIndex int
}

// IsBoundary returns true if reference has no endpoint part.
func (r Ref) IsBoundary() bool {
	return r.Endpoint == ""
}

// EndpointName returns endpoint name including its index.
func (r Ref) EndpointName() string {
	if r.EndpointIndex == NoIndex {
		return r.Endpoint
	}
	return fmt.Sprintf("%s[%d]", r.Endpoint, r.EndpointIndex)
}

// NodeName returns node name including its index.
func (r Ref) NodeName() string {
	if r.Index == NoIndex {
		return r.Name
	}
	return fmt.Sprintf("%s[%d]", r.Name, r.Index)
}

func (r Ref) String() string {
	if r.IsBoundary() {
		return r.NodeName()
	}
	return r.NodeName() + "." + r.EndpointName()
}

// Operand is either a reference or a literal.
type Operand struct {
	Ref     *Ref
	Literal float32
}

func (o Operand) String() string {
	if o.Ref != nil {
		return o.Ref.String()
	}
	return strconv.FormatFloat(float64(o.Literal), 'g', -1, 32)
}

// Expr is a sum of products.
type Expr struct {
	Terms [][]Operand
}

func (e Expr) String() string {
	terms := make([]string, len(e.Terms))
	for i, t := range e.Terms {
		factors := make([]string, len(t))
		for j, o := range t {
			factors[j] = o.String()
		}
		terms[i] = strings.Join(factors, " * ")
	}
	return strings.Join(terms, " + ")
}

// Single returns the reference if expression is a single reference.
func (e Expr) Single() (Ref, bool) {
	if len(e.Terms) == 1 && len(e.Terms[0]) == 1 && e.Terms[0][0].Ref != nil {
		return *e.Terms[0][0].Ref, true
	}
	return Ref{}, false
}

// ParseConnection parses "from -> to".
func ParseConnection(s string) (Connection, error) {
	parts := strings.Split(s, "->")
	if len(parts) != 2 {
		return Connection{}, fmt.Errorf("%w: connection %q must have form \"from -> to\"", ErrSyntax, s)
	}
	c := Connection{From: strings.TrimSpace(parts[0]), To: strings.TrimSpace(parts[1])}
	if c.From == "" || c.To == "" {
		return Connection{}, fmt.Errorf("%w: connection %q has empty side", ErrSyntax, s)
	}
	return c, nil
}

// ParseRef parses a single reference.
func ParseRef(s string) (Ref, error) {
	p := parser{s: s}
	r, err := p.ref()
	if err != nil {
		return Ref{}, err
	}
	p.space()
	if !p.done() {
		return Ref{}, p.errorf("unexpected %q", p.rest())
	}
	return r, nil
}

// ParseExpr parses expression of form "a * b + c".
func ParseExpr(s string) (Expr, error) {
	p := parser{s: s}
	var e Expr
	for {
		term, err := p.product()
		if err != nil {
			return Expr{}, err
		}
		e.Terms = append(e.Terms, term)
		p.space()
		if p.done() {
			return e, nil
		}
		if !p.accept('+') {
			return Expr{}, p.errorf("unexpected %q", p.rest())
		}
	}
}

type parser struct {
	s   string
	pos int
}

func (p *parser) errorf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %q at %d: %s", ErrSyntax, p.s, p.pos, fmt.Sprintf(format, args...))
}

func (p *parser) done() bool {
	return p.pos >= len(p.s)
}

func (p *parser) rest() string {
	return p.s[p.pos:]
}

func (p *parser) peek() byte {
	if p.done() {
		return 0
	}
	return p.s[p.pos]
}

func (p *parser) space() {
	for !p.done() && unicode.IsSpace(rune(p.s[p.pos])) {
		p.pos++
	}
}

func (p *parser) accept(c byte) bool {
	p.space()
	if p.peek() == c {
		p.pos++
		return true
	}
	return false
}

func (p *parser) product() ([]Operand, error) {
	var term []Operand
	for {
		o, err := p.operand()
		if err != nil {
			return nil, err
		}
		term = append(term, o)
		if !p.accept('*') {
			return term, nil
		}
	}
}

func (p *parser) operand() (Operand, error) {
	p.space()
	c := p.peek()
	switch {
	case c == '-' || c == '.' || isDigit(c):
		v, err := p.number()
		return Operand{Literal: v}, err
	case isLetter(c):
		r, err := p.ref()
		if err != nil {
			return Operand{}, err
		}
		return Operand{Ref: &r}, nil
	case c == 0:
		return Operand{}, p.errorf("operand expected")
	}
	return Operand{}, p.errorf("unexpected %q", string(c))
}

func (p *parser) number() (float32, error) {
	start := p.pos
	if p.peek() == '-' {
		p.pos++
	}
	for !p.done() {
		c := p.peek()
		if isDigit(c) || c == '.' {
			p.pos++
			continue
		}
		if c == 'e' || c == 'E' {
			p.pos++
			if n := p.peek(); n == '+' || n == '-' {
				p.pos++
			}
			continue
		}
		break
	}
	v, err := strconv.ParseFloat(p.s[start:p.pos], 32)
	if err != nil {
		p.pos = start
		return 0, p.errorf("invalid number")
	}
	return float32(v), nil
}

func (p *parser) ref() (Ref, error) {
	p.space()
	r := Ref{Index: NoIndex, EndpointIndex: NoIndex}
	var err error
	if r.Name, err = p.ident(); err != nil {
		return Ref{}, err
	}
	if r.Index, err = p.index(); err != nil {
		return Ref{}, err
	}
	if p.peek() != '.' {
		return r, nil
	}
	p.pos++
	if r.Endpoint, err = p.ident(); err != nil {
		return Ref{}, err
	}
	if r.EndpointIndex, err = p.index(); err != nil {
		return Ref{}, err
	}
	return r, nil
}

func (p *parser) ident() (string, error) {
	start := p.pos
	if !isLetter(p.peek()) {
		return "", p.errorf("name expected")
	}
	for !p.done() && (isLetter(p.peek()) || isDigit(p.peek())) {
		p.pos++
	}
	return p.s[start:p.pos], nil
}

func (p *parser) index() (int, error) {
	if p.peek() != '[' {
		return NoIndex, nil
	}
	p.pos++
	start := p.pos
	for isDigit(p.peek()) {
		p.pos++
	}
	if start == p.pos || p.peek() != ']' {
		return 0, p.errorf("index expected")
	}
	i, err := strconv.Atoi(p.s[start:p.pos])
	if err != nil {
		return 0, p.errorf("invalid index")
	}
	p.pos++
	return i, nil
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

func isLetter(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c == '_'
}
