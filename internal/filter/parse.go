package filter

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/calvinalkan/taskstore/internal/task"
)

type parser struct {
	toks []token
	i    int
	now  time.Time
	end  int
}

func (p *parser) parse() (node, error) {
	if len(p.toks) == 0 {
		return nil, nil
	}

	n, err := p.parseOr()
	if err != nil {
		return nil, err
	}

	if tok, ok := p.peek(); ok {
		return nil, p.errAt(tok, "unbalanced ')'")
	}

	return n, nil
}

// or := and ("or" and)*
func (p *parser) parseOr() (node, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}

	for {
		tok, ok := p.peek()
		if !ok || tok.kind != tokOr {
			return left, nil
		}

		p.i++

		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}

		left = orNode{left, right}
	}
}

// and := not (["and"] not)*
//
// Adjacent id and UUID terms joined implicitly form one set, so "1 2 3"
// selects three records instead of none.
func (p *parser) parseAnd() (node, error) {
	left, err := p.parseNot()
	if err != nil {
		return nil, err
	}

	for {
		tok, ok := p.peek()
		if !ok || tok.kind == tokOr || tok.kind == tokRParen {
			return left, nil
		}

		explicit := tok.kind == tokAnd
		if explicit {
			p.i++
		}

		right, err := p.parseNot()
		if err != nil {
			return nil, err
		}

		if !explicit {
			if merged, ok := mergeIDs(left, right); ok {
				left = merged

				continue
			}
		}

		left = andNode{left, right}
	}
}

// not := "not" not | primary
func (p *parser) parseNot() (node, error) {
	tok, ok := p.peek()
	if ok && tok.kind == tokNot {
		p.i++

		operand, err := p.parseNot()
		if err != nil {
			return nil, err
		}

		return notNode{operand}, nil
	}

	return p.parsePrimary()
}

// primary := "(" or ")" | term
func (p *parser) parsePrimary() (node, error) {
	tok, ok := p.next()
	if !ok {
		return nil, p.errEOF("missing operand")
	}

	switch tok.kind {
	case tokLParen:
		inner, err := p.parseOr()
		if err != nil {
			return nil, err
		}

		closing, ok := p.next()
		if !ok {
			return nil, p.errAt(tok, "unbalanced '('")
		}

		if closing.kind != tokRParen {
			return nil, p.errAt(closing, "expected ')'")
		}

		return inner, nil
	case tokTerm:
		return p.term(tok)
	default:
		return nil, p.errAt(tok, "missing operand before '"+tok.text+"'")
	}
}

func (p *parser) term(tok token) (node, error) {
	s := tok.text

	switch {
	case tagTermRe.MatchString(s):
		return tagNode{tag: s[1:], present: s[0] == '+'}, nil
	case idListRe.MatchString(s):
		return parseIDList(s), nil
	case uuidPrefixRe.MatchString(s):
		return idNode{uuids: []string{strings.ToLower(s)}}, nil
	}

	m := comparisonRe.FindStringSubmatch(s)
	if m == nil {
		return descNode{word: s}, nil
	}

	attr, opName, value := m[1], m[2], m[3]

	o, ok := ops[opName]
	if !ok {
		return nil, p.errAt(tok, "unknown operator '"+opName+"'")
	}

	return p.comparison(tok, attr, o, value)
}

func (p *parser) comparison(tok token, attr string, o op, value string) (node, error) {
	c := cmpNode{attr: attr, op: o, value: value, kind: attrKind(attr)}

	if o == opMatch || o == opNoMatch {
		re, err := regexp.Compile(value)
		if err != nil {
			return nil, p.errAt(tok, "invalid pattern: "+err.Error())
		}

		c.re = re

		return c, nil
	}

	if value == "" {
		return c, nil
	}

	switch c.kind {
	case task.KindDate:
		t, err := task.ParseDate(value, p.now)
		if err != nil {
			return nil, p.errAt(tok, "invalid date '"+value+"'")
		}

		c.epoch = t.Unix()
		c.value = task.FormatEpoch(t)

		y, mo, d := t.Date()
		if t.Equal(time.Date(y, mo, d, 0, 0, 0, 0, t.Location())) {
			c.dayEnd = t.AddDate(0, 0, 1).Unix()
		}
	case task.KindNumeric:
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return nil, p.errAt(tok, "invalid number '"+value+"'")
		}

		c.num = f
	case task.KindUUID, task.KindUUIDSet:
		c.value = strings.ToLower(value)
	}

	return c, nil
}

func parseIDList(s string) idNode {
	var n idNode

	for part := range strings.SplitSeq(s, ",") {
		lo, hi, isRange := strings.Cut(part, "-")

		from, _ := strconv.Atoi(lo)
		to := from

		if isRange {
			to, _ = strconv.Atoi(hi)
		}

		if from > to {
			from, to = to, from
		}

		n.ranges = append(n.ranges, idRange{from, to})
	}

	return n
}

func mergeIDs(left, right node) (node, bool) {
	l, ok := left.(idNode)
	if !ok {
		return nil, false
	}

	r, ok := right.(idNode)
	if !ok {
		return nil, false
	}

	l.ranges = append(l.ranges, r.ranges...)
	l.uuids = append(l.uuids, r.uuids...)

	return l, true
}

func (p *parser) peek() (token, bool) {
	if p.i >= len(p.toks) {
		return token{}, false
	}

	return p.toks[p.i], true
}

func (p *parser) next() (token, bool) {
	tok, ok := p.peek()
	if ok {
		p.i++
	}

	return tok, ok
}

func (p *parser) errAt(tok token, msg string) error {
	return &SyntaxError{Pos: tok.pos, Token: tok.text, Msg: msg}
}

func (p *parser) errEOF(msg string) error {
	return &SyntaxError{Pos: p.end, Msg: msg}
}
