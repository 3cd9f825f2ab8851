package filter

import (
	"regexp"
	"strings"
)

type tokenKind uint8

const (
	tokLParen tokenKind = iota + 1
	tokRParen
	tokAnd
	tokOr
	tokNot
	tokTerm
)

type token struct {
	kind tokenKind
	text string
	pos  int // index of the argument the token came from
}

// lex splits filter arguments into tokens. Parentheses may be glued to the
// start or end of an argument ("(project:a", "b)"); everything else in an
// argument is a single term.
func lex(args []string) []token {
	var toks []token

	for pos, arg := range args {
		for strings.HasPrefix(arg, "(") {
			toks = append(toks, token{kind: tokLParen, text: "(", pos: pos})
			arg = arg[1:]
		}

		var closing int
		for strings.HasSuffix(arg, ")") && !isRegexTerm(arg) {
			closing++
			arg = arg[:len(arg)-1]
		}

		if arg != "" {
			toks = append(toks, token{kind: keyword(arg), text: arg, pos: pos})
		}

		for range closing {
			toks = append(toks, token{kind: tokRParen, text: ")", pos: pos})
		}
	}

	return toks
}

func keyword(s string) tokenKind {
	switch strings.ToLower(s) {
	case "and":
		return tokAnd
	case "or":
		return tokOr
	case "not":
		return tokNot
	default:
		return tokTerm
	}
}

// A pattern term like "description.~:(a|b)" keeps its closing parens when
// they balance an opening one inside the value.
func isRegexTerm(arg string) bool {
	m := comparisonRe.FindStringSubmatch(arg)
	if m == nil {
		return false
	}

	value := m[3]

	return strings.Count(value, "(") >= strings.Count(value, ")")
}

var (
	// attr[.op]:value or attr[.op]=value
	comparisonRe = regexp.MustCompile(`^([a-z][a-z0-9_]*)(?:\.([a-z!=<>~]+))?[:=](.*)$`)

	// 3  1-4  1,3,5  2-3,7
	idListRe = regexp.MustCompile(`^\d+(?:-\d+)?(?:,\d+(?:-\d+)?)*$`)

	// full UUID or a prefix of at least 8 hex characters
	uuidPrefixRe = regexp.MustCompile(`^[0-9a-fA-F]{8}(?:-[0-9a-fA-F]{0,4}(?:-[0-9a-fA-F]{0,4}(?:-[0-9a-fA-F]{0,4}(?:-[0-9a-fA-F]{0,12})?)?)?)?$`)

	tagTermRe = regexp.MustCompile(`^[+-][^\s+\-,()][^\s,()]*$`)
)
