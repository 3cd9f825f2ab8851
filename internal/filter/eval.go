package filter

import (
	"cmp"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"github.com/calvinalkan/taskstore/internal/task"
)

type node interface {
	match(r *task.Record) bool
}

type andNode struct{ l, r node }

func (n andNode) match(r *task.Record) bool { return n.l.match(r) && n.r.match(r) }

type orNode struct{ l, r node }

func (n orNode) match(r *task.Record) bool { return n.l.match(r) || n.r.match(r) }

type notNode struct{ x node }

func (n notNode) match(r *task.Record) bool { return !n.x.match(r) }

// descNode matches a bare word against the description, case-sensitively.
type descNode struct{ word string }

func (n descNode) match(r *task.Record) bool {
	return strings.Contains(r.Description(), n.word)
}

type tagNode struct {
	tag     string
	present bool
}

func (n tagNode) match(r *task.Record) bool {
	return r.HasTag(n.tag) == n.present
}

type idRange struct{ from, to int }

// idNode matches positional ids and UUID prefixes. Records outside the
// pending set have no positional id and only match by UUID.
type idNode struct {
	ranges []idRange
	uuids  []string
}

func (n idNode) match(r *task.Record) bool {
	if id := r.ID(); id > 0 {
		for _, rg := range n.ranges {
			if id >= rg.from && id <= rg.to {
				return true
			}
		}
	}

	u := r.UUID()

	return slices.ContainsFunc(n.uuids, func(prefix string) bool {
		return strings.HasPrefix(u, prefix)
	})
}

type op uint8

const (
	opEq op = iota + 1
	opNe
	opLt
	opLe
	opGt
	opGe
	opMatch
	opNoMatch
)

var ops = map[string]op{
	"":         opEq,
	"=":        opEq,
	"is":       opEq,
	"eq":       opEq,
	"equals":   opEq,
	"!=":       opNe,
	"isnt":     opNe,
	"ne":       opNe,
	"not":      opNe,
	"<":        opLt,
	"lt":       opLt,
	"before":   opLt,
	"below":    opLt,
	"under":    opLt,
	"<=":       opLe,
	"le":       opLe,
	"lte":      opLe,
	"by":       opLe,
	">":        opGt,
	"gt":       opGt,
	"after":    opGt,
	"above":    opGt,
	"over":     opGt,
	">=":       opGe,
	"ge":       opGe,
	"gte":      opGe,
	"~":        opMatch,
	"has":      opMatch,
	"contains": opMatch,
	"!~":       opNoMatch,
	"hasnt":    opNoMatch,
}

// attrID is the pseudo attribute exposing the positional id.
const attrID = "id"

func attrKind(attr string) task.Kind {
	if attr == attrID {
		return task.KindNumeric
	}

	return task.KindOf(attr)
}

type cmpNode struct {
	attr  string
	kind  task.Kind
	op    op
	value string

	epoch  int64 // date rhs
	dayEnd int64 // exclusive end of the rhs day when it has no time of day
	num    float64
	re     *regexp.Regexp
}

func (n cmpNode) match(r *task.Record) bool {
	lhs := lookup(r, n.attr)

	switch n.op {
	case opMatch:
		return n.re.MatchString(lhs)
	case opNoMatch:
		return !n.re.MatchString(lhs)
	case opEq:
		return n.equal(lhs)
	case opNe:
		return !n.equal(lhs)
	}

	c := n.compare(lhs)

	switch n.op {
	case opLt:
		return c < 0
	case opLe:
		return c <= 0
	case opGt:
		return c > 0
	case opGe:
		return c >= 0
	default:
		return false
	}
}

func (n cmpNode) equal(lhs string) bool {
	if n.value == "" || lhs == "" {
		return n.value == lhs
	}

	switch n.kind {
	case task.KindTags, task.KindUUIDSet:
		return slices.Contains(strings.Split(lhs, ","), n.value)
	case task.KindDate:
		if n.dayEnd == 0 {
			return n.compare(lhs) == 0
		}

		secs, err := strconv.ParseInt(lhs, 10, 64)

		return err == nil && secs >= n.epoch && secs < n.dayEnd
	default:
		return n.compare(lhs) == 0
	}
}

// compare orders lhs against the right hand side. The empty value sorts
// before every non-empty value regardless of kind.
func (n cmpNode) compare(lhs string) int {
	switch {
	case lhs == "" && n.value == "":
		return 0
	case lhs == "":
		return -1
	case n.value == "":
		return 1
	}

	switch n.kind {
	case task.KindDate:
		secs, err := strconv.ParseInt(lhs, 10, 64)
		if err != nil {
			return strings.Compare(lhs, n.value)
		}

		return cmp.Compare(secs, n.epoch)
	case task.KindNumeric:
		f, err := strconv.ParseFloat(lhs, 64)
		if err != nil {
			return strings.Compare(lhs, n.value)
		}

		return cmp.Compare(f, n.num)
	default:
		return strings.Compare(lhs, n.value)
	}
}

func lookup(r *task.Record, attr string) string {
	if attr == attrID {
		if r.ID() == 0 {
			return ""
		}

		return strconv.Itoa(r.ID())
	}

	return r.Get(attr)
}
