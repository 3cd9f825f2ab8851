package task

import (
	"math"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Kind is the semantic type of an attribute. Values are always stored as
// strings; the kind decides how they are validated, normalized and compared.
type Kind uint8

const (
	KindString  Kind = iota // free text, also every user-defined attribute
	KindUUID                // single canonical UUID
	KindUUIDSet             // comma separated UUIDs, sorted
	KindStatus              // one of the Status constants
	KindTags                // comma separated tags, sorted, deduplicated
	KindDate                // Unix epoch seconds
	KindNumeric             // decimal number
	KindPeriod              // recurrence period, see ParsePeriod
)

var kindNames = [...]string{
	KindString:  "string",
	KindUUID:    "uuid",
	KindUUIDSet: "uuid set",
	KindStatus:  "status",
	KindTags:    "tags",
	KindDate:    "date",
	KindNumeric: "numeric",
	KindPeriod:  "period",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}

	return "unknown"
}

// Known attribute names.
const (
	AttrUUID        = "uuid"
	AttrStatus      = "status"
	AttrDescription = "description"
	AttrProject     = "project"
	AttrPriority    = "priority"
	AttrTags        = "tags"
	AttrParent      = "parent"
	AttrDepends     = "depends"
	AttrEntry       = "entry"
	AttrModified    = "modified"
	AttrDue         = "due"
	AttrEnd         = "end"
	AttrStart       = "start"
	AttrWait        = "wait"
	AttrScheduled   = "scheduled"
	AttrUntil       = "until"
	AttrRecur       = "recur"
	AttrMask        = "mask"
	AttrIMask       = "imask"
)

var kinds = map[string]Kind{
	AttrUUID:        KindUUID,
	AttrStatus:      KindStatus,
	AttrDescription: KindString,
	AttrProject:     KindString,
	AttrPriority:    KindString,
	AttrTags:        KindTags,
	AttrParent:      KindUUID,
	AttrDepends:     KindUUIDSet,
	AttrEntry:       KindDate,
	AttrModified:    KindDate,
	AttrDue:         KindDate,
	AttrEnd:         KindDate,
	AttrStart:       KindDate,
	AttrWait:        KindDate,
	AttrScheduled:   KindDate,
	AttrUntil:       KindDate,
	AttrRecur:       KindPeriod,
	AttrMask:        KindString,
	AttrIMask:       KindNumeric,
}

// KindOf returns the kind of a known attribute. Unknown (user-defined)
// attributes are opaque strings.
func KindOf(name string) Kind {
	if k, ok := kinds[name]; ok {
		return k
	}

	return KindString
}

// IsKnown reports whether name is a built-in attribute.
func IsKnown(name string) bool {
	_, ok := kinds[name]

	return ok
}

var attrNameRe = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

// ValidName reports whether name can be used as an attribute name.
func ValidName(name string) bool {
	return attrNameRe.MatchString(name)
}

// Status is the lifecycle state of a record.
type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusDeleted   Status = "deleted"
	StatusRecurring Status = "recurring"
	StatusWaiting   Status = "waiting"
)

// ParseStatus validates s as a status.
func ParseStatus(s string) (Status, error) {
	switch st := Status(s); st {
	case StatusPending, StatusCompleted, StatusDeleted, StatusRecurring, StatusWaiting:
		return st, nil
	default:
		return "", ErrInvalidStatus
	}
}

// InPendingSet reports whether records with this status live in the pending
// collection and receive positional ids.
func (s Status) InPendingSet() bool {
	return s == StatusPending || s == StatusWaiting || s == StatusRecurring
}

// normalize validates value for attribute name and returns its stored form.
// value is non-empty.
func normalize(name, value string) (string, error) {
	switch KindOf(name) {
	case KindUUID:
		id, err := uuid.Parse(value)
		if err != nil {
			return "", invalid(name, value, ErrInvalidUUID)
		}

		return id.String(), nil
	case KindUUIDSet:
		return normalizeSet(name, value, func(elem string) (string, error) {
			id, err := uuid.Parse(elem)
			if err != nil {
				return "", ErrInvalidUUID
			}

			return id.String(), nil
		})
	case KindStatus:
		st, err := ParseStatus(value)
		if err != nil {
			return "", invalid(name, value, err)
		}

		return string(st), nil
	case KindTags:
		return normalizeSet(name, value, func(elem string) (string, error) {
			if strings.ContainsFunc(elem, isSpace) {
				return "", ErrInvalidTag
			}

			return elem, nil
		})
	case KindDate:
		t, err := ParseAbsoluteDate(value)
		if err != nil {
			return "", invalid(name, value, err)
		}

		return FormatEpoch(t), nil
	case KindNumeric:
		if name == AttrIMask {
			n, err := strconv.Atoi(value)
			if err != nil || n < 0 {
				return "", invalid(name, value, ErrInvalidIndex)
			}

			return strconv.Itoa(n), nil
		}

		f, err := strconv.ParseFloat(value, 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return "", invalid(name, value, ErrInvalidNumber)
		}

		return value, nil
	case KindPeriod:
		p, err := ParsePeriod(value)
		if err != nil {
			return "", invalid(name, value, err)
		}

		return p.String(), nil
	default:
		return value, nil
	}
}

func normalizeSet(name, value string, check func(string) (string, error)) (string, error) {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))

	for _, part := range parts {
		if part == "" {
			return "", invalid(name, value, ErrEmptyValue)
		}

		norm, err := check(part)
		if err != nil {
			return "", invalid(name, value, err)
		}

		out = append(out, norm)
	}

	slices.Sort(out)

	return strings.Join(slices.Compact(out), ","), nil
}

func isSpace(r rune) bool {
	return r == ' ' || r == '\t' || r == '\n' || r == '\r' || r == '\v' || r == '\f'
}

// FormatEpoch renders t in the stored date form.
func FormatEpoch(t time.Time) string {
	return strconv.FormatInt(t.Unix(), 10)
}
