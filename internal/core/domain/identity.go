package domain

import (
	"fmt"
	"strconv"
	"strings"
)

// EntityKind is the closed set of record kinds that take part in the
// document loop. Dispatch on it with a full switch; there is no fourth case.
type EntityKind string

const (
	KindNeed        EntityKind = "on" // operational need
	KindRequirement EntityKind = "or" // operational requirement
	KindChange      EntityKind = "oc" // operational change
)

// Kinds lists all entity kinds in their canonical document order.
func Kinds() []EntityKind {
	return []EntityKind{KindNeed, KindRequirement, KindChange}
}

// ParseKind maps a kind literal to its EntityKind.
func ParseKind(s string) (EntityKind, bool) {
	switch EntityKind(s) {
	case KindNeed, KindRequirement, KindChange:
		return EntityKind(s), true
	}
	return "", false
}

// Valid reports whether k is one of the three known kinds.
func (k EntityKind) Valid() bool {
	switch k {
	case KindNeed, KindRequirement, KindChange:
		return true
	}
	return false
}

// Label returns the human-readable singular name of the kind.
func (k EntityKind) Label() string {
	switch k {
	case KindNeed:
		return "Operational Need"
	case KindRequirement:
		return "Operational Requirement"
	case KindChange:
		return "Operational Change"
	}
	return string(k)
}

// SectionTitle returns the document heading that opens this kind's entity list.
func (k EntityKind) SectionTitle() string {
	switch k {
	case KindNeed:
		return "Operational Needs"
	case KindRequirement:
		return "Operational Requirements"
	case KindChange:
		return "Operational Changes"
	}
	return string(k)
}

// EntityIdentity names one logical entity: kind, owning group, and the
// numeric id that is unique within that group and kind. Version is the
// asserted version for updates; zero means absent (a reference, or a
// creation that has no stored version yet).
type EntityIdentity struct {
	Kind    EntityKind `json:"kind"`
	Group   string     `json:"group"`
	Num     int64      `json:"num"`
	Version int64      `json:"version,omitempty"`
}

// HasVersion reports whether the identity asserts a version.
func (id EntityIdentity) HasVersion() bool {
	return id.Version > 0
}

// Ref returns the version-agnostic form of the identity.
func (id EntityIdentity) Ref() EntityIdentity {
	id.Version = 0
	return id
}

// Format serializes the identity. With includeVersion the full grammar
// kind:group/num[version] is produced; without it (or when no version is
// set) the reference form kind:group/num.
func (id EntityIdentity) Format(includeVersion bool) string {
	if includeVersion && id.Version > 0 {
		return fmt.Sprintf("%s:%s/%d[%d]", id.Kind, id.Group, id.Num, id.Version)
	}
	return fmt.Sprintf("%s:%s/%d", id.Kind, id.Group, id.Num)
}

// String implements fmt.Stringer with the full form.
func (id EntityIdentity) String() string {
	return id.Format(true)
}

// ParseIdentity parses the textual identity grammar:
//
//	kind:group/num          (reference, version-agnostic)
//	kind:group/num[version] (full identity)
//
// The grammar is strict. Unknown kinds, malformed groups, non-positive
// numbers, leading zeros, whitespace, or trailing characters all return
// ErrInvalidIdentity; nothing is coerced.
func ParseIdentity(text string) (EntityIdentity, error) {
	var id EntityIdentity

	colon := strings.IndexByte(text, ':')
	if colon < 0 {
		return id, fmt.Errorf("%w: missing kind separator in %q", ErrInvalidIdentity, text)
	}
	kind, ok := ParseKind(text[:colon])
	if !ok {
		return id, fmt.Errorf("%w: unknown kind %q", ErrInvalidIdentity, text[:colon])
	}

	rest := text[colon+1:]
	slash := strings.IndexByte(rest, '/')
	if slash < 0 {
		return id, fmt.Errorf("%w: missing group separator in %q", ErrInvalidIdentity, text)
	}
	group := rest[:slash]
	if !validGroupToken(group) {
		return id, fmt.Errorf("%w: malformed group %q", ErrInvalidIdentity, group)
	}

	numPart := rest[slash+1:]
	var versionPart string
	if open := strings.IndexByte(numPart, '['); open >= 0 {
		if !strings.HasSuffix(numPart, "]") {
			return id, fmt.Errorf("%w: unterminated version in %q", ErrInvalidIdentity, text)
		}
		versionPart = numPart[open+1 : len(numPart)-1]
		numPart = numPart[:open]
	}

	num, err := parsePositive(numPart)
	if err != nil {
		return id, fmt.Errorf("%w: entity id %q", ErrInvalidIdentity, numPart)
	}

	id = EntityIdentity{Kind: kind, Group: group, Num: num}
	if versionPart != "" || strings.Contains(text, "[") {
		version, err := parsePositive(versionPart)
		if err != nil {
			return id, fmt.Errorf("%w: version %q", ErrInvalidIdentity, versionPart)
		}
		id.Version = version
	}
	return id, nil
}

// parsePositive parses a strictly positive decimal integer with no sign,
// no leading zeros, and no surrounding whitespace.
func parsePositive(s string) (int64, error) {
	if s == "" || s[0] == '0' || s[0] == '+' || s[0] == '-' {
		return 0, ErrInvalidIdentity
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return 0, ErrInvalidIdentity
		}
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil || n <= 0 {
		return 0, ErrInvalidIdentity
	}
	return n, nil
}

// validGroupToken checks the group shape: lowercase letters and digits,
// hyphen-separated, starting with a letter. Membership in the configured
// group registry is checked separately.
func validGroupToken(s string) bool {
	if s == "" || s[0] < 'a' || s[0] > 'z' {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= 'a' && c <= 'z':
		case c >= '0' && c <= '9':
		case c == '-' && i > 0 && i < len(s)-1 && s[i-1] != '-':
		default:
			return false
		}
	}
	return true
}
